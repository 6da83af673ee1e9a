package server

import (
	"context"
	"log"
	"os"
	"testing"

	"messiahverse/internal/config"
	"messiahverse/internal/database"
	"messiahverse/internal/models"
	"messiahverse/internal/notifications"
	"messiahverse/internal/repository"
	"messiahverse/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testJWTSecret     = "test-secret-0123456789-0123456789"
	testGatewaySecret = "gateway-secret"
	testEditorEmail   = "editor@example.com"
)

var testDB *gorm.DB

func TestMain(m *testing.M) {
	os.Setenv("APP_ENV", "test")

	var err error
	testDB, err = database.ConnectTest()
	if err != nil {
		log.Printf("Server tests skipped: test database unavailable: %v", err)
		os.Exit(0)
	}

	os.Exit(m.Run())
}

func testConfig() *config.Config {
	return &config.Config{
		Port:            "8480",
		Env:             "test",
		JWTSecret:       testJWTSecret,
		GatewaySecret:   testGatewaySecret,
		AuthorizedEmail: testEditorEmail,
	}
}

// newTestApp builds a Server wired to the shared sqlite database (tables
// cleared) and a Fiber app with all routes registered. Prometheus
// middleware is left out so repeated fixtures don't re-register collectors.
func newTestApp(t *testing.T) (*Server, *fiber.App) {
	t.Helper()

	for _, table := range []string{
		"posts", "sessions", "accounts", "user_aliases", "users",
		"mood_statuses", "mood_snapshots", "visitor_logs",
	} {
		require.NoError(t, testDB.Exec("DELETE FROM "+table).Error)
	}

	cfg := testConfig()
	userRepo := repository.NewUserRepository(testDB)
	postRepo := repository.NewPostRepository(testDB)
	moodRepo := repository.NewMoodRepository(testDB)

	s := &Server{
		config:   cfg,
		db:       testDB,
		userRepo: userRepo,
		postRepo: postRepo,
		moodRepo: moodRepo,
		moodHub:  notifications.NewHub(),
	}
	s.notifier = notifications.NewNotifier(nil, s.moodHub)
	s.postService = service.NewPostService(postRepo)
	s.userService = service.NewUserService(userRepo, postRepo, cfg.JWTSecret)
	s.moodService = service.NewMoodService(moodRepo, cfg.AuthorizedEmail, s.notifier)
	s.uploadService = service.NewUploadService(&fakeUploader{})

	app := fiber.New()
	s.SetupRoutes(app)
	return s, app
}

// signInUser creates a user through the sign-in flow and returns the
// session token and user.
func signInUser(t *testing.T, s *Server, email string) (string, *models.User) {
	t.Helper()

	result, err := s.userService.SignIn(context.Background(), service.SignInInput{
		Provider:          "github",
		ProviderAccountID: "gh-" + email,
		Email:             email,
		Name:              "Test User",
	})
	require.NoError(t, err)
	return result.Token, result.User
}
