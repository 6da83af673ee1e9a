// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"messiahverse/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Seeder builds demo entities and persists them to the database.
type Seeder struct {
	db *gorm.DB
	r  *rand.Rand
}

// NewSeeder creates a Seeder bound to the provided Gorm DB.
func NewSeeder(db *gorm.DB) *Seeder {
	gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{
		db: db,
		r:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ClearAll wipes all seedable tables.
func (s *Seeder) ClearAll() error {
	for _, table := range []string{
		"posts", "sessions", "accounts", "user_aliases", "users",
		"mood_statuses", "mood_snapshots", "visitor_logs",
	} {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	log.Println("Cleared all tables")
	return nil
}

// CreateUser constructs and persists a sample user.
func (s *Seeder) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := &models.User{
		PublicID:    uuid.NewString(),
		Provider:    "github",
		ProviderID:  fmt.Sprintf("gh-%d", gofakeit.Number(10000, 99999)),
		Name:        gofakeit.Name(),
		Email:       gofakeit.Email(),
		Bio:         gofakeit.Sentence(10),
		Image:       fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
		Location:    gofakeit.City(),
		Username:    gofakeit.Username(),
		URL:         gofakeit.URL(),
		Followers:   gofakeit.Number(0, 5000),
		Following:   gofakeit.Number(0, 1000),
		Preferences: models.DefaultPreferences(),
	}
	for _, override := range overrides {
		override(user)
	}

	if err := s.db.Create(user).Error; err != nil {
		return nil, err
	}
	aliases := []models.UserAlias{
		{Alias: user.PublicID, UserID: user.ID},
		{Alias: user.ProviderID, UserID: user.ID},
	}
	if err := s.db.Create(&aliases).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreatePost constructs and persists a sample post with a realistic
// created_at spread over the last 90 days.
func (s *Seeder) CreatePost(author *models.User, overrides ...func(*models.Post)) (*models.Post, error) {
	post := &models.Post{
		Title:    gofakeit.Sentence(5),
		Content:  gofakeit.Paragraph(2, 4, 8, "\n\n"),
		AuthorID: author.ID,
		Metadata: models.PostMetadata{
			Format: "markdown",
			Layout: "default",
		},
	}
	daysBack := s.r.Intn(90)
	post.CreatedAt = time.Now().
		Add(-time.Duration(daysBack)*24*time.Hour - time.Duration(s.r.Intn(24))*time.Hour)

	for _, override := range overrides {
		override(post)
	}
	if err := s.db.Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// SeedMoodHistory writes a current mood plus hourly snapshots reaching back
// the given number of hours.
func (s *Seeder) SeedMoodHistory(hours int) error {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		loc = time.UTC
	}

	for i := hours; i >= 0; i-- {
		t := time.Now().In(loc).Add(-time.Duration(i) * time.Hour)
		emoji := "🌙"
		if h := t.Hour(); h >= 6 && h < 18 {
			emoji = "🌞"
		}
		snapshot := models.MoodSnapshot{
			GridPosition:   s.r.Intn(models.MoodGridCells),
			MentalWellness: s.r.Intn(models.MoodScaleMax + 1),
			Tiredness:      s.r.Intn(models.MoodScaleMax + 1),
			ParisTime12:    t.Format("3:04 PM"),
			ParisTime24:    t.Format("15:04"),
			TimeEmoji:      emoji,
			CapturedAt:     t,
		}
		if err := s.db.Create(&snapshot).Error; err != nil {
			return err
		}
		if i == 0 {
			status := models.MoodStatus{
				Type:           "current",
				GridPosition:   snapshot.GridPosition,
				MentalWellness: snapshot.MentalWellness,
				Tiredness:      snapshot.Tiredness,
				ParisTime12:    snapshot.ParisTime12,
				ParisTime24:    snapshot.ParisTime24,
				TimeEmoji:      snapshot.TimeEmoji,
				UpdatedAt:      t,
			}
			if err := s.db.Create(&status).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// Seed populates the database with users, posts, and mood history.
func (s *Seeder) Seed(numUsers, numPosts int) error {
	users := make([]*models.User, 0, numUsers)
	for i := 0; i < numUsers; i++ {
		user, err := s.CreateUser()
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		users = append(users, user)
	}
	log.Printf("Created %d users", len(users))

	for i := 0; i < numPosts; i++ {
		author := users[s.r.Intn(len(users))]
		if _, err := s.CreatePost(author); err != nil {
			return fmt.Errorf("create post: %w", err)
		}
	}
	log.Printf("Created %d posts", numPosts)

	if err := s.SeedMoodHistory(48); err != nil {
		return fmt.Errorf("seed mood history: %w", err)
	}
	log.Println("Seeded mood history")
	return nil
}
