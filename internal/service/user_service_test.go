package service

import (
	"context"
	"testing"
	"time"

	"messiahverse/internal/cache"
	"messiahverse/internal/database"
	"messiahverse/internal/models"
	"messiahverse/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret-0123456789-0123456789"

func newUserServiceFixture(t *testing.T) (*UserService, repository.UserRepository, repository.PostRepository) {
	t.Helper()

	db, err := database.ConnectTest()
	require.NoError(t, err)
	for _, table := range []string{
		"posts", "sessions", "accounts", "user_aliases", "users",
	} {
		require.NoError(t, db.Exec("DELETE FROM "+table).Error)
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	return NewUserService(userRepo, postRepo, testJWTSecret), userRepo, postRepo
}

func withTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(client)
	t.Cleanup(func() { cache.SetClient(nil) })
	return client
}

func githubSignIn() SignInInput {
	return SignInInput{
		Provider:          "github",
		ProviderAccountID: "gh-42",
		Email:             "Dev@Example.com",
		Name:              "Dev Eloper",
		Image:             "https://example.com/avatar.png",
		Username:          "developer",
		URL:               "https://github.com/developer",
		Followers:         12,
		Following:         3,
	}
}

func TestUserService_SignIn_CreatesUserWithDefaults(t *testing.T) {
	svc, userRepo, _ := newUserServiceFixture(t)
	ctx := context.Background()

	result, err := svc.SignIn(ctx, githubSignIn())
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)

	// Email is normalized.
	assert.Equal(t, "dev@example.com", result.User.Email)
	assert.NotEmpty(t, result.User.PublicID)
	assert.Equal(t, models.DefaultPreferences(), result.User.Preferences)

	// Both identifiers resolve.
	byPublic, err := userRepo.GetByAnyID(ctx, result.User.PublicID)
	require.NoError(t, err)
	byProvider, err := userRepo.GetByAnyID(ctx, "gh-42")
	require.NoError(t, err)
	assert.Equal(t, byPublic.ID, byProvider.ID)
}

func TestUserService_SignIn_SecondSignInRefreshesProviderFields(t *testing.T) {
	svc, _, _ := newUserServiceFixture(t)
	ctx := context.Background()

	first, err := svc.SignIn(ctx, githubSignIn())
	require.NoError(t, err)

	// User edits their bio between sign-ins.
	first.User.Bio = "my bio"
	patch := ProfilePatch{Bio: &first.User.Bio}
	identity := models.Identity{UserID: first.User.ID, PublicID: first.User.PublicID}
	_, err = svc.UpdateOwnProfile(ctx, identity, patch)
	require.NoError(t, err)

	in := githubSignIn()
	in.Followers = 99
	second, err := svc.SignIn(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, 99, second.User.Followers)
	assert.Equal(t, "my bio", second.User.Bio)
}

func TestUserService_SignIn_TokenClaims(t *testing.T) {
	svc, _, _ := newUserServiceFixture(t)

	result, err := svc.SignIn(context.Background(), githubSignIn())
	require.NoError(t, err)

	token, err := jwt.Parse(result.Token, func(token *jwt.Token) (any, error) {
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)

	assert.Equal(t, "messiahverse-api", claims["iss"])
	assert.Equal(t, "messiahverse-client", claims["aud"])
	assert.Equal(t, result.User.PublicID, claims["sub"])
	assert.Equal(t, "dev@example.com", claims["email"])
	assert.NotEmpty(t, claims["jti"])
}

func TestUserService_Logout_RevokesToken(t *testing.T) {
	svc, _, _ := newUserServiceFixture(t)
	withTestRedis(t)
	ctx := context.Background()

	result, err := svc.SignIn(ctx, githubSignIn())
	require.NoError(t, err)

	token, err := jwt.Parse(result.Token, func(token *jwt.Token) (any, error) {
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	jti := token.Claims.(jwt.MapClaims)["jti"].(string)

	require.NoError(t, svc.Logout(ctx, jti, result.ExpiresAt))

	revoked, err := cache.IsTokenBlacklisted(ctx, jti)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestUserService_GetPublicProfile_RedactsPerPreferences(t *testing.T) {
	svc, userRepo, _ := newUserServiceFixture(t)
	ctx := context.Background()

	result, err := svc.SignIn(ctx, githubSignIn())
	require.NoError(t, err)

	user := result.User
	user.Bio = "secret bio"
	user.Location = "Paris"
	user.Preferences.ShowBio = false
	user.Preferences.ShowFollowers = false
	require.NoError(t, userRepo.Update(ctx, user))

	// Anonymous viewer: hidden fields are nil, email never present.
	profile, err := svc.GetPublicProfile(ctx, user.PublicID, models.Identity{})
	require.NoError(t, err)
	assert.Nil(t, profile.Bio)
	assert.Nil(t, profile.Followers)
	assert.Nil(t, profile.Email)
	require.NotNil(t, profile.Location)
	assert.Equal(t, "Paris", *profile.Location)

	// Owner sees everything.
	owner := models.Identity{UserID: user.ID, PublicID: user.PublicID, Email: user.Email}
	ownProfile, err := svc.GetPublicProfile(ctx, user.PublicID, owner)
	require.NoError(t, err)
	require.NotNil(t, ownProfile.Bio)
	assert.Equal(t, "secret bio", *ownProfile.Bio)
	require.NotNil(t, ownProfile.Email)
}

func TestUserService_GetPublicProfile_AliasCacheRefreshedAfterUpdate(t *testing.T) {
	svc, _, _ := newUserServiceFixture(t)
	withTestRedis(t)
	ctx := context.Background()

	result, err := svc.SignIn(ctx, githubSignIn())
	require.NoError(t, err)
	user := result.User
	identity := models.Identity{UserID: user.ID, PublicID: user.PublicID}

	// Anonymous read through the provider alias populates the cache under
	// that alias, not the public ID.
	profile, err := svc.GetPublicProfile(ctx, "gh-42", models.Identity{})
	require.NoError(t, err)
	assert.Equal(t, "Dev Eloper", profile.Name)

	name := "Renamed Person"
	_, err = svc.UpdateOwnProfile(ctx, identity, ProfilePatch{Name: &name})
	require.NoError(t, err)

	profile, err = svc.GetPublicProfile(ctx, "gh-42", models.Identity{})
	require.NoError(t, err)
	assert.Equal(t, "Renamed Person", profile.Name)
}

func TestUserService_GetPublicProfile_DeletedUserNotServedFromCache(t *testing.T) {
	svc, userRepo, _ := newUserServiceFixture(t)
	withTestRedis(t)
	ctx := context.Background()

	result, err := svc.SignIn(ctx, githubSignIn())
	require.NoError(t, err)
	user := result.User
	identity := models.Identity{UserID: user.ID, PublicID: user.PublicID, Email: user.Email}

	// Warm the cache via both the provider alias and the public ID.
	_, err = svc.GetPublicProfile(ctx, "gh-42", models.Identity{})
	require.NoError(t, err)
	_, err = svc.GetPublicProfile(ctx, user.PublicID, models.Identity{})
	require.NoError(t, err)

	now := time.Now()
	svc.now = func() time.Time { return now }
	_, err = svc.ConfirmDeletion(ctx, identity)
	require.NoError(t, err)
	svc.now = func() time.Time { return now.Add(4 * time.Second) }
	_, err = svc.ConfirmDeletion(ctx, identity)
	require.NoError(t, err)
	svc.now = func() time.Time { return now.Add(10 * time.Second) }
	require.NoError(t, svc.DeleteOwnAccount(ctx, identity))

	exists, err := userRepo.Exists(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, exists)

	var appErr *models.AppError
	_, err = svc.GetPublicProfile(ctx, "gh-42", models.Identity{})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeNotFound, appErr.Code)

	_, err = svc.GetPublicProfile(ctx, user.PublicID, models.Identity{})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeNotFound, appErr.Code)
}

func TestUserService_GetPublicProfile_NotFound(t *testing.T) {
	svc, _, _ := newUserServiceFixture(t)

	_, err := svc.GetPublicProfile(context.Background(), "nope", models.Identity{})

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeNotFound, appErr.Code)
}

func TestUserService_ConfirmDeletion_TwoStageWithGates(t *testing.T) {
	svc, _, _ := newUserServiceFixture(t)
	withTestRedis(t)
	ctx := context.Background()

	result, err := svc.SignIn(ctx, githubSignIn())
	require.NoError(t, err)
	identity := models.Identity{UserID: result.User.ID, PublicID: result.User.PublicID}

	now := time.Now()
	svc.now = func() time.Time { return now }

	state, err := svc.ConfirmDeletion(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Stage)

	// Second confirmation too soon is rejected.
	_, err = svc.ConfirmDeletion(ctx, identity)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeValidation, appErr.Code)

	// Deleting before stage 2 is rejected.
	err = svc.DeleteOwnAccount(ctx, identity)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeValidation, appErr.Code)

	// After the gate, the second confirmation advances.
	svc.now = func() time.Time { return now.Add(4 * time.Second) }
	state, err = svc.ConfirmDeletion(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, 2, state.Stage)

	// Deleting immediately after the second confirmation is still gated.
	err = svc.DeleteOwnAccount(ctx, identity)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeValidation, appErr.Code)
}

func TestUserService_DeleteOwnAccount_RemovesEverything(t *testing.T) {
	svc, userRepo, postRepo := newUserServiceFixture(t)
	withTestRedis(t)
	ctx := context.Background()

	result, err := svc.SignIn(ctx, githubSignIn())
	require.NoError(t, err)
	user := result.User
	identity := models.Identity{UserID: user.ID, PublicID: user.PublicID, Email: user.Email}

	require.NoError(t, postRepo.Create(ctx, &models.Post{Content: "bye", AuthorID: user.ID}))

	now := time.Now()
	svc.now = func() time.Time { return now }
	_, err = svc.ConfirmDeletion(ctx, identity)
	require.NoError(t, err)
	svc.now = func() time.Time { return now.Add(4 * time.Second) }
	_, err = svc.ConfirmDeletion(ctx, identity)
	require.NoError(t, err)
	svc.now = func() time.Time { return now.Add(10 * time.Second) }

	require.NoError(t, svc.DeleteOwnAccount(ctx, identity))

	exists, err := userRepo.Exists(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = userRepo.GetByAnyID(ctx, user.PublicID)
	assert.Error(t, err)

	posts, err := postRepo.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, posts)
}
