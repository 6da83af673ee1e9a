package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"messiahverse/internal/cache"
	"messiahverse/internal/middleware"
	"messiahverse/internal/models"
	"messiahverse/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session token lifetime and deletion-confirmation gates.
const (
	TokenTTL = 7 * 24 * time.Hour

	// Deletion requires two confirmations spaced out in time, then a final
	// delete call after a further pause.
	firstConfirmGate  = 3 * time.Second
	secondConfirmGate = 5 * time.Second
	confirmStateTTL   = 10 * time.Minute
)

// UserService handles sign-in, profiles, and account deletion.
type UserService struct {
	userRepo  repository.UserRepository
	postRepo  repository.PostRepository
	jwtSecret string
	now       func() time.Time
}

// SignInInput is the provider profile forwarded by the OAuth gateway.
type SignInInput struct {
	Provider          string `json:"provider"`
	ProviderAccountID string `json:"providerAccountId"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	Image             string `json:"image"`
	Username          string `json:"username"`
	URL               string `json:"url"`
	Followers         int    `json:"followers"`
	Following         int    `json:"following"`
}

// SignInResult carries the issued session token and the resolved user.
type SignInResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// ProfilePatch is a partial update to the caller's own profile.
// Nil fields are left untouched.
type ProfilePatch struct {
	Name        *string             `json:"name"`
	Bio         *string             `json:"bio"`
	Location    *string             `json:"location"`
	Image       *string             `json:"image"`
	Preferences *models.Preferences `json:"preferences"`
}

// DeletionConfirmState is the progress of the timed deletion confirmation.
type DeletionConfirmState struct {
	Stage       int       `json:"stage"`
	ConfirmedAt time.Time `json:"confirmedAt"`
}

func NewUserService(userRepo repository.UserRepository, postRepo repository.PostRepository, jwtSecret string) *UserService {
	return &UserService{
		userRepo:  userRepo,
		postRepo:  postRepo,
		jwtSecret: jwtSecret,
		now:       time.Now,
	}
}

// SignIn upserts the user from the provider profile, links the provider
// account, and issues a session token.
func (s *UserService) SignIn(ctx context.Context, in SignInInput) (*SignInResult, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Email == "" {
		return nil, models.NewValidationError("Email is required")
	}
	if in.Provider == "" || in.ProviderAccountID == "" {
		return nil, models.NewValidationError("Provider account is required")
	}

	user, err := s.userRepo.GetByEmail(ctx, in.Email)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = &models.User{
			PublicID:    uuid.NewString(),
			Provider:    in.Provider,
			ProviderID:  in.ProviderAccountID,
			Name:        in.Name,
			Email:       in.Email,
			Image:       in.Image,
			Username:    in.Username,
			URL:         in.URL,
			Followers:   in.Followers,
			Following:   in.Following,
			Preferences: models.DefaultPreferences(),
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, models.NewUpstreamError("User creation", err)
		}
	case err != nil:
		return nil, err
	default:
		// Refresh provider-linked fields on every sign-in; user-edited
		// fields (bio, location, preferences) are left alone.
		user.Provider = in.Provider
		user.ProviderID = in.ProviderAccountID
		user.Image = in.Image
		user.Username = in.Username
		user.URL = in.URL
		user.Followers = in.Followers
		user.Following = in.Following
		if user.Name == "" {
			user.Name = in.Name
		}
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, models.NewUpstreamError("User update", err)
		}
	}

	if err := s.userRepo.UpsertAccount(ctx, &models.Account{
		UserID:            user.ID,
		Provider:          in.Provider,
		ProviderAccountID: in.ProviderAccountID,
	}); err != nil {
		return nil, models.NewUpstreamError("Account link", err)
	}

	token, tokenID, expiresAt, err := s.issueToken(user)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := s.userRepo.CreateSession(ctx, &models.Session{
		UserID:    user.ID,
		TokenID:   tokenID,
		ExpiresAt: expiresAt,
	}); err != nil {
		return nil, models.NewUpstreamError("Session creation", err)
	}

	return &SignInResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// issueToken creates a signed session JWT for the user.
func (s *UserService) issueToken(user *models.User) (token, tokenID string, expiresAt time.Time, err error) {
	if s.jwtSecret == "" {
		return "", "", time.Time{}, fmt.Errorf("JWT secret not configured")
	}

	now := s.now()
	expiresAt = now.Add(TokenTTL)
	tokenID = uuid.NewString()
	claims := jwt.MapClaims{
		"sub":   user.PublicID,
		"uid":   user.ID,
		"email": user.Email,
		"iss":   "messiahverse-api",
		"aud":   "messiahverse-client",
		"exp":   expiresAt.Unix(),
		"iat":   now.Unix(),
		"nbf":   now.Unix(),
		"jti":   tokenID,
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtSecret))
	return token, tokenID, expiresAt, err
}

// Logout revokes the session token and removes its session row.
func (s *UserService) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if ttl := expiresAt.Sub(s.now()); ttl > 0 {
		if err := cache.BlacklistToken(ctx, tokenID, ttl); err != nil {
			middleware.Logger.Warn("token blacklist failed", "error", err)
		}
	}
	return s.userRepo.DeleteSessionByTokenID(ctx, tokenID)
}

// GetPublicProfile resolves any known identifier to a profile redacted per
// the owner's visibility preferences. The owner always sees everything.
func (s *UserService) GetPublicProfile(ctx context.Context, alias string, viewer models.Identity) (*models.PublicProfile, error) {
	// Anonymous reads of a profile are cache-backed; the owner view is
	// always fresh.
	if viewer.UserID == 0 {
		var profile models.PublicProfile
		err := cache.Aside(ctx, cache.ProfileKey(alias), &profile, cache.ProfileTTL, func() error {
			user, err := s.userRepo.GetByAnyID(ctx, alias)
			if err != nil {
				return err
			}
			profile = redactProfile(user, false)
			return nil
		})
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", alias)
		}
		if err != nil {
			return nil, err
		}
		return &profile, nil
	}

	user, err := s.userRepo.GetByAnyID(ctx, alias)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("User", alias)
	}
	if err != nil {
		return nil, err
	}
	profile := redactProfile(user, viewer.IsOwner(user.ID))
	return &profile, nil
}

func redactProfile(user *models.User, isOwner bool) models.PublicProfile {
	prefs := user.Preferences
	profile := models.PublicProfile{
		ID:    user.PublicID,
		Name:  user.Name,
		Image: user.Image,
	}

	if isOwner || prefs.ShowBio {
		profile.Bio = &user.Bio
	}
	if isOwner || prefs.ShowLocation {
		profile.Location = &user.Location
	}
	if isOwner || prefs.ShowJoinDate {
		joined := user.CreatedAt
		profile.JoinedAt = &joined
	}
	if isOwner || prefs.ShowFollowers {
		followers, following := user.Followers, user.Following
		profile.Followers = &followers
		profile.Following = &following
	}
	if isOwner {
		email := user.Email
		profile.Email = &email
	}
	return profile
}

// GetOwnProfile returns the caller's full user record.
func (s *UserService) GetOwnProfile(ctx context.Context, identity models.Identity) (*models.User, error) {
	if identity.UserID == 0 {
		return nil, models.NewUnauthenticatedError("Sign in to view your profile")
	}
	user, err := s.userRepo.GetByID(ctx, identity.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("User", identity.PublicID)
	}
	return user, err
}

// UpdateOwnProfile applies a partial patch to the caller's profile.
func (s *UserService) UpdateOwnProfile(ctx context.Context, identity models.Identity, patch ProfilePatch) (*models.User, error) {
	user, err := s.GetOwnProfile(ctx, identity)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return nil, models.NewValidationError("Name must not be empty")
		}
		user.Name = *patch.Name
	}
	if patch.Bio != nil {
		user.Bio = *patch.Bio
	}
	if patch.Location != nil {
		user.Location = *patch.Location
	}
	if patch.Image != nil {
		user.Image = *patch.Image
	}
	if patch.Preferences != nil {
		user.Preferences = *patch.Preferences
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, models.NewUpstreamError("Profile update", err)
	}
	return user, nil
}

func confirmStateKey(userID uint) string {
	return fmt.Sprintf("delete:confirm:%d", userID)
}

// ConfirmDeletion advances the two-step timed confirmation. The second
// confirmation is only accepted a few seconds after the first, so a
// double-clicked button cannot skip straight through.
func (s *UserService) ConfirmDeletion(ctx context.Context, identity models.Identity) (*DeletionConfirmState, error) {
	if identity.UserID == 0 {
		return nil, models.NewUnauthenticatedError("Sign in to delete your account")
	}
	if cache.GetClient() == nil {
		// Without Redis there is nowhere to track confirmation progress;
		// report stage 2 so the delete call can proceed.
		middleware.Logger.Warn("deletion confirmation not tracked, cache unavailable")
		return &DeletionConfirmState{Stage: 2, ConfirmedAt: s.now()}, nil
	}

	key := confirmStateKey(identity.UserID)
	var state DeletionConfirmState
	found, err := cache.GetJSON(ctx, key, &state)
	if err != nil {
		return nil, models.NewUpstreamError("Deletion confirmation", err)
	}

	switch {
	case !found:
		state = DeletionConfirmState{Stage: 1, ConfirmedAt: s.now()}
	case state.Stage == 1:
		if s.now().Sub(state.ConfirmedAt) < firstConfirmGate {
			return nil, models.NewValidationError("Please wait a moment before confirming again")
		}
		state = DeletionConfirmState{Stage: 2, ConfirmedAt: s.now()}
	default:
		// Already fully confirmed; repeat calls are a no-op.
	}

	if err := cache.SetJSON(ctx, key, state, confirmStateTTL); err != nil {
		return nil, models.NewUpstreamError("Deletion confirmation", err)
	}
	return &state, nil
}

// DeleteOwnAccount removes the caller's data. The confirmation FSM must be
// fully advanced first. Sub-steps run best-effort; if some fail the rest
// still run and the failures are reported as a partial failure.
func (s *UserService) DeleteOwnAccount(ctx context.Context, identity models.Identity) error {
	if identity.UserID == 0 {
		return models.NewUnauthenticatedError("Sign in to delete your account")
	}

	if cache.GetClient() != nil {
		var state DeletionConfirmState
		found, err := cache.GetJSON(ctx, confirmStateKey(identity.UserID), &state)
		if err != nil {
			return models.NewUpstreamError("Deletion confirmation", err)
		}
		if !found || state.Stage < 2 {
			return models.NewValidationError("Deletion has not been confirmed")
		}
		if s.now().Sub(state.ConfirmedAt) < secondConfirmGate {
			return models.NewValidationError("Please wait a moment before deleting your account")
		}
	}

	var failed []string
	step := func(name string, fn func() error) {
		if err := fn(); err != nil {
			middleware.Logger.Error("account deletion step failed",
				"step", name, "user_id", identity.UserID, "error", err)
			failed = append(failed, name)
		}
	}

	userID := identity.UserID
	step("posts", func() error { return s.postRepo.DeleteByAuthor(ctx, userID) })
	step("sessions", func() error { return s.userRepo.DeleteSessions(ctx, userID) })
	step("accounts", func() error { return s.userRepo.DeleteAccounts(ctx, userID) })
	step("aliases", func() error { return s.userRepo.DeleteAliases(ctx, userID) })
	step("user", func() error { return s.userRepo.DeleteUser(ctx, userID) })

	// Postcondition: the user row must actually be gone, whatever the
	// individual steps reported.
	if exists, err := s.userRepo.Exists(ctx, userID); err == nil && exists {
		if len(failed) == 0 {
			failed = append(failed, "user")
		}
		return models.NewPartialFailureError("Account deletion", failed)
	}

	cache.Invalidate(ctx, confirmStateKey(userID))
	if len(failed) > 0 {
		return models.NewPartialFailureError("Account deletion", failed)
	}
	return nil
}
