// Package service contains business logic between handlers and repositories.
package service

import (
	"context"
	"strings"
	"time"

	"messiahverse/internal/cache"
	"messiahverse/internal/middleware"
	"messiahverse/internal/models"
	"messiahverse/internal/repository"
	"messiahverse/internal/validation"

	"gorm.io/gorm"
)

// MoodPublisher broadcasts a mood update to live listeners.
type MoodPublisher interface {
	PublishMood(ctx context.Context, status *models.MoodStatus) error
}

// MoodService manages the site-wide mood status. Writes are restricted to
// the single authorized editor configured at startup.
type MoodService struct {
	moodRepo        repository.MoodRepository
	authorizedEmail string
	publisher       MoodPublisher
	now             func() time.Time
}

type UpdateMoodInput struct {
	GridPosition   int `json:"gridPosition"`
	MentalWellness int `json:"mentalWellness"`
	Tiredness      int `json:"tiredness"`
}

// MoodHistoryEntry is one row of the public history response.
type MoodHistoryEntry struct {
	GridPosition   int       `json:"gridPosition"`
	MentalWellness int       `json:"mentalWellness"`
	Tiredness      int       `json:"tiredness"`
	ParisTime12    string    `json:"parisTime12"`
	ParisTime24    string    `json:"parisTime24"`
	TimeEmoji      string    `json:"timeEmoji"`
	Timestamp      time.Time `json:"timestamp"`
}

// HistoryWindow is how far back the public history endpoint reaches.
const HistoryWindow = 24 * time.Hour

var parisLocation = mustLoadLocation("Europe/Paris")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func NewMoodService(moodRepo repository.MoodRepository, authorizedEmail string, publisher MoodPublisher) *MoodService {
	return &MoodService{
		moodRepo:        moodRepo,
		authorizedEmail: authorizedEmail,
		publisher:       publisher,
		now:             time.Now,
	}
}

// defaultMood is returned before the first update ever happens, so readers
// always get a well-formed status.
func (s *MoodService) defaultMood() *models.MoodStatus {
	t := s.now().In(parisLocation)
	return &models.MoodStatus{
		Type:           "current",
		GridPosition:   0,
		MentalWellness: 50,
		Tiredness:      50,
		ParisTime12:    t.Format("3:04 PM"),
		ParisTime24:    t.Format("15:04"),
		TimeEmoji:      timeEmojiFor(t),
		UpdatedAt:      t,
	}
}

func timeEmojiFor(t time.Time) string {
	if h := t.Hour(); h >= 6 && h < 18 {
		return "🌞"
	}
	return "🌙"
}

// GetCurrent returns the current mood, falling back to the neutral default
// when no update has been recorded yet.
func (s *MoodService) GetCurrent(ctx context.Context) (*models.MoodStatus, error) {
	var status models.MoodStatus
	err := cache.Aside(ctx, cache.MoodCurrentKey, &status, cache.MoodCurrentTTL, func() error {
		got, err := s.moodRepo.GetCurrent(ctx)
		if err != nil {
			return err
		}
		status = *got
		return nil
	})
	if err == gorm.ErrRecordNotFound {
		return s.defaultMood(), nil
	}
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// CanEdit reports whether the identity is the configured mood editor.
// Stored emails are lowercased at sign-in, so the configured address is
// matched case-insensitively.
func (s *MoodService) CanEdit(identity models.Identity) bool {
	return s.authorizedEmail != "" && strings.EqualFold(identity.Email, s.authorizedEmail)
}

// UpdateCurrent replaces the current mood and appends a history snapshot.
// Only the authorized editor may call this.
func (s *MoodService) UpdateCurrent(ctx context.Context, identity models.Identity, in UpdateMoodInput) (*models.MoodStatus, error) {
	if !s.CanEdit(identity) {
		return nil, models.NewForbiddenError("Not authorized to update mood")
	}
	if err := validation.ValidateMood(in.GridPosition, in.MentalWellness, in.Tiredness); err != nil {
		return nil, err
	}

	// Display fields are derived once, at write time, so the snapshot keeps
	// the clock values that were current when the update happened.
	t := s.now().In(parisLocation)
	status := &models.MoodStatus{
		Type:           "current",
		GridPosition:   in.GridPosition,
		MentalWellness: in.MentalWellness,
		Tiredness:      in.Tiredness,
		ParisTime12:    t.Format("3:04 PM"),
		ParisTime24:    t.Format("15:04"),
		TimeEmoji:      timeEmojiFor(t),
		UpdatedAt:      t,
	}
	snapshot := &models.MoodSnapshot{
		GridPosition:   status.GridPosition,
		MentalWellness: status.MentalWellness,
		Tiredness:      status.Tiredness,
		ParisTime12:    status.ParisTime12,
		ParisTime24:    status.ParisTime24,
		TimeEmoji:      status.TimeEmoji,
		CapturedAt:     t,
	}

	if err := s.moodRepo.UpsertWithSnapshot(ctx, status, snapshot); err != nil {
		return nil, models.NewUpstreamError("Mood update", err)
	}

	middleware.MoodUpdatesTotal.Inc()
	if s.publisher != nil {
		if err := s.publisher.PublishMood(ctx, status); err != nil {
			middleware.Logger.Warn("mood publish failed", "error", err)
		}
	}

	return status, nil
}

// History returns the trailing 24-hour window of snapshots, oldest first,
// and records the visitor's IP.
func (s *MoodService) History(ctx context.Context, visitorIP string) ([]MoodHistoryEntry, error) {
	snapshots, err := s.moodRepo.History(ctx, s.now().Add(-HistoryWindow))
	if err != nil {
		return nil, err
	}

	if visitorIP != "" {
		// Visitor logging must never block the read.
		if err := s.moodRepo.LogVisitor(ctx, visitorIP); err != nil {
			middleware.Logger.Warn("visitor log failed", "error", err)
		}
	}

	entries := make([]MoodHistoryEntry, 0, len(snapshots))
	for _, snap := range snapshots {
		entries = append(entries, MoodHistoryEntry{
			GridPosition:   snap.GridPosition,
			MentalWellness: snap.MentalWellness,
			Tiredness:      snap.Tiredness,
			ParisTime12:    snap.ParisTime12,
			ParisTime24:    snap.ParisTime24,
			TimeEmoji:      snap.TimeEmoji,
			Timestamp:      snap.CapturedAt,
		})
	}
	return entries, nil
}
