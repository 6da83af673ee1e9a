package repository

import (
	"context"
	"time"

	"messiahverse/internal/cache"
	"messiahverse/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MoodRepository defines the interface for mood status and history operations.
type MoodRepository interface {
	GetCurrent(ctx context.Context) (*models.MoodStatus, error)
	// UpsertWithSnapshot replaces the current record and appends a history
	// snapshot in a single transaction. Either both persist or neither does.
	UpsertWithSnapshot(ctx context.Context, status *models.MoodStatus, snapshot *models.MoodSnapshot) error
	History(ctx context.Context, since time.Time) ([]*models.MoodSnapshot, error)
	LogVisitor(ctx context.Context, ip string) error
}

type moodRepository struct {
	db *gorm.DB
}

// NewMoodRepository creates a new mood repository
func NewMoodRepository(db *gorm.DB) MoodRepository {
	return &moodRepository{db: db}
}

// GetCurrent returns the singleton current record, or gorm.ErrRecordNotFound
// before the first update.
func (r *moodRepository) GetCurrent(ctx context.Context) (*models.MoodStatus, error) {
	var status models.MoodStatus
	err := r.db.WithContext(ctx).First(&status, "type = ?", "current").Error
	if err != nil {
		return nil, err
	}
	return &status, nil
}

func (r *moodRepository) UpsertWithSnapshot(ctx context.Context, status *models.MoodStatus, snapshot *models.MoodSnapshot) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		status.Type = "current"
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "type"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"grid_position", "mental_wellness", "tiredness",
				"paris_time12", "paris_time24", "time_emoji", "updated_at",
			}),
		}).Create(status).Error; err != nil {
			return err
		}
		return tx.Create(snapshot).Error
	})
	if err == nil {
		cache.InvalidateMoodCurrent(ctx)
	}
	return err
}

// History returns snapshots captured at or after since, oldest first.
func (r *moodRepository) History(ctx context.Context, since time.Time) ([]*models.MoodSnapshot, error) {
	var snapshots []*models.MoodSnapshot
	err := r.db.WithContext(ctx).
		Where("captured_at >= ?", since).
		Order("captured_at ASC").
		Find(&snapshots).Error
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (r *moodRepository) LogVisitor(ctx context.Context, ip string) error {
	return r.db.WithContext(ctx).Create(&models.VisitorLog{IP: ip}).Error
}
