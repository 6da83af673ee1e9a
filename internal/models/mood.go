package models

import (
	"time"
)

// Mood grid and scale bounds.
const (
	MoodGridCells = 36
	MoodScaleMax  = 100
)

// MoodStatus is the single "current" mood record. The derived display fields
// are computed at write time, not read time, so history snapshots carry the
// values that were current when the update happened.
type MoodStatus struct {
	ID             uint   `gorm:"primaryKey" json:"-"`
	Type           string `gorm:"uniqueIndex;size:16;default:current" json:"type"`
	GridPosition   int    `json:"gridPosition"`
	MentalWellness int    `json:"mentalWellness"`
	Tiredness      int    `json:"tiredness"`

	ParisTime12 string `gorm:"size:16" json:"parisTime12"`
	ParisTime24 string `gorm:"size:8" json:"parisTime24"`
	TimeEmoji   string `gorm:"size:8" json:"timeEmoji"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// MoodSnapshot is one append-only history entry, written alongside every
// update of the current record. Rows are never mutated or deleted.
type MoodSnapshot struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	GridPosition   int       `json:"gridPosition"`
	MentalWellness int       `json:"mentalWellness"`
	Tiredness      int       `json:"tiredness"`
	ParisTime12    string    `gorm:"size:16" json:"parisTime12"`
	ParisTime24    string    `gorm:"size:8" json:"parisTime24"`
	TimeEmoji      string    `gorm:"size:8" json:"timeEmoji"`
	CapturedAt     time.Time `gorm:"index" json:"timestamp"`
}

// VisitorLog records the caller IP of a mood-history read.
type VisitorLog struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	IP        string    `gorm:"size:64" json:"ip"`
	CreatedAt time.Time `json:"timestamp"`
}
