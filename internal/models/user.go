// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Preferences holds a user's display and visibility settings. Stored as a
// JSON column; the show* flags gate what other viewers see on the profile.
type Preferences struct {
	DarkMode      bool   `json:"darkMode"`
	Notifications bool   `json:"notifications"`
	ShowFollowers bool   `json:"showFollowers"`
	ShowLocation  bool   `json:"showLocation"`
	ShowJoinDate  bool   `json:"showJoinDate"`
	ShowBio       bool   `json:"showBio"`
	ColorScheme   string `json:"colorScheme"`
}

// DefaultPreferences are applied when a user is first created by sign-in.
func DefaultPreferences() Preferences {
	return Preferences{
		Notifications: true,
		ShowFollowers: true,
		ShowLocation:  true,
		ShowJoinDate:  true,
		ShowBio:       true,
		ColorScheme:   "system",
	}
}

// User represents an account created by the OAuth sign-in flow.
// ID is the canonical identifier; PublicID and ProviderID are alternate
// string identifiers resolved through the user_aliases table.
type User struct {
	ID         uint   `gorm:"primaryKey" json:"-"`
	PublicID   string `gorm:"uniqueIndex;size:36;not null" json:"id"`
	Provider   string `gorm:"size:32" json:"-"`
	ProviderID string `gorm:"index;size:128" json:"-"`

	Name     string `gorm:"size:120" json:"name"`
	Email    string `gorm:"uniqueIndex;size:254;not null" json:"email,omitempty"`
	Bio      string `gorm:"type:text" json:"bio,omitempty"`
	Image    string `json:"image,omitempty"`
	Location string `gorm:"size:120" json:"location,omitempty"`

	// Provider-linked fields refreshed at each sign-in.
	Username  string `gorm:"size:120" json:"username,omitempty"`
	URL       string `json:"url,omitempty"`
	Followers int    `json:"followers"`
	Following int    `json:"following"`

	Preferences Preferences `gorm:"serializer:json" json:"preferences"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserAlias maps an alternate string identifier (public ID, provider-scoped
// ID, or a legacy identifier) to the canonical user ID. All string-ID
// lookups go through this table so read sites never branch on ID format.
type UserAlias struct {
	Alias  string `gorm:"primaryKey;size:160"`
	UserID uint   `gorm:"index;not null"`
}

// Account is a provider link record, one per OAuth provider a user signed
// in with. Removed by the account-deletion cascade.
type Account struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	UserID            uint      `gorm:"index;not null" json:"user_id"`
	Provider          string    `gorm:"size:32;not null" json:"provider"`
	ProviderAccountID string    `gorm:"size:128;not null" json:"provider_account_id"`
	CreatedAt         time.Time `json:"created_at"`
}

// Session records an issued session token. TokenID is the JWT jti claim;
// revocation blacklists it and deletes the row.
type Session struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	TokenID   string    `gorm:"uniqueIndex;size:36;not null" json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity is the authenticated caller of a request, resolved from the
// session token by the auth middleware.
type Identity struct {
	UserID   uint
	PublicID string
	Email    string
}

// IsOwner reports whether the identity owns a resource authored by ownerID.
func (i Identity) IsOwner(ownerID uint) bool {
	return i.UserID != 0 && i.UserID == ownerID
}

// PublicProfile is the redacted view of a user returned to other viewers.
// Optional fields are nil when the owner's preferences hide them; Email is
// only ever populated for the owner.
type PublicProfile struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Image     string     `json:"image,omitempty"`
	Email     *string    `json:"email,omitempty"`
	Bio       *string    `json:"bio,omitempty"`
	Location  *string    `json:"location,omitempty"`
	JoinedAt  *time.Time `json:"joined_at,omitempty"`
	Followers *int       `json:"followers,omitempty"`
	Following *int       `json:"following,omitempty"`
}
