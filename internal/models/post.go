package models

import (
	"time"
)

// ImagePosition is a draggable image offset within the post layout.
type ImagePosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PostMetadata is the structured metadata blob stored alongside a post.
type PostMetadata struct {
	Images         []string                 `json:"images,omitempty"`
	Format         string                   `json:"format,omitempty"`
	Layout         string                   `json:"layout,omitempty"`
	FeaturedImage  string                   `json:"featuredImage,omitempty"`
	ImagePositions map[string]ImagePosition `json:"imagePositions,omitempty"`
}

// Post is a user-authored Markdown post. Content is sanitized before it is
// ever persisted; AuthorID is immutable after creation.
type Post struct {
	ID       uint         `gorm:"primaryKey" json:"id"`
	Title    string       `gorm:"size:200" json:"title,omitempty"`
	Content  string       `gorm:"type:text;not null" json:"content"`
	AuthorID uint         `gorm:"not null;index" json:"-"`
	Author   User         `gorm:"foreignKey:AuthorID" json:"author"`
	Metadata PostMetadata `gorm:"serializer:json" json:"metadata"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
