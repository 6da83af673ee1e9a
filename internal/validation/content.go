// Package validation provides pure input validators run before any
// mutating operation.
package validation

import (
	"fmt"
	"strings"

	"messiahverse/internal/models"
)

const (
	// MaxContentLen is the maximum post body size in characters.
	MaxContentLen = 50000
	// MaxTitleLen is the maximum post title size in characters.
	MaxTitleLen = 200
	// MaxImageBytes is the maximum accepted image upload size.
	MaxImageBytes = 5 * 1024 * 1024
)

var allowedImageMIMEs = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

// ValidatePost checks post content and, when supplied, the title.
// Title is optional in the canonical post schema; pass nil to skip it.
func ValidatePost(content string, title *string) error {
	if strings.TrimSpace(content) == "" {
		return models.NewValidationError("Content is required")
	}
	if len(content) > MaxContentLen {
		return models.NewValidationError(fmt.Sprintf("Content too long (max %d chars)", MaxContentLen))
	}
	if title != nil {
		if strings.TrimSpace(*title) == "" {
			return models.NewValidationError("Title must not be empty")
		}
		if len(*title) > MaxTitleLen {
			return models.NewValidationError(fmt.Sprintf("Title too long (max %d chars)", MaxTitleLen))
		}
	}
	return nil
}

// ValidateImage checks an upload's declared MIME type and size.
func ValidateImage(contentType string, size int64) error {
	if size <= 0 {
		return models.NewValidationError("No file provided")
	}
	if _, ok := allowedImageMIMEs[contentType]; !ok {
		return models.NewValidationError("Invalid file type")
	}
	if size > MaxImageBytes {
		return models.NewValidationError("File too large (max 5MB)")
	}
	return nil
}

// IsAllowedImageMIME reports whether the MIME type is on the upload allow-list.
func IsAllowedImageMIME(contentType string) bool {
	_, ok := allowedImageMIMEs[contentType]
	return ok
}

// ValidateImageDataURL checks the shape and decoded size of a base64 image
// data URL before the payload is decoded.
func ValidateImageDataURL(dataURL string) error {
	if !strings.HasPrefix(dataURL, "data:image/") {
		return models.NewValidationError("Invalid image format")
	}
	// base64 expands payloads by 4/3; estimate the decoded size.
	if int64(len(dataURL))*3/4 > MaxImageBytes {
		return models.NewValidationError("File too large (max 5MB)")
	}
	return nil
}

// ValidateMood checks the mood update ranges: grid cell 0-35, scales 0-100.
func ValidateMood(gridPosition, mentalWellness, tiredness int) error {
	if gridPosition < 0 || gridPosition >= models.MoodGridCells {
		return models.NewValidationError(fmt.Sprintf("gridPosition must be between 0 and %d", models.MoodGridCells-1))
	}
	if mentalWellness < 0 || mentalWellness > models.MoodScaleMax {
		return models.NewValidationError("mentalWellness must be between 0 and 100")
	}
	if tiredness < 0 || tiredness > models.MoodScaleMax {
		return models.NewValidationError("tiredness must be between 0 and 100")
	}
	return nil
}
