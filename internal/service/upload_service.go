package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"net/http"
	"strings"

	// Register decoders for the formats the upload allow-list accepts.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"messiahverse/internal/imagehost"
	"messiahverse/internal/middleware"
	"messiahverse/internal/models"
	"messiahverse/internal/validation"
)

// ImageUploader sends validated image bytes to the external host.
type ImageUploader interface {
	Upload(ctx context.Context, data []byte, filename string) (*imagehost.Result, error)
}

// UploadService validates base64 image payloads and forwards them to the
// image host.
type UploadService struct {
	uploader ImageUploader
}

func NewUploadService(uploader ImageUploader) *UploadService {
	return &UploadService{uploader: uploader}
}

var mimeExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Upload accepts a base64 data URL, checks its size, sniffed MIME type and
// decodability, and returns the hosted URL and public ID.
func (s *UploadService) Upload(ctx context.Context, identity models.Identity, dataURL string) (*imagehost.Result, error) {
	if identity.UserID == 0 {
		return nil, models.NewUnauthenticatedError("Sign in to upload images")
	}
	if err := validation.ValidateImageDataURL(dataURL); err != nil {
		middleware.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	_, payload, found := strings.Cut(dataURL, ",")
	if !found {
		middleware.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, models.NewValidationError("Invalid image format")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		middleware.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, models.NewValidationError("Invalid base64 image data")
	}

	// Trust the sniffed type, not the declared one.
	mimeType := http.DetectContentType(data)
	if err := validation.ValidateImage(mimeType, int64(len(data))); err != nil {
		middleware.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	// Decoding proves the payload really is the image its header claims.
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		middleware.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, models.NewValidationError("Corrupt or unsupported image data")
	}

	filename := fmt.Sprintf("upload.%s", mimeExtensions[mimeType])
	result, err := s.uploader.Upload(ctx, data, filename)
	if err != nil {
		middleware.UploadsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	middleware.UploadsTotal.WithLabelValues("ok").Inc()
	return result, nil
}
