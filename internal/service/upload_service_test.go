package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"messiahverse/internal/imagehost"
	"messiahverse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUploader struct {
	lastData     []byte
	lastFilename string
	result       *imagehost.Result
	err          error
}

func (u *stubUploader) Upload(ctx context.Context, data []byte, filename string) (*imagehost.Result, error) {
	u.lastData = data
	u.lastFilename = filename
	if u.err != nil {
		return nil, u.err
	}
	return u.result, nil
}

func pngDataURL(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 60), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func uploaderIdentity() models.Identity {
	return models.Identity{UserID: 5, PublicID: "pub-5", Email: "up@example.com"}
}

func TestUploadService_Upload_Success(t *testing.T) {
	uploader := &stubUploader{result: &imagehost.Result{
		URL:      "https://cdn.example.com/img.png",
		PublicID: "folder/img",
	}}
	svc := NewUploadService(uploader)

	result, err := svc.Upload(context.Background(), uploaderIdentity(), pngDataURL(t))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/img.png", result.URL)
	assert.Equal(t, "folder/img", result.PublicID)
	assert.Equal(t, "upload.png", uploader.lastFilename)
	assert.NotEmpty(t, uploader.lastData)
}

func TestUploadService_Upload_RequiresAuth(t *testing.T) {
	svc := NewUploadService(&stubUploader{})

	_, err := svc.Upload(context.Background(), models.Identity{}, pngDataURL(t))

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeUnauthenticated, appErr.Code)
}

func TestUploadService_Upload_RejectsNonImagePayload(t *testing.T) {
	svc := NewUploadService(&stubUploader{})

	// Declared as an image but the payload is HTML.
	payload := base64.StdEncoding.EncodeToString([]byte("<html><body>hi</body></html>"))
	_, err := svc.Upload(context.Background(), uploaderIdentity(), "data:image/png;base64,"+payload)

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeValidation, appErr.Code)
}

func TestUploadService_Upload_RejectsCorruptImage(t *testing.T) {
	svc := NewUploadService(&stubUploader{})

	// Valid PNG header followed by garbage sniffs as image/png but does
	// not decode.
	data := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0xde, 0xad}, 64)...)
	payload := base64.StdEncoding.EncodeToString(data)
	_, err := svc.Upload(context.Background(), uploaderIdentity(), "data:image/png;base64,"+payload)

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeValidation, appErr.Code)
}

func TestUploadService_Upload_RejectsBadEncoding(t *testing.T) {
	svc := NewUploadService(&stubUploader{})

	_, err := svc.Upload(context.Background(), uploaderIdentity(), "data:image/png;base64,!!!not-base64!!!")

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeValidation, appErr.Code)
}

func TestUploadService_Upload_RejectsOversizedDataURL(t *testing.T) {
	svc := NewUploadService(&stubUploader{})

	huge := "data:image/png;base64," + strings.Repeat("A", 8*1024*1024)
	_, err := svc.Upload(context.Background(), uploaderIdentity(), huge)

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeValidation, appErr.Code)
}

func TestUploadService_Upload_PropagatesUpstreamFailure(t *testing.T) {
	uploader := &stubUploader{err: models.NewUpstreamError("Image upload", assert.AnError)}
	svc := NewUploadService(uploader)

	_, err := svc.Upload(context.Background(), uploaderIdentity(), pngDataURL(t))

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeUpstreamFailure, appErr.Code)
}
