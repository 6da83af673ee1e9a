// Package imagehost uploads images to the external image CDN.
package imagehost

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"messiahverse/internal/config"
	"messiahverse/internal/models"
)

// Result is the upload outcome: the hosted URL plus the host's asset ID,
// which is needed to delete or transform the image later.
type Result struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// Client talks to a Cloudinary-compatible upload API using signed requests.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	folder    string
	http      *http.Client
	now       func() time.Time
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	PublicID  string `json:"public_id"`
	Error     struct {
		Message string `json:"message"`
	} `json:"error"`
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:   cfg.ImageHostURL,
		apiKey:    cfg.ImageHostAPIKey,
		apiSecret: cfg.ImageHostAPISecret,
		folder:    cfg.ImageHostFolder,
		http:      &http.Client{Timeout: 30 * time.Second},
		now:       time.Now,
	}
}

// signature computes the request signature: sha1 of the sorted parameter
// string plus the API secret.
func (c *Client) signature(folder, timestamp string) string {
	toSign := fmt.Sprintf("folder=%s&timestamp=%s%s", folder, timestamp, c.apiSecret)
	sum := sha1.Sum([]byte(toSign))
	return hex.EncodeToString(sum[:])
}

// Upload sends the image bytes as a signed multipart request and returns
// the hosted URL and public ID. All failures map to upstream errors.
func (c *Client) Upload(ctx context.Context, data []byte, filename string) (*Result, error) {
	timestamp := strconv.FormatInt(c.now().Unix(), 10)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, models.NewInternalError(err)
	}
	_ = writer.WriteField("api_key", c.apiKey)
	_ = writer.WriteField("timestamp", timestamp)
	_ = writer.WriteField("folder", c.folder)
	_ = writer.WriteField("signature", c.signature(c.folder, timestamp))
	if err := writer.Close(); err != nil {
		return nil, models.NewInternalError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/image/upload", &body)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, models.NewUpstreamError("Image upload", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, models.NewUpstreamError("Image upload", err)
	}

	var parsed uploadResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, models.NewUpstreamError("Image upload",
			fmt.Errorf("unexpected response (status %d)", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		msg := parsed.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, models.NewUpstreamError("Image upload", fmt.Errorf("%s", msg))
	}

	url := parsed.SecureURL
	if url == "" {
		url = parsed.URL
	}
	if url == "" || parsed.PublicID == "" {
		return nil, models.NewUpstreamError("Image upload",
			fmt.Errorf("response missing url or public_id"))
	}
	return &Result{URL: url, PublicID: parsed.PublicID}, nil
}
