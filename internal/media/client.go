package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrUpload wraps any failure of the media pipeline. The ingest handler
// aborts before persisting when it sees this error.
var ErrUpload = errors.New("media upload failed")

// Uploader hands image bytes to the external media pipeline and builds
// delivery URLs for stored files.
type Uploader interface {
	Upload(ctx context.Context, data []byte, filename string) (string, error)
	URL(filePath string, transformations ...string) string
}

// Client talks to an ImageKit-compatible upload API.
type Client struct {
	uploadURL  string
	urlBase    string
	privateKey string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs a media Client.
func NewClient(uploadURL, urlBase, privateKey string, logger *zap.Logger) *Client {
	return &Client{
		uploadURL:  uploadURL,
		urlBase:    strings.TrimRight(urlBase, "/"),
		privateKey: privateKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type uploadResponse struct {
	FilePath string `json:"filePath"`
	Message  string `json:"message"`
}

// Upload posts the file as multipart form data and returns the stored file
// path. The call blocks until the pipeline answers or fails.
func (c *Client) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	if err := writer.WriteField("fileName", filename); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.SetBasicAuth(c.privateKey, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	if resp.StatusCode >= 400 {
		c.logger.Warn("media pipeline rejected upload",
			zap.Int("status", resp.StatusCode),
			zap.String("filename", filename))
		return "", fmt.Errorf("%w: status=%d", ErrUpload, resp.StatusCode)
	}

	var ur uploadResponse
	if err := json.Unmarshal(respBody, &ur); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	if ur.FilePath == "" {
		return "", fmt.Errorf("%w: empty file path", ErrUpload)
	}
	return ur.FilePath, nil
}

// URL builds the delivery URL for a stored file, applying transformation
// directives as a tr= query segment the way the pipeline expects.
func (c *Client) URL(filePath string, transformations ...string) string {
	path := "/" + strings.TrimLeft(filePath, "/")
	if len(transformations) == 0 {
		return c.urlBase + path
	}
	return c.urlBase + path + "?tr=" + strings.Join(transformations, ",")
}
