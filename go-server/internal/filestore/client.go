// Package filestore talks to the external file-storage service that keeps the
// bytes behind file links.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fonsecaaso/linkdrop/go-server/internal/metrics"
)

const (
	apiKeyHeader   = "X-API-Key"
	requestTimeout = 60 * time.Second
)

var (
	ErrNotConfigured = errors.New("file server not configured")
	ErrUpload        = errors.New("file upload failed")
	ErrDelete        = errors.New("file delete failed")
)

// Upload is a file received from a client, ready to be forwarded.
type Upload struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

// Stored describes a file accepted by the storage service.
type Stored struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	URL          string `json:"url"`
	MimeType     string `json:"mimetype"`
}

type Store interface {
	Upload(ctx context.Context, file Upload) (*Stored, error)
	Delete(ctx context.Context, url string) error
}

type uploadResponse struct {
	Data  *Stored `json:"data"`
	Error string  `json:"error"`
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     zap.L().With(zap.String("component", "FileStoreClient")),
	}
}

// Upload streams the file to POST {base}/upload as multipart field "file".
// The body is written through a pipe, so the file is never held in memory.
func (c *Client) Upload(ctx context.Context, file Upload) (*Stored, error) {
	stored, err := c.upload(ctx, file)
	observe("upload", err)
	return stored, err
}

func (c *Client) upload(ctx context.Context, file Upload) (*Stored, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeMultipart(mw, file))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", pr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpload, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpload, err)
	}
	defer resp.Body.Close()

	var body uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: status %d: %v", ErrUpload, resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 || body.Data == nil {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpload, resp.StatusCode, body.Error)
	}

	if body.Data.OriginalName == "" {
		body.Data.OriginalName = file.Name
	}
	if body.Data.MimeType == "" {
		body.Data.MimeType = file.ContentType
	}

	c.logger.Info("File uploaded",
		zap.String("filename", body.Data.Filename),
		zap.Int64("size", body.Data.Size),
	)
	return body.Data, nil
}

func writeMultipart(mw *multipart.Writer, file Upload) error {
	part, err := mw.CreateFormFile("file", file.Name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file.Body); err != nil {
		return err
	}
	return mw.Close()
}

// Delete asks the storage service to remove the file at url.
func (c *Client) Delete(ctx context.Context, url string) error {
	err := c.delete(ctx, url)
	observe("delete", err)
	return err
}

func (c *Client) delete(ctx context.Context, url string) error {
	if c.baseURL == "" {
		return ErrNotConfigured
	}

	payload, err := json.Marshal(map[string]string{"url": url})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelete, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/delete", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelete, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelete, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrDelete, resp.StatusCode)
	}

	return nil
}

func observe(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.FileStoreRequestsTotal.WithLabelValues(operation, status).Inc()
}
