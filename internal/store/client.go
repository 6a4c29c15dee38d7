package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"ocrlabel/internal/common"
	"ocrlabel/internal/progress"
)

// Client talks to an ocrlabeld server.
type Client struct {
	base   string
	http   *http.Client
	logger *slog.Logger
}

// NewClient returns a client for baseURL, e.g. http://localhost:3000.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return nil, err
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, common.NewAppError("UNAVAILABLE", method+" "+path, fmt.Errorf("%w: %v", common.ErrUnavailable, err))
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	c.logger.Debug("store.http", "method", method, "path", path, "status", resp.StatusCode,
		"request_id", reqID, "duration", time.Since(start))
	if resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, path, data)
	}
	return data, nil
}

func statusError(code int, path string, body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	msg := path
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		msg = path + ": " + e.Error
	}
	switch {
	case code == http.StatusNotFound:
		return common.NotFoundf("%s", msg)
	case code == http.StatusBadRequest:
		return common.NewAppError("VALIDATION", msg, common.ErrValidation)
	default:
		return common.NewAppError("UNAVAILABLE", fmt.Sprintf("%s (status %d)", msg, code), common.ErrUnavailable)
	}
}

func (c *Client) Catalog(ctx context.Context) ([]Entry, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/images", nil)
	if err != nil {
		return nil, err
	}
	var out []Entry
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return out, nil
}

func (c *Client) Image(ctx context.Context, id string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/api/image/"+url.PathEscape(id), nil)
}

func (c *Client) Document(ctx context.Context, id string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/api/data/"+url.PathEscape(id), nil)
}

func (c *Client) SaveDocument(ctx context.Context, id string, data []byte) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/data/"+url.PathEscape(id), data)
	if err != nil {
		return err
	}
	var ok struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(resp, &ok); err != nil || !ok.Success {
		return common.NewAppError("SAVE_FAILED", "server did not confirm save of "+id, common.ErrInternal)
	}
	return nil
}

func (c *Client) Progress(ctx context.Context) (progress.Record, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/progress", nil)
	if err != nil {
		return progress.Record{}, err
	}
	var w progress.Wire
	if err := json.Unmarshal(data, &w); err != nil {
		return progress.Record{}, fmt.Errorf("decode progress: %w", err)
	}
	return progress.FromWire(w), nil
}

func (c *Client) MarkViewed(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/progress/viewed/"+url.PathEscape(id), nil)
	return err
}

func (c *Client) MarkUpdated(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/progress/updated/"+url.PathEscape(id), nil)
	return err
}
