// Package fetch downloads user-supplied files over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultMaxBytes = 20 << 20
)

// ErrFetch is returned when a file cannot be downloaded.
var ErrFetch = errors.New("fetch: download failed")

// Config controls downloads.
type Config struct {
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
	MaxBytes int64         `json:"max_bytes" yaml:"max_bytes"`
}

// Client downloads files with a size cap.
type Client struct {
	http     *http.Client
	maxBytes int64
}

// New returns a Client, substituting defaults for zero values.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	return &Client{
		http:     &http.Client{Timeout: cfg.Timeout},
		maxBytes: cfg.MaxBytes,
	}
}

// Fetch downloads fileURL and returns its body and the Content-Type header the
// server sent (possibly empty).
func (c *Client) Fetch(ctx context.Context, fileURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: invalid url", ErrFetch)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// File URLs can embed credentials; report the cause only.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: reading body: %v", ErrFetch, err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, "", fmt.Errorf("%w: file exceeds %d bytes", ErrFetch, c.maxBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	slog.Debug("fetch: downloaded",
		"bytes", len(data),
		"content_type", contentType,
		"sniffed", mimetype.Detect(data).String(),
	)
	return data, contentType, nil
}
