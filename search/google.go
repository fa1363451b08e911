// Package search runs web searches and condenses the hits into a short
// markdown digest.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	DefaultBaseURL = "https://www.googleapis.com/customsearch/v1"
	DefaultLimit   = 5
	DefaultTimeout = 15 * time.Second

	// The Custom Search API returns at most ten items per request.
	maxPerRequest = 10
)

// ErrSearch is returned when the search backend cannot be queried.
var ErrSearch = errors.New("search: query failed")

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Searcher retrieves up to limit results for query, in rank order.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// Config configures the Google Custom Search client and the digest.
type Config struct {
	APIKey   string        `json:"api_key" yaml:"api_key"`
	EngineID string        `json:"engine_id" yaml:"engine_id"`
	BaseURL  string        `json:"base_url" yaml:"base_url"`
	Limit    int           `json:"limit" yaml:"limit" validate:"gte=0,lte=10"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
}

// GoogleSearcher queries the Custom Search JSON API.
type GoogleSearcher struct {
	cfg    Config
	client *http.Client
}

// NewGoogle returns a GoogleSearcher, substituting defaults for zero values.
func NewGoogle(cfg Config) *GoogleSearcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &GoogleSearcher{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type customSearchResponse struct {
	Items []Result `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Search implements Searcher.
func (g *GoogleSearcher) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if g.cfg.APIKey == "" || g.cfg.EngineID == "" {
		return nil, fmt.Errorf("%w: api key and engine id are required", ErrSearch)
	}

	params := url.Values{}
	params.Set("key", g.cfg.APIKey)
	params.Set("cx", g.cfg.EngineID)
	params.Set("q", query)
	if limit > 0 {
		params.Set("num", strconv.Itoa(min(limit, maxPerRequest)))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearch, err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		// The request URL carries the API key; keep it out of the error.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, fmt.Errorf("%w: %v", ErrSearch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrSearch, err)
	}

	var out customSearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decoding response (status %d): %v", ErrSearch, resp.StatusCode, err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("%w: api error %d: %s", ErrSearch, out.Error.Code, out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrSearch, resp.StatusCode)
	}

	return out.Items, nil
}
