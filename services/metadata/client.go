package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"listforge/models"
)

// Client fetches canonical metadata from a Cinemeta-compatible service.
// Safe for concurrent use; settings can be swapped at runtime.
type Client struct {
	mu         sync.RWMutex
	enabled    bool
	baseURL    string
	httpClient *http.Client
}

func NewClient(enabled bool, baseURL string) *Client {
	return &Client{
		enabled:    enabled,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// UpdateSettings swaps the service configuration.
func (c *Client) UpdateSettings(enabled bool, baseURL string) {
	c.mu.Lock()
	c.enabled = enabled
	c.baseURL = strings.TrimRight(baseURL, "/")
	c.mu.Unlock()
}

// Enabled reports whether lookups are configured.
func (c *Client) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled && c.baseURL != ""
}

func (c *Client) base() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// metaEnvelope mirrors the /meta/{type}/{id}.json payload.
type metaEnvelope struct {
	Meta *struct {
		ID          string   `json:"id"`
		ImdbID      string   `json:"imdb_id"`
		Type        string   `json:"type"`
		Name        string   `json:"name"`
		Poster      string   `json:"poster"`
		Background  string   `json:"background"`
		Description string   `json:"description"`
		ReleaseInfo string   `json:"releaseInfo"`
		IMDBRating  string   `json:"imdbRating"`
		Runtime     string   `json:"runtime"`
		Genres      []string `json:"genres"`
	} `json:"meta"`
}

// Fetch returns metadata for one id, or nil when the service has none.
// Transient upstream trouble is retried once before giving up.
func (c *Client) Fetch(ctx context.Context, kind models.MediaKind, externalID string) (*models.MetaItem, error) {
	if !c.Enabled() || externalID == "" {
		return nil, nil
	}
	endpoint := fmt.Sprintf("%s/meta/%s/%s.json", c.base(), kind, url.PathEscape(externalID))

	var envelope metaEnvelope
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("metadata request: %w", err)
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusNotFound:
				// definitive miss
				envelope.Meta = nil
				return nil
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				return fmt.Errorf("metadata status %d", resp.StatusCode)
			case resp.StatusCode != http.StatusOK:
				return retry.Unrecoverable(fmt.Errorf("metadata status %d", resp.StatusCode))
			}
			if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode metadata: %w", err))
			}
			return nil
		},
		retry.Attempts(2),
		retry.Delay(300*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	if envelope.Meta == nil {
		return nil, nil
	}

	m := envelope.Meta
	return &models.MetaItem{
		ID:          externalID,
		Type:        string(kind),
		Name:        m.Name,
		Poster:      m.Poster,
		Background:  m.Background,
		Description: m.Description,
		ReleaseInfo: m.ReleaseInfo,
		IMDBRating:  m.IMDBRating,
		Runtime:     m.Runtime,
		Genres:      m.Genres,
	}, nil
}
