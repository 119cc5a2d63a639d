package mdblist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"listforge/models"
)

var (
	// ErrNoAPIKey is returned when a call needs a key and none is configured.
	ErrNoAPIKey = errors.New("mdblist api key not configured")
	// ErrInvalidKey is returned when the API rejects the configured key.
	ErrInvalidKey = errors.New("mdblist api key rejected")
	// ErrRateLimited is returned when the API keeps answering 429 after retries.
	ErrRateLimited = errors.New("mdblist rate limited")
	// ErrNotFound is returned for unknown list ids.
	ErrNotFound = errors.New("mdblist list not found")
)

const defaultBaseURL = "https://api.mdblist.com"

// Client talks to the MDBList API. Safe for concurrent use; the API key can be
// swapped at runtime when settings change.
type Client struct {
	mu         sync.RWMutex
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		// MDBList free tier allows ~1000 requests/day; keep bursts polite.
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
	}
}

// SetAPIKey replaces the key used for subsequent requests.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	c.apiKey = key
	c.mu.Unlock()
}

// HasKey reports whether an API key is configured.
func (c *Client) HasKey() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey != ""
}

func (c *Client) key() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// SetBaseURL overrides the API root, primarily so tests can point the client
// at a local server.
func (c *Client) SetBaseURL(u string) {
	c.mu.Lock()
	c.baseURL = strings.TrimRight(u, "/")
	c.mu.Unlock()
}

func (c *Client) base() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// ListSummary is one list as returned by the list-collection endpoints.
type ListSummary struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug,omitempty"`
	MediaType string `json:"mediatype,omitempty"`
	Items     int    `json:"items,omitempty"`
	Dynamic   bool   `json:"dynamic,omitempty"`
	Private   bool   `json:"private,omitempty"`
}

// UserProfile is the /user payload, used to validate an API key.
type UserProfile struct {
	UserID           int64  `json:"user_id"`
	Username         string `json:"username"`
	APIRequests      int    `json:"api_requests"`
	APIRequestsCount int    `json:"api_requests_count"`
	PatronStatus     string `json:"patron_status,omitempty"`
}

type listItem struct {
	ID          int    `json:"id"`
	Rank        int    `json:"rank"`
	Title       string `json:"title"`
	ImdbID      string `json:"imdb_id"`
	MediaType   string `json:"mediatype"`
	ReleaseYear int    `json:"release_year"`
}

type listItemsSplit struct {
	Movies []listItem `json:"movies"`
	Shows  []listItem `json:"shows"`
}

// get performs one API request with the configured key appended, pacing via
// the limiter and retrying transient failures with exponential backoff.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.getWithKey(ctx, c.key(), path, query)
}

func (c *Client) getWithKey(ctx context.Context, key, path string, query url.Values) ([]byte, error) {
	if key == "" {
		return nil, ErrNoAPIKey
	}
	if query == nil {
		query = url.Values{}
	}
	query.Set("apikey", key)
	reqURL := c.base() + path + "?" + query.Encode()

	var lastErr error
	backoff := 300 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			log.Printf("[mdblist] request error (attempt %d/3): %v", attempt+1, err)
			time.Sleep(backoff)
			backoff *= 2
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			log.Printf("[mdblist] rate limited (attempt %d/3) for %s", attempt+1, path)
			lastErr = ErrRateLimited
			time.Sleep(backoff)
			backoff *= 2
			continue
		case resp.StatusCode >= 500:
			resp.Body.Close()
			log.Printf("[mdblist] server error %d (attempt %d/3) for %s", resp.StatusCode, attempt+1, path)
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			time.Sleep(backoff)
			backoff *= 2
			continue
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			resp.Body.Close()
			return nil, ErrInvalidKey
		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return nil, ErrNotFound
		case resp.StatusCode != http.StatusOK:
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		var buf bytes.Buffer
		_, err = buf.ReadFrom(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, lastErr
}

// ValidateKey checks the configured key against the profile endpoint.
func (c *Client) ValidateKey(ctx context.Context) (*UserProfile, error) {
	return c.validate(ctx, c.key())
}

// ValidateCandidateKey checks a key that is not (yet) the configured one, so
// settings can be vetted before they are saved.
func (c *Client) ValidateCandidateKey(ctx context.Context, key string) (*UserProfile, error) {
	return c.validate(ctx, key)
}

func (c *Client) validate(ctx context.Context, key string) (*UserProfile, error) {
	body, err := c.getWithKey(ctx, key, "/user", nil)
	if err != nil {
		return nil, err
	}
	var profile UserProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &profile, nil
}

// GetUserLists returns the lists owned by the account.
func (c *Client) GetUserLists(ctx context.Context) ([]ListSummary, error) {
	return c.getLists(ctx, "/lists/user")
}

// GetExternalLists returns lists the account follows but does not own.
func (c *Client) GetExternalLists(ctx context.Context) ([]ListSummary, error) {
	return c.getLists(ctx, "/external/lists/user")
}

func (c *Client) getLists(ctx context.Context, path string) ([]ListSummary, error) {
	body, err := c.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	var lists []ListSummary
	if err := json.Unmarshal(body, &lists); err != nil {
		return nil, fmt.Errorf("decode lists: %w", err)
	}
	return lists, nil
}

// ItemsQuery selects a page of list items.
type ItemsQuery struct {
	Limit  int
	Offset int
	Sort   string
	Order  string
}

func (q ItemsQuery) values() url.Values {
	v := url.Values{}
	if q.Limit > 0 {
		v.Set("limit", fmt.Sprintf("%d", q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", fmt.Sprintf("%d", q.Offset))
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.Order != "" {
		v.Set("order", q.Order)
	}
	return v
}

// GetListItems fetches items of an owned list ("/lists/{id}/items") or a
// followed one ("/external/lists/{id}/items"). The API answers with either
// a {movies, shows} object or a flat array depending on list age; both are
// returned as-is in the RawList and told apart downstream.
func (c *Client) GetListItems(ctx context.Context, listID string, external bool, q ItemsQuery) (*models.RawList, error) {
	path := fmt.Sprintf("/lists/%s/items", listID)
	if external {
		path = fmt.Sprintf("/external/lists/%s/items", listID)
	}
	body, err := c.get(ctx, path, q.values())
	if err != nil {
		return nil, err
	}
	return decodeItems(body)
}

// GetWatchlistItems fetches the account watchlist.
func (c *Client) GetWatchlistItems(ctx context.Context, q ItemsQuery) (*models.RawList, error) {
	body, err := c.get(ctx, "/watchlist/items", q.values())
	if err != nil {
		return nil, err
	}
	return decodeItems(body)
}

func decodeItems(body []byte) (*models.RawList, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return &models.RawList{}, nil
	}
	if trimmed[0] == '[' {
		var flat []listItem
		if err := json.Unmarshal(trimmed, &flat); err != nil {
			return nil, fmt.Errorf("decode items: %w", err)
		}
		out := &models.RawList{}
		for _, it := range flat {
			out.Items = append(out.Items, toRawItem(it))
		}
		return out, nil
	}

	var split listItemsSplit
	if err := json.Unmarshal(trimmed, &split); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	out := &models.RawList{}
	for _, it := range split.Movies {
		out.Movies = append(out.Movies, toRawItem(it))
	}
	for _, it := range split.Shows {
		out.Shows = append(out.Shows, toRawItem(it))
	}
	return out, nil
}

func toRawItem(it listItem) models.RawItem {
	return models.RawItem{
		ID:     fmt.Sprintf("%d", it.ID),
		ImdbID: it.ImdbID,
		Title:  it.Title,
		Year:   it.ReleaseYear,
		Kind:   it.MediaType,
	}
}
