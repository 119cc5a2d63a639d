package trakt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL  = "https://api.trakt.tv"
	traktAPIVersion = "2"
)

var (
	// ErrAuthRejected is returned when Trakt rejects the credentials outright,
	// as opposed to a transient failure.
	ErrAuthRejected = errors.New("trakt rejected credentials")
	// ErrRateLimited is returned on 429 responses.
	ErrRateLimited = errors.New("trakt rate limited")
	// ErrPending is returned while the user has not yet approved a device code.
	ErrPending = errors.New("authorization pending")
)

// Client handles Trakt API interactions for OAuth and data fetching
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
}

// DeviceCodeResponse represents the response from /oauth/device/code
type DeviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURL string `json:"verification_url"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// TokenResponse represents the response from the token endpoints
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	CreatedAt    int64  `json:"created_at"`
}

// UserProfile represents basic Trakt user information
type UserProfile struct {
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	VIP      bool   `json:"vip"`
	Private  bool   `json:"private"`
	IDs      struct {
		Slug string `json:"slug"`
	} `json:"ids"`
}

// IDs holds external identifiers for a media item
type IDs struct {
	Trakt int    `json:"trakt,omitempty"`
	Slug  string `json:"slug,omitempty"`
	IMDB  string `json:"imdb,omitempty"`
	TMDB  int    `json:"tmdb,omitempty"`
	TVDB  int    `json:"tvdb,omitempty"`
}

// Movie represents a Trakt movie
type Movie struct {
	Title string `json:"title"`
	Year  int    `json:"year"`
	IDs   IDs    `json:"ids"`
}

// Show represents a Trakt TV show
type Show struct {
	Title string `json:"title"`
	Year  int    `json:"year"`
	IDs   IDs    `json:"ids"`
}

// ListedItem is one entry of a list or watchlist.
type ListedItem struct {
	Rank     int       `json:"rank"`
	ListedAt time.Time `json:"listed_at"`
	Type     string    `json:"type"` // "movie" or "show"
	Movie    *Movie    `json:"movie,omitempty"`
	Show     *Show     `json:"show,omitempty"`
}

// TrendingItem wraps a movie or show with its current watcher count.
type TrendingItem struct {
	Watchers int    `json:"watchers"`
	Movie    *Movie `json:"movie,omitempty"`
	Show     *Show  `json:"show,omitempty"`
}

// UserList is one personal list as returned by /users/me/lists.
type UserList struct {
	Name      string `json:"name"`
	Privacy   string `json:"privacy"`
	ItemCount int    `json:"item_count"`
	IDs       struct {
		Trakt int    `json:"trakt"`
		Slug  string `json:"slug"`
	} `json:"ids"`
}

// NewClient creates a new Trakt API client
func NewClient(clientID, clientSecret string) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      defaultBaseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// SetBaseURL overrides the API root, primarily so tests can point the client
// at a local server.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// HasCredentials checks if the client has API credentials configured
func (c *Client) HasCredentials() bool {
	return c.clientID != "" && c.clientSecret != ""
}

// UpdateCredentials updates the client credentials
func (c *Client) UpdateCredentials(clientID, clientSecret string) {
	c.clientID = clientID
	c.clientSecret = clientSecret
}

// setTraktHeaders adds required Trakt API headers to a request
func (c *Client) setTraktHeaders(req *http.Request, accessToken string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("trakt-api-version", traktAPIVersion)
	req.Header.Set("trakt-api-key", c.clientID)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
}

// GetDeviceCode initiates the device code OAuth flow
func (c *Client) GetDeviceCode(ctx context.Context) (*DeviceCodeResponse, error) {
	payload := map[string]string{
		"client_id": c.clientID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/device/code", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setTraktHeaders(req, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trakt api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("trakt device code failed: %s - %s", resp.Status, string(respBody))
	}

	var deviceCode DeviceCodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&deviceCode); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &deviceCode, nil
}

// PollForToken polls for the OAuth token after user has authorized.
// Returns ErrPending while the user has not approved the code yet.
func (c *Client) PollForToken(ctx context.Context, deviceCode string) (*TokenResponse, error) {
	payload := map[string]string{
		"code":          deviceCode,
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/device/token", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setTraktHeaders(req, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trakt api request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var token TokenResponse
		if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &token, nil
	case http.StatusBadRequest:
		// still waiting for the user to authorize
		return nil, ErrPending
	case http.StatusNotFound:
		return nil, fmt.Errorf("invalid device code")
	case http.StatusGone:
		return nil, fmt.Errorf("device code expired")
	case http.StatusConflict:
		return nil, fmt.Errorf("device code already used")
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("trakt token poll failed: %s - %s", resp.Status, string(respBody))
	}
}

// RefreshAccessToken exchanges a refresh token for a fresh token pair.
// A definitive rejection comes back as ErrAuthRejected; anything else is
// transient and safe to retry later.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	payload := map[string]string{
		"refresh_token": refreshToken,
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"redirect_uri":  "urn:ietf:wg:oauth:2.0:oob",
		"grant_type":    "refresh_token",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setTraktHeaders(req, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trakt api request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var token TokenResponse
		if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &token, nil
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		// invalid_grant and friends: the refresh token is dead
		return nil, ErrAuthRejected
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("trakt token refresh failed: %s - %s", resp.Status, string(respBody))
	}
}

// GetUserProfile retrieves information about the authenticated user
func (c *Client) GetUserProfile(ctx context.Context, accessToken string) (*UserProfile, error) {
	var profile UserProfile
	if err := c.getJSON(ctx, "/users/me", accessToken, &profile, nil); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetUserLists retrieves the authenticated user's personal lists
func (c *Client) GetUserLists(ctx context.Context, accessToken string) ([]UserList, error) {
	var lists []UserList
	if err := c.getJSON(ctx, "/users/me/lists", accessToken, &lists, nil); err != nil {
		return nil, err
	}
	return lists, nil
}

// GetListItems retrieves a page of items from one of the user's lists.
// mediaType filters to "movies" or "shows"; empty fetches both.
func (c *Client) GetListItems(ctx context.Context, accessToken, listID, mediaType string, page, limit int) ([]ListedItem, int, error) {
	path := fmt.Sprintf("/users/me/lists/%s/items", listID)
	if mediaType != "" {
		path += "/" + mediaType
	}
	return c.getListedPage(ctx, path, accessToken, page, limit)
}

// GetWatchlist retrieves a page of the user's watchlist.
// mediaType filters to "movies" or "shows"; empty fetches both.
// Returns items, total item count, and error.
func (c *Client) GetWatchlist(ctx context.Context, accessToken, mediaType string, page, limit int) ([]ListedItem, int, error) {
	path := "/users/me/watchlist"
	if mediaType != "" {
		path += "/" + mediaType
	}
	return c.getListedPage(ctx, path, accessToken, page, limit)
}

// GetTrending retrieves trending movies or shows. mediaType is "movies" or
// "shows"; genre, when set, is a Trakt genre slug applied server-side.
func (c *Client) GetTrending(ctx context.Context, mediaType string, page, limit int, genre string) ([]TrendingItem, error) {
	var items []TrendingItem
	query := fmt.Sprintf("?page=%d&limit=%d", page, limit)
	if genre != "" {
		query += "&genres=" + url.QueryEscape(genre)
	}
	if err := c.getJSON(ctx, "/"+mediaType+"/trending"+query, "", &items, nil); err != nil {
		return nil, err
	}
	return items, nil
}

// GetPopular retrieves popular movies or shows as bare objects. genre, when
// set, is a Trakt genre slug applied server-side.
func (c *Client) GetPopular(ctx context.Context, mediaType string, page, limit int, genre string) ([]Movie, []Show, error) {
	query := fmt.Sprintf("?page=%d&limit=%d", page, limit)
	if genre != "" {
		query += "&genres=" + url.QueryEscape(genre)
	}
	path := "/" + mediaType + "/popular" + query
	if mediaType == "movies" {
		var movies []Movie
		if err := c.getJSON(ctx, path, "", &movies, nil); err != nil {
			return nil, nil, err
		}
		return movies, nil, nil
	}
	var shows []Show
	if err := c.getJSON(ctx, path, "", &shows, nil); err != nil {
		return nil, nil, err
	}
	return nil, shows, nil
}

// GetRecommendations retrieves personalized recommendations. Requires a token.
func (c *Client) GetRecommendations(ctx context.Context, accessToken, mediaType string, limit int) ([]Movie, []Show, error) {
	path := fmt.Sprintf("/recommendations/%s?limit=%d&ignore_collected=false", mediaType, limit)
	if mediaType == "movies" {
		var movies []Movie
		if err := c.getJSON(ctx, path, accessToken, &movies, nil); err != nil {
			return nil, nil, err
		}
		return movies, nil, nil
	}
	var shows []Show
	if err := c.getJSON(ctx, path, accessToken, &shows, nil); err != nil {
		return nil, nil, err
	}
	return nil, shows, nil
}

func (c *Client) getListedPage(ctx context.Context, path, accessToken string, page, limit int) ([]ListedItem, int, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	path += fmt.Sprintf("%spage=%d&limit=%d", sep, page, limit)

	totalCount := 0
	var items []ListedItem
	err := c.getJSON(ctx, path, accessToken, &items, func(resp *http.Response) {
		if totalHeader := resp.Header.Get("X-Pagination-Item-Count"); totalHeader != "" {
			totalCount, _ = strconv.Atoi(totalHeader)
		}
	})
	if err != nil {
		return nil, 0, err
	}
	return items, totalCount, nil
}

// getJSON performs an authenticated GET and decodes the body into out.
// inspect, when non-nil, sees the response before the body is decoded.
func (c *Client) getJSON(ctx context.Context, path, accessToken string, out interface{}, inspect func(*http.Response)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	c.setTraktHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("trakt api request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrAuthRejected
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("trakt request %s failed: %s - %s", path, resp.Status, string(respBody))
	}

	if inspect != nil {
		inspect(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// NormalizeMediaType converts a Trakt media type to the catalog media type
func NormalizeMediaType(traktType string) string {
	switch traktType {
	case "movie":
		return "movie"
	case "show":
		return "series"
	default:
		return traktType
	}
}
