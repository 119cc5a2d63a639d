package trakt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("cid", "secret")
	c.SetBaseURL(srv.URL)
	return c
}

func TestGetDeviceCode(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/device/code" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("trakt-api-key"); got != "cid" {
			t.Errorf("trakt-api-key = %q", got)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["client_id"] != "cid" {
			t.Errorf("client_id = %q", body["client_id"])
		}
		json.NewEncoder(w).Encode(DeviceCodeResponse{
			DeviceCode:      "dev123",
			UserCode:        "ABCD1234",
			VerificationURL: "https://trakt.tv/activate",
			ExpiresIn:       600,
			Interval:        5,
		})
	}))

	dc, err := c.GetDeviceCode(context.Background())
	if err != nil {
		t.Fatalf("GetDeviceCode: %v", err)
	}
	if dc.UserCode != "ABCD1234" || dc.Interval != 5 {
		t.Fatalf("device code = %+v", dc)
	}
}

func TestPollForTokenPending(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	_, err := c.PollForToken(context.Background(), "dev123")
	if !errors.Is(err, ErrPending) {
		t.Fatalf("err = %v, want ErrPending", err)
	}
}

func TestPollForTokenSuccess(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(TokenResponse{
			AccessToken:  "acc",
			RefreshToken: "ref",
			ExpiresIn:    7776000,
			CreatedAt:    1700000000,
		})
	}))

	tok, err := c.PollForToken(context.Background(), "dev123")
	if err != nil {
		t.Fatalf("PollForToken: %v", err)
	}
	if tok.AccessToken != "acc" || tok.RefreshToken != "ref" {
		t.Fatalf("token = %+v", tok)
	}
}

func TestRefreshRejected(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))

	_, err := c.RefreshAccessToken(context.Background(), "dead")
	if !errors.Is(err, ErrAuthRejected) {
		t.Fatalf("err = %v, want ErrAuthRejected", err)
	}
}

func TestGetWatchlistPagination(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/me/watchlist/movies" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization = %q", got)
		}
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("limit") != "50" {
			t.Errorf("query = %v", q)
		}
		w.Header().Set("X-Pagination-Item-Count", "120")
		w.Write([]byte(`[{"rank":1,"type":"movie","movie":{"title":"Heat","year":1995,"ids":{"trakt":1,"imdb":"tt0113277"}}}]`))
	}))

	items, total, err := c.GetWatchlist(context.Background(), "tok", "movies", 2, 50)
	if err != nil {
		t.Fatalf("GetWatchlist: %v", err)
	}
	if total != 120 || len(items) != 1 {
		t.Fatalf("total = %d, items = %d", total, len(items))
	}
	if items[0].Movie == nil || items[0].Movie.IDs.IMDB != "tt0113277" {
		t.Fatalf("item = %+v", items[0])
	}
}

func TestGetWatchlistAuthRejected(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, _, err := c.GetWatchlist(context.Background(), "bad", "", 1, 100)
	if !errors.Is(err, ErrAuthRejected) {
		t.Fatalf("err = %v, want ErrAuthRejected", err)
	}
}

func TestGetUserLists(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/me/lists" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`[{"name":"Favorites","privacy":"private","item_count":12,"ids":{"trakt":5150,"slug":"favorites"}}]`))
	}))

	lists, err := c.GetUserLists(context.Background(), "tok")
	if err != nil {
		t.Fatalf("GetUserLists: %v", err)
	}
	if len(lists) != 1 || lists[0].IDs.Trakt != 5150 || lists[0].Name != "Favorites" {
		t.Fatalf("lists = %+v", lists)
	}
}

func TestGetTrending(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/shows/trending" {
			t.Errorf("path = %s", r.URL.Path)
		}
		// trending is public: no Authorization header expected
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("authorization sent on public endpoint: %q", got)
		}
		w.Write([]byte(`[{"watchers":42,"show":{"title":"Dark","year":2017,"ids":{"imdb":"tt5753856"}}}]`))
	}))

	items, err := c.GetTrending(context.Background(), "shows", 1, 100, "")
	if err != nil {
		t.Fatalf("GetTrending: %v", err)
	}
	if len(items) != 1 || items[0].Show == nil || items[0].Watchers != 42 {
		t.Fatalf("items = %+v", items)
	}
}

func TestGetTrendingGenreFilter(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("genres"); got != "science-fiction" {
			t.Errorf("genres = %q", got)
		}
		w.Write([]byte(`[]`))
	}))

	if _, err := c.GetTrending(context.Background(), "movies", 1, 100, "science-fiction"); err != nil {
		t.Fatalf("GetTrending: %v", err)
	}
}

func TestGetPopularMovies(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movies/popular" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`[{"title":"Inception","year":2010,"ids":{"imdb":"tt1375666"}}]`))
	}))

	movies, shows, err := c.GetPopular(context.Background(), "movies", 1, 100, "")
	if err != nil {
		t.Fatalf("GetPopular: %v", err)
	}
	if len(movies) != 1 || shows != nil || movies[0].IDs.IMDB != "tt1375666" {
		t.Fatalf("movies = %+v, shows = %+v", movies, shows)
	}
}

func TestNormalizeMediaType(t *testing.T) {
	cases := map[string]string{
		"movie": "movie",
		"show":  "series",
		"other": "other",
	}
	for in, want := range cases {
		if got := NormalizeMediaType(in); got != want {
			t.Errorf("NormalizeMediaType(%q) = %q, want %q", in, got, want)
		}
	}
}
