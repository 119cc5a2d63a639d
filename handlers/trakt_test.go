package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"listforge/config"
	"listforge/handlers"
	"listforge/services/manifest"
	"listforge/services/sources"
	"listforge/services/trakt"
)

const (
	fakeTokenCreatedAt = 1700000000
	fakeTokenExpiresIn = 7776000
)

// newTraktUpstream fakes the OAuth endpoints: one device code that stays
// pending and one that resolves to a token.
func newTraktUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	m := http.NewServeMux()
	m.HandleFunc("/oauth/device/code", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"device_code":"dev123","user_code":"USER99","verification_url":"https://trakt.tv/activate","expires_in":600,"interval":5}`)
	})
	m.HandleFunc("/oauth/device/token", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Code string `json:"code"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Code != "dev-ok" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `{"access_token":"tok","refresh_token":"ref","expires_in":%d,"token_type":"bearer","created_at":%d}`,
			fakeTokenExpiresIn, fakeTokenCreatedAt)
	})
	m.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"username":"couchpilot"}`)
	})
	srv := httptest.NewServer(m)
	t.Cleanup(srv.Close)
	return srv
}

func newTraktHandler(t *testing.T) (*handlers.TraktHandler, *config.Manager) {
	t.Helper()
	manager := newManager(t)
	client := trakt.NewClient("", "")
	client.SetBaseURL(newTraktUpstream(t).URL)
	manifestSvc := manifest.NewService(sources.NewRegistry(), manager)
	return handlers.NewTraktHandler(manager, client, manifestSvc), manager
}

func seedTraktApp(t *testing.T, manager *config.Manager) {
	t.Helper()
	s, err := manager.Load()
	if err != nil {
		t.Fatalf("failed to load settings: %v", err)
	}
	s.Trakt.ClientID = "cid"
	s.Trakt.ClientSecret = "sec"
	if err := manager.Save(s); err != nil {
		t.Fatalf("failed to save settings: %v", err)
	}
}

func TestStartAuthRequiresAppCredentials(t *testing.T) {
	h, _ := newTraktHandler(t)

	rec := httptest.NewRecorder()
	h.StartAuth(rec, httptest.NewRequest(http.MethodPost, "/api/trakt/auth/start", bytes.NewReader([]byte(`{}`))))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestStartAuthStoresCredentialsAndIssuesCode(t *testing.T) {
	h, manager := newTraktHandler(t)

	body := []byte(`{"clientId":"cid","clientSecret":"sec"}`)
	rec := httptest.NewRecorder()
	h.StartAuth(rec, httptest.NewRequest(http.MethodPost, "/api/trakt/auth/start", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if out["deviceCode"] != "dev123" || out["userCode"] != "USER99" {
		t.Fatalf("unexpected device code payload: %v", out)
	}

	s, _ := manager.Load()
	if s.Trakt.ClientID != "cid" || s.Trakt.ClientSecret != "sec" {
		t.Fatalf("app credentials not persisted: %+v", s.Trakt)
	}
}

func TestCheckAuthPendingThenConnected(t *testing.T) {
	h, manager := newTraktHandler(t)
	seedTraktApp(t, manager)

	check := func(code string) map[string]interface{} {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/api/trakt/auth/check/"+code, nil)
		req = mux.SetURLVars(req, map[string]string{"deviceCode": code})
		rec := httptest.NewRecorder()
		h.CheckAuth(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var out map[string]interface{}
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		return out
	}

	out := check("dev-pending")
	if out["authenticated"] != false || out["pending"] != true {
		t.Fatalf("expected pending response, got %v", out)
	}
	if s, _ := manager.Load(); s.Trakt.HasToken() {
		t.Fatalf("pending poll must not store a token")
	}

	out = check("dev-ok")
	if out["authenticated"] != true || out["username"] != "couchpilot" {
		t.Fatalf("expected connected response, got %v", out)
	}

	s, _ := manager.Load()
	if s.Trakt.AccessToken != "tok" || s.Trakt.RefreshToken != "ref" {
		t.Fatalf("token bundle not stored: %+v", s.Trakt)
	}
	if s.Trakt.ExpiresAt != fakeTokenCreatedAt+fakeTokenExpiresIn {
		t.Fatalf("expiry not derived from token: %d", s.Trakt.ExpiresAt)
	}
	if s.Trakt.Username != "couchpilot" {
		t.Fatalf("username not stored: %q", s.Trakt.Username)
	}
}

func TestDisconnectKeepsAppCredentials(t *testing.T) {
	h, manager := newTraktHandler(t)
	seedTraktApp(t, manager)

	s, _ := manager.Load()
	s.Trakt.AccessToken = "tok"
	s.Trakt.RefreshToken = "ref"
	s.Trakt.ExpiresAt = fakeTokenCreatedAt + fakeTokenExpiresIn
	s.Trakt.Username = "couchpilot"
	if err := manager.Save(s); err != nil {
		t.Fatalf("failed to seed token: %v", err)
	}

	rec := httptest.NewRecorder()
	h.Disconnect(rec, httptest.NewRequest(http.MethodPost, "/api/trakt/disconnect", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	s, _ = manager.Load()
	if s.Trakt.HasToken() || s.Trakt.RefreshToken != "" || s.Trakt.ExpiresAt != 0 || s.Trakt.Username != "" {
		t.Fatalf("token bundle not cleared: %+v", s.Trakt)
	}
	if s.Trakt.ClientID != "cid" || s.Trakt.ClientSecret != "sec" {
		t.Fatalf("disconnect must keep app credentials: %+v", s.Trakt)
	}
}

func TestStatusReportsConnection(t *testing.T) {
	h, manager := newTraktHandler(t)

	status := func() map[string]interface{} {
		t.Helper()
		rec := httptest.NewRecorder()
		h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/trakt/status", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var out map[string]interface{}
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		return out
	}

	out := status()
	if out["configured"] != false || out["connected"] != false {
		t.Fatalf("fresh install should be unconfigured: %v", out)
	}

	seedTraktApp(t, manager)
	s, _ := manager.Load()
	s.Trakt.AccessToken = "tok"
	s.Trakt.Username = "couchpilot"
	if err := manager.Save(s); err != nil {
		t.Fatalf("failed to seed token: %v", err)
	}

	out = status()
	if out["configured"] != true || out["connected"] != true || out["username"] != "couchpilot" {
		t.Fatalf("unexpected status: %v", out)
	}
}
