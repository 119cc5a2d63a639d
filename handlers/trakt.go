package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"listforge/config"
	"listforge/services/manifest"
	"listforge/services/trakt"
)

// TraktHandler manages the Trakt connection: device-code OAuth, status and
// disconnect.
type TraktHandler struct {
	Manager  *config.Manager
	Client   *trakt.Client
	Manifest *manifest.Service
}

func NewTraktHandler(manager *config.Manager, client *trakt.Client, manifestSvc *manifest.Service) *TraktHandler {
	return &TraktHandler{Manager: manager, Client: client, Manifest: manifestSvc}
}

// StartAuth begins the device code flow. The body may carry app credentials
// to store first; otherwise the configured ones are used.
// POST /api/trakt/auth/start
func (h *TraktHandler) StartAuth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID     string `json:"clientId"`
		ClientSecret string `json:"clientSecret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	settings, err := h.Manager.Load()
	if err != nil {
		jsonError(w, "Failed to load settings: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if id := strings.TrimSpace(req.ClientID); id != "" {
		settings.Trakt.ClientID = id
		settings.Trakt.ClientSecret = strings.TrimSpace(req.ClientSecret)
		if err := h.Manager.Save(settings); err != nil {
			jsonError(w, "Failed to save settings: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	if !settings.Trakt.HasApp() {
		jsonError(w, "Trakt app credentials not configured", http.StatusBadRequest)
		return
	}
	h.Client.UpdateCredentials(settings.Trakt.ClientID, settings.Trakt.ClientSecret)

	code, err := h.Client.GetDeviceCode(r.Context())
	if err != nil {
		jsonError(w, "Failed to start device auth: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"deviceCode":      code.DeviceCode,
		"userCode":        code.UserCode,
		"verificationUrl": code.VerificationURL,
		"expiresIn":       code.ExpiresIn,
		"interval":        code.Interval,
	})
}

// CheckAuth polls one device code. While the user has not approved it the
// response is pending; on approval the token bundle and username are stored.
// GET /api/trakt/auth/check/{deviceCode}
func (h *TraktHandler) CheckAuth(w http.ResponseWriter, r *http.Request) {
	deviceCode := mux.Vars(r)["deviceCode"]
	if deviceCode == "" {
		jsonError(w, "Device code required", http.StatusBadRequest)
		return
	}

	settings, err := h.Manager.Load()
	if err != nil {
		jsonError(w, "Failed to load settings: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.Client.UpdateCredentials(settings.Trakt.ClientID, settings.Trakt.ClientSecret)

	token, err := h.Client.PollForToken(r.Context(), deviceCode)
	if errors.Is(err, trakt.ErrPending) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"authenticated": false,
			"pending":       true,
		})
		return
	}
	if err != nil {
		jsonError(w, "Authorization failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	settings.Trakt.AccessToken = token.AccessToken
	settings.Trakt.RefreshToken = token.RefreshToken
	settings.Trakt.ExpiresAt = token.CreatedAt + token.ExpiresIn

	if profile, err := h.Client.GetUserProfile(r.Context(), token.AccessToken); err == nil && profile != nil {
		settings.Trakt.Username = profile.Username
	}

	if err := h.Manager.Save(settings); err != nil {
		jsonError(w, "Failed to save token: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.Manifest.Invalidate()
	log.Printf("[trakt] connected as %s", settings.Trakt.Username)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"authenticated": true,
		"username":      settings.Trakt.Username,
	})
}

// Status reports the connection state.
// GET /api/trakt/status
func (h *TraktHandler) Status(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Manager.Load()
	if err != nil {
		jsonError(w, "Failed to load settings: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"configured": settings.Trakt.HasApp(),
		"connected":  settings.Trakt.HasToken(),
		"username":   settings.Trakt.Username,
		"expiresAt":  settings.Trakt.ExpiresAt,
	})
}

// Disconnect drops the stored token bundle. App credentials stay so the user
// can reconnect without re-entering them.
// POST /api/trakt/disconnect
func (h *TraktHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Manager.Load()
	if err != nil {
		jsonError(w, "Failed to load settings: "+err.Error(), http.StatusInternalServerError)
		return
	}

	settings.Trakt.AccessToken = ""
	settings.Trakt.RefreshToken = ""
	settings.Trakt.ExpiresAt = 0
	settings.Trakt.Username = ""

	if err := h.Manager.Save(settings); err != nil {
		jsonError(w, "Failed to save settings: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.Manifest.Invalidate()
	log.Printf("[trakt] disconnected")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}

// Options answers CORS preflights.
func (h *TraktHandler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
