package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"listforge/config"
	"listforge/services/catalog"
	"listforge/services/manifest"
	"listforge/services/mdblist"
	"listforge/services/metadata"
	"listforge/services/trakt"
)

// SettingsHandler serves the settings API and hot-reloads the services that
// cache configuration at construction time.
type SettingsHandler struct {
	Manager  *config.Manager
	MDBList  *mdblist.Client
	Trakt    *trakt.Client
	Metadata *metadata.Client
	Manifest *manifest.Service
	Catalog  *catalog.Service
}

func NewSettingsHandler(manager *config.Manager) *SettingsHandler {
	return &SettingsHandler{Manager: manager}
}

// SetClients wires the clients that need reloading after a settings change.
func (h *SettingsHandler) SetClients(mdb *mdblist.Client, trk *trakt.Client, meta *metadata.Client) {
	h.MDBList = mdb
	h.Trakt = trk
	h.Metadata = meta
}

// SetServices wires the services invalidated after a settings change.
func (h *SettingsHandler) SetServices(manifestSvc *manifest.Service, catalogSvc *catalog.Service) {
	h.Manifest = manifestSvc
	h.Catalog = catalogSvc
}

// GetSettings returns the full persisted configuration.
// GET /api/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Manager.Load()
	if err != nil {
		jsonError(w, "Failed to load settings: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}

// PutSettings replaces the configuration and hot-reloads dependent services.
// PUT /api/settings
func (h *SettingsHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var s config.Settings
	dec := json.NewDecoder(r.Body)
	// Allow unknown fields for backward compatibility with old configs
	if err := dec.Decode(&s); err != nil {
		jsonError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.Manager.Save(s); err != nil {
		jsonError(w, "Failed to save settings: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.reloadServices(s)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}

// reloadServices pushes changed configuration into services that would
// otherwise keep serving with the values they were constructed with.
func (h *SettingsHandler) reloadServices(s config.Settings) {
	if h.MDBList != nil {
		h.MDBList.SetAPIKey(s.MDBList.APIKey)
		log.Printf("[settings] reloaded MDBList API key (configured=%v)", s.MDBList.APIKey != "")
	}
	if h.Trakt != nil {
		h.Trakt.UpdateCredentials(s.Trakt.ClientID, s.Trakt.ClientSecret)
		log.Printf("[settings] reloaded Trakt app credentials (configured=%v)", s.Trakt.HasApp())
	}
	if h.Metadata != nil {
		h.Metadata.UpdateSettings(s.Metadata.Enabled, s.Metadata.BaseURL)
		log.Printf("[settings] reloaded metadata client (enabled=%v)", s.Metadata.Enabled)
	}
	if h.Manifest != nil {
		h.Manifest.Invalidate()
	}
}

// ValidateMDBListKey checks a candidate API key against the live service
// without storing it.
// POST /api/settings/mdblist/validate
func (h *SettingsHandler) ValidateMDBListKey(w http.ResponseWriter, r *http.Request) {
	var body struct {
		APIKey string `json:"apiKey"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		jsonError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	key := strings.TrimSpace(body.APIKey)
	if key == "" {
		jsonError(w, "API key is required", http.StatusBadRequest)
		return
	}

	profile, err := h.MDBList.ValidateCandidateKey(r.Context(), key)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		if errors.Is(err, mdblist.ErrInvalidKey) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"valid": false,
				"error": "API key rejected",
			})
			return
		}
		jsonError(w, "Validation failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"valid":    true,
		"username": profile.Username,
	})
}

// ClearCache drops every cached catalog page and the built manifest.
// POST /api/cache/clear
func (h *SettingsHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if h.Catalog != nil {
		h.Catalog.ClearCache()
	}
	if h.Manifest != nil {
		h.Manifest.Invalidate()
	}
	log.Printf("[settings] caches cleared by user request")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Options answers CORS preflights.
func (h *SettingsHandler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
