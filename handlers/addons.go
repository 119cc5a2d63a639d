package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"listforge/services/addons"
	"listforge/services/manifest"
)

// AddonsHandler manages imported third-party addons.
type AddonsHandler struct {
	Service  *addons.Service
	Manifest *manifest.Service
}

func NewAddonsHandler(service *addons.Service, manifestSvc *manifest.Service) *AddonsHandler {
	return &AddonsHandler{Service: service, Manifest: manifestSvc}
}

// List returns every imported addon with its catalogs.
// GET /api/addons
func (h *AddonsHandler) List(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"addons": h.Service.Imported(),
	})
}

// Import fetches a manifest URL and merges the addon's catalogs into ours.
// Malformed manifests fail closed; nothing is stored.
// POST /api/addons/import
func (h *AddonsHandler) Import(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		jsonError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.URL) == "" {
		jsonError(w, "Manifest URL is required", http.StatusBadRequest)
		return
	}

	imported, err := h.Service.Import(r.Context(), body.URL)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, addons.ErrInvalidManifest):
			status = http.StatusBadRequest
		case errors.Is(err, addons.ErrAlreadyImported):
			status = http.StatusConflict
		}
		jsonError(w, err.Error(), status)
		return
	}
	h.Manifest.Invalidate()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"addon":   imported,
	})
}

// Remove deletes one imported addon and its catalogs.
// DELETE /api/addons/{addonID}
func (h *AddonsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["addonID"])
	if id == "" {
		jsonError(w, "Addon id is required", http.StatusBadRequest)
		return
	}

	if err := h.Service.Remove(id); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, addons.ErrAddonNotFound) {
			status = http.StatusNotFound
		}
		jsonError(w, err.Error(), status)
		return
	}
	h.Manifest.Invalidate()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}

// Options answers CORS preflights.
func (h *AddonsHandler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
