package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"listforge/config"
	"listforge/models"
	"listforge/services/catalog"
	"listforge/services/manifest"
)

type manifestBuilder interface {
	Build(ctx context.Context) (*models.Manifest, error)
}

type catalogResolver interface {
	Resolve(ctx context.Context, req catalog.Request) models.CatalogResponse
}

var _ manifestBuilder = (*manifest.Service)(nil)
var _ catalogResolver = (*catalog.Service)(nil)

// AddonHandler serves the public addon protocol endpoints consumed by media
// clients: the manifest and catalog pages.
type AddonHandler struct {
	Manifest manifestBuilder
	Catalog  catalogResolver
	Manager  *config.Manager
}

func NewAddonHandler(manifestSvc manifestBuilder, catalogSvc catalogResolver, manager *config.Manager) *AddonHandler {
	return &AddonHandler{Manifest: manifestSvc, Catalog: catalogSvc, Manager: manager}
}

// GetManifest serves GET /manifest.json.
func (h *AddonHandler) GetManifest(w http.ResponseWriter, r *http.Request) {
	m, err := h.Manifest.Build(r.Context())
	if err != nil {
		jsonError(w, "Failed to build manifest: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if s, err := h.Manager.Load(); err == nil && s.Cache.CatalogTTLSeconds > 0 {
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", s.Cache.CatalogTTLSeconds))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m)
}

// GetCatalog serves GET /catalog/{type}/{id}.json and the extra-segment
// variant /catalog/{type}/{id}/{extra}.json. Unknown types and unroutable ids
// degrade to an empty catalog; the response shape is always valid for the
// client.
func (h *AddonHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	kind := models.ParseMediaKind(vars["type"])
	if kind == "" {
		writeCatalog(w, models.CatalogResponse{Metas: []models.MetaItem{}})
		return
	}

	skip, genre := parseExtra(vars["extra"])
	resp := h.Catalog.Resolve(r.Context(), catalog.Request{
		ListID: vars["id"],
		Kind:   kind,
		Skip:   skip,
		Genre:  genre,
	})
	writeCatalog(w, resp)
}

// Options answers CORS preflights.
func (h *AddonHandler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// parseExtra decodes the extra path segment, e.g. "skip=100&genre=Comedy".
// Values the segment does not carry come back as zero values; a malformed
// segment yields whatever parsed.
func parseExtra(extra string) (skip int, genre string) {
	if extra == "" {
		return 0, ""
	}
	values, _ := url.ParseQuery(extra)
	if v := strings.TrimSpace(values.Get("skip")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			skip = n
		}
	}
	genre = strings.TrimSpace(values.Get("genre"))
	return skip, genre
}

// writeCatalog mirrors the response's cache hints into Cache-Control so
// intermediaries honor the same TTL the body advertises. Pages without hints
// (watchlists, unfetchable lists) must not be stored anywhere.
func writeCatalog(w http.ResponseWriter, resp models.CatalogResponse) {
	if resp.CacheMaxAge > 0 {
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d, stale-if-error=%d",
			resp.CacheMaxAge, resp.StaleRevalidate, resp.StaleError))
	} else {
		w.Header().Set("Cache-Control", "no-store")
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
