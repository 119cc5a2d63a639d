package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"strings"

	"github.com/gorilla/mux"

	"listforge/config"
	"listforge/internal/listid"
	"listforge/models"
	"listforge/services/catalog"
	"listforge/services/manifest"
	"listforge/services/sources"
)

// ListsHandler exposes the list configuration API: the merged view of every
// discoverable list plus the ordering, visibility, naming and sort rules
// applied to them.
type ListsHandler struct {
	Registry *sources.Registry
	Manager  *config.Manager
	Manifest *manifest.Service
	Catalog  *catalog.Service
}

func NewListsHandler(registry *sources.Registry, manager *config.Manager, manifestSvc *manifest.Service, catalogSvc *catalog.Service) *ListsHandler {
	return &ListsHandler{Registry: registry, Manager: manager, Manifest: manifestSvc, Catalog: catalogSvc}
}

// ListRow is one list in the merged configuration view.
type ListRow struct {
	ID            string                 `json:"id"`
	Name          string                 `json:"name"`
	EffectiveName string                 `json:"effectiveName"`
	CustomName    string                 `json:"customName,omitempty"`
	Source        models.SourceKind      `json:"source"`
	Kinds         []models.MediaKind     `json:"kinds"`
	Watchlist     bool                   `json:"watchlist,omitempty"`
	SupportsGenre bool                   `json:"supportsGenre,omitempty"`
	Hidden        bool                   `json:"hidden"`
	Sort          *config.SortPreference `json:"sort,omitempty"`
}

// List returns every list the configured sources expose, in the order the
// manifest would emit them, with the user's rules merged in.
// GET /api/lists
func (h *ListsHandler) List(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Manager.Load()
	if err != nil {
		jsonError(w, "Failed to load settings: "+err.Error(), http.StatusInternalServerError)
		return
	}

	var lists []models.List
	seen := make(map[string]bool)
	for _, src := range h.Registry.All() {
		found, err := src.ListCatalogs(r.Context())
		if err != nil {
			log.Printf("[lists] source %s: %v", src.Kind(), err)
			continue
		}
		for _, l := range found {
			if seen[l.ID] {
				continue
			}
			seen[l.ID] = true
			lists = append(lists, l)
		}
	}

	hidden := make(map[string]bool, len(settings.Lists.Hidden))
	for _, id := range settings.Lists.Hidden {
		hidden[id] = true
	}
	rank := make(map[string]int, len(settings.Lists.Order))
	for i, id := range settings.Lists.Order {
		if _, ok := rank[id]; !ok {
			rank[id] = i
		}
	}

	type ranked struct {
		row  ListRow
		rank int
	}
	rows := make([]ranked, 0, len(lists))
	for _, l := range lists {
		custom := settings.Lists.CustomNames[l.ID]
		if custom == "" {
			custom = settings.Lists.CustomNames[listid.BaseID(l.ID)]
		}
		row := ListRow{
			ID:            l.ID,
			Name:          l.Name,
			EffectiveName: manifest.EffectiveName(l, settings.Lists.CustomNames),
			CustomName:    custom,
			Source:        l.Source,
			Kinds:         l.Kinds,
			Watchlist:     l.Watchlist,
			SupportsGenre: l.SupportsGenre,
			Hidden:        hidden[l.ID] || hidden[listid.BaseID(l.ID)],
		}
		if pref, ok := settings.Lists.Sort[l.ID]; ok {
			row.Sort = &pref
		} else if pref, ok := settings.Lists.Sort[listid.BaseID(l.ID)]; ok {
			row.Sort = &pref
		}

		pos, ok := rank[l.ID]
		if !ok {
			pos, ok = rank[listid.BaseID(l.ID)]
		}
		if !ok {
			pos = len(rank)
		}
		rows = append(rows, ranked{row: row, rank: pos})
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].rank < rows[j].rank })

	out := make([]ListRow, 0, len(rows))
	for _, e := range rows {
		out = append(out, e.row)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"lists": out,
		"order": settings.Lists.Order,
	})
}

// Reorder replaces the manual list ordering.
// PUT /api/lists/order
func (h *ListsHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Order []string `json:"order"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		jsonError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	settings, err := h.Manager.Load()
	if err != nil {
		jsonError(w, "Failed to load settings: "+err.Error(), http.StatusInternalServerError)
		return
	}

	order := make([]string, 0, len(body.Order))
	for _, id := range body.Order {
		if id = strings.TrimSpace(id); id != "" {
			order = append(order, id)
		}
	}
	settings.Lists.Order = order

	if err := h.Manager.Save(settings); err != nil {
		jsonError(w, "Failed to save settings: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.Manifest.Invalidate()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "order": order})
}

// SetVisibility hides or unhides one list.
// PUT /api/lists/{listID}/visibility
func (h *ListsHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["listID"])
	if id == "" {
		jsonError(w, "List id is required", http.StatusBadRequest)
		return
	}

	var body struct {
		Hidden bool `json:"hidden"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		jsonError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	settings, err := h.Manager.Load()
	if err != nil {
		jsonError(w, "Failed to load settings: "+err.Error(), http.StatusInternalServerError)
		return
	}

	kept := settings.Lists.Hidden[:0]
	for _, existing := range settings.Lists.Hidden {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	settings.Lists.Hidden = kept
	if body.Hidden {
		settings.Lists.Hidden = append(settings.Lists.Hidden, id)
	}

	if err := h.Manager.Save(settings); err != nil {
		jsonError(w, "Failed to save settings: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.Manifest.Invalidate()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "hidden": body.Hidden})
}

// Rename sets or clears the custom display name of one list. An empty name
// restores the provider name.
// PUT /api/lists/{listID}/name
func (h *ListsHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["listID"])
	if id == "" {
		jsonError(w, "List id is required", http.StatusBadRequest)
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		jsonError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	settings, err := h.Manager.Load()
	if err != nil {
		jsonError(w, "Failed to load settings: "+err.Error(), http.StatusInternalServerError)
		return
	}

	name := strings.TrimSpace(body.Name)
	if name == "" {
		delete(settings.Lists.CustomNames, id)
	} else {
		settings.Lists.CustomNames[id] = name
	}

	if err := h.Manager.Save(settings); err != nil {
		jsonError(w, "Failed to save settings: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.Manifest.Invalidate()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "name": name})
}

// SetSort sets or clears the per-list sort preference forwarded to the
// providing source. Cached pages were built under the old preference, so the
// page cache is dropped.
// PUT /api/lists/{listID}/sort
func (h *ListsHandler) SetSort(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["listID"])
	if id == "" {
		jsonError(w, "List id is required", http.StatusBadRequest)
		return
	}

	var body struct {
		Sort  string `json:"sort"`
		Order string `json:"order"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		jsonError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	order := strings.ToLower(strings.TrimSpace(body.Order))
	if order != "" && order != "asc" && order != "desc" {
		jsonError(w, "Order must be asc or desc", http.StatusBadRequest)
		return
	}

	settings, err := h.Manager.Load()
	if err != nil {
		jsonError(w, "Failed to load settings: "+err.Error(), http.StatusInternalServerError)
		return
	}

	sortField := strings.TrimSpace(body.Sort)
	if sortField == "" {
		delete(settings.Lists.Sort, id)
	} else {
		if settings.Lists.Sort == nil {
			settings.Lists.Sort = map[string]config.SortPreference{}
		}
		settings.Lists.Sort[id] = config.SortPreference{Sort: sortField, Order: order}
	}

	if err := h.Manager.Save(settings); err != nil {
		jsonError(w, "Failed to save settings: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.Catalog.ClearCache()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}

// Options answers CORS preflights.
func (h *ListsHandler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
