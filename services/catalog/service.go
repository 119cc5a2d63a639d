package catalog

import (
	"context"
	"fmt"
	"log"
	"time"

	"listforge/config"
	"listforge/internal/listid"
	"listforge/internal/ttlcache"
	"listforge/models"
	"listforge/services/sources"
)

// staleErrorSeconds tells clients how long a stale page may stand in when the
// server is unreachable.
const staleErrorSeconds = 24 * 60 * 60

// Enricher fills metadata gaps on a page of items.
type Enricher interface {
	Enrich(ctx context.Context, items []models.MetaItem) []models.MetaItem
}

// Service resolves catalog pages: route the list id to its adapter, normalize
// the returned window, enrich only that page and cache the wrapped response.
type Service struct {
	registry *sources.Registry
	enricher Enricher
	settings *config.Manager
	cache    *ttlcache.Cache[models.CatalogResponse]
}

func NewService(registry *sources.Registry, enricher Enricher, settings *config.Manager, cache *ttlcache.Cache[models.CatalogResponse]) *Service {
	return &Service{
		registry: registry,
		enricher: enricher,
		settings: settings,
		cache:    cache,
	}
}

// Request is one catalog page request as decoded from the route.
type Request struct {
	ListID string
	Kind   models.MediaKind
	Skip   int
	Genre  string
}

func cacheKey(req Request) string {
	key := fmt.Sprintf("%s_%s_%d", req.ListID, req.Kind, req.Skip)
	if req.Genre != "" {
		key += "_" + req.Genre
	}
	return key
}

// Resolve returns one catalog page. Provider failures degrade to an empty
// page; the response shape is always valid. Pages of watchlist ids are never
// cached, and a not-fetchable result is returned uncached and without client
// cache hints so recovered credentials take effect immediately.
func (s *Service) Resolve(ctx context.Context, req Request) models.CatalogResponse {
	cacheable := !listid.IsWatchlist(req.ListID)
	key := cacheKey(req)
	if cacheable {
		if resp, ok := s.cache.Get(key); ok {
			return resp
		}
	}

	settings, err := s.settings.Load()
	if err != nil {
		log.Printf("[catalog] load settings: %v", err)
		return models.CatalogResponse{Metas: []models.MetaItem{}}
	}

	resp, fetched := s.buildPage(ctx, req, settings)
	if !fetched || !cacheable {
		return resp
	}

	ttl := settings.Cache.CatalogTTLSeconds
	resp.CacheMaxAge = ttl
	resp.StaleRevalidate = ttl
	resp.StaleError = staleErrorSeconds
	s.cache.Set(key, resp, time.Duration(ttl)*time.Second)
	return resp
}

// ClearCache drops every cached page.
func (s *Service) ClearCache() {
	s.cache.Clear()
}

// buildPage fetches and shapes one window. The bool reports whether the list
// was fetchable at all; unfetchable pages must not be cached.
func (s *Service) buildPage(ctx context.Context, req Request, settings config.Settings) (models.CatalogResponse, bool) {
	empty := models.CatalogResponse{Metas: []models.MetaItem{}}

	src, ok := s.registry.Resolve(req.ListID)
	if !ok {
		return empty, false
	}

	pref, havePref := settings.Lists.Sort[req.ListID]
	if !havePref {
		pref = settings.Lists.Sort[listid.BaseID(req.ListID)]
	}

	raw, err := src.ListItems(ctx, sources.ItemsRequest{
		ListID: req.ListID,
		Kind:   req.Kind,
		Skip:   req.Skip,
		Limit:  DefaultPageSize,
		Sort:   pref.Sort,
		Order:  pref.Order,
		Genre:  req.Genre,
	})
	if err != nil {
		log.Printf("[catalog] list %s: %v", req.ListID, err)
		return empty, false
	}
	if raw == nil {
		return empty, false
	}

	metas := Normalize(raw, req.Kind)
	metas = Page(metas, DefaultPageSize)
	metas = s.enricher.Enrich(ctx, metas)
	if !raw.GenreFiltered {
		metas = FilterGenre(metas, req.Genre)
	}
	OverridePosters(metas, settings.Posters.BaseURL, settings.Posters.APIKey)
	if metas == nil {
		metas = []models.MetaItem{}
	}
	return models.CatalogResponse{Metas: metas}, true
}
