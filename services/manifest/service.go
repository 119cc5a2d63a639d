// Package manifest assembles the addon manifest from every configured source,
// applying the user's ordering, visibility and naming rules.
package manifest

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"listforge/config"
	"listforge/internal/listid"
	"listforge/models"
	"listforge/services/sources"
	"listforge/utils"
)

const manifestID = "community.listforge"

// Version is stamped into the manifest and reported by the version endpoint.
const Version = "0.1.0"

// genreOptions populates the genre dropdown for catalogs that advertise the
// genre extra.
var genreOptions = []string{
	"Action", "Adventure", "Animation", "Comedy", "Crime", "Documentary",
	"Drama", "Family", "Fantasy", "History", "Horror", "Music", "Mystery",
	"Romance", "Science Fiction", "Thriller", "War", "Western",
}

// Service builds and caches the manifest. Rebuilds inside the debounce window
// reuse the previous build, and concurrent cold rebuilds collapse into a
// single flight.
type Service struct {
	registry *sources.Registry
	settings *config.Manager

	group singleflight.Group

	mu      sync.Mutex
	current *models.Manifest
	builtAt time.Time
}

func NewService(registry *sources.Registry, settings *config.Manager) *Service {
	return &Service{registry: registry, settings: settings}
}

// Invalidate drops the cached manifest so the next request rebuilds. Handlers
// call this after any mutation that changes what the manifest advertises.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.current = nil
	s.builtAt = time.Time{}
	s.mu.Unlock()
}

// Build returns the manifest, rebuilding at most once per debounce window.
func (s *Service) Build(ctx context.Context) (*models.Manifest, error) {
	settings, err := s.settings.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	window := time.Duration(settings.Cache.ManifestDebounceSeconds) * time.Second

	if m := s.fresh(window); m != nil {
		return m, nil
	}

	v, err, _ := s.group.Do("manifest", func() (interface{}, error) {
		// a flight that finished while this caller queued counts as fresh
		if m := s.fresh(window); m != nil {
			return m, nil
		}
		m := s.build(ctx, settings)
		s.mu.Lock()
		s.current = m
		s.builtAt = time.Now()
		s.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Manifest), nil
}

func (s *Service) fresh(window time.Duration) *models.Manifest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && time.Since(s.builtAt) < window {
		return s.current
	}
	return nil
}

func (s *Service) build(ctx context.Context, settings config.Settings) *models.Manifest {
	var candidates []models.List
	seen := make(map[string]bool)
	for _, src := range s.registry.All() {
		lists, err := src.ListCatalogs(ctx)
		if err != nil {
			log.Printf("[manifest] source %s: %v", src.Kind(), err)
			continue
		}
		for _, l := range lists {
			if seen[l.ID] {
				continue
			}
			seen[l.ID] = true
			candidates = append(candidates, l)
		}
	}

	hidden := hiddenSet(settings.Lists.Hidden)
	rank := rankIndex(settings.Lists.Order)

	type entry struct {
		catalog models.ManifestCatalog
		rank    int
	}
	var entries []entry
	for _, l := range candidates {
		if hidden[l.ID] || hidden[listid.BaseID(l.ID)] {
			continue
		}

		name := EffectiveName(l, settings.Lists.CustomNames)

		r, ranked := rank[l.ID]
		if !ranked {
			r, ranked = rank[listid.BaseID(l.ID)]
		}
		if !ranked {
			r = len(rank)
		}

		for _, kind := range l.Kinds {
			entries = append(entries, entry{catalog: catalogRow(l, kind, name), rank: r})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].rank < entries[j].rank })

	catalogs := make([]models.ManifestCatalog, 0, len(entries))
	for _, e := range entries {
		catalogs = append(catalogs, e.catalog)
	}

	log.Printf("[manifest] built with %d catalogs from %d lists", len(catalogs), len(candidates))
	return &models.Manifest{
		ID:          manifestID,
		Version:     Version,
		Name:        settings.Manifest.Name,
		Description: settings.Manifest.Description,
		Resources:   []any{"catalog"},
		Types:       []string{string(models.MediaMovie), string(models.MediaSeries)},
		Catalogs:    catalogs,
		IDPrefixes:  []string{"tt"},
		BehaviorHints: map[string]bool{
			"configurable":          true,
			"configurationRequired": false,
		},
	}
}

// EffectiveName applies the custom-name override, matching composite ids via
// their base id, and sanitizes whatever wins. A name that sanitizes to
// nothing falls back to the list id. The list configuration API resolves
// names through the same rule so the two views never disagree.
func EffectiveName(l models.List, custom map[string]string) string {
	name := l.Name
	if v, ok := custom[l.ID]; ok && strings.TrimSpace(v) != "" {
		name = v
	} else if v, ok := custom[listid.BaseID(l.ID)]; ok && strings.TrimSpace(v) != "" {
		name = v
	}
	name = utils.SanitizeDisplayName(name)
	if name == "" {
		name = l.ID
	}
	return name
}

func catalogRow(l models.List, kind models.MediaKind, name string) models.ManifestCatalog {
	extra := []models.CatalogExtra{{Name: "skip"}}
	if l.SupportsGenre {
		extra = append(extra, models.CatalogExtra{Name: "genre", Options: genreOptions})
	}
	return models.ManifestCatalog{
		Type:  string(kind),
		ID:    l.ID,
		Name:  name,
		Extra: extra,
	}
}

func hiddenSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = true
		}
	}
	return set
}

func rankIndex(order []string) map[string]int {
	rank := make(map[string]int, len(order))
	for i, id := range order {
		if _, ok := rank[id]; !ok {
			rank[id] = i
		}
	}
	return rank
}
