package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"listforge/config"
	"listforge/internal/ttlcache"
	"listforge/models"
	"listforge/services/sources"
)

// fakeSource serves one canned window and counts fetches.
type fakeSource struct {
	kind  models.SourceKind
	raw   *models.RawList
	err   error
	calls int
	last  sources.ItemsRequest
}

func (f *fakeSource) Kind() models.SourceKind { return f.kind }

func (f *fakeSource) ListCatalogs(context.Context) ([]models.List, error) { return nil, nil }

func (f *fakeSource) ListItems(_ context.Context, req sources.ItemsRequest) (*models.RawList, error) {
	f.calls++
	f.last = req
	return f.raw, f.err
}

// passEnricher passes items through and records the pages it saw.
type passEnricher struct {
	pages [][]models.MetaItem
}

func (e *passEnricher) Enrich(_ context.Context, items []models.MetaItem) []models.MetaItem {
	e.pages = append(e.pages, items)
	return items
}

func newTestService(t *testing.T, src sources.Source) (*Service, *passEnricher, *config.Manager) {
	t.Helper()
	mgr := config.NewManager(filepath.Join(t.TempDir(), "settings.json"))
	if _, err := mgr.Load(); err != nil {
		t.Fatalf("load settings: %v", err)
	}
	cache := ttlcache.New[models.CatalogResponse](time.Minute)
	t.Cleanup(cache.Stop)
	enricher := &passEnricher{}
	return NewService(sources.NewRegistry(src), enricher, mgr, cache), enricher, mgr
}

func TestResolveCachesInsideTTL(t *testing.T) {
	src := &fakeSource{
		kind: models.SourceMDBList,
		raw:  &models.RawList{Items: []models.RawItem{{ImdbID: "tt1", Kind: "movie", Title: "One"}}},
	}
	svc, _, _ := newTestService(t, src)

	req := Request{ListID: "42", Kind: models.MediaMovie}
	first := svc.Resolve(context.Background(), req)
	second := svc.Resolve(context.Background(), req)
	if src.calls != 1 {
		t.Fatalf("adapter calls = %d, want 1", src.calls)
	}
	if len(first.Metas) != 1 || len(second.Metas) != 1 {
		t.Fatalf("metas = %d / %d", len(first.Metas), len(second.Metas))
	}
	if first.CacheMaxAge == 0 || second.CacheMaxAge != first.CacheMaxAge {
		t.Fatalf("cache hints differ: %d / %d", first.CacheMaxAge, second.CacheMaxAge)
	}
}

func TestResolveWatchlistNeverCached(t *testing.T) {
	src := &fakeSource{kind: models.SourceMDBList, raw: &models.RawList{}}
	svc, _, _ := newTestService(t, src)

	req := Request{ListID: "watchlist", Kind: models.MediaMovie}
	first := svc.Resolve(context.Background(), req)
	svc.Resolve(context.Background(), req)
	if src.calls != 2 {
		t.Fatalf("adapter calls = %d, want 2", src.calls)
	}
	if first.CacheMaxAge != 0 {
		t.Fatalf("watchlist response advertises caching: %+v", first)
	}
}

func TestResolveNotFetchableNotCached(t *testing.T) {
	src := &fakeSource{kind: models.SourceMDBList}
	svc, _, _ := newTestService(t, src)

	req := Request{ListID: "42", Kind: models.MediaMovie}
	first := svc.Resolve(context.Background(), req)
	svc.Resolve(context.Background(), req)
	if src.calls != 2 {
		t.Fatalf("adapter calls = %d, want 2", src.calls)
	}
	if len(first.Metas) != 0 || first.CacheMaxAge != 0 {
		t.Fatalf("not-fetchable response = %+v", first)
	}
}

func TestResolveSoftFailureEmptyPage(t *testing.T) {
	src := &fakeSource{kind: models.SourceMDBList, err: errors.New("boom")}
	svc, _, _ := newTestService(t, src)

	resp := svc.Resolve(context.Background(), Request{ListID: "42", Kind: models.MediaMovie})
	if resp.Metas == nil || len(resp.Metas) != 0 {
		t.Fatalf("metas = %#v, want empty non-nil", resp.Metas)
	}
}

func TestResolveUnroutableID(t *testing.T) {
	src := &fakeSource{kind: models.SourceMDBList, raw: &models.RawList{}}
	svc, _, _ := newTestService(t, src)

	resp := svc.Resolve(context.Background(), Request{ListID: "trakt_trending", Kind: models.MediaMovie})
	if src.calls != 0 {
		t.Fatalf("adapter calls = %d for a foreign id", src.calls)
	}
	if len(resp.Metas) != 0 {
		t.Fatalf("metas = %+v", resp.Metas)
	}
}

func TestResolveEnrichesOnlyThePage(t *testing.T) {
	items := make([]models.RawItem, 130)
	for i := range items {
		items[i] = models.RawItem{ImdbID: fmt.Sprintf("tt%d", i+1), Kind: "movie"}
	}
	src := &fakeSource{kind: models.SourceMDBList, raw: &models.RawList{Items: items}}
	svc, enricher, _ := newTestService(t, src)

	resp := svc.Resolve(context.Background(), Request{ListID: "42", Kind: models.MediaMovie})
	if len(resp.Metas) != DefaultPageSize {
		t.Fatalf("page = %d items, want %d", len(resp.Metas), DefaultPageSize)
	}
	if len(enricher.pages) != 1 || len(enricher.pages[0]) != DefaultPageSize {
		t.Fatalf("enricher saw %d pages", len(enricher.pages))
	}
}

func TestResolveForwardsSortPreference(t *testing.T) {
	src := &fakeSource{kind: models.SourceMDBList, raw: &models.RawList{}}
	svc, _, mgr := newTestService(t, src)

	settings, _ := mgr.Load()
	settings.Lists.Sort = map[string]config.SortPreference{"42": {Sort: "added", Order: "desc"}}
	if err := mgr.Save(settings); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	svc.Resolve(context.Background(), Request{ListID: "42", Kind: models.MediaMovie, Skip: 100})
	if src.last.Sort != "added" || src.last.Order != "desc" {
		t.Errorf("sort not forwarded: %+v", src.last)
	}
	if src.last.Skip != 100 || src.last.Limit != DefaultPageSize {
		t.Errorf("window not forwarded: %+v", src.last)
	}
}

func TestResolveLocalGenreFilter(t *testing.T) {
	src := &fakeSource{kind: models.SourceMDBList, raw: &models.RawList{Items: []models.RawItem{
		{ImdbID: "tt1", Kind: "movie", Genres: []string{"Drama"}},
		{ImdbID: "tt2", Kind: "movie", Genres: []string{"Comedy"}},
	}}}
	svc, _, _ := newTestService(t, src)

	resp := svc.Resolve(context.Background(), Request{ListID: "42", Kind: models.MediaMovie, Genre: "Comedy"})
	if len(resp.Metas) != 1 || resp.Metas[0].ID != "tt2" {
		t.Fatalf("metas = %+v", resp.Metas)
	}
}

func TestResolveSkipsLocalFilterWhenPushedDown(t *testing.T) {
	src := &fakeSource{kind: models.SourceTrakt, raw: &models.RawList{
		Items:         []models.RawItem{{ImdbID: "tt1", Kind: "movie", Genres: []string{"Thriller"}}},
		GenreFiltered: true,
	}}
	svc, _, _ := newTestService(t, src)

	resp := svc.Resolve(context.Background(), Request{ListID: "trakt_trending", Kind: models.MediaMovie, Genre: "Science Fiction"})
	if len(resp.Metas) != 1 {
		t.Fatalf("pushed-down genre page was refiltered away: %+v", resp.Metas)
	}
}

func TestResolveGenreVariantsCachedSeparately(t *testing.T) {
	src := &fakeSource{kind: models.SourceMDBList, raw: &models.RawList{}}
	svc, _, _ := newTestService(t, src)

	svc.Resolve(context.Background(), Request{ListID: "42", Kind: models.MediaMovie})
	svc.Resolve(context.Background(), Request{ListID: "42", Kind: models.MediaMovie, Genre: "Drama"})
	if src.calls != 2 {
		t.Fatalf("adapter calls = %d, want one per genre variant", src.calls)
	}
}

func TestClearCache(t *testing.T) {
	src := &fakeSource{kind: models.SourceMDBList, raw: &models.RawList{}}
	svc, _, _ := newTestService(t, src)

	req := Request{ListID: "42", Kind: models.MediaMovie}
	svc.Resolve(context.Background(), req)
	svc.ClearCache()
	svc.Resolve(context.Background(), req)
	if src.calls != 2 {
		t.Fatalf("adapter calls = %d after clear, want 2", src.calls)
	}
}
