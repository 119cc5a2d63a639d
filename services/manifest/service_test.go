package manifest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listforge/config"
	"listforge/models"
	"listforge/services/sources"
)

type listSource struct {
	kind  models.SourceKind
	lists []models.List
	err   error
	calls int
}

func (f *listSource) Kind() models.SourceKind { return f.kind }

func (f *listSource) ListCatalogs(context.Context) ([]models.List, error) {
	f.calls++
	return f.lists, f.err
}

func (f *listSource) ListItems(context.Context, sources.ItemsRequest) (*models.RawList, error) {
	return nil, nil
}

func movieList(id, name string) models.List {
	return models.List{
		ID:     id,
		Name:   name,
		Source: models.SourceMDBList,
		Kinds:  []models.MediaKind{models.MediaMovie},
	}
}

func newTestService(t *testing.T, mutate func(*config.Settings), srcs ...sources.Source) *Service {
	t.Helper()
	mgr := config.NewManager(filepath.Join(t.TempDir(), "settings.json"))
	settings, err := mgr.Load()
	require.NoError(t, err)
	if mutate != nil {
		mutate(&settings)
		require.NoError(t, mgr.Save(settings))
	}
	return NewService(sources.NewRegistry(srcs...), mgr)
}

func catalogIDs(m *models.Manifest) []string {
	ids := make([]string, 0, len(m.Catalogs))
	for _, c := range m.Catalogs {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestBuildFixedFields(t *testing.T) {
	svc := newTestService(t, nil, &listSource{kind: models.SourceMDBList})

	m, err := svc.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "community.listforge", m.ID)
	assert.Equal(t, Version, m.Version)
	assert.Equal(t, "ListForge", m.Name)
	assert.Equal(t, []any{"catalog"}, m.Resources)
	assert.Equal(t, []string{"movie", "series"}, m.Types)
	assert.Equal(t, []string{"tt"}, m.IDPrefixes)
	assert.True(t, m.BehaviorHints["configurable"])
	assert.False(t, m.BehaviorHints["configurationRequired"])
}

func TestBuildOrdersByUserRank(t *testing.T) {
	src := &listSource{
		kind: models.SourceMDBList,
		lists: []models.List{
			movieList("a", "List A"),
			movieList("b", "List B"),
			movieList("c", "List C"),
		},
	}
	svc := newTestService(t, func(s *config.Settings) {
		s.Lists.Order = []string{"b", "a"}
	}, src)

	m, err := svc.Build(context.Background())
	require.NoError(t, err)

	// ranked lists first in the user's order, unranked keep source order
	assert.Equal(t, []string{"b", "a", "c"}, catalogIDs(m))
}

func TestBuildHiddenNeverEmitted(t *testing.T) {
	src := &listSource{
		kind: models.SourceAddon,
		lists: []models.List{
			movieList("top_1_movie", "Top (addon one)"),
			movieList("fresh", "Fresh"),
		},
	}
	svc := newTestService(t, func(s *config.Settings) {
		// hiding the base id hides every composite variant of it
		s.Lists.Hidden = []string{"top"}
	}, src)

	m, err := svc.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"fresh"}, catalogIDs(m))
}

func TestBuildCustomNames(t *testing.T) {
	src := &listSource{
		kind: models.SourceMDBList,
		lists: []models.List{
			movieList("105937", "latest-certified-fresh"),
			movieList("watchlist", "Watchlist"),
		},
	}
	svc := newTestService(t, func(s *config.Settings) {
		s.Lists.CustomNames = map[string]string{"105937": "Certified Fresh 🍅"}
	}, src)

	m, err := svc.Build(context.Background())
	require.NoError(t, err)

	require.Len(t, m.Catalogs, 2)
	assert.Equal(t, "Certified Fresh", m.Catalogs[0].Name)
	assert.Equal(t, "Watchlist", m.Catalogs[1].Name)
}

func TestBuildPerKindFanOut(t *testing.T) {
	src := &listSource{
		kind: models.SourceTrakt,
		lists: []models.List{{
			ID:            "trakt_trending",
			Name:          "Trending",
			Source:        models.SourceTrakt,
			Kinds:         []models.MediaKind{models.MediaMovie, models.MediaSeries},
			SupportsGenre: true,
		}},
	}
	svc := newTestService(t, nil, src)

	m, err := svc.Build(context.Background())
	require.NoError(t, err)

	require.Len(t, m.Catalogs, 2)
	assert.Equal(t, "movie", m.Catalogs[0].Type)
	assert.Equal(t, "series", m.Catalogs[1].Type)
	for _, c := range m.Catalogs {
		assert.Equal(t, "trakt_trending", c.ID)
		assert.Equal(t, "Trending", c.Name)
		require.Len(t, c.Extra, 2)
		assert.Equal(t, "skip", c.Extra[0].Name)
		assert.Equal(t, "genre", c.Extra[1].Name)
		assert.NotEmpty(t, c.Extra[1].Options)
	}
}

func TestBuildSkipExtraAlways(t *testing.T) {
	svc := newTestService(t, nil, &listSource{
		kind:  models.SourceMDBList,
		lists: []models.List{movieList("9", "Plain")},
	})

	m, err := svc.Build(context.Background())
	require.NoError(t, err)

	require.Len(t, m.Catalogs, 1)
	require.Len(t, m.Catalogs[0].Extra, 1)
	assert.Equal(t, "skip", m.Catalogs[0].Extra[0].Name)
}

func TestBuildSourceFailureTolerated(t *testing.T) {
	down := &listSource{kind: models.SourceTrakt, err: errors.New("api unreachable")}
	up := &listSource{
		kind:  models.SourceMDBList,
		lists: []models.List{movieList("105937", "Still Here")},
	}
	svc := newTestService(t, nil, down, up)

	m, err := svc.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"105937"}, catalogIDs(m))
}

func TestBuildDedupesAcrossSources(t *testing.T) {
	first := &listSource{
		kind:  models.SourceMDBList,
		lists: []models.List{movieList("shared", "First Wins")},
	}
	second := &listSource{
		kind:  models.SourceAddon,
		lists: []models.List{movieList("shared", "Second Loses"), movieList("extra", "Extra")},
	}
	svc := newTestService(t, nil, first, second)

	m, err := svc.Build(context.Background())
	require.NoError(t, err)

	require.Len(t, m.Catalogs, 2)
	assert.Equal(t, "First Wins", m.Catalogs[0].Name)
	assert.Equal(t, "extra", m.Catalogs[1].ID)
}

func TestBuildDebounce(t *testing.T) {
	src := &listSource{
		kind:  models.SourceMDBList,
		lists: []models.List{movieList("1", "One")},
	}
	svc := newTestService(t, nil, src)

	first, err := svc.Build(context.Background())
	require.NoError(t, err)
	second, err := svc.Build(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, src.calls)
}

func TestInvalidateForcesRebuild(t *testing.T) {
	src := &listSource{
		kind:  models.SourceMDBList,
		lists: []models.List{movieList("1", "One")},
	}
	svc := newTestService(t, nil, src)

	first, err := svc.Build(context.Background())
	require.NoError(t, err)

	svc.Invalidate()

	second, err := svc.Build(context.Background())
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, src.calls)
}
