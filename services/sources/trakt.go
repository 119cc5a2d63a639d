package sources

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"listforge/config"
	"listforge/internal/listid"
	"listforge/models"
	"listforge/services/trakt"
)

// recommendationCap is the most items Trakt hands out per recommendations
// call; the endpoint has no paging, so this bounds the whole catalog.
const recommendationCap = 100

// virtualList is one of the fixed Trakt catalogs exposed next to the user's
// personal lists.
type virtualList struct {
	id        string
	name      string
	needsAuth bool
	watchlist bool
	genre     bool // server-side genre filtering available
}

var traktVirtuals = []virtualList{
	{id: listid.TraktWatchlist, name: "Trakt Watchlist", needsAuth: true, watchlist: true},
	{id: listid.TraktTrending, name: "Trakt Trending", genre: true},
	{id: listid.TraktPopular, name: "Trakt Popular", genre: true},
	{id: listid.TraktRecommendations, name: "Trakt Recommendations", needsAuth: true},
}

// traktAPI is the slice of the Trakt client this adapter consumes.
type traktAPI interface {
	EnsureValidToken(ctx context.Context, t config.TraktTokens) (config.TraktTokens, error)
	GetUserLists(ctx context.Context, accessToken string) ([]trakt.UserList, error)
	GetWatchlist(ctx context.Context, accessToken, mediaType string, page, limit int) ([]trakt.ListedItem, int, error)
	GetListItems(ctx context.Context, accessToken, listID, mediaType string, page, limit int) ([]trakt.ListedItem, int, error)
	GetTrending(ctx context.Context, mediaType string, page, limit int, genre string) ([]trakt.TrendingItem, error)
	GetPopular(ctx context.Context, mediaType string, page, limit int, genre string) ([]trakt.Movie, []trakt.Show, error)
	GetRecommendations(ctx context.Context, accessToken, mediaType string, limit int) ([]trakt.Movie, []trakt.Show, error)
}

// Trakt adapts the Trakt API. Public catalogs need only a configured app;
// the watchlist, recommendations and personal lists additionally need a user
// token, which is refreshed in place and persisted whenever it changes.
type Trakt struct {
	client   traktAPI
	settings *config.Manager
}

func NewTrakt(client traktAPI, settings *config.Manager) *Trakt {
	return &Trakt{client: client, settings: settings}
}

func (s *Trakt) Kind() models.SourceKind { return models.SourceTrakt }

// ensureToken loads the stored bundle, refreshes it when stale and persists
// any change, cleared fields included. Token fields are empty when the user
// is not, or no longer, authenticated.
func (s *Trakt) ensureToken(ctx context.Context) config.TraktTokens {
	settings, err := s.settings.Load()
	if err != nil {
		log.Printf("[sources] load settings: %v", err)
		return config.TraktTokens{}
	}
	current := settings.Trakt.TraktTokens
	if !current.HasToken() {
		return current
	}
	updated, err := s.client.EnsureValidToken(ctx, current)
	if updated != current {
		settings.Trakt.TraktTokens = updated
		if errors.Is(err, trakt.ErrAuthRejected) {
			settings.Trakt.Username = ""
		}
		if saveErr := s.settings.Save(settings); saveErr != nil {
			log.Printf("[sources] persist trakt tokens: %v", saveErr)
		}
	}
	return updated
}

func (s *Trakt) ListCatalogs(ctx context.Context) ([]models.List, error) {
	settings, err := s.settings.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if !settings.Trakt.HasApp() {
		return nil, nil
	}
	tokens := s.ensureToken(ctx)
	authed := tokens.HasToken()

	var lists []models.List
	for _, v := range traktVirtuals {
		if v.needsAuth && !authed {
			continue
		}
		lists = append(lists, models.List{
			ID:            v.id,
			Name:          v.name,
			Source:        models.SourceTrakt,
			Kinds:         bothKinds(),
			Watchlist:     v.watchlist,
			SupportsGenre: v.genre,
		})
	}
	if !authed {
		return lists, nil
	}

	// personal lists ride along; losing them must not take the virtuals down
	personal, err := s.client.GetUserLists(ctx, tokens.AccessToken)
	if err != nil {
		log.Printf("[sources] trakt user lists: %v", err)
		return lists, nil
	}
	for _, l := range personal {
		lists = append(lists, models.List{
			ID:     listid.TraktListID(strconv.Itoa(l.IDs.Trakt)),
			Name:   l.Name,
			Source: models.SourceTrakt,
			Kinds:  bothKinds(),
		})
	}
	return lists, nil
}

func (s *Trakt) ListItems(ctx context.Context, req ItemsRequest) (*models.RawList, error) {
	settings, err := s.settings.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if !settings.Trakt.HasApp() {
		return nil, nil
	}
	tokens := s.ensureToken(ctx)
	authed := tokens.HasToken()
	genre := genreSlug(req.Genre)

	var items []models.RawItem
	genreFiltered := false
	switch parsed := listid.Parse(req.ListID); parsed.Kind {
	case listid.KindTraktWatchlist:
		if !authed {
			return nil, nil
		}
		items, err = pagedWindow(req.Skip, req.Limit, func(page, limit int) ([]models.RawItem, error) {
			listed, _, err := s.client.GetWatchlist(ctx, tokens.AccessToken, mediaTypeOf(req.Kind), page, limit)
			return listedToRaw(listed), err
		})
	case listid.KindTraktUserList:
		if !authed {
			return nil, nil
		}
		items, err = pagedWindow(req.Skip, req.Limit, func(page, limit int) ([]models.RawItem, error) {
			listed, _, err := s.client.GetListItems(ctx, tokens.AccessToken, parsed.Ref, mediaTypeOf(req.Kind), page, limit)
			return listedToRaw(listed), err
		})
	case listid.KindTraktTrending:
		genreFiltered = genre != ""
		items, err = pagedWindow(req.Skip, req.Limit, func(page, limit int) ([]models.RawItem, error) {
			trending, err := s.client.GetTrending(ctx, typedEndpoint(req.Kind), page, limit, genre)
			return trendingToRaw(trending), err
		})
	case listid.KindTraktPopular:
		genreFiltered = genre != ""
		items, err = pagedWindow(req.Skip, req.Limit, func(page, limit int) ([]models.RawItem, error) {
			movies, shows, err := s.client.GetPopular(ctx, typedEndpoint(req.Kind), page, limit, genre)
			return bareToRaw(movies, shows), err
		})
	case listid.KindTraktRecommendations:
		if !authed {
			return nil, nil
		}
		items, err = s.recommendationsWindow(ctx, tokens.AccessToken, req)
	default:
		return nil, nil
	}

	switch {
	case err == nil:
		return &models.RawList{Items: items, GenreFiltered: genreFiltered}, nil
	case errors.Is(err, trakt.ErrAuthRejected), errors.Is(err, trakt.ErrRateLimited):
		log.Printf("[sources] trakt list %s not fetchable: %v", req.ListID, err)
		return nil, nil
	default:
		return nil, err
	}
}

// recommendationsWindow slices the unpaged recommendations feed locally.
func (s *Trakt) recommendationsWindow(ctx context.Context, accessToken string, req ItemsRequest) ([]models.RawItem, error) {
	want := req.Skip + req.Limit
	if want > recommendationCap {
		want = recommendationCap
	}
	if req.Skip >= want {
		return nil, nil
	}
	movies, shows, err := s.client.GetRecommendations(ctx, accessToken, typedEndpoint(req.Kind), want)
	if err != nil {
		return nil, err
	}
	items := bareToRaw(movies, shows)
	if req.Skip >= len(items) {
		return nil, nil
	}
	items = items[req.Skip:]
	if len(items) > req.Limit {
		items = items[:req.Limit]
	}
	return items, nil
}

// pagedWindow maps an item offset onto Trakt's 1-based pages and returns
// exactly the window [skip, skip+limit). A skip that does not land on a page
// boundary stitches two adjacent pages.
func pagedWindow(skip, limit int, fetch func(page, limit int) ([]models.RawItem, error)) ([]models.RawItem, error) {
	page := skip/limit + 1
	drop := skip % limit
	items, err := fetch(page, limit)
	if err != nil {
		return nil, err
	}
	if drop == 0 {
		return items, nil
	}
	if len(items) == limit {
		next, err := fetch(page+1, limit)
		if err != nil {
			return nil, err
		}
		items = append(items, next...)
	}
	if drop >= len(items) {
		return nil, nil
	}
	items = items[drop:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func listedToRaw(listed []trakt.ListedItem) []models.RawItem {
	out := make([]models.RawItem, 0, len(listed))
	for _, it := range listed {
		switch {
		case it.Movie != nil:
			out = append(out, movieToRaw(*it.Movie))
		case it.Show != nil:
			out = append(out, showToRaw(*it.Show))
		}
	}
	return out
}

func trendingToRaw(trending []trakt.TrendingItem) []models.RawItem {
	out := make([]models.RawItem, 0, len(trending))
	for _, it := range trending {
		switch {
		case it.Movie != nil:
			out = append(out, movieToRaw(*it.Movie))
		case it.Show != nil:
			out = append(out, showToRaw(*it.Show))
		}
	}
	return out
}

func bareToRaw(movies []trakt.Movie, shows []trakt.Show) []models.RawItem {
	out := make([]models.RawItem, 0, len(movies)+len(shows))
	for _, m := range movies {
		out = append(out, movieToRaw(m))
	}
	for _, sh := range shows {
		out = append(out, showToRaw(sh))
	}
	return out
}

func movieToRaw(m trakt.Movie) models.RawItem {
	return models.RawItem{
		ID:     strconv.Itoa(m.IDs.Trakt),
		ImdbID: m.IDs.IMDB,
		Title:  m.Title,
		Year:   m.Year,
		Kind:   string(models.MediaMovie),
	}
}

func showToRaw(sh trakt.Show) models.RawItem {
	return models.RawItem{
		ID:     strconv.Itoa(sh.IDs.Trakt),
		ImdbID: sh.IDs.IMDB,
		Title:  sh.Title,
		Year:   sh.Year,
		Kind:   string(models.MediaSeries),
	}
}

// mediaTypeOf converts a catalog kind to Trakt's path spelling on endpoints
// where the type segment is optional.
func mediaTypeOf(kind models.MediaKind) string {
	switch kind {
	case models.MediaMovie:
		return "movies"
	case models.MediaSeries:
		return "shows"
	}
	return ""
}

// typedEndpoint is mediaTypeOf for endpoints that require a type segment.
func typedEndpoint(kind models.MediaKind) string {
	if mt := mediaTypeOf(kind); mt != "" {
		return mt
	}
	return "movies"
}

// genreSlug converts a display genre to Trakt's slug form.
func genreSlug(genre string) string {
	if genre == "" {
		return ""
	}
	var words []string
	for _, w := range strings.Fields(strings.ToLower(genre)) {
		if w == "&" {
			continue
		}
		words = append(words, w)
	}
	return strings.Join(words, "-")
}
