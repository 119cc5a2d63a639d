// Package catalog turns raw provider lists into the catalog pages served to
// addon clients: canonical ids, one media-kind vocabulary, bounded windows.
package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"listforge/models"
)

// DefaultPageSize is the catalog window size; providers are asked for exactly
// this many items per page.
const DefaultPageSize = 100

// Normalize converts a raw list in either provider shape into canonical metas.
// Items without a derivable canonical id are dropped. kind, when set, filters
// the result to a single media kind.
func Normalize(raw *models.RawList, kind models.MediaKind) []models.MetaItem {
	if raw == nil {
		return nil
	}
	out := make([]models.MetaItem, 0, len(raw.Movies)+len(raw.Shows)+len(raw.Items))
	add := func(items []models.RawItem, fallback models.MediaKind) {
		for _, it := range items {
			id := canonicalID(it)
			if id == "" {
				continue
			}
			k := models.ParseMediaKind(it.Kind)
			if k == "" {
				k = fallback
			}
			if k == "" || (kind != "" && k != kind) {
				continue
			}
			out = append(out, models.MetaItem{
				ID:          id,
				Type:        string(k),
				Name:        it.Title,
				Poster:      it.Poster,
				Background:  it.Background,
				Description: it.Description,
				ReleaseInfo: releaseInfo(it),
				IMDBRating:  it.IMDBRating,
				Genres:      it.Genres,
				Runtime:     it.Runtime,
			})
		}
	}
	add(raw.Movies, models.MediaMovie)
	add(raw.Shows, models.MediaSeries)
	add(raw.Items, "")
	return out
}

// canonicalID picks the explicit IMDB id when present, else derives one from
// a bare-numeric alternate id. Anything else has no canonical form.
func canonicalID(it models.RawItem) string {
	id := strings.TrimSpace(it.ImdbID)
	if id == "" {
		id = strings.TrimSpace(it.ID)
	}
	switch {
	case id == "":
		return ""
	case strings.HasPrefix(id, "tt"):
		return id
	case allDigits(id):
		return "tt" + id
	default:
		return ""
	}
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func releaseInfo(it models.RawItem) string {
	if it.ReleaseInfo != "" {
		return it.ReleaseInfo
	}
	if it.Year > 0 {
		return strconv.Itoa(it.Year)
	}
	return ""
}

// Page clamps items to the window size. Adapters already position the window
// at the requested skip, so only the limit applies here.
func Page(items []models.MetaItem, limit int) []models.MetaItem {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if len(items) > limit {
		return items[:limit]
	}
	return items
}

// FilterGenre keeps items listing the genre, compared case-insensitively.
// When no item in the page carries genre data at all, the filter is a no-op
// rather than collapsing genre-less sources to empty pages.
func FilterGenre(items []models.MetaItem, genre string) []models.MetaItem {
	if genre == "" {
		return items
	}
	tagged := false
	for _, it := range items {
		if len(it.Genres) > 0 {
			tagged = true
			break
		}
	}
	if !tagged {
		return items
	}
	out := make([]models.MetaItem, 0, len(items))
	for _, it := range items {
		if hasGenre(it.Genres, genre) {
			out = append(out, it)
		}
	}
	return out
}

func hasGenre(genres []string, genre string) bool {
	for _, g := range genres {
		if strings.EqualFold(g, genre) {
			return true
		}
	}
	return false
}

// OverridePosters rewrites poster URLs through the rating-poster service for
// IMDB-identified items. Runs after enrichment so the override always wins.
func OverridePosters(items []models.MetaItem, baseURL, apiKey string) {
	if apiKey == "" || baseURL == "" {
		return
	}
	base := strings.TrimRight(baseURL, "/")
	for i := range items {
		if strings.HasPrefix(items[i].ID, "tt") {
			items[i].Poster = fmt.Sprintf("%s/%s/imdb/poster-default/%s.jpg", base, apiKey, items[i].ID)
		}
	}
}
