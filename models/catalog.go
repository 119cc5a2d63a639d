package models

// SourceKind identifies the provider family a list belongs to.
type SourceKind string

const (
	SourceMDBList SourceKind = "mdblist"
	SourceTrakt   SourceKind = "trakt"
	SourceAddon   SourceKind = "addon"
)

// MediaKind is the content type a catalog serves.
type MediaKind string

const (
	MediaMovie  MediaKind = "movie"
	MediaSeries MediaKind = "series"
)

// ParseMediaKind maps provider media-type spellings onto the two canonical kinds.
// Returns "" for kinds that have no catalog representation.
func ParseMediaKind(s string) MediaKind {
	switch s {
	case "movie", "movies":
		return MediaMovie
	case "series", "show", "shows", "tv":
		return MediaSeries
	}
	return ""
}

// List is one list a source exposes, before any user-level rules are applied.
type List struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Source        SourceKind  `json:"source"`
	Kinds         []MediaKind `json:"kinds"`
	Watchlist     bool        `json:"watchlist,omitempty"`     // content changes too often to cache
	SupportsGenre bool        `json:"supportsGenre,omitempty"` // advertises the genre extra in the manifest
}

// RawItem is a provider item before id canonicalization. Adapters map their
// provider's wire shape onto this; only ID/ImdbID/Kind are load-bearing, the
// rest is carried so already-known fields survive when enrichment comes back
// empty.
type RawItem struct {
	ID          string
	ImdbID      string
	Title       string
	Year        int
	Kind        string
	Poster      string
	Background  string
	Description string
	ReleaseInfo string
	IMDBRating  string
	Genres      []string
	Runtime     string
}

// RawList carries a source's items in whichever shape the provider uses:
// split by kind (Movies/Shows) or flat (Items) with per-item kinds.
// GenreFiltered marks windows the provider already narrowed by genre, so the
// local post-filter must not run a second time over renamed genre labels.
type RawList struct {
	Movies        []RawItem
	Shows         []RawItem
	Items         []RawItem
	GenreFiltered bool
}

// Empty reports whether the list holds no items in any shape.
func (r *RawList) Empty() bool {
	return r == nil || len(r.Movies)+len(r.Shows)+len(r.Items) == 0
}

// MetaItem is a catalog entry in the shape addon clients consume.
type MetaItem struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Name        string   `json:"name"`
	Poster      string   `json:"poster,omitempty"`
	Background  string   `json:"background,omitempty"`
	Description string   `json:"description,omitempty"`
	ReleaseInfo string   `json:"releaseInfo,omitempty"`
	IMDBRating  string   `json:"imdbRating,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Runtime     string   `json:"runtime,omitempty"`
}

// CatalogResponse is the catalog endpoint payload. The cache hints are in
// seconds and omitted entirely for never-cached catalogs.
type CatalogResponse struct {
	Metas           []MetaItem `json:"metas"`
	CacheMaxAge     int        `json:"cacheMaxAge,omitempty"`
	StaleRevalidate int        `json:"staleRevalidate,omitempty"`
	StaleError      int        `json:"staleError,omitempty"`
}
