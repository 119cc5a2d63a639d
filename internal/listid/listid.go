// Package listid defines the catalog id scheme. All parsing and building of
// ids lives here so the rest of the code never string-matches prefixes itself.
//
// The scheme:
//
//	105937                user-owned hosted list (decimal)
//	ext_105937            followed hosted list
//	watchlist             hosted watchlist
//	trakt_watchlist       Trakt watchlist
//	trakt_trending        Trakt trending
//	trakt_popular         Trakt popular
//	trakt_recommendations Trakt recommendations
//	trakt_list_2281705    Trakt personal list
//	anything else         catalog of an imported addon
//
// Imported catalog ids that would collide get a "_<n>_<type>" suffix.
package listid

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind classifies a catalog id by the source family that serves it.
type Kind int

const (
	KindImported Kind = iota
	KindHostedList
	KindHostedExternal
	KindHostedWatchlist
	KindTraktWatchlist
	KindTraktTrending
	KindTraktPopular
	KindTraktRecommendations
	KindTraktUserList
)

const (
	Watchlist            = "watchlist"
	TraktWatchlist       = "trakt_watchlist"
	TraktTrending        = "trakt_trending"
	TraktPopular         = "trakt_popular"
	TraktRecommendations = "trakt_recommendations"

	extPrefix       = "ext_"
	traktListPrefix = "trakt_list_"
)

var (
	numericRe   = regexp.MustCompile(`^\d+$`)
	compositeRe = regexp.MustCompile(`_\d+_(movie|series)$`)
)

// Parsed is the decoded form of a catalog id. Ref carries the provider-side
// reference where one exists: the numeric list id for hosted lists, the Trakt
// list id for personal lists.
type Parsed struct {
	Kind Kind
	Raw  string
	Ref  string
}

// Parse decodes id. Ids not matching any reserved pattern come back as
// KindImported; whether such an id actually belongs to an imported addon is
// for the caller to resolve.
func Parse(id string) Parsed {
	switch id {
	case Watchlist:
		return Parsed{Kind: KindHostedWatchlist, Raw: id}
	case TraktWatchlist:
		return Parsed{Kind: KindTraktWatchlist, Raw: id}
	case TraktTrending:
		return Parsed{Kind: KindTraktTrending, Raw: id}
	case TraktPopular:
		return Parsed{Kind: KindTraktPopular, Raw: id}
	case TraktRecommendations:
		return Parsed{Kind: KindTraktRecommendations, Raw: id}
	}
	if rest, ok := strings.CutPrefix(id, traktListPrefix); ok && rest != "" {
		return Parsed{Kind: KindTraktUserList, Raw: id, Ref: rest}
	}
	if rest, ok := strings.CutPrefix(id, extPrefix); ok && numericRe.MatchString(rest) {
		return Parsed{Kind: KindHostedExternal, Raw: id, Ref: rest}
	}
	if numericRe.MatchString(id) {
		return Parsed{Kind: KindHostedList, Raw: id, Ref: id}
	}
	return Parsed{Kind: KindImported, Raw: id}
}

// ExternalID builds the id of a followed hosted list.
func ExternalID(ref string) string {
	return extPrefix + ref
}

// TraktListID builds the id of a Trakt personal list.
func TraktListID(ref string) string {
	return traktListPrefix + ref
}

// Composite builds a collision-suffixed imported catalog id.
func Composite(base string, n int, mediaType string) string {
	return base + "_" + strconv.Itoa(n) + "_" + mediaType
}

// BaseID strips a collision suffix and the ext_/trakt_list_ prefixes, if any,
// so composite ids match user rules written against the plain id. Reserved
// virtual ids (watchlist, trakt_trending, ...) are returned unchanged. Callers
// always try the exact id first; the base id only widens the match.
func BaseID(id string) string {
	id = compositeRe.ReplaceAllString(id, "")
	if rest, ok := strings.CutPrefix(id, traktListPrefix); ok && rest != "" {
		return rest
	}
	if rest, ok := strings.CutPrefix(id, extPrefix); ok && numericRe.MatchString(rest) {
		return rest
	}
	return id
}

// IsWatchlist reports whether id names a watchlist. Watchlist content shifts
// with every user action, so these ids are never cached.
func IsWatchlist(id string) bool {
	return id == Watchlist || id == TraktWatchlist
}

// IsReserved reports whether id matches a pattern served by a built-in
// source. Imported catalogs must not shadow these.
func IsReserved(id string) bool {
	return Parse(id).Kind != KindImported
}
