// Package sources holds the per-provider list adapters behind one capability
// interface, plus the registry that routes a catalog id to the adapter that
// owns it.
package sources

import (
	"context"

	"listforge/internal/listid"
	"listforge/models"
)

// ItemsRequest selects one page of one list. Kind narrows mixed lists to a
// single media kind; an empty Kind fetches everything. Sort, Order and Genre
// are forwarded to providers that understand them and ignored elsewhere.
type ItemsRequest struct {
	ListID string
	Kind   models.MediaKind
	Skip   int
	Limit  int
	Sort   string
	Order  string
	Genre  string
}

// Source is the uniform capability every provider adapter implements.
//
// ListCatalogs enumerates the lists currently visible to the configured
// account, virtual lists included. Missing credentials yield (nil, nil); a
// provider failure yields (nil, err) which callers treat as "this source
// contributes nothing right now" and log.
//
// ListItems fetches the requested window of a list. The tri-state result:
//
//	nil, nil      not fetchable (no credentials, unknown list, rate limited)
//	&RawList{..}, nil  fetched; may be empty
//	nil, err      provider failure, caller logs and serves an empty page
//
// Adapters push Skip down to the provider when it paginates server-side and
// slice locally otherwise, so the returned window always starts at Skip.
type Source interface {
	Kind() models.SourceKind
	ListCatalogs(ctx context.Context) ([]models.List, error)
	ListItems(ctx context.Context, req ItemsRequest) (*models.RawList, error)
}

// Registry routes catalog ids to their owning adapter via the id scheme.
type Registry struct {
	byKind map[models.SourceKind]Source
	order  []Source
}

func NewRegistry(srcs ...Source) *Registry {
	r := &Registry{byKind: make(map[models.SourceKind]Source, len(srcs))}
	for _, s := range srcs {
		if s == nil {
			continue
		}
		r.byKind[s.Kind()] = s
		r.order = append(r.order, s)
	}
	return r
}

// All returns the registered sources in registration order.
func (r *Registry) All() []Source {
	return r.order
}

// Resolve returns the adapter that serves listID. Ids outside every reserved
// pattern belong to the imported-addon adapter; whether that adapter actually
// carries the catalog is its own business and surfaces as "not fetchable".
func (r *Registry) Resolve(listID string) (Source, bool) {
	var family models.SourceKind
	switch listid.Parse(listID).Kind {
	case listid.KindHostedList, listid.KindHostedExternal, listid.KindHostedWatchlist:
		family = models.SourceMDBList
	case listid.KindTraktWatchlist, listid.KindTraktTrending, listid.KindTraktPopular,
		listid.KindTraktRecommendations, listid.KindTraktUserList:
		family = models.SourceTrakt
	default:
		family = models.SourceAddon
	}
	s, ok := r.byKind[family]
	return s, ok
}
