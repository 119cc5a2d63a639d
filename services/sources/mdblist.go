package sources

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"listforge/internal/listid"
	"listforge/models"
	"listforge/services/mdblist"
)

// hostedAPI is the slice of the MDBList client this adapter consumes.
type hostedAPI interface {
	HasKey() bool
	GetUserLists(ctx context.Context) ([]mdblist.ListSummary, error)
	GetExternalLists(ctx context.Context) ([]mdblist.ListSummary, error)
	GetListItems(ctx context.Context, listID string, external bool, q mdblist.ItemsQuery) (*models.RawList, error)
	GetWatchlistItems(ctx context.Context, q mdblist.ItemsQuery) (*models.RawList, error)
}

// MDBList adapts the hosted-list provider. Without an API key the source
// simply contributes nothing.
type MDBList struct {
	client hostedAPI
}

func NewMDBList(client hostedAPI) *MDBList {
	return &MDBList{client: client}
}

func (s *MDBList) Kind() models.SourceKind { return models.SourceMDBList }

func (s *MDBList) ListCatalogs(ctx context.Context) ([]models.List, error) {
	if !s.client.HasKey() {
		return nil, nil
	}
	owned, err := s.client.GetUserLists(ctx)
	if err != nil {
		return nil, fmt.Errorf("user lists: %w", err)
	}
	followed, err := s.client.GetExternalLists(ctx)
	if err != nil {
		return nil, fmt.Errorf("external lists: %w", err)
	}

	lists := []models.List{{
		ID:        listid.Watchlist,
		Name:      "Watchlist",
		Source:    models.SourceMDBList,
		Kinds:     bothKinds(),
		Watchlist: true,
	}}
	for _, l := range owned {
		lists = append(lists, models.List{
			ID:     strconv.Itoa(l.ID),
			Name:   l.Name,
			Source: models.SourceMDBList,
			Kinds:  kindsOf(l.MediaType),
		})
	}
	for _, l := range followed {
		lists = append(lists, models.List{
			ID:     listid.ExternalID(strconv.Itoa(l.ID)),
			Name:   l.Name,
			Source: models.SourceMDBList,
			Kinds:  kindsOf(l.MediaType),
		})
	}
	return lists, nil
}

func (s *MDBList) ListItems(ctx context.Context, req ItemsRequest) (*models.RawList, error) {
	q := mdblist.ItemsQuery{
		Limit:  req.Limit,
		Offset: req.Skip,
		Sort:   req.Sort,
		Order:  req.Order,
	}

	var (
		raw *models.RawList
		err error
	)
	switch parsed := listid.Parse(req.ListID); parsed.Kind {
	case listid.KindHostedWatchlist:
		raw, err = s.client.GetWatchlistItems(ctx, q)
	case listid.KindHostedList:
		raw, err = s.client.GetListItems(ctx, parsed.Ref, false, q)
	case listid.KindHostedExternal:
		raw, err = s.client.GetListItems(ctx, parsed.Ref, true, q)
	default:
		return nil, nil
	}

	switch {
	case err == nil:
		return raw, nil
	case errors.Is(err, mdblist.ErrNoAPIKey), errors.Is(err, mdblist.ErrNotFound):
		return nil, nil
	case errors.Is(err, mdblist.ErrInvalidKey), errors.Is(err, mdblist.ErrRateLimited):
		log.Printf("[sources] mdblist list %s not fetchable: %v", req.ListID, err)
		return nil, nil
	default:
		return nil, err
	}
}

func kindsOf(mediaType string) []models.MediaKind {
	if k := models.ParseMediaKind(mediaType); k != "" {
		return []models.MediaKind{k}
	}
	return bothKinds()
}

func bothKinds() []models.MediaKind {
	return []models.MediaKind{models.MediaMovie, models.MediaSeries}
}
