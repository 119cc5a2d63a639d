package sources

import (
	"context"

	"listforge/config"
	"listforge/models"
)

// addonCatalogs is the slice of the addons service this adapter consumes.
type addonCatalogs interface {
	Imported() []config.ImportedAddon
	FindCatalog(catalogID string, kind models.MediaKind) (config.ImportedAddon, config.ImportedCatalog, bool)
	FetchCatalog(ctx context.Context, addon config.ImportedAddon, cat config.ImportedCatalog, skip int, genre string) (*models.RawList, error)
}

// Addon adapts imported third-party catalogs. All list metadata is local
// state, so only item fetches can fail.
type Addon struct {
	svc addonCatalogs
}

func NewAddon(svc addonCatalogs) *Addon {
	return &Addon{svc: svc}
}

func (s *Addon) Kind() models.SourceKind { return models.SourceAddon }

func (s *Addon) ListCatalogs(ctx context.Context) ([]models.List, error) {
	var lists []models.List
	index := make(map[string]int)
	for _, a := range s.svc.Imported() {
		for _, c := range a.Catalogs {
			kind := models.ParseMediaKind(c.Type)
			if kind == "" {
				continue
			}
			if i, ok := index[c.ID]; ok {
				// same catalog id serving another kind
				if !hasKind(lists[i].Kinds, kind) {
					lists[i].Kinds = append(lists[i].Kinds, kind)
				}
				if c.SupportsGenre {
					lists[i].SupportsGenre = true
				}
				continue
			}
			index[c.ID] = len(lists)
			lists = append(lists, models.List{
				ID:            c.ID,
				Name:          c.Name,
				Source:        models.SourceAddon,
				Kinds:         []models.MediaKind{kind},
				SupportsGenre: c.SupportsGenre,
			})
		}
	}
	return lists, nil
}

func (s *Addon) ListItems(ctx context.Context, req ItemsRequest) (*models.RawList, error) {
	addon, cat, ok := s.svc.FindCatalog(req.ListID, req.Kind)
	if !ok {
		return nil, nil
	}
	raw, err := s.svc.FetchCatalog(ctx, addon, cat, req.Skip, req.Genre)
	if err != nil {
		return nil, err
	}
	raw.GenreFiltered = req.Genre != "" && cat.SupportsGenre
	// upstreams without skip support answer from the top; slice locally
	if req.Skip > 0 && !cat.SupportsSkip {
		if req.Skip >= len(raw.Items) {
			return &models.RawList{}, nil
		}
		raw.Items = raw.Items[req.Skip:]
	}
	if req.Limit > 0 && len(raw.Items) > req.Limit {
		raw.Items = raw.Items[:req.Limit]
	}
	return raw, nil
}

func hasKind(kinds []models.MediaKind, k models.MediaKind) bool {
	for _, have := range kinds {
		if have == k {
			return true
		}
	}
	return false
}
