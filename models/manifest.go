package models

// Manifest is the addon descriptor served at /manifest.json. The same shape is
// used to decode manifests of imported addons.
type Manifest struct {
	ID            string            `json:"id"`
	Version       string            `json:"version"`
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	Logo          string            `json:"logo,omitempty"`
	Background    string            `json:"background,omitempty"`
	Resources     []any             `json:"resources,omitempty"`
	Types         []string          `json:"types,omitempty"`
	Catalogs      []ManifestCatalog `json:"catalogs"`
	IDPrefixes    []string          `json:"idPrefixes,omitempty"`
	BehaviorHints map[string]bool   `json:"behaviorHints,omitempty"`
}

// ManifestCatalog describes one catalog row in a manifest. ExtraSupported is
// the legacy spelling of Extra still emitted by older addons.
type ManifestCatalog struct {
	Type           string         `json:"type"`
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Extra          []CatalogExtra `json:"extra,omitempty"`
	ExtraSupported []string       `json:"extraSupported,omitempty"`
}

// CatalogExtra declares an extra parameter a catalog accepts (skip, genre, search).
type CatalogExtra struct {
	Name         string   `json:"name"`
	IsRequired   bool     `json:"isRequired,omitempty"`
	Options      []string `json:"options,omitempty"`
	OptionsLimit int      `json:"optionsLimit,omitempty"`
}

// SupportsExtra reports whether the catalog declares the named extra in
// either spelling.
func (c ManifestCatalog) SupportsExtra(name string) bool {
	for _, e := range c.Extra {
		if e.Name == name {
			return true
		}
	}
	for _, e := range c.ExtraSupported {
		if e == name {
			return true
		}
	}
	return false
}
