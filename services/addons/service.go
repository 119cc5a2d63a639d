package addons

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"listforge/config"
	"listforge/internal/listid"
	"listforge/models"
)

var (
	// ErrInvalidManifest means the addon could not be imported; nothing was saved.
	ErrInvalidManifest = errors.New("invalid addon manifest")
	// ErrAddonNotFound is returned when removing an unknown install id.
	ErrAddonNotFound = errors.New("addon not found")
	// ErrAlreadyImported is returned when the manifest URL is already installed.
	ErrAlreadyImported = errors.New("addon already imported")
)

// Service imports external catalog addons and proxies their catalogs.
type Service struct {
	httpClient *http.Client
	settings   *config.Manager
	mu         sync.Mutex // serializes imports so assigned ids stay unique
}

func NewService(settingsManager *config.Manager) *Service {
	return &Service{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		settings:   settingsManager,
	}
}

// Import fetches the manifest, takes over its catalogs and persists the addon.
// A manifest that cannot be fetched or parsed fails the whole import; no
// partial addon is ever stored.
func (s *Service) Import(ctx context.Context, manifestURL string) (*config.ImportedAddon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	normalized, err := normalizeManifestURL(manifestURL)
	if err != nil {
		return nil, err
	}

	manifest, err := s.fetchManifest(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if len(manifest.Catalogs) == 0 {
		return nil, fmt.Errorf("%w: no catalogs", ErrInvalidManifest)
	}

	settings, err := s.settings.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	used := make(map[string]bool)
	for _, a := range settings.Addons.Imported {
		if a.ManifestURL == normalized {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyImported, a.Name)
		}
		for _, c := range a.Catalogs {
			used[c.ID] = true
		}
	}

	enabled := enabledSet(normalized)

	name := strings.TrimSpace(manifest.Name)
	if name == "" {
		name = manifest.ID
	}
	addon := config.ImportedAddon{
		ID:          uuid.NewString(),
		Name:        name,
		ManifestURL: normalized,
		BaseURL:     baseOf(normalized),
		Version:     manifest.Version,
		Logo:        manifest.Logo,
	}

	assigned := make(map[string]string) // upstream id -> exposed id
	pairs := make(map[string]bool)      // exposed id + type within this addon
	for _, cat := range manifest.Catalogs {
		kind := models.ParseMediaKind(cat.Type)
		if kind == "" {
			continue // channels, music and other types we do not serve
		}
		if enabled != nil && !enabled[cat.ID+"|"+cat.Type] && !enabled[cat.ID] {
			continue
		}
		exposed, ok := assigned[cat.ID]
		if !ok {
			exposed = assignID(cat.ID, string(kind), used)
			assigned[cat.ID] = exposed
			used[exposed] = true
		}
		if pairs[exposed+"|"+string(kind)] {
			continue // duplicate row in the source manifest
		}
		pairs[exposed+"|"+string(kind)] = true

		catName := strings.TrimSpace(cat.Name)
		if catName == "" {
			catName = name
		}
		addon.Catalogs = append(addon.Catalogs, config.ImportedCatalog{
			ID:            exposed,
			UpstreamID:    cat.ID,
			Type:          string(kind),
			Name:          catName,
			SupportsSkip:  cat.SupportsExtra("skip"),
			SupportsGenre: cat.SupportsExtra("genre"),
		})
	}
	if len(addon.Catalogs) == 0 {
		return nil, fmt.Errorf("%w: no usable catalogs", ErrInvalidManifest)
	}

	settings.Addons.Imported = append(settings.Addons.Imported, addon)
	if err := s.settings.Save(settings); err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}
	log.Printf("[addons] imported %q (%d catalogs)", addon.Name, len(addon.Catalogs))
	return &addon, nil
}

// Remove deletes an imported addon by install id.
func (s *Service) Remove(installID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.settings.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	kept := make([]config.ImportedAddon, 0, len(settings.Addons.Imported))
	removed := false
	for _, a := range settings.Addons.Imported {
		if a.ID == installID {
			removed = true
			continue
		}
		kept = append(kept, a)
	}
	if !removed {
		return ErrAddonNotFound
	}
	settings.Addons.Imported = kept
	if err := s.settings.Save(settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	log.Printf("[addons] removed addon %s", installID)
	return nil
}

// Imported returns the currently installed addons.
func (s *Service) Imported() []config.ImportedAddon {
	settings, err := s.settings.Load()
	if err != nil {
		log.Printf("[addons] load settings: %v", err)
		return nil
	}
	return settings.Addons.Imported
}

// FindCatalog resolves an exposed catalog id, optionally narrowed by kind.
func (s *Service) FindCatalog(catalogID string, kind models.MediaKind) (config.ImportedAddon, config.ImportedCatalog, bool) {
	for _, a := range s.Imported() {
		for _, c := range a.Catalogs {
			if c.ID != catalogID {
				continue
			}
			if kind != "" && c.Type != string(kind) {
				continue
			}
			return a, c, true
		}
	}
	return config.ImportedAddon{}, config.ImportedCatalog{}, false
}

// FetchCatalog pulls one page of an imported catalog from its addon. Extras
// the upstream catalog does not declare are not sent.
func (s *Service) FetchCatalog(ctx context.Context, addon config.ImportedAddon, cat config.ImportedCatalog, skip int, genre string) (*models.RawList, error) {
	endpoint := addon.BaseURL + "/catalog/" + cat.Type + "/" + url.PathEscape(cat.UpstreamID)
	var extras []string
	if skip > 0 && cat.SupportsSkip {
		extras = append(extras, "skip="+strconv.Itoa(skip))
	}
	if genre != "" && cat.SupportsGenre {
		extras = append(extras, "genre="+url.QueryEscape(genre))
	}
	if len(extras) > 0 {
		endpoint += "/" + strings.Join(extras, "&")
	}
	endpoint += ".json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("addon request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("addon %s answered status %d", addon.Name, resp.StatusCode)
	}

	var payload struct {
		Metas []upstreamMeta `json:"metas"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	out := &models.RawList{}
	for _, m := range payload.Metas {
		kind := m.Type
		if kind == "" {
			kind = cat.Type
		}
		out.Items = append(out.Items, models.RawItem{
			ID:          m.ID,
			Title:       m.Name,
			Kind:        kind,
			Poster:      m.Poster,
			Background:  m.Background,
			Description: m.Description,
			ReleaseInfo: string(m.ReleaseInfo),
			IMDBRating:  string(m.IMDBRating),
			Genres:      m.Genres,
			Runtime:     m.Runtime,
		})
	}
	return out, nil
}

func (s *Service) fetchManifest(ctx context.Context, manifestURL string) (*models.Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrInvalidManifest, resp.StatusCode)
	}
	var manifest models.Manifest
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if manifest.ID == "" && manifest.Name == "" {
		return nil, fmt.Errorf("%w: missing id and name", ErrInvalidManifest)
	}
	return &manifest, nil
}

// upstreamMeta mirrors the meta previews addons return. Rating and release
// info arrive as strings from most addons and as bare numbers from a few.
type upstreamMeta struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Name        string     `json:"name"`
	Poster      string     `json:"poster"`
	Background  string     `json:"background"`
	Description string     `json:"description"`
	ReleaseInfo flexString `json:"releaseInfo"`
	IMDBRating  flexString `json:"imdbRating"`
	Genres      []string   `json:"genres"`
	Runtime     string     `json:"runtime"`
}

type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func normalizeManifestURL(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	if u == "" {
		return "", fmt.Errorf("%w: empty url", ErrInvalidManifest)
	}
	if rest, ok := strings.CutPrefix(u, "stremio://"); ok {
		u = "https://" + rest
	}
	parsed, err := url.Parse(u)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("%w: bad url %q", ErrInvalidManifest, raw)
	}
	return u, nil
}

func baseOf(manifestURL string) string {
	if b, ok := strings.CutSuffix(manifestURL, "/manifest.json"); ok {
		return b
	}
	if i := strings.LastIndex(manifestURL, "/"); i > len("https://") {
		return manifestURL[:i]
	}
	return manifestURL
}

// assignID keeps the upstream id unless it is taken or shadows a reserved
// pattern, in which case a collision suffix is appended.
func assignID(base, mediaType string, used map[string]bool) string {
	if !used[base] && !listid.IsReserved(base) {
		return base
	}
	for n := 1; ; n++ {
		candidate := listid.Composite(base, n, mediaType)
		if !used[candidate] && !listid.IsReserved(candidate) {
			return candidate
		}
	}
}

// urlConfig is the configuration object some addon URLs embed as a
// percent-encoded JSON path segment. Only catalog toggles are honored.
type urlConfig struct {
	Catalogs []struct {
		ID      string `json:"id"`
		Type    string `json:"type,omitempty"`
		Enabled *bool  `json:"enabled,omitempty"`
	} `json:"catalogs"`
}

// enabledSet returns the toggle set embedded in the manifest URL, keyed by
// "id|type" and by bare id. Nil means the URL carries no usable configuration
// and every catalog imports.
func enabledSet(manifestURL string) map[string]bool {
	cfg, ok := extractURLConfig(manifestURL)
	if !ok {
		return nil
	}
	set := make(map[string]bool)
	for _, c := range cfg.Catalogs {
		if c.Enabled != nil && !*c.Enabled {
			continue
		}
		if c.Type != "" {
			set[c.ID+"|"+c.Type] = true
		} else {
			set[c.ID] = true
		}
	}
	return set
}

// extractURLConfig looks for a JSON object hiding in a URL path segment.
func extractURLConfig(manifestURL string) (*urlConfig, bool) {
	parsed, err := url.Parse(manifestURL)
	if err != nil {
		return nil, false
	}
	for _, seg := range strings.Split(parsed.EscapedPath(), "/") {
		if seg == "" || seg == "manifest.json" {
			continue
		}
		decoded, err := url.PathUnescape(seg)
		if err != nil {
			decoded = seg
		}
		// double-encoded configs need a second pass
		if again, err := url.PathUnescape(decoded); err == nil && again != decoded && strings.Contains(again, "{") {
			decoded = again
		}
		if !strings.Contains(decoded, `":`) && !strings.Contains(decoded, "{") {
			continue
		}
		if cfg, ok := parseURLConfig(decoded); ok {
			return cfg, true
		}
	}
	return nil, false
}

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

func parseURLConfig(s string) (*urlConfig, bool) {
	s = strings.TrimSpace(s)
	// re-wrap an object whose outer braces were stripped in transit
	if !strings.HasPrefix(s, "{") && strings.Contains(s, `":`) {
		s = "{" + s + "}"
	}
	var cfg urlConfig
	if err := json.Unmarshal([]byte(s), &cfg); err == nil && len(cfg.Catalogs) > 0 {
		return &cfg, true
	}
	// one cleanup pass: trailing commas dropped, single quotes normalized
	cleaned := trailingCommaRe.ReplaceAllString(strings.ReplaceAll(s, "'", `"`), "$1")
	var cfg2 urlConfig
	if err := json.Unmarshal([]byte(cleaned), &cfg2); err == nil && len(cfg2.Catalogs) > 0 {
		return &cfg2, true
	}
	return nil, false
}
