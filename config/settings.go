package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server   ServerSettings   `json:"server"`
	Cache    CacheSettings    `json:"cache"`
	Manifest ManifestSettings `json:"manifest"`
	Metadata MetadataSettings `json:"metadata"`
	MDBList  MDBListSettings  `json:"mdblist"`
	Trakt    TraktSettings    `json:"trakt"`
	Lists    ListSettings     `json:"lists"`
	Addons   AddonSettings    `json:"addons"`
	Posters  PosterSettings   `json:"posters"`
	Log      LogConfig        `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type CacheSettings struct {
	CatalogTTLSeconds       int `json:"catalogTtlSeconds"`
	ManifestDebounceSeconds int `json:"manifestDebounceSeconds"`
	SweepIntervalMinutes    int `json:"sweepIntervalMinutes"`
}

// ManifestSettings controls the identity fields of the served manifest.
type ManifestSettings struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type MetadataSettings struct {
	Enabled bool   `json:"enabled"`
	BaseURL string `json:"baseUrl"`
}

type MDBListSettings struct {
	APIKey string `json:"apiKey"`
}

// TraktTokens is the OAuth bundle for the configured Trakt application.
// ExpiresAt is unix seconds; zero means no token.
type TraktTokens struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresAt    int64  `json:"expiresAt,omitempty"`
}

// HasToken reports whether an access token is stored.
func (t TraktTokens) HasToken() bool {
	return t.AccessToken != ""
}

// HasApp reports whether API credentials are configured at all.
func (t TraktTokens) HasApp() bool {
	return t.ClientID != ""
}

type TraktSettings struct {
	TraktTokens
	Username string `json:"username,omitempty"` // display only, set when auth completes
}

// SortPreference is a per-list item ordering forwarded to the providing source.
type SortPreference struct {
	Sort  string `json:"sort"`            // provider sort field, e.g. rank, added, title
	Order string `json:"order,omitempty"` // asc | desc
}

// ListSettings holds the user-level rules applied when building the manifest.
type ListSettings struct {
	Order       []string                  `json:"order"`
	Hidden      []string                  `json:"hidden"`
	CustomNames map[string]string         `json:"customNames"`
	Sort        map[string]SortPreference `json:"sort,omitempty"`
}

// ImportedCatalog is one catalog taken over from an imported addon. ID is the
// id this server exposes (collision-suffixed when needed); UpstreamID is the id
// on the source addon.
type ImportedCatalog struct {
	ID            string `json:"id"`
	UpstreamID    string `json:"upstreamId"`
	Type          string `json:"type"`
	Name          string `json:"name"`
	SupportsSkip  bool   `json:"supportsSkip,omitempty"`
	SupportsGenre bool   `json:"supportsGenre,omitempty"`
}

// ImportedAddon records an external addon whose catalogs are merged into ours.
type ImportedAddon struct {
	ID          string            `json:"id"` // install id, assigned on import
	Name        string            `json:"name"`
	ManifestURL string            `json:"manifestUrl"`
	BaseURL     string            `json:"baseUrl"`
	Version     string            `json:"version,omitempty"`
	Logo        string            `json:"logo,omitempty"`
	Catalogs    []ImportedCatalog `json:"catalogs"`
}

type AddonSettings struct {
	Imported []ImportedAddon `json:"imported"`
}

// PosterSettings configures the optional rating-poster service. A non-empty
// key rewrites poster URLs for IMDB-identified items.
type PosterSettings struct {
	APIKey  string `json:"apiKey,omitempty"`
	BaseURL string `json:"baseUrl,omitempty"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	File       string `json:"file"`
	Level      string `json:"level"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns sane defaults for a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{Host: "0.0.0.0", Port: 7700},
		Cache: CacheSettings{
			CatalogTTLSeconds:       3600,
			ManifestDebounceSeconds: 5,
			SweepIntervalMinutes:    5,
		},
		Manifest: ManifestSettings{
			Name:        "ListForge",
			Description: "Aggregated lists from MDBList, Trakt and imported addons",
		},
		Metadata: MetadataSettings{Enabled: true, BaseURL: "https://v3-cinemeta.strem.io"},
		MDBList:  MDBListSettings{},
		Trakt:    TraktSettings{},
		Lists: ListSettings{
			Order:       []string{},
			Hidden:      []string{},
			CustomNames: map[string]string{},
		},
		Addons:  AddonSettings{Imported: []ImportedAddon{}},
		Posters: PosterSettings{BaseURL: "https://api.ratingposterdb.com"},
		Log: LogConfig{
			File:       "cache/logs/listforge.log",
			Level:      "info",
			MaxSize:    50,   // 50 MB per file
			MaxBackups: 3,    // keep 3 old files
			MaxAge:     7,    // 7 days
			Compress:   true, // compress old files
		},
	}
}

// Manager loads and persists settings to a JSON file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// Path returns the backing file location.
func (m *Manager) Path() string {
	return m.path
}

// EnsureDir ensures parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings.json from disk or creates defaults if missing.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		// create with defaults
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}
	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	// Decode into a raw map first so old field shapes can be migrated.
	var raw map[string]interface{}
	dec := json.NewDecoder(f)
	if err := dec.Decode(&raw); err != nil {
		return Settings{}, err
	}

	// Migrate hidden lists from the old map form {"id": true} to a plain array.
	if listsRaw, ok := raw["lists"].(map[string]interface{}); ok {
		if hiddenMap, ok := listsRaw["hidden"].(map[string]interface{}); ok {
			hidden := []interface{}{}
			for id, v := range hiddenMap {
				if b, _ := v.(bool); b {
					hidden = append(hidden, id)
				}
			}
			listsRaw["hidden"] = hidden
		}
	}

	// Re-encode and decode into Settings struct
	rawJSON, err := json.Marshal(raw)
	if err != nil {
		return Settings{}, err
	}

	var s Settings
	if err := json.Unmarshal(rawJSON, &s); err != nil {
		return Settings{}, err
	}

	// Backfill defaults for newly introduced settings when config predates them
	if strings.TrimSpace(s.Server.Host) == "" {
		s.Server.Host = "0.0.0.0"
	}
	if s.Server.Port == 0 {
		s.Server.Port = 7700
	}

	if s.Cache.CatalogTTLSeconds == 0 {
		s.Cache.CatalogTTLSeconds = 3600
	}
	if s.Cache.ManifestDebounceSeconds == 0 {
		s.Cache.ManifestDebounceSeconds = 5
	}
	if s.Cache.SweepIntervalMinutes == 0 {
		s.Cache.SweepIntervalMinutes = 5
	}

	if strings.TrimSpace(s.Manifest.Name) == "" {
		s.Manifest.Name = "ListForge"
	}
	if strings.TrimSpace(s.Manifest.Description) == "" {
		s.Manifest.Description = "Aggregated lists from MDBList, Trakt and imported addons"
	}

	if strings.TrimSpace(s.Metadata.BaseURL) == "" {
		s.Metadata.BaseURL = "https://v3-cinemeta.strem.io"
	}

	if s.Lists.Order == nil {
		s.Lists.Order = []string{}
	}
	if s.Lists.Hidden == nil {
		s.Lists.Hidden = []string{}
	}
	if s.Lists.CustomNames == nil {
		s.Lists.CustomNames = map[string]string{}
	}

	if s.Addons.Imported == nil {
		s.Addons.Imported = []ImportedAddon{}
	}

	if strings.TrimSpace(s.Posters.BaseURL) == "" {
		s.Posters.BaseURL = "https://api.ratingposterdb.com"
	}

	// Backfill Log settings
	if strings.TrimSpace(s.Log.File) == "" {
		s.Log.File = "cache/logs/listforge.log"
	}
	if strings.TrimSpace(s.Log.Level) == "" {
		s.Log.Level = "info"
	}
	if s.Log.MaxSize == 0 {
		s.Log.MaxSize = 50
	}
	if s.Log.MaxBackups == 0 {
		s.Log.MaxBackups = 3
	}
	if s.Log.MaxAge == 0 {
		s.Log.MaxAge = 7
	}

	return s, nil
}

// Save writes the provided settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}
