package api

import (
	"encoding/json"
	"net/http"

	"listforge/handlers"
	"listforge/services/manifest"

	"github.com/gorilla/mux"
)

// Register mounts the addon protocol endpoints and the config API onto the
// provided router. CORS is handled by the router's own middleware; the
// explicit OPTIONS registrations exist so preflights match a route and reach
// it.
func Register(
	r *mux.Router,
	addonHandler *handlers.AddonHandler,
	listsHandler *handlers.ListsHandler,
	addonsHandler *handlers.AddonsHandler,
	traktHandler *handlers.TraktHandler,
	settingsHandler *handlers.SettingsHandler,
	limiter *IPRateLimiter,
) {
	// Addon protocol routes. These live at the root and are what media
	// clients poll; they are never rate limited.
	r.HandleFunc("/manifest.json", addonHandler.GetManifest).Methods(http.MethodGet)
	r.HandleFunc("/manifest.json", addonHandler.Options).Methods(http.MethodOptions)
	r.HandleFunc("/catalog/{type}/{id}.json", addonHandler.GetCatalog).Methods(http.MethodGet)
	r.HandleFunc("/catalog/{type}/{id}.json", addonHandler.Options).Methods(http.MethodOptions)
	r.HandleFunc("/catalog/{type}/{id}/{extra}.json", addonHandler.GetCatalog).Methods(http.MethodGet)
	r.HandleFunc("/catalog/{type}/{id}/{extra}.json", addonHandler.Options).Methods(http.MethodOptions)

	api := r.PathPrefix("/api").Subrouter()

	// Throttle the config API per client IP
	api.Use(limiter.Middleware)

	// List management routes
	api.HandleFunc("/lists", listsHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/lists", listsHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/lists/order", listsHandler.Reorder).Methods(http.MethodPut)
	api.HandleFunc("/lists/order", listsHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/lists/{listID}/visibility", listsHandler.SetVisibility).Methods(http.MethodPut)
	api.HandleFunc("/lists/{listID}/visibility", listsHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/lists/{listID}/name", listsHandler.Rename).Methods(http.MethodPut)
	api.HandleFunc("/lists/{listID}/name", listsHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/lists/{listID}/sort", listsHandler.SetSort).Methods(http.MethodPut)
	api.HandleFunc("/lists/{listID}/sort", listsHandler.Options).Methods(http.MethodOptions)

	// Imported addon routes
	api.HandleFunc("/addons", addonsHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/addons", addonsHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/addons/import", addonsHandler.Import).Methods(http.MethodPost)
	api.HandleFunc("/addons/import", addonsHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/addons/{addonID}", addonsHandler.Remove).Methods(http.MethodDelete)
	api.HandleFunc("/addons/{addonID}", addonsHandler.Options).Methods(http.MethodOptions)

	// Trakt auth routes
	api.HandleFunc("/trakt/auth/start", traktHandler.StartAuth).Methods(http.MethodPost)
	api.HandleFunc("/trakt/auth/start", traktHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/trakt/auth/check/{deviceCode}", traktHandler.CheckAuth).Methods(http.MethodGet)
	api.HandleFunc("/trakt/auth/check/{deviceCode}", traktHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/trakt/status", traktHandler.Status).Methods(http.MethodGet)
	api.HandleFunc("/trakt/status", traktHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/trakt/disconnect", traktHandler.Disconnect).Methods(http.MethodPost)
	api.HandleFunc("/trakt/disconnect", traktHandler.Options).Methods(http.MethodOptions)

	// Settings routes
	api.HandleFunc("/settings", settingsHandler.GetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", settingsHandler.PutSettings).Methods(http.MethodPut)
	api.HandleFunc("/settings", settingsHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/settings/mdblist/validate", settingsHandler.ValidateMDBListKey).Methods(http.MethodPost)
	api.HandleFunc("/settings/mdblist/validate", settingsHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/cache/clear", settingsHandler.ClearCache).Methods(http.MethodPost)
	api.HandleFunc("/cache/clear", settingsHandler.Options).Methods(http.MethodOptions)

	api.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"version": manifest.Version})
	}).Methods(http.MethodGet)

	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
}
