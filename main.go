package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"listforge/api"
	"listforge/config"
	"listforge/handlers"
	"listforge/internal/ttlcache"
	"listforge/models"
	"listforge/services/addons"
	"listforge/services/catalog"
	"listforge/services/manifest"
	"listforge/services/mdblist"
	"listforge/services/metadata"
	"listforge/services/sources"
	"listforge/services/trakt"
	"listforge/utils"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {

	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	fmt.Println("🚀 ListForge Backend Starting...")

	// Determine config path (env or default)
	configPath := os.Getenv("LISTFORGE_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	// Init config manager and load settings (creates defaults if missing)
	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// Set up file logging with rotation
	if settings.Log.File != "" {
		// Ensure log directory exists
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			// Redirect standard log to both console and file
			multiWriter := io.MultiWriter(os.Stdout, fileWriter)
			log.SetOutput(multiWriter)
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	// Apply port override if specified
	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	// Catalog page cache with background sweeping
	pageCache := ttlcache.New[models.CatalogResponse](time.Duration(settings.Cache.SweepIntervalMinutes) * time.Minute)

	// Upstream clients
	mdbClient := mdblist.NewClient(settings.MDBList.APIKey)
	traktClient := trakt.NewClient(settings.Trakt.ClientID, settings.Trakt.ClientSecret)
	metaClient := metadata.NewClient(settings.Metadata.Enabled, settings.Metadata.BaseURL)
	enricher := metadata.NewEnricher(metaClient)

	addonService := addons.NewService(cfgManager)

	// Catalog sources, probed in this order when routing list ids
	registry := sources.NewRegistry(
		sources.NewMDBList(mdbClient),
		sources.NewTrakt(traktClient, cfgManager),
		sources.NewAddon(addonService),
	)

	manifestSvc := manifest.NewService(registry, cfgManager)
	catalogSvc := catalog.NewService(registry, enricher, cfgManager, pageCache)

	// Construct router
	var r *mux.Router = utils.NewRouter()

	// Register API routes
	addonHandler := handlers.NewAddonHandler(manifestSvc, catalogSvc, cfgManager)
	listsHandler := handlers.NewListsHandler(registry, cfgManager, manifestSvc, catalogSvc)
	addonsHandler := handlers.NewAddonsHandler(addonService, manifestSvc)
	traktHandler := handlers.NewTraktHandler(cfgManager, traktClient, manifestSvc)
	settingsHandler := handlers.NewSettingsHandler(cfgManager)
	settingsHandler.SetClients(mdbClient, traktClient, metaClient) // Enable hot reload of API keys
	settingsHandler.SetServices(manifestSvc, catalogSvc)           // Enable invalidation on settings change

	limiter := api.NewIPRateLimiter(rate.Every(time.Second), 20)
	api.Register(r, addonHandler, listsHandler, addonsHandler, traktHandler, settingsHandler, limiter)

	// Redirect root to the manifest so pasting the base URL into a client works
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/manifest.json", http.StatusFound)
	}).Methods(http.MethodGet)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	fmt.Printf("Server starting on %s\n", addr)
	fmt.Printf("📦 Addon manifest at http://%s/manifest.json\n", addr)

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // cold catalog pages wait on upstream enrichment
		IdleTimeout:  120 * time.Second,
	}

	// Setup graceful shutdown
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-shutdownChan
	log.Println("🛑 Shutdown signal received, cleaning up...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server gracefully
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// Stop the cache sweeper after in-flight requests drain
	pageCache.Stop()

	log.Println("✅ Shutdown complete")
}
