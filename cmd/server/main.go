package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dgallion1/lexview/internal/api"
	"github.com/dgallion1/lexview/internal/assetcache"
	"github.com/dgallion1/lexview/internal/catalog"
	"github.com/dgallion1/lexview/internal/config"
	"github.com/dgallion1/lexview/internal/fetch"
	"github.com/dgallion1/lexview/internal/session"
)

func main() {
	cfg := config.Load()

	var level slog.Level
	level.UnmarshalText([]byte(cfg.LogLevel))
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cat, err := loadCatalog(cfg)
	if err != nil {
		log.Error("load catalog", "error", err)
		os.Exit(1)
	}
	log.Info("catalog loaded", "documents", len(cat.List()))

	// Initialize clients.
	client, err := fetch.NewClient(cfg.BaseURL, cfg.FetchTimeout)
	if err != nil {
		log.Error("invalid base url", "error", err)
		os.Exit(1)
	}

	var fetcher fetch.Fetcher = client
	var cache *assetcache.Cache
	if cfg.CachePath != "" {
		cache, err = assetcache.Open(cfg.CachePath, cfg.CacheName, client, log)
		if err != nil {
			log.Error("open asset cache", "error", err)
			os.Exit(1)
		}
		cache.SetInstallRetries(cfg.PrecacheRetries, 500*time.Millisecond)
		if _, err := cache.Activate(ctx); err != nil {
			log.Warn("activate asset cache", "error", err)
		}
		fetcher = cache
	}

	sessions := session.NewStore(session.Options{
		TTL:      cfg.SessionTTL,
		Fetcher:  fetcher,
		Log:      log,
		FontSize: cfg.DefaultFontSize,
		OnFetch:  api.ObserveFetch,
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sessions.Run(ctx, cfg.CleanupInterval)
	}()

	// Initialize HTTP server.
	srv := api.NewServer(cat, sessions, cache, log, cfg)

	httpServer := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		log.Error("listen", "port", cfg.Port, "error", err)
		os.Exit(1)
	}

	// Precaching may fetch from this server, so it starts once listening.
	if cache != nil && cfg.Precache {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := cache.Install(ctx, cat.AssetRefs()); err != nil {
				log.Warn("precache failed", "error", err)
			}
		}()
	}

	// Graceful shutdown.
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		cancel()
		sessions.CloseAll()
		wg.Wait()
		if cache != nil {
			cache.Close()
		}
		client.Close()
	}()

	log.Info("starting lexview", "port", cfg.Port, "base_url", cfg.BaseURL, "cache", cfg.CacheName)
	if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-stopped
}

func loadCatalog(cfg config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogPath != "" {
		return catalog.LoadFile(cfg.CatalogPath)
	}
	return catalog.Default()
}
