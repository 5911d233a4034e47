package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hoshiko-tv/hoshiko/internal/anilist"
	"github.com/hoshiko-tv/hoshiko/internal/api"
	"github.com/hoshiko-tv/hoshiko/internal/config"
	"github.com/hoshiko-tv/hoshiko/internal/downloader"
	"github.com/hoshiko-tv/hoshiko/internal/extract"
	"github.com/hoshiko-tv/hoshiko/internal/feed"
	"github.com/hoshiko-tv/hoshiko/internal/metrics"
	"github.com/hoshiko-tv/hoshiko/internal/notify"
	"github.com/hoshiko-tv/hoshiko/internal/provider"
	"github.com/hoshiko-tv/hoshiko/internal/store"
	"github.com/hoshiko-tv/hoshiko/internal/torrent"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting hoshiko", "config", *configPath)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Ensure required directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		slog.Error("Failed to create directories", "error", err)
		os.Exit(1)
	}

	// Open the settings and transfer-spec store
	st, err := store.Open(filepath.Join(cfg.Torrent.MetadataFolder, "store"))
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Initialize metrics
	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)

	// Initialize the swarm engine
	peerID, err := torrent.GetOrCreatePeerID(filepath.Join(cfg.Torrent.MetadataFolder, "peer_id"))
	if err != nil {
		slog.Error("Failed to load peer id", "error", err)
		os.Exit(1)
	}

	itemStore, err := torrent.NewItemStore(filepath.Join(cfg.Torrent.MetadataFolder, "dht-items"), 2*time.Hour)
	if err != nil {
		slog.Error("Failed to open DHT item store", "error", err)
		os.Exit(1)
	}
	defer itemStore.Close()

	client, err := torrent.NewClient(peerID, itemStore)
	if err != nil {
		slog.Error("Failed to create torrent client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	engine := torrent.NewEngine(client, st,
		time.Duration(cfg.Torrent.AddTimeout)*time.Second,
		time.Duration(cfg.Torrent.StatePollInterval)*time.Second,
	)
	defer engine.Close()

	if err := engine.ReloadSaved(); err != nil {
		slog.Error("Failed to reload saved transfers", "error", err)
		os.Exit(1)
	}
	promReg.MustRegister(metrics.NewTransferCollector(engine))

	// Initialize the tracking client
	var tracker *anilist.Client
	if cfg.AniList.Username != "" {
		tracker = anilist.NewClient(cfg.AniList.Token, cfg.AniList.Username)
		slog.Info("AniList client initialized", "username", cfg.AniList.Username)
	} else {
		slog.Warn("AniList account not configured, tracking features will be unavailable")
	}

	// Initialize the catalog provider with its extractor registry
	extractors := extract.NewRegistry(cfg.Provider.URL, m)
	prov := provider.New(cfg.Provider.URL, extractors, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Acquisition pipeline: feed watcher plus coordinator. Requires a
	// tracked watch list to match against.
	var (
		coordinator *downloader.Coordinator
		watcher     *feed.Watcher
	)
	if cfg.Feeds.AutoDownload && tracker != nil && len(cfg.Feeds.URLs) > 0 {
		notifier := notify.New(cfg.Notify.WebhookURL)
		coordinator = downloader.NewCoordinator(cfg, engine, st, tracker, notifier, m)
		if err := coordinator.ResumeIncomplete(ctx); err != nil {
			slog.Error("Failed to resume incomplete downloads", "error", err)
			os.Exit(1)
		}

		watcher = feed.NewWatcher(cfg.Feeds.URLs,
			time.Duration(cfg.Feeds.PollInterval)*time.Second, tracker, m)
		if err := watcher.Start(ctx); err != nil {
			slog.Error("Failed to start feed watcher", "error", err)
			os.Exit(1)
		}
		go coordinator.Run(ctx, watcher.Matches())
		slog.Info("Acquisition pipeline started", "feeds", len(cfg.Feeds.URLs))
	} else {
		slog.Warn("Automatic downloads disabled")
	}

	// Initialize servers
	apiServer := api.NewServer(cfg.Server.HTTPPort, prov, tracker, engine)
	metricsServer := metrics.NewServer(cfg.Server.MetricsPort, promReg)

	go func() {
		if err := apiServer.Start(); err != nil {
			slog.Error("REST API server error", "error", err)
		}
	}()
	go func() {
		if err := metricsServer.Start(); err != nil {
			slog.Error("Metrics server error", "error", err)
		}
	}()

	slog.Info("hoshiko is ready",
		"api_url", fmt.Sprintf("http://localhost:%d/api", cfg.Server.HTTPPort),
		"metrics_url", fmt.Sprintf("http://localhost:%d/metrics", cfg.Server.MetricsPort),
	)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	slog.Info("Received signal, shutting down", "signal", sig)

	cancel()
	if watcher != nil {
		watcher.Stop()
	}
	if coordinator != nil {
		if err := coordinator.Persist(); err != nil {
			slog.Error("Failed to persist in-flight downloads", "error", err)
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("REST API server shutdown error", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Metrics server shutdown error", "error", err)
	}

	slog.Info("hoshiko stopped")
}
