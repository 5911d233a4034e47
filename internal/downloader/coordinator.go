// Package downloader coordinates automatic episode acquisition: it consumes
// watch-list matches from the feed watcher, hands them to the swarm engine
// and tracks the in-flight set across restarts.
package downloader

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/hoshiko-tv/hoshiko/internal/config"
	"github.com/hoshiko-tv/hoshiko/internal/feed"
	"github.com/hoshiko-tv/hoshiko/internal/metrics"
	"github.com/hoshiko-tv/hoshiko/internal/notify"
	"github.com/hoshiko-tv/hoshiko/internal/store"
	"github.com/hoshiko-tv/hoshiko/internal/torrent"
)

// infoHashesKey is the settings key holding the in-flight info hash set.
const infoHashesKey = "InfoHashes"

// ProgressUpdater advances the watched-episode count on the tracking service
// once an episode has finished downloading.
type ProgressUpdater interface {
	UpdateProgress(ctx context.Context, mediaID, progress int) error
}

// pending is one in-flight acquisition, keyed by info hash in the coordinator.
type pending struct {
	mediaID int
	title   string
	episode int
}

// Coordinator drives automatic downloads from feed matches.
type Coordinator struct {
	cfg      *config.Config
	engine   torrent.Engine
	specs    *store.Store
	progress ProgressUpdater
	notifier notify.Notifier
	metrics  *metrics.Metrics

	mu     sync.Mutex
	active map[string]pending

	log *slog.Logger
}

// NewCoordinator creates an acquisition coordinator. The progress updater may
// be nil when no tracking account is configured.
func NewCoordinator(cfg *config.Config, engine torrent.Engine, specs *store.Store, progress ProgressUpdater, notifier notify.Notifier, m *metrics.Metrics) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		engine:   engine,
		specs:    specs,
		progress: progress,
		notifier: notifier,
		metrics:  m,
		active:   map[string]pending{},
		log:      slog.With("component", "downloader"),
	}
}

// ResumeIncomplete reconciles the persisted in-flight set against the engine.
// Transfers the engine still knows are resumed and watched again; hashes the
// engine has forgotten, or that already finished, are dropped from the set.
// Must be called after Engine.ReloadSaved.
func (c *Coordinator) ResumeIncomplete(ctx context.Context) error {
	hashes, err := c.specs.ReadStringList(infoHashesKey)
	if err != nil {
		return err
	}

	c.mu.Lock()
	for _, hash := range hashes {
		t, err := c.engine.Get(hash)
		if err != nil {
			if errors.Is(err, torrent.ErrTransferNotFound) {
				c.log.Warn("dropping unknown in-flight transfer", "info_hash", hash)
				continue
			}
			c.mu.Unlock()
			return err
		}
		if t.Complete() {
			c.log.Info("transfer finished while offline", "info_hash", hash, "name", t.Name())
			continue
		}

		c.active[hash] = pending{title: t.Name()}
		if err := c.engine.Resume(t); err != nil {
			c.log.Error("failed to resume transfer", "info_hash", hash, "error", err)
			delete(c.active, hash)
			continue
		}
		go c.watch(ctx, t)
		c.log.Info("resumed incomplete download", "info_hash", hash, "name", t.Name())
	}
	c.mu.Unlock()

	return c.persist()
}

// Run consumes feed matches until the channel closes or the context is
// cancelled. Blocks; run it on its own goroutine.
func (c *Coordinator) Run(ctx context.Context, matches <-chan feed.Match) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-matches:
			if !ok {
				return
			}
			if err := c.download(ctx, m); err != nil {
				c.log.Error("failed to start download",
					"title", m.Anime.Title, "episode", m.Episode, "error", err)
			}
		}
	}
}

func (c *Coordinator) download(ctx context.Context, m feed.Match) error {
	dir := c.cfg.SaveDirectory(m.Anime.Title)

	var (
		t   torrent.Transfer
		err error
	)
	switch item := m.Item.(type) {
	case feed.TorrentItem:
		t, err = c.engine.DownloadFromURL(ctx, item.URL, dir)
	case feed.MagnetItem:
		t, err = c.engine.DownloadFromMagnet(ctx, item.URI, dir)
	default:
		return errors.New("unsupported feed item")
	}
	if err != nil {
		return err
	}

	c.mu.Lock()
	if _, dup := c.active[t.InfoHash()]; dup {
		c.mu.Unlock()
		c.log.Debug("transfer already in flight", "info_hash", t.InfoHash())
		return nil
	}
	c.active[t.InfoHash()] = pending{
		mediaID: m.Anime.ID,
		title:   m.Anime.Title,
		episode: m.Episode,
	}
	c.mu.Unlock()

	if err := c.persist(); err != nil {
		c.log.Error("failed to persist in-flight set", "error", err)
	}

	if c.metrics != nil {
		c.metrics.DownloadsStarted.Inc()
	}
	c.log.Info("download started",
		"title", m.Anime.Title, "episode", m.Episode,
		"info_hash", t.InfoHash(), "dir", dir)

	go c.watch(ctx, t)
	return nil
}

// watch waits for the transfer to reach its terminal state, then finalizes:
// notification, progress update and removal from the in-flight set.
// Intermediate state changes are logged only.
func (c *Coordinator) watch(ctx context.Context, t torrent.Transfer) {
	changes := c.engine.Subscribe(t)
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			c.log.Debug("transfer state changed",
				"info_hash", change.InfoHash,
				"from", change.Previous, "to", change.New)
			if change.New.Terminal() {
				c.finalize(ctx, t)
				return
			}
		}
	}
}

func (c *Coordinator) finalize(ctx context.Context, t torrent.Transfer) {
	c.mu.Lock()
	p, tracked := c.active[t.InfoHash()]
	delete(c.active, t.InfoHash())
	c.mu.Unlock()

	if err := c.persist(); err != nil {
		c.log.Error("failed to persist in-flight set", "error", err)
	}
	if !tracked {
		return
	}

	if c.metrics != nil {
		c.metrics.DownloadsCompleted.Inc()
	}
	c.log.Info("download completed",
		"title", p.title, "episode", p.episode, "info_hash", t.InfoHash())

	c.notifier.DownloadComplete(t.SavePath(), t.Name())

	if c.progress != nil && p.mediaID != 0 {
		if err := c.progress.UpdateProgress(ctx, p.mediaID, p.episode); err != nil {
			c.log.Error("failed to update watch progress",
				"title", p.title, "episode", p.episode, "error", err)
		}
	}
}

// Persist writes the current in-flight info hash set to the settings store.
// Called on shutdown so a restart can pick the set back up.
func (c *Coordinator) Persist() error {
	return c.persist()
}

func (c *Coordinator) persist() error {
	c.mu.Lock()
	hashes := make([]string, 0, len(c.active))
	for hash := range c.active {
		hashes = append(hashes, hash)
	}
	c.mu.Unlock()
	return c.specs.WriteStringList(infoHashesKey, hashes)
}
