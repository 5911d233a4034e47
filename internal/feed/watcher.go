// Package feed watches RSS feeds for newly released episodes of tracked
// shows and emits acquisition requests for those the user has not watched
// yet.
package feed

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hoshiko-tv/hoshiko/internal/anilist"
	"github.com/hoshiko-tv/hoshiko/internal/metrics"
	"github.com/hoshiko-tv/hoshiko/internal/parse"
)

// Match is an acquisition request: a feed item announcing an episode of a
// tracked show beyond the user's watched count.
type Match struct {
	Anime   anilist.Anime
	Episode int
	Item    Item
}

// WatchList supplies the tracked-show snapshot.
type WatchList interface {
	CurrentlyAiringTracked(ctx context.Context) ([]anilist.Anime, error)
}

// Watcher polls RSS feeds and matches new items against the watch-list.
//
// The watch-list snapshot is captured once in Start and never refreshed for
// the watcher's lifetime: shows that the user starts tracking while the
// process runs stay invisible to the watcher until a restart. This staleness
// window is a known, accepted limitation.
type Watcher struct {
	urls     []string
	interval time.Duration
	list     WatchList
	parser   *gofeed.Parser
	metrics  *metrics.Metrics

	snapshot []anilist.Anime
	seen     map[string]struct{}
	matches  chan Match

	mu       sync.Mutex
	stopChan chan struct{}
	stopped  bool

	log *slog.Logger
}

// NewWatcher creates a watcher over the given feed URLs. Metrics may be nil.
func NewWatcher(urls []string, interval time.Duration, list WatchList, m *metrics.Metrics) *Watcher {
	return &Watcher{
		urls:     urls,
		interval: interval,
		list:     list,
		parser:   gofeed.NewParser(),
		metrics:  m,
		seen:     make(map[string]struct{}),
		matches:  make(chan Match, 16),
		stopChan: make(chan struct{}),
		log:      slog.With("component", "feed-watcher"),
	}
}

// Start captures the watch-list snapshot and begins polling. A failure to
// obtain the snapshot is fatal; an empty watch-list is not.
func (w *Watcher) Start(ctx context.Context) error {
	snapshot, err := w.list.CurrentlyAiringTracked(ctx)
	if err != nil {
		return err
	}
	w.snapshot = snapshot

	w.log.Info("feed watcher started",
		"feeds", len(w.urls),
		"tracked_shows", len(snapshot),
		"interval", w.interval,
	)

	go w.pollLoop()
	return nil
}

// Matches returns the channel of acquisition requests. Closed on Stop.
func (w *Watcher) Matches() <-chan Match {
	return w.matches
}

// Stop halts polling and closes the match channel.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.stopChan)
	w.log.Info("feed watcher stopped")
}

func (w *Watcher) pollLoop() {
	defer close(w.matches)

	// First poll immediately, then on the ticker.
	w.pollAll()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.pollAll()
		}
	}
}

func (w *Watcher) pollAll() {
	for _, url := range w.urls {
		if err := w.poll(url); err != nil {
			// One unreachable feed must not stop the others.
			w.log.Warn("feed poll failed", "url", url, "error", err)
		}
	}
}

func (w *Watcher) poll(url string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	parsed, err := w.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return err
	}

	for _, entry := range parsed.Items {
		item, ok := toItem(entry)
		if !ok {
			continue
		}

		if _, dup := w.seen[item.Link()]; dup {
			continue
		}
		w.seen[item.Link()] = struct{}{}

		if w.metrics != nil {
			w.metrics.FeedItemsSeen.Inc()
		}

		w.handleItem(item)
	}

	return nil
}

// toItem converts a parsed feed entry into the torrent-or-magnet sum type.
// Entries with no usable link are dropped.
func toItem(entry *gofeed.Item) (Item, bool) {
	link := entry.Link
	for _, enc := range entry.Enclosures {
		if enc.Type == "application/x-bittorrent" && enc.URL != "" {
			link = enc.URL
			break
		}
	}

	switch {
	case link == "":
		return nil, false
	case strings.HasPrefix(link, "magnet:"):
		return MagnetItem{RawTitle: entry.Title, URI: link}, true
	default:
		return TorrentItem{RawTitle: entry.Title, URL: link}, true
	}
}

// handleItem applies the matching rules to one new feed item: parse the
// title, find the show in the snapshot, drop stale announcements, emit the
// rest.
func (w *Watcher) handleItem(item Item) {
	result := parse.Parse(item.Title())
	if !result.HasTitle() || !result.HasEpisode() {
		return
	}

	anime, ok := w.lookup(result.Title)
	if !ok {
		return
	}

	if result.Episode <= anime.WatchedEpisodes {
		// Already watched or duplicate announcement.
		return
	}

	w.log.Info("new episode available",
		"title", result.Title,
		"episode", result.Episode,
		"anime_id", anime.ID,
	)

	if w.metrics != nil {
		w.metrics.FeedMatches.Inc()
	}

	select {
	case w.matches <- Match{Anime: anime, Episode: result.Episode, Item: item}:
	case <-w.stopChan:
	}
}

// lookup finds the snapshot entry whose primary or alternative title
// contains the parsed title, case-insensitively.
func (w *Watcher) lookup(title string) (anilist.Anime, bool) {
	needle := strings.ToLower(title)

	for _, anime := range w.snapshot {
		if strings.Contains(strings.ToLower(anime.Title), needle) {
			return anime, true
		}
		for _, alt := range anime.AlternativeTitles {
			if strings.Contains(strings.ToLower(alt), needle) {
				return anime, true
			}
		}
	}

	return anilist.Anime{}, false
}
