package downloader

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hoshiko-tv/hoshiko/internal/anilist"
	"github.com/hoshiko-tv/hoshiko/internal/config"
	"github.com/hoshiko-tv/hoshiko/internal/feed"
	"github.com/hoshiko-tv/hoshiko/internal/notify"
	"github.com/hoshiko-tv/hoshiko/internal/store"
	"github.com/hoshiko-tv/hoshiko/internal/torrent"
)

const (
	hash1 = "c9e15763f722f23e98a29decdfae341b98d53056"
	hash2 = "aaaa0000aaaa0000aaaa0000aaaa0000aaaa0000"
)

type fakeTransfer struct {
	hash     string
	name     string
	dir      string
	complete bool
	state    torrent.State
}

func (t *fakeTransfer) InfoHash() string     { return t.hash }
func (t *fakeTransfer) Name() string         { return t.name }
func (t *fakeTransfer) SavePath() string     { return t.dir }
func (t *fakeTransfer) Complete() bool       { return t.complete }
func (t *fakeTransfer) State() torrent.State { return t.state }

// fakeEngine is an in-memory torrent.Engine. Subscriptions are fed by the
// test through the changes map.
type fakeEngine struct {
	mu        sync.Mutex
	transfers map[string]*fakeTransfer
	changes   map[string]chan torrent.StateChange
	resumed   []string
	fromURL   []string
	fromURI   []string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		transfers: map[string]*fakeTransfer{},
		changes:   map[string]chan torrent.StateChange{},
	}
}

func (e *fakeEngine) add(t *fakeTransfer) {
	e.transfers[t.hash] = t
	e.changes[t.hash] = make(chan torrent.StateChange, 4)
}

func (e *fakeEngine) DownloadFromURL(_ context.Context, torrentURL, dir string) (torrent.Transfer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fromURL = append(e.fromURL, torrentURL)
	t := &fakeTransfer{hash: hash1, name: "release", dir: dir, state: torrent.StateDownloading}
	e.add(t)
	return t, nil
}

func (e *fakeEngine) DownloadFromMagnet(_ context.Context, magnetURI, dir string) (torrent.Transfer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fromURI = append(e.fromURI, magnetURI)
	t := &fakeTransfer{hash: hash2, name: "release", dir: dir, state: torrent.StateDownloading}
	e.add(t)
	return t, nil
}

func (e *fakeEngine) Resume(t torrent.Transfer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resumed = append(e.resumed, t.InfoHash())
	return nil
}

func (e *fakeEngine) ReloadSaved() error { return nil }

func (e *fakeEngine) Transfers() []torrent.Transfer {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]torrent.Transfer, 0, len(e.transfers))
	for _, t := range e.transfers {
		out = append(out, t)
	}
	return out
}

func (e *fakeEngine) Get(infoHash string) (torrent.Transfer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.transfers[infoHash]
	if !ok {
		return nil, torrent.ErrTransferNotFound
	}
	return t, nil
}

func (e *fakeEngine) Subscribe(t torrent.Transfer) <-chan torrent.StateChange {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.changes[t.InfoHash()]
}

func (e *fakeEngine) Statuses() []torrent.Status { return nil }
func (e *fakeEngine) Remove(string) error        { return nil }
func (e *fakeEngine) Close() error               { return nil }

// finish marks a transfer complete and delivers the terminal state change.
func (e *fakeEngine) finish(hash string) {
	e.mu.Lock()
	t := e.transfers[hash]
	ch := e.changes[hash]
	e.mu.Unlock()

	t.complete = true
	t.state = torrent.StateSeeding
	ch <- torrent.StateChange{InfoHash: hash, Previous: torrent.StateDownloading, New: torrent.StateSeeding}
	close(ch)
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *recordingNotifier) DownloadComplete(path, name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, path)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type recordingProgress struct {
	mu      sync.Mutex
	updates map[int]int
}

func (p *recordingProgress) UpdateProgress(_ context.Context, mediaID, progress int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.updates == nil {
		p.updates = map[int]int{}
	}
	p.updates[mediaID] = progress
	return nil
}

var _ notify.Notifier = (*recordingNotifier)(nil)
var _ torrent.Engine = (*fakeEngine)(nil)

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Downloads.Directory = t.TempDir()
	return cfg
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDownloadLifecycle(t *testing.T) {
	require := require.New(t)

	cfg := testConfig(t)
	engine := newFakeEngine()
	st := openTestStore(t)
	notifier := &recordingNotifier{}
	progress := &recordingProgress{}

	c := NewCoordinator(cfg, engine, st, progress, notifier, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	matches := make(chan feed.Match, 1)
	done := make(chan struct{})
	go func() {
		c.Run(ctx, matches)
		close(done)
	}()

	matches <- feed.Match{
		Anime:   anilist.Anime{ID: 101, Title: "Sousou no Frieren", WatchedEpisodes: 3},
		Episode: 4,
		Item:    feed.TorrentItem{RawTitle: "Sousou no Frieren - 04", URL: "https://mirror.example/4.torrent"},
	}

	// The download starts into the per-show directory and the hash is
	// persisted while in flight.
	require.Eventually(func() bool {
		hashes, err := st.ReadStringList("InfoHashes")
		return err == nil && len(hashes) == 1 && hashes[0] == hash1
	}, 5*time.Second, 10*time.Millisecond)

	engine.mu.Lock()
	require.Equal([]string{"https://mirror.example/4.torrent"}, engine.fromURL)
	saveDir := engine.transfers[hash1].dir
	engine.mu.Unlock()
	require.Equal(cfg.SaveDirectory("Sousou no Frieren"), saveDir)

	// Completion notifies, reports progress and clears the in-flight set.
	engine.finish(hash1)

	require.Eventually(func() bool { return notifier.count() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(func() bool {
		hashes, err := st.ReadStringList("InfoHashes")
		return err == nil && len(hashes) == 0
	}, 5*time.Second, 10*time.Millisecond)

	progress.mu.Lock()
	require.Equal(4, progress.updates[101])
	progress.mu.Unlock()

	close(matches)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the match channel closed")
	}
}

func TestDownloadFromMagnetItem(t *testing.T) {
	require := require.New(t)

	cfg := testConfig(t)
	engine := newFakeEngine()
	st := openTestStore(t)

	c := NewCoordinator(cfg, engine, st, nil, &recordingNotifier{}, nil)

	err := c.download(context.Background(), feed.Match{
		Anime:   anilist.Anime{ID: 7, Title: "Show"},
		Episode: 1,
		Item:    feed.MagnetItem{RawTitle: "Show - 01", URI: "magnet:?xt=urn:btih:" + hash2},
	})
	require.NoError(err)

	engine.mu.Lock()
	defer engine.mu.Unlock()
	require.Equal([]string{"magnet:?xt=urn:btih:" + hash2}, engine.fromURI)
}

func TestResumeIncomplete(t *testing.T) {
	require := require.New(t)

	cfg := testConfig(t)
	engine := newFakeEngine()
	st := openTestStore(t)

	// hash1 is still downloading, hash2 finished while the process was down,
	// and a third hash is not known to the engine at all.
	engine.add(&fakeTransfer{hash: hash1, name: "incomplete", state: torrent.StateRequested})
	engine.add(&fakeTransfer{hash: hash2, name: "finished", complete: true, state: torrent.StateSeeding})
	require.NoError(st.WriteStringList("InfoHashes", []string{
		hash1, hash2, "ffff0000ffff0000ffff0000ffff0000ffff0000",
	}))

	c := NewCoordinator(cfg, engine, st, nil, &recordingNotifier{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(c.ResumeIncomplete(ctx))

	engine.mu.Lock()
	require.Equal([]string{hash1}, engine.resumed)
	engine.mu.Unlock()

	// Only the genuinely in-flight hash survives reconciliation.
	hashes, err := st.ReadStringList("InfoHashes")
	require.NoError(err)
	require.Equal([]string{hash1}, hashes)
}
