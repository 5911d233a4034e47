package torrent

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/anacrolix/torrent/storage"

	"github.com/hoshiko-tv/hoshiko/internal/store"
)

// Ensure engine implements Engine interface
var _ Engine = (*engine)(nil)

// engine implements the Engine interface using anacrolix/torrent.
type engine struct {
	mu     sync.RWMutex
	client *torrent.Client
	specs  *store.Store
	httpc  *http.Client

	// Loaded transfers by info hash (lowercase hex)
	transfers map[string]*transfer

	addTimeout   time.Duration
	pollInterval time.Duration

	stopChan chan struct{}
	stopOnce sync.Once

	log *slog.Logger
}

// NewEngine creates a swarm engine on top of an anacrolix client. Transfer
// specs are saved to st so that ReloadSaved can re-add them after a restart.
func NewEngine(client *torrent.Client, st *store.Store, addTimeout, pollInterval time.Duration) Engine {
	return &engine{
		client:       client,
		specs:        st,
		httpc:        &http.Client{Timeout: 30 * time.Second},
		transfers:    make(map[string]*transfer),
		addTimeout:   addTimeout,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		log:          slog.With("component", "torrent-engine"),
	}
}

// DownloadFromURL fetches a .torrent resource and starts the transfer.
func (e *engine) DownloadFromURL(ctx context.Context, torrentURL, dir string) (Transfer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, torrentURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := e.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrInvalidTorrent, resp.StatusCode)
	}

	mi, err := metainfo.Load(resp.Body)
	if err != nil {
		e.log.Warn("malformed torrent file", "url", torrentURL, "error", err)
		return nil, ErrInvalidTorrent
	}

	spec := torrent.TorrentSpecFromMetaInfo(mi)
	hash := spec.InfoHash.HexString()

	t, err := e.add(hash, spec, dir, true)
	if err != nil {
		return nil, err
	}

	e.saveSpec(hash, store.TransferSpec{TorrentURL: torrentURL, Dir: dir, Name: t.Name()})
	return t, nil
}

// DownloadFromMagnet starts a transfer from a magnet URI.
func (e *engine) DownloadFromMagnet(ctx context.Context, magnetURI, dir string) (Transfer, error) {
	spec, err := torrent.TorrentSpecFromMagnetUri(magnetURI)
	if err != nil {
		e.log.Warn("invalid magnet URI", "error", err)
		return nil, ErrInvalidMagnet
	}

	hash := spec.InfoHash.HexString()

	t, err := e.add(hash, spec, dir, true)
	if err != nil {
		return nil, err
	}

	e.saveSpec(hash, store.TransferSpec{MagnetURI: magnetURI, Dir: dir, Name: t.Name()})
	return t, nil
}

// ReloadSaved re-adds every transfer spec persisted by a previous run. The
// transfers come back in the Requested state; downloading does not restart
// until Resume is called on them.
func (e *engine) ReloadSaved() error {
	savedSpecs, err := e.specs.ListTransfers()
	if err != nil {
		return err
	}

	for hash, saved := range savedSpecs {
		var spec *torrent.TorrentSpec
		switch {
		case saved.MagnetURI != "":
			spec, err = torrent.TorrentSpecFromMagnetUri(saved.MagnetURI)
			if err != nil {
				e.log.Warn("skipping saved transfer with bad magnet", "hash", hash, "error", err)
				continue
			}
		case saved.TorrentURL != "":
			// The metadata will be re-fetched from the swarm; the saved URL
			// may no longer resolve.
			spec = &torrent.TorrentSpec{DisplayName: saved.Name}
			if err := spec.InfoHash.FromHexString(hash); err != nil {
				e.log.Warn("skipping saved transfer with bad hash", "hash", hash, "error", err)
				continue
			}
		default:
			continue
		}

		if _, err := e.add(hash, spec, saved.Dir, false); err != nil {
			e.log.Warn("failed to reload transfer", "hash", hash, "error", err)
		}
	}

	e.log.Info("reloaded saved transfers", "count", len(savedSpecs))
	return nil
}

// add registers a torrent spec with the client and starts its state watcher.
// When download is true the transfer begins fetching data as soon as
// metadata is known; otherwise it stays Requested until Resume.
func (e *engine) add(hash string, spec *torrent.TorrentSpec, dir string, download bool) (*transfer, error) {
	e.mu.RLock()
	existing, exists := e.transfers[hash]
	e.mu.RUnlock()

	if exists {
		e.log.Debug("transfer already loaded", "hash", hash)
		return existing, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	spec.Storage = storage.NewFile(dir)

	t, _, err := e.client.AddTorrentSpec(spec)
	if err != nil {
		e.log.Error("failed to add torrent", "hash", hash, "error", err)
		return nil, err
	}

	tr := &transfer{
		t:        t,
		hash:     hash,
		savePath: dir,
		state:    StateRequested,
	}

	e.mu.Lock()
	e.transfers[hash] = tr
	e.mu.Unlock()

	go e.watch(tr, download)

	e.log.Info("transfer added", "hash", hash, "dir", dir, "download", download)
	return tr, nil
}

// watch drives the Requested -> Downloading -> Seeding transitions for one
// transfer and exits once the terminal state has been published.
func (e *engine) watch(tr *transfer, download bool) {
	// Nilled once metadata is known so the select stops ranging over it.
	gotInfo := tr.t.GotInfo()

	if download {
		select {
		case <-gotInfo:
			gotInfo = nil
			tr.t.DownloadAll()
			tr.setState(StateDownloading)
		case <-time.After(e.addTimeout):
			// Sparse swarms can take minutes to serve magnet metadata; keep
			// waiting for it in the poll loop below.
			e.log.Warn("slow torrent metadata, waiting in background", "hash", tr.InfoHash())
		case <-e.stopChan:
			return
		}
	}

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-gotInfo:
			gotInfo = nil
			if download {
				tr.t.DownloadAll()
				tr.setState(StateDownloading)
			}
		case <-ticker.C:
			if tr.t.Info() == nil {
				continue
			}
			if tr.Complete() {
				tr.setState(StateSeeding)
				return
			}
			if tr.downloading() {
				tr.setState(StateDownloading)
			}
		}
	}
}

func (e *engine) saveSpec(hash string, spec store.TransferSpec) {
	if err := e.specs.AddTransfer(hash, spec); err != nil {
		// Best effort; losing the spec only costs the resume after a crash.
		e.log.Warn("failed to persist transfer spec", "hash", hash, "error", err)
	}
}

// Resume re-enables downloading for a loaded transfer. Safe to call before
// metadata has arrived; downloading starts once it does.
func (e *engine) Resume(t Transfer) error {
	tr, ok := t.(*transfer)
	if !ok {
		return ErrTransferNotFound
	}

	go func() {
		select {
		case <-tr.t.GotInfo():
			tr.t.DownloadAll()
			tr.setState(StateDownloading)
		case <-e.stopChan:
		}
	}()

	e.log.Info("resumed transfer", "hash", tr.InfoHash())
	return nil
}

// Transfers returns all transfers known to the engine.
func (e *engine) Transfers() []Transfer {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Transfer, 0, len(e.transfers))
	for _, tr := range e.transfers {
		out = append(out, tr)
	}
	return out
}

// Get returns the transfer with the given info hash.
func (e *engine) Get(infoHash string) (Transfer, error) {
	e.mu.RLock()
	tr, exists := e.transfers[infoHash]
	e.mu.RUnlock()

	if !exists {
		return nil, ErrTransferNotFound
	}
	return tr, nil
}

// Subscribe returns a channel of state changes for the transfer. The channel
// is buffered for the full lifecycle, so a slow consumer never blocks the
// watcher.
func (e *engine) Subscribe(t Transfer) <-chan StateChange {
	tr := t.(*transfer)

	ch := make(chan StateChange, 8)

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.state.Terminal() {
		// Already finished; deliver the terminal transition immediately.
		ch <- StateChange{InfoHash: tr.hashLocked(), Previous: StateDownloading, New: tr.state}
		close(ch)
		return ch
	}
	tr.subs = append(tr.subs, ch)
	return ch
}

// Statuses returns snapshots of all transfers.
func (e *engine) Statuses() []Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Status, 0, len(e.transfers))
	for _, tr := range e.transfers {
		out = append(out, tr.status())
	}
	return out
}

// Remove drops a transfer and forgets its saved spec. Downloaded data stays
// on disk.
func (e *engine) Remove(infoHash string) error {
	e.mu.Lock()
	tr, exists := e.transfers[infoHash]
	if !exists {
		e.mu.Unlock()
		return ErrTransferNotFound
	}
	delete(e.transfers, infoHash)
	e.mu.Unlock()

	tr.t.Drop()
	tr.closeSubs()

	if err := e.specs.RemoveTransfer(infoHash); err != nil {
		e.log.Warn("failed to remove transfer spec", "hash", infoHash, "error", err)
	}

	e.log.Info("removed transfer", "hash", infoHash)
	return nil
}

// Close shuts down the engine. The anacrolix client itself is closed by the
// caller that created it.
func (e *engine) Close() error {
	e.stopOnce.Do(func() { close(e.stopChan) })

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, tr := range e.transfers {
		tr.closeSubs()
	}
	e.transfers = make(map[string]*transfer)

	e.log.Info("torrent engine closed")
	return nil
}

// transfer wraps an anacrolix torrent with lifecycle state and subscribers.
type transfer struct {
	t        *torrent.Torrent
	hash     string // lowercase hex, immutable
	savePath string

	mu    sync.Mutex
	state State
	subs  []chan StateChange
}

func (tr *transfer) InfoHash() string { return tr.hash }
func (tr *transfer) SavePath() string { return tr.savePath }

func (tr *transfer) Name() string {
	if info := tr.t.Info(); info != nil {
		return info.Name
	}
	return tr.t.Name()
}

func (tr *transfer) Complete() bool {
	info := tr.t.Info()
	return info != nil && tr.t.BytesCompleted() >= info.TotalLength()
}

func (tr *transfer) State() State {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.state
}

func (tr *transfer) downloading() bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.state == StateDownloading
}

// setState publishes a transition to all subscribers. Reaching the terminal
// state closes the subscriber channels.
func (tr *transfer) setState(next State) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if tr.state == next {
		return
	}

	change := StateChange{InfoHash: tr.hashLocked(), Previous: tr.state, New: next}
	tr.state = next

	for _, ch := range tr.subs {
		select {
		case ch <- change:
		default:
			// Subscriber fell behind; state can be re-read from the handle.
		}
	}

	if next.Terminal() {
		for _, ch := range tr.subs {
			close(ch)
		}
		tr.subs = nil
	}
}

func (tr *transfer) closeSubs() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for _, ch := range tr.subs {
		close(ch)
	}
	tr.subs = nil
}

func (tr *transfer) hashLocked() string { return tr.hash }

func (tr *transfer) status() Status {
	var totalSize int64
	if info := tr.t.Info(); info != nil {
		totalSize = info.TotalLength()
	}

	var progress float64
	if totalSize > 0 {
		progress = float64(tr.t.BytesCompleted()) / float64(totalSize)
	}

	stats := tr.t.Stats()

	return Status{
		InfoHash:   tr.InfoHash(),
		Name:       tr.Name(),
		SavePath:   tr.savePath,
		State:      tr.State(),
		TotalSize:  totalSize,
		Downloaded: tr.t.BytesCompleted(),
		Progress:   progress,
		Seeders:    stats.ConnectedSeeders,
		Leechers:   stats.ActivePeers - stats.ConnectedSeeders,
	}
}
