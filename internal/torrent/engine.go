package torrent

import (
	"context"
	"errors"
)

// Common errors
var (
	ErrTransferNotFound = errors.New("transfer not found")
	ErrInvalidMagnet    = errors.New("invalid magnet URI")
	ErrInvalidTorrent   = errors.New("invalid torrent file")
)

// State is the lifecycle state of a transfer. Requested, Downloading and
// Seeding are driven by the engine itself; NotCached and Cached exist for
// debrid-style availability reporting on the API surface and are never
// produced by this engine.
type State string

const (
	StateUnknown     State = "unknown"
	StateNotCached   State = "not_cached"
	StateCached      State = "cached"
	StateRequested   State = "requested"
	StateDownloading State = "downloading"
	StateSeeding     State = "seeding"
)

// Terminal reports whether the state means the transfer's data is complete.
func (s State) Terminal() bool { return s == StateSeeding }

// StateChange is delivered to subscribers whenever a transfer moves between
// states.
type StateChange struct {
	InfoHash string
	Previous State
	New      State
}

// Transfer is a handle on one torrent transfer. The info hash is stable
// across restarts and is the persistence key.
type Transfer interface {
	// InfoHash returns the content identifier as lowercase hex.
	InfoHash() string
	// Name returns the display name of the torrent.
	Name() string
	// SavePath returns the directory the data is written to.
	SavePath() string
	// Complete reports whether all data has been downloaded and verified.
	Complete() bool
	// State returns the current lifecycle state.
	State() State
}

// Status is a point-in-time snapshot of a transfer for the API surface.
type Status struct {
	InfoHash   string
	Name       string
	SavePath   string
	State      State
	TotalSize  int64
	Downloaded int64
	Progress   float64 // 0.0 to 1.0
	Seeders    int
	Leechers   int
}

// Engine is the swarm-engine capability: it performs the actual peer-to-peer
// transfer and reports lifecycle state changes. Known transfers are reloaded
// from the spec store at startup so that in-flight downloads survive process
// restarts.
type Engine interface {
	// DownloadFromURL fetches a .torrent resource and starts downloading its
	// content into dir.
	DownloadFromURL(ctx context.Context, torrentURL, dir string) (Transfer, error)

	// DownloadFromMagnet starts downloading the content of a magnet URI into
	// dir. Returns ErrInvalidMagnet if the URI cannot be parsed. Metadata is
	// fetched from the swarm in the background; a transfer whose metadata
	// never arrives stays in the Requested state.
	DownloadFromMagnet(ctx context.Context, magnetURI, dir string) (Transfer, error)

	// Resume re-enables downloading for a previously loaded transfer.
	Resume(t Transfer) error

	// ReloadSaved re-adds every transfer persisted by a previous run, in the
	// Requested state. Must be called once, before ResumeIncomplete-style
	// recovery logic runs.
	ReloadSaved() error

	// Transfers returns all transfers known to the engine.
	Transfers() []Transfer

	// Get returns the transfer with the given info hash.
	// Returns ErrTransferNotFound if the engine does not know it.
	Get(infoHash string) (Transfer, error)

	// Subscribe returns a channel delivering state changes for the transfer.
	// The channel is closed after the terminal state has been delivered.
	Subscribe(t Transfer) <-chan StateChange

	// Statuses returns snapshots of all transfers.
	Statuses() []Status

	// Remove drops a transfer from the engine and forgets its saved spec.
	Remove(infoHash string) error

	// Close shuts down the engine.
	Close() error
}
