package torrent

import (
	"context"
	"log/slog"
	"time"

	"github.com/anacrolix/dht/v2"
	"github.com/anacrolix/dht/v2/bep44"
	tlog "github.com/anacrolix/log"
	"github.com/anacrolix/torrent"
)

// torrentLogHandler adapts slog for anacrolix/torrent's logger.
type torrentLogHandler struct {
	log *slog.Logger
}

func (h *torrentLogHandler) Handle(r tlog.Record) {
	level := slog.LevelDebug
	switch r.Level {
	case tlog.Critical, tlog.Error:
		level = slog.LevelError
	case tlog.Warning:
		level = slog.LevelWarn
	case tlog.Info:
		level = slog.LevelInfo
	case tlog.Debug:
		level = slog.LevelDebug
	}
	h.log.Log(context.Background(), level, r.Msg.String())
}

// NewClient creates the anacrolix client the engine runs on. Storage is set
// per transfer (each show downloads into its own directory), so no default
// storage is configured here.
func NewClient(peerID [20]byte, itemStore bep44.Store) (*torrent.Client, error) {
	log := slog.With("component", "torrent-client")

	torrentCfg := torrent.NewDefaultClientConfig()
	torrentCfg.Seed = true
	torrentCfg.PeerID = string(peerID[:])

	// Disable IPv6 for simpler networking
	torrentCfg.DisableIPv6 = true

	// Configure logging
	tl := tlog.NewLogger()
	tl.SetHandlers(&torrentLogHandler{log: log})
	torrentCfg.Logger = tl

	// Configure DHT server with item store
	torrentCfg.ConfigureAnacrolixDhtServer = func(dhtCfg *dht.ServerConfig) {
		dhtCfg.Store = itemStore
		dhtCfg.Exp = 2 * time.Hour
		dhtCfg.NoSecurity = false
	}

	client, err := torrent.NewClient(torrentCfg)
	if err != nil {
		return nil, err
	}

	log.Info("torrent client created",
		"seeding", true,
		"ipv6_disabled", true,
	)

	return client, nil
}
