package torrent

import (
	"crypto/rand"
	"os"
)

// peerIDPrefix is the azureus-style client tag; the remaining 12 bytes are
// random.
const peerIDPrefix = "-HK0001-"

var emptyPeerID [20]byte

// GetOrCreatePeerID loads the persisted 20-byte BitTorrent peer ID, minting
// and saving a fresh one on first run. Keeping the ID on disk gives the
// client a stable swarm identity across restarts.
func GetOrCreatePeerID(path string) ([20]byte, error) {
	idb, err := os.ReadFile(path)
	if err == nil && len(idb) >= 20 {
		var out [20]byte
		copy(out[:], idb)
		return out, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return emptyPeerID, err
	}

	var out [20]byte
	copy(out[:], peerIDPrefix)
	if _, err := rand.Read(out[len(peerIDPrefix):]); err != nil {
		return emptyPeerID, err
	}

	if err := os.WriteFile(path, out[:], 0644); err != nil {
		return emptyPeerID, err
	}

	return out, nil
}
