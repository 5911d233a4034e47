package torrent

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetOrCreatePeerID(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "peer_id")

	id, err := GetOrCreatePeerID(path)
	require.NoError(err)
	require.NotEqual(emptyPeerID, id)
	require.True(strings.HasPrefix(string(id[:]), peerIDPrefix))

	// A second call returns the persisted identity.
	again, err := GetOrCreatePeerID(path)
	require.NoError(err)
	require.Equal(id, again)
}
