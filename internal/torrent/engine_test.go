package torrent

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/stretchr/testify/require"

	"github.com/hoshiko-tv/hoshiko/internal/store"
)

const testHash = "c9e15763f722f23e98a29decdfae341b98d53056"

func TestStateTerminal(t *testing.T) {
	t.Parallel()

	for _, s := range []State{StateUnknown, StateNotCached, StateCached, StateRequested, StateDownloading} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	if !StateSeeding.Terminal() {
		t.Error("seeding should be terminal")
	}
}

func TestTransferStateTransitions(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	tr := &transfer{hash: testHash, state: StateRequested}

	ch := make(chan StateChange, 8)
	tr.subs = append(tr.subs, ch)

	tr.setState(StateDownloading)
	// Same-state transitions are suppressed.
	tr.setState(StateDownloading)
	tr.setState(StateSeeding)

	change := <-ch
	require.Equal(StateChange{InfoHash: testHash, Previous: StateRequested, New: StateDownloading}, change)

	change = <-ch
	require.Equal(StateChange{InfoHash: testHash, Previous: StateDownloading, New: StateSeeding}, change)

	// Terminal state closes the channel.
	_, open := <-ch
	require.False(open)

	require.Equal(StateSeeding, tr.State())
}

func TestTransferSlowSubscriberDropped(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	tr := &transfer{hash: testHash, state: StateRequested}

	// Zero-capacity subscriber with nobody receiving; publishing must not
	// block the watcher.
	full := make(chan StateChange)
	tr.subs = append(tr.subs, full)

	done := make(chan struct{})
	go func() {
		tr.setState(StateDownloading)
		close(done)
	}()
	<-done

	require.Equal(StateDownloading, tr.State())
}

func TestCloseSubs(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	tr := &transfer{hash: testHash, state: StateDownloading}
	ch := make(chan StateChange, 1)
	tr.subs = append(tr.subs, ch)

	tr.closeSubs()
	_, open := <-ch
	require.False(open)
	require.Nil(tr.subs)
}

// Magnet metadata on a sparse swarm can outlast the initial wait; the
// watcher must still start the download when the info arrives later.
func TestWatchLateMetadataStartsDownload(t *testing.T) {
	require := require.New(t)

	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "payload.bin")
	require.NoError(os.WriteFile(src, bytes.Repeat([]byte{0x2a}, 4096), 0644))

	var info metainfo.Info
	info.PieceLength = 16384
	require.NoError(info.BuildFromFilePath(src))
	infoBytes, err := bencode.Marshal(info)
	require.NoError(err)
	hash := metainfo.HashBytes(infoBytes)

	cfg := torrent.NewDefaultClientConfig()
	cfg.DataDir = t.TempDir()
	cfg.ListenPort = 0
	cfg.NoDHT = true
	cfg.DisableTrackers = true
	cfg.DisablePEX = true
	cfg.NoDefaultPortForwarding = true
	cl, err := torrent.NewClient(cfg)
	require.NoError(err)
	defer cl.Close()

	st, err := store.Open(filepath.Join(t.TempDir(), "store"))
	require.NoError(err)
	defer st.Close()

	eng := NewEngine(cl, st, 10*time.Millisecond, 25*time.Millisecond)
	defer eng.Close()

	tf, err := eng.DownloadFromMagnet(context.Background(),
		"magnet:?xt=urn:btih:"+hash.HexString(), t.TempDir())
	require.NoError(err)
	tr := tf.(*transfer)

	// Outlast the initial metadata wait; nothing should have started.
	time.Sleep(50 * time.Millisecond)
	require.Equal(StateRequested, tr.State())

	require.NoError(tr.t.SetInfoBytes(infoBytes))

	require.Eventually(func() bool {
		return tr.State() == StateDownloading
	}, 5*time.Second, 20*time.Millisecond)
}
