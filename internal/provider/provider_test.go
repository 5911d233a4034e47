package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hoshiko-tv/hoshiko/internal/extract"
)

// fakeResolver resolves any server URL containing "good" and fails the rest.
type fakeResolver struct{}

func (fakeResolver) Resolve(_ context.Context, serverURL string) *extract.Stream {
	if strings.Contains(serverURL, "good") {
		return &extract.Stream{URL: serverURL, Referer: "https://host.example/"}
	}
	return nil
}

func episodeCard(href string, ep int) string {
	return fmt.Sprintf(
		`<div class="episodes-card"><div class="episodes-card-title"><h3><a href=%q>Episode %d</a></h3></div></div>`,
		href, ep)
}

func serverPayload(t *testing.T, tiers map[string]map[string]string) string {
	t.Helper()
	raw, err := json.Marshal(tiers)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestSearch(t *testing.T) {
	require := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal("animes", r.URL.Query().Get("search_param"))
		require.Equal("frieren", r.URL.Query().Get("s"))
		fmt.Fprint(w, `
			<div class="anime-card-container">
				<img alt="Sousou no Frieren" src="/img/frieren.jpg">
				<a href="https://site.example/anime/frieren"></a>
			</div>
			<div class="anime-card-container">
				<img alt="No Link Show" src="/img/nolink.jpg">
			</div>`)
	}))
	defer srv.Close()

	p := New(srv.URL, fakeResolver{}, nil)
	items, err := p.Search(context.Background(), "frieren")
	require.NoError(err)

	// The card without a link is dropped.
	require.Len(items, 1)
	require.Equal("Sousou no Frieren", items[0].Title)
	require.Equal("https://site.example/anime/frieren", items[0].URL)
	require.Equal("/img/frieren.jpg", items[0].Image)
}

func TestRecentlyAired(t *testing.T) {
	require := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal("/episode/page/2", r.URL.Path)
		fmt.Fprint(w, `
			<div class="anime-card-container">
				<img src="/img/a.jpg">
				<div class="episodes-card-title"><a>Episode 7</a></div>
				<div class="anime-card-title"><a href="https://site.example/anime/a">Show A</a></div>
			</div>
			<div class="anime-card-container">
				<div class="episodes-card-title"><a>Special</a></div>
				<div class="anime-card-title"><a href="https://site.example/anime/b">Show B</a></div>
			</div>
			<div class="anime-card-container">
				<img src="/img/c.jpg">
				<div class="episodes-card-title"><a>Episode 13.5</a></div>
				<div class="anime-card-title"><a href="https://site.example/anime/c">Show C</a></div>
			</div>`)
	}))
	defer srv.Close()

	p := New(srv.URL, fakeResolver{}, nil)
	episodes, err := p.RecentlyAired(context.Background(), 2)
	require.NoError(err)

	// The card without a numeric episode token is dropped.
	require.Len(episodes, 2)
	require.Equal("Show A", episodes[0].Title)
	require.Equal(7, episodes[0].Episode)
	require.Equal("https://site.example/anime/a", episodes[0].URL)
	require.Equal("Show C", episodes[1].Title)
	require.Equal(13, episodes[1].Episode)
	require.Equal("13.5", episodes[1].EpisodeText)
}

func TestCountEpisodes(t *testing.T) {
	require := require.New(t)

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/anime/show", func(w http.ResponseWriter, _ *http.Request) {
		for ep := 1; ep <= 12; ep++ {
			fmt.Fprint(w, episodeCard(fmt.Sprintf("%s/ep/%d", srv.URL, ep), ep))
		}
	})
	mux.HandleFunc("/anime/empty", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<div class="content">nothing here</div>`)
	})

	p := New(srv.URL, fakeResolver{}, nil)

	count, err := p.CountEpisodes(context.Background(), srv.URL+"/anime/show")
	require.NoError(err)
	require.Equal(12, count)

	_, err = p.CountEpisodes(context.Background(), srv.URL+"/anime/empty")
	require.ErrorIs(err, ErrNoEpisodes)
}

func TestStreamsForRange(t *testing.T) {
	require := require.New(t)

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/anime/show", func(w http.ResponseWriter, _ *http.Request) {
		for ep := 1; ep <= 3; ep++ {
			fmt.Fprint(w, episodeCard(fmt.Sprintf("%s/ep/%d", srv.URL, ep), ep))
		}
	})

	var episodePagesFetched atomic.Int32
	for ep := 1; ep <= 3; ep++ {
		ep := ep
		mux.HandleFunc(fmt.Sprintf("/ep/%d", ep), func(w http.ResponseWriter, _ *http.Request) {
			episodePagesFetched.Add(1)
			payload := serverPayload(t, map[string]map[string]string{
				// Mirror "a" always fails; "b" resolves.
				"fhd": {
					"a": fmt.Sprintf("https://bad.example/ep%d", ep),
					"b": fmt.Sprintf("https://good.example/ep%d-fhd", ep),
				},
				"sd": {
					"a": fmt.Sprintf("https://good.example/ep%d-sd", ep),
				},
			})
			fmt.Fprintf(w, `<form><input name="wl" value=%q></form>`, payload)
		})
	}

	p := New(srv.URL, fakeResolver{}, nil)

	streams, err := p.StreamsForRange(context.Background(), srv.URL+"/anime/show", Single(2))
	require.NoError(err)

	var collected []VideoStream
	for stream := range streams {
		collected = append(collected, stream)
	}

	// One stream per present tier, best tier first, failed mirror skipped.
	require.Len(collected, 2)
	require.Equal(2, collected[0].Episode)
	require.Equal(TierFullHD, collected[0].Tier)
	require.Equal("https://good.example/ep2-fhd", collected[0].URL)
	require.Equal(TierSD, collected[1].Tier)
	require.Equal("https://good.example/ep2-sd", collected[1].URL)

	// Episodes outside the range are never fetched.
	require.Equal(int32(1), episodePagesFetched.Load())
}

func TestStreamsForRangeSingleFromLongListing(t *testing.T) {
	require := require.New(t)

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/anime/show", func(w http.ResponseWriter, _ *http.Request) {
		for ep := 1; ep <= 12; ep++ {
			fmt.Fprint(w, episodeCard(fmt.Sprintf("%s/ep/%d", srv.URL, ep), ep))
		}
	})
	mux.HandleFunc("/ep/", func(w http.ResponseWriter, r *http.Request) {
		payload := serverPayload(t, map[string]map[string]string{
			"sd": {"a": "https://good.example" + r.URL.Path},
		})
		fmt.Fprintf(w, `<form><input name="wl" value=%q></form>`, payload)
	})

	p := New(srv.URL, fakeResolver{}, nil)

	streams, err := p.StreamsForRange(context.Background(), srv.URL+"/anime/show", Single(1))
	require.NoError(err)

	var collected []VideoStream
	for stream := range streams {
		collected = append(collected, stream)
	}

	require.Len(collected, 1)
	require.Equal(1, collected[0].Episode)
	require.Equal("https://good.example/ep/1", collected[0].URL)
}

func TestStreamsForRangeSkipsBrokenEpisode(t *testing.T) {
	require := require.New(t)

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/anime/show", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, episodeCard(srv.URL+"/ep/1", 1))
		fmt.Fprint(w, episodeCard(srv.URL+"/ep/2", 2))
	})
	mux.HandleFunc("/ep/1", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<div>no payload on this page</div>`)
	})
	mux.HandleFunc("/ep/2", func(w http.ResponseWriter, _ *http.Request) {
		payload := serverPayload(t, map[string]map[string]string{
			"hd": {"a": "https://good.example/ep2-hd"},
		})
		fmt.Fprintf(w, `<form><input name="wl" value=%q></form>`, payload)
	})

	p := New(srv.URL, fakeResolver{}, nil)

	streams, err := p.StreamsForRange(context.Background(), srv.URL+"/anime/show", All())
	require.NoError(err)

	var collected []VideoStream
	for stream := range streams {
		collected = append(collected, stream)
	}

	// The payload-less episode is absorbed; the next one still resolves.
	require.Len(collected, 1)
	require.Equal(2, collected[0].Episode)
	require.Equal(TierHD, collected[0].Tier)
}

func TestStreamsForRangeCancellation(t *testing.T) {
	require := require.New(t)

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/anime/show", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, episodeCard(srv.URL+"/ep/1", 1))
		fmt.Fprint(w, episodeCard(srv.URL+"/ep/2", 2))
	})
	for ep := 1; ep <= 2; ep++ {
		ep := ep
		mux.HandleFunc(fmt.Sprintf("/ep/%d", ep), func(w http.ResponseWriter, _ *http.Request) {
			payload := serverPayload(t, map[string]map[string]string{
				"sd": {"a": fmt.Sprintf("https://good.example/ep%d-sd", ep)},
			})
			fmt.Fprintf(w, `<form><input name="wl" value=%q></form>`, payload)
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := New(srv.URL, fakeResolver{}, nil)

	streams, err := p.StreamsForRange(ctx, srv.URL+"/anime/show", All())
	require.NoError(err)

	// Take the first stream, then cancel; the channel must close without
	// the consumer draining the rest.
	first, ok := <-streams
	require.True(ok)
	require.Equal(1, first.Episode)
	cancel()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-streams:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream channel did not close after cancellation")
		}
	}
}
