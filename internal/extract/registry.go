// Package extract resolves hosting-provider URLs into playable video streams.
//
// Each supported host has one extractor; dispatch is by substring match on a
// host-identifying fragment of the URL against an ordered rule table. Failure
// of any kind inside an extractor - network error, malformed payload, missing
// element - is absorbed at the registry boundary and reported as "no stream":
// a single dead mirror must never abort resolution of the remaining mirrors.
package extract

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hoshiko-tv/hoshiko/internal/metrics"
)

// Stream is a resolved, directly playable video source.
type Stream struct {
	// URL of the playable media.
	URL string
	// Referer some CDNs require on the media request; empty when not needed.
	Referer string
}

type extractFunc func(ctx context.Context, serverURL string) (*Stream, error)

// rule maps a host-identifying URL fragment to its extractor. Rules are
// evaluated in table order; the first matching fragment wins and exactly one
// extractor runs per URL.
type rule struct {
	fragment string
	extract  extractFunc
}

// Registry dispatches server URLs to per-host extractors.
type Registry struct {
	http    *http.Client
	siteURL string // referer for hosts that gate on the origin site
	rules   []rule
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewRegistry creates a registry with the full extractor table. siteURL is
// the catalog site base URL, sent as referer to hosts that require it.
// Metrics may be nil.
func NewRegistry(siteURL string, m *metrics.Metrics) *Registry {
	r := &Registry{
		http:    newHTTPClient(),
		siteURL: siteURL,
		metrics: m,
		log:     slog.With("component", "extract-registry"),
	}

	r.rules = []rule{
		{"yonaplay", r.extractMultiMirror},
		{"4shared", r.extractFourShared},
		{"soraplay", r.extractSoraPlay},
		{"drive.google.com", r.extractGoogleDrive},
		{"dailymotion", r.extractDailymotion},
		{"ok.ru", r.extractOkRu},
		{"dood", r.extractDood},
		{"mp4upload.com", r.extractMp4Upload},
		{"sega", r.extractVidBom},
		{"uqload", r.extractUqLoad},
	}

	return r
}

// Resolve turns a server URL into a playable stream, or nil when the host is
// unrecognized or its extractor fails. Resolve never returns an error and
// never panics; it is a total function over URLs.
func (r *Registry) Resolve(ctx context.Context, serverURL string) (s *Stream) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Warn("extractor panic absorbed", "url", serverURL, "panic", p)
			s = nil
		}
	}()

	for _, rule := range r.rules {
		if !strings.Contains(serverURL, rule.fragment) {
			continue
		}

		if r.metrics != nil {
			r.metrics.ExtractorAttempts.Inc()
		}

		stream, err := rule.extract(ctx, serverURL)
		if err != nil || stream == nil {
			if r.metrics != nil {
				r.metrics.ExtractorMisses.Inc()
			}
			r.log.Debug("extractor yielded no stream",
				"fragment", rule.fragment,
				"url", serverURL,
				"error", err,
			)
			return nil
		}

		return stream
	}

	return nil
}
