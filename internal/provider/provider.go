// Package provider scrapes the catalog site: title search, the recently
// aired listing, and per-episode stream resolution through the extractor
// registry.
package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hoshiko-tv/hoshiko/internal/extract"
	"github.com/hoshiko-tv/hoshiko/internal/metrics"
)

// CatalogItem is one search result. Identity is the URL.
type CatalogItem struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Image string `json:"image"`
}

// AiredEpisode is one entry of the recently-aired listing. Ephemeral; never
// persisted.
type AiredEpisode struct {
	Title       string `json:"title"`
	Episode     int    `json:"episode"`
	EpisodeText string `json:"episode_text"`
	URL         string `json:"url"`
	Image       string `json:"image"`
}

// Tier is a named video-quality bucket.
type Tier string

const (
	TierFullHD Tier = "fhd"
	TierHD     Tier = "hd"
	TierSD     Tier = "sd"
)

// tierOrder is the priority in which quality tiers are attempted.
var tierOrder = []Tier{TierFullHD, TierHD, TierSD}

// VideoStream is a resolved playable stream for one episode at one quality
// tier.
type VideoStream struct {
	Episode int    `json:"episode"`
	Tier    Tier   `json:"tier"`
	URL     string `json:"url"`
	Referer string `json:"referer,omitempty"`
}

// StreamResolver turns a hosting-provider server URL into a playable stream,
// or nil when the host fails or is unknown. *extract.Registry implements it.
type StreamResolver interface {
	Resolve(ctx context.Context, serverURL string) *extract.Stream
}

// Provider scrapes one catalog site.
type Provider struct {
	baseURL  string
	http     *http.Client
	resolver StreamResolver
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// New creates a provider for the site at baseURL. Metrics may be nil.
func New(baseURL string, resolver StreamResolver, m *metrics.Metrics) *Provider {
	return &Provider{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 20 * time.Second},
		resolver: resolver,
		metrics:  m,
		log:      slog.With("component", "provider"),
	}
}

// getDocument fetches a page and parses it. Every resolver suspension point
// goes through here; the body is fully consumed and closed before the caller
// continues.
func (p *Provider) getDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return goquery.NewDocumentFromReader(resp.Body)
}
