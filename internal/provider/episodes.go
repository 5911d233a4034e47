package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrNoEpisodes means the listing page had no parseable episode cards.
	ErrNoEpisodes = errors.New("no episodes found on listing page")
	// ErrNoPayload means an episode page carried no server payload.
	ErrNoPayload = errors.New("no server payload on episode page")
)

// CountEpisodes fetches a show's episode-listing page and returns the number
// of the last listed episode. Listing fetch or parse failures are fatal to
// the call.
func (p *Provider) CountEpisodes(ctx context.Context, pageURL string) (int, error) {
	doc, err := p.getDocument(ctx, pageURL)
	if err != nil {
		return 0, err
	}
	return countEpisodes(doc)
}

func countEpisodes(doc *goquery.Document) (int, error) {
	last := doc.Find(".episodes-card").Last()
	if last.Length() == 0 {
		return 0, ErrNoEpisodes
	}

	_, n, ok := episodeNumber(last.Text())
	if !ok {
		return 0, fmt.Errorf("%w: unparseable last episode card", ErrNoEpisodes)
	}
	return n, nil
}

// StreamsForRange lazily resolves playable streams for the episodes of a show
// within r. The listing page is fetched once, up front; a failure there is
// returned immediately. The returned channel then yields streams in listing
// document order and closes when the range is exhausted or ctx is cancelled.
//
// Every quality tier present on an episode page is attempted independently
// and each present tier contributes at most one stream, so a single episode
// may yield up to one stream per tier. Failures confined to one mirror or
// one episode page are absorbed; they never abort the enumeration.
func (p *Provider) StreamsForRange(ctx context.Context, pageURL string, r Range) (<-chan VideoStream, error) {
	doc, err := p.getDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	total, err := countEpisodes(doc)
	if err != nil {
		return nil, err
	}

	start, end := r.Resolve(total)

	out := make(chan VideoStream)
	go func() {
		defer close(out)

		doc.Find(".episodes-card").EachWithBreak(func(_ int, card *goquery.Selection) bool {
			if ctx.Err() != nil {
				return false
			}

			title := card.Find(".episodes-card-title a")
			_, ep, ok := episodeNumber(title.Text())
			if !ok {
				return true
			}

			if ep < start {
				return true
			}
			// Listing order is assumed monotonically non-decreasing; past the
			// end of the range there is nothing left to visit.
			if ep > end {
				return false
			}

			epURL, ok := title.Attr("href")
			if !ok {
				return true
			}

			p.resolveEpisode(ctx, epURL, ep, out)
			return ctx.Err() == nil
		})
	}()

	return out, nil
}

// resolveEpisode fetches one episode-detail page, decodes its server payload
// and emits at most one stream per present quality tier. Any failure here is
// confined to this episode.
func (p *Provider) resolveEpisode(ctx context.Context, epURL string, ep int, out chan<- VideoStream) {
	tiers, err := p.fetchServerGroups(ctx, epURL)
	if err != nil {
		p.log.Warn("skipping episode", "url", epURL, "episode", ep, "error", err)
		return
	}

	for _, tier := range tierOrder {
		servers, present := tiers[string(tier)]
		if !present {
			continue
		}

		for _, serverURL := range sortedValues(servers) {
			stream := p.resolver.Resolve(ctx, serverURL)
			if stream == nil {
				continue
			}

			if p.metrics != nil {
				p.metrics.StreamsResolved.Inc()
			}

			select {
			case out <- VideoStream{Episode: ep, Tier: tier, URL: stream.URL, Referer: stream.Referer}:
			case <-ctx.Done():
				return
			}
			break
		}
	}
}

// fetchServerGroups decodes the base64 JSON payload embedded in an episode
// page: an object keyed by tier name ("fhd"/"hd"/"sd"), each mapping server
// names to server URLs.
func (p *Provider) fetchServerGroups(ctx context.Context, epURL string) (map[string]map[string]string, error) {
	doc, err := p.getDocument(ctx, epURL)
	if err != nil {
		return nil, err
	}

	payload, ok := doc.Find("input[name=wl]").Attr("value")
	if !ok || payload == "" {
		return nil, ErrNoPayload
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding server payload: %w", err)
	}

	var tiers map[string]map[string]string
	if err := json.Unmarshal(raw, &tiers); err != nil {
		return nil, fmt.Errorf("parsing server payload: %w", err)
	}

	return tiers, nil
}

// sortedValues returns the map values in key order, for a stable mirror
// attempt order.
func sortedValues(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(m))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}
