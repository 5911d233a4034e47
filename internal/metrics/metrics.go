package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds pipeline counters for direct instrumentation in the feed,
// extraction and acquisition layers.
type Metrics struct {
	FeedItemsSeen      prometheus.Counter
	FeedMatches        prometheus.Counter
	ExtractorAttempts  prometheus.Counter
	ExtractorMisses    prometheus.Counter
	StreamsResolved    prometheus.Counter
	DownloadsStarted   prometheus.Counter
	DownloadsCompleted prometheus.Counter
}

// New creates and registers pipeline metrics with the given registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FeedItemsSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hoshiko",
			Subsystem: "feed",
			Name:      "items_seen_total",
			Help:      "Total feed items inspected across all polled feeds.",
		}),
		FeedMatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hoshiko",
			Subsystem: "feed",
			Name:      "matches_total",
			Help:      "Feed items matched against the tracked watch list.",
		}),
		ExtractorAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hoshiko",
			Subsystem: "extract",
			Name:      "attempts_total",
			Help:      "Mirror URLs dispatched to a host extractor.",
		}),
		ExtractorMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hoshiko",
			Subsystem: "extract",
			Name:      "misses_total",
			Help:      "Extractor runs that produced no playable stream.",
		}),
		StreamsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hoshiko",
			Subsystem: "provider",
			Name:      "streams_resolved_total",
			Help:      "Playable streams resolved across all quality tiers.",
		}),
		DownloadsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hoshiko",
			Subsystem: "downloads",
			Name:      "started_total",
			Help:      "Torrent downloads started by the acquisition coordinator.",
		}),
		DownloadsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hoshiko",
			Subsystem: "downloads",
			Name:      "completed_total",
			Help:      "Torrent downloads that reached the seeding state.",
		}),
	}

	reg.MustRegister(
		m.FeedItemsSeen,
		m.FeedMatches,
		m.ExtractorAttempts,
		m.ExtractorMisses,
		m.StreamsResolved,
		m.DownloadsStarted,
		m.DownloadsCompleted,
	)

	return m
}
