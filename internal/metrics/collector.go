package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hoshiko-tv/hoshiko/internal/torrent"
)

// TransferCollector implements prometheus.Collector for transfer stats. It
// polls torrent.Engine.Statuses() lazily on each Prometheus scrape rather
// than maintaining duplicate state.
type TransferCollector struct {
	engine torrent.Engine

	// Per-transfer descriptors (labels: info_hash, name)
	sizeBytes       *prometheus.Desc
	downloadedBytes *prometheus.Desc
	progressRatio   *prometheus.Desc
	seeders         *prometheus.Desc
	leechers        *prometheus.Desc

	// Aggregate descriptors (no per-transfer labels)
	transfersLoaded  *prometheus.Desc
	transfersSeeding *prometheus.Desc
}

var transferLabels = []string{"info_hash", "name"}

// NewTransferCollector creates a collector that scrapes transfer stats on demand.
func NewTransferCollector(e torrent.Engine) *TransferCollector {
	return &TransferCollector{
		engine: e,

		sizeBytes: prometheus.NewDesc(
			"hoshiko_transfer_size_bytes",
			"Total size of the transfer in bytes.",
			transferLabels, nil,
		),
		downloadedBytes: prometheus.NewDesc(
			"hoshiko_transfer_downloaded_bytes",
			"Bytes downloaded and verified for the transfer.",
			transferLabels, nil,
		),
		progressRatio: prometheus.NewDesc(
			"hoshiko_transfer_progress_ratio",
			"Download progress as a ratio from 0.0 to 1.0.",
			transferLabels, nil,
		),
		seeders: prometheus.NewDesc(
			"hoshiko_transfer_seeders_connected",
			"Number of connected seeders.",
			transferLabels, nil,
		),
		leechers: prometheus.NewDesc(
			"hoshiko_transfer_leechers_connected",
			"Number of connected leechers.",
			transferLabels, nil,
		),

		transfersLoaded: prometheus.NewDesc(
			"hoshiko_transfers_loaded",
			"Total number of loaded transfers.",
			nil, nil,
		),
		transfersSeeding: prometheus.NewDesc(
			"hoshiko_transfers_seeding",
			"Number of transfers in the seeding state.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *TransferCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sizeBytes
	ch <- c.downloadedBytes
	ch <- c.progressRatio
	ch <- c.seeders
	ch <- c.leechers
	ch <- c.transfersLoaded
	ch <- c.transfersSeeding
}

// Collect implements prometheus.Collector.
func (c *TransferCollector) Collect(ch chan<- prometheus.Metric) {
	statuses := c.engine.Statuses()

	seeding := 0
	for _, s := range statuses {
		labels := []string{s.InfoHash, s.Name}

		ch <- prometheus.MustNewConstMetric(c.sizeBytes, prometheus.GaugeValue, float64(s.TotalSize), labels...)
		ch <- prometheus.MustNewConstMetric(c.downloadedBytes, prometheus.GaugeValue, float64(s.Downloaded), labels...)
		ch <- prometheus.MustNewConstMetric(c.progressRatio, prometheus.GaugeValue, s.Progress, labels...)
		ch <- prometheus.MustNewConstMetric(c.seeders, prometheus.GaugeValue, float64(s.Seeders), labels...)
		ch <- prometheus.MustNewConstMetric(c.leechers, prometheus.GaugeValue, float64(s.Leechers), labels...)

		if s.State == torrent.StateSeeding {
			seeding++
		}
	}

	ch <- prometheus.MustNewConstMetric(c.transfersLoaded, prometheus.GaugeValue, float64(len(statuses)))
	ch <- prometheus.MustNewConstMetric(c.transfersSeeding, prometheus.GaugeValue, float64(seeding))
}
