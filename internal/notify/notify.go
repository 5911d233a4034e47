// Package notify delivers download-completion notifications. The contract is
// fire and forget: delivery failures are logged, never returned.
package notify

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Notifier receives completion events from the acquisition coordinator.
type Notifier interface {
	DownloadComplete(path, name string)
}

// New returns a webhook notifier when a URL is configured, otherwise a
// log-only notifier.
func New(webhookURL string) Notifier {
	if webhookURL == "" {
		return &logNotifier{log: slog.With("component", "notify")}
	}
	return &webhookNotifier{
		url:  webhookURL,
		http: &http.Client{Timeout: 10 * time.Second},
		log:  slog.With("component", "notify"),
	}
}

type logNotifier struct {
	log *slog.Logger
}

func (n *logNotifier) DownloadComplete(path, name string) {
	n.log.Info("download completed", "name", name, "path", path)
}

type webhookNotifier struct {
	url  string
	http *http.Client
	log  *slog.Logger
}

func (n *webhookNotifier) DownloadComplete(path, name string) {
	payload, err := json.Marshal(map[string]string{
		"event": "download_complete",
		"name":  name,
		"path":  path,
	})
	if err != nil {
		n.log.Error("failed to encode notification", "error", err)
		return
	}

	go func() {
		resp, err := n.http.Post(n.url, "application/json", bytes.NewReader(payload))
		if err != nil {
			n.log.Warn("webhook delivery failed", "url", n.url, "error", err)
			return
		}
		resp.Body.Close()
		n.log.Info("download completed", "name", name, "path", path, "webhook_status", resp.StatusCode)
	}()
}
