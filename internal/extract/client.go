package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// maxBodySize caps hosting-provider responses; embed pages are small and a
// misbehaving mirror must not exhaust memory.
const maxBodySize = 4 << 20

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 20 * time.Second,
	}
}

// get fetches a URL with the browser user agent and optional referer, and
// returns the response body as a string.
func (r *Registry) get(ctx context.Context, rawURL, referer string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", err
	}

	return string(body), nil
}

// getDocument fetches a URL and parses the body as HTML.
func (r *Registry) getDocument(ctx context.Context, rawURL, referer string) (*goquery.Document, error) {
	body, err := r.get(ctx, rawURL, referer)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(body))
}
