package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"math/rand"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var errNoSource = errors.New("no playable source in page")

var (
	playerListRe = regexp.MustCompile(`go_to_player\('([^']+)'\)`)
	driveFileRe  = regexp.MustCompile(`/file/d/([^/]+)`)
	driveTokenRe = regexp.MustCompile(`confirm=([0-9A-Za-z_-]+)`)
	doodMD5Re    = regexp.MustCompile(`/pass_md5/[^'"]+`)
	mp4upSrcRe   = regexp.MustCompile(`src:\s*"([^"]+)"`)
	sourceFileRe = regexp.MustCompile(`"?file"?\s*:\s*"([^"]+)"`)
	uqloadSrcRe  = regexp.MustCompile(`sources:\s*\[\s*"([^"]+)"`)
	okruDataRe   = regexp.MustCompile(`data-options="([^"]+)"`)
)

// yonaplayAPIKey is the query parameter the aggregator expects on its embed
// endpoint.
const yonaplayAPIKey = "7d942435-c790-405c-8381-f682a274b437"

// extractMultiMirror handles the yonaplay aggregator: its embed page lists
// several hosted players, each of which is fed back through Resolve. The
// first candidate that resolves wins.
func (r *Registry) extractMultiMirror(ctx context.Context, serverURL string) (*Stream, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("apiKey", yonaplayAPIKey)
	u.RawQuery = q.Encode()

	body, err := r.get(ctx, u.String(), r.siteURL)
	if err != nil {
		return nil, err
	}

	for _, m := range playerListRe.FindAllStringSubmatch(body, -1) {
		if stream := r.Resolve(ctx, m[1]); stream != nil {
			return stream, nil
		}
	}

	return nil, errNoSource
}

// extractFourShared reads the direct media URL from the file locker's
// OpenGraph video tag.
func (r *Registry) extractFourShared(ctx context.Context, serverURL string) (*Stream, error) {
	doc, err := r.getDocument(ctx, serverURL, "")
	if err != nil {
		return nil, err
	}

	src, ok := doc.Find(`meta[property="og:video"]`).Attr("content")
	if !ok || src == "" {
		return nil, errNoSource
	}

	return &Stream{URL: src}, nil
}

// extractSoraPlay resolves the signed CDN source from the embed page. The
// host checks the referer against the catalog site.
func (r *Registry) extractSoraPlay(ctx context.Context, serverURL string) (*Stream, error) {
	doc, err := r.getDocument(ctx, serverURL, r.siteURL)
	if err != nil {
		return nil, err
	}

	src, ok := doc.Find("source").First().Attr("src")
	if !ok || src == "" {
		return nil, errNoSource
	}

	return &Stream{URL: src, Referer: serverURL}, nil
}

// extractGoogleDrive rewrites a file link to the direct-download endpoint and
// follows the virus-scan confirmation step when Drive interposes it.
func (r *Registry) extractGoogleDrive(ctx context.Context, serverURL string) (*Stream, error) {
	m := driveFileRe.FindStringSubmatch(serverURL)
	if m == nil {
		return nil, errNoSource
	}
	direct := "https://drive.google.com/uc?export=download&id=" + m[1]

	body, err := r.get(ctx, direct, "")
	if err != nil {
		return nil, err
	}

	if t := driveTokenRe.FindStringSubmatch(body); t != nil {
		direct += "&confirm=" + t[1]
	}

	return &Stream{URL: direct}, nil
}

// extractDailymotion reads the player metadata JSON and picks the HLS
// manifest.
func (r *Registry) extractDailymotion(ctx context.Context, serverURL string) (*Stream, error) {
	id := strings.TrimSuffix(serverURL[strings.LastIndex(serverURL, "/")+1:], "/")
	if i := strings.IndexAny(id, "?&"); i >= 0 {
		id = id[:i]
	}
	if id == "" {
		return nil, errNoSource
	}

	body, err := r.get(ctx, "https://www.dailymotion.com/player/metadata/video/"+id, r.siteURL)
	if err != nil {
		return nil, err
	}

	var meta struct {
		Qualities map[string][]struct {
			Type string `json:"type"`
			URL  string `json:"url"`
		} `json:"qualities"`
	}
	if err := json.Unmarshal([]byte(body), &meta); err != nil {
		return nil, err
	}

	for _, q := range meta.Qualities["auto"] {
		if q.URL != "" {
			return &Stream{URL: q.URL}, nil
		}
	}

	return nil, errNoSource
}

// extractOkRu decodes the player's data-options attribute, which nests the
// video metadata as escaped JSON.
func (r *Registry) extractOkRu(ctx context.Context, serverURL string) (*Stream, error) {
	body, err := r.get(ctx, serverURL, "")
	if err != nil {
		return nil, err
	}

	m := okruDataRe.FindStringSubmatch(body)
	if m == nil {
		return nil, errNoSource
	}

	var options struct {
		Flashvars struct {
			Metadata string `json:"metadata"`
		} `json:"flashvars"`
	}
	if err := json.Unmarshal([]byte(html.UnescapeString(m[1])), &options); err != nil {
		return nil, err
	}

	var meta struct {
		Videos []struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"videos"`
	}
	if err := json.Unmarshal([]byte(options.Flashvars.Metadata), &meta); err != nil {
		return nil, err
	}
	if len(meta.Videos) == 0 {
		return nil, errNoSource
	}

	// Videos are ordered lowest to highest quality.
	return &Stream{URL: meta.Videos[len(meta.Videos)-1].URL}, nil
}

// extractDood performs the host's pass_md5 handshake: the embed page carries
// a signed path whose response is the CDN base, completed with a random token
// and expiry.
func (r *Registry) extractDood(ctx context.Context, serverURL string) (*Stream, error) {
	body, err := r.get(ctx, serverURL, "")
	if err != nil {
		return nil, err
	}

	m := doodMD5Re.FindString(body)
	if m == "" {
		return nil, errNoSource
	}

	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, err
	}
	base := u.Scheme + "://" + u.Host

	cdnBase, err := r.get(ctx, base+m, serverURL)
	if err != nil {
		return nil, err
	}

	token := m[strings.LastIndex(m, "/")+1:]
	direct := fmt.Sprintf("%s%s?token=%s&expiry=%d",
		cdnBase, randomToken(10), token, time.Now().UnixMilli())

	return &Stream{URL: direct, Referer: base + "/"}, nil
}

// extractMp4Upload pulls the player source assignment out of the embed
// script.
func (r *Registry) extractMp4Upload(ctx context.Context, serverURL string) (*Stream, error) {
	body, err := r.get(ctx, serverURL, r.siteURL)
	if err != nil {
		return nil, err
	}

	m := mp4upSrcRe.FindStringSubmatch(body)
	if m == nil {
		return nil, errNoSource
	}

	return &Stream{URL: m[1], Referer: serverURL}, nil
}

// extractVidBom reads the first entry of the player's sources array.
func (r *Registry) extractVidBom(ctx context.Context, serverURL string) (*Stream, error) {
	body, err := r.get(ctx, serverURL, "")
	if err != nil {
		return nil, err
	}

	m := sourceFileRe.FindStringSubmatch(body)
	if m == nil {
		return nil, errNoSource
	}

	return &Stream{URL: strings.ReplaceAll(m[1], `\/`, "/")}, nil
}

// extractUqLoad reads the single-element sources array from the embed
// script.
func (r *Registry) extractUqLoad(ctx context.Context, serverURL string) (*Stream, error) {
	body, err := r.get(ctx, serverURL, "")
	if err != nil {
		return nil, err
	}

	m := uqloadSrcRe.FindStringSubmatch(body)
	if m == nil {
		return nil, errNoSource
	}

	return &Stream{URL: m[1], Referer: serverURL}, nil
}

const tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomToken(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = tokenAlphabet[rand.Intn(len(tokenAlphabet))]
	}
	return string(b)
}
