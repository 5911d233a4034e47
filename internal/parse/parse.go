// Package parse extracts a show title and episode ordinal from free-text
// release titles as they appear in RSS feeds and site listings, e.g.
// "[SubsPlease] Sousou no Frieren - 05 (1080p) [ABCD1234].mkv".
package parse

import (
	"strconv"
	"strings"
)

// Result holds the fields extracted from a release title. A zero Title or an
// empty EpisodeText means the corresponding field was not found; callers are
// expected to skip such items rather than treat them as errors.
type Result struct {
	Title       string
	Episode     int
	EpisodeText string
}

// HasTitle reports whether a title span was found.
func (r Result) HasTitle() bool { return r.Title != "" }

// HasEpisode reports whether a numeric episode token was found.
func (r Result) HasEpisode() bool { return r.EpisodeText != "" }

var patterns = newCompiledPatterns()

// Parse classifies the tokens of a raw release title and isolates the show
// title and episode number. Bracketed tokens (release group, checksum,
// resolution) never contribute to the title span.
func Parse(raw string) Result {
	text := stripBrackets(raw)
	text = strings.ReplaceAll(text, "_", " ")
	text = patterns.Extension.ReplaceAllString(text, "")
	text = collapseSpaces(text)

	if text == "" {
		return Result{}
	}

	// Batch releases carry a range, not an episode; keep the title so the
	// caller can still identify the show.
	if isBatch(text) {
		return Result{Title: cleanTitle(patterns.BatchTag.ReplaceAllString(text, ""))}
	}

	epText, start := findEpisode(text)
	if epText == "" {
		return Result{Title: cleanTitle(text)}
	}

	return Result{
		Title:       cleanTitle(text[:start]),
		Episode:     episodeNumber(epText),
		EpisodeText: epText,
	}
}

// isBatch reports whether the cleaned text carries a batch marker, either the
// literal word or a numeric range. A dash range only counts when it ascends,
// so "Zom 100 - 05" still reads as episode 5 of "Zom 100".
func isBatch(text string) bool {
	m := patterns.BatchTag.FindStringSubmatch(text)
	if m == nil {
		return false
	}
	if m[1] == "" {
		return true
	}
	lo, _ := strconv.Atoi(m[1])
	hi, _ := strconv.Atoi(m[2])
	return hi > lo
}

// stripBrackets removes bracketed token groups: [release group], [checksum],
// (resolution) and similar metadata tags.
func stripBrackets(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case '[', '(':
			depth++
		case ']', ')':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// findEpisode locates the episode marker in the cleaned text and returns the
// matched digits plus the byte offset where the marker begins. Markers are
// tried in confidence order; for the dash form the last occurrence wins so
// that dashes inside the title do not truncate it.
func findEpisode(text string) (string, int) {
	if ms := patterns.DashEpisode.FindAllStringSubmatchIndex(text, -1); ms != nil {
		m := ms[len(ms)-1]
		return text[m[2]:m[3]], m[0]
	}
	if m := patterns.SxxExx.FindStringSubmatchIndex(text); m != nil {
		return text[m[2]:m[3]], m[0]
	}
	if m := patterns.EpKeyword.FindStringSubmatchIndex(text); m != nil {
		return text[m[2]:m[3]], m[0]
	}
	if m := patterns.TrailingNum.FindStringSubmatchIndex(text); m != nil {
		return text[m[2]:m[3]], m[0]
	}
	return "", 0
}

// episodeNumber converts the matched episode text to an ordinal. Fractional
// recap numbering like "13.5" truncates, matching how listing pages count.
func episodeNumber(s string) int {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

func cleanTitle(s string) string {
	s = patterns.Resolution.ReplaceAllString(s, "")
	s = collapseSpaces(s)
	return strings.Trim(s, " -.")
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
