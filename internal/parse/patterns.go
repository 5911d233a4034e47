package parse

import "regexp"

// compiledPatterns contains the precompiled regex patterns used to classify
// tokens of a release title.
type compiledPatterns struct {
	// Episode markers, tried in order.
	DashEpisode *regexp.Regexp // Show - 01, Show - 01v2
	SxxExx      *regexp.Regexp // S01E01
	EpKeyword   *regexp.Regexp // Ep 1, Episode 01, E05
	TrailingNum *regexp.Regexp // Show 05 (bare trailing ordinal)

	// Metadata tokens that never belong to the title span.
	Resolution *regexp.Regexp // 1080p, 720p, 480p, 2160p, 4K
	Extension  *regexp.Regexp // trailing media file extension
	BatchTag   *regexp.Regexp // Batch, 01-12, 1 ~ 24
}

func newCompiledPatterns() *compiledPatterns {
	return &compiledPatterns{
		// " - 01", " - 01v2", " - 01 (1080p)"; the ordinal must be delimited
		// on both sides so "Zom 100 - 05" resolves to 05, not 100.
		DashEpisode: regexp.MustCompile(`\s-\s(\d{1,4}(?:\.\d)?)(?:v\d)?(?:\s|$)`),

		SxxExx: regexp.MustCompile(`(?i)S\d{1,2}E(\d{1,3})`),

		EpKeyword: regexp.MustCompile(`(?i)(?:^|[\s_])(?:Ep(?:isode)?[\s.]*|E)(\d{1,3})(?:[\s._]|$)`),

		TrailingNum: regexp.MustCompile(`\s(\d{1,4})(?:v\d)?\s*$`),

		Resolution: regexp.MustCompile(`(?i)\b(?:(?:2160|1080|720|480)p?|4K|UHD)\b`),

		Extension: regexp.MustCompile(`(?i)\.(mkv|mp4|avi|ts|webm)$`),

		BatchTag: regexp.MustCompile(`(?i)\b(?:batch|(\d{1,3})\s*[-~]\s*(\d{1,3}))\b`),
	}
}
