// Package keyword implements the fast local classification stage: a pure,
// deterministic substring check against a fixed vocabulary of faith
// indicators. It decides obvious cases locally so that only genuinely
// ambiguous bios are sent to the AI fallback stage.
package keyword

import (
	"regexp"
	"strings"
)

// Result is the outcome of the keyword stage for a single bio.
type Result int

const (
	// Yes means a positive vocabulary term matched.
	Yes Result = iota

	// No means the bio carries no signal at all (empty or whitespace-only).
	No

	// Uncertain means the keyword stage could not decide; the AI stage
	// must be consulted.
	Uncertain
)

// String returns the lowercase label form used throughout the pipeline.
func (r Result) String() string {
	switch r {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "uncertain"
	}
}

// christianTerms are matched as case-insensitive substrings anywhere in
// the bio. Substring (not word) matching is intentional: bios compress
// words together ("jesusfreak", "godfirst") and hashtags strip spaces.
var christianTerms = []string{
	"jesus", "christ", "christian", "god", "lord", "bible",
	"believer", "disciple", "faith", "saved", "born again",
	"church", "worship",
	"amen", "agtg", "jesusfreak", "bibleverse",
	"†", "✝", "cross",
}

// bibleBooks feed the word-boundary pattern below. Book names are too
// collision-prone for bare substring matching ("job", "mark", "acts"),
// so they only count as whole words, optionally with a trailing s or 's.
var bibleBooks = []string{
	"genesis", "exodus", "leviticus", "numbers", "deuteronomy",
	"joshua", "judges", "ruth", "samuel", "kings", "chronicles", "ezra", "nehemiah", "esther",
	"job", "psalm", "psalms", "proverbs", "ecclesiastes", "song", "songs", "canticles",
	"isaiah", "jeremiah", "lamentations", "ezekiel", "daniel",
	"hosea", "joel", "amos", "obadiah", "jonah", "micah", "nahum",
	"habakkuk", "zephaniah", "haggai", "zechariah", "malachi",
	"matthew", "mark", "luke", "john", "acts", "romans",
	"corinthians", "galatians", "ephesians", "philippians", "colossians",
	"thessalonians", "timothy", "titus", "philemon", "hebrews",
	"james", "peter", "jude", "revelation", "rev",
}

var biblePattern = regexp.MustCompile(`(?i)\b(` + strings.Join(bibleBooks, "|") + `)(?:'s|s)?\b`)

// Check classifies a single bio using the fixed vocabulary.
//
// It is a pure function: no I/O, no shared mutable state, deterministic
// for identical input. Unicode input is handled without normalization
// beyond case folding; symbol-only bios classify as Uncertain unless the
// symbol itself is in the vocabulary (e.g. a cross character).
func Check(bio string) Result {
	if strings.TrimSpace(bio) == "" {
		// Empty input carries no signal.
		return No
	}

	lower := strings.ToLower(bio)
	for _, term := range christianTerms {
		if strings.Contains(lower, term) {
			return Yes
		}
	}

	if biblePattern.MatchString(bio) {
		return Yes
	}

	return Uncertain
}
