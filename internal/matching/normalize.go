package matching

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	numericMarkerRegex  = regexp.MustCompile(`\((\d+)\)`)
	trailingMarkerRegex = regexp.MustCompile(`\s*\(\d+\)\s*$`)
	specialCharsRegex   = regexp.MustCompile("[^a-z0-9\\s\x00\x01]")
	multipleSpaceRegex  = regexp.MustCompile(`\s+`)
)

var diacriticFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeTitle converts a title to a normalized form for comparison:
// lowercase, diacritics folded (ä→a, é→e, ß→ss), punctuation replaced by
// spaces. Parenthetical numeric markers like "(258)" are preserved because
// serial shows use them to disambiguate otherwise identical titles.
func NormalizeTitle(title string) string {
	normalized := strings.ToLower(title)
	normalized = strings.ReplaceAll(normalized, "ß", "ss")
	if folded, _, err := transform.String(diacriticFolder, normalized); err == nil {
		normalized = folded
	}
	// Shield numeric markers from punctuation stripping.
	normalized = numericMarkerRegex.ReplaceAllString(normalized, "\x00$1\x01")
	normalized = specialCharsRegex.ReplaceAllString(normalized, " ")
	normalized = strings.ReplaceAll(normalized, "\x00", "(")
	normalized = strings.ReplaceAll(normalized, "\x01", ")")
	normalized = multipleSpaceRegex.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(normalized)
}

// StripNumericMarker removes a trailing parenthetical numeric marker,
// e.g. "doppelleben (258)" → "doppelleben".
func StripNumericMarker(title string) string {
	return strings.TrimSpace(trailingMarkerRegex.ReplaceAllString(title, ""))
}
