package matching

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	minutesRegex = regexp.MustCompile(`(?i)\b(\d{1,4})\s*min(?:uten)?\b`)
	hmsRegex     = regexp.MustCompile(`\b(\d{1,2}):(\d{2}):(\d{2})\b`)
	msRegex      = regexp.MustCompile(`\b(\d{1,3}):(\d{2})\b`)
)

// Filter drops candidates before they reach the matcher. The keyword check
// runs first and overrides everything else, including a perfect date match.
type Filter struct {
	ExcludedKeywords   []string
	MinDurationMinutes int // 0 = no lower bound
	MaxDurationMinutes int // 0 = no upper bound
}

// ExcludedKeyword returns the first excluded keyword found as a
// case-insensitive substring of the candidate title. Descriptions are not
// checked: broadcasters mention accessibility variants there even for the
// regular cut.
func (f *Filter) ExcludedKeyword(title string) (string, bool) {
	lower := strings.ToLower(title)
	for _, kw := range f.ExcludedKeywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return kw, true
		}
	}
	return "", false
}

// Keep reports whether a candidate survives the filter. Duration checks
// fail open: a candidate without an extractable duration always passes.
func (f *Filter) Keep(c *Candidate) bool {
	if _, excluded := f.ExcludedKeyword(c.Title); excluded {
		return false
	}

	minutes, ok := ExtractDurationMinutes(c.Title, c.Description)
	if !ok {
		return true
	}
	if f.MinDurationMinutes > 0 && minutes < f.MinDurationMinutes {
		return false
	}
	if f.MaxDurationMinutes > 0 && minutes > f.MaxDurationMinutes {
		return false
	}
	return true
}

// ExtractDurationMinutes attempts to extract a duration in minutes from the
// given texts, in order. Recognized notations: "90 min", "90 Minuten",
// "1:30:00" and "90:00".
func ExtractDurationMinutes(texts ...string) (int, bool) {
	for _, text := range texts {
		if text == "" {
			continue
		}
		if m := minutesRegex.FindStringSubmatch(text); m != nil {
			if minutes, err := strconv.Atoi(m[1]); err == nil {
				return minutes, true
			}
		}
		if m := hmsRegex.FindStringSubmatch(text); m != nil {
			hours, err1 := strconv.Atoi(m[1])
			mins, err2 := strconv.Atoi(m[2])
			if err1 == nil && err2 == nil {
				return hours*60 + mins, true
			}
		}
		if m := msRegex.FindStringSubmatch(text); m != nil {
			if minutes, err := strconv.Atoi(m[1]); err == nil {
				return minutes, true
			}
		}
	}
	return 0, false
}
