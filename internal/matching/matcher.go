package matching

import (
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Strategy tags attached to match results. Downstream confidence handling
// depends on these values; do not rename.
const (
	StrategyExactTitle     = "exactTitle"
	StrategyFuzzyTitle     = "fuzzyTitle"
	StrategySubstringTitle = "substringTitle"
	StrategyExactDate      = "exactDate"
	StrategyGuestName      = "guestName"
	StrategyContentName    = "contentName"
	StrategyNearDate       = "nearDate"
)

const (
	// substringMinLength guards the substring strategy against trivial
	// matches on very short titles.
	substringMinLength = 5
	contentWindowDays  = 14
	nearDateWindowDays = 7
)

var (
	guestMarkerRegex    = regexp.MustCompile(`(?i)\bmit\s+(.+?)\s*(?:-|$)`)
	guestSeparatorRegex = regexp.MustCompile(`(?i)\s+(und|&)\s+`)
	nonWordRegex        = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	nameSplitRegex      = regexp.MustCompile(`[&\s]+`)
)

// Matcher maps one candidate onto at most one canonical episode.
//
// Strategies are evaluated in fixed priority order and the first success
// wins; no comparison across strategies happens once one succeeds. A title
// collision can therefore pre-empt a later exact-date match. That ordering
// is deliberate and load-bearing.
type Matcher struct {
	logger     zerolog.Logger
	strategies []strategy
}

type strategy struct {
	name string
	fn   func(c *Candidate, episodes []Episode) *Result
}

// NewMatcher creates a Matcher.
func NewMatcher(logger zerolog.Logger) *Matcher {
	m := &Matcher{
		logger: logger.With().Str("component", "matcher").Logger(),
	}
	m.strategies = []strategy{
		{StrategyExactTitle, m.matchExactTitle},
		{StrategyFuzzyTitle, m.matchFuzzyTitle},
		{StrategySubstringTitle, m.matchSubstringTitle},
		{StrategyExactDate, m.matchExactDate},
		{StrategyGuestName, m.matchGuestName},
		{StrategyContentName, m.matchContentName},
		{StrategyNearDate, m.matchNearDate},
	}
	return m
}

// Match runs the strategy chain for one filtered candidate against the full
// canonical episode list. Returns nil when no strategy succeeds.
func (m *Matcher) Match(c *Candidate, episodes []Episode) *Result {
	for _, s := range m.strategies {
		if result := s.fn(c, episodes); result != nil {
			m.logger.Debug().
				Str("candidate", c.Title).
				Str("strategy", result.Strategy).
				Int("season", result.Season).
				Int("episodeNumber", result.Episode).
				Float64("confidence", result.Confidence).
				Msg("candidate matched")
			return result
		}
	}
	m.logger.Trace().Str("candidate", c.Title).Msg("no match")
	return nil
}

func result(ep *Episode, confidence float64, strategyName string) *Result {
	return &Result{
		Season:         ep.Season,
		Episode:        ep.Episode,
		Confidence:     confidence,
		Strategy:       strategyName,
		CanonicalTitle: ep.Title,
	}
}

func (m *Matcher) matchExactTitle(c *Candidate, episodes []Episode) *Result {
	normalized := NormalizeTitle(c.Title)
	if normalized == "" {
		return nil
	}
	for i := range episodes {
		ep := &episodes[i]
		if NormalizeTitle(ep.Title) == normalized {
			return result(ep, 0.95, StrategyExactTitle)
		}
	}
	return nil
}

func (m *Matcher) matchFuzzyTitle(c *Candidate, episodes []Episode) *Result {
	candidate := StripNumericMarker(NormalizeTitle(c.Title))
	if candidate == "" {
		return nil
	}
	for i := range episodes {
		ep := &episodes[i]
		if StripNumericMarker(NormalizeTitle(ep.Title)) == candidate {
			return result(ep, 0.90, StrategyFuzzyTitle)
		}
	}
	return nil
}

func (m *Matcher) matchSubstringTitle(c *Candidate, episodes []Episode) *Result {
	candidate := NormalizeTitle(c.Title)
	if len(candidate) <= substringMinLength {
		return nil
	}
	for i := range episodes {
		ep := &episodes[i]
		canonical := NormalizeTitle(ep.Title)
		if len(canonical) <= substringMinLength {
			continue
		}
		if strings.Contains(candidate, canonical) || strings.Contains(canonical, candidate) {
			return result(ep, 0.85, StrategySubstringTitle)
		}
	}
	return nil
}

func (m *Matcher) matchExactDate(c *Candidate, episodes []Episode) *Result {
	if !c.HasDate() {
		return nil
	}
	for i := range episodes {
		ep := &episodes[i]
		if ep.AirDate.IsZero() {
			continue
		}
		if sameDate(c.PublishedAt, ep.AirDate) {
			return result(ep, 1.00, StrategyExactDate)
		}
	}
	return nil
}

func (m *Matcher) matchGuestName(c *Candidate, episodes []Episode) *Result {
	guests := ExtractGuests(c.Title)
	if len(guests) == 0 {
		return nil
	}
	for i := range episodes {
		ep := &episodes[i]
		canonical := strings.ToLower(nonWordRegex.ReplaceAllString(
			strings.ReplaceAll(ep.Title, "&", " "), ""))

		allFound := true
		for _, guest := range guests {
			if !strings.Contains(canonical, strings.ToLower(guest)) {
				allFound = false
				break
			}
		}
		if allFound {
			return result(ep, 0.95, StrategyGuestName)
		}
	}
	return nil
}

func (m *Matcher) matchContentName(c *Candidate, episodes []Episode) *Result {
	if !c.HasDate() || c.Description == "" {
		return nil
	}
	description := strings.ToLower(c.Description)
	for i := range episodes {
		ep := &episodes[i]
		if ep.AirDate.IsZero() {
			continue
		}
		dayDiff := dateDistanceDays(c.PublishedAt, ep.AirDate)
		if dayDiff > contentWindowDays {
			continue
		}

		found := 0
		for _, name := range nameSplitRegex.Split(ep.Title, -1) {
			if len(name) <= 3 {
				continue
			}
			if strings.Contains(description, strings.ToLower(name)) {
				found++
			}
		}
		if found > 0 {
			return result(ep, 0.80-0.01*float64(dayDiff), StrategyContentName)
		}
	}
	return nil
}

func (m *Matcher) matchNearDate(c *Candidate, episodes []Episode) *Result {
	if !c.HasDate() {
		return nil
	}
	for i := range episodes {
		ep := &episodes[i]
		if ep.AirDate.IsZero() {
			continue
		}
		dayDiff := dateDistanceDays(c.PublishedAt, ep.AirDate)
		if dayDiff <= nearDateWindowDays {
			return result(ep, 0.65-0.05*float64(dayDiff), StrategyNearDate)
		}
	}
	return nil
}

// ExtractGuests pulls proper names following a "mit ..." marker out of a
// candidate title, e.g. `Talk mit Anna Schmidt & Ben Meier - Spezial` →
// ["Anna", "Schmidt", "Ben", "Meier"].
func ExtractGuests(title string) []string {
	match := guestMarkerRegex.FindStringSubmatch(title)
	if match == nil {
		return nil
	}

	guests := guestSeparatorRegex.ReplaceAllString(match[1], " ")
	guests = nonWordRegex.ReplaceAllString(guests, "")

	var names []string
	for _, name := range strings.Fields(guests) {
		if len(name) > 2 {
			names = append(names, name)
		}
	}
	return names
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func dateDistanceDays(a, b time.Time) int {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return int(diff.Hours() / 24)
}
