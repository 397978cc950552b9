package matching

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestMatcher() *Matcher {
	return NewMatcher(zerolog.Nop())
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 20, 15, 0, 0, time.UTC)
}

func assertResult(t *testing.T, res *Result, season, episode int, confidence float64, strategy string) {
	t.Helper()
	if res == nil {
		t.Fatal("expected a match, got nil")
	}
	if res.Season != season || res.Episode != episode {
		t.Errorf("matched S%02dE%02d, want S%02dE%02d", res.Season, res.Episode, season, episode)
	}
	if res.Strategy != strategy {
		t.Errorf("strategy = %q, want %q", res.Strategy, strategy)
	}
	if math.Abs(res.Confidence-confidence) > 1e-9 {
		t.Errorf("confidence = %v, want %v", res.Confidence, confidence)
	}
}

func TestMatchExactTitle(t *testing.T) {
	m := newTestMatcher()
	episodes := []Episode{
		{Season: 4, Episode: 2, Title: "Doppelleben (258)"},
		{Season: 4, Episode: 3, Title: "Mörderische Gier"},
	}

	res := m.Match(&Candidate{Title: "Doppelleben (258)"}, episodes)
	assertResult(t, res, 4, 2, 0.95, StrategyExactTitle)

	// Case, punctuation and umlauts differences still count as exact.
	res = m.Match(&Candidate{Title: "MÖRDERISCHE GIER!"}, episodes)
	assertResult(t, res, 4, 3, 0.95, StrategyExactTitle)
}

func TestMatchFuzzyTitleIgnoresNumericMarker(t *testing.T) {
	m := newTestMatcher()
	episodes := []Episode{
		{Season: 4, Episode: 2, Title: "Doppelleben (258)"},
	}

	res := m.Match(&Candidate{Title: "Doppelleben"}, episodes)
	assertResult(t, res, 4, 2, 0.90, StrategyFuzzyTitle)
}

func TestMatchSubstringTitle(t *testing.T) {
	m := newTestMatcher()
	episodes := []Episode{
		{Season: 4, Episode: 3, Title: "Mörderische Gier"},
	}

	res := m.Match(&Candidate{Title: "Tatort: Mörderische Gier vom 15. März"}, episodes)
	assertResult(t, res, 4, 3, 0.85, StrategySubstringTitle)
}

// Very short titles must not produce substring matches; "gier" would be a
// substring of half the schedule.
func TestMatchSubstringGuard(t *testing.T) {
	m := newTestMatcher()
	episodes := []Episode{
		{Season: 4, Episode: 3, Title: "Gier"},
	}

	res := m.Match(&Candidate{Title: "Die grosse Gier am Abend"}, episodes)
	if res != nil {
		t.Errorf("expected no match on short canonical title, got %+v", res)
	}
}

func TestMatchExactDate(t *testing.T) {
	m := newTestMatcher()
	episodes := []Episode{
		{Season: 4, Episode: 5, Title: "Doppelleben", AirDate: day(2027, 3, 15)},
	}

	res := m.Match(&Candidate{
		Title:       "Krimi am Montag",
		PublishedAt: time.Date(2027, 3, 15, 23, 45, 0, 0, time.UTC),
	}, episodes)
	assertResult(t, res, 4, 5, 1.00, StrategyExactDate)
}

// A successful title strategy pre-empts a later exact-date match even
// though the date strategy carries higher confidence. First success wins.
func TestMatchTitleBeatsDate(t *testing.T) {
	m := newTestMatcher()
	episodes := []Episode{
		{Season: 4, Episode: 2, Title: "Doppelleben", AirDate: day(2027, 3, 1)},
		{Season: 4, Episode: 5, Title: "Mörderische Gier", AirDate: day(2027, 3, 15)},
	}

	res := m.Match(&Candidate{
		Title:       "Doppelleben",
		PublishedAt: day(2027, 3, 15), // exact air date of E05
	}, episodes)
	assertResult(t, res, 4, 2, 0.95, StrategyExactTitle)
}

func TestMatchGuestName(t *testing.T) {
	m := newTestMatcher()
	episodes := []Episode{
		{Season: 2, Episode: 8, Title: "Schmidt und Meier im Gespräch"},
	}

	res := m.Match(&Candidate{Title: "Talk mit Schmidt & Meier - 20:15"}, episodes)
	assertResult(t, res, 2, 8, 0.95, StrategyGuestName)
}

func TestMatchGuestNameRequiresAllNames(t *testing.T) {
	m := newTestMatcher()
	episodes := []Episode{
		{Season: 2, Episode: 8, Title: "Schmidt im Gespräch"},
	}

	res := m.Match(&Candidate{Title: "Talk mit Schmidt & Meier - 20:15"}, episodes)
	if res != nil {
		t.Errorf("expected no match when a guest is missing, got %+v", res)
	}
}

func TestMatchContentName(t *testing.T) {
	m := newTestMatcher()
	episodes := []Episode{
		{Season: 4, Episode: 2, Title: "Doppelleben", AirDate: day(2027, 3, 10)},
	}

	res := m.Match(&Candidate{
		Title:       "Krimi am Dienstag",
		Description: "Es geht um ein Doppelleben in Hamburg.",
		PublishedAt: day(2027, 3, 15),
	}, episodes)
	assertResult(t, res, 4, 2, 0.80-0.01*5, StrategyContentName)
}

func TestMatchContentNameWindow(t *testing.T) {
	m := newTestMatcher()
	episodes := []Episode{
		{Season: 4, Episode: 2, Title: "Doppelleben", AirDate: day(2027, 3, 1)},
	}

	res := m.Match(&Candidate{
		Title:       "Krimi am Dienstag",
		Description: "Es geht um ein Doppelleben in Hamburg.",
		PublishedAt: day(2027, 3, 20), // 19 days out, beyond both windows
	}, episodes)
	if res != nil {
		t.Errorf("expected no match outside the window, got %+v", res)
	}
}

func TestMatchNearDate(t *testing.T) {
	m := newTestMatcher()
	episodes := []Episode{
		{Season: 4, Episode: 2, Title: "Doppelleben", AirDate: day(2027, 3, 12)},
	}

	res := m.Match(&Candidate{
		Title:       "Krimi am Dienstag",
		PublishedAt: day(2027, 3, 15),
	}, episodes)
	assertResult(t, res, 4, 2, 0.65-0.05*3, StrategyNearDate)
}

func TestMatchNoStrategy(t *testing.T) {
	m := newTestMatcher()
	episodes := []Episode{
		{Season: 4, Episode: 2, Title: "Doppelleben", AirDate: day(2027, 3, 1)},
	}

	res := m.Match(&Candidate{Title: "Völlig anderes Programm"}, episodes)
	if res != nil {
		t.Errorf("expected nil, got %+v", res)
	}
}

func TestExtractGuests(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		expected []string
	}{
		{"two guests", "Talk mit Anna Schmidt & Ben Meier - Spezial", []string{"Anna", "Schmidt", "Ben", "Meier"}},
		{"und separator", "Abend mit Anna und Ben", []string{"Anna", "Ben"}},
		{"no marker", "Doppelleben", nil},
		{"short tokens dropped", "Show mit Al & Bo", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractGuests(tt.title)
			if len(got) != len(tt.expected) {
				t.Fatalf("ExtractGuests(%q) = %v, want %v", tt.title, got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("ExtractGuests(%q)[%d] = %q, want %q", tt.title, i, got[i], tt.expected[i])
				}
			}
		})
	}
}
