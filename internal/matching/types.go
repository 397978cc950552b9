// Package matching implements the layered heuristic that maps loosely
// structured feed items onto canonical (season, episode) pairs.
package matching

import "time"

// Candidate is one item from the candidate feed. PublishedAt is zero when
// the feed timestamp was missing or unparseable.
type Candidate struct {
	Title       string
	Description string
	Link        string
	PublishedAt time.Time
}

// HasDate reports whether the candidate carries a usable publish date.
func (c *Candidate) HasDate() bool {
	return !c.PublishedAt.IsZero()
}

// Episode is one canonical episode of the series being matched against.
// AirDate is zero when the metadata source has no air date.
type Episode struct {
	Season  int
	Episode int
	Title   string
	AirDate time.Time
}

// Result is a successful match of a candidate onto a canonical episode.
type Result struct {
	Season         int
	Episode        int
	Confidence     float64
	Strategy       string
	CanonicalTitle string
}
