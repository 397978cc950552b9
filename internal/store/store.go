// Package store provides the persistence layer for watched series and
// their derived records.
package store

import (
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store provides access to the persisted entities.
type Store struct {
	db *sqlx.DB
}

// New creates a new Store on top of an open database connection.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// WatchedSeries is the root entity: one row per series being tracked.
type WatchedSeries struct {
	TVDBID             string         `db:"tvdb_id"`
	Name               string         `db:"name"`
	SearchTitle        sql.NullString `db:"search_title"`
	MinDurationMinutes sql.NullInt64  `db:"min_duration_minutes"`
	MaxDurationMinutes sql.NullInt64  `db:"max_duration_minutes"`
	ExcludedKeywords   string         `db:"excluded_keywords"`
	IncludedSources    string         `db:"included_sources"`
	SonarrSeriesID     sql.NullInt64  `db:"sonarr_series_id"`
	EpisodesFound      int            `db:"episodes_found"`
	EpisodesCached     int            `db:"episodes_cached"`
	CreatedAt          time.Time      `db:"created_at"`
	LastAccessed       time.Time      `db:"last_accessed"`
}

// Keywords returns the excluded keywords as a trimmed slice.
func (s *WatchedSeries) Keywords() []string {
	if s.ExcludedKeywords == "" {
		return nil
	}
	parts := strings.Split(s.ExcludedKeywords, ",")
	keywords := make([]string, 0, len(parts))
	for _, p := range parts {
		if kw := strings.TrimSpace(p); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}

// Linked reports whether the series is linked to a downstream consumer record.
func (s *WatchedSeries) Linked() bool {
	return s.SonarrSeriesID.Valid
}

// CanonicalEpisode is authoritative per-episode reference data.
type CanonicalEpisode struct {
	ID       int64        `db:"id"`
	TVDBID   string       `db:"tvdb_id"`
	Season   int          `db:"season"`
	Episode  int          `db:"episode"`
	Title    string       `db:"title"`
	Synopsis string       `db:"synopsis"`
	AirDate  sql.NullTime `db:"air_date"`
	CachedAt time.Time    `db:"cached_at"`
}

// AvailabilityRecord maps a matched episode to its source link until expiry.
// Transferred flips once a download for the record completed; a record left
// untransferred after a failed transfer is retried on the next cycle.
type AvailabilityRecord struct {
	ID          int64     `db:"id"`
	TVDBID      string    `db:"tvdb_id"`
	Season      int       `db:"season"`
	Episode     int       `db:"episode"`
	Title       string    `db:"title"`
	Link        string    `db:"link"`
	Quality     string    `db:"quality"`
	Confidence  float64   `db:"confidence"`
	Strategy    string    `db:"strategy"`
	Transferred bool      `db:"transferred"`
	CreatedAt   time.Time `db:"created_at"`
	ExpiresAt   time.Time `db:"expires_at"`
}

// EpisodeKey identifies one (season, episode) pair.
type EpisodeKey struct {
	Season  int `db:"season"`
	Episode int `db:"episode"`
}
