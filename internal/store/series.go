package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// CreateSeries inserts a new watched series. Duplicate IDs are rejected by
// the primary key.
func (s *Store) CreateSeries(ctx context.Context, series *WatchedSeries) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watched_series (
			tvdb_id, name, search_title, min_duration_minutes, max_duration_minutes,
			excluded_keywords, included_sources, sonarr_series_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		series.TVDBID, series.Name, series.SearchTitle,
		series.MinDurationMinutes, series.MaxDurationMinutes,
		series.ExcludedKeywords, series.IncludedSources, series.SonarrSeriesID,
	)
	if err != nil {
		return fmt.Errorf("create series %s: %w", series.TVDBID, err)
	}
	return nil
}

// GetSeries fetches a single watched series by its TVDB ID.
func (s *Store) GetSeries(ctx context.Context, tvdbID string) (*WatchedSeries, error) {
	var series WatchedSeries
	err := s.db.GetContext(ctx, &series,
		`SELECT * FROM watched_series WHERE tvdb_id = ?`, tvdbID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get series %s: %w", tvdbID, err)
	}
	return &series, nil
}

// ListSeries returns all watched series ordered by name.
func (s *Store) ListSeries(ctx context.Context) ([]WatchedSeries, error) {
	var series []WatchedSeries
	if err := s.db.SelectContext(ctx, &series,
		`SELECT * FROM watched_series ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	return series, nil
}

// ListInactiveSeries returns series whose last access is older than cutoff.
func (s *Store) ListInactiveSeries(ctx context.Context, cutoff time.Time) ([]WatchedSeries, error) {
	var series []WatchedSeries
	if err := s.db.SelectContext(ctx, &series,
		`SELECT * FROM watched_series WHERE last_accessed < ?`, cutoff); err != nil {
		return nil, fmt.Errorf("list inactive series: %w", err)
	}
	return series, nil
}

// SeriesFilters carries the per-series candidate filter configuration.
type SeriesFilters struct {
	SearchTitle        sql.NullString
	MinDurationMinutes sql.NullInt64
	MaxDurationMinutes sql.NullInt64
	ExcludedKeywords   []string
	IncludedSources    string
}

// UpdateSeriesFilters updates the filter configuration for a series and
// invalidates its derived availability records, since earlier matches may
// no longer pass the new filters.
func (s *Store) UpdateSeriesFilters(ctx context.Context, tvdbID string, filters SeriesFilters) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update filters %s: %w", tvdbID, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE watched_series
		SET search_title = ?, min_duration_minutes = ?, max_duration_minutes = ?,
		    excluded_keywords = ?, included_sources = ?
		WHERE tvdb_id = ?`,
		filters.SearchTitle, filters.MinDurationMinutes, filters.MaxDurationMinutes,
		strings.Join(filters.ExcludedKeywords, ","), filters.IncludedSources, tvdbID,
	)
	if err != nil {
		return fmt.Errorf("update filters %s: %w", tvdbID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM availability_records WHERE tvdb_id = ?`, tvdbID); err != nil {
		return fmt.Errorf("invalidate availability for %s: %w", tvdbID, err)
	}

	return tx.Commit()
}

// LinkSonarrSeries records the downstream consumer linkage for a series.
func (s *Store) LinkSonarrSeries(ctx context.Context, tvdbID string, sonarrSeriesID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE watched_series SET sonarr_series_id = ? WHERE tvdb_id = ?`,
		sonarrSeriesID, tvdbID)
	if err != nil {
		return fmt.Errorf("link series %s: %w", tvdbID, err)
	}
	return nil
}

// TouchSeries updates the last-access timestamp for a series.
func (s *Store) TouchSeries(ctx context.Context, tvdbID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE watched_series SET last_accessed = ? WHERE tvdb_id = ?`,
		time.Now().UTC(), tvdbID)
	if err != nil {
		return fmt.Errorf("touch series %s: %w", tvdbID, err)
	}
	return nil
}

// UpdateSeriesCounters persists the per-cycle observability counters.
func (s *Store) UpdateSeriesCounters(ctx context.Context, tvdbID string, found, cached int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE watched_series SET episodes_found = ?, episodes_cached = ? WHERE tvdb_id = ?`,
		found, cached, tvdbID)
	if err != nil {
		return fmt.Errorf("update counters %s: %w", tvdbID, err)
	}
	return nil
}

// DeleteSeries removes a watched series. Canonical episodes, availability
// records and monitoring snapshots cascade via foreign keys.
func (s *Store) DeleteSeries(ctx context.Context, tvdbID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM watched_series WHERE tvdb_id = ?`, tvdbID)
	if err != nil {
		return fmt.Errorf("delete series %s: %w", tvdbID, err)
	}
	return nil
}
