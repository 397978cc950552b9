package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ActiveRecord returns the non-expired availability record for an episode,
// or ErrNotFound. At most one non-expired record exists per key; the
// uniqueness is enforced by the check-before-insert in the sync cycle, not
// by a constraint, so a concurrent writer can race (last write loses).
func (s *Store) ActiveRecord(ctx context.Context, tvdbID string, season, episode int) (*AvailabilityRecord, error) {
	var rec AvailabilityRecord
	err := s.db.GetContext(ctx, &rec, `
		SELECT * FROM availability_records
		WHERE tvdb_id = ? AND season = ? AND episode = ? AND expires_at > ?
		ORDER BY created_at DESC LIMIT 1`,
		tvdbID, season, episode, time.Now().UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("active record %s S%02dE%02d: %w", tvdbID, season, episode, err)
	}
	return &rec, nil
}

// InsertRecord persists a new availability record.
func (s *Store) InsertRecord(ctx context.Context, rec *AvailabilityRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO availability_records (tvdb_id, season, episode, title, link, quality, confidence, strategy, transferred, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TVDBID, rec.Season, rec.Episode, rec.Title, rec.Link,
		rec.Quality, rec.Confidence, rec.Strategy, rec.Transferred, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert record %s S%02dE%02d: %w", rec.TVDBID, rec.Season, rec.Episode, err)
	}
	return nil
}

// MarkTransferred flags the non-expired record for an episode as downloaded.
func (s *Store) MarkTransferred(ctx context.Context, tvdbID string, season, episode int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE availability_records SET transferred = 1
		WHERE tvdb_id = ? AND season = ? AND episode = ? AND expires_at > ?`,
		tvdbID, season, episode, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark transferred %s S%02dE%02d: %w", tvdbID, season, episode, err)
	}
	return nil
}

// ListActiveRecords returns all non-expired records for a series.
func (s *Store) ListActiveRecords(ctx context.Context, tvdbID string) ([]AvailabilityRecord, error) {
	var recs []AvailabilityRecord
	if err := s.db.SelectContext(ctx, &recs, `
		SELECT * FROM availability_records
		WHERE tvdb_id = ? AND expires_at > ?
		ORDER BY season, episode`,
		tvdbID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("list active records %s: %w", tvdbID, err)
	}
	return recs, nil
}

// CountActiveRecords returns the number of non-expired records for a series.
func (s *Store) CountActiveRecords(ctx context.Context, tvdbID string) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM availability_records
		WHERE tvdb_id = ? AND expires_at > ?`,
		tvdbID, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("count active records %s: %w", tvdbID, err)
	}
	return count, nil
}

// DeleteExpiredRecords removes availability records past their expiry time
// and returns how many were deleted.
func (s *Store) DeleteExpiredRecords(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM availability_records WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired records: %w", err)
	}
	deleted, _ := res.RowsAffected()
	return deleted, nil
}
