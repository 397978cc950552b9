package store

import (
	"context"
	"fmt"
)

// GetSnapshot returns the stored monitoring snapshot for a series as a set
// of (season, episode) pairs.
func (s *Store) GetSnapshot(ctx context.Context, tvdbID string) (map[EpisodeKey]bool, error) {
	var keys []EpisodeKey
	if err := s.db.SelectContext(ctx, &keys,
		`SELECT season, episode FROM monitoring_snapshots WHERE tvdb_id = ?`,
		tvdbID); err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", tvdbID, err)
	}
	set := make(map[EpisodeKey]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set, nil
}

// ReplaceSnapshot overwrites the monitoring snapshot for a series wholesale.
func (s *Store) ReplaceSnapshot(ctx context.Context, tvdbID string, keys []EpisodeKey) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace snapshot %s: %w", tvdbID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM monitoring_snapshots WHERE tvdb_id = ?`, tvdbID); err != nil {
		return fmt.Errorf("replace snapshot %s: %w", tvdbID, err)
	}

	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO monitoring_snapshots (tvdb_id, season, episode)
			VALUES (?, ?, ?)
			ON CONFLICT(tvdb_id, season, episode) DO NOTHING`,
			tvdbID, k.Season, k.Episode); err != nil {
			return fmt.Errorf("insert snapshot key %s S%02dE%02d: %w", tvdbID, k.Season, k.Episode, err)
		}
	}

	return tx.Commit()
}
