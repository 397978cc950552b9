package store

import (
	"context"
	"fmt"
)

// ReplaceEpisodes swaps the cached canonical episode set for a series.
func (s *Store) ReplaceEpisodes(ctx context.Context, tvdbID string, episodes []CanonicalEpisode) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace episodes %s: %w", tvdbID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM canonical_episodes WHERE tvdb_id = ?`, tvdbID); err != nil {
		return fmt.Errorf("replace episodes %s: %w", tvdbID, err)
	}

	for _, ep := range episodes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO canonical_episodes (tvdb_id, season, episode, title, synopsis, air_date)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(tvdb_id, season, episode) DO UPDATE SET
				title = excluded.title, synopsis = excluded.synopsis, air_date = excluded.air_date`,
			tvdbID, ep.Season, ep.Episode, ep.Title, ep.Synopsis, ep.AirDate,
		); err != nil {
			return fmt.Errorf("insert episode %s S%02dE%02d: %w", tvdbID, ep.Season, ep.Episode, err)
		}
	}

	return tx.Commit()
}

// ListEpisodes returns all cached canonical episodes for a series.
func (s *Store) ListEpisodes(ctx context.Context, tvdbID string) ([]CanonicalEpisode, error) {
	var episodes []CanonicalEpisode
	if err := s.db.SelectContext(ctx, &episodes,
		`SELECT * FROM canonical_episodes WHERE tvdb_id = ? ORDER BY season, episode`,
		tvdbID); err != nil {
		return nil, fmt.Errorf("list episodes %s: %w", tvdbID, err)
	}
	return episodes, nil
}

// HasEpisodes reports whether canonical metadata is cached for a series.
func (s *Store) HasEpisodes(ctx context.Context, tvdbID string) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM canonical_episodes WHERE tvdb_id = ?`, tvdbID); err != nil {
		return false, fmt.Errorf("count episodes %s: %w", tvdbID, err)
	}
	return count > 0, nil
}
