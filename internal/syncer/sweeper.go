package syncer

import (
	"context"
	"fmt"
	"time"
)

// Sweep runs the lifecycle pass: expired availability records are deleted
// and series inactive past the retention window are purged. Individual
// failures are logged, not fatal.
func (s *Service) Sweep(ctx context.Context) error {
	deleted, err := s.store.DeleteExpiredRecords(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("expired record cleanup failed")
	} else if deleted > 0 {
		s.logger.Info().Int64("deleted", deleted).Msg("expired availability records removed")
	}

	cutoff := time.Now().UTC().Add(-s.syncCfg.Retention())
	inactive, err := s.store.ListInactiveSeries(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list inactive series: %w", err)
	}

	for _, series := range inactive {
		if err := s.store.DeleteSeries(ctx, series.TVDBID); err != nil {
			s.logger.Error().Err(err).Str("tvdbId", series.TVDBID).Msg("inactive series purge failed")
			continue
		}
		s.logger.Info().
			Str("tvdbId", series.TVDBID).
			Str("name", series.Name).
			Time("lastAccessed", series.LastAccessed).
			Msg("purged inactive series")
	}

	return nil
}

// PurgeOrphans removes watched series the downstream consumer no longer
// requests. A lookup failure never purges; the series survives until the
// consumer can be asked again.
func (s *Service) PurgeOrphans(ctx context.Context) error {
	if !s.tracker.Configured() {
		return nil
	}

	series, err := s.store.ListSeries(ctx)
	if err != nil {
		return fmt.Errorf("list series: %w", err)
	}

	for _, sr := range series {
		if !sr.Linked() {
			continue
		}
		id, ok := parseTVDBID(sr.TVDBID)
		if !ok {
			continue
		}

		requested, _, err := s.tracker.IsWatchRequested(ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Str("tvdbId", sr.TVDBID).Msg("watch-request check failed")
			continue
		}
		if requested {
			continue
		}

		if err := s.store.DeleteSeries(ctx, sr.TVDBID); err != nil {
			s.logger.Error().Err(err).Str("tvdbId", sr.TVDBID).Msg("orphan purge failed")
			continue
		}
		s.logger.Info().
			Str("tvdbId", sr.TVDBID).
			Str("name", sr.Name).
			Msg("purged orphaned series")
	}

	return nil
}
