package syncer

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/castarr/castarr/internal/store"
)

// ImportFromSonarr adopts every downstream series carrying the membership
// tag as a watched series. Existing entries are linked if the linkage was
// missing. Returns how many series were newly created.
func (s *Service) ImportFromSonarr(ctx context.Context) (int, error) {
	if !s.tracker.Configured() {
		return 0, errors.New("downstream consumer is not configured")
	}

	tagged, err := s.tracker.TaggedSeries(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tagged series: %w", err)
	}

	created := 0
	for i := range tagged {
		remote := &tagged[i]
		if remote.TVDBID == 0 {
			continue
		}
		tvdbID := strconv.FormatInt(remote.TVDBID, 10)

		existing, err := s.store.GetSeries(ctx, tvdbID)
		if err == nil {
			if !existing.Linked() {
				if err := s.store.LinkSonarrSeries(ctx, tvdbID, remote.ID); err != nil {
					s.logger.Warn().Err(err).Str("tvdbId", tvdbID).Msg("failed to link series")
				}
			}
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return created, err
		}

		series := &store.WatchedSeries{
			TVDBID: tvdbID,
			Name:   remote.Title,
		}
		series.SonarrSeriesID.Valid = true
		series.SonarrSeriesID.Int64 = remote.ID

		if err := s.store.CreateSeries(ctx, series); err != nil {
			s.logger.Error().Err(err).Str("tvdbId", tvdbID).Msg("failed to import series")
			continue
		}
		created++
		s.logger.Info().Str("tvdbId", tvdbID).Str("name", remote.Title).Msg("imported series")
	}

	return created, nil
}
