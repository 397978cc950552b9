package syncer

import (
	"context"
	"errors"

	"github.com/castarr/castarr/internal/matching"
	"github.com/castarr/castarr/internal/sonarr"
	"github.com/castarr/castarr/internal/store"
)

// reconcileMonitoring compares the consumer's current needed set (monitored
// and missing) against the stored snapshot. When the set changed, every
// episode in the new set with a cached availability record is evaluated:
// newly needed episodes and records left unfulfilled by an earlier failed
// transfer are downloaded immediately instead of waiting for the feed to
// surface them again. The snapshot is then replaced wholesale.
func (s *Service) reconcileMonitoring(
	ctx context.Context,
	series *store.WatchedSeries,
	states map[store.EpisodeKey]sonarr.EpisodeState,
	episodes []matching.Episode,
	stats *seriesStats,
) {
	log := s.logger.With().Str("tvdbId", series.TVDBID).Logger()

	needed := make(map[store.EpisodeKey]bool)
	for key, state := range states {
		if state.Monitored && !state.HasFile {
			needed[key] = true
		}
	}

	snapshot, err := s.store.GetSnapshot(ctx, series.TVDBID)
	if err != nil {
		log.Warn().Err(err).Msg("snapshot load failed")
		return
	}

	if sameKeySet(needed, snapshot) {
		return
	}

	titles := make(map[store.EpisodeKey]string, len(episodes))
	for _, ep := range episodes {
		titles[store.EpisodeKey{Season: ep.Season, Episode: ep.Episode}] = ep.Title
	}

	for key := range needed {
		rec, err := s.store.ActiveRecord(ctx, series.TVDBID, key.Season, key.Episode)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			log.Error().Err(err).Msg("availability lookup failed")
			stats.errors++
			continue
		}

		// A record already downloaded for an episode that was needed
		// before stays untouched; re-fetching it would gain nothing.
		if rec.Transferred && snapshot[key] {
			continue
		}

		log.Info().
			Int("season", key.Season).
			Int("episode", key.Episode).
			Msg("monitoring change, cached availability still valid")

		res := &matching.Result{
			Season:         key.Season,
			Episode:        key.Episode,
			Confidence:     rec.Confidence,
			Strategy:       rec.Strategy,
			CanonicalTitle: titles[key],
		}
		if res.CanonicalTitle == "" {
			res.CanonicalTitle = rec.Title
		}

		if err := s.downloadEpisode(ctx, series, res, rec.Link); err != nil {
			log.Error().Err(err).
				Int("season", key.Season).
				Int("episode", key.Episode).
				Msg("transfer failed")
			stats.errors++
			continue
		}
		if err := s.store.MarkTransferred(ctx, series.TVDBID, key.Season, key.Episode); err != nil {
			log.Warn().Err(err).Msg("failed to mark record transferred")
		}
		stats.downloads++
	}

	keys := make([]store.EpisodeKey, 0, len(needed))
	for key := range needed {
		keys = append(keys, key)
	}
	if err := s.store.ReplaceSnapshot(ctx, series.TVDBID, keys); err != nil {
		log.Warn().Err(err).Msg("snapshot replace failed")
	}
}

func sameKeySet(a, b map[store.EpisodeKey]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for key := range a {
		if !b[key] {
			return false
		}
	}
	return true
}
