// Package syncer implements the reconciliation cycle: it matches canonical
// episodes against the candidate feed, caches availability, and drives
// downloads for episodes the downstream consumer still needs.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/castarr/castarr/internal/config"
	"github.com/castarr/castarr/internal/matching"
	"github.com/castarr/castarr/internal/mediathek"
	"github.com/castarr/castarr/internal/metadata"
	"github.com/castarr/castarr/internal/sonarr"
	"github.com/castarr/castarr/internal/store"
	"github.com/castarr/castarr/internal/transfer"
)

// ErrSyncInProgress is returned when a cycle is requested while one runs.
var ErrSyncInProgress = errors.New("sync already in progress")

// MetadataSource supplies canonical episode data and title variants.
type MetadataSource interface {
	FetchEpisodes(ctx context.Context, seriesID string) ([]metadata.Episode, error)
	FetchTitleVariants(ctx context.Context, seriesID string) ([]string, error)
}

// CandidateSource supplies loosely structured candidates for a query.
// sources narrows the feed to specific broadcasters; empty means the
// configured default.
type CandidateSource interface {
	Search(ctx context.Context, query, sources string) ([]mediathek.Item, error)
}

// EpisodeTracker is the downstream consumer integration.
type EpisodeTracker interface {
	Configured() bool
	ListEpisodes(ctx context.Context, seriesID int64) ([]sonarr.Episode, error)
	TitleVariants(ctx context.Context, seriesID int64) ([]string, error)
	RequestRescan(ctx context.Context, seriesID int64) error
	TriggerImportScan(ctx context.Context, path string) error
	IsWatchRequested(ctx context.Context, tvdbID int64) (bool, *sonarr.Series, error)
	TaggedSeries(ctx context.Context) ([]sonarr.Series, error)
	EnsureTag(ctx context.Context, series *sonarr.Series) error
}

// Status describes the most recent reconciliation cycle.
type Status struct {
	Running         bool      `json:"running"`
	LastRun         time.Time `json:"lastRun"`
	LastDurationMS  int64     `json:"lastDurationMs"`
	SeriesProcessed int       `json:"seriesProcessed"`
	CandidatesSeen  int       `json:"candidatesSeen"`
	Matches         int       `json:"matches"`
	Downloads       int       `json:"downloads"`
	Errors          int       `json:"errors"`
}

type seriesStats struct {
	candidates int
	matches    int
	downloads  int
	errors     int
}

// Service runs reconciliation cycles. Cycles never overlap; a second Run
// while one is active returns ErrSyncInProgress.
type Service struct {
	store       *store.Store
	metadata    MetadataSource
	candidates  CandidateSource
	tracker     EpisodeTracker
	transfer    transfer.Executor
	matcher     *matching.Matcher
	syncCfg     config.SyncConfig
	downloadCfg config.DownloadConfig
	logger      zerolog.Logger

	running atomic.Bool

	mu     sync.RWMutex
	status Status
}

// NewService creates a reconciliation service.
func NewService(
	st *store.Store,
	meta MetadataSource,
	candidates CandidateSource,
	tracker EpisodeTracker,
	executor transfer.Executor,
	syncCfg config.SyncConfig,
	downloadCfg config.DownloadConfig,
	logger zerolog.Logger,
) *Service {
	return &Service{
		store:       st,
		metadata:    meta,
		candidates:  candidates,
		tracker:     tracker,
		transfer:    executor,
		matcher:     matching.NewMatcher(logger),
		syncCfg:     syncCfg,
		downloadCfg: downloadCfg,
		logger:      logger.With().Str("component", "syncer").Logger(),
	}
}

// Status returns a copy of the latest cycle status.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	st.Running = s.running.Load()
	return st
}

// Run executes one full reconciliation cycle over all watched series.
// Per-series failures are logged and counted but never abort the cycle.
func (s *Service) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrSyncInProgress
	}
	defer s.running.Store(false)

	start := time.Now()
	s.logger.Info().Msg("reconciliation cycle started")

	// Orphans go first so the cycle does not spend work on series nobody
	// wants anymore.
	if err := s.PurgeOrphans(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("orphan purge failed")
	}

	series, err := s.store.ListSeries(ctx)
	if err != nil {
		return fmt.Errorf("list series: %w", err)
	}

	total := seriesStats{}
	for i := range series {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		stats, err := s.syncSeries(ctx, &series[i])
		if err != nil {
			s.logger.Error().Err(err).Str("tvdbId", series[i].TVDBID).Msg("series sync failed")
			stats.errors++
		}
		total.candidates += stats.candidates
		total.matches += stats.matches
		total.downloads += stats.downloads
		total.errors += stats.errors
	}

	s.recordStatus(start, len(series), total)

	s.logger.Info().
		Int("series", len(series)).
		Int("candidates", total.candidates).
		Int("matches", total.matches).
		Int("downloads", total.downloads).
		Int("errors", total.errors).
		Dur("duration", time.Since(start)).
		Msg("reconciliation cycle finished")
	return nil
}

// RunForSeries reconciles a single series on demand. A manual trigger
// counts as activity, so the series' last-access timestamp is refreshed.
func (s *Service) RunForSeries(ctx context.Context, tvdbID string) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrSyncInProgress
	}
	defer s.running.Store(false)

	series, err := s.store.GetSeries(ctx, tvdbID)
	if err != nil {
		return err
	}
	if err := s.store.TouchSeries(ctx, tvdbID); err != nil {
		s.logger.Warn().Err(err).Str("tvdbId", tvdbID).Msg("failed to touch series")
	}

	start := time.Now()
	stats, err := s.syncSeries(ctx, series)
	if err != nil {
		return err
	}
	s.recordStatus(start, 1, stats)
	return nil
}

func (s *Service) recordStatus(start time.Time, processed int, stats seriesStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Status{
		LastRun:         start,
		LastDurationMS:  time.Since(start).Milliseconds(),
		SeriesProcessed: processed,
		CandidatesSeen:  stats.candidates,
		Matches:         stats.matches,
		Downloads:       stats.downloads,
		Errors:          stats.errors,
	}
}

func (s *Service) syncSeries(ctx context.Context, series *store.WatchedSeries) (seriesStats, error) {
	stats := seriesStats{}
	log := s.logger.With().Str("tvdbId", series.TVDBID).Str("name", series.Name).Logger()

	episodes, err := s.ensureEpisodes(ctx, series)
	if err != nil {
		return stats, err
	}
	if len(episodes) == 0 {
		log.Debug().Msg("no canonical episodes, skipping")
		return stats, nil
	}

	integrated := s.tracker.Configured() && series.Linked()
	statesKnown := false
	var states map[store.EpisodeKey]sonarr.EpisodeState
	if integrated {
		downstream, err := s.tracker.ListEpisodes(ctx, series.SonarrSeriesID.Int64)
		if err != nil {
			// Degrade to cache-only for this cycle rather than failing.
			log.Warn().Err(err).Msg("downstream episode fetch failed")
		} else {
			statesKnown = true
			states = stateMap(downstream)
			s.reconcileMonitoring(ctx, series, states, episodes, &stats)
		}
	}

	filter := filterFor(series)
	seen := make(map[string]bool)

	for _, variant := range s.titleVariants(ctx, series, integrated && statesKnown) {
		items, err := s.candidates.Search(ctx, variant, series.IncludedSources)
		if err != nil {
			log.Warn().Err(err).Str("variant", variant).Msg("candidate search failed")
			stats.errors++
			continue
		}

		for _, item := range items {
			if seen[item.Link] {
				continue
			}
			seen[item.Link] = true
			stats.candidates++

			cand := matching.Candidate{
				Title:       item.Title,
				Description: item.Description,
				Link:        item.Link,
				PublishedAt: item.PublishedAt,
			}
			if !filter.Keep(&cand) {
				continue
			}

			res := s.matcher.Match(&cand, episodes)
			if res == nil {
				continue
			}
			stats.matches++

			s.handleMatch(ctx, series, &cand, res, integrated, statesKnown, states, &stats, log)
		}
	}

	cached, err := s.store.CountActiveRecords(ctx, series.TVDBID)
	if err != nil {
		log.Warn().Err(err).Msg("failed to count active records")
	} else if err := s.store.UpdateSeriesCounters(ctx, series.TVDBID, stats.matches, cached); err != nil {
		log.Warn().Err(err).Msg("failed to update counters")
	}

	return stats, nil
}

// handleMatch caches the availability of a matched candidate and, when the
// consumer still needs the episode, dispatches the transfer. Episodes the
// consumer does not know or does not want leave no record; a record whose
// transfer failed earlier is retried from its cached link.
func (s *Service) handleMatch(
	ctx context.Context,
	series *store.WatchedSeries,
	cand *matching.Candidate,
	res *matching.Result,
	integrated bool,
	statesKnown bool,
	states map[store.EpisodeKey]sonarr.EpisodeState,
	stats *seriesStats,
	log zerolog.Logger,
) {
	key := store.EpisodeKey{Season: res.Season, Episode: res.Episode}

	existing, err := s.store.ActiveRecord(ctx, series.TVDBID, key.Season, key.Episode)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Error().Err(err).Msg("availability lookup failed")
		stats.errors++
		return
	}

	decision := Evaluate(integrated, statesKnown, states[key])

	if existing != nil {
		// A second encounter is a no-op, except when the last transfer
		// failed and the episode is still needed.
		if existing.Transferred || decision != DecisionDownload {
			return
		}
		if err := s.downloadEpisode(ctx, series, res, existing.Link); err != nil {
			log.Error().Err(err).
				Int("season", res.Season).
				Int("episode", res.Episode).
				Msg("transfer retry failed")
			stats.errors++
			return
		}
		if err := s.store.MarkTransferred(ctx, series.TVDBID, key.Season, key.Episode); err != nil {
			log.Warn().Err(err).Msg("failed to mark record transferred")
		}
		stats.downloads++
		return
	}

	log.Info().
		Int("season", res.Season).
		Int("episode", res.Episode).
		Str("strategy", res.Strategy).
		Float64("confidence", res.Confidence).
		Str("decision", decision.String()).
		Msg("candidate matched")

	switch decision {
	case DecisionNotMonitored, DecisionFileExists:
		// The consumer does not want this episode; discard without a record.
		return
	}

	rec := &store.AvailabilityRecord{
		TVDBID:     series.TVDBID,
		Season:     res.Season,
		Episode:    res.Episode,
		Title:      cand.Title,
		Link:       cand.Link,
		Quality:    mediathek.InferQuality(cand.Title),
		Confidence: res.Confidence,
		Strategy:   res.Strategy,
		ExpiresAt:  time.Now().UTC().Add(s.syncCfg.CacheTTL()),
	}
	if err := s.store.InsertRecord(ctx, rec); err != nil {
		log.Error().Err(err).Msg("failed to cache availability")
		stats.errors++
		return
	}

	if decision != DecisionDownload {
		return
	}

	if err := s.downloadEpisode(ctx, series, res, cand.Link); err != nil {
		// The record stays untransferred; the next cycle retries without
		// re-matching.
		log.Error().Err(err).
			Int("season", res.Season).
			Int("episode", res.Episode).
			Msg("transfer failed")
		stats.errors++
		return
	}
	if err := s.store.MarkTransferred(ctx, series.TVDBID, key.Season, key.Episode); err != nil {
		log.Warn().Err(err).Msg("failed to mark record transferred")
	}
	stats.downloads++
}

// downloadEpisode fetches the payload, asks the consumer to import the
// download directory, and requests a rescan. A download is activity, so the
// series' last-access timestamp is refreshed.
func (s *Service) downloadEpisode(ctx context.Context, series *store.WatchedSeries, res *matching.Result, link string) error {
	filename := fmt.Sprintf("%s - S%02dE%02d - %s.mp4",
		transfer.SanitizeFilename(series.Name),
		res.Season, res.Episode,
		transfer.SanitizeFilename(res.CanonicalTitle))
	destPath := filepath.Join(s.downloadCfg.Dir, transfer.SanitizeFilename(series.Name), filename)

	fetchCtx, cancel := context.WithTimeout(ctx, s.downloadCfg.TransferTimeout())
	defer cancel()

	if err := s.transfer.Fetch(fetchCtx, link, destPath); err != nil {
		return err
	}

	if err := s.store.TouchSeries(ctx, series.TVDBID); err != nil {
		s.logger.Warn().Err(err).Str("tvdbId", series.TVDBID).Msg("failed to touch series")
	}

	if series.Linked() {
		if err := s.tracker.TriggerImportScan(ctx, filepath.Dir(destPath)); err != nil {
			s.logger.Warn().Err(err).Str("tvdbId", series.TVDBID).Msg("import scan request failed")
		}
		if err := s.tracker.RequestRescan(ctx, series.SonarrSeriesID.Int64); err != nil {
			s.logger.Warn().Err(err).Str("tvdbId", series.TVDBID).Msg("rescan request failed")
		}
	}
	return nil
}

// ensureEpisodes loads the cached canonical episodes, fetching them from
// the metadata source first when the cache is empty. At most one fetch
// attempt is made per cycle.
func (s *Service) ensureEpisodes(ctx context.Context, series *store.WatchedSeries) ([]matching.Episode, error) {
	has, err := s.store.HasEpisodes(ctx, series.TVDBID)
	if err != nil {
		return nil, err
	}
	if !has {
		fetched, err := s.metadata.FetchEpisodes(ctx, series.TVDBID)
		if err != nil {
			return nil, fmt.Errorf("fetch canonical episodes: %w", err)
		}
		if err := s.store.ReplaceEpisodes(ctx, series.TVDBID, toCanonical(series.TVDBID, fetched)); err != nil {
			return nil, err
		}
	}

	canonical, err := s.store.ListEpisodes(ctx, series.TVDBID)
	if err != nil {
		return nil, err
	}
	return toMatching(canonical), nil
}

// titleVariants returns the deduplicated search queries for a series. An
// explicit search title overrides everything; otherwise the primary name is
// enriched with variants from the metadata source and the consumer.
func (s *Service) titleVariants(ctx context.Context, series *store.WatchedSeries, integrated bool) []string {
	if series.SearchTitle.Valid && series.SearchTitle.String != "" {
		return []string{series.SearchTitle.String}
	}

	variants := []string{series.Name}

	if meta, err := s.metadata.FetchTitleVariants(ctx, series.TVDBID); err != nil {
		s.logger.Debug().Err(err).Str("tvdbId", series.TVDBID).Msg("metadata variants unavailable")
	} else {
		variants = append(variants, meta...)
	}

	if integrated {
		if downstream, err := s.tracker.TitleVariants(ctx, series.SonarrSeriesID.Int64); err != nil {
			s.logger.Debug().Err(err).Str("tvdbId", series.TVDBID).Msg("downstream variants unavailable")
		} else {
			variants = append(variants, downstream...)
		}
	}

	seen := make(map[string]bool, len(variants))
	deduped := make([]string, 0, len(variants))
	for _, v := range variants {
		norm := matching.NormalizeTitle(v)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		deduped = append(deduped, v)
	}
	return deduped
}

func filterFor(series *store.WatchedSeries) *matching.Filter {
	f := &matching.Filter{ExcludedKeywords: series.Keywords()}
	if series.MinDurationMinutes.Valid {
		f.MinDurationMinutes = int(series.MinDurationMinutes.Int64)
	}
	if series.MaxDurationMinutes.Valid {
		f.MaxDurationMinutes = int(series.MaxDurationMinutes.Int64)
	}
	return f
}

func stateMap(episodes []sonarr.Episode) map[store.EpisodeKey]sonarr.EpisodeState {
	states := make(map[store.EpisodeKey]sonarr.EpisodeState, len(episodes))
	for _, ep := range episodes {
		states[store.EpisodeKey{Season: ep.SeasonNumber, Episode: ep.EpisodeNumber}] = sonarr.EpisodeState{
			Exists:    true,
			Monitored: ep.Monitored,
			HasFile:   ep.HasFile,
		}
	}
	return states
}

func toCanonical(tvdbID string, episodes []metadata.Episode) []store.CanonicalEpisode {
	out := make([]store.CanonicalEpisode, 0, len(episodes))
	for _, ep := range episodes {
		rec := store.CanonicalEpisode{
			TVDBID:   tvdbID,
			Season:   ep.Season,
			Episode:  ep.Episode,
			Title:    ep.Title,
			Synopsis: ep.Synopsis,
		}
		if !ep.AirDate.IsZero() {
			rec.AirDate.Valid = true
			rec.AirDate.Time = ep.AirDate
		}
		out = append(out, rec)
	}
	return out
}

func toMatching(canonical []store.CanonicalEpisode) []matching.Episode {
	out := make([]matching.Episode, 0, len(canonical))
	for _, ep := range canonical {
		m := matching.Episode{
			Season:  ep.Season,
			Episode: ep.Episode,
			Title:   ep.Title,
		}
		if ep.AirDate.Valid {
			m.AirDate = ep.AirDate.Time
		}
		out = append(out, m)
	}
	return out
}

func parseTVDBID(tvdbID string) (int64, bool) {
	id, err := strconv.ParseInt(tvdbID, 10, 64)
	return id, err == nil
}
