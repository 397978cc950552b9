package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/castarr/castarr/internal/scheduler/tasks"
	"github.com/castarr/castarr/internal/sonarr"
	"github.com/castarr/castarr/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

func jsonError(c echo.Context, status int, msg string) error {
	return c.JSON(status, errorResponse{Error: msg})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	series, err := s.store.ListSeries(c.Request().Context())
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"series":     len(series),
		"sonarr":     s.tracker.Configured(),
		"lastSync":   s.syncer.Status(),
		"serverTime": time.Now().UTC(),
	})
}

func (s *Server) handleListTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, s.sched.ListTasks())
}

func (s *Server) handleGetTask(c echo.Context) error {
	info, err := s.sched.GetTask(c.Param("id"))
	if err != nil {
		return jsonError(c, http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, info)
}

type seriesResponse struct {
	TVDBID             string   `json:"tvdbId"`
	Name               string   `json:"name"`
	SearchTitle        string   `json:"searchTitle,omitempty"`
	MinDurationMinutes int64    `json:"minDurationMinutes,omitempty"`
	MaxDurationMinutes int64    `json:"maxDurationMinutes,omitempty"`
	ExcludedKeywords   []string `json:"excludedKeywords,omitempty"`
	IncludedSources    string   `json:"includedSources,omitempty"`
	SonarrSeriesID     int64    `json:"sonarrSeriesId,omitempty"`
	EpisodesFound      int      `json:"episodesFound"`
	EpisodesCached     int      `json:"episodesCached"`
	LastAccessed       string   `json:"lastAccessed"`
}

func toSeriesResponse(sr *store.WatchedSeries) seriesResponse {
	resp := seriesResponse{
		TVDBID:           sr.TVDBID,
		Name:             sr.Name,
		ExcludedKeywords: sr.Keywords(),
		IncludedSources:  sr.IncludedSources,
		EpisodesFound:    sr.EpisodesFound,
		EpisodesCached:   sr.EpisodesCached,
		LastAccessed:     sr.LastAccessed.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if sr.SearchTitle.Valid {
		resp.SearchTitle = sr.SearchTitle.String
	}
	if sr.MinDurationMinutes.Valid {
		resp.MinDurationMinutes = sr.MinDurationMinutes.Int64
	}
	if sr.MaxDurationMinutes.Valid {
		resp.MaxDurationMinutes = sr.MaxDurationMinutes.Int64
	}
	if sr.SonarrSeriesID.Valid {
		resp.SonarrSeriesID = sr.SonarrSeriesID.Int64
	}
	return resp
}

func (s *Server) handleListSeries(c echo.Context) error {
	series, err := s.store.ListSeries(c.Request().Context())
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, err.Error())
	}

	out := make([]seriesResponse, 0, len(series))
	for i := range series {
		out = append(out, toSeriesResponse(&series[i]))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetSeries(c echo.Context) error {
	series, err := s.store.GetSeries(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return jsonError(c, http.StatusNotFound, "series not found")
	}
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toSeriesResponse(series))
}

type createSeriesRequest struct {
	TVDBID             string   `json:"tvdbId"`
	Name               string   `json:"name"`
	SearchTitle        string   `json:"searchTitle"`
	MinDurationMinutes int64    `json:"minDurationMinutes"`
	MaxDurationMinutes int64    `json:"maxDurationMinutes"`
	ExcludedKeywords   []string `json:"excludedKeywords"`
	IncludedSources    string   `json:"includedSources"`
}

func (s *Server) handleCreateSeries(c echo.Context) error {
	ctx := c.Request().Context()

	var req createSeriesRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid request body")
	}
	if req.TVDBID == "" || req.Name == "" {
		return jsonError(c, http.StatusBadRequest, "tvdbId and name are required")
	}

	series := &store.WatchedSeries{
		TVDBID:           req.TVDBID,
		Name:             req.Name,
		ExcludedKeywords: strings.Join(req.ExcludedKeywords, ","),
		IncludedSources:  req.IncludedSources,
	}
	if req.SearchTitle != "" {
		series.SearchTitle = sql.NullString{String: req.SearchTitle, Valid: true}
	}
	if req.MinDurationMinutes > 0 {
		series.MinDurationMinutes = sql.NullInt64{Int64: req.MinDurationMinutes, Valid: true}
	}
	if req.MaxDurationMinutes > 0 {
		series.MaxDurationMinutes = sql.NullInt64{Int64: req.MaxDurationMinutes, Valid: true}
	}

	// Link to the downstream consumer when it already carries the series,
	// and mark membership there so a later import round-trips.
	var remote *sonarr.Series
	if s.tracker.Configured() {
		if id, err := strconv.ParseInt(req.TVDBID, 10, 64); err == nil {
			if _, sr, err := s.tracker.IsWatchRequested(ctx, id); err != nil {
				s.logger.Warn().Err(err).Str("tvdbId", req.TVDBID).Msg("downstream lookup failed")
			} else if sr != nil {
				series.SonarrSeriesID = sql.NullInt64{Int64: sr.ID, Valid: true}
				remote = sr
			}
		}
	}

	if err := s.store.CreateSeries(ctx, series); err != nil {
		return jsonError(c, http.StatusConflict, err.Error())
	}

	if remote != nil {
		if err := s.tracker.EnsureTag(ctx, remote); err != nil {
			s.logger.Warn().Err(err).Str("tvdbId", req.TVDBID).Msg("failed to tag downstream series")
		}
	}

	created, err := s.store.GetSeries(ctx, req.TVDBID)
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, toSeriesResponse(created))
}

func (s *Server) handleDeleteSeries(c echo.Context) error {
	ctx := c.Request().Context()
	tvdbID := c.Param("id")

	if _, err := s.store.GetSeries(ctx, tvdbID); errors.Is(err, store.ErrNotFound) {
		return jsonError(c, http.StatusNotFound, "series not found")
	} else if err != nil {
		return jsonError(c, http.StatusInternalServerError, err.Error())
	}

	if err := s.store.DeleteSeries(ctx, tvdbID); err != nil {
		return jsonError(c, http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

type updateFiltersRequest struct {
	SearchTitle        *string  `json:"searchTitle"`
	MinDurationMinutes *int64   `json:"minDurationMinutes"`
	MaxDurationMinutes *int64   `json:"maxDurationMinutes"`
	ExcludedKeywords   []string `json:"excludedKeywords"`
	IncludedSources    string   `json:"includedSources"`
}

func (s *Server) handleUpdateFilters(c echo.Context) error {
	ctx := c.Request().Context()
	tvdbID := c.Param("id")

	var req updateFiltersRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid request body")
	}

	filters := store.SeriesFilters{
		ExcludedKeywords: req.ExcludedKeywords,
		IncludedSources:  req.IncludedSources,
	}
	if req.SearchTitle != nil && *req.SearchTitle != "" {
		filters.SearchTitle = sql.NullString{String: *req.SearchTitle, Valid: true}
	}
	if req.MinDurationMinutes != nil && *req.MinDurationMinutes > 0 {
		filters.MinDurationMinutes = sql.NullInt64{Int64: *req.MinDurationMinutes, Valid: true}
	}
	if req.MaxDurationMinutes != nil && *req.MaxDurationMinutes > 0 {
		filters.MaxDurationMinutes = sql.NullInt64{Int64: *req.MaxDurationMinutes, Valid: true}
	}

	if err := s.store.UpdateSeriesFilters(ctx, tvdbID, filters); errors.Is(err, store.ErrNotFound) {
		return jsonError(c, http.StatusNotFound, "series not found")
	} else if err != nil {
		return jsonError(c, http.StatusInternalServerError, err.Error())
	}

	updated, err := s.store.GetSeries(ctx, tvdbID)
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toSeriesResponse(updated))
}

func (s *Server) handleListAvailability(c echo.Context) error {
	records, err := s.store.ListActiveRecords(c.Request().Context(), c.Param("id"))
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, records)
}

func (s *Server) handleReconcile(c echo.Context) error {
	if err := s.sched.RunNow(tasks.ReconcileTaskID); err != nil {
		return jsonError(c, http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusAccepted, map[string]bool{"started": true})
}

func (s *Server) handleReconcileSeries(c echo.Context) error {
	tvdbID := c.Param("id")

	if _, err := s.store.GetSeries(c.Request().Context(), tvdbID); errors.Is(err, store.ErrNotFound) {
		return jsonError(c, http.StatusNotFound, "series not found")
	} else if err != nil {
		return jsonError(c, http.StatusInternalServerError, err.Error())
	}

	go func() {
		if err := s.syncer.RunForSeries(context.Background(), tvdbID); err != nil {
			s.logger.Error().Err(err).Str("tvdbId", tvdbID).Msg("manual series sync failed")
		}
	}()
	return c.JSON(http.StatusAccepted, map[string]bool{"started": true})
}

func (s *Server) handleSweep(c echo.Context) error {
	if err := s.sched.RunNow(tasks.SweepTaskID); err != nil {
		return jsonError(c, http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusAccepted, map[string]bool{"started": true})
}

func (s *Server) handleImport(c echo.Context) error {
	created, err := s.syncer.ImportFromSonarr(c.Request().Context())
	if err != nil {
		return jsonError(c, http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"imported": created})
}
