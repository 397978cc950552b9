// Package sonarr provides HTTP communication with the downstream PVR
// consumer. The consumer owns monitoring state and file bookkeeping; this
// client only reads episode state and nudges rescans.
package sonarr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/castarr/castarr/internal/config"
)

var (
	ErrNotConfigured  = errors.New("sonarr is not configured")
	ErrSeriesNotFound = errors.New("series not found in sonarr")
)

//nolint:gosec // header name constant, not a credential
const apiKeyHeader = "X-Api-Key"

// Client provides HTTP communication with a Sonarr server.
type Client struct {
	baseURL    string
	apiKey     string
	tagLabel   string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new Sonarr client. An unconfigured client is valid;
// every call returns ErrNotConfigured until URL and API key are set.
func NewClient(cfg config.SonarrConfig, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimSuffix(cfg.URL, "/"),
		apiKey:   cfg.APIKey,
		tagLabel: cfg.Tag,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		logger: logger.With().Str("component", "sonarr").Logger(),
	}
}

// Configured returns true when both URL and API key are set.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// SeriesByTVDBID looks up the downstream series for a TVDB id. Returns
// ErrSeriesNotFound when the consumer does not carry the series.
func (c *Client) SeriesByTVDBID(ctx context.Context, tvdbID int64) (*Series, error) {
	var series []Series
	path := fmt.Sprintf("/api/v3/series?tvdbId=%d", tvdbID)
	if err := c.getJSON(ctx, path, &series); err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, ErrSeriesNotFound
	}
	return &series[0], nil
}

// ListSeries returns every series the consumer carries.
func (c *Client) ListSeries(ctx context.Context) ([]Series, error) {
	var series []Series
	if err := c.getJSON(ctx, "/api/v3/series", &series); err != nil {
		return nil, err
	}
	return series, nil
}

// ListEpisodes returns all episode records for a downstream series.
func (c *Client) ListEpisodes(ctx context.Context, seriesID int64) ([]Episode, error) {
	var episodes []Episode
	path := fmt.Sprintf("/api/v3/episode?seriesId=%d", seriesID)
	if err := c.getJSON(ctx, path, &episodes); err != nil {
		return nil, err
	}
	return episodes, nil
}

// EpisodeState reports what the consumer knows about one episode. An
// episode absent from the consumer's records yields a zero state.
func (c *Client) EpisodeState(ctx context.Context, seriesID int64, season, episode int) (EpisodeState, error) {
	episodes, err := c.ListEpisodes(ctx, seriesID)
	if err != nil {
		return EpisodeState{}, err
	}
	for _, ep := range episodes {
		if ep.SeasonNumber == season && ep.EpisodeNumber == episode {
			return EpisodeState{Exists: true, Monitored: ep.Monitored, HasFile: ep.HasFile}, nil
		}
	}
	return EpisodeState{}, nil
}

// NeededEpisodes returns the episodes the consumer monitors but has no file
// for.
func (c *Client) NeededEpisodes(ctx context.Context, seriesID int64) ([]Episode, error) {
	episodes, err := c.ListEpisodes(ctx, seriesID)
	if err != nil {
		return nil, err
	}

	needed := make([]Episode, 0, len(episodes))
	for _, ep := range episodes {
		if ep.Monitored && !ep.HasFile {
			needed = append(needed, ep)
		}
	}
	return needed, nil
}

// TitleVariants returns the series title plus all alternate titles the
// consumer knows.
func (c *Client) TitleVariants(ctx context.Context, seriesID int64) ([]string, error) {
	var series Series
	path := fmt.Sprintf("/api/v3/series/%d", seriesID)
	if err := c.getJSON(ctx, path, &series); err != nil {
		return nil, err
	}

	variants := make([]string, 0, len(series.AlternateTitles)+1)
	if series.Title != "" {
		variants = append(variants, series.Title)
	}
	for _, alt := range series.AlternateTitles {
		if alt.Title != "" {
			variants = append(variants, alt.Title)
		}
	}
	return variants, nil
}

// IsWatchRequested reports whether the consumer carries the series and has
// flagged it with the membership tag.
func (c *Client) IsWatchRequested(ctx context.Context, tvdbID int64) (bool, *Series, error) {
	series, err := c.SeriesByTVDBID(ctx, tvdbID)
	if errors.Is(err, ErrSeriesNotFound) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}

	tagID, err := c.findTag(ctx, c.tagLabel)
	if err != nil {
		return false, nil, err
	}
	if tagID == 0 {
		return false, series, nil
	}

	for _, id := range series.Tags {
		if id == tagID {
			return true, series, nil
		}
	}
	return false, series, nil
}

// TaggedSeries returns every downstream series carrying the membership
// tag. An absent tag yields an empty list.
func (c *Client) TaggedSeries(ctx context.Context) ([]Series, error) {
	tagID, err := c.findTag(ctx, c.tagLabel)
	if err != nil {
		return nil, err
	}
	if tagID == 0 {
		return nil, nil
	}

	series, err := c.ListSeries(ctx)
	if err != nil {
		return nil, err
	}

	tagged := make([]Series, 0, len(series))
	for _, s := range series {
		for _, id := range s.Tags {
			if id == tagID {
				tagged = append(tagged, s)
				break
			}
		}
	}
	return tagged, nil
}

// EnsureTag creates the membership tag if missing and attaches it to the
// series.
func (c *Client) EnsureTag(ctx context.Context, series *Series) error {
	tagID, err := c.findTag(ctx, c.tagLabel)
	if err != nil {
		return err
	}
	if tagID == 0 {
		created, err := c.createTag(ctx, c.tagLabel)
		if err != nil {
			return err
		}
		tagID = created
	}

	for _, id := range series.Tags {
		if id == tagID {
			return nil
		}
	}

	series.Tags = append(series.Tags, tagID)
	body, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("failed to marshal series update: %w", err)
	}

	path := fmt.Sprintf("/api/v3/series/%d", series.ID)
	resp, err := c.do(ctx, http.MethodPut, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("failed to tag series: status %d", resp.StatusCode)
	}

	c.logger.Debug().Int64("seriesId", series.ID).Str("tag", c.tagLabel).Msg("attached membership tag")
	return nil
}

// RequestRescan asks the consumer to rescan a series directory so a freshly
// published file gets picked up.
func (c *Client) RequestRescan(ctx context.Context, seriesID int64) error {
	return c.postCommand(ctx, commandRequest{Name: "RescanSeries", SeriesID: seriesID})
}

// TriggerImportScan asks the consumer to import finished downloads from a
// directory outside its own library.
func (c *Client) TriggerImportScan(ctx context.Context, path string) error {
	return c.postCommand(ctx, commandRequest{Name: "DownloadedEpisodesScan", Path: path})
}

func (c *Client) findTag(ctx context.Context, label string) (int64, error) {
	var tags []tag
	if err := c.getJSON(ctx, "/api/v3/tag", &tags); err != nil {
		return 0, err
	}
	for _, t := range tags {
		if strings.EqualFold(t.Label, label) {
			return t.ID, nil
		}
	}
	return 0, nil
}

func (c *Client) createTag(ctx context.Context, label string) (int64, error) {
	body, err := json.Marshal(tag{Label: label})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal tag: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/v3/tag", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("failed to create tag: status %d", resp.StatusCode)
	}

	var created tag
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return 0, fmt.Errorf("failed to decode tag response: %w", err)
	}
	return created.ID, nil
}

func (c *Client) postCommand(ctx context.Context, cmd commandRequest) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/v3/command", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("command %s failed: status %d", cmd.Name, resp.StatusCode)
	}

	c.logger.Debug().Str("command", cmd.Name).Int64("seriesId", cmd.SeriesID).Msg("command accepted")
	return nil
}

// do executes an HTTP request with the API key header.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(apiKeyHeader, c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// getJSON executes a GET request and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, path string, result interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		c.logger.Error().
			Int("status", resp.StatusCode).
			Str("path", path).
			Str("body", string(bodyBytes)).
			Msg("sonarr request failed")
		return fmt.Errorf("sonarr returned status %d for %s", resp.StatusCode, path)
	}

	return json.NewDecoder(resp.Body).Decode(result)
}
