// Package metadata provides the canonical metadata source client.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"

	"github.com/castarr/castarr/internal/config"
)

var (
	ErrAPIKeyMissing  = errors.New("metadata API key is not configured")
	ErrSeriesNotFound = errors.New("series not found")
	ErrAPIError       = errors.New("metadata API error")
	ErrAuthFailed     = errors.New("metadata authentication failed")
)

const requestAttempts = 3

// Client is a TVDB v4 API client.
type Client struct {
	httpClient *http.Client
	config     config.TVDBConfig
	variants   *VariantCache
	logger     zerolog.Logger

	// Token management
	mu          sync.RWMutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a new metadata client. The variant cache is injected so
// callers control its lifetime and TTL.
func NewClient(cfg config.TVDBConfig, variants *VariantCache, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config:   cfg,
		variants: variants,
		logger:   logger.With().Str("component", "metadata").Logger(),
	}
}

// IsConfigured returns true if the API key is set.
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

// authenticate gets or refreshes the authentication token.
func (c *Client) authenticate(ctx context.Context) error {
	c.mu.RLock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		c.mu.RUnlock()
		return nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return nil
	}

	body, err := json.Marshal(loginRequest{APIKey: c.config.APIKey})
	if err != nil {
		return fmt.Errorf("failed to marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error().Int("status", resp.StatusCode).Msg("metadata authentication failed")
		return ErrAuthFailed
	}

	var loginResp loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}

	c.token = loginResp.Data.Token
	// Tokens are valid for 30 days; refresh daily to stay well clear.
	c.tokenExpiry = time.Now().Add(24 * time.Hour)

	c.logger.Debug().Msg("metadata authentication successful")
	return nil
}

// FetchEpisodes returns the full canonical episode list for a series.
func (c *Client) FetchEpisodes(ctx context.Context, seriesID string) ([]Episode, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}
	if err := c.authenticate(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/series/%s/episodes/default?page=0", c.config.BaseURL, seriesID)

	var response episodesResponse
	if err := c.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	episodes := make([]Episode, 0, len(response.Data.Episodes))
	for _, item := range response.Data.Episodes {
		ep := Episode{
			Season:   item.SeasonNumber,
			Episode:  item.Number,
			Title:    item.Name,
			Synopsis: item.Overview,
		}
		if item.Aired != "" {
			if aired, err := time.Parse("2006-01-02", item.Aired); err == nil {
				ep.AirDate = aired
			}
		}
		episodes = append(episodes, ep)
	}

	c.logger.Debug().
		Str("seriesId", seriesID).
		Int("episodes", len(episodes)).
		Msg("fetched canonical episodes")

	return episodes, nil
}

// FetchTitleVariants returns the primary name plus all aliases known to the
// metadata source. Results are served from the injected TTL cache when
// fresh.
func (c *Client) FetchTitleVariants(ctx context.Context, seriesID string) ([]string, error) {
	if cached, ok := c.variants.Get(seriesID); ok {
		return cached, nil
	}

	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}
	if err := c.authenticate(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/series/%s/extended", c.config.BaseURL, seriesID)

	var response seriesExtendedResponse
	if err := c.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	variants := make([]string, 0, len(response.Data.Aliases)+1)
	if response.Data.Name != "" {
		variants = append(variants, response.Data.Name)
	}
	for _, alias := range response.Data.Aliases {
		if alias.Name != "" {
			variants = append(variants, alias.Name)
		}
	}

	c.variants.Set(seriesID, variants)
	return variants, nil
}

// InvalidateVariants drops the cached title variants for a series.
func (c *Client) InvalidateVariants(seriesID string) {
	c.variants.Invalidate(seriesID)
}

// doRequest performs an authenticated GET with retries and decodes the JSON
// response into out.
func (c *Client) doRequest(ctx context.Context, endpoint string, out interface{}) error {
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			c.mu.RLock()
			req.Header.Set("Authorization", "Bearer "+c.token)
			c.mu.RUnlock()
			req.Header.Set("Accept", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusNotFound:
				return retry.Unrecoverable(ErrSeriesNotFound)
			case resp.StatusCode != http.StatusOK:
				return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
			}

			return json.NewDecoder(resp.Body).Decode(out)
		},
		retry.Context(ctx),
		retry.Attempts(requestAttempts),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
}
