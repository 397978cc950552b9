// Package mediathek provides the candidate aggregator client. The
// aggregator exposes a loosely structured RSS feed over a free-text query;
// items are not keyed by season or episode.
package mediathek

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"

	"github.com/castarr/castarr/internal/config"
)

var ErrFeedUnavailable = errors.New("candidate feed unavailable")

const (
	requestAttempts = 3

	// durationFloorMinutes is appended to every feed query to keep clips
	// and teasers out of the result set.
	durationFloorMinutes = 20

	maxFeedBytes = 8 << 20
)

// Item is one candidate from the feed. PublishedAt is zero when the feed
// timestamp was missing or unparseable.
type Item struct {
	Title       string
	Description string
	Link        string
	PublishedAt time.Time
}

// Client queries the candidate aggregator feed.
type Client struct {
	httpClient *http.Client
	config     config.MediathekConfig
	logger     zerolog.Logger
}

// NewClient creates a new feed client.
func NewClient(cfg config.MediathekConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "mediathek").Logger(),
	}
}

// Search queries the feed for one title variant and returns the parsed
// candidate items, newest first as delivered by the feed. sources narrows
// the feed to specific broadcasters; empty falls back to the configured
// default.
func (c *Client) Search(ctx context.Context, query, sources string) ([]Item, error) {
	feedURL := c.buildFeedURL(query, sources)

	var body []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("%w: status %d", ErrFeedUnavailable, resp.StatusCode)
			}

			body, err = io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
			return err
		},
		retry.Context(ctx),
		retry.Attempts(requestAttempts),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	items, err := ParseFeed(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed for %q: %w", query, err)
	}

	c.logger.Debug().
		Str("query", query).
		Int("items", len(items)).
		Msg("feed search completed")

	return items, nil
}

// buildFeedURL assembles the aggregator query. The feed grammar uses
// "!source" to pin a broadcaster, "#topic" for the show name (spaces become
// commas), and ">n" as a duration floor in minutes.
func (c *Client) buildFeedURL(query, sources string) string {
	if sources == "" {
		sources = c.config.Sources
	}
	topic := strings.ReplaceAll(strings.TrimSpace(query), " ", ",")
	q := fmt.Sprintf("%s #%s >%d", sources, topic, durationFloorMinutes)
	return c.config.FeedURL + "?query=" + url.QueryEscape(q)
}
