package metadata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castarr/castarr/internal/config"
	"github.com/castarr/castarr/internal/testutil"
)

func newTestServer(t *testing.T, logins *atomic.Int32, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			logins.Add(1)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]string{"token": "test-token"},
			})
			return
		}
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestClient(server *httptest.Server) *Client {
	return NewClient(config.TVDBConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Timeout: 5,
	}, NewVariantCache(time.Minute), testutil.NopLogger())
}

func TestFetchEpisodes(t *testing.T) {
	var logins atomic.Int32
	server := newTestServer(t, &logins, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/series/81189/episodes/default", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"episodes": []map[string]interface{}{
					{"seasonNumber": 1, "number": 1, "name": "Doppelleben", "overview": "Krimi", "aired": "2027-03-15"},
					{"seasonNumber": 1, "number": 2, "name": "Mörderische Gier", "aired": ""},
				},
			},
		})
	})

	client := newTestClient(server)
	episodes, err := client.FetchEpisodes(context.Background(), "81189")
	require.NoError(t, err)
	require.Len(t, episodes, 2)

	assert.Equal(t, "Doppelleben", episodes[0].Title)
	assert.Equal(t, time.Date(2027, 3, 15, 0, 0, 0, 0, time.UTC), episodes[0].AirDate)
	assert.True(t, episodes[1].AirDate.IsZero(), "missing air date stays zero")

	// Token is reused across calls.
	_, err = client.FetchEpisodes(context.Background(), "81189")
	require.NoError(t, err)
	assert.EqualValues(t, 1, logins.Load())
}

func TestFetchEpisodesUnconfigured(t *testing.T) {
	client := NewClient(config.TVDBConfig{}, NewVariantCache(time.Minute), testutil.NopLogger())
	_, err := client.FetchEpisodes(context.Background(), "81189")
	assert.ErrorIs(t, err, ErrAPIKeyMissing)
}

func TestFetchEpisodesNotFound(t *testing.T) {
	var logins atomic.Int32
	server := newTestServer(t, &logins, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	client := newTestClient(server)
	_, err := client.FetchEpisodes(context.Background(), "99999")
	assert.ErrorIs(t, err, ErrSeriesNotFound)
}

func TestFetchTitleVariantsUsesCache(t *testing.T) {
	var logins atomic.Int32
	var lookups atomic.Int32
	server := newTestServer(t, &logins, func(w http.ResponseWriter, r *http.Request) {
		lookups.Add(1)
		require.Equal(t, "/series/81189/extended", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"name": "Der Fall",
				"aliases": []map[string]string{
					{"language": "eng", "name": "The Case"},
				},
			},
		})
	})

	client := newTestClient(server)

	variants, err := client.FetchTitleVariants(context.Background(), "81189")
	require.NoError(t, err)
	assert.Equal(t, []string{"Der Fall", "The Case"}, variants)

	// Second call is served from the cache.
	_, err = client.FetchTitleVariants(context.Background(), "81189")
	require.NoError(t, err)
	assert.EqualValues(t, 1, lookups.Load())

	// Invalidation forces a refetch.
	client.InvalidateVariants("81189")
	_, err = client.FetchTitleVariants(context.Background(), "81189")
	require.NoError(t, err)
	assert.EqualValues(t, 2, lookups.Load())
}
