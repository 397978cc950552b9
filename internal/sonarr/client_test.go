package sonarr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castarr/castarr/internal/config"
	"github.com/castarr/castarr/internal/testutil"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(config.SonarrConfig{
		URL:     server.URL,
		APIKey:  "test-key",
		Timeout: 5,
		Tag:     "castarr",
	}, testutil.NopLogger())
	return client, server
}

func TestClientUnconfigured(t *testing.T) {
	client := NewClient(config.SonarrConfig{}, testutil.NopLogger())
	assert.False(t, client.Configured())

	_, err := client.ListSeries(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNeededEpisodes(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.Equal(t, "/api/v3/episode", r.URL.Path)
		require.Equal(t, "42", r.URL.Query().Get("seriesId"))

		json.NewEncoder(w).Encode([]Episode{
			{ID: 1, SeasonNumber: 1, EpisodeNumber: 1, Monitored: true, HasFile: false},
			{ID: 2, SeasonNumber: 1, EpisodeNumber: 2, Monitored: true, HasFile: true},
			{ID: 3, SeasonNumber: 1, EpisodeNumber: 3, Monitored: false, HasFile: false},
		})
	}))

	needed, err := client.NeededEpisodes(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, needed, 1)
	assert.Equal(t, 1, needed[0].EpisodeNumber)
}

func TestEpisodeState(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Episode{
			{ID: 1, SeasonNumber: 2, EpisodeNumber: 5, Monitored: true, HasFile: true},
		})
	}))

	state, err := client.EpisodeState(context.Background(), 42, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, EpisodeState{Exists: true, Monitored: true, HasFile: true}, state)

	// An episode the consumer has never heard of yields the zero state.
	state, err = client.EpisodeState(context.Background(), 42, 9, 9)
	require.NoError(t, err)
	assert.Equal(t, EpisodeState{}, state)
}

func TestSeriesByTVDBID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("tvdbId") == "81189" {
			json.NewEncoder(w).Encode([]Series{{ID: 42, Title: "Der Fall", TVDBID: 81189}})
			return
		}
		json.NewEncoder(w).Encode([]Series{})
	}))

	series, err := client.SeriesByTVDBID(context.Background(), 81189)
	require.NoError(t, err)
	assert.EqualValues(t, 42, series.ID)

	_, err = client.SeriesByTVDBID(context.Background(), 99999)
	assert.ErrorIs(t, err, ErrSeriesNotFound)
}

func TestIsWatchRequested(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/series":
			json.NewEncoder(w).Encode([]Series{{ID: 42, Title: "Der Fall", TVDBID: 81189, Tags: []int64{7}}})
		case "/api/v3/tag":
			json.NewEncoder(w).Encode([]tag{{ID: 7, Label: "castarr"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	requested, series, err := client.IsWatchRequested(context.Background(), 81189)
	require.NoError(t, err)
	assert.True(t, requested)
	require.NotNil(t, series)
	assert.EqualValues(t, 42, series.ID)
}

func TestIsWatchRequestedWithoutTag(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/series":
			json.NewEncoder(w).Encode([]Series{{ID: 42, Title: "Der Fall", TVDBID: 81189, Tags: []int64{3}}})
		case "/api/v3/tag":
			json.NewEncoder(w).Encode([]tag{{ID: 7, Label: "castarr"}, {ID: 3, Label: "anime"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	requested, series, err := client.IsWatchRequested(context.Background(), 81189)
	require.NoError(t, err)
	assert.False(t, requested)
	assert.NotNil(t, series, "series is returned even without the tag")
}

func TestTaggedSeries(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/tag":
			json.NewEncoder(w).Encode([]tag{{ID: 7, Label: "castarr"}})
		case "/api/v3/series":
			json.NewEncoder(w).Encode([]Series{
				{ID: 42, Title: "Der Fall", TVDBID: 81189, Tags: []int64{7}},
				{ID: 43, Title: "Am Abend", TVDBID: 70111, Tags: []int64{3}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	tagged, err := client.TaggedSeries(context.Background())
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, "Der Fall", tagged[0].Title)
}

func TestEnsureTagCreatesAndAttaches(t *testing.T) {
	var createdTag bool
	var updatedSeries *Series

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v3/tag" && r.Method == http.MethodGet:
			json.NewEncoder(w).Encode([]tag{})
		case r.URL.Path == "/api/v3/tag" && r.Method == http.MethodPost:
			createdTag = true
			json.NewEncoder(w).Encode(tag{ID: 9, Label: "castarr"})
		case r.URL.Path == "/api/v3/series/42" && r.Method == http.MethodPut:
			var s Series
			json.NewDecoder(r.Body).Decode(&s)
			updatedSeries = &s
			json.NewEncoder(w).Encode(s)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	series := &Series{ID: 42, Title: "Der Fall", TVDBID: 81189}
	require.NoError(t, client.EnsureTag(context.Background(), series))

	assert.True(t, createdTag)
	require.NotNil(t, updatedSeries)
	assert.Contains(t, updatedSeries.Tags, int64(9))
}

func TestRequestRescan(t *testing.T) {
	var cmd commandRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/command", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&cmd)
		w.WriteHeader(http.StatusCreated)
	}))

	require.NoError(t, client.RequestRescan(context.Background(), 42))
	assert.Equal(t, "RescanSeries", cmd.Name)
	assert.EqualValues(t, 42, cmd.SeriesID)
}

func TestTriggerImportScan(t *testing.T) {
	var cmd commandRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/command", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&cmd)
		w.WriteHeader(http.StatusCreated)
	}))

	require.NoError(t, client.TriggerImportScan(context.Background(), "/downloads/Der Fall"))
	assert.Equal(t, "DownloadedEpisodesScan", cmd.Name)
	assert.Equal(t, "/downloads/Der Fall", cmd.Path)
	assert.Zero(t, cmd.SeriesID)
}

func TestTitleVariants(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/series/42", r.URL.Path)
		json.NewEncoder(w).Encode(Series{
			ID:    42,
			Title: "Der Fall",
			AlternateTitles: []alternateTitle{
				{Title: "The Case"},
				{Title: ""},
			},
		})
	}))

	variants, err := client.TitleVariants(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, []string{"Der Fall", "The Case"}, variants)
}
