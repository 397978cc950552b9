package store_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castarr/castarr/internal/store"
	"github.com/castarr/castarr/internal/testutil"
)

func seedSeries(t *testing.T, st *store.Store, tvdbID, name string) *store.WatchedSeries {
	t.Helper()
	series := &store.WatchedSeries{TVDBID: tvdbID, Name: name}
	require.NoError(t, st.CreateSeries(context.Background(), series))
	return series
}

func TestSeriesCRUD(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()

	seedSeries(t, tdb.Store, "81189", "Der Fall")

	got, err := tdb.Store.GetSeries(ctx, "81189")
	require.NoError(t, err)
	assert.Equal(t, "Der Fall", got.Name)
	assert.False(t, got.Linked())
	assert.False(t, got.LastAccessed.IsZero())

	_, err = tdb.Store.GetSeries(ctx, "99999")
	assert.ErrorIs(t, err, store.ErrNotFound)

	seedSeries(t, tdb.Store, "70111", "Am Abend")
	all, err := tdb.Store.ListSeries(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Ordered by name.
	assert.Equal(t, "Am Abend", all[0].Name)

	require.NoError(t, tdb.Store.LinkSonarrSeries(ctx, "81189", 42))
	got, err = tdb.Store.GetSeries(ctx, "81189")
	require.NoError(t, err)
	assert.True(t, got.Linked())
	assert.EqualValues(t, 42, got.SonarrSeriesID.Int64)

	require.NoError(t, tdb.Store.DeleteSeries(ctx, "81189"))
	_, err = tdb.Store.GetSeries(ctx, "81189")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSeriesKeywords(t *testing.T) {
	series := &store.WatchedSeries{ExcludedKeywords: "Audiodeskription, Hörfassung ,"}
	assert.Equal(t, []string{"Audiodeskription", "Hörfassung"}, series.Keywords())

	empty := &store.WatchedSeries{}
	assert.Nil(t, empty.Keywords())
}

func TestReplaceEpisodes(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()

	seedSeries(t, tdb.Store, "81189", "Der Fall")

	has, err := tdb.Store.HasEpisodes(ctx, "81189")
	require.NoError(t, err)
	assert.False(t, has)

	episodes := []store.CanonicalEpisode{
		{TVDBID: "81189", Season: 1, Episode: 1, Title: "Doppelleben"},
		{TVDBID: "81189", Season: 1, Episode: 2, Title: "Mörderische Gier"},
	}
	require.NoError(t, tdb.Store.ReplaceEpisodes(ctx, "81189", episodes))

	got, err := tdb.Store.ListEpisodes(ctx, "81189")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Doppelleben", got[0].Title)

	// A replacement swaps the whole set.
	require.NoError(t, tdb.Store.ReplaceEpisodes(ctx, "81189", episodes[:1]))
	got, err = tdb.Store.ListEpisodes(ctx, "81189")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestAvailabilityExpiry(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()

	seedSeries(t, tdb.Store, "81189", "Der Fall")

	fresh := &store.AvailabilityRecord{
		TVDBID: "81189", Season: 1, Episode: 1,
		Title: "Doppelleben", Link: "https://example.org/a.mp4",
		Confidence: 0.95, Strategy: "exactTitle",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	expired := &store.AvailabilityRecord{
		TVDBID: "81189", Season: 1, Episode: 2,
		Title: "Mörderische Gier", Link: "https://example.org/b.mp4",
		Confidence: 1.0, Strategy: "exactDate",
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, tdb.Store.InsertRecord(ctx, fresh))
	require.NoError(t, tdb.Store.InsertRecord(ctx, expired))

	got, err := tdb.Store.ActiveRecord(ctx, "81189", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "exactTitle", got.Strategy)

	// Expired records are invisible.
	_, err = tdb.Store.ActiveRecord(ctx, "81189", 1, 2)
	assert.ErrorIs(t, err, store.ErrNotFound)

	active, err := tdb.Store.ListActiveRecords(ctx, "81189")
	require.NoError(t, err)
	assert.Len(t, active, 1)

	count, err := tdb.Store.CountActiveRecords(ctx, "81189")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	deleted, err := tdb.Store.DeleteExpiredRecords(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
}

func TestMarkTransferred(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()

	seedSeries(t, tdb.Store, "81189", "Der Fall")
	require.NoError(t, tdb.Store.InsertRecord(ctx, &store.AvailabilityRecord{
		TVDBID: "81189", Season: 1, Episode: 1,
		Title: "Doppelleben", Link: "https://example.org/a.mp4",
		Confidence: 0.95, Strategy: "exactTitle",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}))

	rec, err := tdb.Store.ActiveRecord(ctx, "81189", 1, 1)
	require.NoError(t, err)
	assert.False(t, rec.Transferred, "records start unfulfilled")

	require.NoError(t, tdb.Store.MarkTransferred(ctx, "81189", 1, 1))

	rec, err = tdb.Store.ActiveRecord(ctx, "81189", 1, 1)
	require.NoError(t, err)
	assert.True(t, rec.Transferred)
}

func TestUpdateFiltersInvalidatesAvailability(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()

	seedSeries(t, tdb.Store, "81189", "Der Fall")
	require.NoError(t, tdb.Store.InsertRecord(ctx, &store.AvailabilityRecord{
		TVDBID: "81189", Season: 1, Episode: 1,
		Title: "Doppelleben", Link: "https://example.org/a.mp4",
		Confidence: 0.95, Strategy: "exactTitle",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}))

	err := tdb.Store.UpdateSeriesFilters(ctx, "81189", store.SeriesFilters{
		ExcludedKeywords:   []string{"Audiodeskription"},
		MinDurationMinutes: sql.NullInt64{Int64: 60, Valid: true},
	})
	require.NoError(t, err)

	got, err := tdb.Store.GetSeries(ctx, "81189")
	require.NoError(t, err)
	assert.Equal(t, []string{"Audiodeskription"}, got.Keywords())
	assert.EqualValues(t, 60, got.MinDurationMinutes.Int64)

	// Earlier matches may no longer pass the new filters.
	count, err := tdb.Store.CountActiveRecords(ctx, "81189")
	require.NoError(t, err)
	assert.Zero(t, count)

	err = tdb.Store.UpdateSeriesFilters(ctx, "99999", store.SeriesFilters{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteSeriesCascades(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()

	seedSeries(t, tdb.Store, "81189", "Der Fall")
	require.NoError(t, tdb.Store.ReplaceEpisodes(ctx, "81189", []store.CanonicalEpisode{
		{TVDBID: "81189", Season: 1, Episode: 1, Title: "Doppelleben"},
	}))
	require.NoError(t, tdb.Store.InsertRecord(ctx, &store.AvailabilityRecord{
		TVDBID: "81189", Season: 1, Episode: 1,
		Title: "Doppelleben", Link: "https://example.org/a.mp4",
		Confidence: 0.95, Strategy: "exactTitle",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}))
	require.NoError(t, tdb.Store.ReplaceSnapshot(ctx, "81189", []store.EpisodeKey{{Season: 1, Episode: 1}}))

	require.NoError(t, tdb.Store.DeleteSeries(ctx, "81189"))

	episodes, err := tdb.Store.ListEpisodes(ctx, "81189")
	require.NoError(t, err)
	assert.Empty(t, episodes)

	records, err := tdb.Store.ListActiveRecords(ctx, "81189")
	require.NoError(t, err)
	assert.Empty(t, records)

	snapshot, err := tdb.Store.GetSnapshot(ctx, "81189")
	require.NoError(t, err)
	assert.Empty(t, snapshot)
}

func TestSnapshotReplace(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()

	seedSeries(t, tdb.Store, "81189", "Der Fall")

	require.NoError(t, tdb.Store.ReplaceSnapshot(ctx, "81189", []store.EpisodeKey{
		{Season: 1, Episode: 1},
		{Season: 1, Episode: 2},
	}))

	snapshot, err := tdb.Store.GetSnapshot(ctx, "81189")
	require.NoError(t, err)
	assert.Len(t, snapshot, 2)
	assert.True(t, snapshot[store.EpisodeKey{Season: 1, Episode: 2}])

	require.NoError(t, tdb.Store.ReplaceSnapshot(ctx, "81189", []store.EpisodeKey{
		{Season: 1, Episode: 3},
	}))

	snapshot, err = tdb.Store.GetSnapshot(ctx, "81189")
	require.NoError(t, err)
	assert.Len(t, snapshot, 1)
	assert.True(t, snapshot[store.EpisodeKey{Season: 1, Episode: 3}])
}

func TestInactiveSeries(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()

	seedSeries(t, tdb.Store, "81189", "Der Fall")

	cutoff := time.Now().UTC().Add(-30 * 24 * time.Hour)
	inactive, err := tdb.Store.ListInactiveSeries(ctx, cutoff)
	require.NoError(t, err)
	assert.Empty(t, inactive)

	// A freshly touched series stays active under a future cutoff.
	require.NoError(t, tdb.Store.TouchSeries(ctx, "81189"))
	inactive, err = tdb.Store.ListInactiveSeries(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, inactive, 1)
}

func TestUpdateSeriesCounters(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()

	seedSeries(t, tdb.Store, "81189", "Der Fall")
	require.NoError(t, tdb.Store.UpdateSeriesCounters(ctx, "81189", 7, 3))

	got, err := tdb.Store.GetSeries(ctx, "81189")
	require.NoError(t, err)
	assert.Equal(t, 7, got.EpisodesFound)
	assert.Equal(t, 3, got.EpisodesCached)
}
