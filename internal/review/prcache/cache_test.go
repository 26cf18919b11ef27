package prcache_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.abhg.dev/gs-sync/internal/review"
	"go.abhg.dev/gs-sync/internal/review/prcache"
)

func TestCache_mergeAdvancesWatermarkAndKeepsLatestPerHead(t *testing.T) {
	store := prcache.NewStore(filepath.Join(t.TempDir(), "prs.yaml"))
	require.NoError(t, store.Load())

	cache := store.For("acme/widgets")
	assert.Equal(t, "", cache.Watermark())
	assert.Empty(t, cache.Closed())

	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	cache.Merge([]*review.PR{
		{Number: 10, Head: "feat-a", State: review.Merged, UpdatedAt: older},
	})
	assert.NotEmpty(t, cache.Watermark())

	cache.Merge([]*review.PR{
		{Number: 10, Head: "feat-a", State: review.Merged, Title: "renamed", UpdatedAt: newer},
	})

	closed := cache.Closed()
	require.Contains(t, closed, "feat-a")
	assert.Equal(t, "renamed", closed["feat-a"].Title, "fresh entries win per head")
	assert.Equal(t, newer.UTC().Format(time.RFC3339), cache.Watermark())
}

func TestStore_saveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prs.yaml")

	store := prcache.NewStore(path)
	require.NoError(t, store.Load())

	cache := store.For("acme/widgets")
	cache.Merge([]*review.PR{
		{Number: 7, Head: "feat-b", Base: "main", State: review.Closed, Title: "fix thing", UpdatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	})
	store.Put(cache)
	require.NoError(t, store.Save())

	reloaded := prcache.NewStore(path)
	require.NoError(t, reloaded.Load())
	reloadedCache := reloaded.For("acme/widgets")

	closed := reloadedCache.Closed()
	require.Contains(t, closed, "feat-b")
	assert.Equal(t, 7, closed["feat-b"].Number)
	assert.Equal(t, review.Closed, closed["feat-b"].State)
	assert.Equal(t, cache.Watermark(), reloadedCache.Watermark())
}

func TestStore_missingFileLoadsEmpty(t *testing.T) {
	store := prcache.NewStore(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, store.Load())

	cache := store.For("acme/widgets")
	assert.Empty(t, cache.Closed())
	assert.Equal(t, "", cache.Watermark())
}
