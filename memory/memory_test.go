package memory

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cachio/cachio"
)

func newTestBackend(t *testing.T, capacity int, opts ...Option) *Backend {
	t.Helper()
	b, err := New(context.Background(), capacity, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func entry(body string) *cachio.Entry {
	return &cachio.Entry{
		StatusCode: http.StatusOK,
		Body:       []byte(body),
		CreatedAt:  time.Now(),
	}
}

func TestNegativeCapacityRejected(t *testing.T) {
	_, err := New(context.Background(), -1)
	assert.ErrorIs(t, err, ErrNegativeCapacity)
}

func TestSetGetDelete(t *testing.T) {
	b := newTestBackend(t, 10)
	ctx := context.Background()

	_, found, err := b.Get(ctx, "k1")
	assert.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, b.Set(ctx, "k1", entry("v1")))
	got, found, err := b.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v1"), got.Body)
	assert.True(t, b.Contains(ctx, "k1"))

	deleted, err := b.Delete(ctx, "k1")
	assert.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, b.Contains(ctx, "k1"))

	deleted, err = b.Delete(ctx, "k1")
	assert.NoError(t, err)
	assert.False(t, deleted)
}

func TestSetIsIdempotent(t *testing.T) {
	b := newTestBackend(t, 10)
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "k1", entry("v1")))
	require.NoError(t, b.Set(ctx, "k1", entry("v1")))
	assert.Equal(t, 1, b.Len())

	got, found, err := b.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v1"), got.Body)
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	b := newTestBackend(t, 3)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, b.Set(ctx, cachio.Key(fmt.Sprintf("k%d", i)), entry("v")))
	}
	assert.Equal(t, 3, b.Len())

	// Inserting a fourth key evicts exactly one entry: the LRU, k1.
	require.NoError(t, b.Set(ctx, "k4", entry("v")))
	assert.Equal(t, 3, b.Len())
	assert.False(t, b.Contains(ctx, "k1"))
	assert.True(t, b.Contains(ctx, "k2"))
	assert.True(t, b.Contains(ctx, "k3"))
	assert.True(t, b.Contains(ctx, "k4"))
}

func TestGetRefreshesRecency(t *testing.T) {
	b := newTestBackend(t, 3)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, b.Set(ctx, cachio.Key(fmt.Sprintf("k%d", i)), entry("v")))
	}

	// Touch k1 so k2 becomes the LRU.
	_, found, err := b.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, found)

	require.NoError(t, b.Set(ctx, "k4", entry("v")))
	assert.True(t, b.Contains(ctx, "k1"))
	assert.False(t, b.Contains(ctx, "k2"))
}

func TestOverwriteDoesNotEvict(t *testing.T) {
	b := newTestBackend(t, 3)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, b.Set(ctx, cachio.Key(fmt.Sprintf("k%d", i)), entry("v")))
	}

	// Overwriting an existing key evicts nothing and marks it MRU.
	require.NoError(t, b.Set(ctx, "k1", entry("v1-new")))
	assert.Equal(t, 3, b.Len())
	for i := 1; i <= 3; i++ {
		assert.True(t, b.Contains(ctx, cachio.Key(fmt.Sprintf("k%d", i))))
	}

	require.NoError(t, b.Set(ctx, "k4", entry("v")))
	assert.True(t, b.Contains(ctx, "k1"))
	assert.False(t, b.Contains(ctx, "k2"))

	got, found, err := b.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v1-new"), got.Body)
}

func TestZeroCapacityAlwaysMisses(t *testing.T) {
	b := newTestBackend(t, 0)
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "k1", entry("v1")))
	_, found, err := b.Get(ctx, "k1")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, b.Len())
}

func TestStoredEntryIsIsolated(t *testing.T) {
	b := newTestBackend(t, 10)
	ctx := context.Background()

	original := entry("v1")
	original.Tier = "somewhere"
	require.NoError(t, b.Set(ctx, "k1", original))

	got, found, err := b.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, found)
	// Provenance is read-time metadata and is never stored.
	assert.Empty(t, got.Tier)

	// Mutating the returned copy does not affect a later read.
	got.StatusCode = http.StatusTeapot
	again, _, err := b.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, again.StatusCode)
}

func TestBackgroundExpirySweep(t *testing.T) {
	b := newTestBackend(t, 10, WithExpiryCheck(50*time.Millisecond))
	ctx := context.Background()

	expired := entry("old")
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, b.Set(ctx, "old", expired))
	require.NoError(t, b.Set(ctx, "live", entry("new")))

	assert.Eventually(t, func() bool {
		return !b.Contains(ctx, "old")
	}, time.Second, 20*time.Millisecond)
	assert.True(t, b.Contains(ctx, "live"))
}

func TestName(t *testing.T) {
	b := newTestBackend(t, 1)
	assert.Equal(t, "memory", b.Name())
	named := newTestBackend(t, 1, WithName("l1"))
	assert.Equal(t, "l1", named.Name())
}
