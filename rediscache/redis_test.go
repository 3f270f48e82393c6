package rediscache

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cachio/cachio"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func entry(body string, expiresAt time.Time) *cachio.Entry {
	return &cachio.Entry{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Header:     http.Header{"Content-Type": []string{"text/plain"}},
		Body:       []byte(body),
		CreatedAt:  time.Now().UTC(),
		ExpiresAt:  expiresAt,
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	_, client := newTestRedis(t)
	b := New(client)
	ctx := context.Background()

	_, found, err := b.Get(ctx, "k1")
	assert.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, b.Set(ctx, "k1", entry("v1", time.Time{})))
	got, found, err := b.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, http.StatusOK, got.StatusCode)
	assert.Equal(t, []byte("v1"), got.Body)
	assert.Empty(t, got.Tier)
	assert.True(t, b.Contains(ctx, "k1"))
}

func TestDelete(t *testing.T) {
	_, client := newTestRedis(t)
	b := New(client)
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "k1", entry("v1", time.Time{})))
	deleted, err := b.Delete(ctx, "k1")
	assert.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = b.Delete(ctx, "k1")
	assert.NoError(t, err)
	assert.False(t, deleted)
}

func TestEntryExpiryBecomesTTL(t *testing.T) {
	mr, client := newTestRedis(t)
	b := New(client)
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "k1", entry("v1", time.Now().Add(time.Minute))))
	assert.True(t, b.Contains(ctx, "k1"))

	mr.FastForward(2 * time.Minute)
	_, found, err := b.Get(ctx, "k1")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestAlreadyExpiredEntryNotWritten(t *testing.T) {
	_, client := newTestRedis(t)
	b := New(client)
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "k1", entry("v1", time.Now().Add(-time.Minute))))
	assert.False(t, b.Contains(ctx, "k1"))
}

func TestPrefixNamespacing(t *testing.T) {
	mr, client := newTestRedis(t)
	a := New(client, WithPrefix("a"))
	b := New(client, WithPrefix("b"))
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "k1", entry("from-a", time.Time{})))
	assert.True(t, a.Contains(ctx, "k1"))
	assert.False(t, b.Contains(ctx, "k1"))
	assert.True(t, mr.Exists("a:k1"))
}

func TestMalformedRecord(t *testing.T) {
	mr, client := newTestRedis(t)
	b := New(client)
	ctx := context.Background()

	require.NoError(t, mr.Set("corrupt", "definitely not msgpack"))
	_, _, err := b.Get(ctx, "corrupt")
	assert.ErrorIs(t, err, cachio.ErrMalformedEntry)
}

func TestCloseOwnership(t *testing.T) {
	_, client := newTestRedis(t)

	// Default: caller owns the client, Close is a no-op on it.
	b := New(client)
	require.NoError(t, b.Close())
	assert.NoError(t, client.Ping(context.Background()).Err())

	owned := New(client, WithOwnedClient())
	require.NoError(t, owned.Close())
	assert.Error(t, client.Ping(context.Background()).Err())
}

func TestName(t *testing.T) {
	_, client := newTestRedis(t)
	assert.Equal(t, "redis", New(client).Name())
	assert.Equal(t, "shared", New(client, WithName("shared")).Name())
}
