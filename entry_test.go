package cachio

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryExpired(t *testing.T) {
	now := time.Now()
	assert.False(t, (&Entry{}).Expired(now))
	assert.False(t, (&Entry{ExpiresAt: now.Add(time.Minute)}).Expired(now))
	assert.True(t, (&Entry{ExpiresAt: now.Add(-time.Minute)}).Expired(now))
}

func TestEntryClone(t *testing.T) {
	entry := &Entry{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/plain"}},
		Body:       []byte("body"),
	}
	clone := entry.Clone()
	clone.Header.Set("Content-Type", "application/json")
	assert.Equal(t, "text/plain", entry.Header.Get("Content-Type"))
}

func TestEntryResponseReplay(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://example.com/a", nil)
	require.NoError(t, err)

	entry := &Entry{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Header:     http.Header{"Content-Type": []string{"text/plain"}},
		Body:       []byte("cached body"),
		Tier:       "memory",
	}
	resp := entry.Response(req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hit", resp.Header.Get("X-Cache"))
	assert.Equal(t, "memory", resp.Header.Get("X-Cache-Tier"))
	assert.Equal(t, int64(len(entry.Body)), resp.ContentLength)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("cached body"), body)

	// Replaying does not leak the X-Cache header into the stored entry.
	assert.Empty(t, entry.Header.Get("X-Cache"))
}

func TestEntryResponseNetworkMiss(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://example.com/a", nil)
	require.NoError(t, err)

	resp := (&Entry{StatusCode: http.StatusOK, Tier: TierNetwork}).Response(req)
	assert.Equal(t, "miss", resp.Header.Get("X-Cache"))
	assert.Empty(t, resp.Header.Get("X-Cache-Tier"))
}
