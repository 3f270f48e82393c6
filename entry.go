package cachio

import (
	"bytes"
	"io"
	"net/http"
	"time"
)

// TierNetwork is the provenance reported when an entry was produced by a
// live fetch rather than read from a tier.
const TierNetwork = "network"

// Entry is the value stored in every tier: one complete HTTP response plus
// cache bookkeeping. Entries are immutable once written — updates replace
// the whole entry under the same Key.
//
// Serialized backends store entries as msgpack, so only exported fields
// survive a round trip. Tier is deliberately excluded: provenance is
// assigned at read time and never persisted.
type Entry struct {
	StatusCode int         `msgpack:"status_code"`
	Status     string      `msgpack:"status"`
	URL        string      `msgpack:"url"`
	Header     http.Header `msgpack:"header"`
	Body       []byte      `msgpack:"body"`
	CreatedAt  time.Time   `msgpack:"created_at"`
	// ExpiresAt is the expiry timestamp. Zero means the entry never expires
	// on its own.
	ExpiresAt time.Time `msgpack:"expires_at"`

	// Tier is the name of the tier that served this entry, or TierNetwork.
	Tier string `msgpack:"-"`
}

// Expired reports whether the entry's expiry timestamp has passed at now.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Clone returns a deep-enough copy: its own header map and a shared body
// slice. Body bytes are treated as immutable throughout.
func (e *Entry) Clone() *Entry {
	clone := *e
	clone.Header = e.Header.Clone()
	return &clone
}

// Response materializes the entry as an *http.Response suitable for replay
// to code that expects a live response. The X-Cache header reports hit or
// miss; on a hit, X-Cache-Tier names the tier that served the entry.
func (e *Entry) Response(req *http.Request) *http.Response {
	header := e.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	if e.Tier == TierNetwork || e.Tier == "" {
		header.Set("X-Cache", "miss")
	} else {
		header.Set("X-Cache", "hit")
		header.Set("X-Cache-Tier", e.Tier)
	}
	return &http.Response{
		StatusCode:    e.StatusCode,
		Status:        e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}
