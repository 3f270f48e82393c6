package cachio

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Policy controls whether a fetched response is stored and for how long.
type Policy struct {
	// TTL is the flat lifetime applied to stored entries. Zero means stored
	// entries never expire on their own.
	TTL time.Duration
	// HonorHeaders derives expiry from the response's Cache-Control max-age
	// or Expires headers when present, and respects no-store. When the
	// response carries neither, TTL applies as usual.
	HonorHeaders bool
}

// Storable reports whether a response with the given status and headers may
// be written into the chain. Only complete 200 responses are stored.
func (p Policy) Storable(status int, header http.Header) bool {
	if status != http.StatusOK {
		return false
	}
	if p.HonorHeaders {
		if _, ok := parseCacheControl(header)["no-store"]; ok {
			return false
		}
	}
	return true
}

// Expiry computes the expiry timestamp for a response received at now.
// A zero return means no expiry.
func (p Policy) Expiry(now time.Time, header http.Header) time.Time {
	if p.HonorHeaders {
		if v, ok := parseCacheControl(header)["max-age"]; ok {
			if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
				return now.Add(time.Duration(secs) * time.Second)
			}
		}
		if raw := header.Get("Expires"); raw != "" {
			if t, err := http.ParseTime(raw); err == nil {
				return t
			}
		}
	}
	if p.TTL > 0 {
		return now.Add(p.TTL)
	}
	return time.Time{}
}

// parseCacheControl splits a Cache-Control header into lowercase directives.
// Valueless directives map to the empty string.
func parseCacheControl(header http.Header) map[string]string {
	directives := make(map[string]string)
	raw := header.Get("Cache-Control")
	if raw == "" {
		return directives
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if name, val, ok := strings.Cut(part, "="); ok {
			directives[strings.ToLower(name)] = strings.Trim(val, `"`)
		} else {
			directives[strings.ToLower(part)] = ""
		}
	}
	return directives
}
