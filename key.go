package cachio

import (
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Key identifies a cached response across every tier. It is a fixed-length
// hex token derived from the canonical encoding of a request, so equal
// logical requests always map to the same Key regardless of header order,
// query-parameter order, or URL casing quirks.
type Key string

// Deriver computes cache keys from requests. The zero value keys on method
// and canonicalized URL only, which is the right default for GET/HEAD
// traffic: volatile headers like Authorization or Date never fragment the
// cache unless explicitly allow-listed.
type Deriver struct {
	// Headers is the allow-list of request headers included in the key.
	// Matching is case-insensitive. Default empty.
	Headers []string
	// HashBody includes the request body in the key. Opt-in, for endpoints
	// where the body selects the response (e.g. POST-based query APIs).
	HashBody bool
}

// Derive is pure: no I/O, no hidden state, stable across processes.
// Malformed URLs are hashed as given rather than rejected.
func (d Deriver) Derive(method, rawURL string, header http.Header, body []byte) Key {
	h := xxhash.New()
	io.WriteString(h, strings.ToUpper(method))
	io.WriteString(h, "\n")
	io.WriteString(h, canonicalURL(rawURL))
	for _, name := range d.canonicalHeaderNames() {
		if vals, ok := header[name]; ok {
			io.WriteString(h, "\n")
			io.WriteString(h, name)
			io.WriteString(h, ":")
			io.WriteString(h, strings.Join(vals, ","))
		}
	}
	if d.HashBody && len(body) > 0 {
		io.WriteString(h, "\n")
		h.Write(body)
	}
	return Key(fmt.Sprintf("%016x", h.Sum64()))
}

// DeriveRequest derives the key for an *http.Request without consuming its
// body. Pass the body bytes separately when HashBody is set; the engine
// handles the read-and-restore dance.
func (d Deriver) DeriveRequest(req *http.Request, body []byte) Key {
	return d.Derive(req.Method, req.URL.String(), req.Header, body)
}

func (d Deriver) canonicalHeaderNames() []string {
	if len(d.Headers) == 0 {
		return nil
	}
	names := make([]string, 0, len(d.Headers))
	seen := make(map[string]bool, len(d.Headers))
	for _, name := range d.Headers {
		canon := textproto.CanonicalMIMEHeaderKey(name)
		if !seen[canon] {
			seen[canon] = true
			names = append(names, canon)
		}
	}
	sort.Strings(names)
	return names
}

// canonicalURL normalizes a URL for keying: lowercase scheme and host,
// stable query-parameter ordering, fragment dropped. Best-effort — an
// unparseable URL is returned unchanged.
func canonicalURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.RawQuery != "" {
		// url.Values.Encode sorts by key.
		u.RawQuery = u.Query().Encode()
	}
	return u.String()
}
