package cachio

import "net/http"

// Transport adapts an Engine to http.RoundTripper, so a plain *http.Client
// reads through the cache:
//
//	client := &http.Client{Transport: &cachio.Transport{Engine: engine}}
//
// Responses carry X-Cache: hit|miss, and on hits X-Cache-Tier names the
// tier that served the entry. The Engine's own Fetcher performs the live
// call on misses — do not point it back at this transport.
type Transport struct {
	Engine *Engine
}

var _ http.RoundTripper = (*Transport)(nil)

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	entry, err := t.Engine.Get(req.Context(), req)
	if err != nil {
		return nil, err
	}
	return entry.Response(req), nil
}
