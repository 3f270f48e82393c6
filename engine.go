package cachio

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

type engineConfig struct {
	policy       Policy
	deriver      Deriver
	logger       zerolog.Logger
	methods      map[string]bool
	singleFlight bool
}

// Option configures an Engine.
type Option func(*engineConfig)

func defaultEngineConfig() engineConfig {
	return engineConfig{
		logger:  zerolog.Nop(),
		methods: map[string]bool{http.MethodGet: true, http.MethodHead: true},
	}
}

// WithPolicy sets the storage/expiry policy. Default: store 200s forever.
func WithPolicy(p Policy) Option {
	return func(c *engineConfig) { c.policy = p }
}

// WithDeriver sets the key deriver. Default keys on method and URL only.
func WithDeriver(d Deriver) Option {
	return func(c *engineConfig) { c.deriver = d }
}

// WithLogger sets the logger for tier diagnostics. Default discards.
func WithLogger(l zerolog.Logger) Option {
	return func(c *engineConfig) { c.logger = l }
}

// WithMethods replaces the cacheable method set. Default GET and HEAD.
// Callers caching POST-style query endpoints should pair this with a
// Deriver that has HashBody set.
func WithMethods(methods ...string) Option {
	return func(c *engineConfig) {
		c.methods = make(map[string]bool, len(methods))
		for _, m := range methods {
			c.methods[m] = true
		}
	}
}

// WithSingleFlight collapses concurrent misses for the same key into a
// single fetch. This is an at-most-one-concurrent-fetch-per-key guarantee:
// duplicate callers block and share the winning fetch's entry. The shared
// fetch runs detached from any one caller's context: a caller that cancels
// stops waiting with its own context error while the fetch completes for
// the rest. Without the option, concurrent misses may each fetch and each
// write — an accepted last-write-wins race, since entries for the same key
// are value-equal.
func WithSingleFlight() Option {
	return func(c *engineConfig) { c.singleFlight = true }
}

// Engine is the tiered cache. It owns an ordered chain of backends, fastest
// and most volatile first, and reads through them: first hit wins and is
// promoted into the faster tiers that missed; a total miss goes to the
// Fetcher and the result is written into every tier.
type Engine struct {
	chain   []Backend
	fetcher Fetcher
	cfg     engineConfig
	group   singleflight.Group
}

// New builds an Engine over an ordered backend chain. The chain order is
// fixed for the engine's lifetime: lookups always probe tiers in the
// declared order, promotion always writes toward the front.
func New(fetcher Fetcher, backends []Backend, opts ...Option) (*Engine, error) {
	if fetcher == nil {
		return nil, errors.New("cachio: fetcher is required")
	}
	if len(backends) == 0 {
		return nil, errors.New("cachio: at least one backend is required")
	}
	chain := make([]Backend, len(backends))
	for i, b := range backends {
		if b == nil {
			return nil, errors.Newf("cachio: backend at index %d is nil", i)
		}
		chain[i] = b
	}
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{chain: chain, fetcher: fetcher, cfg: cfg}, nil
}

// Get serves req through the cache. The returned entry's Tier field names
// the tier that produced it, or TierNetwork for a live fetch.
//
// Cache-layer failures never fail the request: an unavailable tier is
// treated as a miss for that tier, and even a fully unavailable chain
// degrades to always-miss. Only a Fetcher failure (or cancellation), or an
// unreadable request body under a body-hashing Deriver, is surfaced, with
// nothing written to any tier.
func (e *Engine) Get(ctx context.Context, req *http.Request) (*Entry, error) {
	if !e.cacheable(req) {
		return e.fetch(ctx, req)
	}
	key, err := e.deriveKey(req)
	if err != nil {
		return nil, err
	}

	if entry, ok := e.lookup(ctx, key); ok {
		return entry, nil
	}

	if e.cfg.singleFlight {
		ch := e.group.DoChan(string(key), func() (any, error) {
			// The shared fetch may outlive the caller that started it, so
			// it must not inherit that caller's cancellation.
			return e.fill(context.WithoutCancel(ctx), key, req)
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				return nil, res.Err
			}
			return res.Val.(*Entry), nil
		}
	}
	return e.fill(ctx, key, req)
}

// Invalidate deletes the entry derived from req out of every tier,
// best-effort. The result maps tier name to that tier's delete error,
// nil when the delete succeeded (whether or not the key was present).
// If the key cannot be derived, every tier reports the derivation error.
func (e *Engine) Invalidate(ctx context.Context, req *http.Request) map[string]error {
	result := make(map[string]error, len(e.chain))
	key, err := e.deriveKey(req)
	if err != nil {
		for _, b := range e.chain {
			result[b.Name()] = err
		}
		return result
	}
	for _, b := range e.chain {
		_, err := b.Delete(ctx, key)
		result[b.Name()] = err
	}
	return result
}

// Close closes every backend in the chain and returns the first error.
func (e *Engine) Close() error {
	var firstErr error
	for _, b := range e.chain {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (e *Engine) cacheable(req *http.Request) bool {
	if !e.cfg.methods[req.Method] {
		return false
	}
	// Partial responses are not cached.
	return req.Header.Get("Range") == ""
}

// deriveKey computes the key, reading and restoring the request body when
// the deriver hashes bodies so the Fetcher can still send it. A body read
// failure is surfaced: a body that cannot be read cannot be keyed, and
// cannot be resent to the Fetcher either.
func (e *Engine) deriveKey(req *http.Request) (Key, error) {
	var body []byte
	if e.cfg.deriver.HashBody && req.Body != nil && req.Body != http.NoBody {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return "", errors.Wrap(err, "cachio: reading request body")
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
	}
	return e.cfg.deriver.DeriveRequest(req, body), nil
}

// lookup probes the chain in order and returns the first live hit, promoted
// into every faster tier that missed. Tier errors and expired or malformed
// entries count as misses for that tier only.
func (e *Engine) lookup(ctx context.Context, key Key) (*Entry, bool) {
	now := time.Now()
	for i, b := range e.chain {
		entry, found, err := b.Get(ctx, key)
		if err != nil {
			if errors.Is(err, ErrMalformedEntry) {
				e.cfg.logger.Warn().Err(err).Str("tier", b.Name()).Msg("dropping malformed cache entry")
				if _, derr := b.Delete(ctx, key); derr != nil {
					e.cfg.logger.Debug().Err(derr).Str("tier", b.Name()).Msg("could not drop malformed entry")
				}
			} else {
				e.cfg.logger.Warn().Err(err).Str("tier", b.Name()).Msg("tier lookup failed")
			}
			continue
		}
		if !found {
			continue
		}
		if entry.Expired(now) {
			// Stale. The refill after a total miss overwrites it in place.
			continue
		}
		e.promote(ctx, key, entry, i)
		entry.Tier = b.Name()
		return entry, true
	}
	return nil, false
}

// promote writes a hit found at index found into tiers 0..found-1,
// front-to-back. Best-effort: a failed promotion only leaves that tier cold.
func (e *Engine) promote(ctx context.Context, key Key, entry *Entry, found int) {
	for i := 0; i < found; i++ {
		if err := e.chain[i].Set(ctx, key, entry); err != nil {
			e.cfg.logger.Warn().Err(err).Str("tier", e.chain[i].Name()).Msg("promotion failed")
		}
	}
}

// fill fetches on a total miss and writes the result into every tier,
// front-to-back, best-effort. A fetch failure propagates unchanged and
// writes nothing.
func (e *Engine) fill(ctx context.Context, key Key, req *http.Request) (*Entry, error) {
	entry, err := e.fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if !e.cfg.policy.Storable(entry.StatusCode, entry.Header) {
		if entry.StatusCode != http.StatusOK && entry.StatusCode != http.StatusNotModified {
			// The resource now errors upstream; drop stale copies.
			e.dropAll(ctx, key)
		}
		return entry, nil
	}
	for _, b := range e.chain {
		if err := b.Set(ctx, key, entry); err != nil {
			e.cfg.logger.Warn().Err(err).Str("tier", b.Name()).Msg("cache fill failed")
		} else {
			e.cfg.logger.Debug().Str("tier", b.Name()).Str("key", string(key)).Msg("cache fill")
		}
	}
	return entry, nil
}

func (e *Engine) fetch(ctx context.Context, req *http.Request) (*Entry, error) {
	resp, err := e.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &Entry{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		URL:        req.URL.String(),
		Header:     resp.Header.Clone(),
		Body:       body,
		CreatedAt:  now,
		ExpiresAt:  e.cfg.policy.Expiry(now, resp.Header),
		Tier:       TierNetwork,
	}, nil
}

func (e *Engine) dropAll(ctx context.Context, key Key) {
	for _, b := range e.chain {
		if _, err := b.Delete(ctx, key); err != nil {
			e.cfg.logger.Debug().Err(err).Str("tier", b.Name()).Msg("invalidation failed")
		}
	}
}
