// Package rediscache provides the remote shared tier, backed by Redis via
// github.com/redis/go-redis/v9. Entries are serialized to msgpack; expiry
// uses native Redis TTLs, so expired entries simply vanish server-side.
// An optional key prefix namespaces multiple caches on one Redis instance.
package rediscache

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/cachio/cachio"
)

// DefaultQueryTimeout bounds every Redis operation so a slow or unreachable
// server degrades to a tier miss instead of hanging the request.
const DefaultQueryTimeout = 5 * time.Second

type config struct {
	name         string
	prefix       string
	queryTimeout time.Duration
	ownsClient   bool
}

// Option configures the Redis backend.
type Option func(*config)

// WithName sets the tier name used in provenance and logs. Default "redis".
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithPrefix sets the key prefix for namespacing. Default empty.
func WithPrefix(prefix string) Option {
	return func(c *config) { c.prefix = prefix }
}

// WithQueryTimeout sets the per-operation timeout. Default DefaultQueryTimeout.
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) { c.queryTimeout = d }
}

// WithOwnedClient makes Close close the redis client. By default the caller
// owns the client lifecycle and Close is a no-op on it.
func WithOwnedClient() Option {
	return func(c *config) { c.ownsClient = true }
}

// Backend is the remote shared tier.
type Backend struct {
	client *redis.Client
	cfg    config
}

var _ cachio.Backend = (*Backend)(nil)

// New returns a Redis-backed tier over client.
func New(client *redis.Client, opts ...Option) *Backend {
	cfg := config{name: "redis", queryTimeout: DefaultQueryTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Backend{client: client, cfg: cfg}
}

func (b *Backend) Name() string {
	return b.cfg.name
}

func (b *Backend) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, b.cfg.queryTimeout)
}

func (b *Backend) prefixKey(key cachio.Key) string {
	if b.cfg.prefix == "" {
		return string(key)
	}
	return b.cfg.prefix + ":" + string(key)
}

func (b *Backend) Get(ctx context.Context, key cachio.Key) (*cachio.Entry, bool, error) {
	qctx, cancel := b.queryCtx(ctx)
	defer cancel()
	data, err := b.client.Get(qctx, b.prefixKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var entry cachio.Entry
	if err := msgpack.Unmarshal(data, &entry); err != nil {
		return nil, false, errors.Mark(err, cachio.ErrMalformedEntry)
	}
	return &entry, true, nil
}

// Set stores entry under key. An entry with an expiry becomes a Redis TTL;
// an already-expired entry is not written at all.
func (b *Backend) Set(ctx context.Context, key cachio.Key, entry *cachio.Entry) error {
	if entry == nil {
		return errors.New("rediscache: nil entry")
	}
	var ttl time.Duration
	if !entry.ExpiresAt.IsZero() {
		ttl = time.Until(entry.ExpiresAt)
		if ttl <= 0 {
			return nil
		}
	}
	data, err := msgpack.Marshal(entry)
	if err != nil {
		return err
	}
	qctx, cancel := b.queryCtx(ctx)
	defer cancel()
	return b.client.Set(qctx, b.prefixKey(key), data, ttl).Err()
}

func (b *Backend) Delete(ctx context.Context, key cachio.Key) (bool, error) {
	qctx, cancel := b.queryCtx(ctx)
	defer cancel()
	deleted, err := b.client.Del(qctx, b.prefixKey(key)).Result()
	if err != nil {
		return false, err
	}
	return deleted > 0, nil
}

func (b *Backend) Contains(ctx context.Context, key cachio.Key) bool {
	qctx, cancel := b.queryCtx(ctx)
	defer cancel()
	n, err := b.client.Exists(qctx, b.prefixKey(key)).Result()
	return err == nil && n > 0
}

// Close closes the redis client only when constructed with WithOwnedClient.
func (b *Backend) Close() error {
	if b.cfg.ownsClient {
		return b.client.Close()
	}
	return nil
}
