// Package sqlite provides the durable on-disk tier, backed by SQLite via
// modernc.org/sqlite (pure Go, no CGO). Entries are serialized to msgpack
// and stored as BLOBs; contents survive process restarts. A background
// goroutine sweeps rows whose expiry has passed.
package sqlite

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"

	"github.com/cachio/cachio"
)

// DefaultQueryTimeout bounds every database operation so a slow or wedged
// disk degrades to a tier miss instead of hanging the request.
const DefaultQueryTimeout = 5 * time.Second

type config struct {
	name         string
	queryTimeout time.Duration
	expiryCheck  time.Duration
}

// Option configures the SQLite backend.
type Option func(*config)

// WithName sets the tier name used in provenance and logs. Default "disk".
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithQueryTimeout sets the per-operation timeout. Default DefaultQueryTimeout.
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) { c.queryTimeout = d }
}

// WithExpiryCheck sets the interval for the background sweep of expired
// rows. Zero disables the sweeper; expired rows then stay on disk until
// overwritten. Default 1 minute.
func WithExpiryCheck(d time.Duration) Option {
	return func(c *config) { c.expiryCheck = d }
}

// Backend is the durable on-disk tier.
type Backend struct {
	db        *sql.DB
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
	once      sync.Once
	cfg       config
}

var _ cachio.Backend = (*Backend)(nil)

// New opens (or creates) the cache database at path. If path is empty or
// ":memory:", an in-memory database is used — handy for tests, though it
// is then no more durable than the memory tier.
func New(parent context.Context, path string, opts ...Option) (*Backend, error) {
	if path == "" {
		path = ":memory:"
	}
	cfg := config{name: "disk", queryTimeout: DefaultQueryTimeout, expiryCheck: time.Minute}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	// WAL mode lets other processes read while this one writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS cache (
		key TEXT PRIMARY KEY,
		entry BLOB NOT NULL,
		expires_at INTEGER NOT NULL DEFAULT 0
	)`); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_cache_expires_at ON cache(expires_at)`); err != nil {
		db.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(parent)
	b := &Backend{db: db, cancel: cancel, cfg: cfg}
	if cfg.expiryCheck > 0 {
		b.waitGroup.Add(1)
		go b.run(ctx)
	}
	return b, nil
}

func (b *Backend) Name() string {
	return b.cfg.name
}

func (b *Backend) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, b.cfg.queryTimeout)
}

// Get returns the stored entry. Expired rows are still returned — the
// engine decides staleness — and the sweeper reclaims them eventually.
func (b *Backend) Get(ctx context.Context, key cachio.Key) (*cachio.Entry, bool, error) {
	qctx, cancel := b.queryCtx(ctx)
	defer cancel()
	var data []byte
	err := b.db.QueryRowContext(qctx,
		`SELECT entry FROM cache WHERE key = ?`, string(key),
	).Scan(&data)
	if err == sql.ErrNoRows {
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

func (b *Backend) Set(ctx context.Context, key cachio.Key, entry *cachio.Entry) error {
	if entry == nil {
		return errors.New("sqlite: nil entry")
	}
	data, err := msgpack.Marshal(entry)
	if err != nil {
		return err
	}
	var expiresAt int64
	if !entry.ExpiresAt.IsZero() {
		expiresAt = entry.ExpiresAt.UnixNano()
	}
	qctx, cancel := b.queryCtx(ctx)
	defer cancel()
	_, err = b.db.ExecContext(qctx,
		`INSERT INTO cache (key, entry, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET entry = excluded.entry, expires_at = excluded.expires_at`,
		string(key), data, expiresAt,
	)
	return err
}

func (b *Backend) Delete(ctx context.Context, key cachio.Key) (bool, error) {
	qctx, cancel := b.queryCtx(ctx)
	defer cancel()
	result, err := b.db.ExecContext(qctx, `DELETE FROM cache WHERE key = ?`, string(key))
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (b *Backend) Contains(ctx context.Context, key cachio.Key) bool {
	qctx, cancel := b.queryCtx(ctx)
	defer cancel()
	var one int
	err := b.db.QueryRowContext(qctx,
		`SELECT 1 FROM cache WHERE key = ?`, string(key),
	).Scan(&one)
	return err == nil
}

func (b *Backend) Close() error {
	var dbErr error
	b.once.Do(func() {
		b.cancel()
		b.waitGroup.Wait()
		dbErr = b.db.Close()
	})
	return dbErr
}

func (b *Backend) run(ctx context.Context) {
	defer b.waitGroup.Done()
	ticker := time.NewTicker(b.cfg.expiryCheck)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UnixNano()
			_, _ = b.db.Exec(`DELETE FROM cache WHERE expires_at > 0 AND expires_at < ?`, now)
		}
	}
}
