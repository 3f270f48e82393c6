// Package memory provides the bounded in-memory LRU tier. It is the fastest
// backend and the only one with a capacity policy: inserting past capacity
// evicts the least-recently-used entry, and every hit refreshes recency.
// Contents are lost on process restart.
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/cachio/cachio"
)

// ErrNegativeCapacity is returned by New for capacities below zero.
// A capacity of zero is legal and yields a tier that always misses.
var ErrNegativeCapacity = errors.New("memory: capacity must not be negative")

type config struct {
	name        string
	expiryCheck time.Duration
}

// Option configures the memory backend.
type Option func(*config)

// WithName sets the tier name used in provenance and logs. Default "memory".
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithExpiryCheck sets the interval for the background sweep of expired
// entries. Zero disables the sweeper; eviction then happens only through
// capacity pressure and engine-side expiry checks. Default 1 minute.
func WithExpiryCheck(d time.Duration) Option {
	return func(c *config) { c.expiryCheck = d }
}

type item struct {
	key   cachio.Key
	entry cachio.Entry
}

// Backend is the bounded in-memory LRU tier.
type Backend struct {
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
	once      sync.Once
	cfg       config
	capacity  int

	mutex sync.Mutex
	items map[cachio.Key]*list.Element
	order *list.List // front = most recently used
}

var _ cachio.Backend = (*Backend)(nil)

// New returns an in-memory LRU backend holding at most capacity entries.
func New(parent context.Context, capacity int, opts ...Option) (*Backend, error) {
	if capacity < 0 {
		return nil, ErrNegativeCapacity
	}
	cfg := config{name: "memory", expiryCheck: time.Minute}
	for _, opt := range opts {
		opt(&cfg)
	}
	ctx, cancel := context.WithCancel(parent)
	b := &Backend{
		cancel:   cancel,
		cfg:      cfg,
		capacity: capacity,
		items:    make(map[cachio.Key]*list.Element),
		order:    list.New(),
	}
	if cfg.expiryCheck > 0 {
		b.waitGroup.Add(1)
		go b.run(ctx)
	}
	return b, nil
}

func (b *Backend) Name() string {
	return b.cfg.name
}

// Get returns a copy of the stored entry and marks the key most recently
// used. Expired entries are still returned; the engine decides staleness.
func (b *Backend) Get(_ context.Context, key cachio.Key) (*cachio.Entry, bool, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	el, ok := b.items[key]
	if !ok {
		return nil, false, nil
	}
	b.order.MoveToFront(el)
	entry := el.Value.(*item).entry
	return &entry, true, nil
}

// Set stores a copy of entry. An existing key is replaced in place and
// marked most recently used without evicting anything else; a new key past
// capacity evicts the least-recently-used entry first.
func (b *Backend) Set(_ context.Context, key cachio.Key, entry *cachio.Entry) error {
	if entry == nil {
		return errors.New("memory: nil entry")
	}
	stored := *entry
	stored.Tier = "" // provenance is read-time only

	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.capacity == 0 {
		// Degenerate always-miss tier.
		return nil
	}
	if el, ok := b.items[key]; ok {
		el.Value.(*item).entry = stored
		b.order.MoveToFront(el)
		return nil
	}
	if b.order.Len() >= b.capacity {
		b.evictOldest()
	}
	b.items[key] = b.order.PushFront(&item{key: key, entry: stored})
	return nil
}

func (b *Backend) Delete(_ context.Context, key cachio.Key) (bool, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	el, ok := b.items[key]
	if ok {
		b.order.Remove(el)
		delete(b.items, key)
	}
	return ok, nil
}

func (b *Backend) Contains(_ context.Context, key cachio.Key) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	_, ok := b.items[key]
	return ok
}

// Len reports the number of entries currently held.
func (b *Backend) Len() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.order.Len()
}

func (b *Backend) Close() error {
	b.once.Do(func() {
		b.cancel()
		b.waitGroup.Wait()
	})
	return nil
}

// evictOldest removes the back of the recency list. Caller holds the mutex.
func (b *Backend) evictOldest() {
	oldest := b.order.Back()
	if oldest == nil {
		return
	}
	delete(b.items, oldest.Value.(*item).key)
	b.order.Remove(oldest)
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
			now := time.Now()
			b.mutex.Lock()
			for key, el := range b.items {
				if el.Value.(*item).entry.Expired(now) {
					b.order.Remove(el)
					delete(b.items, key)
				}
			}
			b.mutex.Unlock()
		}
	}
}
