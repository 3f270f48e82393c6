package cachio

import "context"

// Backend is one storage tier. Implementations range from a bounded
// in-process LRU to disk and remote stores; the engine treats them all
// through this contract and nothing else.
//
// Implementations must be safe for concurrent use. Durable backends may be
// read by other processes concurrently; their own locking handles that.
type Backend interface {
	// Name identifies the tier in provenance annotations and logs.
	Name() string

	// Get returns the entry stored under key, if any. A false second return
	// means a clean miss. Errors mean the tier could not answer; the engine
	// continues down the chain.
	Get(ctx context.Context, key Key) (*Entry, bool, error)

	// Set stores entry under key, replacing any previous value wholesale.
	// Idempotent: repeating the same Set leaves the same observable state.
	Set(ctx context.Context, key Key, entry *Entry) error

	// Delete removes key and reports whether it was present.
	Delete(ctx context.Context, key Key) (bool, error)

	// Contains reports whether key is currently present. Advisory only —
	// in concurrent use rely on Get's miss result, never Contains-then-Get.
	Contains(ctx context.Context, key Key) bool

	// Close releases any resources the backend holds.
	Close() error
}
