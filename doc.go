// Package cachio is a tiered HTTP response cache. It sits between a client
// and the network and transparently serves previously fetched responses from
// an ordered chain of storage tiers before falling back to a live fetch.
//
// # Engine
//
// [Engine] is the core. It is constructed with a [Fetcher] and an ordered
// list of [Backend] tiers, fastest and most volatile first:
//
//	mem, _ := memory.New(ctx, 1000)
//	disk, _ := sqlite.New(ctx, "/var/cache/app.db")
//	engine, _ := cachio.New(cachio.NewHTTPFetcher(nil), []cachio.Backend{mem, disk})
//
// [Engine.Get] derives a [Key] from the request, probes the tiers in order,
// and returns the first live hit. A hit found in a slow tier is promoted
// into every faster tier that missed it, so repeated requests migrate toward
// memory. On a total miss the Fetcher performs the network call and the
// result is written into every tier front-to-back. The returned [Entry]
// carries its tier provenance: the name of the tier that served it, or
// [TierNetwork] for a live fetch.
//
// Tier order is authoritative and fixed at construction. The same chain
// always probes in the same declared order.
//
// # Degradation
//
// Cache problems never fail a request. A tier that errors is treated as a
// miss for that tier and the lookup continues; promotion and fill writes are
// best-effort; a record that cannot be decoded is dropped and skipped. Even
// with every tier down the engine degrades to always-miss. Only a Fetcher
// failure surfaces to the caller, unchanged, with nothing written anywhere.
//
// # Keys
//
// [Deriver] computes deterministic keys from method, canonicalized URL, an
// optional header allow-list, and optionally the request body. The default
// keys on method and URL alone so volatile headers do not fragment the
// cache. Key derivation is pure and stable across processes.
//
// # Expiry
//
// [Policy] controls storage: a flat TTL, optionally overridden by the
// response's Cache-Control max-age or Expires headers when HonorHeaders is
// set. An expired entry found during lookup counts as a miss for that tier;
// the refill after a total miss overwrites the stale copy in every tier.
//
// # Backends
//
// Three implementations ship in subpackages: memory (bounded LRU, volatile),
// sqlite (durable on-disk), and rediscache (remote, shared). Anything
// implementing the four-operation [Backend] contract can join the chain.
//
// # Concurrency
//
// An Engine is safe for concurrent use. Between I/O calls the engine runs
// plain synchronous logic; [Engine.GetAsync] exposes the identical state
// machine behind a [Future] for callers composing concurrent work. Two
// concurrent misses for the same key may both fetch and both write — an
// accepted last-write-wins race. Opt in to [WithSingleFlight] to collapse
// concurrent misses into one fetch per key.
package cachio
