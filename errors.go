package cachio

import "github.com/cockroachdb/errors"

// ErrMalformedEntry marks a record a backend could not decode back into an
// Entry. The engine treats it as a miss for that tier and best-effort
// deletes the corrupt record. Backends attach it with errors.Mark so callers
// can match with errors.Is while keeping the decode cause.
var ErrMalformedEntry = errors.New("cachio: malformed cache entry")
