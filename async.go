package cachio

import (
	"context"
	"net/http"
)

// Future is the asynchronous handle returned by Engine.GetAsync.
type Future struct {
	done  chan struct{}
	entry *Entry
	err   error
}

// Done is closed when the result is available. Select on it alongside a
// context's Done channel for caller-side timeouts.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Entry blocks until the request completes and returns its result. Safe to
// call any number of times from any goroutine.
func (f *Future) Entry() (*Entry, error) {
	<-f.done
	return f.entry, f.err
}

// GetAsync runs the same state machine as Get in its own goroutine and
// returns immediately. The two surfaces are observably equivalent: for a
// given chain and sequence of backend responses, the tier probes, promotion
// writes and fill writes happen in the identical order, because the future
// executes the exact same code path. Cancel ctx to abort the pending
// backend or fetch operation; the error surfaces through the future.
func (e *Engine) GetAsync(ctx context.Context, req *http.Request) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.entry, f.err = e.Get(ctx, req)
	}()
	return f
}
