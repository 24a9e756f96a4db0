package downloader

import (
	"context"
	"sync"
	"sync/atomic"
)

// Control carries the cooperative pause and cancel signals for a single
// transfer. Create a fresh Control per Transfer call and hand it to
// whatever is driving the transfer; sharing one Control across transfers
// would cross their signals. The flags are atomics because they are the
// only state shared between the controlling goroutine and the streaming
// loop.
type Control struct {
	cancelled atomic.Bool
	paused    atomic.Bool

	mu       sync.Mutex
	cancelCh chan struct{}
	resumeCh chan struct{}
}

// NewControl creates a control in the running state.
func NewControl() *Control {
	return &Control{
		cancelCh: make(chan struct{}),
		resumeCh: make(chan struct{}),
	}
}

// Cancel requests that the transfer stop at the next chunk boundary. It
// also wakes a paused transfer so cancellation is prompt while paused.
// Safe to call from any goroutine and more than once.
func (c *Control) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelled.Swap(true) {
		return
	}
	close(c.cancelCh)
}

// Pause requests that the transfer block before its next chunk. The
// partial file stays open; Resume continues where it left off.
func (c *Control) Pause() {
	c.paused.Store(true)
}

// Resume wakes a paused transfer. Calling Resume when not paused is a
// no-op.
func (c *Control) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused.Swap(false) {
		return
	}
	close(c.resumeCh)
	c.resumeCh = make(chan struct{})
}

// Cancelled reports whether Cancel has been called.
func (c *Control) Cancelled() bool {
	return c.cancelled.Load()
}

// Paused reports whether a pause is currently requested.
func (c *Control) Paused() bool {
	return c.paused.Load()
}

// wait blocks while the transfer is paused, without consuming CPU. It
// returns when resumed, cancelled, or the context ends; the caller
// re-checks the cancel state either way.
func (c *Control) wait(ctx context.Context) {
	for {
		if c.cancelled.Load() || !c.paused.Load() {
			return
		}

		c.mu.Lock()
		resume := c.resumeCh
		c.mu.Unlock()

		// Resume may have swapped the channel between the flag check
		// and the grab; re-checking avoids blocking on a channel no
		// Resume call will ever close.
		if !c.paused.Load() {
			return
		}

		select {
		case <-resume:
		case <-c.cancelCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
