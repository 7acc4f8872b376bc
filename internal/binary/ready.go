package binary

import (
	"context"
	"sync"
)

// Ready is a one-shot signal raised once the engine on disk can be trusted,
// whether or not an update ran. Waiters blocked on it are released together.
type Ready struct {
	once sync.Once
	ch   chan struct{}
}

// NewReady returns an unfired signal.
func NewReady() *Ready {
	return &Ready{ch: make(chan struct{})}
}

// Fire raises the signal. Only the first call has an effect.
func (r *Ready) Fire() {
	r.once.Do(func() { close(r.ch) })
}

// Done returns a channel closed when the signal fires.
func (r *Ready) Done() <-chan struct{} {
	return r.ch
}

// Fired reports whether Fire has been called.
func (r *Ready) Fired() bool {
	select {
	case <-r.ch:
		return true
	default:
		return false
	}
}

// Wait blocks until the signal fires or ctx is done.
func (r *Ready) Wait(ctx context.Context) error {
	select {
	case <-r.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
