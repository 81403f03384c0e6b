// Package shutdown provides the single-fire signal used to tell the responder
// that no new work should be admitted.
package shutdown

import (
	"context"
	"sync"
)

// Signal is a single-use, single-value stop signal.
//
// The producer calls Fire; consumers select on Done or derive a context with
// Context. Only the first Fire has an effect, later calls are no-ops.
type Signal struct {
	once   sync.Once
	fired  context.Context
	cancel context.CancelFunc
}

// New returns a pending signal.
func New() *Signal {
	fired, cancel := context.WithCancel(context.Background())
	return &Signal{fired: fired, cancel: cancel}
}

// Fire delivers the signal. It reports whether this call delivered it.
func (s *Signal) Fire() bool {
	delivered := false
	s.once.Do(func() {
		s.cancel()
		delivered = true
	})
	return delivered
}

// Done returns a channel closed once the signal has been delivered.
func (s *Signal) Done() <-chan struct{} {
	return s.fired.Done()
}

// Fired reports whether the signal has been delivered, without blocking.
func (s *Signal) Fired() bool {
	return s.fired.Err() != nil
}

// Context returns a context that keeps parent's values but is cancelled only
// when the signal fires or release is called. Cancelling parent does not
// cancel it. Callers must call release once the context is no longer used.
func (s *Signal) Context(parent context.Context) (ctx context.Context, release context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	stop := context.AfterFunc(s.fired, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
