// ABOUTME: One-shot broadcast shutdown signal
// ABOUTME: Provides bounded waits that wake early once the signal is raised
package notes

import (
	"sync/atomic"
	"time"
)

// State of a shutdown Signal
type State int

const (
	// Armed is the initial state
	Armed State = iota
	// Signaled is terminal
	Signaled
)

func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Signaled:
		return "signaled"
	default:
		return "unknown"
	}
}

// Signal is a one-shot cancellation flag. Raising it wakes every waiter and
// it can never be cleared.
type Signal struct {
	armed    atomic.Bool
	signaled atomic.Bool
	done     chan struct{}
}

// NewSignal creates an unraised signal
func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Arm marks the signal ready for use. It returns false if already armed.
func (s *Signal) Arm() bool {
	return s.armed.CompareAndSwap(false, true)
}

// Armed reports whether Arm has been called
func (s *Signal) Armed() bool {
	return s.armed.Load()
}

// Signal raises the flag and wakes all waiters. Only the first call has any
// effect; it returns false for later calls.
func (s *Signal) Signal() bool {
	if !s.signaled.CompareAndSwap(false, true) {
		return false
	}
	close(s.done)
	return true
}

// Peek returns the current state without blocking
func (s *Signal) Peek() State {
	if s.signaled.Load() {
		return Signaled
	}
	return Armed
}

// WaitFor blocks for up to d, returning early with Signaled if the signal is
// raised. It never blocks past d.
func (s *Signal) WaitFor(d time.Duration) State {
	if s.signaled.Load() || d <= 0 {
		return s.Peek()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-s.done:
		return Signaled
	case <-timer.C:
		return s.Peek()
	}
}

// Done returns a channel closed when the signal is raised
func (s *Signal) Done() <-chan struct{} {
	return s.done
}
