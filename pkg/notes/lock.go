// ABOUTME: Playback lock that reports cancellation on release
// ABOUTME: Serializes note sequences and surfaces shutdown to the lock holder
package notes

import (
	"context"
)

// PlaybackLock is a mutual-exclusion gate tied to a shutdown Signal.
// Release checks the signal while still holding the lock and reports
// cancellation only after letting go, so a closer blocked in Acquire is
// never held up by a controller that is about to unwind.
type PlaybackLock struct {
	sem    chan struct{}
	signal *Signal
}

// NewPlaybackLock creates an unlocked gate watching signal
func NewPlaybackLock(signal *Signal) *PlaybackLock {
	return &PlaybackLock{
		sem:    make(chan struct{}, 1),
		signal: signal,
	}
}

// Acquire blocks until the lock is held
func (l *PlaybackLock) Acquire() {
	l.sem <- struct{}{}
}

// AcquireContext blocks until the lock is held or ctx is done
func (l *PlaybackLock) AcquireContext(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release unlocks and returns ErrPlaybackCancelled if the signal had been
// raised by the time of the call.
func (l *PlaybackLock) Release() error {
	state := l.signal.Peek()
	l.unlock()
	if state == Signaled {
		return ErrPlaybackCancelled
	}
	return nil
}

func (l *PlaybackLock) unlock() {
	select {
	case <-l.sem:
	default:
		panic("notes: release of unlocked PlaybackLock")
	}
}
