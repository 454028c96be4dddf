// ABOUTME: Note engine driving a looped wavetable sink
// ABOUTME: Plays one note at a time and stays interruptible by Shutdown
package notes

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-notes/pkg/sink"
)

// Engine plays notes on an exclusively owned sink. The sink and the last
// cursor position are only touched while the playback lock is held.
type Engine struct {
	sink         sink.Sink
	lastPosition uint32
	shutdown     *Signal
	lock         *PlaybackLock
	closeOnce    sync.Once
	closeErr     error
}

// New creates an engine that owns s
func New(s sink.Sink) *Engine {
	shutdown := NewSignal()

	return &Engine{
		sink:     s,
		shutdown: shutdown,
		lock:     NewPlaybackLock(shutdown),
	}
}

// Open acquires the configured output device and creates an engine for it.
// Device failures are returned as *sink.DeviceInitError.
func Open(config sink.Config) (*Engine, error) {
	dev, err := sink.Open(config)
	if err != nil {
		return nil, err
	}
	return New(dev), nil
}

// Initialize arms the shutdown mechanism. Call once before the first note.
func (e *Engine) Initialize() {
	if !e.shutdown.Arm() {
		log.Printf("Warning: note engine already initialized")
	}
}

// Shutdown interrupts the current note and cancels every later Unlock.
// Calls after the first are ignored.
func (e *Engine) Shutdown() {
	if !e.shutdown.Signal() {
		log.Printf("Warning: note engine shutdown already signaled, ignoring")
		return
	}
	log.Printf("Note engine shutdown signaled")
}

// ShutdownState reports whether Shutdown has been called
func (e *Engine) ShutdownState() State {
	return e.shutdown.Peek()
}

// Lock blocks until the caller holds the playback lock
func (e *Engine) Lock() {
	e.lock.Acquire()
}

// Unlock releases the playback lock. It returns ErrPlaybackCancelled once
// Shutdown has been called; callers should stop playing when they see it.
func (e *Engine) Unlock() error {
	return e.lock.Release()
}

// PlayNote plays pitch at velocity for duration. The caller must hold the
// lock. A velocity of zero is a rest: the sink is untouched but the full
// duration still elapses unless Shutdown interrupts it. Failures are logged
// and never returned.
func (e *Engine) PlayNote(pitch, velocity int, duration time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Note playback failed: %v", &PlaybackError{Op: "play note", Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	if err := e.playNote(pitch, velocity, duration); err != nil {
		log.Printf("Note playback failed: pitch=%d velocity=%d: %v", pitch, velocity, err)
	}
}

// Play is PlayNote for a Note value
func (e *Engine) Play(n Note) {
	e.PlayNote(n.Pitch, n.Velocity, n.Duration)
}

func (e *Engine) playNote(pitch, velocity int, duration time.Duration) error {
	var errs []error

	if velocity < 0 || velocity > MaxVelocity {
		errs = append(errs, &PlaybackError{
			Op:  "validate velocity",
			Err: fmt.Errorf("velocity %d outside [0,%d], clamped", velocity, MaxVelocity),
		})
		velocity = max(0, min(velocity, MaxVelocity))
	}

	if velocity > 0 {
		if err := e.sink.SetFrequency(sinkFrequency(pitch)); err != nil {
			errs = append(errs, &PlaybackError{Op: "set frequency", Err: err})
		}
		if err := e.sink.SetVolume(sinkVolume(velocity)); err != nil {
			errs = append(errs, &PlaybackError{Op: "set volume", Err: err})
		}
		if err := e.sink.SetCurrentPosition(RestartPosition(e.lastPosition)); err != nil {
			errs = append(errs, &PlaybackError{Op: "set position", Err: err})
		}
	}

	// Either the note plays out or shutdown cuts it short
	e.shutdown.WaitFor(duration)

	if velocity > 0 {
		// Muting instead of stopping avoids a click between notes
		if err := e.sink.SetVolume(sink.MinVolume); err != nil {
			errs = append(errs, &PlaybackError{Op: "mute", Err: err})
		}
		pos, err := e.sink.CurrentPosition()
		if err != nil {
			errs = append(errs, &PlaybackError{Op: "get position", Err: err})
		} else {
			e.lastPosition = pos
		}
	}

	return errors.Join(errs...)
}

// Close waits for any in-flight note to finish and releases the sink
func (e *Engine) Close() error {
	return e.CloseContext(context.Background())
}

// CloseContext is Close with a bound on waiting for the playback lock.
// If the lock cannot be acquired before ctx is done, the failure is logged
// and the sink is released anyway.
func (e *Engine) CloseContext(ctx context.Context) error {
	e.closeOnce.Do(func() {
		held := true
		if err := e.lock.AcquireContext(ctx); err != nil {
			log.Printf("Warning: closing note engine without playback lock: %v", err)
			held = false
		}

		if err := e.sink.Close(); err != nil {
			e.closeErr = fmt.Errorf("failed to close sink: %w", err)
		}

		if held {
			e.lock.unlock()
		}
	})

	return e.closeErr
}
