// ABOUTME: Plays DECPS sequences on a note controller
// ABOUTME: Locks around each note and stops at the first cancelled unlock
package decps

import (
	"time"
)

// Controller is the subset of the note engine used to play a sequence
type Controller interface {
	Lock()
	Unlock() error
	PlayNote(pitch, velocity int, duration time.Duration)
}

// Play plays every note in seq, holding the lock for one note at a time so
// that a closer can get in between notes. It returns the first Unlock error,
// normally notes.ErrPlaybackCancelled after a shutdown.
func Play(c Controller, seq Sequence) error {
	for _, n := range seq.Expand() {
		c.Lock()
		c.PlayNote(n.Pitch, n.Velocity, n.Duration)
		if err := c.Unlock(); err != nil {
			return err
		}
	}
	return nil
}
