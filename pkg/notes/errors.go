// ABOUTME: Error types for note playback
// ABOUTME: Defines cancellation sentinel and logged-only playback errors
package notes

import (
	"errors"
	"fmt"
)

// ErrPlaybackCancelled is returned by Unlock once Shutdown has been called
var ErrPlaybackCancelled = errors.New("playback cancelled")

// PlaybackError describes a failed step while playing a note. These are
// logged by PlayNote and never returned to its caller.
type PlaybackError struct {
	Op  string
	Err error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PlaybackError) Unwrap() error {
	return e.Err
}
