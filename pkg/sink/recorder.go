// ABOUTME: Recording sink for tests and dry runs
// ABOUTME: Captures every capability call in order without touching a device
package sink

import (
	"sync"
)

// Operation names recorded by Recorder
const (
	OpSetFrequency       = "SetFrequency"
	OpSetVolume          = "SetVolume"
	OpSetCurrentPosition = "SetCurrentPosition"
	OpCurrentPosition    = "CurrentPosition"
)

// Call is one recorded capability call
type Call struct {
	Op    string
	Value int64
}

// Recorder is a Device that records calls instead of playing audio
type Recorder struct {
	// Position is reported by CurrentPosition
	Position uint32

	// Err, when set, is returned from every capability call
	Err error

	// OnCall runs after each call is recorded, outside the recorder's lock
	OnCall func(Call)

	calls  []Call
	closed bool
	mu     sync.Mutex
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(op string, value int64) error {
	r.mu.Lock()
	call := Call{Op: op, Value: value}
	r.calls = append(r.calls, call)
	err := r.Err
	if r.closed {
		err = ErrClosed
	}
	hook := r.OnCall
	r.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	return err
}

// SetFrequency records the playback rate
func (r *Recorder) SetFrequency(hz uint32) error {
	return r.record(OpSetFrequency, int64(hz))
}

// SetVolume records the attenuation
func (r *Recorder) SetVolume(centibels int32) error {
	return r.record(OpSetVolume, int64(centibels))
}

// SetCurrentPosition records the cursor move
func (r *Recorder) SetCurrentPosition(index uint32) error {
	return r.record(OpSetCurrentPosition, int64(index))
}

// CurrentPosition records the query and returns Position
func (r *Recorder) CurrentPosition() (uint32, error) {
	r.mu.Lock()
	pos := r.Position
	r.mu.Unlock()

	if err := r.record(OpCurrentPosition, int64(pos)); err != nil {
		return 0, err
	}
	return pos, nil
}

// SetPosition changes the position reported by CurrentPosition
func (r *Recorder) SetPosition(pos uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Position = pos
}

// Close marks the recorder closed
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Closed reports whether Close was called
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Calls returns a copy of the recorded calls
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Reset clears recorded calls
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// Format returns a nominal format
func (r *Recorder) Format() Format {
	return Format{SampleRate: DefaultSampleRate, Channels: DefaultChannels, Encoding: EncodingF32}
}
