// ABOUTME: Headless sink with no output endpoint
// ABOUTME: Advances the play cursor by wall-clock time so positions look live
package sink

import (
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-notes/pkg/wavetable"
)

// Null is a sink without audio output. The play cursor moves as if the loop
// were being played, which keeps note-to-note position continuity realistic.
type Null struct {
	*LoopBuffer
	format Format
	now    func() time.Time
	last   time.Time
	mu     sync.Mutex
}

// NewNull creates a headless sink
func NewNull(config Config) *Null {
	format := Format{
		SampleRate: config.SampleRate,
		Channels:   config.Channels,
		Encoding:   EncodingF32,
	}
	if format.SampleRate == 0 {
		format.SampleRate = DefaultSampleRate
	}
	if format.Channels == 0 {
		format.Channels = DefaultChannels
	}

	return &Null{
		LoopBuffer: NewLoopBuffer(wavetable.Triangle()),
		format:     format,
		now:        time.Now,
		last:       time.Now(),
	}
}

// tick advances the cursor by the time elapsed since the previous call
func (n *Null) tick() {
	n.mu.Lock()
	now := n.now()
	elapsed := now.Sub(n.last)
	n.last = now
	n.mu.Unlock()

	n.LoopBuffer.Advance(elapsed)
}

// SetFrequency advances at the old rate before switching
func (n *Null) SetFrequency(hz uint32) error {
	n.tick()
	return n.LoopBuffer.SetFrequency(hz)
}

// SetCurrentPosition moves the cursor
func (n *Null) SetCurrentPosition(index uint32) error {
	n.tick()
	return n.LoopBuffer.SetCurrentPosition(index)
}

// CurrentPosition reports the cursor after accounting for elapsed time
func (n *Null) CurrentPosition() (uint32, error) {
	n.tick()
	return n.LoopBuffer.CurrentPosition()
}

// Format returns the nominal mix format
func (n *Null) Format() Format {
	return n.format
}
