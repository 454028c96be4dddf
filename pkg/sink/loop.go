// ABOUTME: Software looped buffer driven by the sink capability calls
// ABOUTME: Renders the wavetable at a variable rate and attenuation
package sink

import (
	"math"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-notes/pkg/wavetable"
)

// LoopBuffer plays a wavetable on repeat. Capability calls come from the
// engine while Render is called from the audio thread, so all state is
// guarded by mu.
type LoopBuffer struct {
	table     wavetable.Table
	frequency uint32
	volume    int32
	gain      float32
	phase     float64 // fractional index into table
	closed    bool
	mu        sync.Mutex
}

// NewLoopBuffer creates a muted loop over table
func NewLoopBuffer(table wavetable.Table) *LoopBuffer {
	return &LoopBuffer{
		table:     table,
		frequency: wavetable.Size * 440,
		volume:    MinVolume,
		gain:      0,
	}
}

// SetFrequency sets the loop playback rate
func (b *LoopBuffer) SetFrequency(hz uint32) error {
	if hz < MinFrequency || hz > MaxFrequency {
		return ErrFrequencyRange
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.frequency = hz
	return nil
}

// SetVolume sets the attenuation in centibels
func (b *LoopBuffer) SetVolume(centibels int32) error {
	if centibels < MinVolume || centibels > MaxVolume {
		return ErrVolumeRange
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.volume = centibels
	b.gain = centibelsToGain(centibels)
	return nil
}

// SetCurrentPosition moves the play cursor
func (b *LoopBuffer) SetCurrentPosition(index uint32) error {
	if index >= wavetable.Size {
		return ErrPositionRange
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.phase = float64(index)
	return nil
}

// CurrentPosition returns the table index under the play cursor
func (b *LoopBuffer) CurrentPosition() (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}
	return uint32(b.phase), nil
}

// Frequency returns the current loop playback rate
func (b *LoopBuffer) Frequency() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frequency
}

// Volume returns the current attenuation in centibels
func (b *LoopBuffer) Volume() int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.volume
}

// Close stops the loop. Render produces silence afterwards.
func (b *LoopBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.gain = 0
	return nil
}

// Render fills out with interleaved frames at sampleRate and advances the
// play cursor by the same amount.
func (b *LoopBuffer) Render(out []float32, channels, sampleRate int) {
	if channels <= 0 || sampleRate <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	step := float64(b.frequency) / float64(sampleRate)
	frames := len(out) / channels

	for i := 0; i < frames; i++ {
		v := b.table.Float(int(b.phase)) * b.gain
		for ch := 0; ch < channels; ch++ {
			out[i*channels+ch] = v
		}
		b.phase = wrapPhase(b.phase + step)
	}

	// Partial trailing frame
	for i := frames * channels; i < len(out); i++ {
		out[i] = 0
	}
}

// Advance moves the play cursor as if d of audio had been played
func (b *LoopBuffer) Advance(d time.Duration) {
	if d <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.phase = wrapPhase(b.phase + float64(b.frequency)*d.Seconds())
}

// centibelsToGain converts hundredths of a decibel to a linear multiplier
func centibelsToGain(centibels int32) float32 {
	if centibels <= MinVolume {
		return 0
	}
	return float32(math.Pow(10, float64(centibels)/2000))
}

func wrapPhase(phase float64) float64 {
	phase = math.Mod(phase, wavetable.Size)
	if phase < 0 {
		phase += wavetable.Size
	}
	return phase
}
