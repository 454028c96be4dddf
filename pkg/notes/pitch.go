// ABOUTME: Pitch, gain and cursor math for note playback
// ABOUTME: Converts semitones and velocities into sink rates and centibels
package notes

import (
	"fmt"
	"math"
	"time"

	"github.com/Resonate-Protocol/resonate-notes/pkg/wavetable"
)

const (
	// ReferencePitch is the semitone number of A4
	ReferencePitch = 69
	// ReferenceFrequency is the pitch of A4 in Hz
	ReferenceFrequency = 440.0
	// MaxVelocity is full intensity; zero is silence
	MaxVelocity = 127
	// RestartOffset separates consecutive notes on the looped buffer
	RestartOffset = 12
)

// Note is a single pitch held for a duration
type Note struct {
	Pitch    int
	Velocity int
	Duration time.Duration
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Name returns the scientific pitch name, e.g. "A4" for 69
func (n Note) Name() string {
	return PitchName(n.Pitch)
}

// Rest reports whether the note is silent
func (n Note) Rest() bool {
	return n.Velocity == 0
}

// PitchName returns the scientific pitch name of a semitone number
func PitchName(pitch int) string {
	octave := pitch/12 - 1
	idx := pitch % 12
	if idx < 0 {
		idx += 12
		octave--
	}
	return fmt.Sprintf("%s%d", noteNames[idx], octave)
}

// Frequency returns the loop playback rate for pitch. One traversal of the
// table is one cycle, so the audible frequency is scaled by the table size.
func Frequency(pitch int) float64 {
	return math.Pow(2, float64(pitch-ReferencePitch)/12) * ReferenceFrequency * wavetable.Size
}

// ToneFrequency converts a loop playback rate back to the audible frequency
func ToneFrequency(rate float64) float64 {
	return rate / wavetable.Size
}

// Volume returns the attenuation for velocity in centibels, following the
// General MIDI gain curve dB = 40*log10(v/127).
func Volume(velocity int) float64 {
	return 4000 * math.Log10(float64(velocity)/MaxVelocity)
}

// RestartPosition returns where the next note starts on the looped buffer
func RestartPosition(last uint32) uint32 {
	return (last + RestartOffset) % wavetable.Size
}

// sinkFrequency truncates a rate to the sink's unsigned range
func sinkFrequency(pitch int) uint32 {
	f := Frequency(pitch)
	if f >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(f)
}

// sinkVolume truncates an attenuation toward zero
func sinkVolume(velocity int) int32 {
	v := Volume(velocity)
	if v <= math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}
