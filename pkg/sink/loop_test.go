// ABOUTME: Tests for the software looped buffer
// ABOUTME: Verifies capability ranges, rendering, cursor movement and close
package sink

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Resonate-Protocol/resonate-notes/pkg/wavetable"
)

func TestLoopBufferStartsMuted(t *testing.T) {
	b := NewLoopBuffer(wavetable.Triangle())

	if b.Volume() != MinVolume {
		t.Errorf("expected initial volume %d, got %d", MinVolume, b.Volume())
	}

	out := make([]float32, 32)
	for i := range out {
		out[i] = 1
	}
	b.Render(out, 2, 48000)

	for i, v := range out {
		if v != 0 {
			t.Fatalf("expected silence at %d, got %f", i, v)
		}
	}
}

func TestLoopBufferRanges(t *testing.T) {
	b := NewLoopBuffer(wavetable.Triangle())

	if err := b.SetFrequency(MinFrequency - 1); !errors.Is(err, ErrFrequencyRange) {
		t.Errorf("expected ErrFrequencyRange below minimum, got %v", err)
	}
	if err := b.SetFrequency(MaxFrequency + 1); !errors.Is(err, ErrFrequencyRange) {
		t.Errorf("expected ErrFrequencyRange above maximum, got %v", err)
	}
	if err := b.SetVolume(1); !errors.Is(err, ErrVolumeRange) {
		t.Errorf("expected ErrVolumeRange above 0, got %v", err)
	}
	if err := b.SetVolume(MinVolume - 1); !errors.Is(err, ErrVolumeRange) {
		t.Errorf("expected ErrVolumeRange below minimum, got %v", err)
	}
	if err := b.SetCurrentPosition(wavetable.Size); !errors.Is(err, ErrPositionRange) {
		t.Errorf("expected ErrPositionRange, got %v", err)
	}

	if err := b.SetFrequency(7040); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if b.Frequency() != 7040 {
		t.Errorf("expected frequency 7040, got %d", b.Frequency())
	}
}

func TestCentibelsToGain(t *testing.T) {
	tests := []struct {
		centibels int32
		expected  float64
	}{
		{0, 1.0},
		{-2000, 0.1},
		{-600, 0.501},
		{MinVolume, 0.0},
	}

	for _, tt := range tests {
		got := float64(centibelsToGain(tt.centibels))
		if math.Abs(got-tt.expected) > 0.001 {
			t.Errorf("centibels=%d: expected %f, got %f", tt.centibels, tt.expected, got)
		}
	}
}

func TestRenderFollowsTable(t *testing.T) {
	table := wavetable.Triangle()
	b := NewLoopBuffer(table)
	b.SetVolume(0)

	// One table sample per output frame
	if err := b.SetFrequency(48000); err != nil {
		t.Fatalf("SetFrequency: %v", err)
	}
	b.SetCurrentPosition(2)

	out := make([]float32, 8) // 4 stereo frames
	b.Render(out, 2, 48000)

	for frame := 0; frame < 4; frame++ {
		want := table.Float(2 + frame)
		if out[frame*2] != want || out[frame*2+1] != want {
			t.Errorf("frame %d: expected %f on both channels, got %f/%f",
				frame, want, out[frame*2], out[frame*2+1])
		}
	}

	pos, err := b.CurrentPosition()
	if err != nil {
		t.Fatalf("CurrentPosition: %v", err)
	}
	if pos != 6 {
		t.Errorf("expected cursor at 6 after 4 frames, got %d", pos)
	}
}

func TestRenderWrapsCursor(t *testing.T) {
	b := NewLoopBuffer(wavetable.Triangle())
	b.SetFrequency(48000)
	b.SetCurrentPosition(14)

	out := make([]float32, 5)
	b.Render(out, 1, 48000)

	pos, _ := b.CurrentPosition()
	if pos != 3 {
		t.Errorf("expected cursor to wrap to 3, got %d", pos)
	}
}

func TestAdvance(t *testing.T) {
	b := NewLoopBuffer(wavetable.Triangle())
	b.SetFrequency(1600) // 100 table cycles per second

	b.SetCurrentPosition(0)
	b.Advance(5 * time.Millisecond) // 8 samples

	pos, _ := b.CurrentPosition()
	if pos != 8 {
		t.Errorf("expected cursor at 8, got %d", pos)
	}

	b.Advance(-time.Second)
	pos, _ = b.CurrentPosition()
	if pos != 8 {
		t.Errorf("negative advance moved cursor to %d", pos)
	}
}

func TestLoopBufferClose(t *testing.T) {
	b := NewLoopBuffer(wavetable.Triangle())
	b.SetVolume(0)
	b.Close()

	if err := b.SetVolume(0); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := b.CurrentPosition(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	out := []float32{1, 1, 1, 1}
	b.Render(out, 1, 48000)
	for _, v := range out {
		if v != 0 {
			t.Fatal("expected silence after close")
		}
	}
}
