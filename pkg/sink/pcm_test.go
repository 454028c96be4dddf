// ABOUTME: Tests for PCM encoders
// ABOUTME: Verifies each negotiated encoding at full scale and silence
package sink

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestEncodePCM(t *testing.T) {
	samples := []float32{0, 1, -1, 2}

	t.Run("f32", func(t *testing.T) {
		dst := make([]byte, len(samples)*4)
		if err := encodePCM(dst, samples, EncodingF32); err != nil {
			t.Fatalf("encode: %v", err)
		}
		if got := math.Float32frombits(binary.LittleEndian.Uint32(dst[4:])); got != 1 {
			t.Errorf("expected 1, got %f", got)
		}
		// Clipped
		if got := math.Float32frombits(binary.LittleEndian.Uint32(dst[12:])); got != 1 {
			t.Errorf("expected clipped 1, got %f", got)
		}
	})

	t.Run("s16", func(t *testing.T) {
		dst := make([]byte, len(samples)*2)
		if err := encodePCM(dst, samples, EncodingS16); err != nil {
			t.Fatalf("encode: %v", err)
		}
		if got := int16(binary.LittleEndian.Uint16(dst[2:])); got != math.MaxInt16 {
			t.Errorf("expected %d, got %d", math.MaxInt16, got)
		}
		if got := int16(binary.LittleEndian.Uint16(dst[4:])); got != -math.MaxInt16 {
			t.Errorf("expected %d, got %d", -math.MaxInt16, got)
		}
	})

	t.Run("s24", func(t *testing.T) {
		dst := make([]byte, len(samples)*3)
		if err := encodePCM(dst, samples, EncodingS24); err != nil {
			t.Fatalf("encode: %v", err)
		}
		if dst[3] != 0xFF || dst[4] != 0xFF || dst[5] != 0x7F {
			t.Errorf("expected 0x7FFFFF little-endian, got % x", dst[3:6])
		}
	})

	t.Run("u8", func(t *testing.T) {
		dst := make([]byte, len(samples))
		if err := encodePCM(dst, samples, EncodingU8); err != nil {
			t.Fatalf("encode: %v", err)
		}
		if dst[0] != 128 || dst[1] != 255 || dst[2] != 1 {
			t.Errorf("unexpected u8 output: %v", dst)
		}
	})
}

func TestEncodePCMErrors(t *testing.T) {
	if err := encodePCM(make([]byte, 4), []float32{0}, Encoding("mp3")); err == nil {
		t.Error("expected error for unknown encoding")
	}
	if err := encodePCM(make([]byte, 2), []float32{0}, EncodingF32); err == nil {
		t.Error("expected error for short buffer")
	}
}

func TestBytesPerSample(t *testing.T) {
	tests := []struct {
		enc      Encoding
		expected int
	}{
		{EncodingU8, 1},
		{EncodingS16, 2},
		{EncodingS24, 3},
		{EncodingS32, 4},
		{EncodingF32, 4},
		{Encoding("x"), 0},
	}

	for _, tt := range tests {
		if got := tt.enc.BytesPerSample(); got != tt.expected {
			t.Errorf("%s: expected %d, got %d", tt.enc, tt.expected, got)
		}
	}
}
