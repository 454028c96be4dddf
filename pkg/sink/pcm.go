// ABOUTME: PCM encoders for negotiated mix formats
// ABOUTME: Converts rendered float32 frames to device sample encodings
package sink

import (
	"encoding/binary"
	"fmt"
	"math"
)

// encodePCM writes samples into dst using enc. dst must hold
// len(samples)*enc.BytesPerSample() bytes.
func encodePCM(dst []byte, samples []float32, enc Encoding) error {
	width := enc.BytesPerSample()
	if width == 0 {
		return fmt.Errorf("unsupported encoding: %s", enc)
	}
	if len(dst) < len(samples)*width {
		return fmt.Errorf("output buffer too small: %d bytes for %d samples", len(dst), len(samples))
	}

	for i, s := range samples {
		s = clamp(s)
		switch enc {
		case EncodingF32:
			binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(s))
		case EncodingS16:
			binary.LittleEndian.PutUint16(dst[i*2:], uint16(int16(s*math.MaxInt16)))
		case EncodingS24:
			v := int32(s * 8388607)
			dst[i*3] = byte(v)
			dst[i*3+1] = byte(v >> 8)
			dst[i*3+2] = byte(v >> 16)
		case EncodingS32:
			binary.LittleEndian.PutUint32(dst[i*4:], uint32(int32(float64(s)*math.MaxInt32)))
		case EncodingU8:
			dst[i] = uint8(int(s*127) + 128)
		}
	}

	return nil
}

func clamp(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
