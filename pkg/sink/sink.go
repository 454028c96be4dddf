// ABOUTME: AudioSink capability interface and shared definitions
// ABOUTME: Declares looped-buffer controls, mix formats and device errors
package sink

import (
	"errors"
	"fmt"
	"time"
)

const (
	// Looped-buffer playback rate limits (table samples per second)
	MinFrequency = 100
	MaxFrequency = 200000

	// Volume limits in hundredths of a decibel
	MinVolume = -10000 // silence
	MaxVolume = 0      // full scale

	// DefaultSampleRate is used by backends that need an explicit rate
	DefaultSampleRate = 48000
	// DefaultChannels is used by backends that need an explicit channel count
	DefaultChannels = 2
)

// Backend names accepted by Open
const (
	BackendMalgo = "malgo"
	BackendOto   = "oto"
	BackendNull  = "null"
)

var (
	// ErrClosed is returned by capability calls after Close
	ErrClosed = errors.New("sink closed")
	// ErrFrequencyRange is returned when a playback rate is outside [MinFrequency, MaxFrequency]
	ErrFrequencyRange = errors.New("frequency out of range")
	// ErrVolumeRange is returned when a volume is outside [MinVolume, MaxVolume]
	ErrVolumeRange = errors.New("volume out of range")
	// ErrPositionRange is returned when a position is past the end of the looped buffer
	ErrPositionRange = errors.New("position out of range")
)

// Sink controls a single looped buffer on an audio output.
// All capability calls are synchronous and do not block on audio I/O.
type Sink interface {
	// SetFrequency sets the loop playback rate in buffer samples per second
	SetFrequency(hz uint32) error

	// SetVolume sets attenuation in centibels (0 = full scale, MinVolume = mute)
	SetVolume(centibels int32) error

	// SetCurrentPosition moves the play cursor to a buffer index
	SetCurrentPosition(index uint32) error

	// CurrentPosition reports the buffer index under the play cursor
	CurrentPosition() (uint32, error)

	// Close releases the output endpoint
	Close() error
}

// Device is a Sink backed by an output endpoint with a negotiated mix format
type Device interface {
	Sink

	// Format returns the mix format agreed with the endpoint
	Format() Format
}

// Encoding names a PCM sample encoding
type Encoding string

const (
	EncodingU8  Encoding = "u8"
	EncodingS16 Encoding = "s16"
	EncodingS24 Encoding = "s24"
	EncodingS32 Encoding = "s32"
	EncodingF32 Encoding = "f32"
)

// BytesPerSample returns the encoded width of one sample, or 0 if unknown
func (e Encoding) BytesPerSample() int {
	switch e {
	case EncodingU8:
		return 1
	case EncodingS16:
		return 2
	case EncodingS24:
		return 3
	case EncodingS32, EncodingF32:
		return 4
	default:
		return 0
	}
}

// Format describes the mix format used by an output endpoint
type Format struct {
	SampleRate int
	Channels   int
	Encoding   Encoding
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz %dch %s", f.SampleRate, f.Channels, f.Encoding)
}

// Config selects and configures an output backend
type Config struct {
	// Backend is one of BackendMalgo (default), BackendOto or BackendNull
	Backend string

	// SampleRate in Hz. Zero lets malgo use the device's native rate;
	// other backends fall back to DefaultSampleRate.
	SampleRate int

	// Channels to render. Zero means native (malgo) or DefaultChannels.
	Channels int

	// BufferSize is the device period. Zero uses the driver default.
	BufferSize time.Duration
}

// DeviceInitError reports a failure while acquiring an output endpoint.
// It is fatal to engine construction.
type DeviceInitError struct {
	Backend string
	Step    string
	Err     error
}

func (e *DeviceInitError) Error() string {
	return fmt.Sprintf("%s device init failed at %s: %v", e.Backend, e.Step, e.Err)
}

func (e *DeviceInitError) Unwrap() error {
	return e.Err
}

// Open acquires the default output endpoint using the configured backend
func Open(config Config) (Device, error) {
	switch config.Backend {
	case "", BackendMalgo:
		return NewMalgo(config)
	case BackendOto:
		return NewOto(config)
	case BackendNull:
		return NewNull(config), nil
	default:
		return nil, &DeviceInitError{
			Backend: config.Backend,
			Step:    "select backend",
			Err:     fmt.Errorf("unknown backend %q (supported: malgo, oto, null)", config.Backend),
		}
	}
}
