// ABOUTME: Malgo-based sink implementation using the device's native mix format
// ABOUTME: Renders the looped wavetable from miniaudio's event-driven data callback
package sink

import (
	"fmt"
	"log"
	"sync"

	"github.com/Resonate-Protocol/resonate-notes/pkg/wavetable"
	"github.com/gen2brain/malgo"
)

// Malgo renders the loop buffer from the miniaudio data callback
type Malgo struct {
	*LoopBuffer
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	format   Format
	scratch  []float32
	mu       sync.Mutex
}

// NewMalgo opens the default playback device. Unset fields in config are
// left for the device to choose, so the endpoint's native mix format is used.
func NewMalgo(config Config) (*Malgo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, &DeviceInitError{Backend: BackendMalgo, Step: "init context", Err: err}
	}

	m := &Malgo{
		LoopBuffer: NewLoopBuffer(wavetable.Triangle()),
		malgoCtx:   ctx,
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatUnknown
	deviceConfig.Playback.Channels = uint32(config.Channels)
	deviceConfig.SampleRate = uint32(config.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = uint32(config.BufferSize.Milliseconds())
	deviceConfig.Alsa.NoMMap = 1

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			m.dataCallback(pOutputSample, frameCount)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		m.freeContext()
		return nil, &DeviceInitError{Backend: BackendMalgo, Step: "init device", Err: err}
	}

	format := Format{
		SampleRate: int(device.SampleRate()),
		Channels:   int(device.PlaybackChannels()),
		Encoding:   encodingFor(device.PlaybackFormat()),
	}
	if format.Encoding == "" || format.SampleRate == 0 || format.Channels == 0 {
		device.Uninit()
		m.freeContext()
		return nil, &DeviceInitError{
			Backend: BackendMalgo,
			Step:    "negotiate mix format",
			Err:     fmt.Errorf("unsupported device format %s", formatName(device.PlaybackFormat())),
		}
	}

	m.mu.Lock()
	m.device = device
	m.format = format
	m.mu.Unlock()

	if err := device.Start(); err != nil {
		device.Uninit()
		m.freeContext()
		return nil, &DeviceInitError{Backend: BackendMalgo, Step: "start device", Err: err}
	}

	log.Printf("Audio output initialized: %s (malgo/%s)", format, formatName(device.PlaybackFormat()))

	return m, nil
}

// dataCallback is called by malgo whenever the device needs more frames
func (m *Malgo) dataCallback(pOutput []byte, frameCount uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return
	}

	total := int(frameCount) * m.format.Channels
	if cap(m.scratch) < total {
		m.scratch = make([]float32, total)
	}
	samples := m.scratch[:total]

	m.Render(samples, m.format.Channels, m.format.SampleRate)

	if err := encodePCM(pOutput, samples, m.format.Encoding); err != nil {
		log.Printf("Audio callback error: %v", err)
	}
}

// Format returns the negotiated mix format
func (m *Malgo) Format() Format {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.format
}

// Close stops the device and releases the miniaudio context
func (m *Malgo) Close() error {
	if err := m.LoopBuffer.Close(); err != nil {
		return err
	}

	m.mu.Lock()
	device := m.device
	m.device = nil
	m.mu.Unlock()

	if device != nil {
		if err := device.Stop(); err != nil {
			log.Printf("Warning: device stop error: %v", err)
		}
		device.Uninit()
	}

	m.freeContext()
	return nil
}

func (m *Malgo) freeContext() {
	if m.malgoCtx == nil {
		return
	}
	if err := m.malgoCtx.Uninit(); err != nil {
		log.Printf("Warning: malgo context uninit error: %v", err)
	}
	m.malgoCtx.Free()
	m.malgoCtx = nil
}

// encodingFor maps a miniaudio format to a PCM encoding
func encodingFor(format malgo.FormatType) Encoding {
	switch format {
	case malgo.FormatU8:
		return EncodingU8
	case malgo.FormatS16:
		return EncodingS16
	case malgo.FormatS24:
		return EncodingS24
	case malgo.FormatS32:
		return EncodingS32
	case malgo.FormatF32:
		return EncodingF32
	default:
		return ""
	}
}

// formatName returns human-readable format name
func formatName(format malgo.FormatType) string {
	switch format {
	case malgo.FormatU8:
		return "U8"
	case malgo.FormatS16:
		return "S16"
	case malgo.FormatS24:
		return "S24"
	case malgo.FormatS32:
		return "S32"
	case malgo.FormatF32:
		return "F32"
	default:
		return fmt.Sprintf("Unknown(%d)", format)
	}
}
