// ABOUTME: Oto-based sink implementation
// ABOUTME: Streams the looped wavetable to the default output through an oto player
package sink

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/Resonate-Protocol/resonate-notes/pkg/wavetable"
	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process
var otoShared = &sharedContext{}

// contextControl is the part of an oto context the sharing logic drives
type contextControl interface {
	Suspend() error
	Resume() error
}

// sharedContext counts the players using the process-wide context. The
// context is suspended only when the last of them closes.
type sharedContext struct {
	mu     sync.Mutex
	ctl    contextControl
	ctx    *oto.Context
	format Format
	users  int
}

// retain registers a user of an already created context with format
func (c *sharedContext) retain(format Format) error {
	if c.format != format {
		return &DeviceInitError{
			Backend: BackendOto,
			Step:    "create context",
			Err:     fmt.Errorf("context already open with %s, cannot reopen with %s", c.format, format),
		}
	}
	if c.users == 0 {
		if err := c.ctl.Resume(); err != nil {
			return &DeviceInitError{Backend: BackendOto, Step: "resume context", Err: err}
		}
	}
	c.users++
	return nil
}

// release drops one user and suspends the context when none remain
func (c *sharedContext) release() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.users == 0 {
		return nil
	}
	c.users--
	if c.users > 0 || c.ctl == nil {
		return nil
	}
	if err := c.ctl.Suspend(); err != nil {
		return fmt.Errorf("failed to suspend context: %w", err)
	}
	return nil
}

// Oto renders the loop buffer through an oto player that pulls PCM on demand
type Oto struct {
	*LoopBuffer
	player  *oto.Player
	format  Format
	scratch []float32
}

// NewOto opens the default output through oto
func NewOto(config Config) (*Oto, error) {
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

	ctx, err := otoContext(format, config)
	if err != nil {
		return nil, err
	}

	o := &Oto{
		LoopBuffer: NewLoopBuffer(wavetable.Triangle()),
		format:     format,
	}

	o.player = ctx.NewPlayer(o)
	if err := o.player.Err(); err != nil {
		if relErr := otoShared.release(); relErr != nil {
			log.Printf("Warning: %v", relErr)
		}
		return nil, &DeviceInitError{Backend: BackendOto, Step: "create player", Err: err}
	}
	o.player.Play()

	log.Printf("Audio output initialized: %s (oto)", format)

	return o, nil
}

// otoContext creates the process-wide oto context or reuses a matching one
func otoContext(format Format, config Config) (*oto.Context, error) {
	otoShared.mu.Lock()
	defer otoShared.mu.Unlock()

	if otoShared.ctx != nil {
		if err := otoShared.retain(format); err != nil {
			return nil, err
		}
		log.Printf("Audio output already initialized with same format, reusing context")
		return otoShared.ctx, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   config.BufferSize,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, &DeviceInitError{Backend: BackendOto, Step: "create context", Err: err}
	}

	<-readyChan

	otoShared.ctx = ctx
	otoShared.ctl = ctx
	otoShared.format = format
	otoShared.users = 1
	return ctx, nil
}

// Read implements io.Reader for the oto player
func (o *Oto) Read(p []byte) (int, error) {
	o.LoopBuffer.mu.Lock()
	closed := o.LoopBuffer.closed
	o.LoopBuffer.mu.Unlock()
	if closed {
		return 0, io.EOF
	}

	// Whole samples only
	n := len(p) / 4
	if cap(o.scratch) < n {
		o.scratch = make([]float32, n)
	}
	samples := o.scratch[:n]

	o.Render(samples, o.format.Channels, o.format.SampleRate)

	if err := encodePCM(p, samples, EncodingF32); err != nil {
		return 0, err
	}
	return n * 4, nil
}

// Format returns the negotiated mix format
func (o *Oto) Format() Format {
	return o.format
}

// Close stops the player. The shared context is suspended once no other
// player uses it.
func (o *Oto) Close() error {
	if err := o.LoopBuffer.Close(); err != nil {
		return err
	}

	var firstErr error
	if o.player != nil {
		if err := o.player.Close(); err != nil {
			firstErr = fmt.Errorf("failed to close player: %w", err)
		}
		o.player = nil
	}

	if err := otoShared.release(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}
