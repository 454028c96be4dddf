// ABOUTME: Note player application orchestration
// ABOUTME: Runs the controller goroutine that plays queued notes on the engine
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/resonate-notes/pkg/decps"
	"github.com/Resonate-Protocol/resonate-notes/pkg/notes"
	"github.com/google/uuid"
)

var (
	// ErrStopped is returned when enqueueing after Stop
	ErrStopped = errors.New("player stopped")
	// ErrQueueFull is returned when the request queue is at capacity
	ErrQueueFull = errors.New("player queue full")
)

// Config holds player configuration
type Config struct {
	// QueueSize bounds pending requests (default: 64)
	QueueSize int

	// CloseTimeout bounds how long Stop waits for the playback lock (default: 2s)
	CloseTimeout time.Duration

	// OnNote is called from the controller goroutine before each note plays
	OnNote func(NoteEvent)
}

// NoteEvent describes a note about to be played
type NoteEvent struct {
	RequestID string
	Note      notes.Note
	Frequency float64 // loop playback rate
	Volume    float64 // centibels
	Played    int64   // notes played before this one
	Queued    int     // requests still waiting
}

// Stats contains playback statistics
type Stats struct {
	Requests int64
	Played   int64
	Rejected int64
	Queued   int
}

type request struct {
	id    string
	notes []notes.Note
}

// Player owns the note engine and the goroutine driving it
type Player struct {
	config Config
	engine *notes.Engine
	queue  chan request
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	startOnce sync.Once
	started   atomic.Bool
	stopOnce  sync.Once
	stopErr   error

	requests atomic.Int64
	played   atomic.Int64
	rejected atomic.Int64
}

// New creates a player around engine
func New(config Config, engine *notes.Engine) *Player {
	if config.QueueSize <= 0 {
		config.QueueSize = 64
	}
	if config.CloseTimeout <= 0 {
		config.CloseTimeout = 2 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Player{
		config: config,
		engine: engine,
		queue:  make(chan request, config.QueueSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start arms the engine and starts the controller goroutine
func (p *Player) Start() {
	p.startOnce.Do(func() {
		p.engine.Initialize()
		p.started.Store(true)
		go p.run()
		log.Printf("Note player started (queue: %d)", p.config.QueueSize)
	})
}

// Enqueue queues notes to be played in order and returns the request id
func (p *Player) Enqueue(ns []notes.Note) (string, error) {
	if p.ctx.Err() != nil {
		return "", ErrStopped
	}

	req := request{
		id:    uuid.New().String(),
		notes: ns,
	}

	select {
	case p.queue <- req:
		p.requests.Add(1)
		return req.id, nil
	default:
		p.rejected.Add(1)
		return "", ErrQueueFull
	}
}

// EnqueueSequence queues a DECPS sequence
func (p *Player) EnqueueSequence(seq decps.Sequence) (string, error) {
	return p.Enqueue(seq.Expand())
}

// run is the controller goroutine
func (p *Player) run() {
	defer close(p.done)

	for {
		select {
		case <-p.ctx.Done():
			return
		case req := <-p.queue:
			if err := p.play(req); err != nil {
				if errors.Is(err, notes.ErrPlaybackCancelled) {
					log.Printf("Playback cancelled, controller exiting")
					return
				}
				log.Printf("Request %s failed: %v", req.id, err)
			}
		}
	}
}

// play plays one request, locking around each note so Stop can interleave
func (p *Player) play(req request) error {
	for _, n := range req.notes {
		if p.config.OnNote != nil {
			p.config.OnNote(NoteEvent{
				RequestID: req.id,
				Note:      n,
				Frequency: notes.Frequency(n.Pitch),
				Volume:    notes.Volume(n.Velocity),
				Played:    p.played.Load(),
				Queued:    len(p.queue),
			})
		}

		p.engine.Lock()
		p.engine.Play(n)
		err := p.engine.Unlock()
		p.played.Add(1)
		if err != nil {
			return err
		}
	}
	return nil
}

// Stats returns playback statistics
func (p *Player) Stats() Stats {
	return Stats{
		Requests: p.requests.Load(),
		Played:   p.played.Load(),
		Rejected: p.rejected.Load(),
		Queued:   len(p.queue),
	}
}

// Done is closed when the controller goroutine exits
func (p *Player) Done() <-chan struct{} {
	return p.done
}

// Stop signals shutdown, waits for the controller to unwind and closes the
// engine. It is safe to call more than once.
func (p *Player) Stop() error {
	p.stopOnce.Do(func() {
		// Interrupt the current note before waking an idle controller
		p.engine.Shutdown()
		p.cancel()

		if p.started.Load() {
			select {
			case <-p.done:
			case <-time.After(p.config.CloseTimeout):
				log.Printf("Warning: controller did not exit within %v", p.config.CloseTimeout)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), p.config.CloseTimeout)
		defer cancel()
		if err := p.engine.CloseContext(ctx); err != nil {
			p.stopErr = fmt.Errorf("failed to close engine: %w", err)
		}

		stats := p.Stats()
		log.Printf("Note player stopped (requests: %d, played: %d, rejected: %d)",
			stats.Requests, stats.Played, stats.Rejected)
	})

	return p.stopErr
}
