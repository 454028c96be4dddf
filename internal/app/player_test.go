// ABOUTME: Tests for note player orchestration
// ABOUTME: Tests queueing, playback order, rejection and shutdown behavior
package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Resonate-Protocol/resonate-notes/pkg/decps"
	"github.com/Resonate-Protocol/resonate-notes/pkg/notes"
	"github.com/Resonate-Protocol/resonate-notes/pkg/sink"
)

func newTestPlayer(config Config) (*Player, *sink.Recorder) {
	rec := sink.NewRecorder()
	return New(config, notes.New(rec)), rec
}

func TestNewPlayerDefaults(t *testing.T) {
	p, _ := newTestPlayer(Config{})

	if p.config.QueueSize != 64 {
		t.Errorf("expected default QueueSize 64, got %d", p.config.QueueSize)
	}
	if p.config.CloseTimeout != 2*time.Second {
		t.Errorf("expected default CloseTimeout 2s, got %v", p.config.CloseTimeout)
	}
	if cap(p.queue) != 64 {
		t.Errorf("expected queue capacity 64, got %d", cap(p.queue))
	}
}

func TestPlayerPlaysQueuedNotes(t *testing.T) {
	var mu sync.Mutex
	var events []NoteEvent
	done := make(chan struct{})

	p, rec := newTestPlayer(Config{
		OnNote: func(ev NoteEvent) {
			mu.Lock()
			events = append(events, ev)
			if len(events) == 3 {
				close(done)
			}
			mu.Unlock()
		},
	})
	p.Start()
	defer p.Stop()

	id, err := p.Enqueue([]notes.Note{
		{Pitch: 60, Velocity: 100, Duration: 5 * time.Millisecond},
		{Pitch: 62, Velocity: 0, Duration: 5 * time.Millisecond},
		{Pitch: 64, Velocity: 100, Duration: 5 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if id == "" {
		t.Error("expected a request id")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notes")
	}

	mu.Lock()
	defer mu.Unlock()

	for i, pitch := range []int{60, 62, 64} {
		if events[i].Note.Pitch != pitch {
			t.Errorf("event %d: expected pitch %d, got %d", i, pitch, events[i].Note.Pitch)
		}
		if events[i].RequestID != id {
			t.Errorf("event %d: expected request %s, got %s", i, id, events[i].RequestID)
		}
	}
	if events[0].Frequency != notes.Frequency(60) {
		t.Errorf("expected frequency %v, got %v", notes.Frequency(60), events[0].Frequency)
	}

	// Wait for the last note to leave the sink
	deadline := time.Now().Add(time.Second)
	for p.Stats().Played < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	// The rest touches nothing; each sounding note makes five calls
	var freqs []int64
	for _, c := range rec.Calls() {
		if c.Op == sink.OpSetFrequency {
			freqs = append(freqs, c.Value)
		}
	}
	if len(freqs) != 2 {
		t.Errorf("expected 2 frequency changes, got %d", len(freqs))
	}
}

func TestPlayerEnqueueSequence(t *testing.T) {
	played := make(chan notes.Note, 8)
	p, _ := newTestPlayer(Config{
		OnNote: func(ev NoteEvent) { played <- ev.Note },
	})
	p.Start()
	defer p.Stop()

	seq := decps.Sequence{Volume: 7, Duration: 0, Notes: []int{1, 13}}
	if _, err := p.EnqueueSequence(seq); err != nil {
		t.Fatalf("EnqueueSequence: %v", err)
	}

	for _, pitch := range []int{72, 84} {
		select {
		case n := <-played:
			if n.Pitch != pitch {
				t.Errorf("expected pitch %d, got %d", pitch, n.Pitch)
			}
			if n.Velocity != notes.MaxVelocity {
				t.Errorf("expected full velocity, got %d", n.Velocity)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for sequence")
		}
	}
}

func TestPlayerQueueFull(t *testing.T) {
	// Not started, so nothing drains the queue
	p, _ := newTestPlayer(Config{QueueSize: 2})

	note := []notes.Note{{Pitch: 60, Velocity: 100}}
	for i := 0; i < 2; i++ {
		if _, err := p.Enqueue(note); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	if _, err := p.Enqueue(note); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}

	stats := p.Stats()
	if stats.Requests != 2 || stats.Rejected != 1 || stats.Queued != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestPlayerStopInterruptsLongNote(t *testing.T) {
	started := make(chan struct{}, 1)
	p, rec := newTestPlayer(Config{
		OnNote: func(NoteEvent) { started <- struct{}{} },
	})
	p.Start()

	if _, err := p.Enqueue([]notes.Note{
		{Pitch: 69, Velocity: 127, Duration: 10 * time.Second},
		{Pitch: 70, Velocity: 127, Duration: 10 * time.Second},
	}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	<-started
	start := time.Now()
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("expected Stop to cut the note short, took %v", elapsed)
	}

	select {
	case <-p.Done():
	default:
		t.Error("expected controller to have exited")
	}

	if !rec.Closed() {
		t.Error("expected sink closed after Stop")
	}

	// The second note never started
	if played := p.Stats().Played; played != 1 {
		t.Errorf("expected 1 note played, got %d", played)
	}
}

func TestPlayerEnqueueAfterStop(t *testing.T) {
	p, _ := newTestPlayer(Config{})
	p.Start()

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if _, err := p.Enqueue([]notes.Note{{Pitch: 60}}); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}

func TestPlayerStopIdempotent(t *testing.T) {
	p, rec := newTestPlayer(Config{})
	p.Start()

	for i := 0; i < 3; i++ {
		if err := p.Stop(); err != nil {
			t.Errorf("stop %d: %v", i, err)
		}
	}

	if !rec.Closed() {
		t.Error("expected sink closed")
	}
}

func TestPlayerStopWithoutStart(t *testing.T) {
	p, rec := newTestPlayer(Config{CloseTimeout: 50 * time.Millisecond})

	start := time.Now()
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 40*time.Millisecond {
		t.Errorf("expected Stop without Start to return at once, took %v", elapsed)
	}
	if !rec.Closed() {
		t.Error("expected sink closed")
	}
}
