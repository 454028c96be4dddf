// ABOUTME: Tests for DECPS parsing and playback
// ABOUTME: Verifies parameter clamping, note mapping, extraction and cancellation
package decps

import (
	"errors"
	"testing"
	"time"

	"github.com/Resonate-Protocol/resonate-notes/pkg/notes"
	"github.com/Resonate-Protocol/resonate-notes/pkg/sink"
)

func TestParse(t *testing.T) {
	seq, err := Parse("\x1b[7;8;1;5;8,~")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if seq.Volume != 7 || seq.Duration != 8 {
		t.Errorf("expected volume 7 duration 8, got %d %d", seq.Volume, seq.Duration)
	}
	if len(seq.Notes) != 3 || seq.Notes[0] != 1 || seq.Notes[1] != 5 || seq.Notes[2] != 8 {
		t.Errorf("unexpected notes: %v", seq.Notes)
	}
}

func TestParseVariants(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Sequence
		wantErr  bool
	}{
		{"8-bit CSI", "\x9b3;4;1,~", Sequence{Volume: 3, Duration: 4, Notes: []int{1}}, false},
		{"unicode CSI", "\u009b3;4;1,~", Sequence{Volume: 3, Duration: 4, Notes: []int{1}}, false},
		{"defaults", "\x1b[;;2,~", Sequence{Volume: 0, Duration: 0, Notes: []int{2}}, false},
		{"no params", "\x1b[,~", Sequence{Notes: []int{0}}, false},
		{"no notes", "\x1b[7;8,~", Sequence{Volume: 7, Duration: 8, Notes: []int{0}}, false},
		{"clamped", "\x1b[9;300;30;99999999999999999999,~", Sequence{Volume: 7, Duration: 255, Notes: []int{25, 25}}, false},
		{"wrong final", "\x1b[7;8;1~", Sequence{}, true},
		{"no CSI", "7;8;1,~", Sequence{}, true},
		{"junk param", "\x1b[7;x;1,~", Sequence{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, err := Parse(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrNotDECPS) {
					t.Errorf("expected ErrNotDECPS, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if !sameSequence(seq, tt.expected) {
				t.Errorf("expected %+v, got %+v", tt.expected, seq)
			}
		})
	}
}

func TestVelocityMapping(t *testing.T) {
	tests := []struct {
		volume   int
		expected int
	}{
		{0, 0},
		{1, 18},
		{4, 72},
		{7, 127},
	}

	for _, tt := range tests {
		seq := Sequence{Volume: tt.volume}
		if got := seq.Velocity(); got != tt.expected {
			t.Errorf("volume=%d: expected velocity %d, got %d", tt.volume, tt.expected, got)
		}
	}
}

func TestNoteDuration(t *testing.T) {
	seq := Sequence{Duration: 32}
	if got := seq.NoteDuration(); got != time.Second {
		t.Errorf("expected 1s, got %v", got)
	}

	seq = Sequence{Duration: 1}
	if got := seq.NoteDuration(); got != 31250*time.Microsecond {
		t.Errorf("expected 31.25ms, got %v", got)
	}
}

func TestExpand(t *testing.T) {
	seq := Sequence{Volume: 7, Duration: 4, Notes: []int{1, 0, 25}}
	out := seq.Expand()

	expected := []notes.Note{
		{Pitch: 72, Velocity: 127, Duration: 125 * time.Millisecond},
		{Pitch: 71, Velocity: 0, Duration: 125 * time.Millisecond},
		{Pitch: 96, Velocity: 127, Duration: 125 * time.Millisecond},
	}
	if len(out) != len(expected) {
		t.Fatalf("expected %d notes, got %d", len(expected), len(out))
	}
	for i := range expected {
		if out[i] != expected[i] {
			t.Errorf("note %d: expected %+v, got %+v", i, expected[i], out[i])
		}
	}

	if seq.Length() != 375*time.Millisecond {
		t.Errorf("expected length 375ms, got %v", seq.Length())
	}
}

func TestExpandWithoutNotesRests(t *testing.T) {
	seq, err := Parse("\x1b[7;8,~")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	out := seq.Expand()
	if len(out) != 1 {
		t.Fatalf("expected a single rest, got %+v", out)
	}
	expected := notes.Note{Pitch: NoteBase, Velocity: 0, Duration: 250 * time.Millisecond}
	if out[0] != expected {
		t.Errorf("expected %+v, got %+v", expected, out[0])
	}
	if seq.Length() != 250*time.Millisecond {
		t.Errorf("expected length 250ms, got %v", seq.Length())
	}
}

func TestExpandClampsHandBuiltSequence(t *testing.T) {
	seq := Sequence{Volume: 12, Duration: 400, Notes: []int{-3, 40}}
	out := seq.Expand()

	expected := []notes.Note{
		{Pitch: NoteBase, Velocity: 0, Duration: 255 * DurationUnit},
		{Pitch: NoteBase + MaxNote, Velocity: notes.MaxVelocity, Duration: 255 * DurationUnit},
	}
	if len(out) != len(expected) {
		t.Fatalf("expected %d notes, got %d", len(expected), len(out))
	}
	for i := range expected {
		if out[i] != expected[i] {
			t.Errorf("note %d: expected %+v, got %+v", i, expected[i], out[i])
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	seq := Sequence{Volume: 5, Duration: 16, Notes: []int{1, 3, 5}}

	if got := seq.String(); got != "\x1b[5;16;1;3;5,~" {
		t.Errorf("unexpected encoding %q", got)
	}

	parsed, err := Parse(seq.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !sameSequence(parsed, seq) {
		t.Errorf("expected %+v, got %+v", seq, parsed)
	}
}

func TestExtract(t *testing.T) {
	input := "hello \x1b[1mbold\x1b[0m \x1b[7;4;1;3,~ text \x1b[2J \x9b2;2;5,~ \x1b[3;1;2"

	seqs := Extract(input)
	if len(seqs) != 2 {
		t.Fatalf("expected 2 sequences, got %d: %+v", len(seqs), seqs)
	}
	if seqs[0].Volume != 7 || len(seqs[0].Notes) != 2 {
		t.Errorf("unexpected first sequence %+v", seqs[0])
	}
	if seqs[1].Volume != 2 || len(seqs[1].Notes) != 1 || seqs[1].Notes[0] != 5 {
		t.Errorf("unexpected second sequence %+v", seqs[1])
	}

	if got := Extract("plain text"); len(got) != 0 {
		t.Errorf("expected no sequences, got %+v", got)
	}
}

func TestPlay(t *testing.T) {
	rec := sink.NewRecorder()
	engine := notes.New(rec)
	engine.Initialize()

	seq := Sequence{Volume: 7, Duration: 0, Notes: []int{1, 0, 13}}
	if err := Play(engine, seq); err != nil {
		t.Fatalf("Play: %v", err)
	}

	// Two audible notes of five calls each, the rest touches nothing
	calls := rec.Calls()
	if len(calls) != 10 {
		t.Fatalf("expected 10 sink calls, got %d", len(calls))
	}
	if calls[0].Value != int64(notes.Frequency(72)) {
		t.Errorf("expected C5 rate, got %d", calls[0].Value)
	}
	if calls[5].Value != int64(notes.Frequency(84)) {
		t.Errorf("expected C6 rate, got %d", calls[5].Value)
	}
}

func TestPlayStopsOnShutdown(t *testing.T) {
	engine := notes.New(sink.NewRecorder())
	engine.Initialize()

	go func() {
		time.Sleep(30 * time.Millisecond)
		engine.Shutdown()
	}()

	// 8 notes of 250ms each
	seq := Sequence{Volume: 7, Duration: 8, Notes: []int{1, 2, 3, 4, 5, 6, 7, 8}}

	start := time.Now()
	err := Play(engine, seq)
	elapsed := time.Since(start)

	if !errors.Is(err, notes.ErrPlaybackCancelled) {
		t.Errorf("expected ErrPlaybackCancelled, got %v", err)
	}
	if elapsed > time.Second {
		t.Errorf("expected playback to stop early, took %v", elapsed)
	}
}

type countingController struct {
	locks, unlocks, played int
	failAt                 int
}

func (c *countingController) Lock() { c.locks++ }

func (c *countingController) Unlock() error {
	c.unlocks++
	if c.unlocks == c.failAt {
		return notes.ErrPlaybackCancelled
	}
	return nil
}

func (c *countingController) PlayNote(pitch, velocity int, duration time.Duration) {
	c.played++
}

func TestPlayLocksPerNote(t *testing.T) {
	c := &countingController{failAt: 2}
	seq := Sequence{Volume: 1, Notes: []int{1, 2, 3}}

	err := Play(c, seq)
	if !errors.Is(err, notes.ErrPlaybackCancelled) {
		t.Errorf("expected cancellation, got %v", err)
	}
	if c.locks != 2 || c.unlocks != 2 || c.played != 2 {
		t.Errorf("expected 2 lock/play/unlock rounds, got %d/%d/%d", c.locks, c.played, c.unlocks)
	}
}

func sameSequence(a, b Sequence) bool {
	if a.Volume != b.Volume || a.Duration != b.Duration || len(a.Notes) != len(b.Notes) {
		return false
	}
	for i := range a.Notes {
		if a.Notes[i] != b.Notes[i] {
			return false
		}
	}
	return true
}
