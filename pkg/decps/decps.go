// ABOUTME: DECPS sequence parsing, encoding and note conversion
// ABOUTME: Maps VT volume, duration and note parameters onto MIDI-style notes
package decps

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Resonate-Protocol/resonate-notes/pkg/notes"
)

const (
	// MaxVolume is the loudest DECPS volume
	MaxVolume = 7
	// MaxDuration is the longest DECPS duration in DurationUnit steps
	MaxDuration = 255
	// MaxNote is the highest DECPS note (C7)
	MaxNote = 25
	// NoteBase is added to a DECPS note to get its pitch (1 -> 72 = C5)
	NoteBase = 71
	// DurationUnit is one step of the DECPS duration parameter
	DurationUnit = time.Second / 32
)

const (
	csi7  = "\x1b["
	csi8  = "\x9b"
	csiU  = "\u009b"
	final = ",~"
)

// ErrNotDECPS is returned when input is not a DECPS sequence
var ErrNotDECPS = errors.New("not a DECPS sequence")

// Sequence holds clamped DECPS parameters
type Sequence struct {
	Volume   int
	Duration int
	Notes    []int
}

// FromParams builds a sequence from raw numeric parameters. Missing volume
// or duration default to 0, a missing note list becomes a single rest and
// every value is clamped to its range.
func FromParams(params []int) Sequence {
	param := func(i int) int {
		if i < len(params) {
			return params[i]
		}
		return 0
	}

	seq := Sequence{
		Volume:   clampParam(param(0), MaxVolume),
		Duration: clampParam(param(1), MaxDuration),
	}
	// An empty note list counts as one default note, which is a rest
	if len(params) <= 2 {
		seq.Notes = []int{0}
		return seq
	}

	seq.Notes = make([]int, 0, len(params)-2)
	for _, n := range params[2:] {
		seq.Notes = append(seq.Notes, clampParam(n, MaxNote))
	}

	return seq
}

// Parse decodes a single complete DECPS sequence
func Parse(s string) (Sequence, error) {
	body, ok := cutCSI(s)
	if !ok {
		return Sequence{}, ErrNotDECPS
	}
	body, ok = strings.CutSuffix(body, final)
	if !ok {
		return Sequence{}, ErrNotDECPS
	}

	params, err := parseParams(body)
	if err != nil {
		return Sequence{}, err
	}
	return FromParams(params), nil
}

// Extract returns every well-formed DECPS sequence found in s, in order.
// Other control sequences and text are skipped.
func Extract(s string) []Sequence {
	var seqs []Sequence

	for {
		start := strings.Index(s, csi7)
		prefix := len(csi7)
		if i := strings.Index(s, csi8); i >= 0 && (start < 0 || i < start) {
			start = i
			prefix = len(csi8)
		}
		if start < 0 {
			return seqs
		}

		rest := s[start+prefix:]
		end := paramsEnd(rest)
		if strings.HasPrefix(rest[end:], final) {
			if params, err := parseParams(rest[:end]); err == nil {
				seqs = append(seqs, FromParams(params))
			}
			end += len(final)
		}
		s = rest[end:]
	}
}

// Velocity maps the 0-7 volume onto 0-127
func (s Sequence) Velocity() int {
	return clampParam(s.Volume, MaxVolume) * notes.MaxVelocity / MaxVolume
}

// NoteDuration returns how long each note is held
func (s Sequence) NoteDuration() time.Duration {
	return time.Duration(clampParam(s.Duration, MaxDuration)) * DurationUnit
}

// Expand converts the sequence into engine notes. Note 0 is a rest of the
// full duration. Fields are clamped, so a hand-built Sequence expands the
// same way as a parsed one.
func (s Sequence) Expand() []notes.Note {
	velocity := s.Velocity()
	duration := s.NoteDuration()

	out := make([]notes.Note, 0, len(s.Notes))
	for _, n := range s.Notes {
		n = clampParam(n, MaxNote)
		pitch := n + NoteBase
		v := velocity
		if n == 0 {
			v = 0
		}
		out = append(out, notes.Note{Pitch: pitch, Velocity: v, Duration: duration})
	}
	return out
}

// Length returns the total playing time of the sequence
func (s Sequence) Length() time.Duration {
	return time.Duration(len(s.Notes)) * s.NoteDuration()
}

// String encodes the sequence using 7-bit CSI
func (s Sequence) String() string {
	var b strings.Builder
	b.WriteString(csi7)
	b.WriteString(strconv.Itoa(s.Volume))
	b.WriteByte(';')
	b.WriteString(strconv.Itoa(s.Duration))
	for _, n := range s.Notes {
		b.WriteByte(';')
		b.WriteString(strconv.Itoa(n))
	}
	b.WriteString(final)
	return b.String()
}

func cutCSI(s string) (string, bool) {
	for _, prefix := range []string{csi7, csiU, csi8} {
		if rest, ok := strings.CutPrefix(s, prefix); ok {
			return rest, true
		}
	}
	return s, false
}

// paramsEnd returns the length of the leading run of parameter bytes
func paramsEnd(s string) int {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && c != ';' {
			return i
		}
	}
	return len(s)
}

func parseParams(body string) ([]int, error) {
	if body == "" {
		return nil, nil
	}

	fields := strings.Split(body, ";")
	params := make([]int, len(fields))
	for i, f := range fields {
		if f == "" {
			continue
		}
		for j := 0; j < len(f); j++ {
			if f[j] < '0' || f[j] > '9' {
				return nil, fmt.Errorf("invalid parameter %q: %w", f, ErrNotDECPS)
			}
		}
		v, err := strconv.Atoi(f)
		if err != nil {
			// Digits only, so the value overflowed: saturate
			v = int(^uint(0) >> 1)
		}
		params[i] = v
	}
	return params, nil
}

func clampParam(v, limit int) int {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}
