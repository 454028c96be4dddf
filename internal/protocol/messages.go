// ABOUTME: Note control protocol message type definitions
// ABOUTME: Defines structs for the handshake, note requests and replies
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Resonate-Protocol/resonate-notes/pkg/notes"
)

// Protocol constants
const (
	Version = 1

	// Path is the WebSocket endpoint served by players
	Path = "/notes"

	// MaxDurationMs bounds a single note
	MaxDurationMs = 60000
)

// Message types
const (
	TypeClientHello = "client/hello"
	TypeServerHello = "server/hello"
	TypePlayNotes   = "notes/play"
	TypePlayDECPS   = "notes/decps"
	TypeQueued      = "notes/queued"
	TypeError       = "server/error"
)

var (
	// ErrVelocityRange is returned for velocities outside [0, 127]
	ErrVelocityRange = errors.New("velocity out of range")
	// ErrDurationRange is returned for durations outside [0, MaxDurationMs]
	ErrDurationRange = errors.New("duration out of range")
)

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ClientHello is sent by clients to initiate the handshake
type ClientHello struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
}

// ServerHello is the server's response to client/hello
type ServerHello struct {
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
}

// NoteSpec is a note on the wire
type NoteSpec struct {
	Pitch      int `json:"pitch"`
	Velocity   int `json:"velocity"`
	DurationMs int `json:"duration_ms"`
}

// PlayNotes asks the player to queue notes in order
type PlayNotes struct {
	Notes []NoteSpec `json:"notes"`
}

// PlayDECPS asks the player to queue a DECPS sequence
type PlayDECPS struct {
	Sequence string `json:"sequence"`
}

// Queued acknowledges an accepted request
type Queued struct {
	RequestID  string `json:"request_id"`
	Count      int    `json:"count"`
	DurationMs int64  `json:"duration_ms"`
}

// Error reports a rejected request
type Error struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Validate checks the note against engine limits
func (n NoteSpec) Validate() error {
	if n.Velocity < 0 || n.Velocity > notes.MaxVelocity {
		return fmt.Errorf("%w: %d", ErrVelocityRange, n.Velocity)
	}
	if n.DurationMs < 0 || n.DurationMs > MaxDurationMs {
		return fmt.Errorf("%w: %dms", ErrDurationRange, n.DurationMs)
	}
	return nil
}

// Note converts the wire form to an engine note
func (n NoteSpec) Note() notes.Note {
	return notes.Note{
		Pitch:    n.Pitch,
		Velocity: n.Velocity,
		Duration: time.Duration(n.DurationMs) * time.Millisecond,
	}
}

// SpecFromNote converts an engine note to its wire form
func SpecFromNote(n notes.Note) NoteSpec {
	return NoteSpec{
		Pitch:      n.Pitch,
		Velocity:   n.Velocity,
		DurationMs: int(n.Duration / time.Millisecond),
	}
}

// DecodePayload re-decodes a generically unmarshaled payload into v
func DecodePayload(payload interface{}, v interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return nil
}
