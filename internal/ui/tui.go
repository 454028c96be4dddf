// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the channels it shares with the player
package ui

import (
	"time"

	"github.com/Resonate-Protocol/resonate-notes/pkg/notes"
	tea "github.com/charmbracelet/bubbletea"
)

// NoteControl carries notes played from the keyboard and the quit request
type NoteControl struct {
	Notes chan notes.Note
	Quit  chan QuitMsg
}

// NewNoteControl creates a new note control handler
func NewNoteControl() *NoteControl {
	return &NoteControl{
		Notes: make(chan notes.Note, 16),
		Quit:  make(chan QuitMsg, 1),
	}
}

// NewModel creates a new TUI model
func NewModel(ctrl *NoteControl) Model {
	return Model{
		baseNote:     defaultBaseNote,
		velocity:     defaultVelocity,
		noteDuration: 250 * time.Millisecond,
		ctrl:         ctrl,
	}
}

// Run creates the TUI program; the caller starts it with Run
func Run(ctrl *NoteControl) *tea.Program {
	return tea.NewProgram(NewModel(ctrl), tea.WithAltScreen())
}
