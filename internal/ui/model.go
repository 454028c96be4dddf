// ABOUTME: Bubbletea model for the note player TUI
// ABOUTME: Shows engine status and turns the keyboard into a one-octave instrument
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Resonate-Protocol/resonate-notes/internal/version"
	"github.com/Resonate-Protocol/resonate-notes/pkg/notes"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	defaultBaseNote = 60
	defaultVelocity = 100
	velocityStep    = 8
	minBaseNote     = 12
	maxBaseNote     = 108
)

// keyOffsets maps the home row to semitones above the base note
var keyOffsets = map[string]int{
	"a": 0, "w": 1, "s": 2, "e": 3, "d": 4, "f": 5, "t": 6,
	"g": 7, "y": 8, "h": 9, "u": 10, "j": 11, "k": 12,
}

// Model represents the TUI state
type Model struct {
	// Device
	backend string
	format  string
	server  string

	// Last note
	lastNote  *notes.Note
	frequency float64
	volume    float64

	// Keyboard
	baseNote     int
	velocity     int
	noteDuration time.Duration

	// Stats
	played   int64
	queued   int
	rejected int64
	shutdown bool

	ctrl *NoteControl

	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	case NoteMsg:
		n := msg.Note
		m.lastNote = &n
		m.frequency = msg.Frequency
		m.volume = msg.Volume
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderNote()
	s += m.renderKeyboard()
	s += m.renderStats()
	s += m.renderHelp()

	return s
}

func (m Model) renderHeader() string {
	device := m.backend
	if m.format != "" {
		device = fmt.Sprintf("%s %s", m.backend, m.format)
	}

	listen := "disabled"
	if m.server != "" {
		listen = m.server
	}

	return fmt.Sprintf(`┌─ %-51s┐
│ Output: %-45s │
│ Remote: %-45s │
├──────────────────────────────────────────────────────┤
`, version.String()+" ", truncate(device, 45), truncate(listen, 45))
}

func (m Model) renderNote() string {
	if m.lastNote == nil {
		return "│ No notes played yet                                  │\n"
	}

	n := m.lastNote
	if n.Rest() {
		return fmt.Sprintf("│ Last:   rest (%v)%-*s │\n", n.Duration, 37-len(n.Duration.String()), "")
	}

	line := fmt.Sprintf("%s (%d) vel %d  %.0fHz  %.0fcB",
		n.Name(), n.Pitch, n.Velocity, notes.ToneFrequency(m.frequency), m.volume)
	return fmt.Sprintf("│ Last:   %-45s │\n", truncate(line, 45))
}

func (m Model) renderKeyboard() string {
	velocityBar := renderBar(m.velocity, notes.MaxVelocity, 10)

	return fmt.Sprintf("│                                                      │\n"+
		"│ Octave: %-4s Velocity: [%s] %-3d%-11s │\n",
		notes.PitchName(m.baseNote), velocityBar, m.velocity, "")
}

func (m Model) renderStats() string {
	state := "running"
	if m.shutdown {
		state = "shutting down"
	}

	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ %-52s │
│                                                      │
`, fmt.Sprintf("Played: %d  Queued: %d  Rejected: %d  %s", m.played, m.queued, m.rejected, state))
}

func (m Model) renderHelp() string {
	return `│ a-k:Play  z/x:Octave  ↑/↓:Velocity  q:Quit           │
└──────────────────────────────────────────────────────┘
`
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if offset, ok := keyOffsets[key]; ok {
		m.sendNote(notes.Note{
			Pitch:    m.baseNote + offset,
			Velocity: m.velocity,
			Duration: m.noteDuration,
		})
		return m, nil
	}

	switch key {
	case "q", "ctrl+c":
		if m.ctrl != nil {
			select {
			case m.ctrl.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "z":
		if m.baseNote-12 >= minBaseNote {
			m.baseNote -= 12
		}
	case "x":
		if m.baseNote+12 <= maxBaseNote {
			m.baseNote += 12
		}
	case "up":
		m.velocity = min(m.velocity+velocityStep, notes.MaxVelocity)
	case "down":
		m.velocity = max(m.velocity-velocityStep, 0)
	}

	return m, nil
}

// sendNote hands a note to the player without blocking the UI
func (m Model) sendNote(n notes.Note) {
	if m.ctrl == nil {
		return
	}
	select {
	case m.ctrl.Notes <- n:
	default:
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Backend != "" {
		m.backend = msg.Backend
	}
	if msg.Format != "" {
		m.format = msg.Format
	}
	if msg.Server != "" {
		m.server = msg.Server
	}
	if msg.Played != 0 || msg.Queued != 0 || msg.Rejected != 0 {
		m.played = msg.Played
		m.queued = msg.Queued
		m.rejected = msg.Rejected
	}
	if msg.Shutdown != nil {
		m.shutdown = *msg.Shutdown
	}
}

// StatusMsg updates TUI state
type StatusMsg struct {
	Backend  string
	Format   string
	Server   string
	Played   int64
	Queued   int
	Rejected int64
	Shutdown *bool
}

// NoteMsg reports a note the player is about to sound
type NoteMsg struct {
	Note      notes.Note
	Frequency float64
	Volume    float64
}

// QuitMsg is sent on NoteControl.Quit when the user quits
type QuitMsg struct{}

func renderBar(value, max, width int) string {
	filled := (value * width) / max
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
