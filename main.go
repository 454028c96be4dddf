// ABOUTME: Entry point for the Resonate Notes player
// ABOUTME: Parses CLI flags, opens the audio device and runs the note player
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/resonate-notes/internal/app"
	"github.com/Resonate-Protocol/resonate-notes/internal/protocol"
	"github.com/Resonate-Protocol/resonate-notes/internal/server"
	"github.com/Resonate-Protocol/resonate-notes/internal/ui"
	"github.com/Resonate-Protocol/resonate-notes/internal/version"
	"github.com/Resonate-Protocol/resonate-notes/pkg/decps"
	"github.com/Resonate-Protocol/resonate-notes/pkg/notes"
	"github.com/Resonate-Protocol/resonate-notes/pkg/sink"
	tea "github.com/charmbracelet/bubbletea"
)

var (
	backend     = flag.String("backend", sink.BackendMalgo, "Audio backend: malgo, oto or null")
	sampleRate  = flag.Int("sample-rate", 0, "Output sample rate in Hz (default: device native)")
	channels    = flag.Int("channels", 0, "Output channel count (default: device native)")
	bufferMs    = flag.Int("buffer-ms", 20, "Device buffer period in milliseconds")
	port        = flag.Int("port", 8928, "Remote control WebSocket port")
	name        = flag.String("name", "", "Player friendly name (default: hostname-resonate-notes)")
	noMDNS      = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	noServer    = flag.Bool("no-server", false, "Disable the remote control server")
	queueSize   = flag.Int("queue", 64, "Maximum pending requests")
	logFile     = flag.String("log-file", "resonate-notes.log", "Log file path")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	decpsSeq    = flag.String("decps", "", "Play one DECPS sequence (e.g. '7;8;1;5;8') and exit")
	readStdin   = flag.Bool("stdin", false, "Play every DECPS sequence found on stdin and exit")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	oneShot := *decpsSeq != "" || *readStdin
	useTUI := !*noTUI && !oneShot

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	playerName := *name
	if playerName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		playerName = fmt.Sprintf("%s-resonate-notes", hostname)
	}

	log.Printf("Starting %s: %s", version.String(), playerName)

	dev, err := sink.Open(sink.Config{
		Backend:    *backend,
		SampleRate: *sampleRate,
		Channels:   *channels,
		BufferSize: time.Duration(*bufferMs) * time.Millisecond,
	})
	if err != nil {
		log.Fatalf("Failed to open audio output: %v", err)
	}
	engine := notes.New(dev)

	if oneShot {
		if err := playOnce(engine); err != nil {
			log.Fatalf("Playback failed: %v", err)
		}
		return
	}

	runPlayer(engine, dev.Format(), playerName, useTUI)
}

// playOnce plays sequences from the command line or stdin on the calling
// goroutine while a signal handler can cut playback short.
func playOnce(engine *notes.Engine) error {
	var seqs []decps.Sequence

	if *decpsSeq != "" {
		seq, err := parseSequenceFlag(*decpsSeq)
		if err != nil {
			return err
		}
		seqs = append(seqs, seq)
	}

	if *readStdin {
		data, err := io.ReadAll(bufio.NewReader(os.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		found := decps.Extract(string(data))
		log.Printf("Found %d DECPS sequences on stdin", len(found))
		seqs = append(seqs, found...)
	}

	engine.Initialize()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		if sig, ok := <-sigChan; ok {
			log.Printf("Received %v signal, stopping playback", sig)
			engine.Shutdown()
		}
	}()

	var playErr error
	for _, seq := range seqs {
		log.Printf("Playing %s (%d notes, %v)", strings.TrimPrefix(seq.String(), "\x1b"), len(seq.Notes), seq.Length())
		if err := decps.Play(engine, seq); err != nil {
			if !errors.Is(err, notes.ErrPlaybackCancelled) {
				playErr = err
			}
			break
		}
	}

	if err := engine.Close(); err != nil {
		log.Printf("Error closing engine: %v", err)
	}
	return playErr
}

// parseSequenceFlag accepts a full DECPS sequence or just its parameters
func parseSequenceFlag(s string) (decps.Sequence, error) {
	if seq, err := decps.Parse(s); err == nil {
		return seq, nil
	}

	seq, err := decps.Parse("\x1b[" + strings.TrimSuffix(s, ",~") + ",~")
	if err != nil {
		return decps.Sequence{}, fmt.Errorf("invalid -decps value %q: %w", s, err)
	}
	return seq, nil
}

// runPlayer serves notes from the keyboard and the network until quit
func runPlayer(engine *notes.Engine, format sink.Format, playerName string, useTUI bool) {
	var tuiProg *tea.Program
	var noteCtrl *ui.NoteControl

	if useTUI {
		noteCtrl = ui.NewNoteControl()
		tuiProg = ui.Run(noteCtrl)
		go func() {
			if _, err := tuiProg.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
	}

	updateTUI := func(msg tea.Msg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	player := app.New(app.Config{
		QueueSize: *queueSize,
		OnNote: func(ev app.NoteEvent) {
			if *debug || !useTUI {
				log.Printf("Note %s pitch=%d velocity=%d %v (%.0fHz, %.0fcB)",
					ev.Note.Name(), ev.Note.Pitch, ev.Note.Velocity, ev.Note.Duration, notes.ToneFrequency(ev.Frequency), ev.Volume)
			}
			updateTUI(ui.NoteMsg{Note: ev.Note, Frequency: ev.Frequency, Volume: ev.Volume})
		},
	}, engine)
	player.Start()

	status := ui.StatusMsg{Backend: *backend, Format: format.String()}

	var srv *server.Server
	if !*noServer {
		srv = server.New(server.Config{
			Port:       *port,
			Name:       playerName,
			EnableMDNS: !*noMDNS,
			Debug:      *debug,
		}, player)

		go func() {
			if err := srv.Start(); err != nil {
				log.Printf("Server error: %v", err)
			}
		}()
		status.Server = fmt.Sprintf(":%d%s", *port, protocol.Path)
	}
	updateTUI(status)

	if noteCtrl != nil {
		go handleNoteControl(player, noteCtrl)
		go statsUpdateLoop(player, updateTUI)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var quitChan <-chan ui.QuitMsg
	if noteCtrl != nil {
		quitChan = noteCtrl.Quit
	}

	select {
	case <-quitChan:
		log.Printf("Received quit signal from TUI")
	case <-sigChan:
		log.Printf("Shutdown signal received")
	case <-player.Done():
		log.Printf("Note player exited")
	}

	shutdown := true
	updateTUI(ui.StatusMsg{Shutdown: &shutdown})

	if srv != nil {
		srv.Stop()
	}
	if err := player.Stop(); err != nil {
		log.Printf("Error stopping player: %v", err)
	}
	if tuiProg != nil {
		tuiProg.Quit()
	}

	log.Printf("Player stopped")
}

// handleNoteControl queues notes played from the TUI keyboard
func handleNoteControl(player *app.Player, ctrl *ui.NoteControl) {
	for {
		select {
		case n := <-ctrl.Notes:
			if _, err := player.Enqueue([]notes.Note{n}); err != nil {
				log.Printf("Keyboard note dropped: %v", err)
			}
		case <-player.Done():
			return
		}
	}
}

// statsUpdateLoop periodically updates TUI with playback statistics
func statsUpdateLoop(player *app.Player, updateTUI func(tea.Msg)) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := player.Stats()
			updateTUI(ui.StatusMsg{
				Played:   stats.Played,
				Queued:   stats.Queued,
				Rejected: stats.Rejected,
			})
		case <-player.Done():
			return
		}
	}
}
