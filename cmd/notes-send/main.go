// ABOUTME: Entry point for the notes-send control tool
// ABOUTME: Finds a player via mDNS or -server and queues notes or DECPS sequences on it
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Resonate-Protocol/resonate-notes/internal/client"
	"github.com/Resonate-Protocol/resonate-notes/internal/discovery"
	"github.com/Resonate-Protocol/resonate-notes/internal/protocol"
	"github.com/Resonate-Protocol/resonate-notes/pkg/decps"
	"github.com/google/uuid"
)

var (
	serverAddr = flag.String("server", "", "Player address host:port (skip mDNS)")
	name       = flag.String("name", "notes-send", "Client friendly name")
	notesFlag  = flag.String("notes", "", "Notes as pitch:velocity:ms, comma separated (e.g. 60:100:250,64:100:250)")
	decpsFlag  = flag.String("decps", "", "DECPS parameters (e.g. '7;8;1;5;8') or a full sequence")
	discover   = flag.Duration("discover-timeout", 5*time.Second, "How long to browse for a player")
	timeout    = flag.Duration("timeout", 5*time.Second, "Request timeout")
)

func main() {
	flag.Parse()

	if *notesFlag == "" && *decpsFlag == "" {
		fmt.Fprintln(os.Stderr, "one of -notes or -decps is required")
		flag.Usage()
		os.Exit(2)
	}

	addr := *serverAddr
	if addr == "" {
		log.Printf("Browsing for players...")
		ctx, cancel := context.WithTimeout(context.Background(), *discover)
		player, err := discovery.FindFirst(ctx)
		cancel()
		if err != nil {
			log.Fatalf("Discovery failed: %v", err)
		}
		addr = player.URL()
		log.Printf("Found player %s at %s", player.Name, addr)
	}

	c := client.NewClient(client.Config{
		ServerAddr: addr,
		ClientID:   uuid.New().String(),
		Name:       *name,
		Timeout:    *timeout,
	})
	if err := c.Connect(); err != nil {
		log.Fatalf("Connection failed: %v", err)
	}
	defer c.Close()

	if *notesFlag != "" {
		specs, err := parseNotes(*notesFlag)
		if err != nil {
			log.Fatalf("Invalid -notes: %v", err)
		}
		report(c.PlayNotes(specs))
	}

	if *decpsFlag != "" {
		seq, err := parseDECPS(*decpsFlag)
		if err != nil {
			log.Fatalf("Invalid -decps: %v", err)
		}
		report(c.PlayDECPS(seq))
	}
}

func report(queued protocol.Queued, err error) {
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	log.Printf("Queued %d notes (%dms) as request %s", queued.Count, queued.DurationMs, queued.RequestID)
}

// parseNotes parses "pitch:velocity:ms" triples. Velocity and duration
// default to 127 and 250ms when omitted.
func parseNotes(s string) ([]protocol.NoteSpec, error) {
	var specs []protocol.NoteSpec

	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}

		parts := strings.Split(field, ":")
		if len(parts) > 3 {
			return nil, fmt.Errorf("note %q: too many fields", field)
		}

		values := []int{0, 127, 250}
		for i, p := range parts {
			v, err := strconv.Atoi(p)
			if err != nil {
				return nil, fmt.Errorf("note %q: %w", field, err)
			}
			values[i] = v
		}

		spec := protocol.NoteSpec{Pitch: values[0], Velocity: values[1], DurationMs: values[2]}
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("note %q: %w", field, err)
		}
		specs = append(specs, spec)
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("no notes given")
	}
	return specs, nil
}

// parseDECPS accepts a full sequence or just its parameters
func parseDECPS(s string) (decps.Sequence, error) {
	if seq, err := decps.Parse(s); err == nil {
		return seq, nil
	}
	return decps.Parse("\x1b[" + strings.TrimSuffix(s, ",~") + ",~")
}
