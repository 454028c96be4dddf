// ABOUTME: Tests for notes-send argument parsing
// ABOUTME: Covers the pitch:velocity:ms note syntax and DECPS parameter shorthand
package main

import (
	"testing"
)

func TestParseNotes(t *testing.T) {
	specs, err := parseNotes("60:100:250, 64, 67:80")
	if err != nil {
		t.Fatalf("parseNotes: %v", err)
	}

	if len(specs) != 3 {
		t.Fatalf("expected 3 notes, got %d", len(specs))
	}
	if specs[0].Pitch != 60 || specs[0].Velocity != 100 || specs[0].DurationMs != 250 {
		t.Errorf("unexpected first note %+v", specs[0])
	}
	if specs[1].Velocity != 127 || specs[1].DurationMs != 250 {
		t.Errorf("expected defaults on second note, got %+v", specs[1])
	}
	if specs[2].Velocity != 80 {
		t.Errorf("expected velocity 80, got %d", specs[2].Velocity)
	}
}

func TestParseNotesErrors(t *testing.T) {
	tests := []string{
		"",
		"abc",
		"60:200",
		"60:100:99999999",
		"60:1:2:3",
	}

	for _, input := range tests {
		if _, err := parseNotes(input); err == nil {
			t.Errorf("expected error for %q", input)
		}
	}
}

func TestParseDECPS(t *testing.T) {
	tests := []string{"7;8;1;5;8", "\x1b[7;8;1;5;8,~", "7;8;1;5;8,~"}

	for _, input := range tests {
		seq, err := parseDECPS(input)
		if err != nil {
			t.Errorf("%q: %v", input, err)
			continue
		}
		if seq.Volume != 7 || seq.Duration != 8 || len(seq.Notes) != 3 {
			t.Errorf("%q: unexpected sequence %+v", input, seq)
		}
	}

	if _, err := parseDECPS("x;y"); err == nil {
		t.Error("expected error for non-numeric parameters")
	}
}
