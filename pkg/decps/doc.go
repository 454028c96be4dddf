// ABOUTME: DECPS package for VT "Play Sound" control sequences
// ABOUTME: Parses CSI Pv;Pd;Pn... ,~ and converts it to engine notes
// Package decps handles the DECPS (Play Sound) control sequence.
//
// A sequence carries a volume (0-7), a duration in 1/32 s units (0-255)
// and any number of notes (0-25, where 1 is C5 and 0 is a rest):
//
//	ESC [ Pv ; Pd ; Pn1 ; ... ; Pnk , ~
//
// Example:
//
//	seq, err := decps.Parse("\x1b[7;8;1;5;8,~") // C5 E5 G5 at full volume
//	if err != nil {
//	    return err
//	}
//	err = decps.Play(engine, seq)
package decps
