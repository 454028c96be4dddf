// ABOUTME: Wavetable package providing the fixed tone waveform
// ABOUTME: Defines the 16-sample triangle cycle looped for every note
// Package wavetable provides the single waveform used to synthesize notes.
//
// The table holds one cycle of a triangle wave as unsigned 8-bit PCM. A sink
// loops the table at a playback rate of Size times the audible frequency, so
// one traversal of the table is one cycle of the tone.
//
// Example:
//
//	table := wavetable.Triangle()
//	v := table.Float(3) // 0.7421875
package wavetable
