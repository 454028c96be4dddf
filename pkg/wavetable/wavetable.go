// ABOUTME: Fixed 8-bit triangle wavetable
// ABOUTME: Provides immutable sample lookup and PCM conversion helpers
package wavetable

// Size is the number of samples in one cycle of the table
const Size = 16

// Midpoint is the unsigned 8-bit value representing silence
const Midpoint = 128

var triangle = [Size]uint8{128, 159, 191, 223, 255, 223, 191, 159, 128, 96, 64, 32, 0, 32, 64, 96}

// Table is one cycle of unsigned 8-bit PCM
type Table [Size]uint8

// Triangle returns the triangle-like cycle used for every note
func Triangle() Table {
	return triangle
}

// At returns the raw sample at index, wrapping around the cycle
func (t Table) At(index int) uint8 {
	index %= Size
	if index < 0 {
		index += Size
	}
	return t[index]
}

// Float returns the sample at index scaled to [-1, 1)
func (t Table) Float(index int) float32 {
	return (float32(t.At(index)) - Midpoint) / Midpoint
}

// Samples returns a copy of the table as a slice
func (t Table) Samples() []uint8 {
	out := make([]uint8, Size)
	copy(out, t[:])
	return out
}
