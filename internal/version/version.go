// ABOUTME: Version and product identification constants
// ABOUTME: Reported in the handshake, the TUI header and -version output
package version

const (
	// Version is the release version
	Version = "0.1.0"

	// Product is the human-readable product name
	Product = "Resonate Notes"

	// Manufacturer identifies who ships the build
	Manufacturer = "Resonate"
)

// String returns "Product Version"
func String() string {
	return Product + " " + Version
}
