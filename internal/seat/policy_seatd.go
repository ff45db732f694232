//go:build seatd

package seat

// Policy names the acquisition policy compiled into this binary.
const Policy = "seatd"

// NewDefault opens the acquirer selected at build time. The seat name comes
// from the session; the argument is ignored.
func NewDefault(string) (Acquirer, error) {
	return OpenSeatd("")
}
