//go:build !seatd

package seat

// Policy names the acquisition policy compiled into this binary.
const Policy = "direct"

// NewDefault opens the acquirer selected at build time.
func NewDefault(seatName string) (Acquirer, error) {
	return NewDirect(seatName), nil
}
