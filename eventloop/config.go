package eventloop

import (
	"time"

	"github.com/bnema/kmsloop/internal/config"
)

// Output variants.
const (
	BackendKMS   = config.BackendKMS
	BackendFbdev = config.BackendFbdev
)

// Config selects devices and the keymap. Empty strings mean "discover" or
// "system default".
type Config struct {
	Backend string
	// Card is an explicit DRM node, skipping enumeration.
	Card string
	// Fbdev is an explicit framebuffer node.
	Fbdev string
	Seat  string

	Rules   string
	Model   string
	Layout  string
	Variant string
	Options string

	Compose bool
	// Locale selects the compose table, see config.Locale.
	Locale         string
	RepeatInterval time.Duration
}

// LoadConfig reads the configuration file and environment overrides once.
func LoadConfig() (Config, error) {
	if err := config.Init(); err != nil {
		return Config{}, err
	}
	return FromConfig(config.Get()), nil
}

// FromConfig converts the file configuration.
func FromConfig(c *config.Config) Config {
	return Config{
		Backend:        c.Display.Backend,
		Card:           c.Display.Card,
		Fbdev:          c.Display.Fbdev,
		Seat:           c.Seat.Name,
		Rules:          c.Keyboard.Rules,
		Model:          c.Keyboard.Model,
		Layout:         c.Keyboard.Layout,
		Variant:        c.Keyboard.Variant,
		Options:        c.Keyboard.Options,
		Compose:        c.Keyboard.Compose,
		Locale:         config.Locale(),
		RepeatInterval: c.Keyboard.RepeatInterval,
	}
}
