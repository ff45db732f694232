// Package config handles configuration management using Viper
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend names accepted by display.backend.
const (
	BackendKMS   = "kms"
	BackendFbdev = "fbdev"
)

// Config represents the application configuration
type Config struct {
	Display  DisplayConfig  `mapstructure:"display"`
	Seat     SeatConfig     `mapstructure:"seat"`
	Keyboard KeyboardConfig `mapstructure:"keyboard"`
	IPC      IPCConfig      `mapstructure:"ipc"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DisplayConfig selects the output variant and device overrides
type DisplayConfig struct {
	Backend string `mapstructure:"backend"` // "kms" or "fbdev"
	Card    string `mapstructure:"card"`    // explicit DRM card node, empty means enumerate
	Fbdev   string `mapstructure:"fbdev"`   // explicit framebuffer node, empty means first found
}

// SeatConfig names the seat devices must belong to
type SeatConfig struct {
	Name string `mapstructure:"name"`
}

// KeyboardConfig feeds the keymap compiler. Empty strings mean system default.
type KeyboardConfig struct {
	Rules          string        `mapstructure:"rules"`
	Model          string        `mapstructure:"model"`
	Layout         string        `mapstructure:"layout"`
	Variant        string        `mapstructure:"variant"`
	Options        string        `mapstructure:"options"`
	Compose        bool          `mapstructure:"compose"`
	RepeatInterval time.Duration `mapstructure:"repeat_interval"`
}

// IPCConfig controls the user-event control socket
type IPCConfig struct {
	Socket string `mapstructure:"socket"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	LogLevel string `mapstructure:"log_level"` // Override LOG_LEVEL env var
}

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Display: DisplayConfig{
			Backend: BackendKMS,
		},
		Seat: SeatConfig{
			Name: "seat0",
		},
		Keyboard: KeyboardConfig{
			Compose:        true,
			RepeatInterval: 50 * time.Millisecond,
		},
	}

	// Global config instance
	cfg *Config

	// Override config path if set
	configPathOverride string
)

// envBindings maps config keys to the environment variables read once at
// construction time.
var envBindings = map[string]string{
	"display.card":     "KMSLOOP_DRM_CARD",
	"display.fbdev":    "KMSLOOP_FBDEV_PATH",
	"display.backend":  "KMSLOOP_BACKEND",
	"keyboard.options": "KMSLOOP_XKB_OPTIONS",
	"keyboard.layout":  "KMSLOOP_XKB_LAYOUT",
	"seat.name":        "KMSLOOP_SEAT",
}

// SetConfigPath allows overriding the config path
func SetConfigPath(path string) {
	configPathOverride = path
}

// Init initializes the configuration system
func Init() error {
	viper.SetConfigName("kmsloop")
	viper.SetConfigType("toml")

	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		viper.AddConfigPath("/etc/kmsloop")
		if home := os.Getenv("HOME"); home != "" {
			viper.AddConfigPath(filepath.Join(home, ".config", "kmsloop"))
		}
		viper.AddConfigPath(".")
	}

	viper.SetDefault("display.backend", DefaultConfig.Display.Backend)
	viper.SetDefault("display.card", DefaultConfig.Display.Card)
	viper.SetDefault("display.fbdev", DefaultConfig.Display.Fbdev)
	viper.SetDefault("seat.name", DefaultConfig.Seat.Name)
	viper.SetDefault("keyboard.rules", DefaultConfig.Keyboard.Rules)
	viper.SetDefault("keyboard.model", DefaultConfig.Keyboard.Model)
	viper.SetDefault("keyboard.layout", DefaultConfig.Keyboard.Layout)
	viper.SetDefault("keyboard.variant", DefaultConfig.Keyboard.Variant)
	viper.SetDefault("keyboard.options", DefaultConfig.Keyboard.Options)
	viper.SetDefault("keyboard.compose", DefaultConfig.Keyboard.Compose)
	viper.SetDefault("keyboard.repeat_interval", DefaultConfig.Keyboard.RepeatInterval)
	viper.SetDefault("ipc.socket", DefaultConfig.IPC.Socket)
	viper.SetDefault("logging.log_level", DefaultConfig.Logging.LogLevel)

	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults
	}

	c := &Config{}
	if err := viper.Unmarshal(c); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c

	return nil
}

// Validate rejects values no component can act on.
func (c *Config) Validate() error {
	switch c.Display.Backend {
	case BackendKMS, BackendFbdev:
	default:
		return fmt.Errorf("unknown display backend %q (want %q or %q)", c.Display.Backend, BackendKMS, BackendFbdev)
	}
	if c.Keyboard.RepeatInterval <= 0 {
		return fmt.Errorf("keyboard.repeat_interval must be positive, got %s", c.Keyboard.RepeatInterval)
	}
	if strings.TrimSpace(c.Seat.Name) == "" {
		return fmt.Errorf("seat.name must not be empty")
	}
	return nil
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		// Return defaults if not initialized
		d := DefaultConfig
		return &d
	}
	return cfg
}

// Set sets the current configuration (for testing)
func Set(c *Config) {
	cfg = c
}

// Save writes the current configuration to file
func Save() error {
	configPath := GetConfigPath()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		if os.IsPermission(err) && strings.Contains(configPath, "/etc/") {
			return fmt.Errorf("failed to create config directory %s: permission denied. Try running with sudo", dir)
		}
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	if configPathOverride != "" {
		return configPathOverride
	}

	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}

	if os.Getuid() == 0 {
		return "/etc/kmsloop/kmsloop.toml"
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "/etc/kmsloop/kmsloop.toml"
	}

	return filepath.Join(home, ".config", "kmsloop", "kmsloop.toml")
}

// SocketPath returns the configured control socket, or the per-user default.
func (c *Config) SocketPath() (string, error) {
	if c.IPC.Socket != "" {
		return c.IPC.Socket, nil
	}
	currentUser, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("kmsloop-%s.sock", currentUser.Username)), nil
}

// Locale returns the locale used for compose tables, following the usual
// LC_ALL, LC_CTYPE, LANG precedence.
func Locale() string {
	for _, env := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		if v, ok := os.LookupEnv(env); ok {
			return v
		}
	}
	return "C"
}
