package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	configPathOverride = ""
	cfg = nil
	t.Cleanup(func() {
		viper.Reset()
		configPathOverride = ""
		cfg = nil
	})
}

func TestInit(t *testing.T) {
	t.Run("initializes with defaults when no config exists", func(t *testing.T) {
		resetViper(t)
		wd, err := os.Getwd()
		require.NoError(t, err)
		require.NoError(t, os.Chdir(t.TempDir()))
		t.Cleanup(func() { _ = os.Chdir(wd) })
		t.Setenv("HOME", t.TempDir())

		require.NoError(t, Init())

		c := Get()
		assert.Equal(t, BackendKMS, c.Display.Backend)
		assert.Equal(t, "seat0", c.Seat.Name)
		assert.True(t, c.Keyboard.Compose)
		assert.Equal(t, 50*time.Millisecond, c.Keyboard.RepeatInterval)
	})

	t.Run("reads values from a TOML file", func(t *testing.T) {
		resetViper(t)
		path := filepath.Join(t.TempDir(), "kmsloop.toml")
		content := `[display]
backend = "fbdev"
fbdev = "/dev/fb1"

[keyboard]
layout = "fr"
repeat_interval = "30ms"
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		SetConfigPath(path)

		require.NoError(t, Init())
		c := Get()
		assert.Equal(t, BackendFbdev, c.Display.Backend)
		assert.Equal(t, "/dev/fb1", c.Display.Fbdev)
		assert.Equal(t, "fr", c.Keyboard.Layout)
		assert.Equal(t, 30*time.Millisecond, c.Keyboard.RepeatInterval)
	})

	t.Run("environment overrides win over the file", func(t *testing.T) {
		resetViper(t)
		path := filepath.Join(t.TempDir(), "kmsloop.toml")
		require.NoError(t, os.WriteFile(path, []byte("[display]\ncard = \"/dev/dri/card0\"\n"), 0644))
		SetConfigPath(path)
		t.Setenv("KMSLOOP_DRM_CARD", "/dev/dri/card1")
		t.Setenv("KMSLOOP_XKB_OPTIONS", "ctrl:nocaps")

		require.NoError(t, Init())
		c := Get()
		assert.Equal(t, "/dev/dri/card1", c.Display.Card)
		assert.Equal(t, "ctrl:nocaps", c.Keyboard.Options)
	})

	t.Run("handles invalid TOML", func(t *testing.T) {
		resetViper(t)
		path := filepath.Join(t.TempDir(), "kmsloop.toml")
		require.NoError(t, os.WriteFile(path, []byte("[display\nbackend = 1"), 0644))
		SetConfigPath(path)

		assert.Error(t, Init())
	})

	t.Run("rejects unknown backend", func(t *testing.T) {
		resetViper(t)
		path := filepath.Join(t.TempDir(), "kmsloop.toml")
		require.NoError(t, os.WriteFile(path, []byte("[display]\nbackend = \"x11\"\n"), 0644))
		SetConfigPath(path)

		err := Init()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown display backend")
	})
}

func TestValidate(t *testing.T) {
	c := DefaultConfig
	require.NoError(t, c.Validate())

	c.Keyboard.RepeatInterval = 0
	assert.Error(t, c.Validate())

	c = DefaultConfig
	c.Seat.Name = " "
	assert.Error(t, c.Validate())
}

func TestGetReturnsCopyOfDefaults(t *testing.T) {
	resetViper(t)
	c := Get()
	c.Seat.Name = "seat9"
	assert.Equal(t, "seat0", DefaultConfig.Seat.Name)
}

func TestSocketPath(t *testing.T) {
	c := DefaultConfig
	c.IPC.Socket = "/run/user/1000/kmsloop.sock"
	p, err := c.SocketPath()
	require.NoError(t, err)
	assert.Equal(t, "/run/user/1000/kmsloop.sock", p)

	c.IPC.Socket = ""
	p, err = c.SocketPath()
	require.NoError(t, err)
	assert.Contains(t, filepath.Base(p), "kmsloop-")
}

func TestLocale(t *testing.T) {
	t.Setenv("LC_ALL", "")
	os.Unsetenv("LC_ALL")
	t.Setenv("LC_CTYPE", "")
	os.Unsetenv("LC_CTYPE")
	t.Setenv("LANG", "")
	os.Unsetenv("LANG")
	assert.Equal(t, "C", Locale())

	t.Setenv("LANG", "de_DE.UTF-8")
	assert.Equal(t, "de_DE.UTF-8", Locale())

	t.Setenv("LC_CTYPE", "fr_FR.UTF-8")
	assert.Equal(t, "fr_FR.UTF-8", Locale())

	t.Setenv("LC_ALL", "en_US.UTF-8")
	assert.Equal(t, "en_US.UTF-8", Locale())
}
