package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/kmsloop/eventloop"
	"github.com/bnema/kmsloop/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs root with args and returns what it printed.
func executeCommand(root *cobra.Command, args ...string) (string, error) {
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func resetConfig(t *testing.T) {
	t.Helper()
	viper.Reset()
	config.Set(nil)
	config.SetConfigPath("")
	configPath, logLevel = "", ""
	t.Cleanup(func() {
		viper.Reset()
		config.Set(nil)
		config.SetConfigPath("")
		configPath = ""
	})
}

func TestConfigInit(t *testing.T) {
	resetConfig(t)
	path := filepath.Join(t.TempDir(), "kmsloop.toml")

	t.Run("creates config file when it doesn't exist", func(t *testing.T) {
		_, err := executeCommand(rootCmd, "--config", path, "config", "init")
		require.NoError(t, err)
		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "backend")
	})

	t.Run("doesn't overwrite existing config without force", func(t *testing.T) {
		viper.Reset()
		require.NoError(t, os.WriteFile(path, []byte("[seat]\nname = \"seat1\"\n"), 0644))
		_, err := executeCommand(rootCmd, "--config", path, "config", "init")
		require.NoError(t, err)
		content, _ := os.ReadFile(path)
		assert.Equal(t, "[seat]\nname = \"seat1\"\n", string(content))
	})

	t.Run("overwrites with force flag", func(t *testing.T) {
		viper.Reset()
		_, err := executeCommand(rootCmd, "--config", path, "config", "init", "--force")
		require.NoError(t, err)
		require.NoError(t, configInitCmd.Flags().Set("force", "false"))
		content, _ := os.ReadFile(path)
		assert.Contains(t, string(content), "repeat_interval")
	})
}

func TestConfigShow(t *testing.T) {
	resetConfig(t)
	path := filepath.Join(t.TempDir(), "kmsloop.toml")
	require.NoError(t, os.WriteFile(path, []byte("[display]\nbackend = \"fbdev\"\n\n[seat]\nname = \"seat1\"\n"), 0644))

	out, err := executeCommand(rootCmd, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "fbdev")
	assert.Contains(t, out, "seat1")
	assert.Contains(t, out, "50ms")
}

func TestConfigValidation(t *testing.T) {
	resetConfig(t)
	path := filepath.Join(t.TempDir(), "kmsloop.toml")

	t.Run("rejects invalid TOML", func(t *testing.T) {
		viper.Reset()
		require.NoError(t, os.WriteFile(path, []byte("[display\nbackend = 1\n"), 0644))
		_, err := executeCommand(rootCmd, "--config", path, "config", "show")
		assert.Error(t, err)
	})

	t.Run("rejects unknown backend", func(t *testing.T) {
		viper.Reset()
		require.NoError(t, os.WriteFile(path, []byte("[display]\nbackend = \"x11\"\n"), 0644))
		_, err := executeCommand(rootCmd, "--config", path, "config", "show")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown display backend")
	})
}

func TestParseFlow(t *testing.T) {
	f, err := parseFlow("poll", 0)
	require.NoError(t, err)
	assert.Equal(t, eventloop.Poll, f())

	f, err = parseFlow("", 0)
	require.NoError(t, err)
	assert.Equal(t, eventloop.Wait, f())

	f, err = parseFlow("wait-until", 50*time.Millisecond)
	require.NoError(t, err)
	deadline, ok := f().Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, time.Second)

	_, err = parseFlow("wait-until", 0)
	assert.Error(t, err)
	_, err = parseFlow("spin", time.Second)
	assert.Error(t, err)
}

func TestDemoCallback(t *testing.T) {
	fn := demoCallback(func() eventloop.ControlFlow { return eventloop.Wait })

	t.Run("applies flow after clearing", func(t *testing.T) {
		cf := eventloop.Poll
		fn(eventloop.NewEvents{Cause: eventloop.StartCause{Kind: eventloop.CauseInit}}, nil, &cf)
		fn(eventloop.MainEventsCleared{}, nil, &cf)
		assert.Equal(t, eventloop.Wait, cf)
	})

	t.Run("quit payload exits", func(t *testing.T) {
		cf := eventloop.Poll
		fn(eventloop.UserEvent[string]{Value: "hello"}, nil, &cf)
		_, exiting := cf.ExitCode()
		assert.False(t, exiting)

		fn(eventloop.UserEvent[string]{Value: quitEvent}, nil, &cf)
		fn(eventloop.RedrawEventsCleared{}, nil, &cf)
		code, exiting := cf.ExitCode()
		assert.True(t, exiting)
		assert.Equal(t, 0, code)
	})

	t.Run("escape exits", func(t *testing.T) {
		cf := eventloop.Poll
		fn(eventloop.KeyboardInput{ScanCode: escKey, State: eventloop.Released}, nil, &cf)
		_, exiting := cf.ExitCode()
		assert.False(t, exiting)

		fn(eventloop.KeyboardInput{ScanCode: escKey, State: eventloop.Pressed}, nil, &cf)
		_, exiting = cf.ExitCode()
		assert.True(t, exiting)
	})
}

type recordingHolder struct {
	calls []string
}

func (r *recordingHolder) Hold(code uint16) error {
	r.calls = append(r.calls, "hold")
	return nil
}

func (r *recordingHolder) Release(code uint16) error {
	r.calls = append(r.calls, "release")
	return nil
}

func TestHoldKey(t *testing.T) {
	t.Run("releases after the duration", func(t *testing.T) {
		k := &recordingHolder{}
		start := time.Now()
		require.NoError(t, holdKey(context.Background(), k, 30, 20*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
		assert.Equal(t, []string{"hold", "release"}, k.calls)
	})

	t.Run("releases when cancelled", func(t *testing.T) {
		k := &recordingHolder{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, holdKey(ctx, k, 30, time.Hour))
		assert.Equal(t, []string{"hold", "release"}, k.calls)
	})
}
