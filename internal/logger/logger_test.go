package logger

import (
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want log.Level
	}{
		{"debug", log.DebugLevel},
		{"INFO", log.InfoLevel},
		{"warning", log.WarnLevel},
		{"WARN", log.WarnLevel},
		{" error ", log.ErrorLevel},
		{"fatal", log.FatalLevel},
		{"", log.InfoLevel},
		{"verbose", log.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "level %q", tt.in)
	}
}

func TestSetLevel(t *testing.T) {
	prev := Logger.GetLevel()
	defer Logger.SetLevel(prev)

	SetLevel("debug")
	assert.Equal(t, log.DebugLevel, Logger.GetLevel())

	SetLevel("")
	assert.Equal(t, log.DebugLevel, Logger.GetLevel(), "empty level keeps the current one")
}
