package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestCreateSeparator(t *testing.T) {
	assert.Equal(t, 50, lipgloss.Width(CreateSeparator(0, "")))
	assert.Equal(t, 10, lipgloss.Width(CreateSeparator(10, "=")))
	assert.Contains(t, CreateSeparator(3, "="), "===")
}

func TestFormatResult(t *testing.T) {
	ok := FormatResult(true, "atomic", "")
	assert.Contains(t, ok, IconSuccess)
	assert.Contains(t, ok, "atomic")
	assert.NotContains(t, ok, " - ")

	bad := FormatResult(false, "negotiate", "no crtcs")
	assert.Contains(t, bad, IconError)
	assert.Contains(t, bad, "no crtcs")
}

func TestTable(t *testing.T) {
	out := Table([]string{"NAME", "STATE", "ACTIVE"}, [][]string{
		{"HDMI-A-1", "connected", "◀"},
		{"DP-1", "disconnected", ""},
	}, 2)
	for _, want := range []string{"NAME", "HDMI-A-1", "DP-1", "disconnected"} {
		assert.Contains(t, out, want)
	}
	assert.Equal(t, 6, len(strings.Split(strings.TrimRight(out, "\n"), "\n")))
}
