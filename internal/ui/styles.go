// Package ui provides consistent styling for the kmsloop CLI
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Color palette - consistent across the application
var (
	ColorPrimary = lipgloss.Color("39")  // Bright blue
	ColorSuccess = lipgloss.Color("82")  // Green
	ColorWarning = lipgloss.Color("214") // Orange
	ColorError   = lipgloss.Color("196") // Red
	ColorInfo    = lipgloss.Color("86")  // Cyan

	ColorText   = lipgloss.Color("252") // Light gray
	ColorSubtle = lipgloss.Color("241") // Medium gray
)

var (
	SubtleStyle  = lipgloss.NewStyle().Foreground(ColorSubtle)
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorError)
	InfoStyle    = lipgloss.NewStyle().Foreground(ColorInfo)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	KeyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)
)

var (
	IconSuccess = "✓"
	IconError   = "✗"
	IconSection = "»"
)

// FormatHeader renders a section title followed by a separator.
func FormatHeader(title string) string {
	return HeaderStyle.Render(InfoStyle.Render(IconSection)+" "+title) + "\n" + CreateSeparator(50, "─")
}

// FormatResult renders one check line.
func FormatResult(ok bool, step, message string) string {
	icon, style := SuccessStyle.Render(IconSuccess), SuccessStyle
	if !ok {
		icon, style = ErrorStyle.Render(IconError), ErrorStyle
	}
	line := "  " + icon + " " + step
	if message != "" {
		line += " - " + style.Render(message)
	}
	return line
}

// FormatField renders "key: value".
func FormatField(key, value string) string {
	return "  " + KeyStyle.Render(key+":") + " " + value
}

// CreateSeparator creates a horizontal line separator
func CreateSeparator(width int, char string) string {
	if width <= 0 {
		width = 50
	}
	if char == "" {
		char = "─"
	}
	return SubtleStyle.Render(strings.Repeat(char, width))
}

// Table renders rows under headers. Rows whose mark column (or -1 for
// none) is non-empty are highlighted.
func Table(headers []string, rows [][]string, mark int) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorSubtle)).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case row == table.HeaderRow:
				return base.Foreground(ColorPrimary).Bold(true)
			case mark >= 0 && row >= 0 && row < len(rows) && rows[row][mark] != "":
				return base.Foreground(ColorSuccess).Bold(true)
			case col == 0:
				return base.Foreground(ColorInfo)
			default:
				return base.Foreground(ColorText)
			}
		}).
		Headers(headers...).
		Rows(rows...)
	return t.String()
}
