package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Colors fall back to plain text when stdout is not a terminal.
var (
	Success     = lipgloss.Color("#8BC34A")
	Destructive = lipgloss.Color("#e53935")
	Muted       = lipgloss.Color("#6b7280")

	successHeader = lipgloss.NewStyle().Bold(true).Foreground(Success)
	failureHeader = lipgloss.NewStyle().Bold(true).Foreground(Destructive)
	mutedStyle    = lipgloss.NewStyle().Foreground(Muted)
)

// styleReport colors the first line of a rendered report.
func styleReport(text string, ok bool) string {
	style := successHeader
	if !ok {
		style = failureHeader
	}
	header, rest, found := strings.Cut(text, "\n")
	if !found {
		return style.Render(header)
	}
	return style.Render(header) + "\n" + rest
}

func styleFailure(text string) string {
	return styleReport(text, false)
}

func styleMuted(text string) string {
	return mutedStyle.Render(text)
}
