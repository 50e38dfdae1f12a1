// Package ui renders terminal output for the parceltrack CLI.
package ui

import "fmt"

// ANSI 256-color codes.
const (
	colorAccent  = 74  // blue
	colorCmd     = 250 // light gray
	colorMuted   = 245 // medium gray
	colorSuccess = 114 // green
	colorWarn    = 179 // amber
	colorFail    = 167 // red
)

var noColor bool

func paint(color int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", color, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return paint(colorCmd, s) }

// RenderHealth colors a health status: green when "ok", red otherwise.
func RenderHealth(status string) string {
	if status == "ok" {
		return paint(colorSuccess, status)
	}
	return paint(colorFail, status)
}

// RenderStatus colors text by EDIFACT status code: delivered in green,
// attempted delivery in amber, anything else in the accent color.
func RenderStatus(code, text string) string {
	switch code {
	case "500":
		return paint(colorSuccess, text)
	case "600":
		return paint(colorWarn, text)
	case "":
		return RenderMuted(text)
	}
	return paint(colorAccent, text)
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

// SetColor enables or disables color output globally.
func SetColor(enabled bool) {
	noColor = !enabled
}
