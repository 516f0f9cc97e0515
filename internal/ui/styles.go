package ui

import "fmt"

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorOK     = 114 // green
	colorWarn   = 179 // amber
	colorFail   = 203 // red
)

var noColor bool

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderError returns s in the failure (red) color.
func RenderError(s string) string { return paint(colorFail, s) }

// RenderStatus colors a task status: done is green, cancelled gray,
// in_progress amber and anything else uncolored.
func RenderStatus(status string) string {
	switch status {
	case "done":
		return paint(colorOK, status)
	case "cancelled":
		return paint(colorMuted, status)
	case "in_progress":
		return paint(colorWarn, status)
	}
	return status
}

// RenderKind colors a dependency type. Gating kinds are amber.
func RenderKind(kind string) string {
	switch kind {
	case "DEPENDS_ON", "BLOCKED_BY":
		return paint(colorWarn, kind)
	case "DUPLICATED_WITH":
		return paint(colorAccent, kind)
	}
	return kind
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

// Init disables color when ShouldUseColor reports false.
func Init() {
	if !ShouldUseColor() {
		ForceNoColor()
	}
}

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return paint(colorCmd, s) }
