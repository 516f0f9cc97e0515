package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ColorEnv overrides color detection for the tg CLI: "always" or "never".
const ColorEnv = "TASKGRAPH_COLOR"

// ShouldUseColor reports whether stdout gets ANSI colors. TASKGRAPH_COLOR
// wins, then NO_COLOR (https://no-color.org), CLICOLOR_FORCE and CLICOLOR;
// otherwise color is used when stdout is a terminal.
func ShouldUseColor() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(ColorEnv))) {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if env("CLICOLOR_FORCE") == "1" {
		return true
	}
	if env("CLICOLOR") == "0" {
		return false
	}
	return isTerminal(os.Stdout)
}

func env(key string) string { return strings.TrimSpace(os.Getenv(key)) }

func isTerminal(f *os.File) bool { return term.IsTerminal(int(f.Fd())) }
