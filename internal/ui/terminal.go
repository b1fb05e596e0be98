package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ColorEnv is the rv-specific override: "always", "never" or "auto".
const ColorEnv = "RENDEZVOUS_COLOR"

// ShouldUseColor reports whether stdout gets ANSI colors. The environment
// decides first; otherwise color follows whether stdout is a terminal.
func ShouldUseColor() bool {
	if use, ok := colorFromEnv(os.Getenv); ok {
		return use
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// colorFromEnv applies RENDEZVOUS_COLOR, then NO_COLOR (https://no-color.org),
// then CLICOLOR_FORCE and CLICOLOR. ok is false when none of them decides.
func colorFromEnv(getenv func(string) string) (use, ok bool) {
	switch strings.ToLower(strings.TrimSpace(getenv(ColorEnv))) {
	case "always":
		return true, true
	case "never":
		return false, true
	}
	if getenv("NO_COLOR") != "" {
		return false, true
	}
	if strings.TrimSpace(getenv("CLICOLOR_FORCE")) == "1" {
		return true, true
	}
	if strings.TrimSpace(getenv("CLICOLOR")) == "0" {
		return false, true
	}
	return false, false
}
