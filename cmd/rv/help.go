package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/rendezvous/internal/ui"
)

// helpRule styles every match of re; groups are kept, the styled group is
// replaced by style(group).
type helpRule struct {
	re    *regexp.Regexp
	group int
	style func(string) string
}

var helpRules = []helpRule{
	// Section headers: an unindented line ending in ":" ("Scheduling:", "Flags:").
	{regexp.MustCompile(`(?m)^([A-Z][^\n]*:)[ \t]*$`), 1, ui.RenderAccent},
	// Command names: two-space indent, a word, two or more spaces.
	{regexp.MustCompile(`(?m)^(  )(\S+)(  )`), 2, ui.RenderCommand},
	// Flag value types: "--tz string", "--month string".
	{regexp.MustCompile(`(--?\S+\s+)(string|int|duration|stringSlice|stringArray)`), 2, ui.RenderMuted},
	// Defaults: (default "http://localhost:8080").
	{regexp.MustCompile(`(\(default "[^"]*"\))`), 1, ui.RenderMuted},
}

// colorizedHelpFunc returns a Cobra help function that styles the default
// help text when the terminal supports color.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if !ui.ShouldUseColor() {
			_ = cmd.Usage()
			return
		}
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelp(buf.String()))
	}
}

func colorizeHelp(s string) string {
	for _, rule := range helpRules {
		s = rule.re.ReplaceAllStringFunc(s, func(match string) string {
			parts := rule.re.FindStringSubmatch(match)
			if len(parts) <= rule.group {
				return match
			}
			var b strings.Builder
			for i, p := range parts[1:] {
				if i+1 == rule.group {
					p = rule.style(strings.TrimSpace(p))
				}
				b.WriteString(p)
			}
			return b.String()
		})
	}
	return s
}
