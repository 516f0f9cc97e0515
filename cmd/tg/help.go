package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/taskgraph/internal/ui"
)

// helpRule styles every match of re. When group is non-zero only that
// submatch is painted and the rest of the match is kept as is.
type helpRule struct {
	re    *regexp.Regexp
	group int
	paint func(string) string
}

var helpRules = []helpRule{
	// Section headers such as "Graph:" or "Flags:".
	{regexp.MustCompile(`(?m)^([A-Z][^\n]*:)[ \t]*$`), 0, func(s string) string {
		return ui.RenderAccent(strings.TrimSpace(s))
	}},
	// Subcommand names in command listings.
	{regexp.MustCompile(`(?m)^  (\S+)  `), 1, ui.RenderCommand},
	{regexp.MustCompile(`--?\S+\s+(string|int|duration|bool)\b`), 1, ui.RenderMuted},
	{regexp.MustCompile(`\(default [^)]*\)`), 0, ui.RenderMuted},
	{regexp.MustCompile(`\b(DEPENDS_ON|BLOCKED_BY|DUPLICATED_WITH)\b`), 0, ui.RenderKind},
	{regexp.MustCompile(`\b(in_progress|done|cancelled)\b`), 0, ui.RenderStatus},
}

// colorizedHelpFunc renders cobra's usage text through colorizeHelp when
// stdout is a color terminal.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		w := cmd.OutOrStdout()
		if !ui.ShouldUseColor() {
			_ = cmd.Usage()
			return
		}
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(w)
		fmt.Fprint(w, colorizeHelp(buf.String()))
	}
}

func colorizeHelp(s string) string {
	for _, r := range helpRules {
		s = r.apply(s)
	}
	return s
}

func (r helpRule) apply(s string) string {
	if r.group == 0 {
		return r.re.ReplaceAllStringFunc(s, r.paint)
	}
	var b strings.Builder
	last := 0
	for _, m := range r.re.FindAllStringSubmatchIndex(s, -1) {
		start, end := m[2*r.group], m[2*r.group+1]
		b.WriteString(s[last:start])
		b.WriteString(r.paint(s[start:end]))
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}
