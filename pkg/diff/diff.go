// Package diff renders line diffs between expected and actual output.
package diff

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Text returns a unified diff that turns got into want, or "" when they are
// equal. Added lines are marked ➕ and removed lines ➖.
func Text(name, want, got string) string {
	if want == got {
		return ""
	}
	out, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(got),
		B:        difflib.SplitLines(want),
		FromFile: "actual " + name,
		ToFile:   "expected " + name,
		Context:  2,
	})
	if err != nil || out == "" {
		return "--- actual " + name + "\n+++ expected " + name + "\n(contents differ)\n"
	}

	lines := strings.SplitAfter(out, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
		case strings.HasPrefix(line, "+"):
			lines[i] = "➕" + line[1:]
		case strings.HasPrefix(line, "-"):
			lines[i] = "➖" + line[1:]
		}
	}
	return strings.Join(lines, "")
}
