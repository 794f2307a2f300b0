package classify

import (
	"strings"
	"unicode"
)

// Verdict is the outcome of the prefilter.
type Verdict int

const (
	// VerdictContent means the line is treated as content without asking the classifier.
	VerdictContent Verdict = iota
	// VerdictClassify means the classifier must decide.
	VerdictClassify
)

func (v Verdict) String() string {
	if v == VerdictClassify {
		return "classify"
	}
	return "content"
}

// Prefilter is the fast path that skips the classifier for lines that are
// obviously not code. Every boundary is a field so it can be tuned and tested.
type Prefilter struct {
	// ContentLeaders are first characters that always mean content.
	ContentLeaders string
	// UppercaseIsContent treats lines starting with an uppercase letter as prose.
	UppercaseIsContent bool
	// DigitIsContent treats lines starting with a digit as content.
	DigitIsContent bool
	// Operators are substrings that suggest an assignment.
	Operators []string
	// Prefixes are statement keywords followed by a space.
	Prefixes []string
	// Keywords are statements that make up the whole line.
	Keywords []string
}

// DefaultPrefilter returns the conservative default table.
func DefaultPrefilter() Prefilter {
	return Prefilter{
		ContentLeaders:     "<>&!?/*+-.,;:[]()\"'`~^%$|",
		UppercaseIsContent: true,
		DigitIsContent:     true,
		Operators: []string{
			" = ", " += ", " -= ", " *= ", " /= ", " //= ", " %= ", " **= ",
			" &= ", " |= ", " ^= ", " >>= ", " <<= ", " := ",
		},
		Prefixes: []string{
			"import ", "from ", "return ", "raise ", "assert ", "del ",
			"global ", "nonlocal ", "yield ", "await ",
		},
		Keywords: []string{"return", "raise", "pass", "break", "continue", "yield"},
	}
}

// Check runs the prefilter over a trimmed line and explains its decision.
func (p Prefilter) Check(line string) (Verdict, string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return VerdictContent, "empty"
	}

	if strings.HasPrefix(line, `"""`) || strings.HasPrefix(line, "'''") {
		return VerdictClassify, "docstring"
	}

	first := []rune(line)[0]
	switch {
	case strings.ContainsRune(p.ContentLeaders, first):
		return VerdictContent, "punctuation leader"
	case p.DigitIsContent && unicode.IsDigit(first):
		return VerdictContent, "digit leader"
	case p.UppercaseIsContent && unicode.IsUpper(first):
		return VerdictContent, "uppercase leader"
	}

	for _, op := range p.Operators {
		if strings.Contains(line, op) {
			return VerdictClassify, "operator " + strings.TrimSpace(op)
		}
	}
	if looksAnnotated(line) {
		return VerdictClassify, "annotation"
	}
	for _, prefix := range p.Prefixes {
		if strings.HasPrefix(line, prefix) {
			return VerdictClassify, "keyword " + strings.TrimSpace(prefix)
		}
	}
	for _, kw := range p.Keywords {
		if line == kw {
			return VerdictClassify, "keyword " + kw
		}
	}
	if unicode.IsLower(first) && strings.Contains(line, "(") && strings.Contains(line, ")") {
		return VerdictClassify, "call"
	}

	return VerdictContent, "no code markers"
}

// Ambiguous reports whether a line the prefilter called content still carries
// code-like characters. The lexer logs these so the boundary can be tuned.
func (p Prefilter) Ambiguous(line string) bool {
	v, _ := p.Check(line)
	if v != VerdictContent {
		return false
	}
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '<' {
		return false
	}
	return strings.Contains(line, " = ") || (strings.Contains(line, "(") && strings.Contains(line, ")") && !strings.Contains(line, "<"))
}

// looksAnnotated matches `name: ...` where name is a plain identifier.
func looksAnnotated(line string) bool {
	name, _, ok := strings.Cut(line, ": ")
	if !ok {
		return false
	}
	return IsIdentifier(strings.TrimSpace(name))
}

// IsIdentifier reports whether s is a Python identifier.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}
