package generate

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultFunctionName is used when no function name is configured.
const DefaultFunctionName = "Render"

func splitWords(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || unicode.IsSpace(r)
	})
}

// FunctionName converts a file stem or name into a PascalCase identifier:
// "user_card" and "user-card" both become "UserCard". Interior capitals are
// kept, so "userCard" becomes "UserCard" as well.
func FunctionName(name string) string {
	// a Caser holds state, so one per call
	title := cases.Title(language.Und, cases.NoLower)

	var b strings.Builder
	for _, w := range splitWords(name) {
		b.WriteString(title.String(w))
	}
	out := b.String()
	if out == "" {
		return DefaultFunctionName
	}
	if unicode.IsDigit([]rune(out)[0]) {
		out = "_" + out
	}
	return out
}

// snake lowers a component name into a variable fragment: "UserCard" -> "user_card".
func snake(name string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range name {
		switch {
		case r == '.' || r == '-' || r == '_':
			if b.Len() > 0 {
				b.WriteByte('_')
			}
			prevLower = false
		case unicode.IsUpper(r):
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevLower = true
		}
	}
	if b.Len() == 0 {
		return "component"
	}
	return b.String()
}

// isIdentifier reports whether name can be used as a Python keyword argument.
func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}
