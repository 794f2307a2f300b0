// Package html holds the static element and attribute tables used for
// validation and code generation.
package html

import "strings"

func set(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

var (
	// void elements cannot have children or a closing tag
	voidElements = set(
		"area", "base", "br", "col", "embed", "hr", "img", "input",
		"link", "meta", "param", "source", "track", "wbr",
	)

	// a block element inside one of these closes it implicitly in browsers
	autoCloseElements = set("p")

	blockElements = set(
		"address", "article", "aside", "blockquote", "details", "dialog",
		"dd", "div", "dl", "dt", "fieldset", "figcaption", "figure",
		"footer", "form", "h1", "h2", "h3", "h4", "h5", "h6",
		"header", "hgroup", "hr", "li", "main", "nav", "ol", "p",
		"pre", "section", "table", "ul",
	)

	interactiveElements = set("a", "button")

	booleanAttributes = set(
		"disabled", "checked", "readonly", "required", "autofocus", "autoplay",
		"controls", "loop", "muted", "selected", "open", "hidden", "async",
		"defer", "novalidate", "formnovalidate", "ismap", "multiple",
		"reversed", "scoped",
	)
)

func has(m map[string]struct{}, name string) bool {
	_, ok := m[strings.ToLower(name)]
	return ok
}

func IsVoid(tag string) bool { return has(voidElements, tag) }

func IsAutoClose(tag string) bool { return has(autoCloseElements, tag) }

func IsBlock(tag string) bool { return has(blockElements, tag) }

func IsInteractive(tag string) bool { return has(interactiveElements, tag) }

// IsBooleanAttribute reports whether an attribute is present-or-absent rather than valued.
func IsBooleanAttribute(name string) bool { return has(booleanAttributes, name) }

// VoidExamples returns up to n void elements other than tag, for help text.
func VoidExamples(tag string, n int) []string {
	var out []string
	for _, e := range []string{"br", "img", "input", "hr", "meta"} {
		if e == strings.ToLower(tag) {
			continue
		}
		out = append(out, e)
		if len(out) == n {
			break
		}
	}
	return out
}
