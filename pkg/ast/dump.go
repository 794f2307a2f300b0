package ast

import (
	"fmt"
	"strings"
)

// Dump renders nodes as a compact indented outline, one node per line.
// It is meant for tests and the CLI's --dump-ast flag.
func Dump(nodes ...Node) string {
	var b strings.Builder
	for _, n := range nodes {
		dump(&b, n, 0)
	}
	return b.String()
}

// DumpDocument renders the header items followed by the body.
func DumpDocument(doc *Document) string {
	var b strings.Builder
	for _, imp := range doc.Imports {
		dump(&b, imp, 0)
	}
	for _, p := range doc.Parameters {
		dump(&b, p, 0)
	}
	for _, d := range doc.Decorators {
		dump(&b, d, 0)
	}
	for _, n := range doc.Nodes {
		dump(&b, n, 0)
	}
	return b.String()
}

func dump(b *strings.Builder, n Node, depth int) {
	line := func(format string, args ...any) {
		b.WriteString(strings.Repeat("  ", depth))
		fmt.Fprintf(b, format, args...)
		b.WriteByte('\n')
	}
	children := func(nodes []Node) {
		for _, c := range nodes {
			dump(b, c, depth+1)
		}
	}
	clause := func(c *Clause) {
		if c == nil {
			return
		}
		dump(b, c, depth)
	}

	switch n := n.(type) {
	case *Text:
		line("text %q", n.Value)
	case *Expression:
		line("expr %s", n.Code)
	case *Element:
		line("element %s%s%s", n.Tag, dumpAttrs(n.Attributes), selfClosing(n.SelfClosing))
		children(n.Children)
	case *Component:
		line("component %s%s%s", n.Name, dumpAttrs(n.Attributes), selfClosing(n.SelfClosing))
		children(n.Children)
	case *Fragment:
		line("fragment %s", n.Name)
		children(n.Children)
	case *Slot:
		line("slot %q", n.Name)
		children(n.Fallback)
	case *If:
		line("if %s", n.Condition)
		children(n.Then)
		for _, c := range n.Elifs {
			clause(c)
		}
		clause(n.Else)
	case *For:
		line("%sfor %s in %s", async(n.Async), n.Target, n.Iterable)
		children(n.Body)
		clause(n.Else)
	case *While:
		line("while %s", n.Condition)
		children(n.Body)
		clause(n.Else)
	case *Match:
		line("match %s", n.Subject)
		for _, c := range n.Cases {
			dump(b, c, depth+1)
		}
	case *With:
		line("%swith %s", async(n.Async), n.Items)
		children(n.Body)
	case *Try:
		line("try")
		children(n.Body)
		for _, c := range n.Excepts {
			clause(c)
		}
		clause(n.Else)
		clause(n.Finally)
	case *Clause:
		if n.Header == "" {
			line("%s", n.Keyword)
		} else {
			line("%s %s", n.Keyword, n.Header)
		}
		children(n.Body)
	case *Statement:
		line("stmt %s", n.Code)
	case *Definition:
		line("%s%s %s", async(n.Async), n.Keyword, n.Signature)
		children(n.Body)
	case *Import:
		line("import %s", n.Code)
	case *Parameter:
		line("param %s", n.Code)
	case *Decorator:
		line("decorator %s", n.Code)
	case *Comment:
		if n.Inline {
			line("comment(inline) %s", n.Text)
		} else {
			line("comment %s", n.Text)
		}
	default:
		line("%T", n)
	}
}

func dumpAttrs(attrs []Attribute) string {
	if len(attrs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		switch a.Kind {
		case AttrStatic:
			parts = append(parts, fmt.Sprintf("%s=%q", a.Name, a.Value))
		case AttrDynamic:
			parts = append(parts, fmt.Sprintf("%s={%s}", a.Name, a.Value))
		case AttrBoolean:
			parts = append(parts, a.Name)
		case AttrShorthand:
			parts = append(parts, "{"+a.Name+"}")
		case AttrSpread:
			parts = append(parts, "{**"+a.Value+"}")
		case AttrSlot:
			parts = append(parts, "{..."+a.Name+"}")
		}
	}
	return " [" + strings.Join(parts, " ") + "]"
}

func selfClosing(ok bool) string {
	if ok {
		return " /"
	}
	return ""
}

func async(ok bool) string {
	if ok {
		return "async "
	}
	return ""
}
