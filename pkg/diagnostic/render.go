package diagnostic

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apparentlymart/go-textseg/v13/textseg"
	"github.com/fatih/color"

	"github.com/walteh/gohyper/pkg/position"
)

type palette struct {
	err, bold, gutter, caret, related, help func(a ...interface{}) string
}

func plainPalette() palette {
	id := func(a ...interface{}) string { return fmt.Sprint(a...) }
	return palette{err: id, bold: id, gutter: id, caret: id, related: id, help: id}
}

func colorPalette() palette {
	paint := func(attrs ...color.Attribute) func(a ...interface{}) string {
		c := color.New(attrs...)
		c.EnableColor()
		return c.SprintFunc()
	}
	return palette{
		err:     paint(color.FgRed, color.Bold),
		bold:    paint(color.Bold),
		gutter:  paint(color.FgBlue, color.Bold),
		caret:   paint(color.FgRed, color.Bold),
		related: paint(color.FgCyan, color.Bold),
		help:    paint(color.FgYellow),
	}
}

// Render formats the error with a source excerpt. When filename is empty the
// source name is used.
func (e *Error) Render(src *position.Source, filename string) string {
	return e.render(src, filename, plainPalette())
}

// RenderColor is Render with ANSI colors, for interactive terminals.
func (e *Error) RenderColor(src *position.Source, filename string) string {
	return e.render(src, filename, colorPalette())
}

func (e *Error) render(src *position.Source, filename string, p palette) string {
	if filename == "" && src != nil {
		filename = src.Name()
	}

	var b strings.Builder

	if e.Kind == Generate {
		fmt.Fprintf(&b, "%s: %s\n", p.err("error"), p.bold(Generate.String()+": "+e.Message))
		return b.String()
	}

	fmt.Fprintf(&b, "%s: %s\n", p.err("error"), p.bold(e.Message))
	fmt.Fprintf(&b, "  %s %s:%d:%d\n", p.gutter("-->"), filename, e.Span.Start.Line+1, e.Span.Start.Col+1)

	if src != nil && e.Span.Start.Line < src.LineCount() {
		excerpt(&b, src, e.Span, p, func(n int) string {
			return p.caret(strings.Repeat("^", n))
		})
	}

	if e.Related != nil && src != nil && e.Related.Span.Start.Line < src.LineCount() {
		label := e.RelatedLabel()
		excerpt(&b, src, e.Related.Span, p, func(n int) string {
			return p.related(strings.Repeat("-", n) + " " + label)
		})
	}

	if e.Help != "" {
		for i, line := range strings.Split(strings.TrimRight(e.Help, "\n"), "\n") {
			if i == 0 {
				fmt.Fprintf(&b, "   %s %s\n", p.help("= help:"), line)
				continue
			}
			fmt.Fprintf(&b, "           %s\n", line)
		}
	}

	return b.String()
}

// excerpt writes the source line holding span.Start with an underline below it.
func excerpt(b *strings.Builder, src *position.Source, span position.Span, p palette, underline func(n int) string) {
	lineNo := span.Start.Line
	line := src.Line(lineNo)
	width := max(len(strconv.Itoa(lineNo+1)), 2)
	pad := strings.Repeat(" ", width)

	fmt.Fprintf(b, "%s\n", p.gutter(pad+" |"))
	fmt.Fprintf(b, "%s %s\n", p.gutter(fmt.Sprintf("%*d |", width, lineNo+1)), line)

	start := min(max(span.Start.Byte-src.LineStart(lineNo).Byte, 0), len(line))
	end := len(line)
	if span.End.Line == span.Start.Line {
		end = min(max(span.End.Byte-src.LineStart(lineNo).Byte, start), len(line))
	}

	lead := graphemes(line[:start])
	n := max(graphemes(line[start:end]), 1)
	fmt.Fprintf(b, "%s %s%s\n", p.gutter(pad+" |"), strings.Repeat(" ", lead), underline(n))
}

// graphemes counts user-perceived characters so underlines line up under
// combined and wide characters.
func graphemes(s string) int {
	if s == "" {
		return 0
	}
	n, err := textseg.TokenCount([]byte(s), textseg.ScanGraphemeClusters)
	if err != nil {
		return len([]rune(s))
	}
	return n
}
