package lexer

import (
	"strings"

	"github.com/walteh/gohyper/pkg/position"
)

// Change replaces the lines [StartLine, EndLine) with NewText. NewText carries
// its own line terminators.
type Change struct {
	StartLine int
	EndLine   int
	NewText   string
}

// Incremental keeps tokens per line so an edit only re-tokenizes the lines it
// affects. Tokens that span lines belong to the line on which they complete.
type Incremental struct {
	opts   options
	src    *position.Source
	lines  [][]Token
	states []state
	tail   []Token
}

// NewIncremental tokenizes src and keeps the per-line results.
func NewIncremental(src *position.Source, opts ...Option) *Incremental {
	me := &Incremental{opts: newOptions(opts), src: src}
	me.FullRetokenize()
	return me
}

// Source returns the current source buffer.
func (me *Incremental) Source() *position.Source {
	return me.src
}

// FullRetokenize discards all cached tokens and tokenizes the whole source again.
func (me *Incremental) FullRetokenize() {
	l := newLexer(me.src, me.opts)
	count := me.src.LineCount()
	me.lines = make([][]Token, count)
	me.states = make([]state, count)
	for n := 0; n < count; n++ {
		me.states[n] = l.st
		me.lines[n] = l.line(n)
	}
	me.tail = l.finish()
}

// Tokens returns every token, ending with EOF.
func (me *Incremental) Tokens() []Token {
	var out []Token
	for _, line := range me.lines {
		out = append(out, line...)
	}
	return append(out, me.tail...)
}

// TokensForLines returns the tokens completed on lines [start, end).
func (me *Incremental) TokensForLines(start, end int) []Token {
	start = max(start, 0)
	end = min(end, len(me.lines))
	var out []Token
	for n := start; n < end; n++ {
		out = append(out, me.lines[n]...)
	}
	return out
}

// Update applies the change and returns the half-open range of lines, in the
// new source, whose tokens were produced again. Lines after the range reuse
// their previous tokens, shifted to their new offsets.
func (me *Incremental) Update(change Change) (int, int) {
	old := me.src
	oldCount := old.LineCount()

	startLine := min(max(change.StartLine, 0), oldCount)
	endLine := min(max(change.EndLine, startLine), oldCount)

	editStart := lineOffset(old, startLine)
	editEnd := lineOffset(old, endLine)

	var b strings.Builder
	b.WriteString(old.Text()[:editStart])
	b.WriteString(change.NewText)
	b.WriteString(old.Text()[editEnd:])
	me.src = position.NewSource(old.Name(), b.String())

	if startLine >= len(me.states) {
		me.FullRetokenize()
		return 0, me.src.LineCount()
	}

	// where the first unchanged old line now begins; when the new text does
	// not end in a newline that line is merged into the last edited one
	after := me.src.PositionAt(editStart + len(change.NewText))
	resumeLine := after.Line
	if after.Col != 0 {
		resumeLine++
	}

	l := newLexer(me.src, me.opts)
	l.st = me.states[startLine]

	count := me.src.LineCount()
	lines := append([][]Token(nil), me.lines[:startLine]...)
	states := append([]state(nil), me.states[:startLine]...)

	for n := startLine; n < count; n++ {
		if n >= resumeLine && n > startLine {
			o := endLine + n - after.Line
			if o < oldCount && l.st.settled() && me.states[o].settled() && l.st.header == me.states[o].header {
				delta := shiftOf(old.LineStart(o), me.src.LineStart(n))
				for k := o; k < oldCount; k++ {
					lines = append(lines, shiftTokens(me.lines[k], delta))
					states = append(states, shiftState(me.states[k], delta))
				}
				me.lines, me.states = lines, states
				me.tail = shiftTokens(me.tail, delta)
				return startLine, n
			}
		}
		states = append(states, l.st)
		lines = append(lines, l.line(n))
	}

	me.lines, me.states = lines, states
	me.tail = l.finish()
	return startLine, count
}

func lineOffset(src *position.Source, line int) int {
	if line >= src.LineCount() {
		return src.Len()
	}
	return src.LineStart(line).Byte
}

type delta struct {
	bytes, lines, utf16 int
}

func shiftOf(from, to position.Position) delta {
	return delta{bytes: to.Byte - from.Byte, lines: to.Line - from.Line, utf16: to.UTF16 - from.UTF16}
}

func (d delta) position(p position.Position) position.Position {
	p.Byte += d.bytes
	p.Line += d.lines
	p.UTF16 += d.utf16
	return p
}

func (d delta) span(s position.Span) position.Span {
	if s.IsZero() {
		return s
	}
	return position.Span{Start: d.position(s.Start), End: d.position(s.End)}
}

func shiftTokens(tokens []Token, d delta) []Token {
	out := make([]Token, len(tokens))
	for i, t := range tokens {
		t.Span = d.span(t.Span)
		t.ValueSpan = d.span(t.ValueSpan)
		t.NameSpan = d.span(t.NameSpan)
		if len(t.Attributes) > 0 {
			attrs := make([]Attribute, len(t.Attributes))
			for j, a := range t.Attributes {
				a.Span = d.span(a.Span)
				a.ValueSpan = d.span(a.ValueSpan)
				attrs[j] = a
			}
			t.Attributes = attrs
		}
		out[i] = t
	}
	return out
}

func shiftState(s state, d delta) state {
	if !s.settled() {
		s.start += d.bytes
	}
	return s
}
