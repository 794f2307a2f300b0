package position

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Source is an immutable template buffer shared by tokens, nodes and errors.
// Spans index into it; they never copy text.
type Source struct {
	name       string
	text       string
	lineStarts []int
	lineUTF16  []int
}

// NewSource creates a source buffer and indexes its line starts.
func NewSource(name, text string) *Source {
	src := &Source{
		name:       name,
		text:       text,
		lineStarts: []int{0},
		lineUTF16:  []int{0},
	}
	u := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		u += runeUTF16Len(r)
		i += size
		if r == '\n' {
			src.lineStarts = append(src.lineStarts, i)
			src.lineUTF16 = append(src.lineUTF16, u)
		}
	}
	return src
}

func (me *Source) Name() string { return me.name }

func (me *Source) Text() string { return me.text }

// Len returns the length of the source in bytes.
func (me *Source) Len() int { return len(me.text) }

// LineCount returns the number of lines; a trailing newline starts an empty last line.
func (me *Source) LineCount() int { return len(me.lineStarts) }

// Slice returns the text covered by span, clamped to the buffer.
func (me *Source) Slice(span Span) string {
	start, end := me.clamp(span.Start.Byte), me.clamp(span.End.Byte)
	if end < start {
		return ""
	}
	return me.text[start:end]
}

// Line returns line n without its line terminator.
func (me *Source) Line(n int) string {
	if n < 0 || n >= len(me.lineStarts) {
		return ""
	}
	start := me.lineStarts[n]
	end := len(me.text)
	if n+1 < len(me.lineStarts) {
		end = me.lineStarts[n+1]
	}
	return strings.TrimRight(me.text[start:end], "\r\n")
}

// LineStart returns the position at the beginning of line n.
func (me *Source) LineStart(n int) Position {
	if n < 0 {
		n = 0
	}
	if n >= len(me.lineStarts) {
		return me.End()
	}
	return Position{Byte: me.lineStarts[n], Line: n, UTF16: me.lineUTF16[n]}
}

// End returns the position just past the last character.
func (me *Source) End() Position {
	return me.PositionAt(len(me.text))
}

// PositionAt returns the position of the character starting at offset.
// The column is found by walking the line one character at a time, so it
// agrees with positions produced by Advance. Offsets inside a multi-byte
// character resolve to the start of that character.
func (me *Source) PositionAt(offset int) Position {
	offset = me.clamp(offset)
	line := sort.Search(len(me.lineStarts), func(i int) bool {
		return me.lineStarts[i] > offset
	}) - 1
	if line < 0 {
		line = 0
	}
	pos := Position{Byte: me.lineStarts[line], Line: line, UTF16: me.lineUTF16[line]}
	for pos.Byte < offset {
		r, size := utf8.DecodeRuneInString(me.text[pos.Byte:])
		if pos.Byte+size > offset {
			break
		}
		pos = pos.Advance(r, size)
	}
	return pos
}

// SpanOf returns the span covering [start, end) byte offsets.
func (me *Source) SpanOf(start, end int) Span {
	return NewSpan(me.PositionAt(start), me.PositionAt(end))
}

// UTF16Offset converts a byte offset to UTF-16 code units.
func (me *Source) UTF16Offset(offset int) int {
	return me.PositionAt(offset).UTF16
}

func (me *Source) clamp(offset int) int {
	if offset < 0 {
		return 0
	}
	if offset > len(me.text) {
		return len(me.text)
	}
	return offset
}
