package position

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

// Position is a location in a Source.
// Line and Col are zero based; Col counts characters, not bytes.
type Position struct {
	// Byte is the absolute byte offset in the source text
	Byte int
	// Line is the zero based line number
	Line int
	// Col is the zero based column, in characters
	Col int
	// UTF16 is the absolute offset in UTF-16 code units
	UTF16 int
}

// Advance returns the position one character after p, where the character r
// was decoded from size bytes.
func (p Position) Advance(r rune, size int) Position {
	next := Position{
		Byte:  p.Byte + size,
		Line:  p.Line,
		Col:   p.Col + 1,
		UTF16: p.UTF16 + runeUTF16Len(r),
	}
	if r == '\n' {
		next.Line++
		next.Col = 0
	}
	return next
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d@%d", p.Line+1, p.Col+1, p.Byte)
}

// Place is a line/character pair, as editors address documents.
type Place struct {
	Line      int
	Character int
}

// Range is a pair of places.
type Range struct {
	Start Place
	End   Place
}

// Span is a half-open range over source text.
type Span struct {
	Start Position
	End   Position
}

// NewSpan creates a span between two positions.
func NewSpan(start, end Position) Span {
	if end.Byte < start.Byte {
		end = start
	}
	return Span{Start: start, End: end}
}

// Len returns the length of the span in bytes.
func (s Span) Len() int {
	return s.End.Byte - s.Start.Byte
}

func (s Span) IsZero() bool {
	return s.Start == Position{} && s.End == Position{}
}

// Contains reports whether other lies entirely within s.
func (s Span) Contains(other Span) bool {
	return s.Start.Byte <= other.Start.Byte && other.End.Byte <= s.End.Byte
}

// HasOverlapWith reports whether the two spans share at least one byte.
// A zero-length span overlaps when it falls inside the other span.
func (s Span) HasOverlapWith(other Span) bool {
	if s.Len() == 0 {
		return s.Start.Byte >= other.Start.Byte && s.Start.Byte <= other.End.Byte
	}
	if other.Len() == 0 {
		return other.Start.Byte >= s.Start.Byte && other.Start.Byte <= s.End.Byte
	}
	return other.Start.Byte < s.End.Byte && other.End.Byte > s.Start.Byte
}

// Join returns the smallest span covering both a and b.
func Join(a, b Span) Span {
	out := a
	if b.Start.Byte < out.Start.Byte {
		out.Start = b.Start
	}
	if b.End.Byte > out.End.Byte {
		out.End = b.End
	}
	return out
}

// Range converts the span to an editor range.
func (s Span) Range() Range {
	return Range{
		Start: Place{Line: s.Start.Line, Character: s.Start.Col},
		End:   Place{Line: s.End.Line, Character: s.End.Col},
	}
}

func (s Span) String() string {
	return fmt.Sprintf("%s-%s", s.Start, s.End)
}

func runeUTF16Len(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	// utf8.RuneError and surrogate halves encode as a single unit
	return 1
}

// UTF16Len returns the number of UTF-16 code units needed to encode s.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		n += runeUTF16Len(r)
	}
	return n
}

// ByteToUTF16 converts a byte offset into text to a UTF-16 code unit offset.
// Offsets past the end are clamped; offsets inside a multi-byte rune round down.
func ByteToUTF16(text string, offset int) int {
	if offset > len(text) {
		offset = len(text)
	}
	n := 0
	for i := 0; i < offset; {
		r, size := utf8.DecodeRuneInString(text[i:])
		if i+size > offset {
			break
		}
		n += runeUTF16Len(r)
		i += size
	}
	return n
}
