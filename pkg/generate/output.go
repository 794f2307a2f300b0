package generate

import (
	"strings"
	"unicode/utf8"

	"github.com/walteh/gohyper/pkg/position"
)

// Offset is a position in generated code. It carries the same four
// coordinates as a source position so ranges can be expressed in bytes or
// UTF-16 units without re-deriving either.
type Offset = position.Position

// Mapping ties the start of a generated statement to the source it came from.
// Lines and columns are zero based; columns count characters.
type Mapping struct {
	GenLine int `json:"gen_line"`
	GenCol  int `json:"gen_col"`
	SrcLine int `json:"src_line"`
	SrcCol  int `json:"src_col"`
}

// RangeKind names the language of a virtual document.
type RangeKind string

const (
	RangePython RangeKind = "python"
	RangeHTML   RangeKind = "html"
)

// Range correlates a source span with the generated text it became.
// Offsets are bytes; the UTF16 fields are the same boundaries in UTF-16 units.
type Range struct {
	Kind           RangeKind `json:"kind"`
	SourceStart    int       `json:"source_start"`
	SourceEnd      int       `json:"source_end"`
	GeneratedStart int       `json:"generated_start"`
	GeneratedEnd   int       `json:"generated_end"`
	// NeedsInjection is false for text that is already standalone host code, such as parameters.
	NeedsInjection bool `json:"needs_injection"`

	SourceStartUTF16    int `json:"source_start_utf16"`
	SourceEndUTF16      int `json:"source_end_utf16"`
	GeneratedStartUTF16 int `json:"generated_start_utf16"`
	GeneratedEndUTF16   int `json:"generated_end_utf16"`
}

func (r Range) shift(by Offset) Range {
	r.GeneratedStart += by.Byte
	r.GeneratedEnd += by.Byte
	r.GeneratedStartUTF16 += by.UTF16
	r.GeneratedEndUTF16 += by.UTF16
	return r
}

// Output accumulates generated code and tracks the write position in every
// coordinate system as text is written.
type Output struct {
	buf      []byte
	pos      Offset
	indent   string
	mappings []Mapping
	ranges   []Range
}

func NewOutput(indent string) *Output {
	return &Output{indent: indent}
}

// Write appends s.
func (me *Output) Write(s string) {
	me.buf = append(me.buf, s...)
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		me.pos = me.pos.Advance(r, size)
		s = s[size:]
	}
}

func (me *Output) Newline() {
	me.Write("\n")
}

// WriteIndent writes level indentation units.
func (me *Output) WriteIndent(level int) {
	me.Write(strings.Repeat(me.indent, level))
}

// Mark returns the current write position.
func (me *Output) Mark() Offset {
	return me.pos
}

// Map records a mapping from the current write position to src.
func (me *Output) Map(src position.Position) {
	me.mappings = append(me.mappings, Mapping{
		GenLine: me.pos.Line,
		GenCol:  me.pos.Col,
		SrcLine: src.Line,
		SrcCol:  src.Col,
	})
}

// WriteRange writes code and records a range from src to it.
func (me *Output) WriteRange(kind RangeKind, src position.Span, code string, needsInjection bool) {
	start := me.Mark()
	me.Write(code)
	end := me.Mark()
	me.ranges = append(me.ranges, Range{
		Kind:                kind,
		SourceStart:         src.Start.Byte,
		SourceEnd:           src.End.Byte,
		GeneratedStart:      start.Byte,
		GeneratedEnd:        end.Byte,
		NeedsInjection:      needsInjection,
		SourceStartUTF16:    src.Start.UTF16,
		SourceEndUTF16:      src.End.UTF16,
		GeneratedStartUTF16: start.UTF16,
		GeneratedEndUTF16:   end.UTF16,
	})
}

// Trail appends s to the end of the previous line. The current line must be empty.
func (me *Output) Trail(s string) bool {
	n := len(me.buf)
	if me.pos.Col != 0 || n == 0 || me.buf[n-1] != '\n' {
		return false
	}
	if n == 1 || me.buf[n-2] == '\n' {
		// the previous line is blank
		return false
	}
	me.buf = append(me.buf[:n-1], s+"\n"...)
	me.pos.Byte += len(s)
	me.pos.UTF16 += position.UTF16Len(s)
	return true
}

func (me *Output) String() string {
	return string(me.buf)
}

func (me *Output) Mappings() []Mapping {
	return me.mappings
}

func (me *Output) Ranges() []Range {
	return me.ranges
}
