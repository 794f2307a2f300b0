package lexer

import (
	"fmt"

	"github.com/walteh/gohyper/pkg/classify"
	"github.com/walteh/gohyper/pkg/position"
)

// Kind is the lexical category of a token.
type Kind int

const (
	Indent Kind = iota
	Newline
	EOF

	ControlStart
	ControlContinuation
	End
	Statement
	Comment
	Decorator

	Text
	Expression
	EscapedBrace

	ComponentOpen
	ComponentClose
	HTMLOpen
	HTMLClose
	SlotOpen
	SlotClose
	FragmentStart
	Separator
)

var kindNames = [...]string{
	Indent:              "Indent",
	Newline:             "Newline",
	EOF:                 "EOF",
	ControlStart:        "ControlStart",
	ControlContinuation: "ControlContinuation",
	End:                 "End",
	Statement:           "Statement",
	Comment:             "Comment",
	Decorator:           "Decorator",
	Text:                "Text",
	Expression:          "Expression",
	EscapedBrace:        "EscapedBrace",
	ComponentOpen:       "ComponentOpen",
	ComponentClose:      "ComponentClose",
	HTMLOpen:            "HTMLOpen",
	HTMLClose:           "HTMLClose",
	SlotOpen:            "SlotOpen",
	SlotClose:           "SlotClose",
	FragmentStart:       "FragmentStart",
	Separator:           "Separator",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is one lexical unit. Only the payload fields meaningful for Kind are set.
type Token struct {
	Kind Kind
	Span position.Span

	// Text holds the payload: statement, comment or decorator code, text
	// content, expression code, the control text after the keyword, or the
	// character an escaped brace stands for.
	Text string
	// ValueSpan covers the semantic part of Text in the source: expression
	// code without braces, or the condition of a control line.
	ValueSpan position.Span

	// Keyword is the control keyword, e.g. "if", "async for", "elif", "def".
	Keyword string
	// Async marks async control keywords.
	Async bool

	// Name is the tag, component, slot or fragment name. Slots use "" for the default slot.
	Name        string
	NameSpan    position.Span
	Attributes  []Attribute
	SelfClosing bool

	// StatementKind is the classifier verdict for statements.
	StatementKind classify.Kind
	// Inline marks a comment that trails content on the same line.
	Inline bool
}

func (t Token) String() string {
	switch t.Kind {
	case Indent, Newline, EOF, Separator, End:
		return t.Kind.String()
	case ControlStart, ControlContinuation:
		return fmt.Sprintf("%s(%s %q)", t.Kind, t.Keyword, t.Text)
	case HTMLOpen, HTMLClose, ComponentOpen, ComponentClose, SlotOpen, SlotClose, FragmentStart:
		return fmt.Sprintf("%s(%s)", t.Kind, t.Name)
	}
	return fmt.Sprintf("%s(%q)", t.Kind, t.Text)
}

// AttributeKind is the syntactic form of an attribute.
type AttributeKind int

const (
	// AttrStatic is name="value" or name='value'.
	AttrStatic AttributeKind = iota
	// AttrDynamic is name={expr}.
	AttrDynamic
	// AttrBoolean is a bare name.
	AttrBoolean
	// AttrShorthand is {name}, short for name={name}.
	AttrShorthand
	// AttrSpread is {**expr}.
	AttrSpread
	// AttrSlot is {...name}; it routes an element into a named slot of the enclosing component.
	AttrSlot
)

func (k AttributeKind) String() string {
	switch k {
	case AttrStatic:
		return "static"
	case AttrDynamic:
		return "dynamic"
	case AttrBoolean:
		return "boolean"
	case AttrShorthand:
		return "shorthand"
	case AttrSpread:
		return "spread"
	case AttrSlot:
		return "slot"
	}
	return fmt.Sprintf("AttributeKind(%d)", int(k))
}

// Attribute is one attribute of an element or component tag.
type Attribute struct {
	Kind  AttributeKind
	Name  string
	Value string
	// Span covers the whole attribute.
	Span position.Span
	// ValueSpan covers exactly the value: the expression without braces,
	// or the static text without quotes.
	ValueSpan position.Span
}

// IsNamed reports whether the attribute takes part in duplicate detection.
func (a Attribute) IsNamed() bool {
	return a.Kind != AttrSpread && a.Kind != AttrSlot
}
