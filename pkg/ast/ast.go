// Package ast defines the tree produced by the parser.
//
// Node is a closed set: every variant is declared in this file. Content
// nodes describe markup, host nodes describe Python control flow and
// statements. Bodies are never nil and continuation clauses (elif, except,
// case, else, finally) hang off the node that opened the block.
package ast

import (
	"github.com/walteh/gohyper/pkg/classify"
	"github.com/walteh/gohyper/pkg/position"
)

// Node is any node of the tree.
type Node interface {
	NodeSpan() position.Span
	node()
}

// Pos is embedded in every node and carries its source span.
type Pos struct {
	Span position.Span
}

// At returns a Pos covering span.
func At(span position.Span) Pos {
	return Pos{Span: span}
}

func (p Pos) NodeSpan() position.Span {
	return p.Span
}

// Document is the root of a parsed template. Parameters, header decorators and
// top-level imports are lifted out of Nodes because they belong to the
// generated module and function signature rather than the body.
type Document struct {
	Source     *position.Source
	Parameters []*Parameter
	Decorators []*Decorator
	Imports    []*Import
	Nodes      []Node
}

// content nodes

// Text is literal content.
type Text struct {
	Pos
	Value string
}

// Expression is an interpolated `{expr}`.
type Expression struct {
	Pos
	Code string
	// Escape is set by the parser; a transform may clear it to emit the value verbatim.
	Escape   bool
	CodeSpan position.Span
}

// Element is an HTML element.
type Element struct {
	Pos
	Tag         string
	TagSpan     position.Span
	Attributes  []Attribute
	Children    []Node
	SelfClosing bool
}

// Component is a `<{Name}>` invocation.
type Component struct {
	Pos
	Name        string
	NameSpan    position.Span
	Attributes  []Attribute
	Children    []Node
	SelfClosing bool
}

// Fragment is a named `fragment Name:` block.
type Fragment struct {
	Pos
	Name     string
	Children []Node
}

// Slot renders content passed by the caller. The default slot has an empty name.
type Slot struct {
	Pos
	Name     string
	Fallback []Node
}

// host nodes

// Clause is a continuation of a block: elif, else, except, finally or case.
type Clause struct {
	Pos
	Keyword string
	// Header is the text between the keyword and the colon, e.g. the elif
	// condition, the except type or the case pattern.
	Header     string
	HeaderSpan position.Span
	Body       []Node
}

type If struct {
	Pos
	Condition string
	CondSpan  position.Span
	Then      []Node
	Elifs     []*Clause
	Else      *Clause
}

type For struct {
	Pos
	Target   string
	Iterable string
	// HeaderSpan covers `target in iterable`; IterSpan only the iterable.
	HeaderSpan position.Span
	IterSpan   position.Span
	Body       []Node
	Else       *Clause
	Async      bool
}

type While struct {
	Pos
	Condition string
	CondSpan  position.Span
	Body      []Node
	Else      *Clause
}

type Match struct {
	Pos
	Subject     string
	SubjectSpan position.Span
	Cases       []*Clause
}

type With struct {
	Pos
	Items     string
	ItemsSpan position.Span
	Body      []Node
	Async     bool
}

type Try struct {
	Pos
	Body    []Node
	Excepts []*Clause
	Else    *Clause
	Finally *Clause
}

// Statement is a line of executable Python.
type Statement struct {
	Pos
	Code string
	Kind classify.Kind
}

// Definition is a nested `def` or `class` block.
type Definition struct {
	Pos
	// Keyword is "def" or "class".
	Keyword   string
	Signature string
	SigSpan   position.Span
	Body      []Node
	Async     bool
}

// Import is a top-level import statement, hoisted to module scope.
type Import struct {
	Pos
	Code string
}

// Parameter is a header declaration such as `title: str = "Home"`.
type Parameter struct {
	Pos
	Name    string
	Type    string
	Default string
	// Variadic is "", "*" or "**".
	Variadic string
	// Code is the declaration as written.
	Code string
}

type Decorator struct {
	Pos
	Code string
}

// Comment is a `#` comment. Inline comments trail other content on their line.
type Comment struct {
	Pos
	Text   string
	Inline bool
}

func (*Text) node()       {}
func (*Expression) node() {}
func (*Element) node()    {}
func (*Component) node()  {}
func (*Fragment) node()   {}
func (*Slot) node()       {}
func (*If) node()         {}
func (*For) node()        {}
func (*While) node()      {}
func (*Match) node()      {}
func (*With) node()       {}
func (*Try) node()        {}
func (*Statement) node()  {}
func (*Definition) node() {}
func (*Import) node()     {}
func (*Parameter) node()  {}
func (*Decorator) node()  {}
func (*Comment) node()    {}
func (*Clause) node()     {}

// AttributeKind is the syntactic form of an attribute.
type AttributeKind int

const (
	AttrStatic AttributeKind = iota
	AttrDynamic
	AttrBoolean
	AttrShorthand
	AttrSpread
	// AttrSlot is `{...name}` on a child of a component; it routes the element into that slot.
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
	return "unknown"
}

// Attribute is owned by exactly one element or component.
type Attribute struct {
	Kind      AttributeKind
	Name      string
	Value     string
	Span      position.Span
	ValueSpan position.Span
}

// IsExpression reports whether the value is Python code.
func (a Attribute) IsExpression() bool {
	return a.Kind == AttrDynamic || a.Kind == AttrShorthand || a.Kind == AttrSpread
}

// SlotTarget returns the slot named by a `{...name}` attribute.
func SlotTarget(attrs []Attribute) (string, bool) {
	for _, a := range attrs {
		if a.Kind == AttrSlot {
			return a.Name, true
		}
	}
	return "", false
}
