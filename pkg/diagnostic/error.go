package diagnostic

import (
	"fmt"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gohyper/pkg/position"
)

// Kind is the closed set of compile error categories.
type Kind int

const (
	UnclosedElement Kind = iota
	UnclosedComponent
	UnclosedSlot
	UnclosedBlock
	MismatchedCloseTag
	UnexpectedToken
	InvalidSyntax
	VoidElementWithContent
	DuplicateAttribute
	InvalidNesting
	// Generate is reported by the code generator; a valid tree never produces it.
	Generate
)

var kindNames = [...]string{
	UnclosedElement:        "Unclosed element",
	UnclosedComponent:      "Unclosed component",
	UnclosedSlot:           "Unclosed slot",
	UnclosedBlock:          "Unclosed block",
	MismatchedCloseTag:     "Mismatched close tag",
	UnexpectedToken:        "Unexpected token",
	InvalidSyntax:          "Invalid syntax",
	VoidElementWithContent: "Void element with content",
	DuplicateAttribute:     "Duplicate attribute",
	InvalidNesting:         "Invalid nesting",
	Generate:               "Generation error",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown error"
}

// DefaultRelatedLabel labels a related span when no label was given.
const DefaultRelatedLabel = "opened here"

// Related is a secondary span shown below the primary one.
type Related struct {
	Span  position.Span
	Label string
}

// Error is a compile error with enough location data to render a source excerpt.
type Error struct {
	Kind    Kind
	Message string
	Span    position.Span
	Related *Related
	// Help may span several lines.
	Help string
}

var _ error = (*Error)(nil)

// New creates an error of the given kind at span.
func New(kind Kind, span position.Span, format string, args ...any) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Message: msg, Span: span}
}

// WithRelated attaches a secondary span labeled "opened here".
func (e *Error) WithRelated(span position.Span) *Error {
	e.Related = &Related{Span: span}
	return e
}

// WithRelatedLabel attaches a secondary span with its own label.
func (e *Error) WithRelatedLabel(span position.Span, label string) *Error {
	e.Related = &Related{Span: span, Label: label}
	return e
}

func (e *Error) WithHelp(help string) *Error {
	e.Help = help
	return e
}

func (e *Error) Error() string {
	return e.Message
}

// RelatedLabel returns the label of the related span.
func (e *Error) RelatedLabel() string {
	if e.Related == nil || e.Related.Label == "" {
		return DefaultRelatedLabel
	}
	return e.Related.Label
}

// IsParse reports whether the error is a structural error from the parser, as
// opposed to a generator failure.
func (e *Error) IsParse() bool {
	return e.Kind != Generate
}

// AsError finds a compile error anywhere in err's chain.
func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// IsParse reports whether err carries a parser error.
func IsParse(err error) bool {
	e, ok := AsError(err)
	return ok && e.IsParse()
}

// IsKind reports whether err carries a compile error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == kind
}
