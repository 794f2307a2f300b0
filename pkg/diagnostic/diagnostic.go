// Package diagnostic defines compile errors and the formats they are reported in.
package diagnostic

import (
	"encoding/json"
	"fmt"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// Diagnostics represents diagnostic information that can be formatted in different ways
type Diagnostics struct {
	Errors   []Diagnostic
	Warnings []Diagnostic
	Hints    []Diagnostic
}

// Diagnostic represents a single diagnostic message. Lines and columns are one based.
type Diagnostic struct {
	File     string
	Message  string
	Kind     string
	Help     string
	Line     int
	Column   int
	EndLine  int
	EndCol   int
	Severity DiagnosticSeverity
}

// DiagnosticSeverity represents the severity level of a diagnostic
type DiagnosticSeverity string

const (
	SeverityError   DiagnosticSeverity = "error"
	SeverityWarning DiagnosticSeverity = "warning"
	SeverityInfo    DiagnosticSeverity = "info"
	SeverityHint    DiagnosticSeverity = "hint"
)

// FromError converts any error into a diagnostic. Errors without location
// data are placed at the start of the file.
func FromError(file string, err error) Diagnostic {
	d := Diagnostic{
		File:     file,
		Message:  err.Error(),
		Line:     1,
		Column:   1,
		EndLine:  1,
		EndCol:   1,
		Severity: SeverityError,
	}
	if e, ok := AsError(err); ok {
		d.Message = e.Message
		d.Kind = e.Kind.String()
		d.Help = e.Help
		if e.Kind != Generate {
			d.Line = e.Span.Start.Line + 1
			d.Column = e.Span.Start.Col + 1
			d.EndLine = e.Span.End.Line + 1
			d.EndCol = e.Span.End.Col + 1
		}
	}
	return d
}

// Add records err as an error diagnostic.
func (me *Diagnostics) Add(file string, err error) {
	me.Errors = append(me.Errors, FromError(file, err))
}

// Empty reports whether nothing was collected.
func (me *Diagnostics) Empty() bool {
	return len(me.Errors) == 0 && len(me.Warnings) == 0 && len(me.Hints) == 0
}

// Formatter formats diagnostics into different output formats
type Formatter interface {
	// Format formats diagnostics into a specific output format
	Format(diagnostics *Diagnostics) ([]byte, error)
}

// TextFormatter writes one `file:line:col: severity: message` line per diagnostic.
type TextFormatter struct{}

func NewTextFormatter() *TextFormatter {
	return &TextFormatter{}
}

// Format implements Formatter
func (f *TextFormatter) Format(diagnostics *Diagnostics) ([]byte, error) {
	if diagnostics == nil {
		return nil, errors.Errorf("diagnostics is nil")
	}

	var b strings.Builder
	write := func(list []Diagnostic) {
		for _, d := range list {
			fmt.Fprintf(&b, "%s:%d:%d: %s: %s\n", d.File, d.Line, d.Column, d.Severity, d.Message)
		}
	}
	write(diagnostics.Errors)
	write(diagnostics.Warnings)
	write(diagnostics.Hints)
	return []byte(b.String()), nil
}

// JSONFormatter formats diagnostics the way editors consume them: zero based
// ranges and numeric severities.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSONFormatter
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

type jsonPlace struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type jsonRange struct {
	Start jsonPlace `json:"start"`
	End   jsonPlace `json:"end"`
}

type jsonDiagnostic struct {
	File     string    `json:"file,omitempty"`
	Severity int       `json:"severity"`
	Code     string    `json:"code,omitempty"`
	Message  string    `json:"message"`
	Help     string    `json:"help,omitempty"`
	Range    jsonRange `json:"range"`
}

// Format implements Formatter
func (f *JSONFormatter) Format(diagnostics *Diagnostics) ([]byte, error) {
	if diagnostics == nil {
		return nil, errors.Errorf("diagnostics is nil")
	}

	result := make([]jsonDiagnostic, 0, len(diagnostics.Errors)+len(diagnostics.Warnings)+len(diagnostics.Hints))
	convert := func(list []Diagnostic, severity int) {
		for _, d := range list {
			result = append(result, jsonDiagnostic{
				File:     d.File,
				Severity: severity,
				Code:     d.Kind,
				Message:  d.Message,
				Help:     d.Help,
				Range: jsonRange{
					Start: jsonPlace{Line: d.Line - 1, Character: d.Column - 1},
					End:   jsonPlace{Line: d.EndLine - 1, Character: d.EndCol - 1},
				},
			})
		}
	}

	// Error = 1, Warning = 2, Information = 3, Hint = 4
	convert(diagnostics.Errors, 1)
	convert(diagnostics.Warnings, 2)
	convert(diagnostics.Hints, 4)

	out, err := json.Marshal(result)
	if err != nil {
		return nil, errors.Errorf("marshalling diagnostics: %w", err)
	}
	return out, nil
}
