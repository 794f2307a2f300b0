// Package classify decides whether a template line is host-language (Python) code.
//
// The lexer consults a Classifier as a black-box oracle. A cheap Prefilter runs
// first and keeps obvious prose and markup away from the classifier.
package classify

// Kind is the syntactic kind of a single top-level Python statement.
type Kind string

const (
	KindAssignment          Kind = "assignment"
	KindAugmentedAssignment Kind = "augmented_assignment"
	KindAnnotation          Kind = "annotation"
	KindImport              Kind = "import_statement"
	KindImportFrom          Kind = "import_from_statement"
	KindReturn              Kind = "return_statement"
	KindRaise               Kind = "raise_statement"
	KindAssert              Kind = "assert_statement"
	KindPass                Kind = "pass_statement"
	KindBreak               Kind = "break_statement"
	KindContinue            Kind = "continue_statement"
	KindDelete              Kind = "delete_statement"
	KindGlobal              Kind = "global_statement"
	KindNonlocal            Kind = "nonlocal_statement"
	KindCall                Kind = "call"
	KindAwait               Kind = "await"
	KindYield               Kind = "yield"
	KindNamedExpression     Kind = "named_expression"
	KindExpression          Kind = "expression"
	KindOther               Kind = "other"
)

// Executable reports whether a line of this kind is run as a statement.
// Bare expressions and annotations are left to the parser as content or parameters.
func (k Kind) Executable() bool {
	switch k {
	case KindAssignment, KindAugmentedAssignment,
		KindImport, KindImportFrom,
		KindReturn, KindRaise, KindAssert, KindPass, KindBreak, KindContinue,
		KindDelete, KindGlobal, KindNonlocal,
		KindCall, KindAwait, KindYield, KindNamedExpression:
		return true
	}
	return false
}

// IsImport reports whether the kind is one of the import statements.
func (k Kind) IsImport() bool {
	return k == KindImport || k == KindImportFrom
}

// Classifier is the host-language syntax oracle.
type Classifier interface {
	// Classify returns the kind of the single statement in line, or false when
	// the line does not parse. Implementations never panic or return errors.
	Classify(line string) (Kind, bool)
	// HasAwait reports whether the code contains an await expression.
	HasAwait(code string) bool
}
