package classify

import (
	"context"
	"regexp"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

var _ Classifier = (*TreeSitter)(nil)

// TreeSitter classifies lines with the tree-sitter Python grammar.
type TreeSitter struct {
	mu     sync.Mutex
	parser *sitter.Parser
}

// NewTreeSitter creates a classifier with its own parser.
func NewTreeSitter() *TreeSitter {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	return &TreeSitter{parser: parser}
}

func (me *TreeSitter) parse(code string) *sitter.Tree {
	me.mu.Lock()
	defer me.mu.Unlock()
	tree, err := me.parser.ParseCtx(context.Background(), nil, []byte(code))
	if err != nil {
		return nil
	}
	return tree
}

// Classify implements Classifier.
func (me *TreeSitter) Classify(line string) (kind Kind, ok bool) {
	defer func() {
		if recover() != nil {
			kind, ok = "", false
		}
	}()

	tree := me.parse(strings.TrimSpace(line))
	if tree == nil {
		return "", false
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return "", false
	}

	var stmt *sitter.Node
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		if stmt != nil {
			// more than one statement on the line
			return KindOther, true
		}
		stmt = child
	}
	if stmt == nil {
		return "", false
	}

	return statementKind(stmt), true
}

func statementKind(stmt *sitter.Node) Kind {
	switch stmt.Type() {
	case "expression_statement":
		if stmt.NamedChildCount() == 0 {
			return KindExpression
		}
		return expressionKind(stmt.NamedChild(0))
	case "import_statement":
		return KindImport
	case "import_from_statement", "future_import_statement":
		return KindImportFrom
	case "return_statement":
		return KindReturn
	case "raise_statement":
		return KindRaise
	case "assert_statement":
		return KindAssert
	case "pass_statement":
		return KindPass
	case "break_statement":
		return KindBreak
	case "continue_statement":
		return KindContinue
	case "delete_statement":
		return KindDelete
	case "global_statement":
		return KindGlobal
	case "nonlocal_statement":
		return KindNonlocal
	}
	return KindOther
}

func expressionKind(expr *sitter.Node) Kind {
	switch expr.Type() {
	case "assignment":
		if expr.ChildByFieldName("right") == nil {
			return KindAnnotation
		}
		return KindAssignment
	case "augmented_assignment":
		return KindAugmentedAssignment
	case "call":
		return KindCall
	case "await":
		return KindAwait
	case "yield":
		return KindYield
	case "named_expression":
		return KindNamedExpression
	case "parenthesized_expression":
		if expr.NamedChildCount() == 1 && expr.NamedChild(0).Type() == "named_expression" {
			return KindNamedExpression
		}
	}
	return KindExpression
}

var awaitWord = regexp.MustCompile(`(^|[^\w.])await\s`)

// HasAwait implements Classifier. Code that does not parse falls back to a
// word match so that fragments such as `await x` inside markup are still seen.
func (me *TreeSitter) HasAwait(code string) (found bool) {
	defer func() {
		if recover() != nil {
			found = awaitWord.MatchString(code)
		}
	}()

	tree := me.parse(code)
	if tree == nil {
		return awaitWord.MatchString(code)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return awaitWord.MatchString(code)
	}
	return containsType(root, "await")
}

func containsType(n *sitter.Node, typ string) bool {
	if n.Type() == typ {
		return true
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if containsType(n.NamedChild(i), typ) {
			return true
		}
	}
	return false
}

// Parses reports whether code is a Python module without syntax errors.
func (me *TreeSitter) Parses(code string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	tree := me.parse(code)
	if tree == nil {
		return false
	}
	defer tree.Close()
	return !tree.RootNode().HasError()
}
