package transform

import (
	"regexp"
	"strings"

	"github.com/walteh/gohyper/pkg/ast"
	"github.com/walteh/gohyper/pkg/classify"
)

// KnownHelpers are the runtime formatting helpers a template may call.
var KnownHelpers = []string{
	"escape", "safe", "render_class", "render_style", "render_attr",
	"render_data", "render_aria", "spread_attrs",
}

var helperCall = regexp.MustCompile(`\b(` + strings.Join(KnownHelpers, "|") + `)\s*\(`)

// HelperDetector records calls to runtime helpers so the generator imports only those.
type HelperDetector struct{}

func (*HelperDetector) Enter(node ast.Node, md *Metadata) bool {
	for _, code := range codeOf(node) {
		for _, m := range helperCall.FindAllStringSubmatch(code, -1) {
			md.HelpersUsed[m[1]] = struct{}{}
		}
	}
	return true
}

func (*HelperDetector) Exit(ast.Node, *Metadata) {}

// AsyncDetector marks the template async when it awaits anything or uses
// async for/with. The bodies of nested async definitions are their own scope.
type AsyncDetector struct {
	Classifier classify.Classifier
}

var awaitWord = regexp.MustCompile(`\bawait\b`)

func (me *AsyncDetector) hasAwait(code string) bool {
	if !awaitWord.MatchString(code) {
		return false
	}
	if me.Classifier == nil {
		return true
	}
	return me.Classifier.HasAwait(code)
}

func (me *AsyncDetector) Enter(node ast.Node, md *Metadata) bool {
	switch n := node.(type) {
	case *ast.For:
		if n.Async {
			md.IsAsync = true
		}
	case *ast.With:
		if n.Async {
			md.IsAsync = true
		}
	case *ast.Definition:
		if n.Async {
			return false
		}
	}
	if md.IsAsync {
		return true
	}
	for _, code := range codeOf(node) {
		if me.hasAwait(code) {
			md.IsAsync = true
			break
		}
	}
	return true
}

func (*AsyncDetector) Exit(ast.Node, *Metadata) {}

// SlotDetector records every slot the template renders.
type SlotDetector struct{}

func (*SlotDetector) Enter(node ast.Node, md *Metadata) bool {
	if s, ok := node.(*ast.Slot); ok {
		md.SlotsUsed[s.Name] = struct{}{}
	}
	return true
}

func (*SlotDetector) Exit(ast.Node, *Metadata) {}

// codeOf returns the host-language text a node carries directly.
func codeOf(node ast.Node) []string {
	switch n := node.(type) {
	case *ast.Expression:
		return []string{n.Code}
	case *ast.Statement:
		return []string{n.Code}
	case *ast.Element:
		return attributeCode(n.Attributes)
	case *ast.Component:
		return attributeCode(n.Attributes)
	case *ast.If:
		return []string{n.Condition}
	case *ast.Clause:
		return []string{n.Header}
	case *ast.For:
		return []string{n.Iterable}
	case *ast.While:
		return []string{n.Condition}
	case *ast.Match:
		return []string{n.Subject}
	case *ast.With:
		return []string{n.Items}
	}
	return nil
}

func attributeCode(attrs []ast.Attribute) []string {
	var out []string
	for _, a := range attrs {
		if a.IsExpression() {
			out = append(out, a.Value)
		}
	}
	return out
}
