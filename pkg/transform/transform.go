// Package transform runs read-only analysis passes over a parsed template.
//
// Passes never change the tree. They accumulate whole-template facts into a
// Metadata record that the generator reads afterwards: which runtime helpers
// to import, whether the function must be async and which slot parameters it
// takes.
package transform

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/walteh/gohyper/pkg/ast"
	"github.com/walteh/gohyper/pkg/classify"
)

// Metadata is the accumulator shared by all passes of one compilation.
type Metadata struct {
	HelpersUsed map[string]struct{}
	IsAsync     bool
	// SlotsUsed holds every referenced slot; the default slot is "".
	SlotsUsed map[string]struct{}
}

func NewMetadata() *Metadata {
	return &Metadata{
		HelpersUsed: map[string]struct{}{},
		SlotsUsed:   map[string]struct{}{},
	}
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Helpers returns the used helpers in sorted order.
func (me *Metadata) Helpers() []string {
	return sortedKeys(me.HelpersUsed)
}

// Slots returns every used slot name in sorted order, the default slot first.
func (me *Metadata) Slots() []string {
	return sortedKeys(me.SlotsUsed)
}

func (me *Metadata) UsesSlots() bool {
	return len(me.SlotsUsed) > 0
}

func (me *Metadata) UsesDefaultSlot() bool {
	_, ok := me.SlotsUsed[""]
	return ok
}

// NamedSlots returns the used slot names without the default slot.
func (me *Metadata) NamedSlots() []string {
	out := []string{}
	for _, s := range me.Slots() {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Visitor is one pass. Enter returns false to skip the children of node.
type Visitor interface {
	Enter(node ast.Node, md *Metadata) bool
	Exit(node ast.Node, md *Metadata)
}

// Walk visits nodes depth first. Continuation clauses are visited as children
// of the block that owns them, after its main body.
func Walk(nodes []ast.Node, v Visitor, md *Metadata) {
	for _, n := range nodes {
		walk(n, v, md)
	}
}

func walk(n ast.Node, v Visitor, md *Metadata) {
	if v.Enter(n, md) {
		for _, c := range Children(n) {
			walk(c, v, md)
		}
	}
	v.Exit(n, md)
}

func clauses(cs ...*ast.Clause) []ast.Node {
	out := []ast.Node{}
	for _, c := range cs {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Children returns the direct children of n in source order.
func Children(n ast.Node) []ast.Node {
	switch n := n.(type) {
	case *ast.Text, *ast.Expression, *ast.Statement, *ast.Import,
		*ast.Parameter, *ast.Decorator, *ast.Comment:
		return nil
	case *ast.Element:
		return n.Children
	case *ast.Component:
		return n.Children
	case *ast.Fragment:
		return n.Children
	case *ast.Slot:
		return n.Fallback
	case *ast.Clause:
		return n.Body
	case *ast.If:
		out := append([]ast.Node{}, n.Then...)
		out = append(out, clauses(n.Elifs...)...)
		return append(out, clauses(n.Else)...)
	case *ast.For:
		return append(append([]ast.Node{}, n.Body...), clauses(n.Else)...)
	case *ast.While:
		return append(append([]ast.Node{}, n.Body...), clauses(n.Else)...)
	case *ast.Match:
		return clauses(n.Cases...)
	case *ast.With:
		return n.Body
	case *ast.Try:
		out := append([]ast.Node{}, n.Body...)
		out = append(out, clauses(n.Excepts...)...)
		return append(out, clauses(n.Else, n.Finally)...)
	case *ast.Definition:
		return n.Body
	}
	panic(fmt.Sprintf("transform: unhandled node %T", n))
}

// Pipeline runs passes in order, each as a complete walk.
type Pipeline struct {
	passes []Visitor
}

func NewPipeline(passes ...Visitor) *Pipeline {
	return &Pipeline{passes: passes}
}

// Standard returns the helper, async and slot passes. The classifier
// confirms await expressions; nil falls back to a textual check.
func Standard(c classify.Classifier) *Pipeline {
	return NewPipeline(&HelperDetector{}, &AsyncDetector{Classifier: c}, &SlotDetector{})
}

// Add appends a pass.
func (me *Pipeline) Add(v Visitor) *Pipeline {
	me.passes = append(me.passes, v)
	return me
}

func (me *Pipeline) Passes() []Visitor {
	return me.passes
}

// Run walks doc once per pass and returns the finished metadata.
func (me *Pipeline) Run(ctx context.Context, doc *ast.Document) *Metadata {
	md := NewMetadata()
	for _, pass := range me.passes {
		start := time.Now()
		Walk(doc.Nodes, pass, md)
		zerolog.Ctx(ctx).Debug().
			Str("pass", reflect.TypeOf(pass).String()).
			Dur("took", time.Since(start)).
			Msg("transform pass done")
	}
	return md
}
