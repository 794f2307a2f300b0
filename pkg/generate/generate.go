// Package generate turns a parsed template into the source of a Python
// generator function, plus the mappings and ranges editors need to relate
// the generated code back to the template.
package generate

import (
	"sort"
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gohyper/pkg/ast"
	"github.com/walteh/gohyper/pkg/diagnostic"
	"github.com/walteh/gohyper/pkg/html"
	"github.com/walteh/gohyper/pkg/position"
	"github.com/walteh/gohyper/pkg/transform"
)

const DefaultIndent = "    "

type Options struct {
	// FunctionName is converted to PascalCase; empty means Render.
	FunctionName  string
	IncludeRanges bool
	Indent        string
}

type Result struct {
	Code       string      `json:"code"`
	Mappings   []Mapping   `json:"mappings"`
	Ranges     []Range     `json:"ranges,omitempty"`
	Injections []Injection `json:"injections,omitempty"`
}

type pieceKind int

const (
	// pieceText is template text; it is escaped for the string literal.
	pieceText pieceKind = iota
	// pieceSyntax is f-string syntax written as is.
	pieceSyntax
	// pieceCode is host code and records a range.
	pieceCode
)

type piece struct {
	kind pieceKind
	text string
	span position.Span
}

type generator struct {
	doc  *ast.Document
	md   *transform.Metadata
	out  *Output
	opts Options

	// run is the literal being merged; runStart is where its first piece came from.
	run      []piece
	runStart position.Position

	// sink is the accumulator receiving output; empty means yield.
	sink string

	stmts       int
	lines       int
	bodyLines   int
	lastComment bool
	markers     bool
	names       map[string]int
	err         error
}

// Generate emits the Python module for doc. md is the output of the transform
// passes; nil is treated as empty metadata.
func Generate(doc *ast.Document, md *transform.Metadata, opts Options) (*Result, error) {
	if md == nil {
		md = transform.NewMetadata()
	}
	if opts.Indent == "" {
		opts.Indent = DefaultIndent
	}

	g := &generator{
		doc:   doc,
		md:    md,
		out:   NewOutput(opts.Indent),
		opts:  opts,
		names: map[string]int{},
	}

	g.signature(FunctionName(opts.FunctionName))
	g.topLevel(doc.Nodes)
	if g.err != nil {
		return nil, errors.WithStack(g.err)
	}

	preamble := g.preamble()
	shift := measure(preamble)

	res := &Result{
		Code:     preamble + g.out.String(),
		Mappings: make([]Mapping, 0, len(g.out.Mappings())),
	}
	for _, m := range g.out.Mappings() {
		m.GenLine += shift.Line
		res.Mappings = append(res.Mappings, m)
	}
	if opts.IncludeRanges {
		res.Ranges = make([]Range, 0, len(g.out.Ranges()))
		for _, r := range g.out.Ranges() {
			res.Ranges = append(res.Ranges, r.shift(shift))
		}
		res.Injections = ComputeInjections(res.Code, res.Ranges)
	}
	return res, nil
}

func measure(s string) Offset {
	o := NewOutput("")
	o.Write(s)
	return o.Mark()
}

func (g *generator) preamble() string {
	var b strings.Builder
	if g.md.UsesSlots() {
		b.WriteString("from collections.abc import Iterable\n")
	}

	imports := []string{"component"}
	if g.markers {
		imports = append(imports, "replace_markers")
	}
	for _, h := range g.md.Helpers() {
		if h != "component" && h != "replace_markers" {
			imports = append(imports, h)
		}
	}
	b.WriteString("from hyper import " + strings.Join(imports, ", ") + "\n")

	for _, imp := range g.doc.Imports {
		b.WriteString(imp.Code + "\n")
	}
	b.WriteString("\n\n")

	for _, d := range g.doc.Decorators {
		b.WriteString(d.Code + "\n")
	}
	b.WriteString("@component\n")
	return b.String()
}

const slotType = ": Iterable[str] | None = None"

func (g *generator) signature(name string) {
	if g.md.IsAsync {
		g.out.Write("async ")
	}
	g.out.Write("def " + name + "(")

	first := true
	sep := func() {
		if !first {
			g.out.Write(", ")
		}
		first = false
	}

	if g.md.UsesDefaultSlot() {
		sep()
		g.out.Write("_content" + slotType)
	}
	for _, s := range g.md.NamedSlots() {
		sep()
		g.out.Write(slotVar(s) + slotType)
	}

	var star, dstar *ast.Parameter
	var keywords []*ast.Parameter
	for _, p := range g.doc.Parameters {
		switch {
		case p.Variadic == "*" && star == nil:
			star = p
		case p.Variadic == "**" && dstar == nil:
			dstar = p
		default:
			keywords = append(keywords, p)
		}
	}

	if star != nil {
		sep()
		g.parameter(star)
	} else if len(keywords) > 0 {
		sep()
		g.out.Write("*")
	}
	for _, p := range keywords {
		sep()
		g.parameter(p)
	}
	if dstar != nil {
		sep()
		g.parameter(dstar)
	}
	g.out.Write("):")
	g.out.Newline()
}

func (g *generator) parameter(p *ast.Parameter) {
	g.out.WriteRange(RangePython, p.Span, p.Code, false)
}

func slotVar(name string) string {
	if name == "" {
		return "_content"
	}
	return "_" + name
}

// topLevel emits the function body. An empty template still has to produce a generator.
func (g *generator) topLevel(nodes []ast.Node) {
	g.bodyLines = g.lines
	g.emitNodes(nodes, 1)
	g.flush(1)
	if g.stmts == 0 {
		g.begin(1, position.Position{})
		g.out.Write(`yield ""`)
		g.end()
	}
}

// body emits nodes as an indented block, with pass for an empty one.
func (g *generator) body(nodes []ast.Node, level int) {
	run, runStart, bodyLines, lastComment := g.run, g.runStart, g.bodyLines, g.lastComment
	g.run = nil
	g.bodyLines = g.lines
	g.lastComment = false
	before := g.stmts

	g.emitNodes(nodes, level)
	g.flush(level)
	if g.stmts == before {
		g.begin(level, position.Position{})
		g.out.Write("pass")
		g.end()
	}

	g.run, g.runStart, g.bodyLines, g.lastComment = run, runStart, bodyLines, lastComment
}

// begin starts a statement line mapped to src.
func (g *generator) begin(level int, src position.Position) {
	g.out.WriteIndent(level)
	g.out.Map(src)
	g.stmts++
	g.lines++
	g.lastComment = false
}

func (g *generator) end() {
	g.out.Newline()
}

func (g *generator) emitNodes(nodes []ast.Node, level int) {
	for _, n := range nodes {
		g.emitNode(n, level)
	}
}

func (g *generator) emitNode(node ast.Node, level int) {
	switch n := node.(type) {
	case *ast.Text:
		g.add(n.Span.Start, piece{kind: pieceText, text: n.Value})
		return
	case *ast.Expression:
		g.expression(n)
		return
	case *ast.Element:
		g.element(n, level)
		return
	case *ast.Fragment:
		g.emitNodes(n.Children, level)
		return
	case *ast.Comment:
		g.comment(n, level)
		return
	}

	g.flush(level)
	switch n := node.(type) {
	case *ast.Component:
		g.component(n, level)
	case *ast.Slot:
		g.slot(n, level)
	case *ast.If:
		g.header(level, n.Span.Start, "if ", n.CondSpan, n.Condition)
		g.body(n.Then, level+1)
		for _, c := range n.Elifs {
			g.header(level, c.Span.Start, "elif ", c.HeaderSpan, c.Header)
			g.body(c.Body, level+1)
		}
		g.elseClause(n.Else, level)
	case *ast.For:
		kw := "for "
		if n.Async {
			kw = "async for "
		}
		g.begin(level, n.Span.Start)
		g.out.Write(kw + n.Target + " in ")
		g.out.WriteRange(RangePython, n.IterSpan, n.Iterable, true)
		g.out.Write(":")
		g.end()
		g.body(n.Body, level+1)
		g.elseClause(n.Else, level)
	case *ast.While:
		g.header(level, n.Span.Start, "while ", n.CondSpan, n.Condition)
		g.body(n.Body, level+1)
		g.elseClause(n.Else, level)
	case *ast.Match:
		g.header(level, n.Span.Start, "match ", n.SubjectSpan, n.Subject)
		if len(n.Cases) == 0 {
			g.begin(level+1, n.Span.Start)
			g.out.Write("case _:")
			g.end()
			g.body(nil, level+2)
		}
		for _, c := range n.Cases {
			g.header(level+1, c.Span.Start, "case ", c.HeaderSpan, c.Header)
			g.body(c.Body, level+2)
		}
	case *ast.With:
		kw := "with "
		if n.Async {
			kw = "async with "
		}
		g.header(level, n.Span.Start, kw, n.ItemsSpan, n.Items)
		g.body(n.Body, level+1)
	case *ast.Try:
		g.begin(level, n.Span.Start)
		g.out.Write("try:")
		g.end()
		g.body(n.Body, level+1)
		for _, c := range n.Excepts {
			if c.Header == "" {
				g.begin(level, c.Span.Start)
				g.out.Write("except:")
				g.end()
			} else {
				g.header(level, c.Span.Start, "except ", c.HeaderSpan, c.Header)
			}
			g.body(c.Body, level+1)
		}
		g.elseClause(n.Else, level)
		if n.Finally != nil {
			g.begin(level, n.Finally.Span.Start)
			g.out.Write("finally:")
			g.end()
			g.body(n.Finally.Body, level+1)
		}
	case *ast.Definition:
		g.begin(level, n.Span.Start)
		if n.Async {
			g.out.Write("async ")
		}
		g.out.Write(n.Keyword + " " + n.Signature + ":")
		g.end()
		// a nested definition yields to its own caller
		sink := g.sink
		g.sink = ""
		g.body(n.Body, level+1)
		g.sink = sink
	case *ast.Statement:
		g.begin(level, n.Span.Start)
		g.out.Write(n.Code)
		g.end()
	case *ast.Decorator:
		g.begin(level, n.Span.Start)
		g.out.Write(n.Code)
		g.end()
	case *ast.Import:
		g.begin(level, n.Span.Start)
		g.out.Write(n.Code)
		g.end()
	default:
		if g.err == nil {
			g.err = diagnostic.New(diagnostic.Generate, node.NodeSpan(), "No code can be generated for %T.", node)
		}
	}
}

// header writes `keyword code:` with code recorded as a python range.
func (g *generator) header(level int, at position.Position, keyword string, span position.Span, code string) {
	g.begin(level, at)
	g.out.Write(keyword)
	g.out.WriteRange(RangePython, span, code, true)
	g.out.Write(":")
	g.end()
}

func (g *generator) elseClause(c *ast.Clause, level int) {
	if c == nil {
		return
	}
	g.begin(level, c.Span.Start)
	g.out.Write("else:")
	g.end()
	g.body(c.Body, level+1)
}

func (g *generator) comment(c *ast.Comment, level int) {
	g.flush(level)
	text := "# " + c.Text
	if c.Inline && g.out.Trail("  "+text) {
		return
	}
	if g.lines > g.bodyLines && !g.lastComment {
		g.out.Newline()
	}
	g.out.WriteIndent(level)
	g.out.Map(c.Span.Start)
	g.out.Write(text)
	g.out.Newline()
	g.lines++
	g.lastComment = true
}

// literal runs

func (g *generator) add(at position.Position, pieces ...piece) {
	if len(g.run) == 0 {
		g.runStart = at
	}
	g.run = append(g.run, pieces...)
}

func text(s string) piece {
	return piece{kind: pieceText, text: s}
}

func syntax(s string) piece {
	return piece{kind: pieceSyntax, text: s}
}

// interpolate returns the pieces of `open{code}close`. Braces get padding
// when the code itself starts or ends with one, so they are not read as escapes.
func interpolate(open string, code string, span position.Span, close string) []piece {
	lb, rb := "{", "}"
	if strings.HasPrefix(code, "{") {
		lb = "{ "
	}
	if strings.HasSuffix(code, "}") {
		rb = " }"
	}
	return []piece{
		syntax(open + lb),
		{kind: pieceCode, text: code, span: span},
		syntax(rb + close),
	}
}

func (g *generator) expression(e *ast.Expression) {
	if e.Escape {
		g.add(e.Span.Start, interpolate("‹ESCAPE:", e.Code, e.CodeSpan, "›")...)
		return
	}
	g.add(e.Span.Start, interpolate("", e.Code, e.CodeSpan, "")...)
}

func (g *generator) element(e *ast.Element, level int) {
	g.add(e.Span.Start, text("<"+e.Tag))
	g.attributes(e.Span.Start, e.Attributes)
	if e.SelfClosing {
		g.add(e.Span.Start, text(" />"))
		return
	}
	g.add(e.Span.Start, text(">"))
	g.emitNodes(e.Children, level)
	g.add(e.Span.End, text("</"+e.Tag+">"))
}

var attributeMarkers = map[string]string{
	"class": "CLASS",
	"style": "STYLE",
	"data":  "DATA",
	"aria":  "ARIA",
}

func (g *generator) attributes(at position.Position, attrs []ast.Attribute) {
	for _, a := range attrs {
		switch a.Kind {
		case ast.AttrStatic:
			q := `"`
			if strings.Contains(a.Value, `"`) {
				q = "'"
			}
			g.add(at, text(" "+a.Name+"="+q+a.Value+q))
		case ast.AttrBoolean:
			g.add(at, text(" "+a.Name))
		case ast.AttrDynamic, ast.AttrShorthand:
			marker, ok := attributeMarkers[a.Name]
			if !ok && html.IsBooleanAttribute(a.Name) {
				marker, ok = "BOOL", true
			}
			if ok {
				g.add(at, interpolate(" "+a.Name+"=‹"+marker+":", a.Value, a.ValueSpan, "›")...)
			} else {
				g.add(at, interpolate(" "+a.Name+`="‹ESCAPE:`, a.Value, a.ValueSpan, `›"`)...)
			}
		case ast.AttrSpread:
			g.add(at, interpolate(" ‹SPREAD:", a.Value, a.ValueSpan, "›")...)
		case ast.AttrSlot:
			// routing only; see component
		}
	}
}

// flush emits the pending literal run as one yield.
func (g *generator) flush(level int) {
	run := trimRun(g.run)
	g.run = nil
	if len(run) == 0 {
		return
	}

	fstring, marked, multiline := false, false, false
	for _, p := range run {
		switch p.kind {
		case pieceText:
			multiline = multiline || strings.Contains(p.text, "\n")
		case pieceSyntax:
			marked = marked || strings.Contains(p.text, "‹")
			fstring = true
		case pieceCode:
			fstring = true
		}
	}

	g.begin(level, g.runStart)
	g.yieldOpen()
	if marked {
		g.markers = true
		g.out.Write("replace_markers(")
	}
	if fstring {
		g.out.Write("f")
	}
	g.out.Write(`"""`)
	if multiline {
		g.out.Write("\\\n")
	}
	for i, p := range run {
		switch p.kind {
		case pieceText:
			g.out.Write(escapeText(p.text, fstring, i == len(run)-1))
		case pieceSyntax:
			g.out.Write(p.text)
		case pieceCode:
			g.out.WriteRange(RangePython, p.span, p.text, true)
		}
	}
	g.out.Write(`"""`)
	if marked {
		g.out.Write(")")
	}
	g.yieldClose()
	g.end()
}

func (g *generator) yieldOpen() {
	if g.sink != "" {
		g.out.Write(g.sink + ".append(")
		return
	}
	g.out.Write("yield ")
}

func (g *generator) yieldClose() {
	if g.sink != "" {
		g.out.Write(")")
	}
}

// yieldFrom forwards every chunk of the iterable that write emits.
func (g *generator) yieldFrom(level int, at position.Position, write func()) {
	g.begin(level, at)
	switch {
	case g.sink != "":
		g.out.Write(g.sink + ".extend(")
		write()
		g.out.Write(")")
	case g.md.IsAsync:
		g.out.Write("for _chunk in ")
		write()
		g.out.Write(":")
		g.end()
		g.begin(level+1, at)
		g.out.Write("yield _chunk")
	default:
		g.out.Write("yield from ")
		write()
	}
	g.end()
}

const space = " \t\r\n"

// trimRun merges adjacent text and trims the whitespace around line breaks at
// both ends. A run of whitespace only yields nothing.
func trimRun(run []piece) []piece {
	var out []piece
	blank := true
	for _, p := range run {
		if p.kind != pieceText || strings.TrimLeft(p.text, space) != "" {
			blank = false
		}
		if p.kind == pieceText && len(out) > 0 && out[len(out)-1].kind == pieceText {
			out[len(out)-1].text += p.text
			continue
		}
		out = append(out, p)
	}
	if blank {
		return nil
	}

	if first := &out[0]; first.kind == pieceText {
		t := first.text
		lead := len(t) - len(strings.TrimLeft(t, space))
		if nl := strings.LastIndexByte(t[:lead], '\n'); nl >= 0 {
			first.text = t[nl+1:]
		}
	}
	if last := &out[len(out)-1]; last.kind == pieceText {
		t := last.text
		trimmed := strings.TrimRight(t, space)
		if strings.Contains(t[len(trimmed):], "\n") {
			last.text = trimmed
		}
	}

	kept := out[:0]
	for _, p := range out {
		if p.kind == pieceText && p.text == "" {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

// escapeText makes s safe inside a triple-quoted literal. last marks the text
// that ends the literal, where a trailing quote would merge with the closing ones.
func escapeText(s string, fstring bool, last bool) string {
	var b strings.Builder
	quotes := 0
	for i, r := range s {
		if r == '"' {
			quotes++
			if quotes == 3 || (last && i == len(s)-1) {
				b.WriteString(`\"`)
				quotes = 0
			} else {
				b.WriteRune(r)
			}
			continue
		}
		quotes = 0
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '{', '}':
			if fstring {
				b.WriteRune(r)
			}
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// components and slots

func (g *generator) accumulator(name, suffix string) string {
	base := "_" + snake(name) + "_" + suffix
	g.names[base]++
	if n := g.names[base]; n > 1 {
		return base + "_" + strconv.Itoa(n)
	}
	return base
}

func isBlank(n ast.Node) bool {
	switch n := n.(type) {
	case *ast.Text:
		return strings.TrimSpace(n.Value) == ""
	case *ast.Comment:
		return true
	}
	return false
}

func slotOf(n ast.Node) (string, bool) {
	if e, ok := n.(*ast.Element); ok {
		return ast.SlotTarget(e.Attributes)
	}
	return "", false
}

func (g *generator) component(c *ast.Component, level int) {
	if c.SelfClosing || len(c.Children) == 0 {
		g.yieldFrom(level, c.Span.Start, func() { g.call(c, "", nil, "") })
		return
	}

	var slots []string
	hasDefault := false
	for _, child := range c.Children {
		if name, ok := slotOf(child); ok {
			if !contains(slots, name) {
				slots = append(slots, name)
			}
		} else if !isBlank(child) {
			hasDefault = true
		}
	}
	sort.Strings(slots)

	g.out.WriteIndent(level)
	g.out.Map(c.Span.Start)
	g.out.Write("# <{" + c.Name + "}>")
	g.out.Newline()
	g.lines++

	props := ""
	if hasDynamicAttributes(c) {
		props = g.accumulator(c.Name, "props")
		g.begin(level, c.Span.Start)
		g.out.Write(props + " = dict(")
		g.attributes(c, true)
		g.out.Write(")")
		g.end()
	}

	defaultAcc := ""
	if hasDefault {
		defaultAcc = g.accumulator(c.Name, "children")
		g.begin(level, c.Span.Start)
		g.out.Write(defaultAcc + " = []")
		g.end()
	}
	slotAccs := map[string]string{}
	for _, s := range slots {
		slotAccs[s] = g.accumulator(c.Name, snake(s))
		g.begin(level, c.Span.Start)
		g.out.Write(slotAccs[s] + " = []")
		g.end()
	}

	outer := g.sink
	for _, child := range c.Children {
		target := defaultAcc
		if name, ok := slotOf(child); ok {
			target = slotAccs[name]
		} else if !hasDefault {
			continue
		}
		if target != g.sink {
			g.flush(level)
			g.sink = target
		}
		g.emitNode(child, level)
	}
	g.flush(level)
	g.sink = outer

	named := make([]string, 0, len(slots))
	for _, s := range slots {
		named = append(named, slotVar(s)+"="+slotAccs[s])
	}
	g.yieldFrom(level, c.Span.Start, func() { g.call(c, defaultAcc, named, props) })

	g.out.WriteIndent(level)
	g.out.Write("# </{" + c.Name + "}>")
	g.out.Newline()
	g.lines++
	g.lastComment = true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// hasDynamicAttributes reports whether any attribute value is host code.
func hasDynamicAttributes(c *ast.Component) bool {
	for _, a := range c.Attributes {
		switch a.Kind {
		case ast.AttrDynamic, ast.AttrShorthand, ast.AttrSpread:
			return true
		}
	}
	return false
}

// call writes `Name(children, slot=acc, kw=value)`. When props names a dict
// built ahead of the children, it is spread in place of the attributes.
func (g *generator) call(c *ast.Component, children string, slots []string, props string) {
	g.out.Write(c.Name + "(")
	first := true
	sep := func() {
		if !first {
			g.out.Write(", ")
		}
		first = false
	}
	if children != "" {
		sep()
		g.out.Write(children)
	}
	for _, s := range slots {
		sep()
		g.out.Write(s)
	}
	if props != "" {
		sep()
		g.out.Write("**" + props)
	} else {
		g.attributes(c, first)
	}
	g.out.Write(")")
}

// attributes writes the component attributes as call keywords. first is false
// when arguments were already written.
func (g *generator) attributes(c *ast.Component, first bool) {
	sep := func() {
		if !first {
			g.out.Write(", ")
		}
		first = false
	}
	for _, a := range c.Attributes {
		switch a.Kind {
		case ast.AttrStatic:
			sep()
			g.keyword(a.Name, func() { g.out.Write(pyString(a.Value)) })
		case ast.AttrBoolean:
			sep()
			g.keyword(a.Name, func() { g.out.Write("True") })
		case ast.AttrDynamic, ast.AttrShorthand:
			sep()
			g.keyword(a.Name, func() { g.out.WriteRange(RangePython, a.ValueSpan, a.Value, true) })
		case ast.AttrSpread:
			sep()
			g.out.Write("**")
			g.out.WriteRange(RangePython, a.ValueSpan, a.Value, true)
		}
	}
}

// keyword writes name=value, or a dict spread when name is not an identifier.
func (g *generator) keyword(name string, value func()) {
	if isIdentifier(name) {
		g.out.Write(name + "=")
		value()
		return
	}
	g.out.Write("**{" + pyString(name) + ": ")
	value()
	g.out.Write("}")
}

func pyString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return `"` + r.Replace(s) + `"`
}

func (g *generator) slot(s *ast.Slot, level int) {
	v := slotVar(s.Name)
	g.begin(level, s.Span.Start)
	g.out.Write("if " + v + " is not None:")
	g.end()
	g.yieldFrom(level+1, s.Span.Start, func() { g.out.Write(v) })
	if len(s.Fallback) > 0 {
		g.begin(level, s.Span.Start)
		g.out.Write("else:")
		g.end()
		g.body(s.Fallback, level+1)
	}
}
