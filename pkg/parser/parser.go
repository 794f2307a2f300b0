// Package parser builds the AST from the lexer's token stream.
//
// The parser is a single pass recursive descent with one token of lookahead.
// It fails on the first structural problem and returns a *diagnostic.Error
// pointing at the offending token, usually with a related span at the opener.
package parser

import (
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gohyper/pkg/ast"
	"github.com/walteh/gohyper/pkg/classify"
	"github.com/walteh/gohyper/pkg/diagnostic"
	"github.com/walteh/gohyper/pkg/lexer"
	"github.com/walteh/gohyper/pkg/position"
)

type frameKind int

const (
	frameTop frameKind = iota
	frameElement
	frameComponent
	frameSlot
	frameBlock
	frameFragment
)

// frame is one open construct waiting for its terminator.
type frame struct {
	kind frameKind
	// name is the tag, component or slot name, or the block keyword
	name string
	open position.Span
	// indent is the indentation of the line the construct opened on
	indent string
}

type parser struct {
	src        *position.Source
	toks       []lexer.Token
	pos        int
	header     bool
	separated  bool
	lineIndent string
	stack      []frame
	doc        *ast.Document
}

// Parse builds a document from tokens produced for src.
func Parse(src *position.Source, tokens []lexer.Token) (*ast.Document, error) {
	if len(tokens) == 0 || tokens[len(tokens)-1].Kind != lexer.EOF {
		end := src.End()
		tokens = append(tokens, lexer.Token{Kind: lexer.EOF, Span: position.NewSpan(end, end)})
	}

	p := &parser{
		src:    src,
		toks:   tokens,
		header: true,
		doc: &ast.Document{
			Source:     src,
			Parameters: []*ast.Parameter{},
			Decorators: []*ast.Decorator{},
			Imports:    []*ast.Import{},
		},
	}

	nodes, err := p.body(frame{kind: frameTop})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	p.doc.Nodes = nodes
	return p.doc, nil
}

func (p *parser) peek() lexer.Token {
	return p.toks[p.pos]
}

func (p *parser) next() lexer.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

// significant returns the first token from the cursor that is not layout or a comment.
func (p *parser) significant(skipDecorators bool) lexer.Token {
	for i := p.pos; i < len(p.toks); i++ {
		switch p.toks[i].Kind {
		case lexer.Newline, lexer.Indent, lexer.Comment:
			continue
		case lexer.Decorator:
			if skipDecorators {
				continue
			}
		}
		return p.toks[i]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) inside(kinds ...frameKind) bool {
	for _, f := range p.stack {
		for _, k := range kinds {
			if f.kind == k {
				return true
			}
		}
	}
	return false
}

// body parses nodes until the terminator of f. The terminator is left for the caller.
func (p *parser) body(f frame) ([]ast.Node, error) {
	p.stack = append(p.stack, f)
	defer func() { p.stack = p.stack[:len(p.stack)-1] }()

	nodes := []ast.Node{}
	for {
		tok := p.peek()
		switch tok.Kind {
		case lexer.EOF:
			if f.kind == frameTop {
				return nodes, nil
			}
			return nil, unclosed(f, tok.Span)

		case lexer.HTMLClose, lexer.ComponentClose, lexer.SlotClose:
			if closes(f, tok) {
				return nodes, nil
			}
			return nil, p.strayClose(f, tok)

		case lexer.End:
			if f.kind == frameBlock || f.kind == frameFragment {
				return nodes, nil
			}
			if p.inside(frameBlock, frameFragment) {
				return nil, unclosed(f, tok.Span)
			}
			return nil, diagnostic.New(diagnostic.UnexpectedToken, tok.Span, "'end' does not close anything.").
				WithHelp("Remove it, or open a block such as 'if cond:' above it")

		case lexer.ControlContinuation:
			if f.kind == frameBlock {
				return nodes, nil
			}
			if p.inside(frameBlock) {
				return nil, unclosed(f, tok.Span)
			}
			return nil, diagnostic.New(diagnostic.UnexpectedToken, tok.Span, "'%s' has no block to continue.", tok.Keyword).
				WithHelp("'" + tok.Keyword + "' must follow the body of a matching block")

		case lexer.Newline:
			p.next()
			p.lineIndent = ""
			if t := p.newlineText(f, nodes, tok); t != nil {
				nodes = append(nodes, t)
			}
			continue

		case lexer.Indent:
			p.next()
			p.lineIndent = tok.Text
			if f.kind == frameElement {
				if rel := strings.TrimPrefix(tok.Text, f.indent); rel != "" {
					nodes = append(nodes, &ast.Text{Pos: ast.At(tok.Span), Value: rel})
				}
			}
			continue
		}

		n, err := p.node(f)
		if err != nil {
			return nil, err
		}
		if n != nil {
			nodes = append(nodes, n)
		}
	}
}

// newlineText decides what a line break means. Inside an element it is
// literal. Elsewhere it only joins two consecutive content lines.
func (p *parser) newlineText(f frame, nodes []ast.Node, tok lexer.Token) ast.Node {
	text := &ast.Text{Pos: ast.At(tok.Span), Value: "\n"}
	if f.kind == frameElement {
		return text
	}
	if len(nodes) == 0 || !isContent(nodes[len(nodes)-1]) {
		return nil
	}
	// blank lines collapse into one break
	if t, ok := nodes[len(nodes)-1].(*ast.Text); ok && t.Value == "\n" {
		return nil
	}
	for i := p.pos; i < len(p.toks); i++ {
		switch t := p.toks[i]; t.Kind {
		case lexer.Newline, lexer.Indent:
			continue
		case lexer.Text, lexer.EscapedBrace, lexer.HTMLOpen:
			return text
		case lexer.Expression:
			if isSlotExpression(t.Text) {
				return nil
			}
			return text
		default:
			return nil
		}
	}
	return nil
}

func isContent(n ast.Node) bool {
	switch n.(type) {
	case *ast.Text, *ast.Expression, *ast.Element:
		return true
	}
	return false
}

func isSlotExpression(code string) bool {
	return code == "children" || strings.HasPrefix(code, "children_")
}

func (p *parser) node(f frame) (ast.Node, error) {
	tok := p.next()

	switch tok.Kind {
	case lexer.Text:
		p.header = false
		return &ast.Text{Pos: ast.At(tok.Span), Value: tok.Text}, nil

	case lexer.EscapedBrace:
		p.header = false
		return &ast.Text{Pos: ast.At(tok.Span), Value: tok.Text}, nil

	case lexer.Expression:
		p.header = false
		if isSlotExpression(tok.Text) {
			return &ast.Slot{
				Pos:      ast.At(tok.Span),
				Name:     strings.TrimPrefix(strings.TrimPrefix(tok.Text, "children"), "_"),
				Fallback: []ast.Node{},
			}, nil
		}
		return &ast.Expression{Pos: ast.At(tok.Span), Code: tok.Text, Escape: true, CodeSpan: tok.ValueSpan}, nil

	case lexer.HTMLOpen:
		p.header = false
		return p.element(tok)

	case lexer.ComponentOpen:
		p.header = false
		return p.component(tok)

	case lexer.SlotOpen:
		p.header = false
		return p.slot(tok)

	case lexer.ControlStart:
		p.header = false
		return p.control(tok)

	case lexer.FragmentStart:
		p.header = false
		return p.fragment(tok)

	case lexer.Statement:
		return p.statement(f, tok)

	case lexer.Decorator:
		dec := &ast.Decorator{Pos: ast.At(tok.Span), Code: tok.Text}
		if p.header && f.kind == frameTop {
			next := p.significant(true)
			if !(next.Kind == lexer.ControlStart && isDefinition(next.Keyword)) {
				p.doc.Decorators = append(p.doc.Decorators, dec)
				return nil, nil
			}
		}
		return dec, nil

	case lexer.Comment:
		return &ast.Comment{Pos: ast.At(tok.Span), Text: tok.Text, Inline: tok.Inline}, nil

	case lexer.Separator:
		if f.kind == frameTop && p.header && !p.separated {
			p.header = false
			p.separated = true
			return nil, nil
		}
		return &ast.Text{Pos: ast.At(tok.Span), Value: tok.Text}, nil
	}

	return nil, diagnostic.New(diagnostic.UnexpectedToken, tok.Span, "Unexpected %s.", tok.Kind)
}

func isDefinition(keyword string) bool {
	return keyword == "def" || keyword == "async def" || keyword == "class"
}

func (p *parser) statement(f frame, tok lexer.Token) (ast.Node, error) {
	code := tok.Text
	isParam := tok.StatementKind == classify.KindAnnotation || strings.HasPrefix(code, "*")

	if p.header && f.kind == frameTop && isParam {
		decl, err := parseParameter(code)
		if err != nil {
			return nil, diagnostic.New(diagnostic.InvalidSyntax, tok.Span, "This doesn't look like a valid parameter declaration.").
				WithHelp("Syntax: name: type = default")
		}
		p.doc.Parameters = append(p.doc.Parameters, &ast.Parameter{
			Pos:      ast.At(tok.Span),
			Name:     decl.name,
			Type:     decl.typ,
			Default:  decl.def,
			Variadic: decl.variadic,
			Code:     code,
		})
		return nil, nil
	}

	if f.kind == frameTop && tok.StatementKind.IsImport() {
		p.doc.Imports = append(p.doc.Imports, &ast.Import{Pos: ast.At(tok.Span), Code: code})
		return nil, nil
	}

	return &ast.Statement{Pos: ast.At(tok.Span), Code: code, Kind: tok.StatementKind}, nil
}

func (p *parser) fragment(tok lexer.Token) (ast.Node, error) {
	f := frame{kind: frameFragment, name: "fragment", open: tok.Span}
	children, err := p.body(f)
	if err != nil {
		return nil, err
	}
	end, err := p.end(f)
	if err != nil {
		return nil, err
	}
	return &ast.Fragment{Pos: ast.At(position.Join(tok.Span, end)), Name: tok.Name, Children: children}, nil
}

func closes(f frame, tok lexer.Token) bool {
	switch f.kind {
	case frameElement:
		return tok.Kind == lexer.HTMLClose && tok.Name == f.name
	case frameComponent:
		return tok.Kind == lexer.ComponentClose && tok.Name == f.name
	case frameSlot:
		return tok.Kind == lexer.SlotClose && tok.Name == f.name
	}
	return false
}

// strayClose reports a close tag that does not end the innermost construct.
func (p *parser) strayClose(f frame, tok lexer.Token) error {
	// it closes something further out, so the innermost construct was left open
	for i := len(p.stack) - 2; i >= 0; i-- {
		if closes(p.stack[i], tok) {
			return unclosed(f, tok.Span)
		}
	}

	found := closeText(tok)
	switch {
	case f.kind == frameElement && tok.Kind == lexer.HTMLClose,
		f.kind == frameComponent && tok.Kind == lexer.ComponentClose,
		f.kind == frameSlot && tok.Kind == lexer.SlotClose:
		expected := closeText(lexer.Token{Kind: tok.Kind, Name: f.name})
		return diagnostic.New(diagnostic.MismatchedCloseTag, tok.Span, "Expected %s but found %s.", expected, found).
			WithRelated(f.open).
			WithHelp("Close " + openText(f) + " with " + expected + " before this tag")
	}

	return diagnostic.New(diagnostic.UnexpectedToken, tok.Span, "%s has no matching opening tag.", found).
		WithHelp("Remove it, or add the matching opening tag")
}

func closeText(tok lexer.Token) string {
	switch tok.Kind {
	case lexer.ComponentClose:
		return "</{" + tok.Name + "}>"
	case lexer.SlotClose:
		return "</{..." + tok.Name + "}>"
	}
	return "</" + tok.Name + ">"
}

func openText(f frame) string {
	switch f.kind {
	case frameComponent:
		return "<{" + f.name + "}>"
	case frameSlot:
		return "<{..." + f.name + "}>"
	}
	return "<" + f.name + ">"
}

// unclosed reports that f was never terminated; at is where the terminator was expected.
func unclosed(f frame, at position.Span) error {
	switch f.kind {
	case frameElement:
		return diagnostic.New(diagnostic.UnclosedElement, at, "<%s> is never closed.", f.name).
			WithRelated(f.open).
			WithHelp("Close with </" + f.name + "> or <" + f.name + " />")
	case frameComponent:
		return diagnostic.New(diagnostic.UnclosedComponent, at, "<{%s}> is never closed.", f.name).
			WithRelated(f.open).
			WithHelp("Close with </{" + f.name + "}> or <{" + f.name + "} />")
	case frameSlot:
		return diagnostic.New(diagnostic.UnclosedSlot, at, "<{...%s}> is never closed.", f.name).
			WithRelated(f.open).
			WithHelp("Close with </{..." + f.name + "}>")
	}
	return diagnostic.New(diagnostic.UnclosedBlock, at, "This '%s' block is never closed.", f.name).
		WithRelated(f.open).
		WithHelp("Close with 'end'")
}
