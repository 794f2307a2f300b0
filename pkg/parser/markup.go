package parser

import (
	"strings"

	"github.com/walteh/gohyper/pkg/ast"
	"github.com/walteh/gohyper/pkg/diagnostic"
	"github.com/walteh/gohyper/pkg/html"
	"github.com/walteh/gohyper/pkg/lexer"
	"github.com/walteh/gohyper/pkg/position"
)

var attributeKinds = map[lexer.AttributeKind]ast.AttributeKind{
	lexer.AttrStatic:    ast.AttrStatic,
	lexer.AttrDynamic:   ast.AttrDynamic,
	lexer.AttrBoolean:   ast.AttrBoolean,
	lexer.AttrShorthand: ast.AttrShorthand,
	lexer.AttrSpread:    ast.AttrSpread,
	lexer.AttrSlot:      ast.AttrSlot,
}

// attributes converts tag attributes, rejecting names set more than once.
func attributes(attrs []lexer.Attribute) ([]ast.Attribute, error) {
	out := make([]ast.Attribute, 0, len(attrs))
	seen := map[string]position.Span{}
	for _, a := range attrs {
		if a.IsNamed() {
			if first, ok := seen[a.Name]; ok {
				return nil, diagnostic.New(diagnostic.DuplicateAttribute, a.Span, "%q is set twice on this element.", a.Name).
					WithRelatedLabel(first, "first use").
					WithHelp("Remove one of the two '" + a.Name + "' attributes")
			}
			seen[a.Name] = a.Span
		}
		out = append(out, ast.Attribute{
			Kind:      attributeKinds[a.Kind],
			Name:      a.Name,
			Value:     a.Value,
			Span:      a.Span,
			ValueSpan: a.ValueSpan,
		})
	}
	return out, nil
}

// parentElement returns the nearest open element.
func (p *parser) parentElement() (frame, bool) {
	for i := len(p.stack) - 1; i >= 0; i-- {
		if p.stack[i].kind == frameElement {
			return p.stack[i], true
		}
	}
	return frame{}, false
}

func (p *parser) checkNesting(tok lexer.Token) error {
	parent, ok := p.parentElement()
	if !ok {
		return nil
	}
	child := tok.Name

	if html.IsAutoClose(parent.name) && html.IsBlock(child) {
		return diagnostic.New(diagnostic.InvalidNesting, tok.Span, "<%s> cannot appear inside <%s>.", child, parent.name).
			WithRelatedLabel(parent.open, "<"+parent.name+"> opened here").
			WithHelp("Browsers silently close <" + parent.name + "> when they encounter <" + child + ">, so this renders\n" +
				"as <" + parent.name + "></" + parent.name + "><" + child + ">...</" + child + ">, probably not what you want.")
	}

	if html.IsInteractive(parent.name) && html.IsInteractive(child) {
		return diagnostic.New(diagnostic.InvalidNesting, tok.Span, "<%s> cannot appear inside <%s>.", child, parent.name).
			WithRelatedLabel(parent.open, "<"+parent.name+"> opened here").
			WithHelp("Nesting clickable elements is invalid HTML and causes unpredictable behavior across browsers.")
	}

	return nil
}

func (p *parser) element(tok lexer.Token) (ast.Node, error) {
	if err := p.checkNesting(tok); err != nil {
		return nil, err
	}

	if html.IsVoid(tok.Name) && !tok.SelfClosing {
		return nil, diagnostic.New(diagnostic.VoidElementWithContent, tok.Span, "<%s> cannot have content or a closing tag.", tok.Name).
			WithHelp("<" + tok.Name + "> is a void element (like <" + strings.Join(html.VoidExamples(tok.Name, 3), ">, <") + ">). " +
				"Write it as <" + tok.Name + " /> instead.")
	}

	attrs, err := attributes(tok.Attributes)
	if err != nil {
		return nil, err
	}

	n := &ast.Element{
		Pos:         ast.At(tok.Span),
		Tag:         tok.Name,
		TagSpan:     tok.NameSpan,
		Attributes:  attrs,
		Children:    []ast.Node{},
		SelfClosing: tok.SelfClosing,
	}
	if tok.SelfClosing {
		return n, nil
	}

	f := frame{kind: frameElement, name: tok.Name, open: tok.Span, indent: p.lineIndent}
	if n.Children, err = p.body(f); err != nil {
		return nil, err
	}
	closeTok := p.next()
	n.Pos = ast.At(position.Join(tok.Span, closeTok.Span))
	return n, nil
}

func (p *parser) component(tok lexer.Token) (ast.Node, error) {
	attrs, err := attributes(tok.Attributes)
	if err != nil {
		return nil, err
	}

	n := &ast.Component{
		Pos:         ast.At(tok.Span),
		Name:        tok.Name,
		NameSpan:    tok.NameSpan,
		Attributes:  attrs,
		Children:    []ast.Node{},
		SelfClosing: tok.SelfClosing,
	}
	if tok.SelfClosing {
		return n, nil
	}

	f := frame{kind: frameComponent, name: tok.Name, open: tok.Span, indent: p.lineIndent}
	if n.Children, err = p.body(f); err != nil {
		return nil, err
	}
	closeTok := p.next()
	n.Pos = ast.At(position.Join(tok.Span, closeTok.Span))
	return n, nil
}

func (p *parser) slot(tok lexer.Token) (ast.Node, error) {
	n := &ast.Slot{Pos: ast.At(tok.Span), Name: tok.Name, Fallback: []ast.Node{}}
	if tok.SelfClosing {
		return n, nil
	}

	f := frame{kind: frameSlot, name: tok.Name, open: tok.Span, indent: p.lineIndent}
	fallback, err := p.body(f)
	if err != nil {
		return nil, err
	}
	closeTok := p.next()
	n.Fallback = fallback
	n.Pos = ast.At(position.Join(tok.Span, closeTok.Span))
	return n, nil
}
