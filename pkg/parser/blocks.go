package parser

import (
	"strings"

	"github.com/walteh/gohyper/pkg/ast"
	"github.com/walteh/gohyper/pkg/diagnostic"
	"github.com/walteh/gohyper/pkg/lexer"
	"github.com/walteh/gohyper/pkg/position"
)

// continuations lists the clauses each block keyword accepts.
var continuations = map[string][]string{
	"if":    {"elif", "else"},
	"for":   {"else"},
	"while": {"else"},
	"try":   {"except", "else", "finally"},
	"match": {"case"},
}

func baseKeyword(kw string) string {
	return strings.TrimPrefix(kw, "async ")
}

func accepts(block, clause string) bool {
	for _, c := range continuations[baseKeyword(block)] {
		if c == clause {
			return true
		}
	}
	return false
}

func (p *parser) control(tok lexer.Token) (ast.Node, error) {
	f := frame{kind: frameBlock, name: baseKeyword(tok.Keyword), open: tok.Span, indent: p.lineIndent}

	switch f.name {
	case "if":
		return p.ifBlock(f, tok)
	case "for":
		return p.forBlock(f, tok)
	case "while":
		return p.whileBlock(f, tok)
	case "match":
		return p.matchBlock(f, tok)
	case "try":
		return p.tryBlock(f, tok)
	case "with":
		body, end, err := p.simpleBlock(f)
		if err != nil {
			return nil, err
		}
		return &ast.With{
			Pos:       ast.At(position.Join(tok.Span, end)),
			Items:     tok.Text,
			ItemsSpan: tok.ValueSpan,
			Body:      body,
			Async:     tok.Async,
		}, nil
	case "def", "class":
		body, end, err := p.simpleBlock(f)
		if err != nil {
			return nil, err
		}
		return &ast.Definition{
			Pos:       ast.At(position.Join(tok.Span, end)),
			Keyword:   f.name,
			Signature: tok.Text,
			SigSpan:   tok.ValueSpan,
			Body:      body,
			Async:     tok.Async,
		}, nil
	}

	return nil, diagnostic.New(diagnostic.UnexpectedToken, tok.Span, "Unknown block keyword '%s'.", tok.Keyword)
}

// simpleBlock parses a block that takes no continuation clauses.
func (p *parser) simpleBlock(f frame) ([]ast.Node, position.Span, error) {
	body, err := p.body(f)
	if err != nil {
		return nil, position.Span{}, err
	}
	if t := p.peek(); t.Kind == lexer.ControlContinuation {
		return nil, position.Span{}, p.misplaced(f, t)
	}
	end, err := p.end(f)
	return body, end, err
}

func (p *parser) ifBlock(f frame, tok lexer.Token) (ast.Node, error) {
	then, err := p.body(f)
	if err != nil {
		return nil, err
	}
	n := &ast.If{Condition: tok.Text, CondSpan: tok.ValueSpan, Then: then, Elifs: []*ast.Clause{}}

	for t := p.peek(); t.Kind == lexer.ControlContinuation; t = p.peek() {
		switch {
		case t.Keyword == "elif" && n.Else == nil:
			c, err := p.clause(f)
			if err != nil {
				return nil, err
			}
			n.Elifs = append(n.Elifs, c)
		case t.Keyword == "else" && n.Else == nil:
			c, err := p.clause(f)
			if err != nil {
				return nil, err
			}
			n.Else = c
		default:
			return nil, p.misplaced(f, t)
		}
	}

	end, err := p.end(f)
	if err != nil {
		return nil, err
	}
	n.Pos = ast.At(position.Join(tok.Span, end))
	return n, nil
}

func (p *parser) forBlock(f frame, tok lexer.Token) (ast.Node, error) {
	idx := strings.Index(tok.Text, " in ")
	if idx < 0 {
		return nil, diagnostic.New(diagnostic.InvalidSyntax, tok.Span, "This doesn't look like a valid for loop.").
			WithHelp("Syntax: for x in items:")
	}
	target := strings.TrimSpace(tok.Text[:idx])
	rest := tok.Text[idx+len(" in "):]
	iterable := strings.TrimSpace(rest)
	if target == "" || iterable == "" {
		return nil, diagnostic.New(diagnostic.InvalidSyntax, tok.Span, "This doesn't look like a valid for loop.").
			WithHelp("Syntax: for x in items:")
	}

	iterStart := tok.ValueSpan.Start.Byte + idx + len(" in ") + strings.Index(rest, iterable)
	n := &ast.For{
		Target:     target,
		Iterable:   iterable,
		HeaderSpan: tok.ValueSpan,
		IterSpan:   p.src.SpanOf(iterStart, iterStart+len(iterable)),
		Async:      tok.Async,
	}

	body, err := p.body(f)
	if err != nil {
		return nil, err
	}
	n.Body = body

	for t := p.peek(); t.Kind == lexer.ControlContinuation; t = p.peek() {
		if t.Keyword != "else" || n.Else != nil {
			return nil, p.misplaced(f, t)
		}
		c, err := p.clause(f)
		if err != nil {
			return nil, err
		}
		n.Else = c
	}

	end, err := p.end(f)
	if err != nil {
		return nil, err
	}
	n.Pos = ast.At(position.Join(tok.Span, end))
	return n, nil
}

func (p *parser) whileBlock(f frame, tok lexer.Token) (ast.Node, error) {
	body, err := p.body(f)
	if err != nil {
		return nil, err
	}
	n := &ast.While{Condition: tok.Text, CondSpan: tok.ValueSpan, Body: body}

	for t := p.peek(); t.Kind == lexer.ControlContinuation; t = p.peek() {
		if t.Keyword != "else" || n.Else != nil {
			return nil, p.misplaced(f, t)
		}
		c, err := p.clause(f)
		if err != nil {
			return nil, err
		}
		n.Else = c
	}

	end, err := p.end(f)
	if err != nil {
		return nil, err
	}
	n.Pos = ast.At(position.Join(tok.Span, end))
	return n, nil
}

func (p *parser) matchBlock(f frame, tok lexer.Token) (ast.Node, error) {
	n := &ast.Match{Subject: tok.Text, SubjectSpan: tok.ValueSpan, Cases: []*ast.Clause{}}

	for {
		t := p.peek()
		switch t.Kind {
		case lexer.Newline, lexer.Indent, lexer.Comment:
			p.next()
			continue
		case lexer.ControlContinuation:
			if t.Keyword != "case" {
				return nil, p.misplaced(f, t)
			}
			c, err := p.clause(f)
			if err != nil {
				return nil, err
			}
			n.Cases = append(n.Cases, c)
			continue
		case lexer.End:
			end := p.next()
			n.Pos = ast.At(position.Join(tok.Span, end.Span))
			return n, nil
		case lexer.EOF:
			return nil, unclosed(f, t.Span)
		}
		return nil, diagnostic.New(diagnostic.InvalidSyntax, t.Span, "Only 'case' clauses can appear directly inside 'match'.").
			WithRelated(f.open).
			WithHelp("Syntax: case pattern:")
	}
}

func (p *parser) tryBlock(f frame, tok lexer.Token) (ast.Node, error) {
	body, err := p.body(f)
	if err != nil {
		return nil, err
	}
	n := &ast.Try{Body: body, Excepts: []*ast.Clause{}}

	for t := p.peek(); t.Kind == lexer.ControlContinuation; t = p.peek() {
		var err error
		var c *ast.Clause
		switch {
		case t.Keyword == "except" && n.Else == nil && n.Finally == nil:
			c, err = p.clause(f)
			n.Excepts = append(n.Excepts, c)
		case t.Keyword == "else" && len(n.Excepts) > 0 && n.Else == nil && n.Finally == nil:
			c, err = p.clause(f)
			n.Else = c
		case t.Keyword == "finally" && n.Finally == nil:
			c, err = p.clause(f)
			n.Finally = c
		default:
			return nil, p.misplaced(f, t)
		}
		if err != nil {
			return nil, err
		}
	}

	t := p.peek()
	if t.Kind == lexer.End && len(n.Excepts) == 0 && n.Finally == nil {
		return nil, diagnostic.New(diagnostic.InvalidSyntax, t.Span, "'try' needs at least one 'except' or 'finally' clause.").
			WithRelated(f.open).
			WithHelp("Add 'except Exception:' or 'finally:' before 'end'")
	}

	end, err := p.end(f)
	if err != nil {
		return nil, err
	}
	n.Pos = ast.At(position.Join(tok.Span, end))
	return n, nil
}

// clause consumes a continuation token and parses its body.
func (p *parser) clause(f frame) (*ast.Clause, error) {
	t := p.next()
	body, err := p.body(f)
	if err != nil {
		return nil, err
	}
	return &ast.Clause{
		Pos:        ast.At(t.Span),
		Keyword:    t.Keyword,
		Header:     t.Text,
		HeaderSpan: t.ValueSpan,
		Body:       body,
	}, nil
}

// end consumes the `end` closing f.
func (p *parser) end(f frame) (position.Span, error) {
	t := p.peek()
	if t.Kind != lexer.End {
		return position.Span{}, unclosed(f, t.Span)
	}
	p.next()
	return t.Span, nil
}

// misplaced reports a continuation f does not accept. When an enclosing
// block would accept it, f itself is the one left open.
func (p *parser) misplaced(f frame, t lexer.Token) error {
	for i := len(p.stack) - 1; i >= 0; i-- {
		if outer := p.stack[i]; outer.kind == frameBlock && accepts(outer.name, t.Keyword) {
			return unclosed(f, t.Span)
		}
	}

	help := "'" + f.name + "' blocks take no clauses; close it with 'end'"
	if allowed := continuations[f.name]; len(allowed) > 0 {
		help = "'" + f.name + "' accepts " + quoteList(allowed) + " here, then 'end'"
	}
	return diagnostic.New(diagnostic.UnexpectedToken, t.Span, "'%s' is not allowed here.", t.Keyword).
		WithRelatedLabel(f.open, "in this '"+f.name+"' block").
		WithHelp(help)
}

func quoteList(words []string) string {
	q := make([]string, len(words))
	for i, w := range words {
		q[i] = "'" + w + "'"
	}
	return strings.Join(q, ", ")
}
