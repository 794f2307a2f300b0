package lexer

import (
	"strings"
	"unicode"
)

// content tokenizes markup and text in text[start:end]. It returns the offset
// of an HTML tag that is still open at end, or -1. When force is set an open
// tag is emitted as plain text instead.
func (l *lexer) content(start, end int, force bool) int {
	s := l.text
	textStart := start
	// only whitespace has been seen since the last structural token
	boundary := true

	flush := func(at int) {
		if at > textStart {
			l.emit(Token{Kind: Text, Text: s[textStart:at], Span: l.span(textStart, at)})
		}
		textStart = at
	}

	i := start
	for i < end {
		c := s[i]
		switch {
		case c == '{' && i+1 < end && s[i+1] == '{':
			flush(i)
			l.emit(Token{Kind: EscapedBrace, Text: "{", Span: l.span(i, i+2)})
			i += 2
			textStart = i
			boundary = true
			continue

		case c == '}' && i+1 < end && s[i+1] == '}':
			flush(i)
			l.emit(Token{Kind: EscapedBrace, Text: "}", Span: l.span(i, i+2)})
			i += 2
			textStart = i
			boundary = true
			continue

		case c == '{':
			closeAt := matchBrace(s, i, end)
			if closeAt < 0 {
				break
			}
			flush(i)
			l.emit(l.expression(i, closeAt))
			i = closeAt + 1
			textStart = i
			boundary = true
			continue

		case c == '<':
			tok, next, status := l.tag(i, end)
			if status == tagIncomplete && !force {
				flush(i)
				return i
			}
			if status != tagOK {
				break
			}
			flush(i)
			l.emit(tok)
			i = next
			textStart = i
			boundary = true
			continue

		case c == '#' && boundary && (i == start || isSpace(s[i-1])):
			// whitespace since the boundary is dropped along with the comment
			l.emit(Token{
				Kind:   Comment,
				Text:   strings.TrimSpace(s[i+1 : end]),
				Span:   l.span(i, end),
				Inline: i > start,
			})
			textStart = end
			i = end
			continue
		}

		if !isSpace(c) {
			boundary = false
		}
		i++
	}
	flush(end)
	return -1
}

// expression builds an Expression token for the braces at open and closeAt.
// `{...}` and `{...name}` become the slot expressions `children` and `children_name`.
func (l *lexer) expression(open, closeAt int) Token {
	inner := l.text[open+1 : closeAt]
	lead := len(inner) - len(strings.TrimLeft(inner, " \t\r\n"))
	code := strings.TrimSpace(inner)
	valueStart := open + 1 + lead

	tok := Token{
		Kind:      Expression,
		Text:      code,
		Span:      l.span(open, closeAt+1),
		ValueSpan: l.span(valueStart, valueStart+len(code)),
	}
	if rest, ok := strings.CutPrefix(code, "..."); ok {
		name := strings.TrimSpace(rest)
		tok.Text = "children"
		if name != "" {
			tok.Text = "children_" + name
		}
		tok.Name = name
	}
	return tok
}

type tagStatus int

const (
	tagNone tagStatus = iota
	tagOK
	tagIncomplete
)

// tag recognizes the markup structure starting with '<' at i.
func (l *lexer) tag(i, end int) (Token, int, tagStatus) {
	s := l.text
	rest := s[i:end]

	switch {
	case strings.HasPrefix(rest, "</{"):
		closeAt := strings.IndexByte(rest, '}')
		if closeAt < 0 {
			return Token{}, 0, tagNone
		}
		gt := skipSpaces(s, i+closeAt+1, end)
		if gt >= end || s[gt] != '>' {
			return Token{}, 0, tagNone
		}
		inner := strings.TrimSpace(rest[3:closeAt])
		tok := Token{Span: l.span(i, gt+1), NameSpan: l.span(i+3, i+closeAt)}
		if name, ok := strings.CutPrefix(inner, "..."); ok {
			tok.Kind = SlotClose
			tok.Name = strings.TrimSpace(name)
		} else {
			tok.Kind = ComponentClose
			tok.Name = inner
		}
		return tok, gt + 1, tagOK

	case strings.HasPrefix(rest, "<{"):
		closeAt := strings.IndexByte(rest, '}')
		if closeAt < 0 {
			return Token{}, 0, tagNone
		}
		inner := strings.TrimSpace(rest[2:closeAt])
		nameStart := i + 2 + strings.Index(rest[2:closeAt], inner)
		attrs, next, selfClosing, status := l.attributes(i+closeAt+1, end)
		if status != tagOK {
			return Token{}, 0, status
		}
		tok := Token{
			Span:        l.span(i, next),
			NameSpan:    l.span(nameStart, nameStart+len(inner)),
			SelfClosing: selfClosing,
		}
		if name, ok := strings.CutPrefix(inner, "..."); ok {
			tok.Kind = SlotOpen
			tok.Name = strings.TrimSpace(name)
			return tok, next, tagOK
		}
		if !isComponentName(inner) {
			return Token{}, 0, tagNone
		}
		tok.Kind = ComponentOpen
		tok.Name = inner
		tok.Attributes = attrs
		return tok, next, tagOK

	case strings.HasPrefix(rest, "</") && len(rest) > 2 && isLetter(rest[2]):
		nameEnd := scanName(s, i+2, end)
		gt := skipSpaces(s, nameEnd, end)
		if gt >= end || s[gt] != '>' {
			return Token{}, 0, tagNone
		}
		return Token{
			Kind:     HTMLClose,
			Name:     s[i+2 : nameEnd],
			NameSpan: l.span(i+2, nameEnd),
			Span:     l.span(i, gt+1),
		}, gt + 1, tagOK

	case len(rest) > 1 && isLetter(rest[1]):
		nameEnd := scanName(s, i+1, end)
		attrs, next, selfClosing, status := l.attributes(nameEnd, end)
		if status != tagOK {
			return Token{}, 0, status
		}
		return Token{
			Kind:        HTMLOpen,
			Name:        s[i+1 : nameEnd],
			NameSpan:    l.span(i+1, nameEnd),
			Attributes:  attrs,
			SelfClosing: selfClosing,
			Span:        l.span(i, next),
		}, next, tagOK
	}

	return Token{}, 0, tagNone
}

// attributes parses attributes from i up to and including the closing '>' or '/>'.
func (l *lexer) attributes(i, end int) ([]Attribute, int, bool, tagStatus) {
	s := l.text
	var attrs []Attribute

	for {
		i = skipSpaces(s, i, end)
		if i >= end {
			return nil, 0, false, tagIncomplete
		}

		switch c := s[i]; {
		case c == '>':
			return attrs, i + 1, false, tagOK

		case c == '/' && i+1 < end && s[i+1] == '>':
			return attrs, i + 2, true, tagOK

		case c == '/':
			i++

		case c == '{':
			closeAt := matchBrace(s, i, end)
			if closeAt < 0 {
				return nil, 0, false, tagIncomplete
			}
			attrs = append(attrs, l.braceAttribute(i, closeAt))
			i = closeAt + 1

		case isAttrNameChar(c):
			attr, next, status := l.namedAttribute(i, end)
			if status != tagOK {
				return nil, 0, false, status
			}
			attrs = append(attrs, attr)
			i = next

		case c == '<':
			// a new tag starts before this one closed
			return nil, 0, false, tagNone

		default:
			i++
		}
	}
}

func (l *lexer) braceAttribute(open, closeAt int) Attribute {
	inner := l.text[open+1 : closeAt]
	code := strings.TrimSpace(inner)
	valueStart := open + 1 + strings.Index(inner, code)
	attr := Attribute{Span: l.span(open, closeAt+1)}

	switch {
	case strings.HasPrefix(code, "**"):
		expr := strings.TrimSpace(code[2:])
		exprStart := valueStart + 2 + strings.Index(code[2:], expr)
		attr.Kind = AttrSpread
		attr.Value = expr
		attr.ValueSpan = l.span(exprStart, exprStart+len(expr))
	case strings.HasPrefix(code, "..."):
		attr.Kind = AttrSlot
		attr.Name = strings.TrimSpace(code[3:])
		attr.ValueSpan = l.span(valueStart, valueStart+len(code))
	default:
		attr.Kind = AttrShorthand
		attr.Name = code
		attr.Value = code
		attr.ValueSpan = l.span(valueStart, valueStart+len(code))
	}
	return attr
}

func (l *lexer) namedAttribute(i, end int) (Attribute, int, tagStatus) {
	s := l.text
	start := i
	for i < end && isAttrNameChar(s[i]) {
		i++
	}
	name := s[start:i]

	j := skipSpaces(s, i, end)
	if j >= end || s[j] != '=' {
		return Attribute{
			Kind:      AttrBoolean,
			Name:      name,
			Span:      l.span(start, i),
			ValueSpan: l.span(i, i),
		}, i, tagOK
	}

	j = skipSpaces(s, j+1, end)
	if j >= end {
		return Attribute{}, 0, tagIncomplete
	}

	switch q := s[j]; q {
	case '"', '\'':
		closeAt := strings.IndexByte(s[j+1:end], q)
		if closeAt < 0 {
			return Attribute{}, 0, tagIncomplete
		}
		closeAt += j + 1
		return Attribute{
			Kind:      AttrStatic,
			Name:      name,
			Value:     s[j+1 : closeAt],
			Span:      l.span(start, closeAt+1),
			ValueSpan: l.span(j+1, closeAt),
		}, closeAt + 1, tagOK

	case '{':
		closeAt := matchBrace(s, j, end)
		if closeAt < 0 {
			return Attribute{}, 0, tagIncomplete
		}
		inner := s[j+1 : closeAt]
		code := strings.TrimSpace(inner)
		valueStart := j + 1 + strings.Index(inner, code)
		return Attribute{
			Kind:      AttrDynamic,
			Name:      name,
			Value:     code,
			Span:      l.span(start, closeAt+1),
			ValueSpan: l.span(valueStart, valueStart+len(code)),
		}, closeAt + 1, tagOK
	}

	// unquoted value
	k := j
	for k < end && !isSpace(s[k]) && s[k] != '>' && !(s[k] == '/' && k+1 < end && s[k+1] == '>') {
		k++
	}
	return Attribute{
		Kind:      AttrStatic,
		Name:      name,
		Value:     s[j:k],
		Span:      l.span(start, k),
		ValueSpan: l.span(j, k),
	}, k, tagOK
}

// matchBrace returns the index of the '}' matching the '{' at open, honoring
// nested braces and quoted strings, or -1 when it is not closed before end.
func matchBrace(s string, open, end int) int {
	depth := 0
	for i := open; i < end; i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		case '"', '\'':
			j := skipQuoted(s[:end], i)
			if j <= i || s[j] != s[i] {
				return -1
			}
			i = j
		}
	}
	return -1
}

func skipSpaces(s string, i, end int) int {
	for i < end && isSpace(s[i]) {
		i++
	}
	return i
}

func scanName(s string, i, end int) int {
	for i < end && (isLetter(s[i]) || isDigit(s[i]) || s[i] == '-' || s[i] == ':' || s[i] == '_' || s[i] == '.') {
		i++
	}
	return i
}

func isComponentName(name string) bool {
	if name == "" || !startsWithIdentifier(name) {
		return false
	}
	for _, r := range name {
		if !(r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}

func isAttrNameChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '_' || c == '-' || c == '@' || c == ':' || c == '.'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
