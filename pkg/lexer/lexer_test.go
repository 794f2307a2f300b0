package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/gohyper/pkg/classify"
	"github.com/walteh/gohyper/pkg/lexer"
	"github.com/walteh/gohyper/pkg/position"
)

// tok is a compact expectation: kind plus the text or name that identifies it.
type tok struct {
	kind lexer.Kind
	text string
}

func summarize(tokens []lexer.Token) []tok {
	out := make([]tok, 0, len(tokens))
	for _, t := range tokens {
		s := tok{kind: t.Kind}
		switch t.Kind {
		case lexer.HTMLOpen, lexer.HTMLClose, lexer.ComponentOpen, lexer.ComponentClose,
			lexer.SlotOpen, lexer.SlotClose, lexer.FragmentStart:
			s.text = t.Name
		case lexer.ControlStart, lexer.ControlContinuation:
			s.text = t.Keyword + " " + t.Text
		case lexer.Indent, lexer.Newline, lexer.EOF, lexer.Separator, lexer.End:
		default:
			s.text = t.Text
		}
		out = append(out, s)
	}
	return out
}

func tokenize(t *testing.T, text string) []lexer.Token {
	t.Helper()
	tokens := lexer.Tokenize(position.NewSource("test.hyper", text))
	require.NotEmpty(t, tokens)
	require.Equal(t, lexer.EOF, tokens[len(tokens)-1].Kind)
	return tokens
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []tok
	}{
		{
			name:  "element with text",
			input: "<div>Hello World</div>",
			expected: []tok{
				{lexer.HTMLOpen, "div"},
				{lexer.Text, "Hello World"},
				{lexer.HTMLClose, "div"},
				{lexer.EOF, ""},
			},
		},
		{
			name:  "parameter header and expression",
			input: "name: str\n---\n<div>{name}</div>",
			expected: []tok{
				{lexer.Statement, "name: str"},
				{lexer.Newline, ""},
				{lexer.Separator, ""},
				{lexer.Newline, ""},
				{lexer.HTMLOpen, "div"},
				{lexer.Expression, "name"},
				{lexer.HTMLClose, "div"},
				{lexer.EOF, ""},
			},
		},
		{
			name:  "for loop",
			input: "for item in items:\n    <li>{item}</li>\nend",
			expected: []tok{
				{lexer.ControlStart, "for item in items"},
				{lexer.Newline, ""},
				{lexer.Indent, ""},
				{lexer.HTMLOpen, "li"},
				{lexer.Expression, "item"},
				{lexer.HTMLClose, "li"},
				{lexer.Newline, ""},
				{lexer.End, ""},
				{lexer.EOF, ""},
			},
		},
		{
			name:  "if elif else",
			input: "if a:\nelif b:\nelse:\nend",
			expected: []tok{
				{lexer.ControlStart, "if a"},
				{lexer.Newline, ""},
				{lexer.ControlContinuation, "elif b"},
				{lexer.Newline, ""},
				{lexer.ControlContinuation, "else "},
				{lexer.Newline, ""},
				{lexer.End, ""},
				{lexer.EOF, ""},
			},
		},
		{
			name:  "hash inside text is not a comment",
			input: "<p>Issue #4</p>",
			expected: []tok{
				{lexer.HTMLOpen, "p"},
				{lexer.Text, "Issue #4"},
				{lexer.HTMLClose, "p"},
				{lexer.EOF, ""},
			},
		},
		{
			name:  "trailing comment after a tag",
			input: "</div>  # closing",
			expected: []tok{
				{lexer.HTMLClose, "div"},
				{lexer.Comment, "closing"},
				{lexer.EOF, ""},
			},
		},
		{
			name:  "full line comment",
			input: "# just a note",
			expected: []tok{
				{lexer.Comment, "just a note"},
				{lexer.EOF, ""},
			},
		},
		{
			name:  "escaped braces",
			input: "{{literal}}",
			expected: []tok{
				{lexer.EscapedBrace, "{"},
				{lexer.Text, "literal"},
				{lexer.EscapedBrace, "}"},
				{lexer.EOF, ""},
			},
		},
		{
			name:  "statement and prose",
			input: "x = 1\nHello world",
			expected: []tok{
				{lexer.Statement, "x = 1"},
				{lexer.Newline, ""},
				{lexer.Text, "Hello world"},
				{lexer.EOF, ""},
			},
		},
		{
			name:  "statement with trailing comment",
			input: "count += 1  # bump",
			expected: []tok{
				{lexer.Statement, "count += 1"},
				{lexer.Comment, "bump"},
				{lexer.EOF, ""},
			},
		},
		{
			name:  "multi-line statement",
			input: "items = [\n    1,\n    2,\n]\n<p>x</p>",
			expected: []tok{
				{lexer.Statement, "items = [\n    1,\n    2,\n]"},
				{lexer.Newline, ""},
				{lexer.HTMLOpen, "p"},
				{lexer.Text, "x"},
				{lexer.HTMLClose, "p"},
				{lexer.EOF, ""},
			},
		},
		{
			name:  "brackets inside strings do not count",
			input: "label = \"(\"\n<p>x</p>",
			expected: []tok{
				{lexer.Statement, "label = \"(\""},
				{lexer.Newline, ""},
				{lexer.HTMLOpen, "p"},
				{lexer.Text, "x"},
				{lexer.HTMLClose, "p"},
				{lexer.EOF, ""},
			},
		},
		{
			name:  "components and slots",
			input: "<{Card} title=\"Hi\">\n<{...}>\n</{...}>\n</{Card}>",
			expected: []tok{
				{lexer.ComponentOpen, "Card"},
				{lexer.Newline, ""},
				{lexer.SlotOpen, ""},
				{lexer.Newline, ""},
				{lexer.SlotClose, ""},
				{lexer.Newline, ""},
				{lexer.ComponentClose, "Card"},
				{lexer.EOF, ""},
			},
		},
		{
			name:  "named slot shorthand expression",
			input: "<aside>{...sidebar}</aside>",
			expected: []tok{
				{lexer.HTMLOpen, "aside"},
				{lexer.Expression, "children_sidebar"},
				{lexer.HTMLClose, "aside"},
				{lexer.EOF, ""},
			},
		},
		{
			name:  "multi-line html tag",
			input: "<div\n    class=\"a\"\n    id={x}>\nhi\n</div>",
			expected: []tok{
				{lexer.HTMLOpen, "div"},
				{lexer.Newline, ""},
				{lexer.Text, "hi"},
				{lexer.Newline, ""},
				{lexer.HTMLClose, "div"},
				{lexer.EOF, ""},
			},
		},
		{
			name:  "raw escape keeps a keyword line as text",
			input: "\\return to sender",
			expected: []tok{
				{lexer.Text, "return to sender"},
				{lexer.EOF, ""},
			},
		},
		{
			name:  "decorator and css at-rule",
			input: "@cache\n@media screen",
			expected: []tok{
				{lexer.Decorator, "@cache"},
				{lexer.Newline, ""},
				{lexer.Text, "@media screen"},
				{lexer.EOF, ""},
			},
		},
		{
			name:  "fragment",
			input: "fragment Header:\nend",
			expected: []tok{
				{lexer.FragmentStart, "Header"},
				{lexer.Newline, ""},
				{lexer.End, ""},
				{lexer.EOF, ""},
			},
		},
		{
			name:  "def block",
			input: "def greet(who: str):\nend",
			expected: []tok{
				{lexer.ControlStart, "def greet(who: str)"},
				{lexer.Newline, ""},
				{lexer.End, ""},
				{lexer.EOF, ""},
			},
		},
		{
			name:  "async for",
			input: "async for row in rows():\nend",
			expected: []tok{
				{lexer.ControlStart, "async for row in rows()"},
				{lexer.Newline, ""},
				{lexer.End, ""},
				{lexer.EOF, ""},
			},
		},
		{
			name:  "html assignment",
			input: "badge = <span>{label}</span>",
			expected: []tok{
				{lexer.Statement, "badge = f\"\"\"<span>{label}</span>\"\"\""},
				{lexer.EOF, ""},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := summarize(tokenize(t, tt.input))
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestTokenizeAttributes(t *testing.T) {
	src := position.NewSource("attrs.hyper", `<input type="text" value={name} disabled {id} {**attrs} {...footer} />`)
	tokens := lexer.Tokenize(src)
	require.Len(t, tokens, 2)

	open := tokens[0]
	require.Equal(t, lexer.HTMLOpen, open.Kind)
	assert.True(t, open.SelfClosing)
	require.Len(t, open.Attributes, 6)

	tests := []struct {
		kind  lexer.AttributeKind
		name  string
		value string
	}{
		{lexer.AttrStatic, "type", "text"},
		{lexer.AttrDynamic, "value", "name"},
		{lexer.AttrBoolean, "disabled", ""},
		{lexer.AttrShorthand, "id", "id"},
		{lexer.AttrSpread, "", "attrs"},
		{lexer.AttrSlot, "footer", ""},
	}
	for i, want := range tests {
		got := open.Attributes[i]
		assert.Equal(t, want.kind, got.Kind, "attribute %d", i)
		assert.Equal(t, want.name, got.Name, "attribute %d", i)
		assert.Equal(t, want.value, got.Value, "attribute %d", i)
	}

	// value spans cover only the semantic value
	assert.Equal(t, "text", src.Slice(open.Attributes[0].ValueSpan))
	assert.Equal(t, "name", src.Slice(open.Attributes[1].ValueSpan))
	assert.Equal(t, "id", src.Slice(open.Attributes[3].ValueSpan))
	assert.Equal(t, "attrs", src.Slice(open.Attributes[4].ValueSpan))
}

func TestTokenizeSpans(t *testing.T) {
	text := "name: str\n---\n<div>{ name }</div>"
	src := position.NewSource("spans.hyper", text)
	tokens := lexer.Tokenize(src)

	var expr lexer.Token
	for _, tk := range tokens {
		if tk.Kind == lexer.Expression {
			expr = tk
		}
	}
	require.Equal(t, lexer.Expression, expr.Kind)
	assert.Equal(t, "{ name }", src.Slice(expr.Span))
	assert.Equal(t, "name", src.Slice(expr.ValueSpan))
	assert.Equal(t, 2, expr.ValueSpan.Start.Line)
	assert.Equal(t, 7, expr.ValueSpan.Start.Col)

	for _, tk := range tokens {
		assert.LessOrEqual(t, tk.Span.Start.Byte, tk.Span.End.Byte)
		assert.LessOrEqual(t, tk.Span.End.Byte, len(text))
	}
}

func TestControlValueSpan(t *testing.T) {
	src := position.NewSource("if.hyper", "if  user.is_admin :\nend")
	tokens := lexer.Tokenize(src)
	require.Equal(t, lexer.ControlStart, tokens[0].Kind)
	assert.Equal(t, "user.is_admin", tokens[0].Text)
	assert.Equal(t, "user.is_admin", src.Slice(tokens[0].ValueSpan))
}

func TestLiteralTextIsNeverAStatement(t *testing.T) {
	// text that the generator places inside merged literals
	literals := []string{
		"<li>‹ESCAPE:{item}›</li>",
		"<div class=\"card\">\n    <h2>Title</h2>\n</div>",
		"Hello World",
		"<a href=\"{url}\">more</a>",
		"Total: 3 items",
	}

	for _, lit := range literals {
		for _, tk := range lexer.Tokenize(position.NewSource("lit.hyper", "---\n"+lit)) {
			assert.NotEqual(t, lexer.Statement, tk.Kind, "literal %q", lit)
			assert.NotEqual(t, lexer.ControlStart, tk.Kind, "literal %q", lit)
		}
	}
}

type countingClassifier struct {
	classify.Classifier
	calls int
}

func (c *countingClassifier) Classify(line string) (classify.Kind, bool) {
	c.calls++
	return c.Classifier.Classify(line)
}

func TestPrefilterSkipsClassifier(t *testing.T) {
	c := &countingClassifier{Classifier: classify.NewTreeSitter()}
	src := position.NewSource("prose.hyper", "---\nWelcome to the site\n<p>More text</p>\n42 things")
	lexer.Tokenize(src, lexer.WithClassifier(c))
	assert.Equal(t, 0, c.calls)

	lexer.Tokenize(position.NewSource("code.hyper", "---\nx = compute()"), lexer.WithClassifier(c))
	assert.Equal(t, 1, c.calls)
}

func TestBracketDepth(t *testing.T) {
	tests := []struct {
		line string
		want int
	}{
		{"x = [", 1},
		{"f(a, [b, {c", 3},
		{"])", -2},
		{`s = "(["`, 0},
		{`s = '{' + f(`, 1},
		{"x = 1  # (", 0},
		{`d = """ ( """`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, lexer.BracketDepth(tt.line))
		})
	}
}
