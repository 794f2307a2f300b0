package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/gohyper/pkg/ast"
	"github.com/walteh/gohyper/pkg/diagnostic"
	"github.com/walteh/gohyper/pkg/lexer"
	"github.com/walteh/gohyper/pkg/parser"
	"github.com/walteh/gohyper/pkg/position"
)

func parse(t *testing.T, text string) (*ast.Document, *position.Source, error) {
	t.Helper()
	src := position.NewSource("test.hyper", text)
	doc, err := parser.Parse(src, lexer.Tokenize(src))
	return doc, src, err
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "element with text",
			input:    "<div>Hello World</div>",
			expected: "element div\n  text \"Hello World\"\n",
		},
		{
			name:     "for loop",
			input:    "for item in items:\n    <li>{item}</li>\nend",
			expected: "for item in items\n  element li\n    expr item\n",
		},
		{
			name:  "parameters are lifted out of the body",
			input: "title: str = \"Home\"\n---\n<h1>{title}</h1>",
			expected: "param title: str = \"Home\"\n" +
				"element h1\n  expr title\n",
		},
		{
			name:  "if elif else",
			input: "if a:\n    <p>A</p>\nelif b:\n    <p>B</p>\nelse:\n    <p>C</p>\nend",
			expected: "if a\n  element p\n    text \"A\"\n" +
				"elif b\n  element p\n    text \"B\"\n" +
				"else\n  element p\n    text \"C\"\n",
		},
		{
			name:  "blank lines collapse between content",
			input: "<p>a</p>\n\n\n<p>b</p>",
			expected: "element p\n  text \"a\"\n" +
				"text \"\\n\"\n" +
				"element p\n  text \"b\"\n",
		},
		{
			name:     "lines of prose in a block",
			input:    "if a:\n    Hello\n    World\nend",
			expected: "if a\n  text \"Hello\"\n  text \"\\n\"\n  text \"World\"\n",
		},
		{
			name:  "multi-line element keeps relative indentation",
			input: "for r in rows:\n    <tr>\n        <td>{r}</td>\n    </tr>\nend",
			expected: "for r in rows\n" +
				"  element tr\n" +
				"    text \"\\n\"\n" +
				"    text \"    \"\n" +
				"    element td\n      expr r\n" +
				"    text \"\\n\"\n",
		},
		{
			name:     "component",
			input:    "<{Card} title=\"Hi\">\n    <p>body</p>\n</{Card}>",
			expected: "component Card [title=\"Hi\"]\n  element p\n    text \"body\"\n",
		},
		{
			name:     "self-closing component",
			input:    "<{Icon} name=\"x\" />",
			expected: "component Icon [name=\"x\"] /\n",
		},
		{
			name:     "slot with fallback",
			input:    "<{...}>\n    <p>none</p>\n</{...}>",
			expected: "slot \"\"\n  element p\n    text \"none\"\n",
		},
		{
			name:     "slot expressions",
			input:    "<aside>{...sidebar}</aside>\n<main>{...}</main>",
			expected: "element aside\n  slot \"sidebar\"\ntext \"\\n\"\nelement main\n  slot \"\"\n",
		},
		{
			name:     "imports are hoisted",
			input:    "from app import x\n<p>{x}</p>",
			expected: "import from app import x\nelement p\n  expr x\n",
		},
		{
			name:     "decorator before a def stays in the body",
			input:    "@cache\ndef helper():\n    x = 1\nend",
			expected: "decorator @cache\ndef helper()\n  stmt x = 1\n",
		},
		{
			name:     "comments",
			input:    "# note\n<p>x</p>  # trailing",
			expected: "comment note\nelement p\n  text \"x\"\ncomment(inline) trailing\n",
		},
		{
			name:  "match",
			input: "match x:\n    case 1:\n        <p>one</p>\n    case _:\n        <p>other</p>\nend",
			expected: "match x\n" +
				"  case 1\n    element p\n      text \"one\"\n" +
				"  case _\n    element p\n      text \"other\"\n",
		},
		{
			name:  "try except finally",
			input: "try:\n    x = risky()\nexcept ValueError:\n    <p>bad</p>\nfinally:\n    y = 2\nend",
			expected: "try\n  stmt x = risky()\n" +
				"except ValueError\n  element p\n    text \"bad\"\n" +
				"finally\n  stmt y = 2\n",
		},
		{
			name:     "fragment",
			input:    "fragment Header:\n    <h1>Hi</h1>\nend",
			expected: "fragment Header\n  element h1\n    text \"Hi\"\n",
		},
		{
			name:     "with",
			input:    "with open(p) as f:\n    <p>{f}</p>\nend",
			expected: "with open(p) as f\n  element p\n    expr f\n",
		},
		{
			name:     "for else",
			input:    "for x in xs:\n    <p>{x}</p>\nelse:\n    <p>empty</p>\nend",
			expected: "for x in xs\n  element p\n    expr x\nelse\n  element p\n    text \"empty\"\n",
		},
		{
			name:     "escaped braces become text",
			input:    "<p>{{x}}</p>",
			expected: "element p\n  text \"{\"\n  text \"x\"\n  text \"}\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, _, err := parse(t, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ast.DumpDocument(doc))
		})
	}
}

func TestParseParameters(t *testing.T) {
	doc, _, err := parse(t, "title: str = \"Home\"\ncount: int\n---\n<p>{title}</p>")
	require.NoError(t, err)
	require.Len(t, doc.Parameters, 2)

	assert.Equal(t, "title", doc.Parameters[0].Name)
	assert.Equal(t, "str", doc.Parameters[0].Type)
	assert.Equal(t, `"Home"`, doc.Parameters[0].Default)
	assert.Equal(t, `title: str = "Home"`, doc.Parameters[0].Code)

	assert.Equal(t, "count", doc.Parameters[1].Name)
	assert.Equal(t, "int", doc.Parameters[1].Type)
	assert.Empty(t, doc.Parameters[1].Default)
}

func TestParseHeaderDecorator(t *testing.T) {
	doc, _, err := parse(t, "@cache\n<p>x</p>")
	require.NoError(t, err)
	require.Len(t, doc.Decorators, 1)
	assert.Equal(t, "@cache", doc.Decorators[0].Code)
	assert.Equal(t, "element p\n  text \"x\"\n", ast.Dump(doc.Nodes...))
}

func TestParseSpans(t *testing.T) {
	doc, src, err := parse(t, "for row in  rows:\n    <p>{ row }</p>\nend")
	require.NoError(t, err)
	require.Len(t, doc.Nodes, 1)

	loop, ok := doc.Nodes[0].(*ast.For)
	require.True(t, ok)
	assert.Equal(t, "rows", src.Slice(loop.IterSpan))
	assert.Equal(t, "row in  rows", src.Slice(loop.HeaderSpan))
	assert.Equal(t, src.Text(), src.Slice(loop.NodeSpan()))

	p := loop.Body[0].(*ast.Element)
	assert.Equal(t, "<p>{ row }</p>", src.Slice(p.NodeSpan()))
	expr := p.Children[0].(*ast.Expression)
	assert.Equal(t, "row", src.Slice(expr.CodeSpan))
	assert.True(t, expr.Escape)
}

func TestParseEmpty(t *testing.T) {
	src := position.NewSource("empty.hyper", "")
	doc, err := parser.Parse(src, nil)
	require.NoError(t, err)
	assert.Empty(t, doc.Nodes)
	assert.Empty(t, doc.Parameters)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		kind    diagnostic.Kind
		message string
		at      string
		related string
		help    string
	}{
		{
			name:    "unclosed element",
			input:   "<div>\n<p>x</p>",
			kind:    diagnostic.UnclosedElement,
			message: "<div> is never closed.",
			at:      "",
			related: "<div>",
			help:    "Close with </div> or <div />",
		},
		{
			name:    "unclosed block",
			input:   "for x in xs:\n    <p>{x}</p>",
			kind:    diagnostic.UnclosedBlock,
			message: "This 'for' block is never closed.",
			at:      "",
			related: "for x in xs:",
			help:    "Close with 'end'",
		},
		{
			name:    "inner element left open",
			input:   "<div><span></div>",
			kind:    diagnostic.UnclosedElement,
			message: "<span> is never closed.",
			at:      "</div>",
			related: "<span>",
		},
		{
			name:    "mismatched close tag",
			input:   "<div></span>",
			kind:    diagnostic.MismatchedCloseTag,
			message: "Expected </div> but found </span>.",
			at:      "</span>",
			related: "<div>",
		},
		{
			name:    "element left open in a block",
			input:   "if a:\n    <div>\nend",
			kind:    diagnostic.UnclosedElement,
			message: "<div> is never closed.",
			at:      "end",
			related: "<div>",
		},
		{
			name:    "stray end",
			input:   "<p>x</p>\nend",
			kind:    diagnostic.UnexpectedToken,
			message: "'end' does not close anything.",
			at:      "end",
		},
		{
			name:    "stray close tag",
			input:   "</div>",
			kind:    diagnostic.UnexpectedToken,
			message: "</div> has no matching opening tag.",
			at:      "</div>",
		},
		{
			name:    "void element with content",
			input:   "<br>",
			kind:    diagnostic.VoidElementWithContent,
			message: "<br> cannot have content or a closing tag.",
			at:      "<br>",
			help:    "<br> is a void element (like <img>, <input>, <hr>). Write it as <br /> instead.",
		},
		{
			name:    "duplicate attribute",
			input:   `<div class="a" class="b"></div>`,
			kind:    diagnostic.DuplicateAttribute,
			message: `"class" is set twice on this element.`,
			at:      `class="b"`,
			related: `class="a"`,
		},
		{
			name:    "block inside paragraph",
			input:   "<p><div>x</div></p>",
			kind:    diagnostic.InvalidNesting,
			message: "<div> cannot appear inside <p>.",
			at:      "<div>",
			related: "<p>",
		},
		{
			name:    "nested interactive elements",
			input:   `<a href="/"><button>x</button></a>`,
			kind:    diagnostic.InvalidNesting,
			message: "<button> cannot appear inside <a>.",
			at:      "<button>",
			related: `<a href="/">`,
			help:    "Nesting clickable elements is invalid HTML and causes unpredictable behavior across browsers.",
		},
		{
			name:    "clause the block does not accept",
			input:   "for x in xs:\nelif y:\nend",
			kind:    diagnostic.UnexpectedToken,
			message: "'elif' is not allowed here.",
			at:      "elif y:",
			related: "for x in xs:",
		},
		{
			name:    "try without handlers",
			input:   "try:\n    x = 1\nend",
			kind:    diagnostic.InvalidSyntax,
			message: "'try' needs at least one 'except' or 'finally' clause.",
			at:      "end",
			related: "try:",
		},
		{
			name:    "for without in",
			input:   "for x:\nend",
			kind:    diagnostic.InvalidSyntax,
			message: "This doesn't look like a valid for loop.",
			at:      "for x:",
			help:    "Syntax: for x in items:",
		},
		{
			name:    "unclosed component",
			input:   "<{Card}>\n<p>x</p>",
			kind:    diagnostic.UnclosedComponent,
			message: "<{Card}> is never closed.",
			related: "<{Card}>",
			help:    "Close with </{Card}> or <{Card} />",
		},
		{
			name:    "unclosed slot",
			input:   "<{...footer}>",
			kind:    diagnostic.UnclosedSlot,
			message: "<{...footer}> is never closed.",
			related: "<{...footer}>",
			help:    "Close with </{...footer}>",
		},
		{
			name:    "content directly inside match",
			input:   "match x:\n    <p>bad</p>\nend",
			kind:    diagnostic.InvalidSyntax,
			message: "Only 'case' clauses can appear directly inside 'match'.",
			at:      "<p>",
			related: "match x:",
		},
		{
			name:    "unclosed fragment",
			input:   "fragment Header:\n    <h1>Hi</h1>",
			kind:    diagnostic.UnclosedBlock,
			message: "This 'fragment' block is never closed.",
			related: "fragment Header:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, src, err := parse(t, tt.input)
			require.Error(t, err)
			assert.Nil(t, doc)

			derr, ok := diagnostic.AsError(err)
			require.True(t, ok, "expected a diagnostic error, got %v", err)
			assert.Equal(t, tt.kind, derr.Kind)
			assert.Equal(t, tt.message, derr.Message)
			assert.Equal(t, tt.at, src.Slice(derr.Span))

			if tt.related == "" {
				assert.Nil(t, derr.Related)
			} else {
				require.NotNil(t, derr.Related)
				assert.Equal(t, tt.related, src.Slice(derr.Related.Span))
			}
			if tt.help != "" {
				assert.Equal(t, tt.help, derr.Help)
			}
		})
	}
}
