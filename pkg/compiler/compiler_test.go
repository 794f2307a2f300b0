package compiler_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/gohyper/pkg/ast"
	"github.com/walteh/gohyper/pkg/classify"
	"github.com/walteh/gohyper/pkg/compiler"
	"github.com/walteh/gohyper/pkg/diagnostic"
	"github.com/walteh/gohyper/pkg/generate"
	"github.com/walteh/gohyper/pkg/lexer"
	"github.com/walteh/gohyper/pkg/transform"
)

func compile(t *testing.T, source string, opts compiler.Options) (*generate.Result, error) {
	t.Helper()
	return compiler.Compile(context.Background(), source, "test.hyper", opts)
}

func TestMergedLiteral(t *testing.T) {
	res, err := compile(t, "<div>Hello World</div>", compiler.Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(res.Code, "yield "))
	assert.Contains(t, res.Code, `yield """<div>Hello World</div>"""`)
	assert.NotContains(t, res.Code, `f"""`)
}

func TestParameterAndExpressionRange(t *testing.T) {
	res, err := compile(t, "name: str\n---\n<div>{name}</div>", compiler.Options{IncludeRanges: true})
	require.NoError(t, err)

	assert.Contains(t, res.Code, "def Render(*, name: str):")

	var injected []generate.Range
	for _, r := range res.Ranges {
		if r.NeedsInjection {
			injected = append(injected, r)
		}
	}
	require.Len(t, injected, 1)
	assert.Equal(t, 20, injected[0].SourceStart)
	assert.Equal(t, 24, injected[0].SourceEnd)

	require.Len(t, res.Injections, 1)
	assert.Equal(t, 20, res.Injections[0].Start)
	assert.Equal(t, 24, res.Injections[0].End)
}

// An assignment from markup becomes a plain f-string statement: its
// expressions are neither escaped nor reported as ranges.
func TestMarkupAssignment(t *testing.T) {
	input := "badge = <span>{label}</span>\n<p>{badge}</p>"
	res, err := compile(t, input, compiler.Options{IncludeRanges: true})
	require.NoError(t, err)

	assert.Contains(t, res.Code, "    badge = f\"\"\"<span>{label}</span>\"\"\"\n")
	assert.NotContains(t, res.Code, "‹ESCAPE:{label}›")
	assert.True(t, classify.NewTreeSitter().Parses(res.Code), res.Code)

	line2 := strings.IndexByte(input, '\n') + 1
	require.NotEmpty(t, res.Ranges)
	for _, r := range res.Ranges {
		assert.GreaterOrEqual(t, r.SourceStart, line2)
	}
	require.Len(t, res.Injections, 1)
	assert.Equal(t, "badge", input[res.Injections[0].Start:res.Injections[0].End])
}

func TestForLoop(t *testing.T) {
	res, err := compile(t, "items: list\n---\nfor item in items:\n    <li>{item}</li>\nend", compiler.Options{})
	require.NoError(t, err)

	_, loop, found := strings.Cut(res.Code, "    for item in items:\n")
	require.True(t, found)
	assert.Equal(t, "        yield replace_markers(f\"\"\"<li>‹ESCAPE:{item}›</li>\"\"\")\n", loop)
	assert.Equal(t, 1, strings.Count(loop, "{item}"))

	_, err = compile(t, "items: list\n---\nfor item in items:\n    <li>{item}</li>\n", compiler.Options{})
	require.Error(t, err)
	derr, ok := diagnostic.AsError(err)
	require.True(t, ok)
	assert.Equal(t, diagnostic.UnclosedBlock, derr.Kind)
	require.NotNil(t, derr.Related)
	assert.Equal(t, 2, derr.Related.Span.Start.Line)
}

func TestEmptyBodyGetsPlaceholder(t *testing.T) {
	res, err := compile(t, "if flag:\nend", compiler.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(res.Code, "pass"))
	assert.Contains(t, res.Code, "    if flag:\n        pass\n")
}

func TestStructuralErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  diagnostic.Kind
	}{
		{"block inside paragraph", "<p><div>x</div></p>", diagnostic.InvalidNesting},
		{"void element with content", "<br>", diagnostic.VoidElementWithContent},
		{"duplicate attribute", `<a href="x" href="y">z</a>`, diagnostic.DuplicateAttribute},
		{"mismatched close", "<div></span>", diagnostic.MismatchedCloseTag},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compile(t, tt.input, compiler.Options{})
			require.Error(t, err)
			assert.True(t, diagnostic.IsKind(err, tt.kind), "got %v", err)
		})
	}
}

func TestSelfClosingVoidElement(t *testing.T) {
	doc, err := compiler.New().Parse(context.Background(), "<br />", "test.hyper")
	require.NoError(t, err)
	require.Len(t, doc.Nodes, 1)
	br := doc.Nodes[0].(*ast.Element)
	assert.Empty(t, br.Children)

	_, err = compile(t, "<br />", compiler.Options{})
	require.NoError(t, err)
}

// Every open construct missing its close reports the matching kind and
// points back at the opener.
func TestBalancedClosure(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		kind     diagnostic.Kind
		openLine int
	}{
		{"element", "<section>\n<p>x</p>", diagnostic.UnclosedElement, 0},
		{"component", "<p>x</p>\n<{Card}>\n<p>y</p>", diagnostic.UnclosedComponent, 1},
		{"slot", "<{...}>\n<p>fallback</p>", diagnostic.UnclosedSlot, 0},
		{"if", "x = 1\nif x:\n    <p>x</p>", diagnostic.UnclosedBlock, 1},
		{"while", "while x:\n    y = 1", diagnostic.UnclosedBlock, 0},
		{"with", "with lock:\n    y = 1", diagnostic.UnclosedBlock, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compile(t, tt.input, compiler.Options{})
			require.Error(t, err)
			derr, ok := diagnostic.AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, derr.Kind)
			require.NotNil(t, derr.Related)
			assert.Equal(t, tt.openLine, derr.Related.Span.Start.Line)
		})
	}
}

var corpus = []string{
	"<div>Hello World</div>",
	"name: str\n---\n<div>{name}</div>",
	"items: list\n---\nfor item in items:\n    <li>{item}</li>\nend",
	"if user.admin:\n    <p>{user.name}</p>\nelif user.guest:\n    <p>Guest</p>\nelse:\n    x = 1\nend",
	"<a href={url} class={classes} {**rest}>{label}</a>",
	"while queue:\n    item = queue.pop()\n    <p>{item}</p>\nend",
	"with open(path) as f:\n    <pre>{f.read()}</pre>\nend",
	"try:\n    v = load()\nexcept KeyError as e:\n    <p>{e}</p>\nfinally:\n    done = True\nend",
	"<aside>{...sidebar}</aside>\n<main>{...}</main>",
	"data = await fetch()\n<p>{data}</p>\n<{Card} title={data.title} />",
	"<p>héllo 😀 {name} ∑ {other}</p>",
	"# heading\n<ul>\n    for x in xs:\n        <li>{x}</li>  # item\n    end\n</ul>",
	"<{Card} t={v}>\n    <a href={u}>{l}</a>\n</{Card}>",
	"<{Layout} {**opts} title={t}>\n    <nav {...menu}>{links}</nav>\n    <p>{body}</p>\n</{Layout}>",
	"<{Outer} a={x}>\n    <{Inner} b={y}>{z}</{Inner}>\n</{Outer}>",
}

func TestRangesFollowSourceOrder(t *testing.T) {
	for _, input := range corpus {
		t.Run(input, func(t *testing.T) {
			res, err := compile(t, input, compiler.Options{IncludeRanges: true})
			require.NoError(t, err)
			for i := 1; i < len(res.Ranges); i++ {
				prev, cur := res.Ranges[i-1], res.Ranges[i]
				assert.LessOrEqual(t, prev.SourceEnd, cur.SourceStart)
				assert.LessOrEqual(t, prev.GeneratedEnd, cur.GeneratedStart)
			}
		})
	}
}

func TestSpanContainment(t *testing.T) {
	withComponent := append([]string{
		"<{Card} title={t}>\n    <p>{body}</p>\n</{Card}>",
		"<{Layout}>\n    <nav {...menu}>{links}</nav>\n</{Layout}>",
	}, corpus...)

	for _, input := range withComponent {
		t.Run(input, func(t *testing.T) {
			res, err := compile(t, input, compiler.Options{IncludeRanges: true})
			require.NoError(t, err)
			for _, r := range res.Ranges {
				assert.LessOrEqual(t, 0, r.SourceStart)
				assert.LessOrEqual(t, r.SourceStart, r.SourceEnd)
				assert.LessOrEqual(t, r.SourceEnd, len(input))
				assert.LessOrEqual(t, 0, r.GeneratedStart)
				assert.LessOrEqual(t, r.GeneratedStart, r.GeneratedEnd)
				assert.LessOrEqual(t, r.GeneratedEnd, len(res.Code))
			}
		})
	}
}

// Stitching the python injections of a template yields a module the
// tree-sitter grammar accepts.
func TestInjectionReconstruction(t *testing.T) {
	ts := classify.NewTreeSitter()

	for _, input := range corpus {
		t.Run(input, func(t *testing.T) {
			res, err := compile(t, input, compiler.Options{IncludeRanges: true})
			require.NoError(t, err)
			require.True(t, ts.Parses(res.Code), "generated code does not parse:\n%s", res.Code)

			if len(res.Injections) == 0 {
				return
			}
			units := utf16Units(input)
			var doc strings.Builder
			for _, inj := range res.Injections {
				require.Equal(t, generate.RangePython, inj.Kind)
				doc.WriteString(inj.Prefix)
				doc.WriteString(units[inj.Start:inj.End].String())
				doc.WriteString(inj.Suffix)
			}
			assert.True(t, ts.Parses(doc.String()), "virtual document does not parse:\n%s", doc.String())
		})
	}
}

// utf16Units splits s into runes indexed by UTF-16 offset; the second half
// of a surrogate pair is stored as an empty rune slot.
func utf16Units(s string) runeSlice {
	var out runeSlice
	for _, r := range s {
		out = append(out, r)
		if r > 0xFFFF {
			out = append(out, -1)
		}
	}
	return out
}

type runeSlice []rune

func (me runeSlice) String() string {
	var b strings.Builder
	for _, r := range me {
		if r >= 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// neverCode is a classifier that rejects every line.
type neverCode struct{}

func (neverCode) Classify(string) (classify.Kind, bool) { return "", false }
func (neverCode) HasAwait(string) bool                  { return false }

func TestWithClassifier(t *testing.T) {
	c := compiler.New(compiler.WithClassifier(neverCode{}))
	res, err := c.Compile(context.Background(), "x = 1", "test.hyper", compiler.Options{})
	require.NoError(t, err)
	assert.Contains(t, res.Code, `yield """x = 1"""`)
}

func TestWithPrefilter(t *testing.T) {
	pf := classify.DefaultPrefilter()
	res, err := compiler.New(compiler.WithPrefilter(pf)).
		Compile(context.Background(), "Total = 1", "test.hyper", compiler.Options{})
	require.NoError(t, err)
	assert.Contains(t, res.Code, `yield """Total = 1"""`)

	pf.UppercaseIsContent = false
	res, err = compiler.New(compiler.WithPrefilter(pf)).
		Compile(context.Background(), "Total = 1", "test.hyper", compiler.Options{})
	require.NoError(t, err)
	assert.Contains(t, res.Code, "    Total = 1\n")
}

type counter struct{ expressions int }

func (me *counter) Enter(n ast.Node, _ *transform.Metadata) bool {
	if _, ok := n.(*ast.Expression); ok {
		me.expressions++
	}
	return true
}

func (*counter) Exit(ast.Node, *transform.Metadata) {}

func TestWithTransforms(t *testing.T) {
	pass := &counter{}
	c := compiler.New(compiler.WithTransforms(pass))
	_, err := c.Compile(context.Background(), "<p>{a}{b}</p>", "test.hyper", compiler.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, pass.expressions)
}

func TestOptionsReachTheGenerator(t *testing.T) {
	res, err := compile(t, "if a:\n    <p>x</p>\nend", compiler.Options{FunctionName: "my_widget", Indent: "  "})
	require.NoError(t, err)
	assert.Contains(t, res.Code, "def MyWidget():\n  if a:\n    yield")
}

func TestTokenize(t *testing.T) {
	toks := compiler.New().Tokenize(context.Background(), "<p>x</p>", "test.hyper")
	require.NotEmpty(t, toks)
	assert.Equal(t, lexer.EOF, toks[len(toks)-1].Kind)
}
