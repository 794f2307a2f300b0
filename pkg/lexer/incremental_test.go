package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/walteh/gohyper/pkg/lexer"
	"github.com/walteh/gohyper/pkg/position"
)

func TestIncrementalUpdate(t *testing.T) {
	tests := []struct {
		name      string
		initial   string
		change    lexer.Change
		expected  string
		wantStart int
		wantEnd   int
	}{
		{
			name:      "replace one line",
			initial:   "<p>one</p>\n<p>two</p>\n<p>three</p>\n",
			change:    lexer.Change{StartLine: 1, EndLine: 2, NewText: "<p>2</p>\n"},
			expected:  "<p>one</p>\n<p>2</p>\n<p>three</p>\n",
			wantStart: 1,
			wantEnd:   2,
		},
		{
			name:      "insert a line",
			initial:   "<p>one</p>\n<p>two</p>\n",
			change:    lexer.Change{StartLine: 1, EndLine: 1, NewText: "<p>new</p>\n"},
			expected:  "<p>one</p>\n<p>new</p>\n<p>two</p>\n",
			wantStart: 1,
			wantEnd:   2,
		},
		{
			name:      "delete a line",
			initial:   "<p>one</p>\n<p>two</p>\n<p>three</p>\n",
			change:    lexer.Change{StartLine: 1, EndLine: 2, NewText: ""},
			expected:  "<p>one</p>\n<p>three</p>\n",
			wantStart: 1,
			wantEnd:   2,
		},
		{
			name:      "opening a multi-line statement re-tokenizes to the end",
			initial:   "---\n<p>a</p>\n<p>b</p>\n",
			change:    lexer.Change{StartLine: 1, EndLine: 2, NewText: "items = [\n"},
			expected:  "---\nitems = [\n<p>b</p>\n",
			wantStart: 1,
			wantEnd:   4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inc := lexer.NewIncremental(position.NewSource("inc.hyper", tt.initial))

			start, end := inc.Update(tt.change)

			assert.Equal(t, tt.expected, inc.Source().Text())
			assert.Equal(t, tt.wantStart, start, "start line")
			assert.Equal(t, tt.wantEnd, end, "end line")

			fresh := lexer.Tokenize(position.NewSource("inc.hyper", tt.expected))
			assert.Equal(t, fresh, inc.Tokens())
		})
	}
}

func TestIncrementalTokensForLines(t *testing.T) {
	inc := lexer.NewIncremental(position.NewSource("lines.hyper", "<p>a</p>\n<p>b</p>\n"))

	got := summarize(inc.TokensForLines(1, 2))
	assert.Equal(t, []tok{
		{lexer.HTMLOpen, "p"},
		{lexer.Text, "b"},
		{lexer.HTMLClose, "p"},
		{lexer.Newline, ""},
	}, got)

	assert.Empty(t, inc.TokensForLines(5, 9))
}

func TestIncrementalFullRetokenize(t *testing.T) {
	src := position.NewSource("full.hyper", "for x in xs:\n    <li>{x}</li>\nend\n")
	inc := lexer.NewIncremental(src)
	inc.FullRetokenize()
	assert.Equal(t, lexer.Tokenize(src), inc.Tokens())
}
