package generate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/walteh/gohyper/pkg/generate"
)

func TestFunctionName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "Render"},
		{"render", "Render"},
		{"user_card", "UserCard"},
		{"user-card", "UserCard"},
		{"userCard", "UserCard"},
		{"page header", "PageHeader"},
		{"404", "_404"},
		{"__", "Render"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, generate.FunctionName(tt.input))
		})
	}
}

func TestNestedComponentsGetDistinctAccumulators(t *testing.T) {
	res := generateCode(t, "<{Card}>\n    <{Card}>\n        <p>inner</p>\n    </{Card}>\n</{Card}>", generate.Options{})
	assert.Equal(t,
		"    # <{Card}>\n"+
			"    _card_children = []\n"+
			"    # <{Card}>\n"+
			"    _card_children_2 = []\n"+
			"    _card_children_2.append(\"\"\"<p>inner</p>\"\"\")\n"+
			"    _card_children.extend(Card(_card_children_2))\n"+
			"    # </{Card}>\n"+
			"    yield from Card(_card_children)\n"+
			"    # </{Card}>\n",
		body(res.Code))
}
