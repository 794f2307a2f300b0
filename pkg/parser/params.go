package parser

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"gitlab.com/tozd/go/errors"
)

var (
	paramLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "String", Pattern: `"(?:\\.|[^"\\])*"|'(?:\\.|[^'\\])*'`},
		{Name: "Star", Pattern: `\*\*|\*`},
		{Name: "Ident", Pattern: `[\p{L}_][\p{L}\p{N}_]*`},
		{Name: "Number", Pattern: `\d+(?:\.\d+)?`},
		{Name: "Colon", Pattern: `:`},
		{Name: "Eq", Pattern: `=`},
		{Name: "Punct", Pattern: `[\[\](){},.|\-+/%<>!~&^@]`},
		{Name: "whitespace", Pattern: `\s+`},
	})

	paramParser = participle.MustBuild[paramDecl](
		participle.Lexer(paramLexer),
		participle.Elide("whitespace"),
	)
)

// paramDecl is `[*|**]name: type [= default]`.
type paramDecl struct {
	Variadic string        `@Star?`
	Name     string        `@Ident Colon`
	Type     []string      `@(String | Star | Ident | Number | Punct)+`
	Default  *paramDefault `@@?`
}

type paramDefault struct {
	Pos    lexer.Position
	Tokens []string `Eq @(String | Star | Ident | Number | Punct | Colon | Eq)+`
}

type parameter struct {
	name, typ, def, variadic string
}

// parseParameter splits a parameter declaration into its parts. The type and
// default are returned as written.
func parseParameter(code string) (parameter, error) {
	code = strings.TrimSpace(code)
	decl, err := paramParser.ParseString("", code)
	if err != nil {
		return parameter{}, errors.Errorf("parsing parameter %q: %w", code, err)
	}

	colon := strings.IndexByte(code, ':')
	p := parameter{name: decl.Name, variadic: decl.Variadic}
	if decl.Default == nil {
		p.typ = strings.TrimSpace(code[colon+1:])
		return p, nil
	}
	eq := decl.Default.Pos.Offset
	p.typ = strings.TrimSpace(code[colon+1 : eq])
	p.def = strings.TrimSpace(code[eq+1:])
	return p, nil
}
