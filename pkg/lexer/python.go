package lexer

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/walteh/gohyper/pkg/classify"
)

// pyState is the Python lexical state carried from one line to the next.
type pyState struct {
	depth  int
	triple string // `"""` or `'''` while inside a triple-quoted string
}

// scan advances the state over one line. Brackets inside strings and after a
// comment start are ignored.
func (s pyState) scan(line string) pyState {
	i := 0
	for i < len(line) {
		if s.triple != "" {
			idx := indexUnescaped(line[i:], s.triple)
			if idx < 0 {
				return s
			}
			i += idx + 3
			s.triple = ""
			continue
		}

		c := line[i]
		switch c {
		case '#':
			return s
		case '"', '\'':
			if q := line[i:min(i+3, len(line))]; q == `"""` || q == "'''" {
				s.triple = q
				i += 3
				continue
			}
			i = skipQuoted(line, i) + 1
			continue
		case '(', '[', '{':
			s.depth++
		case ')', ']', '}':
			s.depth--
		}
		i++
	}
	return s
}

// BracketDepth returns the net bracket depth of a line of Python.
func BracketDepth(line string) int {
	return pyState{}.scan(line).depth
}

// skipQuoted returns the index of the quote closing the string that opens at i,
// or the last index of s when the string is unterminated.
func skipQuoted(s string, i int) int {
	q := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case q:
			return j
		}
	}
	return len(s) - 1
}

func indexUnescaped(s, sub string) int {
	off := 0
	for {
		idx := strings.Index(s[off:], sub)
		if idx < 0 {
			return -1
		}
		at := off + idx
		backslashes := 0
		for k := at - 1; k >= 0 && s[k] == '\\'; k-- {
			backslashes++
		}
		if backslashes%2 == 0 {
			return at
		}
		off = at + 1
	}
}

// commentIndex returns the index of a '#' that starts a Python comment, or -1.
func commentIndex(line string) int {
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '#':
			return i
		case '"', '\'':
			i = skipQuoted(line, i)
		}
	}
	return -1
}

// splitComment separates trailing comment text from code. The code is right-trimmed.
func splitComment(line string) (code string, comment string, hasComment bool) {
	idx := commentIndex(line)
	if idx < 0 {
		return strings.TrimRight(line, " \t"), "", false
	}
	return strings.TrimRight(line[:idx], " \t"), strings.TrimSpace(line[idx+1:]), true
}

func endsWithBackslash(code string) bool {
	return strings.HasSuffix(strings.TrimRight(code, " \t"), "\\")
}

func startsWithIdentifier(s string) bool {
	for _, r := range s {
		return r == '_' || unicode.IsLetter(r)
	}
	return false
}

// looksLikeMultilineStart reports whether an incomplete line opens a Python
// statement that continues on the next lines.
func looksLikeMultilineStart(code string, st pyState, verdict classify.Verdict) bool {
	if strings.HasPrefix(code, `"""`) || strings.HasPrefix(code, "'''") {
		return st.triple != ""
	}
	if !startsWithIdentifier(code) {
		return false
	}
	if st.triple != "" {
		return strings.Contains(code, "=")
	}
	if st.depth > 0 {
		hasAssignment := strings.Contains(code, " = ") || strings.Contains(code, ": ")
		hasCall := unicode.IsLower([]rune(code)[0]) && strings.Contains(code, "(")
		return hasAssignment || hasCall || verdict == classify.VerdictClassify
	}
	return verdict == classify.VerdictClassify
}

var (
	paramPattern  = regexp.MustCompile(`^(\*{1,2})?([A-Za-z_]\w*)\s*:\s*(\S.*)$`)
	proseInType   = regexp.MustCompile(`[A-Za-z_]\w*\s+[A-Za-z_]`)
	htmlAssign    = regexp.MustCompile(`^([A-Za-z_]\w*)\s*=\s*<[A-Za-z]`)
	fragmentStart = regexp.MustCompile(`^fragment\s+([A-Za-z_]\w*)\s*:$`)
	defSignature  = regexp.MustCompile(`^[A-Za-z_]\w*\s*\(`)
	classHeader   = regexp.MustCompile(`^[A-Za-z_]\w*\s*(\(.*\))?$`)
)

// looksLikeParameter matches `name: type`, `name: type = default`, `*args: T`
// and `**kwargs: T`. Types made of several bare words are prose, not types.
func looksLikeParameter(code string) bool {
	m := paramPattern.FindStringSubmatch(code)
	if m == nil || strings.HasSuffix(code, ":") {
		return false
	}
	typ := m[3]
	if eq := strings.Index(typ, "="); eq >= 0 {
		typ = typ[:eq]
	}
	typ = stripStrings(typ)
	typ = strings.NewReplacer(" | ", "|", " |", "|", "| ", "|").Replace(typ)
	return !proseInType.MatchString(typ)
}

// stripStrings blanks out quoted substrings so their contents are not inspected.
func stripStrings(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\'' {
			j := skipQuoted(s, i)
			b.WriteString(`""`)
			i = j
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// controlKeywords are checked in order; longer keywords first.
var controlKeywords = []string{"async for", "async with", "async def", "if", "for", "while", "match", "with", "try", "def", "class"}

var continuationKeywords = []string{"elif", "else", "except", "finally", "case"}

// matchKeyword reports whether code starts with kw as a whole word and returns the rest.
func matchKeyword(code, kw string) (string, bool) {
	if !strings.HasPrefix(code, kw) {
		return "", false
	}
	rest := code[len(kw):]
	if rest == "" {
		return "", true
	}
	switch rest[0] {
	case ' ', '\t', '(', ':', '[', '*':
		return rest, true
	}
	return "", false
}

// controlHeader recognizes `keyword ...:` lines. rest is the text between the
// keyword and the trailing colon, and offset is its byte offset within code.
func controlHeader(code string, keywords []string) (kw string, rest string, offset int, ok bool) {
	if !strings.HasSuffix(code, ":") {
		return "", "", 0, false
	}
	for _, k := range keywords {
		r, matched := matchKeyword(code, k)
		if !matched {
			continue
		}
		body := strings.TrimSuffix(r, ":")
		trimmed := strings.TrimSpace(body)
		offset = len(k) + strings.Index(body, trimmed)
		if trimmed == "" {
			offset = len(k)
		}
		if !validControl(k, trimmed) {
			return "", "", 0, false
		}
		return k, trimmed, offset, true
	}
	return "", "", 0, false
}

func validControl(kw, rest string) bool {
	switch kw {
	case "try", "else", "finally":
		return rest == ""
	case "except":
		return true
	case "def", "async def":
		return defSignature.MatchString(rest)
	case "class":
		return classHeader.MatchString(rest)
	}
	return rest != ""
}

// cssAtRules are `@` lines that belong to stylesheets, not decorators.
var cssAtRules = map[string]struct{}{
	"media": {}, "keyframes": {}, "import": {}, "charset": {}, "font-face": {},
	"supports": {}, "namespace": {}, "page": {}, "counter-style": {}, "layer": {},
	"property": {}, "container": {}, "scope": {},
}

func isDecorator(body string) bool {
	if len(body) < 2 || body[0] != '@' {
		return false
	}
	name := body[1:]
	if i := strings.IndexFunc(name, func(r rune) bool {
		return !(r == '-' || r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r))
	}); i >= 0 {
		name = name[:i]
	}
	if name == "" || !startsWithIdentifier(name) {
		return false
	}
	_, css := cssAtRules[name]
	return !css
}

func isSeparator(body string) bool {
	return len(body) >= 3 && strings.Trim(body, "-") == ""
}
