// Package lexer turns hybrid template source into a flat token stream.
//
// Lines are classified one at a time. Markers that cannot be confused with
// anything else (`<{`, `end`, control headers) are checked first; the
// ambiguous choice between Python statements and content is delegated to a
// classify.Classifier. The lexer never fails: anything it cannot place is
// content, and structural problems are reported by the parser.
package lexer

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/walteh/gohyper/pkg/classify"
	"github.com/walteh/gohyper/pkg/position"
)

type options struct {
	ctx        context.Context
	classifier classify.Classifier
	prefilter  classify.Prefilter
}

// Option configures the lexer.
type Option func(*options)

// WithClassifier sets the Python classifier.
func WithClassifier(c classify.Classifier) Option {
	return func(o *options) { o.classifier = c }
}

// WithPrefilter replaces the default prefilter table.
func WithPrefilter(p classify.Prefilter) Option {
	return func(o *options) { o.prefilter = p }
}

// WithContext sets the context carrying the logger used for ambiguous lines.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

var defaultClassifier = sync.OnceValue(func() classify.Classifier {
	return classify.NewTreeSitter()
})

func newOptions(opts []Option) options {
	o := options{
		ctx:       context.Background(),
		prefilter: classify.DefaultPrefilter(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.classifier == nil {
		o.classifier = defaultClassifier()
	}
	return o
}

// Tokenize splits src into tokens. The last token is always EOF.
func Tokenize(src *position.Source, opts ...Option) []Token {
	l := newLexer(src, newOptions(opts))
	var tokens []Token
	for n := 0; n < src.LineCount(); n++ {
		tokens = append(tokens, l.line(n)...)
	}
	return append(tokens, l.finish()...)
}

type pendingKind int

const (
	pendingNone pendingKind = iota
	pendingStatement
	pendingTag
)

// state is what one line hands to the next.
type state struct {
	header    bool
	pending   pendingKind
	start     int
	py        pyState
	backslash bool
}

// settled reports whether nothing spans the line boundary.
func (s state) settled() bool {
	return s.pending == pendingNone
}

type lexer struct {
	src  *position.Source
	text string
	opts options
	log  *zerolog.Logger
	st   state
	out  []Token
}

func newLexer(src *position.Source, opts options) *lexer {
	return &lexer{
		src:  src,
		text: src.Text(),
		opts: opts,
		log:  zerolog.Ctx(opts.ctx),
		st:   state{header: true},
	}
}

func (l *lexer) emit(t Token) {
	l.out = append(l.out, t)
}

func (l *lexer) span(start, end int) position.Span {
	return l.src.SpanOf(start, end)
}

// bounds returns the byte range of line n without its terminator, and the start of the next line.
func (l *lexer) bounds(n int) (start, end, next int) {
	start = l.src.LineStart(n).Byte
	next = len(l.text)
	if n+1 < l.src.LineCount() {
		next = l.src.LineStart(n + 1).Byte
	}
	end = next
	if end > start && l.text[end-1] == '\n' {
		end--
	}
	if end > start && l.text[end-1] == '\r' {
		end--
	}
	return start, end, next
}

func (l *lexer) newline(end, next int) {
	if next > end {
		l.emit(Token{Kind: Newline, Text: "\n", Span: l.span(end, next)})
	}
}

// line tokenizes line n and returns the tokens completed on it.
func (l *lexer) line(n int) []Token {
	l.out = nil
	start, end, next := l.bounds(n)

	switch l.st.pending {
	case pendingStatement:
		l.continueStatement(start, end, next)
		return l.out
	case pendingTag:
		if l.continueTag(start, end, next) {
			return l.out
		}
	}

	line := l.text[start:end]
	body := strings.TrimLeft(line, " \t")
	indent := len(line) - len(body)
	body = strings.TrimRight(body, " \t")
	if body == "" {
		l.newline(end, next)
		return l.out
	}
	if indent > 0 {
		l.emit(Token{Kind: Indent, Text: line[:indent], Span: l.span(start, start+indent)})
	}

	bs := start + indent
	if l.dispatch(body, bs, bs+len(body)) {
		l.newline(end, next)
	}
	return l.out
}

// dispatch classifies one trimmed line. It returns false when the line opened
// a region continuing on the next line.
func (l *lexer) dispatch(body string, bs, be int) bool {
	code, comment, hasComment := splitComment(body)

	switch {
	case isSeparator(body):
		l.emit(Token{Kind: Separator, Text: body, Span: l.span(bs, be)})
		l.st.header = false
		return true

	case body[0] == '#':
		l.emit(Token{Kind: Comment, Text: strings.TrimSpace(body[1:]), Span: l.span(bs, be)})
		return true

	case isDecorator(body):
		l.emit(Token{Kind: Decorator, Text: code, Span: l.span(bs, bs+len(code))})
		return true

	case body[0] == '<':
		l.st.header = false
		return l.markup(bs, be)

	case code == "end":
		l.emit(Token{Kind: End, Text: "end", Span: l.span(bs, bs+3)})
		return true

	case body[0] == '\\':
		l.st.header = false
		return l.markup(bs+1, be)
	}

	if m := fragmentStart.FindStringSubmatch(code); m != nil {
		nameStart := bs + strings.Index(code, m[1])
		l.emit(Token{
			Kind:     FragmentStart,
			Name:     m[1],
			NameSpan: l.span(nameStart, nameStart+len(m[1])),
			Span:     l.span(bs, bs+len(code)),
		})
		l.st.header = false
		return true
	}

	if kw, rest, off, ok := controlHeader(code, controlKeywords); ok {
		tok := Token{
			Kind:      ControlStart,
			Keyword:   kw,
			Async:     strings.HasPrefix(kw, "async "),
			Text:      rest,
			ValueSpan: l.span(bs+off, bs+off+len(rest)),
			Span:      l.span(bs, bs+len(code)),
		}
		l.emit(tok)
		l.st.header = false
		return true
	}

	if kw, rest, off, ok := controlHeader(code, continuationKeywords); ok {
		l.emit(Token{
			Kind:      ControlContinuation,
			Keyword:   kw,
			Text:      rest,
			ValueSpan: l.span(bs+off, bs+off+len(rest)),
			Span:      l.span(bs, bs+len(code)),
		})
		return true
	}

	if m := htmlAssign.FindStringSubmatch(code); m != nil {
		markup := strings.TrimSpace(code[strings.IndexByte(code, '<'):])
		l.emitStatement(m[1]+` = f"""`+strings.ReplaceAll(markup, `"""`, `\"\"\"`)+`"""`, classify.KindAssignment, bs, bs+len(code))
		l.emitComment(comment, hasComment, bs+len(code), be)
		return true
	}

	if l.st.header && looksLikeParameter(code) && l.parameterParses(code) {
		l.emitStatement(code, classify.KindAnnotation, bs, bs+len(code))
		l.emitComment(comment, hasComment, bs+len(code), be)
		return true
	}

	return l.statementOrContent(body, code, comment, hasComment, bs, be)
}

// parameterParses asks the classifier to confirm a parameter line. Variadic
// forms are not statements on their own and are accepted as they are.
func (l *lexer) parameterParses(code string) bool {
	if strings.HasPrefix(code, "*") {
		return true
	}
	kind, ok := l.opts.classifier.Classify(code)
	return ok && (kind == classify.KindAnnotation || kind == classify.KindAssignment)
}

func (l *lexer) statementOrContent(body, code, comment string, hasComment bool, bs, be int) bool {
	verdict, reason := l.opts.prefilter.Check(code)

	st := pyState{}.scan(body)
	backslash := st.triple == "" && endsWithBackslash(code)
	if st.depth > 0 || st.triple != "" || backslash {
		if looksLikeMultilineStart(code, st, verdict) {
			l.st.pending = pendingStatement
			l.st.start = bs
			l.st.py = st
			l.st.backslash = backslash
			return false
		}
	}

	if strings.HasPrefix(code, "class =") || strings.HasPrefix(code, "class=") {
		l.emitStatement(code, classify.KindAssignment, bs, bs+len(code))
		l.emitComment(comment, hasComment, bs+len(code), be)
		return true
	}

	if verdict == classify.VerdictClassify {
		kind, ok := l.opts.classifier.Classify(code)
		if ok && kind.Executable() {
			l.emitStatement(code, kind, bs, bs+len(code))
			l.emitComment(comment, hasComment, bs+len(code), be)
			return true
		}
		l.ambiguous(bs, code, "prefilter sent line to classifier: "+reason)
	} else if l.opts.prefilter.Ambiguous(code) {
		l.ambiguous(bs, code, "prefilter treated code-like line as content: "+reason)
	}

	l.st.header = false
	return l.markup(bs, be)
}

func (l *lexer) ambiguous(offset int, code, reason string) {
	l.log.Debug().
		Int("line", l.src.PositionAt(offset).Line+1).
		Str("reason", reason).
		Str("text", code).
		Msg("ambiguous template line treated as content")
}

func (l *lexer) emitStatement(code string, kind classify.Kind, start, end int) {
	l.emit(Token{
		Kind:          Statement,
		Text:          code,
		StatementKind: kind,
		Span:          l.span(start, end),
		ValueSpan:     l.span(start, end),
	})
}

func (l *lexer) emitComment(text string, ok bool, codeEnd, end int) {
	if !ok {
		return
	}
	at := codeEnd + strings.IndexByte(l.text[codeEnd:end], '#')
	l.emit(Token{Kind: Comment, Text: text, Inline: true, Span: l.span(at, end)})
}

// markup tokenizes a content line; an HTML tag left open at the end of the
// line continues on the following lines.
func (l *lexer) markup(start, end int) bool {
	if at := l.content(start, end, false); at >= 0 {
		l.st.pending = pendingTag
		l.st.start = at
		return false
	}
	return true
}

func (l *lexer) continueStatement(start, end, next int) {
	line := l.text[start:end]
	l.st.py = l.st.py.scan(line)
	l.st.backslash = l.st.py.triple == "" && endsWithBackslash(line)
	if l.st.py.depth > 0 || l.st.py.triple != "" || l.st.backslash {
		return
	}
	l.finishStatement(end)
	l.newline(end, next)
}

// finishStatement classifies an accumulated multi-line statement; when it is
// not executable Python its lines fall back to content.
func (l *lexer) finishStatement(end int) {
	start := l.st.start
	l.st.pending = pendingNone
	l.st.py = pyState{}
	l.st.backslash = false

	code := strings.TrimRight(l.text[start:end], " \t\r\n")
	kind, ok := l.opts.classifier.Classify(code)
	docstring := strings.HasPrefix(code, `"""`) || strings.HasPrefix(code, "'''")
	if ok && (kind.Executable() || docstring) {
		l.emitStatement(code, kind, start, start+len(code))
		return
	}

	l.ambiguous(start, code, "multi-line statement did not parse")
	l.st.header = false
	l.contentLines(start, end)
}

// contentLines tokenizes a region line by line as content.
func (l *lexer) contentLines(start, end int) {
	first := l.src.PositionAt(start).Line
	last := l.src.PositionAt(end).Line
	for n := first; n <= last; n++ {
		ls, le, next := l.bounds(n)
		if n == first {
			ls = start
		}
		if le > end {
			le = end
		}
		line := l.text[ls:le]
		body := strings.TrimLeft(line, " \t")
		if indent := len(line) - len(body); indent > 0 && n != first {
			l.emit(Token{Kind: Indent, Text: line[:indent], Span: l.span(ls, ls+indent)})
		}
		body = strings.TrimRight(body, " \t")
		if body != "" {
			bs := ls + len(line) - len(strings.TrimLeft(line, " \t"))
			l.content(bs, bs+len(body), true)
		}
		if n != last {
			l.newline(le, next)
		}
	}
}

// continueTag extends an HTML tag opened on an earlier line. It returns false
// when the line is not part of the tag; the tag is then flushed as text and the
// line is classified normally.
func (l *lexer) continueTag(start, end, next int) bool {
	trimmed := strings.TrimSpace(l.text[start:end])
	if trimmed == "end" || strings.HasPrefix(trimmed, "<") || isControlLine(trimmed) {
		l.st.pending = pendingNone
		l.content(l.st.start, l.lastLineEnd(start), true)
		l.newline(l.lastLineEnd(start), start)
		return false
	}

	if l.tagCloses(l.st.start, end) {
		l.st.pending = pendingNone
		if l.markup(l.st.start, end) {
			l.newline(end, next)
		}
	}
	return true
}

func (l *lexer) tagCloses(start, end int) bool {
	_, _, status := l.tag(start, end)
	return status != tagIncomplete
}

func (l *lexer) lastLineEnd(nextLineStart int) int {
	end := nextLineStart
	if end > 0 && l.text[end-1] == '\n' {
		end--
	}
	if end > 0 && l.text[end-1] == '\r' {
		end--
	}
	return end
}

func isControlLine(line string) bool {
	code, _, _ := splitComment(line)
	if _, _, _, ok := controlHeader(code, controlKeywords); ok {
		return true
	}
	_, _, _, ok := controlHeader(code, continuationKeywords)
	return ok
}

// finish flushes any open region and appends EOF.
func (l *lexer) finish() []Token {
	l.out = nil
	end := len(l.text)
	switch l.st.pending {
	case pendingStatement:
		l.st.pending = pendingNone
		l.contentLines(l.st.start, strings.LastIndexFunc(l.text, notSpace)+1)
	case pendingTag:
		l.st.pending = pendingNone
		l.content(l.st.start, strings.LastIndexFunc(l.text, notSpace)+1, true)
	}
	l.emit(Token{Kind: EOF, Span: l.span(end, end)})
	return l.out
}

func notSpace(r rune) bool {
	return r != ' ' && r != '\t' && r != '\n' && r != '\r'
}
