// Package compiler wires the lexer, parser, transform passes and generator
// into a single call. Each stage is pure; the compiler adds no I/O.
package compiler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gohyper/pkg/ast"
	"github.com/walteh/gohyper/pkg/classify"
	"github.com/walteh/gohyper/pkg/generate"
	"github.com/walteh/gohyper/pkg/lexer"
	"github.com/walteh/gohyper/pkg/parser"
	"github.com/walteh/gohyper/pkg/position"
	"github.com/walteh/gohyper/pkg/transform"
)

// Options controls one compilation.
type Options struct {
	// FunctionName names the generated function; empty means Render.
	FunctionName string
	// IncludeRanges turns on range and injection computation.
	IncludeRanges bool
	// Indent is one level of indentation; empty means four spaces.
	Indent string
}

// Compiler holds the collaborators shared across compilations. It is safe
// for concurrent use when its classifier is.
type Compiler struct {
	classifier classify.Classifier
	prefilter  *classify.Prefilter
	transforms []transform.Visitor
}

type Option func(*Compiler)

// WithClassifier replaces the tree-sitter classifier.
func WithClassifier(c classify.Classifier) Option {
	return func(me *Compiler) { me.classifier = c }
}

// WithPrefilter replaces the default prefilter table.
func WithPrefilter(p classify.Prefilter) Option {
	return func(me *Compiler) { me.prefilter = &p }
}

// WithTransforms adds passes that run after the standard ones.
func WithTransforms(passes ...transform.Visitor) Option {
	return func(me *Compiler) { me.transforms = append(me.transforms, passes...) }
}

func New(opts ...Option) *Compiler {
	me := &Compiler{}
	for _, opt := range opts {
		opt(me)
	}
	if me.classifier == nil {
		me.classifier = classify.NewTreeSitter()
	}
	return me
}

func (me *Compiler) Classifier() classify.Classifier {
	return me.classifier
}

func (me *Compiler) lexerOptions(ctx context.Context) []lexer.Option {
	opts := []lexer.Option{lexer.WithContext(ctx), lexer.WithClassifier(me.classifier)}
	if me.prefilter != nil {
		opts = append(opts, lexer.WithPrefilter(*me.prefilter))
	}
	return opts
}

// Tokenize lexes source.
func (me *Compiler) Tokenize(ctx context.Context, source, filename string) []lexer.Token {
	return lexer.Tokenize(position.NewSource(filename, source), me.lexerOptions(ctx)...)
}

// Parse lexes and parses source.
func (me *Compiler) Parse(ctx context.Context, source, filename string) (*ast.Document, error) {
	src := position.NewSource(filename, source)
	doc, err := parser.Parse(src, lexer.Tokenize(src, me.lexerOptions(ctx)...))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return doc, nil
}

// Compile turns source into Python. Failures are *diagnostic.Error values
// carrying the span to report; recover them with diagnostic.AsError.
func (me *Compiler) Compile(ctx context.Context, source, filename string, opts Options) (*generate.Result, error) {
	start := time.Now()
	logger := zerolog.Ctx(ctx).With().Str("file", filename).Logger()

	doc, err := me.Parse(ctx, source, filename)
	if err != nil {
		logger.Debug().Err(err).Msg("parse failed")
		return nil, err
	}

	pipeline := transform.Standard(me.classifier)
	for _, pass := range me.transforms {
		pipeline.Add(pass)
	}
	md := pipeline.Run(logger.WithContext(ctx), doc)

	res, err := generate.Generate(doc, md, generate.Options{
		FunctionName:  opts.FunctionName,
		IncludeRanges: opts.IncludeRanges,
		Indent:        opts.Indent,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	logger.Debug().
		Dur("took", time.Since(start)).
		Int("bytes", len(res.Code)).
		Bool("async", md.IsAsync).
		Msg("compiled")
	return res, nil
}

var defaultCompiler = sync.OnceValue(func() *Compiler { return New() })

// Compile compiles with a shared default compiler.
func Compile(ctx context.Context, source, filename string, opts Options) (*generate.Result, error) {
	return defaultCompiler().Compile(ctx, source, filename, opts)
}
