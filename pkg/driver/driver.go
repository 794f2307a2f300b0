// Package driver compiles template files on disk. All file access goes
// through an afero.Fs.
package driver

import (
	"context"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/walteh/gohyper/pkg/compiler"
	"github.com/walteh/gohyper/pkg/config"
	"github.com/walteh/gohyper/pkg/diagnostic"
	"github.com/walteh/gohyper/pkg/generate"
	"github.com/walteh/gohyper/pkg/position"
)

type Driver struct {
	fs       afero.Fs
	compiler *compiler.Compiler
	cfg      *config.Config
	workers  int
}

type Option func(*Driver)

// WithWorkers bounds the number of files compiled at once.
func WithWorkers(n int) Option {
	return func(me *Driver) {
		if n > 0 {
			me.workers = n
		}
	}
}

func New(fs afero.Fs, c *compiler.Compiler, cfg *config.Config, opts ...Option) *Driver {
	me := &Driver{fs: fs, compiler: c, cfg: cfg, workers: runtime.GOMAXPROCS(0)}
	if me.cfg == nil {
		me.cfg = config.Default()
	}
	if me.compiler == nil {
		me.compiler = compiler.New(compiler.WithPrefilter(me.cfg.ClassifierPrefilter()))
	}
	for _, opt := range opts {
		opt(me)
	}
	return me
}

// FileResult is one compiled template.
type FileResult struct {
	Source string
	Output string
	Result *generate.Result
	Took   time.Duration
}

// FileError is a failed compilation of one file. It keeps the source so the
// diagnostic can be rendered with an excerpt.
type FileError struct {
	Path   string
	Source string
	Err    error
}

func (e *FileError) Error() string { return e.Path + ": " + e.Err.Error() }

func (e *FileError) Unwrap() error { return e.Err }

// Render formats the failure for a terminal or a log file.
func (e *FileError) Render(color bool) string {
	derr, ok := diagnostic.AsError(e.Err)
	if !ok {
		return "error: " + e.Error() + "\n"
	}
	src := position.NewSource(e.Path, e.Source)
	if color {
		return derr.RenderColor(src, e.Path)
	}
	return derr.Render(src, e.Path)
}

// OutputPath is the generated module for a template: x.hyper becomes x.py.
func OutputPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".py"
}

func (me *Driver) compile(ctx context.Context, path string, includeRanges bool) (string, *generate.Result, error) {
	data, err := afero.ReadFile(me.fs, path)
	if err != nil {
		return "", nil, errors.Errorf("reading %s: %w", path, err)
	}
	source := string(data)
	res, err := me.compiler.Compile(ctx, source, path, compiler.Options{
		FunctionName:  me.cfg.FunctionName(path),
		IncludeRanges: includeRanges,
		Indent:        me.IndentFor(path),
	})
	if err != nil {
		return source, nil, &FileError{Path: path, Source: source, Err: err}
	}
	return source, res, nil
}

// CompileFile compiles path and writes the module next to it. Nothing is
// written when compilation fails.
func (me *Driver) CompileFile(ctx context.Context, path string) (*FileResult, error) {
	start := time.Now()
	_, res, err := me.compile(ctx, path, false)
	if err != nil {
		return nil, err
	}

	out := OutputPath(path)
	if err := afero.WriteFile(me.fs, out, []byte(res.Code), 0o644); err != nil {
		return nil, errors.Errorf("writing %s: %w", out, err)
	}

	zerolog.Ctx(ctx).Debug().Str("file", path).Str("output", out).Msg("wrote module")
	return &FileResult{Source: path, Output: out, Result: res, Took: time.Since(start)}, nil
}

// Summary collects the outcome of CompileAll.
type Summary struct {
	Results []*FileResult
	Failed  []*FileError
	Took    time.Duration
}

// CompileAll compiles paths concurrently. Every failure is reported in the
// returned *multierror.Error and in Summary.Failed; successes are still
// written.
func (me *Driver) CompileAll(ctx context.Context, paths []string) (*Summary, error) {
	start := time.Now()

	type outcome struct {
		res *FileResult
		err error
	}
	outcomes := make([]outcome, len(paths))

	var g errgroup.Group
	g.SetLimit(me.workers)
	for i, path := range paths {
		if ctx.Err() != nil {
			outcomes[i].err = errors.Errorf("compiling %s: %w", path, ctx.Err())
			continue
		}
		g.Go(func() error {
			res, err := me.CompileFile(ctx, path)
			outcomes[i] = outcome{res: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	summary := &Summary{}
	var merr *multierror.Error
	for _, o := range outcomes {
		if o.err != nil {
			merr = multierror.Append(merr, o.err)
			var ferr *FileError
			if errors.As(o.err, &ferr) {
				summary.Failed = append(summary.Failed, ferr)
			}
			continue
		}
		summary.Results = append(summary.Results, o.res)
	}
	sort.Slice(summary.Results, func(i, j int) bool { return summary.Results[i].Source < summary.Results[j].Source })
	summary.Took = time.Since(start)

	return summary, merr.ErrorOrNil()
}
