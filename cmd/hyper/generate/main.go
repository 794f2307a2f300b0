package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/term"

	serve_daemon "github.com/walteh/gohyper/cmd/hyper/serve-daemon"
	"github.com/walteh/gohyper/pkg/compiler"
	"github.com/walteh/gohyper/pkg/config"
	"github.com/walteh/gohyper/pkg/diagnostic"
	"github.com/walteh/gohyper/pkg/driver"
	"github.com/walteh/gohyper/pkg/logging"
)

const (
	FormatPretty = "pretty"
	FormatText   = "text"
	FormatJSON   = "json"
)

type Handler struct {
	stdin     bool
	json      bool
	injection bool
	name      string
	daemon    bool
	format    string
	debug     bool
	config    string

	fs     afero.Fs
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func NewGenerateCommand() *cobra.Command {
	me := &Handler{}

	cmd := &cobra.Command{
		Use:   "generate [paths...]",
		Short: "compile templates into python modules",
		Long: "Compile every template under the given paths (default: the current directory) " +
			"into a python module written next to it.",
	}

	cmd.Flags().BoolVar(&me.stdin, "stdin", false, "read one template from stdin and print the code")
	cmd.Flags().BoolVar(&me.json, "json", false, "with --stdin, print the result as JSON")
	cmd.Flags().BoolVar(&me.injection, "injection", false, "with --json, include ranges and injections")
	cmd.Flags().StringVar(&me.name, "name", "", "with --stdin, the generated function name")
	cmd.Flags().BoolVar(&me.daemon, "daemon", false, "run the framed daemon protocol on stdin and stdout")
	cmd.Flags().StringVar(&me.format, "format", FormatPretty, "error format: pretty, text or json")
	cmd.Flags().BoolVar(&me.debug, "debug", false, "enable debug logging")
	cmd.Flags().StringVar(&me.config, "config", "", "path to a hyper.hcl or hyper.yaml file")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		me.fs = afero.NewOsFs()
		me.in = cmd.InOrStdin()
		me.out = cmd.OutOrStdout()
		me.errOut = cmd.ErrOrStderr()
		return me.Run(cmd.Context(), args)
	}

	return cmd
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (me *Handler) Run(ctx context.Context, args []string) error {
	switch me.format {
	case FormatPretty, FormatText, FormatJSON:
	default:
		return errors.Errorf("unknown format %q", me.format)
	}

	if me.daemon {
		return serve_daemon.Serve(ctx, me.config, me.debug, me.in, me.out)
	}

	cfg, cfgPath, err := config.Resolve(me.fs, me.config, ".")
	if err != nil {
		return err
	}

	logger := logging.New(me.errOut, logging.Options{
		Debug:   me.debug,
		Color:   cfg.UseColor(isTerminal(me.errOut)),
		Service: "hyper",
	})
	ctx = logger.WithContext(ctx)
	if cfgPath != "" {
		logger.Debug().Str("config", cfgPath).Msg("loaded config")
	}

	c := compiler.New(compiler.WithPrefilter(cfg.ClassifierPrefilter()))

	if me.stdin {
		return me.runStdin(ctx, c, cfg)
	}

	if len(args) == 0 {
		args = []string{"."}
	}
	return me.runFiles(ctx, c, cfg, args)
}

func (me *Handler) runStdin(ctx context.Context, c *compiler.Compiler, cfg *config.Config) error {
	data, err := io.ReadAll(me.in)
	if err != nil {
		return errors.Errorf("reading stdin: %w", err)
	}
	source := string(data)

	res, err := c.Compile(ctx, source, "<stdin>", compiler.Options{
		FunctionName:  me.name,
		IncludeRanges: me.injection,
		Indent:        cfg.Indent,
	})
	if err != nil {
		failed := &driver.FileError{Path: "<stdin>", Source: source, Err: err}
		if werr := me.report(cfg, []*driver.FileError{failed}); werr != nil {
			return werr
		}
		return errors.New("compilation failed")
	}

	if !me.json {
		_, err := io.WriteString(me.out, res.Code)
		return err
	}

	enc := json.NewEncoder(me.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return errors.Errorf("encoding result: %w", err)
	}
	return nil
}

func (me *Handler) runFiles(ctx context.Context, c *compiler.Compiler, cfg *config.Config, roots []string) error {
	start := time.Now()
	d := driver.New(me.fs, c, cfg)

	paths, err := d.Discover(ctx, roots)
	if err != nil {
		return err
	}

	summary, compileErr := d.CompileAll(ctx, paths)

	colorOut := cfg.UseColor(isTerminal(me.out))
	tick := "✓"
	if colorOut {
		tick = color.New(color.FgGreen).Sprint(tick)
	}
	for _, res := range summary.Results {
		fmt.Fprintf(me.out, "%s %s\n", tick, res.Source)
	}

	if err := me.report(cfg, summary.Failed); err != nil {
		return err
	}

	fmt.Fprintf(me.out, "Generated %d files in %s\n", len(summary.Results), time.Since(start).Round(time.Millisecond))
	zerolog.Ctx(ctx).Debug().Int("failed", len(summary.Failed)).Msg("generate finished")

	if compileErr != nil {
		if len(summary.Failed) == 0 {
			return compileErr
		}
		return errors.Errorf("%d of %d files failed to compile", len(summary.Failed), len(paths))
	}
	return nil
}

// report writes failures to the error stream in the selected format.
func (me *Handler) report(cfg *config.Config, failures []*driver.FileError) error {
	if len(failures) == 0 {
		return nil
	}

	if me.format == FormatPretty {
		colorErr := cfg.UseColor(isTerminal(me.errOut))
		for _, f := range failures {
			fmt.Fprint(me.errOut, f.Render(colorErr))
		}
		return nil
	}

	diags := &diagnostic.Diagnostics{}
	for _, f := range failures {
		diags.Add(f.Path, f.Err)
	}

	var formatter diagnostic.Formatter = diagnostic.NewTextFormatter()
	if me.format == FormatJSON {
		formatter = diagnostic.NewJSONFormatter()
	}
	data, err := formatter.Format(diags)
	if err != nil {
		return errors.Errorf("formatting diagnostics: %w", err)
	}
	if _, err := me.errOut.Write(data); err != nil {
		return errors.Errorf("writing diagnostics: %w", err)
	}
	return nil
}
