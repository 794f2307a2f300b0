package serve_daemon

import (
	"context"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/term"

	"github.com/walteh/gohyper/pkg/compiler"
	"github.com/walteh/gohyper/pkg/config"
	"github.com/walteh/gohyper/pkg/daemon"
	"github.com/walteh/gohyper/pkg/logging"
)

type Handler struct {
	debug  bool
	config string
}

func NewServeDaemonCommand() *cobra.Command {
	me := &Handler{}

	cmd := &cobra.Command{
		Use:   "serve-daemon",
		Short: "serve compilations to an editor over stdin and stdout",
	}

	cmd.Flags().BoolVar(&me.debug, "debug", false, "enable debug logging")
	cmd.Flags().StringVar(&me.config, "config", "", "path to a hyper.hcl or hyper.yaml file")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return me.Run(cmd.Context())
	}

	return cmd
}

func (me *Handler) Run(ctx context.Context) error {
	return Serve(ctx, me.config, me.debug, os.Stdin, os.Stdout)
}

// Serve runs the daemon loop with settings from the config at path, or the
// one discovered in the working directory. Logs go to stderr.
func Serve(ctx context.Context, path string, debug bool, r io.Reader, w io.Writer) error {
	cfg, _, err := config.Resolve(afero.NewOsFs(), path, ".")
	if err != nil {
		return err
	}

	logger := logging.New(os.Stderr, logging.Options{
		Debug:   debug,
		Color:   cfg.UseColor(term.IsTerminal(int(os.Stderr.Fd()))),
		Service: "hyper-daemon",
	})
	ctx = logger.WithContext(ctx)

	server := daemon.NewServer(
		compiler.New(compiler.WithPrefilter(cfg.ClassifierPrefilter())),
		daemon.WithMaxFrameBytes(cfg.MaxFrameBytes()),
		daemon.WithColor(cfg.UseColor(term.IsTerminal(int(os.Stdout.Fd())))),
	)

	logger.Debug().Int("max_frame_bytes", cfg.MaxFrameBytes()).Msg("daemon starting")

	if err := server.Serve(ctx, r, w); err != nil {
		return errors.Errorf("error running daemon: %w", err)
	}
	return nil
}
