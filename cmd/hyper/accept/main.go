package accept

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gohyper/pkg/compiler"
	"github.com/walteh/gohyper/pkg/config"
	"github.com/walteh/gohyper/pkg/driver"
	"github.com/walteh/gohyper/pkg/logging"
)

type Handler struct {
	dir    string
	check  bool
	debug  bool
	config string

	fs  afero.Fs
	out io.Writer
}

func NewAcceptCommand() *cobra.Command {
	me := &Handler{}

	cmd := &cobra.Command{
		Use:   "accept [filter]",
		Short: "regenerate the golden files for test templates",
		Long: "Compile every template under --dir and write its .expected.py, .expected.json " +
			"and .expected.err files. Only templates whose path contains filter are touched.",
		Args: cobra.MaximumNArgs(1),
	}

	cmd.Flags().StringVar(&me.dir, "dir", "testdata", "directory holding the test templates")
	cmd.Flags().BoolVar(&me.check, "check", false, "report golden files that are out of date without writing")
	cmd.Flags().BoolVar(&me.debug, "debug", false, "enable debug logging")
	cmd.Flags().StringVar(&me.config, "config", "", "path to a hyper.hcl or hyper.yaml file")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		me.fs = afero.NewOsFs()
		me.out = cmd.OutOrStdout()
		filter := ""
		if len(args) > 0 {
			filter = args[0]
		}
		return me.Run(cmd.Context(), filter)
	}

	return cmd
}

func (me *Handler) Run(ctx context.Context, filter string) error {
	cfg, _, err := config.Resolve(me.fs, me.config, ".")
	if err != nil {
		return err
	}
	ctx = logging.New(os.Stderr, logging.Options{Debug: me.debug}).WithContext(ctx)

	d := driver.New(me.fs, compiler.New(compiler.WithPrefilter(cfg.ClassifierPrefilter())), cfg)

	if me.check {
		mismatches, err := d.Verify(ctx, me.dir, filter)
		if err != nil {
			return err
		}
		for _, m := range mismatches {
			fmt.Fprintf(me.out, "%s\n%s\n", m.Path, m.Diff)
		}
		if len(mismatches) > 0 {
			return errors.Errorf("%d golden files out of date", len(mismatches))
		}
		return nil
	}

	written, err := d.Accept(ctx, me.dir, filter)
	for _, path := range written {
		fmt.Fprintf(me.out, "wrote %s\n", path)
	}
	return err
}
