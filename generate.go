package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/abiiranathan/expgen/config"
	"github.com/abiiranathan/expgen/generator"
	"github.com/abiiranathan/expgen/logger"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		check   bool
		archive string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Render every experiment of the study",
		Long: `Render every template once per experiment of the study and write the
results under the output directory, one sub-directory per experiment.
Non-template files of the template directory are copied into every
experiment.

With --check nothing is written; the command fails if the output directory
is not what generate would produce. With --archive the experiments are
written as one txtar archive instead ("-" for stdout).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runGenerate(cmd.Context(), cmd.OutOrStdout(), check, archive)
		},
	}

	d := config.Defaults()
	addStudyFlag(cmd)
	addTemplateFlags(cmd)
	addNameFormatFlag(cmd)
	cmd.Flags().StringP("output", "o", d.Output, "Output directory")
	cmd.Flags().IntP("workers", "j", d.Workers, "Number of experiments rendered concurrently")
	cmd.Flags().Bool("clean", false, "Remove the output directory before writing")
	cmd.Flags().BoolVar(&check, "check", false, "Compare with the existing output instead of writing")
	cmd.Flags().StringVar(&archive, "archive", "", "Write a txtar archive to this file instead of directories")
	cmd.MarkFlagsMutuallyExclusive("check", "archive")

	return cmd
}

func (a *app) runGenerate(ctx context.Context, out io.Writer, check bool, archive string) (err error) {
	opts := generator.Options{
		Study:      a.cfg.Study,
		Templates:  a.cfg.Templates,
		Output:     a.cfg.Output,
		NameFormat: a.cfg.NameFormat,
		Workers:    a.cfg.Workers,
		LeftDelim:  a.cfg.LeftDelim,
		RightDelim: a.cfg.RightDelim,
		Clean:      a.cfg.Clean,
		Logger:     logger.DefaultLogger,
	}

	switch {
	case check:
		opts.Mode = generator.ModeCheck
		opts.Diff = out

	case archive == "-":
		opts.Mode = generator.ModeArchive
		opts.Archive = out

	case archive != "":
		f, createErr := os.Create(archive)
		if createErr != nil {
			return createErr
		}
		defer func() {
			err = errors.Join(err, f.Close())
			if err != nil {
				_ = os.Remove(archive)
			}
		}()
		opts.Mode = generator.ModeArchive
		opts.Archive = f
	}

	summary, err := generator.New(opts).Run(ctx)
	logger.DefaultLogger.Info("Generation finished",
		"experiments", summary.Experiments,
		"rendered", summary.FilesRendered,
		"copied", summary.FilesCopied,
		"drifted", summary.Drifted,
	)
	if err != nil {
		return err
	}

	switch opts.Mode {
	case generator.ModeWrite:
		fmt.Fprintf(out, "Generated %d experiments in %s (%d files rendered, %d copied)\n",
			summary.Experiments, opts.Output, summary.FilesRendered, summary.FilesCopied)
	case generator.ModeCheck:
		fmt.Fprintf(out, "%s is up to date (%d experiments)\n", opts.Output, summary.Experiments)
	}
	return nil
}
