// Command expgen expands a study-parameters document into experiment
// directories rendered from a template directory.
//
// Usage:
//
//	expgen generate [--study FILE] [--templates DIR] [--output DIR] [--check | --archive FILE]
//	expgen list [--json]
//	expgen vars [--compress]
//	expgen count
//
// Settings come from flags, EXPGEN_* environment variables and an optional
// expgen.yaml in the working directory, in that order of precedence. The
// log level also falls back to LOG_LEVEL.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/abiiranathan/expgen/ast"
	"github.com/abiiranathan/expgen/config"
	"github.com/abiiranathan/expgen/logger"
)

// flagKeys maps command-line flags to the config keys they override.
var flagKeys = map[string]string{
	"study":       config.KeyStudy,
	"templates":   config.KeyTemplates,
	"output":      config.KeyOutput,
	"name-format": config.KeyNameFormat,
	"workers":     config.KeyWorkers,
	"left-delim":  config.KeyLeftDelim,
	"right-delim": config.KeyRightDelim,
	"clean":       config.KeyClean,
	"log-format":  config.KeyLogFormat,
}

// app carries the state shared by the commands of one invocation.
type app struct {
	v          *viper.Viper
	configFile string
	verbose    bool
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "expgen",
		Short: "Generate experiment directories from a parameter study",
		Long: `expgen expands a study-parameters document (YAML or TOML) into the cross
product of its parameter values and renders every template of a template
directory once per combination, one directory per experiment.

Template parameters are checked against the variables each template uses
before anything is written.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	d := config.Defaults()
	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "Config file (default ./expgen.yaml when present)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	flags.String("log-format", d.LogFormat, "Log format: text or json")

	root.AddCommand(
		newGenerateCmd(a),
		newListCmd(a),
		newVarsCmd(a),
		newCountCmd(a),
	)
	return root
}

// setup binds the flags of the command being run, loads the configuration
// and configures logging. It runs before every sub-command.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := bindFlags(a.v, cmd.Flags()); err != nil {
		return err
	}

	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := logger.Configure(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr()); err != nil {
		return err
	}
	if a.verbose {
		logger.SetVerbose(true)
	}
	return nil
}

// bindFlags binds every flag of flags that has a config key to v.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			if err := v.BindPFlag(key, f); err != nil {
				errs = append(errs, fmt.Errorf("bind flag --%s: %w", f.Name, err))
			}
		}
	})
	return errors.Join(errs...)
}

func (a *app) loadStudy() (ast.Node, error) {
	logger.DefaultLogger.Debug("Loading study parameters", "path", a.cfg.Study)
	return ast.LoadFile(a.cfg.Study)
}

func addStudyFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("study", "s", config.Defaults().Study, "Study parameters file (.yaml, .yml or .toml)")
}

func addTemplateFlags(cmd *cobra.Command) {
	d := config.Defaults()
	cmd.Flags().StringP("templates", "t", d.Templates, "Template directory")
	cmd.Flags().String("left-delim", d.LeftDelim, "Left template action delimiter")
	cmd.Flags().String("right-delim", d.RightDelim, "Right template action delimiter")
}

func addNameFormatFlag(cmd *cobra.Command) {
	cmd.Flags().String("name-format", config.Defaults().NameFormat, "Experiment directory name, formatted with the experiment index")
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		// cobra has printed the error
		return 1
	}
	return 0
}

func main() {
	os.Exit(run())
}
