// Package config loads expgen's settings from defaults, an optional config
// file, EXPGEN_* environment variables and command-line flags, in viper's
// order of precedence (flags win).
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Keys under which settings are stored in viper and in expgen.yaml.
const (
	KeyStudy      = "study"
	KeyTemplates  = "templates"
	KeyOutput     = "output"
	KeyNameFormat = "name_format"
	KeyWorkers    = "workers"
	KeyLeftDelim  = "left_delim"
	KeyRightDelim = "right_delim"
	KeyClean      = "clean"
	KeyLogLevel   = "log_level"
	KeyLogFormat  = "log_format"
)

// EnvPrefix prefixes environment overrides, e.g. EXPGEN_OUTPUT.
const EnvPrefix = "EXPGEN"

// DefaultConfigName is the config file searched for in the working
// directory when no file is given explicitly.
const DefaultConfigName = "expgen"

// Config holds the settings of one generation run.
type Config struct {
	// Study is the study-parameters document (.yaml, .yml or .toml).
	Study string
	// Templates is the directory holding *.tpl templates and static files.
	Templates string
	// Output is the directory experiments are written under.
	Output string
	// NameFormat formats an experiment index into a directory name.
	NameFormat string
	// Workers bounds the number of experiments rendered concurrently.
	Workers int
	// LeftDelim and RightDelim are the template action delimiters.
	LeftDelim  string
	RightDelim string
	// Clean removes Output before writing.
	Clean bool
	// LogLevel is debug, info, warn or error.
	LogLevel string
	// LogFormat is text or json.
	LogFormat string
}

// Defaults returns the settings used when nothing overrides them.
func Defaults() Config {
	return Config{
		Study:      "study_parameters.yaml",
		Templates:  "templates",
		Output:     "experiments",
		NameFormat: "experiment-%04d",
		Workers:    runtime.NumCPU(),
		LeftDelim:  "{{",
		RightDelim: "}}",
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

// SetDefaults registers Defaults in v.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault(KeyStudy, d.Study)
	v.SetDefault(KeyTemplates, d.Templates)
	v.SetDefault(KeyOutput, d.Output)
	v.SetDefault(KeyNameFormat, d.NameFormat)
	v.SetDefault(KeyWorkers, d.Workers)
	v.SetDefault(KeyLeftDelim, d.LeftDelim)
	v.SetDefault(KeyRightDelim, d.RightDelim)
	v.SetDefault(KeyClean, d.Clean)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyLogFormat, d.LogFormat)
}

// Load reads the configuration into a Config.
//
// Every key can be overridden by EXPGEN_<KEY>; the log level also by
// LOG_LEVEL. If file is empty, expgen.yaml is looked up in the working directory and is
// optional; an explicitly named file must exist. Flags must already be bound
// to v (viper.BindPFlag) for them to take part.
func Load(v *viper.Viper, file string) (Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	// The logger's own LOG_LEVEL applies when EXPGEN_LOG_LEVEL is unset.
	if err := v.BindEnv(KeyLogLevel, EnvPrefix+"_LOG_LEVEL", "LOG_LEVEL"); err != nil {
		return Config{}, fmt.Errorf("bind env %s: %w", KeyLogLevel, err)
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Study:      v.GetString(KeyStudy),
		Templates:  v.GetString(KeyTemplates),
		Output:     v.GetString(KeyOutput),
		NameFormat: v.GetString(KeyNameFormat),
		Workers:    v.GetInt(KeyWorkers),
		LeftDelim:  v.GetString(KeyLeftDelim),
		RightDelim: v.GetString(KeyRightDelim),
		Clean:      v.GetBool(KeyClean),
		LogLevel:   v.GetString(KeyLogLevel),
		LogFormat:  v.GetString(KeyLogFormat),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Study == "":
		return errors.New("config: study must not be empty")
	case c.Templates == "":
		return errors.New("config: templates must not be empty")
	case c.Output == "":
		return errors.New("config: output must not be empty")
	case c.Workers < 1:
		return fmt.Errorf("config: workers must be at least 1, got %d", c.Workers)
	case c.LeftDelim == "" || c.RightDelim == "":
		return errors.New("config: template delimiters must not be empty")
	}
	return ValidateNameFormat(c.NameFormat)
}

// ValidateNameFormat checks that format turns distinct indexes into distinct
// single-segment directory names.
func ValidateNameFormat(format string) error {
	a, b := fmt.Sprintf(format, 0), fmt.Sprintf(format, 1)
	switch {
	case format == "":
		return errors.New("config: name format must not be empty")
	case strings.Contains(a, "%!"):
		return fmt.Errorf("config: name format %q must hold exactly one integer verb", format)
	case a == b:
		return fmt.Errorf("config: name format %q does not depend on the experiment index", format)
	case strings.ContainsAny(a, `/\`) || a == "." || a == "..":
		return fmt.Errorf("config: name format %q must produce a plain directory name", format)
	}
	return nil
}
