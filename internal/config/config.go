// Package config loads subreq settings from defaults, an optional config
// file, SUBREQ_ environment variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agentic-research/subreq/internal/logging"
	"github.com/spf13/viper"
)

// Keys shared with the CLI flag bindings.
const (
	KeyLogLevel     = "log.level"
	KeyLogFormat    = "log.format"
	KeyLogOutput    = "log.output"
	KeyWorkers      = "workers"
	KeyOutputFormat = "output.format"
	KeyOutputIndent = "output.indent"
)

const EnvPrefix = "SUBREQ"

type Config struct {
	Log     logging.Config
	Workers int
	Output  OutputConfig
}

// OutputConfig controls how expanded batches are written.
type OutputConfig struct {
	Format string // json, yaml
	Indent bool
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func SetDefaults(v *viper.Viper) {
	def := logging.DefaultConfig()
	v.SetDefault(KeyLogLevel, def.Level)
	v.SetDefault(KeyLogFormat, def.Format)
	v.SetDefault(KeyLogOutput, def.Output)
	v.SetDefault(KeyWorkers, 1)
	v.SetDefault(KeyOutputFormat, "json")
	v.SetDefault(KeyOutputIndent, true)
}

// Load reads file (if non-empty) into v and returns the validated config.
// Priority, highest first: flags bound to v, environment, file, defaults.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Log: logging.Config{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
			Output: v.GetString(KeyLogOutput),
		},
		Workers: v.GetInt(KeyWorkers),
		Output: OutputConfig{
			Format: strings.ToLower(v.GetString(KeyOutputFormat)),
			Indent: v.GetBool(KeyOutputIndent),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var errWorkers = errors.New("workers must be at least 1")

func (c *Config) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w, got %d", errWorkers, c.Workers)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	switch c.Output.Format {
	case "json", "yaml":
	default:
		return fmt.Errorf("output.format must be json or yaml, got %q", c.Output.Format)
	}
	return nil
}
