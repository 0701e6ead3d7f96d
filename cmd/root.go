package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/agentic-research/subreq/internal/config"
	"github.com/agentic-research/subreq/internal/logging"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// version is overridden at build time with -ldflags "-X".
var version = "dev"

var (
	cfgFile string

	v      = config.New()
	cfg         *config.Config
	logger      = zap.NewNop()
	closeLogger = func() {}
)

// annotationStdio marks commands that own stdin/stdout as a protocol stream.
const annotationStdio = "subreq/stdio"

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (yaml, json or toml)")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("log-format", "console", "Log format: console or json")
	pf.String("log-output", "stderr", "Log destination: stderr, stdout or a file path")

	_ = v.BindPFlag(config.KeyLogLevel, pf.Lookup("log-level"))
	_ = v.BindPFlag(config.KeyLogFormat, pf.Lookup("log-format"))
	_ = v.BindPFlag(config.KeyLogOutput, pf.Lookup("log-output"))
}

var rootCmd = &cobra.Command{
	Use:           "subreq",
	Short:         "Expand subrequest batches against the responses of earlier requests",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		if cmd.Annotations[annotationStdio] != "" && logging.IsStdout(cfg.Log.Output) {
			return fmt.Errorf("%s serves on stdout; choose another log output", cmd.CommandPath())
		}
		l, closeOutput, err := logging.New(cfg.Log)
		if err != nil {
			return err
		}
		closeLogger = closeOutput
		logger = l.With(zap.String("run_id", uuid.NewString()))
		logger.Debug("starting", zap.String("command", cmd.CommandPath()), zap.String("version", version))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync() // stderr sync fails on some platforms
		closeLogger()
		closeLogger = func() {}
	},
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
