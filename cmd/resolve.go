package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/agentic-research/subreq/api"
	"github.com/agentic-research/subreq/internal/batchfile"
	"github.com/agentic-research/subreq/internal/config"
	"github.com/agentic-research/subreq/internal/replacer"
	"github.com/agentic-research/subreq/internal/store"
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	batchPath     string
	responsesPath string
	responsesDB   string
	printReport   bool
	metricsFile   string
)

func init() {
	f := resolveCmd.Flags()
	f.StringVarP(&batchPath, "batch", "b", "", "Pending batch file (.json, .yaml); - reads JSON from stdin")
	f.StringVarP(&responsesPath, "responses", "r", "", "Completed responses file (.json, .yaml)")
	f.StringVar(&responsesDB, "responses-db", "", "SQLite response store written by 'subreq store import'")
	f.IntP("workers", "w", 1, "Subrequests expanded concurrently")
	f.StringP("format", "f", "json", "Output format: json or yaml")
	f.Bool("indent", true, "Indent JSON output")
	f.BoolVar(&printReport, "report", false, "Print a per-request summary to stderr")
	f.StringVar(&metricsFile, "metrics-file", "", "Write expansion counters in Prometheus text format to this file")

	_ = resolveCmd.MarkFlagRequired("batch")
	resolveCmd.MarkFlagsMutuallyExclusive("responses", "responses-db")
	resolveCmd.MarkFlagsOneRequired("responses", "responses-db")

	_ = v.BindPFlag(config.KeyWorkers, f.Lookup("workers"))
	_ = v.BindPFlag(config.KeyOutputFormat, f.Lookup("format"))
	_ = v.BindPFlag(config.KeyOutputIndent, f.Lookup("indent"))

	rootCmd.AddCommand(resolveCmd)
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Expand the tokens of a pending batch and print the concrete requests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := batchfile.ParseFormat(cfg.Output.Format)
		if err != nil {
			return err
		}

		batch, err := readBatch(cmd.InOrStdin(), batchPath)
		if err != nil {
			return err
		}
		resps, err := readResponses(cmd, responsesPath, responsesDB)
		if err != nil {
			return err
		}

		opts := []replacer.Option{
			replacer.WithLogger(logger),
			replacer.WithWorkers(cfg.Workers),
		}
		var reg *prometheus.Registry
		if metricsFile != "" {
			reg = prometheus.NewRegistry()
			opts = append(opts, replacer.WithMetrics(replacer.NewMetrics(reg)))
		}

		out, report, err := replacer.New(opts...).ReplaceBatchReport(cmd.Context(), batch, resps)
		if err != nil {
			return err
		}
		logger.Info("resolved batch",
			zap.Int("pending", len(batch)),
			zap.Int("responses", len(resps)),
			zap.Int("emitted", len(out)),
			zap.Int("dropped", len(report.Dropped)),
			zap.Int("skipped_responses", len(report.Skipped)))

		if err := batchfile.WriteBatch(cmd.OutOrStdout(), out, format, cfg.Output.Indent); err != nil {
			return err
		}
		if printReport {
			data, err := json.MarshalIndent(report.Summarize(batch), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), string(data))
		}
		if reg != nil {
			if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
				return fmt.Errorf("write metrics: %w", err)
			}
		}
		return nil
	},
}

func readBatch(stdin io.Reader, path string) ([]api.Subrequest, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read batch from stdin: %w", err)
		}
		return batchfile.DecodeBatch(data, batchfile.FormatJSON)
	}
	fs, name, err := dirFS(path)
	if err != nil {
		return nil, err
	}
	return batchfile.LoadBatch(fs, name)
}

func readResponses(cmd *cobra.Command, path, dbPath string) ([]api.Response, error) {
	if dbPath != "" {
		s, err := store.Open(dbPath)
		if err != nil {
			return nil, err
		}
		defer func() { _ = s.Close() }() // read-only use
		return s.All(cmd.Context())
	}
	fs, name, err := dirFS(path)
	if err != nil {
		return nil, err
	}
	return batchfile.LoadResponses(fs, name)
}

// dirFS roots an OS filesystem at the directory holding path.
func dirFS(path string) (billy.Filesystem, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return osfs.New(filepath.Dir(abs)), filepath.Base(abs), nil
}
