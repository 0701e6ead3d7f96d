package cmd

import (
	"fmt"

	"github.com/agentic-research/subreq/api"
	"github.com/agentic-research/subreq/internal/batchfile"
	"github.com/agentic-research/subreq/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var storeDB string

func init() {
	storeCmd.PersistentFlags().StringVar(&storeDB, "db", "", "Path to the SQLite response store")
	_ = storeCmd.MarkPersistentFlagRequired("db")

	storeCmd.AddCommand(storeImportCmd, storeListCmd)
	rootCmd.AddCommand(storeCmd)
}

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage a SQLite store of completed responses",
}

var storeImportCmd = &cobra.Command{
	Use:   "import FILE...",
	Short: "Append the responses in FILE (.json, .yaml) to the store",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.Open(storeDB)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }() // Put commits before returning

		for _, path := range args {
			fs, name, err := dirFS(path)
			if err != nil {
				return err
			}
			resps, err := batchfile.LoadResponses(fs, name)
			if err != nil {
				return err
			}
			if err := s.Put(cmd.Context(), resps...); err != nil {
				return fmt.Errorf("import %s: %w", path, err)
			}
			logger.Info("imported responses", zap.String("file", path), zap.Int("count", len(resps)))
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d responses\n", path, len(resps))
		}
		return nil
	},
}

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the id and body size of every stored response",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.Open(storeDB)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }() // read-only use

		return s.Stream(cmd.Context(), func(r api.Response) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", r.ID, len(r.Body))
			return err
		})
	},
}
