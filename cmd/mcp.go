package cmd

import (
	"github.com/agentic-research/subreq/internal/mcpserver"
	"github.com/agentic-research/subreq/internal/replacer"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:         "mcp",
	Short:       "Serve the replace_batch tool over MCP on stdio",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationStdio: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		r := replacer.New(
			replacer.WithLogger(logger.Named("replacer")),
			replacer.WithWorkers(cfg.Workers),
		)
		logger.Info("serving mcp on stdio")
		return mcpserver.ServeStdio(mcpserver.New(r, logger.Named("mcp"), version))
	},
}
