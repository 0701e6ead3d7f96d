// Package mcpserver exposes batch replacement as an MCP tool so agents can
// expand a batch without shelling out to the CLI.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentic-research/subreq/internal/batchfile"
	"github.com/agentic-research/subreq/internal/replacer"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

const ToolReplaceBatch = "replace_batch"

type tools struct {
	replacer *replacer.Replacer
	logger   *zap.Logger
}

// New builds an MCP server with the replace_batch tool registered.
func New(r *replacer.Replacer, logger *zap.Logger, version string) *server.MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &tools{replacer: r, logger: logger}

	s := server.NewMCPServer("subreq", version,
		server.WithToolCapabilities(false),
	)
	s.AddTool(mcp.NewTool(ToolReplaceBatch,
		mcp.WithDescription("Expand {{requestId.body@$.path}} tokens in pending subrequests using completed responses. "+
			"Each request is emitted once per combination of matched values; requests with an unmatched token are dropped."),
		mcp.WithString("batch",
			mcp.Required(),
			mcp.Description(`JSON array of subrequests: {"uri","action","requestId","headers","body","waitFor"}`),
		),
		mcp.WithString("responses",
			mcp.Required(),
			mcp.Description(`JSON array of completed responses: {"id","headers","body"} or {"id","headers","rawBody"}`),
		),
		mcp.WithString("format",
			mcp.Description("Output format: json (default) or yaml"),
			mcp.Enum("json", "yaml"),
		),
		mcp.WithBoolean("report",
			mcp.Description("Append a per-request summary of variants and drops"),
		),
	), t.replaceBatch)
	return s
}

// ServeStdio serves s on stdin/stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func (t *tools) replaceBatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	batchArg, err := req.RequireString("batch")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	respArg, err := req.RequireString("responses")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format, err := batchfile.ParseFormat(req.GetString("format", string(batchfile.FormatJSON)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	batch, err := batchfile.DecodeBatch([]byte(batchArg), batchfile.FormatJSON)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid batch: %v", err)), nil
	}
	resps, err := batchfile.DecodeResponses([]byte(respArg), batchfile.FormatJSON)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid responses: %v", err)), nil
	}

	out, report, err := t.replacer.ReplaceBatchReport(ctx, batch, resps)
	if err != nil {
		return nil, err
	}
	t.logger.Info("replace_batch",
		zap.Int("pending", len(batch)),
		zap.Int("emitted", len(out)),
		zap.Int("dropped", len(report.Dropped)))

	var buf bytes.Buffer
	if err := batchfile.WriteBatch(&buf, out, format, true); err != nil {
		return nil, err
	}
	if !req.GetBool("report", false) {
		return mcp.NewToolResultText(buf.String()), nil
	}

	summary, err := json.MarshalIndent(report.Summarize(batch), "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(buf.String()),
			mcp.NewTextContent(string(summary)),
		},
	}, nil
}
