// Package mcptool exposes the pipeline as MCP tools over stdio.
//
// Each tool follows the same shape: a struct holding its dependencies,
// Definition() for the schema and Handle() for the call.
package mcptool

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agentforge/internal/orchestrator"
	"github.com/xkilldash9x/agentforge/internal/service"
)

// NewServer registers the pipeline tools on a new MCP server.
func NewServer(components *service.Components, version string, logger *zap.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		"agentforge",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions("Generate a verb conjugator application from plain-language requirements, then inspect token usage and run history."),
	)

	generate := NewGenerateTool(components, logger)
	s.AddTool(generate.Definition(), generate.Handle)

	usage := NewUsageTool(components)
	s.AddTool(usage.Definition(), usage.Handle)

	runs := NewRunsTool(components)
	s.AddTool(runs.Definition(), runs.Handle)

	return s
}

// GenerateTool handles the generate_application MCP tool.
type GenerateTool struct {
	components *service.Components
	logger     *zap.Logger
}

// NewGenerateTool creates a GenerateTool over the given components.
func NewGenerateTool(components *service.Components, logger *zap.Logger) *GenerateTool {
	return &GenerateTool{components: components, logger: logger.Named("mcptool.generate")}
}

// Definition returns the MCP tool definition for generate_application.
func (t *GenerateTool) Definition() mcp.Tool {
	return mcp.NewTool("generate_application",
		mcp.WithDescription("Run the full generation pipeline on a requirements text and return the generated files and run instructions."),
		mcp.WithString("requirements",
			mcp.Required(),
			mcp.Description("Plain-language description of the conjugator to build"),
		),
	)
}

// Handle runs the pipeline to completion and renders the final update.
func (t *GenerateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	requirements := strings.TrimSpace(req.GetString("requirements", ""))
	if requirements == "" {
		return mcp.NewToolResultError("requirements is required"), nil
	}

	var final orchestrator.Update
	for u := range t.components.Controller.GenerateApplication(ctx, requirements) {
		t.logger.Debug("Progress", zap.Int("progress", u.Progress), zap.String("status", u.Status))
		final = u
	}
	if final.Err != nil || !final.Done {
		msg := final.Error
		if msg == "" {
			msg = "run ended without a final update"
		}
		return mcp.NewToolResultError(fmt.Sprintf("generation failed: %s", msg)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n\n", final.Status)
	fmt.Fprintf(&sb, "- **Run**: %s\n", final.RunID)
	for _, f := range final.Files {
		fmt.Fprintf(&sb, "- **%s**: %s\n", t.components.Layout.CodePath(f.Filename), f.Description)
	}
	fmt.Fprintf(&sb, "- **Tests**: %s\n", final.TestPath)
	if final.Usage != nil {
		fmt.Fprintf(&sb, "- **Tokens (cumulative)**: %d\n", final.Usage.TotalTokens)
	}
	sb.WriteString("\n")
	sb.WriteString(final.Instructions)
	return mcp.NewToolResultText(sb.String()), nil
}

// UsageTool handles the usage_report MCP tool.
type UsageTool struct {
	components *service.Components
}

// NewUsageTool creates a UsageTool.
func NewUsageTool(components *service.Components) *UsageTool {
	return &UsageTool{components: components}
}

// Definition returns the MCP tool definition for usage_report.
func (t *UsageTool) Definition() mcp.Tool {
	return mcp.NewTool("usage_report",
		mcp.WithDescription("Show accumulated API calls and tokens per model for this process."),
	)
}

// Handle renders the tracker's current usage.
func (t *UsageTool) Handle(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report := t.components.Tracker.UsageReport()
	if len(report.Usage) == 0 {
		return mcp.NewToolResultText("No API calls recorded yet."), nil
	}

	var sb strings.Builder
	sb.WriteString("## Token Usage\n\n")
	for _, model := range sortedKeys(report.Usage) {
		stats := report.Usage[model]
		fmt.Fprintf(&sb, "- **%s**: %d calls, %d tokens\n", model, stats.NumAPICalls, stats.TotalTokens)
	}
	fmt.Fprintf(&sb, "\nTotal tokens: %d\n", report.TotalTokens)
	return mcp.NewToolResultText(sb.String()), nil
}

// RunsTool handles the list_runs MCP tool.
type RunsTool struct {
	components *service.Components
}

// NewRunsTool creates a RunsTool.
func NewRunsTool(components *service.Components) *RunsTool {
	return &RunsTool{components: components}
}

// Definition returns the MCP tool definition for list_runs.
func (t *RunsTool) Definition() mcp.Tool {
	return mcp.NewTool("list_runs",
		mcp.WithDescription("List recent pipeline runs from the run ledger."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default 20)")),
	)
}

// Handle lists recent runs, newest first.
func (t *RunsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.components.Ledger == nil {
		return mcp.NewToolResultError("run history is unavailable: no database configured"), nil
	}
	runs, err := t.components.Ledger.ListRuns(ctx, intArg(req, "limit", 0))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list runs: %v", err)), nil
	}
	if len(runs) == 0 {
		return mcp.NewToolResultText("No runs recorded yet."), nil
	}

	var sb strings.Builder
	sb.WriteString("## Recent Runs\n\n")
	for _, r := range runs {
		fmt.Fprintf(&sb, "- `%s` %s %s, %d tokens", r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Status, r.TotalTokens)
		if len(r.DegradedStages) > 0 {
			names := make([]string, len(r.DegradedStages))
			for i, s := range r.DegradedStages {
				names[i] = s.String()
			}
			fmt.Fprintf(&sb, ", defaults for %s", strings.Join(names, ", "))
		}
		if r.Error != "" {
			fmt.Fprintf(&sb, ", error: %s", r.Error)
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}
