// File: cmd/mcp.go
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/agentforge/internal/mcptool"
	"github.com/xkilldash9x/agentforge/internal/observability"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Expose the pipeline as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			components, err := buildComponents(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize pipeline: %w", err)
			}
			defer components.Shutdown()

			s := mcptool.NewServer(components, Version, observability.GetLogger())
			err = server.NewStdioServer(s).Listen(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
