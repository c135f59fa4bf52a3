// File: cmd/serve.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/agentforge/internal/observability"
	"github.com/xkilldash9x/agentforge/internal/server"
)

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline over HTTP with WebSocket progress streams",
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

			s, err := server.New(cfg.Server(), components, observability.GetLogger())
			if err != nil {
				return err
			}
			// Start returns once ctx is cancelled and the server has drained.
			return s.Start(ctx)
		},
	}
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().String("storage", "", "artifact storage backend: fs, s3 or memory")
	return serveCmd
}
