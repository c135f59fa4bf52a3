// File: cmd/usage.go
package cmd

import (
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/agentforge/api/schemas"
	"github.com/xkilldash9x/agentforge/internal/observability"
	"github.com/xkilldash9x/agentforge/internal/service"
	"github.com/xkilldash9x/agentforge/internal/storage"
)

func newUsageCmd() *cobra.Command {
	var raw bool

	usageCmd := &cobra.Command{
		Use:   "usage",
		Short: "Show the token usage report saved by the last run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			store, err := service.InitializeArtifactStore(ctx, cfg.Storage(), storageRoot, observability.GetLogger())
			if err != nil {
				return err
			}
			path := cfg.Output().UsageReport
			content, err := store.ReadText(ctx, path)
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("no usage report found at %s; run generate first", path)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if raw {
				_, err := fmt.Fprint(out, content)
				return err
			}

			var report schemas.UsageReport
			if err := json.Unmarshal([]byte(content), &report); err != nil {
				return fmt.Errorf("usage report %s is malformed: %w", path, err)
			}
			models := make([]string, 0, len(report.Usage))
			for m := range report.Usage {
				models = append(models, m)
			}
			sort.Strings(models)

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tCALLS\tTOKENS")
			for _, m := range models {
				fmt.Fprintf(w, "%s\t%d\t%d\n", m, report.Usage[m].NumAPICalls, report.Usage[m].TotalTokens)
			}
			fmt.Fprintf(w, "TOTAL\t\t%d\n", report.TotalTokens)
			return w.Flush()
		},
	}
	usageCmd.Flags().BoolVar(&raw, "raw", false, "print the stored JSON document")
	return usageCmd
}
