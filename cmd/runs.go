// File: cmd/runs.go
package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/agentforge/internal/observability"
	"github.com/xkilldash9x/agentforge/internal/service"
)

func newRunsCmd() *cobra.Command {
	var limit int
	var asJSON bool

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent pipeline runs from the run ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			ledger, err := service.InitializeLedger(ctx, cfg.Database(), observability.GetLogger())
			if err != nil {
				return err
			}
			if ledger == nil {
				return fmt.Errorf("run history requires database.url or database.sqlite_path")
			}
			defer ledger.Close()

			runs, err := ledger.ListRuns(ctx, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				data, err := json.MarshalIndent(runs, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to serialize runs: %w", err)
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tSTARTED\tTOKENS\tDEGRADED")
			for _, r := range runs {
				degraded := make([]string, len(r.DegradedStages))
				for i, s := range r.DegradedStages {
					degraded[i] = s.String()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", r.ID, r.Status, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.TotalTokens, strings.Join(degraded, ","))
			}
			return w.Flush()
		},
	}
	runsCmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to list")
	runsCmd.Flags().BoolVar(&asJSON, "json", false, "print runs as JSON")
	return runsCmd
}
