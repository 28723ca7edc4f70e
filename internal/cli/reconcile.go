package cli

import (
	"time"

	gocmd "github.com/goliatone/go-command"
	donationscommand "github.com/goliatone/go-donations/command"
	"github.com/goliatone/go-donations/core"
	"github.com/spf13/cobra"
)

type reconcileOptions struct {
	olderThan time.Duration
	limit     int
	dryRun    bool
}

// NewReconcileCommand sweeps stale pending orders.
func NewReconcileCommand(root *RootOptions) *cobra.Command {
	opts := &reconcileOptions{}
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Sweep pending orders that never completed",
		Long: `reconcile deletes approved orders that were never captured and reports
captures whose donor details never arrived. Orphaned captures are kept for an
operator to resolve.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), root, cmd.ErrOrStderr(), runtimeOptions{database: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			collector := gocmd.NewResult[core.ReconcileReport]()
			ctx := gocmd.ContextWithResult(cmd.Context(), collector)
			if err := rt.facade.Commands().ReconcilePending.Execute(ctx, donationscommand.ReconcilePendingMessage{
				Request: core.ReconcileRequest{
					OlderThan: opts.olderThan,
					Limit:     opts.limit,
					DryRun:    opts.dryRun,
				},
			}); err != nil {
				return err
			}
			report, _ := collector.Load()
			return newPrinter(root, cmd.OutOrStdout()).reconcile(reconcileOutput{
				Cutoff:           report.Cutoff.UTC().Format(time.RFC3339),
				Scanned:          report.Scanned,
				Abandoned:        nonNil(report.Abandoned),
				OrphanedCaptures: nonNil(report.OrphanedCaptures),
				Deleted:          report.Deleted,
				DryRun:           report.DryRun,
			})
		},
	}
	cmd.Flags().DurationVar(&opts.olderThan, "older-than", 0, "age threshold (defaults to reconcile.pending_ttl)")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "maximum rows to scan (defaults to reconcile.batch_size)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "report without deleting")
	return cmd
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
