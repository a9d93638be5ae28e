package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mandimitra/go-sync-core/internal/domain"
)

// NewQueueCommand groups the sync_queue diagnostics.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and repair the durable action queue",
	}
	cmd.AddCommand(newQueueListCommand(rootOpts))
	cmd.AddCommand(newQueueRetryCommand(rootOpts))
	cmd.AddCommand(newQueueDiscardCommand(rootOpts))
	return cmd
}

func newQueueListCommand(rootOpts *RootOptions) *cobra.Command {
	var stateFlag string

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List queue entries in delivery order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var states []domain.QueueState
			if stateFlag != "" {
				st, err := domain.ParseQueueState(stateFlag)
				if err != nil {
					return err
				}
				states = append(states, st)
			}

			eng, err := rootOpts.openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			entries, err := eng.Queue.List(cmd.Context(), states...)
			if err != nil {
				return err
			}

			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tOPERATION\tSTATE\tATTEMPTS\tCREATED\tLAST ERROR")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					e.ID, e.OperationType, e.State, e.Attempts,
					e.CreatedAt.UTC().Format(time.RFC3339), oneLine(e.LastError))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&stateFlag, "state", "", "filter by state (pending|in_flight|failed|synced)")
	return cmd
}

func newQueueRetryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "retry <entry-id>",
		Short:         "Reset a failed entry to pending for another delivery cycle",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := rootOpts.openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			if err := eng.Queue.Retry(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "entry %s requeued\n", args[0])
			return nil
		},
	}
}

func newQueueDiscardCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "discard <entry-id>",
		Short:         "Permanently drop a failed entry",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := rootOpts.openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			if err := eng.Queue.Discard(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "entry %s discarded\n", args[0])
			return nil
		},
	}
}
