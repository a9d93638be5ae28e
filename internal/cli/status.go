package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mandimitra/go-sync-core/internal/domain"
)

// NewStatusCommand creates the status command summarizing the durable store
// and this process's reconciler view.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Summarize queue backlog, cache occupancy, and sync state",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := rootOpts.openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			st, err := eng.Status(cmd.Context())
			if err != nil {
				return err
			}

			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), st)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sync state:    %s\n", st.Sync.State)
			fmt.Fprintf(out, "link:          %s (%s)\n", st.Network.Status, st.Network.Quality)
			fmt.Fprintf(out, "queue:         %d pending, %d in flight, %d failed (%d total)\n",
				st.Queue.PerState[domain.StatePending],
				st.Queue.PerState[domain.StateInFlight],
				st.Queue.PerState[domain.StateFailed],
				st.Queue.Total)
			if st.Queue.OldestPendingAt != nil {
				fmt.Fprintf(out, "oldest pending: %s\n", st.Queue.OldestPendingAt.UTC().Format(time.RFC3339))
			}
			fmt.Fprintf(out, "cache:         %d entries\n", st.Cache.Total)
			for _, cat := range domain.Categories() {
				if n := st.Cache.PerCategory[cat]; n > 0 {
					fmt.Fprintf(out, "  %-22s %d\n", cat, n)
				}
			}
			return nil
		},
	}
}
