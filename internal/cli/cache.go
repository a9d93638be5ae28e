package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mandimitra/go-sync-core/internal/domain"
)

// NewCacheCommand groups the cache_store diagnostics.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and purge the local cache",
	}
	cmd.AddCommand(newCacheListCommand(rootOpts))
	cmd.AddCommand(newCachePurgeCommand(rootOpts))
	return cmd
}

func newCacheListCommand(rootOpts *RootOptions) *cobra.Command {
	var categoryFlag string

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List cached entries with their age and size",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var categories []domain.Category
			if categoryFlag != "" {
				c, err := domain.ParseCategory(categoryFlag)
				if err != nil {
					return err
				}
				categories = append(categories, c)
			}

			eng, err := rootOpts.openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			entries, err := eng.Cache.List(cmd.Context(), categories...)
			if err != nil {
				return err
			}

			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tKEY\tBYTES\tSTORED\tTTL")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					e.Category, e.Key, len(e.Value),
					e.StoredAt.UTC().Format(time.RFC3339),
					time.Duration(e.MaxAgeSeconds)*time.Second)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&categoryFlag, "category", "", "filter by category (price_data|transaction_history|...)")
	return cmd
}

func newCachePurgeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "purge",
		Short:         "Remove every expired entry now",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := rootOpts.openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			n, err := eng.Cache.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired entries\n", n)
			return nil
		},
	}
}
