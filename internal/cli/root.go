// Package cli implements the mandisync command tree: a long-running run mode
// that hosts the sync core, and one-shot diagnostics commands that operate on
// the same durable store (queue list/retry/discard, cache list/purge, status,
// export).
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mandimitra/go-sync-core/internal/config"
	"github.com/mandimitra/go-sync-core/internal/engine"
	"github.com/mandimitra/go-sync-core/internal/sysutil"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// RootOptions holds the global flags shared by every subcommand.
type RootOptions struct {
	DB     string // overrides DB_PATH
	Locale string // overrides NOTIFY_LOCALE
	Format string // "text" | "json"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the mandisync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "mandisync",
		Short: "Offline-first sync core for the mandi trading app",
		Long: `mandisync hosts the durable action queue, the TTL cache, and the
connectivity-aware reconciler, and ships diagnostics commands that inspect
or repair the store they share.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "path to the SQLite store (default $DB_PATH)")
	cmd.PersistentFlags().StringVar(&opts.Locale, "locale", "", "notification language, BCP-47 (default $NOTIFY_LOCALE)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewQueueCommand(opts))
	cmd.AddCommand(NewCacheCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig resolves the environment configuration and applies flag overrides.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if o.DB != "" {
		cfg.DBPath = o.DB
	}
	cfg.NotifyLocale = sysutil.FirstNonEmpty(o.Locale, cfg.NotifyLocale)
	return cfg, nil
}

// openEngine assembles the sync core for a one-shot command. The caller must
// close it; background loops are only started by run.
func (o *RootOptions) openEngine() (*engine.Engine, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return engine.New(cfg, newLogger(cfg))
}

// newLogger applies the configured level globally and returns the root logger.
// Components derive their own scoped children from it.
func newLogger(cfg config.Config) zerolog.Logger {
	sysutil.SetLogLevel(cfg.LogLevel)
	var out io.Writer = os.Stderr
	if cfg.LogPretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}
