// Command mctl is the debug and maintenance CLI for mentions.
//
// Usage:
//
//	mctl normalize <file>...   Run the engine on export files
//	mctl detect <file>...      Print the detected shape of each file
//	mctl events                JSONL event log viewer
//	mctl stats                 Fetch log: recent loads and per-source health
//	mctl config                Print or initialize the configuration
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/abelbrown/mentions/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error(err)
		stop()
		os.Exit(1)
	}
}

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "mctl",
		Short: "mentions debug & maintenance CLI",
		Long: `mctl inspects scraper exports and the state mentions leaves behind.

Environment:
  MENTIONS_CONFIG     Config file (default: ~/.mentions/config.yaml)
  MENTIONS_DB         Fetch log database
  MENTIONS_LOG_LEVEL  Log level`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default: $MENTIONS_CONFIG or ~/.mentions/config.yaml)")

	cmd.AddCommand(
		newNormalizeCmd(),
		newDetectCmd(),
		newEventsCmd(opts),
		newStatsCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}

// load reads the configuration named by --config, or the default location.
func (o *rootOptions) load() (*config.Config, error) {
	return config.LoadFrom(o.path())
}

func (o *rootOptions) path() string {
	if o.configPath != "" {
		return o.configPath
	}
	return config.Path()
}
