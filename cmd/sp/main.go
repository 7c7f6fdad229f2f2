// Command sp is the StaffProof command-line client.
//
// Usage:
//
//	sp list <resource> [--page N] [--limit N] [--search S] [--filter k=v ...]
//	sp mutate <resource> <id> <action|delete>
//	sp mutate <resource> --bulk <action>
//	sp summary
//	sp events [--kind list.] [--resource cases] [--tail 50]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/abelbrown/staffproof/internal/config"
	"github.com/abelbrown/staffproof/internal/fetch"
	"github.com/abelbrown/staffproof/internal/logging"
)

const version = "0.3.0"

var (
	flagConfig  string
	flagAPIURL  string
	flagJSON    bool
	flagVerbose bool

	// cfg and client are set by PersistentPreRunE.
	cfg    *config.Config
	client *fetch.Client
)

var rootCmd = &cobra.Command{
	Use:           "sp",
	Short:         "StaffProof command-line client",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := log.WarnLevel
		if flagVerbose {
			level = log.DebugLevel
		}
		logging.InitWriter(os.Stderr, level)

		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if flagAPIURL != "" {
			cfg.API.URL = flagAPIURL
		}
		client = fetch.NewClient(fetch.Options{
			BaseURL:       cfg.API.URL,
			Token:         cfg.API.Token,
			Timeout:       cfg.API.Timeout,
			RatePerSecond: cfg.API.RatePerSecond,
			UserAgent:     "sp/" + version,
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ~/.staffproof/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api", "", "API base URL, overrides config")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log requests to stderr")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(mutateCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(eventsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "sp:", err)
		stop()
		os.Exit(1)
	}
}
