package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "v0.1.0"
	commit  = "dev"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "dhcp6c",
	Short:   "DHCPv6 client core",
	Version: version,
	Long: `dhcp6c drives the RFC 8415 client state machine against one network
interface: stateful address acquisition, stateless information-only
queries, renewal, rebinding, and confirmation after sleep or roaming.`,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("dhcp6c %s (commit: %s, built: %s)\n", version, commit, date))
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "", "path to a dhcp6c YAML config file (required)")
	rootCmd.MarkPersistentFlagRequired("config")
	rootCmd.PersistentFlags().StringVar(&globalOpts.statsFile, "stats-file", "", "write run counters as JSON to this path on exit (.csv extension writes CSV instead)")
}

var globalOpts struct {
	configPath string
	statsFile  string
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
