package main

import (
	"time"

	"github.com/spf13/cobra"
)

var solicitOpts struct {
	timeout time.Duration
}

var solicitCmd = &cobra.Command{
	Use:   "solicit",
	Short: "Run one DHCPv6 exchange and report the result",
	Long: `solicit starts the client against the configured interface and waits
for it to reach Bound (stateful) or InformComplete (stateless), then
exits without releasing the lease. Useful for verifying a DHCPv6 server
is reachable and responds correctly.`,
	RunE: runSolicit,
}

func init() {
	rootCmd.AddCommand(solicitCmd)
	solicitCmd.Flags().DurationVar(&solicitOpts.timeout, "timeout", 30*time.Second, "how long to wait for Bound/InformComplete")
}

func runSolicit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := newSession(cfg)
	if err != nil {
		return err
	}
	return runUntilBound(s, s.states, solicitOpts.timeout)
}
