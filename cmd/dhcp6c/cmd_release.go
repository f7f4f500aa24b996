package main

import (
	"time"

	"github.com/spf13/cobra"
)

var releaseOpts struct {
	timeout time.Duration
}

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Obtain and immediately release a DHCPv6 lease",
	Long: `release starts the client, waits for it to reach Bound, sends one
RELEASE, removes the address from the interface, and exits. Useful for
cleanly giving back a lease before a planned interface teardown.`,
	RunE: runRelease,
}

func init() {
	rootCmd.AddCommand(releaseCmd)
	releaseCmd.Flags().DurationVar(&releaseOpts.timeout, "timeout", 30*time.Second, "how long to wait for Bound before giving up")
}

func runRelease(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.AllocateAddress = true // release only makes sense for a stateful lease
	s, err := newSession(cfg)
	if err != nil {
		return err
	}
	return runUntilReleased(s, s.states, releaseOpts.timeout)
}
