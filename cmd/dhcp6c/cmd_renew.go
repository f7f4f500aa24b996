package main

import "github.com/spf13/cobra"

var renewCmd = &cobra.Command{
	Use:   "renew",
	Short: "Keep a DHCPv6 lease current until interrupted",
	Long: `renew starts the client and keeps it running indefinitely: the state
machine renews at T1, rebinds at T2, and confirms after wake/roam
notifications on its own. Press Ctrl+C to release the lease and exit.`,
	RunE: runRenew,
}

func init() {
	rootCmd.AddCommand(renewCmd)
}

func runRenew(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := newSession(cfg)
	if err != nil {
		return err
	}
	return runUntilSignal(s)
}
