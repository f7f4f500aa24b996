package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/client"
	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6cfg"
)

// runUntilSignal starts the session's client and blocks the calling
// goroutine until SIGINT/SIGTERM, then releases and tears down. Used by
// the renew subcommand, which keeps a lease alive indefinitely.
func runUntilSignal(s *session) error {
	go s.driver.run()
	s.driver.post(s.client.Start)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	return releaseAndClose(s)
}

// runUntilBound starts the session's client, blocks until its
// notification sink reports a Bound (or InformComplete) state, or the
// given timeout elapses, then tears down without releasing. Used by the
// solicit subcommand, which just proves the exchange completes.
func runUntilBound(s *session, snapshots <-chan snapshot, timeout time.Duration) error {
	go s.driver.run()
	s.driver.post(s.client.Start)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	last := client.Inactive
	for {
		select {
		case snap := <-snapshots:
			last = snap.state
			if snap.state == client.Bound || snap.state == client.InformComplete {
				s.close()
				return nil
			}
		case <-ctx.Done():
			s.close()
			return fmt.Errorf("dhcp6c: timed out waiting to reach Bound (state=%s)", last)
		}
	}
}

// runUntilReleased starts the session's client, blocks until its
// notification sink reports Bound, immediately releases, and tears down.
// Used by the release subcommand.
func runUntilReleased(s *session, snapshots <-chan snapshot, timeout time.Duration) error {
	go s.driver.run()
	s.driver.post(s.client.Start)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	last := client.Inactive
	for {
		select {
		case snap := <-snapshots:
			last = snap.state
			if snap.state == client.Bound {
				return releaseAndClose(s)
			}
		case <-ctx.Done():
			s.close()
			return fmt.Errorf("dhcp6c: timed out waiting to reach Bound (state=%s)", last)
		}
	}
}

func releaseAndClose(s *session) error {
	done := make(chan struct{})
	s.driver.post(func() {
		s.client.Release()
		close(done)
	})
	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}
	s.close()
	return nil
}

func loadConfig() (dhcp6cfg.Config, error) {
	return dhcp6cfg.Load(globalOpts.configPath)
}
