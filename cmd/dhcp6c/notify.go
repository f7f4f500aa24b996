package main

import (
	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/client"
	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6log"
)

// consoleNotify implements client.NotificationSink by logging state
// changes and symptom triggers, then passes the client to the extra hook,
// which newSession points at the session's state channel (read by the
// subcommand loops and the watch TUI); the extra and symptom hooks also
// feed pkg/dhcp6stats.
type consoleNotify struct {
	log     dhcp6log.Logger
	extra   func(*client.Client)
	symptom func()
}

func (n consoleNotify) StatusChanged(c *client.Client) {
	if info, ok := c.GetInfo(); ok {
		n.log.Infof("state=%s address=%s", c.State(), info.IAAddr.Address)
	} else {
		n.log.Infof("state=%s", c.State())
	}
	if n.extra != nil {
		n.extra(c)
	}
}

func (n consoleNotify) GenerateSymptom(c *client.Client) {
	n.log.Warnf("state=%s retry threshold reached without a server reply", c.State())
	if n.symptom != nil {
		n.symptom()
	}
	if n.extra != nil {
		n.extra(c)
	}
}
