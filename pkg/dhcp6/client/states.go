package client

import (
	"net/netip"
	"time"

	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/lease"
	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/message"
	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/option"
	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/retransmit"
)

// elapsedHundredths computes the ELAPSED_TIME payload: 0 on the first
// transmit of an exchange, otherwise (now - start_time) in hundredths of
// a second capped at 0xFFFF.
func (c *Client) elapsedHundredths(firstTry bool) uint16 {
	if firstTry {
		return 0
	}
	e := c.params.Clock.Now().Sub(c.startTime).Seconds() * 100
	if e > 0xFFFF {
		return 0xFFFF
	}
	if e < 0 {
		return 0
	}
	return uint16(e)
}

// armT1Timer arms the timer that fires Renew. An infinite lease arms no
// timer at all (testable property: infinite-lease stability).
func (c *Client) armT1Timer(now time.Time) {
	if c.lease.ValidLifetime == lease.Infinite {
		return
	}
	wait := time.Duration(c.lease.T1)*time.Second - now.Sub(c.lease.Start)
	if wait < 10*time.Second {
		wait = 10 * time.Second
	}
	c.armTimer(wait, c.HandleTimer)
}

// bindFrom normalizes a newly saved message into a lease and transitions
// to Bound.
func (c *Client) bindFrom(saved lease.Saved) {
	now := c.params.Clock.Now()
	saved.Verified = true
	ssid, _ := c.params.Inventory.CurrentSSID(c.params.Interface)
	c.saved = saved
	c.lease = lease.Normalize(now, saved.IANA, saved.IAAddr, ssid)
	c.chosenServerID = saved.ServerID
	c.enterBound()
}

// --- Solicit ---

func (c *Client) enterSolicit() {
	c.setState(Solicit)
	c.xid = newXID()
	c.startTime = c.params.Clock.Now()
	c.scheduler = retransmit.NewScheduler(retransmit.Solicit)
	c.hasSavedAdvertise = false
	c.advertisePreference = 0
	c.saved = lease.Saved{}
	c.boundAddr = netip.Addr{}
	c.chosenServerID = nil
	delay := retransmit.InitialDelay(retransmit.SolMaxDelay)
	c.armTimer(delay, c.HandleTimer)
}

func (c *Client) onSolicitTimeout() {
	if !c.linkUp() {
		c.enterInactive()
		return
	}
	if c.hasSavedAdvertise {
		c.enterRequest()
		return
	}
	firstTry := c.scheduler.Try() == 0
	rt := c.scheduler.Next()
	c.transmitSolicit(firstTry)
	if c.scheduler.Try() == GenerateSymptomAtTry {
		c.generateSymptom()
	}
	c.armTimer(rt, c.HandleTimer)
}

func (c *Client) transmitSolicit(firstTry bool) {
	packet, err := message.Build(message.BuildParams{
		Type:              message.Solicit,
		TransactionID:     c.xid,
		ClientDUID:        c.duid,
		RequestedOptions:  c.params.RequestedOptions,
		ElapsedHundredths: c.elapsedHundredths(firstTry),
		IncludeIANA:       true,
		IAID:              c.iaid,
	})
	if err != nil {
		c.logf("warn", "client: build SOLICIT: %v", err)
		return
	}
	c.transmit(packet)
}

func (c *Client) onAdvertise(raw []byte, msg message.Message) {
	status, _, err := msg.Options.StatusCodeValue()
	if err != nil || status == option.NoAddrsAvail {
		return
	}
	saved, err := lease.Select(raw, msg.Options)
	if err != nil {
		return
	}

	pref := 0
	if p, ok := msg.Options.Get(option.OptPreference); ok && len(p.Data) >= 1 {
		pref = int(p.Data[0])
	}
	if c.hasSavedAdvertise && pref <= c.advertisePreference {
		return
	}

	c.saved = saved
	c.hasSavedAdvertise = true
	c.advertisePreference = pref
	c.chosenServerID = saved.ServerID

	if c.scheduler.Try() > 1 || pref == 255 {
		c.enterRequest()
	}
}

// --- Request ---

func (c *Client) enterRequest() {
	c.setState(Request)
	c.xid = newXID()
	c.startTime = c.params.Clock.Now()
	c.scheduler = retransmit.NewScheduler(retransmit.Request)
	c.onRequestTimeout()
}

func (c *Client) onRequestTimeout() {
	if c.scheduler.Done() {
		c.enterSolicit()
		return
	}
	firstTry := c.scheduler.Try() == 0
	rt := c.scheduler.Next()
	c.transmitRequest(firstTry)
	c.armTimer(rt, c.HandleTimer)
}

func (c *Client) transmitRequest(firstTry bool) {
	packet, err := message.Build(message.BuildParams{
		Type:              message.Request,
		TransactionID:     c.xid,
		ClientDUID:        c.duid,
		ServerDUID:        c.chosenServerID,
		RequestedOptions:  c.params.RequestedOptions,
		ElapsedHundredths: c.elapsedHundredths(firstTry),
		IncludeIANA:       true,
		IAID:              c.iaid,
		IncludeIAAddr:     true,
		Address:           c.saved.IAAddr.Address,
	})
	if err != nil {
		c.logf("warn", "client: build REQUEST: %v", err)
		return
	}
	c.transmit(packet)
}

func (c *Client) onRequestReply(raw []byte, msg message.Message) {
	status, _, _ := msg.Options.StatusCodeValue()
	if status == option.NoAddrsAvail {
		return
	}
	iaOpt, ok := msg.Options.Get(option.OptIANA)
	if !ok {
		return
	}
	ia, err := option.ParseIANA(iaOpt.Data)
	if err != nil {
		return
	}
	if st, _, _ := ia.Options.StatusCodeValue(); st == option.NotOnLink {
		c.enterSolicit()
		return
	}
	saved, err := lease.Select(raw, msg.Options)
	if err != nil {
		return
	}
	c.bindFrom(saved)
}

// --- Bound ---

func (c *Client) enterBound() {
	c.setState(Bound)
	c.cancelTimer()
	now := c.params.Clock.Now()
	if !c.lease.StillValid(now) {
		c.enterUnbound()
		return
	}

	addr := c.saved.BoundAddress()
	prefixLen := c.params.Inventory.PrefixLen(c.params.Interface, addr)
	if prefixLen == 0 {
		prefixLen = 128
	}
	preferred, valid := c.lease.Remaining(now)

	samePreviouslyBound := c.boundAddr == addr
	if !samePreviouslyBound {
		if err := c.params.AddressPlumb.Add(c.params.Interface, addr, prefixLen, valid, preferred); err != nil {
			c.logf("warn", "client: address plumb add failed: %v", err)
		}
	}
	c.boundAddr = addr
	c.prefixLen = prefixLen

	if samePreviouslyBound {
		c.armT1Timer(now)
	}
	// else: wait for the kernel's DAD event (HandleAddressEvent) before
	// posting a notification or arming the renewal timer.
}

func (c *Client) onBoundTimer() {
	c.enterRenew()
}

// --- Renew / Rebind ---

func (c *Client) enterRenew() {
	c.setState(Renew)
	c.xid = newXID()
	c.startTime = c.params.Clock.Now()
	c.scheduler = retransmit.NewScheduler(retransmit.Renew)
	c.onRenewRebindTimeout()
}

func (c *Client) enterRebind() {
	c.setState(Rebind)
	c.xid = newXID()
	c.startTime = c.params.Clock.Now()
	c.scheduler = retransmit.NewScheduler(retransmit.Rebind)
	c.onRenewRebindTimeout()
}

func (c *Client) onRenewRebindTimeout() {
	now := c.params.Clock.Now()
	if !c.lease.StillValid(now) {
		c.enterUnbound()
		return
	}

	leaseElapsed := now.Sub(c.lease.Start)
	if c.state == Renew && c.lease.T2 > 0 && leaseElapsed >= time.Duration(c.lease.T2)*time.Second {
		c.enterRebind()
		return
	}
	if c.state == Rebind && c.lease.ValidLifetime != lease.Infinite && leaseElapsed >= time.Duration(c.lease.ValidLifetime)*time.Second {
		c.enterUnbound()
		return
	}

	firstTry := c.scheduler.Try() == 0
	rt := c.scheduler.Next()

	var remaining time.Duration
	switch {
	case c.state == Renew:
		remaining = time.Duration(c.lease.T2)*time.Second - leaseElapsed
	case c.lease.ValidLifetime == lease.Infinite:
		remaining = rt
	default:
		remaining = time.Duration(c.lease.ValidLifetime)*time.Second - leaseElapsed
	}
	if remaining > 0 && rt > remaining {
		rt = remaining
	}

	c.transmitRenewOrRebind(firstTry)
	c.armTimer(rt, c.HandleTimer)
}

func (c *Client) transmitRenewOrRebind(firstTry bool) {
	msgType := message.Renew
	serverID := c.chosenServerID
	if c.state == Rebind {
		msgType = message.Rebind
		serverID = nil
	}
	packet, err := message.Build(message.BuildParams{
		Type:              msgType,
		TransactionID:     c.xid,
		ClientDUID:        c.duid,
		ServerDUID:        serverID,
		RequestedOptions:  c.params.RequestedOptions,
		ElapsedHundredths: c.elapsedHundredths(firstTry),
		IncludeIANA:       true,
		IAID:              c.iaid,
		IncludeIAAddr:     true,
		Address:           c.boundAddr,
	})
	if err != nil {
		c.logf("warn", "client: build %s: %v", msgType, err)
		return
	}
	c.transmit(packet)
}

func (c *Client) onRenewRebindReply(raw []byte, msg message.Message) {
	status, _, _ := msg.Options.StatusCodeValue()
	if status != option.Success {
		c.enterUnbound()
		return
	}
	if _, ok := msg.Options.Get(option.OptIANA); !ok {
		c.enterUnbound()
		return
	}
	saved, err := lease.Select(raw, msg.Options)
	if err != nil {
		c.enterUnbound()
		return
	}
	c.bindFrom(saved)
}

// --- Confirm ---

func (c *Client) enterConfirm() {
	c.setState(Confirm)
	c.saved.Verified = false
	c.xid = newXID()
	c.startTime = c.params.Clock.Now()
	c.confirmDeadline = c.startTime.Add(retransmit.Confirm.MRD)
	c.scheduler = retransmit.NewScheduler(retransmit.Confirm)
	delay := retransmit.InitialDelay(retransmit.CnfMaxDelay)
	c.armTimer(delay, c.HandleTimer)
}

func (c *Client) onConfirmTimeout() {
	if !c.linkUp() {
		c.enterInactive()
		return
	}
	now := c.params.Clock.Now()
	if !now.Before(c.confirmDeadline) {
		if c.lease.StillValid(now) {
			c.enterBound()
		} else {
			c.enterSolicit()
		}
		return
	}
	firstTry := c.scheduler.Try() == 0
	rt := c.scheduler.Next()
	c.transmitConfirm(firstTry)
	c.armTimer(rt, c.HandleTimer)
}

func (c *Client) transmitConfirm(firstTry bool) {
	packet, err := message.Build(message.BuildParams{
		Type:              message.Confirm,
		TransactionID:     c.xid,
		ClientDUID:        c.duid,
		RequestedOptions:  c.params.RequestedOptions,
		ElapsedHundredths: c.elapsedHundredths(firstTry),
		IncludeIANA:       true,
		IAID:              c.iaid,
		IncludeIAAddr:     true,
		Address:           c.boundAddr,
	})
	if err != nil {
		c.logf("warn", "client: build CONFIRM: %v", err)
		return
	}
	c.transmit(packet)
}

func (c *Client) onConfirmReply(raw []byte, msg message.Message) {
	status, _, _ := msg.Options.StatusCodeValue()
	if status == option.Success {
		c.enterBound()
		return
	}
	c.enterUnbound()
}

// --- Decline ---

func (c *Client) enterDecline() {
	c.setState(Decline)
	c.declinedAddr = c.boundAddr
	c.boundAddr = netip.Addr{}
	c.saved.Verified = false
	c.xid = newXID()
	c.startTime = c.params.Clock.Now()
	c.scheduler = retransmit.NewScheduler(retransmit.Decline)
	if c.declinedAddr.IsValid() {
		_ = c.params.AddressPlumb.Remove(c.params.Interface, c.declinedAddr)
	}
	c.onDeclineTimeout()
}

func (c *Client) onDeclineTimeout() {
	if c.scheduler.Done() {
		c.enterSolicit()
		return
	}
	firstTry := c.scheduler.Try() == 0
	rt := c.scheduler.Next()
	c.transmitDecline(firstTry)
	c.armTimer(rt, c.HandleTimer)
}

func (c *Client) transmitDecline(firstTry bool) {
	packet, err := message.Build(message.BuildParams{
		Type:              message.Decline,
		TransactionID:     c.xid,
		ClientDUID:        c.duid,
		ServerDUID:        c.chosenServerID,
		RequestedOptions:  c.params.RequestedOptions,
		ElapsedHundredths: c.elapsedHundredths(firstTry),
		IncludeIANA:       true,
		IAID:              c.iaid,
		IncludeIAAddr:     true,
		Address:           c.declinedAddr,
	})
	if err != nil {
		c.logf("warn", "client: build DECLINE: %v", err)
		return
	}
	c.transmit(packet)
}

func (c *Client) onDeclineReply(raw []byte, msg message.Message) {
	c.enterSolicit()
}

// --- Inform / InformComplete ---

func (c *Client) enterInform() {
	c.setState(Inform)
	c.xid = newXID()
	c.startTime = c.params.Clock.Now()
	c.scheduler = retransmit.NewScheduler(retransmit.Inform)
	delay := retransmit.InitialDelay(retransmit.InfMaxDelay)
	c.armTimer(delay, c.HandleTimer)
}

func (c *Client) onInformTimeout() {
	firstTry := c.scheduler.Try() == 0
	rt := c.scheduler.Next()
	c.transmitInform(firstTry)
	c.armTimer(rt, c.HandleTimer)
}

func (c *Client) transmitInform(firstTry bool) {
	packet, err := message.Build(message.BuildParams{
		Type:              message.InformationRequest,
		TransactionID:     c.xid,
		ClientDUID:        c.duid,
		RequestedOptions:  c.params.RequestedOptions,
		ElapsedHundredths: c.elapsedHundredths(firstTry),
		IncludeIANA:       false,
	})
	if err != nil {
		c.logf("warn", "client: build INFORMATION-REQUEST: %v", err)
		return
	}
	c.transmit(packet)
}

func (c *Client) onInformReply(raw []byte, msg message.Message) {
	c.saved = lease.Saved{Raw: raw, Options: msg.Options, Verified: true}
	c.setState(InformComplete)
	c.cancelTimer()
}

// --- Unbound / Inactive ---

func (c *Client) enterUnbound() {
	c.setState(Unbound)
	if c.boundAddr.IsValid() {
		_ = c.params.AddressPlumb.Remove(c.params.Interface, c.boundAddr)
	}
	c.boundAddr = netip.Addr{}
	c.saved = lease.Saved{}
	c.lease = lease.Lease{}
	c.statusChanged()
	c.enterSolicit()
}

func (c *Client) enterInactive() {
	c.setState(Inactive)
	c.cancelTimer()
	c.params.Socket.DisableReceive()
	if c.boundAddr.IsValid() {
		_ = c.params.AddressPlumb.Remove(c.params.Interface, c.boundAddr)
	}
	c.boundAddr = netip.Addr{}
	c.saved = lease.Saved{}
	c.statusChanged()
}
