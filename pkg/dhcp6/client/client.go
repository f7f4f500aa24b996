// Package client implements the twelve-state DHCPv6 client state machine
// (RFC 8415 section 18): Solicit/Request/Bound/Renew/Rebind plus
// Confirm/Decline/Release/Inform/InformComplete/Unbound/Inactive. It
// drives the option codec, packet builder, identity, lease store, and
// retransmission scheduler in pkg/dhcp6/{option,message,duid,lease,retransmit}
// against a small set of collaborator interfaces it declares itself; it
// never imports a concrete socket, address plumb, DUID store, or logger.
package client

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/duid"
	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/lease"
	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/message"
	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/option"
	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/retransmit"
)

// State is one of the twelve states the client cycles through.
type State int

const (
	Inactive State = iota
	Solicit
	Request
	Bound
	Renew
	Rebind
	Confirm
	Release
	Unbound
	Decline
	Inform
	InformComplete
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "Inactive"
	case Solicit:
		return "Solicit"
	case Request:
		return "Request"
	case Bound:
		return "Bound"
	case Renew:
		return "Renew"
	case Rebind:
		return "Rebind"
	case Confirm:
		return "Confirm"
	case Release:
		return "Release"
	case Unbound:
		return "Unbound"
	case Decline:
		return "Decline"
	case Inform:
		return "Inform"
	case InformComplete:
		return "InformComplete"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Mode selects stateful (address allocation) or stateless (information
// only) operation. ModeIdle is the client's mode before Start is first
// called.
type Mode int

const (
	ModeIdle Mode = iota
	ModeStateless
	ModeStateful
)

// GenerateSymptomAtTry is the Solicit retry count at which a
// GenerateSymptom observability notification fires.
const GenerateSymptomAtTry = 6

// AddressFlags reports the duplicate-address-detection state of an
// address the kernel is tracking, as delivered by the AddressPlumb
// collaborator's event stream.
type AddressFlags uint8

const (
	FlagTentative AddressFlags = 1 << iota
	FlagDuplicated
)

// AddressEvent is one (address, flags) tuple from the kernel-facing
// address plumb's DAD event stream.
type AddressEvent struct {
	Addr  netip.Addr
	Flags AddressFlags
}

// WakeInfo classifies why a Confirm cycle is being started.
type WakeInfo int

const (
	WakeSleepResume WakeInfo = iota
	WakeLinkUp
	WakeBSSIDChanged
)

// Socket is the UDP/multicast transport collaborator. Transmit reports
// transient transport errors (ErrNetDown, ErrNoDevice) distinctly so the
// caller can swallow them and let retransmission retry.
type Socket interface {
	Transmit(packet []byte) error
	EnableReceive(handler func(packet []byte, opts option.Options))
	DisableReceive()
}

var (
	// ErrNetDown and ErrNoDevice are the transport-transient errors a
	// Socket implementation should return for ENETDOWN/ENXIO respectively;
	// anything else is treated as "transport other" (logged, not retried
	// specially).
	ErrNetDown  = errors.New("client: network is down")
	ErrNoDevice = errors.New("client: no such device")
)

// Timer is a cancelable one-shot timer handle returned by Clock.AfterFunc.
type Timer interface {
	Stop() bool
}

// Clock is the wall-clock and timer collaborator.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// AddressPlumb is the kernel-facing address management collaborator.
type AddressPlumb interface {
	Add(ifname string, addr netip.Addr, prefixLen int, validLifetime, preferredLifetime uint32) error
	Remove(ifname string, addr netip.Addr) error
}

// DUIDStore is the process-wide DUID persistence collaborator; it
// establishes a DUID of the configured type on first use.
type DUIDStore interface {
	DUID(t duid.Type) ([]byte, error)
}

// InterfaceInventory answers link-status and wireless-identity questions
// the state machine needs but does not itself track.
type InterfaceInventory interface {
	LinkUp(ifname string) bool
	CurrentSSID(ifname string) (ssid string, ok bool)
	PrefixLen(ifname string, addr netip.Addr) int
}

// NotificationSink receives the client's two outbound notifications. The
// client never calls StatusChanged directly from inside a receive or
// timer handler; it defers through a mailbox. GenerateSymptom is safe to
// call synchronously because it only reads supervisor state.
type NotificationSink interface {
	StatusChanged(c *Client)
	GenerateSymptom(c *Client)
}

// Logger is the injectable logging collaborator (see pkg/dhcp6log for the
// reference implementation).
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Params configures a Client for one managed interface.
type Params struct {
	Interface  string
	HWType     uint16
	LinkLayer  []byte // interface hardware address, used by non-privacy DUID types
	Mode       Mode
	Privacy    bool
	DUIDType   duid.Type
	RequestedOptions []option.Code
	WakeSkewSecs     uint32

	Socket       Socket
	Clock        Clock
	AddressPlumb AddressPlumb
	DUIDStore    DUIDStore
	Inventory    InterfaceInventory
	Notify       NotificationSink
	Log          Logger
}

// DefaultRequestedOptions is the default ORO contents: DNS servers,
// domain search list, captive portal URL.
var DefaultRequestedOptions = []option.Code{
	option.OptDNSServers,
	option.OptDomainList,
	option.OptCaptivePortalURL,
}

// Client is the per-interface DHCPv6 protocol engine. All of its public
// methods are entry points meant to be invoked serially by one event
// loop (socket receive, timer fire, or supervisor call); none of them
// take a lock.
type Client struct {
	params Params

	state State
	mode  Mode

	duid []byte
	iaid uint32

	xid       uint32
	scheduler *retransmit.Scheduler
	timer     Timer
	startTime time.Time

	saved         lease.Saved
	lease         lease.Lease
	hasSavedAdvertise bool
	advertisePreference int

	chosenServerID []byte
	boundAddr      netip.Addr
	prefixLen      int

	confirmDeadline time.Time
	declinedAddr    netip.Addr

	mailbox []func()
}

// New constructs a Client in state Inactive. Call Start to begin
// operating.
func New(p Params) *Client {
	if p.RequestedOptions == nil {
		p.RequestedOptions = DefaultRequestedOptions
	}
	return &Client{
		params: p,
		state:  Inactive,
		mode:   ModeIdle,
	}
}

// State returns the client's current state.
func (c *Client) State() State { return c.state }

// GetInfo returns the saved message and true only when it corresponds to
// the client's current verified configuration.
func (c *Client) GetInfo() (lease.Saved, bool) {
	if !c.saved.Verified {
		return lease.Saved{}, false
	}
	return c.saved, true
}

func (c *Client) logf(level string, format string, args ...any) {
	if c.params.Log == nil {
		return
	}
	switch level {
	case "debug":
		c.params.Log.Debugf(format, args...)
	case "info":
		c.params.Log.Infof(format, args...)
	case "warn":
		c.params.Log.Warnf(format, args...)
	default:
		c.params.Log.Errorf(format, args...)
	}
}

// newXID draws a fresh 24-bit transaction id.
func newXID() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint32(b[:]) & 0x00FFFFFF
}

// identity lazily resolves the client's DUID and IAID: privacy mode
// gets a fresh per-client DUID and IAID 0; otherwise the process-wide
// store and the interface-name-derived IAID are used.
func (c *Client) identity() error {
	if c.duid != nil {
		return nil
	}
	if c.params.Privacy {
		d, err := duid.Generate(c.params.DUIDType, c.params.HWType, c.params.LinkLayer, 0, nil)
		if err != nil {
			return fmt.Errorf("client: privacy DUID: %w", err)
		}
		c.duid = d
		c.iaid = 0
		return nil
	}
	d, err := c.params.DUIDStore.DUID(c.params.DUIDType)
	if err != nil {
		return fmt.Errorf("client: DUID store: %w", err)
	}
	c.duid = d
	c.iaid = duid.IAID(c.params.Interface)
	return nil
}

func (c *Client) armTimer(d time.Duration, f func()) {
	c.cancelTimer()
	c.timer = c.params.Clock.AfterFunc(d, f)
}

func (c *Client) cancelTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// post defers a notification through the mailbox: the client never
// invokes the supervisor callback directly from a receive or timer
// handler. flush is called once the current entry point returns.
func (c *Client) post(f func()) {
	c.mailbox = append(c.mailbox, f)
}

func (c *Client) flushMailbox() {
	pending := c.mailbox
	c.mailbox = nil
	for _, f := range pending {
		f()
	}
}

func (c *Client) statusChanged() {
	if c.params.Notify != nil {
		c.post(func() { c.params.Notify.StatusChanged(c) })
	}
}

func (c *Client) generateSymptom() {
	if c.params.Notify != nil {
		c.params.Notify.GenerateSymptom(c)
	}
}

func (c *Client) transmit(packet []byte) {
	err := c.params.Socket.Transmit(packet)
	if err == nil {
		return
	}
	if errors.Is(err, ErrNetDown) || errors.Is(err, ErrNoDevice) {
		c.logf("debug", "client: transient transmit error, retransmission will retry: %v", err)
		return
	}
	c.logf("warn", "client: transmit error: %v", err)
}

func (c *Client) setState(s State) {
	c.logf("debug", "client: %s -> %s", c.state, s)
	c.state = s
}

// --- public entry points ---

// Start begins (or resumes) operation. If a still-valid lease matches the
// interface's current SSID, it enters Confirm to try to keep the address
// instead of starting from scratch.
func (c *Client) Start() {
	if err := c.identity(); err != nil {
		c.logf("error", "client: cannot start: %v", err)
		return
	}
	c.mode = c.params.Mode
	c.params.Socket.EnableReceive(c.receiveHandler)

	if c.mode == ModeStateful && c.lease.StillValid(c.params.Clock.Now()) && c.sameNetwork() {
		c.enterConfirm()
	} else if c.mode == ModeStateless {
		c.enterInform()
	} else {
		c.enterSolicit()
	}
	c.flushMailbox()
}

// Stop cancels the timer and disables socket receive. It does not remove
// any bound address or transmit a RELEASE; call Release first if that is
// desired. The held configuration is marked unverified, matching the
// stop-without-discard rule: a subsequent Start must re-confirm it before
// treating it as authoritative again.
func (c *Client) Stop() {
	c.cancelTimer()
	c.params.Socket.DisableReceive()
	c.saved.Verified = false
	c.flushMailbox()
}

// Release transmits one RELEASE (without waiting for an acknowledgment)
// and tears down. May be called while still running.
func (c *Client) Release() {
	if c.boundAddr.IsValid() && c.chosenServerID != nil {
		c.xid = newXID()
		packet, err := message.Build(message.BuildParams{
			Type:              message.Release,
			TransactionID:     c.xid,
			ClientDUID:        c.duid,
			ServerDUID:        c.chosenServerID,
			RequestedOptions:  c.params.RequestedOptions,
			IncludeIANA:       true,
			IAID:              c.iaid,
			IncludeIAAddr:     true,
			Address:           c.boundAddr,
			PreferredLifetime: 0,
			ValidLifetime:     0,
		})
		if err == nil {
			c.transmit(packet)
		}
	}
	if c.boundAddr.IsValid() {
		_ = c.params.AddressPlumb.Remove(c.params.Interface, c.boundAddr)
	}
	c.setState(Release)
	c.cancelTimer()
	c.params.Socket.DisableReceive()
	c.flushMailbox()
}

// HandleTimer is the entry point for the client's own armed timer firing.
func (c *Client) HandleTimer() {
	switch c.state {
	case Solicit:
		c.onSolicitTimeout()
	case Request:
		c.onRequestTimeout()
	case Bound:
		c.onBoundTimer()
	case Renew, Rebind:
		c.onRenewRebindTimeout()
	case Confirm:
		c.onConfirmTimeout()
	case Decline:
		c.onDeclineTimeout()
	case Inform:
		c.onInformTimeout()
	}
	c.flushMailbox()
}

// HandleReceive is the entry point for a received, already-decoded
// datagram. It applies the acceptance filter before any state logic.
func (c *Client) HandleReceive(raw []byte, opts option.Options) {
	msg, err := message.Parse(raw)
	if err != nil {
		c.logf("debug", "client: drop unparsable datagram: %v", err)
		return
	}
	if !c.accept(msg) {
		return
	}
	switch c.state {
	case Solicit:
		c.onAdvertise(raw, msg)
	case Request:
		c.onRequestReply(raw, msg)
	case Renew, Rebind:
		c.onRenewRebindReply(raw, msg)
	case Confirm:
		c.onConfirmReply(raw, msg)
	case Decline:
		c.onDeclineReply(raw, msg)
	case Inform:
		c.onInformReply(raw, msg)
	}
	c.flushMailbox()
}

// accept applies the message acceptance filter uniformly: message type,
// xid, CLIENTID, and SERVERID validity.
func (c *Client) accept(msg message.Message) bool {
	wantType := message.Reply
	if c.state == Solicit {
		wantType = message.Advertise
	}
	if msg.Type != wantType {
		return false
	}
	if msg.TransactionID != c.xid {
		return false
	}
	clientID, ok := msg.Options.Get(option.OptClientID)
	if !ok || !duid.Equal(clientID.Data, c.duid) {
		return false
	}
	serverID, ok := msg.Options.Get(option.OptServerID)
	if !ok || len(serverID.Data) < 2 {
		return false
	}
	return true
}

// HandleAddressEvent is the entry point for a DAD event from the kernel
// address plumb.
func (c *Client) HandleAddressEvent(ev AddressEvent) {
	if c.state != Bound || ev.Addr != c.boundAddr {
		return
	}
	switch {
	case ev.Flags&FlagDuplicated != 0:
		c.enterDecline()
	case ev.Flags&FlagTentative != 0:
		// still waiting for DAD to resolve; no notification yet
	default:
		c.statusChanged()
		c.armT1Timer(c.params.Clock.Now())
	}
	c.flushMailbox()
}

// HandleWake is the entry point the supervisor calls on sleep/resume,
// link-up, or BSSID change while the client may have a lease worth
// keeping.
func (c *Client) HandleWake(info WakeInfo) {
	if c.state != Bound {
		return
	}
	c.enterConfirm()
	c.flushMailbox()
}

func (c *Client) sameNetwork() bool {
	ssid, ok := c.params.Inventory.CurrentSSID(c.params.Interface)
	if !ok {
		return false
	}
	return ssid == c.lease.SSID
}

func (c *Client) linkUp() bool {
	return c.params.Inventory.LinkUp(c.params.Interface)
}

func (c *Client) receiveHandler(packet []byte, opts option.Options) {
	c.HandleReceive(packet, opts)
}
