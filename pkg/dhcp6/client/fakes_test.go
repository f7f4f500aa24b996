package client

import (
	"net/netip"
	"time"

	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/duid"
	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/message"
	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/option"
)

// fakeTimer and fakeClock give tests deterministic control over time
// without touching a real clock; advancing fires due timers in order,
// including ones armed by the timers it fires.
type fakeTimer struct {
	fireAt  time.Time
	fn      func()
	fired   bool
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

type fakeClock struct {
	now     time.Time
	pending []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{fireAt: c.now.Add(d), fn: f}
	c.pending = append(c.pending, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	target := c.now.Add(d)
	for {
		next := c.nextDue(target)
		if next == nil {
			break
		}
		c.now = next.fireAt
		next.fired = true
		next.fn()
	}
	c.now = target
}

// fireNext moves the clock to the earliest pending timer and fires only
// that one.
func (c *fakeClock) fireNext() {
	var best *fakeTimer
	for _, t := range c.pending {
		if t.fired || t.stopped {
			continue
		}
		if best == nil || t.fireAt.Before(best.fireAt) {
			best = t
		}
	}
	if best == nil {
		return
	}
	c.now = best.fireAt
	best.fired = true
	best.fn()
}

func (c *fakeClock) nextDue(target time.Time) *fakeTimer {
	var best *fakeTimer
	for _, t := range c.pending {
		if t.fired || t.stopped || t.fireAt.After(target) {
			continue
		}
		if best == nil || t.fireAt.Before(best.fireAt) {
			best = t
		}
	}
	return best
}

type fakeSocket struct {
	sent    [][]byte
	handler func(packet []byte, opts option.Options)
}

func (s *fakeSocket) Transmit(packet []byte) error {
	s.sent = append(s.sent, append([]byte(nil), packet...))
	return nil
}

func (s *fakeSocket) EnableReceive(h func(packet []byte, opts option.Options)) { s.handler = h }
func (s *fakeSocket) DisableReceive()                                         { s.handler = nil }

func (s *fakeSocket) deliver(raw []byte) {
	opts, _ := option.Decode(raw[message.HeaderLen:])
	s.handler(raw, opts)
}

func (s *fakeSocket) lastMessage() message.Message {
	m, _ := message.Parse(s.sent[len(s.sent)-1])
	return m
}

type addEvent struct {
	addr               netip.Addr
	prefixLen          int
	valid, preferred   uint32
}

type fakeAddressPlumb struct {
	added   []addEvent
	removed []netip.Addr
}

func (p *fakeAddressPlumb) Add(ifname string, addr netip.Addr, prefixLen int, valid, preferred uint32) error {
	p.added = append(p.added, addEvent{addr, prefixLen, valid, preferred})
	return nil
}

func (p *fakeAddressPlumb) Remove(ifname string, addr netip.Addr) error {
	p.removed = append(p.removed, addr)
	return nil
}

type fakeDUIDStore struct{ d []byte }

func (s *fakeDUIDStore) DUID(t duid.Type) ([]byte, error) { return s.d, nil }

type fakeInventory struct {
	up        bool
	ssid      string
	ssidOK    bool
	prefixLen int
}

func (i *fakeInventory) LinkUp(string) bool                   { return i.up }
func (i *fakeInventory) CurrentSSID(string) (string, bool)    { return i.ssid, i.ssidOK }
func (i *fakeInventory) PrefixLen(string, netip.Addr) int     { return i.prefixLen }

type fakeNotify struct {
	statusChanges int
	symptoms      int
}

func (n *fakeNotify) StatusChanged(c *Client)   { n.statusChanges++ }
func (n *fakeNotify) GenerateSymptom(c *Client) { n.symptoms++ }

func optClientID(d []byte) option.Option { return option.Option{Code: option.OptClientID, Data: d} }
func optServerID(d []byte) option.Option { return option.Option{Code: option.OptServerID, Data: d} }
func optPreference(p byte) option.Option {
	return option.Option{Code: option.OptPreference, Data: []byte{p}}
}
func optIANAOpt(ia option.IANA) option.Option {
	return option.Option{Code: option.OptIANA, Data: ia.Encode()}
}
func iaaddrOpt(addr string, preferred, valid uint32) option.Option {
	return option.Option{
		Code: option.OptIAAddr,
		Data: option.IAAddr{
			Address:           netip.MustParseAddr(addr),
			PreferredLifetime: preferred,
			ValidLifetime:     valid,
		}.Encode(),
	}
}
func optStatus(code option.StatusCode) option.Option {
	data := make([]byte, 2)
	data[0] = byte(uint16(code) >> 8)
	data[1] = byte(uint16(code))
	return option.Option{Code: option.OptStatusCode, Data: data}
}

func buildServerMessage(t message.Type, xid uint32, opts ...option.Option) []byte {
	buf := make([]byte, message.MTUBufferSize)
	buf[0] = byte(t)
	buf[1] = byte(xid >> 16)
	buf[2] = byte(xid >> 8)
	buf[3] = byte(xid)
	enc := option.NewEncoder(buf[message.HeaderLen:])
	for _, o := range opts {
		_ = enc.Append(o.Code, o.Data)
	}
	return buf[:message.HeaderLen+enc.Len()]
}

func newTestClient(sock *fakeSocket, clk *fakeClock, plumb *fakeAddressPlumb, inv *fakeInventory, notify *fakeNotify, clientDUID []byte, mode Mode) *Client {
	return New(Params{
		Interface:    "eth0",
		Mode:         mode,
		DUIDType:     duid.LL,
		Socket:       sock,
		Clock:        clk,
		AddressPlumb: plumb,
		DUIDStore:    &fakeDUIDStore{d: clientDUID},
		Inventory:    inv,
		Notify:       notify,
	})
}
