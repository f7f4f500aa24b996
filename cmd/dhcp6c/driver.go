package main

import (
	"time"

	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/client"
	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/option"
)

// driver serializes every call into the client state machine onto one
// goroutine. The client's own doc comment is explicit that its entry
// points are meant to be invoked serially by one event loop and take no
// lock themselves; Socket receives happen on a capture goroutine and
// Clock timers fire on the runtime's own timer goroutine, so this
// funnels both back through one channel before they reach the client.
type driver struct {
	work chan func()
	done chan struct{}
}

func newDriver() *driver {
	return &driver{work: make(chan func(), 64), done: make(chan struct{})}
}

func (d *driver) run() {
	for {
		select {
		case f := <-d.work:
			f()
		case <-d.done:
			return
		}
	}
}

func (d *driver) post(f func()) {
	select {
	case d.work <- f:
	case <-d.done:
	}
}

func (d *driver) stop() {
	close(d.done)
}

// serializingClock wraps a client.Clock so timer callbacks run on the
// driver goroutine instead of the runtime timer goroutine that fired them.
type serializingClock struct {
	inner client.Clock
	d     *driver
}

func (c serializingClock) Now() time.Time { return c.inner.Now() }

func (c serializingClock) AfterFunc(dur time.Duration, f func()) client.Timer {
	return c.inner.AfterFunc(dur, func() { c.d.post(f) })
}

// serializingSocket wraps a client.Socket so the receive handler runs on
// the driver goroutine instead of whatever goroutine the socket delivers
// packets on.
type serializingSocket struct {
	inner client.Socket
	d     *driver
}

func (s serializingSocket) Transmit(packet []byte) error { return s.inner.Transmit(packet) }

func (s serializingSocket) EnableReceive(handler func(packet []byte, opts option.Options)) {
	s.inner.EnableReceive(func(packet []byte, opts option.Options) {
		s.d.post(func() { handler(packet, opts) })
	})
}

func (s serializingSocket) DisableReceive() { s.inner.DisableReceive() }
