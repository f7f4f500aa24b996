// Package sysclock is the reference client.Clock implementation: a thin
// wrapper over the standard library's wall clock and one-shot timer.
package sysclock

import (
	"time"

	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/client"
)

// Clock implements client.Clock using the real wall clock.
type Clock struct{}

// Now implements client.Clock.
func (Clock) Now() time.Time { return time.Now() }

// AfterFunc implements client.Clock.
func (Clock) AfterFunc(d time.Duration, f func()) client.Timer {
	return time.AfterFunc(d, f)
}
