// Package lease maintains the client's view of the most recently saved
// DHCPv6 datagram and the lease it describes (RFC 8415 section 18.2's
// binding information, as seen from the client side).
package lease

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/option"
)

// Infinite is the RFC 8415 sentinel for "no expiry" on T1, T2, and the
// preferred/valid lifetimes.
const Infinite uint32 = 0xFFFFFFFF

// StrictIAADDRScan controls what happens when an IA_NA's IAADDR has
// preferred_lifetime > valid_lifetime (a server bug). false (the default)
// stops the scan at the first such IAADDR, matching the legacy behavior
// this client's selection logic is modeled on; set true to instead skip
// the malformed IAADDR and keep scanning for a usable one.
var StrictIAADDRScan = false

var (
	// ErrNoUsableIAADDR is returned when an IA_NA contains no IAADDR with
	// a non-zero, well-formed valid lifetime.
	ErrNoUsableIAADDR = errors.New("lease: no usable IAADDR in IA_NA")
)

// Saved is the client's saved datagram: the raw bytes it arrived in, its
// parsed option list, and the selected SERVERID, IA_NA, and IAADDR.
// ServerID and the Data of each option are sub-slices of the decoded
// buffer, so they share memory with Raw rather than holding copies.
type Saved struct {
	Raw     []byte
	Options option.Options

	ServerID []byte
	IANA     option.IANA
	IAAddr   option.IAAddr

	// Verified records whether this saved message corresponds to the
	// client's current bound/obtained configuration, as opposed to a
	// stale advertisement retained only for comparison.
	Verified bool
}

// Lease is the normalized lifetime/timer bookkeeping derived from a
// Saved message's IAADDR.
type Lease struct {
	Start             time.Time
	T1                uint32
	T2                uint32
	PreferredLifetime uint32
	ValidLifetime     uint32
	Valid             bool
	SSID              string
}

// Select parses opts looking for SERVERID and a usable IA_NA/IAADDR pair.
// It picks the first IAADDR with non-zero valid_lifetime; an IAADDR with
// preferred_lifetime > valid_lifetime is a server bug and is rejected
// per StrictIAADDRScan.
func Select(raw []byte, opts option.Options) (Saved, error) {
	s := Saved{Raw: raw, Options: opts}

	if sid, ok := opts.Get(option.OptServerID); ok {
		s.ServerID = sid.Data
	}

	iaOpt, ok := opts.Get(option.OptIANA)
	if !ok {
		return s, ErrNoUsableIAADDR
	}
	ia, err := option.ParseIANA(iaOpt.Data)
	if err != nil {
		return s, fmt.Errorf("lease: %w", err)
	}
	s.IANA = ia

	var start int
	for {
		opt, ok := ia.Options.GetFrom(option.OptIAAddr, &start)
		if !ok {
			return s, ErrNoUsableIAADDR
		}
		addr, err := option.ParseIAAddr(opt.Data)
		if err != nil {
			return s, fmt.Errorf("lease: %w", err)
		}
		if addr.ValidLifetime == 0 {
			continue
		}
		if addr.PreferredLifetime > addr.ValidLifetime && addr.ValidLifetime != Infinite {
			if !StrictIAADDRScan {
				return s, ErrNoUsableIAADDR
			}
			continue
		}
		s.IAAddr = addr
		return s, nil
	}
}

// Normalize derives T1/T2 from the preferred lifetime when the server
// left them unset, collapses the lease to infinite when any of
// T1/T2/valid_lifetime say so, and returns a Lease with Start set to
// now.
func Normalize(now time.Time, ia option.IANA, addr option.IAAddr, ssid string) Lease {
	preferred := addr.PreferredLifetime
	if preferred == 0 {
		preferred = addr.ValidLifetime
	}

	t1, t2 := ia.T1, ia.T2
	if (t1 == 0 || t2 == 0) && preferred != Infinite {
		t1 = uint32(float64(preferred) * 0.5)
		t2 = uint32(float64(preferred) * 0.8)
	}

	valid := addr.ValidLifetime
	infinite := t1 == Infinite || t2 == Infinite || valid == Infinite
	if infinite {
		t1, t2 = 0, 0
		preferred, valid = Infinite, Infinite
	}

	return Lease{
		Start:             now,
		T1:                t1,
		T2:                t2,
		PreferredLifetime: preferred,
		ValidLifetime:     valid,
		Valid:             true,
		SSID:              ssid,
	}
}

// StillValid reports whether the lease has not yet reached its valid
// lifetime as of now: valid only while now-start < valid_lifetime,
// unless valid_lifetime is Infinite.
func (l Lease) StillValid(now time.Time) bool {
	if !l.Valid {
		return false
	}
	if l.ValidLifetime == Infinite {
		return true
	}
	elapsed := now.Sub(l.Start)
	if elapsed < 0 {
		return false
	}
	return elapsed < time.Duration(l.ValidLifetime)*time.Second
}

// Remaining returns the preferred and valid lifetimes remaining as of
// now, clamped to zero. Infinite lifetimes pass through unchanged.
func (l Lease) Remaining(now time.Time) (preferred, valid uint32) {
	elapsed := now.Sub(l.Start)
	if elapsed < 0 {
		elapsed = 0
	}
	elapsedSecs := uint32(elapsed / time.Second)

	preferred = remain(l.PreferredLifetime, elapsedSecs)
	valid = remain(l.ValidLifetime, elapsedSecs)
	return preferred, valid
}

func remain(total, elapsed uint32) uint32 {
	if total == Infinite {
		return Infinite
	}
	if elapsed >= total {
		return 0
	}
	return total - elapsed
}

// BoundAddress returns the address this lease describes, or the zero
// (invalid) netip.Addr if nothing is bound.
func (s Saved) BoundAddress() netip.Addr {
	return s.IAAddr.Address
}
