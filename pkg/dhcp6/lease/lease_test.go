package lease

import (
	"net/netip"
	"testing"
	"time"

	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/option"
)

func iaaddrOption(t *testing.T, addr string, preferred, valid uint32) option.Option {
	t.Helper()
	return option.Option{
		Code: option.OptIAAddr,
		Data: option.IAAddr{
			Address:           netip.MustParseAddr(addr),
			PreferredLifetime: preferred,
			ValidLifetime:     valid,
		}.Encode(),
	}
}

func TestSelectPicksFirstUsableIAAddr(t *testing.T) {
	ia := option.IANA{
		IAID: 1,
		Options: option.Options{
			iaaddrOption(t, "2001:db8::1", 0, 0), // unusable: valid=0
			iaaddrOption(t, "2001:db8::2", 100, 200),
		},
	}
	opts := option.Options{
		{Code: option.OptServerID, Data: []byte{1, 2, 3}},
		{Code: option.OptIANA, Data: ia.Encode()},
	}

	got, err := Select(nil, opts)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.IAAddr.Address.String() != "2001:db8::2" {
		t.Errorf("selected address = %v, want 2001:db8::2", got.IAAddr.Address)
	}
	if string(got.ServerID) != "\x01\x02\x03" {
		t.Errorf("ServerID = %v, want [1 2 3]", got.ServerID)
	}
}

func TestSelectRejectsPreferredGreaterThanValid(t *testing.T) {
	StrictIAADDRScan = false
	defer func() { StrictIAADDRScan = false }()

	ia := option.IANA{
		IAID: 1,
		Options: option.Options{
			iaaddrOption(t, "2001:db8::1", 500, 100), // preferred > valid: server bug
			iaaddrOption(t, "2001:db8::2", 100, 200),
		},
	}
	opts := option.Options{{Code: option.OptIANA, Data: ia.Encode()}}

	_, err := Select(nil, opts)
	if err != ErrNoUsableIAADDR {
		t.Fatalf("Select() error = %v, want ErrNoUsableIAADDR (stops scan)", err)
	}
}

func TestSelectStrictScanContinuesPastBadIAAddr(t *testing.T) {
	StrictIAADDRScan = true
	defer func() { StrictIAADDRScan = false }()

	ia := option.IANA{
		IAID: 1,
		Options: option.Options{
			iaaddrOption(t, "2001:db8::1", 500, 100),
			iaaddrOption(t, "2001:db8::2", 100, 200),
		},
	}
	opts := option.Options{{Code: option.OptIANA, Data: ia.Encode()}}

	got, err := Select(nil, opts)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.IAAddr.Address.String() != "2001:db8::2" {
		t.Errorf("selected address = %v, want 2001:db8::2", got.IAAddr.Address)
	}
}

func TestSelectNoIAAddrAtAll(t *testing.T) {
	ia := option.IANA{IAID: 1}
	opts := option.Options{{Code: option.OptIANA, Data: ia.Encode()}}
	if _, err := Select(nil, opts); err != ErrNoUsableIAADDR {
		t.Fatalf("Select() error = %v, want ErrNoUsableIAADDR", err)
	}
}

func TestNormalizeZeroT1T2Default(t *testing.T) {
	now := time.Now()
	ia := option.IANA{IAID: 1, T1: 0, T2: 0}
	addr := option.IAAddr{PreferredLifetime: 1000, ValidLifetime: 2000}

	l := Normalize(now, ia, addr, "")

	if l.T1 != 500 || l.T2 != 800 {
		t.Errorf("T1/T2 = %d/%d, want 500/800", l.T1, l.T2)
	}
	if l.PreferredLifetime != 1000 || l.ValidLifetime != 2000 {
		t.Errorf("lifetimes = %d/%d, want 1000/2000", l.PreferredLifetime, l.ValidLifetime)
	}
}

func TestNormalizeZeroPreferredUsesValid(t *testing.T) {
	now := time.Now()
	ia := option.IANA{IAID: 1, T1: 50, T2: 80}
	addr := option.IAAddr{PreferredLifetime: 0, ValidLifetime: 2000}

	l := Normalize(now, ia, addr, "")
	if l.PreferredLifetime != 2000 {
		t.Errorf("PreferredLifetime = %d, want 2000 (fell back to valid)", l.PreferredLifetime)
	}
}

func TestNormalizeInfiniteLease(t *testing.T) {
	now := time.Now()
	ia := option.IANA{IAID: 1, T1: 0, T2: 0}
	addr := option.IAAddr{PreferredLifetime: Infinite, ValidLifetime: Infinite}

	l := Normalize(now, ia, addr, "")
	if l.T1 != 0 || l.T2 != 0 {
		t.Errorf("T1/T2 = %d/%d, want 0/0 for infinite lease", l.T1, l.T2)
	}
	if l.PreferredLifetime != Infinite || l.ValidLifetime != Infinite {
		t.Errorf("lifetimes = %d/%d, want Infinite/Infinite", l.PreferredLifetime, l.ValidLifetime)
	}
	if !l.StillValid(now.Add(1000 * 24 * time.Hour)) {
		t.Errorf("StillValid() = false for infinite lease far in the future, want true")
	}
}

func TestNormalizeInfiniteT1T2(t *testing.T) {
	now := time.Now()
	ia := option.IANA{IAID: 1, T1: Infinite, T2: Infinite}
	addr := option.IAAddr{PreferredLifetime: 100, ValidLifetime: 200}

	l := Normalize(now, ia, addr, "")
	if l.T1 != 0 || l.T2 != 0 || l.PreferredLifetime != Infinite || l.ValidLifetime != Infinite {
		t.Errorf("Normalize() = %+v, want infinite treatment when T1/T2 are Infinite", l)
	}
}

func TestLeaseStillValid(t *testing.T) {
	now := time.Now()
	l := Lease{Start: now, ValidLifetime: 300, Valid: true}

	if !l.StillValid(now.Add(299 * time.Second)) {
		t.Errorf("StillValid() = false at 299s of 300s, want true")
	}
	if l.StillValid(now.Add(301 * time.Second)) {
		t.Errorf("StillValid() = true at 301s of 300s, want false")
	}
	if l.StillValid(now.Add(-time.Second)) {
		t.Errorf("StillValid() = true when time went backwards, want false")
	}
}

func TestLeaseRemaining(t *testing.T) {
	now := time.Now()
	l := Lease{Start: now, PreferredLifetime: 100, ValidLifetime: 200, Valid: true}

	pref, valid := l.Remaining(now.Add(50 * time.Second))
	if pref != 50 || valid != 150 {
		t.Errorf("Remaining() = %d, %d, want 50, 150", pref, valid)
	}

	pref, valid = l.Remaining(now.Add(1000 * time.Second))
	if pref != 0 || valid != 0 {
		t.Errorf("Remaining() past expiry = %d, %d, want 0, 0", pref, valid)
	}
}
