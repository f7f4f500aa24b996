package socket

import (
	"net/netip"
	"testing"
)

// TestIPv6MulticastToMAC exercises the pure RFC 2464 mapping without
// needing to open a real interface (Open requires libpcap and a live
// device, so it is left to integration testing).
func TestIPv6MulticastToMAC(t *testing.T) {
	mac := ipv6MulticastToMAC(netip.MustParseAddr("ff02::1:2"))
	want := []byte{0x33, 0x33, 0x00, 0x01, 0x00, 0x02}
	if len(mac) != 6 {
		t.Fatalf("len(mac) = %d, want 6", len(mac))
	}
	for i := range want {
		if mac[i] != want[i] {
			t.Fatalf("mac = % x, want % x", []byte(mac), want)
		}
	}
}
