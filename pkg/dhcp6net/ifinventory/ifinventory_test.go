package ifinventory

import "testing"

// TestParseSSIDFromStatus exercises the pure wpa_supplicant STATUS
// response parsing; LinkUp/CurrentSSID/PrefixLen all need a live
// interface (sysfs, a running wpa_supplicant, or a kernel netlink
// socket) and are left to integration testing.
func TestParseSSIDFromStatus(t *testing.T) {
	cases := []struct {
		name     string
		resp     string
		wantSSID string
		wantOK   bool
	}{
		{
			name: "associated",
			resp: "bssid=02:00:00:00:00:00\nfreq=5180\nssid=homenet\n" +
				"id=0\nmode=station\nwpa_state=COMPLETED\n",
			wantSSID: "homenet",
			wantOK:   true,
		},
		{
			name:     "disconnected",
			resp:     "wpa_state=DISCONNECTED\naddress=02:00:00:00:00:00\n",
			wantSSID: "",
			wantOK:   false,
		},
		{
			name:     "empty",
			resp:     "",
			wantSSID: "",
			wantOK:   false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ssid, ok := parseSSIDFromStatus(tc.resp)
			if ssid != tc.wantSSID || ok != tc.wantOK {
				t.Fatalf("parseSSIDFromStatus(%q) = (%q, %v), want (%q, %v)",
					tc.resp, ssid, ok, tc.wantSSID, tc.wantOK)
			}
		})
	}
}

func TestInventoryCurrentSSIDWithoutDir(t *testing.T) {
	inv := Inventory{}
	if ssid, ok := inv.CurrentSSID("wlan0"); ok || ssid != "" {
		t.Fatalf("CurrentSSID() = (%q, %v), want (\"\", false) with no WPASupplicantDir", ssid, ok)
	}
}
