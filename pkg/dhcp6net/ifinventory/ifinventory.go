// Package ifinventory is the reference client.InterfaceInventory
// implementation: link state from /sys/class/net (the same sysfs surface
// the retrieved corpus's device-discovery code reads operstate/carrier
// from), current SSID from a wpa_supplicant control socket when present,
// and the on-link prefix length from the kernel's address list.
package ifinventory

import (
	"fmt"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strings"

	"github.com/vishvananda/netlink"
)

const sysClassNet = "/sys/class/net"

// Inventory answers client.InterfaceInventory questions by reading
// sysfs and (optionally) a wpa_supplicant control socket.
type Inventory struct {
	// WPASupplicantDir is the directory holding one control socket per
	// managed interface (wpa_supplicant's default is /var/run/wpa_supplicant).
	// Left empty, CurrentSSID always reports ok=false (wired interface).
	WPASupplicantDir string
}

// LinkUp implements client.InterfaceInventory by reading the interface's
// carrier file: 1 means the link has a carrier signal.
func (inv Inventory) LinkUp(ifname string) bool {
	data, err := os.ReadFile(filepath.Join(sysClassNet, ifname, "carrier"))
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "1"
}

// CurrentSSID implements client.InterfaceInventory. It queries
// wpa_supplicant's control socket for the associated network's SSID;
// wired interfaces (or hosts with no wpa_supplicant) report ok=false.
func (inv Inventory) CurrentSSID(ifname string) (string, bool) {
	if inv.WPASupplicantDir == "" {
		return "", false
	}
	resp, err := wpaCtrlRequest(filepath.Join(inv.WPASupplicantDir, ifname), "STATUS")
	if err != nil {
		return "", false
	}
	return parseSSIDFromStatus(resp)
}

// parseSSIDFromStatus scans a wpa_supplicant STATUS response for its
// ssid= line.
func parseSSIDFromStatus(resp string) (string, bool) {
	for _, line := range strings.Split(resp, "\n") {
		if name, ok := strings.CutPrefix(line, "ssid="); ok {
			return name, true
		}
	}
	return "", false
}

// PrefixLen implements client.InterfaceInventory by finding addr among
// the interface's currently configured addresses and returning its mask
// length; 0 (treated by the caller as "use /128") if not found.
func (inv Inventory) PrefixLen(ifname string, addr netip.Addr) int {
	link, err := netlink.LinkByName(ifname)
	if err != nil {
		return 0
	}
	addrs, err := netlink.AddrList(link, netlink.FAMILY_V6)
	if err != nil {
		return 0
	}
	for _, a := range addrs {
		ip, ok := netip.AddrFromSlice(a.IP.To16())
		if !ok || ip.Unmap() != addr {
			continue
		}
		ones, _ := a.Mask.Size()
		return ones
	}
	return 0
}

// WatchLinkUp subscribes to link state changes on ifname and invokes
// handler whenever the link transitions from down (or unknown) to up,
// the source for client.WakeLinkUp. It blocks until done is closed.
func WatchLinkUp(ifname string, done <-chan struct{}, handler func()) error {
	link, err := netlink.LinkByName(ifname)
	if err != nil {
		return fmt.Errorf("dhcp6net/ifinventory: %w", err)
	}

	updates := make(chan netlink.LinkUpdate)
	if err := netlink.LinkSubscribe(updates, done); err != nil {
		return fmt.Errorf("dhcp6net/ifinventory: subscribe: %w", err)
	}

	wasUp := link.Attrs().OperState == netlink.OperUp
	for {
		select {
		case <-done:
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if upd.Link.Attrs().Index != link.Attrs().Index {
				continue
			}
			isUp := upd.Link.Attrs().OperState == netlink.OperUp
			if isUp && !wasUp {
				handler()
			}
			wasUp = isUp
		}
	}
}

// wpaCtrlRequest sends a single command to a wpa_supplicant control
// socket and returns its reply. wpa_supplicant's control interface is a
// Unix domain datagram socket; the client binds its own ephemeral socket
// to receive the reply, mirroring what wpa_cli does.
func wpaCtrlRequest(ctrlPath, cmd string) (string, error) {
	clientAddr := &net.UnixAddr{Name: ctrlPath + "-dhcp6c-" + fmt.Sprint(os.Getpid()), Net: "unixgram"}
	conn, err := net.DialUnix("unixgram", clientAddr, &net.UnixAddr{Name: ctrlPath, Net: "unixgram"})
	if err != nil {
		return "", fmt.Errorf("dhcp6net/ifinventory: wpa_ctrl dial: %w", err)
	}
	defer conn.Close()
	defer os.Remove(clientAddr.Name)

	if _, err := conn.Write([]byte(cmd)); err != nil {
		return "", fmt.Errorf("dhcp6net/ifinventory: wpa_ctrl write: %w", err)
	}
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		return "", fmt.Errorf("dhcp6net/ifinventory: wpa_ctrl read: %w", err)
	}
	return string(buf[:n]), nil
}
