// Package addrplumb is the reference client.AddressPlumb implementation
// and DAD event source, built on vishvananda/netlink the way the
// teacher's sibling packages manage container/namespace addresses (see
// pkg/driver/hostdevice.go's AddrAdd pattern in the retrieved corpus).
package addrplumb

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/client"
)

// Plumb manages addresses on one interface and republishes the kernel's
// DAD state transitions as client.AddressEvent values.
type Plumb struct {
	ifaceName string
}

// Open resolves ifaceName once so Add/Remove fail fast if it does not exist.
func Open(ifaceName string) (*Plumb, error) {
	if _, err := netlink.LinkByName(ifaceName); err != nil {
		return nil, fmt.Errorf("dhcp6net/addrplumb: %w", err)
	}
	return &Plumb{ifaceName: ifaceName}, nil
}

func (p *Plumb) link() (netlink.Link, error) {
	link, err := netlink.LinkByName(p.ifaceName)
	if err != nil {
		return nil, fmt.Errorf("dhcp6net/addrplumb: %w", err)
	}
	return link, nil
}

// Add implements client.AddressPlumb.
func (p *Plumb) Add(ifname string, addr netip.Addr, prefixLen int, validLifetime, preferredLifetime uint32) error {
	link, err := p.link()
	if err != nil {
		return err
	}
	nlAddr := &netlink.Addr{
		IPNet: &net.IPNet{
			IP:   net.IP(addr.AsSlice()),
			Mask: net.CIDRMask(prefixLen, 128),
		},
		ValidLft:    int(clampLifetime(validLifetime)),
		PreferedLft: int(clampLifetime(preferredLifetime)),
	}
	if err := netlink.AddrReplace(link, nlAddr); err != nil {
		return fmt.Errorf("dhcp6net/addrplumb: add %s/%d on %s: %w", addr, prefixLen, ifname, err)
	}
	return nil
}

// Remove implements client.AddressPlumb.
func (p *Plumb) Remove(ifname string, addr netip.Addr) error {
	link, err := p.link()
	if err != nil {
		return err
	}
	nlAddr := &netlink.Addr{IPNet: &net.IPNet{IP: net.IP(addr.AsSlice()), Mask: net.CIDRMask(128, 128)}}
	if err := netlink.AddrDel(link, nlAddr); err != nil {
		return fmt.Errorf("dhcp6net/addrplumb: remove %s on %s: %w", addr, ifname, err)
	}
	return nil
}

// clampLifetime maps the RFC 8415 infinite sentinel onto netlink's
// "forever" convention (0 means permanent for IFA_CACHEINFO).
func clampLifetime(v uint32) uint32 {
	if v == 0xFFFFFFFF {
		return 0
	}
	return v
}

// Watch subscribes to every address update on the interface and invokes
// handler with a client.AddressEvent for each one, translating the
// kernel's tentative/dadfailed flags. The bound address changes over a
// session's life (each Solicit/Renew/Rebind cycle can pick a new one), so
// Watch does not filter by address itself; HandleAddressEvent already
// discards events that do not match the client's current bound address.
// It blocks until done is closed.
func Watch(ifaceName string, done <-chan struct{}, handler func(client.AddressEvent)) error {
	link, err := netlink.LinkByName(ifaceName)
	if err != nil {
		return fmt.Errorf("dhcp6net/addrplumb: %w", err)
	}

	updates := make(chan netlink.AddrUpdate)
	if err := netlink.AddrSubscribe(updates, done); err != nil {
		return fmt.Errorf("dhcp6net/addrplumb: subscribe: %w", err)
	}

	for {
		select {
		case <-done:
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if upd.LinkIndex != link.Attrs().Index {
				continue
			}
			updAddr, ok := netip.AddrFromSlice(upd.LinkAddress.IP)
			if !ok {
				continue
			}
			handler(client.AddressEvent{Addr: updAddr.Unmap(), Flags: translateFlags(upd.Flags)})
		}
	}
}

func translateFlags(flags int) client.AddressFlags {
	var out client.AddressFlags
	if flags&unix.IFA_F_TENTATIVE != 0 {
		out |= client.FlagTentative
	}
	if flags&unix.IFA_F_DADFAILED != 0 {
		out |= client.FlagDuplicated
	}
	return out
}
