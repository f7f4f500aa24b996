// Package socket is the reference client.Socket implementation: it opens
// the interface with libpcap, serializes outbound datagrams as raw
// Ethernet/IPv6/UDP frames, and filters inbound traffic down to DHCPv6
// client-port datagrams.
package socket

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync/atomic"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"

	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/client"
	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/message"
	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/option"
)

const (
	clientPort = 546
	serverPort = 547
	snaplen    = 1600
)

// allDHCPRelayAgentsAndServers is ff02::1:2, the link-scoped multicast
// group every DHCPv6 client solicits on.
var allDHCPRelayAgentsAndServers = netip.MustParseAddr("ff02::1:2")

// Socket opens one interface with libpcap and exchanges DHCPv6 datagrams
// over it as raw frames.
type Socket struct {
	ifaceName string
	handle    *pcap.Handle
	srcMAC    net.HardwareAddr
	srcIP     netip.Addr

	mldConn net.PacketConn

	receiving atomic.Bool
	handler   atomic.Pointer[func(packet []byte, opts option.Options)]
}

// Open opens ifaceName for DHCPv6 client traffic: a BPF filter keeps only
// inbound UDP datagrams addressed to the client port.
func Open(ifaceName string) (*Socket, error) {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("dhcp6net/socket: %w", err)
	}
	srcIP, err := linkLocalAddress(iface)
	if err != nil {
		return nil, err
	}

	handle, err := pcap.OpenLive(ifaceName, snaplen, false, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("dhcp6net/socket: open %s: %w", ifaceName, err)
	}
	if err := handle.SetBPFFilter(fmt.Sprintf("ip6 and udp and dst port %d", clientPort)); err != nil {
		handle.Close()
		return nil, fmt.Errorf("dhcp6net/socket: BPF filter: %w", err)
	}

	mldConn, err := joinDHCPMulticastGroup(iface)
	if err != nil {
		handle.Close()
		return nil, err
	}

	return &Socket{
		ifaceName: ifaceName,
		handle:    handle,
		srcMAC:    iface.HardwareAddr,
		srcIP:     srcIP,
		mldConn:   mldConn,
	}, nil
}

// joinDHCPMulticastGroup opens a UDP6 socket on iface and joins
// ff02::1:2 so the kernel sends an MLD Report and actually passes
// DHCPv6 multicast frames up to the interface; without this, some
// NIC drivers drop multicast frames in hardware before libpcap ever
// sees them, even though the BPF filter itself would accept them.
func joinDHCPMulticastGroup(iface *net.Interface) (net.PacketConn, error) {
	conn, err := net.ListenPacket("udp6", "[::]:0")
	if err != nil {
		return nil, fmt.Errorf("dhcp6net/socket: mld listen: %w", err)
	}
	group := &net.UDPAddr{IP: net.IP(allDHCPRelayAgentsAndServers.AsSlice())}
	if err := ipv6.NewPacketConn(conn).JoinGroup(iface, group); err != nil {
		conn.Close()
		return nil, fmt.Errorf("dhcp6net/socket: join %s on %s: %w", group.IP, iface.Name, err)
	}
	return conn, nil
}

// Close releases the underlying pcap handle and the MLD membership
// socket. The receive goroutine (if any) exits once its blocking read
// on the handle errors out.
func (s *Socket) Close() {
	s.handle.Close()
	s.mldConn.Close()
}

// Transmit serializes packet (an already-built DHCPv6 message, per
// pkg/dhcp6/message.Build) inside an Ethernet/IPv6/UDP frame addressed to
// ff02::1:2:547 and writes it with libpcap.
func (s *Socket) Transmit(packet []byte) error {
	eth := &layers.Ethernet{
		SrcMAC:       s.srcMAC,
		DstMAC:       ipv6MulticastToMAC(allDHCPRelayAgentsAndServers),
		EthernetType: layers.EthernetTypeIPv6,
	}
	ip6 := &layers.IPv6{
		Version:    6,
		HopLimit:   1,
		NextHeader: layers.IPProtocolUDP,
		SrcIP:      net.IP(s.srcIP.AsSlice()),
		DstIP:      net.IP(allDHCPRelayAgentsAndServers.AsSlice()),
	}
	udp := &layers.UDP{SrcPort: clientPort, DstPort: serverPort}
	udp.SetNetworkLayerForChecksum(ip6)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip6, udp, gopacket.Payload(packet)); err != nil {
		return fmt.Errorf("dhcp6net/socket: serialize: %w", err)
	}

	if err := s.handle.WritePacketData(buf.Bytes()); err != nil {
		return mapTransmitError(err)
	}
	return nil
}

// mapTransmitError distinguishes the transport-transient errno values
// client.ErrNetDown/ErrNoDevice from any other write failure.
func mapTransmitError(err error) error {
	if errors.Is(err, unix.ENETDOWN) {
		return fmt.Errorf("dhcp6net/socket: %w", client.ErrNetDown)
	}
	if errors.Is(err, unix.ENXIO) || errors.Is(err, unix.ENODEV) {
		return fmt.Errorf("dhcp6net/socket: %w", client.ErrNoDevice)
	}
	return fmt.Errorf("dhcp6net/socket: write: %w", err)
}

// EnableReceive starts (if not already running) a goroutine decoding
// every captured datagram and invoking handler for ones that parse.
func (s *Socket) EnableReceive(handler func(packet []byte, opts option.Options)) {
	s.handler.Store(&handler)
	if !s.receiving.CompareAndSwap(false, true) {
		return
	}
	go s.receiveLoop()
}

// DisableReceive stops delivering captured datagrams to the handler. The
// capture goroutine keeps reading until Close unblocks it; this only
// silences delivery.
func (s *Socket) DisableReceive() {
	s.handler.Store(nil)
}

func (s *Socket) receiveLoop() {
	src := gopacket.NewPacketSource(s.handle, s.handle.LinkType())
	for pkt := range src.Packets() {
		h := s.handler.Load()
		if h == nil {
			continue
		}
		udpLayer := pkt.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		payload := udpLayer.(*layers.UDP).Payload
		if len(payload) < message.HeaderLen {
			continue
		}
		opts, err := option.Decode(payload[message.HeaderLen:])
		if err != nil {
			continue
		}
		(*h)(payload, opts)
	}
}

func linkLocalAddress(iface *net.Interface) (netip.Addr, error) {
	addrs, err := iface.Addrs()
	if err != nil {
		return netip.Addr{}, fmt.Errorf("dhcp6net/socket: interface addrs: %w", err)
	}
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		addr, ok := netip.AddrFromSlice(ipn.IP.To16())
		if !ok {
			continue
		}
		addr = addr.Unmap()
		if addr.Is6() && addr.IsLinkLocalUnicast() {
			return addr, nil
		}
	}
	return netip.Addr{}, fmt.Errorf("dhcp6net/socket: no link-local address on %s", iface.Name)
}

// ipv6MulticastToMAC converts an IPv6 multicast address to an Ethernet
// multicast MAC per RFC 2464: 33:33 followed by the last 4 bytes.
func ipv6MulticastToMAC(addr netip.Addr) net.HardwareAddr {
	b := addr.As16()
	mac := make(net.HardwareAddr, 6)
	mac[0], mac[1] = 0x33, 0x33
	copy(mac[2:], b[12:16])
	return mac
}
