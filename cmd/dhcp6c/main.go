// Command dhcp6c is a reference harness for the pkg/dhcp6/client state
// machine: it wires the package's collaborator interfaces to the
// pkg/dhcp6net reference implementations (pcap socket, netlink address
// plumb, bbolt DUID store, sysfs/wpa_supplicant inventory) and the real
// wall clock, then drives one interface through solicit, renew,
// release, or an interactive watch session.
package main

func main() {
	Execute()
}
