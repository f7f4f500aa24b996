// Package duid constructs and compares DHCP Unique Identifiers (RFC 8415
// section 11) and derives the per-interface IAID the client embeds in its
// IA_NA options.
package duid

import (
	"crypto/rand"
	"encoding/binary"
	"hash/fnv"
	"time"
)

// Type identifies a DUID variant.
type Type uint16

const (
	LLT  Type = 1 // link-layer address plus time
	EN   Type = 2 // enterprise number plus vendor-assigned id
	LL   Type = 3 // link-layer address
	UUID Type = 4
)

// epoch is the DUID-LLT time base: midnight (UTC) on 2000-01-01, per RFC
// 8415 section 11.2.
var epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Generate constructs a fresh DUID of the given type. hwType is the
// ARP hardware type (1 for Ethernet) used by LLT and LL; linkLayerAddr is
// the interface's hardware address for LLT/LL, and is ignored for EN and
// UUID. enterpriseNumber and identifier are used only for EN.
func Generate(t Type, hwType uint16, linkLayerAddr []byte, enterpriseNumber uint32, identifier []byte) ([]byte, error) {
	switch t {
	case LLT:
		return generateLLT(hwType, linkLayerAddr)
	case EN:
		return generateEN(enterpriseNumber, identifier)
	case LL:
		return generateLL(hwType, linkLayerAddr)
	case UUID:
		return generateUUID()
	default:
		return generateLL(hwType, linkLayerAddr)
	}
}

func generateLLT(hwType uint16, linkLayerAddr []byte) ([]byte, error) {
	addr := linkLayerAddr
	if len(addr) == 0 {
		var err error
		addr, err = randomEUI48()
		if err != nil {
			return nil, err
		}
	}
	buf := make([]byte, 8+len(addr))
	binary.BigEndian.PutUint16(buf[0:2], uint16(LLT))
	binary.BigEndian.PutUint16(buf[2:4], hwType)
	binary.BigEndian.PutUint32(buf[4:8], uint32(time.Since(epoch).Seconds()))
	copy(buf[8:], addr)
	return buf, nil
}

func generateLL(hwType uint16, linkLayerAddr []byte) ([]byte, error) {
	addr := linkLayerAddr
	if len(addr) == 0 {
		var err error
		addr, err = randomEUI48()
		if err != nil {
			return nil, err
		}
	}
	buf := make([]byte, 4+len(addr))
	binary.BigEndian.PutUint16(buf[0:2], uint16(LL))
	binary.BigEndian.PutUint16(buf[2:4], hwType)
	copy(buf[4:], addr)
	return buf, nil
}

func generateEN(enterpriseNumber uint32, identifier []byte) ([]byte, error) {
	id := identifier
	if len(id) == 0 {
		id = make([]byte, 8)
		if _, err := rand.Read(id); err != nil {
			return nil, err
		}
	}
	buf := make([]byte, 6+len(id))
	binary.BigEndian.PutUint16(buf[0:2], uint16(EN))
	binary.BigEndian.PutUint32(buf[2:6], enterpriseNumber)
	copy(buf[6:], id)
	return buf, nil
}

func generateUUID() ([]byte, error) {
	buf := make([]byte, 2+16)
	binary.BigEndian.PutUint16(buf[0:2], uint16(UUID))
	if _, err := rand.Read(buf[2:]); err != nil {
		return nil, err
	}
	// RFC 4122 version/variant bits, so the payload is a valid UUIDv4 even
	// though DHCPv6 itself does not require it.
	buf[2+6] = (buf[2+6] & 0x0f) | 0x40
	buf[2+8] = (buf[2+8] & 0x3f) | 0x80
	return buf, nil
}

func randomEUI48() ([]byte, error) {
	mac := make([]byte, 6)
	if _, err := rand.Read(mac); err != nil {
		return nil, err
	}
	mac[0] = (mac[0] | 0x02) & 0xfe // locally administered, unicast
	return mac, nil
}

// Equal reports whether two DUIDs are byte-identical, the comparison
// the acceptance filter uses against CLIENTID/SERVERID options.
func Equal(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// IAID derives a stable 32-bit identity-association id from an interface
// name. The mapping only needs to be stable and cheap, not
// cryptographically strong, so a non-keyed hash is sufficient.
func IAID(ifname string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(ifname))
	return h.Sum32()
}
