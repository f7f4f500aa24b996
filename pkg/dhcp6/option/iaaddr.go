package option

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// IAAddr is a decoded IAADDR option: an address and its lifetimes, plus any
// options nested inside it (status code, etc).
type IAAddr struct {
	Address           netip.Addr
	PreferredLifetime uint32
	ValidLifetime     uint32
	Options           Options
}

// ParseIAAddr decodes an IAADDR option payload (RFC 8415 section 21.6):
// 16-byte address, 4-byte preferred-lifetime, 4-byte valid-lifetime,
// followed by nested options.
func ParseIAAddr(data []byte) (IAAddr, error) {
	if len(data) < 24 {
		return IAAddr{}, fmt.Errorf("option: %w: IAADDR payload %d bytes, want >= 24", ErrTruncated, len(data))
	}
	addr, ok := netip.AddrFromSlice(data[0:16])
	if !ok {
		return IAAddr{}, fmt.Errorf("option: IAADDR: invalid address bytes")
	}
	nested, err := Decode(data[24:])
	if err != nil {
		return IAAddr{}, fmt.Errorf("option: IAADDR: nested options: %w", err)
	}
	return IAAddr{
		Address:           addr,
		PreferredLifetime: binary.BigEndian.Uint32(data[16:20]),
		ValidLifetime:     binary.BigEndian.Uint32(data[20:24]),
		Options:           nested,
	}, nil
}

// Encode serializes the IAADDR option payload (without the outer
// code/length header).
func (a IAAddr) Encode() []byte {
	addr16 := a.Address.As16()
	buf := make([]byte, 24)
	copy(buf[0:16], addr16[:])
	binary.BigEndian.PutUint32(buf[16:20], a.PreferredLifetime)
	binary.BigEndian.PutUint32(buf[20:24], a.ValidLifetime)
	for _, o := range a.Options {
		enc := make([]byte, 4+len(o.Data))
		binary.BigEndian.PutUint16(enc[0:2], uint16(o.Code))
		binary.BigEndian.PutUint16(enc[2:4], uint16(len(o.Data)))
		copy(enc[4:], o.Data)
		buf = append(buf, enc...)
	}
	return buf
}
