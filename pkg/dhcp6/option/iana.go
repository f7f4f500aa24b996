package option

import "encoding/binary"

// IANA is a decoded IA_NA option (RFC 8415 section 21.4): the identity
// association for non-temporary addresses, carrying IAID, T1/T2 and a
// nested option list (normally one or more IAADDR options, optionally a
// STATUS_CODE).
type IANA struct {
	IAID    uint32
	T1      uint32
	T2      uint32
	Options Options
}

// ParseIANA decodes an IA_NA option payload.
func ParseIANA(data []byte) (IANA, error) {
	if len(data) < 12 {
		return IANA{}, ErrTruncated
	}
	nested, err := Decode(data[12:])
	if err != nil {
		return IANA{}, err
	}
	return IANA{
		IAID:    binary.BigEndian.Uint32(data[0:4]),
		T1:      binary.BigEndian.Uint32(data[4:8]),
		T2:      binary.BigEndian.Uint32(data[8:12]),
		Options: nested,
	}, nil
}

// Encode serializes the IA_NA option payload (without the outer
// code/length header).
func (ia IANA) Encode() []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint32(buf[0:4], ia.IAID)
	binary.BigEndian.PutUint32(buf[4:8], ia.T1)
	binary.BigEndian.PutUint32(buf[8:12], ia.T2)
	for _, o := range ia.Options {
		enc := make([]byte, 4+len(o.Data))
		binary.BigEndian.PutUint16(enc[0:2], uint16(o.Code))
		binary.BigEndian.PutUint16(enc[2:4], uint16(len(o.Data)))
		copy(enc[4:], o.Data)
		buf = append(buf, enc...)
	}
	return buf
}

// IAAddrs returns every IAADDR nested inside this IA_NA, decoded.
func (ia IANA) IAAddrs() ([]IAAddr, error) {
	var out []IAAddr
	for _, opt := range ia.Options.All(OptIAAddr) {
		addr, err := ParseIAAddr(opt.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}
