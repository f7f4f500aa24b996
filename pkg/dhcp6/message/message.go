// Package message implements the DHCPv6 message header and the
// per-message-type option ordering used when building outgoing packets
// (RFC 8415 section 8, and section 18 for the client message set).
package message

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/option"
)

// Type identifies a DHCPv6 message type (the first byte on the wire).
type Type uint8

const (
	Solicit            Type = 1
	Advertise          Type = 2
	Request            Type = 3
	Confirm            Type = 4
	Renew              Type = 5
	Rebind             Type = 6
	Reply              Type = 7
	Release            Type = 8
	Decline            Type = 9
	InformationRequest Type = 11
)

func (t Type) String() string {
	switch t {
	case Solicit:
		return "SOLICIT"
	case Advertise:
		return "ADVERTISE"
	case Request:
		return "REQUEST"
	case Confirm:
		return "CONFIRM"
	case Renew:
		return "RENEW"
	case Rebind:
		return "REBIND"
	case Reply:
		return "REPLY"
	case Release:
		return "RELEASE"
	case Decline:
		return "DECLINE"
	case InformationRequest:
		return "INFORMATION-REQUEST"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// HeaderLen is the size of the fixed message header: 1 byte type, 3 bytes
// transaction id.
const HeaderLen = 4

// MTUBufferSize is the size of the send buffer the builder targets
// (RFC 3315 section 16: the client SHOULD NOT send a message larger than
// the link MTU; 1500 covers any interface this client manages).
const MTUBufferSize = 1500

// Message is a decoded DHCPv6 datagram: its message type, its 24-bit
// transaction id, and the option list that followed the header.
type Message struct {
	Type          Type
	TransactionID uint32 // only the low 24 bits are meaningful
	Options       option.Options
}

// Parse decodes a received datagram's header and option stream. It does
// not validate option shape beyond what option.Decode already checks;
// callers apply the acceptance filter (xid, CLIENTID, message type)
// separately.
func Parse(buf []byte) (Message, error) {
	if len(buf) < HeaderLen {
		return Message{}, fmt.Errorf("message: %w: buffer %d bytes, want >= %d", option.ErrTruncated, len(buf), HeaderLen)
	}
	xid := uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
	opts, err := option.Decode(buf[HeaderLen:])
	if err != nil {
		return Message{}, fmt.Errorf("message: %w", err)
	}
	return Message{
		Type:          Type(buf[0]),
		TransactionID: xid & 0x00FFFFFF,
		Options:       opts,
	}, nil
}

// BuildParams describes one outgoing message. Not every field applies to
// every message type; the state machine sets only the fields relevant to
// the exchange it is driving.
type BuildParams struct {
	Type          Type
	TransactionID uint32 // low 24 bits used

	ClientDUID []byte // CLIENTID payload, always present
	ServerDUID []byte // SERVERID payload; nil omits the option

	RequestedOptions []option.Code // ORO contents, always present (may be empty)

	ElapsedHundredths uint16 // ELAPSED_TIME payload, always present

	// IncludeIANA controls whether an IA_NA option is emitted at all
	// (false for INFORMATION_REQUEST in stateless mode).
	IncludeIANA bool
	IAID        uint32
	// IncludeIAAddr nests an IAADDR option inside the IA_NA (omitted
	// when the client has no address to offer/confirm yet, e.g. the
	// very first SOLICIT).
	IncludeIAAddr bool
	Address       netip.Addr
	PreferredLifetime uint32
	ValidLifetime     uint32
}

// Build serializes a message per section 4.2's fixed option order:
// header, CLIENTID, ORO, ELAPSED_TIME, SERVERID (if present), IA_NA (if
// requested). It writes into an MTU-sized buffer and returns the written
// prefix.
func Build(p BuildParams) ([]byte, error) {
	buf := make([]byte, MTUBufferSize)
	buf[0] = byte(p.Type)
	xid := p.TransactionID & 0x00FFFFFF
	buf[1] = byte(xid >> 16)
	buf[2] = byte(xid >> 8)
	buf[3] = byte(xid)

	enc := option.NewEncoder(buf[HeaderLen:])

	if err := enc.Append(option.OptClientID, p.ClientDUID); err != nil {
		return nil, fmt.Errorf("message: CLIENTID: %w", err)
	}

	if err := enc.Append(option.OptORO, encodeORO(p.RequestedOptions)); err != nil {
		return nil, fmt.Errorf("message: ORO: %w", err)
	}

	elapsed := make([]byte, 2)
	binary.BigEndian.PutUint16(elapsed, p.ElapsedHundredths)
	if err := enc.Append(option.OptElapsedTime, elapsed); err != nil {
		return nil, fmt.Errorf("message: ELAPSED_TIME: %w", err)
	}

	if p.ServerDUID != nil {
		if err := enc.Append(option.OptServerID, p.ServerDUID); err != nil {
			return nil, fmt.Errorf("message: SERVERID: %w", err)
		}
	}

	if p.IncludeIANA {
		ia := option.IANA{IAID: p.IAID}
		if p.IncludeIAAddr {
			ia.Options = option.Options{{
				Code: option.OptIAAddr,
				Data: option.IAAddr{
					Address:           p.Address,
					PreferredLifetime: p.PreferredLifetime,
					ValidLifetime:     p.ValidLifetime,
				}.Encode(),
			}}
		}
		if err := enc.Append(option.OptIANA, ia.Encode()); err != nil {
			return nil, fmt.Errorf("message: IA_NA: %w", err)
		}
	}

	return buf[:HeaderLen+enc.Len()], nil
}

func encodeORO(codes []option.Code) []byte {
	out := make([]byte, 2*len(codes))
	for i, c := range codes {
		binary.BigEndian.PutUint16(out[2*i:2*i+2], uint16(c))
	}
	return out
}

// DecodeORO parses an ORO option payload back into its option codes, used
// by tests and by server-role tooling outside this client's scope.
func DecodeORO(data []byte) ([]option.Code, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("message: %w: ORO payload length %d not a multiple of 2", option.ErrTruncated, len(data))
	}
	codes := make([]option.Code, len(data)/2)
	for i := range codes {
		codes[i] = option.Code(binary.BigEndian.Uint16(data[2*i : 2*i+2]))
	}
	return codes, nil
}
