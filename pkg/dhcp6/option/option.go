// Package option implements the DHCPv6 option codec: the type-length-value
// stream embedded in every DHCPv6 message (RFC 8415 section 21).
package option

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Code identifies a DHCPv6 option type.
type Code uint16

// Option codes this client parses or emits. The table is the full RFC 8415
// core set plus the options named in requested-options defaults; codes not
// listed here are still decoded (as opaque TLVs) but never acted on.
const (
	OptClientID               Code = 1
	OptServerID               Code = 2
	OptIANA                   Code = 3
	OptIATA                   Code = 4
	OptIAAddr                 Code = 5
	OptORO                    Code = 6
	OptPreference             Code = 7
	OptElapsedTime            Code = 8
	OptRelayMsg               Code = 9
	OptAuth                   Code = 11
	OptUnicast                Code = 12
	OptStatusCode             Code = 13
	OptRapidCommit            Code = 14
	OptUserClass              Code = 15
	OptVendorClass            Code = 16
	OptVendorOpts             Code = 17
	OptInterfaceID            Code = 18
	OptReconfMsg              Code = 19
	OptReconfAccept           Code = 20
	OptSIPServerD             Code = 21
	OptSIPServerA             Code = 22
	OptDNSServers             Code = 23
	OptDomainList             Code = 24
	OptIAPD                   Code = 25
	OptIAPrefix               Code = 26
	OptNISServers             Code = 27
	OptNISPServers            Code = 28
	OptNISDomainName          Code = 29
	OptNISPDomainName         Code = 30
	OptSNTPServers            Code = 31
	OptInformationRefreshTime Code = 32
	OptFQDN                   Code = 39
	OptNTPServer              Code = 56
	OptCaptivePortalURL       Code = 103
)

// Status codes carried in a STATUS_CODE option (RFC 8415 section 21.13).
type StatusCode uint16

const (
	Success      StatusCode = 0
	UnspecFail   StatusCode = 1
	NoAddrsAvail StatusCode = 2
	NoBinding    StatusCode = 3
	NotOnLink    StatusCode = 4
	UseMulticast StatusCode = 5
)

func (s StatusCode) String() string {
	switch s {
	case Success:
		return "Success"
	case UnspecFail:
		return "UnspecFail"
	case NoAddrsAvail:
		return "NoAddrsAvail"
	case NoBinding:
		return "NoBinding"
	case NotOnLink:
		return "NotOnLink"
	case UseMulticast:
		return "UseMulticast"
	default:
		return fmt.Sprintf("Status(%d)", uint16(s))
	}
}

// Option is a single decoded (code, payload) pair. Data aliases the buffer
// it was decoded from; callers that need it to outlive that buffer must
// copy it.
type Option struct {
	Code Code
	Data []byte
}

// Options is an ordered list of options as they appeared on the wire.
// Duplicates (e.g. repeated IAADDR inside an IA_NA) are preserved in order.
type Options []Option

var (
	// ErrTruncated is returned when an option's declared length runs past
	// the end of the buffer.
	ErrTruncated = errors.New("option: truncated option")
	// ErrOverflow is returned by the encoder when appending an option
	// would not fit the caller-supplied buffer.
	ErrOverflow = errors.New("option: buffer overflow")
)

// Decode parses a concatenated (code, length, payload) option stream.
// It validates that every declared length fits within the remaining
// buffer; it does not validate per-option payload shape (that is the
// job of the typed accessors in this package, e.g. ParseIANA).
func Decode(buf []byte) (Options, error) {
	var opts Options
	for off := 0; off < len(buf); {
		if off+4 > len(buf) {
			return nil, fmt.Errorf("option: %w: header at offset %d", ErrTruncated, off)
		}
		code := Code(binary.BigEndian.Uint16(buf[off : off+2]))
		length := int(binary.BigEndian.Uint16(buf[off+2 : off+4]))
		off += 4
		if off+length > len(buf) {
			return nil, fmt.Errorf("option: %w: code %d declares length %d at offset %d", ErrTruncated, code, length, off)
		}
		opts = append(opts, Option{Code: code, Data: buf[off : off+length]})
		off += length
	}
	return opts, nil
}

// Get returns the first occurrence of code.
func (o Options) Get(code Code) (Option, bool) {
	var start int
	return o.GetFrom(code, &start)
}

// GetFrom enumerates duplicates: it returns the first option at index >=
// *start whose code matches, and advances *start past it so a subsequent
// call continues the scan (used for repeated IAADDR options inside an
// IA_NA).
func (o Options) GetFrom(code Code, start *int) (Option, bool) {
	for i := *start; i < len(o); i++ {
		if o[i].Code == code {
			*start = i + 1
			return o[i], true
		}
	}
	*start = len(o)
	return Option{}, false
}

// All returns every occurrence of code, in order.
func (o Options) All(code Code) []Option {
	var out []Option
	var start int
	for {
		opt, ok := o.GetFrom(code, &start)
		if !ok {
			return out
		}
		out = append(out, opt)
	}
}

// StatusCodeValue extracts the STATUS_CODE option. A missing option means
// Success, per RFC 8415 section 21.13.
func (o Options) StatusCodeValue() (StatusCode, string, error) {
	opt, ok := o.Get(OptStatusCode)
	if !ok {
		return Success, "", nil
	}
	if len(opt.Data) < 2 {
		return 0, "", fmt.Errorf("option: %w: status-code payload too short", ErrTruncated)
	}
	code := StatusCode(binary.BigEndian.Uint16(opt.Data[0:2]))
	return code, string(opt.Data[2:]), nil
}

// Encoder appends options into a caller-supplied, fixed-size buffer
// (normally an MTU-sized send buffer) and reports overflow instead of
// growing it.
type Encoder struct {
	buf []byte
	n   int
}

// NewEncoder wraps buf; Append writes starting at buf[0].
func NewEncoder(buf []byte) *Encoder {
	return &Encoder{buf: buf}
}

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int { return e.n }

// Bytes returns the written prefix of the buffer.
func (e *Encoder) Bytes() []byte { return e.buf[:e.n] }

// Append writes a single (code, length, payload) option.
func (e *Encoder) Append(code Code, data []byte) error {
	need := 4 + len(data)
	if e.n+need > len(e.buf) {
		return fmt.Errorf("option: %w: need %d more bytes, have %d", ErrOverflow, need, len(e.buf)-e.n)
	}
	binary.BigEndian.PutUint16(e.buf[e.n:e.n+2], uint16(code))
	binary.BigEndian.PutUint16(e.buf[e.n+2:e.n+4], uint16(len(data)))
	copy(e.buf[e.n+4:e.n+4+len(data)], data)
	e.n += need
	return nil
}
