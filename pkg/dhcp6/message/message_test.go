package message

import (
	"net/netip"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/option"
)

func TestBuildSolicitRoundTrip(t *testing.T) {
	params := BuildParams{
		Type:              Solicit,
		TransactionID:     0x123456,
		ClientDUID:        []byte{0, 3, 0, 1, 1, 2, 3, 4, 5, 6},
		RequestedOptions:  []option.Code{option.OptDNSServers, option.OptDomainList, option.OptCaptivePortalURL},
		ElapsedHundredths: 0,
		IncludeIANA:       true,
		IAID:              42,
	}

	buf, err := Build(params)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	got, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got.Type != Solicit {
		t.Errorf("Type = %v, want Solicit", got.Type)
	}
	if got.TransactionID != 0x123456 {
		t.Errorf("TransactionID = %#x, want %#x", got.TransactionID, 0x123456)
	}

	clientID, ok := got.Options.Get(option.OptClientID)
	if !ok || !cmp.Equal(clientID.Data, params.ClientDUID) {
		t.Errorf("CLIENTID = %v, ok=%v, want %v", clientID.Data, ok, params.ClientDUID)
	}

	oro, ok := got.Options.Get(option.OptORO)
	if !ok {
		t.Fatalf("ORO option missing")
	}
	codes, err := DecodeORO(oro.Data)
	if err != nil {
		t.Fatalf("DecodeORO: %v", err)
	}
	if diff := cmp.Diff(params.RequestedOptions, codes); diff != "" {
		t.Errorf("ORO mismatch (-want +got):\n%s", diff)
	}

	elapsed, ok := got.Options.Get(option.OptElapsedTime)
	if !ok || len(elapsed.Data) != 2 || elapsed.Data[0] != 0 || elapsed.Data[1] != 0 {
		t.Errorf("ELAPSED_TIME = %v, ok=%v, want [0 0]", elapsed.Data, ok)
	}

	if _, ok := got.Options.Get(option.OptServerID); ok {
		t.Errorf("SERVERID present, want absent for SOLICIT")
	}

	iaOpt, ok := got.Options.Get(option.OptIANA)
	if !ok {
		t.Fatalf("IA_NA option missing")
	}
	ia, err := option.ParseIANA(iaOpt.Data)
	if err != nil {
		t.Fatalf("ParseIANA: %v", err)
	}
	if ia.IAID != 42 || ia.T1 != 0 || ia.T2 != 0 {
		t.Errorf("IA_NA = %+v, want IAID=42 T1=0 T2=0", ia)
	}
}

func TestBuildRequestIncludesServerID(t *testing.T) {
	addr := netip.MustParseAddr("2001:db8::1")
	buf, err := Build(BuildParams{
		Type:              Request,
		TransactionID:     1,
		ClientDUID:        []byte{1, 2, 3},
		ServerDUID:        []byte{9, 9, 9},
		ElapsedHundredths: 150,
		IncludeIANA:       true,
		IAID:              7,
		IncludeIAAddr:     true,
		Address:           addr,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	got, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	serverID, ok := got.Options.Get(option.OptServerID)
	if !ok || !cmp.Equal(serverID.Data, []byte{9, 9, 9}) {
		t.Errorf("SERVERID = %v, ok=%v, want [9 9 9]", serverID.Data, ok)
	}

	iaOpt, _ := got.Options.Get(option.OptIANA)
	ia, err := option.ParseIANA(iaOpt.Data)
	if err != nil {
		t.Fatalf("ParseIANA: %v", err)
	}
	addrs, err := ia.IAAddrs()
	if err != nil || len(addrs) != 1 {
		t.Fatalf("IAAddrs() = %v, %v, want one address", addrs, err)
	}
	if addrs[0].Address != addr || addrs[0].PreferredLifetime != 0 || addrs[0].ValidLifetime != 0 {
		t.Errorf("IAADDR = %+v, want %v with zero lifetimes", addrs[0], addr)
	}
}

func TestBuildInformationRequestOmitsIANA(t *testing.T) {
	buf, err := Build(BuildParams{
		Type:        InformationRequest,
		ClientDUID:  []byte{1},
		IncludeIANA: false,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	got, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := got.Options.Get(option.OptIANA); ok {
		t.Errorf("IA_NA present, want absent for INFORMATION-REQUEST")
	}
}

func TestParseTooShort(t *testing.T) {
	if _, err := Parse([]byte{1, 2, 3}); err == nil {
		t.Fatalf("Parse(3 bytes) = nil error, want error")
	}
}

func TestTypeString(t *testing.T) {
	if got := Reply.String(); got != "REPLY" {
		t.Errorf("Reply.String() = %q, want REPLY", got)
	}
	if got := Type(200).String(); got != "Type(200)" {
		t.Errorf("Type(200).String() = %q, want Type(200)", got)
	}
}
