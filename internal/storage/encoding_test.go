package storage

import (
	"testing"

	"github.com/better-wallet/webconnect/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

func TestAddressRoundTrip(t *testing.T) {
	addr := common.HexToAddress("0x9858effd232b4033e47d90003d41ec34ecaeda94")
	encoded := encodeAddress(addr)
	if encoded != "0x9858EfFD232B4033E47d90003D41EC34EcaEda94" {
		t.Fatalf("expected checksummed address, got %s", encoded)
	}

	decoded, err := decodeAddress("  " + encoded + " ")
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != addr {
		t.Fatalf("round trip mismatch: got %s want %s", decoded.Hex(), addr.Hex())
	}
}

func TestDecodeAddressErrors(t *testing.T) {
	for _, input := range []string{"", "0x123", "0xzz58EfFD232B4033E47d90003D41EC34EcaEda94", "not an address"} {
		if _, err := decodeAddress(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestOptionalAddress(t *testing.T) {
	if encodeOptionalAddress(nil) != nil {
		t.Fatalf("expected nil for nil address")
	}
	decoded, err := decodeOptionalAddress(nil)
	if err != nil || decoded != nil {
		t.Fatalf("expected nil, nil; got %v, %v", decoded, err)
	}

	addr := common.HexToAddress("0x6Fac4D18c912343BF86fa7049364Dd4E424Ab9C0")
	decoded, err = decodeOptionalAddress(encodeOptionalAddress(&addr))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded == nil || *decoded != addr {
		t.Fatalf("round trip mismatch: got %v want %s", decoded, addr.Hex())
	}
}

func TestPeerEncoding(t *testing.T) {
	peer := &types.Peer{
		Role:   types.PeerRoleDapp,
		PeerID: "peer",
		Name:   "Example",
		Icons:  []string{"a", "b"},
	}

	data, err := encodePeer(peer)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := decodePeer(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Name != "Example" || len(decoded.Icons) != 2 || decoded.Icons[1] != "b" || decoded.Role != types.PeerRoleDapp {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}

	for _, empty := range [][]byte{nil, []byte("null")} {
		p, err := decodePeer(empty)
		if err != nil || p != nil {
			t.Fatalf("expected nil peer for %q, got %v, %v", empty, p, err)
		}
	}
	if data, _ := encodePeer(nil); data != nil {
		t.Fatalf("expected nil data for nil peer")
	}
	if _, err := decodePeer([]byte("{")); err == nil {
		t.Fatalf("expected error for malformed peer")
	}
}

func TestAccountsEncoding(t *testing.T) {
	accounts := []common.Address{
		common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94"),
		common.HexToAddress("0x6Fac4D18c912343BF86fa7049364Dd4E424Ab9C0"),
	}
	decoded, err := decodeAccounts(encodeAccounts(accounts))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(decoded) != 2 || decoded[0] != accounts[0] || decoded[1] != accounts[1] {
		t.Fatalf("round trip mismatch: %v", decoded)
	}
	if _, err := decodeAccounts([]string{"bad"}); err == nil {
		t.Fatalf("expected error for bad account")
	}
}

func TestRequestIDKind(t *testing.T) {
	i, d, s := int64(1), 1.0, "1"

	cases := []struct {
		id   types.WebConnectionRequestID
		kind string
	}{
		{types.WebConnectionRequestID{IntValue: &i}, requestIDKindInt},
		{types.WebConnectionRequestID{DoubleValue: &d}, requestIDKindDouble},
		{types.WebConnectionRequestID{StringValue: &s}, requestIDKindString},
	}
	for _, c := range cases {
		kind, err := requestIDKind(c.id)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if kind != c.kind {
			t.Fatalf("got kind %s want %s", kind, c.kind)
		}
	}

	if _, err := requestIDKind(types.WebConnectionRequestID{}); err == nil {
		t.Fatalf("expected error for empty request id")
	}
}
