package webconnect

import (
	"testing"

	"github.com/better-wallet/webconnect/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testURL = "wc:8a5e5bdc-a0e4-4702-ba63-8f1a5655744f@1?bridge=https%3A%2F%2Fbridge.walletconnect.org&key=41791102999c339c844880b23950704cc43aa840f3739e365323cda4dfa89e7a"

func ptrInt(v int) *int { return &v }

func testConnection() *types.Connection {
	chainID := 100
	c := &types.Connection{
		ID:      uuid.New(),
		URL:     testURL,
		Status:  types.ConnectionStatusApproved,
		ChainID: &chainID,
		LocalPeer: &types.Peer{
			Role:           types.PeerRoleWallet,
			PeerID:         "wallet-peer",
			URL:            "https://safe.global",
			Name:           "Safe",
			Description:    "Safe multisig wallet",
			Icons:          []string{"https://safe.global/icon-1.png", "https://safe.global/icon-2.png"},
			DeeplinkScheme: "safe",
		},
		RemotePeer: &types.Peer{
			Role:        types.PeerRoleDapp,
			PeerID:      "dapp-peer",
			URL:         "https://app.example.org",
			Name:        "Example",
			Description: "Example dapp",
			Icons:       []string{"https://app.example.org/a.png", "https://app.example.org/b.png"},
		},
	}
	c.SetAccounts([]common.Address{
		common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94"),
		common.HexToAddress("0x6Fac4D18c912343BF86fa7049364Dd4E424Ab9C0"),
	})
	return c
}

func TestTransformerSession(t *testing.T) {
	tr := NewTransformer(0)
	conn := testConnection()

	s, ok := tr.Session(conn)
	require.True(t, ok)

	assert.Equal(t, "dapp-peer", s.DAppInfo.PeerID)
	assert.Equal(t, "Example", s.DAppInfo.PeerMeta.Name)
	assert.Nil(t, s.DAppInfo.ChainID)
	require.NotNil(t, s.DAppInfo.Approved)
	assert.True(t, *s.DAppInfo.Approved)

	assert.True(t, s.WalletInfo.Approved)
	assert.Equal(t, 100, s.WalletInfo.ChainID)
	assert.Equal(t, "wallet-peer", s.WalletInfo.PeerID)
	assert.Equal(t, "safe", s.WalletInfo.PeerMeta.Scheme)
	assert.Equal(t, []string{
		"0x9858EfFD232B4033E47d90003D41EC34EcaEda94",
		"0x6Fac4D18c912343BF86fa7049364Dd4E424Ab9C0",
	}, s.WalletInfo.Accounts)

	assert.Equal(t, "8a5e5bdc-a0e4-4702-ba63-8f1a5655744f", s.URL.Topic)
	assert.Equal(t, "1", s.URL.Version)
}

func TestTransformerSessionNotApproved(t *testing.T) {
	tr := NewTransformer(0)
	conn := testConnection()
	conn.Status = types.ConnectionStatusApproving
	conn.ChainID = nil

	s, ok := tr.Session(conn)
	require.True(t, ok)
	assert.False(t, s.WalletInfo.Approved)
	assert.Equal(t, 0, s.WalletInfo.ChainID)
}

func TestTransformerSessionMissingPeer(t *testing.T) {
	tr := NewTransformer(0)

	tests := []struct {
		name   string
		modify func(c *types.Connection)
	}{
		{name: "no_local_peer", modify: func(c *types.Connection) { c.LocalPeer = nil }},
		{name: "no_remote_peer", modify: func(c *types.Connection) { c.RemotePeer = nil }},
		{name: "no_peers", modify: func(c *types.Connection) { c.LocalPeer, c.RemotePeer = nil, nil }},
		{name: "swapped_roles", modify: func(c *types.Connection) { c.LocalPeer, c.RemotePeer = c.RemotePeer, c.LocalPeer }},
		{name: "two_wallets", modify: func(c *types.Connection) { c.RemotePeer.Role = types.PeerRoleWallet }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := testConnection()
			tt.modify(conn)
			s, ok := tr.Session(conn)
			assert.False(t, ok)
			assert.Nil(t, s)
		})
	}

	_, ok := tr.Session(nil)
	assert.False(t, ok)
}

func TestTransformerRoundTrip(t *testing.T) {
	tr := NewTransformer(0)
	conn := testConnection()

	s, ok := tr.Session(conn)
	require.True(t, ok)
	back, err := tr.Connection(s)
	require.NoError(t, err)

	assert.Equal(t, *conn.LocalPeer, *back.LocalPeer)
	assert.Equal(t, *conn.RemotePeer, *back.RemotePeer)
	assert.Equal(t, conn.Accounts, back.Accounts)
	assert.Equal(t, *conn.ChainID, *back.ChainID)
	assert.Equal(t, conn.Status, back.Status)
	assert.Equal(t, conn.URL, back.URL)
}

func TestTransformerUpdate(t *testing.T) {
	tests := []struct {
		name          string
		defaultChain  int
		proposedChain *int
		expectedChain int
	}{
		{name: "dapp_chain", proposedChain: ptrInt(137), expectedChain: 137},
		{name: "mainnet_default", expectedChain: 1},
		{name: "configured_default", defaultChain: 5, expectedChain: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTransformer(tt.defaultChain)
			conn := testConnection()
			session := &Session{DAppInfo: DAppInfo{
				PeerID:  "new-peer",
				ChainID: tt.proposedChain,
				PeerMeta: ClientMeta{
					Name:        "New",
					Description: "New dapp",
					Icons:       []string{"https://new.example/icon.png"},
					URL:         "https://new.example",
					Scheme:      "newapp",
				},
			}}

			require.NoError(t, tr.Update(conn, session))
			require.NotNil(t, conn.ChainID)
			assert.Equal(t, tt.expectedChain, *conn.ChainID)
			assert.Equal(t, types.Peer{
				Role:           types.PeerRoleDapp,
				PeerID:         "new-peer",
				URL:            "https://new.example",
				Name:           "New",
				Description:    "New dapp",
				Icons:          []string{"https://new.example/icon.png"},
				DeeplinkScheme: "newapp",
			}, *conn.RemotePeer)
			assert.Equal(t, "wallet-peer", conn.LocalPeer.PeerID)

			// the peer must not alias the session icons
			session.DAppInfo.PeerMeta.Icons[0] = "changed"
			assert.Equal(t, "https://new.example/icon.png", conn.RemotePeer.Icons[0])
		})
	}
}

func TestTransformerUpdateIdempotent(t *testing.T) {
	tr := NewTransformer(0)
	conn := testConnection()
	session := &Session{DAppInfo: DAppInfo{
		PeerID:   "p",
		ChainID:  ptrInt(10),
		PeerMeta: ClientMeta{Name: "n", Icons: []string{"i"}},
	}}

	require.NoError(t, tr.Update(conn, session))
	first := *conn
	firstPeer := *conn.RemotePeer

	require.NoError(t, tr.Update(conn, session))
	assert.Equal(t, *first.ChainID, *conn.ChainID)
	assert.Equal(t, firstPeer, *conn.RemotePeer)
	assert.Equal(t, first.Accounts, conn.Accounts)
	assert.Equal(t, first.Status, conn.Status)
}

func TestTransformerUpdateMissingPeer(t *testing.T) {
	tr := NewTransformer(0)

	conn := testConnection()
	conn.RemotePeer = nil
	assert.ErrorIs(t, tr.Update(conn, &Session{}), ErrMissingPeer)
	assert.Nil(t, conn.RemotePeer)

	conn = testConnection()
	conn.LocalPeer.Role = types.PeerRoleDapp
	assert.ErrorIs(t, tr.Update(conn, &Session{}), ErrPeerRole)
}

func TestTransformerConnectionChainFallback(t *testing.T) {
	tr := NewTransformer(0)

	c, err := tr.Connection(&Session{DAppInfo: DAppInfo{ChainID: ptrInt(56)}})
	require.NoError(t, err)
	assert.Equal(t, 56, *c.ChainID)
	assert.Equal(t, types.ConnectionStatusApproving, c.Status)
	assert.Empty(t, c.URL)

	c, err = tr.Connection(&Session{})
	require.NoError(t, err)
	assert.Equal(t, 1, *c.ChainID)

	c, err = tr.Connection(&Session{WalletInfo: WalletInfo{Accounts: []string{"not-an-address", "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"}}})
	require.NoError(t, err)
	assert.Equal(t, []common.Address{common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94")}, c.Accounts)
}

func TestTransformerNilSession(t *testing.T) {
	tr := NewTransformer(0)

	conn := testConnection()
	before := *conn.RemotePeer
	assert.ErrorIs(t, tr.Update(conn, nil), ErrMissingSession)
	assert.Equal(t, before, *conn.RemotePeer)

	c, err := tr.Connection(nil)
	assert.ErrorIs(t, err, ErrMissingSession)
	assert.Nil(t, c)
}

func TestTransformerRequestIDIdentity(t *testing.T) {
	tr := NewTransformer(0)

	tests := []struct {
		name string
		id   RequestID
	}{
		{name: "int", id: IntRequestID(42)},
		{name: "negative_int", id: IntRequestID(-7)},
		{name: "large_int", id: IntRequestID(1_700_000_000_123)},
		{name: "double", id: DoubleRequestID(3.25)},
		{name: "whole_double", id: DoubleRequestID(2)},
		{name: "string", id: StringRequestID("req-1")},
		{name: "empty_string", id: StringRequestID("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, ok := tr.Request(tt.id)
			require.True(t, ok)
			back, ok := tr.RequestID(req)
			require.True(t, ok)
			assert.Equal(t, tt.id, back)
			assert.Equal(t, tt.id.Kind(), back.Kind())
		})
	}
}

func TestTransformerRequestIDStoredForm(t *testing.T) {
	tr := NewTransformer(0)

	req, ok := tr.Request(DoubleRequestID(2))
	require.True(t, ok)
	assert.Nil(t, req.ID.IntValue)
	assert.Nil(t, req.ID.StringValue)
	require.NotNil(t, req.ID.DoubleValue)
	assert.Equal(t, 2.0, *req.ID.DoubleValue)

	n := int64(9)
	id, ok := tr.RequestID(&types.WebConnectionRequest{ID: types.WebConnectionRequestID{IntValue: &n}})
	require.True(t, ok)
	v, isInt := id.Int()
	assert.True(t, isInt)
	assert.Equal(t, int64(9), v)
}

func TestTransformerRequestIDNone(t *testing.T) {
	tr := NewTransformer(0)

	req, ok := tr.Request(RequestID{})
	assert.False(t, ok)
	assert.Nil(t, req)

	id, ok := tr.RequestID(&types.WebConnectionRequest{})
	assert.False(t, ok)
	assert.True(t, id.IsZero())

	_, ok = tr.RequestID(nil)
	assert.False(t, ok)
}
