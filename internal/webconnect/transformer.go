package webconnect

import (
	"errors"
	"slices"

	"github.com/better-wallet/webconnect/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

var (
	// ErrMissingPeer is returned when a connection lacks its local or remote peer
	ErrMissingPeer = errors.New("connection requires both a local and a remote peer")

	// ErrMissingSession is returned when no session is given
	ErrMissingSession = errors.New("session is required")

	// ErrPeerRole is returned when the local peer is not the wallet or the
	// remote peer is not the dapp
	ErrPeerRole = errors.New("local peer must be the wallet and remote peer the dapp")
)

// Transformer converts between stored connections and WalletConnect sessions.
// It assumes the local peer is the wallet and the remote peer a dapp.
type Transformer struct {
	defaultChainID int
}

// NewTransformer creates a transformer that falls back to defaultChainID when
// a dapp does not propose a chain. Zero means Ethereum mainnet.
func NewTransformer(defaultChainID int) *Transformer {
	if defaultChainID == 0 {
		defaultChainID = types.ChainIDEthereumMainnet
	}
	return &Transformer{defaultChainID: defaultChainID}
}

// DefaultChainID returns the chain used when the dapp proposes none
func (t *Transformer) DefaultChainID() int {
	return t.defaultChainID
}

// Update applies the dapp side of a session to the connection: the chain id
// and the remote peer metadata. Applying the same session twice leaves the
// connection unchanged.
func (t *Transformer) Update(conn *types.Connection, session *Session) error {
	if session == nil {
		return ErrMissingSession
	}
	if err := checkPeers(conn); err != nil {
		return err
	}

	chainID := t.defaultChainID
	if session.DAppInfo.ChainID != nil {
		chainID = *session.DAppInfo.ChainID
	}
	conn.ChainID = &chainID

	updatePeer(conn.RemotePeer, session.DAppInfo)
	return nil
}

// Session builds the wire session for a connection. It returns false when
// either peer is missing or the roles are not wallet (local) and dapp (remote).
func (t *Transformer) Session(conn *types.Connection) (*Session, bool) {
	if checkPeers(conn) != nil {
		return nil, false
	}

	wcURL, _ := ParseWCURL(conn.URL)
	return &Session{
		URL:        wcURL,
		DAppInfo:   dappInfo(conn.RemotePeer),
		WalletInfo: walletInfo(conn.LocalPeer, conn),
	}, true
}

// Connection rebuilds a connection from a wire session
func (t *Transformer) Connection(session *Session) (*types.Connection, error) {
	if session == nil {
		return nil, ErrMissingSession
	}
	local := &types.Peer{Role: types.PeerRoleWallet}
	updatePeerMeta(local, session.WalletInfo.PeerID, session.WalletInfo.PeerMeta)

	remote := &types.Peer{Role: types.PeerRoleDapp}
	updatePeer(remote, session.DAppInfo)

	chainID := session.WalletInfo.ChainID
	if chainID == 0 {
		chainID = t.defaultChainID
		if session.DAppInfo.ChainID != nil {
			chainID = *session.DAppInfo.ChainID
		}
	}

	status := types.ConnectionStatusApproving
	if session.WalletInfo.Approved {
		status = types.ConnectionStatusApproved
	}

	accounts := make([]common.Address, 0, len(session.WalletInfo.Accounts))
	for _, a := range session.WalletInfo.Accounts {
		if common.IsHexAddress(a) {
			accounts = append(accounts, common.HexToAddress(a))
		}
	}

	conn := &types.Connection{
		ID:         uuid.New(),
		Status:     status,
		ChainID:    &chainID,
		LocalPeer:  local,
		RemotePeer: remote,
	}
	if session.URL.Topic != "" {
		conn.URL = session.URL.String()
	}
	conn.SetAccounts(accounts)
	return conn, nil
}

// Request converts a wire request id into a stored request
func (t *Transformer) Request(id RequestID) (*types.WebConnectionRequest, bool) {
	var stored types.WebConnectionRequestID
	switch id.Kind() {
	case RequestIDInt:
		v, _ := id.Int()
		stored.IntValue = &v
	case RequestIDDouble:
		v, _ := id.Double()
		stored.DoubleValue = &v
	case RequestIDString:
		v, _ := id.Text()
		stored.StringValue = &v
	default:
		return nil, false
	}
	return &types.WebConnectionRequest{ID: stored}, true
}

// RequestID converts a stored request id back to its wire form
func (t *Transformer) RequestID(req *types.WebConnectionRequest) (RequestID, bool) {
	switch {
	case req == nil:
		return RequestID{}, false
	case req.ID.IntValue != nil:
		return IntRequestID(*req.ID.IntValue), true
	case req.ID.DoubleValue != nil:
		return DoubleRequestID(*req.ID.DoubleValue), true
	case req.ID.StringValue != nil:
		return StringRequestID(*req.ID.StringValue), true
	}
	return RequestID{}, false
}

func checkPeers(conn *types.Connection) error {
	if conn == nil || conn.LocalPeer == nil || conn.RemotePeer == nil {
		return ErrMissingPeer
	}
	if conn.LocalPeer.Role != types.PeerRoleWallet || conn.RemotePeer.Role != types.PeerRoleDapp {
		return ErrPeerRole
	}
	return nil
}

func updatePeer(peer *types.Peer, info DAppInfo) {
	updatePeerMeta(peer, info.PeerID, info.PeerMeta)
}

func updatePeerMeta(peer *types.Peer, peerID string, meta ClientMeta) {
	peer.PeerID = peerID
	peer.URL = meta.URL
	peer.Name = meta.Name
	peer.Description = meta.Description
	peer.Icons = slices.Clone(meta.Icons)
	peer.DeeplinkScheme = meta.Scheme
}

func clientMeta(peer *types.Peer) ClientMeta {
	return ClientMeta{
		Name:        peer.Name,
		Description: peer.Description,
		Icons:       slices.Clone(peer.Icons),
		URL:         peer.URL,
		Scheme:      peer.DeeplinkScheme,
	}
}

func dappInfo(peer *types.Peer) DAppInfo {
	approved := true
	return DAppInfo{
		PeerID:   peer.PeerID,
		PeerMeta: clientMeta(peer),
		Approved: &approved,
	}
}

func walletInfo(peer *types.Peer, conn *types.Connection) WalletInfo {
	accounts := make([]string, len(conn.Accounts))
	for i, a := range conn.Accounts {
		accounts[i] = a.Hex()
	}

	chainID := 0
	if conn.ChainID != nil {
		chainID = *conn.ChainID
	}

	return WalletInfo{
		Approved: conn.Status == types.ConnectionStatusApproved,
		Accounts: accounts,
		ChainID:  chainID,
		PeerID:   peer.PeerID,
		PeerMeta: clientMeta(peer),
	}
}
