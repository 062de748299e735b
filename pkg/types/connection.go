package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// PeerRole is the side a peer plays in a connection
type PeerRole string

const (
	PeerRoleWallet PeerRole = "wallet"
	PeerRoleDapp   PeerRole = "dapp"
)

// ConnectionStatus tracks a connection from scanning to closing
type ConnectionStatus string

const (
	ConnectionStatusConnecting  ConnectionStatus = "connecting"
	ConnectionStatusHandshaking ConnectionStatus = "handshaking"
	ConnectionStatusApproving   ConnectionStatus = "approving"
	ConnectionStatusApproved    ConnectionStatus = "approved"
	ConnectionStatusRejected    ConnectionStatus = "rejected"
	ConnectionStatusClosed      ConnectionStatus = "closed"
)

// IsOpen reports whether the connection can still change state
func (s ConnectionStatus) IsOpen() bool {
	return s != ConnectionStatusRejected && s != ConnectionStatusClosed
}

// Peer describes one endpoint of a connection
type Peer struct {
	Role           PeerRole `json:"role"`
	PeerID         string   `json:"peer_id"`
	URL            string   `json:"url"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Icons          []string `json:"icons"`
	DeeplinkScheme string   `json:"deeplink_scheme,omitempty"`
}

// Connection is a pairing between the local wallet and a remote peer
type Connection struct {
	ID         uuid.UUID        `json:"id"`
	URL        string           `json:"url"`
	Status     ConnectionStatus `json:"status"`
	ChainID    *int             `json:"chain_id,omitempty"`
	Accounts   []common.Address `json:"accounts"`
	LocalPeer  *Peer            `json:"local_peer,omitempty"`
	RemotePeer *Peer            `json:"remote_peer,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// SetAccounts replaces the accounts, dropping duplicates and keeping order
func (c *Connection) SetAccounts(accounts []common.Address) {
	seen := make(map[common.Address]struct{}, len(accounts))
	out := make([]common.Address, 0, len(accounts))
	for _, a := range accounts {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	c.Accounts = out
}

// HasAccount reports whether addr is one of the connection accounts
func (c *Connection) HasAccount(addr common.Address) bool {
	for _, a := range c.Accounts {
		if a == addr {
			return true
		}
	}
	return false
}

// WebConnectionRequestID is the stored form of a JSON-RPC request id. At
// most one field is set.
type WebConnectionRequestID struct {
	IntValue    *int64   `json:"int_value,omitempty"`
	DoubleValue *float64 `json:"double_value,omitempty"`
	StringValue *string  `json:"string_value,omitempty"`
}

// WebConnectionRequest is a request received over a connection
type WebConnectionRequest struct {
	ID           WebConnectionRequestID `json:"id"`
	ConnectionID uuid.UUID              `json:"connection_id"`
	Method       string                 `json:"method,omitempty"`
	Params       []byte                 `json:"params,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}
