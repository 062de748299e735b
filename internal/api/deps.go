package api

import (
	"context"

	"github.com/better-wallet/webconnect/internal/delegate"
	"github.com/better-wallet/webconnect/internal/signer"
	"github.com/better-wallet/webconnect/internal/webconnect"
	"github.com/better-wallet/webconnect/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Connections is the subset of webconnect.Controller used by the API layer.
// It is an interface to allow handler-level unit tests without a database.
type Connections interface {
	Connect(ctx context.Context, code string) (*types.Connection, error)
	Handshake(ctx context.Context, id uuid.UUID, session *webconnect.Session) (*types.Connection, error)
	Approve(ctx context.Context, id uuid.UUID, accounts []common.Address) (*webconnect.Session, error)
	Reject(ctx context.Context, id uuid.UUID) (*types.Connection, error)
	Disconnect(ctx context.Context, id uuid.UUID) (*types.Connection, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Connection, error)
	List(ctx context.Context) ([]*types.Connection, error)
	Session(ctx context.Context, id uuid.UUID) (*webconnect.Session, error)
	ReceiveRequest(ctx context.Context, id uuid.UUID, rpc *webconnect.RPCRequest) (*types.WebConnectionRequest, error)
	PendingRequests(ctx context.Context, id uuid.UUID) ([]*webconnect.RPCRequest, error)
	Respond(ctx context.Context, id uuid.UUID, requestID webconnect.RequestID, result []byte, rpcErr *webconnect.RPCError) (*webconnect.RPCResponse, error)
}

// Delegates runs delegate key handshakes
type Delegates interface {
	Register(ctx context.Context, owner common.Address) (*delegate.Result, error)
	Start(ctx context.Context, owner common.Address, completion func(*delegate.Result, error)) error
	Running(owner common.Address) (delegate.State, bool)
}

// OwnerKeys stores owner keys
type OwnerKeys interface {
	Create(ctx context.Context, key *types.OwnerKey) error
	FindKey(ctx context.Context, owner common.Address) (*types.OwnerKey, error)
	List(ctx context.Context) ([]*types.OwnerKey, error)
}

// SignRequests hands delegate sign requests to the signing device
type SignRequests interface {
	Pending() []signer.PendingRequest
	Get(id uuid.UUID) (signer.PendingRequest, error)
	Submit(ctx context.Context, id uuid.UUID, signature []byte) error
	Cancel(ctx context.Context, id uuid.UUID) error
	Reject(ctx context.Context, id uuid.UUID, reason string) error
}

var (
	_ Connections  = (*webconnect.Controller)(nil)
	_ Delegates    = (*delegate.Service)(nil)
	_ SignRequests = (*signer.Broker)(nil)
)
