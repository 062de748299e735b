package webconnect

import (
	"context"
	"fmt"
	"time"

	"github.com/better-wallet/webconnect/internal/logger"
	apperrors "github.com/better-wallet/webconnect/pkg/errors"
	"github.com/better-wallet/webconnect/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// ConnectionStore persists connections
type ConnectionStore interface {
	Create(ctx context.Context, conn *types.Connection) error
	GetByID(ctx context.Context, id uuid.UUID) (*types.Connection, error)
	Update(ctx context.Context, conn *types.Connection) error
	List(ctx context.Context) ([]*types.Connection, error)
}

// RequestStore persists requests received over connections until answered
type RequestStore interface {
	Create(ctx context.Context, req *types.WebConnectionRequest) error
	ListByConnection(ctx context.Context, connectionID uuid.UUID) ([]*types.WebConnectionRequest, error)
	Delete(ctx context.Context, connectionID uuid.UUID, id types.WebConnectionRequestID) (bool, error)
}

// OwnerKeyLister lists the owner keys that can be offered to a dapp
type OwnerKeyLister interface {
	List(ctx context.Context) ([]*types.OwnerKey, error)
}

// Controller drives a connection from a scanned code to an approved session
type Controller struct {
	connections ConnectionStore
	requests    RequestStore
	keys        OwnerKeyLister
	transformer *Transformer
	wallet      types.Peer
}

// NewController creates a controller. wallet is the metadata announced as the
// local peer of every new connection.
func NewController(connections ConnectionStore, requests RequestStore, keys OwnerKeyLister, transformer *Transformer, wallet types.Peer) *Controller {
	wallet.Role = types.PeerRoleWallet
	return &Controller{
		connections: connections,
		requests:    requests,
		keys:        keys,
		transformer: transformer,
		wallet:      wallet,
	}
}

// Connect starts a connection from a scanned pairing code
func (c *Controller) Connect(ctx context.Context, code string) (*types.Connection, error) {
	wcURL, err := ParsePairingCode(code)
	if err != nil {
		return nil, err
	}

	if _, err := c.pairableKeys(ctx); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	local := c.wallet
	local.PeerID = uuid.NewString()
	conn := &types.Connection{
		ID:        uuid.New(),
		URL:       wcURL.String(),
		Status:    types.ConnectionStatusConnecting,
		LocalPeer: &local,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := c.connections.Create(ctx, conn); err != nil {
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}

	logger.Info(ctx, "connection created", "connection_id", conn.ID, "topic", wcURL.Topic, "version", wcURL.Version)
	return conn, nil
}

// Handshake applies the session request received from the dapp
func (c *Controller) Handshake(ctx context.Context, id uuid.UUID, session *Session) (*types.Connection, error) {
	conn, err := c.open(ctx, id)
	if err != nil {
		return nil, err
	}

	if conn.RemotePeer == nil {
		conn.RemotePeer = &types.Peer{Role: types.PeerRoleDapp}
	}
	if err := c.transformer.Update(conn, session); err != nil {
		return nil, apperrors.ErrBadRequest.Wrap(err)
	}
	conn.Status = types.ConnectionStatusApproving

	if err := c.save(ctx, conn); err != nil {
		return nil, err
	}

	logger.Info(ctx, "connection handshake", "connection_id", conn.ID, "dapp", conn.RemotePeer.Name, "chain_id", *conn.ChainID)
	return conn, nil
}

// Approve accepts the connection for the given owner accounts and returns
// the session to send back to the dapp
func (c *Controller) Approve(ctx context.Context, id uuid.UUID, accounts []common.Address) (*Session, error) {
	conn, err := c.open(ctx, id)
	if err != nil {
		return nil, err
	}
	if conn.RemotePeer == nil {
		return nil, apperrors.ErrSessionUnavailable
	}
	if len(accounts) == 0 {
		return nil, apperrors.ErrBadRequest.WithDetail("at least one account is required")
	}

	keys, err := c.pairableKeys(ctx)
	if err != nil {
		return nil, err
	}
	allowed := make(map[common.Address]struct{}, len(keys))
	for _, k := range keys {
		allowed[k.Address] = struct{}{}
	}
	for _, a := range accounts {
		if _, ok := allowed[a]; !ok {
			return nil, apperrors.ErrBadRequest.WithDetail(fmt.Sprintf("account %s is not a pairable owner key", a.Hex()))
		}
	}

	conn.SetAccounts(accounts)
	conn.Status = types.ConnectionStatusApproved
	if err := c.save(ctx, conn); err != nil {
		return nil, err
	}

	session, ok := c.transformer.Session(conn)
	if !ok {
		return nil, apperrors.ErrSessionUnavailable
	}

	logger.Info(ctx, "connection approved", "connection_id", conn.ID, "accounts", len(conn.Accounts))
	return session, nil
}

// Reject declines a pending connection
func (c *Controller) Reject(ctx context.Context, id uuid.UUID) (*types.Connection, error) {
	return c.finish(ctx, id, types.ConnectionStatusRejected)
}

// Disconnect closes a connection
func (c *Controller) Disconnect(ctx context.Context, id uuid.UUID) (*types.Connection, error) {
	return c.finish(ctx, id, types.ConnectionStatusClosed)
}

// Get returns a connection by id
func (c *Controller) Get(ctx context.Context, id uuid.UUID) (*types.Connection, error) {
	conn, err := c.connections.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	if conn == nil {
		return nil, apperrors.ErrConnectionNotFound
	}
	return conn, nil
}

// List returns all stored connections
func (c *Controller) List(ctx context.Context) ([]*types.Connection, error) {
	conns, err := c.connections.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	return conns, nil
}

// Session returns the wire session of a connection
func (c *Controller) Session(ctx context.Context, id uuid.UUID) (*Session, error) {
	conn, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	session, ok := c.transformer.Session(conn)
	if !ok {
		return nil, apperrors.ErrSessionUnavailable
	}
	return session, nil
}

// ReceiveRequest stores a JSON-RPC request sent by the dapp
func (c *Controller) ReceiveRequest(ctx context.Context, id uuid.UUID, rpc *RPCRequest) (*types.WebConnectionRequest, error) {
	conn, err := c.open(ctx, id)
	if err != nil {
		return nil, err
	}
	if conn.Status != types.ConnectionStatusApproved {
		return nil, apperrors.ErrSessionUnavailable
	}

	req, ok := c.transformer.Request(rpc.ID)
	if !ok {
		return nil, apperrors.ErrBadRequest.WithDetail("request id is required")
	}
	req.ConnectionID = conn.ID
	req.Method = rpc.Method
	req.Params = rpc.Params
	req.CreatedAt = time.Now().UTC()

	if err := c.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to store request: %w", err)
	}
	return req, nil
}

// PendingRequests returns the unanswered requests of a connection in wire form
func (c *Controller) PendingRequests(ctx context.Context, id uuid.UUID) ([]*RPCRequest, error) {
	if _, err := c.Get(ctx, id); err != nil {
		return nil, err
	}

	stored, err := c.requests.ListByConnection(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	out := make([]*RPCRequest, 0, len(stored))
	for _, req := range stored {
		wireID, ok := c.transformer.RequestID(req)
		if !ok {
			logger.Warn(ctx, "skipping request without id", "connection_id", id, "method", req.Method)
			continue
		}
		out = append(out, &RPCRequest{
			JSONRPC: JSONRPCVersion,
			ID:      wireID,
			Method:  req.Method,
			Params:  req.Params,
		})
	}
	return out, nil
}

// Respond removes a pending request and builds the response envelope for it.
// A nil rpcErr with a nil result answers with a JSON null result.
func (c *Controller) Respond(ctx context.Context, id uuid.UUID, requestID RequestID, result []byte, rpcErr *RPCError) (*RPCResponse, error) {
	req, ok := c.transformer.Request(requestID)
	if !ok {
		return nil, apperrors.ErrBadRequest.WithDetail("request id is required")
	}

	deleted, err := c.requests.Delete(ctx, id, req.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete request: %w", err)
	}
	if !deleted {
		return nil, apperrors.ErrNotFound.WithDetail("request is not pending")
	}

	resp := &RPCResponse{JSONRPC: JSONRPCVersion, ID: requestID, Error: rpcErr}
	if rpcErr == nil {
		resp.Result = result
		if resp.Result == nil {
			resp.Result = []byte("null")
		}
	}
	return resp, nil
}

func (c *Controller) finish(ctx context.Context, id uuid.UUID, status types.ConnectionStatus) (*types.Connection, error) {
	conn, err := c.open(ctx, id)
	if err != nil {
		return nil, err
	}
	conn.Status = status
	if err := c.save(ctx, conn); err != nil {
		return nil, err
	}
	logger.Info(ctx, "connection finished", "connection_id", conn.ID, "status", status)
	return conn, nil
}

func (c *Controller) open(ctx context.Context, id uuid.UUID) (*types.Connection, error) {
	conn, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conn.Status.IsOpen() {
		return nil, apperrors.ErrConflict.WithDetail(fmt.Sprintf("connection is %s", conn.Status))
	}
	return conn, nil
}

func (c *Controller) save(ctx context.Context, conn *types.Connection) error {
	conn.UpdatedAt = time.Now().UTC()
	if err := c.connections.Update(ctx, conn); err != nil {
		return fmt.Errorf("failed to update connection: %w", err)
	}
	return nil
}

// pairableKeys fails when there is nothing a dapp could be connected to
func (c *Controller) pairableKeys(ctx context.Context) ([]*types.OwnerKey, error) {
	keys, err := c.keys.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list owner keys: %w", err)
	}
	if len(keys) == 0 {
		return nil, apperrors.ErrNoOwnerKeys
	}

	pairable := make([]*types.OwnerKey, 0, len(keys))
	for _, k := range keys {
		if k.KeyType.CanPair() {
			pairable = append(pairable, k)
		}
	}
	if len(pairable) == 0 {
		return nil, apperrors.ErrNoPairableKeys
	}
	return pairable, nil
}
