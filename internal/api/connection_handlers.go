package api

import (
	"encoding/json"
	"net/http"

	"github.com/better-wallet/webconnect/internal/logger"
	"github.com/better-wallet/webconnect/internal/webconnect"
	apperrors "github.com/better-wallet/webconnect/pkg/errors"
	"github.com/better-wallet/webconnect/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// ConnectRequest carries a scanned pairing code
type ConnectRequest struct {
	Code string `json:"code"`
}

// ApproveRequest lists the owner addresses exposed to the dapp
type ApproveRequest struct {
	Accounts []common.Address `json:"accounts"`
}

// RespondRequest answers a pending dapp request. Exactly one of Result and
// Error is used; a missing result answers null.
type RespondRequest struct {
	ID     webconnect.RequestID `json:"id"`
	Result json.RawMessage      `json:"result,omitempty"`
	Error  *webconnect.RPCError `json:"error,omitempty"`
}

func (s *Server) connectionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, apperrors.ErrBadRequest.WithDetail("invalid connection id"))
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) observeConnection(conn *types.Connection) {
	if conn != nil {
		s.opts.Metrics.ObserveConnection(string(conn.Status))
	}
}

// handleConnect starts a connection from a scanned code
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := s.connections.Connect(r.Context(), req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.observeConnection(conn)
	writeJSON(w, http.StatusCreated, conn)
}

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := s.connections.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if conns == nil {
		conns = []*types.Connection{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": conns})
}

func (s *Server) handleGetConnection(w http.ResponseWriter, r *http.Request) {
	id, ok := s.connectionID(w, r)
	if !ok {
		return
	}
	conn, err := s.connections.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

// handleHandshake applies the session request received from the dapp
func (s *Server) handleHandshake(w http.ResponseWriter, r *http.Request) {
	id, ok := s.connectionID(w, r)
	if !ok {
		return
	}
	var session webconnect.Session
	if err := decodeJSON(r, &session); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := logger.WithAttrs(r.Context(), "connection_id", id.String())
	conn, err := s.connections.Handshake(ctx, id, &session)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.observeConnection(conn)
	writeJSON(w, http.StatusOK, conn)
}

// handleApprove approves the connection and returns the wire session for the
// dapp
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, ok := s.connectionID(w, r)
	if !ok {
		return
	}
	var req ApproveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := logger.WithAttrs(r.Context(), "connection_id", id.String())
	session, err := s.connections.Approve(ctx, id, req.Accounts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.opts.Metrics.ObserveConnection(string(types.ConnectionStatusApproved))
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id, ok := s.connectionID(w, r)
	if !ok {
		return
	}
	conn, err := s.connections.Reject(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.observeConnection(conn)
	writeJSON(w, http.StatusOK, conn)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	id, ok := s.connectionID(w, r)
	if !ok {
		return
	}
	conn, err := s.connections.Disconnect(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.observeConnection(conn)
	writeJSON(w, http.StatusOK, conn)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.connectionID(w, r)
	if !ok {
		return
	}
	session, err := s.connections.Session(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleReceiveRequest queues a JSON-RPC request sent by the dapp
func (s *Server) handleReceiveRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := s.connectionID(w, r)
	if !ok {
		return
	}
	var rpc webconnect.RPCRequest
	if err := decodeJSON(r, &rpc); err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := s.connections.ReceiveRequest(r.Context(), id, &rpc); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"id": rpc.ID, "status": "pending"})
}

func (s *Server) handlePendingRequests(w http.ResponseWriter, r *http.Request) {
	id, ok := s.connectionID(w, r)
	if !ok {
		return
	}
	reqs, err := s.connections.PendingRequests(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if reqs == nil {
		reqs = []*webconnect.RPCRequest{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": reqs})
}

// handleRespond answers a pending request and returns the JSON-RPC response
// to relay to the dapp
func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	id, ok := s.connectionID(w, r)
	if !ok {
		return
	}
	var req RespondRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ID.IsZero() {
		writeError(w, r, apperrors.ErrBadRequest.WithDetail("id is required"))
		return
	}

	resp, err := s.connections.Respond(r.Context(), id, req.ID, req.Result, req.Error)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
