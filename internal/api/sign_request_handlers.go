package api

import (
	"net/http"

	"github.com/better-wallet/webconnect/internal/signer"
	apperrors "github.com/better-wallet/webconnect/pkg/errors"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
)

// SubmitSignatureRequest carries the device signature as 0x-prefixed hex
type SubmitSignatureRequest struct {
	Signature string `json:"signature"`
}

// RejectSignRequest reports a device failure other than user cancellation
type RejectSignRequest struct {
	Reason string `json:"reason"`
}

func signRequestID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, apperrors.ErrBadRequest.WithDetail("invalid sign request id"))
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) handleListSignRequests(w http.ResponseWriter, r *http.Request) {
	pending := s.signRequests.Pending()
	if pending == nil {
		pending = []signer.PendingRequest{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": pending})
}

func (s *Server) handleGetSignRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := signRequestID(w, r)
	if !ok {
		return
	}
	req, err := s.signRequests.Get(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleSubmitSignature(w http.ResponseWriter, r *http.Request) {
	id, ok := signRequestID(w, r)
	if !ok {
		return
	}
	var req SubmitSignatureRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sig, err := hexutil.Decode(req.Signature)
	if err != nil {
		writeError(w, r, apperrors.ErrBadRequest.WithDetail("signature must be 0x-prefixed hex"))
		return
	}

	if err := s.signRequests.Submit(r.Context(), id, sig); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancelSignRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := signRequestID(w, r)
	if !ok {
		return
	}
	if err := s.signRequests.Cancel(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRejectSignRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := signRequestID(w, r)
	if !ok {
		return
	}
	var req RejectSignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Reason == "" {
		req.Reason = "unknown"
	}
	if err := s.signRequests.Reject(r.Context(), id, req.Reason); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
