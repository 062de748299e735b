package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/better-wallet/webconnect/internal/delegate"
	"github.com/better-wallet/webconnect/internal/logger"
	"github.com/better-wallet/webconnect/internal/validation"
	apperrors "github.com/better-wallet/webconnect/pkg/errors"
	"github.com/better-wallet/webconnect/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

// CreateOwnerKeyRequest imports an owner key reference
type CreateOwnerKeyRequest struct {
	Address common.Address `json:"address"`
	Name    string         `json:"name"`
	KeyType types.KeyType  `json:"key_type"`
}

// DelegateStatus reports the handshake currently running for an owner
type DelegateStatus struct {
	Owner           common.Address  `json:"owner"`
	State           string          `json:"state"`
	Running         bool            `json:"running"`
	DelegateAddress *common.Address `json:"delegate_address,omitempty"`
}

func ownerAddress(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	raw := r.PathValue("address")
	if err := validation.ValidateEthereumAddress(raw); err != nil {
		writeError(w, r, apperrors.ErrBadRequest.WithDetail(err.Error()))
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func (s *Server) handleCreateOwnerKey(w http.ResponseWriter, r *http.Request) {
	var req CreateOwnerKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Address == (common.Address{}) {
		writeError(w, r, apperrors.ErrBadRequest.WithDetail("address is required"))
		return
	}
	if !req.KeyType.IsValid() {
		writeError(w, r, apperrors.ErrBadRequest.WithDetail(fmt.Sprintf("unknown key_type %q", req.KeyType)))
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = req.Address.Hex()
	}

	existing, err := s.ownerKeys.FindKey(r.Context(), req.Address)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if existing != nil {
		writeError(w, r, apperrors.ErrConflict.WithDetail("owner key already exists"))
		return
	}

	now := time.Now().UTC()
	key := &types.OwnerKey{
		Address:   req.Address,
		Name:      name,
		KeyType:   req.KeyType,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.ownerKeys.Create(r.Context(), key); err != nil {
		writeError(w, r, err)
		return
	}

	logger.Info(r.Context(), "owner key imported", "owner", key.Address.Hex(), "key_type", key.KeyType)
	writeJSON(w, http.StatusCreated, key)
}

func (s *Server) handleListOwnerKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.ownerKeys.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if keys == nil {
		keys = []*types.OwnerKey{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": keys})
}

func (s *Server) handleGetOwnerKey(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerAddress(w, r)
	if !ok {
		return
	}
	key, err := s.ownerKeys.FindKey(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if key == nil {
		writeError(w, r, apperrors.ErrOwnerKeyNotFound)
		return
	}
	writeJSON(w, http.StatusOK, key)
}

// handleRegisterDelegate runs a delegate handshake for the owner. By default
// the request waits for the outcome; with ?async=true it returns 202 once the
// handshake has started and the outcome is only logged.
func (s *Server) handleRegisterDelegate(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerAddress(w, r)
	if !ok {
		return
	}
	ctx := logger.WithAttrs(r.Context(), "owner", owner.Hex())

	if r.URL.Query().Get("async") == "true" {
		err := s.delegates.Start(context.WithoutCancel(ctx), owner, func(res *delegate.Result, err error) {
			if err != nil {
				logger.Warn(ctx, "background delegate registration failed", "error", err)
				return
			}
			logger.Info(ctx, "background delegate registration finished", "delegate", res.Delegate.Hex())
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		state, _ := s.delegates.Running(owner)
		writeJSON(w, http.StatusAccepted, DelegateStatus{Owner: owner, State: state.String(), Running: true})
		return
	}

	res, err := s.delegates.Register(ctx, owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDelegateStatus(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerAddress(w, r)
	if !ok {
		return
	}

	key, err := s.ownerKeys.FindKey(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if key == nil {
		writeError(w, r, apperrors.ErrOwnerKeyNotFound)
		return
	}

	status := DelegateStatus{Owner: owner, DelegateAddress: key.DelegateAddress}
	if state, running := s.delegates.Running(owner); running {
		status.State = state.String()
		status.Running = true
	} else if key.DelegateAddress != nil {
		status.State = delegate.StateCompleted.String()
	} else {
		status.State = delegate.StateIdle.String()
	}
	writeJSON(w, http.StatusOK, status)
}
