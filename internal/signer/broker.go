package signer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/better-wallet/webconnect/internal/crypto"
	"github.com/better-wallet/webconnect/internal/logger"
	apperrors "github.com/better-wallet/webconnect/pkg/errors"
	"github.com/better-wallet/webconnect/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
)

// PendingRequest is a sign request waiting for the device
type PendingRequest struct {
	ID        uuid.UUID         `json:"id"`
	Owner     common.Address    `json:"owner"`
	Title     string            `json:"title"`
	Tracking  map[string]string `json:"tracking,omitempty"`
	Message   hexutil.Bytes     `json:"message"`
	CreatedAt time.Time         `json:"created_at"`
}

type outcome struct {
	signature []byte
	err       error
}

type pendingEntry struct {
	req    PendingRequest
	result chan outcome
}

// Broker is a Signer that parks each request until a device submits the
// signature or the user cancels it
type Broker struct {
	mu       sync.Mutex
	pending  map[uuid.UUID]*pendingEntry
	keyTypes map[types.KeyType]struct{}
}

// NewBroker creates a broker accepting owner keys of the given types.
// Without types only Ledger keys are accepted.
func NewBroker(keyTypes ...types.KeyType) *Broker {
	if len(keyTypes) == 0 {
		keyTypes = []types.KeyType{types.KeyTypeLedgerNanoX}
	}
	b := &Broker{
		pending:  make(map[uuid.UUID]*pendingEntry),
		keyTypes: make(map[types.KeyType]struct{}, len(keyTypes)),
	}
	for _, t := range keyTypes {
		b.keyTypes[t] = struct{}{}
	}
	return b
}

// Supports reports whether the broker accepts keys of type t
func (b *Broker) Supports(t types.KeyType) bool {
	_, ok := b.keyTypes[t]
	return ok
}

// Sign publishes the request and blocks until it is resolved or ctx is done
func (b *Broker) Sign(ctx context.Context, message []byte, req Request) ([]byte, error) {
	entry := &pendingEntry{
		req: PendingRequest{
			ID:        uuid.New(),
			Owner:     req.Owner,
			Title:     req.Title,
			Tracking:  req.Tracking,
			Message:   append([]byte(nil), message...),
			CreatedAt: time.Now().UTC(),
		},
		result: make(chan outcome, 1),
	}

	b.mu.Lock()
	b.pending[entry.req.ID] = entry
	b.mu.Unlock()

	logger.Info(ctx, "sign request pending", "sign_request_id", entry.req.ID, "owner", req.Owner.Hex())

	select {
	case out := <-entry.result:
		return out.signature, out.err
	case <-ctx.Done():
		b.remove(entry.req.ID)
		return nil, ctx.Err()
	}
}

// Pending lists the unresolved requests, oldest first
func (b *Broker) Pending() []PendingRequest {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]PendingRequest, 0, len(b.pending))
	for _, e := range b.pending {
		out = append(out, e.req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Get returns a pending request
func (b *Broker) Get(id uuid.UUID) (PendingRequest, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.pending[id]
	if !ok {
		return PendingRequest{}, apperrors.ErrSignRequestNotFound
	}
	return e.req, nil
}

// Submit resolves a request with the device signature. The signature must
// recover to the request owner over the message or its EIP-191 hash.
func (b *Broker) Submit(ctx context.Context, id uuid.UUID, signature []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.pending[id]
	if !ok {
		return apperrors.ErrSignRequestNotFound
	}

	recovered, err := crypto.RecoverSigner(e.req.Message, signature, e.req.Owner)
	if err != nil {
		return apperrors.InvalidSignature(err.Error())
	}
	if recovered != e.req.Owner {
		return apperrors.InvalidSignature(fmt.Sprintf("signature recovers to %s, expected %s", recovered.Hex(), e.req.Owner.Hex()))
	}

	delete(b.pending, id)
	e.result <- outcome{signature: append([]byte(nil), signature...)}

	logger.Info(ctx, "sign request signed", "sign_request_id", id)
	return nil
}

// Cancel resolves a request as declined by the user. A request that was
// already resolved is reported as not found.
func (b *Broker) Cancel(ctx context.Context, id uuid.UUID) error {
	return b.fail(ctx, id, ErrCancelled)
}

// Reject resolves a request with a device error other than cancellation
func (b *Broker) Reject(ctx context.Context, id uuid.UUID, reason string) error {
	return b.fail(ctx, id, fmt.Errorf("device error: %s", reason))
}

func (b *Broker) fail(ctx context.Context, id uuid.UUID, err error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.pending[id]
	if !ok {
		return apperrors.ErrSignRequestNotFound
	}
	delete(b.pending, id)
	e.result <- outcome{err: err}

	logger.Info(ctx, "sign request failed", "sign_request_id", id, "error", err)
	return nil
}

func (b *Broker) remove(id uuid.UUID) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}
