package mocks

import (
	"context"
	"crypto/ecdsa"
	"sync"

	"github.com/better-wallet/webconnect/internal/gateway"
	"github.com/better-wallet/webconnect/internal/notify"
	"github.com/better-wallet/webconnect/internal/signer"
	"github.com/better-wallet/webconnect/pkg/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeySigner signs with an in-memory owner key
type KeySigner struct {
	Key      *ecdsa.PrivateKey
	KeyTypes []types.KeyType

	// Err, when set, is returned by Sign
	Err error
	// Override, when set, is returned by Sign instead of a real signature
	Override []byte

	mu       sync.Mutex
	requests []signer.Request
}

// Supports reports whether t is one of KeyTypes. An empty list accepts all.
func (s *KeySigner) Supports(t types.KeyType) bool {
	if len(s.KeyTypes) == 0 {
		return true
	}
	for _, kt := range s.KeyTypes {
		if kt == t {
			return true
		}
	}
	return false
}

// Sign signs message directly, without a prefix
func (s *KeySigner) Sign(ctx context.Context, message []byte, req signer.Request) ([]byte, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	if s.Override != nil {
		return s.Override, nil
	}
	return crypto.Sign(message, s.Key)
}

// Requests returns the sign requests received so far
func (s *KeySigner) Requests() []signer.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]signer.Request(nil), s.requests...)
}

// Backend records create delegate calls. Calls for chains in Hang block
// until their context is done.
type Backend struct {
	Errors map[string]error
	Hang   map[string]bool

	// Started receives the chain id of every call, when not nil
	Started chan string

	mu    sync.Mutex
	calls []gateway.CreateDelegateRequest
}

// NewBackend creates a backend that accepts every call
func NewBackend() *Backend {
	return &Backend{Errors: map[string]error{}, Hang: map[string]bool{}}
}

func (b *Backend) CreateDelegate(ctx context.Context, req gateway.CreateDelegateRequest) error {
	b.mu.Lock()
	b.calls = append(b.calls, req)
	hang := b.Hang[req.ChainID]
	err := b.Errors[req.ChainID]
	b.mu.Unlock()

	if b.Started != nil {
		b.Started <- req.ChainID
	}
	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

// Calls returns the requests received so far
func (b *Backend) Calls() []gateway.CreateDelegateRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]gateway.CreateDelegateRequest(nil), b.calls...)
}

// Notifier records posted events
type Notifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *Notifier) Post(ctx context.Context, ev notify.Event) {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
}

// Events returns the events posted so far
func (n *Notifier) Events() []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Event(nil), n.events...)
}
