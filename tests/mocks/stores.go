// Package mocks provides in-memory implementations of the stores and
// collaborators for testing.
package mocks

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"sort"
	"sync"

	"github.com/better-wallet/webconnect/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// ErrInjected is returned by mocks configured to fail
var ErrInjected = errors.New("injected failure")

// OwnerKeyStore is an in-memory owner key repository
type OwnerKeyStore struct {
	mu   sync.Mutex
	keys map[common.Address]*types.OwnerKey

	// SaveErr, when set, is returned by Save without storing anything
	SaveErr error
	// ListErr, when set, is returned by List
	ListErr error
	Saves   int
}

// NewOwnerKeyStore creates a store holding the given keys
func NewOwnerKeyStore(keys ...*types.OwnerKey) *OwnerKeyStore {
	s := &OwnerKeyStore{keys: make(map[common.Address]*types.OwnerKey)}
	for _, k := range keys {
		s.keys[k.Address] = k.Clone()
	}
	return s
}

// Create stores a new key
func (s *OwnerKeyStore) Create(ctx context.Context, key *types.OwnerKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key.Address]; ok {
		return errors.New("owner key already exists")
	}
	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}
	s.keys[key.Address] = key.Clone()
	return nil
}

// FindKey returns a copy of the key, nil when absent
func (s *OwnerKeyStore) FindKey(ctx context.Context, owner common.Address) (*types.OwnerKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[owner]
	if !ok {
		return nil, nil
	}
	return k.Clone(), nil
}

// Save replaces the stored key
func (s *OwnerKeyStore) Save(ctx context.Context, key *types.OwnerKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	if _, ok := s.keys[key.Address]; !ok {
		return errors.New("owner key not found")
	}
	s.keys[key.Address] = key.Clone()
	s.Saves++
	return nil
}

// List returns all keys ordered by address
func (s *OwnerKeyStore) List(ctx context.Context) ([]*types.OwnerKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	out := make([]*types.OwnerKey, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, k.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address.Cmp(out[j].Address) < 0 })
	return out, nil
}

// ConnectionStore is an in-memory connection repository
type ConnectionStore struct {
	mu    sync.Mutex
	conns map[uuid.UUID]*types.Connection
	order []uuid.UUID
}

// NewConnectionStore creates an empty store
func NewConnectionStore() *ConnectionStore {
	return &ConnectionStore{conns: make(map[uuid.UUID]*types.Connection)}
}

func (s *ConnectionStore) Create(ctx context.Context, conn *types.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[conn.ID]; ok {
		return errors.New("connection already exists")
	}
	s.conns[conn.ID] = cloneConnection(conn)
	s.order = append(s.order, conn.ID)
	return nil
}

func (s *ConnectionStore) GetByID(ctx context.Context, id uuid.UUID) (*types.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[id]
	if !ok {
		return nil, nil
	}
	return cloneConnection(c), nil
}

func (s *ConnectionStore) Update(ctx context.Context, conn *types.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[conn.ID]; !ok {
		return errors.New("connection not found")
	}
	s.conns[conn.ID] = cloneConnection(conn)
	return nil
}

func (s *ConnectionStore) List(ctx context.Context) ([]*types.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Connection, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneConnection(s.conns[id]))
	}
	return out, nil
}

func cloneConnection(c *types.Connection) *types.Connection {
	cp := *c
	if c.ChainID != nil {
		v := *c.ChainID
		cp.ChainID = &v
	}
	cp.Accounts = append([]common.Address(nil), c.Accounts...)
	if c.LocalPeer != nil {
		p := *c.LocalPeer
		p.Icons = append([]string(nil), c.LocalPeer.Icons...)
		cp.LocalPeer = &p
	}
	if c.RemotePeer != nil {
		p := *c.RemotePeer
		p.Icons = append([]string(nil), c.RemotePeer.Icons...)
		cp.RemotePeer = &p
	}
	return &cp
}

// RequestStore is an in-memory request repository
type RequestStore struct {
	mu   sync.Mutex
	reqs []*types.WebConnectionRequest
}

// NewRequestStore creates an empty store
func NewRequestStore() *RequestStore {
	return &RequestStore{}
}

func (s *RequestStore) Create(ctx context.Context, req *types.WebConnectionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *req
	s.reqs = append(s.reqs, &cp)
	return nil
}

func (s *RequestStore) ListByConnection(ctx context.Context, connectionID uuid.UUID) ([]*types.WebConnectionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.WebConnectionRequest
	for _, r := range s.reqs {
		if r.ConnectionID == connectionID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *RequestStore) Delete(ctx context.Context, connectionID uuid.UUID, id types.WebConnectionRequestID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.reqs {
		if r.ConnectionID == connectionID && sameRequestID(r.ID, id) {
			s.reqs = append(s.reqs[:i], s.reqs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func sameRequestID(a, b types.WebConnectionRequestID) bool {
	switch {
	case a.IntValue != nil && b.IntValue != nil:
		return *a.IntValue == *b.IntValue
	case a.DoubleValue != nil && b.DoubleValue != nil:
		return *a.DoubleValue == *b.DoubleValue
	case a.StringValue != nil && b.StringValue != nil:
		return *a.StringValue == *b.StringValue
	}
	return false
}

// SecureStorage keeps delegate private keys in memory
type SecureStorage struct {
	mu   sync.Mutex
	keys map[common.Address]*ecdsa.PrivateKey

	// SaveErr, when set, is returned by SaveKey without storing anything
	SaveErr error
}

// NewSecureStorage creates an empty storage
func NewSecureStorage() *SecureStorage {
	return &SecureStorage{keys: make(map[common.Address]*ecdsa.PrivateKey)}
}

func (s *SecureStorage) SaveKey(ctx context.Context, key *ecdsa.PrivateKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.keys[crypto.PubkeyToAddress(key.PublicKey)] = key
	return nil
}

func (s *SecureStorage) LoadKey(ctx context.Context, addr common.Address) (*ecdsa.PrivateKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[addr]
	if !ok {
		return nil, nil
	}
	return k, nil
}

// Len returns the number of stored keys
func (s *SecureStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}
