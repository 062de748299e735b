package mocks

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"github.com/better-wallet/webconnect/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

// MockKMSProvider encrypts with AES-GCM under a random key and counts calls
type MockKMSProvider struct {
	mu           sync.Mutex
	aead         cipher.AEAD
	encryptCalls int
	decryptCalls int
	shouldFail   bool
}

// NewMockKMSProvider creates a new mock KMS provider
func NewMockKMSProvider() *MockKMSProvider {
	key := make([]byte, 32)
	_, _ = rand.Read(key)
	block, _ := aes.NewCipher(key)
	aead, _ := cipher.NewGCM(block)
	return &MockKMSProvider{aead: aead}
}

func (m *MockKMSProvider) Encrypt(ctx context.Context, plaintext, associatedData []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.encryptCalls++
	if m.shouldFail {
		return nil, fmt.Errorf("mock KMS encrypt failure")
	}

	nonce := make([]byte, m.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return m.aead.Seal(nonce, nonce, plaintext, associatedData), nil
}

func (m *MockKMSProvider) Decrypt(ctx context.Context, ciphertext, associatedData []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.decryptCalls++
	if m.shouldFail {
		return nil, fmt.Errorf("mock KMS decrypt failure")
	}
	if len(ciphertext) < m.aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}

	n := m.aead.NonceSize()
	plaintext, err := m.aead.Open(nil, ciphertext[:n], ciphertext[n:], associatedData)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

func (m *MockKMSProvider) Provider() string {
	return "mock"
}

// SetShouldFail configures the mock to fail on all calls
func (m *MockKMSProvider) SetShouldFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFail = fail
}

// Calls returns the number of encrypt and decrypt calls
func (m *MockKMSProvider) Calls() (encrypt, decrypt int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.encryptCalls, m.decryptCalls
}

// DelegateKeyRepo is an in-memory encrypted delegate key repository
type DelegateKeyRepo struct {
	mu   sync.Mutex
	recs map[common.Address]*types.DelegateKeyRecord

	// UpsertErr, when set, is returned by Upsert
	UpsertErr error
}

// NewDelegateKeyRepo creates an empty repository
func NewDelegateKeyRepo() *DelegateKeyRepo {
	return &DelegateKeyRepo{recs: make(map[common.Address]*types.DelegateKeyRecord)}
}

func (r *DelegateKeyRepo) Upsert(ctx context.Context, rec *types.DelegateKeyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.UpsertErr != nil {
		return r.UpsertErr
	}
	cp := *rec
	cp.EncryptedKey = append([]byte(nil), rec.EncryptedKey...)
	r.recs[rec.Address] = &cp
	return nil
}

func (r *DelegateKeyRepo) GetByAddress(ctx context.Context, addr common.Address) (*types.DelegateKeyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[addr]
	if !ok {
		return nil, nil
	}
	cp := *rec
	cp.EncryptedKey = append([]byte(nil), rec.EncryptedKey...)
	return &cp, nil
}

// Put stores rec as is
func (r *DelegateKeyRepo) Put(rec *types.DelegateKeyRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs[rec.Address] = rec
}
