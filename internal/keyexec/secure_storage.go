// Package keyexec keeps delegate private keys encrypted at rest under a KMS.
package keyexec

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/better-wallet/webconnect/internal/crypto"
	"github.com/better-wallet/webconnect/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// DelegateKeyRepo persists encrypted delegate keys
type DelegateKeyRepo interface {
	Upsert(ctx context.Context, rec *types.DelegateKeyRecord) error
	GetByAddress(ctx context.Context, addr common.Address) (*types.DelegateKeyRecord, error)
}

// SecureStorage stores delegate private keys encrypted with a KMSProvider.
// Each ciphertext is bound to the delegate address.
type SecureStorage struct {
	kms  KMSProvider
	repo DelegateKeyRepo
}

// NewSecureStorage creates a secure storage
func NewSecureStorage(kms KMSProvider, repo DelegateKeyRepo) *SecureStorage {
	return &SecureStorage{kms: kms, repo: repo}
}

// SaveKey encrypts and stores key, replacing any key stored for the same address
func (s *SecureStorage) SaveKey(ctx context.Context, key *ecdsa.PrivateKey) error {
	if key == nil {
		return fmt.Errorf("private key is required")
	}
	addr := ethcrypto.PubkeyToAddress(key.PublicKey)

	material := crypto.PrivateKeyToBytes(key)
	defer zero(material)

	ciphertext, err := s.kms.Encrypt(ctx, material, addr.Bytes())
	if err != nil {
		return fmt.Errorf("failed to encrypt delegate key: %w", err)
	}

	rec := &types.DelegateKeyRecord{
		Address:      addr,
		EncryptedKey: ciphertext,
		Provider:     s.kms.Provider(),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("failed to store delegate key: %w", err)
	}
	return nil
}

// LoadKey returns the key stored for addr, nil when there is none
func (s *SecureStorage) LoadKey(ctx context.Context, addr common.Address) (*ecdsa.PrivateKey, error) {
	rec, err := s.repo.GetByAddress(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to load delegate key: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	if rec.Provider != s.kms.Provider() {
		return nil, fmt.Errorf("delegate key was encrypted with %s, configured provider is %s", rec.Provider, s.kms.Provider())
	}

	material, err := s.kms.Decrypt(ctx, rec.EncryptedKey, addr.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt delegate key: %w", err)
	}
	defer zero(material)

	key, err := crypto.BytesToPrivateKey(material)
	if err != nil {
		return nil, fmt.Errorf("invalid delegate key: %w", err)
	}
	if ethcrypto.PubkeyToAddress(key.PublicKey) != addr {
		return nil, fmt.Errorf("stored key does not match delegate %s", addr.Hex())
	}
	return key, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
