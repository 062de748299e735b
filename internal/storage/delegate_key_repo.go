package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/better-wallet/webconnect/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

// DelegateKeyRepository handles encrypted delegate key persistence
type DelegateKeyRepository struct {
	store *Store
}

// NewDelegateKeyRepository creates a new delegate key repository
func NewDelegateKeyRepository(store *Store) *DelegateKeyRepository {
	return &DelegateKeyRepository{store: store}
}

// Upsert stores the key, replacing the ciphertext of an existing address
func (r *DelegateKeyRepository) Upsert(ctx context.Context, rec *types.DelegateKeyRecord) error {
	query := `
		INSERT INTO delegate_keys (address, encrypted_key, provider, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (address) DO UPDATE
		SET encrypted_key = EXCLUDED.encrypted_key, provider = EXCLUDED.provider, created_at = NOW()
		RETURNING created_at
	`

	err := r.store.pool.QueryRow(ctx, query, encodeAddress(rec.Address), rec.EncryptedKey, rec.Provider).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to store delegate key: %w", err)
	}
	return nil
}

// GetByAddress returns the stored key, nil when absent
func (r *DelegateKeyRepository) GetByAddress(ctx context.Context, addr common.Address) (*types.DelegateKeyRecord, error) {
	query := `SELECT address, encrypted_key, provider, created_at FROM delegate_keys WHERE address = $1`

	var (
		rec     types.DelegateKeyRecord
		address string
	)
	err := r.store.pool.QueryRow(ctx, query, encodeAddress(addr)).Scan(&address, &rec.EncryptedKey, &rec.Provider, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get delegate key: %w", err)
	}

	if rec.Address, err = decodeAddress(address); err != nil {
		return nil, err
	}
	return &rec, nil
}
