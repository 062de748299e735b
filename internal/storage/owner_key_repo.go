package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/better-wallet/webconnect/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OwnerKeyRepository handles owner key persistence
type OwnerKeyRepository struct {
	store *Store
}

// NewOwnerKeyRepository creates a new owner key repository
func NewOwnerKeyRepository(store *Store) *OwnerKeyRepository {
	return &OwnerKeyRepository{store: store}
}

const ownerKeyColumns = `id, address, name, key_type, delegate_address, created_at, updated_at`

// Create stores a new owner key
func (r *OwnerKeyRepository) Create(ctx context.Context, key *types.OwnerKey) error {
	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}

	query := `
		INSERT INTO owner_keys (id, address, name, key_type, delegate_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	err := r.store.pool.QueryRow(ctx, query,
		key.ID,
		encodeAddress(key.Address),
		key.Name,
		key.KeyType,
		encodeOptionalAddress(key.DelegateAddress),
	).Scan(&key.CreatedAt, &key.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create owner key: %w", err)
	}
	return nil
}

// FindKey returns the owner key with the given address, nil when absent
func (r *OwnerKeyRepository) FindKey(ctx context.Context, owner common.Address) (*types.OwnerKey, error) {
	query := `SELECT ` + ownerKeyColumns + ` FROM owner_keys WHERE address = $1`

	key, err := scanOwnerKey(r.store.pool.QueryRow(ctx, query, encodeAddress(owner)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get owner key: %w", err)
	}
	return key, nil
}

// Save persists the name and delegate address of an existing owner key
func (r *OwnerKeyRepository) Save(ctx context.Context, key *types.OwnerKey) error {
	query := `
		UPDATE owner_keys
		SET name = $2, delegate_address = $3, updated_at = NOW()
		WHERE address = $1
		RETURNING updated_at
	`

	err := r.store.pool.QueryRow(ctx, query,
		encodeAddress(key.Address),
		key.Name,
		encodeOptionalAddress(key.DelegateAddress),
	).Scan(&key.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("owner key %s not found", key.Address.Hex())
		}
		return fmt.Errorf("failed to save owner key: %w", err)
	}
	return nil
}

// List returns all owner keys ordered by creation
func (r *OwnerKeyRepository) List(ctx context.Context) ([]*types.OwnerKey, error) {
	query := `SELECT ` + ownerKeyColumns + ` FROM owner_keys ORDER BY created_at, address`

	rows, err := r.store.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list owner keys: %w", err)
	}
	defer rows.Close()

	var keys []*types.OwnerKey
	for rows.Next() {
		key, err := scanOwnerKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan owner key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list owner keys: %w", err)
	}
	return keys, nil
}

func scanOwnerKey(row pgx.Row) (*types.OwnerKey, error) {
	var (
		key      types.OwnerKey
		address  string
		delegate *string
	)
	if err := row.Scan(&key.ID, &address, &key.Name, &key.KeyType, &delegate, &key.CreatedAt, &key.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if key.Address, err = decodeAddress(address); err != nil {
		return nil, err
	}
	if key.DelegateAddress, err = decodeOptionalAddress(delegate); err != nil {
		return nil, err
	}
	return &key, nil
}
