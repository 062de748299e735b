package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/better-wallet/webconnect/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ConnectionRepository handles connection persistence. Peers are stored as
// JSONB documents.
type ConnectionRepository struct {
	store *Store
}

// NewConnectionRepository creates a new connection repository
func NewConnectionRepository(store *Store) *ConnectionRepository {
	return &ConnectionRepository{store: store}
}

const connectionColumns = `id, url, status, chain_id, accounts, local_peer, remote_peer, created_at, updated_at`

// Create stores a new connection
func (r *ConnectionRepository) Create(ctx context.Context, conn *types.Connection) error {
	local, remote, err := encodePeers(conn)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO connections (` + connectionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.store.pool.Exec(ctx, query,
		conn.ID,
		conn.URL,
		conn.Status,
		conn.ChainID,
		encodeAccounts(conn.Accounts),
		local,
		remote,
		conn.CreatedAt,
		conn.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create connection: %w", err)
	}
	return nil
}

// GetByID returns a connection, nil when absent
func (r *ConnectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*types.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`

	conn, err := scanConnection(r.store.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return conn, nil
}

// Update replaces the mutable fields of a connection
func (r *ConnectionRepository) Update(ctx context.Context, conn *types.Connection) error {
	local, remote, err := encodePeers(conn)
	if err != nil {
		return err
	}

	query := `
		UPDATE connections
		SET url = $2, status = $3, chain_id = $4, accounts = $5, local_peer = $6, remote_peer = $7, updated_at = $8
		WHERE id = $1
	`
	tag, err := r.store.pool.Exec(ctx, query,
		conn.ID,
		conn.URL,
		conn.Status,
		conn.ChainID,
		encodeAccounts(conn.Accounts),
		local,
		remote,
		conn.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("connection %s not found", conn.ID)
	}
	return nil
}

// List returns all connections, newest first
func (r *ConnectionRepository) List(ctx context.Context) ([]*types.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections ORDER BY created_at DESC`

	rows, err := r.store.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	var conns []*types.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		conns = append(conns, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	return conns, nil
}

func scanConnection(row pgx.Row) (*types.Connection, error) {
	var (
		conn     types.Connection
		accounts []string
		local    []byte
		remote   []byte
	)
	err := row.Scan(&conn.ID, &conn.URL, &conn.Status, &conn.ChainID, &accounts, &local, &remote, &conn.CreatedAt, &conn.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if conn.Accounts, err = decodeAccounts(accounts); err != nil {
		return nil, err
	}
	if conn.LocalPeer, err = decodePeer(local); err != nil {
		return nil, fmt.Errorf("invalid local peer: %w", err)
	}
	if conn.RemotePeer, err = decodePeer(remote); err != nil {
		return nil, fmt.Errorf("invalid remote peer: %w", err)
	}
	return &conn, nil
}

func encodePeers(conn *types.Connection) (local, remote []byte, err error) {
	if local, err = encodePeer(conn.LocalPeer); err != nil {
		return nil, nil, fmt.Errorf("failed to encode local peer: %w", err)
	}
	if remote, err = encodePeer(conn.RemotePeer); err != nil {
		return nil, nil, fmt.Errorf("failed to encode remote peer: %w", err)
	}
	return local, remote, nil
}

func encodePeer(p *types.Peer) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

func decodePeer(data []byte) (*types.Peer, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var p types.Peer
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func encodeAccounts(accounts []common.Address) []string {
	out := make([]string, len(accounts))
	for i, a := range accounts {
		out[i] = encodeAddress(a)
	}
	return out
}

func decodeAccounts(accounts []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(accounts))
	for _, s := range accounts {
		a, err := decodeAddress(s)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
