package storage

import (
	"context"
	"fmt"

	"github.com/better-wallet/webconnect/pkg/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Request id kinds as stored in connection_requests.id_kind
const (
	requestIDKindInt    = "int"
	requestIDKindDouble = "double"
	requestIDKindString = "string"
)

// RequestRepository handles persistence of requests waiting for an answer
type RequestRepository struct {
	store *Store
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(store *Store) *RequestRepository {
	return &RequestRepository{store: store}
}

// Create stores a request
func (r *RequestRepository) Create(ctx context.Context, req *types.WebConnectionRequest) error {
	kind, err := requestIDKind(req.ID)
	if err != nil {
		return err
	}

	var params []byte
	if len(req.Params) > 0 {
		params = req.Params
	}

	query := `
		INSERT INTO connection_requests (connection_id, id_kind, id_int, id_double, id_string, method, params, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.store.pool.Exec(ctx, query,
		req.ConnectionID,
		kind,
		req.ID.IntValue,
		req.ID.DoubleValue,
		req.ID.StringValue,
		req.Method,
		params,
		req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

// ListByConnection returns the pending requests of a connection, oldest first
func (r *RequestRepository) ListByConnection(ctx context.Context, connectionID uuid.UUID) ([]*types.WebConnectionRequest, error) {
	query := `
		SELECT connection_id, id_kind, id_int, id_double, id_string, method, params, created_at
		FROM connection_requests
		WHERE connection_id = $1
		ORDER BY created_at
	`

	rows, err := r.store.pool.Query(ctx, query, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var reqs []*types.WebConnectionRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return reqs, nil
}

// Delete removes a request and reports whether it existed. The id variant is
// part of the identity: int 1 and double 1.0 are different requests.
func (r *RequestRepository) Delete(ctx context.Context, connectionID uuid.UUID, id types.WebConnectionRequestID) (bool, error) {
	kind, err := requestIDKind(id)
	if err != nil {
		return false, err
	}

	var query string
	var value any
	switch kind {
	case requestIDKindInt:
		query, value = `DELETE FROM connection_requests WHERE connection_id = $1 AND id_kind = 'int' AND id_int = $2`, *id.IntValue
	case requestIDKindDouble:
		query, value = `DELETE FROM connection_requests WHERE connection_id = $1 AND id_kind = 'double' AND id_double = $2`, *id.DoubleValue
	default:
		query, value = `DELETE FROM connection_requests WHERE connection_id = $1 AND id_kind = 'string' AND id_string = $2`, *id.StringValue
	}

	tag, err := r.store.pool.Exec(ctx, query, connectionID, value)
	if err != nil {
		return false, fmt.Errorf("failed to delete request: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanRequest(row pgx.Row) (*types.WebConnectionRequest, error) {
	var (
		req  types.WebConnectionRequest
		kind string
	)
	err := row.Scan(&req.ConnectionID, &kind, &req.ID.IntValue, &req.ID.DoubleValue, &req.ID.StringValue, &req.Method, &req.Params, &req.CreatedAt)
	if err != nil {
		return nil, err
	}

	// keep only the column matching the stored kind
	switch kind {
	case requestIDKindInt:
		req.ID.DoubleValue, req.ID.StringValue = nil, nil
	case requestIDKindDouble:
		req.ID.IntValue, req.ID.StringValue = nil, nil
	case requestIDKindString:
		req.ID.IntValue, req.ID.DoubleValue = nil, nil
	default:
		return nil, fmt.Errorf("unknown request id kind %q", kind)
	}
	return &req, nil
}

func requestIDKind(id types.WebConnectionRequestID) (string, error) {
	switch {
	case id.IntValue != nil:
		return requestIDKindInt, nil
	case id.DoubleValue != nil:
		return requestIDKindDouble, nil
	case id.StringValue != nil:
		return requestIDKindString, nil
	}
	return "", fmt.Errorf("request id is required")
}
