package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/drichman1-maker/coin-agg/internal/model"
)

// PostgresDraftStore implements DraftStore and ReceiptStore for PostgreSQL
type PostgresDraftStore struct {
	pool      *pgxpool.Pool
	retention time.Duration
	logger    *zap.Logger
}

// NewPostgresDraftStore creates a new PostgreSQL draft store
func NewPostgresDraftStore(
	host string,
	port int,
	database, user, password string,
	maxConns, minConns int,
	retention time.Duration,
	logger *zap.Logger,
) (*PostgresDraftStore, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s pool_max_conns=%d pool_min_conns=%d",
		host, port, database, user, password, maxConns, minConns,
	)

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDraftStore{
		pool:      pool,
		retention: retention,
		logger:    logger,
	}, nil
}

// Insert stores a new draft. CreatedAt and ExpiresAt are assigned here, at
// insert time, so expiry is always CreatedAt plus the configured retention
// regardless of database defaults.
func (s *PostgresDraftStore) Insert(ctx context.Context, draft *model.Draft) error {
	draft.CreatedAt = time.Now().UTC()
	draft.ExpiresAt = draft.CreatedAt.Add(s.retention)

	query := `
		INSERT INTO drafts (app_id, type, content, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		draft.AppID,
		string(draft.Type),
		draft.Content,
		draft.CreatedAt,
		draft.ExpiresAt,
	).Scan(&draft.ID)

	if err != nil {
		return fmt.Errorf("failed to insert draft: %w", err)
	}

	return nil
}

// DeleteExpired removes all drafts whose expiry is in the past
func (s *PostgresDraftStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM drafts WHERE expires_at < $1`

	result, err := s.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired drafts: %w", err)
	}

	return result.RowsAffected(), nil
}

// ActiveReceipts returns the tenant's active, non-expired receipts
func (s *PostgresDraftStore) ActiveReceipts(ctx context.Context, tenantID string, now time.Time) ([]*model.Receipt, error) {
	query := `
		SELECT id, app_id, transaction_id, status, expires_at
		FROM receipts
		WHERE app_id = $1 AND status = $2 AND expires_at > $3
		ORDER BY id
	`

	rows, err := s.pool.Query(ctx, query, tenantID, model.ReceiptStatusActive, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	receipts := make([]*model.Receipt, 0)
	for rows.Next() {
		var receipt model.Receipt
		if err := rows.Scan(
			&receipt.ID,
			&receipt.AppID,
			&receipt.TransactionID,
			&receipt.Status,
			&receipt.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		receipts = append(receipts, &receipt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read receipts: %w", err)
	}

	return receipts, nil
}

// Ping checks the database connection
func (s *PostgresDraftStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool
func (s *PostgresDraftStore) Close() {
	s.pool.Close()
}
