package store

import (
	"context"
	"errors"
	"time"

	"github.com/drichman1-maker/coin-agg/internal/model"
)

// ErrNotFound is returned when a record is not found
var ErrNotFound = errors.New("not found")

// DraftStore persists encrypted ephemeral drafts. Drafts are write-once;
// there is deliberately no update operation.
type DraftStore interface {
	// Insert stores a new draft and fills in ID, CreatedAt and ExpiresAt.
	Insert(ctx context.Context, draft *model.Draft) error

	// DeleteExpired removes every draft whose expiry is before now and
	// returns the number of rows deleted. Idempotent by construction.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// Health check
	Ping(ctx context.Context) error
	Close()
}

// ReceiptStore reads subscription receipts.
type ReceiptStore interface {
	// ActiveReceipts returns the tenant's receipts that are active and
	// not yet expired at time now.
	ActiveReceipts(ctx context.Context, tenantID string, now time.Time) ([]*model.Receipt, error)
}

// TaskQueue appends background tasks to a durable ordered queue consumed
// by external workers.
type TaskQueue interface {
	Enqueue(ctx context.Context, task *model.BotTask) error
	Ping(ctx context.Context) error
}

// TokenRegistry stores tenant-scoped push notification tokens with a
// bounded lifetime.
type TokenRegistry interface {
	Register(ctx context.Context, tenantID, token string, ttl time.Duration) error
}
