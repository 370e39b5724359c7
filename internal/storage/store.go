package storage

import (
	"context"
	"fmt"

	"github.com/dhruv457457/AutoPay/pkg/types"
)

// Store is the Authorization Store plus the payment activity log. One
// delegation is kept per subscriber smart account; writes replace, never
// merge. No component outside the HTTP handlers writes delegations.
type Store interface {
	// UpsertDelegation validates the subscriber address and delegation
	// payload, then creates or replaces the record for that subscriber.
	UpsertDelegation(ctx context.Context, subscriber string, d types.Delegation) (*types.StoredDelegation, error)

	// GetDelegation returns the record for a subscriber, or *types.NotFoundError.
	GetDelegation(ctx context.Context, subscriber string) (*types.StoredDelegation, error)

	// ListDelegations returns all records, most recently written first.
	ListDelegations(ctx context.Context) ([]*types.StoredDelegation, error)

	// DeleteDelegation removes the record, or returns *types.NotFoundError.
	DeleteDelegation(ctx context.Context, subscriber string) error

	// CreatePaymentAttempt persists a new attempt row.
	CreatePaymentAttempt(ctx context.Context, attempt *types.PaymentAttempt) error

	// UpdatePaymentAttempt rewrites an existing attempt row by ID.
	UpdatePaymentAttempt(ctx context.Context, attempt *types.PaymentAttempt) error

	// ListPaymentAttempts returns attempts matching the filter, newest first.
	ListPaymentAttempts(ctx context.Context, filter types.AttemptFilter) ([]*types.PaymentAttempt, error)

	// Ping reports backend connectivity for health checks.
	Ping(ctx context.Context) error

	Close() error
}

// Open constructs the store selected by the config. Connection failure here
// is fatal to the process at startup.
func Open(cfg StorageConfig) (Store, error) {
	switch cfg.Mode {
	case "", "local":
		return openSQLite(cfg.Local)
	case "postgres":
		return openPostgres(cfg.Postgres)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage mode %q", cfg.Mode)
	}
}

// normalizeSubscriber validates and case-folds the store key.
func normalizeSubscriber(subscriber string) (string, error) {
	if !types.IsHexAddress(subscriber) {
		return "", &types.ValidationError{Field: "subscriber", Reason: "must be a 0x-prefixed 20-byte hex address"}
	}
	return types.NormalizeAddress(subscriber), nil
}
