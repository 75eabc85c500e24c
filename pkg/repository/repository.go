// Package repository defines the data-access contracts consumed by the
// service layer.
package repository

import (
	"context"

	"github.com/p2pwallet/wallet/pkg/domain/transfer"
)

// TransferRepository is the persistence protocol behind the transfer use
// case. Implementations own the ledger key schema and are the sole writers
// of balances, idempotency records and history entries.
type TransferRepository interface {
	// GetByIdempotencyKey returns the result of a previously committed
	// transfer with the given key, or (nil, nil) when the key is unused.
	GetByIdempotencyKey(ctx context.Context, key string) (*transfer.Result, error)

	// ExecuteAtomicTransfer applies the full transfer (debit, credit,
	// idempotency marker and both history entries) as one atomic commit.
	// Conditional failures surface as the transfer domain errors.
	ExecuteAtomicTransfer(ctx context.Context, req transfer.Request) (*transfer.Result, error)

	// GetBalance returns the current balance of an account, or
	// transfer.ErrAccountNotFound.
	GetBalance(ctx context.Context, accountID string) (*transfer.Balance, error)

	// ListTransactions returns the account's history entries in ascending
	// timestamp order. An unknown account yields an empty slice.
	ListTransactions(ctx context.Context, accountID string) ([]transfer.Entry, error)
}
