// Package repository implements the transfer persistence protocol on top of
// a ledger.Store.
//
// All balance movement goes through one atomic commit of exactly five
// conditional writes; there is no code path that mutates a balance outside
// that commit, so partial transfers are never observable.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/p2pwallet/wallet/pkg/currency"
	"github.com/p2pwallet/wallet/pkg/domain/transfer"
	"github.com/p2pwallet/wallet/pkg/ledger"
)

// Positions of the five writes inside the commit plan. The order is part of
// the contract: the store's conflict report is positional and the priority
// mapping below reads it.
const (
	idxIdempotencyMarker = iota
	idxSenderDebit
	idxRecipientCredit
	idxSenderHistory
	idxRecipientHistory
)

// conflictPriority fixes which failing precondition wins when several fail
// in one commit: a concurrent duplicate outranks insufficient funds, which
// outranks an unknown recipient. The duplicate is the most actionable
// signal for the caller, so it is reported first.
var conflictPriority = []struct {
	index int
	err   error
}{
	{idxIdempotencyMarker, transfer.ErrIdempotencyConflict},
	{idxSenderDebit, transfer.ErrInsufficientFunds},
	{idxRecipientCredit, transfer.ErrRecipientNotFound},
}

// DefaultIdempotencyTTL bounds how long an idempotency record is retained.
// Replay protection is only needed for the client retry horizon.
const DefaultIdempotencyTTL = 24 * time.Hour

// TransferRepository implements repository.TransferRepository against a
// ledger.Store. It is the sole writer of balances, idempotency records and
// history entries.
type TransferRepository struct {
	store   ledger.Store
	logger  *slog.Logger
	idemTTL time.Duration
}

// Option configures a TransferRepository.
type Option func(*TransferRepository)

// WithIdempotencyTTL overrides the idempotency record retention window.
func WithIdempotencyTTL(ttl time.Duration) Option {
	return func(r *TransferRepository) { r.idemTTL = ttl }
}

// New creates a TransferRepository over the given store.
func New(store ledger.Store, logger *slog.Logger, opts ...Option) *TransferRepository {
	r := &TransferRepository{
		store:   store,
		logger:  logger,
		idemTTL: DefaultIdempotencyTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetByIdempotencyKey looks up a previously committed transfer. Absence is
// the normal new-request path and returns (nil, nil).
func (r *TransferRepository) GetByIdempotencyKey(
	ctx context.Context,
	key string,
) (*transfer.Result, error) {
	item, err := r.store.Get(ctx, IdempotencyKey(key))
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	if item == nil {
		return nil, nil
	}
	return &transfer.Result{
		TxID:   itemString(item, ledger.AttrTxID),
		Status: transfer.StatusCompletedPreviously,
	}, nil
}

// ExecuteAtomicTransfer commits the transfer as one atomic unit of five
// conditional writes:
//
//  1. idempotency marker, conditioned on its absence
//  2. sender debit, conditioned on balance >= amount and matching currency
//  3. recipient credit, conditioned on the account existing
//  4. SENT history entry for the sender (negative amount)
//  5. RECEIVED history entry for the recipient (positive amount)
//
// Only the sender side is checked against the request currency; the
// recipient account's stored currency is not consulted.
func (r *TransferRepository) ExecuteAtomicTransfer(
	ctx context.Context,
	req transfer.Request,
) (*transfer.Result, error) {
	txID := uuid.NewString()
	now := time.Now().UTC()
	ts := now.Format(time.RFC3339Nano)

	writes := []ledger.ConditionalWrite{
		idxIdempotencyMarker: {
			Key:  IdempotencyKey(req.IdempotencyKey),
			Kind: ledger.WritePut,
			Item: ledger.Item{
				ledger.AttrTxID:     txID,
				ledger.AttrSenderID: req.SenderID,
				ledger.AttrTTL:      now.Add(r.idemTTL).Unix(),
			},
			Condition: ledger.Condition{Absent: true},
		},
		idxSenderDebit: {
			Key:  AccountKey(req.SenderID),
			Kind: ledger.WriteUpdate,
			Add:  -req.Amount,
			Item: ledger.Item{ledger.AttrUpdatedAt: ts},
			Condition: ledger.Condition{
				MinBalance: &req.Amount,
				Currency:   req.Currency.String(),
			},
		},
		idxRecipientCredit: {
			Key:       AccountKey(req.RecipientID),
			Kind:      ledger.WriteUpdate,
			Add:       req.Amount,
			Item:      ledger.Item{ledger.AttrUpdatedAt: ts},
			Condition: ledger.Condition{Exists: true},
		},
		idxSenderHistory: {
			Key:  HistoryKey(req.SenderID, now, txID),
			Kind: ledger.WritePut,
			Item: entryItem(txID, transfer.EntrySent, -req.Amount, req.Currency, req.RecipientID, ts),
		},
		idxRecipientHistory: {
			Key:  HistoryKey(req.RecipientID, now, txID),
			Kind: ledger.WritePut,
			Item: entryItem(txID, transfer.EntryReceived, req.Amount, req.Currency, req.SenderID, ts),
		},
	}

	if err := r.store.AtomicCommit(ctx, writes); err != nil {
		var cf *ledger.ConditionFailedError
		if errors.As(err, &cf) {
			for _, p := range conflictPriority {
				if cf.FailedAt(p.index) {
					return nil, p.err
				}
			}
		}
		return nil, fmt.Errorf("transfer commit: %w", err)
	}

	r.logger.Info("transfer committed",
		"txId", txID,
		"sender", req.SenderID,
		"recipient", req.RecipientID,
		"amount", req.Amount,
		"currency", req.Currency,
	)
	return &transfer.Result{TxID: txID, Status: transfer.StatusCompleted}, nil
}

// GetBalance reads an account's balance item.
func (r *TransferRepository) GetBalance(
	ctx context.Context,
	accountID string,
) (*transfer.Balance, error) {
	item, err := r.store.Get(ctx, AccountKey(accountID))
	if err != nil {
		return nil, fmt.Errorf("balance lookup: %w", err)
	}
	if item == nil {
		return nil, transfer.ErrAccountNotFound
	}
	return &transfer.Balance{
		AccountID: accountID,
		Amount:    itemInt64(item, ledger.AttrBalance),
		Currency:  currency.Code(itemString(item, ledger.AttrCurrency)),
	}, nil
}

// ListTransactions returns the account's history in ascending
// timestamp+txId order, which is the sort-key order of the history items.
func (r *TransferRepository) ListTransactions(
	ctx context.Context,
	accountID string,
) ([]transfer.Entry, error) {
	items, err := r.store.Query(ctx, userPKPrefix+accountID, txSKPrefix)
	if err != nil {
		return nil, fmt.Errorf("history query: %w", err)
	}
	entries := make([]transfer.Entry, 0, len(items))
	for _, item := range items {
		createdAt, _ := time.Parse(time.RFC3339Nano, itemString(item, ledger.AttrCreatedAt))
		entries = append(entries, transfer.Entry{
			TxID:         itemString(item, ledger.AttrTxID),
			Type:         transfer.EntryType(itemString(item, ledger.AttrType)),
			Amount:       itemInt64(item, ledger.AttrAmount),
			Currency:     currency.Code(itemString(item, ledger.AttrCurrency)),
			Counterparty: itemString(item, ledger.AttrCounterparty),
			CreatedAt:    createdAt,
		})
	}
	return entries, nil
}

func entryItem(
	txID string,
	entryType transfer.EntryType,
	amount int64,
	code currency.Code,
	counterparty, ts string,
) ledger.Item {
	return ledger.Item{
		ledger.AttrTxID:         txID,
		ledger.AttrType:         string(entryType),
		ledger.AttrAmount:       amount,
		ledger.AttrCurrency:     code.String(),
		ledger.AttrCounterparty: counterparty,
		ledger.AttrCreatedAt:    ts,
	}
}

func itemString(item ledger.Item, attr string) string {
	s, _ := item[attr].(string)
	return s
}

// itemInt64 tolerates the numeric types store adapters produce: int64 from
// the in-memory and SQL stores, float64 from attributevalue unmarshaling.
func itemInt64(item ledger.Item, attr string) int64 {
	switch v := item[attr].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
