// Package transfer provides the transfer use case: the single entry point
// the web layer calls to move funds between two accounts.
package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/p2pwallet/wallet/pkg/cache"
	"github.com/p2pwallet/wallet/pkg/domain/transfer"
	"github.com/p2pwallet/wallet/pkg/repository"
)

// Service orchestrates validation, the idempotency lookup and the atomic
// commit. It holds no mutable state of its own; all shared state lives in
// the ledger store behind the repository.
type Service struct {
	repo     repository.TransferRepository
	results  cache.ResultCache
	cacheTTL time.Duration
	logger   *slog.Logger
}

// New creates a transfer Service. results may be nil to disable the
// idempotency result cache; the cache only saves round trips, replay
// protection itself is enforced by the commit's marker precondition.
func New(
	repo repository.TransferRepository,
	results cache.ResultCache,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:     repo,
		results:  results,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Execute runs one transfer request end to end.
//
// Validation happens before any store access. A request whose idempotency
// key was already committed returns the stored result with status
// COMPLETED_PREVIOUSLY and causes no mutation. Everything else is delegated
// to the repository's atomic commit; its errors pass through untranslated
// and are never retried here. Retrying with the same idempotency key is
// the caller's job.
func (s *Service) Execute(
	ctx context.Context,
	req transfer.Request,
) (*transfer.Result, error) {
	logger := s.logger.With(
		"sender", req.SenderID,
		"recipient", req.RecipientID,
		"idempotency_key", req.IdempotencyKey,
	)

	if err := req.Validate(); err != nil {
		logger.Warn("transfer rejected by validation", "error", err)
		return nil, err
	}

	if prior, err := s.lookupPrior(ctx, req.IdempotencyKey, logger); err != nil {
		return nil, err
	} else if prior != nil {
		logger.Info("idempotency key already committed, returning prior result",
			"txId", prior.TxID)
		return prior, nil
	}

	res, err := s.repo.ExecuteAtomicTransfer(ctx, req)
	if err != nil {
		logger.Error("transfer failed", "error", err)
		return nil, err
	}

	if s.results != nil {
		if err := s.results.Set(ctx, req.IdempotencyKey, res, s.cacheTTL); err != nil {
			logger.Warn("result cache set failed", "error", err)
		}
	}
	logger.Info("transfer completed", "txId", res.TxID, "amount", req.Amount)
	return res, nil
}

// lookupPrior checks the result cache, then the store. A cache failure is
// logged and ignored; a store failure propagates. Any hit is normalized to
// COMPLETED_PREVIOUSLY, and a store hit is written back to the cache so
// repeated replays of the same key stop paying the store round trip.
func (s *Service) lookupPrior(
	ctx context.Context,
	key string,
	logger *slog.Logger,
) (*transfer.Result, error) {
	if s.results != nil {
		cached, err := s.results.Get(ctx, key)
		if err != nil {
			logger.Warn("result cache get failed", "error", err)
		} else if cached != nil {
			return replayed(cached), nil
		}
	}
	prior, err := s.repo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("idempotency guard: %w", err)
	}
	if prior == nil {
		return nil, nil
	}
	res := replayed(prior)
	if s.results != nil {
		if err := s.results.Set(ctx, key, res, s.cacheTTL); err != nil {
			logger.Warn("result cache set failed", "error", err)
		}
	}
	return res, nil
}

// GetBalance returns the current balance of an account.
func (s *Service) GetBalance(
	ctx context.Context,
	accountID string,
) (*transfer.Balance, error) {
	return s.repo.GetBalance(ctx, accountID)
}

// ListTransactions returns an account's transfer history, oldest first.
func (s *Service) ListTransactions(
	ctx context.Context,
	accountID string,
) ([]transfer.Entry, error) {
	return s.repo.ListTransactions(ctx, accountID)
}

func replayed(r *transfer.Result) *transfer.Result {
	return &transfer.Result{TxID: r.TxID, Status: transfer.StatusCompletedPreviously}
}
