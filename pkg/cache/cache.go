// Package cache defines the transfer-result cache fronting the idempotency
// lookup.
//
// The cache is an optimization only: it saves the store round trip on
// obvious replays. Correctness of replay protection never depends on it;
// that rests on the conditioned idempotency marker inside the atomic commit.
package cache

import (
	"context"
	"time"

	"github.com/p2pwallet/wallet/pkg/domain/transfer"
)

// ResultCache stores transfer results keyed by idempotency key.
type ResultCache interface {
	// Get returns the cached result for key, or (nil, nil) on a miss.
	Get(ctx context.Context, key string) (*transfer.Result, error)

	// Set stores the result for key with the given TTL. Best effort;
	// callers may ignore the error.
	Set(ctx context.Context, key string, result *transfer.Result, ttl time.Duration) error
}
