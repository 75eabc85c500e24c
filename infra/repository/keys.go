package repository

import (
	"time"

	"github.com/p2pwallet/wallet/pkg/ledger"
)

// Single-table key schema. Accounts, idempotency records and history entries
// share one table; the partition key prefix tells them apart and history
// entries sort by timestamp then transaction id within their account
// partition.
const (
	idemPKPrefix = "IDEM#"
	userPKPrefix = "USER#"
	metaSK       = "META"
	profileSK    = "PROFILE"
	txSKPrefix   = "TX#"
)

// IdempotencyKey addresses the idempotency record for a client key.
func IdempotencyKey(key string) ledger.Key {
	return ledger.Key{PK: idemPKPrefix + key, SK: metaSK}
}

// AccountKey addresses an account's balance item.
func AccountKey(accountID string) ledger.Key {
	return ledger.Key{PK: userPKPrefix + accountID, SK: profileSK}
}

// HistoryKey addresses one history entry of an account. The sort key embeds
// the commit timestamp and transaction id, which fixes the per-account
// history order.
func HistoryKey(accountID string, ts time.Time, txID string) ledger.Key {
	return ledger.Key{
		PK: userPKPrefix + accountID,
		SK: txSKPrefix + ts.UTC().Format(time.RFC3339Nano) + "#" + txID,
	}
}
