// Package ledger defines the transactional key-value store contract the
// wallet core runs against.
//
// The store holds heterogeneous items addressed by a partition key and a
// sort key, and offers exactly two read shapes (point lookup and prefix
// query) plus one write shape: an atomic multi-item commit where every item
// carries an optional precondition and either all items apply or none do.
// The store must evaluate the preconditions of one commit under serializable
// isolation; that guarantee is what keeps balances from going negative under
// concurrent debits.
package ledger

import (
	"context"
	"fmt"
	"strings"
)

// Attribute names shared between the transfer protocol and the store
// adapters.
const (
	AttrBalance      = "balance"
	AttrCurrency     = "currency"
	AttrUpdatedAt    = "updated_at"
	AttrCreatedAt    = "created_at"
	AttrTxID         = "txId"
	AttrType         = "type"
	AttrAmount       = "amount"
	AttrCounterparty = "counterparty"
	AttrSenderID     = "senderId"
	AttrTTL          = "ttl"
)

// Key addresses one item: partition key plus sort key.
type Key struct {
	PK string
	SK string
}

// Item is the attribute map of one stored item, keyed by the Attr* names.
// Numeric attributes are int64.
type Item map[string]any

// WriteKind selects how a ConditionalWrite mutates its item.
type WriteKind int

const (
	// WritePut stores Item as the full new value of the key.
	WritePut WriteKind = iota
	// WriteUpdate adds Add to the item's balance attribute and sets the
	// attributes of Item on top of the existing value.
	WriteUpdate
)

// Condition is the precondition guarding one write. Zero value means
// unconditional. At most one of Absent/Exists is set; MinBalance and
// Currency further constrain an existing item's attributes.
type Condition struct {
	// Absent requires that no item exists at the key.
	Absent bool
	// Exists requires that an item exists at the key.
	Exists bool
	// MinBalance, when non-nil, requires balance >= *MinBalance.
	MinBalance *int64
	// Currency, when non-empty, requires the stored currency to equal it.
	Currency string
}

// ConditionalWrite is one item of an atomic commit.
type ConditionalWrite struct {
	Key       Key
	Kind      WriteKind
	Item      Item
	Add       int64
	Condition Condition
}

// ConditionFailedError reports a commit rejected because one or more
// preconditions did not hold. Failed carries one flag per submitted write,
// in submission order, so callers can translate positional failures into
// domain errors.
type ConditionFailedError struct {
	Failed []bool
}

func (e *ConditionFailedError) Error() string {
	var idx []string
	for i, failed := range e.Failed {
		if failed {
			idx = append(idx, fmt.Sprintf("%d", i))
		}
	}
	return "ledger: precondition failed for write(s) " + strings.Join(idx, ", ")
}

// FailedAt reports whether the write at index i failed its precondition.
func (e *ConditionFailedError) FailedAt(i int) bool {
	return i >= 0 && i < len(e.Failed) && e.Failed[i]
}

// Store is the transactional key-value store the wallet core is built on.
type Store interface {
	// Get returns the item at key, or (nil, nil) when absent. Absence is a
	// normal value, never an error.
	Get(ctx context.Context, key Key) (Item, error)

	// Query returns all items in partition pk whose sort key starts with
	// skPrefix, in ascending sort-key order.
	Query(ctx context.Context, pk, skPrefix string) ([]Item, error)

	// AtomicCommit applies all writes as one indivisible unit. When any
	// precondition fails nothing is applied and the returned error unwraps
	// to a *ConditionFailedError identifying the failing writes.
	AtomicCommit(ctx context.Context, writes []ConditionalWrite) error
}
