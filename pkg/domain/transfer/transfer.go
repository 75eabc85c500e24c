// Package transfer defines the domain model of a peer-to-peer transfer:
// the request and result types, the history read model, and the domain
// errors the transfer pipeline can surface.
package transfer

import (
	"errors"
	"time"

	"github.com/p2pwallet/wallet/pkg/currency"
)

var (
	// ErrInvalidAmount is returned when a transfer amount is zero or negative.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrSelfTransfer is returned when sender and recipient are the same account.
	ErrSelfTransfer = errors.New("self-transfer forbidden")

	// ErrIdempotencyConflict is returned when a concurrent request with the
	// same idempotency key won the commit race.
	ErrIdempotencyConflict = errors.New("idempotency conflict")

	// ErrInsufficientFunds is returned when the sender balance cannot cover
	// the transfer amount, or the sender account currency does not match.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrRecipientNotFound is returned when the recipient account does not exist.
	ErrRecipientNotFound = errors.New("recipient not found")

	// ErrAccountNotFound is returned by balance and history reads for an
	// unknown account.
	ErrAccountNotFound = errors.New("account not found")
)

// Status reports how a transfer request was resolved.
type Status string

const (
	// StatusCompleted means this request committed the transfer.
	StatusCompleted Status = "COMPLETED"
	// StatusCompletedPreviously means the idempotency key was already
	// committed by an earlier request; no new effects were applied.
	StatusCompletedPreviously Status = "COMPLETED_PREVIOUSLY"
)

// Request is a validated transfer command. Amount is an integer in the
// smallest unit of Currency; SenderID comes from the authentication layer,
// never from the request body.
type Request struct {
	SenderID       string
	RecipientID    string
	Amount         int64
	Currency       currency.Code
	IdempotencyKey string
}

// Validate enforces the request invariants that hold before any store
// access: a positive amount and distinct sender and recipient.
func (r Request) Validate() error {
	if r.Amount <= 0 {
		return ErrInvalidAmount
	}
	if r.SenderID == r.RecipientID {
		return ErrSelfTransfer
	}
	return nil
}

// Result is the outcome of a transfer request.
type Result struct {
	TxID   string `json:"txId"`
	Status Status `json:"status"`
}

// EntryType marks which side of a transfer a history entry records.
type EntryType string

const (
	// EntrySent is the sender-side (debit) history entry.
	EntrySent EntryType = "SENT"
	// EntryReceived is the recipient-side (credit) history entry.
	EntryReceived EntryType = "RECEIVED"
)

// Entry is one side of a completed transfer in an account's history.
// Entries are append-only; Amount is negative for SENT and positive for
// RECEIVED.
type Entry struct {
	TxID         string
	Type         EntryType
	Amount       int64
	Currency     currency.Code
	Counterparty string
	CreatedAt    time.Time
}

// Balance is the point-in-time balance of an account.
type Balance struct {
	AccountID string
	Amount    int64
	Currency  currency.Code
}
