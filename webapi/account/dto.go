package account

import "time"

// BalanceResponse is the response body of GET /account/balance.
type BalanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
	Currency  string `json:"currency"`
}

// EntryDTO is the API representation of one history entry.
type EntryDTO struct {
	TxID         string    `json:"txId"`
	Type         string    `json:"type"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
	Counterparty string    `json:"counterparty"`
	CreatedAt    time.Time `json:"created_at"`
}
