package transfer

// TransferRequest is the request body for POST /transfer. The sender is
// always the authenticated subject, never a body field. Amount is an
// integer in the smallest unit of Currency.
type TransferRequest struct {
	RecipientID    string `json:"recipient_id" validate:"required,min=1"`
	Amount         int64  `json:"amount" validate:"required,gt=0"`
	Currency       string `json:"currency" validate:"required,len=3,uppercase,alpha"`
	IdempotencyKey string `json:"idempotency_key" validate:"required,min=1"`
}
