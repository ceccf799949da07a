package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus is the lifecycle state of a journaled money movement.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s TransactionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// User is an identity record. The core only ever references its ID; credentials
// live at the boundary.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Account belongs to one user and holds per-currency balances. Immutable after
// creation.
type Account struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Balances  []Balance `json:"balances,omitempty"`
}

// Balance is the amount an account holds in one currency. At most one row per
// (account, currency) pair; the amount never goes negative.
type Balance struct {
	ID        int64           `json:"id"`
	AccountID int64           `json:"account_id"`
	Currency  string          `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`
}

// Transaction is the immutable-once-terminal audit record of a balance
// mutation. A withdrawal is journaled with SenderID == ReceiverID.
type Transaction struct {
	ID         uuid.UUID         `json:"id"`
	SenderID   int64             `json:"sender_id"`
	ReceiverID int64             `json:"receiver_id"`
	Amount     decimal.Decimal   `json:"amount"`
	Currency   string            `json:"currency"`
	Status     TransactionStatus `json:"status"`
	StartedAt  time.Time         `json:"started_at"`
	EndedAt    *time.Time        `json:"ended_at,omitempty"`
}

// TransferRequest is the payload for moving money between two accounts.
type TransferRequest struct {
	SenderID   int64           `json:"sender_id"`
	ReceiverID int64           `json:"receiver_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
}

// WithdrawRequest is the payload for a single-account debit.
type WithdrawRequest struct {
	AccountID int64           `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

// TransferResult is the canonical success response for a transfer.
type TransferResult struct {
	Transaction     Transaction `json:"transaction"`
	SenderBalance   Balance     `json:"sender_balance"`
	ReceiverBalance Balance     `json:"receiver_balance"`
}

// WithdrawResult is the canonical success response for a withdrawal.
type WithdrawResult struct {
	Transaction Transaction `json:"transaction"`
	Balance     Balance     `json:"balance"`
}

// AccountHistory groups the journal entries touching one account.
type AccountHistory struct {
	AccountID int64         `json:"account_id"`
	Sent      []Transaction `json:"sent_transactions"`
	Received  []Transaction `json:"received_transactions"`
}

// IdempotencyRecord holds the stored outcome of a previously seen request key.
type IdempotencyRecord struct {
	Key            string
	RequestHash    string
	Status         string
	TransactionID  uuid.UUID
	ResponseStatus int
	ResponseBody   []byte
}
