package models

import (
	"time"
)

type TransactionKind string

const (
	// Deposit moves cash into an account
	Deposit TransactionKind = "deposit"

	// Withdrawal moves money out of an account as cash
	Withdrawal TransactionKind = "withdrawal"

	// Transfer moves money between two accounts
	Transfer TransactionKind = "transfer"

	// Cancellation reverses an earlier transaction
	Cancellation TransactionKind = "cancellation"
)

// represents the request to deposit or withdraw cash
type CashRequest struct {
	AccountID string `json:"account_id" validate:"required"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
}

// represents the request to move money to another account
type TransferRequest struct {
	FromAccountID string `json:"from_account_id" validate:"required"`
	ToAccountID   string `json:"to_account_id" validate:"required"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	ToBankName    string `json:"to_bank_name,omitempty"`
}

// OperationResponse reports the outcome of a money operation
type OperationResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// represents one history entry, seen from the listed account
type TransactionResponse struct {
	ID           string    `json:"id"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	Counterparty string    `json:"counterparty"`
	Amount       int64     `json:"amount"`
	Timestamp    time.Time `json:"timestamp"`
}

// TransactionEvent describes a committed transaction. It is journaled to the SQL store,
// published to the queue and archived in MongoDB by the processor.
type TransactionEvent struct {
	ID            string          `json:"id" bson:"_id"`
	Kind          TransactionKind `json:"kind" bson:"kind"`
	FromAccountID string          `json:"from_account_id" bson:"from_account_id"`
	ToAccountID   string          `json:"to_account_id" bson:"to_account_id"`
	Amount        int64           `json:"amount" bson:"amount"`
	FromBalance   int64           `json:"from_balance" bson:"from_balance"`
	ToBalance     int64           `json:"to_balance" bson:"to_balance"`
	CancelsID     string          `json:"cancels_id,omitempty" bson:"cancels_id,omitempty"`
	Timestamp     time.Time       `json:"timestamp" bson:"timestamp"`
	ArchivedAt    time.Time       `json:"archived_at,omitempty" bson:"archived_at,omitempty"`
}
