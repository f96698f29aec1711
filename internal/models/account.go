package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountKwargs are the variant-specific parameters of a new account
type AccountKwargs struct {
	EndDate      *string          `json:"end_date,omitempty"`
	CreditLimit  *int64           `json:"credit_limit,omitempty"`
	InterestRate *decimal.Decimal `json:"interest_rate,omitempty"`
}

// represents the request to open an account
type CreateAccountRequest struct {
	AccountType string        `json:"account_type" validate:"required"`
	Kwargs      AccountKwargs `json:"kwargs"`
}

// represents the API response for account data
type AccountResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Balance int64  `json:"balance"`
}

// AccountRecord is the persisted row of an account
type AccountRecord struct {
	ID           string           `json:"id" db:"id"`
	ClientID     string           `json:"client_id" db:"client_id"`
	BankName     string           `json:"bank_name" db:"bank_name"`
	Type         string           `json:"type" db:"type"`
	Balance      int64            `json:"balance" db:"balance"`
	EndDate      *string          `json:"end_date,omitempty" db:"end_date"`
	CreditLimit  *int64           `json:"credit_limit,omitempty" db:"credit_limit"`
	InterestRate *decimal.Decimal `json:"interest_rate,omitempty" db:"interest_rate"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
}
