package ledger

import "errors"

var (
	// lookup failures
	ErrAccountNotFound     = errors.New("account not found")
	ErrBankNotFound        = errors.New("bank not found")
	ErrClientNotFound      = errors.New("client not found")
	ErrTransactionNotFound = errors.New("transaction not found")

	// validation failures
	ErrUnknownAccountType = errors.New("unknown account type")
	ErrInvalidParams      = errors.New("invalid account parameters")
	ErrInvalidAmount      = errors.New("amount must be positive")

	// integrity failures
	ErrDuplicateID      = errors.New("duplicate id")
	ErrAlreadyCancelled = errors.New("transaction already cancelled")
	ErrBalanceOverflow  = errors.New("balance out of range")
)
