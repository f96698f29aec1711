package ledger

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Bank indexes the accounts of all its clients and holds the withdrawal ceiling
// for clients without full documentation. Accounts are owned by their Client.
type Bank struct {
	Name                        string
	UnauthorizedWithdrawalLimit int64

	mu       sync.RWMutex
	accounts map[uuid.UUID]Account
}

// creates a new bank; a negative limit is rejected
func NewBank(name string, unauthorizedWithdrawalLimit int64) (*Bank, error) {
	if unauthorizedWithdrawalLimit < 0 {
		return nil, fmt.Errorf("%w: unauthorized withdrawal limit cannot be negative", ErrInvalidParams)
	}
	return &Bank{
		Name:                        name,
		UnauthorizedWithdrawalLimit: unauthorizedWithdrawalLimit,
		accounts:                    make(map[uuid.UUID]Account),
	}, nil
}

// Account finds an account of any client of this bank
func (b *Bank) Account(id uuid.UUID) (Account, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	account, ok := b.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return account, nil
}

func (b *Bank) register(account Account) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.accounts[account.ID()]; ok {
		return fmt.Errorf("%w: account %s", ErrDuplicateID, account.ID())
	}
	b.accounts[account.ID()] = account
	return nil
}
