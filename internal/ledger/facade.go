package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ClientFacade binds a client to the operations its callers may run.
//
// Money operations return a Receipt for the transaction they built, its Permission and an error.
// The error is set only for lookup and validation failures, in which case nothing was built.
// A failed Permission means the transaction was built but not committed.
type ClientFacade struct {
	client *Client
	now    func() time.Time
}

// FacadeOption configures a ClientFacade
type FacadeOption func(*ClientFacade)

// WithClock replaces time.Now as the source of transaction timestamps
func WithClock(now func() time.Time) FacadeOption {
	return func(f *ClientFacade) {
		f.now = now
	}
}

func NewClientFacade(client *Client, opts ...FacadeOption) *ClientFacade {
	f := &ClientFacade{client: client, now: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *ClientFacade) Client() *Client { return f.client }

// CreateAccount creates an account of the given kind for the client
func (f *ClientFacade) CreateAccount(kind Kind, params AccountParams) (Account, error) {
	account, err := f.client.CreateAccount(kind, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return account, nil
}

// Withdraw moves amount from the account to the client's cash account
func (f *ClientFacade) Withdraw(accountID uuid.UUID, amount int64) (Receipt, Permission, error) {
	if amount <= 0 {
		return Receipt{}, Permission{}, ErrInvalidAmount
	}
	account, err := f.client.Account(accountID)
	if err != nil {
		return Receipt{}, Permission{}, err
	}

	tx := NewTransactionAt(account, f.client.DefaultCashAccount(), amount, f.now())
	receipt, p := tx.perform()
	return receipt, p, nil
}

// Deposit moves amount from the client's cash account to the account
func (f *ClientFacade) Deposit(accountID uuid.UUID, amount int64) (Receipt, Permission, error) {
	if amount <= 0 {
		return Receipt{}, Permission{}, ErrInvalidAmount
	}
	account, err := f.client.Account(accountID)
	if err != nil {
		return Receipt{}, Permission{}, err
	}

	tx := NewTransactionAt(f.client.DefaultCashAccount(), account, amount, f.now())
	receipt, p := tx.perform()
	return receipt, p, nil
}

// Transfer moves amount to an account of toBank. A nil toBank means the client's own bank.
func (f *ClientFacade) Transfer(fromID, toID uuid.UUID, amount int64, toBank *Bank) (Receipt, Permission, error) {
	if amount <= 0 {
		return Receipt{}, Permission{}, ErrInvalidAmount
	}
	from, err := f.client.Account(fromID)
	if err != nil {
		return Receipt{}, Permission{}, err
	}
	if toBank == nil {
		toBank = f.client.Bank()
	}
	to, err := toBank.Account(toID)
	if err != nil {
		return Receipt{}, Permission{}, fmt.Errorf("receiver: %w", err)
	}

	tx := NewTransactionAt(from, to, amount, f.now())
	receipt, p := tx.perform()
	return receipt, p, nil
}

// Accounts lists the client's accounts
func (f *ClientFacade) Accounts() []AccountInfo {
	accounts := f.client.Accounts()
	out := make([]AccountInfo, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, Info(a))
	}
	return out
}

// History lists the settled transactions of one of the client's accounts, oldest first
func (f *ClientFacade) History(accountID uuid.UUID) ([]TransactionInfo, error) {
	account, err := f.client.Account(accountID)
	if err != nil {
		return nil, err
	}

	txs := account.History().See()
	out := make([]TransactionInfo, 0, len(txs))
	for _, tx := range txs {
		out = append(out, Describe(tx))
	}
	return out, nil
}

// CancelTransaction reverses a transaction found in the history of one of the client's
// accounts. The reversal skips permission checks; a transaction is cancelled at most once.
func (f *ClientFacade) CancelTransaction(accountID, txID uuid.UUID) (Receipt, error) {
	account, err := f.client.Account(accountID)
	if err != nil {
		return Receipt{}, err
	}

	tx, ok := account.History().Get(txID)
	if !ok {
		return Receipt{}, fmt.Errorf("%w: %s", ErrTransactionNotFound, txID)
	}
	return tx.cancelOnce(f.now())
}
