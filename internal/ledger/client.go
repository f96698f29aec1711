package ledger

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Client owns its accounts and carries the identity fields used for authorization.
// Passport and address are optional; a client with both is verified.
type Client struct {
	bank *Bank

	mu       sync.RWMutex
	name     string
	surname  string
	passport *string
	address  *string

	accounts    map[uuid.UUID]Account
	order       []uuid.UUID
	defaultCash Account
}

// Profile is a snapshot of the client's identity fields
type Profile struct {
	Name     string
	Surname  string
	Passport *string
	Address  *string
}

// ProfileUpdate lists the fields to change; nil fields are left as they are.
// ClearPassport and ClearAddress remove the document.
type ProfileUpdate struct {
	Name          *string
	Surname       *string
	Passport      *string
	Address       *string
	ClearPassport bool
	ClearAddress  bool
}

// NewClient creates a client of bank together with its default cash account
func NewClient(bank *Bank, profile Profile) (*Client, error) {
	if bank == nil {
		return nil, ErrBankNotFound
	}
	c := &Client{
		bank:     bank,
		name:     profile.Name,
		surname:  profile.Surname,
		passport: copyString(profile.Passport),
		address:  copyString(profile.Address),
		accounts: make(map[uuid.UUID]Account),
	}

	cash, err := c.CreateAccount(KindCash, AccountParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to create default cash account: %w", err)
	}
	c.defaultCash = cash
	return c, nil
}

func (c *Client) Bank() *Bank { return c.bank }

// DefaultCashAccount is the counterparty of cash deposits and withdrawals
func (c *Client) DefaultCashAccount() Account { return c.defaultCash }

// CreateAccount builds the account and registers it with the client and the bank
func (c *Client) CreateAccount(kind Kind, params AccountParams) (Account, error) {
	account, err := newAccount(kind, c, params)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.accounts[account.ID()]; ok {
		return nil, fmt.Errorf("%w: account %s", ErrDuplicateID, account.ID())
	}
	if err := c.bank.register(account); err != nil {
		return nil, err
	}
	c.accounts[account.ID()] = account
	c.order = append(c.order, account.ID())
	return account, nil
}

// Account returns one of the client's own accounts
func (c *Client) Account(id uuid.UUID) (Account, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	account, ok := c.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return account, nil
}

// Accounts returns the client's accounts in creation order
func (c *Client) Accounts() []Account {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Account, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.accounts[id])
	}
	return out
}

func (c *Client) Profile() Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Profile{
		Name:     c.name,
		Surname:  c.surname,
		Passport: copyString(c.passport),
		Address:  copyString(c.address),
	}
}

// Update applies the non-nil fields of u and returns the new profile
func (c *Client) Update(u ProfileUpdate) Profile {
	c.mu.Lock()
	if u.Name != nil {
		c.name = *u.Name
	}
	if u.Surname != nil {
		c.surname = *u.Surname
	}
	if u.ClearPassport {
		c.passport = nil
	} else if u.Passport != nil {
		c.passport = copyString(u.Passport)
	}
	if u.ClearAddress {
		c.address = nil
	} else if u.Address != nil {
		c.address = copyString(u.Address)
	}
	c.mu.Unlock()

	return c.Profile()
}

// Verified reports whether both passport and address are on file
func (c *Client) Verified() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.passport != nil && c.address != nil
}

// CheckWithdrawPermission applies the bank ceiling to unverified clients.
// Moves between the client's own non-cash accounts are never limited.
func (c *Client) CheckWithdrawPermission(tx Transaction) Permission {
	if c.Verified() {
		return Allow()
	}
	if tx.To.Kind() != KindCash && tx.To.Client() == c {
		return Allow()
	}
	if tx.Amount > c.bank.UnauthorizedWithdrawalLimit {
		return Deny(ReasonUnverifiedLimit)
	}
	return Allow()
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
