package ledger

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind names an account variant
type Kind string

const (
	KindDebit   Kind = "DebitAccount"
	KindDeposit Kind = "DepositAccount"
	KindCredit  Kind = "CreditAccount"
	KindCash    Kind = "CashAccount"
)

// ParseKind accepts the variant tag ("DebitAccount") or its short form ("debit"), case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debitaccount", "debit":
		return KindDebit, nil
	case "depositaccount", "deposit":
		return KindDeposit, nil
	case "creditaccount", "credit":
		return KindCredit, nil
	case "cashaccount", "cash":
		return KindCash, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAccountType, s)
}

// Account is a balance holder with a variant-specific withdrawal rule.
//
// CheckWithdrawPermission is a pure check; balances only change through a Transaction.
type Account interface {
	ID() uuid.UUID
	Kind() Kind
	Client() *Client
	Balance() int64
	History() *History
	CheckWithdrawPermission(amount int64, asOf time.Time) Permission

	state() *accountState
}

// accountState is the part shared by all variants
type accountState struct {
	mu      sync.Mutex
	id      uuid.UUID
	client  *Client
	balance int64
	history *History
}

func (s *accountState) init(client *Client) {
	s.id = uuid.New()
	s.client = client
	s.history = NewHistory()
}

func (s *accountState) ID() uuid.UUID { return s.id }
func (s *accountState) Client() *Client { return s.client }
func (s *accountState) History() *History { return s.history }
func (s *accountState) state() *accountState { return s }

// Balance returns the current balance in minor units
func (s *accountState) Balance() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

// subFits reports whether a-b does not overflow
func subFits(a, b int64) bool {
	return (b >= 0) == (a-b <= a)
}

// addFits reports whether a+b does not overflow
func addFits(a, b int64) bool {
	return (b >= 0) == (a+b >= a)
}

// DebitAccount must never go negative
type DebitAccount struct {
	accountState
}

func (a *DebitAccount) Kind() Kind { return KindDebit }

func (a *DebitAccount) CheckWithdrawPermission(amount int64, _ time.Time) Permission {
	if a.balance < amount {
		return Deny(ReasonInsufficientFunds)
	}
	return Allow()
}

// DepositAccount refuses withdrawals before EndDate. Money coming in is always accepted.
type DepositAccount struct {
	accountState
	EndDate civil.Date
}

func (a *DepositAccount) Kind() Kind { return KindDeposit }

func (a *DepositAccount) CheckWithdrawPermission(amount int64, asOf time.Time) Permission {
	if amount > 0 && civil.DateOf(asOf).Before(a.EndDate) {
		return Deny(ReasonBeforeMaturity)
	}
	if a.balance < amount {
		return Deny(ReasonInsufficientFunds)
	}
	return Allow()
}

// CreditAccount may go down to -CreditLimit. InterestRate is stored, not applied.
type CreditAccount struct {
	accountState
	CreditLimit  int64
	InterestRate decimal.Decimal
}

func (a *CreditAccount) Kind() Kind { return KindCredit }

func (a *CreditAccount) CheckWithdrawPermission(amount int64, _ time.Time) Permission {
	if !subFits(a.balance, amount) {
		// only a huge withdrawal can wrap below the floor; a wrapped deposit is refused at commit
		if amount > 0 {
			return Deny(ReasonInsufficientFunds)
		}
		return Allow()
	}
	if a.balance-amount < -a.CreditLimit {
		return Deny(ReasonInsufficientFunds)
	}
	return Allow()
}

// CashAccount is the unconstrained counterparty of cash deposits and withdrawals
type CashAccount struct {
	accountState
}

func (a *CashAccount) Kind() Kind { return KindCash }

func (a *CashAccount) CheckWithdrawPermission(int64, time.Time) Permission {
	return Allow()
}

// AccountParams holds the variant-specific creation parameters.
// Deposit needs EndDate; Credit needs CreditLimit and InterestRate; the others take none.
type AccountParams struct {
	EndDate      *civil.Date
	CreditLimit  *int64
	InterestRate *decimal.Decimal
}

func (p AccountParams) empty() bool {
	return p.EndDate == nil && p.CreditLimit == nil && p.InterestRate == nil
}

// newAccount validates the parameters and builds the requested variant
func newAccount(kind Kind, client *Client, params AccountParams) (Account, error) {
	var account Account
	switch kind {
	case KindDebit:
		if !params.empty() {
			return nil, fmt.Errorf("%w: %s takes no parameters", ErrInvalidParams, kind)
		}
		account = &DebitAccount{}

	case KindCash:
		if !params.empty() {
			return nil, fmt.Errorf("%w: %s takes no parameters", ErrInvalidParams, kind)
		}
		account = &CashAccount{}

	case KindDeposit:
		if params.CreditLimit != nil || params.InterestRate != nil {
			return nil, fmt.Errorf("%w: %s only takes end_date", ErrInvalidParams, kind)
		}
		if params.EndDate == nil || !params.EndDate.IsValid() {
			return nil, fmt.Errorf("%w: %s requires a valid end_date", ErrInvalidParams, kind)
		}
		account = &DepositAccount{EndDate: *params.EndDate}

	case KindCredit:
		if params.EndDate != nil {
			return nil, fmt.Errorf("%w: %s does not take end_date", ErrInvalidParams, kind)
		}
		if params.CreditLimit == nil || params.InterestRate == nil {
			return nil, fmt.Errorf("%w: %s requires credit_limit and interest_rate", ErrInvalidParams, kind)
		}
		if *params.CreditLimit < 0 {
			return nil, fmt.Errorf("%w: credit_limit cannot be negative", ErrInvalidParams)
		}
		if params.InterestRate.IsNegative() {
			return nil, fmt.Errorf("%w: interest_rate cannot be negative", ErrInvalidParams)
		}
		account = &CreditAccount{CreditLimit: *params.CreditLimit, InterestRate: *params.InterestRate}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAccountType, kind)
	}

	account.state().init(client)
	return account, nil
}

// AccountInfo is a point-in-time view of an account
type AccountInfo struct {
	ID      uuid.UUID
	Type    Kind
	Balance int64
}

// Info snapshots an account
func Info(a Account) AccountInfo {
	return AccountInfo{ID: a.ID(), Type: a.Kind(), Balance: a.Balance()}
}
