package ledger

import (
	"bytes"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Transaction moves Amount from From to To.
//
// Transaction(A, B, n) and Transaction(B, A, -n) with the same ID and Time describe the same
// movement; Mirror converts between the two. A Transaction is a value: performing it never
// changes the value itself, and cancelling it commits a new Transaction.
type Transaction struct {
	ID     uuid.UUID
	From   Account
	To     Account
	Amount int64
	Time   time.Time
}

// creates a transaction stamped with the current time
func NewTransaction(from, to Account, amount int64) Transaction {
	return NewTransactionAt(from, to, amount, time.Now())
}

// creates a transaction stamped with the given time
func NewTransactionAt(from, to Account, amount int64, at time.Time) Transaction {
	return Transaction{
		ID:     uuid.New(),
		From:   from,
		To:     to,
		Amount: amount,
		Time:   at,
	}
}

// Mirror returns the same transaction written from the counterparty's side
func (t Transaction) Mirror() Transaction {
	return Transaction{
		ID:     t.ID,
		From:   t.To,
		To:     t.From,
		Amount: -t.Amount,
		Time:   t.Time,
	}
}

// CheckPermissions checks the money leaving From: the account rule and the client rule.
func (t Transaction) CheckPermissions() Permission {
	return t.From.CheckWithdrawPermission(t.Amount, t.Time).
		And(t.From.Client().CheckWithdrawPermission(t))
}

// Receipt is a committed transaction with the balances it left behind
type Receipt struct {
	Transaction
	FromBalance int64
	ToBalance   int64
}

// Perform checks the transaction and its mirror and, if both pass, moves the money
// and records the transaction in both histories. On failure nothing changes.
func (t Transaction) Perform() Permission {
	_, p := t.perform()
	return p
}

// perform is Perform that also reports the balances read under the account locks
func (t Transaction) perform() (Receipt, Permission) {
	unlock := lockPair(t.From, t.To)
	defer unlock()

	checks := t.CheckPermissions().And(t.Mirror().CheckPermissions())
	if !checks.OK() {
		return Receipt{Transaction: t}, checks
	}
	if !t.fits() {
		return Receipt{Transaction: t}, Deny(ReasonBalanceOutOfRange)
	}
	return t.commit(), Allow()
}

// Cancel unconditionally commits the reversing transaction, even if that drives
// the former recipient below its limits, and returns it.
func (t Transaction) Cancel() Transaction {
	return t.CancelAt(time.Now())
}

// CancelAt is Cancel with the reversal stamped at the given time
func (t Transaction) CancelAt(at time.Time) Transaction {
	unlock := lockPair(t.From, t.To)
	defer unlock()

	return t.reverse(NewTransactionAt(t.From, t.To, -t.Amount, at)).Transaction
}

// cancelOnce is CancelAt refusing a transaction that is already cancelled or whose
// reversal does not fit the balances. The check and the reversal share one lock scope.
func (t Transaction) cancelOnce(at time.Time) (Receipt, error) {
	unlock := lockPair(t.From, t.To)
	defer unlock()

	if by, done := t.To.History().CancelledBy(t.ID); done {
		return Receipt{}, fmt.Errorf("%w: %s by %s", ErrAlreadyCancelled, t.ID, by)
	}
	reversal := NewTransactionAt(t.From, t.To, -t.Amount, at)
	if !reversal.fits() {
		return Receipt{}, fmt.Errorf("%w: reversing %s", ErrBalanceOverflow, t.ID)
	}
	return t.reverse(reversal), nil
}

// reverse commits reversal and marks t cancelled by it; both account locks must be held
func (t Transaction) reverse(reversal Transaction) Receipt {
	receipt := reversal.commit()
	t.From.History().markCancelled(t.ID, reversal.ID)
	t.To.History().markCancelled(t.ID, reversal.ID)
	return receipt
}

// fits reports whether both balances stay in range after the move; locks must be held
func (t Transaction) fits() bool {
	return subFits(t.From.state().balance, t.Amount) && addFits(t.To.state().balance, t.Amount)
}

// commit expects both account locks to be held
func (t Transaction) commit() Receipt {
	from, to := t.From.state(), t.To.state()
	from.balance -= t.Amount
	to.balance += t.Amount

	t.To.History().Save(t)
	t.From.History().Save(t.Mirror())
	return Receipt{Transaction: t, FromBalance: from.balance, ToBalance: to.balance}
}

func (t Transaction) String() string {
	return fmt.Sprintf("%s -> %s: %d at %s", shortID(t.From), shortID(t.To), t.Amount, t.Time.Format(time.RFC3339))
}

// lockPair locks both accounts in id order and returns the unlock function
func lockPair(a, b Account) func() {
	sa, sb := a.state(), b.state()
	if sa == sb {
		sa.mu.Lock()
		return sa.mu.Unlock
	}
	if bytes.Compare(sa.id[:], sb.id[:]) > 0 {
		sa, sb = sb, sa
	}
	sa.mu.Lock()
	sb.mu.Lock()
	return func() {
		sb.mu.Unlock()
		sa.mu.Unlock()
	}
}

func shortID(a Account) string {
	s := a.ID().String()
	return "*" + s[len(s)-4:]
}

// TransactionInfo is the transaction as listed in an account statement
type TransactionInfo struct {
	ID     uuid.UUID
	From   uuid.UUID
	To     uuid.UUID
	Amount int64
	Time   time.Time
}

// Describe snapshots a transaction
func Describe(t Transaction) TransactionInfo {
	return TransactionInfo{
		ID:     t.ID,
		From:   t.From.ID(),
		To:     t.To.ID(),
		Amount: t.Amount,
		Time:   t.Time,
	}
}
