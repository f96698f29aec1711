package ledger

import (
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

// newPair returns a funded debit account and a deposit account that never matures
func newPair(t *testing.T) (*Client, Account, Account) {
	t.Helper()
	c := newVerifiedClient(t, newTestBank(t, 1000))
	from := debit(t, c)
	to := deposit(t, c, civil.Date{Year: 9999, Month: 1, Day: 1})
	setBalance(from, 10_000)
	setBalance(to, 10_000)
	return c, from, to
}

func TestPerformValid(t *testing.T) {
	_, from, to := newPair(t)
	tx := NewTransaction(from, to, 1000)

	if p := tx.Perform(); !p.OK() {
		t.Fatalf("Perform()=%s", p)
	}
	wantBalance(t, from, 9000)
	wantBalance(t, to, 11_000)
}

func TestPerformInvalidLeavesBalances(t *testing.T) {
	_, from, to := newPair(t)
	tx := NewTransaction(from, to, 11_000)

	p := tx.Perform()
	wantReasons(t, p, ReasonInsufficientFunds)
	wantBalance(t, from, 10_000)
	wantBalance(t, to, 10_000)
	if from.History().Len() != 0 || to.History().Len() != 0 {
		t.Fatal("uncommitted transaction must not reach history")
	}
}

func TestPerformSavesBothSides(t *testing.T) {
	_, from, to := newPair(t)
	tx := NewTransaction(from, to, 1000)
	tx.Perform()

	got, ok := to.History().Get(tx.ID)
	if !ok || got != tx {
		t.Fatalf("receiver history=%v,%v want %v", got, ok, tx)
	}
	got, ok = from.History().Get(tx.ID)
	if !ok || got != tx.Mirror() {
		t.Fatalf("sender history=%v,%v want %v", got, ok, tx.Mirror())
	}
}

func TestMirror(t *testing.T) {
	_, from, to := newPair(t)
	tx := NewTransaction(from, to, 1000)
	m := tx.Mirror()

	if m == tx {
		t.Fatal("mirror must differ from the original")
	}
	if m.ID != tx.ID || !m.Time.Equal(tx.Time) {
		t.Fatal("mirror must share id and time")
	}
	if m.From != to || m.To != from || m.Amount != -1000 {
		t.Fatalf("mirror=%v", m)
	}
	if m.Mirror() != tx {
		t.Fatal("mirror of mirror must be the original")
	}

	if p := m.Perform(); !p.OK() {
		t.Fatalf("mirror Perform()=%s", p)
	}
	wantBalance(t, from, 9000)
	wantBalance(t, to, 11_000)

	big := NewTransaction(from, to, 11_000)
	if big.Mirror().Perform().OK() {
		t.Fatal("mirror of an impossible transaction must fail")
	}
}

// perform(A,B,n) succeeds iff perform(B,A,-n) does, with the same effect
func TestMirrorSymmetry(t *testing.T) {
	type world struct {
		a, b Account
	}
	build := func(t *testing.T) world {
		b := newTestBank(t, 500)
		owner := newUnverifiedClient(t, b)
		other := newVerifiedClient(t, b)
		w := world{a: debit(t, owner), b: credit(t, other, 300)}
		setBalance(w.a, 1000)
		setBalance(w.b, 100)
		return w
	}

	for _, n := range []int64{-2000, -401, -400, -1, 0, 1, 499, 500, 501, 1000, 1001} {
		w1, w2 := build(t), build(t)
		at := time.Now()

		tx := NewTransactionAt(w1.a, w1.b, n, at)
		mirror := NewTransactionAt(w2.b, w2.a, -n, at)

		p1, p2 := tx.Perform(), mirror.Perform()
		if p1.OK() != p2.OK() {
			t.Fatalf("n=%d: perform=%s mirror=%s", n, p1, p2)
		}
		if w1.a.Balance() != w2.a.Balance() || w1.b.Balance() != w2.b.Balance() {
			t.Fatalf("n=%d: balances differ: %d/%d vs %d/%d", n,
				w1.a.Balance(), w1.b.Balance(), w2.a.Balance(), w2.b.Balance())
		}
	}
}

func TestNegativeAmountChecksRealSender(t *testing.T) {
	_, from, to := newPair(t)
	// a negative amount pulls money out of `to`, which is a locked deposit
	tx := NewTransaction(from, to, -1000)
	wantReasons(t, tx.Perform(), ReasonBeforeMaturity)
	wantBalance(t, from, 10_000)
	wantBalance(t, to, 10_000)
}

func TestCancelRoundTrip(t *testing.T) {
	_, from, to := newPair(t)
	tx := NewTransaction(from, to, 1000)
	tx.Perform()

	reversal := tx.Cancel()
	if reversal.ID == tx.ID || reversal.Amount != -1000 || reversal.From != from || reversal.To != to {
		t.Fatalf("reversal=%v", reversal)
	}
	wantBalance(t, from, 10_000)
	wantBalance(t, to, 10_000)
	if from.History().Len() != 2 || to.History().Len() != 2 {
		t.Fatalf("history lens %d/%d want 2/2", from.History().Len(), to.History().Len())
	}
	if by, ok := to.History().CancelledBy(tx.ID); !ok || by != reversal.ID {
		t.Fatalf("CancelledBy=%v,%v", by, ok)
	}
}

func TestCancelBypassesChecks(t *testing.T) {
	c := newVerifiedClient(t, newTestBank(t, 0))
	a, b := debit(t, c), debit(t, c)
	setBalance(a, 1000)

	tx := NewTransaction(a, b, 1000)
	if !tx.Perform().OK() {
		t.Fatal("transfer should succeed")
	}
	// the receiver spent the money in the meantime
	setBalance(b, 0)

	tx.Cancel()
	wantBalance(t, a, 1000)
	wantBalance(t, b, -1000)
}

func TestUnverifiedClientCeiling(t *testing.T) {
	b := newTestBank(t, 1000)
	c := newUnverifiedClient(t, b)
	other := newVerifiedClient(t, b)
	from, own := debit(t, c), debit(t, c)
	foreign := debit(t, other)

	tests := []struct {
		name   string
		to     Account
		amount int64
		want   []string
	}{
		{"cash at limit", c.DefaultCashAccount(), 1000, nil},
		{"cash above limit", c.DefaultCashAccount(), 1001, []string{ReasonUnverifiedLimit}},
		{"other client at limit", foreign, 1000, nil},
		{"other client above limit", foreign, 1001, []string{ReasonUnverifiedLimit}},
		{"own account above limit", own, 5000, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBalance(from, 10_000)
			wantReasons(t, NewTransaction(from, tt.to, tt.amount).CheckPermissions(), tt.want...)
		})
	}

	c.Update(ProfileUpdate{Passport: strptr("1"), Address: strptr("2")})
	wantReasons(t, NewTransaction(from, c.DefaultCashAccount(), 5000).CheckPermissions())
}

func TestUnverifiedDepositIsNotLimited(t *testing.T) {
	c := newUnverifiedClient(t, newTestBank(t, 0))
	to := deposit(t, c, civil.Date{Year: 9999, Month: 1, Day: 1})

	tx := NewTransaction(c.DefaultCashAccount(), to, 10_000)
	wantReasons(t, tx.CheckPermissions())
	wantReasons(t, tx.Perform())
	wantBalance(t, to, 10_000)
}

func TestReasonsAccumulate(t *testing.T) {
	c := newUnverifiedClient(t, newTestBank(t, 1000))
	a := debit(t, c)

	tx := NewTransaction(a, c.DefaultCashAccount(), 2000)
	wantReasons(t, tx.Perform(), ReasonInsufficientFunds, ReasonUnverifiedLimit)
}

func TestConcurrentTransfersKeepTotal(t *testing.T) {
	c := newVerifiedClient(t, newTestBank(t, 0))
	a, b := debit(t, c), debit(t, c)
	setBalance(a, 1000)
	setBalance(b, 1000)

	const n = 200
	var wg sync.WaitGroup
	wg.Add(2 * n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			NewTransaction(a, b, 1).Perform()
		}()
		go func() {
			defer wg.Done()
			NewTransaction(b, a, 1).Perform()
		}()
	}
	wg.Wait()

	if total := a.Balance() + b.Balance(); total != 2000 {
		t.Fatalf("total=%d want=2000", total)
	}
	if a.Balance() < 0 || b.Balance() < 0 {
		t.Fatalf("negative debit balance: %d %d", a.Balance(), b.Balance())
	}
	if got := a.History().Len(); got != 2*n {
		t.Fatalf("history len=%d want=%d", got, 2*n)
	}
}

func TestTransactionString(t *testing.T) {
	_, from, to := newPair(t)
	tx := NewTransactionAt(from, to, 5, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	want := shortID(from) + " -> " + shortID(to) + ": 5 at 2024-01-02T03:04:05Z"
	if got := tx.String(); got != want {
		t.Fatalf("String()=%q want %q", got, want)
	}
}

// a debit account left negative by a cancel accepts only deposits that bring it back to zero
func TestIncomingMoneyBelowFloor(t *testing.T) {
	c := newVerifiedClient(t, newTestBank(t, 0))
	a := debit(t, c)
	setBalance(a, -100)

	wantReasons(t, NewTransaction(c.DefaultCashAccount(), a, 50).Perform(), ReasonInsufficientFunds)
	wantBalance(t, a, -100)

	wantReasons(t, NewTransaction(c.DefaultCashAccount(), a, 150).Perform())
	wantBalance(t, a, 50)
}
