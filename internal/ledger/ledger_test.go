package ledger

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// test fixtures shared by the ledger tests

func strptr(s string) *string { return &s }

func newTestBank(t *testing.T, limit int64) *Bank {
	t.Helper()
	b, err := NewBank("test", limit)
	if err != nil {
		t.Fatalf("NewBank: %v", err)
	}
	return b
}

func newVerifiedClient(t *testing.T, b *Bank) *Client {
	t.Helper()
	c, err := NewClient(b, Profile{Name: "Ivan", Surname: "Ivanov", Passport: strptr("0123 456789"), Address: strptr("Moscow")})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func newUnverifiedClient(t *testing.T, b *Bank) *Client {
	t.Helper()
	c, err := NewClient(b, Profile{Name: "Albert", Surname: "Einstein"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func mustCreate(t *testing.T, c *Client, kind Kind, params AccountParams) Account {
	t.Helper()
	a, err := c.CreateAccount(kind, params)
	if err != nil {
		t.Fatalf("CreateAccount(%s): %v", kind, err)
	}
	return a
}

func debit(t *testing.T, c *Client) Account {
	return mustCreate(t, c, KindDebit, AccountParams{})
}

func deposit(t *testing.T, c *Client, end civil.Date) Account {
	return mustCreate(t, c, KindDeposit, AccountParams{EndDate: &end})
}

func credit(t *testing.T, c *Client, limit int64) Account {
	rate := decimal.New(1, -1)
	return mustCreate(t, c, KindCredit, AccountParams{CreditLimit: &limit, InterestRate: &rate})
}

// setBalance stands in for history that is not relevant to the test
func setBalance(a Account, balance int64) {
	s := a.state()
	s.mu.Lock()
	s.balance = balance
	s.mu.Unlock()
}

func wantBalance(t *testing.T, a Account, want int64) {
	t.Helper()
	if got := a.Balance(); got != want {
		t.Fatalf("balance=%d want=%d", got, want)
	}
}

func wantReasons(t *testing.T, p Permission, want ...string) {
	t.Helper()
	got := p.Reasons()
	if len(got) != len(want) {
		t.Fatalf("reasons=%v want=%v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("reasons=%v want=%v", got, want)
		}
	}
}

func today() civil.Date {
	return civil.DateOf(time.Now())
}
