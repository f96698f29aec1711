package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/abkawan/toybank-ledger/internal/ledger"
	"github.com/abkawan/toybank-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type fakeStore struct {
	mu       sync.Mutex
	banks    []*models.BankRecord
	clients  []*models.ClientRecord
	accounts []*models.AccountRecord
	events   []*models.TransactionEvent
	fail     error
}

func (s *fakeStore) SaveBank(_ context.Context, b *models.BankRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banks = append(s.banks, b)
	return s.fail
}

func (s *fakeStore) SaveClient(_ context.Context, c *models.ClientRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients = append(s.clients, c)
	return s.fail
}

func (s *fakeStore) SaveAccount(_ context.Context, a *models.AccountRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = append(s.accounts, a)
	return s.fail
}

func (s *fakeStore) RecordTransaction(_ context.Context, e *models.TransactionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.fail
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*models.TransactionEvent
}

func (p *fakePublisher) PublishTransaction(_ context.Context, e *models.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func i64(v int64) *int64 { return &v }
func str(v string) *string { return &v }

func setup(t *testing.T) (*Ledger, *fakeStore, *fakePublisher) {
	t.Helper()
	store, pub := &fakeStore{}, &fakePublisher{}
	l := NewLedger(WithStore(store), WithPublisher(pub))
	if _, err := l.CreateBank(context.Background(), &models.CreateBankRequest{Name: "alpha", UnauthorizedWithdrawalLimit: i64(1000)}); err != nil {
		t.Fatalf("CreateBank: %v", err)
	}
	return l, store, pub
}

func newClient(t *testing.T, l *Ledger, bank string, verified bool) uuid.UUID {
	t.Helper()
	req := &models.CreateClientRequest{Bank: bank, Name: "Ivan", Surname: "Ivanov"}
	if verified {
		req.Passport = str("0123 456789")
		req.Address = str("Moscow")
	}
	resp, err := l.CreateClient(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	token, err := ParseID(resp.ClientToken)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func newAccount(t *testing.T, l *Ledger, token uuid.UUID, req *models.CreateAccountRequest) string {
	t.Helper()
	resp, err := l.CreateAccount(context.Background(), token, req)
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	return resp.ID
}

func TestCreateBank(t *testing.T) {
	l, store, _ := setup(t)
	ctx := context.Background()

	if _, err := l.CreateBank(ctx, &models.CreateBankRequest{Name: "alpha"}); !errors.Is(err, ErrBankExists) {
		t.Fatalf("want ErrBankExists, got %v", err)
	}
	if _, err := l.CreateBank(ctx, &models.CreateBankRequest{Name: " "}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("want ErrInvalidRequest, got %v", err)
	}
	if _, err := l.CreateBank(ctx, &models.CreateBankRequest{Name: "beta", UnauthorizedWithdrawalLimit: i64(-1)}); !errors.Is(err, ledger.ErrInvalidParams) {
		t.Fatalf("want ErrInvalidParams, got %v", err)
	}

	resp, err := l.CreateBank(ctx, &models.CreateBankRequest{Name: "gamma"})
	if err != nil || resp.UnauthorizedWithdrawalLimit != 0 {
		t.Fatalf("CreateBank=%+v,%v", resp, err)
	}
	if len(store.banks) != 2 {
		t.Fatalf("journaled banks=%d want=2", len(store.banks))
	}
}

func TestCreateClient(t *testing.T) {
	l, store, _ := setup(t)
	ctx := context.Background()

	if _, err := l.CreateClient(ctx, &models.CreateClientRequest{Bank: "nope", Name: "a", Surname: "b"}); !errors.Is(err, ledger.ErrBankNotFound) {
		t.Fatalf("want ErrBankNotFound, got %v", err)
	}
	if _, err := l.CreateClient(ctx, &models.CreateClientRequest{Bank: "alpha", Name: "a"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("want ErrInvalidRequest, got %v", err)
	}

	token := newClient(t, l, "alpha", false)
	accounts, err := l.ShowAccounts(ctx, token)
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 1 || accounts[0].Type != string(ledger.KindCash) {
		t.Fatalf("accounts=%+v want the default cash account", accounts)
	}
	if len(store.clients) != 1 || len(store.accounts) != 1 {
		t.Fatalf("journaled clients=%d accounts=%d", len(store.clients), len(store.accounts))
	}

	if _, err := l.ShowAccounts(ctx, uuid.New()); !errors.Is(err, ledger.ErrClientNotFound) {
		t.Fatalf("want ErrClientNotFound, got %v", err)
	}
}

func TestUpdateClient(t *testing.T) {
	l, store, _ := setup(t)
	ctx := context.Background()
	token := newClient(t, l, "alpha", true)

	resp, err := l.UpdateClient(ctx, token, &models.UpdateClientRequest{Name: str("Pyotr"), Passport: str("")})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Name != "Pyotr" || resp.Surname != "Ivanov" || resp.Passport != nil || resp.Verified {
		t.Fatalf("UpdateClient=%+v", resp)
	}

	resp, _ = l.UpdateClient(ctx, token, &models.UpdateClientRequest{Passport: str("9999")})
	if !resp.Verified {
		t.Fatal("client with passport and address is verified")
	}
	if len(store.clients) != 3 {
		t.Fatalf("journaled clients=%d want=3", len(store.clients))
	}
}

func TestCreateAccountRequests(t *testing.T) {
	l, store, _ := setup(t)
	token := newClient(t, l, "alpha", true)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *models.CreateAccountRequest
		want error
	}{
		{"missing type", &models.CreateAccountRequest{}, ErrInvalidRequest},
		{"unknown type", &models.CreateAccountRequest{AccountType: "SuperAccount"}, ledger.ErrUnknownAccountType},
		{"bad date", &models.CreateAccountRequest{AccountType: "DepositAccount", Kwargs: models.AccountKwargs{EndDate: str("01/02/2030")}}, ErrInvalidRequest},
		{"missing rate", &models.CreateAccountRequest{AccountType: "CreditAccount", Kwargs: models.AccountKwargs{CreditLimit: i64(10)}}, ledger.ErrInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.CreateAccount(ctx, token, tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, err)
			}
		})
	}

	rate := decimal.New(15, -2)
	newAccount(t, l, token, &models.CreateAccountRequest{AccountType: "CreditAccount", Kwargs: models.AccountKwargs{CreditLimit: i64(500), InterestRate: &rate}})
	newAccount(t, l, token, &models.CreateAccountRequest{AccountType: "deposit", Kwargs: models.AccountKwargs{EndDate: str("2030-01-02")}})

	// default cash + credit + deposit
	if len(store.accounts) != 3 {
		t.Fatalf("journaled accounts=%d want=3", len(store.accounts))
	}
	creditRow := store.accounts[1]
	if creditRow.CreditLimit == nil || *creditRow.CreditLimit != 500 || !creditRow.InterestRate.Equal(rate) {
		t.Fatalf("credit row=%+v", creditRow)
	}
	if depositRow := store.accounts[2]; depositRow.EndDate == nil || *depositRow.EndDate != "2030-01-02" {
		t.Fatalf("deposit row=%+v", depositRow)
	}
}

func TestMoneyOperationsJournal(t *testing.T) {
	l, store, pub := setup(t)
	ctx := context.Background()
	token := newClient(t, l, "alpha", false)
	account := newAccount(t, l, token, &models.CreateAccountRequest{AccountType: "DebitAccount"})

	_, p, err := l.Withdraw(ctx, token, &models.CashRequest{AccountID: account, Amount: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if p.OK() {
		t.Fatal("withdrawing from an empty debit account must fail")
	}
	if len(store.events) != 0 || len(pub.events) != 0 {
		t.Fatal("rejected transactions are not journaled")
	}

	if _, p, err = l.Deposit(ctx, token, &models.CashRequest{AccountID: account, Amount: 1000}); err != nil || !p.OK() {
		t.Fatalf("Deposit=%s,%v", p, err)
	}
	if _, p, err = l.Withdraw(ctx, token, &models.CashRequest{AccountID: account, Amount: 1000}); err != nil || !p.OK() {
		t.Fatalf("Withdraw=%s,%v", p, err)
	}

	if len(store.events) != 2 || len(pub.events) != 2 {
		t.Fatalf("events store=%d publisher=%d want 2/2", len(store.events), len(pub.events))
	}
	dep, wd := store.events[0], store.events[1]
	if dep.Kind != models.Deposit || dep.ToAccountID != account || dep.ToBalance != 1000 {
		t.Fatalf("deposit event=%+v", dep)
	}
	if wd.Kind != models.Withdrawal || wd.FromAccountID != account || wd.FromBalance != 0 || wd.Amount != 1000 {
		t.Fatalf("withdrawal event=%+v", wd)
	}

	if _, _, err := l.Withdraw(ctx, token, &models.CashRequest{AccountID: "not-a-uuid", Amount: 1}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("want ErrInvalidRequest, got %v", err)
	}
}

func TestSinkFailureDoesNotFailOperation(t *testing.T) {
	store := &fakeStore{fail: errors.New("db down")}
	l := NewLedger(WithStore(store))
	ctx := context.Background()
	if _, err := l.CreateBank(ctx, &models.CreateBankRequest{Name: "alpha"}); err != nil {
		t.Fatal(err)
	}
	token := newClient(t, l, "alpha", true)
	account := newAccount(t, l, token, &models.CreateAccountRequest{AccountType: "DebitAccount"})

	if _, p, err := l.Deposit(ctx, token, &models.CashRequest{AccountID: account, Amount: 10}); err != nil || !p.OK() {
		t.Fatalf("Deposit=%s,%v", p, err)
	}
}

func TestTransferBetweenBanks(t *testing.T) {
	l, _, pub := setup(t)
	ctx := context.Background()
	if _, err := l.CreateBank(ctx, &models.CreateBankRequest{Name: "beta"}); err != nil {
		t.Fatal(err)
	}

	sender := newClient(t, l, "alpha", true)
	receiver := newClient(t, l, "beta", false)
	from := newAccount(t, l, sender, &models.CreateAccountRequest{AccountType: "DebitAccount"})
	to := newAccount(t, l, receiver, &models.CreateAccountRequest{AccountType: "DebitAccount"})
	if _, p, _ := l.Deposit(ctx, sender, &models.CashRequest{AccountID: from, Amount: 1000}); !p.OK() {
		t.Fatalf("Deposit=%s", p)
	}

	req := &models.TransferRequest{FromAccountID: from, ToAccountID: to, Amount: 1000}
	if _, _, err := l.Transfer(ctx, sender, req); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("want ErrAccountNotFound, got %v", err)
	}

	req.ToBankName = "nope"
	if _, _, err := l.Transfer(ctx, sender, req); !errors.Is(err, ledger.ErrBankNotFound) {
		t.Fatalf("want ErrBankNotFound, got %v", err)
	}

	req.ToBankName = "beta"
	tx, p, err := l.Transfer(ctx, sender, req)
	if err != nil || !p.OK() {
		t.Fatalf("Transfer=%s,%v", p, err)
	}

	accounts, _ := l.ShowAccounts(ctx, receiver)
	if accounts[1].Balance != 1000 {
		t.Fatalf("receiver balance=%d want=1000", accounts[1].Balance)
	}

	last := pub.events[len(pub.events)-1]
	if last.ID != tx.ID.String() || last.Kind != models.Transfer || last.ToBalance != 1000 || last.FromBalance != 0 {
		t.Fatalf("transfer event=%+v", last)
	}

	history, err := l.ShowHistory(ctx, receiver, to)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Counterparty != from || history[0].Amount != 1000 {
		t.Fatalf("receiver history=%+v", history)
	}

	history, _ = l.ShowHistory(ctx, sender, from)
	if len(history) != 2 || history[1].Counterparty != to || history[1].Amount != -1000 {
		t.Fatalf("sender history=%+v", history)
	}
}

func TestCancelTransaction(t *testing.T) {
	clock := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	pub := &fakePublisher{}
	l := NewLedger(WithPublisher(pub), WithClock(func() time.Time { return clock }))
	ctx := context.Background()
	if _, err := l.CreateBank(ctx, &models.CreateBankRequest{Name: "alpha"}); err != nil {
		t.Fatal(err)
	}
	token := newClient(t, l, "alpha", true)
	account := newAccount(t, l, token, &models.CreateAccountRequest{AccountType: "DebitAccount"})

	tx, _, _ := l.Deposit(ctx, token, &models.CashRequest{AccountID: account, Amount: 300})
	clock = clock.Add(time.Hour)

	reversal, err := l.CancelTransaction(ctx, token, account, tx.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	if !reversal.Time.Equal(clock) {
		t.Fatalf("reversal time=%s want=%s", reversal.Time, clock)
	}

	accounts, _ := l.ShowAccounts(ctx, token)
	if accounts[1].Balance != 0 {
		t.Fatalf("balance=%d want=0", accounts[1].Balance)
	}

	last := pub.events[len(pub.events)-1]
	if last.Kind != models.Cancellation || last.CancelsID != tx.ID.String() || last.ID != reversal.ID.String() {
		t.Fatalf("cancel event=%+v", last)
	}

	if _, err := l.CancelTransaction(ctx, token, account, tx.ID.String()); !errors.Is(err, ledger.ErrAlreadyCancelled) {
		t.Fatalf("want ErrAlreadyCancelled, got %v", err)
	}
	if _, err := l.CancelTransaction(ctx, token, account, "x"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("want ErrInvalidRequest, got %v", err)
	}
}

func TestShowAccount(t *testing.T) {
	l, _, _ := setup(t)
	ctx := context.Background()
	owner := newClient(t, l, "alpha", true)
	other := newClient(t, l, "alpha", true)
	account := newAccount(t, l, owner, &models.CreateAccountRequest{AccountType: "DebitAccount"})

	resp, err := l.ShowAccount(ctx, owner, account)
	if err != nil {
		t.Fatal(err)
	}
	if resp.ID != account || resp.Type != string(ledger.KindDebit) || resp.Balance != 0 {
		t.Fatalf("ShowAccount=%+v", resp)
	}

	if _, err := l.ShowAccount(ctx, other, account); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("want ErrAccountNotFound, got %v", err)
	}
}

func TestJournaledBalancesFollowCommitOrder(t *testing.T) {
	l, store, _ := setup(t)
	ctx := context.Background()
	token := newClient(t, l, "alpha", true)
	account := newAccount(t, l, token, &models.CreateAccountRequest{AccountType: "DebitAccount"})

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, p, err := l.Deposit(ctx, token, &models.CashRequest{AccountID: account, Amount: 1}); err != nil || !p.OK() {
				t.Errorf("Deposit=%s,%v", p, err)
			}
		}()
	}
	wg.Wait()

	// every commit saw a distinct balance, whatever order the events were journaled in
	seen := make(map[int64]bool, n)
	for _, e := range store.events {
		if e.ToBalance < 1 || e.ToBalance > n || seen[e.ToBalance] {
			t.Fatalf("event balance %d repeated or out of range", e.ToBalance)
		}
		seen[e.ToBalance] = true
		if e.FromBalance != -e.ToBalance {
			t.Fatalf("cash balance=%d want=%d", e.FromBalance, -e.ToBalance)
		}
	}
	if len(seen) != n {
		t.Fatalf("events=%d want=%d", len(seen), n)
	}
}
