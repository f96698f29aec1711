package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/abkawan/toybank-ledger/internal/ledger"
	"github.com/abkawan/toybank-ledger/internal/logger"
	"github.com/abkawan/toybank-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidRequest marks malformed input: bad ids, dates or missing fields
	ErrInvalidRequest = errors.New("invalid request")

	// ErrBankExists is returned when a bank name is taken
	ErrBankExists = errors.New("bank already exists")
)

// Store keeps a durable copy of the registry and of committed transactions
type Store interface {
	SaveBank(ctx context.Context, bank *models.BankRecord) error
	SaveClient(ctx context.Context, client *models.ClientRecord) error
	SaveAccount(ctx context.Context, account *models.AccountRecord) error
	RecordTransaction(ctx context.Context, event *models.TransactionEvent) error
}

// Publisher announces committed transactions
type Publisher interface {
	PublishTransaction(ctx context.Context, event *models.TransactionEvent) error
}

// Ledger is the registry of banks (by name) and clients (by token) and the entry point
// for every operation callers may run. It is created once at startup.
type Ledger struct {
	mu      sync.RWMutex
	banks   map[string]*ledger.Bank
	clients map[uuid.UUID]*ledger.ClientFacade

	store     Store
	publisher Publisher
	log       zerolog.Logger
	now       func() time.Time
}

// Option configures a Ledger
type Option func(*Ledger)

// WithStore journals the registry and committed transactions to s
func WithStore(s Store) Option {
	return func(l *Ledger) { l.store = s }
}

// WithPublisher announces committed transactions through p
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

func WithLogger(log zerolog.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithClock replaces time.Now for transaction timestamps
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// creates a new Ledger
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		banks:   make(map[string]*ledger.Bank),
		clients: make(map[uuid.UUID]*ledger.ClientFacade),
		log:     zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CreateBank registers a new bank under a unique name
func (l *Ledger) CreateBank(ctx context.Context, req *models.CreateBankRequest) (*models.BankResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: bank name is required", ErrInvalidRequest)
	}
	var limit int64
	if req.UnauthorizedWithdrawalLimit != nil {
		limit = *req.UnauthorizedWithdrawalLimit
	}

	bank, err := ledger.NewBank(name, limit)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	if _, ok := l.banks[name]; ok {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrBankExists, name)
	}
	l.banks[name] = bank
	l.mu.Unlock()

	if l.store != nil {
		record := &models.BankRecord{Name: name, UnauthorizedWithdrawalLimit: limit, CreatedAt: l.now()}
		if err := l.store.SaveBank(ctx, record); err != nil {
			l.logger(ctx).Error().Err(err).Str("bank", name).Msg("Failed to journal bank")
		}
	}

	l.logger(ctx).Info().Str("bank", name).Int64("unauthorized_withdrawal_limit", limit).Msg("Created bank")
	return &models.BankResponse{Name: name, UnauthorizedWithdrawalLimit: limit}, nil
}

// Bank finds a bank by name
func (l *Ledger) Bank(name string) (*ledger.Bank, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	bank, ok := l.banks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrBankNotFound, name)
	}
	return bank, nil
}

// CreateClient registers a client with a bank and returns its token
func (l *Ledger) CreateClient(ctx context.Context, req *models.CreateClientRequest) (*models.ClientResponse, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Surname) == "" {
		return nil, fmt.Errorf("%w: name and surname are required", ErrInvalidRequest)
	}
	bank, err := l.Bank(req.Bank)
	if err != nil {
		return nil, err
	}

	client, err := ledger.NewClient(bank, ledger.Profile{
		Name:     req.Name,
		Surname:  req.Surname,
		Passport: nonEmpty(req.Passport),
		Address:  nonEmpty(req.Address),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	facade := ledger.NewClientFacade(client, ledger.WithClock(l.now))

	token := uuid.New()
	l.mu.Lock()
	if _, ok := l.clients[token]; ok {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: client token %s", ledger.ErrDuplicateID, token)
	}
	l.clients[token] = facade
	l.mu.Unlock()

	l.journalClient(ctx, token, client)
	l.journalAccount(ctx, token, client.DefaultCashAccount())

	l.logger(ctx).Info().Str("bank", bank.Name).Str("client", token.String()).Msg("Created client")
	return clientResponse(token, client), nil
}

// Client finds a client facade by token
func (l *Ledger) Client(token uuid.UUID) (*ledger.ClientFacade, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	facade, ok := l.clients[token]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrClientNotFound, token)
	}
	return facade, nil
}

// UpdateClient changes the fields present in the request
func (l *Ledger) UpdateClient(ctx context.Context, token uuid.UUID, req *models.UpdateClientRequest) (*models.ClientResponse, error) {
	facade, err := l.Client(token)
	if err != nil {
		return nil, err
	}

	update := ledger.ProfileUpdate{Name: req.Name, Surname: req.Surname}
	if req.Passport != nil {
		if strings.TrimSpace(*req.Passport) == "" {
			update.ClearPassport = true
		} else {
			update.Passport = req.Passport
		}
	}
	if req.Address != nil {
		if strings.TrimSpace(*req.Address) == "" {
			update.ClearAddress = true
		} else {
			update.Address = req.Address
		}
	}
	facade.Client().Update(update)

	l.journalClient(ctx, token, facade.Client())
	l.logger(ctx).Info().Str("client", token.String()).Bool("verified", facade.Client().Verified()).Msg("Updated client")
	return clientResponse(token, facade.Client()), nil
}

func (l *Ledger) journalClient(ctx context.Context, token uuid.UUID, client *ledger.Client) {
	if l.store == nil {
		return
	}
	p := client.Profile()
	record := &models.ClientRecord{
		ID:        token.String(),
		BankName:  client.Bank().Name,
		Name:      p.Name,
		Surname:   p.Surname,
		Passport:  p.Passport,
		Address:   p.Address,
		UpdatedAt: l.now(),
	}
	if err := l.store.SaveClient(ctx, record); err != nil {
		l.logger(ctx).Error().Err(err).Str("client", token.String()).Msg("Failed to journal client")
	}
}

func clientResponse(token uuid.UUID, client *ledger.Client) *models.ClientResponse {
	p := client.Profile()
	return &models.ClientResponse{
		ClientToken: token.String(),
		Bank:        client.Bank().Name,
		Name:        p.Name,
		Surname:     p.Surname,
		Passport:    p.Passport,
		Address:     p.Address,
		Verified:    client.Verified(),
	}
}

// logger prefers the request-scoped logger carried by ctx
func (l *Ledger) logger(ctx context.Context) *zerolog.Logger {
	log := logger.FromContextOr(ctx, l.log)
	return &log
}

// ParseID parses an account, transaction or client identifier
func ParseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed id %q", ErrInvalidRequest, s)
	}
	return id, nil
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
