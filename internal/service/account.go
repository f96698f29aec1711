package service

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/abkawan/toybank-ledger/internal/ledger"
	"github.com/abkawan/toybank-ledger/internal/models"
	"github.com/google/uuid"
)

// creates a new account for the client
func (l *Ledger) CreateAccount(ctx context.Context, token uuid.UUID, req *models.CreateAccountRequest) (*models.AccountResponse, error) {
	facade, err := l.Client(token)
	if err != nil {
		return nil, err
	}

	if req.AccountType == "" {
		return nil, fmt.Errorf("%w: no account type in request", ErrInvalidRequest)
	}
	kind, err := ledger.ParseKind(req.AccountType)
	if err != nil {
		return nil, err
	}
	params, err := accountParams(req.Kwargs)
	if err != nil {
		return nil, err
	}

	account, err := facade.CreateAccount(kind, params)
	if err != nil {
		return nil, err
	}

	l.journalAccount(ctx, token, account)
	l.logger(ctx).Info().
		Str("client", token.String()).
		Str("account", account.ID().String()).
		Str("type", string(kind)).
		Msg("Created account")

	return accountResponse(ledger.Info(account)), nil
}

// lists the client's accounts
func (l *Ledger) ShowAccounts(ctx context.Context, token uuid.UUID) ([]models.AccountResponse, error) {
	facade, err := l.Client(token)
	if err != nil {
		return nil, err
	}

	infos := facade.Accounts()
	response := make([]models.AccountResponse, 0, len(infos))
	for _, info := range infos {
		response = append(response, *accountResponse(info))
	}
	return response, nil
}

// ShowAccount returns one of the client's accounts
func (l *Ledger) ShowAccount(ctx context.Context, token uuid.UUID, accountID string) (*models.AccountResponse, error) {
	facade, err := l.Client(token)
	if err != nil {
		return nil, err
	}
	id, err := ParseID(accountID)
	if err != nil {
		return nil, err
	}

	account, err := facade.Client().Account(id)
	if err != nil {
		return nil, err
	}
	return accountResponse(ledger.Info(account)), nil
}

func accountParams(kw models.AccountKwargs) (ledger.AccountParams, error) {
	params := ledger.AccountParams{
		CreditLimit:  kw.CreditLimit,
		InterestRate: kw.InterestRate,
	}
	if kw.EndDate != nil {
		d, err := civil.ParseDate(*kw.EndDate)
		if err != nil {
			return ledger.AccountParams{}, fmt.Errorf("%w: end_date must be YYYY-MM-DD", ErrInvalidRequest)
		}
		params.EndDate = &d
	}
	return params, nil
}

func accountResponse(info ledger.AccountInfo) *models.AccountResponse {
	return &models.AccountResponse{
		ID:      info.ID.String(),
		Type:    string(info.Type),
		Balance: info.Balance,
	}
}

func (l *Ledger) journalAccount(ctx context.Context, token uuid.UUID, account ledger.Account) {
	if l.store == nil {
		return
	}

	record := &models.AccountRecord{
		ID:        account.ID().String(),
		ClientID:  token.String(),
		BankName:  account.Client().Bank().Name,
		Type:      string(account.Kind()),
		Balance:   account.Balance(),
		CreatedAt: l.now(),
	}
	switch a := account.(type) {
	case *ledger.DepositAccount:
		end := a.EndDate.String()
		record.EndDate = &end
	case *ledger.CreditAccount:
		limit, rate := a.CreditLimit, a.InterestRate
		record.CreditLimit = &limit
		record.InterestRate = &rate
	}

	if err := l.store.SaveAccount(ctx, record); err != nil {
		l.logger(ctx).Error().Err(err).Str("account", record.ID).Msg("Failed to journal account")
	}
}
