package service

import (
	"context"
	"fmt"

	"github.com/abkawan/toybank-ledger/internal/ledger"
	"github.com/abkawan/toybank-ledger/internal/models"
	"github.com/google/uuid"
)

// withdraws cash from one of the client's accounts
func (l *Ledger) Withdraw(ctx context.Context, token uuid.UUID, req *models.CashRequest) (ledger.Transaction, ledger.Permission, error) {
	facade, err := l.Client(token)
	if err != nil {
		return ledger.Transaction{}, ledger.Permission{}, err
	}
	accountID, err := ParseID(req.AccountID)
	if err != nil {
		return ledger.Transaction{}, ledger.Permission{}, err
	}

	receipt, p, err := facade.Withdraw(accountID, req.Amount)
	if err != nil {
		return ledger.Transaction{}, p, err
	}
	l.settle(ctx, models.Withdrawal, receipt, p, nil)
	return receipt.Transaction, p, nil
}

// deposits cash into one of the client's accounts
func (l *Ledger) Deposit(ctx context.Context, token uuid.UUID, req *models.CashRequest) (ledger.Transaction, ledger.Permission, error) {
	facade, err := l.Client(token)
	if err != nil {
		return ledger.Transaction{}, ledger.Permission{}, err
	}
	accountID, err := ParseID(req.AccountID)
	if err != nil {
		return ledger.Transaction{}, ledger.Permission{}, err
	}

	receipt, p, err := facade.Deposit(accountID, req.Amount)
	if err != nil {
		return ledger.Transaction{}, p, err
	}
	l.settle(ctx, models.Deposit, receipt, p, nil)
	return receipt.Transaction, p, nil
}

// Transfer moves money to an account of the named bank, or of the client's own bank
// when no name is given
func (l *Ledger) Transfer(ctx context.Context, token uuid.UUID, req *models.TransferRequest) (ledger.Transaction, ledger.Permission, error) {
	facade, err := l.Client(token)
	if err != nil {
		return ledger.Transaction{}, ledger.Permission{}, err
	}
	fromID, err := ParseID(req.FromAccountID)
	if err != nil {
		return ledger.Transaction{}, ledger.Permission{}, err
	}
	toID, err := ParseID(req.ToAccountID)
	if err != nil {
		return ledger.Transaction{}, ledger.Permission{}, err
	}

	var toBank *ledger.Bank
	if req.ToBankName != "" {
		if toBank, err = l.Bank(req.ToBankName); err != nil {
			return ledger.Transaction{}, ledger.Permission{}, err
		}
	}

	receipt, p, err := facade.Transfer(fromID, toID, req.Amount, toBank)
	if err != nil {
		return ledger.Transaction{}, p, err
	}
	l.settle(ctx, models.Transfer, receipt, p, nil)
	return receipt.Transaction, p, nil
}

// ShowHistory lists an account's settled transactions, oldest first
func (l *Ledger) ShowHistory(ctx context.Context, token uuid.UUID, accountID string) ([]models.TransactionResponse, error) {
	facade, err := l.Client(token)
	if err != nil {
		return nil, err
	}
	id, err := ParseID(accountID)
	if err != nil {
		return nil, err
	}

	history, err := facade.History(id)
	if err != nil {
		return nil, err
	}

	response := make([]models.TransactionResponse, 0, len(history))
	for _, tx := range history {
		counterparty := tx.From
		if tx.From == id {
			counterparty = tx.To
		}
		response = append(response, models.TransactionResponse{
			ID:           tx.ID.String(),
			From:         tx.From.String(),
			To:           tx.To.String(),
			Counterparty: counterparty.String(),
			Amount:       tx.Amount,
			Timestamp:    tx.Time,
		})
	}
	return response, nil
}

// CancelTransaction unconditionally reverses a transaction from the account's history
func (l *Ledger) CancelTransaction(ctx context.Context, token uuid.UUID, accountID, transactionID string) (ledger.Transaction, error) {
	facade, err := l.Client(token)
	if err != nil {
		return ledger.Transaction{}, err
	}
	aID, err := ParseID(accountID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	txID, err := ParseID(transactionID)
	if err != nil {
		return ledger.Transaction{}, err
	}

	reversal, err := facade.CancelTransaction(aID, txID)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("failed to cancel transaction: %w", err)
	}
	l.settle(ctx, models.Cancellation, reversal, ledger.Allow(), &txID)
	return reversal.Transaction, nil
}

// settle logs the outcome and, for committed transactions, journals and publishes the event.
// The in-memory ledger is authoritative, so sink failures are logged and not returned.
func (l *Ledger) settle(ctx context.Context, kind models.TransactionKind, tx ledger.Receipt, p ledger.Permission, cancels *uuid.UUID) {
	if !p.OK() {
		l.logger(ctx).Warn().
			Str("kind", string(kind)).
			Str("from", tx.From.ID().String()).
			Str("to", tx.To.ID().String()).
			Int64("amount", tx.Amount).
			Strs("reasons", p.Reasons()).
			Msg("Transaction rejected")
		return
	}

	event := &models.TransactionEvent{
		ID:            tx.ID.String(),
		Kind:          kind,
		FromAccountID: tx.From.ID().String(),
		ToAccountID:   tx.To.ID().String(),
		Amount:        tx.Amount,
		FromBalance:   tx.FromBalance,
		ToBalance:     tx.ToBalance,
		Timestamp:     tx.Time,
	}
	if cancels != nil {
		event.CancelsID = cancels.String()
	}

	log := l.logger(ctx).With().Str("transaction", event.ID).Str("kind", string(kind)).Logger()
	log.Info().Int64("amount", tx.Amount).Msg("Transaction committed")

	if l.store != nil {
		if err := l.store.RecordTransaction(ctx, event); err != nil {
			log.Error().Err(err).Msg("Failed to journal transaction")
		}
	}
	if l.publisher != nil {
		if err := l.publisher.PublishTransaction(ctx, event); err != nil {
			log.Error().Err(err).Msg("Failed to publish transaction")
		}
	}
}
