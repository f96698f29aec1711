package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/abkawan/toybank-ledger/internal/config"
	"github.com/abkawan/toybank-ledger/internal/models"
	_ "github.com/lib/pq"
)

// SQLStore journals banks, clients, accounts and committed transactions to
// PostgreSQL or MySQL
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

// creates a new SQLStore and checks the connection
func NewSQLStore(cfg config.DatabaseConfig) (*SQLStore, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dsn := cfg.DSN
	if d.driver == "mysql" {
		if dsn, err = mysqlDSN(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", d.driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", d.driver, err)
	}
	return &SQLStore{db: db, dialect: d, now: time.Now}, nil
}

// closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// initialize the database schema
func (s *SQLStore) InitSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) SaveBank(ctx context.Context, bank *models.BankRecord) error {
	_, err := s.db.ExecContext(ctx, s.dialect.upsertBank,
		bank.Name, bank.UnauthorizedWithdrawalLimit, bank.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save bank: %w", err)
	}
	return nil
}

func (s *SQLStore) SaveClient(ctx context.Context, client *models.ClientRecord) error {
	_, err := s.db.ExecContext(ctx, s.dialect.upsertClient,
		client.ID, client.BankName, client.Name, client.Surname,
		client.Passport, client.Address, client.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save client: %w", err)
	}
	return nil
}

func (s *SQLStore) SaveAccount(ctx context.Context, account *models.AccountRecord) error {
	_, err := s.db.ExecContext(ctx, s.dialect.upsertAccount,
		account.ID, account.ClientID, account.BankName, account.Type, account.Balance,
		account.EndDate, account.CreditLimit, account.InterestRate,
		account.CreatedAt, account.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

// RecordTransaction stores the transaction row and moves both account balances by its
// amount atomically. Recording the same transaction twice is a no-op.
func (s *SQLStore) RecordTransaction(ctx context.Context, event *models.TransactionEvent) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var cancels *string
	if event.CancelsID != "" {
		cancels = &event.CancelsID
	}

	res, err := tx.ExecContext(ctx, s.dialect.insertTx,
		event.ID, string(event.Kind), event.FromAccountID, event.ToAccountID,
		event.Amount, cancels, event.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	if inserted > 0 {
		now := s.now()
		if _, err = tx.ExecContext(ctx, s.dialect.adjustBalance, -event.Amount, now, event.FromAccountID); err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}
		if _, err = tx.ExecContext(ctx, s.dialect.adjustBalance, event.Amount, now, event.ToAccountID); err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
