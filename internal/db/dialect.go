package db

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// dialect holds the statements that differ between the supported SQL databases.
// Statements are written with ? placeholders and rebound for the driver.
type dialect struct {
	driver string
	schema []string

	upsertBank    string
	upsertClient  string
	upsertAccount string
	insertTx      string
	adjustBalance string
}

// balances move by the transaction amount, so journal writes arriving out of order converge
const adjustBalanceQuery = `UPDATE accounts SET balance = balance + ?, updated_at = ? WHERE id = ?`

var postgresDialect = dialect{
	driver: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS banks (
			name VARCHAR(255) PRIMARY KEY,
			unauthorized_withdrawal_limit BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS clients (
			id VARCHAR(36) PRIMARY KEY,
			bank_name VARCHAR(255) NOT NULL REFERENCES banks(name),
			name VARCHAR(255) NOT NULL,
			surname VARCHAR(255) NOT NULL,
			passport VARCHAR(255),
			address TEXT,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id VARCHAR(36) PRIMARY KEY,
			client_id VARCHAR(36) NOT NULL REFERENCES clients(id),
			bank_name VARCHAR(255) NOT NULL,
			type VARCHAR(16) NOT NULL,
			balance BIGINT NOT NULL,
			end_date DATE,
			credit_limit BIGINT,
			interest_rate NUMERIC(12, 6),
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id VARCHAR(36) PRIMARY KEY,
			kind VARCHAR(16) NOT NULL,
			from_account_id VARCHAR(36) NOT NULL,
			to_account_id VARCHAR(36) NOT NULL,
			amount BIGINT NOT NULL,
			cancels_id VARCHAR(36),
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS transactions_from_idx ON transactions (from_account_id)`,
		`CREATE INDEX IF NOT EXISTS transactions_to_idx ON transactions (to_account_id)`,
	},
	upsertBank: `INSERT INTO banks (name, unauthorized_withdrawal_limit, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET unauthorized_withdrawal_limit = EXCLUDED.unauthorized_withdrawal_limit`,
	upsertClient: `INSERT INTO clients (id, bank_name, name, surname, passport, address, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, surname = EXCLUDED.surname,
			passport = EXCLUDED.passport, address = EXCLUDED.address, updated_at = EXCLUDED.updated_at`,
	upsertAccount: `INSERT INTO accounts (id, client_id, bank_name, type, balance, end_date, credit_limit, interest_rate, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at`,
	insertTx: `INSERT INTO transactions (id, kind, from_account_id, to_account_id, amount, cancels_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
	adjustBalance: adjustBalanceQuery,
}

var mysqlDialect = dialect{
	driver: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS banks (
			name VARCHAR(255) PRIMARY KEY,
			unauthorized_withdrawal_limit BIGINT NOT NULL,
			created_at DATETIME(6) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS clients (
			id VARCHAR(36) PRIMARY KEY,
			bank_name VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL,
			surname VARCHAR(255) NOT NULL,
			passport VARCHAR(255),
			address TEXT,
			updated_at DATETIME(6) NOT NULL,
			FOREIGN KEY (bank_name) REFERENCES banks(name)
		)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id VARCHAR(36) PRIMARY KEY,
			client_id VARCHAR(36) NOT NULL,
			bank_name VARCHAR(255) NOT NULL,
			type VARCHAR(16) NOT NULL,
			balance BIGINT NOT NULL,
			end_date DATE,
			credit_limit BIGINT,
			interest_rate DECIMAL(12, 6),
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			FOREIGN KEY (client_id) REFERENCES clients(id)
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id VARCHAR(36) PRIMARY KEY,
			kind VARCHAR(16) NOT NULL,
			from_account_id VARCHAR(36) NOT NULL,
			to_account_id VARCHAR(36) NOT NULL,
			amount BIGINT NOT NULL,
			cancels_id VARCHAR(36),
			created_at DATETIME(6) NOT NULL,
			INDEX transactions_from_idx (from_account_id),
			INDEX transactions_to_idx (to_account_id)
		)`,
	},
	upsertBank: `INSERT INTO banks (name, unauthorized_withdrawal_limit, created_at)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE unauthorized_withdrawal_limit = VALUES(unauthorized_withdrawal_limit)`,
	upsertClient: `INSERT INTO clients (id, bank_name, name, surname, passport, address, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), surname = VALUES(surname),
			passport = VALUES(passport), address = VALUES(address), updated_at = VALUES(updated_at)`,
	upsertAccount: `INSERT INTO accounts (id, client_id, bank_name, type, balance, end_date, credit_limit, interest_rate, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE updated_at = VALUES(updated_at)`,
	insertTx: `INSERT IGNORE INTO transactions (id, kind, from_account_id, to_account_id, amount, cancels_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
	adjustBalance: adjustBalanceQuery,
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "postgres":
		return rebindAll(postgresDialect), nil
	case "mysql":
		return mysqlDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// rebindAll converts the dialect's statements to $n placeholders
func rebindAll(d dialect) dialect {
	d.upsertBank = rebind(d.upsertBank)
	d.upsertClient = rebind(d.upsertClient)
	d.upsertAccount = rebind(d.upsertAccount)
	d.insertTx = rebind(d.insertTx)
	d.adjustBalance = rebind(d.adjustBalance)
	return d
}

// rebind replaces each ? with $1, $2, ... in order
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// mysqlDSN makes sure DATE and DATETIME columns scan into time.Time
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}
