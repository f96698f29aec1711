package models

import "time"

// represents the request to open a bank
type CreateBankRequest struct {
	Name                        string `json:"name" validate:"required"`
	UnauthorizedWithdrawalLimit *int64 `json:"unauthorized_withdrawal_limit,omitempty"`
}

type BankResponse struct {
	Name                        string `json:"name"`
	UnauthorizedWithdrawalLimit int64  `json:"unauthorized_withdrawal_limit"`
}

// represents the request to register a client with a bank
type CreateClientRequest struct {
	Bank     string  `json:"bank" validate:"required"`
	Name     string  `json:"name" validate:"required"`
	Surname  string  `json:"surname" validate:"required"`
	Passport *string `json:"passport,omitempty"`
	Address  *string `json:"address,omitempty"`
}

// UpdateClientRequest changes the fields that are present.
// An empty passport or address removes the document.
type UpdateClientRequest struct {
	Name     *string `json:"name,omitempty"`
	Surname  *string `json:"surname,omitempty"`
	Passport *string `json:"passport,omitempty"`
	Address  *string `json:"address,omitempty"`
}

type ClientResponse struct {
	ClientToken string  `json:"client_token"`
	Bank        string  `json:"bank"`
	Name        string  `json:"name"`
	Surname     string  `json:"surname"`
	Passport    *string `json:"passport,omitempty"`
	Address     *string `json:"address,omitempty"`
	Verified    bool    `json:"verified"`
}

// BankRecord is the persisted row of a bank
type BankRecord struct {
	Name                        string    `db:"name"`
	UnauthorizedWithdrawalLimit int64     `db:"unauthorized_withdrawal_limit"`
	CreatedAt                   time.Time `db:"created_at"`
}

// ClientRecord is the persisted row of a client
type ClientRecord struct {
	ID        string    `db:"id"`
	BankName  string    `db:"bank_name"`
	Name      string    `db:"name"`
	Surname   string    `db:"surname"`
	Passport  *string   `db:"passport"`
	Address   *string   `db:"address"`
	UpdatedAt time.Time `db:"updated_at"`
}
