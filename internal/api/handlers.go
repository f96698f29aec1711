package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/abkawan/toybank-ledger/internal/api/middleware"
	"github.com/abkawan/toybank-ledger/internal/db"
	"github.com/abkawan/toybank-ledger/internal/ledger"
	"github.com/abkawan/toybank-ledger/internal/models"
	"github.com/abkawan/toybank-ledger/internal/service"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// ClientTokenHeader carries the client token on /client routes
const ClientTokenHeader = middleware.ClientTokenHeader

// Archive serves archived transaction events
type Archive interface {
	GetTransactionByID(ctx context.Context, id string) (*models.TransactionEvent, error)
	GetTransactionsByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*models.TransactionEvent, error)
}

// Handler is for handling api requests
type Handler struct {
	ledger  *service.Ledger
	archive Archive
	log     zerolog.Logger
}

func NewHandler(l *service.Ledger, archive Archive, log zerolog.Logger) *Handler {
	return &Handler{
		ledger:  l,
		archive: archive,
		log:     log,
	}
}

// errorResponse is the body of every failed request. Reasons is set for refused
// money operations.
type errorResponse struct {
	Error   string   `json:"error"`
	Reasons []string `json:"reasons,omitempty"`
}

// respondError maps service and engine errors to status codes
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var denied *ledger.PermissionError
	switch {
	case errors.As(err, &denied):
		middleware.WriteJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:   denied.Permission.String(),
			Reasons: denied.Permission.Reasons(),
		})
	case errors.Is(err, ledger.ErrClientNotFound),
		errors.Is(err, ledger.ErrBankNotFound),
		errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrTransactionNotFound),
		errors.Is(err, db.ErrEventNotFound):
		middleware.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, ledger.ErrInvalidParams),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrUnknownAccountType):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrBankExists),
		errors.Is(err, ledger.ErrAlreadyCancelled),
		errors.Is(err, ledger.ErrBalanceOverflow),
		errors.Is(err, ledger.ErrDuplicateID):
		middleware.WriteError(w, http.StatusConflict, err.Error())
	default:
		h.log.Error().Err(err).Msg("Request failed")
		middleware.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request payload")
		return false
	}
	return true
}

// clientToken reads the client token header
func clientToken(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get(ClientTokenHeader)
	if raw == "" {
		middleware.WriteError(w, http.StatusUnauthorized, "missing "+ClientTokenHeader+" header")
		return uuid.Nil, false
	}
	token, err := uuid.Parse(raw)
	if err != nil {
		middleware.WriteError(w, http.StatusUnauthorized, "malformed client token")
		return uuid.Nil, false
	}
	return token, true
}

// CreateBank handles POST /admin/banks
func (h *Handler) CreateBank(w http.ResponseWriter, r *http.Request) {
	var req models.CreateBankRequest
	if !decode(w, r, &req) {
		return
	}

	bank, err := h.ledger.CreateBank(r.Context(), &req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, bank)
}

// CreateClient handles POST /admin/clients
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req models.CreateClientRequest
	if !decode(w, r, &req) {
		return
	}

	client, err := h.ledger.CreateClient(r.Context(), &req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, client)
}

// UpdateClient handles PATCH /admin/clients/{token}
func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	token, err := service.ParseID(mux.Vars(r)["token"])
	if err != nil {
		h.respondError(w, err)
		return
	}
	var req models.UpdateClientRequest
	if !decode(w, r, &req) {
		return
	}

	client, err := h.ledger.UpdateClient(r.Context(), token, &req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, client)
}

// CancelTransaction handles POST /admin/clients/{token}/accounts/{accountId}/transactions/{txId}/cancel
func (h *Handler) CancelTransaction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	token, err := service.ParseID(vars["token"])
	if err != nil {
		h.respondError(w, err)
		return
	}

	reversal, err := h.ledger.CancelTransaction(r.Context(), token, vars["accountId"], vars["txId"])
	if err != nil {
		h.respondError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, models.OperationResponse{
		Status:        ledger.Allow().String(),
		Message:       reversal.String(),
		TransactionID: reversal.ID.String(),
	})
}

// account creation
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	token, ok := clientToken(w, r)
	if !ok {
		return
	}
	var req models.CreateAccountRequest
	if !decode(w, r, &req) {
		return
	}

	account, err := h.ledger.CreateAccount(r.Context(), token, &req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, account)
}

// ShowAccounts handles GET /client/accounts
func (h *Handler) ShowAccounts(w http.ResponseWriter, r *http.Request) {
	token, ok := clientToken(w, r)
	if !ok {
		return
	}

	accounts, err := h.ledger.ShowAccounts(r.Context(), token)
	if err != nil {
		h.respondError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, accounts)
}

// handles account retrieval
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	token, ok := clientToken(w, r)
	if !ok {
		return
	}

	account, err := h.ledger.ShowAccount(r.Context(), token, mux.Vars(r)["accountId"])
	if err != nil {
		h.respondError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, account)
}

// ShowHistory handles GET /client/accounts/{accountId}/transactions
func (h *Handler) ShowHistory(w http.ResponseWriter, r *http.Request) {
	token, ok := clientToken(w, r)
	if !ok {
		return
	}

	history, err := h.ledger.ShowHistory(r.Context(), token, mux.Vars(r)["accountId"])
	if err != nil {
		h.respondError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, history)
}

// GetArchivedTransactions handles GET /client/accounts/{accountId}/archive
func (h *Handler) GetArchivedTransactions(w http.ResponseWriter, r *http.Request) {
	token, ok := clientToken(w, r)
	if !ok {
		return
	}
	accountID := mux.Vars(r)["accountId"]

	// the account must belong to the caller
	if _, err := h.ledger.ShowAccount(r.Context(), token, accountID); err != nil {
		h.respondError(w, err)
		return
	}

	// Parsing the query parameters
	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	// default limit is set to 10
	limit := 10
	if limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	//default offset is set to 0
	offset := 0
	if offsetStr != "" {
		parsedOffset, err := strconv.Atoi(offsetStr)
		if err == nil && parsedOffset >= 0 {
			offset = parsedOffset
		}
	}

	events, err := h.archive.GetTransactionsByAccountID(r.Context(), accountID, limit, offset)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if events == nil {
		events = []*models.TransactionEvent{}
	}
	middleware.WriteJSON(w, http.StatusOK, events)
}

// GetArchivedTransaction handles GET /client/accounts/{accountId}/archive/{txId}
func (h *Handler) GetArchivedTransaction(w http.ResponseWriter, r *http.Request) {
	token, ok := clientToken(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	accountID := vars["accountId"]

	if _, err := h.ledger.ShowAccount(r.Context(), token, accountID); err != nil {
		h.respondError(w, err)
		return
	}

	event, err := h.archive.GetTransactionByID(r.Context(), vars["txId"])
	if err != nil {
		h.respondError(w, err)
		return
	}
	// events of other accounts stay hidden
	if event.FromAccountID != accountID && event.ToAccountID != accountID {
		h.respondError(w, fmt.Errorf("%w: %s", db.ErrEventNotFound, vars["txId"]))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, event)
}

type moneyOperation func(ctx context.Context, token uuid.UUID) (ledger.Transaction, ledger.Permission, error)

// runs a withdrawal, deposit or transfer and reports the permission outcome
func (h *Handler) settle(w http.ResponseWriter, r *http.Request, token uuid.UUID, op moneyOperation) {
	tx, p, err := op(r.Context(), token)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if err := p.Err(); err != nil {
		h.respondError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, models.OperationResponse{
		Status:        p.String(),
		Message:       tx.String(),
		TransactionID: tx.ID.String(),
	})
}

// Withdraw handles POST /client/withdrawals
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	token, ok := clientToken(w, r)
	if !ok {
		return
	}
	var req models.CashRequest
	if !decode(w, r, &req) {
		return
	}
	h.settle(w, r, token, func(ctx context.Context, token uuid.UUID) (ledger.Transaction, ledger.Permission, error) {
		return h.ledger.Withdraw(ctx, token, &req)
	})
}

// Deposit handles POST /client/deposits
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	token, ok := clientToken(w, r)
	if !ok {
		return
	}
	var req models.CashRequest
	if !decode(w, r, &req) {
		return
	}
	h.settle(w, r, token, func(ctx context.Context, token uuid.UUID) (ledger.Transaction, ledger.Permission, error) {
		return h.ledger.Deposit(ctx, token, &req)
	})
}

// Transfer handles POST /client/transfers
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	token, ok := clientToken(w, r)
	if !ok {
		return
	}
	var req models.TransferRequest
	if !decode(w, r, &req) {
		return
	}
	h.settle(w, r, token, func(ctx context.Context, token uuid.UUID) (ledger.Transaction, ledger.Permission, error) {
		return h.ledger.Transfer(ctx, token, &req)
	})
}

// handles health check
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// sets up the API routes. The archive route is only served when archive is not nil.
func SetupRoutes(r *mux.Router, l *service.Ledger, archive Archive, log zerolog.Logger) {
	h := NewHandler(l, archive, log)

	r.Use(middleware.Recovery(log), middleware.RequestID(log), middleware.AccessLog(log))

	// Health check (check if API is working)
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")

	// Admin routes
	admin := r.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/banks", h.CreateBank).Methods("POST")
	admin.HandleFunc("/clients", h.CreateClient).Methods("POST")
	admin.HandleFunc("/clients/{token}", h.UpdateClient).Methods("PATCH")
	admin.HandleFunc("/clients/{token}/accounts/{accountId}/transactions/{txId}/cancel", h.CancelTransaction).Methods("POST")

	// Client routes
	client := r.PathPrefix("/client").Subrouter()
	client.HandleFunc("/accounts", h.CreateAccount).Methods("POST")
	client.HandleFunc("/accounts", h.ShowAccounts).Methods("GET")
	client.HandleFunc("/accounts/{accountId}", h.GetAccount).Methods("GET")
	client.HandleFunc("/accounts/{accountId}/transactions", h.ShowHistory).Methods("GET")
	if archive != nil {
		client.HandleFunc("/accounts/{accountId}/archive", h.GetArchivedTransactions).Methods("GET")
		client.HandleFunc("/accounts/{accountId}/archive/{txId}", h.GetArchivedTransaction).Methods("GET")
	}
	client.HandleFunc("/withdrawals", h.Withdraw).Methods("POST")
	client.HandleFunc("/deposits", h.Deposit).Methods("POST")
	client.HandleFunc("/transfers", h.Transfer).Methods("POST")
}
