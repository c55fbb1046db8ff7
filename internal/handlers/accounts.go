package handlers

import (
	"context"
	"net/http"

	"esusu/internal/models"
	"esusu/internal/money"
	"esusu/internal/services"

	"github.com/go-chi/chi/v5"
)

type openAccountRequest struct {
	Type           string `json:"type"`
	Currency       string `json:"currency"`
	InitialDeposit string `json:"initial_deposit"`
}

type movementRequest struct {
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

func accountResponse(account models.Account) map[string]any {
	return map[string]any{
		"id":                account.ID,
		"owner_id":          account.OwnerID,
		"account_number":    account.AccountNumber,
		"type":              account.Type,
		"balance":           money.Format(account.Balance),
		"available_balance": money.Format(account.AvailableBalance),
		"minimum_balance":   money.Format(account.MinimumBalance),
		"currency":          account.Currency,
		"status":            account.Status,
		"created_at":        account.CreatedAt,
		"updated_at":        account.UpdatedAt,
	}
}

func transactionResponse(txn models.AccountTransaction) map[string]any {
	return map[string]any{
		"id":            txn.ID,
		"account_id":    txn.AccountID,
		"type":          txn.Type,
		"amount":        money.Format(txn.Amount),
		"balance_after": money.Format(txn.BalanceAfter),
		"reference":     txn.Reference,
		"description":   txn.Description,
		"status":        txn.Status,
		"created_at":    txn.CreatedAt,
	}
}

func (h *Handler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req openAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	initial, err := parseInitialDeposit(req.InitialDeposit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	account, err := h.accounts.OpenAccount(r.Context(), services.OpenAccountRequest{
		OwnerID:        userID,
		Type:           models.AccountType(req.Type),
		Currency:       req.Currency,
		InitialDeposit: initial,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, accountResponse(account))
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	accounts, err := h.accounts.ListAccounts(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response := make([]map[string]any, 0, len(accounts))
	for _, account := range accounts {
		response = append(response, accountResponse(account))
	}
	respondJSON(w, http.StatusOK, response)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	account, err := h.accounts.GetAccount(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, accountResponse(account))
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	pageNumber, pageSize, err := parsePage(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	items, total, err := h.accounts.ListTransactions(r.Context(), chi.URLParam(r, "id"), userID, pageNumber, pageSize)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response := page[map[string]any]{Items: make([]map[string]any, 0, len(items)), Total: total, Page: pageNumber, PageSize: pageSize}
	for _, txn := range items {
		response.Items = append(response.Items, transactionResponse(txn))
	}
	respondJSON(w, http.StatusOK, response)
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.accounts.Deposit)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.accounts.Withdraw)
}

func (h *Handler) move(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, req services.MovementRequest) (models.AccountTransaction, error)) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req movementRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	txn, err := apply(r.Context(), services.MovementRequest{
		AccountID:   chi.URLParam(r, "id"),
		CallerID:    userID,
		Amount:      amount,
		Description: req.Description,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, transactionResponse(txn))
}
