package handlers

import (
	"net/http"

	"esusu/internal/models"
	"esusu/internal/money"
	"esusu/internal/services"
	"esusu/internal/validator"

	"github.com/go-chi/chi/v5"
)

type recordPaymentRequest struct {
	GroupID       string  `json:"group_id"`
	Amount        string  `json:"amount"`
	PaymentMethod string  `json:"payment_method"`
	AccountRef    *string `json:"account_ref"`
	DueDate       *string `json:"due_date"`
	Notes         *string `json:"notes"`
}

func contributionResponse(contribution models.Contribution) map[string]any {
	response := map[string]any{
		"id":                contribution.ID,
		"group_id":          contribution.GroupID,
		"group_name":        contribution.GroupName,
		"payer_user_id":     contribution.PayerUserID,
		"amount":            money.Format(contribution.Amount),
		"currency":          contribution.Currency,
		"payment_reference": contribution.PaymentReference,
		"status":            contribution.Status,
		"payment_method":    contribution.PaymentMethod,
		"created_at":        contribution.CreatedAt,
		"updated_at":        contribution.UpdatedAt,
	}
	if contribution.AccountRef != nil {
		response["account_ref"] = *contribution.AccountRef
	}
	if contribution.DueDate != nil {
		response["due_date"] = contribution.DueDate.Format(validator.DateLayout)
	}
	if contribution.Notes != nil {
		response["notes"] = *contribution.Notes
	}
	return response
}

func contributionPage(items []models.Contribution, total, pageNumber, pageSize int) page[map[string]any] {
	response := page[map[string]any]{Items: make([]map[string]any, 0, len(items)), Total: total, Page: pageNumber, PageSize: pageSize}
	for _, contribution := range items {
		response.Items = append(response.Items, contributionResponse(contribution))
	}
	return response
}

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req recordPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	dueDate, err := parseOptionalDate(req.DueDate, "due_date")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	contribution, err := h.contributions.RecordContribution(r.Context(), services.RecordContributionRequest{
		GroupID:       req.GroupID,
		PayerID:       userID,
		Amount:        amount,
		PaymentMethod: req.PaymentMethod,
		AccountRef:    req.AccountRef,
		DueDate:       dueDate,
		Notes:         req.Notes,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, contributionResponse(contribution))
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	pageNumber, pageSize, err := parsePage(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	items, total, err := h.contributions.ListContributions(r.Context(), userID, optionalQuery(r, "group_id"), pageNumber, pageSize)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, contributionPage(items, total, pageNumber, pageSize))
}

func (h *Handler) ListGroupContributions(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	pageNumber, pageSize, err := parsePage(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	items, total, err := h.contributions.ListGroupContributions(r.Context(), chi.URLParam(r, "id"), userID, pageNumber, pageSize)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, contributionPage(items, total, pageNumber, pageSize))
}
