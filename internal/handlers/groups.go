package handlers

import (
	"encoding/json"
	"net/http"

	"esusu/internal/models"
	"esusu/internal/money"
	"esusu/internal/services"
	"esusu/internal/store"
	"esusu/internal/validator"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type createGroupRequest struct {
	Name                string  `json:"name"`
	Description         string  `json:"description"`
	TenantID            *string `json:"tenant_id"`
	MonthlyContribution string  `json:"monthly_contribution"`
	MaxMembers          int     `json:"max_members"`
	StartDate           string  `json:"start_date"`
	EndDate             *string `json:"end_date"`
	PayoutOrder         string  `json:"payout_order"`
	PenaltyFee          *string `json:"penalty_fee"`
	Rules               string  `json:"rules"`
	ImageURL            string  `json:"image_url"`
}

type updateGroupRequest struct {
	Name                *string `json:"name"`
	Description         *string `json:"description"`
	MonthlyContribution *string `json:"monthly_contribution"`
	StartDate           *string `json:"start_date"`
	EndDate             *string `json:"end_date"`
	PayoutOrder         *string `json:"payout_order"`
	PenaltyFee          *string `json:"penalty_fee"`
	Rules               *string `json:"rules"`
	ImageURL            *string `json:"image_url"`
}

type transferOwnershipRequest struct {
	UserID string `json:"user_id"`
}

type setRoleRequest struct {
	Role string `json:"role"`
}

func groupResponse(group models.Group) map[string]any {
	response := map[string]any{
		"id":                   group.ID,
		"name":                 group.Name,
		"description":          group.Description,
		"creator_id":           group.CreatorID,
		"monthly_contribution": money.Format(group.MonthlyContribution),
		"max_members":          group.MaxMembers,
		"start_date":           group.StartDate.Format(validator.DateLayout),
		"end_date":             group.EndDate.Format(validator.DateLayout),
		"payout_order":         group.PayoutOrder,
		"penalty_fee":          money.Format(group.PenaltyFee),
		"status":               group.Status,
		"rules":                group.Rules,
		"image_url":            group.ImageURL,
		"created_at":           group.CreatedAt,
		"updated_at":           group.UpdatedAt,
	}
	if group.TenantID != nil {
		response["tenant_id"] = *group.TenantID
	}
	return response
}

func groupViewResponse(view models.GroupView) map[string]any {
	response := groupResponse(view.Group)
	response["member_count"] = view.MemberCount
	return response
}

func activityResponse(entry store.AuditEntry) map[string]any {
	return map[string]any{
		"id":            entry.ID,
		"actor_user_id": entry.ActorUserID,
		"action":        entry.Action,
		"data":          json.RawMessage(entry.Data),
		"created_at":    entry.CreatedAt,
	}
}

func (req createGroupRequest) toService(creatorID string) (services.CreateGroupRequest, error) {
	monthly, err := parseSetting(req.MonthlyContribution, "monthly_contribution", money.Parse)
	if err != nil {
		return services.CreateGroupRequest{}, err
	}
	startDate, err := parseDate(req.StartDate, "start_date")
	if err != nil {
		return services.CreateGroupRequest{}, err
	}
	endDate, err := parseOptionalDate(req.EndDate, "end_date")
	if err != nil {
		return services.CreateGroupRequest{}, err
	}
	penalty := decimal.Zero
	if req.PenaltyFee != nil {
		if penalty, err = parseSetting(*req.PenaltyFee, "penalty_fee", money.Parse); err != nil {
			return services.CreateGroupRequest{}, err
		}
	}
	return services.CreateGroupRequest{
		CreatorID:           creatorID,
		TenantID:            req.TenantID,
		Name:                req.Name,
		Description:         req.Description,
		MonthlyContribution: monthly,
		MaxMembers:          req.MaxMembers,
		StartDate:           startDate,
		EndDate:             endDate,
		PayoutOrder:         models.PayoutOrder(req.PayoutOrder),
		PenaltyFee:          penalty,
		Rules:               req.Rules,
		ImageURL:            req.ImageURL,
	}, nil
}

func (req updateGroupRequest) toService() (services.UpdateGroupRequest, error) {
	update := services.UpdateGroupRequest{
		Name:        req.Name,
		Description: req.Description,
		Rules:       req.Rules,
		ImageURL:    req.ImageURL,
	}
	if req.MonthlyContribution != nil {
		monthly, err := parseSetting(*req.MonthlyContribution, "monthly_contribution", money.Parse)
		if err != nil {
			return services.UpdateGroupRequest{}, err
		}
		update.MonthlyContribution = &monthly
	}
	if req.PenaltyFee != nil {
		penalty, err := parseSetting(*req.PenaltyFee, "penalty_fee", money.Parse)
		if err != nil {
			return services.UpdateGroupRequest{}, err
		}
		update.PenaltyFee = &penalty
	}
	if req.StartDate != nil {
		startDate, err := parseDate(*req.StartDate, "start_date")
		if err != nil {
			return services.UpdateGroupRequest{}, err
		}
		update.StartDate = &startDate
	}
	if req.EndDate != nil {
		endDate, err := parseDate(*req.EndDate, "end_date")
		if err != nil {
			return services.UpdateGroupRequest{}, err
		}
		update.EndDate = &endDate
	}
	if req.PayoutOrder != nil {
		order := models.PayoutOrder(*req.PayoutOrder)
		update.PayoutOrder = &order
	}
	return update, nil
}

func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req createGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	input, err := req.toService(userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	group, err := h.groups.CreateGroup(r.Context(), input)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, groupViewResponse(models.GroupView{Group: group, MemberCount: 1}))
}

func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	pageNumber, pageSize, err := parsePage(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	req := services.ListGroupsRequest{
		TenantID: optionalQuery(r, "tenant_id"),
		Page:     pageNumber,
		PageSize: pageSize,
	}
	if status := optionalQuery(r, "status"); status != nil {
		groupStatus := models.GroupStatus(*status)
		req.Status = &groupStatus
	}
	items, total, err := h.groups.ListGroups(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response := page[map[string]any]{Items: make([]map[string]any, 0, len(items)), Total: total, Page: pageNumber, PageSize: pageSize}
	for _, view := range items {
		response.Items = append(response.Items, groupViewResponse(view))
	}
	respondJSON(w, http.StatusOK, response)
}

func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	view, err := h.groups.GetGroup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, groupViewResponse(view))
}

func (h *Handler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req updateGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	update, err := req.toService()
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	group, err := h.groups.UpdateGroup(r.Context(), chi.URLParam(r, "id"), userID, update)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, groupResponse(group))
}

func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	if err := h.groups.DeleteGroup(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) JoinGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	change, err := h.groups.Join(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, change)
}

func (h *Handler) LeaveGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	change, err := h.groups.Leave(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, change)
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	members, err := h.groups.ListMembers(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if members == nil {
		members = []models.Membership{}
	}
	respondJSON(w, http.StatusOK, members)
}

func (h *Handler) GroupActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	pageNumber, pageSize, err := parsePage(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	entries, err := h.groups.Activity(r.Context(), chi.URLParam(r, "id"), userID, pageNumber, pageSize)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		response = append(response, activityResponse(entry))
	}
	respondJSON(w, http.StatusOK, response)
}

func (h *Handler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req transferOwnershipRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	groupID := chi.URLParam(r, "id")
	if err := h.groups.TransferOwnership(r.Context(), groupID, userID, req.UserID); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"group_id": groupID, "owner_id": req.UserID})
}

func (h *Handler) SetMemberRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req setRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	groupID, memberID := chi.URLParam(r, "id"), chi.URLParam(r, "userID")
	if err := h.groups.SetMemberRole(r.Context(), groupID, userID, memberID, models.Role(req.Role)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"group_id": groupID, "user_id": memberID, "role": req.Role})
}
