package handlers

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"esusu/internal/auth"
	"esusu/internal/config"
	"esusu/internal/models"
	"esusu/internal/services"
	"esusu/internal/store"
	"esusu/internal/websocket"
)

type stubAccountService struct {
	openFn             func(ctx context.Context, req services.OpenAccountRequest) (models.Account, error)
	getFn              func(ctx context.Context, accountID, callerID string) (models.Account, error)
	listFn             func(ctx context.Context, ownerID string) ([]models.Account, error)
	listTransactionsFn func(ctx context.Context, accountID, callerID string, page, pageSize int) ([]models.AccountTransaction, int, error)
	depositFn          func(ctx context.Context, req services.MovementRequest) (models.AccountTransaction, error)
	withdrawFn         func(ctx context.Context, req services.MovementRequest) (models.AccountTransaction, error)
}

func (s stubAccountService) OpenAccount(ctx context.Context, req services.OpenAccountRequest) (models.Account, error) {
	if s.openFn == nil {
		return models.Account{}, nil
	}
	return s.openFn(ctx, req)
}

func (s stubAccountService) GetAccount(ctx context.Context, accountID, callerID string) (models.Account, error) {
	if s.getFn == nil {
		return models.Account{}, nil
	}
	return s.getFn(ctx, accountID, callerID)
}

func (s stubAccountService) ListAccounts(ctx context.Context, ownerID string) ([]models.Account, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, ownerID)
}

func (s stubAccountService) ListTransactions(ctx context.Context, accountID, callerID string, page, pageSize int) ([]models.AccountTransaction, int, error) {
	if s.listTransactionsFn == nil {
		return nil, 0, nil
	}
	return s.listTransactionsFn(ctx, accountID, callerID, page, pageSize)
}

func (s stubAccountService) Deposit(ctx context.Context, req services.MovementRequest) (models.AccountTransaction, error) {
	if s.depositFn == nil {
		return models.AccountTransaction{}, nil
	}
	return s.depositFn(ctx, req)
}

func (s stubAccountService) Withdraw(ctx context.Context, req services.MovementRequest) (models.AccountTransaction, error) {
	if s.withdrawFn == nil {
		return models.AccountTransaction{}, nil
	}
	return s.withdrawFn(ctx, req)
}

type stubGroupService struct {
	createFn      func(ctx context.Context, req services.CreateGroupRequest) (models.Group, error)
	getFn         func(ctx context.Context, groupID string) (models.GroupView, error)
	listFn        func(ctx context.Context, req services.ListGroupsRequest) ([]models.GroupView, int, error)
	listMembersFn func(ctx context.Context, groupID, callerID string) ([]models.Membership, error)
	activityFn    func(ctx context.Context, groupID, callerID string, page, pageSize int) ([]store.AuditEntry, error)
	checkMemberFn func(ctx context.Context, groupID, userID string) error
	joinFn        func(ctx context.Context, groupID, userID string) (services.MembershipChange, error)
	leaveFn       func(ctx context.Context, groupID, userID string) (services.MembershipChange, error)
	updateFn      func(ctx context.Context, groupID, callerID string, req services.UpdateGroupRequest) (models.Group, error)
	deleteFn      func(ctx context.Context, groupID, callerID string) error
	transferFn    func(ctx context.Context, groupID, ownerID, newOwnerID string) error
	setRoleFn     func(ctx context.Context, groupID, ownerID, userID string, role models.Role) error
}

func (s stubGroupService) CreateGroup(ctx context.Context, req services.CreateGroupRequest) (models.Group, error) {
	if s.createFn == nil {
		return models.Group{}, nil
	}
	return s.createFn(ctx, req)
}

func (s stubGroupService) GetGroup(ctx context.Context, groupID string) (models.GroupView, error) {
	if s.getFn == nil {
		return models.GroupView{}, nil
	}
	return s.getFn(ctx, groupID)
}

func (s stubGroupService) ListGroups(ctx context.Context, req services.ListGroupsRequest) ([]models.GroupView, int, error) {
	if s.listFn == nil {
		return nil, 0, nil
	}
	return s.listFn(ctx, req)
}

func (s stubGroupService) ListMembers(ctx context.Context, groupID, callerID string) ([]models.Membership, error) {
	if s.listMembersFn == nil {
		return nil, nil
	}
	return s.listMembersFn(ctx, groupID, callerID)
}

func (s stubGroupService) Activity(ctx context.Context, groupID, callerID string, page, pageSize int) ([]store.AuditEntry, error) {
	if s.activityFn == nil {
		return nil, nil
	}
	return s.activityFn(ctx, groupID, callerID, page, pageSize)
}

func (s stubGroupService) CheckMember(ctx context.Context, groupID, userID string) error {
	if s.checkMemberFn == nil {
		return nil
	}
	return s.checkMemberFn(ctx, groupID, userID)
}

func (s stubGroupService) Join(ctx context.Context, groupID, userID string) (services.MembershipChange, error) {
	if s.joinFn == nil {
		return services.MembershipChange{}, nil
	}
	return s.joinFn(ctx, groupID, userID)
}

func (s stubGroupService) Leave(ctx context.Context, groupID, userID string) (services.MembershipChange, error) {
	if s.leaveFn == nil {
		return services.MembershipChange{}, nil
	}
	return s.leaveFn(ctx, groupID, userID)
}

func (s stubGroupService) UpdateGroup(ctx context.Context, groupID, callerID string, req services.UpdateGroupRequest) (models.Group, error) {
	if s.updateFn == nil {
		return models.Group{}, nil
	}
	return s.updateFn(ctx, groupID, callerID, req)
}

func (s stubGroupService) DeleteGroup(ctx context.Context, groupID, callerID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, groupID, callerID)
}

func (s stubGroupService) TransferOwnership(ctx context.Context, groupID, ownerID, newOwnerID string) error {
	if s.transferFn == nil {
		return nil
	}
	return s.transferFn(ctx, groupID, ownerID, newOwnerID)
}

func (s stubGroupService) SetMemberRole(ctx context.Context, groupID, ownerID, userID string, role models.Role) error {
	if s.setRoleFn == nil {
		return nil
	}
	return s.setRoleFn(ctx, groupID, ownerID, userID, role)
}

type stubContributionService struct {
	recordFn    func(ctx context.Context, req services.RecordContributionRequest) (models.Contribution, error)
	listFn      func(ctx context.Context, payerID string, groupID *string, page, pageSize int) ([]models.Contribution, int, error)
	listGroupFn func(ctx context.Context, groupID, callerID string, page, pageSize int) ([]models.Contribution, int, error)
}

func (s stubContributionService) RecordContribution(ctx context.Context, req services.RecordContributionRequest) (models.Contribution, error) {
	if s.recordFn == nil {
		return models.Contribution{}, nil
	}
	return s.recordFn(ctx, req)
}

func (s stubContributionService) ListContributions(ctx context.Context, payerID string, groupID *string, page, pageSize int) ([]models.Contribution, int, error) {
	if s.listFn == nil {
		return nil, 0, nil
	}
	return s.listFn(ctx, payerID, groupID, page, pageSize)
}

func (s stubContributionService) ListGroupContributions(ctx context.Context, groupID, callerID string, page, pageSize int) ([]models.Contribution, int, error) {
	if s.listGroupFn == nil {
		return nil, 0, nil
	}
	return s.listGroupFn(ctx, groupID, callerID, page, pageSize)
}

func newTestHandler(accounts AccountService, groups GroupService, contributions ContributionService) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      "secret",
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
	}
	return New(cfg, accounts, groups, contributions, websocket.NewHub())
}

// serveAs sends one request through the full router as userID. An empty
// userID sends no Authorization header.
func serveAs(t *testing.T, handler *Handler, userID, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := auth.GenerateToken("secret", userID, time.Minute)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rr, req)
	return rr
}
