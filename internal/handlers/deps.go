package handlers

import (
	"context"

	"esusu/internal/models"
	"esusu/internal/services"
	"esusu/internal/store"
)

type AccountService interface {
	OpenAccount(ctx context.Context, req services.OpenAccountRequest) (models.Account, error)
	GetAccount(ctx context.Context, accountID, callerID string) (models.Account, error)
	ListAccounts(ctx context.Context, ownerID string) ([]models.Account, error)
	ListTransactions(ctx context.Context, accountID, callerID string, page, pageSize int) ([]models.AccountTransaction, int, error)
	Deposit(ctx context.Context, req services.MovementRequest) (models.AccountTransaction, error)
	Withdraw(ctx context.Context, req services.MovementRequest) (models.AccountTransaction, error)
}

type GroupService interface {
	CreateGroup(ctx context.Context, req services.CreateGroupRequest) (models.Group, error)
	GetGroup(ctx context.Context, groupID string) (models.GroupView, error)
	ListGroups(ctx context.Context, req services.ListGroupsRequest) ([]models.GroupView, int, error)
	ListMembers(ctx context.Context, groupID, callerID string) ([]models.Membership, error)
	Activity(ctx context.Context, groupID, callerID string, page, pageSize int) ([]store.AuditEntry, error)
	CheckMember(ctx context.Context, groupID, userID string) error
	Join(ctx context.Context, groupID, userID string) (services.MembershipChange, error)
	Leave(ctx context.Context, groupID, userID string) (services.MembershipChange, error)
	UpdateGroup(ctx context.Context, groupID, callerID string, req services.UpdateGroupRequest) (models.Group, error)
	DeleteGroup(ctx context.Context, groupID, callerID string) error
	TransferOwnership(ctx context.Context, groupID, ownerID, newOwnerID string) error
	SetMemberRole(ctx context.Context, groupID, ownerID, userID string, role models.Role) error
}

type ContributionService interface {
	RecordContribution(ctx context.Context, req services.RecordContributionRequest) (models.Contribution, error)
	ListContributions(ctx context.Context, payerID string, groupID *string, page, pageSize int) ([]models.Contribution, int, error)
	ListGroupContributions(ctx context.Context, groupID, callerID string, page, pageSize int) ([]models.Contribution, int, error)
}
