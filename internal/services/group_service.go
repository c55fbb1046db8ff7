package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"esusu/internal/apperr"
	"esusu/internal/db"
	"esusu/internal/models"
	"esusu/internal/store"
	"esusu/internal/telemetry"
	"esusu/internal/validator"
	"esusu/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

type GroupStore interface {
	Create(ctx context.Context, tx store.Execer, group models.Group) error
	GetForUpdate(ctx context.Context, tx store.Getter, groupID string) (models.Group, error)
	GetView(ctx context.Context, groupID string) (models.GroupView, error)
	List(ctx context.Context, filter store.GroupFilter, limit, offset int) ([]models.GroupView, error)
	Count(ctx context.Context, filter store.GroupFilter) (int, error)
	Update(ctx context.Context, tx store.Execer, group models.Group) error
	UpdateStatus(ctx context.Context, tx store.Execer, groupID string, status models.GroupStatus) error
	Delete(ctx context.Context, tx store.Execer, groupID string) (int64, error)
}

type MembershipStore interface {
	Create(ctx context.Context, tx store.Execer, groupID, userID string, role models.Role) error
	Get(ctx context.Context, q store.Getter, groupID, userID string) (models.Membership, error)
	Count(ctx context.Context, q store.Getter, groupID string) (int, error)
	Delete(ctx context.Context, tx store.Execer, groupID, userID string) (int64, error)
	UpdateRole(ctx context.Context, tx store.Execer, groupID, userID string, role models.Role) (int64, error)
	ListByGroup(ctx context.Context, groupID string) ([]models.Membership, error)
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
}

type ActivityStore interface {
	ListByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]store.AuditEntry, error)
}

type GroupHub interface {
	BroadcastGroup(userID string, update websocket.GroupUpdate)
}

type GroupService struct {
	txRunner    db.TxRunner
	groups      GroupStore
	memberships MembershipStore
	audit       AuditStore
	activity    ActivityStore
	hub         GroupHub
}

func NewGroupService(txRunner db.TxRunner, groups GroupStore, memberships MembershipStore, audit AuditStore, activity ActivityStore, hub GroupHub) *GroupService {
	return &GroupService{
		txRunner:    txRunner,
		groups:      groups,
		memberships: memberships,
		audit:       audit,
		activity:    activity,
		hub:         hub,
	}
}

type CreateGroupRequest struct {
	CreatorID           string
	TenantID            *string
	Name                string
	Description         string
	MonthlyContribution decimal.Decimal
	MaxMembers          int
	StartDate           time.Time
	EndDate             *time.Time
	PayoutOrder         models.PayoutOrder
	PenaltyFee          decimal.Decimal
	Rules               string
	ImageURL            string
}

// UpdateGroupRequest replaces only the non-nil fields.
type UpdateGroupRequest struct {
	Name                *string
	Description         *string
	MonthlyContribution *decimal.Decimal
	StartDate           *time.Time
	EndDate             *time.Time
	PayoutOrder         *models.PayoutOrder
	PenaltyFee          *decimal.Decimal
	Rules               *string
	ImageURL            *string
}

func (r UpdateGroupRequest) fields() []string {
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(r.Name != nil, "name")
	add(r.Description != nil, "description")
	add(r.MonthlyContribution != nil, "monthly_contribution")
	add(r.StartDate != nil, "start_date")
	add(r.EndDate != nil, "end_date")
	add(r.PayoutOrder != nil, "payout_order")
	add(r.PenaltyFee != nil, "penalty_fee")
	add(r.Rules != nil, "rules")
	add(r.ImageURL != nil, "image_url")
	return fields
}

type ListGroupsRequest struct {
	TenantID *string
	Status   *models.GroupStatus
	Page     int
	PageSize int
}

// MembershipChange is the group state right after a join or leave.
type MembershipChange struct {
	GroupID     string             `json:"group_id"`
	UserID      string             `json:"user_id"`
	Status      models.GroupStatus `json:"status"`
	MemberCount int                `json:"member_count"`
}

func (s *GroupService) CreateGroup(ctx context.Context, req CreateGroupRequest) (group models.Group, err error) {
	ctx, span := telemetry.StartSpan(ctx, "GroupService.CreateGroup")
	defer func() { telemetry.End(span, err) }()

	if err := validator.ValidateGroupName(req.Name); err != nil {
		return models.Group{}, invalidSettings(err)
	}
	if err := validator.ValidateDescription(req.Description); err != nil {
		return models.Group{}, invalidSettings(err)
	}
	payoutOrder := req.PayoutOrder
	if payoutOrder == "" {
		payoutOrder = models.PayoutFixed
	}
	settings := models.GroupSettings{
		MonthlyContribution: req.MonthlyContribution,
		MaxMembers:          req.MaxMembers,
		StartDate:           req.StartDate,
		PayoutOrder:         payoutOrder,
		PenaltyFee:          req.PenaltyFee,
		Status:              models.GroupRecruiting,
		Rules:               req.Rules,
		ImageURL:            req.ImageURL,
	}
	if req.EndDate != nil {
		settings.EndDate = *req.EndDate
	} else if !req.StartDate.IsZero() {
		settings.EndDate = req.StartDate.AddDate(0, req.MaxMembers, 0)
	}
	if err := validator.ValidateGroupSettings(settings); err != nil {
		return models.Group{}, invalidSettings(err)
	}

	now := time.Now().UTC()
	group = models.Group{
		ID:            uuid.NewString(),
		Name:          req.Name,
		Description:   req.Description,
		CreatorID:     req.CreatorID,
		TenantID:      req.TenantID,
		CreatedAt:     now,
		UpdatedAt:     now,
		GroupSettings: settings,
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.groups.Create(ctx, tx, group); err != nil {
			return err
		}
		if err := s.memberships.Create(ctx, tx, group.ID, req.CreatorID, models.RoleOwner); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, req.CreatorID, "group.create", "group", group.ID, map[string]any{
			"name":        group.Name,
			"max_members": group.MaxMembers,
		})
	})
	if err != nil {
		return models.Group{}, storageError(err)
	}
	return group, nil
}

func (s *GroupService) GetGroup(ctx context.Context, groupID string) (models.GroupView, error) {
	view, err := s.groups.GetView(ctx, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.GroupView{}, groupNotFound()
		}
		return models.GroupView{}, storageError(err)
	}
	if err := validator.ValidateGroupSettings(view.GroupSettings); err != nil {
		return models.GroupView{}, corruptSettings(groupID, err)
	}
	return view, nil
}

func (s *GroupService) ListGroups(ctx context.Context, req ListGroupsRequest) ([]models.GroupView, int, error) {
	limit, offset, err := pageWindow(req.Page, req.PageSize)
	if err != nil {
		return nil, 0, err
	}
	if req.Status != nil && *req.Status != models.GroupRecruiting && *req.Status != models.GroupActive {
		return nil, 0, invalidSettings(validator.ErrInvalidGroupStatus)
	}
	filter := store.GroupFilter{TenantID: req.TenantID, Status: req.Status}
	items, err := s.groups.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, storageError(err)
	}
	total, err := s.groups.Count(ctx, filter)
	if err != nil {
		return nil, 0, storageError(err)
	}
	if items == nil {
		items = []models.GroupView{}
	}
	return items, total, nil
}

func (s *GroupService) ListMembers(ctx context.Context, groupID, callerID string) ([]models.Membership, error) {
	if err := s.CheckMember(ctx, groupID, callerID); err != nil {
		return nil, err
	}
	members, err := s.memberships.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, storageError(err)
	}
	return members, nil
}

// Activity returns the group's audit trail, newest first, to members only.
func (s *GroupService) Activity(ctx context.Context, groupID, callerID string, page, pageSize int) ([]store.AuditEntry, error) {
	limit, offset, err := pageWindow(page, pageSize)
	if err != nil {
		return nil, err
	}
	if err := s.CheckMember(ctx, groupID, callerID); err != nil {
		return nil, err
	}
	entries, err := s.activity.ListByEntity(ctx, "group", groupID, limit, offset)
	if err != nil {
		return nil, storageError(err)
	}
	if entries == nil {
		entries = []store.AuditEntry{}
	}
	return entries, nil
}

// Join adds userID as a member. The group row lock serializes joins on the same
// group, so the count read below cannot go stale before the insert.
func (s *GroupService) Join(ctx context.Context, groupID, userID string) (change MembershipChange, err error) {
	ctx, span := telemetry.StartSpan(ctx, "GroupService.Join", attribute.String("group.id", groupID))
	defer func() { telemetry.End(span, err) }()

	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		group, err := s.lockGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if group.Status != models.GroupRecruiting {
			return apperr.Validation(apperr.CodeGroupNotRecruiting, "group is not accepting new members")
		}
		count, err := s.memberships.Count(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if count >= group.MaxMembers {
			return apperr.Validation(apperr.CodeGroupFull, "group is full")
		}
		if _, err := s.memberships.Get(ctx, tx, groupID, userID); err == nil {
			return alreadyMember()
		} else if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if err := s.memberships.Create(ctx, tx, groupID, userID, models.RoleMember); err != nil {
			if db.IsUniqueViolation(err) {
				return alreadyMember()
			}
			return err
		}
		count++
		status := group.Status
		if count >= group.MaxMembers {
			status = models.GroupActive
			if err := s.groups.UpdateStatus(ctx, tx, groupID, status); err != nil {
				return err
			}
		}
		change = MembershipChange{GroupID: groupID, UserID: userID, Status: status, MemberCount: count}
		return s.audit.Log(ctx, tx, userID, "group.join", "group", groupID, map[string]any{
			"member_count": count,
			"status":       status,
		})
	})
	if err != nil {
		return MembershipChange{}, storageError(err)
	}
	s.publish(userID, "joined", change)
	return change, nil
}

func (s *GroupService) Leave(ctx context.Context, groupID, userID string) (change MembershipChange, err error) {
	ctx, span := telemetry.StartSpan(ctx, "GroupService.Leave", attribute.String("group.id", groupID))
	defer func() { telemetry.End(span, err) }()

	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		group, err := s.lockGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		membership, err := s.memberships.Get(ctx, tx, groupID, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound(apperr.CodeNotMember, "not a member of this group")
			}
			return err
		}
		if !membership.Role.CanLeave() {
			return apperr.Validation(apperr.CodeAdminCannotLeave, "admin cannot leave; transfer or delete instead")
		}
		if _, err := s.memberships.Delete(ctx, tx, groupID, userID); err != nil {
			return err
		}
		count, err := s.memberships.Count(ctx, tx, groupID)
		if err != nil {
			return err
		}
		status := group.Status
		if status == models.GroupActive && count < group.MaxMembers {
			status = models.GroupRecruiting
			if err := s.groups.UpdateStatus(ctx, tx, groupID, status); err != nil {
				return err
			}
		}
		change = MembershipChange{GroupID: groupID, UserID: userID, Status: status, MemberCount: count}
		return s.audit.Log(ctx, tx, userID, "group.leave", "group", groupID, map[string]any{
			"member_count": count,
			"status":       status,
		})
	})
	if err != nil {
		return MembershipChange{}, storageError(err)
	}
	s.publish(userID, "left", change)
	return change, nil
}

func (s *GroupService) UpdateGroup(ctx context.Context, groupID, callerID string, req UpdateGroupRequest) (group models.Group, err error) {
	ctx, span := telemetry.StartSpan(ctx, "GroupService.UpdateGroup", attribute.String("group.id", groupID))
	defer func() { telemetry.End(span, err) }()

	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		group, err = s.lockGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if err := s.requireOwner(ctx, tx, groupID, callerID, "update"); err != nil {
			return err
		}
		fields := req.fields()
		if len(fields) == 0 {
			return apperr.Validation(apperr.CodeNoUpdateFields, "no fields to update")
		}
		if err := applyUpdate(&group, req); err != nil {
			return err
		}
		if err := s.groups.Update(ctx, tx, group); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, callerID, "group.update", "group", groupID, map[string]any{"fields": fields})
	})
	if err != nil {
		return models.Group{}, storageError(err)
	}
	group.UpdatedAt = time.Now().UTC()
	return group, nil
}

func applyUpdate(group *models.Group, req UpdateGroupRequest) error {
	if req.Name != nil {
		if err := validator.ValidateGroupName(*req.Name); err != nil {
			return invalidSettings(err)
		}
		group.Name = *req.Name
	}
	if req.Description != nil {
		if err := validator.ValidateDescription(*req.Description); err != nil {
			return invalidSettings(err)
		}
		group.Description = *req.Description
	}
	if req.MonthlyContribution != nil {
		group.MonthlyContribution = *req.MonthlyContribution
	}
	if req.StartDate != nil {
		group.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		group.EndDate = *req.EndDate
	}
	if req.PayoutOrder != nil {
		group.PayoutOrder = *req.PayoutOrder
	}
	if req.PenaltyFee != nil {
		group.PenaltyFee = *req.PenaltyFee
	}
	if req.Rules != nil {
		group.Rules = *req.Rules
	}
	if req.ImageURL != nil {
		group.ImageURL = *req.ImageURL
	}
	if err := validator.ValidateGroupSettings(group.GroupSettings); err != nil {
		return invalidSettings(err)
	}
	return nil
}

func (s *GroupService) DeleteGroup(ctx context.Context, groupID, callerID string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "GroupService.DeleteGroup", attribute.String("group.id", groupID))
	defer func() { telemetry.End(span, err) }()

	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.lockGroup(ctx, tx, groupID); err != nil {
			return err
		}
		if err := s.requireOwner(ctx, tx, groupID, callerID, "delete"); err != nil {
			return err
		}
		if _, err := s.groups.Delete(ctx, tx, groupID); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, callerID, "group.delete", "group", groupID, nil)
	})
	return storageError(err)
}

// TransferOwnership hands the owner role to an existing member. The previous
// owner stays in the group as a plain member.
func (s *GroupService) TransferOwnership(ctx context.Context, groupID, ownerID, newOwnerID string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "GroupService.TransferOwnership", attribute.String("group.id", groupID))
	defer func() { telemetry.End(span, err) }()

	if ownerID == newOwnerID {
		return apperr.Validation(apperr.CodeInvalidRole, "caller already owns this group")
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.lockGroup(ctx, tx, groupID); err != nil {
			return err
		}
		if err := s.requireOwner(ctx, tx, groupID, ownerID, "transfer ownership of"); err != nil {
			return err
		}
		if err := s.requireTarget(ctx, tx, groupID, newOwnerID); err != nil {
			return err
		}
		if _, err := s.memberships.UpdateRole(ctx, tx, groupID, newOwnerID, models.RoleOwner); err != nil {
			return err
		}
		if _, err := s.memberships.UpdateRole(ctx, tx, groupID, ownerID, models.RoleMember); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, ownerID, "group.transfer_ownership", "group", groupID, map[string]string{
			"new_owner_id": newOwnerID,
		})
	})
	return storageError(err)
}

func (s *GroupService) SetMemberRole(ctx context.Context, groupID, ownerID, userID string, role models.Role) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "GroupService.SetMemberRole", attribute.String("group.id", groupID))
	defer func() { telemetry.End(span, err) }()

	if role != models.RoleAdmin && role != models.RoleMember {
		return apperr.Validation(apperr.CodeInvalidRole, "role must be admin or member")
	}
	if userID == ownerID {
		return apperr.Validation(apperr.CodeInvalidRole, "transfer ownership to change the owner's role")
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.lockGroup(ctx, tx, groupID); err != nil {
			return err
		}
		if err := s.requireOwner(ctx, tx, groupID, ownerID, "change roles in"); err != nil {
			return err
		}
		if err := s.requireTarget(ctx, tx, groupID, userID); err != nil {
			return err
		}
		if _, err := s.memberships.UpdateRole(ctx, tx, groupID, userID, role); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, ownerID, "group.set_role", "group", groupID, map[string]string{
			"user_id": userID,
			"role":    string(role),
		})
	})
	return storageError(err)
}

// lockGroup loads the group under its row lock and rejects rows whose stored
// settings no longer validate.
func (s *GroupService) lockGroup(ctx context.Context, tx store.Getter, groupID string) (models.Group, error) {
	group, err := s.groups.GetForUpdate(ctx, tx, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Group{}, groupNotFound()
		}
		return models.Group{}, err
	}
	if err := validator.ValidateGroupSettings(group.GroupSettings); err != nil {
		return models.Group{}, corruptSettings(groupID, err)
	}
	return group, nil
}

func (s *GroupService) requireOwner(ctx context.Context, tx store.Getter, groupID, userID, action string) error {
	membership, err := s.memberships.Get(ctx, tx, groupID, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if err != nil || membership.Role != models.RoleOwner {
		return apperr.Forbidden(fmt.Sprintf("only the group owner can %s this group", action))
	}
	return nil
}

func (s *GroupService) requireTarget(ctx context.Context, tx store.Getter, groupID, userID string) error {
	if _, err := s.memberships.Get(ctx, tx, groupID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound(apperr.CodeMemberNotFound, "member not found")
		}
		return err
	}
	return nil
}

// CheckMember reports GROUP_NOT_FOUND for a missing group and Forbidden when
// userID is not one of its members.
func (s *GroupService) CheckMember(ctx context.Context, groupID, userID string) error {
	if _, err := s.groups.GetView(ctx, groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return groupNotFound()
		}
		return storageError(err)
	}
	ok, err := s.memberships.IsMember(ctx, groupID, userID)
	if err != nil {
		return storageError(err)
	}
	if !ok {
		return apperr.Forbidden("only group members can view this group's records")
	}
	return nil
}

func (s *GroupService) publish(userID, action string, change MembershipChange) {
	s.hub.BroadcastGroup(userID, websocket.GroupUpdate{
		GroupID:     change.GroupID,
		Action:      action,
		Status:      string(change.Status),
		MemberCount: change.MemberCount,
	})
}

func groupNotFound() error {
	return apperr.NotFound(apperr.CodeGroupNotFound, "group not found")
}

func alreadyMember() error {
	return apperr.Validation(apperr.CodeAlreadyMember, "already a member of this group")
}

func invalidSettings(err error) error {
	return apperr.Validation(apperr.CodeInvalidGroupSettings, err.Error())
}

func corruptSettings(groupID string, err error) error {
	return apperr.Internal(fmt.Errorf("group %s has invalid stored settings: %w", groupID, err))
}
