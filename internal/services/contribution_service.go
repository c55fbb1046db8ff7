package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"esusu/internal/apperr"
	"esusu/internal/db"
	"esusu/internal/models"
	"esusu/internal/money"
	"esusu/internal/store"
	"esusu/internal/telemetry"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

type ContributionStore interface {
	Create(ctx context.Context, tx store.Execer, contribution models.Contribution) error
	UpdateStatus(ctx context.Context, tx store.Execer, contributionID string, status models.ContributionStatus) error
	GetByID(ctx context.Context, q store.Getter, contributionID string) (models.Contribution, error)
	ListByPayer(ctx context.Context, payerID string, groupID *string, limit, offset int) ([]models.Contribution, error)
	CountByPayer(ctx context.Context, payerID string, groupID *string) (int, error)
	ListByGroup(ctx context.Context, groupID string, limit, offset int) ([]models.Contribution, error)
	CountByGroup(ctx context.Context, groupID string) (int, error)
}

type ContributionGroupStore interface {
	GetByID(ctx context.Context, q store.Getter, groupID string) (models.Group, error)
}

type ContributionMemberStore interface {
	Get(ctx context.Context, q store.Getter, groupID, userID string) (models.Membership, error)
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
}

type ContributionService struct {
	txRunner      db.TxRunner
	groups        ContributionGroupStore
	memberships   ContributionMemberStore
	contributions ContributionStore
	audit         AuditStore
	settler       Settler
	currency      string
}

func NewContributionService(txRunner db.TxRunner, groups ContributionGroupStore, memberships ContributionMemberStore, contributions ContributionStore, audit AuditStore, settler Settler, currency string) *ContributionService {
	return &ContributionService{
		txRunner:      txRunner,
		groups:        groups,
		memberships:   memberships,
		contributions: contributions,
		audit:         audit,
		settler:       settler,
		currency:      currency,
	}
}

type RecordContributionRequest struct {
	GroupID       string
	PayerID       string
	Amount        decimal.Decimal
	PaymentMethod string
	AccountRef    *string
	DueDate       *time.Time
	Notes         *string
}

// RecordContribution stores a pending contribution, settles it and returns the
// settled row. Every step runs in one transaction.
func (s *ContributionService) RecordContribution(ctx context.Context, req RecordContributionRequest) (contribution models.Contribution, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ContributionService.RecordContribution", attribute.String("group.id", req.GroupID))
	defer func() { telemetry.End(span, err) }()

	if !req.Amount.IsPositive() || !money.HasValidScale(req.Amount) {
		return models.Contribution{}, apperr.Validation(apperr.CodeInvalidAmount, "amount must be greater than zero with at most 2 decimal places")
	}
	if !money.WithinLimit(req.Amount) {
		return models.Contribution{}, amountTooLarge()
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		return models.Contribution{}, apperr.Validation(apperr.CodeInvalidPaymentMethod, "payment method is required")
	}

	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		group, err := s.groups.GetByID(ctx, tx, req.GroupID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return groupNotFound()
			}
			return err
		}
		if _, err := s.memberships.Get(ctx, tx, req.GroupID, req.PayerID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.Validation(apperr.CodeNotMember, "not a member of this group")
			}
			return err
		}
		if group.Status != models.GroupActive {
			return apperr.Validation(apperr.CodeGroupNotActive, "group is not active")
		}
		if !money.WithinTolerance(req.Amount, group.MonthlyContribution) {
			expected := money.Format(group.MonthlyContribution)
			return apperr.ValidationWithMetadata(apperr.CodeAmountMismatch,
				fmt.Sprintf("contribution amount must be %s", expected),
				map[string]string{"expected_amount": expected})
		}

		pending := models.Contribution{
			ID:               uuid.NewString(),
			GroupID:          req.GroupID,
			GroupName:        group.Name,
			PayerUserID:      req.PayerID,
			Amount:           req.Amount,
			Currency:         s.currency,
			PaymentReference: newReference(referenceContribution, time.Now()),
			Status:           models.ContributionPending,
			PaymentMethod:    req.PaymentMethod,
			AccountRef:       req.AccountRef,
			DueDate:          req.DueDate,
			Notes:            req.Notes,
		}
		if err := s.contributions.Create(ctx, tx, pending); err != nil {
			switch {
			case db.IsUniqueViolation(err):
				return apperr.Conflict("duplicate payment reference", err)
			case db.IsForeignKeyViolation(err):
				return apperr.NotFound(apperr.CodeGroupNotFound, "group not found")
			}
			return err
		}
		status, err := s.settler.Settle(ctx, pending)
		if err != nil {
			return fmt.Errorf("settle contribution %s: %w", pending.ID, err)
		}
		if status != models.ContributionPending {
			if err := s.contributions.UpdateStatus(ctx, tx, pending.ID, status); err != nil {
				return err
			}
		}
		if err := s.audit.Log(ctx, tx, req.PayerID, "contribution.record", "group", req.GroupID, map[string]string{
			"contribution_id":   pending.ID,
			"payment_reference": pending.PaymentReference,
			"amount":            money.Format(req.Amount),
			"status":            string(status),
		}); err != nil {
			return err
		}
		contribution, err = s.contributions.GetByID(ctx, tx, pending.ID)
		return err
	})
	if err != nil {
		return models.Contribution{}, storageError(err)
	}
	return contribution, nil
}

// ListContributions returns the payer's contributions newest first, optionally
// narrowed to one group, with the total row count for pagination.
func (s *ContributionService) ListContributions(ctx context.Context, payerID string, groupID *string, page, pageSize int) ([]models.Contribution, int, error) {
	limit, offset, err := pageWindow(page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.contributions.ListByPayer(ctx, payerID, groupID, limit, offset)
	if err != nil {
		return nil, 0, storageError(err)
	}
	total, err := s.contributions.CountByPayer(ctx, payerID, groupID)
	if err != nil {
		return nil, 0, storageError(err)
	}
	if items == nil {
		items = []models.Contribution{}
	}
	return items, total, nil
}

func (s *ContributionService) ListGroupContributions(ctx context.Context, groupID, callerID string, page, pageSize int) ([]models.Contribution, int, error) {
	limit, offset, err := pageWindow(page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	ok, err := s.memberships.IsMember(ctx, groupID, callerID)
	if err != nil {
		return nil, 0, storageError(err)
	}
	if !ok {
		return nil, 0, apperr.Forbidden("only group members can view this group's records")
	}
	items, err := s.contributions.ListByGroup(ctx, groupID, limit, offset)
	if err != nil {
		return nil, 0, storageError(err)
	}
	total, err := s.contributions.CountByGroup(ctx, groupID)
	if err != nil {
		return nil, 0, storageError(err)
	}
	if items == nil {
		items = []models.Contribution{}
	}
	return items, total, nil
}
