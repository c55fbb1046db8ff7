package store

import (
	"context"

	"esusu/internal/models"
)

const contributionColumns = `c.id, c.group_id, g.name AS group_name, c.payer_user_id, c.amount, c.currency,
		c.payment_reference, c.status, c.payment_method, c.account_ref, c.due_date, c.notes,
		c.created_at, c.updated_at`

type ContributionStore struct {
	db DB
}

func NewContributionStore(db DB) *ContributionStore {
	return &ContributionStore{db: db}
}

func (s *ContributionStore) Create(ctx context.Context, tx Execer, contribution models.Contribution) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO contributions (id, group_id, payer_user_id, amount, currency, payment_reference,
		                           status, payment_method, account_ref, due_date, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, contribution.ID, contribution.GroupID, contribution.PayerUserID, contribution.Amount,
		contribution.Currency, contribution.PaymentReference, contribution.Status, contribution.PaymentMethod,
		contribution.AccountRef, contribution.DueDate, contribution.Notes,
	)
	return err
}

func (s *ContributionStore) UpdateStatus(ctx context.Context, tx Execer, contributionID string, status models.ContributionStatus) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE contributions
		SET status = $1, updated_at = clock_timestamp()
		WHERE id = $2
	`, status, contributionID)
	return err
}

// GetByID returns the contribution joined with its group's name.
func (s *ContributionStore) GetByID(ctx context.Context, q Getter, contributionID string) (models.Contribution, error) {
	var row models.Contribution
	err := q.GetContext(ctx, &row, `
		SELECT `+contributionColumns+`
		FROM contributions c
		JOIN groups g ON g.id = c.group_id
		WHERE c.id = $1
	`, contributionID)
	if err != nil {
		return models.Contribution{}, err
	}
	return row, nil
}

func (s *ContributionStore) ListByPayer(ctx context.Context, payerID string, groupID *string, limit, offset int) ([]models.Contribution, error) {
	var rows []models.Contribution
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+contributionColumns+`
		FROM contributions c
		JOIN groups g ON g.id = c.group_id
		WHERE c.payer_user_id = $1
		  AND ($2::text IS NULL OR c.group_id = $2)
		ORDER BY c.created_at DESC, c.id DESC
		LIMIT $3 OFFSET $4
	`, payerID, groupID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *ContributionStore) CountByPayer(ctx context.Context, payerID string, groupID *string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(1)
		FROM contributions c
		WHERE c.payer_user_id = $1
		  AND ($2::text IS NULL OR c.group_id = $2)
	`, payerID, groupID)
	return count, err
}

func (s *ContributionStore) ListByGroup(ctx context.Context, groupID string, limit, offset int) ([]models.Contribution, error) {
	var rows []models.Contribution
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+contributionColumns+`
		FROM contributions c
		JOIN groups g ON g.id = c.group_id
		WHERE c.group_id = $1
		ORDER BY c.created_at DESC, c.id DESC
		LIMIT $2 OFFSET $3
	`, groupID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *ContributionStore) CountByGroup(ctx context.Context, groupID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM contributions WHERE group_id = $1`, groupID)
	return count, err
}
