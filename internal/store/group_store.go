package store

import (
	"context"

	"esusu/internal/models"
)

const groupColumns = `g.id, g.name, g.description, g.creator_id, g.tenant_id,
		g.monthly_contribution, g.max_members, g.start_date, g.end_date, g.payout_order,
		g.penalty_fee, g.status, g.rules, g.image_url, g.created_at, g.updated_at`

type GroupStore struct {
	db DB
}

// GroupFilter narrows List and Count. Nil fields match every group.
type GroupFilter struct {
	TenantID *string
	Status   *models.GroupStatus
}

func NewGroupStore(db DB) *GroupStore {
	return &GroupStore{db: db}
}

func (s *GroupStore) Create(ctx context.Context, tx Execer, group models.Group) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO groups (id, name, description, creator_id, tenant_id, monthly_contribution, max_members,
		                    start_date, end_date, payout_order, penalty_fee, status, rules, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, group.ID, group.Name, group.Description, group.CreatorID, group.TenantID,
		group.MonthlyContribution, group.MaxMembers, group.StartDate, group.EndDate, group.PayoutOrder,
		group.PenaltyFee, group.Status, group.Rules, group.ImageURL,
	)
	return err
}

func (s *GroupStore) GetByID(ctx context.Context, q Getter, groupID string) (models.Group, error) {
	var row models.Group
	err := q.GetContext(ctx, &row, `SELECT `+groupColumns+` FROM groups g WHERE g.id = $1`, groupID)
	if err != nil {
		return models.Group{}, err
	}
	return row, nil
}

// GetForUpdate locks the group row. Membership changes take this lock first so
// capacity checks on the same group run one at a time.
func (s *GroupStore) GetForUpdate(ctx context.Context, tx Getter, groupID string) (models.Group, error) {
	var row models.Group
	err := tx.GetContext(ctx, &row, `
		SELECT `+groupColumns+`
		FROM groups g
		WHERE g.id = $1
		FOR UPDATE
	`, groupID)
	if err != nil {
		return models.Group{}, err
	}
	return row, nil
}

func (s *GroupStore) GetView(ctx context.Context, groupID string) (models.GroupView, error) {
	var row models.GroupView
	err := s.db.GetContext(ctx, &row, `
		SELECT `+groupColumns+`,
		       (SELECT COUNT(1) FROM group_members m WHERE m.group_id = g.id) AS member_count
		FROM groups g
		WHERE g.id = $1
	`, groupID)
	if err != nil {
		return models.GroupView{}, err
	}
	return row, nil
}

func (s *GroupStore) List(ctx context.Context, filter GroupFilter, limit, offset int) ([]models.GroupView, error) {
	var rows []models.GroupView
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+groupColumns+`,
		       (SELECT COUNT(1) FROM group_members m WHERE m.group_id = g.id) AS member_count
		FROM groups g
		WHERE ($1::text IS NULL OR g.tenant_id = $1)
		  AND ($2::text IS NULL OR g.status = $2)
		ORDER BY g.created_at DESC, g.id
		LIMIT $3 OFFSET $4
	`, filter.TenantID, statusArg(filter.Status), limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *GroupStore) Count(ctx context.Context, filter GroupFilter) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(1)
		FROM groups g
		WHERE ($1::text IS NULL OR g.tenant_id = $1)
		  AND ($2::text IS NULL OR g.status = $2)
	`, filter.TenantID, statusArg(filter.Status))
	return count, err
}

// Update rewrites the mutable columns of the group from its current value.
func (s *GroupStore) Update(ctx context.Context, tx Execer, group models.Group) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE groups
		SET name = $1, description = $2, monthly_contribution = $3, max_members = $4,
		    start_date = $5, end_date = $6, payout_order = $7, penalty_fee = $8,
		    status = $9, rules = $10, image_url = $11, updated_at = NOW()
		WHERE id = $12
	`, group.Name, group.Description, group.MonthlyContribution, group.MaxMembers,
		group.StartDate, group.EndDate, group.PayoutOrder, group.PenaltyFee,
		group.Status, group.Rules, group.ImageURL, group.ID,
	)
	return err
}

func (s *GroupStore) UpdateStatus(ctx context.Context, tx Execer, groupID string, status models.GroupStatus) error {
	_, err := tx.ExecContext(ctx, `UPDATE groups SET status = $1, updated_at = NOW() WHERE id = $2`, status, groupID)
	return err
}

// Delete removes the group; memberships and contributions cascade.
func (s *GroupStore) Delete(ctx context.Context, tx Execer, groupID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, groupID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func statusArg(status *models.GroupStatus) *string {
	if status == nil {
		return nil
	}
	value := string(*status)
	return &value
}
