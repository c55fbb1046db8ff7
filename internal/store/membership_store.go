package store

import (
	"context"
	"database/sql"
	"errors"

	"esusu/internal/models"
)

type MembershipStore struct {
	db DB
}

func NewMembershipStore(db DB) *MembershipStore {
	return &MembershipStore{db: db}
}

func (s *MembershipStore) Create(ctx context.Context, tx Execer, groupID, userID string, role models.Role) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO group_members (group_id, user_id, role)
		VALUES ($1, $2, $3)
	`, groupID, userID, role)
	return err
}

func (s *MembershipStore) Get(ctx context.Context, q Getter, groupID, userID string) (models.Membership, error) {
	var row models.Membership
	err := q.GetContext(ctx, &row, `
		SELECT group_id, user_id, role, joined_at
		FROM group_members
		WHERE group_id = $1 AND user_id = $2
	`, groupID, userID)
	if err != nil {
		return models.Membership{}, err
	}
	return row, nil
}

func (s *MembershipStore) Count(ctx context.Context, q Getter, groupID string) (int, error) {
	var count int
	err := q.GetContext(ctx, &count, `SELECT COUNT(1) FROM group_members WHERE group_id = $1`, groupID)
	return count, err
}

func (s *MembershipStore) Delete(ctx context.Context, tx Execer, groupID, userID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *MembershipStore) UpdateRole(ctx context.Context, tx Execer, groupID, userID string, role models.Role) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE group_members
		SET role = $1
		WHERE group_id = $2 AND user_id = $3
	`, role, groupID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *MembershipStore) ListByGroup(ctx context.Context, groupID string) ([]models.Membership, error) {
	var rows []models.Membership
	err := s.db.SelectContext(ctx, &rows, `
		SELECT group_id, user_id, role, joined_at
		FROM group_members
		WHERE group_id = $1
		ORDER BY joined_at, user_id
	`, groupID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// IsMember reports whether userID holds any role in the group.
func (s *MembershipStore) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var role string
	err := s.db.GetContext(ctx, &role, `
		SELECT role
		FROM group_members
		WHERE group_id = $1 AND user_id = $2
	`, groupID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
