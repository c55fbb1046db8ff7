package store

import (
	"context"

	"esusu/internal/models"
)

// AccountTransactionStore persists the deposit and withdrawal history of an
// account. Rows are append-only.
type AccountTransactionStore struct {
	db DB
}

func NewAccountTransactionStore(db DB) *AccountTransactionStore {
	return &AccountTransactionStore{db: db}
}

func (s *AccountTransactionStore) Create(ctx context.Context, tx Getter, input models.AccountTransaction) (models.AccountTransaction, error) {
	var row models.AccountTransaction
	err := tx.GetContext(ctx, &row, `
		INSERT INTO account_transactions (id, account_id, type, amount, balance_after, reference, description, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, account_id, type, amount, balance_after, reference, description, status, created_at
	`, input.ID, input.AccountID, input.Type, input.Amount, input.BalanceAfter, input.Reference, input.Description, input.Status)
	if err != nil {
		return models.AccountTransaction{}, err
	}
	return row, nil
}

func (s *AccountTransactionStore) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.AccountTransaction, error) {
	var rows []models.AccountTransaction
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, account_id, type, amount, balance_after, reference, description, status, created_at
		FROM account_transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *AccountTransactionStore) CountByAccount(ctx context.Context, accountID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM account_transactions WHERE account_id = $1`, accountID)
	return count, err
}
