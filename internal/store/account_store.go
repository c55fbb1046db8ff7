package store

import (
	"context"

	"esusu/internal/models"

	"github.com/shopspring/decimal"
)

const accountColumns = `id, owner_id, account_number, type, balance, available_balance, currency, minimum_balance, status, created_at, updated_at`

type AccountStore struct {
	db DB
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Create(ctx context.Context, tx Execer, account models.Account) error {
	query := `
		INSERT INTO accounts (id, owner_id, account_number, type, balance, available_balance, currency, minimum_balance, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := tx.ExecContext(ctx, query,
		account.ID, account.OwnerID, account.AccountNumber, account.Type, account.Balance,
		account.AvailableBalance, account.Currency, account.MinimumBalance, account.Status,
	)
	return err
}

func (s *AccountStore) GetByID(ctx context.Context, accountID string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

// GetForUpdate reads the account and holds its row lock until tx ends.
func (s *AccountStore) GetForUpdate(ctx context.Context, tx Getter, accountID string) (models.Account, error) {
	var row models.Account
	err := tx.GetContext(ctx, &row, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, accountID)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) ListByOwner(ctx context.Context, ownerID string) ([]models.Account, error) {
	var rows []models.Account
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *AccountStore) UpdateBalances(ctx context.Context, tx Execer, accountID string, balance, available decimal.Decimal) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, available_balance = $2, updated_at = NOW()
		WHERE id = $3
	`, balance, available, accountID)
	return err
}
