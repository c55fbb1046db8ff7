package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"esusu/internal/apperr"
	"esusu/internal/db"
	"esusu/internal/models"
	"esusu/internal/money"
	"esusu/internal/store"
	"esusu/internal/telemetry"
	"esusu/internal/validator"
	"esusu/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const accountNumberAttempts = 3

var minimumBalances = map[models.AccountType]decimal.Decimal{
	models.AccountSavings:      decimal.NewFromInt(1000),
	models.AccountCurrent:      decimal.Zero,
	models.AccountFixedDeposit: decimal.NewFromInt(5000),
}

type AccountStore interface {
	Create(ctx context.Context, tx store.Execer, account models.Account) error
	GetByID(ctx context.Context, accountID string) (models.Account, error)
	GetForUpdate(ctx context.Context, tx store.Getter, accountID string) (models.Account, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Account, error)
	UpdateBalances(ctx context.Context, tx store.Execer, accountID string, balance, available decimal.Decimal) error
}

type AccountTransactionStore interface {
	Create(ctx context.Context, tx store.Getter, input models.AccountTransaction) (models.AccountTransaction, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.AccountTransaction, error)
	CountByAccount(ctx context.Context, accountID string) (int, error)
}

type BalanceHub interface {
	BroadcastBalance(userID string, update websocket.BalanceUpdate)
}

type AccountService struct {
	txRunner        db.TxRunner
	accounts        AccountStore
	transactions    AccountTransactionStore
	audit           AuditStore
	hub             BalanceHub
	defaultCurrency string
}

func NewAccountService(txRunner db.TxRunner, accounts AccountStore, transactions AccountTransactionStore, audit AuditStore, hub BalanceHub, defaultCurrency string) *AccountService {
	return &AccountService{
		txRunner:        txRunner,
		accounts:        accounts,
		transactions:    transactions,
		audit:           audit,
		hub:             hub,
		defaultCurrency: defaultCurrency,
	}
}

// OpenAccountRequest opens an account funded by InitialDeposit, which must
// cover the minimum balance of Type.
type OpenAccountRequest struct {
	OwnerID        string
	Type           models.AccountType
	Currency       string
	InitialDeposit decimal.Decimal
}

// MovementRequest is a deposit or withdrawal issued by CallerID.
type MovementRequest struct {
	AccountID   string
	CallerID    string
	Amount      decimal.Decimal
	Description string
}

func (s *AccountService) OpenAccount(ctx context.Context, req OpenAccountRequest) (account models.Account, err error) {
	ctx, span := telemetry.StartSpan(ctx, "AccountService.OpenAccount", attribute.String("account.type", string(req.Type)))
	defer func() { telemetry.End(span, err) }()

	if err := validator.ValidateAccountType(req.Type); err != nil {
		return models.Account{}, apperr.Validation(apperr.CodeInvalidAccount, err.Error())
	}
	currency := req.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}
	if err := validator.ValidateCurrency(currency); err != nil {
		return models.Account{}, apperr.Validation(apperr.CodeInvalidAccount, err.Error())
	}

	minimum := minimumBalances[req.Type]
	initial := req.InitialDeposit
	if initial.IsNegative() || !money.HasValidScale(initial) {
		return models.Account{}, apperr.Validation(apperr.CodeInvalidAmount, "initial deposit must not be negative and have at most 2 decimal places")
	}
	if !money.WithinLimit(initial) {
		return models.Account{}, amountTooLarge()
	}
	if initial.LessThan(minimum) {
		formatted := money.Format(minimum)
		return models.Account{}, apperr.ValidationWithMetadata(apperr.CodeMinimumBalanceViolation,
			fmt.Sprintf("initial deposit must cover the minimum balance of %s", formatted),
			map[string]string{"minimum_balance": formatted})
	}

	now := time.Now().UTC()
	account = models.Account{
		ID:               uuid.NewString(),
		OwnerID:          req.OwnerID,
		Type:             req.Type,
		Balance:          initial,
		AvailableBalance: initial,
		Currency:         currency,
		MinimumBalance:   minimum,
		Status:           models.AccountActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	var opening models.AccountTransaction
	for attempt := 1; attempt <= accountNumberAttempts; attempt++ {
		account.AccountNumber = newAccountNumber()
		err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
			if err := s.accounts.Create(ctx, tx, account); err != nil {
				return err
			}
			if initial.IsPositive() {
				var err error
				opening, err = s.transactions.Create(ctx, tx, models.AccountTransaction{
					ID:           uuid.NewString(),
					AccountID:    account.ID,
					Type:         models.TransactionDeposit,
					Amount:       initial,
					BalanceAfter: initial,
					Reference:    newReference(referenceDeposit, time.Now()),
					Description:  "opening deposit",
					Status:       models.TransactionCompleted,
				})
				if err != nil {
					return err
				}
			}
			return s.audit.Log(ctx, tx, req.OwnerID, "account.open", "account", account.ID, map[string]string{
				"account_number":  account.AccountNumber,
				"type":            string(account.Type),
				"initial_deposit": money.Format(initial),
			})
		})
		if err == nil || db.ConstraintName(err) != accountNumberConstraint {
			break
		}
	}
	if err != nil {
		return models.Account{}, storageError(err)
	}
	if opening.Reference != "" {
		s.hub.BroadcastBalance(account.OwnerID, websocket.BalanceUpdate{
			AccountID:        account.ID,
			Balance:          money.Format(account.Balance),
			AvailableBalance: money.Format(account.AvailableBalance),
			Currency:         account.Currency,
			Reference:        opening.Reference,
		})
	}
	return account, nil
}

const accountNumberConstraint = "accounts_account_number_key"

func newAccountNumber() string {
	return fmt.Sprintf("%010d", rand.Int63n(10_000_000_000))
}

// GetAccount hides accounts owned by someone else behind NotFound.
func (s *AccountService) GetAccount(ctx context.Context, accountID, callerID string) (models.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Account{}, accountNotFound()
		}
		return models.Account{}, storageError(err)
	}
	if account.OwnerID != callerID {
		return models.Account{}, accountNotFound()
	}
	return account, nil
}

func (s *AccountService) ListAccounts(ctx context.Context, ownerID string) ([]models.Account, error) {
	accounts, err := s.accounts.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, storageError(err)
	}
	if accounts == nil {
		accounts = []models.Account{}
	}
	return accounts, nil
}

func (s *AccountService) ListTransactions(ctx context.Context, accountID, callerID string, page, pageSize int) ([]models.AccountTransaction, int, error) {
	limit, offset, err := pageWindow(page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	if _, err := s.GetAccount(ctx, accountID, callerID); err != nil {
		return nil, 0, err
	}
	items, err := s.transactions.ListByAccount(ctx, accountID, limit, offset)
	if err != nil {
		return nil, 0, storageError(err)
	}
	total, err := s.transactions.CountByAccount(ctx, accountID)
	if err != nil {
		return nil, 0, storageError(err)
	}
	if items == nil {
		items = []models.AccountTransaction{}
	}
	return items, total, nil
}

func (s *AccountService) Deposit(ctx context.Context, req MovementRequest) (txn models.AccountTransaction, err error) {
	ctx, span := telemetry.StartSpan(ctx, "AccountService.Deposit", attribute.String("account.id", req.AccountID))
	defer func() { telemetry.End(span, err) }()

	if err := validateMovementAmount(req.Amount); err != nil {
		return models.AccountTransaction{}, err
	}
	return s.move(ctx, req, models.TransactionDeposit, func(account models.Account) (decimal.Decimal, decimal.Decimal, error) {
		balance := account.Balance.Add(req.Amount)
		if !money.WithinLimit(balance) {
			return decimal.Zero, decimal.Zero, apperr.Validation(apperr.CodeInvalidAmount,
				fmt.Sprintf("deposit would take the balance above the maximum of %s", money.Format(money.MaxAmount)))
		}
		return balance, account.AvailableBalance.Add(req.Amount), nil
	})
}

// Withdraw checks funds before the minimum balance, so a request that fails
// both reports INSUFFICIENT_FUNDS.
func (s *AccountService) Withdraw(ctx context.Context, req MovementRequest) (txn models.AccountTransaction, err error) {
	ctx, span := telemetry.StartSpan(ctx, "AccountService.Withdraw", attribute.String("account.id", req.AccountID))
	defer func() { telemetry.End(span, err) }()

	if err := validateMovementAmount(req.Amount); err != nil {
		return models.AccountTransaction{}, err
	}
	return s.move(ctx, req, models.TransactionWithdrawal, func(account models.Account) (decimal.Decimal, decimal.Decimal, error) {
		if account.AvailableBalance.LessThan(req.Amount) {
			return decimal.Zero, decimal.Zero, apperr.Validation(apperr.CodeInsufficientFunds, "insufficient funds")
		}
		available := account.AvailableBalance.Sub(req.Amount)
		if available.LessThan(account.MinimumBalance) {
			minimum := money.Format(account.MinimumBalance)
			return decimal.Zero, decimal.Zero, apperr.ValidationWithMetadata(apperr.CodeMinimumBalanceViolation,
				fmt.Sprintf("withdrawal would take the balance below the minimum balance of %s", minimum),
				map[string]string{"minimum_balance": minimum})
		}
		return account.Balance.Sub(req.Amount), available, nil
	})
}

type balanceRule func(account models.Account) (balance, available decimal.Decimal, err error)

// move applies one balance change under the account row lock and appends the
// matching transaction row in the same transaction.
func (s *AccountService) move(ctx context.Context, req MovementRequest, kind models.TransactionType, apply balanceRule) (models.AccountTransaction, error) {
	prefix := referenceDeposit
	if kind == models.TransactionWithdrawal {
		prefix = referenceWithdrawal
	}
	var (
		created models.AccountTransaction
		account models.Account
	)
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		account, err = s.accounts.GetForUpdate(ctx, tx, req.AccountID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return accountNotFound()
			}
			return err
		}
		if account.OwnerID != req.CallerID {
			return accountNotFound()
		}
		if account.Status == models.AccountClosed {
			return apperr.Validation(apperr.CodeAccountClosed, "account is closed")
		}
		balance, available, err := apply(account)
		if err != nil {
			return err
		}
		if err := s.accounts.UpdateBalances(ctx, tx, account.ID, balance, available); err != nil {
			return err
		}
		account.Balance = balance
		account.AvailableBalance = available

		created, err = s.transactions.Create(ctx, tx, models.AccountTransaction{
			ID:           uuid.NewString(),
			AccountID:    account.ID,
			Type:         kind,
			Amount:       req.Amount,
			BalanceAfter: balance,
			Reference:    newReference(prefix, time.Now()),
			Description:  req.Description,
			Status:       models.TransactionCompleted,
		})
		if err != nil {
			if db.IsUniqueViolation(err) {
				return apperr.Conflict("duplicate transaction reference", err)
			}
			return err
		}
		return s.audit.Log(ctx, tx, req.CallerID, "account."+string(kind), "account", account.ID, map[string]string{
			"reference":     created.Reference,
			"amount":        money.Format(req.Amount),
			"balance_after": money.Format(balance),
		})
	})
	if err != nil {
		return models.AccountTransaction{}, storageError(err)
	}
	s.hub.BroadcastBalance(account.OwnerID, websocket.BalanceUpdate{
		AccountID:        account.ID,
		Balance:          money.Format(account.Balance),
		AvailableBalance: money.Format(account.AvailableBalance),
		Currency:         account.Currency,
		Reference:        created.Reference,
	})
	return created, nil
}

func validateMovementAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !money.HasValidScale(amount) {
		return apperr.Validation(apperr.CodeInvalidAmount, "amount must be greater than zero with at most 2 decimal places")
	}
	if !money.WithinLimit(amount) {
		return amountTooLarge()
	}
	return nil
}

func amountTooLarge() error {
	return apperr.Validation(apperr.CodeInvalidAmount,
		fmt.Sprintf("amount must not exceed %s", money.Format(money.MaxAmount)))
}

func accountNotFound() error {
	return apperr.NotFound(apperr.CodeAccountNotFound, "account not found")
}
