package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountSavings      AccountType = "savings"
	AccountCurrent      AccountType = "current"
	AccountFixedDeposit AccountType = "fixed_deposit"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountSavings, AccountCurrent, AccountFixedDeposit:
		return true
	}
	return false
}

type AccountStatus string

const (
	AccountPending AccountStatus = "pending"
	AccountActive  AccountStatus = "active"
	AccountClosed  AccountStatus = "closed"
)

type Account struct {
	ID               string          `db:"id" json:"id"`
	OwnerID          string          `db:"owner_id" json:"owner_id"`
	AccountNumber    string          `db:"account_number" json:"account_number"`
	Type             AccountType     `db:"type" json:"type"`
	Balance          decimal.Decimal `db:"balance" json:"balance"`
	AvailableBalance decimal.Decimal `db:"available_balance" json:"available_balance"`
	Currency         string          `db:"currency" json:"currency"`
	MinimumBalance   decimal.Decimal `db:"minimum_balance" json:"minimum_balance"`
	Status           AccountStatus   `db:"status" json:"status"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

type TransactionType string

const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
)

type TransactionStatus string

const TransactionCompleted TransactionStatus = "completed"

type AccountTransaction struct {
	ID           string            `db:"id" json:"id"`
	AccountID    string            `db:"account_id" json:"account_id"`
	Type         TransactionType   `db:"type" json:"type"`
	Amount       decimal.Decimal   `db:"amount" json:"amount"`
	BalanceAfter decimal.Decimal   `db:"balance_after" json:"balance_after"`
	Reference    string            `db:"reference" json:"reference"`
	Description  string            `db:"description" json:"description"`
	Status       TransactionStatus `db:"status" json:"status"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
}

type GroupStatus string

const (
	GroupRecruiting GroupStatus = "recruiting"
	GroupActive     GroupStatus = "active"
)

type PayoutOrder string

const (
	PayoutFixed   PayoutOrder = "fixed"
	PayoutRandom  PayoutOrder = "random"
	PayoutBidding PayoutOrder = "bidding"
)

func (p PayoutOrder) Valid() bool {
	switch p {
	case PayoutFixed, PayoutRandom, PayoutBidding:
		return true
	}
	return false
}

const (
	MinGroupMembers = 2
	MaxGroupMembers = 50
)

// GroupSettings is the typed configuration of a savings group. It is stored as
// named columns on the groups row and validated on every read and write.
type GroupSettings struct {
	MonthlyContribution decimal.Decimal `db:"monthly_contribution" json:"monthly_contribution"`
	MaxMembers          int             `db:"max_members" json:"max_members"`
	StartDate           time.Time       `db:"start_date" json:"start_date"`
	EndDate             time.Time       `db:"end_date" json:"end_date"`
	PayoutOrder         PayoutOrder     `db:"payout_order" json:"payout_order"`
	PenaltyFee          decimal.Decimal `db:"penalty_fee" json:"penalty_fee"`
	Status              GroupStatus     `db:"status" json:"status"`
	Rules               string          `db:"rules" json:"rules"`
	ImageURL            string          `db:"image_url" json:"image_url"`
}

type Group struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatorID   string    `db:"creator_id" json:"creator_id"`
	TenantID    *string   `db:"tenant_id" json:"tenant_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
	GroupSettings
}

// GroupView is a group together with its live member count.
type GroupView struct {
	Group
	MemberCount int `db:"member_count" json:"member_count"`
}

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// CanLeave is false for roles that must be transferred before leaving.
func (r Role) CanLeave() bool {
	return r == RoleMember
}

type Membership struct {
	GroupID  string    `db:"group_id" json:"group_id"`
	UserID   string    `db:"user_id" json:"user_id"`
	Role     Role      `db:"role" json:"role"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

type ContributionStatus string

const (
	ContributionPending   ContributionStatus = "pending"
	ContributionCompleted ContributionStatus = "completed"
)

type Contribution struct {
	ID               string             `db:"id" json:"id"`
	GroupID          string             `db:"group_id" json:"group_id"`
	GroupName        string             `db:"group_name" json:"group_name"`
	PayerUserID      string             `db:"payer_user_id" json:"payer_user_id"`
	Amount           decimal.Decimal    `db:"amount" json:"amount"`
	Currency         string             `db:"currency" json:"currency"`
	PaymentReference string             `db:"payment_reference" json:"payment_reference"`
	Status           ContributionStatus `db:"status" json:"status"`
	PaymentMethod    string             `db:"payment_method" json:"payment_method"`
	AccountRef       *string            `db:"account_ref" json:"account_ref,omitempty"`
	DueDate          *time.Time         `db:"due_date" json:"due_date,omitempty"`
	Notes            *string            `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `db:"updated_at" json:"updated_at"`
}
