package validator

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"esusu/internal/models"
	"esusu/internal/money"

	"golang.org/x/text/currency"
)

const DateLayout = "2006-01-02"

var (
	ErrInvalidGroupName     = errors.New("group name must be between 3 and 100 characters")
	ErrInvalidMaxMembers    = errors.New("max_members must be between 2 and 50")
	ErrInvalidContribution  = errors.New("monthly_contribution must be greater than zero with at most 2 decimal places")
	ErrInvalidPenaltyFee    = errors.New("penalty_fee must not be negative")
	ErrInvalidPayoutOrder   = errors.New("payout_order must be one of fixed, random, bidding")
	ErrInvalidDate          = errors.New("date must use YYYY-MM-DD")
	ErrInvalidDateRange     = errors.New("end_date must be after start_date")
	ErrInvalidGroupStatus   = errors.New("status must be recruiting or active")
	ErrInvalidCurrency      = errors.New("currency must be an ISO 4217 code")
	ErrInvalidAccountType   = errors.New("account type must be savings, current or fixed_deposit")
	ErrDescriptionTooLong   = errors.New("description must be at most 1000 characters")
	ErrInvalidPaymentMethod = errors.New("payment method is required")
)

func ValidateGroupName(name string) error {
	length := utf8.RuneCountInString(strings.TrimSpace(name))
	if length < 3 || length > 100 {
		return ErrInvalidGroupName
	}
	return nil
}

func ValidateDescription(description string) error {
	if utf8.RuneCountInString(description) > 1000 {
		return ErrDescriptionTooLong
	}
	return nil
}

func ParseDate(raw string) (time.Time, error) {
	parsed, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return parsed, nil
}

// ValidateGroupSettings checks every typed setting of a group. It runs on
// create, on update and after every load from storage.
func ValidateGroupSettings(settings models.GroupSettings) error {
	if settings.MaxMembers < models.MinGroupMembers || settings.MaxMembers > models.MaxGroupMembers {
		return ErrInvalidMaxMembers
	}
	if !settings.MonthlyContribution.IsPositive() || !money.HasValidScale(settings.MonthlyContribution) || !money.WithinLimit(settings.MonthlyContribution) {
		return ErrInvalidContribution
	}
	if settings.PenaltyFee.IsNegative() || !money.HasValidScale(settings.PenaltyFee) || !money.WithinLimit(settings.PenaltyFee) {
		return ErrInvalidPenaltyFee
	}
	if !settings.PayoutOrder.Valid() {
		return ErrInvalidPayoutOrder
	}
	if settings.StartDate.IsZero() || settings.EndDate.IsZero() {
		return ErrInvalidDate
	}
	if !settings.EndDate.After(settings.StartDate) {
		return ErrInvalidDateRange
	}
	switch settings.Status {
	case models.GroupRecruiting, models.GroupActive:
	default:
		return ErrInvalidGroupStatus
	}
	return nil
}

func ValidateCurrency(code string) error {
	if len(code) != 3 || strings.ToUpper(code) != code {
		return ErrInvalidCurrency
	}
	if _, err := currency.ParseISO(code); err != nil {
		return ErrInvalidCurrency
	}
	return nil
}

func ValidateAccountType(accountType models.AccountType) error {
	if !accountType.Valid() {
		return ErrInvalidAccountType
	}
	return nil
}
