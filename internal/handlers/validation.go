package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"esusu/internal/apperr"
	"esusu/internal/money"
	"esusu/internal/validator"

	"github.com/shopspring/decimal"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
)

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := money.ParsePositive(raw)
	switch {
	case errors.Is(err, money.ErrAmountTooLarge):
		return decimal.Zero, apperr.Validation(apperr.CodeInvalidAmount, "amount must not exceed "+money.Format(money.MaxAmount))
	case err != nil:
		return decimal.Zero, apperr.Validation(apperr.CodeInvalidAmount, "amount must be a positive decimal with at most 2 decimal places")
	}
	return amount, nil
}

// parseInitialDeposit treats an empty value as zero; the service enforces the
// type minimum.
func parseInitialDeposit(raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	return parseAmount(raw)
}

func parseSetting(raw, field string, parse func(string) (decimal.Decimal, error)) (decimal.Decimal, error) {
	value, err := parse(raw)
	if err != nil {
		return decimal.Zero, apperr.Validation(apperr.CodeInvalidGroupSettings, field+": "+err.Error())
	}
	return value, nil
}

func parseDate(raw, field string) (time.Time, error) {
	date, err := validator.ParseDate(raw)
	if err != nil {
		return time.Time{}, apperr.Validation(apperr.CodeInvalidGroupSettings, field+": "+err.Error())
	}
	return date, nil
}

func parseOptionalDate(raw *string, field string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	date, err := parseDate(*raw, field)
	if err != nil {
		return nil, err
	}
	return &date, nil
}

// parsePage reads page and page_size, defaulting to 1 and 20. Range checks
// happen in the services.
func parsePage(r *http.Request) (int, int, error) {
	query := r.URL.Query()
	pageNumber, pageSize := defaultPage, defaultPageSize
	if raw := query.Get("page"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, apperr.Validation(apperr.CodeInvalidPagination, "page must be an integer")
		}
		pageNumber = value
	}
	if raw := query.Get("page_size"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, apperr.Validation(apperr.CodeInvalidPagination, "page_size must be an integer")
		}
		pageSize = value
	}
	return pageNumber, pageSize, nil
}

func optionalQuery(r *http.Request, key string) *string {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return nil
	}
	return &value
}
