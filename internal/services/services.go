package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"esusu/internal/apperr"
	"esusu/internal/db"
	"esusu/internal/store"

	"github.com/google/uuid"
)

const (
	referenceDeposit      = "DEP"
	referenceWithdrawal   = "WDL"
	referenceContribution = "TXN"

	maxPageSize = 100
)

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID string, data any) error
}

// newReference builds PREFIX-<unix millis>-<8 uppercase hex chars>. Uniqueness
// is enforced by the storage layer.
func newReference(prefix string, now time.Time) string {
	random := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("%s-%d-%s", prefix, now.UnixMilli(), random)
}

// pageWindow converts a 1-based page into LIMIT/OFFSET.
func pageWindow(page, pageSize int) (int, int, error) {
	if page < 1 || pageSize < 1 || pageSize > maxPageSize {
		return 0, 0, apperr.Validation(apperr.CodeInvalidPagination,
			fmt.Sprintf("page must be >= 1 and page_size between 1 and %d", maxPageSize))
	}
	if page > math.MaxInt/pageSize {
		return 0, 0, apperr.Validation(apperr.CodeInvalidPagination, "page is out of range")
	}
	return pageSize, (page - 1) * pageSize, nil
}

// storageError classifies an error returned from a transaction or store call.
// Domain errors pass through; exhausted retries become a conflict and
// everything else is internal.
func storageError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, db.ErrRetryLimit) {
		return apperr.Conflict("the resource was modified concurrently, please retry", err)
	}
	return apperr.Internal(err)
}
