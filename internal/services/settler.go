package services

import (
	"context"

	"esusu/internal/models"
)

// Settler decides the settlement status of a freshly recorded contribution.
// It runs inside the recording transaction; an error rolls the record back.
type Settler interface {
	Settle(ctx context.Context, contribution models.Contribution) (models.ContributionStatus, error)
}

// InstantSettler completes every contribution immediately.
type InstantSettler struct{}

func (InstantSettler) Settle(context.Context, models.Contribution) (models.ContributionStatus, error) {
	return models.ContributionCompleted, nil
}
