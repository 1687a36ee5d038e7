package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketplace-backend/models"
	"marketplace-backend/repository"
)

// ClaimOutcome describes what a caller should do after trying to claim a
// key.
type ClaimOutcome int

const (
	// ClaimAcquired: this caller owns the key and must run the operation.
	ClaimAcquired ClaimOutcome = iota
	// ClaimCompleted: the operation already ran; return the prior result.
	ClaimCompleted
	// ClaimInFlight: another caller holds the key; treat as success and do
	// nothing.
	ClaimInFlight
)

// IdempotencyGuard guarantees at-most-once execution per key. The claim is a
// create-if-absent write; losers read the existing record and short-circuit.
type IdempotencyGuard struct {
	repo repository.IdempotencyRepository
	log  *zap.Logger
}

func NewIdempotencyGuard(repo repository.IdempotencyRepository, log *zap.Logger) *IdempotencyGuard {
	return &IdempotencyGuard{repo: repo, log: log}
}

// Claim attempts to take ownership of key. When the key exists, a
// `completed` record short-circuits with its result reference, `processing`
// defers to the in-flight owner, and `failed` is reclaimed so a gateway
// redelivery can retry the operation.
func (g *IdempotencyGuard) Claim(ctx context.Context, key string) (ClaimOutcome, *models.IdempotencyRecord, error) {
	won, err := g.repo.Claim(ctx, key)
	if err != nil {
		return ClaimInFlight, nil, err
	}
	if won {
		return ClaimAcquired, nil, nil
	}

	record, err := g.repo.Get(ctx, key)
	if err != nil {
		return ClaimInFlight, nil, err
	}

	switch record.Status {
	case models.IdempotencyStatusCompleted:
		g.log.Info("Duplicate operation short-circuited",
			zap.String("key", key),
		)
		return ClaimCompleted, record, nil
	case models.IdempotencyStatusFailed:
		reclaimed, err := g.repo.Reclaim(ctx, key)
		if err != nil {
			return ClaimInFlight, nil, err
		}
		if reclaimed {
			return ClaimAcquired, nil, nil
		}
		return ClaimInFlight, record, nil
	default:
		return ClaimInFlight, record, nil
	}
}

// Complete marks a claimed key as done, recording the ledger transaction the
// operation produced.
func (g *IdempotencyGuard) Complete(ctx context.Context, key string, resultRef *uuid.UUID) {
	if err := g.repo.MarkCompleted(ctx, key, resultRef); err != nil {
		g.log.Error("Failed to mark idempotency record completed",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// Fail records a failed attempt. The record is retained so investigators can
// tell "attempted and failed" from "never attempted"; a later redelivery may
// reclaim it.
func (g *IdempotencyGuard) Fail(ctx context.Context, key string, cause error) {
	if err := g.repo.MarkFailed(ctx, key, cause.Error()); err != nil {
		g.log.Error("Failed to mark idempotency record failed",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}
