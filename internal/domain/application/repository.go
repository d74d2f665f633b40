package application

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, app Application) (*Application, error)
	GetByID(ctx context.Context, id int64) (*Application, error)
	ListByCandidate(ctx context.Context, candidateID int64) ([]Application, error)
	ListForReview(ctx context.Context, filter Filter, limit, offset int) ([]ReviewItem, int, error)
	RecordDecision(ctx context.Context, id int64, decision Decision, reason *string) error
}

// ScoringJob is what a worker needs after claiming an application.
type ScoringJob struct {
	ApplicationID int64
	Domaine       string
	CVRef         string
	Attempts      int
}

type ScoringResult struct {
	Score      float64
	Experience int
	Skills     []string
}

type ScoringRepository interface {
	// ClaimScoring marks the application pending. It returns a not_found
	// error when the row is missing and a conflict error when scoring is
	// already done or claimed by a fresh worker.
	ClaimScoring(ctx context.Context, id int64, staleBefore time.Time) (*ScoringJob, error)
	CompleteScoring(ctx context.Context, id int64, result ScoringResult) error
	FailScoring(ctx context.Context, id int64, reason string) error
	// ReleaseScoring returns a pending claim to not_started without
	// counting the attempt.
	ReleaseScoring(ctx context.Context, id int64) error
	// FailStalledScoring marks stale pending rows that have no attempts
	// left as failed and returns how many it changed.
	FailStalledScoring(ctx context.Context, staleBefore time.Time, maxAttempts int, reason string) (int64, error)
	ListScoringBacklog(ctx context.Context, createdBefore, staleBefore time.Time, maxAttempts, limit int) ([]int64, error)
}
