package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stageportal/internal/common"
	"stageportal/internal/domain/application"
	"stageportal/internal/storage"
)

const enqueueTimeout = 2 * time.Second

// ScoringQueue accepts applications for asynchronous scoring.
type ScoringQueue interface {
	Enqueue(ctx context.Context, id int64) error
}

type EnqueueRecorder interface {
	EnqueueFailed()
}

type ApplicationService struct {
	repo      application.Repository
	documents DocumentStore
	queue     ScoringQueue
	metrics   EnqueueRecorder
	logger    Logger
}

func NewApplicationService(repo application.Repository, documents DocumentStore, queue ScoringQueue, metrics EnqueueRecorder, logger Logger) *ApplicationService {
	return &ApplicationService{repo: repo, documents: documents, queue: queue, metrics: metrics, logger: logger}
}

type SubmitInput struct {
	Domaine       string
	Etablissement string
	Niveau        string
	Description   string
}

// Submit stores both documents and records a pending application. Scoring
// is queued afterwards and never affects the outcome.
func (s *ApplicationService) Submit(ctx context.Context, candidateID int64, input SubmitInput, cv, lettre *storage.Upload) (*application.Application, error) {
	input.Domaine = strings.TrimSpace(input.Domaine)
	input.Etablissement = strings.TrimSpace(input.Etablissement)
	input.Niveau = strings.TrimSpace(input.Niveau)
	input.Description = strings.TrimSpace(input.Description)

	fields := map[string]string{}
	if input.Domaine == "" {
		fields["domaine"] = "required"
	}
	if input.Etablissement == "" {
		fields["etablissement"] = "required"
	}
	if input.Niveau == "" {
		fields["niveau"] = "required"
	}
	if cv == nil {
		fields["cv"] = "required"
	}
	if lettre == nil {
		fields["lettre"] = "required"
	}
	if len(fields) > 0 {
		return nil, common.NewValidationError("domaine, etablissement, niveau, cv and lettre are required", fields)
	}

	if err := s.documents.Check(*cv); err != nil {
		return nil, err
	}
	if err := s.documents.Check(*lettre); err != nil {
		return nil, err
	}
	cvRef, err := s.documents.Store(ctx, *cv)
	if err != nil {
		return nil, err
	}
	letterRef, err := s.documents.Store(ctx, *lettre)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, application.Application{
		CandidateID:   candidateID,
		CVRef:         cvRef,
		LetterRef:     letterRef,
		Domaine:       input.Domaine,
		Etablissement: input.Etablissement,
		Niveau:        input.Niveau,
		Description:   input.Description,
	})
	if err != nil {
		return nil, err
	}
	s.enqueue(ctx, created.ID)
	return created, nil
}

func (s *ApplicationService) enqueue(ctx context.Context, id int64) {
	if s.queue == nil {
		return
	}
	enqueueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()
	if err := s.queue.Enqueue(enqueueCtx, id); err != nil {
		if s.metrics != nil {
			s.metrics.EnqueueFailed()
		}
		s.logger.Error(fmt.Sprintf("enqueue scoring for application %d: %v", id, err))
	}
}

func (s *ApplicationService) ListForCandidate(ctx context.Context, candidateID int64) ([]application.Application, error) {
	return s.repo.ListByCandidate(ctx, candidateID)
}
