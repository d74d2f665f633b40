package app

import (
	"context"
	"fmt"
	"strings"

	"stageportal/internal/common"
	"stageportal/internal/domain/application"
)

const (
	DefaultPage  = 1
	DefaultLimit = 50
	MaxLimit     = 100
)

type ReviewService struct {
	repo   application.Repository
	logger Logger
}

func NewReviewService(repo application.Repository, logger Logger) *ReviewService {
	return &ReviewService{repo: repo, logger: logger}
}

// ReviewQuery selects a page of applications. Zero page or limit means the default.
type ReviewQuery struct {
	Statut  string
	Domaine string
	Page    int
	Limit   int
}

func (s *ReviewService) List(ctx context.Context, query ReviewQuery) (*application.Page, error) {
	page, limit := query.Page, query.Limit
	if page == 0 {
		page = DefaultPage
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	fields := map[string]string{}
	if page < 1 {
		fields["page"] = "page must be at least 1"
	}
	if limit < 1 || limit > MaxLimit {
		fields["limit"] = "limit must be between 1 and 100"
	}
	filter := application.Filter{Domaine: strings.TrimSpace(query.Domaine)}
	if statut := strings.TrimSpace(query.Statut); statut != "" {
		decision, ok := application.ParseDecision(statut)
		if !ok {
			fields["statut"] = "statut must be En attente, Accepté or Rejeté"
		}
		filter.Status = decision
	}
	if len(fields) > 0 {
		return nil, common.NewValidationError("invalid query", fields)
	}

	items, total, err := s.repo.ListForReview(ctx, filter, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	return &application.Page{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: application.TotalPages(total, limit),
	}, nil
}

// RecordDecision sets the status and staff decision together. The reason is
// stored as sent; a blank one clears any previous reason.
func (s *ReviewService) RecordDecision(ctx context.Context, id int64, decision, reason string) error {
	parsed, ok := application.ParseDecision(decision)
	if !ok {
		return common.NewValidationError("invalid decision", map[string]string{"decisionRH": "decisionRH must be En attente, Accepté or Rejeté"})
	}
	var motif *string
	if strings.TrimSpace(reason) != "" {
		motif = &reason
	}
	if err := s.repo.RecordDecision(ctx, id, parsed, motif); err != nil {
		return err
	}
	s.logger.Info(fmt.Sprintf("decision recorded for application %d: %s", id, parsed))
	return nil
}
