package http

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"stageportal/internal/common"
	"stageportal/internal/domain/application"
	"stageportal/internal/domain/user"
)

type memoryStore struct {
	mu           sync.Mutex
	candidates   map[int64]user.Candidate
	admins       map[int64]user.Admin
	applications map[int64]application.Application
	nextID       int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		candidates:   make(map[int64]user.Candidate),
		admins:       make(map[int64]user.Admin),
		applications: make(map[int64]application.Application),
	}
}

func (s *memoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

type candidateRepo struct{ *memoryStore }

func (r candidateRepo) Create(_ context.Context, c user.Candidate) (*user.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.candidates {
		if strings.EqualFold(existing.Email, c.Email) {
			return nil, common.NewError(common.CodeConflict, "email already registered", nil)
		}
	}
	c.ID = r.id()
	c.CreatedAt = time.Now().UTC()
	r.candidates[c.ID] = c
	return &c, nil
}

func (r candidateRepo) GetByID(_ context.Context, id int64) (*user.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.candidates[id]
	if !ok {
		return nil, common.NewError(common.CodeNotFound, "candidate not found", nil)
	}
	return &c, nil
}

func (r candidateRepo) GetByEmail(_ context.Context, email string) (*user.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.candidates {
		if strings.EqualFold(c.Email, email) {
			return &c, nil
		}
	}
	return nil, common.NewError(common.CodeNotFound, "candidate not found", nil)
}

type adminRepo struct{ *memoryStore }

func (r adminRepo) Create(_ context.Context, a user.Admin) (*user.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = r.id()
	r.admins[a.ID] = a
	return &a, nil
}

func (r adminRepo) GetByID(_ context.Context, id int64) (*user.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.admins[id]
	if !ok {
		return nil, common.NewError(common.CodeNotFound, "administrator not found", nil)
	}
	return &a, nil
}

func (r adminRepo) GetByEmail(_ context.Context, email string) (*user.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.admins {
		if strings.EqualFold(a.Email, email) {
			return &a, nil
		}
	}
	return nil, common.NewError(common.CodeNotFound, "administrator not found", nil)
}

type applicationRepo struct{ *memoryStore }

func (r applicationRepo) Create(_ context.Context, a application.Application) (*application.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = r.id()
	a.SubmittedAt = time.Now().UTC()
	a.Status = application.DecisionPending
	a.Decision = nil
	a.ScoringStatus = application.ScoringNotStarted
	r.applications[a.ID] = a
	return &a, nil
}

func (r applicationRepo) GetByID(_ context.Context, id int64) (*application.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.applications[id]
	if !ok {
		return nil, common.NewError(common.CodeNotFound, "application not found", nil)
	}
	return &a, nil
}

func (r applicationRepo) sorted() []application.Application {
	out := make([]application.Application, 0, len(r.applications))
	for _, a := range r.applications {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r applicationRepo) ListByCandidate(_ context.Context, candidateID int64) ([]application.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]application.Application, 0)
	for _, a := range r.sorted() {
		if a.CandidateID == candidateID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r applicationRepo) ListForReview(_ context.Context, filter application.Filter, limit, offset int) ([]application.ReviewItem, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := make([]application.ReviewItem, 0)
	for _, a := range r.sorted() {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.Domaine != "" && a.Domaine != filter.Domaine {
			continue
		}
		c := r.candidates[a.CandidateID]
		matched = append(matched, application.ReviewItem{
			Application: a,
			Candidate: application.CandidateSummary{
				ID:        c.ID,
				Nom:       c.Nom,
				Prenom:    c.Prenom,
				Email:     c.Email,
				Telephone: c.Telephone,
			},
		})
	}
	total := len(matched)
	if offset >= total {
		return []application.ReviewItem{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r applicationRepo) RecordDecision(_ context.Context, id int64, decision application.Decision, reason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.applications[id]
	if !ok {
		return common.NewError(common.CodeNotFound, "application not found", nil)
	}
	d := decision
	a.Status = decision
	a.Decision = &d
	a.RejectReason = reason
	r.applications[id] = a
	return nil
}

type recordingQueue struct {
	mu  sync.Mutex
	ids []int64
}

func (q *recordingQueue) Enqueue(_ context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
	return nil
}

func (q *recordingQueue) enqueued() []int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]int64(nil), q.ids...)
}

type quietLogger struct{}

func (quietLogger) Info(string)  {}
func (quietLogger) Error(string) {}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }
