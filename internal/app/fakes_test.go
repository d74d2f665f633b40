package app

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"stageportal/internal/common"
	"stageportal/internal/domain/application"
	"stageportal/internal/domain/user"
	"stageportal/internal/storage"
)

type fakeCandidateRepo struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*user.Candidate
}

func newFakeCandidateRepo() *fakeCandidateRepo {
	return &fakeCandidateRepo{items: make(map[int64]*user.Candidate)}
}

func (r *fakeCandidateRepo) Create(_ context.Context, candidate user.Candidate) (*user.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if strings.EqualFold(existing.Email, candidate.Email) {
			return nil, common.NewError(common.CodeConflict, "email already registered", nil)
		}
	}
	r.nextID++
	candidate.ID = r.nextID
	candidate.CreatedAt = time.Now().UTC()
	stored := candidate
	r.items[candidate.ID] = &stored
	return &candidate, nil
}

func (r *fakeCandidateRepo) GetByID(_ context.Context, id int64) (*user.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	candidate, ok := r.items[id]
	if !ok {
		return nil, common.NewError(common.CodeNotFound, "candidate not found", nil)
	}
	clone := *candidate
	return &clone, nil
}

func (r *fakeCandidateRepo) GetByEmail(_ context.Context, email string) (*user.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, candidate := range r.items {
		if strings.EqualFold(candidate.Email, email) {
			clone := *candidate
			return &clone, nil
		}
	}
	return nil, common.NewError(common.CodeNotFound, "candidate not found", nil)
}

type fakeAdminRepo struct {
	mu    sync.Mutex
	items map[int64]*user.Admin
}

func (r *fakeAdminRepo) Create(_ context.Context, admin user.Admin) (*user.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.items == nil {
		r.items = make(map[int64]*user.Admin)
	}
	admin.ID = int64(len(r.items) + 1)
	stored := admin
	r.items[admin.ID] = &stored
	return &admin, nil
}

func (r *fakeAdminRepo) GetByID(_ context.Context, id int64) (*user.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if admin, ok := r.items[id]; ok {
		clone := *admin
		return &clone, nil
	}
	return nil, common.NewError(common.CodeNotFound, "administrator not found", nil)
}

func (r *fakeAdminRepo) GetByEmail(_ context.Context, email string) (*user.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, admin := range r.items {
		if strings.EqualFold(admin.Email, email) {
			clone := *admin
			return &clone, nil
		}
	}
	return nil, common.NewError(common.CodeNotFound, "administrator not found", nil)
}

// fakeDocuments accepts uploads whose content starts with %PDF-.
type fakeDocuments struct {
	mu     sync.Mutex
	stored []string
}

func (d *fakeDocuments) Check(upload storage.Upload) error {
	if err := storage.CheckType(upload.ContentType); err != nil {
		return err
	}
	if upload.Size > 1024 {
		return common.NewError(common.CodePayloadTooLarge, "document too large", nil)
	}
	if r, ok := upload.Content.(*strings.Reader); ok {
		head := make([]byte, 5)
		n, _ := r.ReadAt(head, 0)
		if string(head[:n]) != "%PDF-" {
			return common.NewError(common.CodeUnsupportedDocument, "document is not a valid PDF", nil)
		}
	}
	return nil
}

func (d *fakeDocuments) Store(_ context.Context, upload storage.Upload) (string, error) {
	if err := d.Check(upload); err != nil {
		return "", err
	}
	if _, err := io.ReadAll(upload.Content); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	ref := "doc-" + string(rune('a'+len(d.stored))) + ".pdf"
	d.stored = append(d.stored, ref)
	return ref, nil
}

func (d *fakeDocuments) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.stored)
}

type fakeApplicationRepo struct {
	mu        sync.Mutex
	items     []application.Application
	decisions map[int64]*string
	filter    application.Filter
	limit     int
	offset    int
	total     int
	failWith  error
}

func (r *fakeApplicationRepo) Create(_ context.Context, app application.Application) (*application.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	app.ID = int64(len(r.items) + 1)
	app.Status = application.DecisionPending
	app.ScoringStatus = application.ScoringNotStarted
	app.SubmittedAt = time.Now().UTC()
	r.items = append(r.items, app)
	return &app, nil
}

func (r *fakeApplicationRepo) GetByID(_ context.Context, id int64) (*application.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, app := range r.items {
		if app.ID == id {
			clone := app
			return &clone, nil
		}
	}
	return nil, common.NewError(common.CodeNotFound, "application not found", nil)
}

func (r *fakeApplicationRepo) ListByCandidate(_ context.Context, candidateID int64) ([]application.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]application.Application, 0)
	for i := len(r.items) - 1; i >= 0; i-- {
		if r.items[i].CandidateID == candidateID {
			out = append(out, r.items[i])
		}
	}
	return out, nil
}

func (r *fakeApplicationRepo) ListForReview(_ context.Context, filter application.Filter, limit, offset int) ([]application.ReviewItem, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filter, r.limit, r.offset = filter, limit, offset
	return []application.ReviewItem{}, r.total, nil
}

func (r *fakeApplicationRepo) RecordDecision(_ context.Context, id int64, decision application.Decision, reason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID == id {
			d := decision
			r.items[i].Status = decision
			r.items[i].Decision = &d
			r.items[i].RejectReason = reason
			return nil
		}
	}
	return common.NewError(common.CodeNotFound, "application not found", nil)
}

type fakeQueue struct {
	mu  sync.Mutex
	ids []int64
	err error
}

func (q *fakeQueue) Enqueue(_ context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, id)
	return nil
}

type fakeRecorder struct {
	failures int
}

func (r *fakeRecorder) EnqueueFailed() {
	r.failures++
}

type fakeLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *fakeLogger) Info(string) {}

func (l *fakeLogger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func pdfUpload(body string) *storage.Upload {
	return &storage.Upload{Content: strings.NewReader(body), ContentType: "application/pdf", Size: int64(len(body))}
}

var errBoom = errors.New("boom")
