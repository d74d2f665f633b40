package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"stageportal/internal/common"
	"stageportal/internal/domain/application"
)

var reviewRowColumns = []string{
	"id", "candidat_id", "date_depot", "statut", "decision_rh", "motif_rejet", "fichier_cv", "fichier_lettre",
	"domaine", "etablissement", "niveau", "description", "score_ml", "experience_ml", "competences_ml",
	"scoring_status", "scoring_error", "scored_at",
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestCreateApplicationStartsPending(t *testing.T) {
	db, mock := newMock(t)
	submitted := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO demandes_stage")).
		WithArgs(int64(7), "En attente", "cv.pdf", "lettre.pdf", "Informatique", "ENSA", "Bac+5", nil, "not_started").
		WillReturnRows(sqlmock.NewRows([]string{"id", "date_depot"}).AddRow(int64(11), submitted))

	repo := NewApplicationRepository(db)
	app, err := repo.Create(context.Background(), application.Application{
		CandidateID: 7, CVRef: "cv.pdf", LetterRef: "lettre.pdf", Domaine: "Informatique", Etablissement: "ENSA", Niveau: "Bac+5",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if app.ID != 11 || app.Status != application.DecisionPending || app.Decision != nil || !app.SubmittedAt.Equal(submitted) {
		t.Fatalf("unexpected application: %+v", app)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListForReviewAppliesFilters(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM demandes_stage d WHERE d.statut = $1 AND d.domaine = $2")).
		WithArgs("Accepté", "Finance").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	columns := append(append([]string{}, reviewRowColumns...), "cid", "nom", "prenom", "email", "telephone")
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $3 OFFSET $4")).
		WithArgs("Accepté", "Finance", 2, 2).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			int64(5), int64(9), now, "Accepté", "Accepté", nil, "a.pdf", "b.pdf",
			"Finance", "ISCAE", "Master", nil, 0.72, int64(3), "{excel,audit}",
			"done", nil, now, int64(9), "Alami", "Sara", "sara@example.com", "0600000000",
		))

	repo := NewApplicationRepository(db)
	items, total, err := repo.ListForReview(context.Background(), application.Filter{Status: application.DecisionAccepted, Domaine: "Finance"}, 2, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(items) != 1 {
		t.Fatalf("unexpected result total=%d items=%d", total, len(items))
	}
	item := items[0]
	if item.Candidate.Nom != "Alami" || item.Candidate.Telephone != "0600000000" {
		t.Fatalf("unexpected candidate summary: %+v", item.Candidate)
	}
	if item.Score == nil || *item.Score != 0.72 || len(item.Skills) != 2 || item.Skills[1] != "audit" {
		t.Fatalf("unexpected scoring fields: %+v", item.Application)
	}
	if item.Decision == nil || *item.Decision != application.DecisionAccepted {
		t.Fatalf("expected decision to be set")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListForReviewWithoutFilters(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM demandes_stage d")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	columns := append(append([]string{}, reviewRowColumns...), "cid", "nom", "prenom", "email", "telephone")
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $1 OFFSET $2")).
		WithArgs(50, 0).
		WillReturnRows(sqlmock.NewRows(columns))

	items, total, err := NewApplicationRepository(db).ListForReview(context.Background(), application.Filter{}, 50, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 0 || len(items) != 0 || items == nil {
		t.Fatalf("expected empty non-nil page, got %v (%d)", items, total)
	}
}

func TestRecordDecisionUnknownID(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE demandes_stage SET statut = $1, decision_rh = $1")).
		WithArgs("Rejeté", nil, int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	reason := "  "
	err := NewApplicationRepository(db).RecordDecision(context.Background(), 404, application.DecisionRejected, &reason)
	if !common.Is(err, common.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRecordDecisionStoresReason(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE demandes_stage SET statut = $1, decision_rh = $1")).
		WithArgs("Rejeté", " profil incomplet\n", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	reason := " profil incomplet\n"
	if err := NewApplicationRepository(db).RecordDecision(context.Background(), 3, application.DecisionRejected, &reason); err != nil {
		t.Fatalf("record decision: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestClaimScoringReturnsJob(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SET scoring_status = 'pending'")).
		WithArgs(int64(4), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "domaine", "fichier_cv", "scoring_attempts"}).AddRow(int64(4), "Informatique", "cv.pdf", 1))

	job, err := NewApplicationRepository(db).ClaimScoring(context.Background(), 4, time.Now().Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if job.ApplicationID != 4 || job.CVRef != "cv.pdf" || job.Attempts != 1 {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestClaimScoringConflictWhenDone(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SET scoring_status = 'pending'")).
		WithArgs(int64(4), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT scoring_status FROM demandes_stage")).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"scoring_status"}).AddRow("done"))

	_, err := NewApplicationRepository(db).ClaimScoring(context.Background(), 4, time.Now())
	if !common.Is(err, common.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestClaimScoringMissingRow(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SET scoring_status = 'pending'")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT scoring_status FROM demandes_stage")).
		WillReturnError(sql.ErrNoRows)

	_, err := NewApplicationRepository(db).ClaimScoring(context.Background(), 99, time.Now())
	if !common.Is(err, common.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCompleteAndFailScoring(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("scoring_status = 'done'")).
		WithArgs(0.61, 2, sqlmock.AnyArg(), sqlmock.AnyArg(), int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("scoring_status = 'failed'")).
		WithArgs("scorer exited with status 1", int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewApplicationRepository(db)
	if err := repo.CompleteScoring(context.Background(), 8, application.ScoringResult{Score: 0.61, Experience: 2, Skills: []string{"go"}}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := repo.FailScoring(context.Background(), 8, "scorer exited with status 1"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListScoringBacklog(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM demandes_stage")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 3, 100).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)))

	ids, err := NewApplicationRepository(db).ListScoringBacklog(context.Background(), time.Now(), time.Now(), 3, 100)
	if err != nil {
		t.Fatalf("backlog: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestReleaseScoringReturnsClaim(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("SET scoring_status = 'not_started', scoring_attempts = GREATEST(scoring_attempts - 1, 0)")).
		WithArgs(int64(6)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewApplicationRepository(db).ReleaseScoring(context.Background(), 6); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFailStalledScoring(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("SET scoring_status = 'failed', scoring_error = $1")).
		WithArgs("scoring stalled", sqlmock.AnyArg(), 3).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := NewApplicationRepository(db).FailStalledScoring(context.Background(), time.Now().Add(-10*time.Minute), 3, "scoring stalled")
	if err != nil {
		t.Fatalf("fail stalled: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
