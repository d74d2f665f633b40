package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"stageportal/internal/common"
	"stageportal/internal/domain/application"
)

type ApplicationRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewApplicationRepository(db *sql.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db, now: time.Now}
}

const applicationColumns = `d.id, d.candidat_id, d.date_depot, d.statut, d.decision_rh, d.motif_rejet, d.fichier_cv, d.fichier_lettre,
	d.domaine, d.etablissement, d.niveau, d.description, d.score_ml, d.experience_ml, d.competences_ml,
	d.scoring_status, d.scoring_error, d.scored_at`

func (r *ApplicationRepository) Create(ctx context.Context, app application.Application) (*application.Application, error) {
	app.Status = application.DecisionPending
	app.Decision = nil
	app.RejectReason = nil
	app.ScoringStatus = application.ScoringNotStarted
	row := r.db.QueryRowContext(ctx, `INSERT INTO demandes_stage (candidat_id, statut, fichier_cv, fichier_lettre, domaine, etablissement, niveau, description, scoring_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, date_depot`,
		app.CandidateID, app.Status, app.CVRef, app.LetterRef, app.Domaine, app.Etablissement, app.Niveau,
		nullString(app.Description), app.ScoringStatus)
	if err := row.Scan(&app.ID, &app.SubmittedAt); err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to create application", err)
	}
	return &app, nil
}

func (r *ApplicationRepository) GetByID(ctx context.Context, id int64) (*application.Application, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM demandes_stage d WHERE d.id = $1`, id)
	app, err := scanApplication(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NewError(common.CodeNotFound, "application not found", err)
		}
		return nil, common.NewError(common.CodeInternal, "failed to load application", err)
	}
	return app, nil
}

func (r *ApplicationRepository) ListByCandidate(ctx context.Context, candidateID int64) ([]application.Application, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+applicationColumns+` FROM demandes_stage d
		WHERE d.candidat_id = $1 ORDER BY d.date_depot DESC, d.id DESC`, candidateID)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list candidate applications", err)
	}
	defer rows.Close()
	items := make([]application.Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows.Scan)
		if err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan application", err)
		}
		items = append(items, *app)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list candidate applications", err)
	}
	return items, nil
}

func (r *ApplicationRepository) ListForReview(ctx context.Context, filter application.Filter, limit, offset int) ([]application.ReviewItem, int, error) {
	where, args := reviewWhere(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM demandes_stage d`+where, args...).Scan(&total); err != nil {
		return nil, 0, common.NewError(common.CodeInternal, "failed to count applications", err)
	}

	query := fmt.Sprintf(`SELECT %s, c.id, c.nom, c.prenom, c.email, c.telephone
		FROM demandes_stage d JOIN candidats c ON c.id = d.candidat_id%s
		ORDER BY d.date_depot DESC, d.id DESC LIMIT $%d OFFSET $%d`, applicationColumns, where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, common.NewError(common.CodeInternal, "failed to list applications", err)
	}
	defer rows.Close()
	items := make([]application.ReviewItem, 0, limit)
	for rows.Next() {
		var item application.ReviewItem
		var telephone sql.NullString
		app, err := scanApplication(func(dest ...any) error {
			return rows.Scan(append(dest, &item.Candidate.ID, &item.Candidate.Nom, &item.Candidate.Prenom, &item.Candidate.Email, &telephone)...)
		})
		if err != nil {
			return nil, 0, common.NewError(common.CodeInternal, "failed to scan application", err)
		}
		item.Application = *app
		item.Candidate.Telephone = telephone.String
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, common.NewError(common.CodeInternal, "failed to list applications", err)
	}
	return items, total, nil
}

func reviewWhere(filter application.Filter) (string, []any) {
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("d.statut = $%d", len(args)))
	}
	if domaine := strings.TrimSpace(filter.Domaine); domaine != "" {
		args = append(args, domaine)
		clauses = append(clauses, fmt.Sprintf("d.domaine = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *ApplicationRepository) RecordDecision(ctx context.Context, id int64, decision application.Decision, reason *string) error {
	var motif *string
	if reason != nil && strings.TrimSpace(*reason) != "" {
		motif = reason
	}
	result, err := r.db.ExecContext(ctx, `UPDATE demandes_stage SET statut = $1, decision_rh = $1, motif_rejet = $2 WHERE id = $3`,
		string(decision), motif, id)
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to record decision", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to record decision", err)
	}
	if affected == 0 {
		return common.NewError(common.CodeNotFound, "application not found", nil)
	}
	return nil
}

func (r *ApplicationRepository) ClaimScoring(ctx context.Context, id int64, staleBefore time.Time) (*application.ScoringJob, error) {
	row := r.db.QueryRowContext(ctx, `UPDATE demandes_stage
		SET scoring_status = 'pending', scoring_attempts = scoring_attempts + 1, scoring_started_at = $2, scoring_error = NULL
		WHERE id = $1 AND (scoring_status IN ('not_started', 'failed')
			OR (scoring_status = 'pending' AND (scoring_started_at IS NULL OR scoring_started_at < $3)))
		RETURNING id, domaine, fichier_cv, scoring_attempts`, id, r.now().UTC(), staleBefore.UTC())
	var job application.ScoringJob
	err := row.Scan(&job.ApplicationID, &job.Domaine, &job.CVRef, &job.Attempts)
	if err == nil {
		return &job, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewError(common.CodeInternal, "failed to claim scoring", err)
	}
	var status string
	if err := r.db.QueryRowContext(ctx, `SELECT scoring_status FROM demandes_stage WHERE id = $1`, id).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NewError(common.CodeNotFound, "application not found", err)
		}
		return nil, common.NewError(common.CodeInternal, "failed to claim scoring", err)
	}
	return nil, common.NewError(common.CodeConflict, "scoring already "+status, nil)
}

func (r *ApplicationRepository) CompleteScoring(ctx context.Context, id int64, result application.ScoringResult) error {
	skills := result.Skills
	if skills == nil {
		skills = []string{}
	}
	res, err := r.db.ExecContext(ctx, `UPDATE demandes_stage
		SET score_ml = $1, experience_ml = $2, competences_ml = $3, scoring_status = 'done', scoring_error = NULL, scored_at = $4
		WHERE id = $5`, result.Score, result.Experience, pq.Array(skills), r.now().UTC(), id)
	return checkScoringUpdate(res, err, "failed to store scoring result")
}

func (r *ApplicationRepository) FailScoring(ctx context.Context, id int64, reason string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE demandes_stage SET scoring_status = 'failed', scoring_error = $1 WHERE id = $2`,
		reason, id)
	return checkScoringUpdate(res, err, "failed to store scoring failure")
}

func (r *ApplicationRepository) ReleaseScoring(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE demandes_stage
		SET scoring_status = 'not_started', scoring_attempts = GREATEST(scoring_attempts - 1, 0), scoring_started_at = NULL
		WHERE id = $1 AND scoring_status = 'pending'`, id)
	return checkScoringUpdate(res, err, "failed to release scoring claim")
}

func (r *ApplicationRepository) FailStalledScoring(ctx context.Context, staleBefore time.Time, maxAttempts int, reason string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE demandes_stage SET scoring_status = 'failed', scoring_error = $1
		WHERE scoring_status = 'pending' AND scoring_started_at < $2 AND scoring_attempts >= $3`,
		reason, staleBefore.UTC(), maxAttempts)
	if err != nil {
		return 0, common.NewError(common.CodeInternal, "failed to mark stalled scoring", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, common.NewError(common.CodeInternal, "failed to mark stalled scoring", err)
	}
	return affected, nil
}

func checkScoringUpdate(res sql.Result, err error, message string) error {
	if err != nil {
		return common.NewError(common.CodeInternal, message, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return common.NewError(common.CodeInternal, message, err)
	}
	if affected == 0 {
		return common.NewError(common.CodeNotFound, "application not found", nil)
	}
	return nil
}

func (r *ApplicationRepository) ListScoringBacklog(ctx context.Context, createdBefore, staleBefore time.Time, maxAttempts, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM demandes_stage
		WHERE (scoring_status = 'not_started' AND date_depot < $1)
			OR (scoring_status = 'pending' AND scoring_started_at < $2 AND scoring_attempts < $3)
			OR (scoring_status = 'failed' AND scoring_attempts < $3)
		ORDER BY date_depot ASC LIMIT $4`, createdBefore.UTC(), staleBefore.UTC(), maxAttempts, limit)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list scoring backlog", err)
	}
	defer rows.Close()
	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan scoring backlog", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list scoring backlog", err)
	}
	return ids, nil
}

func scanApplication(scan func(dest ...any) error) (*application.Application, error) {
	var (
		app          application.Application
		decision     sql.NullString
		reason       sql.NullString
		description  sql.NullString
		score        sql.NullFloat64
		experience   sql.NullInt64
		skills       pq.StringArray
		status       string
		scoring      string
		scoringError sql.NullString
		scoredAt     sql.NullTime
	)
	if err := scan(&app.ID, &app.CandidateID, &app.SubmittedAt, &status, &decision, &reason, &app.CVRef, &app.LetterRef,
		&app.Domaine, &app.Etablissement, &app.Niveau, &description, &score, &experience, &skills,
		&scoring, &scoringError, &scoredAt); err != nil {
		return nil, err
	}
	app.Status = application.Decision(status)
	if decision.Valid {
		d := application.Decision(decision.String)
		app.Decision = &d
	}
	if reason.Valid {
		app.RejectReason = &reason.String
	}
	app.Description = description.String
	if score.Valid {
		app.Score = &score.Float64
	}
	if experience.Valid {
		exp := int(experience.Int64)
		app.Experience = &exp
	}
	app.Skills = []string(skills)
	app.ScoringStatus = application.ScoringStatus(scoring)
	app.ScoringError = scoringError.String
	if scoredAt.Valid {
		t := scoredAt.Time
		app.ScoredAt = &t
	}
	return &app, nil
}
