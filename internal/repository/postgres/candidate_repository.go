package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"stageportal/internal/common"
	"stageportal/internal/domain/user"
)

type CandidateRepository struct {
	db *sql.DB
}

func NewCandidateRepository(db *sql.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

const candidateColumns = `id, nom, prenom, email, mot_de_passe, telephone, adresse, etablissement, domaine, niveau, cv_ref, lettre_ref, created_at`

func (r *CandidateRepository) Create(ctx context.Context, candidate user.Candidate) (*user.Candidate, error) {
	candidate.Email = strings.TrimSpace(candidate.Email)
	row := r.db.QueryRowContext(ctx, `INSERT INTO candidats (nom, prenom, email, mot_de_passe, telephone, adresse, etablissement, domaine, niveau, cv_ref, lettre_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`,
		candidate.Nom, candidate.Prenom, candidate.Email, candidate.PasswordHash,
		nullString(candidate.Telephone), nullString(candidate.Adresse),
		candidate.Etablissement, candidate.Domaine, candidate.Niveau,
		nullString(candidate.CVRef), nullString(candidate.LetterRef))
	if err := row.Scan(&candidate.ID, &candidate.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, common.NewError(common.CodeConflict, "email already registered", err)
		}
		return nil, common.NewError(common.CodeInternal, "failed to create candidate", err)
	}
	return &candidate, nil
}

func (r *CandidateRepository) GetByID(ctx context.Context, id int64) (*user.Candidate, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidats WHERE id = $1`, id)
	return scanCandidate(row)
}

func (r *CandidateRepository) GetByEmail(ctx context.Context, email string) (*user.Candidate, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidats WHERE lower(email) = lower($1)`, strings.TrimSpace(email))
	return scanCandidate(row)
}

func scanCandidate(row *sql.Row) (*user.Candidate, error) {
	var c user.Candidate
	var telephone, adresse, cvRef, letterRef sql.NullString
	if err := row.Scan(&c.ID, &c.Nom, &c.Prenom, &c.Email, &c.PasswordHash, &telephone, &adresse, &c.Etablissement, &c.Domaine, &c.Niveau, &cvRef, &letterRef, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NewError(common.CodeNotFound, "candidate not found", err)
		}
		return nil, common.NewError(common.CodeInternal, "failed to load candidate", err)
	}
	c.Telephone = telephone.String
	c.Adresse = adresse.String
	c.CVRef = cvRef.String
	c.LetterRef = letterRef.String
	return &c, nil
}
