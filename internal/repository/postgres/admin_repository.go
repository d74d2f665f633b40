package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"stageportal/internal/common"
	"stageportal/internal/domain/user"
)

type AdminRepository struct {
	db *sql.DB
}

func NewAdminRepository(db *sql.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

func (r *AdminRepository) Create(ctx context.Context, admin user.Admin) (*user.Admin, error) {
	admin.Email = strings.TrimSpace(admin.Email)
	row := r.db.QueryRowContext(ctx, `INSERT INTO administrateurs (nom, email, mot_de_passe) VALUES ($1, $2, $3) RETURNING id, created_at`,
		admin.Nom, admin.Email, admin.PasswordHash)
	if err := row.Scan(&admin.ID, &admin.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, common.NewError(common.CodeConflict, "email already registered", err)
		}
		return nil, common.NewError(common.CodeInternal, "failed to create administrator", err)
	}
	return &admin, nil
}

func (r *AdminRepository) GetByID(ctx context.Context, id int64) (*user.Admin, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, nom, email, mot_de_passe, created_at FROM administrateurs WHERE id = $1`, id)
	return scanAdmin(row)
}

func (r *AdminRepository) GetByEmail(ctx context.Context, email string) (*user.Admin, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, nom, email, mot_de_passe, created_at FROM administrateurs WHERE lower(email) = lower($1)`, strings.TrimSpace(email))
	return scanAdmin(row)
}

func scanAdmin(row *sql.Row) (*user.Admin, error) {
	var a user.Admin
	if err := row.Scan(&a.ID, &a.Nom, &a.Email, &a.PasswordHash, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NewError(common.CodeNotFound, "administrator not found", err)
		}
		return nil, common.NewError(common.CodeInternal, "failed to load administrator", err)
	}
	return &a, nil
}
