package user

import "context"

type CandidateRepository interface {
	Create(ctx context.Context, candidate Candidate) (*Candidate, error)
	GetByID(ctx context.Context, id int64) (*Candidate, error)
	GetByEmail(ctx context.Context, email string) (*Candidate, error)
}

type AdminRepository interface {
	Create(ctx context.Context, admin Admin) (*Admin, error)
	GetByID(ctx context.Context, id int64) (*Admin, error)
	GetByEmail(ctx context.Context, email string) (*Admin, error)
}
