package app

import (
	"context"
	"regexp"
	"strings"
	"time"

	"stageportal/internal/common"
	"stageportal/internal/domain/user"
	"stageportal/internal/security"
	"stageportal/internal/storage"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const invalidCredentials = "invalid email or password"

type Logger interface {
	Info(msg string)
	Error(msg string)
}

// DocumentStore validates and persists uploaded PDFs.
type DocumentStore interface {
	Check(upload storage.Upload) error
	Store(ctx context.Context, upload storage.Upload) (string, error)
}

// AuthService registers candidates, issues session tokens and resolves
// token subjects on every authenticated request.
type AuthService struct {
	candidates  user.CandidateRepository
	admins      user.AdminRepository
	documents   DocumentStore
	jwtProvider *security.JWTProvider
	logger      Logger
	tokenTTL    time.Duration
}

func NewAuthService(candidates user.CandidateRepository, admins user.AdminRepository, documents DocumentStore, jwtProvider *security.JWTProvider, logger Logger, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{
		candidates:  candidates,
		admins:      admins,
		documents:   documents,
		jwtProvider: jwtProvider,
		logger:      logger,
		tokenTTL:    tokenTTL,
	}
}

type RegisterInput struct {
	Nom           string
	Prenom        string
	Email         string
	Password      string
	Telephone     string
	Adresse       string
	Etablissement string
	Domaine       string
	Niveau        string
}

// Profile is the public view of an authenticated subject.
type Profile struct {
	ID            int64
	Role          user.Role
	Nom           string
	Prenom        string
	Email         string
	Etablissement string
	Domaine       string
	Niveau        string
}

type Session struct {
	Token     string
	ExpiresAt time.Time
	TTL       time.Duration
	Profile   Profile
}

// Register creates a candidate account. Optional CV and letter uploads are
// validated together before either is stored.
func (s *AuthService) Register(ctx context.Context, input RegisterInput, cv, lettre *storage.Upload) (*user.Candidate, error) {
	input = normalizeRegisterInput(input)
	if err := validateRegisterInput(input); err != nil {
		return nil, err
	}
	if _, err := s.candidates.GetByEmail(ctx, input.Email); err == nil {
		return nil, common.NewError(common.CodeConflict, "email already registered", nil)
	} else if !common.Is(err, common.CodeNotFound) {
		return nil, err
	}

	for _, upload := range []*storage.Upload{cv, lettre} {
		if upload == nil {
			continue
		}
		if err := s.documents.Check(*upload); err != nil {
			return nil, err
		}
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to hash password", err)
	}
	candidate := user.Candidate{
		Nom:           input.Nom,
		Prenom:        input.Prenom,
		Email:         input.Email,
		PasswordHash:  hash,
		Telephone:     input.Telephone,
		Adresse:       input.Adresse,
		Etablissement: input.Etablissement,
		Domaine:       input.Domaine,
		Niveau:        input.Niveau,
	}
	if cv != nil {
		if candidate.CVRef, err = s.documents.Store(ctx, *cv); err != nil {
			return nil, err
		}
	}
	if lettre != nil {
		if candidate.LetterRef, err = s.documents.Store(ctx, *lettre); err != nil {
			return nil, err
		}
	}
	created, err := s.candidates.Create(ctx, candidate)
	if err != nil {
		return nil, err
	}
	s.logger.Info("candidate registered: " + created.Email)
	return created, nil
}

func normalizeRegisterInput(input RegisterInput) RegisterInput {
	input.Nom = strings.TrimSpace(input.Nom)
	input.Prenom = strings.TrimSpace(input.Prenom)
	input.Email = strings.TrimSpace(input.Email)
	input.Telephone = strings.TrimSpace(input.Telephone)
	input.Adresse = strings.TrimSpace(input.Adresse)
	input.Etablissement = strings.TrimSpace(input.Etablissement)
	input.Domaine = strings.TrimSpace(input.Domaine)
	input.Niveau = strings.TrimSpace(input.Niveau)
	return input
}

func validateRegisterInput(input RegisterInput) error {
	fields := map[string]string{}
	required := map[string]string{
		"nom":           input.Nom,
		"prenom":        input.Prenom,
		"email":         input.Email,
		"motDePasse":    input.Password,
		"etablissement": input.Etablissement,
		"domaine":       input.Domaine,
		"niveau":        input.Niveau,
	}
	for name, value := range required {
		if strings.TrimSpace(value) == "" {
			fields[name] = "required"
		}
	}
	if input.Email != "" && !emailPattern.MatchString(input.Email) {
		fields["email"] = "invalid email"
	}
	if len(fields) > 0 {
		return common.NewValidationError("all required fields must be filled", fields)
	}
	return nil
}

// Login checks credentials against the namespace of the given role.
func (s *AuthService) Login(ctx context.Context, email, password string, role user.Role) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, common.NewValidationError("email and password are required", map[string]string{"email": "required", "motDePasse": "required"})
	}

	var (
		profile Profile
		hash    string
	)
	switch role {
	case user.RoleCandidate:
		candidate, err := s.candidates.GetByEmail(ctx, email)
		if err != nil {
			return nil, credentialError(err)
		}
		hash = candidate.PasswordHash
		profile = candidateProfile(candidate)
	case user.RoleAdmin:
		admin, err := s.admins.GetByEmail(ctx, email)
		if err != nil {
			return nil, credentialError(err)
		}
		hash = admin.PasswordHash
		profile = adminProfile(admin)
	default:
		return nil, common.NewValidationError("invalid role", map[string]string{"role": "role must be candidat or admin"})
	}
	if !security.CheckPassword(hash, password) {
		return nil, common.NewError(common.CodeUnauthorized, invalidCredentials, nil)
	}

	token, expiresAt, err := s.jwtProvider.Generate(security.Identity{
		ID:     profile.ID,
		Role:   string(profile.Role),
		Email:  profile.Email,
		Nom:    profile.Nom,
		Prenom: profile.Prenom,
	}, s.tokenTTL)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to issue token", err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt, TTL: s.tokenTTL, Profile: profile}, nil
}

func credentialError(err error) error {
	if common.Is(err, common.CodeNotFound) {
		return common.NewError(common.CodeUnauthorized, invalidCredentials, nil)
	}
	return err
}

// Verify checks the token signature and expiry.
func (s *AuthService) Verify(token string) (*security.Claims, error) {
	claims, err := s.jwtProvider.Parse(strings.TrimSpace(token))
	if err != nil {
		return nil, common.NewError(common.CodeUnauthorized, "invalid or expired token", err)
	}
	return claims, nil
}

// ResolveSubject loads the account a token refers to.
func (s *AuthService) ResolveSubject(ctx context.Context, id int64, role user.Role) (*Profile, error) {
	switch role {
	case user.RoleCandidate:
		candidate, err := s.candidates.GetByID(ctx, id)
		if err != nil {
			return nil, subjectError(err)
		}
		profile := candidateProfile(candidate)
		return &profile, nil
	case user.RoleAdmin:
		admin, err := s.admins.GetByID(ctx, id)
		if err != nil {
			return nil, subjectError(err)
		}
		profile := adminProfile(admin)
		return &profile, nil
	}
	return nil, common.NewError(common.CodeUnauthorized, "unknown role", nil)
}

// Authenticate verifies a token and resolves its subject.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Profile, error) {
	claims, err := s.Verify(token)
	if err != nil {
		return nil, err
	}
	role, ok := user.ParseRole(claims.Role)
	if !ok {
		return nil, common.NewError(common.CodeUnauthorized, "invalid or expired token", nil)
	}
	return s.ResolveSubject(ctx, claims.ID, role)
}

func subjectError(err error) error {
	if common.Is(err, common.CodeNotFound) {
		return common.NewError(common.CodeUnauthorized, "user not found", err)
	}
	return err
}

func candidateProfile(c *user.Candidate) Profile {
	return Profile{
		ID:            c.ID,
		Role:          user.RoleCandidate,
		Nom:           c.Nom,
		Prenom:        c.Prenom,
		Email:         c.Email,
		Etablissement: c.Etablissement,
		Domaine:       c.Domaine,
		Niveau:        c.Niveau,
	}
}

func adminProfile(a *user.Admin) Profile {
	return Profile{ID: a.ID, Role: user.RoleAdmin, Nom: a.Nom, Email: a.Email}
}
