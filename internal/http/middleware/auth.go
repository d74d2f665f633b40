package middleware

import (
	"context"
	"net/http"
	"strings"

	"stageportal/internal/app"
	"stageportal/internal/common"
	"stageportal/internal/domain/user"
	"stageportal/internal/http/response"
)

type contextKey string

const ContextProfileKey contextKey = "profile"

// SubjectResolver turns a bearer token into the live account it names.
type SubjectResolver interface {
	Authenticate(ctx context.Context, token string) (*app.Profile, error)
}

type AuthMiddleware struct {
	resolver SubjectResolver
}

func NewAuthMiddleware(resolver SubjectResolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.Error(w, common.NewError(common.CodeUnauthorized, "missing authorization header", nil))
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || strings.TrimSpace(parts[1]) == "" {
			response.Error(w, common.NewError(common.CodeUnauthorized, "invalid authorization header", nil))
			return
		}
		profile, err := m.resolver.Authenticate(r.Context(), parts[1])
		if err != nil {
			response.Error(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), ContextProfileKey, profile)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Protect authenticates the request and then checks the subject's role.
func (m *AuthMiddleware) Protect(role user.Role, next http.HandlerFunc) http.Handler {
	return m.Authenticate(RequireRole(role)(next))
}

func RequireRole(role user.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			profile, ok := ProfileFromContext(r.Context())
			if !ok {
				response.Error(w, common.NewError(common.CodeUnauthorized, "authentication required", nil))
				return
			}
			if profile.Role != role {
				response.Error(w, common.NewError(common.CodeForbidden, "access denied for this role", nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func ProfileFromContext(ctx context.Context) (*app.Profile, bool) {
	profile, ok := ctx.Value(ContextProfileKey).(*app.Profile)
	return profile, ok && profile != nil
}

// WithProfile stores an authenticated profile in ctx.
func WithProfile(ctx context.Context, profile *app.Profile) context.Context {
	return context.WithValue(ctx, ContextProfileKey, profile)
}
