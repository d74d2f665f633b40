package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"stageportal/internal/app"
	"stageportal/internal/common"
	"stageportal/internal/domain/user"
)

type stubResolver struct {
	profiles map[string]*app.Profile
}

func (s stubResolver) Authenticate(_ context.Context, token string) (*app.Profile, error) {
	if profile, ok := s.profiles[token]; ok {
		return profile, nil
	}
	return nil, common.NewError(common.CodeUnauthorized, "invalid or expired token", nil)
}

func newStubMiddleware() *AuthMiddleware {
	return NewAuthMiddleware(stubResolver{profiles: map[string]*app.Profile{
		"cand":  {ID: 1, Role: user.RoleCandidate},
		"staff": {ID: 2, Role: user.RoleAdmin},
	}})
}

func TestProtectChecksTokenAndRole(t *testing.T) {
	mw := newStubMiddleware()
	var seen *app.Profile
	h := mw.Protect(user.RoleAdmin, func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ProfileFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	cases := []struct {
		header string
		status int
	}{
		{"", http.StatusUnauthorized},
		{"Token staff", http.StatusUnauthorized},
		{"Bearer ", http.StatusUnauthorized},
		{"Bearer nope", http.StatusUnauthorized},
		{"Bearer cand", http.StatusForbidden},
		{"bearer staff", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/admin/demandes", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("header %q: expected %d, got %d", tc.header, tc.status, rec.Code)
		}
	}
	if seen == nil || seen.ID != 2 {
		t.Fatalf("profile not stored in context: %+v", seen)
	}
}

func TestRequireRoleWithoutAuthentication(t *testing.T) {
	h := RequireRole(user.RoleCandidate)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithProfile(req.Context(), &app.Profile{ID: 1, Role: user.RoleCandidate}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
