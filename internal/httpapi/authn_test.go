package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"formscore.org/internal/auth"
	"formscore.org/internal/ids"
	"formscore.org/internal/store/memory"
)

func newBareAPI(t *testing.T) (*API, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc, err := auth.NewService(store, []byte("test-secret-test-secret-test-abc"))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return New(svc, ReadyProbe{}, "test"), store
}

func seedPrincipal(t *testing.T, store *memory.Store, level auth.Level, company, category string) auth.Principal {
	t.Helper()
	user := &auth.User{ID: ids.New(), Email: "gate@example.com", Status: auth.UserStatusActive}
	var grants []auth.PermissionGrant
	if level != auth.LevelNone {
		g := auth.PermissionGrant{
			ID:        ids.New(),
			UserID:    user.ID,
			Company:   company,
			Category:  category,
			Level:     level,
			GrantedBy: user.ID,
			GrantedAt: time.Now().UTC(),
		}
		if err := store.Grants().Create(context.Background(), &g); err != nil {
			t.Fatalf("seed grant: %v", err)
		}
		grants = append(grants, g)
	}
	return auth.Principal{User: user, Grants: grants, SessionID: ids.New()}
}

func TestRequirePermissionAllowsSufficientLevel(t *testing.T) {
	api, store := newBareAPI(t)
	principal := seedPrincipal(t, store, auth.LevelEdit, "acme", "hr")

	called := false
	h := api.RequirePermission("acme", "hr", auth.LevelView)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/forms", nil)
	req = req.WithContext(auth.ContextWithPrincipal(req.Context(), principal))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !called {
		t.Fatal("handler not reached")
	}
}

func TestRequirePermissionRejectsInsufficientLevel(t *testing.T) {
	api, store := newBareAPI(t)
	principal := seedPrincipal(t, store, auth.LevelView, "acme", "hr")

	h := api.RequirePermission("acme", "hr", auth.LevelEdit)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/forms", nil)
	req = req.WithContext(auth.ContextWithPrincipal(req.Context(), principal))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRequirePermissionRejectsAnonymous(t *testing.T) {
	api, _ := newBareAPI(t)

	h := api.RequirePermission("acme", "hr", auth.LevelView)(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/forms", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("expected WWW-Authenticate header")
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer abc.def.ghi", "abc.def.ghi", true},
		{"Bearer   spaced  ", "spaced", true},
		{"", "", false},
		{"Bearer ", "", false},
		{"Basic dXNlcjpwYXNz", "", false},
		{"abc.def.ghi", "", false},
	}
	for _, tc := range cases {
		got, err := extractBearerToken(tc.header)
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("header %q: got (%q, %v), want %q", tc.header, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Errorf("header %q: expected error", tc.header)
		}
	}
}

func TestIsPublicPath(t *testing.T) {
	for _, path := range []string{"/v1/auth/login", "/healthz", "/metrics", "/"} {
		if !isPublicPath(path) {
			t.Errorf("%s must be public", path)
		}
	}
	for _, path := range []string{"/v1/auth/me", "/v1/permissions", "/v1/permissions/users/u1"} {
		if isPublicPath(path) {
			t.Errorf("%s must require auth", path)
		}
	}
}
