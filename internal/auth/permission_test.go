package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"formscore.org/internal/auth"
	"formscore.org/internal/store/memory"
)

func seedGrant(t *testing.T, store *memory.Store, g auth.PermissionGrant) {
	t.Helper()
	if err := store.Grants().Create(context.Background(), &g); err != nil {
		t.Fatalf("seed grant: %v", err)
	}
}

func TestLevelOrdering(t *testing.T) {
	if !(auth.LevelNone < auth.LevelView && auth.LevelView < auth.LevelEdit && auth.LevelEdit < auth.LevelAdmin) {
		t.Fatal("level ordering broken")
	}
	if auth.LevelNone.Covers(auth.LevelNone) {
		t.Fatal("none must not cover none")
	}
	if auth.LevelAdmin.Covers(auth.LevelNone) {
		t.Fatal("nothing covers the none requirement")
	}
	if !auth.LevelAdmin.Covers(auth.LevelView) || !auth.LevelEdit.Covers(auth.LevelView) || !auth.LevelView.Covers(auth.LevelView) {
		t.Fatal("higher levels must cover view")
	}
	if auth.LevelView.Covers(auth.LevelEdit) || auth.LevelEdit.Covers(auth.LevelAdmin) {
		t.Fatal("lower levels must not cover higher requirements")
	}
}

func TestGrantMatchesWildcards(t *testing.T) {
	cases := []struct {
		grant    auth.PermissionGrant
		company  string
		category string
		want     bool
	}{
		{auth.PermissionGrant{Company: "acme", Category: "hr"}, "acme", "hr", true},
		{auth.PermissionGrant{Company: "acme", Category: "hr"}, "acme", "sales", false},
		{auth.PermissionGrant{Company: "acme", Category: "hr"}, "globex", "hr", false},
		{auth.PermissionGrant{Company: "acme", Category: ""}, "acme", "anything", true},
		{auth.PermissionGrant{Company: "", Category: "hr"}, "globex", "hr", true},
		{auth.PermissionGrant{Company: "", Category: ""}, "globex", "sales", true},
	}
	for i, tc := range cases {
		if got := tc.grant.Matches(tc.company, tc.category); got != tc.want {
			t.Errorf("case %d: Matches(%q, %q) = %v, want %v", i, tc.company, tc.category, got, tc.want)
		}
	}
}

func TestEffectiveLevelPicksHighestMatch(t *testing.T) {
	store := memory.New()
	eval := auth.NewEvaluator(store, nil, time.Now)

	seedGrant(t, store, auth.PermissionGrant{ID: "g1", UserID: "u1", Company: "acme", Category: "hr", Level: auth.LevelView})
	seedGrant(t, store, auth.PermissionGrant{ID: "g2", UserID: "u1", Company: "acme", Level: auth.LevelEdit})
	seedGrant(t, store, auth.PermissionGrant{ID: "g3", UserID: "u1", Company: "globex", Category: "hr", Level: auth.LevelAdmin})

	level, err := eval.EffectiveLevel(context.Background(), "u1", "acme", "hr")
	if err != nil {
		t.Fatalf("EffectiveLevel: %v", err)
	}
	if level != auth.LevelEdit {
		t.Fatalf("expected edit from wildcard-category grant, got %s", level)
	}

	level, err = eval.EffectiveLevel(context.Background(), "u1", "initech", "hr")
	if err != nil {
		t.Fatalf("EffectiveLevel: %v", err)
	}
	if level != auth.LevelNone {
		t.Fatalf("expected none for unmatched scope, got %s", level)
	}
}

func TestEffectiveLevelSkipsExpired(t *testing.T) {
	store := memory.New()
	eval := auth.NewEvaluator(store, nil, time.Now)

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	seedGrant(t, store, auth.PermissionGrant{ID: "g1", UserID: "u1", Company: "acme", Category: "hr", Level: auth.LevelAdmin, ExpiresAt: &past})
	seedGrant(t, store, auth.PermissionGrant{ID: "g2", UserID: "u1", Company: "acme", Category: "hr", Level: auth.LevelView, ExpiresAt: &future})

	level, err := eval.EffectiveLevel(context.Background(), "u1", "acme", "hr")
	if err != nil {
		t.Fatalf("EffectiveLevel: %v", err)
	}
	if level != auth.LevelView {
		t.Fatalf("expected view after expiry of the admin grant, got %s", level)
	}
}

func TestGrantRequiresAdmin(t *testing.T) {
	store := memory.New()
	eval := auth.NewEvaluator(store, nil, time.Now)

	seedGrant(t, store, auth.PermissionGrant{ID: "g-admin", UserID: "admin", Company: "acme", Category: "hr", Level: auth.LevelAdmin})
	seedGrant(t, store, auth.PermissionGrant{ID: "g-edit", UserID: "editor", Company: "acme", Category: "hr", Level: auth.LevelEdit})

	if _, err := eval.Grant(context.Background(), "editor", "u2", "acme", "hr", auth.LevelView, nil); !errors.Is(err, auth.ErrInsufficientPermission) {
		t.Fatalf("editor must not grant: got %v", err)
	}
	if _, err := eval.Grant(context.Background(), "admin", "u2", "globex", "hr", auth.LevelView, nil); !errors.Is(err, auth.ErrInsufficientPermission) {
		t.Fatalf("admin scope must not leak across companies: got %v", err)
	}

	if _, err := eval.Grant(context.Background(), "admin", "u2", "acme", "hr", auth.LevelView, nil); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	level, err := eval.EffectiveLevel(context.Background(), "u2", "acme", "hr")
	if err != nil {
		t.Fatalf("EffectiveLevel: %v", err)
	}
	if level != auth.LevelView {
		t.Fatalf("expected granted view, got %s", level)
	}

	if _, err := eval.Grant(context.Background(), "admin", "u2", "acme", "hr", auth.LevelNone, nil); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for level none, got %v", err)
	}
}

func TestWildcardAdminGrantsEverywhere(t *testing.T) {
	store := memory.New()
	eval := auth.NewEvaluator(store, nil, time.Now)

	seedGrant(t, store, auth.PermissionGrant{ID: "g-root", UserID: "root", Level: auth.LevelAdmin})

	if _, err := eval.Grant(context.Background(), "root", "u2", "acme", "hr", auth.LevelEdit, nil); err != nil {
		t.Fatalf("wildcard admin must grant anywhere: %v", err)
	}
	if _, err := eval.Grant(context.Background(), "root", "u2", "globex", "sales", auth.LevelAdmin, nil); err != nil {
		t.Fatalf("wildcard admin must grant anywhere: %v", err)
	}
}

func TestRevokeGrant(t *testing.T) {
	store := memory.New()
	eval := auth.NewEvaluator(store, nil, time.Now)

	seedGrant(t, store, auth.PermissionGrant{ID: "g-admin", UserID: "admin", Company: "acme", Category: "hr", Level: auth.LevelAdmin})
	seedGrant(t, store, auth.PermissionGrant{ID: "g-view", UserID: "u2", Company: "acme", Category: "hr", Level: auth.LevelView})
	seedGrant(t, store, auth.PermissionGrant{ID: "g-other", UserID: "u3", Company: "globex", Category: "hr", Level: auth.LevelView})

	if err := eval.RevokeGrant(context.Background(), "admin", "g-other"); !errors.Is(err, auth.ErrInsufficientPermission) {
		t.Fatalf("admin scope is per-company: got %v", err)
	}
	if err := eval.RevokeGrant(context.Background(), "admin", "g-view"); err != nil {
		t.Fatalf("RevokeGrant: %v", err)
	}

	level, err := eval.EffectiveLevel(context.Background(), "u2", "acme", "hr")
	if err != nil {
		t.Fatalf("EffectiveLevel: %v", err)
	}
	if level != auth.LevelNone {
		t.Fatalf("expected none after revocation, got %s", level)
	}

	if err := eval.RevokeGrant(context.Background(), "admin", "missing"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown grant, got %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]auth.Level{
		"view": auth.LevelView, "edit": auth.LevelEdit, "admin": auth.LevelAdmin,
		"VIEW": auth.LevelView, " Admin ": auth.LevelAdmin,
	} {
		got, err := auth.ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
	for _, in := range []string{"owner", "none", ""} {
		if _, err := auth.ParseLevel(in); err == nil {
			t.Fatalf("expected error for level %q", in)
		}
	}
}
