package auth

import (
	"context"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()

	if _, ok := PrincipalFromContext(ctx); ok {
		t.Fatal("empty context must not hold a principal")
	}
	if _, ok := TokenFromContext(ctx); ok {
		t.Fatal("empty context must not hold a token")
	}

	principal := Principal{User: &User{ID: "u1"}, SessionID: "s1"}
	ctx = ContextWithPrincipal(ctx, principal)
	ctx = ContextWithToken(ctx, "raw-token")

	got, ok := PrincipalFromContext(ctx)
	if !ok || got.User.ID != "u1" || got.SessionID != "s1" {
		t.Fatalf("unexpected principal: %+v, ok=%v", got, ok)
	}
	token, ok := TokenFromContext(ctx)
	if !ok || token != "raw-token" {
		t.Fatalf("unexpected token: %q, ok=%v", token, ok)
	}

	empty := ContextWithPrincipal(context.Background(), Principal{})
	if _, ok := PrincipalFromContext(empty); ok {
		t.Fatal("principal without a user is anonymous")
	}
}
