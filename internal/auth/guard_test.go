package auth

import (
	"context"
	"testing"
)

func TestGuardAllowsAuthenticated(t *testing.T) {
	prompted := false
	g := NewGuard(func(label string) { prompted = true })

	ctx := WithAuth(context.Background(), AuthContext{UserID: 1, Username: "alice"})
	if !g.Require(ctx, "send a chat message") {
		t.Fatal("expected authenticated context to pass")
	}
	if prompted {
		t.Error("prompt fired for an authenticated user")
	}
}

func TestGuardPromptsAnonymous(t *testing.T) {
	var gotLabel string
	g := NewGuard(func(label string) { gotLabel = label })

	if g.Require(context.Background(), "redeem a reward") {
		t.Fatal("expected anonymous context to be blocked")
	}
	if gotLabel != "redeem a reward" {
		t.Errorf("prompt label = %q", gotLabel)
	}
}

func TestGuardNilPrompt(t *testing.T) {
	g := NewGuard(nil)
	// Must not panic
	if g.Require(context.Background(), "subscribe") {
		t.Fatal("expected block without prompt")
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{UserID: 7, Username: "bob", SessionID: 3})

	if UserID(ctx) != 7 || Username(ctx) != "bob" {
		t.Error("context accessors returned wrong values")
	}
	if UserID(context.Background()) != 0 || Username(context.Background()) != "" {
		t.Error("empty context should yield zero values")
	}
}
