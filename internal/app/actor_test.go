package app

import (
	"context"
	"testing"
)

// TestActorContextRoundTrip verifies normalization and retrieval from context.
func TestActorContextRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), Actor{UserID: " u1 "})
	actor, ok := ActorFromContext(ctx)
	if !ok {
		t.Fatal("ActorFromContext() expected actor")
	}
	if actor.UserID != "u1" {
		t.Fatalf("UserID = %q, want u1", actor.UserID)
	}
}

// TestActorContextEmpty verifies absence semantics.
func TestActorContextEmpty(t *testing.T) {
	if _, ok := ActorFromContext(context.Background()); ok {
		t.Fatal("ActorFromContext() expected no actor for empty context")
	}
	if _, ok := ActorFromContext(WithActor(context.Background(), Actor{UserID: "  "})); ok {
		t.Fatal("ActorFromContext() expected no actor for blank user id")
	}
	if _, err := requireActor(context.Background()); err != ErrUnauthenticated {
		t.Fatalf("requireActor() error = %v, want ErrUnauthenticated", err)
	}
}
