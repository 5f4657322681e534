package app

import (
	"context"
	"strings"
)

// Actor carries the authenticated caller identity used for authorization and attribution.
type Actor struct {
	UserID string
}

// actorContextKey stores context keys for actor values.
type actorContextKey struct{}

// WithActor attaches a normalized actor to context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	actor.UserID = strings.TrimSpace(actor.UserID)
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the actor when one with a user id is present.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	if !ok || actor.UserID == "" {
		return Actor{}, false
	}
	return actor, true
}

// requireActor resolves the caller or fails with ErrUnauthenticated.
func requireActor(ctx context.Context) (Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return Actor{}, ErrUnauthenticated
	}
	return actor, nil
}
