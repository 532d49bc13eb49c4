package common

import (
	"context"

	"github.com/noah-isme/backend-kasir/internal/model"
)

type ctxKey string

const actorKey ctxKey = "auth/actor"

// WithActor stores the authenticated operator on the provided context.
func WithActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext extracts the authenticated operator from the context if present.
func ActorFromContext(ctx context.Context) (model.Actor, bool) {
	if ctx == nil {
		return model.Actor{}, false
	}
	actor, ok := ctx.Value(actorKey).(model.Actor)
	if !ok || actor.UserID == "" {
		return model.Actor{}, false
	}
	return actor, true
}

// UserID extracts the authenticated user identifier from the context if present.
func UserID(ctx context.Context) (string, bool) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return "", false
	}
	return actor.UserID, true
}

// ActorRef returns a pointer to the context actor, or nil when the request is anonymous.
func ActorRef(ctx context.Context) *model.Actor {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil
	}
	return &actor
}
