package activity

import (
	"context"
	"strings"
)

// Actor identifies who triggered an entity operation.
type Actor struct {
	ActorID  string
	UserID   string
	TenantID string
}

// Or fills the blank ids of a from fallback.
func (a Actor) Or(fallback Actor) Actor {
	if strings.TrimSpace(a.ActorID) == "" {
		a.ActorID = fallback.ActorID
	}
	if strings.TrimSpace(a.UserID) == "" {
		a.UserID = fallback.UserID
	}
	if strings.TrimSpace(a.TenantID) == "" {
		a.TenantID = fallback.TenantID
	}
	return a
}

type actorKey struct{}

// WithActor attaches actor to ctx. Events emitted under ctx take their
// missing ids from it.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor attached with WithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
