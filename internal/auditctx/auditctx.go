package auditctx

import (
	"context"

	"github.com/aegisauth/aegis/internal/models"
)

// Actor captures contextual information about who initiated a request. Type
// is either "user" (a request on behalf of an authenticated caller) or
// "system" (engine-internal activity such as the expiry sweeper).
type Actor struct {
	Type      string
	ID        string
	IPAddress string
	UserAgent string
}

type actorContextKey struct{}

// WithActor injects actor metadata into the supplied context, returning a derived context that
// callers can pass down into service layers for audit logging.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if actor.Type == "" {
		actor.Type = models.ActorTypeUser
	}
	if ctx == nil {
		return context.WithValue(context.Background(), actorContextKey{}, actor)
	}
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// FromContext extracts previously stored actor metadata from the context.
func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// System returns the actor recorded for engine-internal mutations.
func System() Actor {
	return Actor{Type: models.ActorTypeSystem, ID: "aegis"}
}
