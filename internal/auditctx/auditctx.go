package auditctx

import "context"

// Actor captures who initiated a request and why, for attribution on audit entries.
type Actor struct {
	UserID    string
	Username  string
	IPAddress string
	UserAgent string
	// Reason is the operator supplied justification, usually from the X-Audit-Reason header.
	Reason string
}

type actorContextKey struct{}

// WithActor injects actor metadata into the supplied context, returning a derived context that
// callers can pass down into service layers for audit logging.
func WithActor(ctx context.Context, actor Actor) context.Context {
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

// UserID returns the actor's user id or fallback when none is attached.
func UserID(ctx context.Context, fallback string) string {
	if actor, ok := FromContext(ctx); ok && actor.UserID != "" {
		return actor.UserID
	}
	return fallback
}
