package core

import "context"

type contextKey string

const ctxKeyActor contextKey = "actor"

// Actor identifies who issued a request, for mutation logs.
type Actor struct {
	Username string
	Role     string
	IP       string
}

// ContextWithActor attaches the caller to ctx.
func ContextWithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor, a)
}

// ActorFromContext returns the caller stored by ContextWithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKeyActor).(Actor)
	return a, ok
}
