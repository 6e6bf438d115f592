package auth

import (
	"context"
)

var sessionCtxKey = &contextKey{"session"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithSession sets the Session in the given context
func WithSession(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, session.clone())
}

// SessionFromContext finds the session in the context.
func SessionFromContext(ctx context.Context) (Session, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(Session)
	return raw, ok
}

// WithClaimsContext sets the decoded Claims in the given context
func WithClaimsContext(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, claims)
}

// GetClaims extracts the Claims from the context
func GetClaims(ctx context.Context) (Claims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(Claims)
	return raw, ok
}

// CheckContext runs Check against the session stored in ctx. A context
// without a session is anonymous.
func (g *Guard) CheckContext(ctx context.Context, path string) Decision {
	session, _ := SessionFromContext(ctx)
	return g.Check(session, path)
}

// ContextWithSession returns ctx carrying a snapshot of the current session
// and, when the token decodes, its claims.
func (c *Controller) ContextWithSession(ctx context.Context) context.Context {
	cur := c.state.Current()
	ctx = WithSession(ctx, cur)
	if !cur.HasToken() {
		return ctx
	}
	if claims, err := c.decoder.Decode(cur.Token); err == nil {
		ctx = WithClaimsContext(ctx, claims)
	}
	return ctx
}
