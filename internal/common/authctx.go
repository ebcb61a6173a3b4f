package common

import (
	"context"

	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/identity"
)

type ctxKey string

const principalKey ctxKey = "auth/principal"

// WithPrincipal stores the authenticated principal on the provided context.
func WithPrincipal(ctx context.Context, p identity.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom extracts the authenticated principal from the context if present.
func PrincipalFrom(ctx context.Context) (identity.Principal, bool) {
	p, ok := ctx.Value(principalKey).(identity.Principal)
	return p, ok && p != nil
}

// UserID returns the subject of the authenticated principal.
func UserID(ctx context.Context) (string, bool) {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return "", false
	}
	return p.Subject(), true
}
