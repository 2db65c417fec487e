// Package authctx carries the authenticated caller through a request context.
package authctx

import (
	"context"
	"strings"

	"github.com/gofrs/uuid/v5"
)

type ctxKey string

const (
	userIDKey ctxKey = "ditrix.userID"
	tokenKey  ctxKey = "ditrix.token"
)

// WithUserID stores the authenticated user ID in ctx.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromCtx returns the authenticated caller.
func UserIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}

// WithToken stores the bearer token the caller authenticated with.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// TokenFromCtx returns the stored bearer token, or "".
func TokenFromCtx(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}

// BearerToken extracts the token from an Authorization header value.
// The scheme is case-insensitive; anything else yields "".
func BearerToken(header string) string {
	h := strings.TrimSpace(header)
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}
