// Package auth carries the authenticated user through request contexts.
package auth

import "context"

type contextKey struct{}

// AuthContext identifies the authenticated user. UserID is the local row
// ID; UserUID is the stable identifier shared with the remote directory.
type AuthContext struct {
	UserID    int64
	UserUID   string
	UserName  string
	SessionID int64
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

// UserUID returns the directory identifier of the authenticated user, or
// empty when the request is unauthenticated.
func UserUID(ctx context.Context) string {
	ac, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return ac.UserUID
}

func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}
