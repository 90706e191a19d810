package authctx

import "context"

type contextKey string

const userContextKey contextKey = "currentUser"

// CurrentUser is the authenticated ERP user attached to the request context.
type CurrentUser struct {
	ID    int64  // ERP res.users id
	Email string // login / user name
	Token string // presented bearer token
}

func WithCurrentUser(ctx context.Context, user CurrentUser) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func FromContext(ctx context.Context) *CurrentUser {
	val, ok := ctx.Value(userContextKey).(CurrentUser)
	if !ok {
		return nil
	}
	return &val
}
