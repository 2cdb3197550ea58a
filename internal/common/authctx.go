package common

import "context"

type ctxKey string

const (
	dealerIDKey  ctxKey = "auth/dealer-id"
	sessionIDKey ctxKey = "dashboard/session-id"
)

// WithDealerID stores the authenticated dealer identifier on the provided context.
func WithDealerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, dealerIDKey, id)
}

// DealerID extracts the authenticated dealer identifier from the context if present.
func DealerID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(dealerIDKey).(string)
	return id, ok && id != ""
}

// WithSessionID stores the dashboard session identifier.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionID returns the dashboard session identifier if present.
func SessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok && id != ""
}
