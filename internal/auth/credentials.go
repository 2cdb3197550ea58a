package auth

import "context"

// RoleAdmin may read reports for any dealer.
const RoleAdmin = "admin"

// Credentials is the caller identity threaded explicitly into every backend
// call. Token is forwarded verbatim as the bearer credential.
type Credentials struct {
	Token    string
	DealerID string
	Role     string
}

// IsAdmin reports whether the caller may act on behalf of other dealers.
func (c Credentials) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// ForDealer returns the dealer a report should be scoped to. Only admins may
// override their own dealer id.
func (c Credentials) ForDealer(requested string) string {
	if requested != "" && c.IsAdmin() {
		return requested
	}
	return c.DealerID
}

type credentialsKey struct{}

// WithCredentials stores the caller credentials on ctx.
func WithCredentials(ctx context.Context, c Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, c)
}

// FromContext returns the credentials attached by the middleware.
func FromContext(ctx context.Context) (Credentials, bool) {
	c, ok := ctx.Value(credentialsKey{}).(Credentials)
	return c, ok
}
