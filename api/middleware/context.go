package middleware

import "context"

// Identity is the caller resolved from a valid access token.
type Identity struct {
	UserID   string
	Role     string
	AccessID string
}

type identityKey struct{}

// WithIdentity stores the caller on ctx. Auth and OptionalAuth call it; tests
// use it to fake a signed-in user.
func WithIdentity(ctx context.Context, userID, role, accessID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityKey{}, Identity{UserID: userID, Role: role, AccessID: accessID})
}

// IdentityFromContext reports the caller, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

func UserIDFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}

func RoleFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.Role
}

// AccessIDFromContext returns the jti of the presented access token.
func AccessIDFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.AccessID
}
