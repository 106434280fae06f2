package middleware

import "context"

// Principal is the caller resolved from a valid access token.
type Principal struct {
	AccountID string
	Role      string
}

type principalKey struct{}

func WithUser(ctx context.Context, accountID, role string) context.Context {
	return context.WithValue(ctx, principalKey{}, Principal{AccountID: accountID, Role: role})
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.AccountID != ""
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	p, ok := PrincipalFromContext(ctx)
	return p.AccountID, ok
}

// RoleFromContext is false for anonymous callers and for principals without a role.
func RoleFromContext(ctx context.Context) (string, bool) {
	p, ok := PrincipalFromContext(ctx)
	return p.Role, ok && p.Role != ""
}
