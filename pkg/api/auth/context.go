package auth

import "context"

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// claimsContextKey is the context key under which validated claims are stored.
const claimsContextKey contextKey = "claims"

// ContextWithClaims stores validated claims in the context.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext returns the claims stored by the auth middleware, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// OwnerID returns the authenticated coach ID, or empty when unauthenticated.
func OwnerID(ctx context.Context) string {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		return ""
	}
	return claims.CoachID
}
