// Package middleware provides HTTP middleware for the PitchSight API.
package middleware

import (
	"net/http"
	"strings"

	"github.com/pitchsight/pitchsight/pkg/api/auth"
	"github.com/pitchsight/pitchsight/pkg/api/handlers"
)

// JWTAuth returns middleware that validates the Authorization bearer token
// and stores the claims in the request context. Requests without a valid
// token get a 401 problem response.
func JWTAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearerToken(r)
			if !ok {
				handlers.Unauthorized(w, "missing or malformed Authorization header")
				return
			}

			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				handlers.Unauthorized(w, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.ContextWithClaims(r.Context(), claims)))
		})
	}
}

// extractBearerToken pulls the token out of the Authorization header.
// The scheme comparison is case-insensitive per RFC 7235.
func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := parts[1]
	if token == "" {
		return "", false
	}
	return token, true
}
