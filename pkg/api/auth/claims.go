// Package auth provides JWT authentication for the PitchSight API.
package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims represents JWT claims for PitchSight authentication.
//
// The subject is the coach account; CoachID is the ownership key every
// session and job is scoped to.
type Claims struct {
	jwt.RegisteredClaims

	// CoachID is the unique identifier (UUID) of the coach account. All
	// ownership checks compare against this value.
	CoachID string `json:"coach_id"`

	// Name is the human-readable account name.
	Name string `json:"name,omitempty"`

	// Role is the account role ("coach" or "admin").
	Role string `json:"role,omitempty"`
}

// IsAdmin returns true if the account has the admin role.
func (c *Claims) IsAdmin() bool {
	return c.Role == "admin"
}
