package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the access token payload issued by the helpdesk identity provider.
type JWTClaims struct {
	Email    string   `json:"email"`
	FullName string   `json:"full_name,omitempty"`
	Role     UserRole `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Caller converts the claims into the export caller.
func (c *JWTClaims) Caller() Caller {
	if c == nil {
		return Caller{}
	}
	return Caller{Email: c.Email, Name: c.FullName}
}
