package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess TokenType = "access"
)

// Claims are the access-token claims issued by the main CRM.
// Tenant invariant: DirectorID is set for every staff user; only admins may
// carry none.
type Claims struct {
	jwt.RegisteredClaims

	UserID     int64     `json:"user_id"`
	DirectorID int64     `json:"director_id"`
	Role       string    `json:"role"`
	TokenType  TokenType `json:"token_type"`
}
