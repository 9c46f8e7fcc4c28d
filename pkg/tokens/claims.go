package tokens

import "github.com/golang-jwt/jwt/v5"

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims is the flat payload shared by access and refresh tokens.
// Access tokens carry Email and Role, refresh tokens carry RememberMe.
type Claims struct {
	Email      string `json:"email,omitempty"`
	Role       string `json:"role,omitempty"`
	RememberMe bool   `json:"remember_me,omitempty"`
	Type       string `json:"typ"`
	jwt.RegisteredClaims
}

// Identity is the minimum an account has to expose to be issued a token.
type Identity struct {
	ID    uint
	Email string
	Role  string
}

func ExtractAccountID(claims *Claims) string {
	if claims == nil {
		return ""
	}
	return claims.Subject
}

func ExtractRememberMe(claims *Claims) bool {
	if claims == nil {
		return false
	}
	return claims.RememberMe
}

func ExtractRole(claims *Claims) string {
	if claims == nil {
		return ""
	}
	return claims.Role
}
