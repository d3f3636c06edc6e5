package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Caller is the capability token every settlement call receives instead
// of ambient session state.
type Caller struct {
	UserID  int64
	IsAdmin bool
}

type contextKey string

const CallerKey contextKey = "caller"

func GenerateToken(userID int64, isAdmin bool, secret string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  userID,
		"is_admin": isAdmin,
		"exp":      time.Now().Add(ttl).Unix(),
		"iat":      time.Now().Unix(),
	})
	return token.SignedString([]byte(secret))
}
