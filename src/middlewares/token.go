package middlewares

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
)

// IssueToken signs an HS256 token for user that AuthMiddleware accepts.
func IssueToken(user *models.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &types.Claims{
		Username: user.Email,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtKey())
}
