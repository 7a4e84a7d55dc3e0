package types

import "github.com/golang-jwt/jwt/v4"

type Claims struct {
	Username    string   `json:"username"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	Tenant      string   `json:"tenant,omitempty"`
	jwt.RegisteredClaims
}
