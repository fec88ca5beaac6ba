package domain

import "github.com/golang-jwt/jwt/v5"

// OperatorClaims кладет в токен портал после OAuth входа оператора
type OperatorClaims struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}
