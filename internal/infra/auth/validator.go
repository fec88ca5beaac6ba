package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xela07ax/pamwatch/internal/domain"
)

// Допуск на расхождение часов портала и сервиса
const clockLeeway = 30 * time.Second

var errNoRole = errors.New("role claim is missing")

// RS256Validator проверяет токены, выпущенные порталом.
// Принимается только RS256 с обязательным exp; issuer проверяется, если задан.
type RS256Validator struct {
	publicKey *rsa.PublicKey
	parser    *jwt.Parser
}

func NewRS256Validator(pubKey *rsa.PublicKey, issuer string) *RS256Validator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockLeeway),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &RS256Validator{publicKey: pubKey, parser: jwt.NewParser(opts...)}
}

// VerifyToken принимает значение заголовка Authorization (с префиксом Bearer или без)
func (v *RS256Validator) VerifyToken(raw string) (*domain.OperatorClaims, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))

	claims := &domain.OperatorClaims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	// Без роли админский периметр не решить
	if claims.Role == "" {
		return nil, fmt.Errorf("invalid token: %w", errNoRole)
	}
	return claims, nil
}

// ParseRSAPublicKey превращает PEM в ключ для проверки подписи
func ParseRSAPublicKey(data []byte) (*rsa.PublicKey, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("public key data is empty")
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return key, nil
}
