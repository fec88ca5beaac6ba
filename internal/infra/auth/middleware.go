package auth

import (
	"context"
	"net/http"

	"github.com/xela07ax/pamwatch/internal/domain"
	"go.uber.org/zap"
)

// TokenValidator — проверка токена оператора
type TokenValidator interface {
	VerifyToken(tokenStr string) (*domain.OperatorClaims, error)
}

type ctxKey string

const claimsKey ctxKey = "claims"

// ClaimsFromContext достает claims, положенные middleware
func ClaimsFromContext(ctx context.Context) (*domain.OperatorClaims, bool) {
	c, ok := ctx.Value(claimsKey).(*domain.OperatorClaims)
	return c, ok
}

// NewMiddleware пропускает только запросы с валидным токеном и ролью из allowedRoles.
// При пустом allowedRoles достаточно валидного токена.
func NewMiddleware(v TokenValidator, logger *zap.Logger, allowedRoles ...string) func(http.Handler) http.Handler {
	roles := make(map[string]bool, len(allowedRoles))
	for _, r := range allowedRoles {
		roles[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := v.VerifyToken(authHeader)
			if err != nil {
				logger.Warn("auth failure", zap.Error(err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if len(roles) > 0 && !roles[claims.Role] {
				logger.Warn("insufficient privileges",
					zap.String("email", claims.Email),
					zap.String("role", claims.Role))
				http.Error(w, "Insufficient privileges", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
