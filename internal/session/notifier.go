package session

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/pamwatch/internal/domain"
	"github.com/xela07ax/pamwatch/internal/infra"
)

// RedisNotifier транслирует отзыв доступа порталу: id попадает в revoked_set
// (проверка при входе), а в канал уходит сигнал "sessionID:true".
type RedisNotifier struct {
	rdb *redis.Client
}

func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

func (n *RedisNotifier) NotifyRevoked(ctx context.Context, st domain.SessionState) error {
	pipe := n.rdb.TxPipeline()
	pipe.SAdd(ctx, infra.RedisKeyRevokedSessions, st.SessionID)
	pipe.Publish(ctx, infra.RedisChanRevocation, fmt.Sprintf("%s:true", st.SessionID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis revoke signal: %w", err)
	}
	return nil
}
