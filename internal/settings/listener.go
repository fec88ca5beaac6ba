package settings

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/pamwatch/internal/infra"
	"go.uber.org/zap"
)

// RedisNotifier рассылает "refresh" всем процессам, читающим тот же файл настроек
type RedisNotifier struct {
	rdb *redis.Client
}

func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

func (n *RedisNotifier) NotifyUpdate(ctx context.Context) error {
	return n.rdb.Publish(ctx, infra.RedisChanSettingsUpdate, "refresh").Err()
}

// StartListener подписывается на сигнал обновления и перечитывает настройки.
// Переподключается при обрыве канала до отмены ctx.
func (s *Store) StartListener(ctx context.Context, rdb *redis.Client) {
	for {
		pubsub := rdb.Subscribe(ctx, infra.RedisChanSettingsUpdate)

		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("failed to subscribe", zap.String("chan", infra.RedisChanSettingsUpdate), zap.Error(err))
			if !sleepCtx(ctx, 5*time.Second) {
				return
			}
			continue
		}

		// После (пере)подключения сигнал мог быть пропущен
		if err := s.Reload(ctx); err != nil {
			s.logger.Error("sync failed on reconnect", zap.Error(err))
		}

		ch := pubsub.Channel()
	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case _, ok := <-ch:
				if !ok {
					break loop
				}
				if err := s.Reload(ctx); err != nil {
					s.logger.Error("settings reload failed", zap.Error(err))
					continue
				}
				s.logger.Info("settings reloaded by signal")
			}
		}

		pubsub.Close()
		if !sleepCtx(ctx, time.Second) {
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
