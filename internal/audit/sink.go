package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/pamwatch/internal/domain"
	"github.com/xela07ax/pamwatch/internal/infra"
	"go.uber.org/zap"
)

// LogSink пишет каждое событие отдельной структурированной строкой
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("scored")}
}

func (s *LogSink) WriteBatch(ctx context.Context, events []domain.ScoredEvent) error {
	for _, ev := range events {
		s.logger.Info("analyzed event",
			zap.Int64("id", ev.ID),
			zap.String("action", ev.Action),
			zap.String("role", ev.User.Role),
			zap.String("source", string(ev.Source)),
			zap.Int("risk_score", ev.RiskScore),
			zap.String("category", string(ev.RiskCategory)),
		)
	}
	return nil
}

// RedisSink публикует события в канал для живых дашбордов.
// Это транспорт, а не хранилище: без подписчика событие никто не увидит.
type RedisSink struct {
	rdb *redis.Client
}

func NewRedisSink(rdb *redis.Client) *RedisSink {
	return &RedisSink{rdb: rdb}
}

func (s *RedisSink) WriteBatch(ctx context.Context, events []domain.ScoredEvent) error {
	pipe := s.rdb.Pipeline()
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event %d: %w", ev.ID, err)
		}
		pipe.Publish(ctx, infra.RedisChanScoredEvents, data)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// MultiSink раздает пачку всем sink по очереди; ошибка одного не мешает остальным
type MultiSink []Sink

func (m MultiSink) WriteBatch(ctx context.Context, events []domain.ScoredEvent) error {
	var firstErr error
	for _, s := range m {
		if err := s.WriteBatch(ctx, events); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
