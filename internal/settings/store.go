package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xela07ax/pamwatch/internal/domain"
	"go.uber.org/zap"
)

// Persister — куда физически сохраняются настройки
type Persister interface {
	Load(ctx context.Context) (domain.Settings, error)
	Save(ctx context.Context, s domain.Settings) error
}

// ChangeNotifier сообщает другим процессам, что настройки изменились
type ChangeNotifier interface {
	NotifyUpdate(ctx context.Context) error
}

// Store держит актуальные настройки. Скоринг читает Current() на каждом вызове,
// поэтому обновление действует со следующего события без рестарта.
type Store struct {
	mu       sync.RWMutex
	current  domain.Settings
	persist  Persister
	notifier ChangeNotifier
	logger   *zap.Logger
}

// NewStore загружает настройки из persister. Битые сохраненные настройки валят старт.
func NewStore(ctx context.Context, p Persister, n ChangeNotifier, logger *zap.Logger) (*Store, error) {
	s := &Store{
		persist:  p,
		notifier: n,
		logger:   logger.Named("settings"),
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Current возвращает актуальное значение (копию)
func (s *Store) Current() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Update накладывает частичный или полный JSON поверх текущих настроек.
// При нарушении инвариантов возвращает domain.ErrInvalidSettings, прежние значения остаются.
func (s *Store) Update(ctx context.Context, patch []byte) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// json.Unmarshal поверх клона сливает вложенные секции поле за полем
	next := s.current.Clone()
	if err := json.Unmarshal(patch, &next); err != nil {
		return domain.Settings{}, fmt.Errorf("%w: %v", domain.ErrInvalidSettings, err)
	}
	if err := next.Validate(); err != nil {
		return domain.Settings{}, err
	}

	if err := s.persist.Save(ctx, next); err != nil {
		return domain.Settings{}, fmt.Errorf("settings: failed to persist: %w", err)
	}
	s.current = next

	s.logger.Info("settings updated",
		zap.Int("medium", next.RiskThresholds.Medium),
		zap.Int("high", next.RiskThresholds.High),
		zap.Int("critical", next.RiskThresholds.Critical),
		zap.Int("max_strikes", next.SessionManagement.MaxStrikes))

	if s.notifier != nil {
		if err := s.notifier.NotifyUpdate(ctx); err != nil {
			s.logger.Warn("settings update signal failed", zap.Error(err))
		}
	}
	return next.Clone(), nil
}

// Reload перечитывает настройки из persister (старт или сигнал от другого процесса).
// Чтение и замена идут под тем же замком, что и Update: прочитанный файл не может
// оказаться старше значения, которое Update уже поставил в память.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := s.persist.Load(ctx)
	if err != nil {
		return fmt.Errorf("settings: failed to load: %w", err)
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("settings: stored settings rejected: %w", err)
	}
	s.current = loaded
	return nil
}
