package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/pamwatch/internal/domain"
	"go.uber.org/zap"
)

// Notifier получает сигнал об отзыве доступа. Вызывается ровно один раз на сессию.
type Notifier interface {
	NotifyRevoked(ctx context.Context, state domain.SessionState) error
}

// Outcome — что произошло с сессией после учета события
type Outcome struct {
	Known       bool // сессия найдена
	StrikeAdded bool
	Revoked     bool // переход Active -> Revoked случился именно на этом событии
	StrikeCount int
}

type entry struct {
	mu    sync.Mutex
	state domain.SessionState
}

// Manager владеет состоянием сессий в памяти процесса.
// Сессии живут до рестарта: истечения по таймауту нет.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewManager(notifier Notifier, logger *zap.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*entry),
		notifier: notifier,
		logger:   logger.With(zap.String("mod", "sessions")),
		now:      time.Now,
	}
}

// Register заводит Active(0) сессию после успешной аутентификации во внешнем портале
func (m *Manager) Register(ctx context.Context, st domain.SessionState) (domain.SessionState, error) {
	if st.SessionID == "" {
		st.SessionID = uuid.New().String()
	}
	if st.LoginTime.IsZero() {
		st.LoginTime = m.now()
	}
	st.StrikeCount = 0
	st.AccessRevoked = false

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[st.SessionID]; exists {
		return domain.SessionState{}, fmt.Errorf("session %s already registered", st.SessionID)
	}
	m.sessions[st.SessionID] = &entry{state: st}

	m.logger.Info("session registered",
		zap.String("session_id", st.SessionID),
		zap.String("email", st.UserEmail),
		zap.String("role", st.Role))
	return st, nil
}

// RecordRisk учитывает оцененное событие. Чтение счетчика, инкремент, сравнение
// с лимитом и переход в Revoked атомарны для одной сессии.
// Неизвестная или пустая сессия не ошибка, состояние не меняется.
func (m *Manager) RecordRisk(ctx context.Context, sessionID string, score int, s domain.Settings) Outcome {
	if sessionID == "" {
		return Outcome{}
	}

	e := m.lookup(sessionID)
	if e == nil {
		return Outcome{}
	}

	e.mu.Lock()
	out := Outcome{Known: true, StrikeCount: e.state.StrikeCount}

	// Revoked терминален
	if e.state.AccessRevoked || score < s.RiskThresholds.Critical {
		e.mu.Unlock()
		return out
	}

	e.state.StrikeCount++
	out.StrikeAdded = true
	out.StrikeCount = e.state.StrikeCount

	if e.state.StrikeCount >= s.SessionManagement.MaxStrikes {
		e.state.AccessRevoked = true
		out.Revoked = true
	}
	snapshot := e.state
	e.mu.Unlock()

	if out.Revoked {
		m.logger.Warn("PORTAL ACCESS REVOKED",
			zap.String("session_id", sessionID),
			zap.String("email", snapshot.UserEmail),
			zap.Int("strikes", snapshot.StrikeCount))

		// Сигнал наружу не откатывает локальное состояние
		if m.notifier != nil {
			if err := m.notifier.NotifyRevoked(ctx, snapshot); err != nil {
				m.logger.Error("revocation signal delivery failed",
					zap.String("session_id", sessionID), zap.Error(err))
			}
		}
	} else {
		m.logger.Info("strike recorded",
			zap.String("session_id", sessionID),
			zap.Int("strikes", out.StrikeCount),
			zap.Int("max_strikes", s.SessionManagement.MaxStrikes))
	}

	return out
}

// Get возвращает копию состояния сессии
func (m *Manager) Get(sessionID string) (domain.SessionState, error) {
	e := m.lookup(sessionID)
	if e == nil {
		return domain.SessionState{}, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, nil
}

// IsRevoked нужен коллаборатору, который отдает портал
func (m *Manager) IsRevoked(sessionID string) bool {
	st, err := m.Get(sessionID)
	return err == nil && st.AccessRevoked
}

// List возвращает все сессии, упорядоченные по времени входа
func (m *Manager) List() []domain.SessionState {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	out := make([]domain.SessionState, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.state)
		e.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].LoginTime.Equal(out[j].LoginTime) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].LoginTime.Before(out[j].LoginTime)
	})
	return out
}

func (m *Manager) lookup(sessionID string) *entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[sessionID]
}
