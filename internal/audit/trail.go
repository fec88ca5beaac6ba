package audit

/*
Trail — асинхронный след оцененных событий для внешних потребителей (живые дашборды, SIEM).

- Non-blocking: скоринг кладет событие в буферизированный канал и не ждет записи.
- Batching: события копятся и отдаются Sink пачкой по таймеру или по 100 штук.
- Drain: Stop закрывает канал и ждет, пока воркер вычитает остаток и сделает финальный flush.
- Load shedding: при переполнении буфера событие пропускается с ошибкой в логе,
  in-memory хранилища при этом уже содержат событие.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xela07ax/pamwatch/internal/domain"
	"go.uber.org/zap"
)

const batchSize = 100

// Sink определяет, куда уходят события
type Sink interface {
	WriteBatch(ctx context.Context, events []domain.ScoredEvent) error
}

type Trail struct {
	ch       chan domain.ScoredEvent
	sink     Sink
	interval time.Duration
	logger   *zap.Logger
	wg       sync.WaitGroup
	isClosed atomic.Bool
	mu       sync.RWMutex // Log держит RLock, Stop берет Lock перед close(ch)
}

func NewTrail(sink Sink, bufferSize int, flushInterval time.Duration, logger *zap.Logger) *Trail {
	if bufferSize < 1 {
		bufferSize = 1
	}
	if flushInterval <= 0 {
		flushInterval = 500 * time.Millisecond
	}
	return &Trail{
		ch:       make(chan domain.ScoredEvent, bufferSize),
		sink:     sink,
		interval: flushInterval,
		logger:   logger.With(zap.String("mod", "audit")),
	}
}

func (t *Trail) Start() {
	t.wg.Add(1)
	go t.worker()
}

// Stop запирает вход и ждет финального flush
func (t *Trail) Stop() {
	t.mu.Lock()
	if t.isClosed.Swap(true) {
		t.mu.Unlock()
		return
	}
	t.logger.Info("stopping audit trail: closing channel and flushing buffer...")
	close(t.ch)
	t.mu.Unlock()

	t.wg.Wait()
	t.logger.Info("audit trail stopped gracefully")
}

// Log неблокирующе ставит событие в очередь
func (t *Trail) Log(ev domain.ScoredEvent) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.isClosed.Load() {
		t.logger.Warn("audit event dropped: trail is stopping", zap.Int64("id", ev.ID))
		return
	}

	select {
	case t.ch <- ev:
	default:
		t.logger.Error("audit_buffer_overflow",
			zap.Int64("id", ev.ID),
			zap.String("action", ev.Action),
			zap.Int("risk_score", ev.RiskScore))
	}
}

// Pending возвращает заполненность буфера (для метрики backpressure)
func (t *Trail) Pending() int {
	return len(t.ch)
}

func (t *Trail) worker() {
	defer t.wg.Done()

	batch := make([]domain.ScoredEvent, 0, batchSize)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: контекст сервиса может быть уже отменен на финальном flush
		if err := t.sink.WriteBatch(context.Background(), batch); err != nil {
			t.logger.Error("audit flush failed", zap.Int("batch", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case ev, ok := <-t.ch:
			if !ok {
				flush()
				t.logger.Info("audit worker finished")
				return
			}
			batch = append(batch, ev)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
