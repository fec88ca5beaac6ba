package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/xela07ax/pamwatch/internal/domain"
	"go.uber.org/zap"
)

type memorySink struct {
	mu      sync.Mutex
	events  []domain.ScoredEvent
	batches int
}

func (s *memorySink) WriteBatch(ctx context.Context, events []domain.ScoredEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	s.batches++
	return nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestTrail_StopFlushesEverything(t *testing.T) {
	sink := &memorySink{}
	tr := NewTrail(sink, 1000, time.Hour, zap.NewNop())
	tr.Start()

	for i := 0; i < 250; i++ {
		tr.Log(domain.ScoredEvent{ID: int64(i)})
	}
	tr.Stop()

	if got := sink.count(); got != 250 {
		t.Fatalf("flushed = %d, want 250", got)
	}
	for i, ev := range sink.events {
		if ev.ID != int64(i) {
			t.Fatalf("event %d out of order: id %d", i, ev.ID)
		}
	}
}

func TestTrail_FlushesOnTicker(t *testing.T) {
	sink := &memorySink{}
	tr := NewTrail(sink, 10, 10*time.Millisecond, zap.NewNop())
	tr.Start()
	defer tr.Stop()

	tr.Log(domain.ScoredEvent{ID: 1})

	deadline := time.Now().Add(2 * time.Second)
	for sink.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("event was not flushed by ticker")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTrail_LogAfterStopIsDropped(t *testing.T) {
	sink := &memorySink{}
	tr := NewTrail(sink, 10, time.Hour, zap.NewNop())
	tr.Start()
	tr.Stop()
	tr.Stop() // повторный Stop безопасен

	tr.Log(domain.ScoredEvent{ID: 1})
	if sink.count() != 0 {
		t.Fatal("event accepted after Stop")
	}
}

func TestMultiSink_FansOut(t *testing.T) {
	a, b := &memorySink{}, &memorySink{}
	m := MultiSink{a, NewLogSink(zap.NewNop()), b}

	if err := m.WriteBatch(context.Background(), []domain.ScoredEvent{{ID: 1}, {ID: 2}}); err != nil {
		t.Fatalf("WriteBatch() error = %v", err)
	}
	if a.count() != 2 || b.count() != 2 {
		t.Fatalf("fan-out counts = %d/%d, want 2/2", a.count(), b.count())
	}
}
