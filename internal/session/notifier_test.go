package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/pamwatch/internal/domain"
	"github.com/xela07ax/pamwatch/internal/infra"
	"go.uber.org/zap"
)

// commandRecorder — hook go-redis: записывает команды и не ходит в сеть
type commandRecorder struct {
	mu   sync.Mutex
	cmds [][]string
	err  error
}

func (r *commandRecorder) DialHook(next redis.DialHook) redis.DialHook { return next }

func (r *commandRecorder) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		r.record(cmd)
		return r.err
	}
}

func (r *commandRecorder) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			r.record(cmd)
		}
		return r.err
	}
}

func (r *commandRecorder) record(cmd redis.Cmder) {
	args := make([]string, 0, len(cmd.Args()))
	for _, a := range cmd.Args() {
		if b, ok := a.([]byte); ok {
			args = append(args, string(b))
			continue
		}
		args = append(args, fmt.Sprint(a))
	}
	r.mu.Lock()
	r.cmds = append(r.cmds, args)
	r.mu.Unlock()
}

func (r *commandRecorder) named(name string) [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out [][]string
	for _, c := range r.cmds {
		if len(c) > 0 && c[0] == name {
			out = append(out, c)
		}
	}
	return out
}

func newRecordingClient(t *testing.T, rec *commandRecorder) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	rdb.AddHook(rec)
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestRedisNotifier_MarksRevokedAndSignals(t *testing.T) {
	rec := &commandRecorder{}
	n := NewRedisNotifier(newRecordingClient(t, rec))

	if err := n.NotifyRevoked(context.Background(), domain.SessionState{SessionID: "s-42"}); err != nil {
		t.Fatalf("NotifyRevoked() error = %v", err)
	}

	sadd := rec.named("sadd")
	if len(sadd) != 1 || sadd[0][1] != infra.RedisKeyRevokedSessions || sadd[0][2] != "s-42" {
		t.Errorf("sadd = %v", sadd)
	}
	pub := rec.named("publish")
	if len(pub) != 1 || pub[0][1] != infra.RedisChanRevocation || pub[0][2] != "s-42:true" {
		t.Errorf("publish = %v", pub)
	}
}

func TestRedisNotifier_ReportsRedisFailure(t *testing.T) {
	rec := &commandRecorder{err: errors.New("READONLY replica")}
	n := NewRedisNotifier(newRecordingClient(t, rec))

	if err := n.NotifyRevoked(context.Background(), domain.SessionState{SessionID: "s-1"}); err == nil {
		t.Fatal("NotifyRevoked() must surface the redis error")
	}
}

func TestManager_RedisSignalSentOncePerRevocation(t *testing.T) {
	ctx := context.Background()
	rec := &commandRecorder{}
	m := NewManager(NewRedisNotifier(newRecordingClient(t, rec)), zap.NewNop())
	s := domain.DefaultSettings()

	if _, err := m.Register(ctx, domain.SessionState{SessionID: "s1", UserEmail: "dba@corp", Role: "Database Admin"}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		m.RecordRisk(ctx, "s1", 100, s)
	}

	if got := len(rec.named("publish")); got != 1 {
		t.Errorf("revocation signals = %d, want 1", got)
	}
}

func TestManager_RedisFailureKeepsRevocation(t *testing.T) {
	ctx := context.Background()
	rec := &commandRecorder{err: errors.New("connection reset")}
	m := NewManager(NewRedisNotifier(newRecordingClient(t, rec)), zap.NewNop())
	s := domain.DefaultSettings()

	m.Register(ctx, domain.SessionState{SessionID: "s1", UserEmail: "dba@corp", Role: "Database Admin"})
	var out Outcome
	for i := 0; i < 3; i++ {
		out = m.RecordRisk(ctx, "s1", 100, s)
	}
	if !out.Revoked || !m.IsRevoked("s1") {
		t.Fatalf("revocation must stand when the signal fails, outcome = %+v", out)
	}
}
