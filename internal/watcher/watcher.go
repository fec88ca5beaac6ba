package watcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xela07ax/pamwatch/internal/domain"
	"github.com/xela07ax/pamwatch/internal/engine"
	"go.uber.org/zap"
)

// Forwarder доставляет разобранное событие в скоринг
type Forwarder interface {
	Forward(ctx context.Context, ev domain.LogEvent) error
}

// Stream — один отслеживаемый журнал
type Stream struct {
	Path string
	Kind domain.SourceStream
}

type cursor struct {
	Stream
	lines int // сколько строк уже обработано
	// На старте последняя строка была недописана: она принадлежит прошлому,
	// когда допишется, ее пропускаем.
	startedTail bool
}

// Watcher опрашивает журналы и отправляет только дописанные строки.
// Курсор считает строки, а не байты: файл перечитывается целиком.
type Watcher struct {
	cursors   []*cursor
	forwarder Forwarder
	interval  time.Duration
	lines     *prometheus.CounterVec
	logger    *zap.Logger
}

func New(streams []Stream, fwd Forwarder, interval time.Duration, metrics *engine.Metrics, logger *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if metrics == nil {
		metrics = engine.NewMetrics(nil)
	}
	cursors := make([]*cursor, 0, len(streams))
	for _, s := range streams {
		cursors = append(cursors, &cursor{Stream: s})
	}
	return &Watcher{
		cursors:   cursors,
		forwarder: fwd,
		interval:  interval,
		lines:     metrics.WatcherLines,
		logger:    logger.With(zap.String("mod", "watcher")),
	}
}

// Init ставит курсоры на текущий конец файлов: строки до старта не обрабатываются
func (w *Watcher) Init() error {
	for _, c := range w.cursors {
		lines, partial, err := readLines(c.Path)
		if err != nil {
			return fmt.Errorf("watcher: init %s: %w", c.Path, err)
		}
		c.lines = len(lines)
		c.startedTail = partial
		w.logger.Info("stream initialized",
			zap.String("path", c.Path),
			zap.String("stream", string(c.Kind)),
			zap.Int("existing_lines", c.lines),
			zap.Bool("started_tail", partial))
	}
	return nil
}

// Run опрашивает журналы с фиксированным интервалом до отмены ctx
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("multi-log watcher started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopping by context...")
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll делает один проход по всем журналам и возвращает число отправленных строк.
func (w *Watcher) Poll(ctx context.Context) int {
	forwarded := 0
	for _, c := range w.cursors {
		forwarded += w.pollStream(ctx, c)
	}
	return forwarded
}

func (w *Watcher) pollStream(ctx context.Context, c *cursor) int {
	lines, _, err := readLines(c.Path)
	if err != nil {
		w.logger.Error("failed to read stream", zap.String("path", c.Path), zap.Error(err))
		return 0
	}

	total := len(lines)
	switch {
	case total == c.lines:
		return 0
	case total < c.lines:
		// Ротация или усечение: точного восстановления нет, начинаем с нового конца
		w.logger.Warn("stream truncated, resetting cursor",
			zap.String("path", c.Path), zap.Int("was", c.lines), zap.Int("now", total))
		c.lines = total
		c.startedTail = false
		return 0
	}

	if c.startedTail {
		c.lines++
		c.startedTail = false
	}
	fresh := lines[c.lines:]
	// Курсор двигаем сразу после успешного чтения: доставка at-most-once
	c.lines = total

	forwarded := 0
	for _, line := range fresh {
		ev, err := ParseLine(c.Kind, line)
		if err != nil {
			w.lines.WithLabelValues(string(c.Kind), "malformed").Inc()
			w.logger.Debug("malformed line dropped", zap.String("path", c.Path), zap.Error(err))
			continue
		}

		w.logger.Info("new log line detected",
			zap.String("stream", string(c.Kind)),
			zap.String("event_type", ev.ActionType))

		fctx := engine.WithTraceID(ctx, uuid.New().String())
		if err := w.forwarder.Forward(fctx, ev); err != nil {
			// rejected: скоринг ответил ошибкой, failed: до него не достучались
			result := "failed"
			if IsStatusError(err) {
				result = "rejected"
			}
			w.lines.WithLabelValues(string(c.Kind), result).Inc()
			w.logger.Error("failed to forward event",
				zap.String("stream", string(c.Kind)),
				zap.String("event_type", ev.ActionType),
				zap.String("result", result),
				zap.Error(err))
			continue
		}
		w.lines.WithLabelValues(string(c.Kind), "forwarded").Inc()
		forwarded++
	}
	return forwarded
}

// readLines читает файл целиком построчно. Отсутствующий файл дает ноль строк.
// Недописанная последняя строка (без '\n') в lines не входит, о ней говорит partial.
func readLines(path string) (lines []string, partial bool, err error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		if errors.Is(err, io.EOF) {
			// хвост без перевода строки еще дописывается: заберем на следующем тике
			return lines, line != "", nil
		}
		if err != nil {
			return nil, false, err
		}
		lines = append(lines, line)
	}
}
