package store

import (
	"sort"

	"github.com/xela07ax/pamwatch/internal/domain"
)

// AlertLimit — сколько последних алертов отдает дашборд
const AlertLimit = 50

// EventStore хранит все оцененные события в порядке поступления.
// Запись идет по указателю: AlertStore ссылается на тот же объект.
type EventStore struct {
	ring *Ring[*domain.ScoredEvent]
}

func NewEventStore(capacity int) *EventStore {
	return &EventStore{ring: NewRing[*domain.ScoredEvent](capacity)}
}

// Append сохраняет событие. Событие не должно меняться после вызова.
func (s *EventStore) Append(ev *domain.ScoredEvent) (evicted bool) {
	return s.ring.Push(ev)
}

// Recent возвращает события по убыванию id, не более limit (-1: все удерживаемые)
func (s *EventStore) Recent(limit int) []domain.ScoredEvent {
	return newestFirst(s.ring.Snapshot(), limit)
}

func (s *EventStore) Len() int { return s.ring.Len() }

func (s *EventStore) Clear() { s.ring.Clear() }

// AlertStore — подмножество событий, перешедших порог medium на момент скоринга
type AlertStore struct {
	ring *Ring[*domain.ScoredEvent]
}

func NewAlertStore(capacity int) *AlertStore {
	return &AlertStore{ring: NewRing[*domain.ScoredEvent](capacity)}
}

// Offer кладет событие в алерты, если его балл >= medium.
// Порог передается на каждую вставку: он читается из текущих настроек.
func (s *AlertStore) Offer(ev *domain.ScoredEvent, medium int) bool {
	if ev.RiskScore < medium {
		return false
	}
	s.ring.Push(ev)
	return true
}

// Recent отдает последние AlertLimit алертов по убыванию id
func (s *AlertStore) Recent() []domain.ScoredEvent {
	return newestFirst(s.ring.Snapshot(), AlertLimit)
}

func (s *AlertStore) Len() int { return s.ring.Len() }

func (s *AlertStore) Clear() { s.ring.Clear() }

func newestFirst(items []*domain.ScoredEvent, limit int) []domain.ScoredEvent {
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })

	if limit >= 0 && len(items) > limit {
		items = items[:limit]
	}

	// Отдаем копии, чтобы читатель не держал ссылки на внутренние объекты
	out := make([]domain.ScoredEvent, len(items))
	for i, ev := range items {
		out[i] = *ev
	}
	return out
}
