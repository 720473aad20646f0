// Package replay хранит последние записи аудита запретов для административного API.
package replay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/annel0/blockguard/internal/eventbus"
	"github.com/annel0/blockguard/internal/guard"
)

// DefaultCapacity задаёт размер журнала по умолчанию
const DefaultCapacity = 1024

// Record представляет запись аудита с метаданными конверта
type Record struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	guard.VetoRecord
}

// Query определяет фильтр выборки. Пустые поля не ограничивают выборку.
type Query struct {
	World    string     `form:"world"`
	Category string     `form:"category"`
	Check    string     `form:"check"`
	Actor    string     `form:"actor"`
	Since    *time.Time `form:"since" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit    int        `form:"limit"`
}

func (q Query) match(r *Record) bool {
	switch {
	case q.World != "" && r.World != q.World:
		return false
	case q.Category != "" && string(r.Category) != q.Category:
		return false
	case q.Check != "" && r.Check != q.Check:
		return false
	case q.Actor != "" && r.Actor != q.Actor:
		return false
	case q.Since != nil && r.Timestamp.Before(*q.Since):
		return false
	}
	return true
}

// Stats содержит агрегаты по выборке
type Stats struct {
	Total      int            `json:"total"`
	ByCategory map[string]int `json:"by_category"`
	ByCheck    map[string]int `json:"by_check"`
	ByWorld    map[string]int `json:"by_world"`
}

// Store хранит последние запреты в кольцевом буфере
type Store struct {
	mu      sync.RWMutex
	records []Record
	next    int
	full    bool
	total   uint64
}

// NewStore создаёт журнал на capacity записей
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{records: make([]Record, capacity)}
}

// Add добавляет запись, вытесняя самую старую
func (s *Store) Add(r Record) {
	s.mu.Lock()
	s.records[s.next] = r
	s.next = (s.next + 1) % len(s.records)
	if s.next == 0 {
		s.full = true
	}
	s.total++
	s.mu.Unlock()
}

// Len возвращает число хранимых записей
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.full {
		return len(s.records)
	}
	return s.next
}

// Total возвращает число записей за всё время
func (s *Store) Total() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// each обходит записи от новых к старым, пока fn возвращает true
func (s *Store) each(fn func(r *Record) bool) {
	n := s.next
	if s.full {
		n = len(s.records)
	}
	for i := 1; i <= n; i++ {
		idx := (s.next - i + len(s.records)) % len(s.records)
		if !fn(&s.records[idx]) {
			return
		}
	}
}

// Query возвращает записи, подходящие под фильтр, от новых к старым
func (s *Store) Query(q Query) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0)
	s.each(func(r *Record) bool {
		if q.match(r) {
			out = append(out, *r)
		}
		return q.Limit <= 0 || len(out) < q.Limit
	})
	return out
}

// Stats считает агрегаты по записям под фильтром (Limit не учитывается)
func (s *Store) Stats(q Query) Stats {
	st := Stats{
		ByCategory: make(map[string]int),
		ByCheck:    make(map[string]int),
		ByWorld:    make(map[string]int),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	s.each(func(r *Record) bool {
		if q.match(r) {
			st.Total++
			st.ByCategory[string(r.Category)]++
			st.ByCheck[r.Check]++
			st.ByWorld[r.World]++
		}
		return true
	})
	return st
}

// Attach подписывает журнал на записи Veto шины событий
func (s *Store) Attach(ctx context.Context, bus eventbus.EventBus) (eventbus.Subscription, error) {
	sub, err := bus.Subscribe(ctx, eventbus.Filter{Types: []string{eventbus.TypeVeto}}, func(_ context.Context, ev *eventbus.Envelope) {
		var rec guard.VetoRecord
		if err := ev.Decode(&rec); err != nil {
			return
		}
		s.Add(Record{EventID: ev.ID, Timestamp: ev.Timestamp, VetoRecord: rec})
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe veto log: %w", err)
	}
	return sub, nil
}
