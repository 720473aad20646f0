// Package blacklist реализует запреты по типу блока и виду действия для каждого мира.
package blacklist

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/annel0/blockguard/internal/logging"
	"github.com/annel0/blockguard/internal/vec"
	"github.com/annel0/blockguard/internal/world/block"
)

// Kind определяет вид проверяемого действия
type Kind string

const (
	KindBreak       Kind = "break"
	KindPlace       Kind = "place"
	KindDestroyWith Kind = "destroy-with"
)

// ErrUnknownKind возвращается для неизвестного вида действия
var ErrUnknownKind = errors.New("unknown blacklist kind")

// ParseKind разбирает вид действия
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindBreak, KindPlace, KindDestroyWith:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Event представляет запрос к чёрному списку
type Event struct {
	Actor  string
	World  string
	Pos    vec.Vec3
	TypeID block.ID // Блок (break/place) или предмет в руке (destroy-with)
	Kind   Kind
}

// Rule запрещает действия одного вида над набором типов
type Rule struct {
	Kind   Kind
	IDs    []block.ID
	Ignore []string // Игроки, на которых правило не распространяется
	Log    bool     // Писать нарушения в лог
}

// List представляет чёрный список одного мира
type List struct {
	rules map[Kind]map[block.ID][]*Rule
	hits  atomic.Uint64
}

// NewList строит список из правил
func NewList(rules []Rule) (*List, error) {
	l := &List{rules: make(map[Kind]map[block.ID][]*Rule)}
	for i := range rules {
		r := rules[i]
		if _, err := ParseKind(string(r.Kind)); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		byID, ok := l.rules[r.Kind]
		if !ok {
			byID = make(map[block.ID][]*Rule)
			l.rules[r.Kind] = byID
		}
		for _, id := range r.IDs {
			byID[id] = append(byID[id], &r)
		}
	}
	return l, nil
}

// Check возвращает false, если действие запрещено
func (l *List) Check(ev Event) (bool, error) {
	byID, ok := l.rules[ev.Kind]
	if !ok {
		if _, err := ParseKind(string(ev.Kind)); err != nil {
			return true, err
		}
		return true, nil
	}
	for _, r := range byID[ev.TypeID] {
		if containsFold(r.Ignore, ev.Actor) {
			continue
		}
		l.hits.Add(1)
		if r.Log {
			logging.GetComponentLogger("guard").Info("blacklist: %s %s %s at %s in %s",
				ev.Actor, ev.Kind, ev.TypeID, ev.Pos, ev.World)
		}
		return false, nil
	}
	return true, nil
}

// Hits возвращает число сработавших запретов
func (l *List) Hits() uint64 {
	return l.hits.Load()
}

// Set хранит чёрные списки миров
type Set struct {
	mu    sync.RWMutex
	lists map[string]*List
}

// NewSet создаёт пустой набор
func NewSet() *Set {
	return &Set{lists: make(map[string]*List)}
}

// For возвращает список мира; false, если у мира нет чёрного списка
func (s *Set) For(world string) (*List, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lists[world]
	return l, ok
}

// Replace заменяет все списки
func (s *Set) Replace(lists map[string]*List) {
	next := make(map[string]*List, len(lists))
	for w, l := range lists {
		if l != nil {
			next[w] = l
		}
	}
	s.mu.Lock()
	s.lists = next
	s.mu.Unlock()
}

func containsFold(list []string, name string) bool {
	for _, v := range list {
		if strings.EqualFold(v, name) {
			return true
		}
	}
	return false
}
