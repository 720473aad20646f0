// Package statestore сохраняет административные переключатели и
// распространяет их изменения между экземплярами сервиса.
package statestore

import (
	"context"
	"sync"

	"github.com/annel0/blockguard/internal/logging"
	"github.com/annel0/blockguard/internal/policy"
)

// ToggleStore хранит состояние переключателей
type ToggleStore interface {
	// Load возвращает сохранённое состояние; false, если его ещё нет
	Load(ctx context.Context) (policy.State, bool, error)
	// Save сохраняет состояние и оповещает остальных подписчиков
	Save(ctx context.Context, s policy.State) error
	// Watch вызывает fn для изменений, сделанных другими экземплярами, до отмены ctx
	Watch(ctx context.Context, fn func(policy.State)) error
	Close() error
}

// MemoryStore хранит переключатели в памяти процесса.
// Подписчики получают все сохранения, включая собственные.
type MemoryStore struct {
	mu       sync.Mutex
	state    policy.State
	saved    bool
	watchers map[int]func(policy.State)
	nextID   int
}

// NewMemoryStore создаёт пустое хранилище
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{watchers: make(map[int]func(policy.State))}
}

func (m *MemoryStore) Load(context.Context) (policy.State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.saved, nil
}

func (m *MemoryStore) Save(_ context.Context, s policy.State) error {
	m.mu.Lock()
	m.state = s
	m.saved = true
	watchers := make([]func(policy.State), 0, len(m.watchers))
	for _, fn := range m.watchers {
		watchers = append(watchers, fn)
	}
	m.mu.Unlock()

	for _, fn := range watchers {
		fn(s)
	}
	return nil
}

// Publish имитирует изменение, сделанное другим экземпляром
func (m *MemoryStore) Publish(s policy.State) error {
	return m.Save(context.Background(), s)
}

func (m *MemoryStore) Watch(ctx context.Context, fn func(policy.State)) error {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = fn
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}()
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// Bind связывает переключатели процесса с хранилищем: восстанавливает
// сохранённое состояние, сохраняет локальные изменения и применяет чужие.
func Bind(ctx context.Context, store ToggleStore, gs *policy.GlobalState) error {
	logger := logging.GetStateLogger()

	s, ok, err := store.Load(ctx)
	if err != nil {
		return err
	}
	if ok {
		gs.Restore(s)
		logger.Info("toggles restored: halt=%v fire=%v", s.ActivityHalt, s.FireSpreadHalted)
	}

	gs.OnChange(func(s policy.State) {
		if err := store.Save(ctx, s); err != nil {
			logger.Error("save toggles: %v", err)
		}
	})

	return store.Watch(ctx, func(s policy.State) {
		gs.Restore(s)
		logger.Debug("toggles updated remotely: halt=%v fire=%v", s.ActivityHalt, s.FireSpreadHalted)
	})
}
