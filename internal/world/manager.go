package world

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/annel0/blockguard/internal/logging"
)

// ErrWorldNotFound возвращается при обращении к незагруженному миру
var ErrWorldNotFound = errors.New("world not found")

// Saver сохраняет изменённые чанки мира в постоянное хранилище
type Saver interface {
	SaveGrid(world string, grid *MemoryGrid) error
}

// Manager управляет загруженными мирами и их периодическим сохранением
type Manager struct {
	grids        map[string]*MemoryGrid // Активные миры по имени
	mu           sync.RWMutex           // Мьютекс для карты миров
	saver        Saver                  // Хранилище (может быть nil)
	saveEvery    time.Duration          // Период автосохранения
	saveMu       sync.Mutex             // Мьютекс для операций сохранения
	lastSaveTime time.Time              // Время последнего сохранения
	ctx          context.Context        // Контекст для управления жизненным циклом
	cancelFunc   context.CancelFunc     // Функция отмены контекста
	done         chan struct{}
}

// NewManager создаёт менеджер миров без хранилища
func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		grids:        make(map[string]*MemoryGrid),
		saveEvery:    5 * time.Minute,
		lastSaveTime: time.Now(),
		ctx:          ctx,
		cancelFunc:   cancel,
	}
}

// SetSaver подключает хранилище и период автосохранения
func (m *Manager) SetSaver(saver Saver, every time.Duration) {
	m.saver = saver
	if every > 0 {
		m.saveEvery = every
	}
}

// Add регистрирует готовый мир (например, загруженный из хранилища)
func (m *Manager) Add(name string, grid *MemoryGrid) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grids[name] = grid
}

// Grid возвращает мир по имени
func (m *Manager) Grid(name string) (*MemoryGrid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	grid, ok := m.grids[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorldNotFound, name)
	}
	return grid, nil
}

// Lookup возвращает мир как Grid (для оракулов, которым нужен только интерфейс)
func (m *Manager) Lookup(name string) (Grid, error) {
	g, err := m.Grid(name)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// GetOrCreate возвращает мир, создавая пустой при необходимости
func (m *Manager) GetOrCreate(name string) *MemoryGrid {
	m.mu.Lock()
	defer m.mu.Unlock()

	grid, ok := m.grids[name]
	if !ok {
		grid = NewMemoryGrid()
		m.grids[name] = grid
	}
	return grid
}

// Worlds возвращает отсортированный список имён миров
func (m *Manager) Worlds() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.grids))
	for name := range m.grids {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run запускает автоматическое сохранение миров
func (m *Manager) Run(parentCtx context.Context) {
	// Если parentCtx != nil, создаем новый контекст отменяемый от него
	if parentCtx != nil {
		childCtx, cancel := context.WithCancel(parentCtx)
		m.ctx = childCtx
		m.cancelFunc = cancel
	}

	m.done = make(chan struct{})
	go m.autoSaveLoop()
}

// Stop останавливает автосохранение и выполняет финальное сохранение
func (m *Manager) Stop() error {
	m.cancelFunc()
	if m.done != nil {
		<-m.done
	}
	return m.SaveAll()
}

// autoSaveLoop запускает периодическое сохранение мира
func (m *Manager) autoSaveLoop() {
	defer close(m.done)

	ticker := time.NewTicker(m.saveEvery)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if err := m.SaveAll(); err != nil {
				logging.Error("Ошибка автосохранения миров: %v", err)
			}
		}
	}
}

// SaveAll сохраняет изменения всех миров
func (m *Manager) SaveAll() error {
	if m.saver == nil {
		return nil
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.mu.RLock()
	grids := make(map[string]*MemoryGrid, len(m.grids))
	for name, g := range m.grids {
		grids[name] = g
	}
	m.mu.RUnlock()

	var errs []error
	for name, g := range grids {
		if err := m.saver.SaveGrid(name, g); err != nil {
			errs = append(errs, fmt.Errorf("save %s: %w", name, err))
		}
	}

	m.lastSaveTime = time.Now()
	logging.Debug("Сохранено миров: %d", len(grids))
	return errors.Join(errs...)
}

// LastSaveTime возвращает время последнего сохранения
func (m *Manager) LastSaveTime() time.Time {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()
	return m.lastSaveTime
}
