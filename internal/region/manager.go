package region

import (
	"sort"
	"sync"

	"github.com/annel0/blockguard/internal/vec"
)

// Manager хранит регионы всех миров.
// Запросы выполняются при каждом событии и не кэшируются.
type Manager struct {
	mu     sync.RWMutex
	worlds map[string][]*Region // отсортированы по убыванию приоритета
}

// NewManager создаёт пустой менеджер регионов
func NewManager() *Manager {
	return &Manager{worlds: make(map[string][]*Region)}
}

// Replace заменяет набор регионов мира
func (m *Manager) Replace(world string, regions []*Region) {
	sorted := make([]*Region, len(regions))
	copy(sorted, regions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })

	m.mu.Lock()
	m.worlds[world] = sorted
	m.mu.Unlock()
}

// ReplaceAll заменяет регионы всех миров разом; миры без записи теряют регионы
func (m *Manager) ReplaceAll(worlds map[string][]*Region) {
	next := make(map[string][]*Region, len(worlds))
	for name, regions := range worlds {
		sorted := make([]*Region, len(regions))
		copy(sorted, regions)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })
		next[name] = sorted
	}

	m.mu.Lock()
	m.worlds = next
	m.mu.Unlock()
}

// Count возвращает число регионов мира
func (m *Manager) Count(world string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.worlds[world])
}

// Applicable возвращает регионы, содержащие позицию, по убыванию приоритета
func (m *Manager) Applicable(world string, pos vec.Vec3) []*Region {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Region
	for _, r := range m.worlds[world] {
		if r.Contains(pos) {
			out = append(out, r)
		}
	}
	return out
}

// Allows разрешает флаг в позиции. Решает регион с наибольшим приоритетом,
// в котором флаг задан; при равном приоритете запрет побеждает. Без значения флаг разрешён.
func (m *Manager) Allows(world string, flag Flag, pos vec.Vec3) (bool, error) {
	if _, ok := knownFlags[flag]; !ok {
		return false, ErrUnknownFlag
	}
	return resolve(m.Applicable(world, pos), flag) != Deny, nil
}

// CanBuild проверяет право строить: игрок должен состоять во всех регионах
// наивысшего приоритета либо флаг build должен быть явно разрешён.
func (m *Manager) CanBuild(actor, world string, pos vec.Vec3) (bool, error) {
	set := m.Applicable(world, pos)
	if len(set) == 0 {
		return true, nil
	}

	top := set[0].Priority
	member := true
	for _, r := range set {
		if r.Priority != top {
			break
		}
		if !r.IsMember(actor) {
			member = false
			break
		}
	}
	if member {
		return true, nil
	}
	return resolve(set, FlagBuild) == Allow, nil
}

func resolve(set []*Region, flag Flag) State {
	result := Unset
	level := 0
	for _, r := range set {
		if result != Unset && r.Priority < level {
			break
		}
		s, ok := r.Flags[flag]
		if !ok || s == Unset {
			continue
		}
		if result == Unset || s == Deny {
			result = s
			level = r.Priority
		}
	}
	return result
}
