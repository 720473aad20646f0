package policy

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Toggles содержит значения административных переключателей, прочитанные один раз на событие
type Toggles struct {
	ActivityHalt     bool `json:"activity_halt"`      // Остановка всех природных процессов
	FireSpreadHalted bool `json:"fire_spread_halted"` // Временный запрет распространения огня в мире события
}

// State представляет сериализуемое состояние переключателей
type State struct {
	ActivityHalt     bool     `json:"activity_halt"`
	FireSpreadHalted []string `json:"fire_spread_halted,omitempty"`
}

// GlobalState хранит административные переключатели процесса.
// Может изменяться параллельно с обработкой событий.
type GlobalState struct {
	halt     atomic.Bool
	fire     atomic.Pointer[map[string]struct{}]
	fireMu   sync.Mutex // сериализует копирование карты при записи
	onChange func(State)
}

// NewGlobalState создаёт состояние со всеми выключенными переключателями
func NewGlobalState() *GlobalState {
	gs := &GlobalState{}
	empty := make(map[string]struct{})
	gs.fire.Store(&empty)
	return gs
}

// OnChange регистрирует обработчик изменения состояния (например, для сохранения)
func (gs *GlobalState) OnChange(fn func(State)) {
	gs.onChange = fn
}

// Snapshot читает переключатели для мира ровно один раз
func (gs *GlobalState) Snapshot(world string) Toggles {
	_, fire := (*gs.fire.Load())[world]
	return Toggles{
		ActivityHalt:     gs.halt.Load(),
		FireSpreadHalted: fire,
	}
}

// ActivityHalt возвращает текущее значение глобальной остановки
func (gs *GlobalState) ActivityHalt() bool {
	return gs.halt.Load()
}

// SetActivityHalt включает или выключает глобальную остановку
func (gs *GlobalState) SetActivityHalt(on bool) {
	if gs.halt.Swap(on) != on {
		gs.notify()
	}
}

// SetFireSpreadHalted включает или выключает запрет огня в мире
func (gs *GlobalState) SetFireSpreadHalted(world string, on bool) {
	gs.fireMu.Lock()
	cur := *gs.fire.Load()
	_, was := cur[world]
	if was == on {
		gs.fireMu.Unlock()
		return
	}
	next := make(map[string]struct{}, len(cur)+1)
	for w := range cur {
		next[w] = struct{}{}
	}
	if on {
		next[world] = struct{}{}
	} else {
		delete(next, world)
	}
	gs.fire.Store(&next)
	gs.fireMu.Unlock()

	gs.notify()
}

// Export возвращает сериализуемое состояние
func (gs *GlobalState) Export() State {
	worlds := make([]string, 0)
	for w := range *gs.fire.Load() {
		worlds = append(worlds, w)
	}
	sort.Strings(worlds)
	return State{
		ActivityHalt:     gs.halt.Load(),
		FireSpreadHalted: worlds,
	}
}

// Restore применяет состояние без вызова обработчика изменений
func (gs *GlobalState) Restore(s State) {
	next := make(map[string]struct{}, len(s.FireSpreadHalted))
	for _, w := range s.FireSpreadHalted {
		next[w] = struct{}{}
	}
	gs.fireMu.Lock()
	gs.fire.Store(&next)
	gs.fireMu.Unlock()
	gs.halt.Store(s.ActivityHalt)
}

func (gs *GlobalState) notify() {
	if gs.onChange != nil {
		gs.onChange(gs.Export())
	}
}
