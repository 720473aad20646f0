package policy

import (
	"fmt"
	"sort"
	"sync/atomic"
)

// Registry хранит снимки конфигурации миров.
// Перезагрузка подменяет всю карту целиком, читатели всегда видят согласованный снимок.
type Registry struct {
	worlds atomic.Pointer[map[string]*World]
}

// NewRegistry создаёт пустой реестр
func NewRegistry() *Registry {
	r := &Registry{}
	empty := make(map[string]*World)
	r.worlds.Store(&empty)
	return r
}

// Get возвращает снимок мира. Для неизвестного мира возвращаются значения по умолчанию.
func (r *Registry) Get(world string) *World {
	if w, ok := (*r.worlds.Load())[world]; ok {
		return w
	}
	return Defaults(world)
}

// Lookup возвращает снимок, только если мир настроен
func (r *Registry) Lookup(world string) (*World, bool) {
	w, ok := (*r.worlds.Load())[world]
	return w, ok
}

// Replace валидирует и атомарно публикует новый набор снимков
func (r *Registry) Replace(worlds map[string]*World) error {
	next := make(map[string]*World, len(worlds))
	for name, w := range worlds {
		if w == nil {
			continue
		}
		if err := w.Validate(); err != nil {
			return fmt.Errorf("world %s: %w", name, err)
		}
		cp := *w
		cp.Name = name
		cp.PreventWaterDamage = w.PreventWaterDamage.Clone()
		cp.AllowedLavaSpreadOver = w.AllowedLavaSpreadOver.Clone()
		cp.DisableFireSpreadBlocks = w.DisableFireSpreadBlocks.Clone()
		next[name] = &cp
	}
	r.worlds.Store(&next)
	return nil
}

// Worlds возвращает отсортированные имена настроенных миров
func (r *Registry) Worlds() []string {
	m := *r.worlds.Load()
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
