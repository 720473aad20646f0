package api

import (
	"fmt"
	"sort"
	"sync"

	"github.com/annel0/blockguard/internal/blacklist"
	"github.com/annel0/blockguard/internal/config"
	"github.com/annel0/blockguard/internal/logging"
	"github.com/annel0/blockguard/internal/policy"
	"github.com/annel0/blockguard/internal/region"
	"github.com/annel0/blockguard/internal/world"
)

// ReloadResult описывает применённую конфигурацию
type ReloadResult struct {
	Worlds     []string       `json:"worlds"`
	Regions    map[string]int `json:"regions"`
	Blacklists []string       `json:"blacklists"`
}

// Reloader перечитывает файл конфигурации и подменяет правила мира целиком.
// Ошибка в любом мире оставляет прежние правила без изменений.
// Для новых миров создаются сетки; сетки удалённых миров сохраняются.
type Reloader struct {
	mu         sync.Mutex
	path       string
	policies   *policy.Registry
	regions    *region.Manager
	blacklists *blacklist.Set
	worlds     *world.Manager
	logger     *logging.Logger
}

// NewReloader создаёт перезагрузчик правил; worlds может быть nil
func NewReloader(path string, policies *policy.Registry, regions *region.Manager, blacklists *blacklist.Set, worlds *world.Manager) *Reloader {
	return &Reloader{
		path:       path,
		policies:   policies,
		regions:    regions,
		blacklists: blacklists,
		worlds:     worlds,
		logger:     logging.GetServerLogger(),
	}
}

// Reload читает конфигурацию заново и применяет её правила
func (r *Reloader) Reload() (*ReloadResult, error) {
	cfg, err := config.Load(r.path)
	if err != nil {
		return nil, err
	}
	rules, err := cfg.Rules()
	if err != nil {
		return nil, fmt.Errorf("build rules: %w", err)
	}
	return r.Apply(rules)
}

// Apply публикует правила. Политики проверяются первыми: при ошибке
// регионы и чёрные списки не трогаются.
func (r *Reloader) Apply(rules *config.Rules) (*ReloadResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.policies.Replace(rules.Policies); err != nil {
		return nil, fmt.Errorf("replace policies: %w", err)
	}
	r.regions.ReplaceAll(rules.Regions)
	r.blacklists.Replace(rules.Blacklists)
	if r.worlds != nil {
		for name := range rules.Policies {
			r.worlds.GetOrCreate(name)
		}
	}

	res := &ReloadResult{
		Worlds:     make([]string, 0, len(rules.Policies)),
		Regions:    make(map[string]int, len(rules.Regions)),
		Blacklists: make([]string, 0, len(rules.Blacklists)),
	}
	for name := range rules.Policies {
		res.Worlds = append(res.Worlds, name)
	}
	for name, regions := range rules.Regions {
		res.Regions[name] = len(regions)
	}
	for name := range rules.Blacklists {
		res.Blacklists = append(res.Blacklists, name)
	}
	sort.Strings(res.Worlds)
	sort.Strings(res.Blacklists)

	r.logger.Info("🔄 Правила применены: миров=%d, чёрных списков=%d", len(res.Worlds), len(res.Blacklists))
	return res, nil
}
