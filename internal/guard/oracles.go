package guard

import (
	"strings"
	"sync"

	"github.com/annel0/blockguard/internal/blacklist"
	"github.com/annel0/blockguard/internal/region"
	"github.com/annel0/blockguard/internal/vec"
	"github.com/annel0/blockguard/internal/world"
	"github.com/annel0/blockguard/internal/world/block"
)

// Права, проверяемые конвейером
const (
	PermOverrideLighter = "worldguard.override.lighter"
	PermOverrideChest   = "worldguard.override.chest-protection"
	PermRegionBypass    = "worldguard.region.bypass"
)

// RegionPolicy отвечает на вопросы о правах в регионах
type RegionPolicy interface {
	Allows(world string, flag region.Flag, pos vec.Vec3) (bool, error)
	CanBuild(actor *Actor, world string, pos vec.Vec3) (bool, error)
	HasBypass(actor *Actor, world string) bool
}

// Blacklist проверяет действие; false означает запрет
type Blacklist interface {
	Check(ev blacklist.Event) (bool, error)
}

// Blacklists выдаёт чёрный список мира; false, если его нет
type Blacklists interface {
	For(world string) (Blacklist, bool)
}

// ChestProtection отвечает на вопросы о защищённых сундуках.
// Пустой actor означает «кто угодно».
type ChestProtection interface {
	IsProtected(world string, pos vec.Vec3, actor string) (bool, error)
	IsAdjacentProtected(world string, pos vec.Vec3, actor string) (bool, error)
	IsPlacementProtected(world string, pos vec.Vec3, actor string) (bool, error)
	IsChest(id block.ID) bool
}

// Permissions проверяет права игрока
type Permissions interface {
	Has(actor *Actor, perm string) bool
}

// Messenger доставляет сообщения игроку. Ошибки доставки игнорируются.
type Messenger interface {
	Notify(actor *Actor, text string) error
}

// GridSource выдаёт сетку блоков мира
type GridSource interface {
	Lookup(world string) (world.Grid, error)
}

// ActorPermissions проверяет права по списку, переданному вместе с игроком.
// Поддерживаются "*" и префиксы вида "worldguard.override.*".
type ActorPermissions struct{}

func (ActorPermissions) Has(actor *Actor, perm string) bool {
	if actor == nil {
		return false
	}
	for _, p := range actor.Permissions {
		if p == "*" || p == perm {
			return true
		}
		if prefix, ok := strings.CutSuffix(p, ".*"); ok && strings.HasPrefix(perm, prefix+".") {
			return true
		}
	}
	return false
}

// regionAdapter связывает region.Manager с интерфейсом RegionPolicy
type regionAdapter struct {
	regions *region.Manager
	perms   Permissions
}

// NewRegionPolicy оборачивает менеджер регионов. Обход регионов даёт право
// worldguard.region.bypass.<world>.
func NewRegionPolicy(regions *region.Manager, perms Permissions) RegionPolicy {
	if perms == nil {
		perms = ActorPermissions{}
	}
	return &regionAdapter{regions: regions, perms: perms}
}

func (a *regionAdapter) Allows(worldName string, flag region.Flag, pos vec.Vec3) (bool, error) {
	return a.regions.Allows(worldName, flag, pos)
}

func (a *regionAdapter) CanBuild(actor *Actor, worldName string, pos vec.Vec3) (bool, error) {
	if a.HasBypass(actor, worldName) {
		return true, nil
	}
	return a.regions.CanBuild(actor.DisplayName(), worldName, pos)
}

func (a *regionAdapter) HasBypass(actor *Actor, worldName string) bool {
	return a.perms.Has(actor, PermRegionBypass+"."+worldName)
}

// blacklistSet связывает blacklist.Set с интерфейсом Blacklists
type blacklistSet struct {
	set *blacklist.Set
}

// NewBlacklists оборачивает набор чёрных списков
func NewBlacklists(set *blacklist.Set) Blacklists {
	return blacklistSet{set: set}
}

func (b blacklistSet) For(worldName string) (Blacklist, bool) {
	l, ok := b.set.For(worldName)
	if !ok {
		return nil, false
	}
	return l, true
}

// NopMessenger отбрасывает сообщения
type NopMessenger struct{}

func (NopMessenger) Notify(*Actor, string) error { return nil }

// Collector собирает сообщения для последующей доставки хостом
type Collector struct {
	mu       sync.Mutex
	messages []string
}

func (c *Collector) Notify(_ *Actor, text string) error {
	c.mu.Lock()
	c.messages = append(c.messages, text)
	c.mu.Unlock()
	return nil
}

// Messages возвращает собранные сообщения
func (c *Collector) Messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.messages))
	copy(out, c.messages)
	return out
}

// allowAll разрешает всё в мирах без регионов
type allowAll struct{}

func (allowAll) Allows(string, region.Flag, vec.Vec3) (bool, error) { return true, nil }
func (allowAll) CanBuild(*Actor, string, vec.Vec3) (bool, error)    { return true, nil }
func (allowAll) HasBypass(*Actor, string) bool                      { return false }

// noBlacklists используется, когда чёрные списки не заданы
type noBlacklists struct{}

func (noBlacklists) For(string) (Blacklist, bool) { return nil, false }

// noChests используется без защиты сундуков
type noChests struct{}

func (noChests) IsProtected(string, vec.Vec3, string) (bool, error)          { return false, nil }
func (noChests) IsAdjacentProtected(string, vec.Vec3, string) (bool, error)  { return false, nil }
func (noChests) IsPlacementProtected(string, vec.Vec3, string) (bool, error) { return false, nil }
func (noChests) IsChest(id block.ID) bool                                    { return id == block.Chest }
