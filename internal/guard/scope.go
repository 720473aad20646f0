package guard

import (
	"github.com/annel0/blockguard/internal/blacklist"
	"github.com/annel0/blockguard/internal/policy"
	"github.com/annel0/blockguard/internal/region"
	"github.com/annel0/blockguard/internal/sponge"
	"github.com/annel0/blockguard/internal/vec"
	"github.com/annel0/blockguard/internal/world"
	"github.com/annel0/blockguard/internal/world/block"
)

// Scope содержит контекст проверки одного события: снимок политики мира,
// однократно прочитанные переключатели и доступ к оракулам.
type Scope struct {
	World   *policy.World
	Toggles policy.Toggles
	Grid    world.Grid // nil, если мир не отслеживается

	name    string
	actor   *Actor
	p       *Pipeline
	notices []string
}

// Notify добавляет сообщение игроку, не связанное с запретом
func (s *Scope) Notify(text string) {
	s.notices = append(s.notices, text)
}

// Block возвращает блок из сетки мира; Air, если мир не отслеживается
func (s *Scope) Block(pos vec.Vec3) block.ID {
	if s.Grid == nil {
		return block.Air
	}
	return s.Grid.Block(pos)
}

// HostBlock возвращает блок, переданный хостом в событии, а без него блок из сетки
func (s *Scope) HostBlock(host *block.ID, pos vec.Vec3) block.ID {
	if host != nil {
		return *host
	}
	return s.Block(pos)
}

// regionDenies сообщает, что флаг запрещён в позиции.
// При выключенных регионах и при ошибке оракула проверка проходит.
func (s *Scope) regionDenies(flag region.Flag, pos vec.Vec3) bool {
	if !s.World.UseRegions {
		return false
	}
	ok, err := s.p.regions.Allows(s.name, flag, pos)
	if err != nil {
		s.p.oracleFailed("region", err)
		return false
	}
	return !ok
}

// cannotBuild сообщает, что игрок не может строить в позиции
func (s *Scope) cannotBuild(pos vec.Vec3) bool {
	if !s.World.UseRegions {
		return false
	}
	ok, err := s.p.regions.CanBuild(s.actor, s.name, pos)
	if err != nil {
		s.p.oracleFailed("region", err)
		return false
	}
	return !ok
}

// hasBypass сообщает, что игрок обходит регионы мира
func (s *Scope) hasBypass() bool {
	return s.p.regions.HasBypass(s.actor, s.name)
}

// hasPermission проверяет право игрока
func (s *Scope) hasPermission(perm string) bool {
	return s.p.perms.Has(s.actor, perm)
}

// blacklistDenies проверяет действие по чёрному списку мира, если он есть
func (s *Scope) blacklistDenies(kind blacklist.Kind, pos vec.Vec3, id block.ID) bool {
	list, ok := s.p.blacklists.For(s.name)
	if !ok || list == nil {
		return false
	}
	allowed, err := list.Check(blacklist.Event{
		Actor:  s.actor.DisplayName(),
		World:  s.name,
		Pos:    pos,
		TypeID: id,
		Kind:   kind,
	})
	if err != nil {
		s.p.oracleFailed("blacklist", err)
		return false
	}
	return !allowed
}

// chestQuery выполняет запрос к защите сундуков; ошибка означает «не защищено»
func (s *Scope) chestQuery(q func(world string, pos vec.Vec3, actor string) (bool, error), pos vec.Vec3, actor string) bool {
	ok, err := q(s.name, pos, actor)
	if err != nil {
		s.p.oracleFailed("chest", err)
		return false
	}
	return ok
}

// spongeSettings возвращает параметры губки мира
func (s *Scope) spongeSettings() sponge.Settings {
	return sponge.Settings{Radius: s.World.SpongeRadius, Redstone: s.World.RedstoneSponges}
}
