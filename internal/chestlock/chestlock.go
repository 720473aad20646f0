// Package chestlock защищает сундуки табличкой [Lock], стоящей под сундуком.
package chestlock

import (
	"strings"

	"github.com/annel0/blockguard/internal/vec"
	"github.com/annel0/blockguard/internal/world"
	"github.com/annel0/blockguard/internal/world/block"
)

// LockTag задаёт первую строку таблички замка
const LockTag = "[Lock]"

// Worlds предоставляет сетку блоков по имени мира
type Worlds interface {
	Lookup(world string) (world.Grid, error)
}

// Protection защищает сундуки табличками
type Protection struct {
	worlds Worlds
}

// New создаёт защиту поверх набора миров
func New(worlds Worlds) *Protection {
	return &Protection{worlds: worlds}
}

// IsChest сообщает, защищается ли тип блока
func (p *Protection) IsChest(id block.ID) bool {
	return id == block.Chest
}

// IsLockLine сообщает, является ли строка меткой замка
func IsLockLine(line string) bool {
	return strings.EqualFold(strings.TrimSpace(line), LockTag)
}

// IsProtected сообщает, защищён ли блок от игрока. Пустой actor означает
// «кто угодно» (огонь, взрыв): любая защита срабатывает.
func (p *Protection) IsProtected(worldName string, pos vec.Vec3, actor string) (bool, error) {
	g, err := p.worlds.Lookup(worldName)
	if err != nil {
		return false, err
	}

	switch id := g.Block(pos); {
	case p.IsChest(id):
		return p.chestProtected(g, pos, actor), nil
	case id == block.SignPost:
		return signDenies(g, pos, actor), nil
	default:
		// Опора таблички тоже защищена
		return signDenies(g, pos.Above(), actor), nil
	}
}

// IsAdjacentProtected сообщает, что рядом по горизонтали стоит чужой защищённый сундук
func (p *Protection) IsAdjacentProtected(worldName string, pos vec.Vec3, actor string) (bool, error) {
	g, err := p.worlds.Lookup(worldName)
	if err != nil {
		return false, err
	}
	for _, n := range pos.Horizontal() {
		if p.IsChest(g.Block(n)) && p.chestProtected(g, n, actor) {
			return true, nil
		}
	}
	return false, nil
}

// IsPlacementProtected сообщает, что табличка замка в pos попала бы под чужой сундук
func (p *Protection) IsPlacementProtected(worldName string, pos vec.Vec3, actor string) (bool, error) {
	g, err := p.worlds.Lookup(worldName)
	if err != nil {
		return false, err
	}
	above := pos.Above()
	if !p.IsChest(g.Block(above)) {
		return false, nil
	}
	return p.chestProtected(g, above, actor), nil
}

// chestProtected проверяет сундук и соседние половины двойного сундука
func (p *Protection) chestProtected(g world.Grid, pos vec.Vec3, actor string) bool {
	if signDenies(g, pos.Below(), actor) {
		return true
	}
	for _, n := range pos.Horizontal() {
		if p.IsChest(g.Block(n)) && signDenies(g, n.Below(), actor) {
			return true
		}
	}
	return false
}

// signDenies сообщает, что в pos стоит табличка замка, в которой нет actor
func signDenies(g world.Grid, pos vec.Vec3, actor string) bool {
	owners, ok := lockOwners(g, pos)
	if !ok {
		return false
	}
	if actor == "" {
		return true
	}
	for _, o := range owners {
		if strings.EqualFold(o, actor) {
			return false
		}
	}
	return true
}

func lockOwners(g world.Grid, pos vec.Vec3) ([]string, bool) {
	if g.Block(pos) != block.SignPost {
		return nil, false
	}
	lines, ok := g.SignLines(pos)
	if !ok || !IsLockLine(lines[0]) {
		return nil, false
	}
	owners := make([]string, 0, 3)
	for _, l := range lines[1:] {
		if l = strings.TrimSpace(l); l != "" {
			owners = append(owners, l)
		}
	}
	return owners, true
}
