// Package sponge моделирует поглощение жидкостей губкой: очистку куба вокруг губки,
// восстановление жидкостей по границе и подавление течения.
package sponge

import (
	"github.com/annel0/blockguard/internal/logging"
	"github.com/annel0/blockguard/internal/vec"
	"github.com/annel0/blockguard/internal/world"
	"github.com/annel0/blockguard/internal/world/block"
)

// Settings содержит параметры мира, влияющие на губки
type Settings struct {
	Radius   int  // Радиус куба поглощения
	Redstone bool // Запитанная губка неактивна
}

// Simulator выполняет операции губки над сеткой блоков.
// Не хранит состояния между вызовами.
type Simulator struct {
	logger *logging.Logger

	// OnChange вызывается с числом изменённых клеток после каждой операции (метрики)
	OnChange func(op string, cells int)
}

// NewSimulator создаёт симулятор с логгером компонента sponge
func NewSimulator() *Simulator {
	return &Simulator{logger: logging.GetSpongeLogger()}
}

// Clear превращает каждую клетку воды или лавы в замкнутом кубе радиуса r вокруг центра в воздух.
// Повторный вызов ничего не меняет. Возвращает число изменённых клеток.
func (s *Simulator) Clear(g world.Grid, center vec.Vec3, r int) int {
	if r < 0 {
		return 0
	}
	changed := 0
	center.CubeRange(r, func(p vec.Vec3) bool {
		if block.IsFluid(g.Block(p)) {
			g.SetBlock(p, block.Air)
			changed++
		}
		return true
	})
	s.report("clear", center, changed)
	return changed
}

// Restore возвращает жидкость на один шаг внутрь куба от каждой клетки жидкости,
// лежащей на оболочке на расстоянии r+1. Сначала вода, затем лава; заполняется только воздух.
func (s *Simulator) Restore(g world.Grid, center vec.Vec3, r int) int {
	if r < 0 {
		return 0
	}
	changed := s.restorePass(g, center, r, block.IsWater, block.Water)
	changed += s.restorePass(g, center, r, block.IsLava, block.Lava)
	s.report("restore", center, changed)
	return changed
}

// restorePass обходит грани −x, +x, −y, +y, −z, +z в фиксированном порядке
func (s *Simulator) restorePass(g world.Grid, center vec.Vec3, r int, match func(block.ID) bool, flowing block.ID) int {
	d := r + 1
	changed := 0
	for _, normal := range vec.Faces {
		facePlane(center, normal, d, func(p vec.Vec3) {
			if !match(g.Block(p)) {
				return
			}
			target := p.Sub(normal)
			if g.Block(target) == block.Air {
				g.SetBlock(target, flowing)
				changed++
			}
		})
	}
	return changed
}

// facePlane обходит полную грань куба радиуса d с нормалью normal, включая рёбра и углы
func facePlane(center, normal vec.Vec3, d int, fn func(p vec.Vec3)) {
	base := center.Add(vec.Vec3{X: normal.X * d, Y: normal.Y * d, Z: normal.Z * d})
	for a := -d; a <= d; a++ {
		for b := -d; b <= d; b++ {
			var p vec.Vec3
			switch {
			case normal.X != 0:
				p = base.Offset(0, a, b)
			case normal.Y != 0:
				p = base.Offset(a, 0, b)
			default:
				p = base.Offset(a, b, 0)
			}
			fn(p)
		}
	}
}

// IsActive сообщает, поглощает ли губка в позиции жидкость при данных настройках
func IsActive(g world.Grid, pos vec.Vec3, set Settings) bool {
	return !set.Redstone || !g.IsPowered(pos)
}

// Absorbs сообщает, есть ли активная губка в кубе радиуса Radius вокруг позиции
func (s *Simulator) Absorbs(g world.Grid, pos vec.Vec3, set Settings) bool {
	if set.Radius < 0 {
		return false
	}
	found := false
	pos.CubeRange(set.Radius, func(p vec.Vec3) bool {
		if g.Block(p) == block.Sponge && IsActive(g, p, set) {
			found = true
			return false
		}
		return true
	})
	return found
}

// OnPlace обрабатывает установку губки: активная губка очищает куб
func (s *Simulator) OnPlace(g world.Grid, pos vec.Vec3, set Settings) int {
	if set.Redstone && g.IsPowered(pos) {
		return 0
	}
	return s.Clear(g, pos, set.Radius)
}

// OnRedstone пересчитывает каждую губку в кубе 3×3×3 вокруг изменившегося сигнала:
// запитанная губка очищает свой куб, незапитанная восстанавливает жидкость вокруг.
func (s *Simulator) OnRedstone(g world.Grid, pos vec.Vec3, set Settings) int {
	changed := 0
	pos.CubeRange(1, func(p vec.Vec3) bool {
		if g.Block(p) != block.Sponge {
			return true
		}
		if g.IsPowered(p) {
			changed += s.Clear(g, p, set.Radius)
		} else {
			changed += s.Restore(g, p, set.Radius)
		}
		return true
	})
	return changed
}

func (s *Simulator) report(op string, center vec.Vec3, changed int) {
	if changed == 0 {
		return
	}
	if s.logger != nil {
		s.logger.Debug("%s at %s: %d cells", op, center, changed)
	}
	if s.OnChange != nil {
		s.OnChange(op, changed)
	}
}
