package world

import (
	"sync"

	"github.com/annel0/blockguard/internal/vec"
	"github.com/annel0/blockguard/internal/world/block"
)

// Grid определяет интерфейс доступа к трёхмерному миру блоков.
// Хост-среда может предоставить собственную реализацию поверх своего мира.
type Grid interface {
	// Block возвращает идентификатор блока в позиции (Air для пустых клеток).
	Block(pos vec.Vec3) block.ID

	// SetBlock устанавливает блок в позиции.
	SetBlock(pos vec.Vec3, id block.ID)

	// IsPowered сообщает, запитан ли блок (прямо или косвенно) сигналом редстоуна.
	IsPowered(pos vec.Vec3) bool

	// SignLines возвращает текст таблички в позиции, если она там есть.
	SignLines(pos vec.Vec3) ([4]string, bool)
}

// ChunkSize определяет размер ребра кубического чанка в блоках
const ChunkSize = 16

// ChunkCoords возвращает координаты чанка, содержащего позицию
func ChunkCoords(pos vec.Vec3) vec.Vec3 {
	return vec.Vec3{X: pos.X >> 4, Y: pos.Y >> 4, Z: pos.Z >> 4}
}

// MemoryGrid реализует Grid разреженно в памяти.
// Отсутствующая клетка считается воздухом.
type MemoryGrid struct {
	mu      sync.RWMutex
	chunks  map[vec.Vec3]map[vec.Vec3]Block // чанк -> позиция -> блок
	size    int
	powered map[vec.Vec3]struct{}
	changes map[vec.Vec3]struct{} // Чанки, изменённые с последнего сохранения

	ChangeCounter int // Счетчик изменений
}

// NewMemoryGrid создаёт пустой мир
func NewMemoryGrid() *MemoryGrid {
	return &MemoryGrid{
		chunks:  make(map[vec.Vec3]map[vec.Vec3]Block),
		powered: make(map[vec.Vec3]struct{}),
		changes: make(map[vec.Vec3]struct{}),
	}
}

// Block возвращает ID блока в позиции
func (g *MemoryGrid) Block(pos vec.Vec3) block.ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lookup(pos).ID
}

func (g *MemoryGrid) lookup(pos vec.Vec3) Block {
	return g.chunks[ChunkCoords(pos)][pos]
}

// Get возвращает копию блока вместе с метаданными
func (g *MemoryGrid) Get(pos vec.Vec3) Block {
	g.mu.RLock()
	defer g.mu.RUnlock()
	b, ok := g.chunks[ChunkCoords(pos)][pos]
	if !ok {
		return NewBlock(block.Air)
	}
	return b.Clone()
}

// SetBlock устанавливает блок, сбрасывая метаданные
func (g *MemoryGrid) SetBlock(pos vec.Vec3, id block.ID) {
	g.Put(pos, Block{ID: id})
}

// Put устанавливает блок вместе с метаданными
func (g *MemoryGrid) Put(pos vec.Vec3, b Block) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := ChunkCoords(pos)
	cells := g.chunks[key]
	_, existed := cells[pos]

	if b.ID == block.Air && len(b.Payload) == 0 {
		if existed {
			delete(cells, pos)
			g.size--
			if len(cells) == 0 {
				delete(g.chunks, key)
			}
		}
	} else {
		if cells == nil {
			cells = make(map[vec.Vec3]Block)
			g.chunks[key] = cells
		}
		cells[pos] = b
		if !existed {
			g.size++
		}
	}
	g.changes[key] = struct{}{}
	g.ChangeCounter++
}

// SetSign ставит табличку указанного типа с текстом
func (g *MemoryGrid) SetSign(pos vec.Vec3, id block.ID, lines [4]string) {
	g.Put(pos, Block{
		ID:      id,
		Payload: map[string]interface{}{PayloadSignLines: lines},
	})
}

// SignLines возвращает текст таблички
func (g *MemoryGrid) SignLines(pos vec.Vec3) ([4]string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lookup(pos).SignLines()
}

// IsPowered сообщает, запитана ли клетка
func (g *MemoryGrid) IsPowered(pos vec.Vec3) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.powered[pos]
	return ok
}

// SetPowered изменяет состояние питания клетки
func (g *MemoryGrid) SetPowered(pos vec.Vec3, powered bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if powered {
		g.powered[pos] = struct{}{}
	} else {
		delete(g.powered, pos)
	}
}

// Len возвращает количество непустых клеток
func (g *MemoryGrid) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.size
}

// ChunkBlocks возвращает копию всех непустых блоков чанка
func (g *MemoryGrid) ChunkBlocks(chunk vec.Vec3) map[vec.Vec3]Block {
	g.mu.RLock()
	defer g.mu.RUnlock()

	cells := g.chunks[chunk]
	result := make(map[vec.Vec3]Block, len(cells))
	for pos, b := range cells {
		result[pos] = b.Clone()
	}
	return result
}

// DirtyChunks возвращает чанки, изменённые с последнего ClearChanges
func (g *MemoryGrid) DirtyChunks() []vec.Vec3 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	chunks := make([]vec.Vec3, 0, len(g.changes))
	for c := range g.changes {
		chunks = append(chunks, c)
	}
	return chunks
}

// TakeChanges атомарно забирает список изменённых чанков
func (g *MemoryGrid) TakeChanges() []vec.Vec3 {
	g.mu.Lock()
	defer g.mu.Unlock()

	chunks := make([]vec.Vec3, 0, len(g.changes))
	for c := range g.changes {
		chunks = append(chunks, c)
	}
	g.changes = make(map[vec.Vec3]struct{})
	g.ChangeCounter = 0
	return chunks
}

// MarkDirty возвращает чанки в список изменённых (например, после неудачного сохранения)
func (g *MemoryGrid) MarkDirty(chunks ...vec.Vec3) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range chunks {
		g.changes[c] = struct{}{}
	}
}

// LoadChunk заменяет содержимое чанка без пометки об изменении
func (g *MemoryGrid) LoadChunk(chunk vec.Vec3, blocks map[vec.Vec3]Block) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.size -= len(g.chunks[chunk])
	cells := make(map[vec.Vec3]Block, len(blocks))
	for pos, b := range blocks {
		if ChunkCoords(pos) != chunk || (b.ID == block.Air && len(b.Payload) == 0) {
			continue
		}
		cells[pos] = b
	}
	if len(cells) == 0 {
		delete(g.chunks, chunk)
		return
	}
	g.chunks[chunk] = cells
	g.size += len(cells)
}

// Chunks возвращает координаты всех непустых чанков
func (g *MemoryGrid) Chunks() []vec.Vec3 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	chunks := make([]vec.Vec3, 0, len(g.chunks))
	for c := range g.chunks {
		chunks = append(chunks, c)
	}
	return chunks
}
