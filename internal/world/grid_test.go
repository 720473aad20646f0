package world

import (
	"sync"
	"testing"

	"github.com/annel0/blockguard/internal/vec"
	"github.com/annel0/blockguard/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGrid_BlockOperations(t *testing.T) {
	g := NewMemoryGrid()
	pos := vec.Vec3{X: 10, Y: 64, Z: -15}

	assert.Equal(t, block.Air, g.Block(pos), "пустая клетка должна быть воздухом")

	g.SetBlock(pos, block.Stone)
	assert.Equal(t, block.Stone, g.Block(pos))
	assert.Equal(t, 1, g.Len())

	g.SetBlock(pos, block.Air)
	assert.Equal(t, block.Air, g.Block(pos))
	assert.Equal(t, 0, g.Len(), "воздух не хранится")
}

func TestMemoryGrid_Signs(t *testing.T) {
	g := NewMemoryGrid()
	pos := vec.Vec3{X: 1, Y: 2, Z: 3}
	lines := [4]string{"[Lock]", "alice", "", ""}

	g.SetSign(pos, block.SignPost, lines)

	got, ok := g.SignLines(pos)
	require.True(t, ok)
	assert.Equal(t, lines, got)

	_, ok = g.SignLines(pos.Above())
	assert.False(t, ok, "над табличкой ничего нет")

	// Метаданные не должны протекать наружу
	b := g.Get(pos)
	b.Payload["extra"] = true
	_, exists := g.Get(pos).Payload["extra"]
	assert.False(t, exists)
}

func TestMemoryGrid_Power(t *testing.T) {
	g := NewMemoryGrid()
	pos := vec.Vec3{}

	assert.False(t, g.IsPowered(pos))
	g.SetPowered(pos, true)
	assert.True(t, g.IsPowered(pos))
	g.SetPowered(pos, false)
	assert.False(t, g.IsPowered(pos))
}

func TestMemoryGrid_Changes(t *testing.T) {
	g := NewMemoryGrid()
	g.SetBlock(vec.Vec3{X: 1, Y: 1, Z: 1}, block.Stone)
	g.SetBlock(vec.Vec3{X: 2, Y: 2, Z: 2}, block.Dirt)
	g.SetBlock(vec.Vec3{X: -1, Y: 1, Z: 1}, block.Sand)

	changes := g.TakeChanges()
	assert.ElementsMatch(t, []vec.Vec3{{X: 0, Y: 0, Z: 0}, {X: -1, Y: 0, Z: 0}}, changes)
	assert.Empty(t, g.TakeChanges(), "изменения забираются один раз")

	g.MarkDirty(vec.Vec3{X: 5})
	assert.Equal(t, []vec.Vec3{{X: 5}}, g.TakeChanges())
}

func TestMemoryGrid_LoadChunk(t *testing.T) {
	g := NewMemoryGrid()
	chunk := vec.Vec3{X: 1}
	in := vec.Vec3{X: 17, Y: 3, Z: 4}
	out := vec.Vec3{X: 0, Y: 3, Z: 4}

	g.LoadChunk(chunk, map[vec.Vec3]Block{
		in:  {ID: block.Gravel},
		out: {ID: block.Gravel},
	})

	assert.Equal(t, block.Gravel, g.Block(in))
	assert.Equal(t, block.Air, g.Block(out), "блок чужого чанка отбрасывается")
	assert.Equal(t, 1, g.Len())
	assert.Empty(t, g.TakeChanges(), "загрузка не помечает изменения")
	assert.Equal(t, []vec.Vec3{chunk}, g.Chunks())
}

func TestMemoryGrid_Concurrent(t *testing.T) {
	g := NewMemoryGrid()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				pos := vec.Vec3{X: i, Y: j}
				g.SetBlock(pos, block.Stone)
				_ = g.Block(pos)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 800, g.Len())
}

type recordingSaver struct {
	mu    sync.Mutex
	saved []string
}

func (r *recordingSaver) SaveGrid(world string, grid *MemoryGrid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, world)
	return nil
}

func TestManager_Worlds(t *testing.T) {
	m := NewManager()
	m.GetOrCreate("world_nether")
	m.GetOrCreate("world")
	same := m.GetOrCreate("world")
	same.SetBlock(vec.Vec3{}, block.Stone)

	assert.Equal(t, []string{"world", "world_nether"}, m.Worlds())

	g, err := m.Grid("world")
	require.NoError(t, err)
	assert.Equal(t, block.Stone, g.Block(vec.Vec3{}))

	_, err = m.Grid("missing")
	assert.ErrorIs(t, err, ErrWorldNotFound)
}

func TestManager_StopSaves(t *testing.T) {
	m := NewManager()
	saver := &recordingSaver{}
	m.SetSaver(saver, 0)
	m.GetOrCreate("world")

	m.Run(nil)
	require.NoError(t, m.Stop())

	assert.Equal(t, []string{"world"}, saver.saved)
	assert.False(t, m.LastSaveTime().IsZero())
}
