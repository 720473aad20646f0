package storage

import (
	"testing"

	"github.com/annel0/blockguard/internal/vec"
	"github.com/annel0/blockguard/internal/world"
	"github.com/annel0/blockguard/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *GridStore {
	t.Helper()
	store, err := NewGridStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestGridStore_SaveAndLoad(t *testing.T) {
	store := setupTestStore(t)

	grid := world.NewMemoryGrid()
	grid.SetBlock(vec.Vec3{X: 1, Y: 2, Z: 3}, block.Sponge)
	grid.SetBlock(vec.Vec3{X: -20, Y: 64, Z: 40}, block.StationaryWater)
	grid.SetSign(vec.Vec3{X: 0, Y: 5, Z: 0}, block.SignPost, [4]string{"[Lock]", "alice"})

	require.NoError(t, store.SaveGrid("world", grid))
	assert.Empty(t, grid.DirtyChunks())

	loaded, err := store.LoadWorld("world")
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Len())
	assert.Equal(t, block.Sponge, loaded.Block(vec.Vec3{X: 1, Y: 2, Z: 3}))
	assert.Equal(t, block.StationaryWater, loaded.Block(vec.Vec3{X: -20, Y: 64, Z: 40}))

	lines, ok := loaded.SignLines(vec.Vec3{X: 0, Y: 5, Z: 0})
	require.True(t, ok)
	assert.Equal(t, "[Lock]", lines[0])
	assert.Equal(t, "alice", lines[1])

	// Загрузка не помечает чанки изменёнными
	assert.Empty(t, loaded.DirtyChunks())
}

func TestGridStore_OnlyChangedChunks(t *testing.T) {
	store := setupTestStore(t)

	grid := world.NewMemoryGrid()
	grid.SetBlock(vec.Vec3{X: 1, Y: 1, Z: 1}, block.Stone)
	require.NoError(t, store.SaveGrid("world", grid))

	// Очищенный чанк удаляется из хранилища
	grid.SetBlock(vec.Vec3{X: 1, Y: 1, Z: 1}, block.Air)
	grid.SetBlock(vec.Vec3{X: 100, Y: 1, Z: 1}, block.Glass)
	require.NoError(t, store.SaveGrid("world", grid))

	loaded, err := store.LoadWorld("world")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
	assert.Equal(t, block.Glass, loaded.Block(vec.Vec3{X: 100, Y: 1, Z: 1}))

	// Нечего сохранять
	require.NoError(t, store.SaveGrid("world", grid))
}

func TestGridStore_WorldsAndLoadAll(t *testing.T) {
	store := setupTestStore(t)

	for _, name := range []string{"world", "nether"} {
		g := world.NewMemoryGrid()
		g.SetBlock(vec.Vec3{}, block.Netherrack)
		require.NoError(t, store.SaveGrid(name, g))
	}

	names, err := store.Worlds()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"world", "nether"}, names)

	m := world.NewManager()
	require.NoError(t, store.LoadAll(m))
	assert.Equal(t, []string{"nether", "world"}, m.Worlds())

	empty, err := store.LoadWorld("the_end")
	require.NoError(t, err)
	assert.Zero(t, empty.Len())
}

func TestGridStore_ManagerAutosave(t *testing.T) {
	store := setupTestStore(t)

	m := world.NewManager()
	m.SetSaver(store, 0)
	grid := m.GetOrCreate("world")
	grid.SetBlock(vec.Vec3{X: 7, Y: 7, Z: 7}, block.Sponge)

	require.NoError(t, m.SaveAll())

	loaded, err := store.LoadWorld("world")
	require.NoError(t, err)
	assert.Equal(t, block.Sponge, loaded.Block(vec.Vec3{X: 7, Y: 7, Z: 7}))
}

func TestGridStore_Closed(t *testing.T) {
	store, err := NewGridStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err = store.LoadWorld("world")
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, store.SaveGrid("world", world.NewMemoryGrid()), ErrStoreClosed)
}
