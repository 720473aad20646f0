package blacklist

import (
	"testing"

	"github.com/annel0/blockguard/internal/vec"
	"github.com/annel0/blockguard/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList_Check(t *testing.T) {
	l, err := NewList([]Rule{
		{Kind: KindPlace, IDs: []block.ID{block.TNT, block.Lava}, Ignore: []string{"Admin"}},
		{Kind: KindDestroyWith, IDs: []block.ID{block.DiamondPick}},
		{Kind: KindBreak, IDs: []block.ID{block.Bookshelf}, Log: true},
	})
	require.NoError(t, err)

	cases := []struct {
		name string
		ev   Event
		want bool
	}{
		{"place tnt", Event{Actor: "bob", TypeID: block.TNT, Kind: KindPlace}, false},
		{"ignored actor", Event{Actor: "admin", TypeID: block.TNT, Kind: KindPlace}, true},
		{"place stone", Event{Actor: "bob", TypeID: block.Stone, Kind: KindPlace}, true},
		{"break tnt", Event{Actor: "bob", TypeID: block.TNT, Kind: KindBreak}, true},
		{"destroy with pick", Event{Actor: "bob", TypeID: block.DiamondPick, Kind: KindDestroyWith}, false},
		{"break bookshelf", Event{Actor: "bob", World: "w", Pos: vec.Vec3{X: 1}, TypeID: block.Bookshelf, Kind: KindBreak}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := l.Check(tc.ev)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
	assert.Equal(t, uint64(3), l.Hits())
}

func TestList_UnknownKind(t *testing.T) {
	_, err := NewList([]Rule{{Kind: "use"}})
	assert.ErrorIs(t, err, ErrUnknownKind)

	l, err := NewList(nil)
	require.NoError(t, err)
	ok, err := l.Check(Event{Kind: "use"})
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.True(t, ok)
}

func TestSet_For(t *testing.T) {
	s := NewSet()
	_, ok := s.For("world")
	assert.False(t, ok)

	l, _ := NewList(nil)
	s.Replace(map[string]*List{"world": l, "nether": nil})

	got, ok := s.For("world")
	assert.True(t, ok)
	assert.Same(t, l, got)
	_, ok = s.For("nether")
	assert.False(t, ok)
}
