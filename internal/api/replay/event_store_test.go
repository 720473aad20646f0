package replay

import (
	"context"
	"testing"
	"time"

	"github.com/annel0/blockguard/internal/eventbus"
	"github.com/annel0/blockguard/internal/guard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func veto(world string, c guard.Category, check string) Record {
	return Record{
		EventID:    check,
		Timestamp:  time.Now(),
		VetoRecord: guard.VetoRecord{World: world, Category: c, Check: check, Actor: "alice"},
	}
}

func TestStore_RingKeepsNewest(t *testing.T) {
	s := NewStore(3)
	for _, check := range []string{"a", "b", "c", "d", "e"} {
		s.Add(veto("world", guard.CategoryBreak, check))
	}

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, uint64(5), s.Total())

	got := s.Query(Query{})
	require.Len(t, got, 3)
	assert.Equal(t, "e", got[0].Check)
	assert.Equal(t, "c", got[2].Check)
}

func TestStore_QueryFilters(t *testing.T) {
	s := NewStore(0)
	s.Add(veto("world", guard.CategoryBreak, "region-build"))
	s.Add(veto("world", guard.CategoryFlow, "sponge"))
	s.Add(veto("nether", guard.CategoryIgnite, "fire-spread-halted"))
	s.Add(veto("world", guard.CategoryBreak, "blacklist"))

	assert.Len(t, s.Query(Query{World: "world"}), 3)
	assert.Len(t, s.Query(Query{Category: "break"}), 2)
	assert.Len(t, s.Query(Query{Check: "sponge"}), 1)
	assert.Len(t, s.Query(Query{Actor: "bob"}), 0)
	assert.Len(t, s.Query(Query{World: "world", Limit: 1}), 1)

	future := time.Now().Add(time.Hour)
	assert.Empty(t, s.Query(Query{Since: &future}))

	st := s.Stats(Query{World: "world", Limit: 1})
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 2, st.ByCategory["break"])
	assert.Equal(t, 1, st.ByCheck["sponge"])
	assert.Equal(t, 3, st.ByWorld["world"])
}

func TestStore_AttachCollectsVetoes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := eventbus.NewMemoryBus(16)
	defer bus.Close()

	s := NewStore(8)
	sub, err := s.Attach(ctx, bus)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	auditor := guard.NewBusAuditor(bus)
	auditor.Sponge(guard.SpongeRecord{World: "world", Cells: 4})
	auditor.Veto(guard.VetoRecord{World: "world", Category: guard.CategoryPlace, Check: "region-build"})

	assert.Eventually(t, func() bool { return s.Len() == 1 }, time.Second, 10*time.Millisecond)
	got := s.Query(Query{})
	require.Len(t, got, 1)
	assert.Equal(t, guard.CategoryPlace, got[0].Category)
	assert.NotEmpty(t, got[0].EventID)
}
