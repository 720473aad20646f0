package guard

import (
	"errors"
	"testing"

	"github.com/annel0/blockguard/internal/blacklist"
	"github.com/annel0/blockguard/internal/chestlock"
	"github.com/annel0/blockguard/internal/policy"
	"github.com/annel0/blockguard/internal/region"
	"github.com/annel0/blockguard/internal/vec"
	"github.com/annel0/blockguard/internal/world"
	"github.com/annel0/blockguard/internal/world/block"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_VetoCancelsAndNotifies(t *testing.T) {
	h := newHarness(regionsOnly())
	h.regions.noBuild = true

	ev := &PlaceEvent{Base: base(at(1, 2, 3), player("alice")), BlockID: block.Stone}
	var c Collector
	v, err := h.p.HandleWith(ev, &c)
	require.NoError(t, err)

	assert.True(t, v.Vetoed)
	assert.Equal(t, "build", v.Check)
	assert.True(t, ev.Cancelled())
	assert.Equal(t, []string{MsgNoPermission}, c.Messages())

	require.Len(t, h.audit.vetoes, 1)
	rec := h.audit.vetoes[0]
	assert.Equal(t, CategoryPlace, rec.Category)
	assert.Equal(t, "alice", rec.Actor)
	assert.Equal(t, at(1, 2, 3), rec.Pos)

	// Запрещённая установка не попадает в зеркальную сетку
	assert.Equal(t, block.Air, h.grid.Block(at(1, 2, 3)))

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.verdicts.WithLabelValues("place", "veto")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.vetoes.WithLabelValues("place", "build")))
}

func TestHandle_CancelledEventIsNotEvaluated(t *testing.T) {
	h := newHarness(everything())
	h.state.SetActivityHalt(true)

	ev := &FlowEvent{Base: base(at(0, 0, 0), nil), FromID: block.Water, To: at(1, 0, 0)}
	ev.SetCancelled(true)

	v, err := h.p.Handle(ev)
	require.NoError(t, err)
	assert.True(t, v.Allowed())
	assert.Empty(t, h.audit.vetoes)
	assert.Zero(t, testutil.CollectAndCount(h.metrics.verdicts))
}

func TestHandle_MessengerErrorIgnored(t *testing.T) {
	h := newHarness(regionsOnly())
	h.regions.noBuild = true

	ev := &BreakEvent{Base: base(at(0, 0, 0), player("alice")), BlockID: block.Stone}
	v, err := h.p.HandleWith(ev, failingMessenger{})
	require.NoError(t, err)
	assert.True(t, v.Vetoed)
}

func TestHandle_AllowMirrorsWorld(t *testing.T) {
	h := newHarness(regionsOnly())
	alice := player("alice")

	_, err := h.p.Handle(&PlaceEvent{Base: base(at(4, 4, 4), alice), BlockID: block.Glass})
	require.NoError(t, err)
	assert.Equal(t, block.Glass, h.grid.Block(at(4, 4, 4)))

	_, err = h.p.Handle(&BreakEvent{Base: base(at(4, 4, 4), alice), BlockID: block.Glass})
	require.NoError(t, err)
	assert.Equal(t, block.Air, h.grid.Block(at(4, 4, 4)))

	lines := [4]string{"hello", "world"}
	_, err = h.p.Handle(&SignChangeEvent{Base: base(at(5, 4, 4), alice), BlockID: block.SignPost, Lines: lines})
	require.NoError(t, err)
	got, ok := h.grid.SignLines(at(5, 4, 4))
	require.True(t, ok)
	assert.Equal(t, lines, got)
}

func TestHandle_AllowMirrorsNaturalEvents(t *testing.T) {
	h := newHarness(regionsOnly())

	v, err := h.p.Handle(&FlowEvent{Base: base(at(0, 0, 0), nil), FromID: block.StationaryWater, To: at(1, 0, 0)})
	require.NoError(t, err)
	assert.Empty(t, v.Changes)
	assert.Equal(t, block.Water, h.grid.Block(at(1, 0, 0)))

	_, err = h.p.Handle(&FormEvent{Base: base(at(2, 0, 0), nil), NewID: block.Ice})
	require.NoError(t, err)
	assert.Equal(t, block.Ice, h.grid.Block(at(2, 0, 0)))

	_, err = h.p.Handle(&FadeEvent{Base: base(at(2, 0, 0), nil), BlockID: block.Ice})
	require.NoError(t, err)
	assert.Equal(t, block.Water, h.grid.Block(at(2, 0, 0)))

	h.grid.SetBlock(at(3, 0, 0), block.Leaves)
	_, err = h.p.Handle(&LeavesDecayEvent{Base: base(at(3, 0, 0), nil)})
	require.NoError(t, err)
	assert.Equal(t, block.Air, h.grid.Block(at(3, 0, 0)))
}

func TestEvaluate_DoesNotApply(t *testing.T) {
	h := newHarness(regionsOnly())
	h.regions.noBuild = true

	ev := &PlaceEvent{Base: base(at(0, 0, 0), player("alice")), BlockID: block.Stone}
	v, err := h.p.Evaluate(ev)
	require.NoError(t, err)
	assert.True(t, v.Vetoed)
	assert.False(t, ev.Cancelled())
	assert.Empty(t, h.audit.vetoes)
}

func TestHalt_VetoesBeforeOracles(t *testing.T) {
	h := newHarness(everything())
	h.state.SetActivityHalt(true)
	pos := at(0, 64, 0)

	events := []Event{
		&FlowEvent{Base: base(pos, nil), FromID: block.Water, To: pos.Add(vec.PosX)},
		&IgniteEvent{Base: base(pos, player("alice")), Cause: IgniteFlintAndSteel},
		&BurnEvent{Base: base(pos, nil), BlockID: block.Wood},
		&PhysicsEvent{Base: base(pos, nil), BlockID: block.WallSign, ChangedID: block.Sand},
		&LeavesDecayEvent{Base: base(pos, nil)},
		&FormEvent{Base: base(pos, nil), NewID: block.Ice},
		&SpreadEvent{Base: base(pos, nil), SourceID: block.RedMushroom, NewID: block.RedMushroom},
	}
	for _, ev := range events {
		v, err := h.p.Evaluate(ev)
		require.NoError(t, err)
		assert.True(t, v.Vetoed, ev.Category())
		assert.Equal(t, "halt", v.Check, ev.Category())
	}
	assert.Zero(t, h.oracleCalls())
}

func TestHalt_FadeAndPlayerEventsUnaffected(t *testing.T) {
	h := newHarness(regionsOnly())
	h.state.SetActivityHalt(true)

	v, err := h.p.Evaluate(&FadeEvent{Base: base(at(0, 0, 0), nil), BlockID: block.Ice})
	require.NoError(t, err)
	assert.True(t, v.Allowed())

	v, err = h.p.Evaluate(&PlaceEvent{Base: base(at(0, 0, 0), player("alice")), BlockID: block.Stone})
	require.NoError(t, err)
	assert.True(t, v.Allowed())
}

func TestRegionsDisabled_SkipsRegionOracle(t *testing.T) {
	w := everything()
	w.UseRegions = false
	h := newHarness(w)
	h.regions.noBuild = true
	h.regions.deny(region.FlagWaterFlow, at(0, 0, 0))

	v, err := h.p.Evaluate(&PlaceEvent{Base: base(at(0, 0, 0), player("alice")), BlockID: block.Stone})
	require.NoError(t, err)
	assert.True(t, v.Allowed())

	v, err = h.p.Evaluate(&FlowEvent{Base: base(at(0, 0, 0), nil), FromID: block.Water, To: at(50, 0, 0)})
	require.NoError(t, err)
	assert.True(t, v.Allowed())

	assert.Zero(t, h.regions.calls)
}

func TestOracleError_TreatedAsPass(t *testing.T) {
	h := newHarness(regionsOnly())
	h.regions.failWith = errors.New("region backend down")

	v, err := h.p.Evaluate(&PlaceEvent{Base: base(at(0, 0, 0), player("alice")), BlockID: block.Stone})
	require.NoError(t, err)
	assert.True(t, v.Allowed())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.oracleErrors.WithLabelValues("region")))
}

func TestUnknownWorld_UsesDefaults(t *testing.T) {
	h := newHarness(everything())
	h.regions.noBuild = true

	ev := &PlaceEvent{Base: Base{World: "nether", Pos: at(0, 0, 0), Actor: player("alice")}, BlockID: block.Stone}
	v, err := h.p.Handle(ev)
	require.NoError(t, err)
	assert.Equal(t, "build", v.Check)

	// Мир без сетки: губки и лава работают по пустому миру
	flow := &FlowEvent{Base: Base{World: "nether", Pos: at(0, 0, 0)}, FromID: block.Lava, To: at(1, 0, 0)}
	v, err = h.p.Evaluate(flow)
	require.NoError(t, err)
	assert.True(t, v.Allowed())
}

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent(CategoryBreak, []byte(`{
		"world": "world",
		"pos": {"x": 1, "y": 2, "z": 3},
		"actor": {"name": "alice", "permissions": ["worldguard.*"]},
		"block_id": 1,
		"held": {"type_id": 278, "durability": 12}
	}`))
	require.NoError(t, err)

	br, ok := ev.(*BreakEvent)
	require.True(t, ok)
	assert.Equal(t, at(1, 2, 3), br.Pos)
	assert.Equal(t, "alice", br.Actor.Name)
	assert.Equal(t, block.Stone, br.BlockID)
	require.NotNil(t, br.Held)
	assert.Equal(t, block.DiamondPick, br.Held.TypeID)

	_, err = DecodeEvent(CategoryFlow, []byte(`{"pos": {"x": 0, "y": 0, "z": 0}}`))
	assert.Error(t, err)

	_, err = DecodeEvent(Category("explode"), []byte(`{"world": "world"}`))
	assert.ErrorIs(t, err, ErrUnknownCategory)

	for _, c := range Categories {
		ev, err := NewEvent(c)
		require.NoError(t, err)
		assert.Equal(t, c, ev.Category())
	}
}

func TestActorPermissions(t *testing.T) {
	perms := ActorPermissions{}
	assert.False(t, perms.Has(nil, PermOverrideLighter))
	assert.True(t, perms.Has(player("a", "*"), PermOverrideLighter))
	assert.True(t, perms.Has(player("a", PermOverrideLighter), PermOverrideLighter))
	assert.True(t, perms.Has(player("a", "worldguard.override.*"), PermOverrideChest))
	assert.False(t, perms.Has(player("a", "worldguard.override.*"), PermRegionBypass+".world"))
	assert.False(t, perms.Has(player("a", "worldguard.override"), PermOverrideChest))
}

// Полный стек: настоящие регионы и замки сундуков поверх зеркальной сетки
func TestPipeline_RegionsAndChestLocks(t *testing.T) {
	worlds := world.NewManager()
	grid := world.NewMemoryGrid()
	worlds.Add(testWorld, grid)

	regions := region.NewManager()
	spawn := region.New("spawn", at(-10, -10, -10), at(10, 10, 10))
	spawn.Owners = []string{"alice"}
	regions.Replace(testWorld, []*region.Region{spawn})

	list, err := blacklist.NewList([]blacklist.Rule{
		{Kind: blacklist.KindPlace, IDs: []block.ID{block.TNT}},
	})
	require.NoError(t, err)
	lists := blacklist.NewSet()
	lists.Replace(map[string]*blacklist.List{testWorld: list})

	policies := policy.NewRegistry()
	w := policy.Defaults(testWorld)
	w.SignChestProtection = true
	require.NoError(t, policies.Replace(map[string]*policy.World{testWorld: w}))

	perms := ActorPermissions{}
	p := New(Options{
		Policies:    policies,
		Worlds:      worlds,
		Regions:     NewRegionPolicy(regions, perms),
		Blacklists:  NewBlacklists(lists),
		Chests:      chestlock.New(worlds),
		Permissions: perms,
		Metrics:     NewMetrics(prometheus.NewRegistry()),
		MirrorWorld: true,
	})

	alice := player("alice")
	bob := player("bob", PermRegionBypass+"."+testWorld)
	chest := at(0, 1, 0)
	grid.SetBlock(at(0, -1, 0), block.Stone)
	grid.SetBlock(chest, block.Chest)

	// Чужой игрок без прав не строит в регионе
	v, err := p.Handle(&PlaceEvent{Base: base(at(3, 0, 0), player("eve")), BlockID: block.Stone})
	require.NoError(t, err)
	assert.Equal(t, "build", v.Check)

	// alice ставит замок под сундуком
	sign := &SignChangeEvent{Base: base(at(0, 0, 0), alice), BlockID: block.SignPost, Lines: [4]string{"[lock]", "alice"}}
	v, err = p.Handle(sign)
	require.NoError(t, err)
	require.True(t, v.Allowed())
	assert.Equal(t, chestlock.LockTag, sign.Lines[0])
	assert.Equal(t, []string{MsgLockAccepted}, v.Notices)

	// bob обходит регион, но сундук защищён замком
	v, err = p.Handle(&BreakEvent{Base: base(chest, bob), BlockID: block.Chest})
	require.NoError(t, err)
	assert.Equal(t, "chest-protected", v.Check)
	assert.Equal(t, MsgChestProtected, v.Message)

	// Второй сундук рядом с чужим защищённым
	v, err = p.Handle(&PlaceEvent{Base: base(chest.Add(vec.PosX), bob), BlockID: block.Chest})
	require.NoError(t, err)
	assert.Equal(t, "chest-adjacent", v.Check)

	// Огонь не сжигает защищённый сундук
	v, err = p.Handle(&BurnEvent{Base: base(chest, nil), BlockID: block.Chest})
	require.NoError(t, err)
	assert.Equal(t, "chest-protected", v.Check)

	// TNT в чёрном списке даже для владельца
	v, err = p.Handle(&PlaceEvent{Base: base(at(2, 0, 0), alice), BlockID: block.TNT})
	require.NoError(t, err)
	assert.Equal(t, "blacklist-place", v.Check)

	// Владелец ломает свой сундук
	v, err = p.Handle(&BreakEvent{Base: base(chest, alice), BlockID: block.Chest})
	require.NoError(t, err)
	assert.True(t, v.Allowed())
}
