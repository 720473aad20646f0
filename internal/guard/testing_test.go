package guard

import (
	"errors"
	"sync"

	"github.com/annel0/blockguard/internal/blacklist"
	"github.com/annel0/blockguard/internal/policy"
	"github.com/annel0/blockguard/internal/region"
	"github.com/annel0/blockguard/internal/vec"
	"github.com/annel0/blockguard/internal/world"
	"github.com/annel0/blockguard/internal/world/block"
	"github.com/prometheus/client_golang/prometheus"
)

// fakeRegions запрещает флаги в заданных позициях и считает обращения
type fakeRegions struct {
	calls    int
	denied   map[region.Flag]map[vec.Vec3]bool
	noBuild  bool
	bypass   bool
	failWith error
}

func newFakeRegions() *fakeRegions {
	return &fakeRegions{denied: make(map[region.Flag]map[vec.Vec3]bool)}
}

func (f *fakeRegions) deny(flag region.Flag, positions ...vec.Vec3) {
	if f.denied[flag] == nil {
		f.denied[flag] = make(map[vec.Vec3]bool)
	}
	for _, p := range positions {
		f.denied[flag][p] = true
	}
}

func (f *fakeRegions) Allows(_ string, flag region.Flag, pos vec.Vec3) (bool, error) {
	f.calls++
	if f.failWith != nil {
		return false, f.failWith
	}
	return !f.denied[flag][pos], nil
}

func (f *fakeRegions) CanBuild(*Actor, string, vec.Vec3) (bool, error) {
	f.calls++
	if f.failWith != nil {
		return false, f.failWith
	}
	return !f.noBuild, nil
}

func (f *fakeRegions) HasBypass(*Actor, string) bool {
	f.calls++
	return f.bypass
}

// fakeBlacklist запрещает заданные пары вид/тип
type fakeBlacklist struct {
	calls  int
	denied map[blacklist.Kind]block.ID
}

func (b *fakeBlacklist) Check(ev blacklist.Event) (bool, error) {
	b.calls++
	id, ok := b.denied[ev.Kind]
	return !(ok && id == ev.TypeID), nil
}

type fakeBlacklists struct{ list *fakeBlacklist }

func (f fakeBlacklists) For(string) (Blacklist, bool) {
	if f.list == nil {
		return nil, false
	}
	return f.list, true
}

// fakeChests отвечает фиксированными значениями
type fakeChests struct {
	calls     int
	protected bool
	adjacent  bool
	placement bool
}

func (c *fakeChests) IsProtected(string, vec.Vec3, string) (bool, error) {
	c.calls++
	return c.protected, nil
}

func (c *fakeChests) IsAdjacentProtected(string, vec.Vec3, string) (bool, error) {
	c.calls++
	return c.adjacent, nil
}

func (c *fakeChests) IsPlacementProtected(string, vec.Vec3, string) (bool, error) {
	c.calls++
	return c.placement, nil
}

func (c *fakeChests) IsChest(id block.ID) bool { return id == block.Chest }

// recordingAuditor запоминает записи аудита
type recordingAuditor struct {
	mu     sync.Mutex
	vetoes []VetoRecord
	sponge []SpongeRecord
}

func (a *recordingAuditor) Veto(rec VetoRecord) {
	a.mu.Lock()
	a.vetoes = append(a.vetoes, rec)
	a.mu.Unlock()
}

func (a *recordingAuditor) Sponge(rec SpongeRecord) {
	a.mu.Lock()
	a.sponge = append(a.sponge, rec)
	a.mu.Unlock()
}

type failingMessenger struct{}

func (failingMessenger) Notify(*Actor, string) error { return errors.New("offline") }

// harness собирает конвейер с подменёнными оракулами
type harness struct {
	p        *Pipeline
	policies *policy.Registry
	state    *policy.GlobalState
	worlds   *world.Manager
	grid     *world.MemoryGrid
	regions  *fakeRegions
	list     *fakeBlacklist
	chests   *fakeChests
	audit    *recordingAuditor
	metrics  *Metrics
}

const testWorld = "world"

func newHarness(w *policy.World) *harness {
	h := &harness{
		policies: policy.NewRegistry(),
		state:    policy.NewGlobalState(),
		worlds:   world.NewManager(),
		grid:     world.NewMemoryGrid(),
		regions:  newFakeRegions(),
		list:     &fakeBlacklist{denied: make(map[blacklist.Kind]block.ID)},
		chests:   &fakeChests{},
		audit:    &recordingAuditor{},
		metrics:  NewMetrics(prometheus.NewRegistry()),
	}
	h.worlds.Add(testWorld, h.grid)
	if err := h.policies.Replace(map[string]*policy.World{testWorld: w}); err != nil {
		panic(err)
	}
	h.p = New(Options{
		Policies:    h.policies,
		State:       h.state,
		Worlds:      h.worlds,
		Regions:     h.regions,
		Blacklists:  fakeBlacklists{list: h.list},
		Chests:      h.chests,
		Metrics:     h.metrics,
		Auditor:     h.audit,
		MirrorWorld: true,
	})
	return h
}

// oracleCalls возвращает общее число обращений к оракулам
func (h *harness) oracleCalls() int {
	return h.regions.calls + h.list.calls + h.chests.calls
}

// everything возвращает политику со всеми включёнными флагами
func everything() *policy.World {
	return &policy.World{
		SpongeRadius:            2,
		RedstoneSponges:         true,
		SimulateSponge:          true,
		DisableFireSpread:       true,
		DisableLeafDecay:        true,
		DisableIceFormation:     true,
		DisableSnowFormation:    true,
		DisableMushroomSpread:   true,
		DisableIceMelting:       true,
		DisableSnowMelting:      true,
		NoPhysicsGravel:         true,
		NoPhysicsSand:           true,
		AllowPortalAnywhere:     true,
		PreventLightningFire:    true,
		PreventLavaFire:         true,
		BlockLighter:            true,
		PreventWaterDamage:      policy.NewIDSet(block.Torch),
		AllowedLavaSpreadOver:   policy.NewIDSet(block.Stone),
		DisableFireSpreadBlocks: policy.NewIDSet(block.Netherrack),
		UseRegions:              true,
		HighFreqFlags:           true,
		SignChestProtection:     true,
	}
}

// regionsOnly возвращает политику, где из проверок включены только регионы
func regionsOnly() *policy.World {
	return &policy.World{SpongeRadius: 2, UseRegions: true, ItemDurability: true}
}

func player(name string, perms ...string) *Actor {
	return &Actor{Name: name, Permissions: perms}
}

func at(x, y, z int) vec.Vec3 { return vec.Vec3{X: x, Y: y, Z: z} }

func base(pos vec.Vec3, actor *Actor) Base {
	return Base{World: testWorld, Pos: pos, Actor: actor}
}
