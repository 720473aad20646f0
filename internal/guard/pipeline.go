// Package guard перехватывает события мира до их применения и решает,
// разрешить их или запретить, по упорядоченным цепочкам проверок.
package guard

import (
	"errors"
	"time"

	"github.com/annel0/blockguard/internal/logging"
	"github.com/annel0/blockguard/internal/policy"
	"github.com/annel0/blockguard/internal/sponge"
	"github.com/annel0/blockguard/internal/vec"
	"github.com/annel0/blockguard/internal/world"
	"github.com/annel0/blockguard/internal/world/block"
)

// Options содержит зависимости конвейера. Незаданные оракулы заменяются разрешающими.
type Options struct {
	Policies    *policy.Registry
	State       *policy.GlobalState
	Worlds      GridSource
	Regions     RegionPolicy
	Blacklists  Blacklists
	Chests      ChestProtection
	Permissions Permissions
	Messenger   Messenger
	Sponge      *sponge.Simulator
	Metrics     *Metrics
	Auditor     Auditor

	// MirrorWorld применяет разрешённые установку, разрушение и текст табличек
	// к отслеживаемой сетке, чтобы губки и замки видели актуальный мир.
	MirrorWorld bool
}

// Pipeline представляет конвейер решений
type Pipeline struct {
	policies   *policy.Registry
	state      *policy.GlobalState
	worlds     GridSource
	regions    RegionPolicy
	blacklists Blacklists
	chests     ChestProtection
	perms      Permissions
	messenger  Messenger
	sponge     *sponge.Simulator
	metrics    *Metrics
	auditor    Auditor
	mirror     bool
	logger     *logging.Logger
}

// New создаёт конвейер
func New(opts Options) *Pipeline {
	p := &Pipeline{
		policies:   opts.Policies,
		state:      opts.State,
		worlds:     opts.Worlds,
		regions:    opts.Regions,
		blacklists: opts.Blacklists,
		chests:     opts.Chests,
		perms:      opts.Permissions,
		messenger:  opts.Messenger,
		sponge:     opts.Sponge,
		metrics:    opts.Metrics,
		auditor:    opts.Auditor,
		mirror:     opts.MirrorWorld,
		logger:     logging.GetGuardLogger(),
	}
	if p.policies == nil {
		p.policies = policy.NewRegistry()
	}
	if p.state == nil {
		p.state = policy.NewGlobalState()
	}
	if p.regions == nil {
		p.regions = allowAll{}
	}
	if p.blacklists == nil {
		p.blacklists = noBlacklists{}
	}
	if p.chests == nil {
		p.chests = noChests{}
	}
	if p.perms == nil {
		p.perms = ActorPermissions{}
	}
	if p.messenger == nil {
		p.messenger = NopMessenger{}
	}
	if p.sponge == nil {
		p.sponge = sponge.NewSimulator()
	}
	p.sponge.OnChange = p.metrics.sponge
	return p
}

// ErrUnknownCategory возвращается для события неизвестной категории
var ErrUnknownCategory = errors.New("unknown event category")

// scope собирает контекст проверки: политика и переключатели читаются ровно один раз
func (p *Pipeline) scope(ev Event) *Scope {
	name := ev.WorldName()
	s := &Scope{
		World:   p.policies.Get(name),
		Toggles: p.state.Snapshot(name),
		name:    name,
		actor:   ev.Initiator(),
		p:       p,
	}
	if p.worlds != nil {
		if g, err := p.worlds.Lookup(name); err == nil {
			s.Grid = g
		}
	}
	return s
}

func (p *Pipeline) oracleFailed(oracle string, err error) {
	p.logger.Warn("oracle %s failed, treating as pass: %v", oracle, err)
	p.metrics.oracleError(oracle)
}

// Evaluate проверяет событие без применения результата (отмены, сообщений, губок).
// Уже отменённое событие разрешается без проверки.
func (p *Pipeline) Evaluate(ev Event) (Verdict, error) {
	if ev.Cancelled() {
		return Allow, nil
	}
	v, _, err := p.evaluate(ev)
	return v, err
}

func (p *Pipeline) evaluate(ev Event) (Verdict, *Scope, error) {
	s := p.scope(ev)
	switch e := ev.(type) {
	case *DamageEvent:
		return damageChain.Evaluate(s, e), s, nil
	case *BreakEvent:
		return breakChain.Evaluate(s, e), s, nil
	case *PlaceEvent:
		return placeChain.Evaluate(s, e), s, nil
	case *FlowEvent:
		return flowChain.Evaluate(s, e), s, nil
	case *IgniteEvent:
		return igniteChain.Evaluate(s, e), s, nil
	case *BurnEvent:
		return burnChain.Evaluate(s, e), s, nil
	case *PhysicsEvent:
		return physicsChain.Evaluate(s, e), s, nil
	case *RedstoneEvent:
		return redstoneChain.Evaluate(s, e), s, nil
	case *SignChangeEvent:
		return signChangeChain.Evaluate(s, e), s, nil
	case *LeavesDecayEvent:
		return leavesDecayChain.Evaluate(s, e), s, nil
	case *FormEvent:
		return formChain.Evaluate(s, e), s, nil
	case *SpreadEvent:
		return spreadChain.Evaluate(s, e), s, nil
	case *FadeEvent:
		return fadeChain.Evaluate(s, e), s, nil
	case *PistonExtendEvent:
		return pistonExtendChain.Evaluate(s, e), s, nil
	case *PistonRetractEvent:
		return pistonRetractChain.Evaluate(s, e), s, nil
	}
	return Allow, s, ErrUnknownCategory
}

// EvaluateDamage проверяет повреждение блока
func (p *Pipeline) EvaluateDamage(ev *DamageEvent) Verdict { return p.must(ev) }

// EvaluateBreak проверяет разрушение блока
func (p *Pipeline) EvaluateBreak(ev *BreakEvent) Verdict { return p.must(ev) }

// EvaluatePlace проверяет установку блока
func (p *Pipeline) EvaluatePlace(ev *PlaceEvent) Verdict { return p.must(ev) }

// EvaluateFlow проверяет течение жидкости
func (p *Pipeline) EvaluateFlow(ev *FlowEvent) Verdict { return p.must(ev) }

// EvaluateIgnite проверяет возгорание
func (p *Pipeline) EvaluateIgnite(ev *IgniteEvent) Verdict { return p.must(ev) }

// EvaluateBurn проверяет сгорание блока
func (p *Pipeline) EvaluateBurn(ev *BurnEvent) Verdict { return p.must(ev) }

// EvaluatePhysics проверяет обновление физики
func (p *Pipeline) EvaluatePhysics(ev *PhysicsEvent) Verdict { return p.must(ev) }

// EvaluateRedstone проверяет изменение сигнала (запретов нет)
func (p *Pipeline) EvaluateRedstone(ev *RedstoneEvent) Verdict { return p.must(ev) }

// EvaluateSignChange проверяет текст таблички
func (p *Pipeline) EvaluateSignChange(ev *SignChangeEvent) Verdict { return p.must(ev) }

// EvaluateLeavesDecay проверяет осыпание листвы
func (p *Pipeline) EvaluateLeavesDecay(ev *LeavesDecayEvent) Verdict { return p.must(ev) }

// EvaluateForm проверяет образование льда и снега
func (p *Pipeline) EvaluateForm(ev *FormEvent) Verdict { return p.must(ev) }

// EvaluateSpread проверяет распространение грибов
func (p *Pipeline) EvaluateSpread(ev *SpreadEvent) Verdict { return p.must(ev) }

// EvaluateFade проверяет таяние льда и снега
func (p *Pipeline) EvaluateFade(ev *FadeEvent) Verdict { return p.must(ev) }

// EvaluatePistonExtend проверяет выдвижение поршня
func (p *Pipeline) EvaluatePistonExtend(ev *PistonExtendEvent) Verdict { return p.must(ev) }

// EvaluatePistonRetract проверяет втягивание поршня
func (p *Pipeline) EvaluatePistonRetract(ev *PistonRetractEvent) Verdict { return p.must(ev) }

// must вызывается только для известных категорий
func (p *Pipeline) must(ev Event) Verdict {
	v, _ := p.Evaluate(ev)
	return v
}

// Handle проверяет событие и применяет результат: при запрете отменяет событие,
// сообщает игроку и пишет аудит; при разрешении запускает губки.
func (p *Pipeline) Handle(ev Event) (Verdict, error) {
	return p.HandleWith(ev, p.messenger)
}

// HandleWith работает как Handle, но доставляет сообщения через m
func (p *Pipeline) HandleWith(ev Event, m Messenger) (Verdict, error) {
	if ev.Cancelled() {
		return Allow, nil
	}

	start := time.Now()
	v, s, err := p.evaluate(ev)
	if err != nil {
		return v, err
	}

	actor := ev.Initiator()
	if v.Vetoed {
		ev.SetCancelled(true)
		if v.Message != "" {
			p.notify(m, actor, v.Message)
		}
		if p.auditor != nil {
			p.auditor.Veto(VetoRecord{
				World:    s.name,
				Category: ev.Category(),
				Check:    v.Check,
				Pos:      ev.Position(),
				Actor:    actor.DisplayName(),
				Message:  v.Message,
				DropSign: v.DropSign,
			})
		}
		p.logger.Debug("veto %s/%s in %s at %s", ev.Category(), v.Check, s.name, ev.Position())
	} else {
		v.Changes = p.afterAllow(s, ev)
	}
	for _, n := range v.Notices {
		p.notify(m, actor, n)
	}

	p.metrics.observe(ev.Category(), v, time.Since(start).Seconds())
	return v, nil
}

func (p *Pipeline) notify(m Messenger, actor *Actor, text string) {
	if actor == nil {
		return
	}
	if err := m.Notify(actor, text); err != nil {
		p.logger.Debug("notify %s failed: %v", actor.Name, err)
	}
}

type signWriter interface {
	SetSign(pos vec.Vec3, id block.ID, lines [4]string)
}

type powerWriter interface {
	SetPowered(pos vec.Vec3, powered bool)
}

// BlockChange описывает клетку, которую сервис изменил в мире, а хост должен повторить
type BlockChange struct {
	Pos vec.Vec3 `json:"pos"`
	ID  block.ID `json:"id"`
}

// changeRecorder записывает изменения клеток, сделанные через него в сетке
type changeRecorder struct {
	world.Grid
	changes []BlockChange
}

func (r *changeRecorder) SetBlock(pos vec.Vec3, id block.ID) {
	r.Grid.SetBlock(pos, id)
	r.changes = append(r.changes, BlockChange{Pos: pos, ID: id})
}

// take возвращает изменения, накопленные с прошлого вызова
func (r *changeRecorder) take() []BlockChange {
	out := r.changes
	r.changes = nil
	return out
}

// afterAllow выполняет действия после разрешения: зеркалирование мира и губки.
// Возвращает клетки, изменённые губками.
func (p *Pipeline) afterAllow(s *Scope, ev Event) []BlockChange {
	if s.Grid == nil {
		return nil
	}
	w := s.World
	rec := &changeRecorder{Grid: s.Grid}
	var changes []BlockChange

	switch e := ev.(type) {
	case *PlaceEvent:
		if p.mirror {
			s.Grid.SetBlock(e.Pos, e.BlockID)
		}
		if w.SimulateSponge && e.BlockID == block.Sponge {
			changes = p.spongeChanged(s, e.Pos, p.sponge.OnPlace(rec, e.Pos, s.spongeSettings()), rec.take())
		}
	case *BreakEvent:
		if p.mirror {
			s.Grid.SetBlock(e.Pos, block.Air)
		}
	case *SignChangeEvent:
		if sw, ok := s.Grid.(signWriter); ok && p.mirror {
			sw.SetSign(e.Pos, e.BlockID, e.Lines)
		}
	case *RedstoneEvent:
		if !w.SimulateSponge || !w.RedstoneSponges {
			return nil
		}
		if pw, ok := s.Grid.(powerWriter); ok && p.mirror {
			powered := e.NewCurrent > 0
			e.Pos.CubeRange(1, func(n vec.Vec3) bool {
				if s.Grid.Block(n) == block.Sponge {
					pw.SetPowered(n, powered)
				}
				return true
			})
		}
		changes = p.spongeChanged(s, e.Pos, p.sponge.OnRedstone(rec, e.Pos, s.spongeSettings()), rec.take())
	default:
		if p.mirror {
			mirrorNatural(s.Grid, ev)
		}
	}
	return changes
}

// mirrorNatural повторяет в сетке результат разрешённого природного события.
// Физика и поршни не зеркалируются: событие не содержит итогового состояния клеток.
func mirrorNatural(g world.Grid, ev Event) {
	switch e := ev.(type) {
	case *FlowEvent:
		switch {
		case block.IsWater(e.FromID):
			g.SetBlock(e.To, block.Water)
		case block.IsLava(e.FromID):
			g.SetBlock(e.To, block.Lava)
		}
	case *FormEvent:
		g.SetBlock(e.Pos, e.NewID)
	case *SpreadEvent:
		g.SetBlock(e.Pos, e.NewID)
	case *FadeEvent:
		if e.BlockID == block.Ice {
			g.SetBlock(e.Pos, block.Water)
		} else {
			g.SetBlock(e.Pos, block.Air)
		}
	case *BurnEvent, *LeavesDecayEvent:
		g.SetBlock(ev.Position(), block.Air)
	}
}

func (p *Pipeline) spongeChanged(s *Scope, pos vec.Vec3, cells int, changes []BlockChange) []BlockChange {
	if cells == 0 || p.auditor == nil {
		return changes
	}
	p.auditor.Sponge(SpongeRecord{World: s.name, Pos: pos, Cells: cells, Changes: changes})
	return changes
}

// Worlds возвращает источник сеток (для административных операций)
func (p *Pipeline) Worlds() GridSource { return p.worlds }

// Policies возвращает реестр политик
func (p *Pipeline) Policies() *policy.Registry { return p.policies }

// State возвращает административные переключатели
func (p *Pipeline) State() *policy.GlobalState { return p.state }
