package guard

import (
	"github.com/annel0/blockguard/internal/vec"
	"github.com/annel0/blockguard/internal/world/block"
)

// Category определяет категорию события мира
type Category string

const (
	CategoryDamage        Category = "damage"
	CategoryBreak         Category = "break"
	CategoryPlace         Category = "place"
	CategoryFlow          Category = "flow"
	CategoryIgnite        Category = "ignite"
	CategoryBurn          Category = "burn"
	CategoryPhysics       Category = "physics"
	CategoryRedstone      Category = "redstone"
	CategorySignChange    Category = "sign-change"
	CategoryLeavesDecay   Category = "leaves-decay"
	CategoryForm          Category = "form"
	CategorySpread        Category = "spread"
	CategoryFade          Category = "fade"
	CategoryPistonExtend  Category = "piston-extend"
	CategoryPistonRetract Category = "piston-retract"
)

// Categories перечисляет все категории в порядке документации
var Categories = []Category{
	CategoryDamage, CategoryBreak, CategoryPlace, CategoryFlow, CategoryIgnite,
	CategoryBurn, CategoryPhysics, CategoryRedstone, CategorySignChange,
	CategoryLeavesDecay, CategoryForm, CategorySpread, CategoryFade,
	CategoryPistonExtend, CategoryPistonRetract,
}

// Actor представляет игрока, вызвавшего событие. nil для природных событий.
type Actor struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions,omitempty"`
}

// DisplayName возвращает имя или пустую строку для nil
func (a *Actor) DisplayName() string {
	if a == nil {
		return ""
	}
	return a.Name
}

// Event представляет перехваченное событие мира до его применения
type Event interface {
	Category() Category
	WorldName() string
	Position() vec.Vec3
	Initiator() *Actor
	Cancelled() bool
	SetCancelled(bool)
}

// Base содержит общие поля всех событий
type Base struct {
	World  string   `json:"world"`
	Pos    vec.Vec3 `json:"pos"`
	Actor  *Actor   `json:"actor,omitempty"`
	Cancel bool     `json:"cancelled,omitempty"`
}

func (b *Base) WorldName() string    { return b.World }
func (b *Base) Position() vec.Vec3   { return b.Pos }
func (b *Base) Initiator() *Actor    { return b.Actor }
func (b *Base) Cancelled() bool      { return b.Cancel }
func (b *Base) SetCancelled(on bool) { b.Cancel = on }

// ItemStack описывает предмет в руке игрока
type ItemStack struct {
	TypeID     block.ID `json:"type_id"`
	Durability int16    `json:"durability"`
}

// InfiniteDurability обозначает прочность, при которой предмет не изнашивается
const InfiniteDurability int16 = -1

// DamageEvent: игрок повреждает блок (торт съедается без разрушения)
type DamageEvent struct {
	Base
	BlockID block.ID `json:"block_id"`
}

// BreakEvent: игрок ломает блок
type BreakEvent struct {
	Base
	BlockID block.ID   `json:"block_id"`
	Held    *ItemStack `json:"held,omitempty"`
}

// PlaceEvent: игрок ставит блок
type PlaceEvent struct {
	Base
	BlockID block.ID `json:"block_id"`
}

// FlowEvent: жидкость течёт из Pos в To.
// BelowID содержит блок хоста под To; без него блок читается из сетки.
type FlowEvent struct {
	Base
	FromID  block.ID  `json:"from_id"`
	To      vec.Vec3  `json:"to"`
	ToID    block.ID  `json:"to_id"`
	BelowID *block.ID `json:"below_id,omitempty"`
}

// IgniteCause определяет причину возгорания
type IgniteCause string

const (
	IgniteSpread        IgniteCause = "spread"
	IgniteLightning     IgniteCause = "lightning"
	IgniteLava          IgniteCause = "lava"
	IgniteFlintAndSteel IgniteCause = "flint_and_steel"
)

// FireNeighbors содержит блоки хоста под загорающимся блоком и по четырём сторонам
type FireNeighbors struct {
	Below block.ID `json:"below"`
	East  block.ID `json:"east"`  // +X
	West  block.ID `json:"west"`  // -X
	North block.ID `json:"north"` // -Z
	South block.ID `json:"south"` // +Z
}

// IgniteEvent: блок загорается
type IgniteEvent struct {
	Base
	Cause     IgniteCause    `json:"cause"`
	Neighbors *FireNeighbors `json:"neighbors,omitempty"`
}

// BurnEvent: блок сгорает
type BurnEvent struct {
	Base
	BlockID block.ID `json:"block_id"`
}

// PhysicsEvent: обновление физики блока
type PhysicsEvent struct {
	Base
	BlockID   block.ID `json:"block_id"`
	ChangedID block.ID `json:"changed_id"`
}

// RedstoneEvent: изменение сигнала редстоуна
type RedstoneEvent struct {
	Base
	OldCurrent int `json:"old_current"`
	NewCurrent int `json:"new_current"`
}

// SignChangeEvent: игрок пишет текст таблички.
// BelowID содержит блок хоста под табличкой.
type SignChangeEvent struct {
	Base
	BlockID block.ID  `json:"block_id"`
	Lines   [4]string `json:"lines"`
	BelowID *block.ID `json:"below_id,omitempty"`
}

// LeavesDecayEvent: листва осыпается
type LeavesDecayEvent struct {
	Base
}

// FormEvent: блок образуется (лёд, снег)
type FormEvent struct {
	Base
	NewID block.ID `json:"new_id"`
}

// SpreadEvent: блок распространяется (грибы)
type SpreadEvent struct {
	Base
	SourceID block.ID `json:"source_id"`
	NewID    block.ID `json:"new_id"`
}

// FadeEvent: блок тает
type FadeEvent struct {
	Base
	BlockID block.ID `json:"block_id"`
}

// PistonExtendEvent: поршень выдвигается, сдвигая блоки Moved
type PistonExtendEvent struct {
	Base
	Moved []vec.Vec3 `json:"moved,omitempty"`
}

// PistonRetractEvent: поршень втягивается
type PistonRetractEvent struct {
	Base
	RetractTo vec.Vec3 `json:"retract_to"`
	Sticky    bool     `json:"sticky"`
}

func (*DamageEvent) Category() Category        { return CategoryDamage }
func (*BreakEvent) Category() Category         { return CategoryBreak }
func (*PlaceEvent) Category() Category         { return CategoryPlace }
func (*FlowEvent) Category() Category          { return CategoryFlow }
func (*IgniteEvent) Category() Category        { return CategoryIgnite }
func (*BurnEvent) Category() Category          { return CategoryBurn }
func (*PhysicsEvent) Category() Category       { return CategoryPhysics }
func (*RedstoneEvent) Category() Category      { return CategoryRedstone }
func (*SignChangeEvent) Category() Category    { return CategorySignChange }
func (*LeavesDecayEvent) Category() Category   { return CategoryLeavesDecay }
func (*FormEvent) Category() Category          { return CategoryForm }
func (*SpreadEvent) Category() Category        { return CategorySpread }
func (*FadeEvent) Category() Category          { return CategoryFade }
func (*PistonExtendEvent) Category() Category  { return CategoryPistonExtend }
func (*PistonRetractEvent) Category() Category { return CategoryPistonRetract }
