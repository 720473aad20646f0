package policy

import (
	"encoding/json"
	"errors"
	"sort"

	"github.com/annel0/blockguard/internal/world/block"
)

// IDSet представляет неизменяемое множество идентификаторов блоков
type IDSet map[block.ID]struct{}

// NewIDSet создаёт множество из перечисленных ID
func NewIDSet(ids ...block.ID) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains проверяет принадлежность ID множеству
func (s IDSet) Contains(id block.ID) bool {
	_, ok := s[id]
	return ok
}

// Clone возвращает независимую копию множества
func (s IDSet) Clone() IDSet {
	out := make(IDSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Len возвращает размер множества
func (s IDSet) Len() int { return len(s) }

// Slice возвращает отсортированный список ID
func (s IDSet) Slice() []block.ID {
	out := make([]block.ID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarshalJSON выводит множество списком имён блоков
func (s IDSet) MarshalJSON() ([]byte, error) {
	ids := s.Slice()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.String()
	}
	return json.Marshal(names)
}

// World представляет снимок конфигурации одного мира.
// После публикации в Registry снимок не изменяется.
type World struct {
	Name string `json:"name"`

	// Губка
	SpongeRadius    int  `json:"sponge_radius"`
	RedstoneSponges bool `json:"redstone_sponges"`
	SimulateSponge  bool `json:"simulate_sponge"`

	// Природные процессы
	DisableFireSpread     bool `json:"disable_fire_spread"`
	DisableLeafDecay      bool `json:"disable_leaf_decay"`
	DisableIceFormation   bool `json:"disable_ice_formation"`
	DisableSnowFormation  bool `json:"disable_snow_formation"`
	DisableMushroomSpread bool `json:"disable_mushroom_spread"`
	DisableIceMelting     bool `json:"disable_ice_melting"`
	DisableSnowMelting    bool `json:"disable_snow_melting"`

	// Физика
	NoPhysicsGravel     bool `json:"no_physics_gravel"`
	NoPhysicsSand       bool `json:"no_physics_sand"`
	AllowPortalAnywhere bool `json:"allow_portal_anywhere"`

	// Огонь
	PreventLightningFire bool `json:"prevent_lightning_fire"`
	PreventLavaFire      bool `json:"prevent_lava_fire"`
	BlockLighter         bool `json:"block_lighter"`

	PreventWaterDamage      IDSet `json:"prevent_water_damage"`
	AllowedLavaSpreadOver   IDSet `json:"allowed_lava_spread_over"`
	DisableFireSpreadBlocks IDSet `json:"disable_fire_spread_blocks"`

	UseRegions    bool `json:"use_regions"`
	HighFreqFlags bool `json:"high_freq_flags"`

	ItemDurability      bool `json:"item_durability"`
	SignChestProtection bool `json:"sign_chest_protection"`
}

// ErrNegativeSpongeRadius возвращается при отрицательном радиусе губки
var ErrNegativeSpongeRadius = errors.New("sponge radius must be >= 0")

// Defaults возвращает конфигурацию мира по умолчанию
func Defaults(name string) *World {
	return &World{
		Name:                    name,
		SpongeRadius:            3,
		UseRegions:              true,
		ItemDurability:          true,
		PreventWaterDamage:      NewIDSet(),
		AllowedLavaSpreadOver:   NewIDSet(),
		DisableFireSpreadBlocks: NewIDSet(),
	}
}

// Validate проверяет инварианты снимка
func (w *World) Validate() error {
	if w.SpongeRadius < 0 {
		return ErrNegativeSpongeRadius
	}
	return nil
}
