package block

import (
	"fmt"
	"strconv"
	"strings"
)

// ID представляет идентификатор типа блока или предмета
type ID uint16

// Константы ID блоков (числовая схема классического воксельного мира)
const (
	Air             ID = 0
	Stone           ID = 1
	Grass           ID = 2
	Dirt            ID = 3
	Cobblestone     ID = 4
	Wood            ID = 5
	Sapling         ID = 6
	Water           ID = 8  // Текущая вода
	StationaryWater ID = 9  // Стоячая вода
	Lava            ID = 10 // Текущая лава
	StationaryLava  ID = 11 // Стоячая лава
	Sand            ID = 12
	Gravel          ID = 13
	Log             ID = 17
	Leaves          ID = 18
	Sponge          ID = 19
	Glass           ID = 20
	Wool            ID = 35
	BrownMushroom   ID = 39
	RedMushroom     ID = 40
	DoubleStep      ID = 43
	Step            ID = 44
	TNT             ID = 46
	Bookshelf       ID = 47
	Torch           ID = 50
	Fire            ID = 51
	WoodenStairs    ID = 53
	Chest           ID = 54
	RedstoneWire    ID = 55
	Crops           ID = 59
	Soil            ID = 60
	Furnace         ID = 61
	BurningFurnace  ID = 62
	SignPost        ID = 63
	WoodenDoor      ID = 64
	Ladder          ID = 65
	Rails           ID = 66
	CobbleStairs    ID = 67
	WallSign        ID = 68
	Lever           ID = 69
	IronDoor        ID = 71
	RedstoneTorch   ID = 76
	StoneButton     ID = 77
	Snow            ID = 78
	Ice             ID = 79
	SnowBlock       ID = 80
	Cactus          ID = 81
	Reed            ID = 83
	Netherrack      ID = 87
	Pumpkin         ID = 86
	Portal          ID = 90
	JackOLantern    ID = 91
	Cake            ID = 92
	Repeater        ID = 93
	PoweredRepeater ID = 94
	Piston          ID = 33
	StickyPiston    ID = 29
)

// Константы ID предметов (начиная с 256)
const (
	IronShovel    ID = 256
	IronPickaxe   ID = 257
	FlintAndSteel ID = 259
	Coal          ID = 263
	DiamondSword  ID = 276
	DiamondPick   ID = 278
	InkSack       ID = 351
	Map           ID = 358
	Shears        ID = 359
	Potion        ID = 373
	SpawnEgg      ID = 383
)

// Info описывает свойства типа блока
type Info struct {
	ID       ID
	Name     string
	UsesData bool // Значение data у блока несёт состояние (ориентация, уровень)
}

var registry = make(map[ID]Info)

// Register добавляет описание блока в регистр
func Register(info Info) {
	registry[info.ID] = info
}

// Get возвращает описание для указанного ID
func Get(id ID) (Info, bool) {
	info, exists := registry[id]
	return info, exists
}

// IsValid проверяет, является ли ID зарегистрированным идентификатором блока
func IsValid(id ID) bool {
	_, exists := registry[id]
	return exists
}

// Name возвращает имя блока или его числовое значение
func (id ID) Name() string {
	if info, ok := registry[id]; ok {
		return info.Name
	}
	return strconv.Itoa(int(id))
}

// String реализует fmt.Stringer
func (id ID) String() string {
	return id.Name()
}

// Parse разбирает ID по имени блока или числу
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(s, 10, 16); err == nil {
		return ID(n), nil
	}
	name := strings.ToLower(s)
	for id, info := range registry {
		if info.Name == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("неизвестный блок %q", s)
}

func init() {
	for _, info := range []Info{
		{Air, "air", false},
		{Stone, "stone", false},
		{Grass, "grass", false},
		{Dirt, "dirt", false},
		{Cobblestone, "cobblestone", false},
		{Wood, "wood", false},
		{Sapling, "sapling", true},
		{Water, "water", true},
		{StationaryWater, "stationary_water", true},
		{Lava, "lava", true},
		{StationaryLava, "stationary_lava", true},
		{Sand, "sand", false},
		{Gravel, "gravel", false},
		{Log, "log", true},
		{Leaves, "leaves", true},
		{Sponge, "sponge", false},
		{Glass, "glass", false},
		{StickyPiston, "sticky_piston", true},
		{Piston, "piston", true},
		{Wool, "wool", true},
		{BrownMushroom, "brown_mushroom", false},
		{RedMushroom, "red_mushroom", false},
		{DoubleStep, "double_step", true},
		{Step, "step", true},
		{TNT, "tnt", false},
		{Bookshelf, "bookshelf", false},
		{Torch, "torch", true},
		{Fire, "fire", true},
		{WoodenStairs, "wooden_stairs", true},
		{Chest, "chest", false},
		{RedstoneWire, "redstone_wire", true},
		{Crops, "crops", true},
		{Soil, "soil", true},
		{Furnace, "furnace", true},
		{BurningFurnace, "burning_furnace", true},
		{SignPost, "sign_post", true},
		{WoodenDoor, "wooden_door", true},
		{Ladder, "ladder", true},
		{Rails, "rails", true},
		{CobbleStairs, "cobble_stairs", true},
		{WallSign, "wall_sign", true},
		{Lever, "lever", true},
		{IronDoor, "iron_door", true},
		{RedstoneTorch, "redstone_torch", true},
		{StoneButton, "stone_button", true},
		{Snow, "snow", false},
		{Ice, "ice", false},
		{SnowBlock, "snow_block", false},
		{Cactus, "cactus", true},
		{Reed, "reed", true},
		{Pumpkin, "pumpkin", true},
		{Netherrack, "netherrack", false},
		{Portal, "portal", false},
		{JackOLantern, "jack_o_lantern", true},
		{Cake, "cake", true},
		{Repeater, "repeater", true},
		{PoweredRepeater, "powered_repeater", true},
	} {
		Register(info)
	}
}
