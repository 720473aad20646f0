package block

// Category представляет семантическую категорию клетки с точки зрения политики
type Category uint8

const (
	CategoryOther Category = iota
	CategoryAir
	CategoryWater
	CategoryLava
	CategorySponge
)

// String возвращает строковое представление категории
func (c Category) String() string {
	switch c {
	case CategoryAir:
		return "air"
	case CategoryWater:
		return "water"
	case CategoryLava:
		return "lava"
	case CategorySponge:
		return "sponge"
	default:
		return "other"
	}
}

// Classify относит ID к категории. Функция чистая и определена для любого ID.
func Classify(id ID) Category {
	switch id {
	case Air:
		return CategoryAir
	case Water, StationaryWater:
		return CategoryWater
	case Lava, StationaryLava:
		return CategoryLava
	case Sponge:
		return CategorySponge
	default:
		return CategoryOther
	}
}

// IsWater сообщает, является ли блок водой (текущей или стоячей)
func IsWater(id ID) bool { return Classify(id) == CategoryWater }

// IsLava сообщает, является ли блок лавой (текущей или стоячей)
func IsLava(id ID) bool { return Classify(id) == CategoryLava }

// IsFluid сообщает, является ли блок жидкостью
func IsFluid(id ID) bool { return IsWater(id) || IsLava(id) }

// IsSign сообщает, является ли блок табличкой
func IsSign(id ID) bool { return id == SignPost || id == WallSign }

// IsMushroom сообщает, является ли блок грибом
func IsMushroom(id ID) bool { return id == RedMushroom || id == BrownMushroom }

// IsUnsafeSupport сообщает, что блок не может надёжно держать табличку замка
func IsUnsafeSupport(id ID) bool {
	switch id {
	case TNT, Sand, Gravel, SignPost:
		return true
	}
	return false
}

// UsesData сообщает, хранит ли блок состояние в значении data
func UsesData(id ID) bool {
	info, ok := registry[id]
	return ok && info.UsesData
}

// UsesDamageValue сообщает, использует ли предмет значение повреждения как вариант
func UsesDamageValue(id ID) bool {
	switch id {
	case Coal, InkSack, Map, Potion, SpawnEgg:
		return true
	}
	return false
}
