package guard

import (
	"encoding/json"
	"fmt"
)

// NewEvent создаёт пустое событие категории
func NewEvent(c Category) (Event, error) {
	switch c {
	case CategoryDamage:
		return &DamageEvent{}, nil
	case CategoryBreak:
		return &BreakEvent{}, nil
	case CategoryPlace:
		return &PlaceEvent{}, nil
	case CategoryFlow:
		return &FlowEvent{}, nil
	case CategoryIgnite:
		return &IgniteEvent{}, nil
	case CategoryBurn:
		return &BurnEvent{}, nil
	case CategoryPhysics:
		return &PhysicsEvent{}, nil
	case CategoryRedstone:
		return &RedstoneEvent{}, nil
	case CategorySignChange:
		return &SignChangeEvent{}, nil
	case CategoryLeavesDecay:
		return &LeavesDecayEvent{}, nil
	case CategoryForm:
		return &FormEvent{}, nil
	case CategorySpread:
		return &SpreadEvent{}, nil
	case CategoryFade:
		return &FadeEvent{}, nil
	case CategoryPistonExtend:
		return &PistonExtendEvent{}, nil
	case CategoryPistonRetract:
		return &PistonRetractEvent{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
}

// DecodeEvent разбирает событие категории из JSON
func DecodeEvent(c Category, data []byte) (Event, error) {
	ev, err := NewEvent(c)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("decode %s event: %w", c, err)
	}
	if ev.WorldName() == "" {
		return nil, fmt.Errorf("decode %s event: world is required", c)
	}
	return ev, nil
}
