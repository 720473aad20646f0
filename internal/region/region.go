// Package region содержит простую реализацию регионов: кубоиды с приоритетом,
// владельцами, участниками и флагами.
package region

import (
	"errors"
	"fmt"
	"strings"

	"github.com/annel0/blockguard/internal/vec"
)

// Flag определяет имя флага региона
type Flag string

// Флаги, используемые конвейером решений
const (
	FlagBuild      Flag = "build"
	FlagLighter    Flag = "lighter"
	FlagFireSpread Flag = "fire-spread"
	FlagLavaFire   Flag = "lava-fire"
	FlagWaterFlow  Flag = "water-flow"
	FlagLavaFlow   Flag = "lava-flow"
	FlagPistons    Flag = "pistons"
	FlagLeafDecay  Flag = "leaf-decay"
	FlagIceForm    Flag = "ice-form"
	FlagSnowFall   Flag = "snow-fall"
	FlagMushrooms  Flag = "mushrooms"
	FlagIceMelt    Flag = "ice-melt"
	FlagSnowMelt   Flag = "snow-melt"
	FlagSignUpdate Flag = "sign-update"
)

var knownFlags = map[Flag]struct{}{
	FlagBuild: {}, FlagLighter: {}, FlagFireSpread: {}, FlagLavaFire: {},
	FlagWaterFlow: {}, FlagLavaFlow: {}, FlagPistons: {}, FlagLeafDecay: {},
	FlagIceForm: {}, FlagSnowFall: {}, FlagMushrooms: {}, FlagIceMelt: {},
	FlagSnowMelt: {}, FlagSignUpdate: {},
}

// ErrUnknownFlag возвращается для флага, которого нет в списке известных
var ErrUnknownFlag = errors.New("unknown region flag")

// ParseFlag проверяет имя флага
func ParseFlag(s string) (Flag, error) {
	f := Flag(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := knownFlags[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFlag, s)
	}
	return f, nil
}

// State определяет значение флага в регионе
type State int8

const (
	Unset State = iota
	Allow
	Deny
)

// ParseState разбирает "allow"/"deny"
func ParseState(s string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "allow", "true":
		return Allow, nil
	case "deny", "false":
		return Deny, nil
	}
	return Unset, fmt.Errorf("invalid flag state %q", s)
}

func (s State) String() string {
	switch s {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	}
	return "unset"
}

// Region представляет кубоид мира с правами
type Region struct {
	ID       string
	Min      vec.Vec3
	Max      vec.Vec3
	Priority int
	Owners   []string
	Members  []string
	Flags    map[Flag]State
}

// New создаёт регион, нормализуя углы
func New(id string, a, b vec.Vec3) *Region {
	return &Region{
		ID:    id,
		Min:   vec.Vec3{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)},
		Max:   vec.Vec3{X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)},
		Flags: make(map[Flag]State),
	}
}

// Contains проверяет, что позиция внутри региона (границы включительно)
func (r *Region) Contains(p vec.Vec3) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X &&
		p.Y >= r.Min.Y && p.Y <= r.Max.Y &&
		p.Z >= r.Min.Z && p.Z <= r.Max.Z
}

// IsOwner проверяет владельца (без учёта регистра)
func (r *Region) IsOwner(name string) bool {
	return containsFold(r.Owners, name)
}

// IsMember проверяет участника; владелец тоже считается участником
func (r *Region) IsMember(name string) bool {
	return r.IsOwner(name) || containsFold(r.Members, name)
}

// SetFlag устанавливает значение флага
func (r *Region) SetFlag(f Flag, s State) {
	if r.Flags == nil {
		r.Flags = make(map[Flag]State)
	}
	r.Flags[f] = s
}

func containsFold(list []string, name string) bool {
	if name == "" {
		return false
	}
	for _, v := range list {
		if strings.EqualFold(v, name) {
			return true
		}
	}
	return false
}
