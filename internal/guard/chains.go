package guard

import (
	"strings"

	"github.com/annel0/blockguard/internal/blacklist"
	"github.com/annel0/blockguard/internal/chestlock"
	"github.com/annel0/blockguard/internal/region"
	"github.com/annel0/blockguard/internal/vec"
	"github.com/annel0/blockguard/internal/world/block"
)

func halted(s *Scope) bool { return s.Toggles.ActivityHalt }

var damageChain = Chain[*DamageEvent]{
	Category: CategoryDamage,
	Rules: []Rule[*DamageEvent]{
		{Name: "cake-build", Message: MsgTeaParty, Deny: func(s *Scope, ev *DamageEvent) bool {
			return ev.BlockID == block.Cake && s.cannotBuild(ev.Pos)
		}},
	},
}

var breakChain = Chain[*BreakEvent]{
	Category: CategoryBreak,
	Rules: []Rule[*BreakEvent]{
		{Name: "durability", Deny: func(s *Scope, ev *BreakEvent) bool {
			held := ev.Held
			if !s.World.ItemDurability && held != nil && held.TypeID > 0 &&
				!block.UsesDamageValue(held.TypeID) && !block.UsesData(held.TypeID) {
				held.Durability = InfiniteDurability
			}
			return false
		}},
		{Name: "build", Message: MsgNoPermission, Deny: func(s *Scope, ev *BreakEvent) bool {
			return s.cannotBuild(ev.Pos)
		}},
		{Name: "blacklist-break", Deny: func(s *Scope, ev *BreakEvent) bool {
			return s.blacklistDenies(blacklist.KindBreak, ev.Pos, ev.BlockID)
		}},
		{Name: "blacklist-destroy-with", Deny: func(s *Scope, ev *BreakEvent) bool {
			var held block.ID
			if ev.Held != nil {
				held = ev.Held.TypeID
			}
			return s.blacklistDenies(blacklist.KindDestroyWith, ev.Pos, held)
		}},
		{Name: "chest-protected", Message: MsgChestProtected, Deny: func(s *Scope, ev *BreakEvent) bool {
			return s.World.SignChestProtection && !s.hasPermission(PermOverrideChest) &&
				s.chestQuery(s.p.chests.IsProtected, ev.Pos, ev.Actor.DisplayName())
		}},
	},
}

var placeChain = Chain[*PlaceEvent]{
	Category: CategoryPlace,
	Rules: []Rule[*PlaceEvent]{
		{Name: "build", Message: MsgNoPermission, Deny: func(s *Scope, ev *PlaceEvent) bool {
			return s.cannotBuild(ev.Pos)
		}},
		{Name: "blacklist-place", Deny: func(s *Scope, ev *PlaceEvent) bool {
			return s.blacklistDenies(blacklist.KindPlace, ev.Pos, ev.BlockID)
		}},
		{Name: "chest-adjacent", Message: MsgChestSpot, Deny: func(s *Scope, ev *PlaceEvent) bool {
			return s.World.SignChestProtection && s.p.chests.IsChest(ev.BlockID) &&
				s.chestQuery(s.p.chests.IsAdjacentProtected, ev.Pos, ev.Actor.DisplayName())
		}},
	},
}

var flowChain = Chain[*FlowEvent]{
	Category: CategoryFlow,
	Rules: []Rule[*FlowEvent]{
		{Name: "halt", Deny: func(s *Scope, _ *FlowEvent) bool { return halted(s) }},
		{Name: "sponge", Deny: func(s *Scope, ev *FlowEvent) bool {
			return s.World.SimulateSponge && block.IsFluid(ev.FromID) && s.Grid != nil &&
				s.p.sponge.Absorbs(s.Grid, ev.To, s.spongeSettings())
		}},
		{Name: "water-damage", Deny: func(s *Scope, ev *FlowEvent) bool {
			set := s.World.PreventWaterDamage
			return set.Len() > 0 && (ev.FromID == block.Air || block.IsWater(ev.FromID)) &&
				set.Contains(ev.ToID)
		}},
		{Name: "lava-spread", Deny: func(s *Scope, ev *FlowEvent) bool {
			set := s.World.AllowedLavaSpreadOver
			return set.Len() > 0 && block.IsLava(ev.FromID) && !set.Contains(s.HostBlock(ev.BelowID, ev.To.Below()))
		}},
		{Name: "water-flow-flag", Deny: func(s *Scope, ev *FlowEvent) bool {
			return s.World.HighFreqFlags && block.IsWater(ev.FromID) && s.regionDenies(region.FlagWaterFlow, ev.Pos)
		}},
		{Name: "lava-flow-flag", Deny: func(s *Scope, ev *FlowEvent) bool {
			return s.World.HighFreqFlags && block.IsLava(ev.FromID) && s.regionDenies(region.FlagLavaFlow, ev.Pos)
		}},
	},
}

// playerLighter сообщает о поджоге огнивом игроком без обхода регионов
func playerLighter(s *Scope, ev *IgniteEvent) bool {
	return ev.Cause == IgniteFlintAndSteel && ev.Actor != nil && !s.hasBypass()
}

// fireNeighbors возвращает блоки под огнём и по четырём сторонам
func fireNeighbors(s *Scope, ev *IgniteEvent) [5]block.ID {
	if n := ev.Neighbors; n != nil {
		return [5]block.ID{n.Below, n.East, n.West, n.North, n.South}
	}
	var ids [5]block.ID
	for i, pos := range [5]vec.Vec3{ev.Pos.Below(), ev.Pos.Add(vec.PosX), ev.Pos.Add(vec.NegX), ev.Pos.Add(vec.NegZ), ev.Pos.Add(vec.PosZ)} {
		ids[i] = s.Block(pos)
	}
	return ids
}

var igniteChain = Chain[*IgniteEvent]{
	Category: CategoryIgnite,
	Rules: []Rule[*IgniteEvent]{
		{Name: "halt", Deny: func(s *Scope, _ *IgniteEvent) bool { return halted(s) }},
		{Name: "lightning", Deny: func(s *Scope, ev *IgniteEvent) bool {
			return s.World.PreventLightningFire && ev.Cause == IgniteLightning
		}},
		{Name: "lava", Deny: func(s *Scope, ev *IgniteEvent) bool {
			return s.World.PreventLavaFire && ev.Cause == IgniteLava
		}},
		{Name: "fire-spread", Deny: func(s *Scope, ev *IgniteEvent) bool {
			return s.World.DisableFireSpread && ev.Cause == IgniteSpread
		}},
		{Name: "lighter", Deny: func(s *Scope, ev *IgniteEvent) bool {
			return s.World.BlockLighter && ev.Cause == IgniteFlintAndSteel && ev.Actor != nil &&
				!s.hasPermission(PermOverrideLighter)
		}},
		{Name: "fire-toggle", Deny: func(s *Scope, ev *IgniteEvent) bool {
			return s.Toggles.FireSpreadHalted && ev.Cause == IgniteSpread
		}},
		{Name: "fire-spread-blocks", Deny: func(s *Scope, ev *IgniteEvent) bool {
			set := s.World.DisableFireSpreadBlocks
			if set.Len() == 0 || ev.Cause != IgniteSpread {
				return false
			}
			for _, id := range fireNeighbors(s, ev) {
				if set.Contains(id) {
					return true
				}
			}
			return false
		}},
		{Name: "build", Deny: func(s *Scope, ev *IgniteEvent) bool {
			return s.World.UseRegions && playerLighter(s, ev) && s.cannotBuild(ev.Pos)
		}},
		{Name: "lighter-flag", Deny: func(s *Scope, ev *IgniteEvent) bool {
			return s.World.UseRegions && playerLighter(s, ev) &&
				s.regionDenies(region.FlagLighter, ev.Pos) && !s.hasPermission(PermOverrideLighter)
		}},
		{Name: "fire-spread-flag", Deny: func(s *Scope, ev *IgniteEvent) bool {
			return s.World.HighFreqFlags && ev.Cause == IgniteSpread && s.regionDenies(region.FlagFireSpread, ev.Pos)
		}},
		{Name: "lava-fire-flag", Deny: func(s *Scope, ev *IgniteEvent) bool {
			return s.World.HighFreqFlags && ev.Cause == IgniteLava && s.regionDenies(region.FlagLavaFire, ev.Pos)
		}},
	},
}

var burnChain = Chain[*BurnEvent]{
	Category: CategoryBurn,
	Rules: []Rule[*BurnEvent]{
		{Name: "halt", Deny: func(s *Scope, _ *BurnEvent) bool { return halted(s) }},
		{Name: "fire-spread", Deny: func(s *Scope, _ *BurnEvent) bool { return s.World.DisableFireSpread }},
		{Name: "fire-toggle", Deny: func(s *Scope, _ *BurnEvent) bool { return s.Toggles.FireSpreadHalted }},
		{Name: "fire-spread-blocks", Deny: func(s *Scope, ev *BurnEvent) bool {
			return s.World.DisableFireSpreadBlocks.Contains(ev.BlockID)
		}},
		{Name: "chest-protected", Deny: func(s *Scope, ev *BurnEvent) bool {
			return s.World.SignChestProtection && s.chestQuery(s.p.chests.IsProtected, ev.Pos, "")
		}},
		{Name: "fire-spread-flag", Deny: func(s *Scope, ev *BurnEvent) bool {
			return s.regionDenies(region.FlagFireSpread, ev.Pos)
		}},
	},
}

var physicsChain = Chain[*PhysicsEvent]{
	Category: CategoryPhysics,
	Rules: []Rule[*PhysicsEvent]{
		{Name: "halt", Deny: func(s *Scope, _ *PhysicsEvent) bool { return halted(s) }},
		{Name: "sign-update-flag", Deny: func(s *Scope, ev *PhysicsEvent) bool {
			return block.IsSign(ev.BlockID) && s.regionDenies(region.FlagSignUpdate, ev.Pos)
		}},
		{Name: "gravel", Deny: func(s *Scope, ev *PhysicsEvent) bool {
			return ev.ChangedID == block.Gravel && s.World.NoPhysicsGravel
		}},
		{Name: "sand", Deny: func(s *Scope, ev *PhysicsEvent) bool {
			return ev.ChangedID == block.Sand && s.World.NoPhysicsSand
		}},
		{Name: "portal", Deny: func(s *Scope, ev *PhysicsEvent) bool {
			return ev.ChangedID == block.Portal && s.World.AllowPortalAnywhere
		}},
	},
}

// Редстоун ничего не запрещает; губки пересчитываются после разрешения
var redstoneChain = Chain[*RedstoneEvent]{Category: CategoryRedstone}

// lockSign сообщает, что игрок пишет табличку замка
func lockSign(ev *SignChangeEvent) bool {
	return chestlock.IsLockLine(ev.Lines[0])
}

func protectedLock(s *Scope, ev *SignChangeEvent) bool {
	return s.World.SignChestProtection && lockSign(ev)
}

var signChangeChain = Chain[*SignChangeEvent]{
	Category: CategorySignChange,
	Rules: []Rule[*SignChangeEvent]{
		{Name: "lock-owner", Message: MsgNotChestOwner, DropSign: true, Deny: func(s *Scope, ev *SignChangeEvent) bool {
			return protectedLock(s, ev) && s.chestQuery(s.p.chests.IsPlacementProtected, ev.Pos, ev.Actor.DisplayName())
		}},
		{Name: "lock-sign-post", Message: MsgLockWallSign, DropSign: true, Deny: func(s *Scope, ev *SignChangeEvent) bool {
			return protectedLock(s, ev) && ev.BlockID != block.SignPost
		}},
		{Name: "lock-owner-line", Message: MsgLockOwnerLine, DropSign: true, Deny: func(s *Scope, ev *SignChangeEvent) bool {
			return protectedLock(s, ev) && !strings.EqualFold(ev.Lines[1], ev.Actor.DisplayName())
		}},
		{Name: "lock-support", Message: MsgLockUnsafe, DropSign: true, Deny: func(s *Scope, ev *SignChangeEvent) bool {
			return protectedLock(s, ev) && block.IsUnsafeSupport(s.HostBlock(ev.BelowID, ev.Pos.Below()))
		}},
		{Name: "lock-accept", Deny: func(s *Scope, ev *SignChangeEvent) bool {
			if protectedLock(s, ev) {
				ev.Lines[0] = chestlock.LockTag
				s.Notify(MsgLockAccepted)
			}
			return false
		}},
		{Name: "lock-disabled", Message: MsgLockDisabled, DropSign: true, Deny: func(s *Scope, ev *SignChangeEvent) bool {
			return !s.World.SignChestProtection && lockSign(ev)
		}},
		{Name: "build", Message: MsgNoPermission, Deny: func(s *Scope, ev *SignChangeEvent) bool {
			return s.cannotBuild(ev.Pos)
		}},
	},
}

var leavesDecayChain = Chain[*LeavesDecayEvent]{
	Category: CategoryLeavesDecay,
	Rules: []Rule[*LeavesDecayEvent]{
		{Name: "halt", Deny: func(s *Scope, _ *LeavesDecayEvent) bool { return halted(s) }},
		{Name: "leaf-decay", Deny: func(s *Scope, _ *LeavesDecayEvent) bool { return s.World.DisableLeafDecay }},
		{Name: "leaf-decay-flag", Deny: func(s *Scope, ev *LeavesDecayEvent) bool {
			return s.regionDenies(region.FlagLeafDecay, ev.Pos)
		}},
	},
}

var formChain = Chain[*FormEvent]{
	Category: CategoryForm,
	Rules: []Rule[*FormEvent]{
		{Name: "halt", Deny: func(s *Scope, _ *FormEvent) bool { return halted(s) }},
		{Name: "ice-form", Deny: func(s *Scope, ev *FormEvent) bool {
			return ev.NewID == block.Ice && s.World.DisableIceFormation
		}},
		{Name: "ice-form-flag", Deny: func(s *Scope, ev *FormEvent) bool {
			return ev.NewID == block.Ice && s.regionDenies(region.FlagIceForm, ev.Pos)
		}},
		{Name: "snow-fall", Deny: func(s *Scope, ev *FormEvent) bool {
			return ev.NewID == block.Snow && s.World.DisableSnowFormation
		}},
		{Name: "snow-fall-flag", Deny: func(s *Scope, ev *FormEvent) bool {
			return ev.NewID == block.Snow && s.regionDenies(region.FlagSnowFall, ev.Pos)
		}},
	},
}

var spreadChain = Chain[*SpreadEvent]{
	Category: CategorySpread,
	Rules: []Rule[*SpreadEvent]{
		{Name: "halt", Deny: func(s *Scope, _ *SpreadEvent) bool { return halted(s) }},
		{Name: "mushroom-spread", Deny: func(s *Scope, ev *SpreadEvent) bool {
			return block.IsMushroom(ev.SourceID) && s.World.DisableMushroomSpread
		}},
		{Name: "mushroom-flag", Deny: func(s *Scope, ev *SpreadEvent) bool {
			return block.IsMushroom(ev.SourceID) && s.regionDenies(region.FlagMushrooms, ev.Pos)
		}},
	},
}

var fadeChain = Chain[*FadeEvent]{
	Category: CategoryFade,
	Rules: []Rule[*FadeEvent]{
		{Name: "ice-melt", Deny: func(s *Scope, ev *FadeEvent) bool {
			return ev.BlockID == block.Ice && s.World.DisableIceMelting
		}},
		{Name: "ice-melt-flag", Deny: func(s *Scope, ev *FadeEvent) bool {
			return ev.BlockID == block.Ice && s.regionDenies(region.FlagIceMelt, ev.Pos)
		}},
		{Name: "snow-melt", Deny: func(s *Scope, ev *FadeEvent) bool {
			return ev.BlockID == block.Snow && s.World.DisableSnowMelting
		}},
		{Name: "snow-melt-flag", Deny: func(s *Scope, ev *FadeEvent) bool {
			return ev.BlockID == block.Snow && s.regionDenies(region.FlagSnowMelt, ev.Pos)
		}},
	},
}

var pistonExtendChain = Chain[*PistonExtendEvent]{
	Category: CategoryPistonExtend,
	Rules: []Rule[*PistonExtendEvent]{
		{Name: "pistons-flag", Deny: func(s *Scope, ev *PistonExtendEvent) bool {
			if s.regionDenies(region.FlagPistons, ev.Pos) {
				return true
			}
			for _, p := range ev.Moved {
				if s.regionDenies(region.FlagPistons, p) {
					return true
				}
			}
			return false
		}},
	},
}

var pistonRetractChain = Chain[*PistonRetractEvent]{
	Category: CategoryPistonRetract,
	Rules: []Rule[*PistonRetractEvent]{
		{Name: "pistons-flag", Deny: func(s *Scope, ev *PistonRetractEvent) bool {
			return ev.Sticky && s.regionDenies(region.FlagPistons, ev.RetractTo) &&
				s.regionDenies(region.FlagPistons, ev.Pos)
		}},
	},
}

// ChainNames возвращает порядок проверок категории
func ChainNames(c Category) []string {
	switch c {
	case CategoryDamage:
		return damageChain.Names()
	case CategoryBreak:
		return breakChain.Names()
	case CategoryPlace:
		return placeChain.Names()
	case CategoryFlow:
		return flowChain.Names()
	case CategoryIgnite:
		return igniteChain.Names()
	case CategoryBurn:
		return burnChain.Names()
	case CategoryPhysics:
		return physicsChain.Names()
	case CategoryRedstone:
		return redstoneChain.Names()
	case CategorySignChange:
		return signChangeChain.Names()
	case CategoryLeavesDecay:
		return leavesDecayChain.Names()
	case CategoryForm:
		return formChain.Names()
	case CategorySpread:
		return spreadChain.Names()
	case CategoryFade:
		return fadeChain.Names()
	case CategoryPistonExtend:
		return pistonExtendChain.Names()
	case CategoryPistonRetract:
		return pistonRetractChain.Names()
	}
	return nil
}
