package game

import (
	"sort"

	"github.com/A2152225/MTGEDH-sub013/internal/game/counters"
)

// SBAKind names a category of state-based action.
type SBAKind string

const (
	SBAPlayerLifeLoss      SBAKind = "player_life_loss"
	SBAPlayerPoisoned      SBAKind = "player_poisoned"
	SBAPlayerCommanderDmg  SBAKind = "player_commander_damage"
	SBAPlayerEmptyDraw     SBAKind = "player_empty_draw"
	SBAZeroToughness       SBAKind = "zero_toughness"
	SBALethalDamage        SBAKind = "lethal_damage"
	SBADeathtouchDamage    SBAKind = "deathtouch_damage"
	SBALegendRule          SBAKind = "legend_rule"
	SBACounterAnnihilation SBAKind = "counter_annihilation"
	SBAAuraDetached        SBAKind = "aura_detached"
	SBAEquipmentDetached   SBAKind = "equipment_detached"
	SBAZeroLoyalty         SBAKind = "zero_loyalty"
)

// SBAAction is one pending correction produced by a check pass.
type SBAAction struct {
	Kind     SBAKind
	PlayerID string
	// PermanentIDs lists every permanent the check saw. For the
	// legend rule this includes the kept permanent as well; Doomed
	// lists the ones actually leaving.
	PermanentIDs []string
	Doomed       []string
	Amount       int
	Reason       string
}

// sbaCheck inspects one narrow slice of state and reports the actions
// it requires. Checks never mutate; the engine applies the whole
// batch afterwards.
type sbaCheck func(s *GameState) []SBAAction

// sbaCatalog is the fixed check catalog, evaluated in order every
// pass. Per rule 704.3 all applicable actions apply as a single batch.
var sbaCatalog = []sbaCheck{
	checkPlayerLife,
	checkEmptyDraw,
	checkPlayerPoison,
	checkCommanderDamage,
	checkZeroToughness,
	checkLethalDamage,
	checkDeathtouchDamage,
	checkLegendRule,
	checkCounterAnnihilation,
	checkAttachments,
	checkZeroLoyalty,
}

// CollectStateBasedActions evaluates every check against the current
// state and returns the combined batch. An empty result means the
// state is stable (the fixed point).
func CollectStateBasedActions(s *GameState) []SBAAction {
	var actions []SBAAction
	for _, check := range sbaCatalog {
		actions = append(actions, check(s)...)
	}
	return actions
}

// Rule 704.5a: a player with 0 or less life loses.
func checkPlayerLife(s *GameState) []SBAAction {
	var actions []SBAAction
	for _, id := range s.AlivePlayers() {
		if s.players[id].Life <= 0 {
			actions = append(actions, SBAAction{
				Kind:     SBAPlayerLifeLoss,
				PlayerID: id,
				Reason:   "life total is 0 or less",
			})
		}
	}
	return actions
}

// Rule 704.5b: a player who attempted to draw from an empty library
// loses.
func checkEmptyDraw(s *GameState) []SBAAction {
	var actions []SBAAction
	for _, id := range s.AlivePlayers() {
		if s.players[id].DrewFromEmpty {
			actions = append(actions, SBAAction{
				Kind:     SBAPlayerEmptyDraw,
				PlayerID: id,
				Reason:   "attempted to draw from an empty library",
			})
		}
	}
	return actions
}

// Rule 704.5c: ten or more poison counters.
func checkPlayerPoison(s *GameState) []SBAAction {
	var actions []SBAAction
	for _, id := range s.AlivePlayers() {
		if s.players[id].Poison >= 10 {
			actions = append(actions, SBAAction{
				Kind:     SBAPlayerPoisoned,
				PlayerID: id,
				Amount:   s.players[id].Poison,
				Reason:   "ten or more poison counters",
			})
		}
	}
	return actions
}

// Rule 704.5v: 21 or more combat damage from a single commander.
func checkCommanderDamage(s *GameState) []SBAAction {
	var actions []SBAAction
	for _, id := range s.AlivePlayers() {
		ps := s.players[id]
		commanderIDs := make([]string, 0, len(ps.CommanderDamage))
		for cid := range ps.CommanderDamage {
			commanderIDs = append(commanderIDs, cid)
		}
		sort.Strings(commanderIDs)
		for _, cid := range commanderIDs {
			if ps.CommanderDamage[cid] >= 21 {
				actions = append(actions, SBAAction{
					Kind:     SBAPlayerCommanderDmg,
					PlayerID: id,
					Amount:   ps.CommanderDamage[cid],
					Reason:   "21 or more combat damage from commander " + cid,
				})
				break
			}
		}
	}
	return actions
}

// Rule 704.5f: toughness 0 or less puts the creature into its owner's
// graveyard. This is its own check; the damage checks below skip such
// creatures so one death is never reported twice.
func checkZeroToughness(s *GameState) []SBAAction {
	var actions []SBAAction
	for _, perm := range s.Battlefield() {
		if perm.IsCreature() && perm.CurrentToughness() <= 0 {
			actions = append(actions, SBAAction{
				Kind:         SBAZeroToughness,
				PermanentIDs: []string{perm.ID},
				Doomed:       []string{perm.ID},
				Reason:       "toughness is 0 or less",
			})
		}
	}
	return actions
}

// Rule 704.5g: lethal damage destroys the creature.
func checkLethalDamage(s *GameState) []SBAAction {
	var actions []SBAAction
	for _, perm := range s.Battlefield() {
		if !perm.IsCreature() || perm.CurrentToughness() <= 0 {
			continue
		}
		if perm.Damage >= perm.CurrentToughness() {
			actions = append(actions, SBAAction{
				Kind:         SBALethalDamage,
				PermanentIDs: []string{perm.ID},
				Doomed:       []string{perm.ID},
				Amount:       perm.Damage,
				Reason:       "lethal damage",
			})
		}
	}
	return actions
}

// Rule 704.5h: any damage from a deathtouch source destroys.
func checkDeathtouchDamage(s *GameState) []SBAAction {
	var actions []SBAAction
	for _, perm := range s.Battlefield() {
		if !perm.IsCreature() || perm.CurrentToughness() <= 0 {
			continue
		}
		if perm.Deathtouched && perm.Damage > 0 && perm.Damage < perm.CurrentToughness() {
			actions = append(actions, SBAAction{
				Kind:         SBADeathtouchDamage,
				PermanentIDs: []string{perm.ID},
				Doomed:       []string{perm.ID},
				Amount:       perm.Damage,
				Reason:       "damage from a deathtouch source",
			})
		}
	}
	return actions
}

// Rule 704.5j: two or more legendary permanents with the same name
// under the same controller. The action lists every duplicate; the
// oldest by battlefield arrival stays, a deterministic stand-in for
// the owner's choice.
func checkLegendRule(s *GameState) []SBAAction {
	groups := make(map[string][]*Permanent)
	var order []string
	for _, perm := range s.Battlefield() {
		if !perm.Card.Legendary {
			continue
		}
		key := perm.Controller + "\x00" + perm.Card.Name
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], perm)
	}
	var actions []SBAAction
	for _, key := range order {
		perms := groups[key]
		if len(perms) < 2 {
			continue
		}
		sort.SliceStable(perms, func(i, j int) bool {
			return perms[i].EnteredSeq < perms[j].EnteredSeq
		})
		all := make([]string, len(perms))
		for i, p := range perms {
			all[i] = p.ID
		}
		actions = append(actions, SBAAction{
			Kind:         SBALegendRule,
			PermanentIDs: all,
			Doomed:       all[1:],
			Reason:       "legend rule",
		})
	}
	return actions
}

// Rule 704.5q: +1/+1 and -1/-1 counters annihilate in pairs.
func checkCounterAnnihilation(s *GameState) []SBAAction {
	var actions []SBAAction
	for _, perm := range s.Battlefield() {
		plus := perm.Counters.GetCount(counters.PlusOnePlusOne)
		minus := perm.Counters.GetCount(counters.MinusOneMinusOne)
		if plus > 0 && minus > 0 {
			n := plus
			if minus < n {
				n = minus
			}
			actions = append(actions, SBAAction{
				Kind:         SBACounterAnnihilation,
				PermanentIDs: []string{perm.ID},
				Amount:       n,
				Reason:       "+1/+1 and -1/-1 counters annihilate",
			})
		}
	}
	return actions
}

// Rules 704.5m and 704.5p: auras attached to nothing go to the
// graveyard; equipment attached to nothing merely unattaches.
func checkAttachments(s *GameState) []SBAAction {
	var actions []SBAAction
	for _, perm := range s.Battlefield() {
		switch {
		case perm.Aura:
			if perm.AttachedTo == "" || !s.PermanentOnBattlefield(perm.AttachedTo) {
				actions = append(actions, SBAAction{
					Kind:         SBAAuraDetached,
					PermanentIDs: []string{perm.ID},
					Doomed:       []string{perm.ID},
					Reason:       "aura is not attached to a permanent",
				})
			}
		case perm.Equipment:
			if perm.AttachedTo != "" && !s.PermanentOnBattlefield(perm.AttachedTo) {
				actions = append(actions, SBAAction{
					Kind:         SBAEquipmentDetached,
					PermanentIDs: []string{perm.ID},
					Reason:       "equipped permanent left the battlefield",
				})
			}
		}
	}
	return actions
}

// Rule 704.5i: a planeswalker with no loyalty goes to the graveyard.
func checkZeroLoyalty(s *GameState) []SBAAction {
	var actions []SBAAction
	for _, perm := range s.Battlefield() {
		if !perm.Planeswalker {
			continue
		}
		if perm.Counters.GetCount(counters.Loyalty) <= 0 {
			actions = append(actions, SBAAction{
				Kind:         SBAZeroLoyalty,
				PermanentIDs: []string{perm.ID},
				Doomed:       []string{perm.ID},
				Reason:       "loyalty is 0",
			})
		}
	}
	return actions
}
