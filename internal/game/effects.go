package game

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/A2152225/MTGEDH-sub013/internal/game/rules"
)

// EffectKind enumerates the interpreted effects a stack item can carry.
type EffectKind string

const (
	EffectNone         EffectKind = "none"
	EffectDrawCards    EffectKind = "draw_cards"
	EffectGainLife     EffectKind = "gain_life"
	EffectLoseLife     EffectKind = "lose_life"
	EffectDealDamage   EffectKind = "deal_damage"
	EffectDestroy      EffectKind = "destroy"
	EffectExileTarget  EffectKind = "exile_target"
	EffectCounterSpell EffectKind = "counter_spell"
	EffectAddCounters  EffectKind = "add_counters"
	EffectCreateToken  EffectKind = "create_token"
	EffectTapTarget    EffectKind = "tap_target"
	EffectUntapTarget  EffectKind = "untap_target"
	EffectEnterSelf    EffectKind = "enter_self"
	EffectScry         EffectKind = "scry"
)

// legalTargets returns the ids of targets still legal at resolution.
func legalTargets(item rules.StackItem) []rules.Target {
	var out []rules.Target
	for _, target := range item.Targets {
		if target.Legal {
			out = append(out, target)
		}
	}
	return out
}

// effectNeedsTargets reports whether a spec does nothing without at
// least one target.
func effectNeedsTargets(spec EffectSpec) bool {
	switch spec.Kind {
	case EffectDealDamage, EffectDestroy, EffectExileTarget, EffectCounterSpell,
		EffectAddCounters, EffectTapTarget, EffectUntapTarget:
		return true
	}
	return false
}

// TokenSpec describes a token to create.
type TokenSpec struct {
	Name      string `json:"name"`
	Power     int    `json:"power"`
	Toughness int    `json:"toughness"`
	Count     int    `json:"count"`
}

// EffectSpec is the inert description of what a stack item does when
// it resolves. Keeping effects as data rather than closures is what
// lets the event log rebuild the stack during replay.
type EffectSpec struct {
	Kind        EffectKind `json:"kind"`
	Amount      int        `json:"amount,omitempty"`
	CounterName string     `json:"counter_name,omitempty"`
	Deathtouch  bool       `json:"deathtouch,omitempty"`
	Token       *TokenSpec `json:"token,omitempty"`
	// Then chains a second effect after this one, e.g. damage plus
	// life gain.
	Then *EffectSpec `json:"then,omitempty"`
	// Modes lists the choices of a modal spell (rule 700.2). The
	// controller picks one at cast time; the chosen mode replaces
	// this spec before resolution.
	Modes []EffectSpec `json:"modes,omitempty"`
	// ModeNames labels the modes for the chooser, index-aligned with
	// Modes. Missing names fall back to the mode's kind.
	ModeNames []string `json:"mode_names,omitempty"`
}

// applyEffect interprets a resolved item's effect, committing every
// consequence as events. Resolution may enqueue further stack items,
// permanents or resolution steps but never mutates state directly.
func (e *Engine) applyEffect(entry *gameEntry, item rules.StackItem, spec EffectSpec) error {
	s := entry.state
	targets := legalTargets(item)

	switch spec.Kind {
	case EffectNone, EffectEnterSelf:
		// EnterSelf is handled by the resolver before the effect runs.

	case EffectDrawCards:
		if err := e.drawCards(entry, item.Controller, spec.Amount); err != nil {
			return err
		}

	case EffectGainLife:
		payload := lifeChangedPayload{PlayerID: item.Controller, Delta: spec.Amount}
		if err := e.commit(entry, EventLifeChanged, payload); err != nil {
			return err
		}

	case EffectLoseLife:
		for _, target := range targets {
			if !s.PlayerInGame(target.ID) {
				continue
			}
			payload := lifeChangedPayload{PlayerID: target.ID, Delta: -spec.Amount}
			if err := e.commit(entry, EventLifeChanged, payload); err != nil {
				return err
			}
		}

	case EffectDealDamage:
		for _, target := range targets {
			switch {
			case s.PermanentOnBattlefield(target.ID):
				payload := damageMarkedPayload{PermanentID: target.ID, Amount: spec.Amount, Deathtouch: spec.Deathtouch}
				if err := e.commit(entry, EventDamageMarked, payload); err != nil {
					return err
				}
			case s.PlayerInGame(target.ID):
				payload := lifeChangedPayload{PlayerID: target.ID, Delta: -spec.Amount}
				if err := e.commit(entry, EventLifeChanged, payload); err != nil {
					return err
				}
			}
		}

	case EffectDestroy, EffectExileTarget:
		to, reason := ZoneGraveyard, "destroyed"
		if spec.Kind == EffectExileTarget {
			to, reason = ZoneExile, "exiled"
		}
		for _, target := range targets {
			perm := s.Permanent(target.ID)
			if perm == nil {
				continue
			}
			card := perm.Card
			payload := permanentLeftPayload{PermanentID: target.ID, To: to, Reason: reason}
			if err := e.commit(entry, EventPermanentLeft, payload); err != nil {
				return err
			}
			entry.triggers.UnregisterSource(target.ID)
			if err := e.offerCommanderReplacement(entry, card, to); err != nil {
				return err
			}
		}

	case EffectCounterSpell:
		for _, target := range targets {
			if !s.StackItemPresent(target.ID) {
				continue
			}
			payload := stackRemovedPayload{ItemID: target.ID, CardTo: ZoneGraveyard}
			if err := e.commit(entry, EventStackCountered, payload); err != nil {
				return err
			}
		}

	case EffectAddCounters:
		for _, target := range targets {
			switch {
			case s.PermanentOnBattlefield(target.ID):
				payload := countersChangedPayload{PermanentID: target.ID, CounterName: spec.CounterName, Delta: spec.Amount}
				if err := e.commit(entry, EventCountersChanged, payload); err != nil {
					return err
				}
			case s.PlayerInGame(target.ID):
				payload := countersChangedPayload{PlayerID: target.ID, CounterName: spec.CounterName, Delta: spec.Amount}
				if err := e.commit(entry, EventCountersChanged, payload); err != nil {
					return err
				}
			}
		}

	case EffectCreateToken:
		if spec.Token != nil {
			count := spec.Token.Count
			if count <= 0 {
				count = 1
			}
			for i := 0; i < count; i++ {
				card := Card{
					ID:        uuid.NewString(),
					Name:      spec.Token.Name,
					Owner:     item.Controller,
					Power:     spec.Token.Power,
					Toughness: spec.Token.Toughness,
					Creature:  true,
					Token:     true,
				}
				if err := e.enterPermanent(entry, card, item.Controller, ""); err != nil {
					return err
				}
			}
		}

	case EffectTapTarget, EffectUntapTarget:
		eventType := EventPermanentTapped
		if spec.Kind == EffectUntapTarget {
			eventType = EventPermanentUntapped
		}
		for _, target := range targets {
			if !s.PermanentOnBattlefield(target.ID) {
				continue
			}
			if err := e.commit(entry, eventType, permanentTappedPayload{PermanentID: target.ID}); err != nil {
				return err
			}
		}

	case EffectScry:
		ps := s.Player(item.Controller)
		if ps != nil && spec.Amount > 0 {
			depth := spec.Amount
			if depth > len(ps.Library) {
				depth = len(ps.Library)
			}
			if depth > 0 {
				options := make([]string, depth)
				for i := 0; i < depth; i++ {
					options[i] = ps.Library[i].ID
				}
				if err := e.queueStep(entry, ResolutionStep{
					Type:         StepScry,
					Player:       item.Controller,
					SourceItemID: item.SourceID,
					Payload: StepPayload{
						MinSelections: 0,
						MaxSelections: depth,
						Options:       options,
						Count:         depth,
						Zone:          ZoneLibrary,
						Prompt:        "choose cards to put on the bottom of your library",
					},
				}); err != nil {
					return err
				}
			}
		}

	default:
		if e.logger != nil {
			e.logger.Warn("unknown effect kind skipped",
				zap.String("game_id", s.ID),
				zap.String("kind", string(spec.Kind)))
		}
	}

	if spec.Then != nil && spec.Kind != EffectEnterSelf {
		return e.applyEffect(entry, item, *spec.Then)
	}
	return nil
}
