package game

import (
	"github.com/A2152225/MTGEDH-sub013/internal/game/rules"
)

// AbilityDescriptor is the structured output of the oracle-text
// parser collaborator. The engine never reads rules text itself; it
// consumes these descriptors and wires them to the occurrence bus.
type AbilityDescriptor struct {
	// TriggerTag names the occurrence the ability listens for, e.g.
	// rules.EventEntersTheBattlefield.
	TriggerTag rules.EventType `json:"trigger_tag"`
	// Effect is what the triggered ability does when it resolves.
	Effect EffectSpec `json:"effect"`
	// InterveningIf optionally names a condition checked both when
	// the ability triggers and when it resolves.
	InterveningIf string `json:"intervening_if,omitempty"`
	Mandatory     bool   `json:"mandatory"`
	// SelfOnly restricts the trigger to occurrences whose source is
	// the ability's own permanent.
	SelfOnly    bool   `json:"self_only,omitempty"`
	Description string `json:"description,omitempty"`
}

// AbilityContext accompanies a detection request.
type AbilityContext struct {
	CardName   string
	SourceID   string
	Controller string
}

// AbilityDetector turns a card's rules text into descriptors. The
// heuristic text parsing lives outside the deterministic core.
type AbilityDetector interface {
	DetectAbilities(oracleText string, ctx AbilityContext) []AbilityDescriptor
}

// Intervening-if condition tags the engine can evaluate.
const (
	CondControllerLifeAbove  = "controller_life_above_starting"
	CondControllerHasCards   = "controller_has_cards_in_hand"
	CondStackEmpty           = "stack_empty"
	CondSourceOnBattlefield  = "source_on_battlefield"
)

// evalCondition evaluates an intervening-if tag against the state.
// Unknown tags are treated as satisfied so an unrecognized condition
// never silently swallows a mandatory trigger.
func evalCondition(s *GameState, tag, controller, sourceID string) bool {
	switch tag {
	case "":
		return true
	case CondControllerLifeAbove:
		ps := s.Player(controller)
		return ps != nil && ps.Life > s.StartingLife
	case CondControllerHasCards:
		ps := s.Player(controller)
		return ps != nil && len(ps.Hand) > 0
	case CondStackEmpty:
		return s.Stack.IsEmpty()
	case CondSourceOnBattlefield:
		return s.PermanentOnBattlefield(sourceID)
	default:
		return true
	}
}
