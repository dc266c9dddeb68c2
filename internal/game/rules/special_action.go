package rules

import "fmt"

// SpecialActionType represents the special actions a player may take.
// Special actions never use the stack and resolve immediately
// (rule 116); taking one does not pass priority to other players.
type SpecialActionType string

const (
	// SpecialActionPlayLand plays a land (rule 116.2a). Only during a
	// main phase of the player's own turn, with an empty stack, within
	// the per-turn land limit.
	SpecialActionPlayLand SpecialActionType = "PLAY_LAND"

	// SpecialActionSuspend exiles a card with suspend from hand
	// (rule 116.2f). Any time the player has priority.
	SpecialActionSuspend SpecialActionType = "SUSPEND"

	// SpecialActionPutCommander moves a commander between the command
	// zone and another zone during a zone-change replacement.
	SpecialActionPutCommander SpecialActionType = "PUT_COMMANDER"
)

// SpecialActionRestriction defines when a special action can be taken.
// Priority is required for every special action, so it is not a field.
type SpecialActionRestriction struct {
	RequiresMainPhase  bool
	RequiresEmptyStack bool
	RequiresOwnTurn    bool
	PerTurnLimit       int // 0 means unlimited
}

var specialActionRestrictions = map[SpecialActionType]SpecialActionRestriction{
	SpecialActionPlayLand: {
		RequiresMainPhase:  true,
		RequiresEmptyStack: true,
		RequiresOwnTurn:    true,
		PerTurnLimit:       1,
	},
	SpecialActionSuspend:      {},
	SpecialActionPutCommander: {},
}

// SpecialActionContext captures the game situation the restriction is
// evaluated against.
type SpecialActionContext struct {
	Phase          Phase
	Step           Step
	StackEmpty     bool
	ActivePlayer   string
	PriorityPlayer string
	Player         string
	TakenThisTurn  int
}

// CheckSpecialAction validates that the given special action may be
// taken in the provided context. Returns nil when legal.
func CheckSpecialAction(actionType SpecialActionType, ctx SpecialActionContext) error {
	restriction, ok := specialActionRestrictions[actionType]
	if !ok {
		return fmt.Errorf("unknown special action: %s", actionType)
	}

	if ctx.PriorityPlayer != ctx.Player {
		return fmt.Errorf("player %s does not have priority", ctx.Player)
	}
	if restriction.RequiresOwnTurn && ctx.ActivePlayer != ctx.Player {
		return fmt.Errorf("%s requires the player's own turn", actionType)
	}
	if restriction.RequiresMainPhase &&
		ctx.Phase != PhasePrecombatMain && ctx.Phase != PhasePostcombatMain {
		return fmt.Errorf("%s requires a main phase", actionType)
	}
	if restriction.RequiresEmptyStack && !ctx.StackEmpty {
		return fmt.Errorf("%s requires an empty stack", actionType)
	}
	if restriction.PerTurnLimit > 0 && ctx.TakenThisTurn >= restriction.PerTurnLimit {
		return fmt.Errorf("%s limit of %d per turn reached", actionType, restriction.PerTurnLimit)
	}
	return nil
}
