package rules

import (
	"fmt"
	"strings"
)

// Phase represents the broad phases of a turn.
type Phase int

const (
	PhaseBeginning Phase = iota
	PhasePrecombatMain
	PhaseCombat
	PhasePostcombatMain
	PhaseEnding
)

var phaseNames = map[Phase]string{
	PhaseBeginning:      "BEGINNING",
	PhasePrecombatMain:  "PRECOMBAT_MAIN",
	PhaseCombat:         "COMBAT",
	PhasePostcombatMain: "POSTCOMBAT_MAIN",
	PhaseEnding:         "ENDING",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// ParsePhase converts a phase name back to its Phase value.
func ParsePhase(name string) (Phase, error) {
	cleaned := strings.ToUpper(strings.TrimSpace(name))
	for phase, phaseName := range phaseNames {
		if phaseName == cleaned {
			return phase, nil
		}
	}
	return 0, fmt.Errorf("unknown phase: %s", name)
}

// Step represents the individual steps that comprise a turn.
type Step int

const (
	StepUntap Step = iota
	StepUpkeep
	StepDraw
	StepMain1
	StepBeginCombat
	StepDeclareAttackers
	StepDeclareBlockers
	StepCombatDamage
	StepEndCombat
	StepMain2
	StepEnd
	StepCleanup
)

var stepNames = map[Step]string{
	StepUntap:            "UNTAP",
	StepUpkeep:           "UPKEEP",
	StepDraw:             "DRAW",
	StepMain1:            "MAIN1",
	StepBeginCombat:      "BEGIN_COMBAT",
	StepDeclareAttackers: "DECLARE_ATTACKERS",
	StepDeclareBlockers:  "DECLARE_BLOCKERS",
	StepCombatDamage:     "COMBAT_DAMAGE",
	StepEndCombat:        "END_COMBAT",
	StepMain2:            "MAIN2",
	StepEnd:              "END",
	StepCleanup:          "CLEANUP",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STEP_%d", int(s))
}

// ParseStep converts a step name back to its Step value.
func ParseStep(name string) (Step, error) {
	cleaned := strings.ToUpper(strings.TrimSpace(name))
	for step, stepName := range stepNames {
		if stepName == cleaned {
			return step, nil
		}
	}
	return 0, fmt.Errorf("unknown step: %s", name)
}

type turnEntry struct {
	phase Phase
	step  Step
}

// turnSequence is the fixed turn structure. Cleanup wraps to untap of
// the next turn.
var turnSequence = []turnEntry{
	{PhaseBeginning, StepUntap},
	{PhaseBeginning, StepUpkeep},
	{PhaseBeginning, StepDraw},
	{PhasePrecombatMain, StepMain1},
	{PhaseCombat, StepBeginCombat},
	{PhaseCombat, StepDeclareAttackers},
	{PhaseCombat, StepDeclareBlockers},
	{PhaseCombat, StepCombatDamage},
	{PhaseCombat, StepEndCombat},
	{PhasePostcombatMain, StepMain2},
	{PhaseEnding, StepEnd},
	{PhaseEnding, StepCleanup},
}

// sequenceIndex returns the position of (phase, step) in the turn
// structure, or -1 for combinations that never occur.
func sequenceIndex(phase Phase, step Step) int {
	for i, entry := range turnSequence {
		if entry.phase == phase && entry.step == step {
			return i
		}
	}
	return -1
}

// Next is the pure transition function over (phase, step). It returns
// the following phase and step plus whether the transition crossed a
// turn boundary (cleanup wrapping to untap). Unknown combinations
// normalize to the start of a new turn.
func Next(phase Phase, step Step) (Phase, Step, bool) {
	idx := sequenceIndex(phase, step)
	if idx == -1 || idx == len(turnSequence)-1 {
		first := turnSequence[0]
		return first.phase, first.step, true
	}
	next := turnSequence[idx+1]
	return next.phase, next.step, false
}

// GrantsPriority reports whether players receive priority during the
// given step. No player receives priority during untap or cleanup
// (rule 117.3a); those steps end as soon as their turn-based actions
// complete.
func GrantsPriority(step Step) bool {
	return step != StepUntap && step != StepCleanup
}

// TurnManager tracks active player, priority player and turn
// progression over the fixed turn sequence.
type TurnManager struct {
	orderIndex     int
	turnNumber     int
	activePlayer   string
	priorityPlayer string
}

// NewTurnManager creates a turn manager positioned at turn 1, untap.
func NewTurnManager(activePlayer string) *TurnManager {
	active := strings.TrimSpace(activePlayer)
	return &TurnManager{
		orderIndex:     0,
		turnNumber:     1,
		activePlayer:   active,
		priorityPlayer: active,
	}
}

// CurrentPhase returns the phase currently in progress.
func (tm *TurnManager) CurrentPhase() Phase {
	return turnSequence[tm.orderIndex].phase
}

// CurrentStep returns the step currently in progress.
func (tm *TurnManager) CurrentStep() Step {
	return turnSequence[tm.orderIndex].step
}

// TurnNumber returns the current turn number (1-based).
func (tm *TurnManager) TurnNumber() int {
	return tm.turnNumber
}

// ActivePlayer returns the player whose turn it is.
func (tm *TurnManager) ActivePlayer() string {
	return tm.activePlayer
}

// PriorityPlayer returns the player who currently has priority.
func (tm *TurnManager) PriorityPlayer() string {
	return tm.priorityPlayer
}

// SetPriority sets the player who currently has priority.
func (tm *TurnManager) SetPriority(player string) {
	tm.priorityPlayer = strings.TrimSpace(player)
}

// AdvanceStep moves to the next step via the Next transition. When the
// transition wraps to a new turn the turn number is incremented and the
// active player rotates to nextActivePlayer if provided. Priority
// reverts to the active player at the start of each step.
func (tm *TurnManager) AdvanceStep(nextActivePlayer string) (Phase, Step, bool) {
	phase, step, newTurn := Next(tm.CurrentPhase(), tm.CurrentStep())
	tm.orderIndex = sequenceIndex(phase, step)
	if newTurn {
		tm.turnNumber++
		if next := strings.TrimSpace(nextActivePlayer); next != "" {
			tm.activePlayer = next
		}
	}
	tm.priorityPlayer = tm.activePlayer
	return phase, step, newTurn
}

// SetPosition restores the manager to an explicit position. Used when
// rebuilding state from the event log.
func (tm *TurnManager) SetPosition(turn int, phase Phase, step Step, activePlayer string) error {
	idx := sequenceIndex(phase, step)
	if idx == -1 {
		return fmt.Errorf("invalid turn position %s/%s", phase, step)
	}
	if turn < 1 {
		return fmt.Errorf("invalid turn number %d", turn)
	}
	tm.orderIndex = idx
	tm.turnNumber = turn
	tm.activePlayer = strings.TrimSpace(activePlayer)
	tm.priorityPlayer = tm.activePlayer
	return nil
}
