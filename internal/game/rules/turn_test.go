package rules

import "testing"

func TestTurnSequence(t *testing.T) {
	tm := NewTurnManager("alice")

	expected := []struct {
		phase Phase
		step  Step
	}{
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

	for i, exp := range expected {
		if tm.CurrentPhase() != exp.phase {
			t.Fatalf("step %d: expected phase %s, got %s", i, exp.phase, tm.CurrentPhase())
		}
		if tm.CurrentStep() != exp.step {
			t.Fatalf("step %d: expected step %s, got %s", i, exp.step, tm.CurrentStep())
		}
		if i < len(expected)-1 {
			tm.AdvanceStep("")
		}
	}
}

func TestNextIsTotal(t *testing.T) {
	// Every entry in the sequence transitions to the following entry;
	// the last wraps with a new-turn signal.
	for i, entry := range turnSequence {
		phase, step, newTurn := Next(entry.phase, entry.step)
		if i == len(turnSequence)-1 {
			if !newTurn {
				t.Fatalf("cleanup should wrap to a new turn")
			}
			if phase != PhaseBeginning || step != StepUntap {
				t.Fatalf("expected wrap to BEGINNING/UNTAP, got %s/%s", phase, step)
			}
			continue
		}
		if newTurn {
			t.Fatalf("unexpected new turn from %s/%s", entry.phase, entry.step)
		}
		want := turnSequence[i+1]
		if phase != want.phase || step != want.step {
			t.Fatalf("from %s/%s: expected %s/%s, got %s/%s",
				entry.phase, entry.step, want.phase, want.step, phase, step)
		}
	}

	// Unknown combinations normalize rather than panic.
	phase, step, newTurn := Next(PhaseBeginning, StepCombatDamage)
	if !newTurn || phase != PhaseBeginning || step != StepUntap {
		t.Fatalf("invalid position should normalize to a new turn, got %s/%s newTurn=%t", phase, step, newTurn)
	}
}

func TestGrantsPriority(t *testing.T) {
	for step := range stepNames {
		granted := GrantsPriority(step)
		if step == StepUntap || step == StepCleanup {
			if granted {
				t.Fatalf("step %s should not grant priority", step)
			}
		} else if !granted {
			t.Fatalf("step %s should grant priority", step)
		}
	}
}

func TestAdvanceStepWrapsTurn(t *testing.T) {
	tm := NewTurnManager("alice")

	for i := 0; i < 11; i++ {
		_, _, newTurn := tm.AdvanceStep("")
		if newTurn {
			t.Fatalf("unexpected turn wrap at advance %d", i)
		}
		if tm.TurnNumber() != 1 {
			t.Fatalf("expected to remain on turn 1, got %d", tm.TurnNumber())
		}
	}

	phase, step, newTurn := tm.AdvanceStep("bob")
	if !newTurn {
		t.Fatalf("expected turn wrap after cleanup")
	}
	if tm.TurnNumber() != 2 {
		t.Fatalf("expected turn 2, got %d", tm.TurnNumber())
	}
	if tm.ActivePlayer() != "bob" {
		t.Fatalf("expected active player bob, got %s", tm.ActivePlayer())
	}
	if tm.PriorityPlayer() != "bob" {
		t.Fatalf("expected priority player bob, got %s", tm.PriorityPlayer())
	}
	if phase != PhaseBeginning || step != StepUntap {
		t.Fatalf("expected BEGINNING/UNTAP, got %s/%s", phase, step)
	}
}

func TestSetPosition(t *testing.T) {
	tm := NewTurnManager("alice")

	if err := tm.SetPosition(5, PhaseCombat, StepDeclareBlockers, "bob"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tm.TurnNumber() != 5 || tm.CurrentStep() != StepDeclareBlockers {
		t.Fatalf("position not restored: turn %d step %s", tm.TurnNumber(), tm.CurrentStep())
	}
	if tm.ActivePlayer() != "bob" {
		t.Fatalf("expected active player bob, got %s", tm.ActivePlayer())
	}

	if err := tm.SetPosition(1, PhaseBeginning, StepCombatDamage, "alice"); err == nil {
		t.Fatalf("expected error for invalid phase/step combination")
	}
	if err := tm.SetPosition(0, PhaseBeginning, StepUntap, "alice"); err == nil {
		t.Fatalf("expected error for invalid turn number")
	}
}

func TestParsePhaseAndStep(t *testing.T) {
	phase, err := ParsePhase("combat")
	if err != nil || phase != PhaseCombat {
		t.Fatalf("expected COMBAT, got %v (%v)", phase, err)
	}
	step, err := ParseStep(" declare_attackers ")
	if err != nil || step != StepDeclareAttackers {
		t.Fatalf("expected DECLARE_ATTACKERS, got %v (%v)", step, err)
	}
	if _, err := ParseStep("nonsense"); err == nil {
		t.Fatalf("expected error for unknown step")
	}
}
