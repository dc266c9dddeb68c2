package rules

import "testing"

func validLandContext() SpecialActionContext {
	return SpecialActionContext{
		Phase:          PhasePrecombatMain,
		Step:           StepMain1,
		StackEmpty:     true,
		ActivePlayer:   "alice",
		PriorityPlayer: "alice",
		Player:         "alice",
		TakenThisTurn:  0,
	}
}

func TestPlayLandLegal(t *testing.T) {
	if err := CheckSpecialAction(SpecialActionPlayLand, validLandContext()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPlayLandRestrictions(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SpecialActionContext)
	}{
		{"without priority", func(ctx *SpecialActionContext) { ctx.PriorityPlayer = "bob" }},
		{"not own turn", func(ctx *SpecialActionContext) { ctx.ActivePlayer = "bob" }},
		{"outside main phase", func(ctx *SpecialActionContext) { ctx.Phase = PhaseCombat; ctx.Step = StepBeginCombat }},
		{"stack not empty", func(ctx *SpecialActionContext) { ctx.StackEmpty = false }},
		{"land limit reached", func(ctx *SpecialActionContext) { ctx.TakenThisTurn = 1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := validLandContext()
			tc.mutate(&ctx)
			if err := CheckSpecialAction(SpecialActionPlayLand, ctx); err == nil {
				t.Fatalf("expected rejection")
			}
		})
	}
}

func TestPlayLandSecondMainPhase(t *testing.T) {
	ctx := validLandContext()
	ctx.Phase = PhasePostcombatMain
	ctx.Step = StepMain2
	if err := CheckSpecialAction(SpecialActionPlayLand, ctx); err != nil {
		t.Fatalf("second main phase should allow land play: %v", err)
	}
}

func TestSuspendAnyTimeWithPriority(t *testing.T) {
	ctx := validLandContext()
	ctx.Phase = PhaseEnding
	ctx.Step = StepEnd
	ctx.ActivePlayer = "bob"
	ctx.StackEmpty = false
	if err := CheckSpecialAction(SpecialActionSuspend, ctx); err != nil {
		t.Fatalf("suspend should only require priority: %v", err)
	}

	ctx.PriorityPlayer = "bob"
	if err := CheckSpecialAction(SpecialActionSuspend, ctx); err == nil {
		t.Fatalf("suspend without priority should be rejected")
	}
}

func TestUnknownSpecialAction(t *testing.T) {
	if err := CheckSpecialAction("JUGGLE", validLandContext()); err == nil {
		t.Fatalf("expected error for unknown special action")
	}
}
