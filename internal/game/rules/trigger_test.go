package rules

import "testing"

func TestTriggerManagerHandle(t *testing.T) {
	tm := NewTriggerManager()

	tm.Register(AbilityTrigger{
		SourceID:   "perm-1",
		Controller: "alice",
		EventType:  EventPermanentDies,
		Mandatory:  true,
		Build: func(event Event) StackItem {
			return StackItem{Description: "draw a card"}
		},
	})

	pending := tm.Handle(NewEvent(EventPermanentDies, "perm-2", "", "bob"))
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending trigger, got %d", len(pending))
	}
	if pending[0].Controller != "alice" || !pending[0].Mandatory {
		t.Fatalf("trigger defaults not applied: %+v", pending[0])
	}
	if pending[0].Item.Kind != StackItemKindTriggered {
		t.Fatalf("expected triggered kind, got %s", pending[0].Item.Kind)
	}

	// Wrong event type fires nothing.
	if got := tm.Handle(NewEvent(EventDrewCard, "", "", "bob")); got != nil {
		t.Fatalf("expected no triggers, got %d", len(got))
	}
}

func TestTriggerInterveningIf(t *testing.T) {
	tm := NewTriggerManager()

	tm.Register(AbilityTrigger{
		SourceID:   "perm-1",
		Controller: "alice",
		EventType:  EventDamagedPlayer,
		Condition:  func(event Event) bool { return event.Amount >= 3 },
		Build:      func(Event) StackItem { return StackItem{} },
	})

	if got := tm.Handle(NewEventWithAmount(EventDamagedPlayer, "bob", "", "alice", 2)); got != nil {
		t.Fatalf("condition should have suppressed the trigger")
	}
	if got := tm.Handle(NewEventWithAmount(EventDamagedPlayer, "bob", "", "alice", 3)); len(got) != 1 {
		t.Fatalf("expected trigger to fire, got %d", len(got))
	}
}

func TestTriggerOnce(t *testing.T) {
	tm := NewTriggerManager()

	tm.Register(AbilityTrigger{
		SourceID:   "perm-1",
		Controller: "alice",
		EventType:  EventUpkeepStep,
		Once:       true,
		Build:      func(Event) StackItem { return StackItem{} },
	})

	if got := tm.Handle(NewEvent(EventUpkeepStep, "", "", "alice")); len(got) != 1 {
		t.Fatalf("expected first fire, got %d", len(got))
	}
	if got := tm.Handle(NewEvent(EventUpkeepStep, "", "", "alice")); got != nil {
		t.Fatalf("once trigger should not fire twice")
	}
}

func TestUnregisterSource(t *testing.T) {
	tm := NewTriggerManager()

	tm.Register(AbilityTrigger{
		SourceID:   "perm-1",
		Controller: "alice",
		EventType:  EventUpkeepStep,
		Build:      func(Event) StackItem { return StackItem{} },
	})
	tm.Register(AbilityTrigger{
		SourceID:   "perm-2",
		Controller: "alice",
		EventType:  EventUpkeepStep,
		Build:      func(Event) StackItem { return StackItem{} },
	})

	tm.UnregisterSource("perm-1")
	if tm.Size() != 1 {
		t.Fatalf("expected 1 trigger after unregister, got %d", tm.Size())
	}
	if got := tm.Handle(NewEvent(EventUpkeepStep, "", "", "alice")); len(got) != 1 {
		t.Fatalf("expected surviving trigger to fire once, got %d", len(got))
	}
}

func TestTriggerSequenceOrder(t *testing.T) {
	tm := NewTriggerManager()
	tm.Register(AbilityTrigger{SourceID: "a", Controller: "alice", EventType: EventUpkeepStep,
		Build: func(Event) StackItem { return StackItem{Description: "first"} }})
	tm.Register(AbilityTrigger{SourceID: "b", Controller: "alice", EventType: EventUpkeepStep,
		Build: func(Event) StackItem { return StackItem{Description: "second"} }})

	pending := tm.Handle(NewEvent(EventUpkeepStep, "", "", "alice"))
	if len(pending) != 2 {
		t.Fatalf("expected 2 triggers, got %d", len(pending))
	}
	if pending[0].SequencedAt >= pending[1].SequencedAt {
		t.Fatalf("expected increasing sequence, got %d then %d", pending[0].SequencedAt, pending[1].SequencedAt)
	}
	if pending[0].Item.Description != "first" {
		t.Fatalf("registration order not preserved: %s", pending[0].Item.Description)
	}
}
