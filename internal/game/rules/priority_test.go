package rules

import (
	"reflect"
	"testing"
)

func TestAPNAPOrder(t *testing.T) {
	order := []string{"alice", "bob", "carol", "dave"}

	got := APNAPOrder(order, "carol")
	want := []string{"carol", "dave", "alice", "bob"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	// Unknown active player falls back to table order.
	got = APNAPOrder(order, "mallory")
	if !reflect.DeepEqual(got, order) {
		t.Fatalf("expected fallback to table order, got %v", got)
	}
}

func TestAPNAPIndex(t *testing.T) {
	order := []string{"alice", "bob", "carol"}

	if idx := APNAPIndex(order, "bob", "bob"); idx != 0 {
		t.Fatalf("active player should be index 0, got %d", idx)
	}
	if idx := APNAPIndex(order, "bob", "alice"); idx != 2 {
		t.Fatalf("expected alice at index 2, got %d", idx)
	}
	if idx := APNAPIndex(order, "bob", "mallory"); idx != -1 {
		t.Fatalf("expected -1 for unknown player, got %d", idx)
	}
}

func TestPriorityTrackerResetOnAction(t *testing.T) {
	pt := NewPriorityTracker()

	pt.RecordPass()
	pt.RecordPass()
	if pt.PassesInRow() != 2 {
		t.Fatalf("expected 2 passes, got %d", pt.PassesInRow())
	}

	pt.RecordAction()
	if pt.PassesInRow() != 0 {
		t.Fatalf("action should reset passes to zero, got %d", pt.PassesInRow())
	}
}

func TestPriorityTrackerAllPassed(t *testing.T) {
	pt := NewPriorityTracker()
	for i := 0; i < 3; i++ {
		if pt.AllPassed(4) {
			t.Fatalf("all passed reported early at %d passes", i)
		}
		pt.RecordPass()
	}
	pt.RecordPass()
	if !pt.AllPassed(4) {
		t.Fatalf("expected all passed after 4 passes")
	}
	if pt.AllPassed(0) {
		t.Fatalf("zero players can never have all passed")
	}
}

func TestResolutionContextNesting(t *testing.T) {
	rc := NewResolutionContext()

	if err := rc.BeginResolution("outer"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rc.BeginResolution("inner"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rc.CurrentResolvingID() != "inner" {
		t.Fatalf("expected inner resolving, got %s", rc.CurrentResolvingID())
	}

	if err := rc.EndResolution("outer"); err == nil {
		t.Fatalf("expected mismatch error ending outer before inner")
	}
	if err := rc.EndResolution("inner"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rc.EndResolution("outer"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rc.IsResolving() {
		t.Fatalf("expected no resolution in progress")
	}
	if err := rc.EndResolution("outer"); err == nil {
		t.Fatalf("expected error ending with empty resolution stack")
	}
}
