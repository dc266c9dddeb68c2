package rules

import "testing"

func TestEventBusPublish(t *testing.T) {
	bus := NewEventBus()

	var all []EventType
	bus.Subscribe(func(event Event) {
		all = append(all, event.Type)
	})

	var typed int
	bus.SubscribeTyped(EventPermanentDies, func(event Event) {
		typed++
	})

	bus.Publish(NewEvent(EventEntersTheBattlefield, "perm-1", "spell-1", "alice"))
	bus.Publish(NewEvent(EventPermanentDies, "perm-1", "", "alice"))

	if len(all) != 2 {
		t.Fatalf("expected 2 events on general listener, got %d", len(all))
	}
	if typed != 1 {
		t.Fatalf("expected 1 typed delivery, got %d", typed)
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus()

	count := 0
	handle := bus.Subscribe(func(Event) { count++ })
	typedHandle := bus.SubscribeTyped(EventTapped, func(Event) { count++ })

	bus.Publish(NewEvent(EventTapped, "perm-1", "", "alice"))
	if count != 2 {
		t.Fatalf("expected 2 deliveries, got %d", count)
	}

	bus.Unsubscribe(handle)
	bus.Unsubscribe(typedHandle)
	bus.Publish(NewEvent(EventTapped, "perm-1", "", "alice"))
	if count != 2 {
		t.Fatalf("expected no deliveries after unsubscribe, got %d", count)
	}
}

func TestEventBusDeliveryOrder(t *testing.T) {
	bus := NewEventBus()

	var order []int
	bus.Subscribe(func(Event) { order = append(order, 1) })
	bus.Subscribe(func(Event) { order = append(order, 2) })
	bus.Subscribe(func(Event) { order = append(order, 3) })

	bus.Publish(NewEvent(EventDrewCard, "", "", "alice"))
	for i, v := range order {
		if v != i+1 {
			t.Fatalf("expected subscription-order delivery, got %v", order)
		}
	}
}

func TestNewEventWithAmount(t *testing.T) {
	evt := NewEventWithAmount(EventDamagedPlayer, "bob", "perm-1", "alice", 3)
	if evt.Amount != 3 || evt.TargetID != "bob" || evt.Controller != "alice" {
		t.Fatalf("event fields not populated: %+v", evt)
	}
}
