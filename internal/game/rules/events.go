package rules

import (
	"sync"
	"time"
)

// EventType categorizes a rules occurrence. These are the conditions
// triggered abilities can watch for; they are distinct from the
// replayable event log, which records committed state mutations.
type EventType string

const (
	// Turn structure occurrences.
	EventTurnBegan   EventType = "TURN_BEGAN"
	EventStepChanged EventType = "STEP_CHANGED"
	EventUntapStep   EventType = "UNTAP_STEP"
	EventUpkeepStep  EventType = "UPKEEP_STEP"
	EventDrawStep    EventType = "DRAW_STEP"
	EventEndStep     EventType = "END_STEP"
	EventCleanupStep EventType = "CLEANUP_STEP"

	// Zone and permanent occurrences.
	EventZoneChange           EventType = "ZONE_CHANGE"
	EventEntersTheBattlefield EventType = "ENTERS_THE_BATTLEFIELD"
	EventPermanentDies        EventType = "PERMANENT_DIES"
	EventPermanentExiled      EventType = "PERMANENT_EXILED"
	EventTokenCreated         EventType = "TOKEN_CREATED"
	EventTapped               EventType = "TAPPED"
	EventUntapped             EventType = "UNTAPPED"

	// Spell and ability occurrences.
	EventSpellCast          EventType = "SPELL_CAST"
	EventLandPlayed         EventType = "LAND_PLAYED"
	EventStackItemResolved  EventType = "STACK_ITEM_RESOLVED"
	EventStackItemCountered EventType = "STACK_ITEM_COUNTERED"

	// Player occurrences.
	EventDrewCard      EventType = "DREW_CARD"
	EventDiscardedCard EventType = "DISCARDED_CARD"
	EventGainedLife    EventType = "GAINED_LIFE"
	EventLostLife      EventType = "LOST_LIFE"
	EventPlayerLost    EventType = "PLAYER_LOST"

	// Damage occurrences.
	EventDamagedPlayer    EventType = "DAMAGED_PLAYER"
	EventDamagedPermanent EventType = "DAMAGED_PERMANENT"

	// Counter occurrences.
	EventCounterAdded   EventType = "COUNTER_ADDED"
	EventCounterRemoved EventType = "COUNTER_REMOVED"

	// Combat occurrences.
	EventAttackerDeclared EventType = "ATTACKER_DECLARED"
	EventBlockerDeclared  EventType = "BLOCKER_DECLARED"

	// Library occurrences.
	EventLibraryShuffled EventType = "LIBRARY_SHUFFLED"
	EventLibrarySearched EventType = "LIBRARY_SEARCHED"
	EventScried          EventType = "SCRIED"
	EventSurveilled      EventType = "SURVEILLED"

	// Batch marker published after a state-based action pass applied
	// at least one action.
	EventStateBasedActions EventType = "STATE_BASED_ACTIONS"
)

// Event represents a single rules occurrence other subsystems may
// react to.
type Event struct {
	Type        EventType
	ID          string
	TargetID    string
	SourceID    string
	Controller  string
	PlayerID    string
	Amount      int
	Flag        bool
	Data        string
	Targets     []string
	Timestamp   time.Time
	Metadata    map[string]string
	Description string
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// EventBus provides a synchronous publish/subscribe implementation
// with type filtering. Delivery order within a type follows
// subscription order, which keeps trigger detection deterministic.
type EventBus struct {
	mu             sync.RWMutex
	listeners      []int
	allListeners   map[int]Listener
	typedListeners map[EventType][]TypedListener
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		allListeners:   make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.allListeners[handle] = listener
	bus.listeners = append(bus.listeners, handle)
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by the provided handle.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if _, ok := bus.allListeners[handle]; ok {
		delete(bus.allListeners, handle)
		for i, h := range bus.listeners {
			if h == handle {
				bus.listeners = append(bus.listeners[:i], bus.listeners[i+1:]...)
				break
			}
		}
		return
	}
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously,
// in subscription order.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, handle := range bus.listeners {
		if listener, ok := bus.allListeners[handle]; ok {
			listener(event)
		}
	}
	if typedListeners, ok := bus.typedListeners[event.Type]; ok {
		for _, listener := range typedListeners {
			listener.Callback(event)
		}
	}
}

// PublishBatch publishes multiple events in order.
func (bus *EventBus) PublishBatch(events []Event) {
	for _, event := range events {
		bus.Publish(event)
	}
}

// NewEvent creates a new event with common fields populated.
func NewEvent(eventType EventType, targetID, sourceID, controllerID string) Event {
	return Event{
		Type:       eventType,
		TargetID:   targetID,
		SourceID:   sourceID,
		Controller: controllerID,
		PlayerID:   controllerID,
		Timestamp:  time.Now(),
		Metadata:   make(map[string]string),
	}
}

// NewEventWithAmount creates a new event with an amount value.
func NewEventWithAmount(eventType EventType, targetID, sourceID, controllerID string, amount int) Event {
	evt := NewEvent(eventType, targetID, sourceID, controllerID)
	evt.Amount = amount
	return evt
}
