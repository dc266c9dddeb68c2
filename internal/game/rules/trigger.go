package rules

import (
	"sync"

	"github.com/google/uuid"
)

// PendingTrigger is a triggered ability that has fired and is waiting
// to be put on the stack the next time a player would receive
// priority. Optional triggers whose controller declines are dropped
// instead of being placed.
type PendingTrigger struct {
	ID          string
	SourceID    string
	Controller  string
	Description string
	Mandatory   bool
	// SequencedAt preserves fire order for stable trigger ordering
	// within one controller.
	SequencedAt int
	// Item is the stack object placed when the trigger goes on the
	// stack.
	Item StackItem
}

// AbilityTrigger encapsulates the logic for reacting to a specific
// occurrence and producing a pending trigger when the conditions are
// satisfied.
type AbilityTrigger struct {
	ID         string
	SourceID   string
	Controller string
	EventType  EventType
	// Condition is the intervening-if check; a trigger with a false
	// condition never fires.
	Condition func(Event) bool
	Build     func(Event) StackItem
	Mandatory bool
	Once      bool
}

// TriggerManager stores ability triggers and evaluates occurrences
// against them.
type TriggerManager struct {
	mu       sync.Mutex
	triggers map[string]AbilityTrigger
	order    []string
	nextSeq  int
}

// NewTriggerManager creates an empty trigger manager.
func NewTriggerManager() *TriggerManager {
	return &TriggerManager{
		triggers: make(map[string]AbilityTrigger),
	}
}

// Register adds a new trigger to the manager and returns its ID.
func (tm *TriggerManager) Register(trigger AbilityTrigger) string {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if trigger.ID == "" {
		trigger.ID = uuid.NewString()
	}
	if _, exists := tm.triggers[trigger.ID]; !exists {
		tm.order = append(tm.order, trigger.ID)
	}
	tm.triggers[trigger.ID] = trigger
	return trigger.ID
}

// Unregister removes a trigger by ID.
func (tm *TriggerManager) Unregister(id string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	delete(tm.triggers, id)
	for i, tid := range tm.order {
		if tid == id {
			tm.order = append(tm.order[:i], tm.order[i+1:]...)
			break
		}
	}
}

// UnregisterSource removes every trigger registered for the given
// source object. Called when the object leaves the battlefield.
func (tm *TriggerManager) UnregisterSource(sourceID string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	kept := tm.order[:0]
	for _, tid := range tm.order {
		if trigger, ok := tm.triggers[tid]; ok && trigger.SourceID == sourceID {
			delete(tm.triggers, tid)
			continue
		}
		kept = append(kept, tid)
	}
	tm.order = kept
}

// Handle evaluates the provided occurrence against all registered
// triggers, in registration order, and returns the pending triggers
// they produce.
func (tm *TriggerManager) Handle(event Event) []PendingTrigger {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if len(tm.triggers) == 0 {
		return nil
	}

	var (
		pending  []PendingTrigger
		toRemove []string
	)

	for _, id := range tm.order {
		trigger, ok := tm.triggers[id]
		if !ok || trigger.EventType != event.Type {
			continue
		}
		if trigger.Condition != nil && !trigger.Condition(event) {
			continue
		}
		if trigger.Build == nil {
			continue
		}

		item := trigger.Build(event)
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if item.Kind == "" {
			item.Kind = StackItemKindTriggered
		}
		if item.Controller == "" {
			item.Controller = trigger.Controller
		}
		if item.SourceID == "" {
			item.SourceID = trigger.SourceID
		}

		pending = append(pending, PendingTrigger{
			ID:          item.ID,
			SourceID:    trigger.SourceID,
			Controller:  item.Controller,
			Description: item.Description,
			Mandatory:   trigger.Mandatory,
			SequencedAt: tm.nextSeq,
			Item:        item,
		})
		tm.nextSeq++

		if trigger.Once {
			toRemove = append(toRemove, id)
		}
	}

	for _, id := range toRemove {
		delete(tm.triggers, id)
		for i, tid := range tm.order {
			if tid == id {
				tm.order = append(tm.order[:i], tm.order[i+1:]...)
				break
			}
		}
	}

	return pending
}

// Size returns the number of registered triggers.
func (tm *TriggerManager) Size() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return len(tm.triggers)
}
