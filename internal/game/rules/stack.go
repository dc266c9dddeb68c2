package rules

import (
	"errors"
	"sync"
)

// StackItemKind describes the type of object on the stack.
type StackItemKind string

const (
	// StackItemKindSpell represents a spell cast by a player.
	StackItemKindSpell StackItemKind = "SPELL"
	// StackItemKindActivated represents an activated ability.
	StackItemKindActivated StackItemKind = "ACTIVATED"
	// StackItemKindTriggered represents a triggered ability.
	StackItemKindTriggered StackItemKind = "TRIGGERED"
)

// Target is a chosen target of a stack item. Targets are validated
// when chosen but can become illegal afterwards, so each carries its
// own legality flag that is re-checked on resolution.
type Target struct {
	ID    string
	Kind  string // "permanent", "player", "stack_item", "card"
	Legal bool
}

// StackItem represents a single object on the stack.
type StackItem struct {
	ID          string
	Kind        StackItemKind
	Controller  string
	Owner       string
	SourceID    string
	Description string
	Targets     []Target
	// Timestamp is the stack-insertion order. Later timestamps resolve
	// first (LIFO) and break ties for copy semantics.
	Timestamp int
	Metadata  map[string]string
	Resolve   func() error
	OnRemove  func()
}

// HasLegalTarget reports whether at least one chosen target is still
// legal. Items with no targets are always considered legal.
func (si StackItem) HasLegalTarget() bool {
	if len(si.Targets) == 0 {
		return true
	}
	for _, target := range si.Targets {
		if target.Legal {
			return true
		}
	}
	return false
}

// StackManager manages the game stack.
type StackManager struct {
	mu            sync.Mutex
	items         []StackItem
	nextTimestamp int
}

// NewStackManager creates a new stack manager.
func NewStackManager() *StackManager {
	return &StackManager{
		items: make([]StackItem, 0, 16),
	}
}

// Push adds an item to the top of the stack, stamping it with the next
// insertion timestamp.
func (sm *StackManager) Push(item StackItem) StackItem {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	item.Timestamp = sm.nextTimestamp
	sm.nextTimestamp++
	sm.items = append(sm.items, item)
	return item
}

// Pop removes and returns the top item from the stack.
func (sm *StackManager) Pop() (StackItem, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if len(sm.items) == 0 {
		return StackItem{}, errors.New("stack empty")
	}

	idx := len(sm.items) - 1
	item := sm.items[idx]
	sm.items = sm.items[:idx]
	return item, nil
}

// Remove deletes an item from anywhere in the stack by ID.
func (sm *StackManager) Remove(id string) (StackItem, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for idx := len(sm.items) - 1; idx >= 0; idx-- {
		if sm.items[idx].ID == id {
			item := sm.items[idx]
			sm.items = append(sm.items[:idx], sm.items[idx+1:]...)
			return item, true
		}
	}
	return StackItem{}, false
}

// Peek returns the top item without removing it.
func (sm *StackManager) Peek() (StackItem, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if len(sm.items) == 0 {
		return StackItem{}, false
	}
	return sm.items[len(sm.items)-1], true
}

// Get returns the item with the given ID without removing it.
func (sm *StackManager) Get(id string) (StackItem, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for idx := range sm.items {
		if sm.items[idx].ID == id {
			return sm.items[idx], true
		}
	}
	return StackItem{}, false
}

// AddTargets appends targets to the identified stack item. Returns
// false if the item is unknown.
func (sm *StackManager) AddTargets(itemID string, targets []Target) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for i := range sm.items {
		if sm.items[i].ID == itemID {
			sm.items[i].Targets = append(sm.items[i].Targets, targets...)
			return true
		}
	}
	return false
}

// MarkTargetIllegal flags a target of the identified stack item as no
// longer legal. Returns false if the item or target is unknown.
func (sm *StackManager) MarkTargetIllegal(itemID, targetID string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for i := range sm.items {
		if sm.items[i].ID != itemID {
			continue
		}
		for j := range sm.items[i].Targets {
			if sm.items[i].Targets[j].ID == targetID {
				sm.items[i].Targets[j].Legal = false
				return true
			}
		}
		return false
	}
	return false
}

// List returns a copy of all stack items (topmost last).
func (sm *StackManager) List() []StackItem {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	cpy := make([]StackItem, len(sm.items))
	copy(cpy, sm.items)
	return cpy
}

// Size returns the number of items on the stack.
func (sm *StackManager) Size() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.items)
}

// IsEmpty returns whether the stack is empty.
func (sm *StackManager) IsEmpty() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.items) == 0
}

// Clear removes every item from the stack, invoking removal hooks.
// Insertion timestamps are not reset; they keep growing for the life
// of the game so copies keep a total order.
func (sm *StackManager) Clear() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for _, item := range sm.items {
		if item.OnRemove != nil {
			item.OnRemove()
		}
	}
	sm.items = sm.items[:0]
}

// RemoveItemsWithoutLegalTargets removes every targeted item whose
// targets have all become illegal. Such items are countered by the
// rules rather than resolving. Returns the IDs of removed items.
func (sm *StackManager) RemoveItemsWithoutLegalTargets() []string {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	var removedIDs []string
	validItems := make([]StackItem, 0, len(sm.items))

	for _, item := range sm.items {
		if !item.HasLegalTarget() {
			removedIDs = append(removedIDs, item.ID)
			if item.OnRemove != nil {
				item.OnRemove()
			}
		} else {
			validItems = append(validItems, item)
		}
	}

	sm.items = validItems
	return removedIDs
}
