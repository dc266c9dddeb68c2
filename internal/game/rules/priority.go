package rules

import (
	"fmt"
	"sync"
)

// APNAPOrder returns the player list starting with the active player
// and continuing in turn order. This is the canonical ordering for
// simultaneous choices and trigger placement (rule 101.4).
func APNAPOrder(playerOrder []string, activePlayer string) []string {
	result := make([]string, 0, len(playerOrder))

	activeIndex := -1
	for i, pid := range playerOrder {
		if pid == activePlayer {
			activeIndex = i
			break
		}
	}
	if activeIndex == -1 {
		result = append(result, playerOrder...)
		return result
	}

	for i := 0; i < len(playerOrder); i++ {
		idx := (activeIndex + i) % len(playerOrder)
		result = append(result, playerOrder[idx])
	}
	return result
}

// APNAPIndex returns the position of player in APNAP order relative to
// the active player, or -1 if the player is not in the roster. The
// active player is index 0.
func APNAPIndex(playerOrder []string, activePlayer, player string) int {
	for i, pid := range APNAPOrder(playerOrder, activePlayer) {
		if pid == player {
			return i
		}
	}
	return -1
}

// PriorityTracker counts consecutive passes around the table. The top
// of the stack resolves, or the step advances, only once every player
// still in the game has passed in succession with no action taken.
type PriorityTracker struct {
	passesInRow int
}

// NewPriorityTracker creates a tracker with zero passes recorded.
func NewPriorityTracker() *PriorityTracker {
	return &PriorityTracker{}
}

// RecordPass notes that the priority player passed without acting.
func (pt *PriorityTracker) RecordPass() {
	pt.passesInRow++
}

// RecordAction notes that a player took an action. Any action resets
// the pass count and priority returns to the active player.
func (pt *PriorityTracker) RecordAction() {
	pt.passesInRow = 0
}

// PassesInRow returns the number of consecutive passes recorded.
func (pt *PriorityTracker) PassesInRow() int {
	return pt.passesInRow
}

// SetPasses restores the pass counter. Used when rebuilding state from
// the event log.
func (pt *PriorityTracker) SetPasses(n int) {
	if n < 0 {
		n = 0
	}
	pt.passesInRow = n
}

// AllPassed reports whether every one of playerCount players has
// passed in succession.
func (pt *PriorityTracker) AllPassed(playerCount int) bool {
	return playerCount > 0 && pt.passesInRow >= playerCount
}

// ResolutionContext tracks what stack object is currently resolving.
// Resolution can nest (an effect may resolve another object directly),
// so this keeps a stack of resolving IDs with a depth guard.
type ResolutionContext struct {
	mu             sync.RWMutex
	resolvingStack []string
	maxDepth       int
}

// NewResolutionContext creates a resolution context.
func NewResolutionContext() *ResolutionContext {
	return &ResolutionContext{
		resolvingStack: make([]string, 0, 8),
		maxDepth:       10,
	}
}

// BeginResolution marks the start of resolving a stack item.
func (rc *ResolutionContext) BeginResolution(itemID string) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if len(rc.resolvingStack) >= rc.maxDepth {
		return fmt.Errorf("maximum resolution depth (%d) exceeded", rc.maxDepth)
	}
	rc.resolvingStack = append(rc.resolvingStack, itemID)
	return nil
}

// EndResolution marks the end of resolving a stack item.
func (rc *ResolutionContext) EndResolution(itemID string) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if len(rc.resolvingStack) == 0 {
		return fmt.Errorf("no item currently resolving")
	}
	current := rc.resolvingStack[len(rc.resolvingStack)-1]
	if current != itemID {
		return fmt.Errorf("resolution mismatch: expected %s, got %s", current, itemID)
	}
	rc.resolvingStack = rc.resolvingStack[:len(rc.resolvingStack)-1]
	return nil
}

// IsResolving returns true if something is currently resolving.
func (rc *ResolutionContext) IsResolving() bool {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return len(rc.resolvingStack) > 0
}

// CurrentResolvingID returns the innermost resolving item ID.
func (rc *ResolutionContext) CurrentResolvingID() string {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	if len(rc.resolvingStack) == 0 {
		return ""
	}
	return rc.resolvingStack[len(rc.resolvingStack)-1]
}

// Reset clears all resolution state.
func (rc *ResolutionContext) Reset() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.resolvingStack = rc.resolvingStack[:0]
}
