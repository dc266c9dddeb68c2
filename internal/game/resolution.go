package game

import (
	"sort"
	"time"
)

// StepType tags the kind of decision a ResolutionStep asks for.
type StepType string

const (
	StepChooseTargets    StepType = "choose_targets"
	StepChooseMode       StepType = "choose_mode"
	StepDiscard          StepType = "discard"
	StepScry             StepType = "scry"
	StepSurveil          StepType = "surveil"
	StepSearchLibrary    StepType = "search_library"
	StepOrderTriggers    StepType = "order_triggers"
	StepMulligan         StepType = "mulligan"
	StepSuspendCast      StepType = "suspend_cast"
	StepDeclareAttackers StepType = "declare_attackers"
	StepDeclareBlockers  StepType = "declare_blockers"
	StepCommanderZone    StepType = "commander_zone"
)

// AnyNumberOfSelections as MaxSelections lifts the upper bound.
const AnyNumberOfSelections = -1

// StepPayload declares the legal response shape for one step.
type StepPayload struct {
	// MinSelections/MaxSelections bound the number of chosen ids.
	// MaxSelections of -1 means any number.
	MinSelections int `json:"min_selections"`
	MaxSelections int `json:"max_selections"`
	// Options is the legal option set. Empty means the option set is
	// checked against game state instead (see Zone).
	Options []string `json:"options,omitempty"`
	// Zone, when set, requires every selection to be a card currently
	// in that zone (a state precondition checked at submission time).
	// Steps whose options are literals rather than card ids must
	// leave it empty and use FromZone for any zone bookkeeping.
	Zone Zone `json:"zone,omitempty"`
	// FromZone records where the card named by CardID sits. Unlike
	// Zone it is data for the step's consumer, not a precondition.
	FromZone Zone `json:"from_zone,omitempty"`
	// CardID names the specific card the step is about, e.g. the
	// suspended card a cast step will move to exile.
	CardID string `json:"card_id,omitempty"`
	// Count carries the depth of scry/surveil style steps.
	Count  int    `json:"count,omitempty"`
	Prompt string `json:"prompt,omitempty"`
}

// ResolutionStep is a single queued request for player input. It is
// inert data; nothing blocks while it waits.
type ResolutionStep struct {
	ID        string   `json:"id"`
	Type      StepType `json:"type"`
	Player    string   `json:"player"`
	Mandatory bool     `json:"mandatory"`
	// Priority orders steps; lower resolves first. APNAPIndex breaks
	// ties when several players' steps become pending together.
	Priority   int `json:"priority"`
	APNAPIndex int `json:"apnap_index"`
	// CreatedSeq breaks remaining ties deterministically.
	CreatedSeq int64       `json:"created_seq"`
	TimeoutMs  int         `json:"timeout_ms,omitempty"`
	Payload    StepPayload `json:"payload"`
	// SourceItemID links the step to the stack item or trigger that
	// spawned it, for cancellation when that object leaves play.
	SourceItemID string `json:"source_item_id,omitempty"`

	activatedAt time.Time
}

// Deadline returns when an activated step times out, or zero if it
// has no timeout or is not active.
func (rs *ResolutionStep) Deadline() time.Time {
	if rs.TimeoutMs <= 0 || rs.activatedAt.IsZero() {
		return time.Time{}
	}
	return rs.activatedAt.Add(time.Duration(rs.TimeoutMs) * time.Millisecond)
}

// ResolutionQueue holds pending steps in resolution order with at
// most one active at a time.
type ResolutionQueue struct {
	steps    []*ResolutionStep
	activeID string
}

// NewResolutionQueue creates an empty queue.
func NewResolutionQueue() *ResolutionQueue {
	return &ResolutionQueue{}
}

// Enqueue inserts a step and restores resolution order. The active
// step, if any, keeps its position at the head.
func (q *ResolutionQueue) Enqueue(step *ResolutionStep) {
	q.steps = append(q.steps, step)
	q.sortSteps()
}

func (q *ResolutionQueue) sortSteps() {
	sort.SliceStable(q.steps, func(i, j int) bool {
		a, b := q.steps[i], q.steps[j]
		if a.ID == q.activeID != (b.ID == q.activeID) {
			return a.ID == q.activeID
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.APNAPIndex != b.APNAPIndex {
			return a.APNAPIndex < b.APNAPIndex
		}
		return a.CreatedSeq < b.CreatedSeq
	})
}

// Active returns the currently active step, or nil.
func (q *ResolutionQueue) Active() *ResolutionStep {
	if q.activeID == "" {
		return nil
	}
	step, _ := q.Get(q.activeID)
	return step
}

// activate marks a specific queued step active and stamps its
// activation time, which starts any timeout clock.
func (q *ResolutionQueue) activate(id string, at time.Time) bool {
	step, ok := q.Get(id)
	if !ok {
		return false
	}
	q.activeID = id
	step.activatedAt = at
	q.sortSteps()
	return true
}

// Get returns the step with the given id.
func (q *ResolutionQueue) Get(id string) (*ResolutionStep, bool) {
	for _, step := range q.steps {
		if step.ID == id {
			return step, true
		}
	}
	return nil, false
}

// Has reports whether the step id is still queued.
func (q *ResolutionQueue) Has(id string) bool {
	_, ok := q.Get(id)
	return ok
}

// Remove deletes a step without completing it. Used for cancellation;
// callers must not treat removal as the step's side effect.
func (q *ResolutionQueue) Remove(id string) (*ResolutionStep, bool) {
	for i, step := range q.steps {
		if step.ID == id {
			q.steps = append(q.steps[:i], q.steps[i+1:]...)
			if q.activeID == id {
				q.activeID = ""
			}
			return step, true
		}
	}
	return nil, false
}

// Len returns the number of queued steps.
func (q *ResolutionQueue) Len() int {
	return len(q.steps)
}

// List returns the queued steps in resolution order.
func (q *ResolutionQueue) List() []*ResolutionStep {
	out := make([]*ResolutionStep, len(q.steps))
	copy(out, q.steps)
	return out
}

// Clear drops every step.
func (q *ResolutionQueue) Clear() {
	q.steps = nil
	q.activeID = ""
}

// validateCardinality checks the selection count against the payload
// bounds.
func validateCardinality(payload StepPayload, selections []string) bool {
	n := len(selections)
	if n < payload.MinSelections {
		return false
	}
	if payload.MaxSelections >= 0 && n > payload.MaxSelections {
		return false
	}
	return true
}

// validateMembership checks every selection against the declared
// option set, including duplicates.
func validateMembership(payload StepPayload, selections []string) (string, bool) {
	if len(payload.Options) == 0 {
		return "", true
	}
	allowed := make(map[string]bool, len(payload.Options))
	for _, opt := range payload.Options {
		allowed[opt] = true
	}
	for _, sel := range selections {
		if !allowed[sel] {
			return sel, false
		}
		// Each option may be chosen once.
		allowed[sel] = false
	}
	return "", true
}

// defaultSelections synthesizes the response a timed-out step resolves
// to, exactly as if a client had sent it: the minimal legal choice.
func defaultSelections(step *ResolutionStep) []string {
	payload := step.Payload
	if payload.MinSelections <= 0 {
		return nil
	}
	if len(payload.Options) >= payload.MinSelections {
		return append([]string(nil), payload.Options[:payload.MinSelections]...)
	}
	return append([]string(nil), payload.Options...)
}
