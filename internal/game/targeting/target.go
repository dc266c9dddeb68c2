// Package targeting describes target requirements for spells and
// abilities and validates player selections against them.
package targeting

import (
	"fmt"

	"github.com/A2152225/MTGEDH-sub013/internal/game/rules"
)

// Requirement describes one target slot of a spell or ability.
type Requirement struct {
	// Kind is the legality-checker target kind: "permanent",
	// "player", "stack_item" or "card".
	Kind string `json:"kind"`
	// Zone restricts card targets to a zone. Empty means any.
	Zone string `json:"zone,omitempty"`
	// Min and Max bound how many targets must be chosen.
	Min int `json:"min"`
	Max int `json:"max"`
	// Optional requirements ("up to N") accept zero selections
	// regardless of Min.
	Optional    bool   `json:"optional"`
	Description string `json:"description,omitempty"`
}

// AnyNumber is used as Max for "any number of targets".
const AnyNumber = -1

// Exactly builds a requirement for exactly n targets of a kind.
func Exactly(kind string, n int) Requirement {
	return Requirement{Kind: kind, Min: n, Max: n}
}

// UpTo builds an optional requirement for zero to n targets.
func UpTo(kind string, n int) Requirement {
	return Requirement{Kind: kind, Min: 0, Max: n, Optional: true}
}

// Selection is a player's answer to one requirement.
type Selection struct {
	Requirement Requirement
	ChosenIDs   []string
}

// CountValid reports whether the number of chosen targets satisfies
// the requirement's bounds.
func (s *Selection) CountValid() bool {
	n := len(s.ChosenIDs)
	if s.Requirement.Optional && n == 0 {
		return true
	}
	if n < s.Requirement.Min {
		return false
	}
	if s.Requirement.Max != AnyNumber && n > s.Requirement.Max {
		return false
	}
	return true
}

// ToTargets converts the selection into stack item targets, all
// initially legal.
func (s *Selection) ToTargets() []rules.Target {
	targets := make([]rules.Target, 0, len(s.ChosenIDs))
	for _, id := range s.ChosenIDs {
		targets = append(targets, rules.Target{ID: id, Kind: s.Requirement.Kind, Legal: true})
	}
	return targets
}

// Validator checks selections against game state.
type Validator struct {
	checker *rules.LegalityChecker
}

// NewValidator wraps a legality checker. A nil checker accepts any
// selection whose count is in bounds.
func NewValidator(checker *rules.LegalityChecker) *Validator {
	return &Validator{checker: checker}
}

// Validate checks one selection: count bounds, duplicates, and the
// legality of each chosen target. The first problem found is returned.
func (v *Validator) Validate(sel *Selection) error {
	if sel == nil {
		return fmt.Errorf("no selection provided")
	}
	if !sel.CountValid() {
		req := sel.Requirement
		if req.Max == AnyNumber {
			return fmt.Errorf("requires at least %d target(s), got %d", req.Min, len(sel.ChosenIDs))
		}
		return fmt.Errorf("requires %d to %d target(s), got %d", req.Min, req.Max, len(sel.ChosenIDs))
	}
	seen := make(map[string]bool, len(sel.ChosenIDs))
	for _, id := range sel.ChosenIDs {
		if seen[id] {
			return fmt.Errorf("target %s chosen more than once", id)
		}
		seen[id] = true
		result := v.checker.CheckTarget(rules.Target{ID: id, Kind: sel.Requirement.Kind, Legal: true})
		if !result.Legal {
			return fmt.Errorf("target %s is not a legal %s: %s", id, sel.Requirement.Kind, result.Reason)
		}
	}
	return nil
}

// ValidateAll checks a full set of selections against the
// requirements they must satisfy, in order.
func (v *Validator) ValidateAll(reqs []Requirement, selections []*Selection) error {
	if len(selections) != len(reqs) {
		return fmt.Errorf("expected %d selection(s), got %d", len(reqs), len(selections))
	}
	for i, sel := range selections {
		if sel == nil {
			return fmt.Errorf("selection %d missing", i)
		}
		sel.Requirement = reqs[i]
		if err := v.Validate(sel); err != nil {
			return fmt.Errorf("selection %d: %w", i, err)
		}
	}
	return nil
}
