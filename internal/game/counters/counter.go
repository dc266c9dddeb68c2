package counters

import (
	"fmt"
	"strconv"
	"strings"
)

// Counter is a named pile of counters on a permanent or player.
type Counter struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// NewCounter creates a counter with the given name and count.
// A non-positive count is normalized to 1.
func NewCounter(name string, count int) *Counter {
	if count <= 0 {
		count = 1
	}
	return &Counter{Name: name, Count: count}
}

// Add increases the count. Negative amounts are ignored.
func (c *Counter) Add(amount int) {
	if amount > 0 {
		c.Count += amount
	}
}

// Remove decreases the count, clamping at zero.
func (c *Counter) Remove(amount int) {
	if amount <= 0 {
		return
	}
	c.Count -= amount
	if c.Count < 0 {
		c.Count = 0
	}
}

// Copy returns an independent copy of the counter.
func (c *Counter) Copy() *Counter {
	dup := *c
	return &dup
}

// BoostCounter is a power/toughness modifying counter such as +1/+1 or -1/-1.
type BoostCounter struct {
	*Counter
	Power     int
	Toughness int
}

// NewBoostCounter creates a boost counter named after its deltas, e.g. "+1/+1".
func NewBoostCounter(power, toughness, count int) *BoostCounter {
	return &BoostCounter{
		Counter:   NewCounter(boostName(power, toughness), count),
		Power:     power,
		Toughness: toughness,
	}
}

// Copy returns an independent copy of the boost counter.
func (bc *BoostCounter) Copy() *BoostCounter {
	return &BoostCounter{
		Counter:   bc.Counter.Copy(),
		Power:     bc.Power,
		Toughness: bc.Toughness,
	}
}

func boostName(power, toughness int) string {
	return fmt.Sprintf("%+d/%+d", power, toughness)
}

// parseBoostName parses names like "+1/+1" or "-2/-2" into their deltas.
func parseBoostName(name string) (power, toughness int, ok bool) {
	left, right, found := strings.Cut(name, "/")
	if !found {
		return 0, 0, false
	}
	// Require an explicit sign so plain names like "charge" never match.
	if len(left) < 2 || len(right) < 2 {
		return 0, 0, false
	}
	if (left[0] != '+' && left[0] != '-') || (right[0] != '+' && right[0] != '-') {
		return 0, 0, false
	}
	power, err := strconv.Atoi(left)
	if err != nil {
		return 0, 0, false
	}
	toughness, err = strconv.Atoi(right)
	if err != nil {
		return 0, 0, false
	}
	return power, toughness, true
}

// Counters is a collection of counters keyed by name.
type Counters struct {
	Counters map[string]*Counter `json:"counters"`
}

// NewCounters creates an empty collection.
func NewCounters() *Counters {
	return &Counters{Counters: make(map[string]*Counter)}
}

// AddCounter merges a counter into the collection.
func (cs *Counters) AddCounter(counter *Counter) {
	if counter == nil {
		return
	}
	if existing, ok := cs.Counters[counter.Name]; ok {
		existing.Add(counter.Count)
		return
	}
	cs.Counters[counter.Name] = counter.Copy()
}

// RemoveCounter removes up to amount counters of the given name.
// Returns the number actually removed.
func (cs *Counters) RemoveCounter(name string, amount int) int {
	if amount <= 0 {
		return 0
	}
	counter, ok := cs.Counters[name]
	if !ok {
		return 0
	}
	removed := amount
	if removed > counter.Count {
		removed = counter.Count
	}
	counter.Remove(removed)
	if counter.Count == 0 {
		delete(cs.Counters, name)
	}
	return removed
}

// GetCount returns the count of counters with the given name.
func (cs *Counters) GetCount(name string) int {
	if counter, ok := cs.Counters[name]; ok {
		return counter.Count
	}
	return 0
}

// HasCounter reports whether any counters with the given name are present.
func (cs *Counters) HasCounter(name string) bool {
	return cs.GetCount(name) > 0
}

// TotalCount returns the number of counters across all names.
func (cs *Counters) TotalCount() int {
	total := 0
	for _, counter := range cs.Counters {
		total += counter.Count
	}
	return total
}

// BoostDeltas sums the power/toughness contributions of all boost counters.
func (cs *Counters) BoostDeltas() (power, toughness int) {
	for _, counter := range cs.Counters {
		p, t, ok := parseBoostName(counter.Name)
		if !ok {
			continue
		}
		power += p * counter.Count
		toughness += t * counter.Count
	}
	return power, toughness
}

// Copy returns a deep copy of the collection.
func (cs *Counters) Copy() *Counters {
	dup := NewCounters()
	for name, counter := range cs.Counters {
		dup.Counters[name] = counter.Copy()
	}
	return dup
}

// CounterView is the client-facing shape of a counter pile.
type CounterView struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ToView flattens the collection for client snapshots.
func (cs *Counters) ToView() []CounterView {
	views := make([]CounterView, 0, len(cs.Counters))
	for name, counter := range cs.Counters {
		views = append(views, CounterView{Name: name, Count: counter.Count})
	}
	return views
}
