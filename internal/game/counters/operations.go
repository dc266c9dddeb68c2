package counters

import (
	"sort"

	"github.com/A2152225/MTGEDH-sub013/internal/game/rules"
)

// Publisher is the slice of the event bus counter operations need.
type Publisher interface {
	Publish(event rules.Event)
}

// AddCounters places counters on a target and publishes one
// COUNTER_ADDED occurrence carrying the amount. Trigger detection
// (e.g. proliferate payoffs, "whenever a counter is put on") hangs off
// the published event, not off the mutation itself.
func AddCounters(bus Publisher, target *Counters, targetID, sourceID, controllerID string, counter *Counter) {
	if target == nil || counter == nil || counter.Count <= 0 {
		return
	}
	target.AddCounter(counter)
	if bus == nil {
		return
	}
	evt := rules.NewEventWithAmount(rules.EventCounterAdded, targetID, sourceID, controllerID, counter.Count)
	evt.Data = counter.Name
	bus.Publish(evt)
}

// RemoveCounters removes up to amount counters of the given name and
// publishes a COUNTER_REMOVED occurrence with the amount actually
// removed. Returns that amount.
func RemoveCounters(bus Publisher, target *Counters, targetID, sourceID, controllerID, name string, amount int) int {
	if target == nil {
		return 0
	}
	removed := target.RemoveCounter(name, amount)
	if removed == 0 {
		return 0
	}
	if bus != nil {
		evt := rules.NewEventWithAmount(rules.EventCounterRemoved, targetID, sourceID, controllerID, removed)
		evt.Data = name
		bus.Publish(evt)
	}
	return removed
}

// Proliferate adds one counter of each kind already present on the
// target. Per rule 701.33a each added counter publishes its own
// COUNTER_ADDED occurrence.
func Proliferate(bus Publisher, target *Counters, targetID, sourceID, controllerID string) {
	if target == nil {
		return
	}
	names := make([]string, 0, len(target.Counters))
	for name := range target.Counters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		AddCounters(bus, target, targetID, sourceID, controllerID, NewCounter(name, 1))
	}
}
