package counters

// Well-known counter names. The engine treats counter names as opaque
// strings; these constants cover the kinds the rules engine itself
// inspects or places.
const (
	// Boost counters, parsed by name for power/toughness deltas.
	PlusOnePlusOne   = "+1/+1"
	MinusOneMinusOne = "-1/-1"

	// Player counters.
	Poison     = "poison"
	Energy     = "energy"
	Experience = "experience"

	// Common permanent counters.
	Charge  = "charge"
	Loyalty = "loyalty"
	Lore    = "lore"
	Stun    = "stun"
	Time    = "time"
	Shield  = "shield"
	Finality = "finality"
)

// NewPlusOnePlusOne creates count +1/+1 counters.
func NewPlusOnePlusOne(count int) *BoostCounter {
	return NewBoostCounter(1, 1, count)
}

// NewMinusOneMinusOne creates count -1/-1 counters.
func NewMinusOneMinusOne(count int) *BoostCounter {
	return NewBoostCounter(-1, -1, count)
}

// NewPoison creates count poison counters.
func NewPoison(count int) *Counter {
	return NewCounter(Poison, count)
}

// NewLoyalty creates count loyalty counters.
func NewLoyalty(count int) *Counter {
	return NewCounter(Loyalty, count)
}
