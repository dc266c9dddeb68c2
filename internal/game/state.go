package game

import (
	"math/rand"

	"github.com/A2152225/MTGEDH-sub013/internal/game/counters"
	"github.com/A2152225/MTGEDH-sub013/internal/game/rules"
)

// Zone identifies where a card object currently lives.
type Zone string

const (
	ZoneLibrary     Zone = "library"
	ZoneHand        Zone = "hand"
	ZoneBattlefield Zone = "battlefield"
	ZoneGraveyard   Zone = "graveyard"
	ZoneExile       Zone = "exile"
	ZoneStack       Zone = "stack"
	ZoneCommand     Zone = "command"
)

// Card is one card object. The same struct travels through every
// zone; battlefield residency adds a Permanent wrapper around it.
type Card struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Owner     string `json:"owner"`
	TypeLine  string `json:"type_line,omitempty"`
	Text      string `json:"text,omitempty"`
	Power     int    `json:"power,omitempty"`
	Toughness int    `json:"toughness,omitempty"`
	Loyalty   int    `json:"loyalty,omitempty"`
	Creature  bool   `json:"creature,omitempty"`
	Land      bool   `json:"land,omitempty"`
	Legendary bool   `json:"legendary,omitempty"`
	Token     bool   `json:"token,omitempty"`
	Commander bool   `json:"commander,omitempty"`
	Suspended bool   `json:"suspended,omitempty"`
}

// Permanent is a card or token on the battlefield.
type Permanent struct {
	ID           string             `json:"id"`
	Card         Card               `json:"card"`
	Controller   string             `json:"controller"`
	Tapped       bool               `json:"tapped"`
	Damage       int                `json:"damage"`
	Deathtouched bool               `json:"deathtouched"`
	Counters     *counters.Counters `json:"counters"`
	AttachedTo   string             `json:"attached_to,omitempty"`
	Attachments  []string           `json:"attachments,omitempty"`
	Aura         bool               `json:"aura,omitempty"`
	Equipment    bool               `json:"equipment,omitempty"`
	Planeswalker bool               `json:"planeswalker,omitempty"`
	// EnteredSeq orders permanents by battlefield arrival. Rule 704.5j
	// keeps the oldest of several legendary duplicates.
	EnteredSeq int64 `json:"entered_seq"`
}

// CurrentPower returns printed power adjusted by boost counters.
func (p *Permanent) CurrentPower() int {
	power, _ := p.Counters.BoostDeltas()
	return p.Card.Power + power
}

// CurrentToughness returns printed toughness adjusted by boost counters.
func (p *Permanent) CurrentToughness() int {
	_, toughness := p.Counters.BoostDeltas()
	return p.Card.Toughness + toughness
}

// IsCreature reports whether the permanent currently counts as a creature.
func (p *Permanent) IsCreature() bool {
	return p.Card.Creature
}

// playerState holds one player's zones and life totals.
type playerState struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Life int    `json:"life"`

	// Library index 0 is the top card.
	Library     []Card `json:"library"`
	Hand        []Card `json:"hand"`
	Graveyard   []Card `json:"graveyard"`
	Exile       []Card `json:"exile"`
	CommandZone []Card `json:"command_zone"`

	// Derived counts. Kept alongside the slices for snapshot payloads
	// and reconciled against slice lengths after replay.
	LibraryCount   int `json:"library_count"`
	HandCount      int `json:"hand_count"`
	GraveyardCount int `json:"graveyard_count"`

	Poison          int            `json:"poison"`
	CommanderDamage map[string]int `json:"commander_damage"`
	CommanderTax    int            `json:"commander_tax"`

	LandsPlayedThisTurn int `json:"lands_played_this_turn"`

	Lost       bool   `json:"lost"`
	LostReason string `json:"lost_reason,omitempty"`

	// DrewFromEmpty records a draw attempt against an empty library;
	// the next state-based action pass turns it into a loss.
	DrewFromEmpty bool `json:"drew_from_empty,omitempty"`

	MulliganPending    bool `json:"mulligan_pending"`
	MulligansTaken     int  `json:"mulligans_taken"`
	InitialDrawPending bool `json:"initial_draw_pending"`
}

func (ps *playerState) syncCounts() {
	ps.LibraryCount = len(ps.Library)
	ps.HandCount = len(ps.Hand)
	ps.GraveyardCount = len(ps.Graveyard)
}

// zoneSlice returns a pointer to the slice backing a card zone.
// Battlefield and stack are not card zones here.
func (ps *playerState) zoneSlice(zone Zone) *[]Card {
	switch zone {
	case ZoneLibrary:
		return &ps.Library
	case ZoneHand:
		return &ps.Hand
	case ZoneGraveyard:
		return &ps.Graveyard
	case ZoneExile:
		return &ps.Exile
	case ZoneCommand:
		return &ps.CommandZone
	default:
		return nil
	}
}

func (ps *playerState) removeCard(zone Zone, cardID string) (Card, bool) {
	slice := ps.zoneSlice(zone)
	if slice == nil {
		return Card{}, false
	}
	for i, card := range *slice {
		if card.ID == cardID {
			*slice = append((*slice)[:i], (*slice)[i+1:]...)
			ps.syncCounts()
			return card, true
		}
	}
	return Card{}, false
}

func (ps *playerState) addCard(zone Zone, card Card, toTop bool) bool {
	slice := ps.zoneSlice(zone)
	if slice == nil {
		return false
	}
	if toTop {
		*slice = append([]Card{card}, *slice...)
	} else {
		*slice = append(*slice, card)
	}
	ps.syncCounts()
	return true
}

func (ps *playerState) findCard(zone Zone, cardID string) (Card, bool) {
	slice := ps.zoneSlice(zone)
	if slice == nil {
		return Card{}, false
	}
	for _, card := range *slice {
		if card.ID == cardID {
			return card, true
		}
	}
	return Card{}, false
}

// GameState is the root aggregate for one game. It is mutated only by
// ApplyEvent; command handlers express every change as an event first.
type GameState struct {
	ID string

	// PlayerOrder defines turn order and is stable for the whole game.
	PlayerOrder []string
	players     map[string]*playerState

	battlefield      map[string]*Permanent
	battlefieldOrder []string

	Stack      *rules.StackManager
	Turn       *rules.TurnManager
	Priority   *rules.PriorityTracker
	Resolution *ResolutionQueue

	// stackEffects keys the data-only effect of each stack item by
	// item id, so resolution is replayable without closures.
	stackEffects map[string]EffectSpec
	// stackCards holds the physical card of each spell while it is on
	// the stack, keyed by item id.
	stackCards map[string]Card

	// Seq is the authoritative total order of committed mutations.
	Seq int64

	Seed int64
	rng  *rand.Rand

	StartingLife int
	Finished     bool
	WinnerID     string

	log []Event
}

// NewGameState builds an empty state for a game id.
func NewGameState(id string) *GameState {
	return &GameState{
		ID:           id,
		players:      make(map[string]*playerState),
		battlefield:  make(map[string]*Permanent),
		Stack:        rules.NewStackManager(),
		Turn:         rules.NewTurnManager(""),
		Priority:     rules.NewPriorityTracker(),
		Resolution:   NewResolutionQueue(),
		stackEffects: make(map[string]EffectSpec),
		stackCards:   make(map[string]Card),
		StartingLife: 40,
	}
}

// Player returns a player's state, or nil.
func (s *GameState) Player(id string) *playerState {
	return s.players[id]
}

// AlivePlayers returns the turn-ordered ids of players still in the game.
func (s *GameState) AlivePlayers() []string {
	alive := make([]string, 0, len(s.PlayerOrder))
	for _, id := range s.PlayerOrder {
		if ps := s.players[id]; ps != nil && !ps.Lost {
			alive = append(alive, id)
		}
	}
	return alive
}

// Permanent returns the battlefield permanent with the given id, or nil.
func (s *GameState) Permanent(id string) *Permanent {
	return s.battlefield[id]
}

// Battlefield returns permanents in deterministic arrival order.
func (s *GameState) Battlefield() []*Permanent {
	perms := make([]*Permanent, 0, len(s.battlefieldOrder))
	for _, id := range s.battlefieldOrder {
		if p, ok := s.battlefield[id]; ok {
			perms = append(perms, p)
		}
	}
	return perms
}

func (s *GameState) addPermanent(p *Permanent) {
	s.battlefield[p.ID] = p
	s.battlefieldOrder = append(s.battlefieldOrder, p.ID)
}

func (s *GameState) removePermanent(id string) (*Permanent, bool) {
	p, ok := s.battlefield[id]
	if !ok {
		return nil, false
	}
	delete(s.battlefield, id)
	for i, pid := range s.battlefieldOrder {
		if pid == id {
			s.battlefieldOrder = append(s.battlefieldOrder[:i], s.battlefieldOrder[i+1:]...)
			break
		}
	}
	return p, true
}

// Log returns the in-memory event log.
func (s *GameState) Log() []Event {
	return s.log
}

// APNAPPlayers lists players still in the game starting with the
// active player.
func (s *GameState) APNAPPlayers() []string {
	return rules.APNAPOrder(s.AlivePlayers(), s.Turn.ActivePlayer())
}

// GameStateAccessor implementation for target legality review.

// PermanentOnBattlefield reports whether id is a battlefield permanent.
func (s *GameState) PermanentOnBattlefield(id string) bool {
	_, ok := s.battlefield[id]
	return ok
}

// PlayerInGame reports whether id is a player who has not lost.
func (s *GameState) PlayerInGame(id string) bool {
	ps, ok := s.players[id]
	return ok && !ps.Lost
}

// StackItemPresent reports whether id is still on the stack.
func (s *GameState) StackItemPresent(id string) bool {
	_, ok := s.Stack.Get(id)
	return ok
}

// CardInZone reports whether any player's copy of the named zone holds
// the card.
func (s *GameState) CardInZone(cardID, zone string) bool {
	for _, id := range s.PlayerOrder {
		if _, ok := s.players[id].findCard(Zone(zone), cardID); ok {
			return true
		}
	}
	return false
}

var _ rules.GameStateAccessor = (*GameState)(nil)
