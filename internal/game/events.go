package game

import (
	"encoding/json"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/A2152225/MTGEDH-sub013/internal/game/counters"
	"github.com/A2152225/MTGEDH-sub013/internal/game/rules"
)

// EventType tags a committed mutation record. The set is closed:
// ApplyEvent rejects anything else.
type EventType string

const (
	EventGameCreated     EventType = "game_created"
	EventPlayerJoined    EventType = "player_joined"
	EventSeedSet         EventType = "seed_set"
	EventLibraryLoaded   EventType = "library_loaded"
	EventLibraryShuffled EventType = "library_shuffled"
	EventCardDrawn       EventType = "card_drawn"
	EventCardMoved       EventType = "card_moved"

	EventPermanentEntered  EventType = "permanent_entered"
	EventPermanentLeft     EventType = "permanent_left"
	EventPermanentTapped   EventType = "permanent_tapped"
	EventPermanentUntapped EventType = "permanent_untapped"
	EventAttachmentChanged EventType = "attachment_changed"
	EventCountersChanged   EventType = "counters_changed"
	EventDamageMarked      EventType = "damage_marked"
	EventDamageCleared     EventType = "damage_cleared"

	EventLifeChanged     EventType = "life_changed"
	EventPoisonChanged   EventType = "poison_changed"
	EventCommanderDamage EventType = "commander_damage"
	EventCommanderTax    EventType = "commander_tax"

	EventStackPushed    EventType = "stack_pushed"
	EventStackResolved  EventType = "stack_resolved"
	EventStackCountered EventType = "stack_countered"
	EventTargetIllegal  EventType = "target_illegal"
	EventTargetChosen   EventType = "target_chosen"
	EventModeChosen     EventType = "mode_chosen"
	EventItemFizzled    EventType = "item_fizzled"

	EventLandPlayed     EventType = "land_played"
	EventPriorityPassed EventType = "priority_passed"
	EventStepAdvanced   EventType = "step_advanced"

	EventStepQueued    EventType = "step_queued"
	EventStepActivated EventType = "step_activated"
	EventStepCompleted EventType = "step_completed"
	EventStepCancelled EventType = "step_cancelled"

	EventMulliganTaken EventType = "mulligan_taken"
	EventPlayerLost    EventType = "player_lost"
	EventGameFinished  EventType = "game_finished"
	EventGameReset     EventType = "game_reset"
)

// Event is one committed mutation. Replaying the full ordered list
// from an empty state reproduces the same GameState; Timestamp is
// informational and excluded from that guarantee.
type Event struct {
	Seq       int64           `json:"seq"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"ts"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Event payloads. One struct per event type keeps the applier's
// decode step fail-closed: a malformed payload rejects before any
// mutation.

type gameCreatedPayload struct {
	GameID       string `json:"game_id"`
	StartingLife int    `json:"starting_life"`
}

type playerJoinedPayload struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Life     int    `json:"life"`
}

type seedSetPayload struct {
	Seed int64 `json:"seed"`
}

type libraryLoadedPayload struct {
	PlayerID string `json:"player_id"`
	Cards    []Card `json:"cards"`
	// CommandCards seeds the command zone (commander decks).
	CommandCards []Card `json:"command_cards,omitempty"`
}

type libraryShuffledPayload struct {
	PlayerID string `json:"player_id"`
}

type cardDrawnPayload struct {
	PlayerID string `json:"player_id"`
	Count    int    `json:"count"`
	// FromEmpty marks a draw that asked for more cards than the
	// library held.
	FromEmpty bool `json:"from_empty,omitempty"`
}

type cardMovedPayload struct {
	PlayerID string `json:"player_id"`
	CardID   string `json:"card_id"`
	From     Zone   `json:"from"`
	To       Zone   `json:"to"`
	ToTop    bool   `json:"to_top,omitempty"`
}

type permanentEnteredPayload struct {
	Permanent Permanent `json:"permanent"`
	// FromZone, when set, is the owner's zone the card leaves.
	FromZone Zone `json:"from_zone,omitempty"`
}

type permanentLeftPayload struct {
	PermanentID string `json:"permanent_id"`
	// To is the owner's destination zone; tokens cease to exist and
	// ignore it.
	To     Zone   `json:"to,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type permanentTappedPayload struct {
	PermanentID string `json:"permanent_id"`
}

type attachmentChangedPayload struct {
	PermanentID string `json:"permanent_id"`
	// AttachedTo is the new host; empty detaches.
	AttachedTo string `json:"attached_to,omitempty"`
}

type countersChangedPayload struct {
	// Exactly one of PermanentID/PlayerID is set.
	PermanentID string `json:"permanent_id,omitempty"`
	PlayerID    string `json:"player_id,omitempty"`
	CounterName string `json:"counter_name"`
	Delta       int    `json:"delta"`
}

type damageMarkedPayload struct {
	PermanentID string `json:"permanent_id"`
	Amount      int    `json:"amount"`
	Deathtouch  bool   `json:"deathtouch,omitempty"`
}

type lifeChangedPayload struct {
	PlayerID string `json:"player_id"`
	Delta    int    `json:"delta"`
}

type poisonChangedPayload struct {
	PlayerID string `json:"player_id"`
	Delta    int    `json:"delta"`
}

type commanderDamagePayload struct {
	PlayerID    string `json:"player_id"`
	CommanderID string `json:"commander_id"`
	Amount      int    `json:"amount"`
}

type commanderTaxPayload struct {
	PlayerID string `json:"player_id"`
	Delta    int    `json:"delta"`
}

// stackItemRecord is the serializable shape of a stack item.
type stackItemRecord struct {
	ID          string             `json:"id"`
	Kind        rules.StackItemKind `json:"kind"`
	Controller  string             `json:"controller"`
	Owner       string             `json:"owner"`
	SourceID    string             `json:"source_id,omitempty"`
	Description string             `json:"description,omitempty"`
	Targets     []rules.Target     `json:"targets,omitempty"`
	// CardID links a spell item to the physical card it was cast from.
	CardID string `json:"card_id,omitempty"`
}

type stackPushedPayload struct {
	Item   stackItemRecord `json:"item"`
	Effect EffectSpec      `json:"effect"`
	// FromZone is the caster's zone the card leaves (empty for
	// abilities and copies).
	FromZone Zone `json:"from_zone,omitempty"`
}

type stackRemovedPayload struct {
	ItemID string `json:"item_id"`
	// CardTo is where the spell's card goes (usually the graveyard;
	// empty when a follow-up event places it, e.g. permanents).
	CardTo Zone `json:"card_to,omitempty"`
}

type targetIllegalPayload struct {
	ItemID   string `json:"item_id"`
	TargetID string `json:"target_id"`
}

type targetChosenPayload struct {
	ItemID  string         `json:"item_id"`
	Targets []rules.Target `json:"targets"`
}

type modeChosenPayload struct {
	ItemID string `json:"item_id"`
	Index  int    `json:"index"`
}

type landPlayedPayload struct {
	PlayerID string `json:"player_id"`
	CardID   string `json:"card_id"`
}

type priorityPassedPayload struct {
	PlayerID   string `json:"player_id"`
	NextPlayer string `json:"next_player"`
}

type stepAdvancedPayload struct {
	Turn         int    `json:"turn"`
	Phase        string `json:"phase"`
	Step         string `json:"step"`
	ActivePlayer string `json:"active_player"`
	NewTurn      bool   `json:"new_turn,omitempty"`
}

type stepQueuedPayload struct {
	Step ResolutionStep `json:"step"`
}

type stepRefPayload struct {
	StepID string `json:"step_id"`
	// Selections records the consuming response on step_completed.
	Selections []string `json:"selections,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

type mulliganTakenPayload struct {
	PlayerID string `json:"player_id"`
	Kept     bool   `json:"kept"`
	// Returned lists cards put on the bottom of the library when a
	// hand of fewer cards is kept.
	Returned []string `json:"returned,omitempty"`
}

type playerLostPayload struct {
	PlayerID string `json:"player_id"`
	Reason   string `json:"reason"`
}

type gameFinishedPayload struct {
	WinnerID string `json:"winner_id,omitempty"`
}

type gameResetPayload struct {
	PreservePlayers bool `json:"preserve_players"`
}

// NewEvent builds an event for the state's next sequence number.
func (s *GameState) NewEvent(eventType EventType, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, wrapEngineError(ErrCodeInternal, err, "encode event payload")
	}
	return Event{
		Seq:       s.Seq + 1,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}, nil
}

func decodePayload[T any](evt Event) (T, error) {
	var payload T
	if len(evt.Payload) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		var zero T
		return zero, wrapEngineError(ErrCodeUnknownEvent, err, "malformed %s payload", evt.Type)
	}
	return payload, nil
}

// ApplyEvent folds one event into the state. It is total over the
// closed event set and fails closed: unknown types, malformed
// payloads and sequence gaps reject with a typed error and no
// mutation. On success the event is appended to the in-memory log and
// Seq advances to the event's sequence number.
func (s *GameState) ApplyEvent(evt Event) error {
	if evt.Seq != s.Seq+1 {
		return newEngineError(ErrCodeConflict, "event seq %d does not follow state seq %d", evt.Seq, s.Seq)
	}
	if err := s.applyEventBody(evt); err != nil {
		return err
	}
	s.Seq = evt.Seq
	s.log = append(s.log, evt)
	return nil
}

func (s *GameState) applyEventBody(evt Event) error {
	switch evt.Type {
	case EventGameCreated:
		payload, err := decodePayload[gameCreatedPayload](evt)
		if err != nil {
			return err
		}
		if payload.StartingLife > 0 {
			s.StartingLife = payload.StartingLife
		}
		return nil

	case EventPlayerJoined:
		payload, err := decodePayload[playerJoinedPayload](evt)
		if err != nil {
			return err
		}
		if _, exists := s.players[payload.PlayerID]; exists {
			return newEngineError(ErrCodeConflict, "player already joined: %s", payload.PlayerID)
		}
		life := payload.Life
		if life == 0 {
			life = s.StartingLife
		}
		s.PlayerOrder = append(s.PlayerOrder, payload.PlayerID)
		s.players[payload.PlayerID] = &playerState{
			ID:                 payload.PlayerID,
			Name:               payload.Name,
			Life:               life,
			CommanderDamage:    make(map[string]int),
			InitialDrawPending: true,
		}
		if s.Turn.ActivePlayer() == "" {
			s.Turn.SetPosition(s.Turn.TurnNumber(), s.Turn.CurrentPhase(), s.Turn.CurrentStep(), payload.PlayerID)
			s.Turn.SetPriority(payload.PlayerID)
		}
		return nil

	case EventSeedSet:
		payload, err := decodePayload[seedSetPayload](evt)
		if err != nil {
			return err
		}
		s.Seed = payload.Seed
		s.rng = rand.New(rand.NewSource(payload.Seed))
		return nil

	case EventLibraryLoaded:
		payload, err := decodePayload[libraryLoadedPayload](evt)
		if err != nil {
			return err
		}
		ps := s.players[payload.PlayerID]
		if ps == nil {
			return newEngineError(ErrCodeNotFound, "unknown player: %s", payload.PlayerID)
		}
		ps.Library = append([]Card(nil), payload.Cards...)
		ps.CommandZone = append([]Card(nil), payload.CommandCards...)
		ps.syncCounts()
		return nil

	case EventLibraryShuffled:
		payload, err := decodePayload[libraryShuffledPayload](evt)
		if err != nil {
			return err
		}
		ps := s.players[payload.PlayerID]
		if ps == nil {
			return newEngineError(ErrCodeNotFound, "unknown player: %s", payload.PlayerID)
		}
		if s.rng == nil {
			s.rng = rand.New(rand.NewSource(s.Seed))
		}
		s.rng.Shuffle(len(ps.Library), func(i, j int) {
			ps.Library[i], ps.Library[j] = ps.Library[j], ps.Library[i]
		})
		return nil

	case EventCardDrawn:
		payload, err := decodePayload[cardDrawnPayload](evt)
		if err != nil {
			return err
		}
		ps := s.players[payload.PlayerID]
		if ps == nil {
			return newEngineError(ErrCodeNotFound, "unknown player: %s", payload.PlayerID)
		}
		count := payload.Count
		if count > len(ps.Library) {
			count = len(ps.Library)
		}
		for i := 0; i < count; i++ {
			card := ps.Library[0]
			ps.Library = ps.Library[1:]
			ps.Hand = append(ps.Hand, card)
		}
		if payload.FromEmpty {
			ps.DrewFromEmpty = true
		}
		ps.InitialDrawPending = false
		ps.syncCounts()
		return nil

	case EventCardMoved:
		payload, err := decodePayload[cardMovedPayload](evt)
		if err != nil {
			return err
		}
		ps := s.players[payload.PlayerID]
		if ps == nil {
			return newEngineError(ErrCodeNotFound, "unknown player: %s", payload.PlayerID)
		}
		// Check the destination before touching the source so a
		// rejected event leaves zone order untouched.
		if ps.zoneSlice(payload.To) == nil {
			return newEngineError(ErrCodeUnknownEvent, "invalid destination zone: %s", payload.To)
		}
		card, ok := ps.removeCard(payload.From, payload.CardID)
		if !ok {
			return newEngineError(ErrCodeNotFound, "card %s not in %s of %s", payload.CardID, payload.From, payload.PlayerID)
		}
		if card.Token {
			// Tokens cease to exist outside the battlefield.
			return nil
		}
		ps.addCard(payload.To, card, payload.ToTop)
		return nil

	case EventPermanentEntered:
		payload, err := decodePayload[permanentEnteredPayload](evt)
		if err != nil {
			return err
		}
		perm := payload.Permanent
		if perm.ID == "" {
			return newEngineError(ErrCodeUnknownEvent, "permanent without id")
		}
		if payload.FromZone != "" {
			owner := s.players[perm.Card.Owner]
			if owner != nil {
				owner.removeCard(payload.FromZone, perm.Card.ID)
			}
		}
		if perm.Counters == nil {
			perm.Counters = counters.NewCounters()
		}
		if strings.Contains(strings.ToLower(perm.Card.TypeLine), "planeswalker") {
			perm.Planeswalker = true
		}
		// Rule 306.5b: a planeswalker enters with loyalty counters
		// equal to its printed loyalty.
		if perm.Planeswalker && perm.Card.Loyalty > 0 && perm.Counters.GetCount(counters.Loyalty) == 0 {
			perm.Counters.AddCounter(counters.NewCounter(counters.Loyalty, perm.Card.Loyalty))
		}
		perm.EnteredSeq = evt.Seq
		s.addPermanent(&perm)
		return nil

	case EventPermanentLeft:
		payload, err := decodePayload[permanentLeftPayload](evt)
		if err != nil {
			return err
		}
		perm, ok := s.removePermanent(payload.PermanentID)
		if !ok {
			return newEngineError(ErrCodeNotFound, "permanent not on battlefield: %s", payload.PermanentID)
		}
		// Detach anything attached to the departing permanent.
		for _, attached := range perm.Attachments {
			if a, ok := s.battlefield[attached]; ok {
				a.AttachedTo = ""
			}
		}
		if host, ok := s.battlefield[perm.AttachedTo]; ok {
			host.Attachments = removeString(host.Attachments, perm.ID)
		}
		if perm.Card.Token || payload.To == "" {
			return nil
		}
		if owner := s.players[perm.Card.Owner]; owner != nil {
			owner.addCard(payload.To, perm.Card, false)
		}
		return nil

	case EventPermanentTapped, EventPermanentUntapped:
		payload, err := decodePayload[permanentTappedPayload](evt)
		if err != nil {
			return err
		}
		perm, ok := s.battlefield[payload.PermanentID]
		if !ok {
			return newEngineError(ErrCodeNotFound, "permanent not on battlefield: %s", payload.PermanentID)
		}
		perm.Tapped = evt.Type == EventPermanentTapped
		return nil

	case EventAttachmentChanged:
		payload, err := decodePayload[attachmentChangedPayload](evt)
		if err != nil {
			return err
		}
		perm, ok := s.battlefield[payload.PermanentID]
		if !ok {
			return newEngineError(ErrCodeNotFound, "permanent not on battlefield: %s", payload.PermanentID)
		}
		if host, ok := s.battlefield[perm.AttachedTo]; ok {
			host.Attachments = removeString(host.Attachments, perm.ID)
		}
		perm.AttachedTo = payload.AttachedTo
		if host, ok := s.battlefield[payload.AttachedTo]; ok {
			host.Attachments = append(host.Attachments, perm.ID)
		}
		return nil

	case EventCountersChanged:
		payload, err := decodePayload[countersChangedPayload](evt)
		if err != nil {
			return err
		}
		if payload.PermanentID != "" {
			perm, ok := s.battlefield[payload.PermanentID]
			if !ok {
				return newEngineError(ErrCodeNotFound, "permanent not on battlefield: %s", payload.PermanentID)
			}
			applyCounterDelta(perm.Counters, payload.CounterName, payload.Delta)
			return nil
		}
		ps := s.players[payload.PlayerID]
		if ps == nil {
			return newEngineError(ErrCodeNotFound, "unknown player: %s", payload.PlayerID)
		}
		if payload.CounterName == counters.Poison {
			ps.Poison += payload.Delta
			if ps.Poison < 0 {
				ps.Poison = 0
			}
		}
		return nil

	case EventDamageMarked:
		payload, err := decodePayload[damageMarkedPayload](evt)
		if err != nil {
			return err
		}
		perm, ok := s.battlefield[payload.PermanentID]
		if !ok {
			return newEngineError(ErrCodeNotFound, "permanent not on battlefield: %s", payload.PermanentID)
		}
		perm.Damage += payload.Amount
		if payload.Deathtouch {
			perm.Deathtouched = true
		}
		return nil

	case EventDamageCleared:
		for _, id := range s.battlefieldOrder {
			perm := s.battlefield[id]
			perm.Damage = 0
			perm.Deathtouched = false
		}
		return nil

	case EventLifeChanged:
		payload, err := decodePayload[lifeChangedPayload](evt)
		if err != nil {
			return err
		}
		ps := s.players[payload.PlayerID]
		if ps == nil {
			return newEngineError(ErrCodeNotFound, "unknown player: %s", payload.PlayerID)
		}
		ps.Life += payload.Delta
		return nil

	case EventPoisonChanged:
		payload, err := decodePayload[poisonChangedPayload](evt)
		if err != nil {
			return err
		}
		ps := s.players[payload.PlayerID]
		if ps == nil {
			return newEngineError(ErrCodeNotFound, "unknown player: %s", payload.PlayerID)
		}
		ps.Poison += payload.Delta
		if ps.Poison < 0 {
			ps.Poison = 0
		}
		return nil

	case EventCommanderDamage:
		payload, err := decodePayload[commanderDamagePayload](evt)
		if err != nil {
			return err
		}
		ps := s.players[payload.PlayerID]
		if ps == nil {
			return newEngineError(ErrCodeNotFound, "unknown player: %s", payload.PlayerID)
		}
		ps.CommanderDamage[payload.CommanderID] += payload.Amount
		return nil

	case EventCommanderTax:
		payload, err := decodePayload[commanderTaxPayload](evt)
		if err != nil {
			return err
		}
		ps := s.players[payload.PlayerID]
		if ps == nil {
			return newEngineError(ErrCodeNotFound, "unknown player: %s", payload.PlayerID)
		}
		ps.CommanderTax += payload.Delta
		return nil

	case EventStackPushed:
		payload, err := decodePayload[stackPushedPayload](evt)
		if err != nil {
			return err
		}
		record := payload.Item
		if record.ID == "" {
			return newEngineError(ErrCodeUnknownEvent, "stack item without id")
		}
		if payload.FromZone != "" && record.CardID != "" {
			if owner := s.players[record.Owner]; owner != nil {
				if card, ok := owner.removeCard(payload.FromZone, record.CardID); ok {
					s.stackCards[record.ID] = card
				}
			}
		}
		s.Stack.Push(rules.StackItem{
			ID:          record.ID,
			Kind:        record.Kind,
			Controller:  record.Controller,
			Owner:       record.Owner,
			SourceID:    record.SourceID,
			Description: record.Description,
			Targets:     append([]rules.Target(nil), record.Targets...),
			Metadata:    map[string]string{"card_id": record.CardID},
		})
		s.stackEffects[record.ID] = payload.Effect
		s.Priority.SetPasses(0)
		s.Turn.SetPriority(s.Turn.ActivePlayer())
		return nil

	case EventStackResolved, EventStackCountered, EventItemFizzled:
		payload, err := decodePayload[stackRemovedPayload](evt)
		if err != nil {
			return err
		}
		item, ok := s.Stack.Remove(payload.ItemID)
		if !ok {
			return newEngineError(ErrCodeNotFound, "stack item not found: %s", payload.ItemID)
		}
		delete(s.stackEffects, item.ID)
		if card, held := s.stackCards[item.ID]; held {
			delete(s.stackCards, item.ID)
			if payload.CardTo != "" {
				if owner := s.players[card.Owner]; owner != nil {
					owner.addCard(payload.CardTo, card, false)
				}
			}
		}
		s.Priority.SetPasses(0)
		s.Turn.SetPriority(s.Turn.ActivePlayer())
		return nil

	case EventTargetIllegal:
		payload, err := decodePayload[targetIllegalPayload](evt)
		if err != nil {
			return err
		}
		if !s.Stack.MarkTargetIllegal(payload.ItemID, payload.TargetID) {
			return newEngineError(ErrCodeNotFound, "stack item not found: %s", payload.ItemID)
		}
		return nil

	case EventTargetChosen:
		payload, err := decodePayload[targetChosenPayload](evt)
		if err != nil {
			return err
		}
		if !s.Stack.AddTargets(payload.ItemID, payload.Targets) {
			return newEngineError(ErrCodeNotFound, "stack item not found: %s", payload.ItemID)
		}
		return nil

	case EventModeChosen:
		payload, err := decodePayload[modeChosenPayload](evt)
		if err != nil {
			return err
		}
		spec, ok := s.stackEffects[payload.ItemID]
		if !ok {
			return newEngineError(ErrCodeNotFound, "stack item not found: %s", payload.ItemID)
		}
		if payload.Index < 0 || payload.Index >= len(spec.Modes) {
			return newEngineError(ErrCodeUnknownEvent, "mode index %d out of range", payload.Index)
		}
		s.stackEffects[payload.ItemID] = spec.Modes[payload.Index]
		return nil

	case EventLandPlayed:
		payload, err := decodePayload[landPlayedPayload](evt)
		if err != nil {
			return err
		}
		ps := s.players[payload.PlayerID]
		if ps == nil {
			return newEngineError(ErrCodeNotFound, "unknown player: %s", payload.PlayerID)
		}
		ps.LandsPlayedThisTurn++
		s.Priority.SetPasses(0)
		return nil

	case EventPriorityPassed:
		payload, err := decodePayload[priorityPassedPayload](evt)
		if err != nil {
			return err
		}
		s.Priority.RecordPass()
		s.Turn.SetPriority(payload.NextPlayer)
		return nil

	case EventStepAdvanced:
		payload, err := decodePayload[stepAdvancedPayload](evt)
		if err != nil {
			return err
		}
		phase, err := rules.ParsePhase(payload.Phase)
		if err != nil {
			return wrapEngineError(ErrCodeUnknownEvent, err, "bad phase")
		}
		step, err := rules.ParseStep(payload.Step)
		if err != nil {
			return wrapEngineError(ErrCodeUnknownEvent, err, "bad step")
		}
		if err := s.Turn.SetPosition(payload.Turn, phase, step, payload.ActivePlayer); err != nil {
			return wrapEngineError(ErrCodeUnknownEvent, err, "bad turn position")
		}
		s.Turn.SetPriority(payload.ActivePlayer)
		s.Priority.SetPasses(0)
		if payload.NewTurn {
			for _, id := range s.PlayerOrder {
				s.players[id].LandsPlayedThisTurn = 0
			}
		}
		return nil

	case EventStepQueued:
		payload, err := decodePayload[stepQueuedPayload](evt)
		if err != nil {
			return err
		}
		step := payload.Step
		if step.ID == "" {
			return newEngineError(ErrCodeUnknownEvent, "resolution step without id")
		}
		s.Resolution.Enqueue(&step)
		if step.Type == StepMulligan {
			if ps := s.players[step.Player]; ps != nil {
				ps.MulliganPending = true
			}
		}
		return nil

	case EventStepActivated:
		payload, err := decodePayload[stepRefPayload](evt)
		if err != nil {
			return err
		}
		if !s.Resolution.activate(payload.StepID, evt.Timestamp) {
			return newEngineError(ErrCodeNotFound, "resolution step not found: %s", payload.StepID)
		}
		return nil

	case EventStepCompleted, EventStepCancelled:
		payload, err := decodePayload[stepRefPayload](evt)
		if err != nil {
			return err
		}
		if _, ok := s.Resolution.Remove(payload.StepID); !ok {
			return newEngineError(ErrCodeNotFound, "resolution step not found: %s", payload.StepID)
		}
		return nil

	case EventMulliganTaken:
		payload, err := decodePayload[mulliganTakenPayload](evt)
		if err != nil {
			return err
		}
		ps := s.players[payload.PlayerID]
		if ps == nil {
			return newEngineError(ErrCodeNotFound, "unknown player: %s", payload.PlayerID)
		}
		if payload.Kept {
			for _, cardID := range payload.Returned {
				if card, ok := ps.removeCard(ZoneHand, cardID); ok {
					ps.Library = append(ps.Library, card)
				}
			}
			ps.MulliganPending = false
			ps.syncCounts()
			return nil
		}
		ps.MulligansTaken++
		// The hand goes back on top; a shuffle event follows.
		for len(ps.Hand) > 0 {
			card := ps.Hand[len(ps.Hand)-1]
			ps.Hand = ps.Hand[:len(ps.Hand)-1]
			ps.Library = append([]Card{card}, ps.Library...)
		}
		ps.syncCounts()
		return nil

	case EventPlayerLost:
		payload, err := decodePayload[playerLostPayload](evt)
		if err != nil {
			return err
		}
		ps := s.players[payload.PlayerID]
		if ps == nil {
			return newEngineError(ErrCodeNotFound, "unknown player: %s", payload.PlayerID)
		}
		ps.Lost = true
		ps.LostReason = payload.Reason
		return nil

	case EventGameFinished:
		payload, err := decodePayload[gameFinishedPayload](evt)
		if err != nil {
			return err
		}
		s.Finished = true
		s.WinnerID = payload.WinnerID
		return nil

	case EventGameReset:
		payload, err := decodePayload[gameResetPayload](evt)
		if err != nil {
			return err
		}
		s.resetInPlace(payload.PreservePlayers)
		return nil

	default:
		return newEngineError(ErrCodeUnknownEvent, "unknown event type: %s", evt.Type)
	}
}

func applyCounterDelta(cs *counters.Counters, name string, delta int) {
	switch {
	case delta > 0:
		cs.AddCounter(counters.NewCounter(name, delta))
	case delta < 0:
		cs.RemoveCounter(name, -delta)
	}
}

func removeString(list []string, value string) []string {
	for i, v := range list {
		if v == value {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Replay folds an ordered event list into a fresh state for the given
// game id. Unknown or malformed events are logged and skipped rather
// than aborting the whole replay; it finishes with a reconciliation
// pass over the zone-count invariants.
func Replay(gameID string, events []Event, logger *zap.Logger) *GameState {
	state := NewGameState(gameID)
	for _, evt := range events {
		if err := state.ApplyEvent(evt); err != nil {
			if logger != nil {
				logger.Warn("skipping event during replay",
					zap.String("game_id", gameID),
					zap.Int64("seq", evt.Seq),
					zap.String("type", string(evt.Type)),
					zap.Error(err))
			}
			// Keep the sequence moving so later events still apply.
			if evt.Seq == state.Seq+1 {
				state.Seq = evt.Seq
			}
		}
	}
	state.Reconcile(logger)
	return state
}

// Reconcile re-derives the per-zone counts and clamps any drift,
// logging what it repaired. Returns the number of repairs.
func (s *GameState) Reconcile(logger *zap.Logger) int {
	repairs := 0
	for _, id := range s.PlayerOrder {
		ps := s.players[id]
		checks := []struct {
			name  string
			count *int
			want  int
		}{
			{"library", &ps.LibraryCount, len(ps.Library)},
			{"hand", &ps.HandCount, len(ps.Hand)},
			{"graveyard", &ps.GraveyardCount, len(ps.Graveyard)},
		}
		for _, c := range checks {
			if *c.count != c.want {
				if logger != nil {
					logger.Warn("zone count drift repaired",
						zap.String("game_id", s.ID),
						zap.String("player_id", id),
						zap.String("zone", c.name),
						zap.Int("stored", *c.count),
						zap.Int("actual", c.want))
				}
				*c.count = c.want
				repairs++
			}
		}
	}
	return repairs
}

// resetInPlace restores initial state. With preservePlayers the
// roster identity survives with fresh zones and life totals; all
// pending markers (initial draw, mulligan, resolution steps) are
// cleared either way. The event log and sequence continue.
func (s *GameState) resetInPlace(preservePlayers bool) {
	order := s.PlayerOrder
	names := make(map[string]string, len(order))
	for _, id := range order {
		names[id] = s.players[id].Name
	}

	s.players = make(map[string]*playerState)
	s.PlayerOrder = nil
	s.battlefield = make(map[string]*Permanent)
	s.battlefieldOrder = nil
	s.Stack.Clear()
	s.Resolution.Clear()
	s.stackEffects = make(map[string]EffectSpec)
	s.stackCards = make(map[string]Card)
	s.Priority.SetPasses(0)
	s.Finished = false
	s.WinnerID = ""
	s.rng = rand.New(rand.NewSource(s.Seed))
	s.Turn = rules.NewTurnManager("")

	if !preservePlayers {
		return
	}
	s.PlayerOrder = order
	for _, id := range order {
		s.players[id] = &playerState{
			ID:              id,
			Name:            names[id],
			Life:            s.StartingLife,
			CommanderDamage: make(map[string]int),
		}
	}
	if len(order) > 0 {
		s.Turn = rules.NewTurnManager(order[0])
	}
}
