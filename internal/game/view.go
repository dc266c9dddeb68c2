package game

import (
	"github.com/A2152225/MTGEDH-sub013/internal/game/counters"
)

// CardView is a fully visible card.
type CardView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PermanentView is the client-facing shape of a battlefield permanent.
type PermanentView struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Controller string                 `json:"controller"`
	Owner      string                 `json:"owner"`
	Tapped     bool                   `json:"tapped"`
	Power      int                    `json:"power"`
	Toughness  int                    `json:"toughness"`
	Damage     int                    `json:"damage"`
	Counters   []counters.CounterView `json:"counters,omitempty"`
	AttachedTo string                 `json:"attached_to,omitempty"`
	Token      bool                   `json:"token,omitempty"`
	Commander  bool                   `json:"commander,omitempty"`
}

// StackItemView is the client-facing shape of a stack item.
type StackItemView struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	Controller  string   `json:"controller"`
	Description string   `json:"description"`
	TargetIDs   []string `json:"target_ids,omitempty"`
}

// StepView exposes a pending decision.
type StepView struct {
	ID      string      `json:"id"`
	Type    StepType    `json:"type"`
	Player  string      `json:"player"`
	Active  bool        `json:"active"`
	Payload StepPayload `json:"payload"`
}

// PlayerEngineView is one player's public state. Hand and library are
// counts for everyone; the viewer additionally sees their own hand.
type PlayerEngineView struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Life            int            `json:"life"`
	Poison          int            `json:"poison"`
	LibraryCount    int            `json:"library_count"`
	HandCount       int            `json:"hand_count"`
	Hand            []CardView     `json:"hand,omitempty"`
	Graveyard       []CardView     `json:"graveyard"`
	Exile           []CardView     `json:"exile,omitempty"`
	CommandZone     []CardView     `json:"command_zone,omitempty"`
	CommanderDamage map[string]int `json:"commander_damage,omitempty"`
	Lost            bool           `json:"lost,omitempty"`
	LostReason      string         `json:"lost_reason,omitempty"`
}

// EngineGameView is a redacted snapshot of one game for one viewer.
// Seq lets clients order deltas and detect gaps.
type EngineGameView struct {
	GameID         string             `json:"game_id"`
	Seq            int64              `json:"seq"`
	Turn           int                `json:"turn"`
	Phase          string             `json:"phase"`
	Step           string             `json:"step"`
	ActivePlayer   string             `json:"active_player"`
	PriorityPlayer string             `json:"priority_player"`
	PassesInRow    int                `json:"passes_in_row"`
	Players        []PlayerEngineView `json:"players"`
	Battlefield    []PermanentView    `json:"battlefield"`
	Stack          []StackItemView    `json:"stack"`
	PendingSteps   []StepView         `json:"pending_steps,omitempty"`
	Finished       bool               `json:"finished,omitempty"`
	WinnerID       string             `json:"winner_id,omitempty"`
}

func cardViews(cards []Card) []CardView {
	views := make([]CardView, len(cards))
	for i, card := range cards {
		views[i] = CardView{ID: card.ID, Name: card.Name}
	}
	return views
}

// GetView builds a snapshot redacted for viewerID. An empty viewer id
// sees only public information.
func (e *Engine) GetView(gameID, viewerID string) (*EngineGameView, error) {
	var view *EngineGameView
	err := e.withGame(gameID, func(entry *gameEntry) error {
		view = buildView(entry.state, viewerID)
		return nil
	})
	return view, err
}

func buildView(s *GameState, viewerID string) *EngineGameView {
	view := &EngineGameView{
		GameID:         s.ID,
		Seq:            s.Seq,
		Turn:           s.Turn.TurnNumber(),
		Phase:          s.Turn.CurrentPhase().String(),
		Step:           s.Turn.CurrentStep().String(),
		ActivePlayer:   s.Turn.ActivePlayer(),
		PriorityPlayer: s.Turn.PriorityPlayer(),
		PassesInRow:    s.Priority.PassesInRow(),
		Finished:       s.Finished,
		WinnerID:       s.WinnerID,
	}

	for _, pid := range s.PlayerOrder {
		ps := s.Player(pid)
		pv := PlayerEngineView{
			ID:              pid,
			Name:            ps.Name,
			Life:            ps.Life,
			Poison:          ps.Poison,
			LibraryCount:    ps.LibraryCount,
			HandCount:       ps.HandCount,
			Graveyard:       cardViews(ps.Graveyard),
			Exile:           cardViews(ps.Exile),
			CommandZone:     cardViews(ps.CommandZone),
			CommanderDamage: ps.CommanderDamage,
			Lost:            ps.Lost,
			LostReason:      ps.LostReason,
		}
		if pid == viewerID {
			pv.Hand = cardViews(ps.Hand)
		}
		view.Players = append(view.Players, pv)
	}

	for _, perm := range s.Battlefield() {
		view.Battlefield = append(view.Battlefield, PermanentView{
			ID:         perm.ID,
			Name:       perm.Card.Name,
			Controller: perm.Controller,
			Owner:      perm.Card.Owner,
			Tapped:     perm.Tapped,
			Power:      perm.CurrentPower(),
			Toughness:  perm.CurrentToughness(),
			Damage:     perm.Damage,
			Counters:   perm.Counters.ToView(),
			AttachedTo: perm.AttachedTo,
			Token:      perm.Card.Token,
			Commander:  perm.Card.Commander,
		})
	}

	for _, item := range s.Stack.List() {
		targetIDs := make([]string, 0, len(item.Targets))
		for _, target := range item.Targets {
			targetIDs = append(targetIDs, target.ID)
		}
		view.Stack = append(view.Stack, StackItemView{
			ID:          item.ID,
			Kind:        string(item.Kind),
			Controller:  item.Controller,
			Description: item.Description,
			TargetIDs:   targetIDs,
		})
	}

	active := s.Resolution.Active()
	for _, step := range s.Resolution.List() {
		view.PendingSteps = append(view.PendingSteps, StepView{
			ID:      step.ID,
			Type:    step.Type,
			Player:  step.Player,
			Active:  active != nil && active.ID == step.ID,
			Payload: step.Payload,
		})
	}
	return view
}
