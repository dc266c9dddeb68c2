package game

import (
	"time"

	"go.uber.org/zap"

	"github.com/A2152225/MTGEDH-sub013/internal/game/rules"
	"github.com/A2152225/MTGEDH-sub013/internal/game/targeting"
)

// SuspendCard queues a suspend-cast decision for a card. The card is
// exiled only when the step's response validates; until then the step
// sits in the queue.
func (e *Engine) SuspendCard(gameID, playerID, cardID string) (string, error) {
	var stepID string
	err := e.withGame(gameID, func(entry *gameEntry) error {
		if err := e.guard(entry); err != nil {
			return err
		}
		s := entry.state
		if s.Player(playerID) == nil {
			return newEngineError(ErrCodeNotFound, "unknown player: %s", playerID)
		}
		ctx := rules.SpecialActionContext{
			Phase:          s.Turn.CurrentPhase(),
			Step:           s.Turn.CurrentStep(),
			StackEmpty:     s.Stack.IsEmpty(),
			ActivePlayer:   s.Turn.ActivePlayer(),
			PriorityPlayer: s.Turn.PriorityPlayer(),
			Player:         playerID,
		}
		if err := rules.CheckSpecialAction(rules.SpecialActionSuspend, ctx); err != nil {
			return wrapEngineError(ErrCodeProtocolViolation, err, "cannot suspend")
		}
		step := ResolutionStep{
			Type:      StepSuspendCast,
			Player:    playerID,
			Mandatory: true,
			Payload: StepPayload{
				MinSelections: 1,
				MaxSelections: 1,
				Options:       []string{cardID},
				Zone:          ZoneHand,
				CardID:        cardID,
				Prompt:        "confirm suspending the card",
			},
		}
		if err := e.queueStep(entry, step); err != nil {
			return err
		}
		stepID = findQueuedStepID(s, StepSuspendCast, playerID, cardID)
		return e.afterMutation(entry)
	})
	return stepID, err
}

func findQueuedStepID(s *GameState, stepType StepType, player, cardID string) string {
	for _, step := range s.Resolution.List() {
		if step.Type == stepType && step.Player == player && step.Payload.CardID == cardID {
			return step.ID
		}
	}
	return ""
}

// MoveCard moves a card between two zones of its owner as an explicit
// administrative command.
func (e *Engine) MoveCard(gameID, playerID, cardID string, from, to Zone) error {
	return e.withGame(gameID, func(entry *gameEntry) error {
		if err := e.guard(entry); err != nil {
			return err
		}
		payload := cardMovedPayload{PlayerID: playerID, CardID: cardID, From: from, To: to}
		if err := e.commit(entry, EventCardMoved, payload); err != nil {
			return err
		}
		return e.afterMutation(entry)
	})
}

// SubmitResolutionResponse answers the active resolution step. The
// response is validated in full before anything mutates: an invalid
// one returns a typed error and leaves the step exactly as it was.
func (e *Engine) SubmitResolutionResponse(gameID, playerID, stepID string, selections []string) error {
	return e.withGame(gameID, func(entry *gameEntry) error {
		if err := e.guard(entry); err != nil {
			return err
		}
		s := entry.state
		step, ok := s.Resolution.Get(stepID)
		if !ok {
			return newEngineError(ErrCodeNotFound, "resolution step not found: %s", stepID)
		}
		if step.Player != playerID {
			return newEngineError(ErrCodeProtocolViolation,
				"step %s belongs to %s", stepID, step.Player)
		}
		active := s.Resolution.Active()
		if active == nil || active.ID != stepID {
			return newEngineError(ErrCodeProtocolViolation, "step %s is not active", stepID)
		}
		if err := e.validateResponse(s, step, selections); err != nil {
			return err
		}
		return e.consumeStep(entry, step, selections)
	})
}

// CancelResolutionStep removes a queued step without completing it.
func (e *Engine) CancelResolutionStep(gameID, stepID, reason string) error {
	return e.withGame(gameID, func(entry *gameEntry) error {
		if err := e.guard(entry); err != nil {
			return err
		}
		if !entry.state.Resolution.Has(stepID) {
			return newEngineError(ErrCodeNotFound, "resolution step not found: %s", stepID)
		}
		if err := e.commit(entry, EventStepCancelled, stepRefPayload{StepID: stepID, Reason: reason}); err != nil {
			return err
		}
		return e.afterMutation(entry)
	})
}

// ExpireTimedOutSteps consumes active steps whose deadline has
// passed, synthesizing the default response exactly as if the player
// had sent it. Returns how many steps were consumed.
func (e *Engine) ExpireTimedOutSteps(gameID string, now time.Time) (int, error) {
	expired := 0
	err := e.withGame(gameID, func(entry *gameEntry) error {
		for {
			if err := e.guard(entry); err != nil {
				return nil
			}
			s := entry.state
			step := s.Resolution.Active()
			if step == nil {
				return nil
			}
			deadline := step.Deadline()
			if deadline.IsZero() || now.Before(deadline) {
				return nil
			}
			selections := e.defaultResponse(s, step)
			if err := e.validateResponse(s, step, selections); err != nil {
				// The default cannot validate either; cancel instead
				// of hanging the queue.
				if e.logger != nil {
					e.logger.Warn("timed-out step default response invalid, cancelling",
						zap.String("game_id", s.ID),
						zap.String("step_id", step.ID),
						zap.Error(err))
				}
				payload := stepRefPayload{StepID: step.ID, Reason: "timed out"}
				if err := e.commit(entry, EventStepCancelled, payload); err != nil {
					return err
				}
				if err := e.afterMutation(entry); err != nil {
					return err
				}
				expired++
				continue
			}
			if err := e.consumeStep(entry, step, selections); err != nil {
				return err
			}
			expired++
		}
	})
	return expired, err
}

// defaultResponse is the answer a timed-out step resolves to. Steps
// with an option set take the minimal legal choice; zone-backed steps
// without one (a forced discard, a mulligan put-back) take the first
// cards of the zone.
func (e *Engine) defaultResponse(s *GameState, step *ResolutionStep) []string {
	payload := step.Payload
	if len(payload.Options) == 0 && payload.Zone != "" && payload.MinSelections > 0 {
		ps := s.Player(step.Player)
		if ps == nil {
			return nil
		}
		zone := ps.zoneSlice(payload.Zone)
		if zone == nil {
			return nil
		}
		cards := *zone
		n := payload.MinSelections
		if n > len(cards) {
			n = len(cards)
		}
		out := make([]string, 0, n)
		for _, card := range cards[:n] {
			out = append(out, card.ID)
		}
		return out
	}
	return defaultSelections(step)
}

// validateResponse checks a response against the step's declared
// constraints and the current state. No mutation happens here.
func (e *Engine) validateResponse(s *GameState, step *ResolutionStep, selections []string) error {
	if !validateCardinality(step.Payload, selections) {
		return newEngineError(ErrCodeInvalidSelection,
			"step %s requires between %d and %d selections, got %d",
			step.ID, step.Payload.MinSelections, step.Payload.MaxSelections, len(selections))
	}
	if bad, ok := validateMembership(step.Payload, selections); !ok {
		return newEngineError(ErrCodeInvalidSelection,
			"selection %q is not among the step's options", bad)
	}
	if step.Payload.Zone != "" {
		ps := s.Player(step.Player)
		if ps == nil {
			return newEngineError(ErrCodeNotFound, "unknown player: %s", step.Player)
		}
		for _, sel := range selections {
			if _, ok := ps.findCard(step.Payload.Zone, sel); !ok {
				return newEngineError(ErrCodeInvalidSelection,
					"card %s is not in %s", sel, step.Payload.Zone)
			}
		}
	}
	switch step.Type {
	case StepDeclareAttackers, StepDeclareBlockers:
		for _, sel := range selections {
			if !s.PermanentOnBattlefield(sel) {
				return newEngineError(ErrCodeInvalidSelection,
					"creature %s is no longer on the battlefield", sel)
			}
		}
	case StepChooseTargets:
		validator := targeting.NewValidator(rules.NewLegalityChecker(s))
		for _, sel := range selections {
			kind, ok := targetKindOf(s, sel)
			if !ok {
				return newEngineError(ErrCodeInvalidSelection,
					"%s is neither a permanent nor a player", sel)
			}
			choice := &targeting.Selection{
				Requirement: targeting.Exactly(kind, 1),
				ChosenIDs:   []string{sel},
			}
			if err := validator.Validate(choice); err != nil {
				return wrapEngineError(ErrCodeInvalidSelection, err, "illegal target %s", sel)
			}
		}
	}
	return nil
}

// targetKindOf classifies an id for the legality checker.
func targetKindOf(s *GameState, id string) (string, bool) {
	if s.PermanentOnBattlefield(id) {
		return "permanent", true
	}
	if ps := s.Player(id); ps != nil && !ps.Lost {
		return "player", true
	}
	return "", false
}

// consumeStep commits the completion and the step's declared side
// effect. Only called with a validated response.
func (e *Engine) consumeStep(entry *gameEntry, step *ResolutionStep, selections []string) error {
	s := entry.state
	payload := stepRefPayload{StepID: step.ID, Selections: selections}
	if err := e.commit(entry, EventStepCompleted, payload); err != nil {
		return err
	}

	switch step.Type {
	case StepSuspendCast:
		for _, sel := range selections {
			moved := cardMovedPayload{PlayerID: step.Player, CardID: sel, From: ZoneHand, To: ZoneExile}
			if err := e.commit(entry, EventCardMoved, moved); err != nil {
				return err
			}
		}

	case StepDiscard:
		for _, sel := range selections {
			moved := cardMovedPayload{PlayerID: step.Player, CardID: sel, From: ZoneHand, To: ZoneGraveyard}
			if err := e.commit(entry, EventCardMoved, moved); err != nil {
				return err
			}
		}

	case StepScry:
		for _, sel := range selections {
			moved := cardMovedPayload{PlayerID: step.Player, CardID: sel, From: ZoneLibrary, To: ZoneLibrary}
			if err := e.commit(entry, EventCardMoved, moved); err != nil {
				return err
			}
		}

	case StepSurveil:
		for _, sel := range selections {
			moved := cardMovedPayload{PlayerID: step.Player, CardID: sel, From: ZoneLibrary, To: ZoneGraveyard}
			if err := e.commit(entry, EventCardMoved, moved); err != nil {
				return err
			}
		}

	case StepSearchLibrary:
		for _, sel := range selections {
			moved := cardMovedPayload{PlayerID: step.Player, CardID: sel, From: ZoneLibrary, To: ZoneHand}
			if err := e.commit(entry, EventCardMoved, moved); err != nil {
				return err
			}
		}
		if err := e.commit(entry, EventLibraryShuffled, libraryShuffledPayload{PlayerID: step.Player}); err != nil {
			return err
		}

	case StepOrderTriggers:
		// First chosen resolves last: push in the given order.
		for _, id := range selections {
			for _, pt := range entry.pendingTriggers {
				if pt.ID == id {
					if err := e.pushPendingTrigger(entry, pt); err != nil {
						return err
					}
					break
				}
			}
		}

	case StepMulligan:
		if err := e.resolveMulligan(entry, step, selections); err != nil {
			return err
		}

	case StepDeclareAttackers:
		entry.combat = &combatState{
			Attackers: append([]string(nil), selections...),
			Defender:  nextAlivePlayer(s, step.Player),
			Blockers:  make(map[string]string),
		}
		for _, sel := range selections {
			if err := e.commit(entry, EventPermanentTapped, permanentTappedPayload{PermanentID: sel}); err != nil {
				return err
			}
			entry.bus.Publish(rules.NewEvent(rules.EventAttackerDeclared, sel, sel, step.Player))
		}

	case StepDeclareBlockers:
		if entry.combat != nil {
			for i, sel := range selections {
				if i >= len(entry.combat.Attackers) {
					break
				}
				entry.combat.Blockers[entry.combat.Attackers[i]] = sel
				entry.bus.Publish(rules.NewEvent(rules.EventBlockerDeclared, sel, sel, step.Player))
			}
		}

	case StepChooseTargets:
		targets := make([]rules.Target, 0, len(selections))
		for _, sel := range selections {
			kind, ok := targetKindOf(s, sel)
			if !ok {
				continue
			}
			targets = append(targets, rules.Target{ID: sel, Kind: kind, Legal: true})
		}
		if len(targets) > 0 {
			chosen := targetChosenPayload{ItemID: step.SourceItemID, Targets: targets}
			if err := e.commit(entry, EventTargetChosen, chosen); err != nil {
				return err
			}
		}

	case StepChooseMode:
		if len(selections) == 1 {
			for i, opt := range step.Payload.Options {
				if opt == selections[0] {
					payload := modeChosenPayload{ItemID: step.SourceItemID, Index: i}
					if err := e.commit(entry, EventModeChosen, payload); err != nil {
						return err
					}
					break
				}
			}
		}

	case StepCommanderZone:
		for _, sel := range selections {
			if sel != "command_zone" {
				continue
			}
			moved := cardMovedPayload{
				PlayerID: step.Player,
				CardID:   step.Payload.CardID,
				From:     step.Payload.FromZone,
				To:       ZoneCommand,
			}
			if err := e.commit(entry, EventCardMoved, moved); err != nil {
				return err
			}
		}
	}

	if err := e.afterMutation(entry); err != nil {
		return err
	}
	// A cleanup discard holds the turn open; resume once answered.
	if s.Turn.CurrentStep() == rules.StepCleanup &&
		s.Resolution.Len() == 0 && s.Stack.IsEmpty() && !s.Finished {
		if err := e.advanceStep(entry); err != nil {
			return err
		}
		return e.afterMutation(entry)
	}
	return nil
}

// resolveMulligan handles both shapes of the mulligan step: the
// keep-or-mulligan choice (option list) and the London put-back
// (Count > 0).
func (e *Engine) resolveMulligan(entry *gameEntry, step *ResolutionStep, selections []string) error {
	s := entry.state
	ps := s.Player(step.Player)
	if ps == nil {
		return newEngineError(ErrCodeNotFound, "unknown player: %s", step.Player)
	}

	if step.Payload.Count > 0 {
		// Put-back: selections go to the bottom of the library.
		payload := mulliganTakenPayload{PlayerID: step.Player, Kept: true, Returned: selections}
		return e.commit(entry, EventMulliganTaken, payload)
	}

	choice := ""
	if len(selections) > 0 {
		choice = selections[0]
	}
	if choice == "keep" {
		if ps.MulligansTaken == 0 {
			payload := mulliganTakenPayload{PlayerID: step.Player, Kept: true}
			return e.commit(entry, EventMulliganTaken, payload)
		}
		// Keeping after n mulligans puts n cards back (rule 103.5).
		putBack := ps.MulligansTaken
		if putBack > len(ps.Hand) {
			putBack = len(ps.Hand)
		}
		return e.queueStep(entry, ResolutionStep{
			Type:      StepMulligan,
			Player:    step.Player,
			Mandatory: true,
			Payload: StepPayload{
				MinSelections: putBack,
				MaxSelections: putBack,
				Zone:          ZoneHand,
				Count:         putBack,
				Prompt:        "put cards on the bottom of your library",
			},
		})
	}

	// Mulligan: hand back, shuffle, draw seven, decide again.
	payload := mulliganTakenPayload{PlayerID: step.Player, Kept: false}
	if err := e.commit(entry, EventMulliganTaken, payload); err != nil {
		return err
	}
	if err := e.commit(entry, EventLibraryShuffled, libraryShuffledPayload{PlayerID: step.Player}); err != nil {
		return err
	}
	if err := e.drawCards(entry, step.Player, 7); err != nil {
		return err
	}
	return e.queueStep(entry, ResolutionStep{
		Type:      StepMulligan,
		Player:    step.Player,
		Mandatory: true,
		Payload: StepPayload{
			MinSelections: 1,
			MaxSelections: 1,
			Options:       []string{"keep", "mulligan"},
			Prompt:        "keep this hand or mulligan",
		},
	})
}
