package game

import (
	"github.com/google/uuid"

	"github.com/A2152225/MTGEDH-sub013/internal/game/rules"
)

// CastCommander casts the player's commander from the command zone.
// Every cast from there raises the commander tax by one.
func (e *Engine) CastCommander(gameID, playerID, cardID string) (string, error) {
	var itemID string
	err := e.withGame(gameID, func(entry *gameEntry) error {
		if err := e.requirePriority(entry, playerID); err != nil {
			return err
		}
		s := entry.state
		ps := s.Player(playerID)
		card, ok := ps.findCard(ZoneCommand, cardID)
		if !ok {
			return newEngineError(ErrCodeNotFound, "card %s is not in the command zone", cardID)
		}
		if !card.Commander {
			return newEngineError(ErrCodeProtocolViolation, "%s is not a commander", card.Name)
		}
		itemID = uuid.NewString()
		payload := stackPushedPayload{
			Item: stackItemRecord{
				ID:          itemID,
				Kind:        rules.StackItemKindSpell,
				Controller:  playerID,
				Owner:       playerID,
				SourceID:    card.ID,
				Description: card.Name,
				CardID:      card.ID,
			},
			Effect:   EffectSpec{Kind: EffectEnterSelf},
			FromZone: ZoneCommand,
		}
		if err := e.commit(entry, EventStackPushed, payload); err != nil {
			return err
		}
		if err := e.commit(entry, EventCommanderTax, commanderTaxPayload{PlayerID: playerID, Delta: 1}); err != nil {
			return err
		}
		return e.afterMutation(entry)
	})
	return itemID, err
}

// offerCommanderReplacement queues the rule 903.9a choice after a
// commander lands in a graveyard or exile: its owner may move it to
// the command zone instead of leaving it there.
func (e *Engine) offerCommanderReplacement(entry *gameEntry, card Card, from Zone) error {
	if !card.Commander {
		return nil
	}
	return e.queueStep(entry, ResolutionStep{
		Type:      StepCommanderZone,
		Player:    card.Owner,
		Mandatory: true,
		Payload: StepPayload{
			MinSelections: 1,
			MaxSelections: 1,
			Options:       []string{"command_zone", string(from)},
			CardID:        card.ID,
			FromZone:      from,
			Prompt:        "return your commander to the command zone?",
		},
	})
}
