package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commanderGame(t *testing.T, e *Engine) string {
	t.Helper()
	gameID, err := e.CreateGame(CreateGameOptions{
		Players: []PlayerSetup{
			{
				ID:        "p1",
				Deck:      testDeck("p1", 10),
				Commander: &Card{ID: "cmd1", Name: "Atraxa", Creature: true, Legendary: true, Power: 4, Toughness: 4},
			},
			{ID: "p2", Deck: testDeck("p2", 10)},
		},
		Seed:            11,
		SkipOpeningDraw: true,
	})
	require.NoError(t, err)
	return gameID
}

func TestCastCommanderFromCommandZone(t *testing.T) {
	e := newTestEngine(t, Options{})
	gameID := commanderGame(t, e)
	advanceToStep(t, e, gameID, "MAIN1")

	_, err := e.CastCommander(gameID, "p1", "cmd1")
	require.NoError(t, err)

	s := stateFor(t, e, gameID)
	assert.Equal(t, 1, s.Player("p1").CommanderTax)
	assert.Empty(t, s.Player("p1").CommandZone)

	passBoth(t, e, gameID)
	view, err := e.GetView(gameID, "")
	require.NoError(t, err)
	require.Len(t, view.Battlefield, 1)
	assert.Equal(t, "Atraxa", view.Battlefield[0].Name)
	assert.True(t, view.Battlefield[0].Commander)
}

func TestCastCommanderRequiresCommandZoneCard(t *testing.T) {
	e := newTestEngine(t, Options{})
	gameID := commanderGame(t, e)
	advanceToStep(t, e, gameID, "MAIN1")

	_, err := e.CastCommander(gameID, "p1", "p1-2")
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeNotFound))
}

func TestCommanderDeathOffersCommandZoneReturn(t *testing.T) {
	e := newTestEngine(t, Options{})
	gameID := commanderGame(t, e)
	require.NoError(t, e.MoveCard(gameID, "p1", "p1-2", ZoneLibrary, ZoneHand))
	advanceToStep(t, e, gameID, "MAIN1")

	_, err := e.CastCommander(gameID, "p1", "cmd1")
	require.NoError(t, err)
	passBoth(t, e, gameID)

	view, err := e.GetView(gameID, "")
	require.NoError(t, err)
	commanderID := view.Battlefield[0].ID

	_, err = e.CastSpell(gameID, "p1", CastSpellRequest{
		CardID:  "p1-2",
		Targets: []TargetRef{{ID: commanderID, Kind: "permanent"}},
		Effect:  EffectSpec{Kind: EffectDealDamage, Amount: 4},
	})
	require.NoError(t, err)
	passBoth(t, e, gameID)

	s := stateFor(t, e, gameID)
	active := s.Resolution.Active()
	require.NotNil(t, active)
	require.Equal(t, StepCommanderZone, active.Type)
	assert.Equal(t, "p1", active.Player)

	require.NoError(t, e.SubmitResolutionResponse(gameID, "p1", active.ID, []string{"command_zone"}))
	require.Len(t, s.Player("p1").CommandZone, 1)
	assert.Equal(t, "cmd1", s.Player("p1").CommandZone[0].ID)
	for _, card := range s.Player("p1").Graveyard {
		assert.NotEqual(t, "cmd1", card.ID)
	}
	// The tax from the first cast sticks for the recast.
	assert.Equal(t, 1, s.Player("p1").CommanderTax)

	_, err = e.CastCommander(gameID, "p1", "cmd1")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Player("p1").CommanderTax)
}

func TestCommanderMayStayInGraveyard(t *testing.T) {
	e := newTestEngine(t, Options{})
	gameID := commanderGame(t, e)
	require.NoError(t, e.MoveCard(gameID, "p1", "p1-2", ZoneLibrary, ZoneHand))
	advanceToStep(t, e, gameID, "MAIN1")

	_, err := e.CastCommander(gameID, "p1", "cmd1")
	require.NoError(t, err)
	passBoth(t, e, gameID)

	view, err := e.GetView(gameID, "")
	require.NoError(t, err)
	commanderID := view.Battlefield[0].ID

	_, err = e.CastSpell(gameID, "p1", CastSpellRequest{
		CardID:  "p1-2",
		Targets: []TargetRef{{ID: commanderID, Kind: "permanent"}},
		Effect:  EffectSpec{Kind: EffectDealDamage, Amount: 4},
	})
	require.NoError(t, err)
	passBoth(t, e, gameID)

	s := stateFor(t, e, gameID)
	active := s.Resolution.Active()
	require.NotNil(t, active)
	require.NoError(t, e.SubmitResolutionResponse(gameID, "p1", active.ID, []string{"graveyard"}))

	assert.Empty(t, s.Player("p1").CommandZone)
	found := false
	for _, card := range s.Player("p1").Graveyard {
		if card.ID == "cmd1" {
			found = true
		}
	}
	assert.True(t, found)
}
