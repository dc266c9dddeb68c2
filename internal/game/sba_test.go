package game

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/A2152225/MTGEDH-sub013/internal/game/counters"
)

func enterTestPermanent(t *testing.T, s *GameState, id string, card Card, controller string) {
	t.Helper()
	mustApply(t, s, EventPermanentEntered, permanentEnteredPayload{
		Permanent: Permanent{ID: id, Card: card, Controller: controller},
	})
}

func actionsOfKind(actions []SBAAction, kind SBAKind) []SBAAction {
	var out []SBAAction
	for _, a := range actions {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

func TestLifeLossThreshold(t *testing.T) {
	s := baseState(t)
	mustApply(t, s, EventLifeChanged, lifeChangedPayload{PlayerID: "p1", Delta: -39})
	assert.Empty(t, actionsOfKind(CollectStateBasedActions(s), SBAPlayerLifeLoss))

	mustApply(t, s, EventLifeChanged, lifeChangedPayload{PlayerID: "p1", Delta: -1})
	got := actionsOfKind(CollectStateBasedActions(s), SBAPlayerLifeLoss)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].PlayerID)

	mustApply(t, s, EventLifeChanged, lifeChangedPayload{PlayerID: "p1", Delta: -1})
	got = actionsOfKind(CollectStateBasedActions(s), SBAPlayerLifeLoss)
	require.Len(t, got, 1)
}

func TestPoisonThreshold(t *testing.T) {
	s := baseState(t)
	mustApply(t, s, EventPoisonChanged, poisonChangedPayload{PlayerID: "p2", Delta: 9})
	assert.Empty(t, actionsOfKind(CollectStateBasedActions(s), SBAPlayerPoisoned))

	mustApply(t, s, EventPoisonChanged, poisonChangedPayload{PlayerID: "p2", Delta: 1})
	got := actionsOfKind(CollectStateBasedActions(s), SBAPlayerPoisoned)
	require.Len(t, got, 1)
	assert.Equal(t, "p2", got[0].PlayerID)
}

func TestCommanderDamageThreshold(t *testing.T) {
	s := baseState(t)
	mustApply(t, s, EventCommanderDamage, commanderDamagePayload{PlayerID: "p2", CommanderID: "cmd-a", Amount: 20})
	assert.Empty(t, actionsOfKind(CollectStateBasedActions(s), SBAPlayerCommanderDmg))

	// Damage from different commanders does not add up.
	mustApply(t, s, EventCommanderDamage, commanderDamagePayload{PlayerID: "p2", CommanderID: "cmd-b", Amount: 20})
	assert.Empty(t, actionsOfKind(CollectStateBasedActions(s), SBAPlayerCommanderDmg))

	mustApply(t, s, EventCommanderDamage, commanderDamagePayload{PlayerID: "p2", CommanderID: "cmd-a", Amount: 1})
	got := actionsOfKind(CollectStateBasedActions(s), SBAPlayerCommanderDmg)
	require.Len(t, got, 1)
	assert.Equal(t, "p2", got[0].PlayerID)
	assert.Equal(t, 21, got[0].Amount)
}

func TestZeroToughnessAndLethalDamageAreDistinct(t *testing.T) {
	s := baseState(t)
	enterTestPermanent(t, s, "perm-1", Card{ID: "c1", Name: "Bear", Owner: "p1", Creature: true, Power: 2, Toughness: 2}, "p1")
	mustApply(t, s, EventCountersChanged, countersChangedPayload{PermanentID: "perm-1", CounterName: counters.MinusOneMinusOne, Delta: 2})

	actions := CollectStateBasedActions(s)
	require.Len(t, actionsOfKind(actions, SBAZeroToughness), 1)
	// A creature with toughness 0 or less never also dies to damage.
	assert.Empty(t, actionsOfKind(actions, SBALethalDamage))
	assert.Empty(t, actionsOfKind(actions, SBADeathtouchDamage))
}

func TestLethalDamage(t *testing.T) {
	s := baseState(t)
	enterTestPermanent(t, s, "perm-1", Card{ID: "c1", Name: "Bear", Owner: "p1", Creature: true, Power: 2, Toughness: 2}, "p1")

	mustApply(t, s, EventDamageMarked, damageMarkedPayload{PermanentID: "perm-1", Amount: 1})
	assert.Empty(t, actionsOfKind(CollectStateBasedActions(s), SBALethalDamage))

	mustApply(t, s, EventDamageMarked, damageMarkedPayload{PermanentID: "perm-1", Amount: 1})
	got := actionsOfKind(CollectStateBasedActions(s), SBALethalDamage)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"perm-1"}, got[0].Doomed)
}

func TestDeathtouchDamageBelowLethal(t *testing.T) {
	s := baseState(t)
	enterTestPermanent(t, s, "perm-1", Card{ID: "c1", Name: "Ox", Owner: "p1", Creature: true, Power: 2, Toughness: 4}, "p1")

	mustApply(t, s, EventDamageMarked, damageMarkedPayload{PermanentID: "perm-1", Amount: 1, Deathtouch: true})
	got := actionsOfKind(CollectStateBasedActions(s), SBADeathtouchDamage)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"perm-1"}, got[0].Doomed)
}

func TestLegendRuleListsEveryDuplicateKeepsOldest(t *testing.T) {
	s := baseState(t)
	legend := Card{Name: "Kenrith", Owner: "p1", Creature: true, Legendary: true, Power: 5, Toughness: 5}
	enterTestPermanent(t, s, "perm-old", legend, "p1")
	enterTestPermanent(t, s, "perm-new", legend, "p1")
	// Same name under another controller is fine.
	enterTestPermanent(t, s, "perm-other", Card{Name: "Kenrith", Owner: "p2", Creature: true, Legendary: true}, "p2")

	got := actionsOfKind(CollectStateBasedActions(s), SBALegendRule)
	require.Len(t, got, 1)
	assert.ElementsMatch(t, []string{"perm-old", "perm-new"}, got[0].PermanentIDs)
	assert.Equal(t, []string{"perm-new"}, got[0].Doomed)
}

func TestCounterAnnihilation(t *testing.T) {
	s := baseState(t)
	enterTestPermanent(t, s, "perm-1", Card{ID: "c1", Name: "Hydra", Owner: "p1", Creature: true, Power: 1, Toughness: 1}, "p1")
	mustApply(t, s, EventCountersChanged, countersChangedPayload{PermanentID: "perm-1", CounterName: counters.PlusOnePlusOne, Delta: 3})
	mustApply(t, s, EventCountersChanged, countersChangedPayload{PermanentID: "perm-1", CounterName: counters.MinusOneMinusOne, Delta: 2})

	got := actionsOfKind(CollectStateBasedActions(s), SBACounterAnnihilation)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Amount)
}

func TestAuraWithoutHostIsDoomed(t *testing.T) {
	s := baseState(t)
	mustApply(t, s, EventPermanentEntered, permanentEnteredPayload{
		Permanent: Permanent{
			ID:         "aura-1",
			Card:       Card{ID: "c1", Name: "Pacifism", Owner: "p1"},
			Controller: "p1",
			Aura:       true,
		},
	})

	got := actionsOfKind(CollectStateBasedActions(s), SBAAuraDetached)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"aura-1"}, got[0].Doomed)
}

func TestZeroLoyaltyPlaneswalker(t *testing.T) {
	s := baseState(t)
	mustApply(t, s, EventPermanentEntered, permanentEnteredPayload{
		Permanent: Permanent{
			ID:           "pw-1",
			Card:         Card{ID: "c1", Name: "Jace", Owner: "p1", Loyalty: 3},
			Controller:   "p1",
			Planeswalker: true,
		},
	})
	mustApply(t, s, EventCountersChanged, countersChangedPayload{PermanentID: "pw-1", CounterName: counters.Loyalty, Delta: 3})
	assert.Empty(t, actionsOfKind(CollectStateBasedActions(s), SBAZeroLoyalty))

	mustApply(t, s, EventCountersChanged, countersChangedPayload{PermanentID: "pw-1", CounterName: counters.Loyalty, Delta: -3})
	got := actionsOfKind(CollectStateBasedActions(s), SBAZeroLoyalty)
	require.Len(t, got, 1)
}

func TestEmptyLibraryDrawFlagsThePlayer(t *testing.T) {
	s := baseState(t)
	mustApply(t, s, EventCardDrawn, cardDrawnPayload{PlayerID: "p1", Count: 0, FromEmpty: true})

	got := actionsOfKind(CollectStateBasedActions(s), SBAPlayerEmptyDraw)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].PlayerID)
}

func TestDrawFromEmptyLibraryIsALoss(t *testing.T) {
	e := newTestEngine(t, Options{})
	gameID := twoPlayerGame(t, e)

	// Strand a player with no library before their first draw step.
	for i := 1; i <= 10; i++ {
		require.NoError(t, e.MoveCard(gameID, "p2", fmt.Sprintf("p2-%d", i), ZoneLibrary, ZoneGraveyard))
	}

	for i := 0; i < 200; i++ {
		view, err := e.GetView(gameID, "")
		require.NoError(t, err)
		if view.Finished {
			break
		}
		require.NoError(t, e.PassPriority(gameID, view.PriorityPlayer))
	}

	view, err := e.GetView(gameID, "")
	require.NoError(t, err)
	require.True(t, view.Finished)
	assert.Equal(t, "p1", view.WinnerID)
}

func TestPlaneswalkerEntersWithPrintedLoyalty(t *testing.T) {
	s := baseState(t)
	mustApply(t, s, EventPermanentEntered, permanentEnteredPayload{
		Permanent: Permanent{
			ID:         "pw-2",
			Card:       Card{ID: "c2", Name: "Vraska", Owner: "p1", TypeLine: "Legendary Planeswalker - Vraska", Loyalty: 3},
			Controller: "p1",
		},
	})

	perm := s.Permanent("pw-2")
	require.NotNil(t, perm)
	assert.True(t, perm.Planeswalker)
	assert.Equal(t, 3, perm.Counters.GetCount(counters.Loyalty))
	assert.Empty(t, actionsOfKind(CollectStateBasedActions(s), SBAZeroLoyalty))

	mustApply(t, s, EventCountersChanged, countersChangedPayload{PermanentID: "pw-2", CounterName: counters.Loyalty, Delta: -3})
	got := actionsOfKind(CollectStateBasedActions(s), SBAZeroLoyalty)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"pw-2"}, got[0].Doomed)
}

func TestEngineReachesFixedPoint(t *testing.T) {
	e := newTestEngine(t, Options{})
	gameID := twoPlayerGame(t, e)
	require.NoError(t, e.MoveCard(gameID, "p1", "p1-2", ZoneLibrary, ZoneHand))
	advanceToStep(t, e, gameID, "MAIN1")

	_, err := e.CastSpell(gameID, "p1", CastSpellRequest{
		CardID: "p1-2",
		Effect: EffectSpec{Kind: EffectEnterSelf},
	})
	require.NoError(t, err)
	passBoth(t, e, gameID)

	s := stateFor(t, e, gameID)
	view, err := e.GetView(gameID, "")
	require.NoError(t, err)
	bearID := view.Battlefield[0].ID

	mustApply(t, s, EventDamageMarked, damageMarkedPayload{PermanentID: bearID, Amount: 5})
	require.NoError(t, e.PassPriority(gameID, "p1"))

	// The pass ran the state-based loop; the state is stable again.
	assert.Empty(t, CollectStateBasedActions(s))
	view, err = e.GetView(gameID, "")
	require.NoError(t, err)
	assert.Empty(t, view.Battlefield)
}
