package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/A2152225/MTGEDH-sub013/internal/game"
)

// memorySink keeps event logs per game so a second engine can replay
// them, standing in for the PostgreSQL store.
type memorySink struct {
	mu   sync.Mutex
	logs map[string][]game.Event
}

func newMemorySink() *memorySink {
	return &memorySink{logs: make(map[string][]game.Event)}
}

func (m *memorySink) AppendEvent(_ context.Context, gameID string, evt game.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[gameID] = append(m.logs[gameID], evt)
	return nil
}

func (m *memorySink) LoadEvents(_ context.Context, gameID string) ([]game.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]game.Event(nil), m.logs[gameID]...), nil
}

func (m *memorySink) TruncateEvents(_ context.Context, gameID string, afterSeq int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log := m.logs[gameID]
	kept := log[:0]
	for _, evt := range log {
		if evt.Seq <= afterSeq {
			kept = append(kept, evt)
		}
	}
	m.logs[gameID] = kept
	return nil
}

func bearDeck(owner string, n int) []game.Card {
	deck := make([]game.Card, n)
	for i := range deck {
		deck[i] = game.Card{
			ID:        fmt.Sprintf("%s-%d", owner, i+1),
			Name:      fmt.Sprintf("Bear %d", i+1),
			Creature:  true,
			Power:     2,
			Toughness: 2,
		}
	}
	return deck
}

func passUntilStep(t *testing.T, e *game.Engine, gameID, step string) {
	t.Helper()
	for i := 0; i < 64; i++ {
		view, err := e.GetView(gameID, "")
		require.NoError(t, err)
		if view.Step == step && len(view.Stack) == 0 {
			return
		}
		require.NoError(t, e.PassPriority(gameID, view.PriorityPlayer))
	}
	t.Fatalf("never reached step %s", step)
}

func activeStep(t *testing.T, e *game.Engine, gameID string) *game.StepView {
	t.Helper()
	view, err := e.GetView(gameID, "")
	require.NoError(t, err)
	for i := range view.PendingSteps {
		if view.PendingSteps[i].Active {
			return &view.PendingSteps[i]
		}
	}
	return nil
}

// TestFullGameToVictory plays a complete short game: a creature on
// turn one, repeated attacks, and a win by damage. Afterward a second
// engine replays the persisted log and lands on the same snapshot.
func TestFullGameToVictory(t *testing.T) {
	logger := zaptest.NewLogger(t)
	sink := newMemorySink()
	e := game.NewEngine(game.Options{Logger: logger, Sink: sink})

	gameID, err := e.CreateGame(game.CreateGameOptions{
		GameID: "itg-1",
		Players: []game.PlayerSetup{
			{ID: "p1", Name: "Alice", Deck: bearDeck("p1", 20)},
			{ID: "p2", Name: "Bob", Deck: bearDeck("p2", 20)},
		},
		Seed:            99,
		StartingLife:    4,
		SkipOpeningDraw: true,
	})
	require.NoError(t, err)

	require.NoError(t, e.MoveCard(gameID, "p1", "p1-1", game.ZoneLibrary, game.ZoneHand))
	passUntilStep(t, e, gameID, "MAIN1")
	_, err = e.CastSpell(gameID, "p1", game.CastSpellRequest{
		CardID: "p1-1",
		Effect: game.EffectSpec{Kind: game.EffectEnterSelf},
	})
	require.NoError(t, err)

	// Drive the game: answer decision steps, otherwise pass priority.
	// Alice always attacks with her first eligible creature; 4 life
	// falls to two hits from a 2/2.
	var winner string
	for i := 0; i < 256; i++ {
		view, err := e.GetView(gameID, "")
		require.NoError(t, err)
		if view.Finished {
			winner = view.WinnerID
			break
		}
		if step := activeStep(t, e, gameID); step != nil {
			switch step.Type {
			case game.StepDeclareAttackers:
				require.NotEmpty(t, step.Payload.Options)
				require.NoError(t, e.SubmitResolutionResponse(
					gameID, step.Player, step.ID, step.Payload.Options[:1]))
			case game.StepDeclareBlockers:
				require.NoError(t, e.SubmitResolutionResponse(
					gameID, step.Player, step.ID, nil))
			default:
				t.Fatalf("unexpected pending step %s", step.Type)
			}
			continue
		}
		require.NoError(t, e.PassPriority(gameID, view.PriorityPlayer))
	}
	require.Equal(t, "p1", winner)

	// Replay on a fresh engine.
	replayEngine := game.NewEngine(game.Options{Logger: logger, Sink: sink})
	require.NoError(t, replayEngine.LoadGame(context.Background(), gameID))

	for _, viewer := range []string{"", "p1", "p2"} {
		live, err := e.GetView(gameID, viewer)
		require.NoError(t, err)
		replayed, err := replayEngine.GetView(gameID, viewer)
		require.NoError(t, err)
		assert.Equal(t, live, replayed, "viewer %q", viewer)
	}
}

// TestLondonMulliganFlow mulligans once, keeps, and puts one card
// back per rule 103.5.
func TestLondonMulliganFlow(t *testing.T) {
	logger := zaptest.NewLogger(t)
	e := game.NewEngine(game.Options{Logger: logger})

	gameID, err := e.CreateGame(game.CreateGameOptions{
		GameID: "itg-mull",
		Players: []game.PlayerSetup{
			{ID: "p1", Name: "Alice", Deck: bearDeck("p1", 20)},
			{ID: "p2", Name: "Bob", Deck: bearDeck("p2", 20)},
		},
		Seed:           5,
		OfferMulligans: true,
	})
	require.NoError(t, err)

	step := activeStep(t, e, gameID)
	require.NotNil(t, step)
	require.Equal(t, game.StepMulligan, step.Type)
	require.Equal(t, "p1", step.Player)

	// Mulligan once, then keep.
	require.NoError(t, e.SubmitResolutionResponse(gameID, "p1", step.ID, []string{"mulligan"}))
	step = activeStep(t, e, gameID)
	require.NotNil(t, step)
	require.Equal(t, "p1", step.Player)
	require.NoError(t, e.SubmitResolutionResponse(gameID, "p1", step.ID, []string{"keep"}))

	// Keeping after one mulligan forces one card to the bottom.
	step = activeStep(t, e, gameID)
	require.NotNil(t, step)
	require.Equal(t, game.StepMulligan, step.Type)
	require.Equal(t, 1, step.Payload.Count)

	view, err := e.GetView(gameID, "p1")
	require.NoError(t, err)
	putBack := view.Players[0].Hand[0].ID
	require.NoError(t, e.SubmitResolutionResponse(gameID, "p1", step.ID, []string{putBack}))

	// Bob keeps straight away.
	step = activeStep(t, e, gameID)
	require.NotNil(t, step)
	require.Equal(t, "p2", step.Player)
	require.NoError(t, e.SubmitResolutionResponse(gameID, "p2", step.ID, []string{"keep"}))

	view, err = e.GetView(gameID, "")
	require.NoError(t, err)
	assert.Equal(t, 6, view.Players[0].HandCount)
	assert.Equal(t, 14, view.Players[0].LibraryCount)
	assert.Equal(t, 7, view.Players[1].HandCount)
	assert.Nil(t, activeStep(t, e, gameID))
}

// TestRollbackAcrossTurns rewinds two turns and checks that the
// in-memory state and the persisted log shrink together.
func TestRollbackAcrossTurns(t *testing.T) {
	logger := zaptest.NewLogger(t)
	sink := newMemorySink()
	e := game.NewEngine(game.Options{Logger: logger, Sink: sink})

	gameID, err := e.CreateGame(game.CreateGameOptions{
		GameID: "itg-rb",
		Players: []game.PlayerSetup{
			{ID: "p1", Name: "Alice", Deck: bearDeck("p1", 20)},
			{ID: "p2", Name: "Bob", Deck: bearDeck("p2", 20)},
		},
		Seed:            13,
		SkipOpeningDraw: true,
	})
	require.NoError(t, err)

	for i := 0; i < 128; i++ {
		view, err := e.GetView(gameID, "")
		require.NoError(t, err)
		if view.Turn >= 4 {
			break
		}
		require.NoError(t, e.PassPriority(gameID, view.PriorityPlayer))
	}

	require.NoError(t, e.RollbackToTurn(gameID, 2))

	view, err := e.GetView(gameID, "")
	require.NoError(t, err)
	assert.Equal(t, 2, view.Turn)
	assert.Equal(t, "UPKEEP", view.Step)

	logs, err := sink.LoadEvents(context.Background(), gameID)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, view.Seq, logs[len(logs)-1].Seq)

	// The rewound game plays on normally.
	require.NoError(t, e.PassPriority(gameID, view.PriorityPlayer))
}
