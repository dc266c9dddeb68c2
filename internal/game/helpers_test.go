package game

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memorySink is an in-memory EventSink for replay tests.
type memorySink struct {
	mu   sync.Mutex
	logs map[string][]Event
}

func newMemorySink() *memorySink {
	return &memorySink{logs: make(map[string][]Event)}
}

func (m *memorySink) AppendEvent(_ context.Context, gameID string, evt Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[gameID] = append(m.logs[gameID], evt)
	return nil
}

func (m *memorySink) LoadEvents(_ context.Context, gameID string) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.logs[gameID]...), nil
}

// fakeDetector maps exact oracle text to fixed descriptors.
type fakeDetector struct {
	byText map[string][]AbilityDescriptor
}

func (d *fakeDetector) DetectAbilities(oracleText string, _ AbilityContext) []AbilityDescriptor {
	return d.byText[oracleText]
}

// testDeck builds a deterministic deck: card 1 is a Forest, the rest
// are 2/2 Bears. IDs are "<owner>-<n>".
func testDeck(owner string, n int) []Card {
	cards := make([]Card, n)
	for i := range cards {
		id := fmt.Sprintf("%s-%d", owner, i+1)
		if i == 0 {
			cards[i] = Card{ID: id, Name: "Forest", Land: true}
			continue
		}
		cards[i] = Card{ID: id, Name: fmt.Sprintf("Bear %d", i), Creature: true, Power: 2, Toughness: 2}
	}
	return cards
}

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return NewEngine(opts)
}

// twoPlayerGame creates a seeded two-player game with ten-card decks
// and no opening draw.
func twoPlayerGame(t *testing.T, e *Engine) string {
	t.Helper()
	gameID, err := e.CreateGame(CreateGameOptions{
		GameID: "g1",
		Players: []PlayerSetup{
			{ID: "p1", Name: "Alice", Deck: testDeck("p1", 10)},
			{ID: "p2", Name: "Bob", Deck: testDeck("p2", 10)},
		},
		Seed:            42,
		SkipOpeningDraw: true,
	})
	require.NoError(t, err)
	return gameID
}

// passBoth has the priority player and then the next player pass,
// letting the top of the stack resolve or the step advance.
func passBoth(t *testing.T, e *Engine, gameID string) {
	t.Helper()
	for i := 0; i < 2; i++ {
		view, err := e.GetView(gameID, "")
		require.NoError(t, err)
		if view.Finished {
			return
		}
		require.NoError(t, e.PassPriority(gameID, view.PriorityPlayer))
	}
}

// advanceToStep passes priority around the table until the game sits
// at the wanted step with an empty stack.
func advanceToStep(t *testing.T, e *Engine, gameID, step string) {
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

// mustApply folds an event built from the payload into the state.
func mustApply(t *testing.T, s *GameState, eventType EventType, payload any) {
	t.Helper()
	evt, err := s.NewEvent(eventType, payload)
	require.NoError(t, err)
	require.NoError(t, s.ApplyEvent(evt))
}

// viewsEqual compares two snapshots through their JSON encodings.
func viewsEqual(a, b *EngineGameView) error {
	rawA, err := json.Marshal(a)
	if err != nil {
		return err
	}
	rawB, err := json.Marshal(b)
	if err != nil {
		return err
	}
	if !bytes.Equal(rawA, rawB) {
		return fmt.Errorf("snapshots differ:\n%s\n%s", rawA, rawB)
	}
	return nil
}

// stateFor reaches into the engine for white-box assertions.
func stateFor(t *testing.T, e *Engine, gameID string) *GameState {
	t.Helper()
	entry, err := e.entry(gameID)
	require.NoError(t, err)
	return entry.state
}
