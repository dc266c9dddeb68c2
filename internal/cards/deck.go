package cards

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/A2152225/MTGEDH-sub013/internal/game"
)

// DeckFile is the top-level YAML structure for decklists.
type DeckFile struct {
	Decks []DeckEntry `yaml:"decks"`
}

// DeckEntry is a single decklist: a commander plus counted cards.
type DeckEntry struct {
	Name      string      `yaml:"name"`
	Commander string      `yaml:"commander,omitempty"`
	Cards     []CardEntry `yaml:"cards"`
}

// CardEntry is a card name and how many copies the deck runs.
type CardEntry struct {
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

// LoadDeckFile reads a decklist YAML file.
func LoadDeckFile(path string) (*DeckFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseDeckFile(data)
}

// ParseDeckFile builds a deck file from raw YAML.
func ParseDeckFile(data []byte) (*DeckFile, error) {
	var df DeckFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return nil, fmt.Errorf("parse deck YAML: %w", err)
	}
	return &df, nil
}

// Deck returns the named decklist.
func (df *DeckFile) Deck(name string) (DeckEntry, bool) {
	for _, deck := range df.Decks {
		if deck.Name == name {
			return deck, true
		}
	}
	return DeckEntry{}, false
}

// Build resolves a decklist against the registry into engine cards.
// The commander, when the list names one, comes back separately and
// is not part of the library.
func (entry DeckEntry) Build(r *Registry) ([]game.Card, *game.Card, error) {
	var deck []game.Card
	for _, ce := range entry.Cards {
		def, ok := r.Lookup(ce.Name)
		if !ok {
			return nil, nil, fmt.Errorf("deck %q: unknown card %q", entry.Name, ce.Name)
		}
		if ce.Count < 1 {
			return nil, nil, fmt.Errorf("deck %q: card %q has count %d", entry.Name, ce.Name, ce.Count)
		}
		for i := 0; i < ce.Count; i++ {
			deck = append(deck, def.Card())
		}
	}

	var commander *game.Card
	if entry.Commander != "" {
		def, ok := r.Lookup(entry.Commander)
		if !ok {
			return nil, nil, fmt.Errorf("deck %q: unknown commander %q", entry.Name, entry.Commander)
		}
		card := def.Card()
		commander = &card
	}
	return deck, commander, nil
}
