package cards

import (
	"strings"
	"testing"
)

const registryYAML = `
cards:
  - name: Forest
    type_line: Basic Land - Forest
  - name: Grizzly Bears
    type_line: Creature - Bear
    power: 2
    toughness: 2
  - name: Atraxa, Praetors' Voice
    type_line: Legendary Creature - Phyrexian Angel Horror
    text: "Flying, vigilance, deathtouch, lifelink"
    power: 4
    toughness: 4
`

const deckYAML = `
decks:
  - name: Stompy
    commander: Atraxa, Praetors' Voice
    cards:
      - name: Forest
        count: 3
      - name: Grizzly Bears
        count: 2
`

func TestParseRegistry(t *testing.T) {
	r, err := ParseRegistry([]byte(registryYAML))
	if err != nil {
		t.Fatalf("ParseRegistry: %v", err)
	}
	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}

	def, ok := r.Lookup("grizzly bears")
	if !ok {
		t.Fatal("case-insensitive lookup failed")
	}
	if def.Power != 2 || def.Toughness != 2 {
		t.Errorf("bears stats = %d/%d, want 2/2", def.Power, def.Toughness)
	}

	if _, ok := r.Lookup("Black Lotus"); ok {
		t.Error("lookup of unregistered card succeeded")
	}
}

func TestParseRegistryRejectsDuplicates(t *testing.T) {
	_, err := ParseRegistry([]byte("cards:\n  - name: Forest\n  - name: forest\n"))
	if err == nil {
		t.Fatal("duplicate names accepted")
	}
}

func TestCardDefTypeFlags(t *testing.T) {
	r, err := ParseRegistry([]byte(registryYAML))
	if err != nil {
		t.Fatalf("ParseRegistry: %v", err)
	}

	forest, _ := r.Lookup("Forest")
	card := forest.Card()
	if !card.Land || card.Creature {
		t.Errorf("forest flags land=%v creature=%v, want land only", card.Land, card.Creature)
	}

	atraxa, _ := r.Lookup("Atraxa, Praetors' Voice")
	card = atraxa.Card()
	if !card.Creature || !card.Legendary {
		t.Errorf("atraxa flags creature=%v legendary=%v, want both", card.Creature, card.Legendary)
	}
}

func TestDeckBuild(t *testing.T) {
	r, err := ParseRegistry([]byte(registryYAML))
	if err != nil {
		t.Fatalf("ParseRegistry: %v", err)
	}
	df, err := ParseDeckFile([]byte(deckYAML))
	if err != nil {
		t.Fatalf("ParseDeckFile: %v", err)
	}

	entry, ok := df.Deck("Stompy")
	if !ok {
		t.Fatal("deck Stompy not found")
	}
	deck, commander, err := entry.Build(r)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(deck) != 5 {
		t.Fatalf("deck size = %d, want 5", len(deck))
	}
	if commander == nil || commander.Name != "Atraxa, Praetors' Voice" {
		t.Fatalf("commander = %+v, want Atraxa", commander)
	}

	forests := 0
	for _, card := range deck {
		if card.Name == "Forest" {
			forests++
		}
	}
	if forests != 3 {
		t.Errorf("forest count = %d, want 3", forests)
	}
}

func TestDeckBuildUnknownCard(t *testing.T) {
	r, _ := ParseRegistry([]byte(registryYAML))
	entry := DeckEntry{Name: "Bad", Cards: []CardEntry{{Name: "Black Lotus", Count: 1}}}
	_, _, err := entry.Build(r)
	if err == nil || !strings.Contains(err.Error(), "Black Lotus") {
		t.Fatalf("err = %v, want unknown card error", err)
	}
}
