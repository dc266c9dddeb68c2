package cards

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/A2152225/MTGEDH-sub013/internal/game"
)

// CardDef is one card definition in the registry YAML.
type CardDef struct {
	Name      string `yaml:"name"`
	TypeLine  string `yaml:"type_line"`
	Text      string `yaml:"text,omitempty"`
	Power     int    `yaml:"power,omitempty"`
	Toughness int    `yaml:"toughness,omitempty"`
	Loyalty   int    `yaml:"loyalty,omitempty"`
}

// registryFile is the top-level YAML structure.
type registryFile struct {
	Cards []CardDef `yaml:"cards"`
}

// Registry holds card definitions indexed by name. Lookups are
// case-insensitive.
type Registry struct {
	byName map[string]CardDef
}

// LoadRegistry reads a card registry YAML file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRegistry(data)
}

// ParseRegistry builds a registry from raw YAML.
func ParseRegistry(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse card registry: %w", err)
	}
	r := &Registry{byName: make(map[string]CardDef, len(file.Cards))}
	for _, def := range file.Cards {
		if def.Name == "" {
			return nil, fmt.Errorf("card registry entry missing a name")
		}
		key := strings.ToLower(def.Name)
		if _, dup := r.byName[key]; dup {
			return nil, fmt.Errorf("duplicate card %q in registry", def.Name)
		}
		r.byName[key] = def
	}
	return r, nil
}

// Lookup returns the definition for a card name.
func (r *Registry) Lookup(name string) (CardDef, bool) {
	def, ok := r.byName[strings.ToLower(name)]
	return def, ok
}

// Len reports the number of registered cards.
func (r *Registry) Len() int {
	return len(r.byName)
}

// Names returns all registered card names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for _, def := range r.byName {
		names = append(names, def.Name)
	}
	sort.Strings(names)
	return names
}

// Card converts a definition into an engine card. The ID is left
// empty; game setup assigns one per copy.
func (def CardDef) Card() game.Card {
	line := strings.ToLower(def.TypeLine)
	return game.Card{
		Name:      def.Name,
		TypeLine:  def.TypeLine,
		Text:      def.Text,
		Power:     def.Power,
		Toughness: def.Toughness,
		Loyalty:   def.Loyalty,
		Creature:  strings.Contains(line, "creature"),
		Land:      strings.Contains(line, "land"),
		Legendary: strings.Contains(line, "legendary"),
	}
}
