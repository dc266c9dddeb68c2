package main

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Converts a card database CSV export into the registry YAML the
// server loads at startup. Usage:
//
//	go run scripts/import_cards.go [cards.csv] [registry.yaml]

// cardRecord mirrors one row of the CSV export.
type cardRecord struct {
	Name      string `yaml:"name"`
	TypeLine  string `yaml:"type_line"`
	Text      string `yaml:"text,omitempty"`
	Power     int    `yaml:"power,omitempty"`
	Toughness int    `yaml:"toughness,omitempty"`
	Loyalty   int    `yaml:"loyalty,omitempty"`
}

type registryFile struct {
	Cards []cardRecord `yaml:"cards"`
}

func main() {
	csvPath := "data/cards_export.csv"
	outPath := "config/cards.yaml"
	if len(os.Args) > 1 {
		csvPath = os.Args[1]
	}
	if len(os.Args) > 2 {
		outPath = os.Args[2]
	}

	absPath, err := filepath.Abs(csvPath)
	if err != nil {
		log.Fatalf("Failed to get absolute path: %v", err)
	}

	fmt.Println("=== Card Registry Import ===")
	fmt.Printf("CSV file: %s\n", absPath)

	file, err := os.Open(absPath)
	if err != nil {
		log.Fatalf("Failed to open CSV file: %v", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		log.Fatalf("Failed to read CSV: %v", err)
	}

	if len(records) < 2 {
		log.Fatal("CSV file is empty or has no data rows")
	}

	fmt.Printf("Found %d cards in CSV\n", len(records)-1) // -1 for header

	// Expected columns: name, type_line, text, power, toughness, loyalty
	seen := make(map[string]bool)
	out := registryFile{}
	skipped := 0
	for i, record := range records[1:] { // Skip header
		if len(record) < 6 {
			log.Printf("Warning: Skipping row %d - insufficient columns", i+2)
			skipped++
			continue
		}
		name := strings.TrimSpace(record[0])
		if name == "" {
			log.Printf("Warning: Skipping row %d - empty name", i+2)
			skipped++
			continue
		}
		if seen[strings.ToLower(name)] {
			skipped++
			continue
		}
		seen[strings.ToLower(name)] = true

		out.Cards = append(out.Cards, cardRecord{
			Name:      name,
			TypeLine:  strings.TrimSpace(record[1]),
			Text:      strings.TrimSpace(record[2]),
			Power:     atoiOrZero(record[3]),
			Toughness: atoiOrZero(record[4]),
			Loyalty:   atoiOrZero(record[5]),
		})
	}

	data, err := yaml.Marshal(&out)
	if err != nil {
		log.Fatalf("Failed to marshal registry: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		log.Fatalf("Failed to write registry: %v", err)
	}

	fmt.Printf("✓ Wrote %d cards to %s (%d rows skipped)\n", len(out.Cards), outPath, skipped)
}

// atoiOrZero parses stats like "2", "*" or "" into an int, treating
// anything non-numeric as zero.
func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
