package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"tradeflow/pkg/models"

	"gopkg.in/yaml.v3"
)

var (
	ErrEmptySymbol     = errors.New("instrument symbol is required")
	ErrDuplicateSymbol = errors.New("duplicate instrument symbol")
	ErrInvalidPrice    = errors.New("reference price must be positive")
)

// Catalog is the immutable registry of tradable instruments. It is safe for
// concurrent use because nothing mutates it after construction.
type Catalog struct {
	instruments map[string]models.Instrument
	symbols     []string
}

// New builds a catalog preserving the given order.
func New(instruments []models.Instrument) (*Catalog, error) {
	c := &Catalog{
		instruments: make(map[string]models.Instrument, len(instruments)),
		symbols:     make([]string, 0, len(instruments)),
	}

	for _, instrument := range instruments {
		instrument.Symbol = strings.ToUpper(strings.TrimSpace(instrument.Symbol))
		if instrument.Symbol == "" {
			return nil, ErrEmptySymbol
		}
		if instrument.ReferencePrice <= 0 {
			return nil, fmt.Errorf("%s: %w", instrument.Symbol, ErrInvalidPrice)
		}
		if _, exists := c.instruments[instrument.Symbol]; exists {
			return nil, fmt.Errorf("%s: %w", instrument.Symbol, ErrDuplicateSymbol)
		}

		c.instruments[instrument.Symbol] = instrument
		c.symbols = append(c.symbols, instrument.Symbol)
	}

	return c, nil
}

// Default returns the built-in demo instruments.
func Default() *Catalog {
	c, err := New([]models.Instrument{
		{Symbol: "GOOG", Name: "Alphabet Inc.", Sector: "Technology", Color: "#4285F4", ReferencePrice: 141.80},
		{Symbol: "TSLA", Name: "Tesla Inc.", Sector: "Automotive", Color: "#CC0000", ReferencePrice: 248.50},
		{Symbol: "AMZN", Name: "Amazon.com Inc.", Sector: "E-Commerce", Color: "#FF9900", ReferencePrice: 186.40},
		{Symbol: "META", Name: "Meta Platforms", Sector: "Technology", Color: "#1877F2", ReferencePrice: 505.75},
		{Symbol: "NVDA", Name: "NVIDIA Corp.", Sector: "Semiconductors", Color: "#76B900", ReferencePrice: 467.30},
	})
	if err != nil {
		panic(err)
	}
	return c
}

type fileFormat struct {
	Instruments []models.Instrument `yaml:"instruments"`
}

// LoadFile reads a YAML catalog of the form:
//
//	instruments:
//	  - symbol: GOOG
//	    name: Alphabet Inc.
//	    sector: Technology
//	    color: "#4285F4"
//	    reference_price: 141.80
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file '%s': %w", path, err)
	}

	var doc fileFormat
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog from YAML: %w", err)
	}

	if len(doc.Instruments) == 0 {
		return nil, fmt.Errorf("catalog file '%s' defines no instruments", path)
	}

	return New(doc.Instruments)
}

func (c *Catalog) Lookup(symbol string) (models.Instrument, bool) {
	instrument, ok := c.instruments[symbol]
	return instrument, ok
}

// Symbols returns every known symbol in catalog order.
func (c *Catalog) Symbols() []string {
	out := make([]string, len(c.symbols))
	copy(out, c.symbols)
	return out
}

// Instruments returns every instrument in catalog order.
func (c *Catalog) Instruments() []models.Instrument {
	out := make([]models.Instrument, 0, len(c.symbols))
	for _, symbol := range c.symbols {
		out = append(out, c.instruments[symbol])
	}
	return out
}

// Unfollowed returns the catalog symbols that are not in followed.
func (c *Catalog) Unfollowed(followed []string) []string {
	seen := make(map[string]bool, len(followed))
	for _, symbol := range followed {
		seen[symbol] = true
	}

	out := make([]string, 0, len(c.symbols))
	for _, symbol := range c.symbols {
		if !seen[symbol] {
			out = append(out, symbol)
		}
	}
	return out
}
