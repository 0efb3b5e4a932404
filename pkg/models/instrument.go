package models

// Instrument is a tradable symbol with its display metadata and the price
// a newly followed position starts from.
type Instrument struct {
	Symbol         string  `json:"symbol" yaml:"symbol"`
	Name           string  `json:"name" yaml:"name"`
	Sector         string  `json:"sector" yaml:"sector"`
	Color          string  `json:"color" yaml:"color"`
	ReferencePrice float64 `json:"reference_price" yaml:"reference_price"`
}
