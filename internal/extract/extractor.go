// Package extract locates and tolerantly decodes typed values from Borsa Italiana HTML pages.
//
// A FieldExtractor maps a semantic field name to the DOM cell holding its value. Two
// strategies exist: LabelExtractor matches row labels, PositionalExtractor counts cells.
// Reader turns located cells into optional typed values.
package extract

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrParse marks pages whose structure cannot be decoded at all.
var ErrParse = errors.New("extract: unparseable page")

// Strategy selects a FieldExtractor implementation.
type Strategy string

// Supported strategies.
const (
	StrategyLabel      Strategy = "label"
	StrategyPositional Strategy = "positional"
)

// ParseStrategy validates a configured strategy name. Empty means label matching.
func ParseStrategy(raw string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", StrategyLabel:
		return StrategyLabel, nil
	case StrategyPositional:
		return StrategyPositional, nil
	default:
		return "", fmt.Errorf("unknown extract strategy %q", raw)
	}
}

// FieldExtractor locates the value cell for a field. A miss is reported with ok=false.
type FieldExtractor interface {
	Lookup(field string) (*goquery.Selection, bool)
}

// Tables bundles the immutable mapping tables both strategies read from.
type Tables struct {
	Labels    *LabelTable
	Positions *PositionTable
}

// DefaultTables builds the stock mappings for the detail page.
func DefaultTables() Tables {
	return Tables{
		Labels:    DefaultLabelTable(),
		Positions: DefaultPositionTable(),
	}
}

// Factory builds a FieldExtractor for a parsed document.
type Factory struct {
	strategy Strategy
	tables   Tables
}

// NewFactory binds a strategy to its mapping tables.
func NewFactory(strategy Strategy, tables Tables) (*Factory, error) {
	switch strategy {
	case StrategyLabel:
		if tables.Labels == nil {
			return nil, errors.New("label strategy requires a label table")
		}
	case StrategyPositional:
		if tables.Positions == nil {
			return nil, errors.New("positional strategy requires a position table")
		}
	default:
		return nil, fmt.Errorf("unknown extract strategy %q", strategy)
	}
	return &Factory{strategy: strategy, tables: tables}, nil
}

// Strategy reports the configured strategy.
func (f *Factory) Strategy() Strategy {
	return f.strategy
}

// For returns an extractor over doc.
func (f *Factory) For(doc *goquery.Document) FieldExtractor {
	if f.strategy == StrategyPositional {
		return NewPositionalExtractor(doc, f.tables.Positions)
	}
	return NewLabelExtractor(doc, f.tables.Labels)
}

// ParseDocument parses raw HTML into a goquery document.
func ParseDocument(html string) (*goquery.Document, error) {
	return ParseReader(strings.NewReader(html))
}

// ParseReader parses HTML from r.
func ParseReader(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return doc, nil
}
