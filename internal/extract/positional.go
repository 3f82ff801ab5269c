package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultWrapperSelector is the element enclosing both data columns of the detail page.
const DefaultWrapperSelector = "article.l-grid__cell"

// Side is the column a positional field lives in.
type Side int

// Columns of the detail page.
const (
	SideLeft Side = iota
	SideRight
)

// Position addresses the Index-th (0-based) value cell of a column.
type Position struct {
	Side  Side
	Index int
}

// ParsePosition decodes "left_N" / "right_N" where N is 1-based.
func ParsePosition(raw string) (Position, error) {
	side, num, found := strings.Cut(raw, "_")
	if !found {
		return Position{}, fmt.Errorf("position %q: missing '_'", raw)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 {
		return Position{}, fmt.Errorf("position %q: index must be a positive integer", raw)
	}
	switch side {
	case "left":
		return Position{Side: SideLeft, Index: n - 1}, nil
	case "right":
		return Position{Side: SideRight, Index: n - 1}, nil
	default:
		return Position{}, fmt.Errorf("position %q: unknown side %q", raw, side)
	}
}

// String renders the 1-based configuration form.
func (p Position) String() string {
	side := "left"
	if p.Side == SideRight {
		side = "right"
	}
	return side + "_" + strconv.Itoa(p.Index+1)
}

// PositionTable is an immutable field -> Position table.
type PositionTable struct {
	wrapper   string
	positions map[string]Position
}

// NewPositionTable parses raw "side_N" entries. wrapper defaults to DefaultWrapperSelector.
func NewPositionTable(wrapper string, raw map[string]string) (*PositionTable, error) {
	if wrapper == "" {
		wrapper = DefaultWrapperSelector
	}
	positions := make(map[string]Position, len(raw))
	for field, spec := range raw {
		pos, err := ParsePosition(spec)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
		positions[field] = pos
	}
	return &PositionTable{wrapper: wrapper, positions: positions}, nil
}

// DefaultPositionTable returns the historical column layout of the detail page.
func DefaultPositionTable() *PositionTable {
	table, err := NewPositionTable(DefaultWrapperSelector, map[string]string{
		FieldCodiceIsin:                "left_1",
		FieldIDStrumento:               "left_2",
		FieldCodiceAlfanumerico:        "left_3",
		FieldSuperSector:               "left_4",
		FieldMercatoSegmento:           "left_5",
		FieldCapitalizzazioneDiMercato: "left_6",
		FieldLottoMinimo:               "left_7",
		FieldFaseDiMercato:             "left_8",
		FieldPrezzoUltimoContratto:     "left_9",
		FieldVarPercentuale:            "left_10",
		FieldVarAssoluta:               "left_11",
		FieldPrMedioProgr:              "left_12",
		FieldDataOraUltimoContratto:    "left_13",
		FieldQuantitaUltimo:            "left_14",
		FieldQuantitaTotale:            "left_15",
		FieldNumeroContratti:           "left_16",
		FieldControvalore:              "right_1",
		FieldMaxOggi:                   "right_2",
		FieldMaxAnno:                   "right_3",
		FieldMinOggi:                   "right_4",
		FieldMinAnno:                   "right_5",
		FieldChiusuraPrecedente:        "right_6",
		FieldPrezzoRiferimento:         "right_7",
		FieldPrezzoUfficiale:           "right_8",
		FieldAperturaOdierna:           "right_9",
		FieldPerformance1Mese:          "right_10",
		FieldPerformance6Mesi:          "right_11",
		FieldPerformance1Anno:          "right_12",
	})
	if err != nil {
		panic(err)
	}
	return table
}

// Position returns the configured position of field.
func (t *PositionTable) Position(field string) (Position, bool) {
	p, ok := t.positions[field]
	return p, ok
}

// PositionalExtractor counts value cells inside the first table of each column.
type PositionalExtractor struct {
	tables []*goquery.Selection
	table  *PositionTable
}

// NewPositionalExtractor resolves the column tables of doc once.
func NewPositionalExtractor(doc *goquery.Document, table *PositionTable) *PositionalExtractor {
	e := &PositionalExtractor{table: table}
	wrapper := doc.Find(table.wrapper).First()
	if wrapper.Length() == 0 {
		return e
	}
	wrapper.Find("table:nth-of-type(1)").Each(func(_ int, s *goquery.Selection) {
		e.tables = append(e.tables, s)
	})
	return e
}

// Lookup returns the Nth value cell of the field's column.
func (e *PositionalExtractor) Lookup(field string) (*goquery.Selection, bool) {
	pos, ok := e.table.Position(field)
	if !ok {
		return nil, false
	}
	idx := int(pos.Side)
	if idx >= len(e.tables) {
		return nil, false
	}
	cell := e.tables[idx].Find(valueCellSelector).Eq(pos.Index)
	if cell.Length() == 0 {
		return nil, false
	}
	return cell, true
}
