package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const valueCellSelector = "span.t-text.-right"

// LabelMapping associates a field with the row-label substrings that identify it.
type LabelMapping struct {
	Field string
	Terms []string
}

// LabelTable is an immutable, ordered field -> label-substrings table.
type LabelTable struct {
	mappings []LabelMapping
}

// NewLabelTable copies mappings into a table. Terms are lower-cased.
func NewLabelTable(mappings []LabelMapping) *LabelTable {
	out := make([]LabelMapping, 0, len(mappings))
	for _, m := range mappings {
		terms := make([]string, 0, len(m.Terms))
		for _, term := range m.Terms {
			terms = append(terms, strings.ToLower(term))
		}
		out = append(out, LabelMapping{Field: m.Field, Terms: terms})
	}
	return &LabelTable{mappings: out}
}

// DefaultLabelTable returns the labels used on the "dati completi" page.
func DefaultLabelTable() *LabelTable {
	return NewLabelTable([]LabelMapping{
		{Field: FieldIDStrumento, Terms: []string{"id strumento"}},
		{Field: FieldCodiceAlfanumerico, Terms: []string{"codice alfanumerico"}},
		{Field: FieldSuperSector, Terms: []string{"super sector"}},
		{Field: FieldMercatoSegmento, Terms: []string{"mercato/segmento"}},
		{Field: FieldCapitalizzazioneDiMercato, Terms: []string{"capitalizzazione di mercato"}},
		{Field: FieldLottoMinimo, Terms: []string{"lotto minimo"}},
		{Field: FieldFaseDiMercato, Terms: []string{"fase di mercato"}},
		{Field: FieldPrezzoUltimoContratto, Terms: []string{"prezzo ultimo contratto"}},
		{Field: FieldVarPercentuale, Terms: []string{"var %"}},
		{Field: FieldVarAssoluta, Terms: []string{"var assoluta"}},
		{Field: FieldPrMedioProgr, Terms: []string{"pr medio progr"}},
		{Field: FieldDataOraUltimoContratto, Terms: []string{"data - ora ultimo contratto:"}},
		{Field: FieldQuantitaUltimo, Terms: []string{"quantità ultimo"}},
		{Field: FieldQuantitaTotale, Terms: []string{"quantità totale"}},
		{Field: FieldNumeroContratti, Terms: []string{"numero contratti"}},
		{Field: FieldControvalore, Terms: []string{"controvalore"}},
		{Field: FieldMaxOggi, Terms: []string{"max oggi"}},
		{Field: FieldMaxAnno, Terms: []string{"max anno"}},
		{Field: FieldMinOggi, Terms: []string{"min oggi"}},
		{Field: FieldMinAnno, Terms: []string{"min anno"}},
		{Field: FieldChiusuraPrecedente, Terms: []string{"chiusura precedente/pre-chiusura/chiusura:"}},
		{Field: FieldPrezzoRiferimento, Terms: []string{"prezzo di riferimento"}},
		{Field: FieldPrezzoUfficiale, Terms: []string{"prezzo ufficiale"}},
		{Field: FieldAperturaOdierna, Terms: []string{"apertura odierna:"}},
		{Field: FieldPerformance1Mese, Terms: []string{"performance 1 mese"}},
		{Field: FieldPerformance6Mesi, Terms: []string{"performance 6 mesi"}},
		{Field: FieldPerformance1Anno, Terms: []string{"performance 1 anno"}},
	})
}

// Mappings returns a copy of the table rows.
func (t *LabelTable) Mappings() []LabelMapping {
	out := make([]LabelMapping, len(t.mappings))
	for i, m := range t.mappings {
		out[i] = LabelMapping{Field: m.Field, Terms: append([]string(nil), m.Terms...)}
	}
	return out
}

// LabelExtractor indexes table rows by their bold label text.
type LabelExtractor struct {
	rows map[string]*goquery.Selection
}

// NewLabelExtractor scans every table row of doc once and indexes the rows matching table.
// When several rows match a field the last one in document order wins.
func NewLabelExtractor(doc *goquery.Document, table *LabelTable) *LabelExtractor {
	type labelledRow struct {
		label string
		row   *goquery.Selection
	}
	var rows []labelledRow
	doc.Find("table").Each(func(_ int, tbl *goquery.Selection) {
		tbl.Find("tr").Each(func(_ int, row *goquery.Selection) {
			strong := row.Find("strong").First()
			if strong.Length() == 0 {
				return
			}
			rows = append(rows, labelledRow{label: strings.ToLower(strong.Text()), row: row})
		})
	})

	index := make(map[string]*goquery.Selection, len(table.mappings))
	for _, m := range table.mappings {
		for _, r := range rows {
			if containsAny(r.label, m.Terms) {
				index[m.Field] = r.row
			}
		}
	}
	return &LabelExtractor{rows: index}
}

// Lookup returns the right-aligned value cell of the row indexed under field.
func (e *LabelExtractor) Lookup(field string) (*goquery.Selection, bool) {
	row, ok := e.rows[field]
	if !ok {
		return nil, false
	}
	cell := row.Find(valueCellSelector).First()
	if cell.Length() == 0 {
		return nil, false
	}
	return cell, true
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}
