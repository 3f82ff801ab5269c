// Package extracttest builds Borsa Italiana page fixtures for tests.
package extracttest

import (
	"fmt"
	"html"
	"strings"
)

// Row is one labelled value of the detail page.
type Row struct {
	Label string
	Value string
}

// Left is the left column of a representative "dati completi" page, in page order.
var Left = []Row{
	{"Codice Isin", "IT0003132476"},
	{"Id Strumento", "4336"},
	{"Codice Alfanumerico", "ENI"},
	{"Super Sector", "Energia"},
	{"Mercato/Segmento", "EXM/BLUE CHIP"},
	{"Capitalizzazione di mercato", "43.123.456.789,00"},
	{"Lotto Minimo", "1"},
	{"Fase di Mercato", "Chiusura"},
	{"Prezzo Ultimo Contratto", "14,312"},
	{"Var %", "+1,23"},
	{"Var Assoluta", "-0,174"},
	{"Pr Medio Progr.", "14,2857"},
	{"Data - Ora Ultimo Contratto:", "29/11/24 - 17.35.52"},
	{"Quantità Ultimo", "1.234"},
	{"Quantità Totale", "12.345.678"},
	{"Numero Contratti", "8.521"},
}

// Right is the right column of the same page.
var Right = []Row{
	{"Controvalore", "176.543.210"},
	{"Max Oggi", "14,40"},
	{"Max Anno", "15,834 - 12/04/24"},
	{"Min Oggi", "14,10"},
	{"Min Anno", "13,108 - 05/08/24"},
	{"Chiusura Precedente/Pre-Chiusura/Chiusura:", "14,138"},
	{"Prezzo di riferimento", "14,3 - 29/11/24 17.35.52"},
	{"Prezzo ufficiale", "14,2857 - 29/11/24"},
	{"Apertura Odierna:", "14,20"},
	{"Performance 1 mese", "-3,21%"},
	{"Performance 6 mesi", "+5,4%"},
	{"Performance 1 anno", "10,5%"},
}

// DetailPage renders a detail page with the given columns.
func DetailPage(left, right []Row) string {
	var b strings.Builder
	b.WriteString(`<html><body><header><table><tr><td>menu</td></tr></table></header>`)
	b.WriteString(`<article class="l-grid__cell">`)
	writeColumn(&b, left)
	writeColumn(&b, right)
	b.WriteString(`</article></body></html>`)
	return b.String()
}

// DefaultDetailPage renders Left and Right.
func DefaultDetailPage() string {
	return DetailPage(Left, Right)
}

func writeColumn(b *strings.Builder, rows []Row) {
	b.WriteString(`<div class="l-box -prl l-screen -sm-half -md-half"><table class="m-table -clear-m"><tbody>`)
	for _, r := range rows {
		fmt.Fprintf(b,
			`<tr><td><strong>%s</strong></td><td><span class="t-text -right">%s</span></td></tr>`,
			html.EscapeString(r.Label), html.EscapeString(r.Value),
		)
	}
	b.WriteString(`</tbody></table></div>`)
}

// Entry is one anchor of an A-Z listing page.
type Entry struct {
	Name string
	Isin string
}

// ListingPage renders a listing page linking to entries.
func ListingPage(entries ...Entry) string {
	var b strings.Builder
	b.WriteString(`<html><body><table class="m-table -firstlevel"><tbody>`)
	for _, e := range entries {
		fmt.Fprintf(&b,
			`<tr><td><a class="u-hidden -xs" href="/borsa/azioni/scheda/%s.html?lang=it"><span class="t-text">%s</span></a></td></tr>`,
			html.EscapeString(e.Isin), html.EscapeString(e.Name),
		)
	}
	b.WriteString(`</tbody></table></body></html>`)
	return b.String()
}
