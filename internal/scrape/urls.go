package scrape

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultBaseURL is the public Borsa Italiana site.
const DefaultBaseURL = "https://www.borsaitaliana.it"

// DefaultLetters is the A-Z initial grid of the listing pages.
var DefaultLetters = strings.Split("ABCDEFGHIJKLMNOPQRSTUVWXYZ", "")

// DefaultPages is the number of listing pages fetched per letter.
const DefaultPages = 5

// ListingURL returns the A-Z listing page for one initial and 1-based page number.
func ListingURL(base, letter string, page int) string {
	return fmt.Sprintf("%s/borsa/azioni/listino-a-z.html?initial=%s&page=%d&lang=it",
		strings.TrimRight(base, "/"), url.QueryEscape(letter), page)
}

// DetailURL returns the "dati completi" page of one ISIN.
func DetailURL(base, isin string) string {
	return fmt.Sprintf("%s/borsa/azioni/dati-completi.html?isin=%s&lang=it",
		strings.TrimRight(base, "/"), url.QueryEscape(isin))
}
