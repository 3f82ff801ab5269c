package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/borsa-crawler/internal/isin"
)

const (
	listingAnchorSelector = "a.u-hidden.-xs"
	listingNameSelector   = "span.t-text"
)

// ListingResult is what a single A-Z listing page yields.
type ListingResult struct {
	Shares []isin.ShareIsin
	// Skipped counts anchors without a usable name or identifier.
	Skipped int
}

// ParseListing collects the named securities linked from a listing page.
// The identifier is the last path segment of the anchor href, up to its first '.'.
func ParseListing(doc *goquery.Document, observedAt time.Time) (ListingResult, error) {
	if doc.Find("table").Length() == 0 && doc.Find(listingAnchorSelector).Length() == 0 {
		return ListingResult{}, fmt.Errorf("%w: listing page has no table", ErrParse)
	}
	var res ListingResult
	doc.Find(listingAnchorSelector).Each(func(_ int, a *goquery.Selection) {
		item, ok := shareFromAnchor(a, observedAt)
		if !ok {
			res.Skipped++
			return
		}
		res.Shares = append(res.Shares, item)
	})
	return res, nil
}

func shareFromAnchor(a *goquery.Selection, observedAt time.Time) (isin.ShareIsin, bool) {
	href, ok := a.Attr("href")
	if !ok {
		return isin.ShareIsin{}, false
	}
	nameCell := a.Find(listingNameSelector).First()
	if nameCell.Length() == 0 {
		return isin.ShareIsin{}, false
	}
	name, ok := firstText(nameCell)
	if !ok {
		return isin.ShareIsin{}, false
	}
	id, err := isin.Parse(identifierFromHref(href))
	if err != nil {
		return isin.ShareIsin{}, false
	}
	return isin.ShareIsin{Name: name, Isin: id, ObservedAt: observedAt}, true
}

func identifierFromHref(href string) string {
	segment := href
	if i := strings.LastIndex(href, "/"); i >= 0 {
		segment = href[i+1:]
	}
	id, _, _ := strings.Cut(segment, ".")
	return id
}
