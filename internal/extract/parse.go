package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Layouts used by the detail pages, e.g. "29/11/24 16.07.46" and "29/11/24 - 16.07.46".
const (
	dateTimeLayout       = "02/01/06 15.04.05"
	dateTimeDashedLayout = "02/01/06 - 15.04.05"
	dateLayout           = "02/01/06"
)

// dotThousands matches Italian-formatted numbers such as "1.234.567,89".
var dotThousands = regexp.MustCompile(`^(\d{1,3})(\.?\d{3})*(,\d+)?$`)

// PriceDate pairs a price with the day it refers to. Either side may be absent.
type PriceDate struct {
	Price *float64   `json:"price"`
	Date  *time.Time `json:"date"`
}

// PriceDateTime pairs a price with the instant it refers to. Either side may be absent.
type PriceDateTime struct {
	Price    *float64   `json:"price"`
	DateTime *time.Time `json:"datetime"`
}

// ParseFloat decodes a locale-formatted number.
//
// Leading '+', trailing '%' and a leading '-' (re-applied as negation) are stripped first.
// Text matching dotThousands uses '.' for thousands and ',' for decimals; anything else
// has its ',' removed and is parsed with '.' as the decimal point.
func ParseFloat(text string) (float64, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimLeft(cleaned, "+")
	cleaned = strings.TrimRight(cleaned, "%")
	cleaned = strings.TrimSpace(cleaned)

	negative := strings.HasPrefix(cleaned, "-")
	cleaned = strings.TrimLeft(cleaned, "-")

	var normalized string
	if dotThousands.MatchString(cleaned) {
		normalized = strings.ReplaceAll(cleaned, ".", "")
		normalized = strings.ReplaceAll(normalized, ",", ".")
	} else {
		normalized = strings.ReplaceAll(cleaned, ",", "")
	}

	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, fmt.Errorf("parse float %q: %w", text, err)
	}
	if negative {
		v = -v
	}
	return v, nil
}

// ParseInt decodes an unsigned integer that may contain '.' thousands separators.
func ParseInt(text string) (uint64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(text), ".", "")
	v, err := strconv.ParseUint(cleaned, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse int %q: %w", text, err)
	}
	return v, nil
}

// ParseDateTime tries "dd/mm/yy HH.MM.SS" then "dd/mm/yy - HH.MM.SS". Times are naive and kept in UTC.
func ParseDateTime(text string) (time.Time, error) {
	t, err := time.ParseInLocation(dateTimeLayout, text, time.UTC)
	if err == nil {
		return t, nil
	}
	t, err = time.ParseInLocation(dateTimeDashedLayout, text, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse datetime %q: %w", text, err)
	}
	return t, nil
}

// ParseDate decodes "dd/mm/yy".
func ParseDate(text string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, text, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", text, err)
	}
	return t, nil
}

// ParsePriceDate splits "price - date" once on " - ". ok is false when the separator is missing.
func ParsePriceDate(text string) (PriceDate, bool) {
	priceText, dateText, found := strings.Cut(text, " - ")
	if !found {
		return PriceDate{}, false
	}
	var out PriceDate
	if p, err := ParseFloat(priceText); err == nil {
		out.Price = &p
	}
	if d, err := ParseDate(dateText); err == nil {
		out.Date = &d
	}
	return out, true
}

// ParsePriceDateTime splits "price-datetime" once on '-' and trims both sides.
// ok is false when the separator is missing.
func ParsePriceDateTime(text string) (PriceDateTime, bool) {
	priceText, dtText, found := strings.Cut(text, "-")
	if !found {
		return PriceDateTime{}, false
	}
	var out PriceDateTime
	if p, err := ParseFloat(strings.TrimSpace(priceText)); err == nil {
		out.Price = &p
	}
	if dt, err := ParseDateTime(strings.TrimSpace(dtText)); err == nil {
		out.DateTime = &dt
	}
	return out, true
}
