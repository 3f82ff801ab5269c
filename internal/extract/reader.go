package extract

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Placeholders used when default filling is enabled.
const notAvailable = "N/A"

// Reader decodes located cells into optional typed values.
//
// In the default tolerant mode a field that is missing or unparseable yields nil. With
// default filling enabled, kept only for compatibility with older consumers, misses are
// replaced by 0, "N/A" or the Unix epoch.
type Reader struct {
	ex           FieldExtractor
	fillDefaults bool
	logger       *zap.Logger
}

// ReaderOption customises a Reader.
type ReaderOption func(*Reader)

// WithDefaults enables the default-filled compatibility mode.
func WithDefaults(enabled bool) ReaderOption {
	return func(r *Reader) {
		r.fillDefaults = enabled
	}
}

// WithLogger attaches a logger for field misses.
func WithLogger(logger *zap.Logger) ReaderOption {
	return func(r *Reader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReader wraps ex.
func NewReader(ex FieldExtractor, opts ...ReaderOption) *Reader {
	r := &Reader{ex: ex, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FillsDefaults reports whether the compatibility mode is on.
func (r *Reader) FillsDefaults() bool {
	return r.fillDefaults
}

// Text returns the first non-blank text node of the field's cell.
func (r *Reader) Text(field string) (string, bool) {
	cell, ok := r.ex.Lookup(field)
	if !ok {
		r.logger.Debug("field not found", zap.String("field", field))
		return "", false
	}
	text, ok := firstText(cell)
	if !ok {
		r.logger.Debug("field has no text", zap.String("field", field))
	}
	return text, ok
}

// String decodes a text field.
func (r *Reader) String(field string) *string {
	if text, ok := r.Text(field); ok {
		return &text
	}
	if r.fillDefaults {
		return ptr(notAvailable)
	}
	return nil
}

// Float decodes a locale-formatted number.
func (r *Reader) Float(field string) *float64 {
	if text, ok := r.Text(field); ok {
		if v, err := ParseFloat(text); err == nil {
			return &v
		}
		r.logger.Debug("field is not a number", zap.String("field", field), zap.String("text", text))
	}
	if r.fillDefaults {
		return ptr(0.0)
	}
	return nil
}

// Uint decodes an unsigned count.
func (r *Reader) Uint(field string) *uint64 {
	if text, ok := r.Text(field); ok {
		if v, err := ParseInt(text); err == nil {
			return &v
		}
		r.logger.Debug("field is not an integer", zap.String("field", field), zap.String("text", text))
	}
	if r.fillDefaults {
		return ptr(uint64(0))
	}
	return nil
}

// DateTime decodes a "dd/mm/yy HH.MM.SS" timestamp.
func (r *Reader) DateTime(field string) *time.Time {
	if text, ok := r.Text(field); ok {
		if v, err := ParseDateTime(text); err == nil {
			return &v
		}
		r.logger.Debug("field is not a datetime", zap.String("field", field), zap.String("text", text))
	}
	if r.fillDefaults {
		return ptr(epoch())
	}
	return nil
}

// PriceDate decodes a "price - date" pair.
func (r *Reader) PriceDate(field string) *PriceDate {
	if text, ok := r.Text(field); ok {
		if v, ok := ParsePriceDate(text); ok {
			return &v
		}
	}
	if r.fillDefaults {
		return &PriceDate{}
	}
	return nil
}

// PriceDateTime decodes a "price - datetime" pair.
func (r *Reader) PriceDateTime(field string) *PriceDateTime {
	text, found := r.Text(field)
	if found {
		if v, ok := ParsePriceDateTime(text); ok {
			if r.fillDefaults {
				if v.Price == nil {
					v.Price = ptr(0.0)
				}
				if v.DateTime == nil {
					v.DateTime = ptr(epoch())
				}
			}
			return &v
		}
	}
	if r.fillDefaults {
		return &PriceDateTime{}
	}
	return nil
}

func firstText(sel *goquery.Selection) (string, bool) {
	for _, node := range sel.Nodes {
		if text, ok := walkText(node); ok {
			return text, true
		}
	}
	return "", false
}

func walkText(n *html.Node) (string, bool) {
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			return text, true
		}
		return "", false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if text, ok := walkText(c); ok {
			return text, true
		}
	}
	return "", false
}

func epoch() time.Time {
	return time.Unix(0, 0).UTC()
}

func ptr[T any](v T) *T {
	return &v
}
