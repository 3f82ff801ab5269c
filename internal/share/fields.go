package share

import (
	"time"

	"github.com/JakeFAU/borsa-crawler/internal/extract"
)

// Descriptor names one scraped field and the type it decodes into.
type Descriptor struct {
	Record string
	Name   string
	Kind   extract.Kind
}

// field binds a descriptor to its slot in the record type R.
type field[R any] struct {
	name    string
	kind    extract.Kind
	read    func(r *extract.Reader, rec *R)
	merge   func(dst, src *R)
	present func(rec *R) bool
}

type fieldList[R any] struct {
	record string
	fields []field[R]
}

func (l fieldList[R]) read(r *extract.Reader, rec *R) {
	for _, f := range l.fields {
		f.read(r, rec)
	}
}

func (l fieldList[R]) merge(dst, src *R) {
	for _, f := range l.fields {
		f.merge(dst, src)
	}
}

func (l fieldList[R]) empty(rec *R) bool {
	for _, f := range l.fields {
		if f.present(rec) {
			return false
		}
	}
	return true
}

func (l fieldList[R]) describe() []Descriptor {
	out := make([]Descriptor, 0, len(l.fields))
	for _, f := range l.fields {
		out = append(out, Descriptor{Record: l.record, Name: f.name, Kind: f.kind})
	}
	return out
}

func optional[R, V any](name string, kind extract.Kind, decode func(*extract.Reader, string) *V, slot func(*R) **V) field[R] {
	return field[R]{
		name: name,
		kind: kind,
		read: func(r *extract.Reader, rec *R) {
			*slot(rec) = decode(r, name)
		},
		merge: func(dst, src *R) {
			if v := *slot(src); v != nil {
				*slot(dst) = v
			}
		},
		present: func(rec *R) bool {
			return *slot(rec) != nil
		},
	}
}

func stringField[R any](name string, slot func(*R) **string) field[R] {
	return optional(name, extract.KindString, (*extract.Reader).String, slot)
}

func floatField[R any](name string, slot func(*R) **float64) field[R] {
	return optional(name, extract.KindFloat, (*extract.Reader).Float, slot)
}

func uintField[R any](name string, slot func(*R) **uint64) field[R] {
	return optional(name, extract.KindUint, (*extract.Reader).Uint, slot)
}

func dateTimeField[R any](name string, slot func(*R) **time.Time) field[R] {
	return optional(name, extract.KindDateTime, (*extract.Reader).DateTime, slot)
}

func priceDateField[R any](name string, slot func(*R) **extract.PriceDate) field[R] {
	return optional(name, extract.KindPriceDate, (*extract.Reader).PriceDate, slot)
}

func priceDateTimeField[R any](name string, slot func(*R) **extract.PriceDateTime) field[R] {
	return optional(name, extract.KindPriceDateTime, (*extract.Reader).PriceDateTime, slot)
}

var detailFields = fieldList[ShareDetails]{
	record: "share_details",
	fields: []field[ShareDetails]{
		floatField(extract.FieldIDStrumento, func(r *ShareDetails) **float64 { return &r.IDStrumento }),
		stringField(extract.FieldCodiceAlfanumerico, func(r *ShareDetails) **string { return &r.CodiceAlfanumerico }),
	},
}

var marketFields = fieldList[MarketInformation]{
	record: "market_information",
	fields: []field[MarketInformation]{
		stringField(extract.FieldSuperSector, func(r *MarketInformation) **string { return &r.SuperSector }),
		stringField(extract.FieldMercatoSegmento, func(r *MarketInformation) **string { return &r.MercatoSegmento }),
		floatField(extract.FieldCapitalizzazioneDiMercato, func(r *MarketInformation) **float64 { return &r.CapitalizzazioneDiMercato }),
		floatField(extract.FieldLottoMinimo, func(r *MarketInformation) **float64 { return &r.LottoMinimo }),
	},
}

var priceFields = fieldList[PriceData]{
	record: "price_data",
	fields: []field[PriceData]{
		stringField(extract.FieldFaseDiMercato, func(r *PriceData) **string { return &r.FaseDiMercato }),
		floatField(extract.FieldPrezzoUltimoContratto, func(r *PriceData) **float64 { return &r.PrezzoUltimoContratto }),
		floatField(extract.FieldVarPercentuale, func(r *PriceData) **float64 { return &r.VarPercentuale }),
		floatField(extract.FieldVarAssoluta, func(r *PriceData) **float64 { return &r.VarAssoluta }),
		floatField(extract.FieldPrMedioProgr, func(r *PriceData) **float64 { return &r.PrMedioProgr }),
		dateTimeField(extract.FieldDataOraUltimoContratto, func(r *PriceData) **time.Time { return &r.DataOraUltimoContratto }),
		floatField(extract.FieldQuantitaUltimo, func(r *PriceData) **float64 { return &r.QuantitaUltimo }),
		floatField(extract.FieldQuantitaTotale, func(r *PriceData) **float64 { return &r.QuantitaTotale }),
		uintField(extract.FieldNumeroContratti, func(r *PriceData) **uint64 { return &r.NumeroContratti }),
		floatField(extract.FieldControvalore, func(r *PriceData) **float64 { return &r.Controvalore }),
		floatField(extract.FieldMaxOggi, func(r *PriceData) **float64 { return &r.MaxOggi }),
		priceDateField(extract.FieldMaxAnno, func(r *PriceData) **extract.PriceDate { return &r.MaxAnno }),
		floatField(extract.FieldMinOggi, func(r *PriceData) **float64 { return &r.MinOggi }),
		priceDateField(extract.FieldMinAnno, func(r *PriceData) **extract.PriceDate { return &r.MinAnno }),
		floatField(extract.FieldChiusuraPrecedente, func(r *PriceData) **float64 { return &r.ChiusuraPrecedente }),
		priceDateTimeField(extract.FieldPrezzoRiferimento, func(r *PriceData) **extract.PriceDateTime { return &r.PrezzoRiferimento }),
		priceDateField(extract.FieldPrezzoUfficiale, func(r *PriceData) **extract.PriceDate { return &r.PrezzoUfficiale }),
		floatField(extract.FieldAperturaOdierna, func(r *PriceData) **float64 { return &r.AperturaOdierna }),
	},
}

var performanceFields = fieldList[PerformanceMetrics]{
	record: "performance_metrics",
	fields: []field[PerformanceMetrics]{
		floatField(extract.FieldPerformance1Mese, func(r *PerformanceMetrics) **float64 { return &r.Performance1Mese }),
		floatField(extract.FieldPerformance6Mesi, func(r *PerformanceMetrics) **float64 { return &r.Performance6Mesi }),
		floatField(extract.FieldPerformance1Anno, func(r *PerformanceMetrics) **float64 { return &r.Performance1Anno }),
	},
}

// Fields lists every scraped field of a Share, grouped by sub-record.
func Fields() []Descriptor {
	var out []Descriptor
	out = append(out, detailFields.describe()...)
	out = append(out, marketFields.describe()...)
	out = append(out, priceFields.describe()...)
	out = append(out, performanceFields.describe()...)
	return out
}
