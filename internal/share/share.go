// Package share models the assembled security record and builds it from a detail page.
package share

import (
	"time"

	"github.com/JakeFAU/borsa-crawler/internal/extract"
	"github.com/JakeFAU/borsa-crawler/internal/isin"
)

// ShareDetails holds the instrument codes.
type ShareDetails struct {
	Isin               string     `json:"isin"`
	IDStrumento        *float64   `json:"id_strumento"`
	CodiceAlfanumerico *string    `json:"codice_alfanumerico"`
	UpdatedAt          *time.Time `json:"updated_at"`
}

// MarketInformation holds the market classification of the instrument.
type MarketInformation struct {
	Isin                      string     `json:"isin"`
	SuperSector               *string    `json:"super_sector"`
	MercatoSegmento           *string    `json:"mercato_segmento"`
	CapitalizzazioneDiMercato *float64   `json:"capitalizzazione_di_mercato"`
	LottoMinimo               *float64   `json:"lotto_minimo"`
	UpdatedAt                 *time.Time `json:"updated_at"`
}

// PriceData is the live pricing snapshot.
type PriceData struct {
	Isin                   string                 `json:"isin"`
	FaseDiMercato          *string                `json:"fase_di_mercato"`
	PrezzoUltimoContratto  *float64               `json:"prezzo_ultimo_contratto"`
	VarPercentuale         *float64               `json:"var_percentuale"`
	VarAssoluta            *float64               `json:"var_assoluta"`
	PrMedioProgr           *float64               `json:"pr_medio_progr"`
	DataOraUltimoContratto *time.Time             `json:"data_ora_ultimo_contratto"`
	QuantitaUltimo         *float64               `json:"quantita_ultimo"`
	QuantitaTotale         *float64               `json:"quantita_totale"`
	NumeroContratti        *uint64                `json:"numero_contratti"`
	Controvalore           *float64               `json:"controvalore"`
	MaxOggi                *float64               `json:"max_oggi"`
	MaxAnno                *extract.PriceDate     `json:"max_anno"`
	MinOggi                *float64               `json:"min_oggi"`
	MinAnno                *extract.PriceDate     `json:"min_anno"`
	ChiusuraPrecedente     *float64               `json:"chiusura_precedente"`
	PrezzoRiferimento      *extract.PriceDateTime `json:"prezzo_riferimento"`
	PrezzoUfficiale        *extract.PriceDate     `json:"prezzo_ufficiale"`
	AperturaOdierna        *float64               `json:"apertura_odierna"`
	UpdatedAt              *time.Time             `json:"updated_at"`
}

// PerformanceMetrics holds percentage returns over three windows.
type PerformanceMetrics struct {
	Isin             string     `json:"isin"`
	Performance1Mese *float64   `json:"performance_1_mese"`
	Performance6Mesi *float64   `json:"performance_6_mesi"`
	Performance1Anno *float64   `json:"performance_1_anno"`
	UpdatedAt        *time.Time `json:"updated_at"`
}

// Share aggregates the four sub-records of one security. All sub-records carry the same ISIN.
type Share struct {
	ShareID            isin.ShareIsin     `json:"share_id"`
	ShareDetails       ShareDetails       `json:"share_details"`
	MarketInformation  MarketInformation  `json:"market_information"`
	PriceData          PriceData          `json:"price_data"`
	PerformanceMetrics PerformanceMetrics `json:"performance_metrics"`
	UpdatedAt          *time.Time         `json:"updated_at"`
}

// Isin returns the canonical identifier shared by every sub-record.
func (s Share) Isin() string {
	return s.ShareID.Isin.String()
}

// Assemble builds a Share by running every field descriptor against r.
// Every sub-record is stamped with the identifier and now.
func Assemble(id isin.ShareIsin, r *extract.Reader, now time.Time) Share {
	code := id.Isin.String()
	stamp := func() *time.Time {
		t := now
		return &t
	}

	s := Share{ShareID: id, UpdatedAt: stamp()}

	s.ShareDetails = ShareDetails{Isin: code, UpdatedAt: stamp()}
	detailFields.read(r, &s.ShareDetails)

	s.MarketInformation = MarketInformation{Isin: code, UpdatedAt: stamp()}
	marketFields.read(r, &s.MarketInformation)

	s.PriceData = PriceData{Isin: code, UpdatedAt: stamp()}
	priceFields.read(r, &s.PriceData)

	s.PerformanceMetrics = PerformanceMetrics{Isin: code, UpdatedAt: stamp()}
	performanceFields.read(r, &s.PerformanceMetrics)

	return s
}

// WithIsin returns the identity-only aggregate used when a page could not be scraped.
// Only the identifier is set. Timestamps are left nil so a stored record keeps its own.
func WithIsin(id isin.ShareIsin) Share {
	code := id.Isin.String()
	return Share{
		ShareID:            id,
		ShareDetails:       ShareDetails{Isin: code},
		MarketInformation:  MarketInformation{Isin: code},
		PriceData:          PriceData{Isin: code},
		PerformanceMetrics: PerformanceMetrics{Isin: code},
	}
}

// IdentityOnly reports whether s carries no scraped value at all.
func (s Share) IdentityOnly() bool {
	return detailFields.empty(&s.ShareDetails) &&
		marketFields.empty(&s.MarketInformation) &&
		priceFields.empty(&s.PriceData) &&
		performanceFields.empty(&s.PerformanceMetrics)
}

// Merge applies incoming on top of stored, keeping a stored value wherever incoming has none.
// It is the in-process equivalent of the COALESCE upsert.
func Merge(stored, incoming Share) Share {
	out := stored
	out.ShareID = incoming.ShareID
	if incoming.ShareID.ObservedAt.IsZero() {
		out.ShareID.ObservedAt = stored.ShareID.ObservedAt
	}
	out.UpdatedAt = coalesce(incoming.UpdatedAt, stored.UpdatedAt)

	detailFields.merge(&out.ShareDetails, &incoming.ShareDetails)
	out.ShareDetails.Isin = incoming.Isin()
	out.ShareDetails.UpdatedAt = coalesce(incoming.ShareDetails.UpdatedAt, stored.ShareDetails.UpdatedAt)

	marketFields.merge(&out.MarketInformation, &incoming.MarketInformation)
	out.MarketInformation.Isin = incoming.Isin()
	out.MarketInformation.UpdatedAt = coalesce(incoming.MarketInformation.UpdatedAt, stored.MarketInformation.UpdatedAt)

	priceFields.merge(&out.PriceData, &incoming.PriceData)
	out.PriceData.Isin = incoming.Isin()
	out.PriceData.UpdatedAt = coalesce(incoming.PriceData.UpdatedAt, stored.PriceData.UpdatedAt)

	performanceFields.merge(&out.PerformanceMetrics, &incoming.PerformanceMetrics)
	out.PerformanceMetrics.Isin = incoming.Isin()
	out.PerformanceMetrics.UpdatedAt = coalesce(incoming.PerformanceMetrics.UpdatedAt, stored.PerformanceMetrics.UpdatedAt)

	return out
}

// LastUpdate returns the most recent sub-record timestamp, or the zero time when none is set.
func (s Share) LastUpdate() time.Time {
	var latest time.Time
	for _, ts := range []*time.Time{
		s.ShareDetails.UpdatedAt,
		s.MarketInformation.UpdatedAt,
		s.PriceData.UpdatedAt,
		s.PerformanceMetrics.UpdatedAt,
	} {
		if ts != nil && ts.After(latest) {
			latest = *ts
		}
	}
	return latest
}

func coalesce[T any](incoming, stored *T) *T {
	if incoming != nil {
		return incoming
	}
	return stored
}
