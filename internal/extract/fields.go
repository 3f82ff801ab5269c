package extract

// Field names shared by the mapping tables and the record descriptors.
const (
	FieldCodiceIsin                = "codice_isin"
	FieldIDStrumento               = "id_strumento"
	FieldCodiceAlfanumerico        = "codice_alfanumerico"
	FieldSuperSector               = "super_sector"
	FieldMercatoSegmento           = "mercato_segmento"
	FieldCapitalizzazioneDiMercato = "capitalizzazione_di_mercato"
	FieldLottoMinimo               = "lotto_minimo"
	FieldFaseDiMercato             = "fase_di_mercato"
	FieldPrezzoUltimoContratto     = "prezzo_ultimo_contratto"
	FieldVarPercentuale            = "var_percentuale"
	FieldVarAssoluta               = "var_assoluta"
	FieldPrMedioProgr              = "pr_medio_progr"
	FieldDataOraUltimoContratto    = "data_ora_ultimo_contratto"
	FieldQuantitaUltimo            = "quantita_ultimo"
	FieldQuantitaTotale            = "quantita_totale"
	FieldNumeroContratti           = "numero_contratti"
	FieldControvalore              = "controvalore"
	FieldMaxOggi                   = "max_oggi"
	FieldMaxAnno                   = "max_anno"
	FieldMinOggi                   = "min_oggi"
	FieldMinAnno                   = "min_anno"
	FieldChiusuraPrecedente        = "chiusura_precedente"
	FieldPrezzoRiferimento         = "prezzo_riferimento"
	FieldPrezzoUfficiale           = "prezzo_ufficiale"
	FieldAperturaOdierna           = "apertura_odierna"
	FieldPerformance1Mese          = "performance_1_mese"
	FieldPerformance6Mesi          = "performance_6_mesi"
	FieldPerformance1Anno          = "performance_1_anno"
)

// Kind is the semantic type a field is decoded into.
type Kind int

// Supported field kinds.
const (
	KindString Kind = iota
	KindFloat
	KindUint
	KindDateTime
	KindPriceDate
	KindPriceDateTime
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindFloat:
		return "float"
	case KindUint:
		return "uint"
	case KindDateTime:
		return "datetime"
	case KindPriceDate:
		return "price_date"
	case KindPriceDateTime:
		return "price_datetime"
	default:
		return "unknown"
	}
}
