package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JakeFAU/borsa-crawler/internal/extract"
	"github.com/JakeFAU/borsa-crawler/internal/isin"
	"github.com/JakeFAU/borsa-crawler/internal/share"
	"github.com/JakeFAU/borsa-crawler/internal/storage"
)

const uniqueViolation = "23505"

// ShareStore implements storage.ShareRepository on the share_isins table and its four
// sub-record tables.
type ShareStore struct {
	pool Pool
}

var _ storage.ShareRepository = (*ShareStore)(nil)

// NewShareStore wraps pool.
func NewShareStore(pool Pool) (*ShareStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ShareStore{pool: pool}, nil
}

const insertIsinSQL = `INSERT INTO share_isins (isin, share_name, updated_at) VALUES ($1, $2, $3)`

// InsertIsin is a plain insert. A duplicate key maps to storage.ErrConflict.
func (s *ShareStore) InsertIsin(ctx context.Context, item isin.ShareIsin) error {
	_, err := s.pool.Exec(ctx, insertIsinSQL, item.Isin.String(), item.Name, nullTime(item.ObservedAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("insert isin %s: %w", item.Isin, storage.ErrConflict)
		}
		return fmt.Errorf("insert isin %s: %w", item.Isin, err)
	}
	return nil
}

// column is one named value of an upsert.
type column struct {
	name  string
	value any
}

// upsertSQL renders an insert that keeps the stored value of every column the new row leaves NULL.
func upsertSQL(table string, cols []column) (string, []any) {
	names := make([]string, 0, len(cols)+1)
	params := make([]string, 0, len(cols)+1)
	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+1)

	names = append(names, "isin")
	params = append(params, "$1")
	for i, c := range cols {
		names = append(names, c.name)
		params = append(params, fmt.Sprintf("$%d", i+2))
		sets = append(sets, fmt.Sprintf("%[1]s = COALESCE(EXCLUDED.%[1]s, t.%[1]s)", c.name))
		args = append(args, c.value)
	}
	query := fmt.Sprintf(
		"INSERT INTO %s AS t (%s) VALUES (%s) ON CONFLICT (isin) DO UPDATE SET %s",
		table, strings.Join(names, ", "), strings.Join(params, ", "), strings.Join(sets, ", "),
	)
	return query, args
}

type upsert struct {
	table string
	cols  []column
}

func shareUpserts(sh share.Share) []upsert {
	d, m, p, pm := sh.ShareDetails, sh.MarketInformation, sh.PriceData, sh.PerformanceMetrics
	maxPrice, maxDate := splitPriceDate(p.MaxAnno)
	minPrice, minDate := splitPriceDate(p.MinAnno)
	uffPrice, uffDate := splitPriceDate(p.PrezzoUfficiale)
	var rifPrice *float64
	var rifTime *time.Time
	if p.PrezzoRiferimento != nil {
		rifPrice, rifTime = p.PrezzoRiferimento.Price, p.PrezzoRiferimento.DateTime
	}

	return []upsert{
		{table: "share_details", cols: []column{
			{"id_strumento", d.IDStrumento},
			{"codice_alfanumerico", d.CodiceAlfanumerico},
			{"updated_at", d.UpdatedAt},
		}},
		{table: "market_information", cols: []column{
			{"super_sector", m.SuperSector},
			{"mercato_segmento", m.MercatoSegmento},
			{"capitalizzazione_di_mercato", m.CapitalizzazioneDiMercato},
			{"lotto_minimo", m.LottoMinimo},
			{"updated_at", m.UpdatedAt},
		}},
		{table: "price_data", cols: []column{
			{"fase_di_mercato", p.FaseDiMercato},
			{"prezzo_ultimo_contratto", p.PrezzoUltimoContratto},
			{"var_percentuale", p.VarPercentuale},
			{"var_assoluta", p.VarAssoluta},
			{"pr_medio_progr", p.PrMedioProgr},
			{"data_ora_ultimo_contratto", p.DataOraUltimoContratto},
			{"quantita_ultimo", p.QuantitaUltimo},
			{"quantita_totale", p.QuantitaTotale},
			{"numero_contratti", toInt64(p.NumeroContratti)},
			{"controvalore", p.Controvalore},
			{"max_oggi", p.MaxOggi},
			{"max_anno", maxPrice},
			{"max_anno_date", maxDate},
			{"min_oggi", p.MinOggi},
			{"min_anno", minPrice},
			{"min_anno_date", minDate},
			{"chiusura_precedente", p.ChiusuraPrecedente},
			{"prezzo_riferimento", rifPrice},
			{"data_ora_prezzo_riferimento", rifTime},
			{"prezzo_ufficiale", uffPrice},
			{"data_prezzo_ufficiale", uffDate},
			{"apertura_odierna", p.AperturaOdierna},
			{"updated_at", p.UpdatedAt},
		}},
		{table: "performance_metrics", cols: []column{
			{"performance_1_mese", pm.Performance1Mese},
			{"performance_6_mesi", pm.Performance6Mesi},
			{"performance_1_anno", pm.Performance1Anno},
			{"updated_at", pm.UpdatedAt},
		}},
	}
}

// UpsertShare writes the four sub-records in one transaction.
func (s *ShareStore) UpsertShare(ctx context.Context, sh share.Share) error {
	code := sh.Isin()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert %s: %w", code, err)
	}
	for _, u := range shareUpserts(sh) {
		query, args := upsertSQL(u.table, u.cols)
		if _, err := tx.Exec(ctx, query, append([]any{code}, args...)...); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("upsert %s %s: %w", u.table, code, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert %s: %w", code, err)
	}
	return nil
}

const allIsinsSQL = `SELECT isin, share_name, updated_at FROM share_isins ORDER BY isin`

// QueryAllIsins lists every stored identifier.
func (s *ShareStore) QueryAllIsins(ctx context.Context) ([]isin.ShareIsin, error) {
	rows, err := s.pool.Query(ctx, allIsinsSQL)
	if err != nil {
		return nil, fmt.Errorf("query isins: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanShareIsin)
	if err != nil {
		return nil, fmt.Errorf("collect isins: %w", err)
	}
	return out, nil
}

const staleIsinsSQL = `
SELECT si.isin, si.share_name, si.updated_at
FROM share_isins si
LEFT JOIN share_details sd ON si.isin = sd.isin
LEFT JOIN market_information mi ON si.isin = mi.isin
LEFT JOIN price_data pd ON si.isin = pd.isin
LEFT JOIN performance_metrics pm ON si.isin = pm.isin
WHERE GREATEST(
	COALESCE(sd.updated_at, 'epoch'::timestamp),
	COALESCE(mi.updated_at, 'epoch'::timestamp),
	COALESCE(pd.updated_at, 'epoch'::timestamp),
	COALESCE(pm.updated_at, 'epoch'::timestamp)
) <= (NOW() AT TIME ZONE 'UTC') - make_interval(secs => $1)
ORDER BY si.isin`

// QueryStaleIsins lists identifiers whose newest sub-record is at least olderThan old.
func (s *ShareStore) QueryStaleIsins(ctx context.Context, olderThan time.Duration) ([]isin.ShareIsin, error) {
	rows, err := s.pool.Query(ctx, staleIsinsSQL, olderThan.Seconds())
	if err != nil {
		return nil, fmt.Errorf("query stale isins: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanShareIsin)
	if err != nil {
		return nil, fmt.Errorf("collect stale isins: %w", err)
	}
	return out, nil
}

func scanShareIsin(row pgx.CollectableRow) (isin.ShareIsin, error) {
	var (
		code     string
		name     string
		observed *time.Time
	)
	if err := row.Scan(&code, &name, &observed); err != nil {
		return isin.ShareIsin{}, err
	}
	id, err := isin.Parse(code)
	if err != nil {
		return isin.ShareIsin{}, fmt.Errorf("stored isin %q: %w", code, err)
	}
	item := isin.ShareIsin{Name: name, Isin: id}
	if observed != nil {
		item.ObservedAt = *observed
	}
	return item, nil
}

const shareSelectSQL = `
SELECT
	si.isin, si.share_name, si.updated_at,
	sd.id_strumento, sd.codice_alfanumerico,
	mi.super_sector, mi.mercato_segmento, mi.capitalizzazione_di_mercato, mi.lotto_minimo,
	pd.fase_di_mercato, pd.prezzo_ultimo_contratto, pd.var_percentuale, pd.var_assoluta, pd.pr_medio_progr,
	pd.data_ora_ultimo_contratto, pd.quantita_ultimo, pd.quantita_totale, pd.numero_contratti, pd.controvalore,
	pd.max_oggi, pd.max_anno, pd.max_anno_date, pd.min_oggi, pd.min_anno, pd.min_anno_date,
	pd.chiusura_precedente, pd.prezzo_riferimento, pd.data_ora_prezzo_riferimento,
	pd.prezzo_ufficiale, pd.data_prezzo_ufficiale, pd.apertura_odierna,
	pm.performance_1_mese, pm.performance_6_mesi, pm.performance_1_anno,
	sd.updated_at, mi.updated_at, pd.updated_at, pm.updated_at
FROM share_isins si
LEFT JOIN share_details sd ON si.isin = sd.isin
LEFT JOIN market_information mi ON si.isin = mi.isin
LEFT JOIN price_data pd ON si.isin = pd.isin
LEFT JOIN performance_metrics pm ON si.isin = pm.isin`

// shareQuerySQL appends the filter of q. An exact ISIN wins over the other fields.
func shareQuerySQL(q storage.ShareQuery) (string, []any) {
	var (
		where []string
		args  []any
	)
	switch {
	case q.Isin != "":
		args = append(args, q.Isin)
		where = append(where, "si.isin = $1")
	default:
		if q.Lang != "" {
			args = append(args, q.Lang)
			where = append(where, fmt.Sprintf("si.isin ILIKE $%d || '%%'", len(args)))
		}
		if q.Name != "" {
			args = append(args, q.Name)
			where = append(where, fmt.Sprintf("si.share_name ILIKE '%%' || $%d || '%%'", len(args)))
		}
	}
	query := shareSelectSQL
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	return query + "\nORDER BY si.isin", args
}

// QueryShares returns the joined records matching q.
func (s *ShareStore) QueryShares(ctx context.Context, q storage.ShareQuery) ([]share.Share, error) {
	query, args := shareQuerySQL(q)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query shares: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanShare)
	if err != nil {
		return nil, fmt.Errorf("collect shares: %w", err)
	}
	return out, nil
}

func scanShare(row pgx.CollectableRow) (share.Share, error) {
	var (
		code, name         string
		observed           *time.Time
		numero             *int64
		maxPrice, minPrice *float64
		maxDate, minDate   *time.Time
		rifPrice, uffPrice *float64
		rifTime, uffDate   *time.Time
		sh                 share.Share
		d, m, p, pm        = &sh.ShareDetails, &sh.MarketInformation, &sh.PriceData, &sh.PerformanceMetrics
	)
	err := row.Scan(
		&code, &name, &observed,
		&d.IDStrumento, &d.CodiceAlfanumerico,
		&m.SuperSector, &m.MercatoSegmento, &m.CapitalizzazioneDiMercato, &m.LottoMinimo,
		&p.FaseDiMercato, &p.PrezzoUltimoContratto, &p.VarPercentuale, &p.VarAssoluta, &p.PrMedioProgr,
		&p.DataOraUltimoContratto, &p.QuantitaUltimo, &p.QuantitaTotale, &numero, &p.Controvalore,
		&p.MaxOggi, &maxPrice, &maxDate, &p.MinOggi, &minPrice, &minDate,
		&p.ChiusuraPrecedente, &rifPrice, &rifTime,
		&uffPrice, &uffDate, &p.AperturaOdierna,
		&pm.Performance1Mese, &pm.Performance6Mesi, &pm.Performance1Anno,
		&d.UpdatedAt, &m.UpdatedAt, &p.UpdatedAt, &pm.UpdatedAt,
	)
	if err != nil {
		return share.Share{}, err
	}
	id, err := isin.Parse(code)
	if err != nil {
		return share.Share{}, fmt.Errorf("stored isin %q: %w", code, err)
	}
	sh.ShareID = isin.ShareIsin{Name: name, Isin: id}
	if observed != nil {
		sh.ShareID.ObservedAt = *observed
	}
	d.Isin, m.Isin, p.Isin, pm.Isin = code, code, code, code
	p.NumeroContratti = toUint64(numero)
	p.MaxAnno = joinPriceDate(maxPrice, maxDate)
	p.MinAnno = joinPriceDate(minPrice, minDate)
	p.PrezzoUfficiale = joinPriceDate(uffPrice, uffDate)
	if rifPrice != nil || rifTime != nil {
		p.PrezzoRiferimento = &extract.PriceDateTime{Price: rifPrice, DateTime: rifTime}
	}
	if last := sh.LastUpdate(); !last.IsZero() {
		sh.UpdatedAt = &last
	}
	return sh, nil
}

// Ping checks connectivity.
func (s *ShareStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

func splitPriceDate(pd *extract.PriceDate) (*float64, *time.Time) {
	if pd == nil {
		return nil, nil
	}
	return pd.Price, pd.Date
}

func joinPriceDate(price *float64, date *time.Time) *extract.PriceDate {
	if price == nil && date == nil {
		return nil
	}
	return &extract.PriceDate{Price: price, Date: date}
}

func toInt64(v *uint64) *int64 {
	if v == nil {
		return nil
	}
	n := int64(*v)
	return &n
}

func toUint64(v *int64) *uint64 {
	if v == nil || *v < 0 {
		return nil
	}
	n := uint64(*v)
	return &n
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
