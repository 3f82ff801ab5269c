package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/borsa-crawler/internal/extract"
	"github.com/JakeFAU/borsa-crawler/internal/isin"
	"github.com/JakeFAU/borsa-crawler/internal/share"
	"github.com/JakeFAU/borsa-crawler/internal/storage"
)

// shareColumns are the selected columns of QueryShares, in scan order.
var shareColumns = []string{
	"isin", "share_name", "updated_at",
	"id_strumento", "codice_alfanumerico",
	"super_sector", "mercato_segmento", "capitalizzazione_di_mercato", "lotto_minimo",
	"fase_di_mercato", "prezzo_ultimo_contratto", "var_percentuale", "var_assoluta", "pr_medio_progr",
	"data_ora_ultimo_contratto", "quantita_ultimo", "quantita_totale", "numero_contratti", "controvalore",
	"max_oggi", "max_anno", "max_anno_date", "min_oggi", "min_anno", "min_anno_date",
	"chiusura_precedente", "prezzo_riferimento", "data_ora_prezzo_riferimento",
	"prezzo_ufficiale", "data_prezzo_ufficiale", "apertura_odierna",
	"performance_1_mese", "performance_6_mesi", "performance_1_anno",
	"details_updated_at", "market_updated_at", "price_updated_at", "performance_updated_at",
}

var eni = isin.ShareIsin{Name: "ENI", Isin: isin.MustParse("IT0003132476")}

func newShareStore(t *testing.T) (*ShareStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewShareStore(mock)
	require.NoError(t, err)
	return store, mock
}

func anyArgs(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = pgxmock.AnyArg()
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}

func TestUpsertSQLCoalescesEveryColumn(t *testing.T) {
	t.Parallel()

	query, args := upsertSQL("performance_metrics", []column{
		{"performance_1_mese", ptr(1.5)},
		{"updated_at", (*time.Time)(nil)},
	})
	require.Equal(t,
		"INSERT INTO performance_metrics AS t (isin, performance_1_mese, updated_at) VALUES ($1, $2, $3) "+
			"ON CONFLICT (isin) DO UPDATE SET "+
			"performance_1_mese = COALESCE(EXCLUDED.performance_1_mese, t.performance_1_mese), "+
			"updated_at = COALESCE(EXCLUDED.updated_at, t.updated_at)",
		query,
	)
	require.Len(t, args, 2)
}

func TestInsertIsin(t *testing.T) {
	t.Parallel()

	store, mock := newShareStore(t)
	observed := time.Date(2024, time.December, 2, 9, 0, 0, 0, time.UTC)
	item := eni
	item.ObservedAt = observed

	mock.ExpectExec(regexp.QuoteMeta(insertIsinSQL)).
		WithArgs("IT0003132476", "ENI", &observed).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(insertIsinSQL)).
		WithArgs("IT0003132476", "ENI", &observed).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation})

	require.NoError(t, store.InsertIsin(context.Background(), item))
	err := store.InsertIsin(context.Background(), item)
	require.ErrorIs(t, err, storage.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertShareWritesFourTablesInOneTransaction(t *testing.T) {
	t.Parallel()

	store, mock := newShareStore(t)
	now := time.Date(2024, time.December, 2, 9, 30, 0, 0, time.UTC)
	sh := share.WithIsin(eni)
	sh.ShareDetails.IDStrumento = ptr(4336.0)
	sh.ShareDetails.UpdatedAt = &now

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO share_details AS t")).
		WithArgs("IT0003132476", ptr(4336.0), (*string)(nil), &now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO market_information AS t")).
		WithArgs(anyArgs(6)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO price_data AS t")).
		WithArgs(anyArgs(24)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO performance_metrics AS t")).
		WithArgs(anyArgs(5)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.UpsertShare(context.Background(), sh))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertShareRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	store, mock := newShareStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO share_details AS t")).
		WithArgs(anyArgs(4)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO market_information AS t")).
		WithArgs(anyArgs(6)...).
		WillReturnError(&pgconn.PgError{Code: "23503"})
	mock.ExpectRollback()

	err := store.UpsertShare(context.Background(), share.WithIsin(eni))
	require.ErrorContains(t, err, "market_information")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryStaleIsins(t *testing.T) {
	t.Parallel()

	store, mock := newShareStore(t)
	observed := time.Date(2024, time.November, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("make_interval(secs => $1)")).
		WithArgs(float64(900)).
		WillReturnRows(pgxmock.NewRows([]string{"isin", "share_name", "updated_at"}).
			AddRow("IT0003132476", "ENI", &observed).
			AddRow("US0378331005", "APPLE", nil))

	got, err := store.QueryStaleIsins(context.Background(), 15*time.Minute)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, eni.Isin, got[0].Isin)
	require.Equal(t, observed, got[0].ObservedAt)
	require.Equal(t, "APPLE", got[1].Name)
	require.True(t, got[1].ObservedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryAllIsinsRejectsCorruptRows(t *testing.T) {
	t.Parallel()

	store, mock := newShareStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(allIsinsSQL)).
		WillReturnRows(pgxmock.NewRows([]string{"isin", "share_name", "updated_at"}).
			AddRow("IT0003132477", "ENI", nil))

	_, err := store.QueryAllIsins(context.Background())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShareQuerySQLFilters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query storage.ShareQuery
		where string
		args  []any
	}{
		{name: "none", query: storage.ShareQuery{}, where: "", args: nil},
		{name: "isin wins", query: storage.ShareQuery{Isin: "IT0003132476", Name: "eni"}, where: "WHERE si.isin = $1", args: []any{"IT0003132476"}},
		{name: "lang", query: storage.ShareQuery{Lang: "IT"}, where: "WHERE si.isin ILIKE $1 || '%'", args: []any{"IT"}},
		{name: "name", query: storage.ShareQuery{Name: "eni"}, where: "WHERE si.share_name ILIKE '%' || $1 || '%'", args: []any{"eni"}},
		{
			name:  "lang and name",
			query: storage.ShareQuery{Lang: "IT", Name: "eni"},
			where: "WHERE si.isin ILIKE $1 || '%' AND si.share_name ILIKE '%' || $2 || '%'",
			args:  []any{"IT", "eni"},
		},
	}
	for _, tt := range tests {
		query, args := shareQuerySQL(tt.query)
		require.Equal(t, tt.args, args, tt.name)
		require.Contains(t, query, "ORDER BY si.isin", tt.name)
		if tt.where == "" {
			require.NotContains(t, query, "WHERE", tt.name)
			continue
		}
		require.Contains(t, query, tt.where, tt.name)
	}
}

func TestQuerySharesAssemblesComposites(t *testing.T) {
	t.Parallel()

	store, mock := newShareStore(t)
	updated := time.Date(2024, time.December, 2, 9, 30, 0, 0, time.UTC)
	maxDate := time.Date(2024, time.April, 12, 0, 0, 0, 0, time.UTC)
	rifAt := time.Date(2024, time.November, 29, 17, 35, 52, 0, time.UTC)

	row := make([]any, len(shareColumns))
	row[0], row[1] = "IT0003132476", "ENI"
	row[4] = ptr("ENI")
	row[17] = ptr(int64(8521))
	row[20], row[21] = ptr(15.834), &maxDate
	row[26], row[27] = ptr(14.3), &rifAt
	row[36] = &updated

	mock.ExpectQuery(regexp.QuoteMeta("WHERE si.isin = $1")).
		WithArgs("IT0003132476").
		WillReturnRows(pgxmock.NewRows(shareColumns).AddRow(row...))

	got, err := store.QueryShares(context.Background(), storage.ShareQuery{Isin: "IT0003132476"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	sh := got[0]
	require.Equal(t, "ENI", sh.ShareID.Name)
	require.Equal(t, "IT0003132476", sh.PriceData.Isin)
	require.Equal(t, "ENI", *sh.ShareDetails.CodiceAlfanumerico)
	require.Equal(t, uint64(8521), *sh.PriceData.NumeroContratti)
	require.Equal(t, &extract.PriceDate{Price: ptr(15.834), Date: &maxDate}, sh.PriceData.MaxAnno)
	require.Nil(t, sh.PriceData.MinAnno)
	require.Nil(t, sh.PriceData.PrezzoUfficiale)
	require.Equal(t, &extract.PriceDateTime{Price: ptr(14.3), DateTime: &rifAt}, sh.PriceData.PrezzoRiferimento)
	require.Nil(t, sh.ShareDetails.UpdatedAt)
	require.Equal(t, updated, *sh.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPing(t *testing.T) {
	t.Parallel()

	store, mock := newShareStore(t)
	mock.ExpectPing()
	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
