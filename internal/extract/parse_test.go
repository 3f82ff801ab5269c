package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseFloat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want float64
	}{
		{in: "1.234,56", want: 1234.56},
		{in: "-3,21%", want: -3.21},
		{in: "1,234", want: 1.234},
		{in: "1234.56", want: 1234.56},
		{in: "1,234.56", want: 1234.56},
		{in: "12.345.678", want: 12345678},
		{in: "  +1,23 ", want: 1.23},
		{in: "10.5%", want: 10.5},
		{in: "0,174", want: 0.174},
		{in: "-0,174", want: -0.174},
		{in: "4336", want: 4336},
		{in: "43.123.456.789,00", want: 43123456789},
	}
	for _, tt := range tests {
		got, err := ParseFloat(tt.in)
		require.NoError(t, err, tt.in)
		require.InDelta(t, tt.want, got, 1e-9, tt.in)
	}
}

func TestParseFloatRejects(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "-", "N/A", "abc", "1.2.3,4,5"} {
		_, err := ParseFloat(in)
		require.Error(t, err, in)
	}
}

func TestParseInt(t *testing.T) {
	t.Parallel()

	got, err := ParseInt(" 8.521 ")
	require.NoError(t, err)
	require.Equal(t, uint64(8521), got)

	_, err = ParseInt("-1")
	require.Error(t, err)
	_, err = ParseInt("12,5")
	require.Error(t, err)
}

func TestParseDateTime(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, time.November, 29, 16, 7, 46, 0, time.UTC)

	got, err := ParseDateTime("29/11/24 16.07.46")
	require.NoError(t, err)
	require.Equal(t, want, got)

	got, err = ParseDateTime("29/11/24 - 16.07.46")
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = ParseDateTime("2024-11-29T16:07:46")
	require.Error(t, err)
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	got, err := ParseDate("01/02/24")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseDate("1 feb 2024")
	require.Error(t, err)
}

func TestParsePriceDate(t *testing.T) {
	t.Parallel()

	got, ok := ParsePriceDate("1.234,56 - 01/02/24")
	require.True(t, ok)
	require.NotNil(t, got.Price)
	require.InDelta(t, 1234.56, *got.Price, 1e-9)
	require.NotNil(t, got.Date)
	require.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), *got.Date)

	got, ok = ParsePriceDate("n.d. - 01/02/24")
	require.True(t, ok)
	require.Nil(t, got.Price, "unparseable side is absent")
	require.NotNil(t, got.Date)

	got, ok = ParsePriceDate("1234,56 - 04/11/24 17.45.00")
	require.True(t, ok)
	require.NotNil(t, got.Price)
	require.Nil(t, got.Date)

	_, ok = ParsePriceDate("1.234,56")
	require.False(t, ok)
}

func TestParsePriceDateTime(t *testing.T) {
	t.Parallel()

	got, ok := ParsePriceDateTime("1.234,56-29/11/24 16.07.46")
	require.True(t, ok)
	require.NotNil(t, got.Price)
	require.InDelta(t, 1234.56, *got.Price, 1e-9)
	require.NotNil(t, got.DateTime)
	require.Equal(t, time.Date(2024, time.November, 29, 16, 7, 46, 0, time.UTC), *got.DateTime)

	got, ok = ParsePriceDateTime("1234,56 - 04/11/24 17.45.00")
	require.True(t, ok)
	require.InDelta(t, 1234.56, *got.Price, 1e-9)
	require.Equal(t, time.Date(2024, time.November, 4, 17, 45, 0, 0, time.UTC), *got.DateTime)

	got, ok = ParsePriceDateTime("14,3 - garbage")
	require.True(t, ok)
	require.NotNil(t, got.Price)
	require.Nil(t, got.DateTime)

	_, ok = ParsePriceDateTime("14,3")
	require.False(t, ok)
}
