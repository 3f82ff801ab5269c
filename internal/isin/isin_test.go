package isin

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"IT0003132476", "NL0000226223", "IT0005239360", "LU1598757687"} {
		id, err := Parse(raw)
		require.NoError(t, err, raw)
		require.Equal(t, raw, id.String())
		require.Equal(t, raw[:2], id.Country())
		require.Equal(t, raw[2:11], id.NationalNumber())
		require.Equal(t, raw[11]-'0', id.CheckDigit())
	}
}

func TestParseInvalidLength(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "IT", "IT000313247", "IT00031324760", strings.Repeat("1", 40)} {
		_, err := Parse(raw)
		require.ErrorIs(t, err, ErrInvalidLength, raw)
	}
}

func TestParseInvalidCheckDigit(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"IT000313247X", "IT000313247 ", "IT000313247-"} {
		_, err := Parse(raw)
		require.ErrorIs(t, err, ErrInvalidCheckDigit, raw)
	}
}

func TestZeroIsin(t *testing.T) {
	t.Parallel()

	var id Isin
	require.True(t, id.IsZero())
	require.Empty(t, id.String())
	require.False(t, MustParse("IT0003132476").IsZero())
}

func TestIsinJSON(t *testing.T) {
	t.Parallel()

	in := ShareIsin{Name: "ENI", Isin: MustParse("IT0003132476"), ObservedAt: time.Unix(0, 0).UTC()}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	require.Contains(t, string(data), `"isin":"IT0003132476"`)

	var out ShareIsin
	require.NoError(t, json.Unmarshal(data, &out))
	require.True(t, in.Equal(out))

	require.Error(t, json.Unmarshal([]byte(`{"isin":"short"}`), &out))
}

func TestSetIgnoresObservedAt(t *testing.T) {
	t.Parallel()

	id := MustParse("IT0003132476")
	first := ShareIsin{Name: "ENI", Isin: id, ObservedAt: time.Unix(100, 0)}
	second := ShareIsin{Name: "ENI", Isin: id, ObservedAt: time.Unix(200, 0)}
	require.True(t, first.Equal(second))
	require.Equal(t, first.Key(), second.Key())

	set := NewSet(first)
	require.False(t, set.Add(second))
	require.Equal(t, 1, set.Len())
	require.Equal(t, time.Unix(100, 0), set.Items()[0].ObservedAt)

	require.True(t, set.Add(ShareIsin{Name: "ENI SPA", Isin: id}))
	require.Equal(t, 2, set.Len())
}

func TestSetItemsSorted(t *testing.T) {
	t.Parallel()

	var set Set
	set.Add(ShareIsin{Name: "B", Isin: MustParse("NL0000226223")})
	set.Add(ShareIsin{Name: "A", Isin: MustParse("IT0003132476")})
	require.True(t, set.Contains(ShareIsin{Name: "A", Isin: MustParse("IT0003132476")}))

	items := set.Items()
	require.Len(t, items, 2)
	require.Equal(t, "IT0003132476", items[0].Isin.String())
	require.Equal(t, "NL0000226223", items[1].Isin.String())
}
