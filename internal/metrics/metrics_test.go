package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://www.borsaitaliana.it/borsa/azioni", "www.borsaitaliana.it"},
		{"standard https", "https://WWW.BorsaItaliana.it/path", "www.borsaitaliana.it"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, SanitizeSite(tc.input))
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	first := scrapeItemsTotal
	Init()
	require.Same(t, first, scrapeItemsTotal)
}

func TestObserveScrapeAndFetch(t *testing.T) {
	Init()
	before := testutil.ToFloat64(scrapeItemsTotal.WithLabelValues("detail", "timeout"))
	ObserveScrape("detail", "timeout")
	require.InDelta(t, before+1, testutil.ToFloat64(scrapeItemsTotal.WithLabelValues("detail", "timeout")), 1e-9)

	site := "metrics-test.example"
	ObserveFetch("https://"+site+"/page", 503, "retry", 0)
	ObserveFetch("https://"+site+"/page", 200, "return", 512)
	require.InDelta(t, 1, testutil.ToFloat64(fetchAttemptsTotal.WithLabelValues(site, "503", "retry")), 1e-9)
	require.InDelta(t, 512, testutil.ToFloat64(fetchBytesTotal.WithLabelValues(site)), 1e-9)
}

func TestObserveRunAndInsert(t *testing.T) {
	Init()
	ObserveRun("metrics-test", "succeeded", 2*time.Second)
	require.InDelta(t, 1, testutil.ToFloat64(runsTotal.WithLabelValues("metrics-test", "succeeded")), 1e-9)

	ObserveInsert("metrics-test", false)
	require.InDelta(t, 1, testutil.ToFloat64(insertItemsTotal.WithLabelValues("metrics-test", "error")), 1e-9)
}

func FuzzSanitizeSite(f *testing.F) {
	for _, tc := range []string{"http://example.com", "https://www.borsaitaliana.it", "ftp://example.com"} {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
