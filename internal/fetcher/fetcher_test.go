package fetcher

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/borsa-crawler/internal/backoff"
)

type scriptedGetter struct {
	mu        sync.Mutex
	responses []Response
	errs      []error
	calls     int
}

func (g *scriptedGetter) Get(_ context.Context, url string) (Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	if i >= len(g.responses) {
		i = len(g.responses) - 1
	}
	g.calls++
	var err error
	if i < len(g.errs) {
		err = g.errs[i]
	}
	resp := g.responses[i]
	resp.URL = url
	return resp, err
}

func status(code int, body string) Response {
	return Response{StatusCode: code, Body: []byte(body)}
}

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func newTestFetcher(g Getter, opts ...Option) (*PageFetcher, *sleepRecorder) {
	rec := &sleepRecorder{}
	opts = append([]Option{WithDriver(backoff.Default(backoff.WithSleeper(rec.sleep)))}, opts...)
	return New(g, opts...), rec
}

func TestFetchPageSuccess(t *testing.T) {
	t.Parallel()

	f, rec := newTestFetcher(&scriptedGetter{responses: []Response{status(http.StatusOK, "<html></html>")}})
	body, err := f.FetchPage(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Equal(t, "<html></html>", body)
	require.Empty(t, rec.delays)
}

func TestFetchPageRetriesTransientStatuses(t *testing.T) {
	t.Parallel()

	for _, code := range []int{429, 500, 502, 503, 504} {
		g := &scriptedGetter{responses: []Response{status(code, ""), status(code, ""), status(http.StatusOK, "ok")}}
		f, rec := newTestFetcher(g)

		body, err := f.FetchPage(context.Background(), "https://example.com")
		require.NoError(t, err, code)
		require.Equal(t, "ok", body)
		require.Equal(t, 3, g.calls)
		require.Equal(t, []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}, rec.delays)
	}
}

func TestFetchPageExitsOnOtherStatuses(t *testing.T) {
	t.Parallel()

	for _, code := range []int{301, 400, 403, 404, 501} {
		g := &scriptedGetter{responses: []Response{status(code, "nope")}}
		f, rec := newTestFetcher(g)

		_, err := f.FetchPage(context.Background(), "https://example.com")
		require.ErrorIs(t, err, ErrNetwork, code)
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		require.Equal(t, code, statusErr.Code)
		require.Equal(t, 1, g.calls)
		require.Empty(t, rec.delays)
	}
}

func TestFetchPageTransportErrorExits(t *testing.T) {
	t.Parallel()

	boom := errors.New("dial tcp: no such host")
	g := &scriptedGetter{responses: []Response{{}}, errs: []error{boom}}
	f, _ := newTestFetcher(g)

	_, err := f.FetchPage(context.Background(), "https://example.com")
	require.ErrorIs(t, err, ErrNetwork)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, g.calls)
}

func TestFetchPageMaxRetries(t *testing.T) {
	t.Parallel()

	g := &scriptedGetter{responses: []Response{status(http.StatusServiceUnavailable, "")}}
	f, rec := newTestFetcher(g)

	_, err := f.FetchPage(context.Background(), "https://example.com")
	require.ErrorIs(t, err, ErrMaxRetries)
	require.NotErrorIs(t, err, ErrNetwork)
	require.Equal(t, 6, g.calls)
	require.Len(t, rec.delays, 5)
}

func TestFetchPageInvalidBodies(t *testing.T) {
	t.Parallel()

	for _, body := range []string{"", "\xff\xfe\xfd"} {
		f, _ := newTestFetcher(&scriptedGetter{responses: []Response{status(http.StatusOK, body)}})
		_, err := f.FetchPage(context.Background(), "https://example.com")
		require.ErrorIs(t, err, ErrInvalidPage)
	}
}

func TestFetchPageContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := &scriptedGetter{responses: []Response{{}}, errs: []error{context.Canceled}}
	f, _ := newTestFetcher(g)

	_, err := f.FetchPage(ctx, "https://example.com")
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, ErrNetwork)
}

type countingLimiter struct {
	waits int
	err   error
}

func (l *countingLimiter) Wait(context.Context, string) error {
	l.waits++
	return l.err
}

func TestFetchPageWaitsOnLimiter(t *testing.T) {
	t.Parallel()

	limiter := &countingLimiter{}
	g := &scriptedGetter{responses: []Response{status(http.StatusTooManyRequests, ""), status(http.StatusOK, "ok")}}
	f, _ := newTestFetcher(g, WithLimiter(limiter))

	_, err := f.FetchPage(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Equal(t, 2, limiter.waits)

	limiter.err = errors.New("limiter closed")
	_, err = f.FetchPage(context.Background(), "https://example.com")
	require.ErrorIs(t, err, ErrNetwork)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	require.Equal(t, "return", Classify("u", status(200, "x"), nil).String())
	require.Equal(t, "retry", Classify("u", status(503, ""), nil).String())
	require.Equal(t, "exit", Classify("u", status(404, ""), nil).String())
	require.Equal(t, "exit", Classify("u", Response{}, errors.New("reset")).String())
	require.Contains(t, Classify("u", status(404, ""), nil).Cause().Error(), "Not Found")
}
