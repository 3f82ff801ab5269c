package scrape_test

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/JakeFAU/borsa-crawler/internal/backoff"
	"github.com/JakeFAU/borsa-crawler/internal/fetcher"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

var testNow = time.Date(2024, time.December, 2, 9, 0, 0, 0, time.UTC)

// routeGetter answers each URL from its own script. The last step repeats.
type routeGetter struct {
	mu     sync.Mutex
	routes map[string][]fetcher.Response
	calls  map[string]int
}

func newRouteGetter() *routeGetter {
	return &routeGetter{routes: map[string][]fetcher.Response{}, calls: map[string]int{}}
}

func (g *routeGetter) script(url string, steps ...fetcher.Response) {
	g.routes[url] = steps
}

func (g *routeGetter) Get(_ context.Context, url string) (fetcher.Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	steps, ok := g.routes[url]
	if !ok {
		return fetcher.Response{URL: url, StatusCode: http.StatusNotFound}, nil
	}
	i := g.calls[url]
	g.calls[url]++
	if i >= len(steps) {
		i = len(steps) - 1
	}
	resp := steps[i]
	resp.URL = url
	return resp, nil
}

func (g *routeGetter) callsTo(url string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[url]
}

func page(code int, body string) fetcher.Response {
	return fetcher.Response{StatusCode: code, Body: []byte(body)}
}

func instantFetcher(g fetcher.Getter) *fetcher.PageFetcher {
	noSleep := func(context.Context, time.Duration) error { return nil }
	return fetcher.New(g, fetcher.WithDriver(backoff.Default(backoff.WithSleeper(noSleep))))
}
