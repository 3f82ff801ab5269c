// Package fetcher retrieves page bodies over HTTP through the backoff driver.
//
// Each attempt is one GET. The status is classified into a backoff outcome:
// 200 returns, 429/500/502/503/504 retry, and anything else (including transport
// failures) exits. A 200 with an empty or undecodable body is rejected.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JakeFAU/borsa-crawler/internal/backoff"
	"github.com/JakeFAU/borsa-crawler/internal/metrics"
)

var (
	// ErrNetwork covers transport failures and non-retryable statuses.
	ErrNetwork = errors.New("fetcher: network error")
	// ErrInvalidPage marks a 200 response whose body is empty or not valid UTF-8.
	ErrInvalidPage = errors.New("fetcher: invalid page")
	// ErrMaxRetries is returned when every attempt asked for a retry.
	ErrMaxRetries = errors.New("fetcher: max retries exceeded")
)

// Response is the raw result of one GET.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Getter performs a single HTTP GET. Non-2xx statuses are returned as responses, not errors.
type Getter interface {
	Get(ctx context.Context, url string) (Response, error)
}

// Limiter paces requests per host.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// StatusError reports an HTTP status outside the success and retry sets.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d (%s) for %s", e.Code, http.StatusText(e.Code), e.URL)
}

// PageFetcher fetches page bodies with retries.
type PageFetcher struct {
	getter  Getter
	driver  *backoff.Driver
	limiter Limiter
	logger  *zap.Logger
}

// Option customises a PageFetcher.
type Option func(*PageFetcher)

// WithDriver overrides the default backoff driver.
func WithDriver(d *backoff.Driver) Option {
	return func(f *PageFetcher) {
		if d != nil {
			f.driver = d
		}
	}
}

// WithLimiter waits on l before every attempt.
func WithLimiter(l Limiter) Option {
	return func(f *PageFetcher) {
		f.limiter = l
	}
}

// WithLogger sets the logger used for retries.
func WithLogger(logger *zap.Logger) Option {
	return func(f *PageFetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New builds a PageFetcher around getter.
func New(getter Getter, opts ...Option) *PageFetcher {
	f := &PageFetcher{
		getter: getter,
		driver: backoff.Default(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchPage returns the body of url.
// It fails with ErrNetwork, ErrMaxRetries or ErrInvalidPage, or with the context error when ctx ends first.
func (f *PageFetcher) FetchPage(ctx context.Context, url string) (string, error) {
	resp, err := backoff.Run(ctx, f.driver, func(ctx context.Context) backoff.Outcome[Response] {
		return f.attempt(ctx, url)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("fetch %s: %w", url, ctxErr)
		}
		if errors.Is(err, backoff.ErrMaxRetries) {
			return "", fmt.Errorf("fetch %s: %w", url, ErrMaxRetries)
		}
		return "", fmt.Errorf("%w: fetch %s: %w", ErrNetwork, url, err)
	}
	return decodeBody(url, resp.Body)
}

func (f *PageFetcher) attempt(ctx context.Context, url string) backoff.Outcome[Response] {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, url); err != nil {
			return backoff.Exit[Response](err)
		}
	}
	resp, err := f.getter.Get(ctx, url)
	out := Classify(url, resp, err)
	metrics.ObserveFetch(url, resp.StatusCode, out.String(), len(resp.Body))
	if out.String() == "retry" {
		f.logger.Debug("page fetch will be retried",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
		)
	}
	return out
}

// Classify maps one GET result onto a backoff outcome.
func Classify(url string, resp Response, err error) backoff.Outcome[Response] {
	if err != nil {
		return backoff.Exit[Response](err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return backoff.Return(resp)
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return backoff.Retry[Response](&StatusError{URL: url, Code: resp.StatusCode})
	default:
		return backoff.Exit[Response](&StatusError{URL: url, Code: resp.StatusCode})
	}
}

func decodeBody(url string, body []byte) (string, error) {
	if len(body) == 0 {
		return "", fmt.Errorf("%w: empty body from %s", ErrInvalidPage, url)
	}
	if !utf8.Valid(body) {
		return "", fmt.Errorf("%w: body from %s is not valid UTF-8", ErrInvalidPage, url)
	}
	return string(body), nil
}
