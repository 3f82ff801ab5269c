package scrape

import (
	"context"
	"errors"

	"github.com/JakeFAU/borsa-crawler/internal/extract"
	"github.com/JakeFAU/borsa-crawler/internal/fetcher"
)

// ErrTimeout is reported for a task that outlived its deadline.
var ErrTimeout = errors.New("scrape: task timed out")

// ErrorKind is the failure category of one scrape task.
type ErrorKind int

// Failure categories. KindNone means the task succeeded.
const (
	KindNone ErrorKind = iota
	KindNetwork
	KindInvalidPage
	KindTimeout
	KindMaxRetries
	KindParse
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "success"
	case KindNetwork:
		return "network"
	case KindInvalidPage:
		return "invalid_page"
	case KindTimeout:
		return "timeout"
	case KindMaxRetries:
		return "max_retries"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Classify maps an error onto the fixed failure categories. Unrecognised errors count as network failures.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return KindTimeout
	case errors.Is(err, fetcher.ErrMaxRetries):
		return KindMaxRetries
	case errors.Is(err, fetcher.ErrInvalidPage):
		return KindInvalidPage
	case errors.Is(err, extract.ErrParse):
		return KindParse
	default:
		return KindNetwork
	}
}

// ErrorCounts holds one counter per failure category.
type ErrorCounts struct {
	Network     int `json:"network_error"`
	InvalidPage int `json:"invalid_page"`
	Timeout     int `json:"timeout"`
	MaxRetries  int `json:"max_retries"`
	Parse       int `json:"parsing_error"`
}

// Merge returns the field-wise sum of e and other.
func (e ErrorCounts) Merge(other ErrorCounts) ErrorCounts {
	return ErrorCounts{
		Network:     e.Network + other.Network,
		InvalidPage: e.InvalidPage + other.InvalidPage,
		Timeout:     e.Timeout + other.Timeout,
		MaxRetries:  e.MaxRetries + other.MaxRetries,
		Parse:       e.Parse + other.Parse,
	}
}

// Total sums every category.
func (e ErrorCounts) Total() int {
	return e.Network + e.InvalidPage + e.Timeout + e.MaxRetries + e.Parse
}

// Metrics counts the terminal outcomes of a batch of scrape tasks.
// Total always equals Successful plus Errors.Total().
type Metrics struct {
	Total      int         `json:"total"`
	Successful int         `json:"successful"`
	Errors     ErrorCounts `json:"errors"`
}

// Merge returns the field-wise sum of m and other. The zero value is the identity.
func (m Metrics) Merge(other Metrics) Metrics {
	return Metrics{
		Total:      m.Total + other.Total,
		Successful: m.Successful + other.Successful,
		Errors:     m.Errors.Merge(other.Errors),
	}
}

// Outcome returns the metrics of a single task that ended with err.
func Outcome(err error) Metrics {
	m := Metrics{Total: 1}
	switch Classify(err) {
	case KindNone:
		m.Successful = 1
	case KindNetwork:
		m.Errors.Network = 1
	case KindInvalidPage:
		m.Errors.InvalidPage = 1
	case KindTimeout:
		m.Errors.Timeout = 1
	case KindMaxRetries:
		m.Errors.MaxRetries = 1
	case KindParse:
		m.Errors.Parse = 1
	}
	return m
}
