package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/borsa-crawler/internal/scrape"
	"github.com/JakeFAU/borsa-crawler/internal/storage"
)

// ErrRunNotFound is returned by RunStore lookups of unknown IDs.
var ErrRunNotFound = errors.New("run not found")

// Kind names one of the three workflows.
type Kind string

// Known run kinds.
const (
	KindIsins   Kind = "isins"
	KindShares  Kind = "shares"
	KindRefresh Kind = "refresh"
)

// ParseKind validates raw.
func ParseKind(raw string) (Kind, error) {
	switch k := Kind(raw); k {
	case KindIsins, KindShares, KindRefresh:
		return k, nil
	default:
		return "", fmt.Errorf("unknown run kind %q", raw)
	}
}

// Status is the lifecycle state of a Run.
type Status string

// Run states.
const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Terminal reports whether no further transition is expected.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// Metrics bundles the scrape and persistence counters of one run.
type Metrics struct {
	Scrape scrape.Metrics           `json:"scrape"`
	Insert storage.InsertionMetrics `json:"insert"`
}

// Info summarises a finished workflow.
type Info struct {
	RunID          string    `json:"run_id"`
	Kind           Kind      `json:"kind"`
	Metrics        Metrics   `json:"metrics"`
	StartTime      time.Time `json:"start_time"`
	DurationMillis int64     `json:"duration_ms"`
}

// Run is the persisted record of an asynchronous workflow execution.
type Run struct {
	ID        string     `json:"run_id"`
	Kind      Kind       `json:"kind"`
	Status    Status     `json:"status"`
	ErrorText string     `json:"error,omitempty"`
	Info      *Info      `json:"info,omitempty"`
	Queued    time.Time  `json:"queued_at"`
	Started   *time.Time `json:"started_at,omitempty"`
	Finished  *time.Time `json:"finished_at,omitempty"`
}

// RunStore persists Run records.
type RunStore interface {
	CreateRun(ctx context.Context, run Run) error
	UpdateRun(ctx context.Context, id string, status Status, errText string, info *Info) error
	GetRun(ctx context.Context, id string) (Run, error)
}
