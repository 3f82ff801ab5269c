package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/borsa-crawler/internal/runner"
)

// RunStore implements runner.RunStore on the runs table.
type RunStore struct {
	pool Pool
}

var _ runner.RunStore = (*RunStore)(nil)

// NewRunStore wraps pool.
func NewRunStore(pool Pool) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RunStore{pool: pool}, nil
}

const createRunSQL = `INSERT INTO runs (id, kind, status, error_text, queued_at) VALUES ($1, $2, $3, $4, $5)`

// CreateRun inserts a queued run.
func (s *RunStore) CreateRun(ctx context.Context, run runner.Run) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if _, err := s.pool.Exec(ctx, createRunSQL, run.ID, string(run.Kind), string(run.Status), run.ErrorText, run.Queued); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

const updateRunSQL = `
UPDATE runs SET
	status = $1,
	error_text = $2,
	info = COALESCE($3, info),
	started_at = CASE WHEN $4 THEN COALESCE(started_at, NOW()) ELSE started_at END,
	finished_at = CASE WHEN $5 THEN NOW() ELSE finished_at END
WHERE id = $6`

// UpdateRun moves a run to status. A nil info keeps the stored summary.
func (s *RunStore) UpdateRun(ctx context.Context, id string, status runner.Status, errText string, info *runner.Info) error {
	var infoJSON []byte
	if info != nil {
		var err error
		if infoJSON, err = json.Marshal(info); err != nil {
			return fmt.Errorf("marshal run info: %w", err)
		}
	}
	tag, err := s.pool.Exec(ctx, updateRunSQL,
		string(status), errText, infoJSON,
		status == runner.StatusRunning, status.Terminal(), id,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s: %w", id, runner.ErrRunNotFound)
	}
	return nil
}

const getRunSQL = `
SELECT id, kind, status, error_text, info, queued_at, started_at, finished_at
FROM runs WHERE id = $1`

// GetRun loads a run by ID.
func (s *RunStore) GetRun(ctx context.Context, id string) (runner.Run, error) {
	var (
		run            runner.Run
		kind, status   string
		infoJSON       []byte
		started, ended *time.Time
	)
	err := s.pool.QueryRow(ctx, getRunSQL, id).
		Scan(&run.ID, &kind, &status, &run.ErrorText, &infoJSON, &run.Queued, &started, &ended)
	if errors.Is(err, pgx.ErrNoRows) {
		return runner.Run{}, fmt.Errorf("run %s: %w", id, runner.ErrRunNotFound)
	}
	if err != nil {
		return runner.Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	run.Kind = runner.Kind(kind)
	run.Status = runner.Status(status)
	run.Started, run.Finished = started, ended
	if len(infoJSON) > 0 {
		var info runner.Info
		if err := json.Unmarshal(infoJSON, &info); err != nil {
			return runner.Run{}, fmt.Errorf("decode run info %s: %w", id, err)
		}
		run.Info = &info
	}
	return run, nil
}
