package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func scripted(outcomes ...Outcome[int]) (func(context.Context) Outcome[int], *int) {
	calls := 0
	return func(context.Context) Outcome[int] {
		out := outcomes[calls]
		calls++
		return out
	}, &calls
}

func TestRunReturnsAfterFiveRetries(t *testing.T) {
	t.Parallel()

	rec := &recordingSleeper{}
	d := Default(WithSleeper(rec.sleep))
	action, calls := scripted(
		Retry[int](nil), Retry[int](nil), Retry[int](nil), Retry[int](nil), Retry[int](nil),
		Return(42),
	)

	got, err := Run(context.Background(), d, action)
	require.NoError(t, err)
	require.Equal(t, 42, got)
	require.Equal(t, 6, *calls)
	require.Equal(t, []time.Duration{
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		1600 * time.Millisecond,
		3200 * time.Millisecond,
	}, rec.delays)
}

func TestRunFailsOnSixthRetry(t *testing.T) {
	t.Parallel()

	rec := &recordingSleeper{}
	d := Default(WithSleeper(rec.sleep))
	action, calls := scripted(
		Retry[int](nil), Retry[int](nil), Retry[int](nil),
		Retry[int](nil), Retry[int](nil), Retry[int](nil),
	)

	_, err := Run(context.Background(), d, action)
	require.ErrorIs(t, err, ErrMaxRetries)
	require.Equal(t, 6, *calls)
	require.Len(t, rec.delays, 5, "no sleep after the budget is exhausted")
}

func TestRunExitIsImmediate(t *testing.T) {
	t.Parallel()

	rec := &recordingSleeper{}
	d := Default(WithSleeper(rec.sleep))
	cause := errors.New("status 404")
	action, calls := scripted(Exit[int](cause))

	_, err := Run(context.Background(), d, action)
	require.ErrorIs(t, err, ErrExit)
	require.ErrorIs(t, err, cause)
	require.Equal(t, 1, *calls)
	require.Empty(t, rec.delays)
}

func TestRunExitAfterRetry(t *testing.T) {
	t.Parallel()

	rec := &recordingSleeper{}
	d := Default(WithSleeper(rec.sleep))
	action, _ := scripted(Retry[int](nil), Exit[int](nil))

	_, err := Run(context.Background(), d, action)
	require.ErrorIs(t, err, ErrExit)
	require.Equal(t, []time.Duration{200 * time.Millisecond}, rec.delays)
}

func TestRunHonoursContextDuringSleep(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	action, _ := scripted(Retry[int](nil))

	_, err := Run(ctx, Default(), action)
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, ErrMaxRetries)
}

func TestRunRetryHook(t *testing.T) {
	t.Parallel()

	var attempts []int
	d := Default(
		WithSleeper(func(context.Context, time.Duration) error { return nil }),
		WithRetryHook(func(attempt int, _ time.Duration, _ error) {
			attempts = append(attempts, attempt)
		}),
	)
	action, _ := scripted(Retry[int](nil), Retry[int](nil), Return(1))

	_, err := Run(context.Background(), d, action)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, attempts)
}

func TestDelayCurve(t *testing.T) {
	t.Parallel()

	d := Default()
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 100 * time.Millisecond},
		{attempt: 1, want: 200 * time.Millisecond},
		{attempt: 5, want: 3200 * time.Millisecond},
		{attempt: 8, want: 25600 * time.Millisecond},
		{attempt: 9, want: 30 * time.Second},
		{attempt: 10, want: 30 * time.Second},
		{attempt: 64, want: 30 * time.Second},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, d.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestNewFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	d := New(0, 0, 0, 0)
	require.Equal(t, DefaultMaxRetries, d.MaxRetries)
	require.Equal(t, DefaultBase, d.Base)
	require.Equal(t, DefaultCap, d.Cap)
	require.Equal(t, DefaultMaxExponent, d.MaxExponent)
}

func TestOutcomeString(t *testing.T) {
	t.Parallel()

	cause := errors.New("503")
	require.Equal(t, "retry", Retry[int](cause).String())
	require.Equal(t, cause, Retry[int](cause).Cause())
	require.Equal(t, "exit", Exit[int](nil).String())
	require.Equal(t, "return", Return(1).String())
	require.NoError(t, Return(1).Cause())
}
