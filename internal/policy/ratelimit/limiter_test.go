package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterWaitSpacesRequests(t *testing.T) {
	t.Parallel()

	// 10 requests per second is one token every 100ms.
	l := New(Config{RequestsPerSecond: 10, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://www.borsaitaliana.it/a"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://www.borsaitaliana.it/b"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiterSeparatesHosts(t *testing.T) {
	t.Parallel()

	l := New(Config{RequestsPerSecond: 1, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.example/1"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.example/1"))
	require.Less(t, time.Since(start), 100*time.Millisecond)
	require.Equal(t, 2, l.Hosts())
}

func TestLimiterHonoursContext(t *testing.T) {
	t.Parallel()

	l := New(Config{RequestsPerSecond: 0.1, Burst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://a.example"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx, "https://a.example"))
}

func TestLimiterDisabled(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 50; i++ {
		require.NoError(t, l.Wait(ctx, "::not a url"))
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
	require.Equal(t, 1, l.Hosts())
}
