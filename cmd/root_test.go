package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/borsa-crawler/internal/config"
	"github.com/JakeFAU/borsa-crawler/internal/runner"
	pgstore "github.com/JakeFAU/borsa-crawler/internal/storage/postgres"
)

type fakeWorkflows struct {
	calls     []string
	olderThan time.Duration
	err       error
}

func (f *fakeWorkflows) ScrapeAndInsertIsins(context.Context) (runner.Info, error) {
	f.calls = append(f.calls, "isins")
	return runner.Info{RunID: "run-1", Kind: runner.KindIsins}, f.err
}

func (f *fakeWorkflows) ScrapeAndInsertShares(context.Context) (runner.Info, error) {
	f.calls = append(f.calls, "shares")
	return runner.Info{RunID: "run-2", Kind: runner.KindShares}, f.err
}

func (f *fakeWorkflows) RefreshShares(_ context.Context, olderThan time.Duration) (runner.Info, error) {
	f.calls = append(f.calls, "refresh")
	f.olderThan = olderThan
	return runner.Info{RunID: "run-3", Kind: runner.KindRefresh}, f.err
}

type fakeApp struct {
	cfg       config.Config
	workflows *fakeWorkflows
	closed    bool
	served    bool
}

func (f *fakeApp) Close()                { f.closed = true }
func (f *fakeApp) Logger() *zap.Logger   { return zap.NewNop() }
func (f *fakeApp) Config() config.Config { return f.cfg }
func (f *fakeApp) Workflows() Workflows  { return f.workflows }
func (f *fakeApp) Serve(context.Context) error {
	f.served = true
	return nil
}

// withFakeApp swaps the application factory for the duration of the test.
func withFakeApp(t *testing.T, err error) *fakeApp {
	t.Helper()
	fake := &fakeApp{
		cfg:       config.Config{Scrape: config.ScrapeConfig{RefreshAfterMinutes: 15}},
		workflows: &fakeWorkflows{err: err},
	}
	orig := newApp
	newApp = func(context.Context, config.Config) (App, error) { return fake, nil }
	t.Cleanup(func() { newApp = orig })
	return fake
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestHarvestCommands(t *testing.T) {
	tests := []struct {
		args []string
		call string
		kind runner.Kind
	}{
		{args: []string{"isins"}, call: "isins", kind: runner.KindIsins},
		{args: []string{"shares"}, call: "shares", kind: runner.KindShares},
		{args: []string{"refresh"}, call: "refresh", kind: runner.KindRefresh},
	}
	for _, tt := range tests {
		t.Run(tt.call, func(t *testing.T) {
			fake := withFakeApp(t, nil)
			out, err := execute(t, tt.args...)
			require.NoError(t, err)
			require.Equal(t, []string{tt.call}, fake.workflows.calls)
			require.True(t, fake.closed, "app is closed after the command")

			var info runner.Info
			require.NoError(t, json.Unmarshal([]byte(out), &info))
			require.Equal(t, tt.kind, info.Kind)
		})
	}
}

func TestRefreshThreshold(t *testing.T) {
	fake := withFakeApp(t, nil)
	_, err := execute(t, "refresh")
	require.NoError(t, err)
	require.Equal(t, 15*time.Minute, fake.workflows.olderThan)

	fake = withFakeApp(t, nil)
	_, err = execute(t, "refresh", "--older-than", "2h")
	require.NoError(t, err)
	require.Equal(t, 2*time.Hour, fake.workflows.olderThan)
}

func TestHarvestCommandFails(t *testing.T) {
	withFakeApp(t, errors.New("load isins: db down"))
	_, err := execute(t, "shares")
	require.ErrorContains(t, err, "shares: load isins: db down")
}

func TestServeCommand(t *testing.T) {
	fake := withFakeApp(t, nil)
	_, err := execute(t, "serve")
	require.NoError(t, err)
	require.True(t, fake.served)
}

func TestAppFactoryErrorAbortsCommand(t *testing.T) {
	orig := newApp
	newApp = func(context.Context, config.Config) (App, error) { return nil, errors.New("postgres down") }
	t.Cleanup(func() { newApp = orig })

	_, err := execute(t, "isins")
	require.ErrorContains(t, err, "failed to initialize application services")
}

func TestMigrateCommand(t *testing.T) {
	orig := migrate
	var gotDir pgstore.Direction
	migrate = func(_ string, dir pgstore.Direction) error {
		gotDir = dir
		return nil
	}
	t.Cleanup(func() { migrate = orig })
	origApp := newApp
	newApp = func(context.Context, config.Config) (App, error) {
		t.Fatal("migrate must not build the application")
		return nil, nil
	}
	t.Cleanup(func() { newApp = origApp })

	out, err := execute(t, "migrate", "down")
	require.NoError(t, err)
	require.Equal(t, pgstore.Down, gotDir)
	require.Contains(t, out, "migrations down complete")

	_, err = execute(t, "migrate", "sideways")
	require.Error(t, err)
}
