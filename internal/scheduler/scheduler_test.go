package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/feedrank/internal/config"
	"github.com/elonfeng/feedrank/internal/feed"
	"github.com/elonfeng/feedrank/pkg/trend"
)

type fakeTasks struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeTasks) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeTasks) RefreshMarket(context.Context) ([]trend.MarketTrend, error) {
	f.record("market")
	return nil, errors.New("provider down")
}

func (f *fakeTasks) DetectTrends(context.Context) (*feed.DetectResult, error) {
	f.record("trends")
	return &feed.DetectResult{}, nil
}

func (f *fakeTasks) Reconcile(context.Context) (*feed.ReconcileResult, error) {
	f.record("reconcile")
	return &feed.ReconcileResult{}, nil
}

func TestNew_RejectsBadSpec(t *testing.T) {
	_, err := New([]Job{{Name: "broken", Spec: "every tuesday", Run: func(context.Context) error { return nil }}}, zerolog.Nop())
	assert.ErrorContains(t, err, "parse broken schedule")

	_, err = New([]Job{{Name: "empty", Spec: "@hourly"}}, zerolog.Nop())
	assert.Error(t, err)
}

func TestServiceJobs(t *testing.T) {
	cfg := config.ScheduleConfig{MarketRefresh: "*/15 * * * *", TrendDetect: "*/30 * * * *", Reconcile: "@hourly"}

	s, err := New(ServiceJobs(&fakeTasks{}, cfg, true), zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, s.Jobs(), 3)
	assert.Equal(t, "market_refresh", s.Jobs()[0].Name)

	cfg.Reconcile = ""
	s, err = New(ServiceJobs(&fakeTasks{}, cfg, false), zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, s.Jobs(), 1)
	assert.Equal(t, "trend_detect", s.Jobs()[0].Name)
}

func TestRun_RunsJobsOnceThenStops(t *testing.T) {
	tasks := &fakeTasks{}
	cfg := config.ScheduleConfig{MarketRefresh: "@hourly", TrendDetect: "@hourly", Reconcile: "@daily"}
	s, err := New(ServiceJobs(tasks, cfg, true), zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		tasks.mu.Lock()
		defer tasks.mu.Unlock()
		return len(tasks.calls) == 3
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	tasks.mu.Lock()
	defer tasks.mu.Unlock()
	assert.Equal(t, []string{"market", "trends", "reconcile"}, tasks.calls, "a failing job does not stop the others")
}
