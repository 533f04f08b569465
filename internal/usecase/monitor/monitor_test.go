package monitor

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"service-ninja/internal/domain"
	"service-ninja/internal/infra/config"
	"service-ninja/internal/store"
	"service-ninja/internal/usecase/health"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMonitorRunsScheduledSweeps(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	ctx := context.Background()
	s, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	p, err := s.AddProject(ctx, "Fleet", "")
	if err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	env, err := s.AddEnvironment(ctx, "prod", "", p.ID)
	if err != nil {
		t.Fatalf("AddEnvironment: %v", err)
	}
	if _, err := s.AddService(ctx, "api", "", p.ID); err != nil {
		t.Fatalf("AddService: %v", err)
	}
	url := srv.URL
	if _, err := s.UpdateService(ctx, "api", p.ID, env.ID, domain.ServicePatch{HealthCheckURL: &url}); err != nil {
		t.Fatalf("UpdateService: %v", err)
	}

	checker := health.NewChecker(s, config.Default().Probe, testLogger(), nil)
	sweeper := health.NewSweeper(s, checker, config.Default().Sweep, testLogger(), nil)

	m := New(sweeper, config.MonitorConfig{
		Enabled: true,
		Jobs: []config.MonitorJobConfig{
			{Name: "fleet", Schedule: "@every 100ms", ProjectID: p.ID},
		},
	}, testLogger())

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(350 * time.Millisecond)
	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	m.Stop(stopCtx)

	if got := hits.Load(); got < 2 {
		t.Errorf("endpoint probed %d times, want at least 2", got)
	}
}

func TestMonitorRejectsBadSchedule(t *testing.T) {
	checker := health.NewChecker(nil, config.Default().Probe, testLogger(), nil)
	sweeper := health.NewSweeper(nil, checker, config.Default().Sweep, testLogger(), nil)

	m := New(sweeper, config.MonitorConfig{
		Jobs: []config.MonitorJobConfig{
			{Name: "broken", Schedule: "not a schedule", ProjectID: "p1"},
		},
	}, testLogger())

	if err := m.Start(); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}
