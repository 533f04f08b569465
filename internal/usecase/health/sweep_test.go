package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"service-ninja/internal/domain"
	"service-ninja/internal/infra/config"
)

func newTestSweeper(t *testing.T, s domain.Store, cfg config.SweepConfig) *Sweeper {
	t.Helper()
	checker := NewChecker(s, config.Default().Probe, testLogger(), nil)
	return NewSweeper(s, checker, cfg, testLogger(), nil)
}

// seedFleet creates one project with one environment and one service per URL,
// named svc-0, svc-1, ... in order.
func seedFleet(t *testing.T, s domain.Store, urls []string) (projectID, envID string) {
	t.Helper()
	ctx := context.Background()

	p, err := s.AddProject(ctx, "Fleet", "")
	if err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	env, err := s.AddEnvironment(ctx, "prod", "", p.ID)
	if err != nil {
		t.Fatalf("AddEnvironment: %v", err)
	}
	for i, url := range urls {
		name := "svc-" + string(rune('0'+i))
		if _, err := s.AddService(ctx, name, "", p.ID); err != nil {
			t.Fatalf("AddService(%s): %v", name, err)
		}
		if _, err := s.UpdateService(ctx, name, p.ID, env.ID, domain.ServicePatch{
			HealthCheckURL: strPtr(url),
		}); err != nil {
			t.Fatalf("UpdateService(%s): %v", name, err)
		}
	}
	return p.ID, env.ID
}

func TestSweepProjectEmpty(t *testing.T) {
	s := openStore(t)
	p, err := s.AddProject(context.Background(), "Empty", "")
	if err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	sw := newTestSweeper(t, s, config.Default().Sweep)

	result := sw.SweepProject(context.Background(), p.ID, 5)
	if !result.Success {
		t.Fatalf("success = false: %s", result.Message)
	}
	if result.ServicesChecked != 0 || len(result.Results) != 0 {
		t.Errorf("checked = %d, results = %d, want zero", result.ServicesChecked, len(result.Results))
	}
	if result.OverallHealth != 0.0 {
		t.Errorf("overall_health = %v, want 0.0", result.OverallHealth)
	}
	if !strings.Contains(result.Message, "No services found") {
		t.Errorf("message = %q", result.Message)
	}
}

func TestSweepProjectMixedHealth(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer healthy.Close()
	unhealthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer unhealthy.Close()

	s := openStore(t)
	projectID, _ := seedFleet(t, s, []string{healthy.URL, unhealthy.URL})
	sw := newTestSweeper(t, s, config.Default().Sweep)

	result := sw.SweepProject(context.Background(), projectID, 5)
	if !result.Success {
		t.Fatalf("success = false: %s", result.Message)
	}
	if result.ServicesChecked != 2 || result.ServicesHealthy != 1 || result.ServicesUnhealthy != 1 {
		t.Fatalf("counts = %d/%d/%d", result.ServicesChecked, result.ServicesHealthy, result.ServicesUnhealthy)
	}
	if result.OverallHealth != 0.5 {
		t.Errorf("overall_health = %v, want 0.5", result.OverallHealth)
	}

	// Results hold listing order no matter which probe finished first.
	if result.Results[0].ServiceName != "svc-0" || result.Results[1].ServiceName != "svc-1" {
		t.Errorf("result order = %q, %q", result.Results[0].ServiceName, result.Results[1].ServiceName)
	}
	if !result.Results[0].IsHealthy || result.Results[1].IsHealthy {
		t.Errorf("health flags = %v, %v", result.Results[0].IsHealthy, result.Results[1].IsHealthy)
	}
	if !strings.Contains(result.Message, "Checked 2 services") {
		t.Errorf("message = %q", result.Message)
	}
}

func TestSweepEnvironmentScoped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx := context.Background()
	s := openStore(t)
	p, err := s.AddProject(ctx, "Fleet", "")
	if err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	dev, err := s.AddEnvironment(ctx, "dev", "", p.ID)
	if err != nil {
		t.Fatalf("AddEnvironment: %v", err)
	}
	prod, err := s.AddEnvironment(ctx, "prod", "", p.ID)
	if err != nil {
		t.Fatalf("AddEnvironment: %v", err)
	}
	if _, err := s.AddService(ctx, "api", "", p.ID); err != nil {
		t.Fatalf("AddService: %v", err)
	}
	for _, env := range []string{dev.ID, prod.ID} {
		if _, err := s.UpdateService(ctx, "api", p.ID, env, domain.ServicePatch{
			HealthCheckURL: strPtr(srv.URL),
		}); err != nil {
			t.Fatalf("UpdateService: %v", err)
		}
	}
	sw := newTestSweeper(t, s, config.Default().Sweep)

	// Only the prod record is in scope.
	result := sw.SweepEnvironment(ctx, p.ID, prod.ID, 5)
	if result.ServicesChecked != 1 {
		t.Fatalf("checked = %d, want 1", result.ServicesChecked)
	}
	if result.EnvID != prod.ID {
		t.Errorf("env_id = %q", result.EnvID)
	}
	if !strings.Contains(result.Message, "in prod") {
		t.Errorf("message = %q", result.Message)
	}

	empty := sw.SweepEnvironment(ctx, p.ID, "no-such-env", 5)
	if !empty.Success || empty.ServicesChecked != 0 {
		t.Fatalf("empty sweep = %+v", empty)
	}
}

func TestSweepDeadlineYieldsPartialResults(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer slow.Close()

	s := openStore(t)
	projectID, _ := seedFleet(t, s, []string{slow.URL, slow.URL, slow.URL})

	cfg := config.Default().Sweep
	cfg.Concurrency = 1
	cfg.Timeout = 100 * time.Millisecond
	sw := newTestSweeper(t, s, cfg)

	start := time.Now()
	result := sw.SweepProject(context.Background(), projectID, 5)
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("sweep ran %v, deadline not enforced", elapsed)
	}

	if result.ServicesChecked != 3 {
		t.Fatalf("checked = %d, want 3", result.ServicesChecked)
	}
	if result.ServicesHealthy != 0 {
		t.Errorf("healthy = %d, want 0", result.ServicesHealthy)
	}
	for i, r := range result.Results {
		if r.ErrorType != domain.ErrorTypeTimeout {
			t.Errorf("result %d: error_type = %q, want timeout", i, r.ErrorType)
		}
	}
}
