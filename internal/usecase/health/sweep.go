package health

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"service-ninja/internal/domain"
	"service-ninja/internal/infra/config"
	"service-ninja/internal/infra/tracer"
	"service-ninja/internal/usecase/eventbus"
)

// Sweeper fans health checks out across all services of a project or
// environment with a bounded worker pool and an aggregate deadline, so one
// stuck endpoint cannot stall a fleet-wide sweep.
type Sweeper struct {
	store   domain.Store
	checker *Checker
	cfg     config.SweepConfig
	logger  *slog.Logger
	bus     domain.EventBus
}

// NewSweeper builds a sweeper on top of an existing checker.
func NewSweeper(store domain.Store, checker *Checker, cfg config.SweepConfig, logger *slog.Logger, bus domain.EventBus) *Sweeper {
	return &Sweeper{
		store:   store,
		checker: checker,
		cfg:     cfg,
		logger:  logger,
		bus:     bus,
	}
}

// SweepProject checks every service record in the project.
func (s *Sweeper) SweepProject(ctx context.Context, projectID string, timeoutSec int) *domain.SweepResult {
	ctx, span := tracer.StartSpan(ctx, "health.sweep.project",
		tracer.StringAttr("project_id", projectID),
	)
	defer span.End()

	services, err := s.store.ServicesForProject(ctx, projectID)
	if err != nil {
		return &domain.SweepResult{
			ProjectID: projectID,
			Message:   fmt.Sprintf("Error listing services for project: %v", err),
		}
	}
	if len(services) == 0 {
		return &domain.SweepResult{
			Success:   true,
			ProjectID: projectID,
			Results:   []domain.CheckResult{},
			Message:   fmt.Sprintf("No services found for project ID '%s'", projectID),
		}
	}

	result := s.run(ctx, projectID, "", services, timeoutSec)
	result.Message = fmt.Sprintf("Checked %d services for project. %d are healthy, %d are unhealthy",
		result.ServicesChecked, result.ServicesHealthy, result.ServicesUnhealthy)
	return result
}

// SweepEnvironment checks every service record in one environment of the
// project.
func (s *Sweeper) SweepEnvironment(ctx context.Context, projectID, envID string, timeoutSec int) *domain.SweepResult {
	ctx, span := tracer.StartSpan(ctx, "health.sweep.environment",
		tracer.StringAttr("project_id", projectID),
		tracer.StringAttr("env_id", envID),
	)
	defer span.End()

	services, err := s.store.ServicesForEnvironment(ctx, projectID, envID)
	if err != nil {
		return &domain.SweepResult{
			ProjectID: projectID,
			EnvID:     envID,
			Message:   fmt.Sprintf("Error listing services for environment: %v", err),
		}
	}
	if len(services) == 0 {
		return &domain.SweepResult{
			Success:   true,
			ProjectID: projectID,
			EnvID:     envID,
			Results:   []domain.CheckResult{},
			Message:   "No services found for project/environment combination",
		}
	}

	envName := unknownEnvironment
	if env, err := s.store.GetEnvironmentByID(ctx, envID); err == nil {
		envName = env.Name
	}

	result := s.run(ctx, projectID, envID, services, timeoutSec)
	result.Message = fmt.Sprintf("Checked %d services in %s. %d are healthy, %d are unhealthy",
		result.ServicesChecked, envName, result.ServicesHealthy, result.ServicesUnhealthy)
	return result
}

// run executes the fan-out. Results keep the service listing order regardless
// of probe completion order.
func (s *Sweeper) run(ctx context.Context, projectID, envID string, services []domain.Service, timeoutSec int) *domain.SweepResult {
	s.publish(ctx, domain.EventSweepStarted, map[string]any{
		"project_id": projectID,
		"env_id":     envID,
		"services":   len(services),
	})

	sweepTimeout := s.cfg.Timeout
	if sweepTimeout <= 0 {
		sweepTimeout = 2 * time.Minute
	}
	sweepCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	var limiter *rate.Limiter
	if s.cfg.RatePerSecond > 0 {
		burst := s.cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RatePerSecond), burst)
	}

	concurrency := s.cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]domain.CheckResult, len(services))
	g, gctx := errgroup.WithContext(sweepCtx)
	g.SetLimit(concurrency)
	for i, svc := range services {
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					results[i] = cutoffResult(svc)
					return nil
				}
			}
			if gctx.Err() != nil {
				results[i] = cutoffResult(svc)
				return nil
			}
			results[i] = *s.checker.CheckHealth(gctx, svc.Name, svc.ProjectID, svc.EnvID, timeoutSec)
			return nil
		})
	}
	g.Wait()

	healthy := 0
	for _, r := range results {
		if r.IsHealthy {
			healthy++
		}
	}

	result := &domain.SweepResult{
		Success:           true,
		ProjectID:         projectID,
		EnvID:             envID,
		ServicesChecked:   len(services),
		ServicesHealthy:   healthy,
		ServicesUnhealthy: len(services) - healthy,
		OverallHealth:     float64(healthy) / float64(len(services)),
		Results:           results,
	}

	s.publish(ctx, domain.EventSweepCompleted, result)
	if result.ServicesUnhealthy > 0 {
		s.publish(ctx, domain.EventSweepDegraded, result)
	}
	return result
}

// cutoffResult stands in for a check the aggregate deadline never let start.
func cutoffResult(svc domain.Service) domain.CheckResult {
	return domain.CheckResult{
		ServiceName: svc.Name,
		ProjectID:   svc.ProjectID,
		EnvID:       svc.EnvID,
		EndpointURL: svc.ProbeURL(),
		ErrorType:   domain.ErrorTypeTimeout,
		Message:     fmt.Sprintf("Service '%s' check cut off by sweep deadline", svc.Name),
	}
}

func (s *Sweeper) publish(ctx context.Context, eventType domain.EventType, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, eventbus.NewEvent(eventType, payload))
}
