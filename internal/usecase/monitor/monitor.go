// Package monitor runs scheduled background health sweeps driven by cron
// expressions from configuration.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/robfig/cron/v3"

	"service-ninja/internal/domain"
	"service-ninja/internal/infra/config"
	"service-ninja/internal/usecase/health"
)

// Monitor owns the cron scheduler and the sweep jobs registered on it.
type Monitor struct {
	sweeper *health.Sweeper
	cfg     config.MonitorConfig
	logger  *slog.Logger
	cron    *cron.Cron
}

// New builds a monitor from the configured jobs. Jobs are registered on
// Start, not here.
func New(sweeper *health.Sweeper, cfg config.MonitorConfig, logger *slog.Logger) *Monitor {
	return &Monitor{
		sweeper: sweeper,
		cfg:     cfg,
		logger:  logger,
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{logger}),
			cron.SkipIfStillRunning(cronLogger{logger}),
		)),
	}
}

// Start registers every configured job and starts the scheduler. A job with
// a bad schedule fails Start; nothing runs half-configured.
func (m *Monitor) Start() error {
	for _, job := range m.cfg.Jobs {
		if _, err := m.cron.AddFunc(job.Schedule, m.runJob(job)); err != nil {
			return fmt.Errorf("monitor: job %q: %w", job.Name, err)
		}
		m.logger.Info("monitor job registered",
			"job", job.Name,
			"schedule", job.Schedule,
			"project_id", job.ProjectID,
			"env_id", job.EnvID,
		)
	}
	m.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for running sweeps to finish, bounded by
// ctx.
func (m *Monitor) Stop(ctx context.Context) {
	done := m.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("monitor stop timed out with sweeps in flight")
	}
}

func (m *Monitor) runJob(job config.MonitorJobConfig) func() {
	return func() {
		ctx := context.Background()

		var result *domain.SweepResult
		if job.EnvID != "" {
			result = m.sweeper.SweepEnvironment(ctx, job.ProjectID, job.EnvID, 0)
		} else {
			result = m.sweeper.SweepProject(ctx, job.ProjectID, 0)
		}

		if !result.Success {
			m.logger.Error("scheduled sweep failed",
				"job", job.Name,
				"message", result.Message,
			)
			return
		}

		m.logger.Info("scheduled sweep completed",
			"job", job.Name,
			"checked", result.ServicesChecked,
			"healthy", result.ServicesHealthy,
			"unhealthy", result.ServicesUnhealthy,
			"overall_health", result.OverallHealth,
		)
		if result.ServicesUnhealthy > 0 {
			m.logger.Warn("degraded services detected",
				"job", job.Name,
				"services", degradedNames(result),
				"overall_health", result.OverallHealth,
			)
		}
	}
}

// degradedNames lists the unhappy services of a sweep for the degradation log.
func degradedNames(result *domain.SweepResult) string {
	var names []string
	for _, r := range result.Results {
		if !r.IsHealthy {
			names = append(names, r.ServiceName)
		}
	}
	return strings.Join(names, ",")
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
