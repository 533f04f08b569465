package tool

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"service-ninja/internal/domain"
	"service-ninja/internal/usecase/health"
)

// HealthTools expose the health checker and sweeper as callable tools.
// They are thin: parameter plumbing only, with all probe and roll-up
// semantics living in the health package. Check results are returned as
// data even when the probed service is down, so a failed probe is a
// successful tool call.
type HealthTools struct {
	checker *health.Checker
	sweeper *health.Sweeper
	logger  *slog.Logger
}

// NewHealthTools creates the health tool set.
func NewHealthTools(checker *health.Checker, sweeper *health.Sweeper, logger *slog.Logger) *HealthTools {
	return &HealthTools{checker: checker, sweeper: sweeper, logger: logger}
}

// Tools returns every health tool for registration.
func (t *HealthTools) Tools() []domain.Tool {
	return []domain.Tool{
		newTool("check_service_health",
			"Probe the health endpoint of one service and classify the response.",
			json.RawMessage(`{
				"type": "object",
				"properties": {
					"service_name": {"type": "string", "description": "Name of the service to check"},
					"project_id": {"type": "string", "description": "Id of the owning project"},
					"env_id": {"type": "string", "description": "Id of the environment"},
					"timeout": {"type": "integer", "description": "Request timeout in seconds, defaults to 30"}
				},
				"required": ["service_name", "project_id", "env_id"]
			}`),
			t.logger, t.handleCheckHealth),

		newTool("check_service_health_by_id",
			"Probe the health endpoint of a service addressed by record id.",
			json.RawMessage(`{
				"type": "object",
				"properties": {
					"service_id": {"type": "string", "description": "Id of the service record"},
					"timeout": {"type": "integer", "description": "Request timeout in seconds, defaults to 30"}
				},
				"required": ["service_id"]
			}`),
			t.logger, t.handleCheckHealthByID),

		newTool("check_all_services_health_in_project",
			"Check every service of a project concurrently and roll up the results.",
			json.RawMessage(`{
				"type": "object",
				"properties": {
					"project_id": {"type": "string", "description": "Id of the project to sweep"},
					"timeout": {"type": "integer", "description": "Per-service timeout in seconds, defaults to 30"}
				},
				"required": ["project_id"]
			}`),
			t.logger, t.handleSweepProject),

		newTool("check_environment_health",
			"Check every service of one environment concurrently and roll up the results.",
			json.RawMessage(`{
				"type": "object",
				"properties": {
					"project_id": {"type": "string", "description": "Id of the owning project"},
					"env_id": {"type": "string", "description": "Id of the environment to sweep"},
					"timeout": {"type": "integer", "description": "Per-service timeout in seconds, defaults to 30"}
				},
				"required": ["project_id", "env_id"]
			}`),
			t.logger, t.handleSweepEnvironment),

		newTool("check_service_alive",
			"Probe the liveness endpoint of one service, judging by status code only.",
			json.RawMessage(`{
				"type": "object",
				"properties": {
					"service_name": {"type": "string", "description": "Name of the service to check"},
					"project_id": {"type": "string", "description": "Id of the owning project"},
					"env_id": {"type": "string", "description": "Id of the environment"},
					"timeout": {"type": "integer", "description": "Request timeout in seconds, defaults to 30"}
				},
				"required": ["service_name", "project_id", "env_id"]
			}`),
			t.logger, t.handleCheckAlive),
	}
}

type checkHealthParams struct {
	ServiceName string `json:"service_name"`
	ProjectID   string `json:"project_id"`
	EnvID       string `json:"env_id"`
	Timeout     int    `json:"timeout"`
}

func (t *HealthTools) handleCheckHealth(ctx context.Context, _ trace.Span, p checkHealthParams) (any, error) {
	if err := RequireField("service_name", p.ServiceName); err != nil {
		return nil, err
	}
	if err := RequireField("project_id", p.ProjectID); err != nil {
		return nil, err
	}
	if err := RequireField("env_id", p.EnvID); err != nil {
		return nil, err
	}
	return t.checker.CheckHealth(ctx, p.ServiceName, p.ProjectID, p.EnvID, p.Timeout), nil
}

type checkHealthByIDParams struct {
	ServiceID string `json:"service_id"`
	Timeout   int    `json:"timeout"`
}

func (t *HealthTools) handleCheckHealthByID(ctx context.Context, _ trace.Span, p checkHealthByIDParams) (any, error) {
	if err := RequireField("service_id", p.ServiceID); err != nil {
		return nil, err
	}
	return t.checker.CheckHealthByID(ctx, p.ServiceID, p.Timeout), nil
}

type sweepProjectParams struct {
	ProjectID string `json:"project_id"`
	Timeout   int    `json:"timeout"`
}

func (t *HealthTools) handleSweepProject(ctx context.Context, _ trace.Span, p sweepProjectParams) (any, error) {
	if err := RequireField("project_id", p.ProjectID); err != nil {
		return nil, err
	}
	return t.sweeper.SweepProject(ctx, p.ProjectID, p.Timeout), nil
}

type sweepEnvironmentParams struct {
	ProjectID string `json:"project_id"`
	EnvID     string `json:"env_id"`
	Timeout   int    `json:"timeout"`
}

func (t *HealthTools) handleSweepEnvironment(ctx context.Context, _ trace.Span, p sweepEnvironmentParams) (any, error) {
	if err := RequireField("project_id", p.ProjectID); err != nil {
		return nil, err
	}
	if err := RequireField("env_id", p.EnvID); err != nil {
		return nil, err
	}
	return t.sweeper.SweepEnvironment(ctx, p.ProjectID, p.EnvID, p.Timeout), nil
}

type checkAliveParams struct {
	ServiceName string `json:"service_name"`
	ProjectID   string `json:"project_id"`
	EnvID       string `json:"env_id"`
	Timeout     int    `json:"timeout"`
}

func (t *HealthTools) handleCheckAlive(ctx context.Context, _ trace.Span, p checkAliveParams) (any, error) {
	if err := RequireField("service_name", p.ServiceName); err != nil {
		return nil, err
	}
	if err := RequireField("project_id", p.ProjectID); err != nil {
		return nil, err
	}
	if err := RequireField("env_id", p.EnvID); err != nil {
		return nil, err
	}
	return t.checker.CheckAlive(ctx, p.ServiceName, p.ProjectID, p.EnvID, p.Timeout), nil
}
