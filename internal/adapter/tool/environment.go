package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"service-ninja/internal/domain"
)

// EnvironmentTools expose environment CRUD as callable tools.
type EnvironmentTools struct {
	store  domain.Store
	bus    domain.EventBus
	logger *slog.Logger
}

// NewEnvironmentTools creates the environment tool set.
func NewEnvironmentTools(store domain.Store, bus domain.EventBus, logger *slog.Logger) *EnvironmentTools {
	return &EnvironmentTools{store: store, bus: bus, logger: logger}
}

// Tools returns every environment tool for registration.
func (t *EnvironmentTools) Tools() []domain.Tool {
	return []domain.Tool{
		newTool("get_project_environments",
			"List all environments across all projects.",
			json.RawMessage(`{
				"type": "object",
				"properties": {}
			}`),
			t.logger, t.handleList),

		newTool("add_project_environment",
			"Add a new environment to a project.",
			json.RawMessage(`{
				"type": "object",
				"properties": {
					"name": {"type": "string", "description": "Environment name, unique per project"},
					"description": {"type": "string", "description": "Free-form environment description"},
					"project_id": {"type": "string", "description": "Id of the owning project"}
				},
				"required": ["name", "project_id"]
			}`),
			t.logger, t.handleAdd),

		newTool("update_project_environment",
			"Update fields of an environment identified by name and project.",
			json.RawMessage(`{
				"type": "object",
				"properties": {
					"environment_name": {"type": "string", "description": "Name of the environment to update"},
					"project_id": {"type": "string", "description": "Id of the owning project"},
					"updates": {
						"type": "object",
						"properties": {
							"name": {"type": "string"},
							"description": {"type": "string"}
						}
					}
				},
				"required": ["environment_name", "project_id", "updates"]
			}`),
			t.logger, t.handleUpdate),

		newTool("remove_project_environment",
			"Remove an environment from a project by name.",
			json.RawMessage(`{
				"type": "object",
				"properties": {
					"name": {"type": "string", "description": "Name of the environment to remove"},
					"project_id": {"type": "string", "description": "Id of the owning project"}
				},
				"required": ["name", "project_id"]
			}`),
			t.logger, t.handleRemove),

		newTool("get_project_environment_by_name",
			"Find an environment by name within a project.",
			json.RawMessage(`{
				"type": "object",
				"properties": {
					"name": {"type": "string", "description": "Name of the environment to find"},
					"project_id": {"type": "string", "description": "Id of the owning project"}
				},
				"required": ["name", "project_id"]
			}`),
			t.logger, t.handleGetByName),

		newTool("get_environments_for_project",
			"List the environments of one project.",
			json.RawMessage(`{
				"type": "object",
				"properties": {
					"project_id": {"type": "string", "description": "Id of the project"}
				},
				"required": ["project_id"]
			}`),
			t.logger, t.handleForProject),
	}
}

type envListParams struct{}

func (t *EnvironmentTools) handleList(ctx context.Context, _ trace.Span, _ envListParams) (any, error) {
	envs, err := t.store.ListEnvironments(ctx)
	if err != nil {
		return nil, err
	}
	if envs == nil {
		envs = []domain.Environment{}
	}
	return envs, nil
}

type addEnvParams struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ProjectID   string `json:"project_id"`
}

func (t *EnvironmentTools) handleAdd(ctx context.Context, _ trace.Span, p addEnvParams) (any, error) {
	if err := RequireField("name", p.Name); err != nil {
		return nil, err
	}
	if err := RequireField("project_id", p.ProjectID); err != nil {
		return nil, err
	}

	env, err := t.store.AddEnvironment(ctx, p.Name, p.Description, p.ProjectID)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return ErrResult("Environment with name '%s' already exists for this project", p.Name)
		}
		if errors.Is(err, domain.ErrNotFound) {
			return ErrResult("Project with id '%s' not found", p.ProjectID)
		}
		return nil, err
	}

	publishToolEvent(ctx, t.bus, domain.EventEnvironmentCreated, env)
	return map[string]any{
		"success":     true,
		"message":     fmt.Sprintf("Environment '%s' added successfully to project", p.Name),
		"environment": env,
	}, nil
}

type updateEnvParams struct {
	EnvironmentName string                  `json:"environment_name"`
	ProjectID       string                  `json:"project_id"`
	Updates         domain.EnvironmentPatch `json:"updates"`
}

func (t *EnvironmentTools) handleUpdate(ctx context.Context, _ trace.Span, p updateEnvParams) (any, error) {
	if err := RequireField("environment_name", p.EnvironmentName); err != nil {
		return nil, err
	}
	if err := RequireField("project_id", p.ProjectID); err != nil {
		return nil, err
	}
	fields := p.Updates.Fields()
	if len(fields) == 0 {
		return ErrResult("no updatable fields in 'updates'")
	}

	env, err := t.store.UpdateEnvironment(ctx, p.EnvironmentName, p.ProjectID, p.Updates)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrResult("Environment with name '%s' not found for the specified project", p.EnvironmentName)
		}
		if errors.Is(err, domain.ErrDuplicate) {
			return ErrResult("Environment with name '%s' already exists for this project", *p.Updates.Name)
		}
		return nil, err
	}

	publishToolEvent(ctx, t.bus, domain.EventEnvironmentUpdated, env)
	return map[string]any{
		"success":        true,
		"message":        fmt.Sprintf("Environment '%s' updated successfully. Updated fields: %s", p.EnvironmentName, strings.Join(fields, ", ")),
		"updated_fields": fields,
	}, nil
}

type removeEnvParams struct {
	Name      string `json:"name"`
	ProjectID string `json:"project_id"`
}

func (t *EnvironmentTools) handleRemove(ctx context.Context, _ trace.Span, p removeEnvParams) (any, error) {
	if err := RequireField("name", p.Name); err != nil {
		return nil, err
	}
	if err := RequireField("project_id", p.ProjectID); err != nil {
		return nil, err
	}

	if err := t.store.RemoveEnvironment(ctx, p.Name, p.ProjectID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrResult("Environment with name '%s' not found for the specified project", p.Name)
		}
		return nil, err
	}

	publishToolEvent(ctx, t.bus, domain.EventEnvironmentRemoved, map[string]string{
		"name":       p.Name,
		"project_id": p.ProjectID,
	})
	return map[string]any{
		"success": true,
		"message": fmt.Sprintf("Environment '%s' removed successfully from project", p.Name),
	}, nil
}

type getEnvParams struct {
	Name      string `json:"name"`
	ProjectID string `json:"project_id"`
}

func (t *EnvironmentTools) handleGetByName(ctx context.Context, _ trace.Span, p getEnvParams) (any, error) {
	if err := RequireField("name", p.Name); err != nil {
		return nil, err
	}
	if err := RequireField("project_id", p.ProjectID); err != nil {
		return nil, err
	}

	env, err := t.store.GetEnvironmentByName(ctx, p.Name, p.ProjectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrResult("Environment with name '%s' not found for the specified project", p.Name)
		}
		return nil, err
	}
	return map[string]any{
		"success":     true,
		"message":     fmt.Sprintf("Environment '%s' found", p.Name),
		"environment": env,
	}, nil
}

type envsForProjectParams struct {
	ProjectID string `json:"project_id"`
}

func (t *EnvironmentTools) handleForProject(ctx context.Context, _ trace.Span, p envsForProjectParams) (any, error) {
	if err := RequireField("project_id", p.ProjectID); err != nil {
		return nil, err
	}

	envs, err := t.store.EnvironmentsForProject(ctx, p.ProjectID)
	if err != nil {
		return nil, err
	}
	if envs == nil {
		envs = []domain.Environment{}
	}
	return map[string]any{
		"success":      true,
		"message":      fmt.Sprintf("Found %d environments for project", len(envs)),
		"environments": envs,
	}, nil
}
