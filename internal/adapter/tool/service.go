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

// ServiceTools expose service CRUD as callable tools. A service is
// materialized as one record per environment of its project, so add and
// remove fan out across environments while update targets a single record.
type ServiceTools struct {
	store  domain.Store
	bus    domain.EventBus
	logger *slog.Logger
}

// NewServiceTools creates the service tool set.
func NewServiceTools(store domain.Store, bus domain.EventBus, logger *slog.Logger) *ServiceTools {
	return &ServiceTools{store: store, bus: bus, logger: logger}
}

// Tools returns every service tool for registration.
func (t *ServiceTools) Tools() []domain.Tool {
	return []domain.Tool{
		newTool("get_services",
			"List all service records across all projects and environments.",
			json.RawMessage(`{
				"type": "object",
				"properties": {}
			}`),
			t.logger, t.handleList),

		newTool("add_service",
			"Add a service to a project, creating one record per environment.",
			json.RawMessage(`{
				"type": "object",
				"properties": {
					"name": {"type": "string", "description": "Service name, unique per project"},
					"description": {"type": "string", "description": "Free-form service description"},
					"project_id": {"type": "string", "description": "Id of the owning project"}
				},
				"required": ["name", "project_id"]
			}`),
			t.logger, t.handleAdd),

		newTool("update_service",
			"Update one service record identified by name, project and environment.",
			json.RawMessage(`{
				"type": "object",
				"properties": {
					"service_name": {"type": "string", "description": "Name of the service to update"},
					"project_id": {"type": "string", "description": "Id of the owning project"},
					"env_id": {"type": "string", "description": "Id of the environment record to update"},
					"updates": {
						"type": "object",
						"properties": {
							"description": {"type": "string"},
							"health_check_url": {"type": "string"},
							"alive_check_url": {"type": "string"},
							"apikey": {"type": "string"}
						}
					}
				},
				"required": ["service_name", "project_id", "env_id", "updates"]
			}`),
			t.logger, t.handleUpdate),

		newTool("remove_service",
			"Remove a service from a project across all its environments.",
			json.RawMessage(`{
				"type": "object",
				"properties": {
					"name": {"type": "string", "description": "Name of the service to remove"},
					"project_id": {"type": "string", "description": "Id of the owning project"}
				},
				"required": ["name", "project_id"]
			}`),
			t.logger, t.handleRemove),

		newTool("get_service_by_name",
			"Find a service by name within a project.",
			json.RawMessage(`{
				"type": "object",
				"properties": {
					"name": {"type": "string", "description": "Name of the service to find"},
					"project_id": {"type": "string", "description": "Id of the owning project"}
				},
				"required": ["name", "project_id"]
			}`),
			t.logger, t.handleGetByName),

		newTool("get_services_for_project",
			"List the service records of one project.",
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

type serviceListParams struct{}

func (t *ServiceTools) handleList(ctx context.Context, _ trace.Span, _ serviceListParams) (any, error) {
	services, err := t.store.ListServices(ctx)
	if err != nil {
		return nil, err
	}
	if services == nil {
		services = []domain.Service{}
	}
	return services, nil
}

type addServiceParams struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ProjectID   string `json:"project_id"`
}

func (t *ServiceTools) handleAdd(ctx context.Context, _ trace.Span, p addServiceParams) (any, error) {
	if err := RequireField("name", p.Name); err != nil {
		return nil, err
	}
	if err := RequireField("project_id", p.ProjectID); err != nil {
		return nil, err
	}

	services, err := t.store.AddService(ctx, p.Name, p.Description, p.ProjectID)
	if err != nil {
		if errors.Is(err, domain.ErrNoEnvs) {
			return ErrResult("No environments found for project. Please create environments first before adding services.")
		}
		if errors.Is(err, domain.ErrDuplicate) {
			return ErrResult("Service with name '%s' already exists for this project", p.Name)
		}
		if errors.Is(err, domain.ErrNotFound) {
			return ErrResult("Project with id '%s' not found", p.ProjectID)
		}
		return nil, err
	}

	publishToolEvent(ctx, t.bus, domain.EventServiceCreated, services)
	return map[string]any{
		"success":  true,
		"message":  fmt.Sprintf("Service '%s' added successfully to project with %d instances (one per environment)", p.Name, len(services)),
		"services": services,
	}, nil
}

type updateServiceParams struct {
	ServiceName string              `json:"service_name"`
	ProjectID   string              `json:"project_id"`
	EnvID       string              `json:"env_id"`
	Updates     domain.ServicePatch `json:"updates"`
}

func (t *ServiceTools) handleUpdate(ctx context.Context, _ trace.Span, p updateServiceParams) (any, error) {
	if err := RequireField("service_name", p.ServiceName); err != nil {
		return nil, err
	}
	if err := RequireField("project_id", p.ProjectID); err != nil {
		return nil, err
	}
	if err := RequireField("env_id", p.EnvID); err != nil {
		return nil, err
	}
	fields := p.Updates.Fields()
	if len(fields) == 0 {
		return ErrResult("no updatable fields in 'updates'")
	}

	svc, err := t.store.UpdateService(ctx, p.ServiceName, p.ProjectID, p.EnvID, p.Updates)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrResult("Service with name '%s' not found for the specified project", p.ServiceName)
		}
		return nil, err
	}

	publishToolEvent(ctx, t.bus, domain.EventServiceUpdated, svc)
	return map[string]any{
		"success":        true,
		"message":        fmt.Sprintf("Service '%s' updated successfully. Updated fields: %s", p.ServiceName, strings.Join(fields, ", ")),
		"updated_fields": fields,
	}, nil
}

type removeServiceParams struct {
	Name      string `json:"name"`
	ProjectID string `json:"project_id"`
}

func (t *ServiceTools) handleRemove(ctx context.Context, _ trace.Span, p removeServiceParams) (any, error) {
	if err := RequireField("name", p.Name); err != nil {
		return nil, err
	}
	if err := RequireField("project_id", p.ProjectID); err != nil {
		return nil, err
	}

	if err := t.store.RemoveService(ctx, p.Name, p.ProjectID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrResult("Service with name '%s' not found for the specified project", p.Name)
		}
		return nil, err
	}

	publishToolEvent(ctx, t.bus, domain.EventServiceRemoved, map[string]string{
		"name":       p.Name,
		"project_id": p.ProjectID,
	})
	return map[string]any{
		"success": true,
		"message": fmt.Sprintf("Service '%s' removed successfully from project", p.Name),
	}, nil
}

type getServiceParams struct {
	Name      string `json:"name"`
	ProjectID string `json:"project_id"`
}

func (t *ServiceTools) handleGetByName(ctx context.Context, _ trace.Span, p getServiceParams) (any, error) {
	if err := RequireField("name", p.Name); err != nil {
		return nil, err
	}
	if err := RequireField("project_id", p.ProjectID); err != nil {
		return nil, err
	}

	svc, err := t.store.GetServiceByName(ctx, p.Name, p.ProjectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrResult("Service with name '%s' not found for the specified project", p.Name)
		}
		return nil, err
	}
	return map[string]any{
		"success": true,
		"message": fmt.Sprintf("Service '%s' found", p.Name),
		"service": svc,
	}, nil
}

type servicesForProjectParams struct {
	ProjectID string `json:"project_id"`
}

func (t *ServiceTools) handleForProject(ctx context.Context, _ trace.Span, p servicesForProjectParams) (any, error) {
	if err := RequireField("project_id", p.ProjectID); err != nil {
		return nil, err
	}

	services, err := t.store.ServicesForProject(ctx, p.ProjectID)
	if err != nil {
		return nil, err
	}
	if services == nil {
		services = []domain.Service{}
	}
	return map[string]any{
		"success":  true,
		"message":  fmt.Sprintf("Found %d services for project", len(services)),
		"services": services,
	}, nil
}
