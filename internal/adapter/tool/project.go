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

// ProjectTools expose project CRUD as callable tools.
type ProjectTools struct {
	store  domain.Store
	bus    domain.EventBus
	logger *slog.Logger
}

// NewProjectTools creates the project tool set.
func NewProjectTools(store domain.Store, bus domain.EventBus, logger *slog.Logger) *ProjectTools {
	return &ProjectTools{store: store, bus: bus, logger: logger}
}

// Tools returns every project tool for registration.
func (t *ProjectTools) Tools() []domain.Tool {
	return []domain.Tool{
		newTool("get_projects",
			"List all projects.",
			json.RawMessage(`{
				"type": "object",
				"properties": {}
			}`),
			t.logger, t.handleList),

		newTool("add_project",
			"Add a new project with a generated unique id.",
			json.RawMessage(`{
				"type": "object",
				"properties": {
					"name": {"type": "string", "description": "Project name, unique case-insensitively"},
					"description": {"type": "string", "description": "Free-form project description"}
				},
				"required": ["name"]
			}`),
			t.logger, t.handleAdd),

		newTool("update_project",
			"Update fields of an existing project by name.",
			json.RawMessage(`{
				"type": "object",
				"properties": {
					"project_name": {"type": "string", "description": "Name of the project to update"},
					"updates": {
						"type": "object",
						"properties": {
							"name": {"type": "string"},
							"description": {"type": "string"}
						}
					}
				},
				"required": ["project_name", "updates"]
			}`),
			t.logger, t.handleUpdate),

		newTool("remove_project",
			"Remove a project by name, cascading to its environments and services.",
			json.RawMessage(`{
				"type": "object",
				"properties": {
					"name": {"type": "string", "description": "Name of the project to remove"}
				},
				"required": ["name"]
			}`),
			t.logger, t.handleRemove),

		newTool("get_project_by_name",
			"Find a project by name (case-insensitive).",
			json.RawMessage(`{
				"type": "object",
				"properties": {
					"name": {"type": "string", "description": "Name of the project to find"}
				},
				"required": ["name"]
			}`),
			t.logger, t.handleGetByName),
	}
}

type projectListParams struct{}

func (t *ProjectTools) handleList(ctx context.Context, _ trace.Span, _ projectListParams) (any, error) {
	projects, err := t.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []domain.Project{}
	}
	return projects, nil
}

type addProjectParams struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (t *ProjectTools) handleAdd(ctx context.Context, _ trace.Span, p addProjectParams) (any, error) {
	if err := RequireField("name", p.Name); err != nil {
		return nil, err
	}

	project, err := t.store.AddProject(ctx, p.Name, p.Description)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return ErrResult("Project with name '%s' already exists", p.Name)
		}
		return nil, err
	}

	publishToolEvent(ctx, t.bus, domain.EventProjectCreated, project)
	return map[string]any{
		"success": true,
		"message": fmt.Sprintf("Project '%s' added successfully", p.Name),
		"project": project,
	}, nil
}

type updateProjectParams struct {
	ProjectName string              `json:"project_name"`
	Updates     domain.ProjectPatch `json:"updates"`
}

func (t *ProjectTools) handleUpdate(ctx context.Context, _ trace.Span, p updateProjectParams) (any, error) {
	if err := RequireField("project_name", p.ProjectName); err != nil {
		return nil, err
	}
	fields := p.Updates.Fields()
	if len(fields) == 0 {
		return ErrResult("no updatable fields in 'updates'")
	}

	project, err := t.store.UpdateProject(ctx, p.ProjectName, p.Updates)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrResult("Project with name '%s' not found", p.ProjectName)
		}
		if errors.Is(err, domain.ErrDuplicate) {
			return ErrResult("Project with name '%s' already exists", *p.Updates.Name)
		}
		return nil, err
	}

	publishToolEvent(ctx, t.bus, domain.EventProjectUpdated, project)
	return map[string]any{
		"success":        true,
		"message":        fmt.Sprintf("Project '%s' updated successfully. Updated fields: %s", p.ProjectName, strings.Join(fields, ", ")),
		"updated_fields": fields,
	}, nil
}

type removeProjectParams struct {
	Name string `json:"name"`
}

func (t *ProjectTools) handleRemove(ctx context.Context, _ trace.Span, p removeProjectParams) (any, error) {
	if err := RequireField("name", p.Name); err != nil {
		return nil, err
	}

	cascade, err := t.store.RemoveProject(ctx, p.Name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrResult("Project with name '%s' not found", p.Name)
		}
		return nil, err
	}

	message := fmt.Sprintf("Project '%s' removed successfully", p.Name)
	var details []string
	if cascade.EnvironmentsRemoved > 0 {
		details = append(details, fmt.Sprintf("%d environment(s)", cascade.EnvironmentsRemoved))
	}
	if cascade.ServicesRemoved > 0 {
		details = append(details, fmt.Sprintf("%d service(s)", cascade.ServicesRemoved))
	}
	if len(details) > 0 {
		message += " along with " + strings.Join(details, ", ")
	}

	publishToolEvent(ctx, t.bus, domain.EventProjectRemoved, map[string]any{
		"name":    p.Name,
		"cascade": cascade,
	})
	return map[string]any{
		"success":              true,
		"message":              message,
		"environments_removed": cascade.EnvironmentsRemoved,
		"services_removed":     cascade.ServicesRemoved,
	}, nil
}

type getProjectParams struct {
	Name string `json:"name"`
}

func (t *ProjectTools) handleGetByName(ctx context.Context, _ trace.Span, p getProjectParams) (any, error) {
	if err := RequireField("name", p.Name); err != nil {
		return nil, err
	}

	project, err := t.store.GetProjectByName(ctx, p.Name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrResult("Project with name '%s' not found", p.Name)
		}
		return nil, err
	}
	return map[string]any{
		"success": true,
		"message": fmt.Sprintf("Project '%s' found", p.Name),
		"project": project,
	}, nil
}
