package domain

import "context"

// ProjectPatch holds optional fields for a partial project update.
// Nil fields are left unchanged.
type ProjectPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// EnvironmentPatch holds optional fields for a partial environment update.
type EnvironmentPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// ServicePatch holds optional fields for a partial service update.
type ServicePatch struct {
	Description    *string `json:"description,omitempty"`
	HealthCheckURL *string `json:"health_check_url,omitempty"`
	AliveCheckURL  *string `json:"alive_check_url,omitempty"`
	APIKey         *string `json:"apikey,omitempty"`
}

// Fields lists the field names a patch would change, for reporting back to
// the caller.
func (p ProjectPatch) Fields() []string {
	var out []string
	if p.Name != nil {
		out = append(out, "name")
	}
	if p.Description != nil {
		out = append(out, "description")
	}
	return out
}

func (p EnvironmentPatch) Fields() []string {
	var out []string
	if p.Name != nil {
		out = append(out, "name")
	}
	if p.Description != nil {
		out = append(out, "description")
	}
	return out
}

func (p ServicePatch) Fields() []string {
	var out []string
	if p.Description != nil {
		out = append(out, "description")
	}
	if p.HealthCheckURL != nil {
		out = append(out, "health_check_url")
	}
	if p.AliveCheckURL != nil {
		out = append(out, "alive_check_url")
	}
	if p.APIKey != nil {
		out = append(out, "apikey")
	}
	return out
}

// CascadeResult reports what a project removal took with it.
type CascadeResult struct {
	EnvironmentsRemoved int `json:"environments_removed"`
	ServicesRemoved     int `json:"services_removed"`
}

// ProjectStore is durable CRUD over the project collection.
type ProjectStore interface {
	ListProjects(ctx context.Context) ([]Project, error)
	AddProject(ctx context.Context, name, description string) (*Project, error)
	// UpdateProject resolves the project by name (case-insensitive), then
	// applies the patch against the record's stable id.
	UpdateProject(ctx context.Context, name string, patch ProjectPatch) (*Project, error)
	// RemoveProject cascades to all environments and services of the project.
	RemoveProject(ctx context.Context, name string) (*CascadeResult, error)
	GetProjectByName(ctx context.Context, name string) (*Project, error)
	GetProjectByID(ctx context.Context, id string) (*Project, error)
}

// EnvironmentStore is durable CRUD over the environment collection.
type EnvironmentStore interface {
	ListEnvironments(ctx context.Context) ([]Environment, error)
	AddEnvironment(ctx context.Context, name, description, projectID string) (*Environment, error)
	UpdateEnvironment(ctx context.Context, name, projectID string, patch EnvironmentPatch) (*Environment, error)
	RemoveEnvironment(ctx context.Context, name, projectID string) error
	GetEnvironmentByName(ctx context.Context, name, projectID string) (*Environment, error)
	GetEnvironmentByID(ctx context.Context, id string) (*Environment, error)
	EnvironmentsForProject(ctx context.Context, projectID string) ([]Environment, error)
}

// ServiceStore is durable CRUD over the service collection.
type ServiceStore interface {
	ListServices(ctx context.Context) ([]Service, error)
	// AddService materializes one record per environment of the project.
	AddService(ctx context.Context, name, description, projectID string) ([]Service, error)
	UpdateService(ctx context.Context, name, projectID, envID string, patch ServicePatch) (*Service, error)
	// RemoveService removes every record of the named service across the
	// project's environments.
	RemoveService(ctx context.Context, name, projectID string) error
	GetServiceByName(ctx context.Context, name, projectID string) (*Service, error)
	GetServiceByID(ctx context.Context, id string) (*Service, error)
	// FindService resolves the single record addressed by the full triple.
	FindService(ctx context.Context, name, projectID, envID string) (*Service, error)
	ServicesForProject(ctx context.Context, projectID string) ([]Service, error)
	ServicesForEnvironment(ctx context.Context, projectID, envID string) ([]Service, error)
}

// Store aggregates the three entity collections behind one handle.
type Store interface {
	ProjectStore
	EnvironmentStore
	ServiceStore
	Close() error
}
