package domain

import "strings"

// Project is the top-level grouping entity owning environments and services.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Validate checks the record at the deserialization boundary.
func (p Project) Validate() error {
	if p.ID == "" {
		return NewDomainError("Project.Validate", ErrSchema, "missing id")
	}
	if p.Name == "" {
		return NewDomainError("Project.Validate", ErrSchema, "missing name")
	}
	return nil
}

// Environment is a named deployment context (e.g. "prod") scoped to one project.
type Environment struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ProjectID   string `json:"project_id"`
}

func (e Environment) Validate() error {
	if e.ID == "" {
		return NewDomainError("Environment.Validate", ErrSchema, "missing id")
	}
	if e.Name == "" {
		return NewDomainError("Environment.Validate", ErrSchema, "missing name")
	}
	if e.ProjectID == "" {
		return NewDomainError("Environment.Validate", ErrSchema, "missing project_id")
	}
	return nil
}

// Service is a monitorable unit with optional probe endpoints. A logical
// service is materialized as one record per environment of its project, each
// independently addressable by (name, project_id, env_id).
type Service struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	ProjectID      string `json:"project_id"`
	EnvID          string `json:"env_id,omitempty"`
	HealthCheckURL string `json:"health_check_url,omitempty"`
	AliveCheckURL  string `json:"alive_check_url,omitempty"`
	// APIKey is sent as an "apikey" header on probes. Values with an "enc:"
	// prefix are AES-GCM encrypted at rest.
	APIKey string `json:"apikey,omitempty"`
}

func (s Service) Validate() error {
	if s.ID == "" {
		return NewDomainError("Service.Validate", ErrSchema, "missing id")
	}
	if s.Name == "" {
		return NewDomainError("Service.Validate", ErrSchema, "missing name")
	}
	if s.ProjectID == "" {
		return NewDomainError("Service.Validate", ErrSchema, "missing project_id")
	}
	return nil
}

// ProbeURL returns the endpoint to probe for health checks: the health check
// URL when configured, otherwise the alive check URL. Empty when neither is set.
func (s Service) ProbeURL() string {
	if s.HealthCheckURL != "" {
		return s.HealthCheckURL
	}
	return s.AliveCheckURL
}

// NameEqual compares entity names the way the store scopes them:
// case-insensitively.
func NameEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}
