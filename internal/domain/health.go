package domain

// ErrorType tags a failed probe with a machine-parseable category so callers
// can branch without parsing the message.
type ErrorType string

const (
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeConnection ErrorType = "connection_error"
	ErrorTypeRequest    ErrorType = "request_error"
	ErrorTypeUnknown    ErrorType = "unknown_error"
)

// HealthDetails carries the structured sub-fields commonly found in health
// endpoint responses.
type HealthDetails struct {
	Checks       map[string]any `json:"checks,omitempty"`
	Dependencies map[string]any `json:"dependencies,omitempty"`
	Services     map[string]any `json:"services,omitempty"`
	Version      any            `json:"version,omitempty"`
	Uptime       any            `json:"uptime,omitempty"`
	Timestamp    any            `json:"timestamp,omitempty"`
}

// CheckResult is the structured outcome of a single health check.
// Every probe path produces one of these; nothing is raised past the tool
// boundary as an error.
type CheckResult struct {
	Success        bool              `json:"success"`
	ServiceName    string            `json:"service_name,omitempty"`
	ProjectName    string            `json:"project_name,omitempty"`
	EnvName        string            `json:"env_name,omitempty"`
	ProjectID      string            `json:"project_id,omitempty"`
	EnvID          string            `json:"env_id,omitempty"`
	EndpointURL    string            `json:"endpoint_url,omitempty"`
	IsHealthy      bool              `json:"is_healthy"`
	StatusCode     int               `json:"status_code,omitempty"`
	ResponseTimeMS float64           `json:"response_time_ms,omitempty"`
	HealthData     map[string]any    `json:"health_data,omitempty"`
	HealthDetails  *HealthDetails    `json:"health_details,omitempty"`
	Message        string            `json:"message"`
	ResponseHeader map[string]string `json:"response_headers,omitempty"`
	ResponseBody   string            `json:"response_body,omitempty"`
	ErrorType      ErrorType         `json:"error_type,omitempty"`
	TimeoutSec     int               `json:"timeout,omitempty"`
}

// AliveResult is the outcome of a binary liveness probe: any 2xx response
// means alive, no body inspection.
type AliveResult struct {
	Success        bool              `json:"success"`
	ServiceName    string            `json:"service_name,omitempty"`
	ProjectName    string            `json:"project_name,omitempty"`
	EnvName        string            `json:"env_name,omitempty"`
	EndpointURL    string            `json:"endpoint_url,omitempty"`
	IsAlive        bool              `json:"is_alive"`
	StatusCode     int               `json:"status_code,omitempty"`
	ResponseTimeMS float64           `json:"response_time_ms,omitempty"`
	Message        string            `json:"message"`
	ResponseHeader map[string]string `json:"response_headers,omitempty"`
	ResponseBody   string            `json:"response_body,omitempty"`
	ErrorType      ErrorType         `json:"error_type,omitempty"`
	TimeoutSec     int               `json:"timeout,omitempty"`
}

// SweepResult rolls up health checks across all services in a project or
// environment.
type SweepResult struct {
	Success           bool          `json:"success"`
	ProjectID         string        `json:"project_id"`
	EnvID             string        `json:"env_id,omitempty"`
	ServicesChecked   int           `json:"services_checked"`
	ServicesHealthy   int           `json:"services_healthy"`
	ServicesUnhealthy int           `json:"services_unhealthy"`
	// OverallHealth is healthy/checked in [0,1]; 0.0 when nothing was checked.
	OverallHealth float64       `json:"overall_health"`
	Results       []CheckResult `json:"results"`
	Message       string        `json:"message"`
}
