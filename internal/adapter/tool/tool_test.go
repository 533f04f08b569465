package tool

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"service-ninja/internal/domain"
	"service-ninja/internal/infra/config"
	"service-ninja/internal/store"
	"service-ninja/internal/usecase/health"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openStore(t *testing.T) domain.Store {
	t.Helper()
	s, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// newTestRegistry registers every tool set over a fresh file store and
// returns both so tests can seed data directly.
func newTestRegistry(t *testing.T) (*Registry, domain.Store) {
	t.Helper()
	s := openStore(t)
	logger := testLogger()

	checker := health.NewChecker(s, config.Default().Probe, logger, nil)
	sweeper := health.NewSweeper(s, checker, config.Default().Sweep, logger, nil)

	reg := NewRegistry(logger)
	for _, set := range [][]domain.Tool{
		NewProjectTools(s, nil, logger).Tools(),
		NewEnvironmentTools(s, nil, logger).Tools(),
		NewServiceTools(s, nil, logger).Tools(),
		NewHealthTools(checker, sweeper, logger).Tools(),
		NewDateTools(logger).Tools(),
	} {
		for _, tl := range set {
			if err := reg.Register(tl); err != nil {
				t.Fatalf("Register %s: %v", tl.Name(), err)
			}
		}
	}
	return reg, s
}

func callTool(t *testing.T, reg *Registry, name, params string) *domain.ToolResult {
	t.Helper()
	tl, err := reg.Get(name)
	if err != nil {
		t.Fatalf("Get %s: %v", name, err)
	}
	res, err := tl.Execute(context.Background(), json.RawMessage(params))
	if err != nil {
		t.Fatalf("Execute %s: %v", name, err)
	}
	return res
}

func decodeContent(t *testing.T, res *domain.ToolResult) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal([]byte(res.Content), &out); err != nil {
		t.Fatalf("decode content %q: %v", res.Content, err)
	}
	return out
}

func TestRegistryRegistersAllTools(t *testing.T) {
	reg, _ := newTestRegistry(t)

	tools := reg.List()
	if len(tools) != 26 {
		t.Fatalf("registered tools = %d, want 26", len(tools))
	}
	for i := 1; i < len(tools); i++ {
		if tools[i-1].Name() >= tools[i].Name() {
			t.Fatalf("List not sorted: %q before %q", tools[i-1].Name(), tools[i].Name())
		}
	}
	schemas := reg.Schemas()
	if len(schemas) != len(tools) {
		t.Fatalf("Schemas = %d, want %d", len(schemas), len(tools))
	}
	for _, sc := range schemas {
		if len(sc.Parameters) == 0 {
			t.Errorf("tool %s has empty parameters schema", sc.Name)
		}
	}
}

func TestRegistryDuplicateAndMissing(t *testing.T) {
	reg := NewRegistry(testLogger())
	set := NewDateTools(testLogger()).Tools()
	if err := reg.Register(set[0]); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(set[0]); err == nil {
		t.Fatal("duplicate Register succeeded, want error")
	}
	_, err := reg.Get("no_such_tool")
	if !errors.Is(err, domain.ErrToolNotFound) {
		t.Fatalf("Get unknown tool err = %v, want ErrToolNotFound", err)
	}
}

func TestSchemaValidationRejectsMissingRequired(t *testing.T) {
	reg, _ := newTestRegistry(t)

	res := callTool(t, reg, "add_project", `{"description": "no name"}`)
	if !res.IsError {
		t.Fatal("add_project without name succeeded, want schema error")
	}
	if !strings.Contains(res.Content, "schema validation failed") {
		t.Fatalf("content = %q, want schema validation failure", res.Content)
	}
}

func TestInvalidParamsJSON(t *testing.T) {
	reg, _ := newTestRegistry(t)

	res := callTool(t, reg, "add_project", `{"name": `)
	if !res.IsError {
		t.Fatal("malformed params accepted")
	}
}

func TestProjectToolLifecycle(t *testing.T) {
	reg, _ := newTestRegistry(t)

	res := callTool(t, reg, "add_project", `{"name": "Alpha", "description": "first"}`)
	if res.IsError {
		t.Fatalf("add_project failed: %s", res.Content)
	}
	body := decodeContent(t, res)
	if body["message"] != "Project 'Alpha' added successfully" {
		t.Fatalf("message = %v", body["message"])
	}

	res = callTool(t, reg, "add_project", `{"name": "alpha"}`)
	if !res.IsError || !strings.Contains(res.Content, "already exists") {
		t.Fatalf("duplicate add = %+v, want already-exists error", res)
	}

	res = callTool(t, reg, "get_project_by_name", `{"name": "Alpha"}`)
	body = decodeContent(t, res)
	project := body["project"].(map[string]any)
	projectID := project["id"].(string)
	if projectID == "" {
		t.Fatal("project id empty")
	}

	res = callTool(t, reg, "update_project", `{"project_name": "Alpha", "updates": {"description": "updated"}}`)
	body = decodeContent(t, res)
	if !strings.Contains(body["message"].(string), "Updated fields: description") {
		t.Fatalf("update message = %v", body["message"])
	}

	res = callTool(t, reg, "update_project", `{"project_name": "Alpha", "updates": {}}`)
	if !res.IsError || !strings.Contains(res.Content, "no updatable fields") {
		t.Fatalf("empty update = %+v", res)
	}

	res = callTool(t, reg, "remove_project", `{"name": "Alpha"}`)
	if res.IsError {
		t.Fatalf("remove_project failed: %s", res.Content)
	}
	res = callTool(t, reg, "get_project_by_name", `{"name": "Alpha"}`)
	if !res.IsError || !strings.Contains(res.Content, "not found") {
		t.Fatalf("get after remove = %+v", res)
	}
}

func TestEnvironmentTools(t *testing.T) {
	reg, s := newTestRegistry(t)
	ctx := context.Background()

	p, err := s.AddProject(ctx, "Billing", "")
	if err != nil {
		t.Fatalf("AddProject: %v", err)
	}

	res := callTool(t, reg, "add_project_environment", `{"name": "prod", "project_id": "`+p.ID+`"}`)
	if res.IsError {
		t.Fatalf("add environment failed: %s", res.Content)
	}
	res = callTool(t, reg, "add_project_environment", `{"name": "PROD", "project_id": "`+p.ID+`"}`)
	if !res.IsError || !strings.Contains(res.Content, "already exists for this project") {
		t.Fatalf("duplicate env = %+v", res)
	}

	res = callTool(t, reg, "get_environments_for_project", `{"project_id": "`+p.ID+`"}`)
	body := decodeContent(t, res)
	if body["message"] != "Found 1 environments for project" {
		t.Fatalf("message = %v", body["message"])
	}

	res = callTool(t, reg, "update_project_environment",
		`{"environment_name": "prod", "project_id": "`+p.ID+`", "updates": {"description": "live"}}`)
	body = decodeContent(t, res)
	if !strings.Contains(body["message"].(string), "updated successfully") {
		t.Fatalf("update message = %v", body["message"])
	}

	res = callTool(t, reg, "remove_project_environment", `{"name": "prod", "project_id": "`+p.ID+`"}`)
	body = decodeContent(t, res)
	if body["message"] != "Environment 'prod' removed successfully from project" {
		t.Fatalf("remove message = %v", body["message"])
	}

	res = callTool(t, reg, "get_project_environment_by_name", `{"name": "prod", "project_id": "`+p.ID+`"}`)
	if !res.IsError || !strings.Contains(res.Content, "not found for the specified project") {
		t.Fatalf("get after remove = %+v", res)
	}
}

func TestServiceTools(t *testing.T) {
	reg, s := newTestRegistry(t)
	ctx := context.Background()

	p, err := s.AddProject(ctx, "Billing", "")
	if err != nil {
		t.Fatalf("AddProject: %v", err)
	}

	res := callTool(t, reg, "add_service", `{"name": "api", "project_id": "`+p.ID+`"}`)
	if !res.IsError || !strings.Contains(res.Content, "Please create environments first") {
		t.Fatalf("add without envs = %+v", res)
	}

	if _, err := s.AddEnvironment(ctx, "prod", "", p.ID); err != nil {
		t.Fatalf("AddEnvironment: %v", err)
	}
	env2, err := s.AddEnvironment(ctx, "staging", "", p.ID)
	if err != nil {
		t.Fatalf("AddEnvironment: %v", err)
	}

	res = callTool(t, reg, "add_service", `{"name": "api", "project_id": "`+p.ID+`"}`)
	body := decodeContent(t, res)
	if body["message"] != "Service 'api' added successfully to project with 2 instances (one per environment)" {
		t.Fatalf("add message = %v", body["message"])
	}

	res = callTool(t, reg, "update_service",
		`{"service_name": "api", "project_id": "`+p.ID+`", "env_id": "`+env2.ID+`", "updates": {"health_check_url": "http://svc/health"}}`)
	body = decodeContent(t, res)
	if !strings.Contains(body["message"].(string), "Updated fields: health_check_url") {
		t.Fatalf("update message = %v", body["message"])
	}
	svc, err := s.FindService(ctx, "api", p.ID, env2.ID)
	if err != nil {
		t.Fatalf("FindService: %v", err)
	}
	if svc.HealthCheckURL != "http://svc/health" {
		t.Fatalf("health url = %q", svc.HealthCheckURL)
	}

	res = callTool(t, reg, "get_services_for_project", `{"project_id": "`+p.ID+`"}`)
	body = decodeContent(t, res)
	if body["message"] != "Found 2 services for project" {
		t.Fatalf("list message = %v", body["message"])
	}

	res = callTool(t, reg, "remove_service", `{"name": "API", "project_id": "`+p.ID+`"}`)
	body = decodeContent(t, res)
	if body["message"] != "Service 'API' removed successfully from project" {
		t.Fatalf("remove message = %v", body["message"])
	}
	res = callTool(t, reg, "get_service_by_name", `{"name": "api", "project_id": "`+p.ID+`"}`)
	if !res.IsError {
		t.Fatal("service still present after remove")
	}
}

func TestHealthToolsProbe(t *testing.T) {
	reg, s := newTestRegistry(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	}))
	defer srv.Close()

	p, err := s.AddProject(ctx, "Payments", "")
	if err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	env, err := s.AddEnvironment(ctx, "prod", "", p.ID)
	if err != nil {
		t.Fatalf("AddEnvironment: %v", err)
	}
	if _, err := s.AddService(ctx, "api", "", p.ID); err != nil {
		t.Fatalf("AddService: %v", err)
	}
	url := srv.URL + "/health"
	if _, err := s.UpdateService(ctx, "api", p.ID, env.ID, domain.ServicePatch{HealthCheckURL: &url}); err != nil {
		t.Fatalf("UpdateService: %v", err)
	}

	res := callTool(t, reg, "check_service_health",
		`{"service_name": "api", "project_id": "`+p.ID+`", "env_id": "`+env.ID+`"}`)
	if res.IsError {
		t.Fatalf("check_service_health errored: %s", res.Content)
	}
	body := decodeContent(t, res)
	if body["is_healthy"] != true {
		t.Fatalf("is_healthy = %v, content: %s", body["is_healthy"], res.Content)
	}

	res = callTool(t, reg, "check_all_services_health_in_project", `{"project_id": "`+p.ID+`"}`)
	body = decodeContent(t, res)
	if body["services_checked"] != float64(1) || body["services_healthy"] != float64(1) {
		t.Fatalf("sweep roll-up = %s", res.Content)
	}

	res = callTool(t, reg, "check_service_alive",
		`{"service_name": "api", "project_id": "`+p.ID+`", "env_id": "`+env.ID+`"}`)
	body = decodeContent(t, res)
	if body["is_alive"] != true {
		t.Fatalf("is_alive = %v, content: %s", body["is_alive"], res.Content)
	}
}

func TestDateTools(t *testing.T) {
	reg, _ := newTestRegistry(t)

	res := callTool(t, reg, "calculate_relative_date",
		`{"expression": "in 3 days", "reference_date": "2025-12-09"}`)
	body := decodeContent(t, res)
	if body["target_date"] != "2025-12-12" {
		t.Fatalf("target_date = %v", body["target_date"])
	}

	res = callTool(t, reg, "get_business_days_between",
		`{"start_date": "2025-12-09", "end_date": "2025-12-12"}`)
	body = decodeContent(t, res)
	if body["business_days"] != float64(4) {
		t.Fatalf("business_days = %v, content: %s", body["business_days"], res.Content)
	}

	res = callTool(t, reg, "format_date_range",
		`{"start_date": "2025-12-09", "end_date": "2025-12-12"}`)
	body = decodeContent(t, res)
	if body["medium_format"] != "Dec 09 - Dec 12, 2025" {
		t.Fatalf("medium_format = %v", body["medium_format"])
	}

	res = callTool(t, reg, "calculate_relative_date", `{"expression": ""}`)
	if !res.IsError {
		t.Fatal("empty expression accepted")
	}

	res = callTool(t, reg, "get_current_date", `{}`)
	body = decodeContent(t, res)
	if body["current_date"] == "" || body["day_of_week"] == "" {
		t.Fatalf("current date content = %s", res.Content)
	}
}
