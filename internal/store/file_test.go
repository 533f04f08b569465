package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"service-ninja/internal/domain"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s
}

func strPtr(s string) *string { return &s }

func TestFileStoreProjectRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	created, err := s.AddProject(ctx, "Payments", "payment rails")
	if err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated id")
	}

	// Lookup is case-insensitive.
	got, err := s.GetProjectByName(ctx, "payments")
	if err != nil {
		t.Fatalf("GetProjectByName: %v", err)
	}
	if got.ID != created.ID || got.Description != "payment rails" {
		t.Fatalf("got %+v, want %+v", got, created)
	}

	// Records survive a reopen.
	reopened, err := NewFileStore(s.dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err = reopened.GetProjectByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetProjectByID after reopen: %v", err)
	}
	if got.Name != "Payments" {
		t.Fatalf("name = %q after reopen", got.Name)
	}
}

func TestFileStoreDuplicateProjectName(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.AddProject(ctx, "Payments", ""); err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	_, err := s.AddProject(ctx, "PAYMENTS", "differs only in case")
	if !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}

	// The failed add must not have left a record behind.
	projects, err := s.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("got %d projects, want 1", len(projects))
	}
}

func TestFileStoreUpdateProjectPartial(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	created, err := s.AddProject(ctx, "Payments", "old description")
	if err != nil {
		t.Fatalf("AddProject: %v", err)
	}

	updated, err := s.UpdateProject(ctx, "payments", domain.ProjectPatch{
		Description: strPtr("new description"),
	})
	if err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	if updated.Name != "Payments" {
		t.Fatalf("name changed to %q, want untouched", updated.Name)
	}
	if updated.Description != "new description" {
		t.Fatalf("description = %q", updated.Description)
	}
	if updated.ID != created.ID {
		t.Fatalf("id changed across update")
	}

	// Renaming onto another project's name is rejected.
	if _, err := s.AddProject(ctx, "Billing", ""); err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	_, err = s.UpdateProject(ctx, "Payments", domain.ProjectPatch{Name: strPtr("billing")})
	if !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("want ErrDuplicate on rename clash, got %v", err)
	}
}

func TestFileStoreRemoveProjectCascade(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p, err := s.AddProject(ctx, "Payments", "")
	if err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	other, err := s.AddProject(ctx, "Billing", "")
	if err != nil {
		t.Fatalf("AddProject: %v", err)
	}

	for _, name := range []string{"dev", "staging", "prod"} {
		if _, err := s.AddEnvironment(ctx, name, "", p.ID); err != nil {
			t.Fatalf("AddEnvironment(%s): %v", name, err)
		}
	}
	if _, err := s.AddEnvironment(ctx, "prod", "", other.ID); err != nil {
		t.Fatalf("AddEnvironment(other): %v", err)
	}

	// Each service materializes once per environment: 2 services x 3 envs.
	for _, name := range []string{"api", "worker"} {
		if _, err := s.AddService(ctx, name, "", p.ID); err != nil {
			t.Fatalf("AddService(%s): %v", name, err)
		}
	}
	if _, err := s.AddService(ctx, "api", "", other.ID); err != nil {
		t.Fatalf("AddService(other): %v", err)
	}

	result, err := s.RemoveProject(ctx, "payments")
	if err != nil {
		t.Fatalf("RemoveProject: %v", err)
	}
	if result.EnvironmentsRemoved != 3 {
		t.Errorf("EnvironmentsRemoved = %d, want 3", result.EnvironmentsRemoved)
	}
	if result.ServicesRemoved != 6 {
		t.Errorf("ServicesRemoved = %d, want 6", result.ServicesRemoved)
	}

	// The other project is untouched.
	envs, err := s.EnvironmentsForProject(ctx, other.ID)
	if err != nil {
		t.Fatalf("EnvironmentsForProject: %v", err)
	}
	if len(envs) != 1 {
		t.Errorf("other project has %d envs, want 1", len(envs))
	}
	services, err := s.ServicesForProject(ctx, other.ID)
	if err != nil {
		t.Fatalf("ServicesForProject: %v", err)
	}
	if len(services) != 1 {
		t.Errorf("other project has %d services, want 1", len(services))
	}

	if _, err := s.GetProjectByName(ctx, "Payments"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("project still resolvable after remove: %v", err)
	}
}

func TestFileStoreRemoveMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.RemoveProject(ctx, "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("RemoveProject: want ErrNotFound, got %v", err)
	}
	if err := s.RemoveEnvironment(ctx, "ghost", "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("RemoveEnvironment: want ErrNotFound, got %v", err)
	}
	if err := s.RemoveService(ctx, "ghost", "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("RemoveService: want ErrNotFound, got %v", err)
	}
}

func TestFileStoreAddServiceRequiresEnvironment(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p, err := s.AddProject(ctx, "Payments", "")
	if err != nil {
		t.Fatalf("AddProject: %v", err)
	}

	_, err = s.AddService(ctx, "api", "", p.ID)
	if !errors.Is(err, domain.ErrNoEnvs) {
		t.Fatalf("want ErrNoEnvs, got %v", err)
	}

	_, err = s.AddService(ctx, "api", "", "missing-project")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound for missing project, got %v", err)
	}
}

func TestFileStoreServicePerEnvironment(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p, err := s.AddProject(ctx, "Payments", "")
	if err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	dev, err := s.AddEnvironment(ctx, "dev", "", p.ID)
	if err != nil {
		t.Fatalf("AddEnvironment: %v", err)
	}
	prod, err := s.AddEnvironment(ctx, "prod", "", p.ID)
	if err != nil {
		t.Fatalf("AddEnvironment: %v", err)
	}

	created, err := s.AddService(ctx, "api", "gateway", p.ID)
	if err != nil {
		t.Fatalf("AddService: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created %d records, want one per environment", len(created))
	}

	// Each env record is independently updatable.
	updated, err := s.UpdateService(ctx, "api", p.ID, prod.ID, domain.ServicePatch{
		HealthCheckURL: strPtr("https://prod.example.com/health"),
	})
	if err != nil {
		t.Fatalf("UpdateService: %v", err)
	}
	if updated.HealthCheckURL != "https://prod.example.com/health" {
		t.Fatalf("HealthCheckURL = %q", updated.HealthCheckURL)
	}

	devRec, err := s.FindService(ctx, "api", p.ID, dev.ID)
	if err != nil {
		t.Fatalf("FindService(dev): %v", err)
	}
	if devRec.HealthCheckURL != "" {
		t.Fatalf("dev record picked up prod URL %q", devRec.HealthCheckURL)
	}

	// Remove drops every env record of the logical service.
	if err := s.RemoveService(ctx, "API", p.ID); err != nil {
		t.Fatalf("RemoveService: %v", err)
	}
	services, err := s.ServicesForProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("ServicesForProject: %v", err)
	}
	if len(services) != 0 {
		t.Fatalf("got %d records after remove, want 0", len(services))
	}
}

func TestFileStoreConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.AddProject(ctx, fmt.Sprintf("project-%d", i), "")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("AddProject(%d): %v", i, err)
		}
	}

	// No record lost in memory or on disk.
	projects, err := s.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(projects) != n {
		t.Fatalf("got %d projects in memory, want %d", len(projects), n)
	}
	reopened, err := NewFileStore(s.dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	projects, err = reopened.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects after reopen: %v", err)
	}
	if len(projects) != n {
		t.Fatalf("got %d projects on disk, want %d", len(projects), n)
	}
}

func TestFileStoreRejectsInvalidRecords(t *testing.T) {
	dir := t.TempDir()
	bad := `[{"id": "", "name": "orphan"}]`
	if err := os.WriteFile(filepath.Join(dir, projectsFile), []byte(bad), 0600); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	_, err := NewFileStore(dir)
	if !errors.Is(err, domain.ErrSchema) {
		t.Fatalf("want ErrSchema, got %v", err)
	}
}

func TestFileStoreRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, servicesFile), []byte("{not json"), 0600); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	if _, err := NewFileStore(dir); err == nil {
		t.Fatal("expected parse error for malformed file")
	}
}
