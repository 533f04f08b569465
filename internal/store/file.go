package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"service-ninja/internal/domain"
)

// Collection file names under the store directory.
const (
	projectsFile     = "projects.json"
	environmentsFile = "environments.json"
	servicesFile     = "services.json"
)

// FileStore implements domain.Store with one JSON array file per entity kind.
// All mutations take the store mutex and rewrite the affected file atomically
// (tmp + rename), so concurrent writers cannot lose records.
type FileStore struct {
	dir string

	mu           sync.RWMutex
	projects     []domain.Project
	environments []domain.Environment
	services     []domain.Service
}

// NewFileStore opens (or creates) the store directory and loads all three
// collections. Records that fail schema validation abort the load.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("store: create dir: %w", err)
	}

	s := &FileStore{dir: dir}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("store: load: %w", err)
	}
	return s, nil
}

// Close implements domain.Store. The file store holds no open handles.
func (s *FileStore) Close() error { return nil }

// --- projects ---

func (s *FileStore) ListProjects(_ context.Context) ([]domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Project, len(s.projects))
	copy(out, s.projects)
	return out, nil
}

func (s *FileStore) AddProject(_ context.Context, name, description string) (*domain.Project, error) {
	const op = "FileStore.AddProject"
	if name == "" {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, "name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.projects {
		if domain.NameEqual(p.Name, name) {
			return nil, domain.NewDomainError(op, domain.ErrDuplicate, name)
		}
	}

	project := domain.Project{ID: newID(), Name: name, Description: description}
	s.projects = append(s.projects, project)
	if err := s.persistProjects(); err != nil {
		s.projects = s.projects[:len(s.projects)-1]
		return nil, domain.WrapOp(op, err)
	}
	return &project, nil
}

func (s *FileStore) UpdateProject(_ context.Context, name string, patch domain.ProjectPatch) (*domain.Project, error) {
	const op = "FileStore.UpdateProject"

	s.mu.Lock()
	defer s.mu.Unlock()

	// Resolve by name, then mutate by stable id so a rename in the patch
	// cannot retarget the write.
	idx := -1
	for i, p := range s.projects {
		if domain.NameEqual(p.Name, name) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, domain.NewDomainError(op, domain.ErrNotFound, name)
	}

	updated := s.projects[idx]
	if patch.Name != nil {
		for i, p := range s.projects {
			if i != idx && domain.NameEqual(p.Name, *patch.Name) {
				return nil, domain.NewDomainError(op, domain.ErrDuplicate, *patch.Name)
			}
		}
		updated.Name = *patch.Name
	}
	if patch.Description != nil {
		updated.Description = *patch.Description
	}

	prev := s.projects[idx]
	s.projects[idx] = updated
	if err := s.persistProjects(); err != nil {
		s.projects[idx] = prev
		return nil, domain.WrapOp(op, err)
	}
	return &updated, nil
}

func (s *FileStore) RemoveProject(_ context.Context, name string) (*domain.CascadeResult, error) {
	const op = "FileStore.RemoveProject"

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, p := range s.projects {
		if domain.NameEqual(p.Name, name) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, domain.NewDomainError(op, domain.ErrNotFound, name)
	}
	projectID := s.projects[idx].ID

	prevProjects, prevEnvs, prevServices := s.projects, s.environments, s.services

	projects := make([]domain.Project, 0, len(s.projects)-1)
	projects = append(projects, s.projects[:idx]...)
	projects = append(projects, s.projects[idx+1:]...)

	var result domain.CascadeResult
	envs := s.environments[:0:0]
	for _, e := range s.environments {
		if e.ProjectID == projectID {
			result.EnvironmentsRemoved++
			continue
		}
		envs = append(envs, e)
	}
	services := s.services[:0:0]
	for _, svc := range s.services {
		if svc.ProjectID == projectID {
			result.ServicesRemoved++
			continue
		}
		services = append(services, svc)
	}

	s.projects, s.environments, s.services = projects, envs, services
	if err := s.persistAll(); err != nil {
		s.projects, s.environments, s.services = prevProjects, prevEnvs, prevServices
		return nil, domain.WrapOp(op, err)
	}
	return &result, nil
}

func (s *FileStore) GetProjectByName(_ context.Context, name string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.projects {
		if domain.NameEqual(p.Name, name) {
			out := p
			return &out, nil
		}
	}
	return nil, domain.NewDomainError("FileStore.GetProjectByName", domain.ErrNotFound, name)
}

func (s *FileStore) GetProjectByID(_ context.Context, id string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.projects {
		if p.ID == id {
			out := p
			return &out, nil
		}
	}
	return nil, domain.NewDomainError("FileStore.GetProjectByID", domain.ErrNotFound, id)
}

// --- environments ---

func (s *FileStore) ListEnvironments(_ context.Context) ([]domain.Environment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Environment, len(s.environments))
	copy(out, s.environments)
	return out, nil
}

func (s *FileStore) AddEnvironment(_ context.Context, name, description, projectID string) (*domain.Environment, error) {
	const op = "FileStore.AddEnvironment"
	if name == "" {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, "name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.projectExistsLocked(projectID) {
		return nil, domain.NewDomainError(op, domain.ErrNotFound, "project "+projectID)
	}
	for _, e := range s.environments {
		if e.ProjectID == projectID && domain.NameEqual(e.Name, name) {
			return nil, domain.NewDomainError(op, domain.ErrDuplicate, name)
		}
	}

	env := domain.Environment{ID: newID(), Name: name, Description: description, ProjectID: projectID}
	s.environments = append(s.environments, env)
	if err := s.persistEnvironments(); err != nil {
		s.environments = s.environments[:len(s.environments)-1]
		return nil, domain.WrapOp(op, err)
	}
	return &env, nil
}

func (s *FileStore) UpdateEnvironment(_ context.Context, name, projectID string, patch domain.EnvironmentPatch) (*domain.Environment, error) {
	const op = "FileStore.UpdateEnvironment"

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, e := range s.environments {
		if e.ProjectID == projectID && domain.NameEqual(e.Name, name) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, domain.NewDomainError(op, domain.ErrNotFound, name)
	}

	updated := s.environments[idx]
	if patch.Name != nil {
		for i, e := range s.environments {
			if i != idx && e.ProjectID == projectID && domain.NameEqual(e.Name, *patch.Name) {
				return nil, domain.NewDomainError(op, domain.ErrDuplicate, *patch.Name)
			}
		}
		updated.Name = *patch.Name
	}
	if patch.Description != nil {
		updated.Description = *patch.Description
	}

	prev := s.environments[idx]
	s.environments[idx] = updated
	if err := s.persistEnvironments(); err != nil {
		s.environments[idx] = prev
		return nil, domain.WrapOp(op, err)
	}
	return &updated, nil
}

func (s *FileStore) RemoveEnvironment(_ context.Context, name, projectID string) error {
	const op = "FileStore.RemoveEnvironment"

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, e := range s.environments {
		if e.ProjectID == projectID && domain.NameEqual(e.Name, name) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.NewDomainError(op, domain.ErrNotFound, name)
	}

	prev := s.environments
	envs := make([]domain.Environment, 0, len(s.environments)-1)
	envs = append(envs, s.environments[:idx]...)
	envs = append(envs, s.environments[idx+1:]...)
	s.environments = envs
	if err := s.persistEnvironments(); err != nil {
		s.environments = prev
		return domain.WrapOp(op, err)
	}
	return nil
}

func (s *FileStore) GetEnvironmentByName(_ context.Context, name, projectID string) (*domain.Environment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.environments {
		if e.ProjectID == projectID && domain.NameEqual(e.Name, name) {
			out := e
			return &out, nil
		}
	}
	return nil, domain.NewDomainError("FileStore.GetEnvironmentByName", domain.ErrNotFound, name)
}

func (s *FileStore) GetEnvironmentByID(_ context.Context, id string) (*domain.Environment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.environments {
		if e.ID == id {
			out := e
			return &out, nil
		}
	}
	return nil, domain.NewDomainError("FileStore.GetEnvironmentByID", domain.ErrNotFound, id)
}

func (s *FileStore) EnvironmentsForProject(_ context.Context, projectID string) ([]domain.Environment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Environment
	for _, e := range s.environments {
		if e.ProjectID == projectID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- services ---

func (s *FileStore) ListServices(_ context.Context) ([]domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Service, len(s.services))
	copy(out, s.services)
	return out, nil
}

func (s *FileStore) AddService(_ context.Context, name, description, projectID string) ([]domain.Service, error) {
	const op = "FileStore.AddService"
	if name == "" {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, "name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.projectExistsLocked(projectID) {
		return nil, domain.NewDomainError(op, domain.ErrNotFound, "project "+projectID)
	}

	var envs []domain.Environment
	for _, e := range s.environments {
		if e.ProjectID == projectID {
			envs = append(envs, e)
		}
	}
	if len(envs) == 0 {
		return nil, domain.NewDomainError(op, domain.ErrNoEnvs, projectID)
	}

	for _, svc := range s.services {
		if svc.ProjectID == projectID && domain.NameEqual(svc.Name, name) {
			return nil, domain.NewDomainError(op, domain.ErrDuplicate, name)
		}
	}

	// One record per environment of the project.
	created := make([]domain.Service, 0, len(envs))
	for _, env := range envs {
		created = append(created, domain.Service{
			ID:          newID(),
			Name:        name,
			Description: description,
			ProjectID:   projectID,
			EnvID:       env.ID,
		})
	}

	prev := s.services
	s.services = append(s.services, created...)
	if err := s.persistServices(); err != nil {
		s.services = prev
		return nil, domain.WrapOp(op, err)
	}
	return created, nil
}

func (s *FileStore) UpdateService(_ context.Context, name, projectID, envID string, patch domain.ServicePatch) (*domain.Service, error) {
	const op = "FileStore.UpdateService"

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, svc := range s.services {
		if svc.ProjectID == projectID && svc.EnvID == envID && domain.NameEqual(svc.Name, name) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, domain.NewDomainError(op, domain.ErrNotFound, name)
	}

	updated := s.services[idx]
	if patch.Description != nil {
		updated.Description = *patch.Description
	}
	if patch.HealthCheckURL != nil {
		updated.HealthCheckURL = *patch.HealthCheckURL
	}
	if patch.AliveCheckURL != nil {
		updated.AliveCheckURL = *patch.AliveCheckURL
	}
	if patch.APIKey != nil {
		updated.APIKey = *patch.APIKey
	}

	prev := s.services[idx]
	s.services[idx] = updated
	if err := s.persistServices(); err != nil {
		s.services[idx] = prev
		return nil, domain.WrapOp(op, err)
	}
	return &updated, nil
}

func (s *FileStore) RemoveService(_ context.Context, name, projectID string) error {
	const op = "FileStore.RemoveService"

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.services
	kept := s.services[:0:0]
	removed := 0
	for _, svc := range s.services {
		if svc.ProjectID == projectID && domain.NameEqual(svc.Name, name) {
			removed++
			continue
		}
		kept = append(kept, svc)
	}
	if removed == 0 {
		return domain.NewDomainError(op, domain.ErrNotFound, name)
	}

	s.services = kept
	if err := s.persistServices(); err != nil {
		s.services = prev
		return domain.WrapOp(op, err)
	}
	return nil
}

func (s *FileStore) GetServiceByName(_ context.Context, name, projectID string) (*domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, svc := range s.services {
		if svc.ProjectID == projectID && domain.NameEqual(svc.Name, name) {
			out := svc
			return &out, nil
		}
	}
	return nil, domain.NewDomainError("FileStore.GetServiceByName", domain.ErrNotFound, name)
}

func (s *FileStore) GetServiceByID(_ context.Context, id string) (*domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, svc := range s.services {
		if svc.ID == id {
			out := svc
			return &out, nil
		}
	}
	return nil, domain.NewDomainError("FileStore.GetServiceByID", domain.ErrNotFound, id)
}

func (s *FileStore) FindService(_ context.Context, name, projectID, envID string) (*domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, svc := range s.services {
		if svc.ProjectID == projectID && svc.EnvID == envID && domain.NameEqual(svc.Name, name) {
			out := svc
			return &out, nil
		}
	}
	return nil, domain.NewDomainError("FileStore.FindService", domain.ErrNotFound, name)
}

func (s *FileStore) ServicesForProject(_ context.Context, projectID string) ([]domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Service
	for _, svc := range s.services {
		if svc.ProjectID == projectID {
			out = append(out, svc)
		}
	}
	return out, nil
}

func (s *FileStore) ServicesForEnvironment(_ context.Context, projectID, envID string) ([]domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Service
	for _, svc := range s.services {
		if svc.ProjectID == projectID && svc.EnvID == envID {
			out = append(out, svc)
		}
	}
	return out, nil
}

// --- internal ---

func (s *FileStore) projectExistsLocked(id string) bool {
	for _, p := range s.projects {
		if p.ID == id {
			return true
		}
	}
	return false
}

// --- persistence ---

func (s *FileStore) load() error {
	if err := loadJSON(filepath.Join(s.dir, projectsFile), &s.projects); err != nil {
		return err
	}
	for _, p := range s.projects {
		if err := p.Validate(); err != nil {
			return err
		}
	}

	if err := loadJSON(filepath.Join(s.dir, environmentsFile), &s.environments); err != nil {
		return err
	}
	for _, e := range s.environments {
		if err := e.Validate(); err != nil {
			return err
		}
	}

	if err := loadJSON(filepath.Join(s.dir, servicesFile), &s.services); err != nil {
		return err
	}
	for _, svc := range s.services {
		if err := svc.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileStore) persistProjects() error {
	return writeJSON(filepath.Join(s.dir, projectsFile), s.projects)
}

func (s *FileStore) persistEnvironments() error {
	return writeJSON(filepath.Join(s.dir, environmentsFile), s.environments)
}

func (s *FileStore) persistServices() error {
	return writeJSON(filepath.Join(s.dir, servicesFile), s.services)
}

func (s *FileStore) persistAll() error {
	if err := s.persistProjects(); err != nil {
		return err
	}
	if err := s.persistEnvironments(); err != nil {
		return err
	}
	return s.persistServices()
}

// loadJSON reads a JSON array file into dst. A missing file leaves dst empty.
func loadJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return domain.WrapOp("read", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSON atomically writes v as indented JSON to path. A nil slice is
// written as an empty array so readers never see "null".
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return domain.WrapOp("marshal", err)
	}
	if string(data) == "null" {
		data = []byte("[]")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return domain.WrapOp("write", err)
	}
	return os.Rename(tmp, path)
}
