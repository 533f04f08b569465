package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"service-ninja/internal/domain"
)

// SQLiteStore implements domain.Store on a single SQLite database.
// SQLite's locking gives the single-writer guarantee the file backend gets
// from its mutex.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and runs the
// schema migration.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS projects (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS environments (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			project_id  TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS services (
			id               TEXT PRIMARY KEY,
			name             TEXT NOT NULL,
			description      TEXT NOT NULL DEFAULT '',
			project_id       TEXT NOT NULL,
			env_id           TEXT NOT NULL DEFAULT '',
			health_check_url TEXT NOT NULL DEFAULT '',
			alive_check_url  TEXT NOT NULL DEFAULT '',
			apikey           TEXT NOT NULL DEFAULT ''
		)
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- projects ---

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, description FROM projects ORDER BY rowid")
	if err != nil {
		return nil, domain.WrapOp("SQLiteStore.ListProjects", err)
	}
	defer rows.Close()

	var out []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description); err != nil {
			return nil, domain.WrapOp("SQLiteStore.ListProjects", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AddProject(ctx context.Context, name, description string) (*domain.Project, error) {
	const op = "SQLiteStore.AddProject"
	if name == "" {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, "name is required")
	}

	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM projects WHERE name = ? COLLATE NOCASE", name,
	).Scan(&exists)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	if exists > 0 {
		return nil, domain.NewDomainError(op, domain.ErrDuplicate, name)
	}

	p := domain.Project{ID: newID(), Name: name, Description: description}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO projects (id, name, description) VALUES (?, ?, ?)",
		p.ID, p.Name, p.Description,
	)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	return &p, nil
}

func (s *SQLiteStore) UpdateProject(ctx context.Context, name string, patch domain.ProjectPatch) (*domain.Project, error) {
	const op = "SQLiteStore.UpdateProject"

	current, err := s.GetProjectByName(ctx, name)
	if err != nil {
		return nil, err
	}

	updated := *current
	if patch.Name != nil {
		var clash int
		err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(1) FROM projects WHERE name = ? COLLATE NOCASE AND id != ?",
			*patch.Name, current.ID,
		).Scan(&clash)
		if err != nil {
			return nil, domain.WrapOp(op, err)
		}
		if clash > 0 {
			return nil, domain.NewDomainError(op, domain.ErrDuplicate, *patch.Name)
		}
		updated.Name = *patch.Name
	}
	if patch.Description != nil {
		updated.Description = *patch.Description
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE projects SET name = ?, description = ? WHERE id = ?",
		updated.Name, updated.Description, current.ID,
	)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	return &updated, nil
}

func (s *SQLiteStore) RemoveProject(ctx context.Context, name string) (*domain.CascadeResult, error) {
	const op = "SQLiteStore.RemoveProject"

	current, err := s.GetProjectByName(ctx, name)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	defer tx.Rollback()

	var result domain.CascadeResult
	res, err := tx.ExecContext(ctx, "DELETE FROM environments WHERE project_id = ?", current.ID)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	if n, err := res.RowsAffected(); err == nil {
		result.EnvironmentsRemoved = int(n)
	}

	res, err = tx.ExecContext(ctx, "DELETE FROM services WHERE project_id = ?", current.ID)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	if n, err := res.RowsAffected(); err == nil {
		result.ServicesRemoved = int(n)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", current.ID); err != nil {
		return nil, domain.WrapOp(op, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, domain.WrapOp(op, err)
	}
	return &result, nil
}

func (s *SQLiteStore) GetProjectByName(ctx context.Context, name string) (*domain.Project, error) {
	var p domain.Project
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, description FROM projects WHERE name = ? COLLATE NOCASE", name,
	).Scan(&p.ID, &p.Name, &p.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewDomainError("SQLiteStore.GetProjectByName", domain.ErrNotFound, name)
	}
	if err != nil {
		return nil, domain.WrapOp("SQLiteStore.GetProjectByName", err)
	}
	return &p, nil
}

func (s *SQLiteStore) GetProjectByID(ctx context.Context, id string) (*domain.Project, error) {
	var p domain.Project
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, description FROM projects WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &p.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewDomainError("SQLiteStore.GetProjectByID", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, domain.WrapOp("SQLiteStore.GetProjectByID", err)
	}
	return &p, nil
}

// --- environments ---

func (s *SQLiteStore) ListEnvironments(ctx context.Context) ([]domain.Environment, error) {
	return s.queryEnvironments(ctx, "SELECT id, name, description, project_id FROM environments ORDER BY rowid")
}

func (s *SQLiteStore) AddEnvironment(ctx context.Context, name, description, projectID string) (*domain.Environment, error) {
	const op = "SQLiteStore.AddEnvironment"
	if name == "" {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, "name is required")
	}
	if _, err := s.GetProjectByID(ctx, projectID); err != nil {
		return nil, domain.NewDomainError(op, domain.ErrNotFound, "project "+projectID)
	}

	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM environments WHERE project_id = ? AND name = ? COLLATE NOCASE",
		projectID, name,
	).Scan(&exists)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	if exists > 0 {
		return nil, domain.NewDomainError(op, domain.ErrDuplicate, name)
	}

	env := domain.Environment{ID: newID(), Name: name, Description: description, ProjectID: projectID}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO environments (id, name, description, project_id) VALUES (?, ?, ?, ?)",
		env.ID, env.Name, env.Description, env.ProjectID,
	)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	return &env, nil
}

func (s *SQLiteStore) UpdateEnvironment(ctx context.Context, name, projectID string, patch domain.EnvironmentPatch) (*domain.Environment, error) {
	const op = "SQLiteStore.UpdateEnvironment"

	current, err := s.GetEnvironmentByName(ctx, name, projectID)
	if err != nil {
		return nil, err
	}

	updated := *current
	if patch.Name != nil {
		var clash int
		err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(1) FROM environments WHERE project_id = ? AND name = ? COLLATE NOCASE AND id != ?",
			projectID, *patch.Name, current.ID,
		).Scan(&clash)
		if err != nil {
			return nil, domain.WrapOp(op, err)
		}
		if clash > 0 {
			return nil, domain.NewDomainError(op, domain.ErrDuplicate, *patch.Name)
		}
		updated.Name = *patch.Name
	}
	if patch.Description != nil {
		updated.Description = *patch.Description
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE environments SET name = ?, description = ? WHERE id = ?",
		updated.Name, updated.Description, current.ID,
	)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	return &updated, nil
}

func (s *SQLiteStore) RemoveEnvironment(ctx context.Context, name, projectID string) error {
	const op = "SQLiteStore.RemoveEnvironment"

	current, err := s.GetEnvironmentByName(ctx, name, projectID)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM environments WHERE id = ?", current.ID); err != nil {
		return domain.WrapOp(op, err)
	}
	return nil
}

func (s *SQLiteStore) GetEnvironmentByName(ctx context.Context, name, projectID string) (*domain.Environment, error) {
	var e domain.Environment
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, description, project_id FROM environments WHERE project_id = ? AND name = ? COLLATE NOCASE",
		projectID, name,
	).Scan(&e.ID, &e.Name, &e.Description, &e.ProjectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewDomainError("SQLiteStore.GetEnvironmentByName", domain.ErrNotFound, name)
	}
	if err != nil {
		return nil, domain.WrapOp("SQLiteStore.GetEnvironmentByName", err)
	}
	return &e, nil
}

func (s *SQLiteStore) GetEnvironmentByID(ctx context.Context, id string) (*domain.Environment, error) {
	var e domain.Environment
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, description, project_id FROM environments WHERE id = ?", id,
	).Scan(&e.ID, &e.Name, &e.Description, &e.ProjectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewDomainError("SQLiteStore.GetEnvironmentByID", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, domain.WrapOp("SQLiteStore.GetEnvironmentByID", err)
	}
	return &e, nil
}

func (s *SQLiteStore) EnvironmentsForProject(ctx context.Context, projectID string) ([]domain.Environment, error) {
	return s.queryEnvironments(ctx,
		"SELECT id, name, description, project_id FROM environments WHERE project_id = ? ORDER BY rowid", projectID)
}

func (s *SQLiteStore) queryEnvironments(ctx context.Context, query string, args ...any) ([]domain.Environment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.WrapOp("SQLiteStore.queryEnvironments", err)
	}
	defer rows.Close()

	var out []domain.Environment
	for rows.Next() {
		var e domain.Environment
		if err := rows.Scan(&e.ID, &e.Name, &e.Description, &e.ProjectID); err != nil {
			return nil, domain.WrapOp("SQLiteStore.queryEnvironments", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- services ---

const serviceColumns = "id, name, description, project_id, env_id, health_check_url, alive_check_url, apikey"

func (s *SQLiteStore) ListServices(ctx context.Context) ([]domain.Service, error) {
	return s.queryServices(ctx, "SELECT "+serviceColumns+" FROM services ORDER BY rowid")
}

func (s *SQLiteStore) AddService(ctx context.Context, name, description, projectID string) ([]domain.Service, error) {
	const op = "SQLiteStore.AddService"
	if name == "" {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, "name is required")
	}
	if _, err := s.GetProjectByID(ctx, projectID); err != nil {
		return nil, domain.NewDomainError(op, domain.ErrNotFound, "project "+projectID)
	}

	envs, err := s.EnvironmentsForProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(envs) == 0 {
		return nil, domain.NewDomainError(op, domain.ErrNoEnvs, projectID)
	}

	var exists int
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM services WHERE project_id = ? AND name = ? COLLATE NOCASE",
		projectID, name,
	).Scan(&exists)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	if exists > 0 {
		return nil, domain.NewDomainError(op, domain.ErrDuplicate, name)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	defer tx.Rollback()

	created := make([]domain.Service, 0, len(envs))
	for _, env := range envs {
		svc := domain.Service{
			ID:          newID(),
			Name:        name,
			Description: description,
			ProjectID:   projectID,
			EnvID:       env.ID,
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO services ("+serviceColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			svc.ID, svc.Name, svc.Description, svc.ProjectID, svc.EnvID,
			svc.HealthCheckURL, svc.AliveCheckURL, svc.APIKey,
		)
		if err != nil {
			return nil, domain.WrapOp(op, err)
		}
		created = append(created, svc)
	}
	if err := tx.Commit(); err != nil {
		return nil, domain.WrapOp(op, err)
	}
	return created, nil
}

func (s *SQLiteStore) UpdateService(ctx context.Context, name, projectID, envID string, patch domain.ServicePatch) (*domain.Service, error) {
	const op = "SQLiteStore.UpdateService"

	current, err := s.FindService(ctx, name, projectID, envID)
	if err != nil {
		return nil, err
	}

	updated := *current
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

	_, err = s.db.ExecContext(ctx,
		"UPDATE services SET description = ?, health_check_url = ?, alive_check_url = ?, apikey = ? WHERE id = ?",
		updated.Description, updated.HealthCheckURL, updated.AliveCheckURL, updated.APIKey, current.ID,
	)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	return &updated, nil
}

func (s *SQLiteStore) RemoveService(ctx context.Context, name, projectID string) error {
	const op = "SQLiteStore.RemoveService"

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM services WHERE project_id = ? AND name = ? COLLATE NOCASE",
		projectID, name,
	)
	if err != nil {
		return domain.WrapOp(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.WrapOp(op, err)
	}
	if n == 0 {
		return domain.NewDomainError(op, domain.ErrNotFound, name)
	}
	return nil
}

func (s *SQLiteStore) GetServiceByName(ctx context.Context, name, projectID string) (*domain.Service, error) {
	return s.queryService(ctx,
		"SELECT "+serviceColumns+" FROM services WHERE project_id = ? AND name = ? COLLATE NOCASE ORDER BY rowid LIMIT 1",
		name, projectID, name)
}

func (s *SQLiteStore) GetServiceByID(ctx context.Context, id string) (*domain.Service, error) {
	return s.queryService(ctx,
		"SELECT "+serviceColumns+" FROM services WHERE id = ?",
		id, id)
}

func (s *SQLiteStore) FindService(ctx context.Context, name, projectID, envID string) (*domain.Service, error) {
	return s.queryService(ctx,
		"SELECT "+serviceColumns+" FROM services WHERE project_id = ? AND env_id = ? AND name = ? COLLATE NOCASE",
		name, projectID, envID, name)
}

func (s *SQLiteStore) ServicesForProject(ctx context.Context, projectID string) ([]domain.Service, error) {
	return s.queryServices(ctx,
		"SELECT "+serviceColumns+" FROM services WHERE project_id = ? ORDER BY rowid", projectID)
}

func (s *SQLiteStore) ServicesForEnvironment(ctx context.Context, projectID, envID string) ([]domain.Service, error) {
	return s.queryServices(ctx,
		"SELECT "+serviceColumns+" FROM services WHERE project_id = ? AND env_id = ? ORDER BY rowid",
		projectID, envID)
}

// queryService runs a single-row service query. detail names the lookup key
// for the NotFound error.
func (s *SQLiteStore) queryService(ctx context.Context, query, detail string, args ...any) (*domain.Service, error) {
	var svc domain.Service
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&svc.ID, &svc.Name, &svc.Description, &svc.ProjectID, &svc.EnvID,
		&svc.HealthCheckURL, &svc.AliveCheckURL, &svc.APIKey,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewDomainError("SQLiteStore.queryService", domain.ErrNotFound, detail)
	}
	if err != nil {
		return nil, domain.WrapOp("SQLiteStore.queryService", err)
	}
	return &svc, nil
}

func (s *SQLiteStore) queryServices(ctx context.Context, query string, args ...any) ([]domain.Service, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.WrapOp("SQLiteStore.queryServices", err)
	}
	defer rows.Close()

	var out []domain.Service
	for rows.Next() {
		var svc domain.Service
		if err := rows.Scan(
			&svc.ID, &svc.Name, &svc.Description, &svc.ProjectID, &svc.EnvID,
			&svc.HealthCheckURL, &svc.AliveCheckURL, &svc.APIKey,
		); err != nil {
			return nil, domain.WrapOp("SQLiteStore.queryServices", err)
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}
