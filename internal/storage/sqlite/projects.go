// ABOUTME: Project, character and outline storage operations for SQLite
// ABOUTME: Read-side lookups used for context assembly plus upserts for bundle import
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/harper/refinery/internal/models"
)

// ProjectStore handles projects and their roster and outlines
type ProjectStore struct {
	db *DB
}

// NewProjectStore creates a new ProjectStore
func NewProjectStore(db *DB) *ProjectStore {
	return &ProjectStore{db: db}
}

// SaveProject saves or updates a project (upsert)
func (s *ProjectStore) SaveProject(ctx context.Context, p *models.Project) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, title, genre, synopsis, time_period, location, default_model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			genre = excluded.genre,
			synopsis = excluded.synopsis,
			time_period = excluded.time_period,
			location = excluded.location,
			default_model = excluded.default_model
	`, p.ID, p.Title, p.Genre, p.Synopsis, p.TimePeriod, p.Location, p.DefaultModel, p.CreatedAt)
	return err
}

// GetProject retrieves a project by ID, returning nil if it does not exist
func (s *ProjectStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var (
		p                                                models.Project
		genre, synopsis, timePeriod, location, defaultMd sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, genre, synopsis, time_period, location, default_model, created_at
		FROM projects
		WHERE id = ?
	`, id).Scan(&p.ID, &p.Title, &genre, &synopsis, &timePeriod, &location, &defaultMd, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Genre = genre.String
	p.Synopsis = synopsis.String
	p.TimePeriod = timePeriod.String
	p.Location = location.String
	p.DefaultModel = defaultMd.String
	return &p, nil
}

// ListProjects returns every project ordered by title
func (s *ProjectStore) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, genre, default_model, created_at
		FROM projects
		ORDER BY title
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var projects []models.Project
	for rows.Next() {
		var (
			p                   models.Project
			genre, defaultModel sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Title, &genre, &defaultModel, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Genre = genre.String
		p.DefaultModel = defaultModel.String
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// SaveCharacter saves or updates a roster entry (upsert)
func (s *ProjectStore) SaveCharacter(ctx context.Context, c *models.Character) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO characters (id, project_id, name, role, personality, position)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			personality = excluded.personality,
			position = excluded.position
	`, c.ID, c.ProjectID, c.Name, c.Role, c.Personality, c.Position)
	return err
}

// ListCharacters returns up to limit roster entries in roster order
func (s *ProjectStore) ListCharacters(ctx context.Context, projectID string, limit int) ([]models.Character, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, name, role, personality, position
		FROM characters
		WHERE project_id = ?
		ORDER BY position, name
		LIMIT ?
	`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chars []models.Character
	for rows.Next() {
		var (
			c                 models.Character
			role, personality sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Name, &role, &personality, &c.Position); err != nil {
			return nil, err
		}
		c.Role = role.String
		c.Personality = personality.String
		chars = append(chars, c)
	}
	return chars, rows.Err()
}

// SaveOutline saves or updates an outline (upsert)
func (s *ProjectStore) SaveOutline(ctx context.Context, o *models.Outline) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outlines (id, project_id, title, content)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content
	`, o.ID, o.ProjectID, o.Title, o.Content)
	return err
}

// GetOutline retrieves an outline by ID, returning nil if it does not exist
func (s *ProjectStore) GetOutline(ctx context.Context, id string) (*models.Outline, error) {
	var (
		o              models.Outline
		title, content sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, title, content FROM outlines WHERE id = ?
	`, id).Scan(&o.ID, &o.ProjectID, &title, &content)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o.Title = title.String
	o.Content = content.String
	return &o, nil
}
