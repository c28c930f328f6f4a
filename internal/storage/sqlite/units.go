// ABOUTME: Unit storage operations for SQLite
// ABOUTME: Lookups by id and number, history digests, and active-content writes
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"time"

	"github.com/harper/refinery/internal/models"
)

// ErrNoRecord is returned by writes that target a row that does not exist
var ErrNoRecord = errors.New("record not found")

const unitColumns = `id, project_id, number, title, content, word_count, summary, outline_id,
	is_refined, refinement_id, refinement_model, refined_at, updated_at`

// UnitStore handles unit persistence
type UnitStore struct {
	db *DB
}

// NewUnitStore creates a new UnitStore
func NewUnitStore(db *DB) *UnitStore {
	return &UnitStore{db: db}
}

// SaveUnit saves or updates a unit (upsert), including its refinement flags
func (s *UnitStore) SaveUnit(ctx context.Context, u *models.Unit) error {
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO units (id, project_id, number, title, content, word_count, summary, outline_id,
			is_refined, refinement_id, refinement_model, refined_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			number = excluded.number,
			title = excluded.title,
			content = excluded.content,
			word_count = excluded.word_count,
			summary = excluded.summary,
			outline_id = excluded.outline_id,
			is_refined = excluded.is_refined,
			refinement_id = excluded.refinement_id,
			refinement_model = excluded.refinement_model,
			refined_at = excluded.refined_at,
			updated_at = excluded.updated_at
	`, u.ID, u.ProjectID, u.Number, u.Title, u.Content, u.WordCount, u.Summary, nullString(u.OutlineID),
		u.IsRefined, nullString(u.RefinementID), nullString(u.RefinementModel), nullTime(u.RefinedAt), u.UpdatedAt)
	return err
}

// GetUnit retrieves a unit by ID, returning nil if it does not exist
func (s *UnitStore) GetUnit(ctx context.Context, id string) (*models.Unit, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+unitColumns+` FROM units WHERE id = ?`, id)
	return scanUnit(row)
}

// GetUnitByNumber retrieves a unit by its position in a project, returning nil if absent
func (s *UnitStore) GetUnitByNumber(ctx context.Context, projectID string, number int) (*models.Unit, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+unitColumns+` FROM units WHERE project_id = ? AND number = ?`, projectID, number)
	return scanUnit(row)
}

// ListUnits returns every unit of a project in number order
func (s *UnitStore) ListUnits(ctx context.Context, projectID string) ([]models.Unit, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+unitColumns+` FROM units WHERE project_id = ? ORDER BY number`, projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var units []models.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, *u)
	}
	return units, rows.Err()
}

// ListUnitDigests returns up to limit summaries of units numbered below before, oldest first
func (s *UnitStore) ListUnitDigests(ctx context.Context, projectID string, before, limit int) ([]models.UnitDigest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT number, title, summary
		FROM units
		WHERE project_id = ? AND number < ? AND summary IS NOT NULL AND summary != ''
		ORDER BY number DESC
		LIMIT ?
	`, projectID, before, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var digests []models.UnitDigest
	for rows.Next() {
		var (
			d     models.UnitDigest
			title sql.NullString
		)
		if err := rows.Scan(&d.Number, &title, &d.Summary); err != nil {
			return nil, err
		}
		d.Title = title.String
		digests = append(digests, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(digests)
	return digests, nil
}

// execer runs a write on the database or inside a transaction
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// applyRefined makes refined text the unit's active content
func applyRefined(ctx context.Context, ex execer, unitID, content string, wordCount int, refinementID, model string, at time.Time) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE units
		SET content = ?, word_count = ?, is_refined = 1, refinement_id = ?, refinement_model = ?,
			refined_at = ?, updated_at = ?
		WHERE id = ?
	`, content, wordCount, refinementID, model, at, at, unitID)
	return requireRow(res, err)
}

// RestoreOriginal puts original text back as active content and clears refinement flags
func (s *UnitStore) RestoreOriginal(ctx context.Context, unitID, content string, wordCount int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE units
		SET content = ?, word_count = ?, is_refined = 0, refinement_id = NULL, refinement_model = NULL,
			refined_at = NULL, updated_at = ?
		WHERE id = ?
	`, content, wordCount, time.Now().UTC(), unitID)
	return requireRow(res, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUnit(row rowScanner) (*models.Unit, error) {
	var (
		u                                  models.Unit
		title, content, summary, outlineID sql.NullString
		refinementID, refinementModel      sql.NullString
		refinedAt                          sql.NullTime
		wordCount                          sql.NullInt64
	)
	err := row.Scan(&u.ID, &u.ProjectID, &u.Number, &title, &content, &wordCount, &summary, &outlineID,
		&u.IsRefined, &refinementID, &refinementModel, &refinedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Title = title.String
	u.Content = content.String
	u.WordCount = int(wordCount.Int64)
	u.Summary = summary.String
	u.OutlineID = outlineID.String
	u.RefinementID = refinementID.String
	u.RefinementModel = refinementModel.String
	if refinedAt.Valid {
		t := refinedAt.Time
		u.RefinedAt = &t
	}
	return &u, nil
}

func requireRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoRecord
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
