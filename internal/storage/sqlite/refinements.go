// ABOUTME: Refinement record storage operations for SQLite
// ABOUTME: Versioned creation, partial updates with a monotonic stage guard, and status queries
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/harper/refinery/internal/models"
)

// ErrSegmentRegression is returned when an update would lower current_segment
var ErrSegmentRegression = errors.New("current segment cannot decrease")

// ErrNotInFlight is returned when a pipeline write targets a completed or failed record
var ErrNotInFlight = errors.New("refinement is no longer in flight")

var refinementColumns = []string{
	"id", "unit_id", "project_id", "unit_number", "version",
	"original_content", "original_word_count",
	"seg1_original", "seg1_original_wc", "seg1_refined", "seg1_refined_wc",
	"seg2_original", "seg2_original_wc", "seg2_refined", "seg2_refined_wc",
	"seg3_original", "seg3_original_wc", "seg3_refined", "seg3_refined_wc",
	"prior_tail", "refined_content", "refined_word_count",
	"status", "current_segment", "error_message", "model",
	"review_status", "review_comment", "reviewed_at",
	"created_at", "updated_at", "completed_at",
}

// RefinementStore handles refinement record persistence
type RefinementStore struct {
	db *DB
}

// NewRefinementStore creates a new RefinementStore
func NewRefinementStore(db *DB) *RefinementStore {
	return &RefinementStore{db: db}
}

// CreateRefinement inserts r as the next version for its unit.
// ID, Version and timestamps are assigned here. Any older record of the
// unit still in flight is marked failed so only r is in flight afterwards.
func (s *RefinementStore) CreateRefinement(ctx context.Context, r *models.Refinement) error {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var version int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM refinements WHERE unit_id = ?`, r.UnitID,
	).Scan(&version); err != nil {
		return fmt.Errorf("failed to allocate version: %w", err)
	}

	now := time.Now().UTC()
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = models.StatusPending
	}
	r.Version = version
	r.CreatedAt = now
	r.UpdatedAt = now

	supersede, args, err := builder.Update("refinements").
		Set("status", string(models.StatusFailed)).
		Set("error_message", fmt.Sprintf("superseded by version %d", version)).
		Set("updated_at", now).
		Where(sq.Eq{"unit_id": r.UnitID, "status": statusStrings(models.InFlightStatuses)}).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, supersede, args...); err != nil {
		return fmt.Errorf("failed to supersede in-flight records: %w", err)
	}

	seg := r.Segments
	insert, args, err := builder.Insert("refinements").
		Columns(
			"id", "unit_id", "project_id", "unit_number", "version",
			"original_content", "original_word_count",
			"seg1_original", "seg1_original_wc",
			"seg2_original", "seg2_original_wc",
			"seg3_original", "seg3_original_wc",
			"prior_tail", "status", "current_segment", "model",
			"created_at", "updated_at",
		).
		Values(
			r.ID, r.UnitID, r.ProjectID, r.UnitNumber, r.Version,
			r.OriginalContent, r.OriginalWordCount,
			seg[0].Original, seg[0].OriginalWordCount,
			seg[1].Original, seg[1].OriginalWordCount,
			seg[2].Original, seg[2].OriginalWordCount,
			nullString(r.PriorTail), string(r.Status), r.CurrentSegment, r.Model,
			now, now,
		).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
		return fmt.Errorf("failed to insert refinement: %w", err)
	}

	return tx.Commit()
}

// UpdateRefinement writes only the fields set in upd.
// A CurrentSegment lower than the stored value is rejected with ErrSegmentRegression.
// Pipeline writes (status, stage, segment or merged content) only land on an
// in-flight record; anything else is rejected with ErrNotInFlight.
func (s *RefinementStore) UpdateRefinement(ctx context.Context, id string, upd models.RefinementUpdate) error {
	set := map[string]any{"updated_at": time.Now().UTC()}
	if upd.Status != nil {
		set["status"] = string(*upd.Status)
	}
	if upd.CurrentSegment != nil {
		set["current_segment"] = *upd.CurrentSegment
	}
	if seg := upd.Segment; seg != nil {
		if seg.Index < 0 || seg.Index >= models.SegmentCount {
			return fmt.Errorf("segment index %d out of range", seg.Index)
		}
		set[fmt.Sprintf("seg%d_refined", seg.Index+1)] = seg.Text
		set[fmt.Sprintf("seg%d_refined_wc", seg.Index+1)] = seg.WordCount
	}
	if upd.RefinedContent != nil {
		set["refined_content"] = *upd.RefinedContent
	}
	if upd.RefinedWordCount != nil {
		set["refined_word_count"] = *upd.RefinedWordCount
	}
	if upd.ErrorMessage != nil {
		set["error_message"] = *upd.ErrorMessage
	}
	if upd.CompletedAt != nil {
		set["completed_at"] = upd.CompletedAt.UTC()
	}
	if upd.ReviewStatus != nil {
		set["review_status"] = nullString(string(*upd.ReviewStatus))
	}
	if upd.ReviewComment != nil {
		set["review_comment"] = nullString(*upd.ReviewComment)
	}
	if upd.ReviewedAt != nil {
		set["reviewed_at"] = upd.ReviewedAt.UTC()
	}

	pipeline := upd.Pipeline()
	q := builder.Update("refinements").SetMap(set).Where(sq.Eq{"id": id})
	if pipeline {
		q = q.Where(sq.Eq{"status": statusStrings(models.InFlightStatuses)})
	}
	if upd.CurrentSegment != nil {
		q = q.Where(sq.LtOrEq{"current_segment": *upd.CurrentSegment})
	}

	res, err := s.db.execBuilt(ctx, q)
	if err := requireRow(res, err); !errors.Is(err, ErrNoRecord) {
		return err
	}

	existing, err := s.GetRefinement(ctx, id)
	if err != nil {
		return err
	}
	switch {
	case existing == nil:
		return ErrNoRecord
	case pipeline && !existing.Status.InFlight():
		return fmt.Errorf("%w: %s is %s", ErrNotInFlight, id, existing.Status)
	case upd.CurrentSegment != nil:
		return fmt.Errorf("%w: stored %d, update %d", ErrSegmentRegression, existing.CurrentSegment, *upd.CurrentSegment)
	}
	return ErrNoRecord
}

// CompleteRefinement marks an in-flight record completed with its merged content
// and makes that content the unit's active text. Both writes commit together, so a
// completed record is always the one applied. A record that is no longer in flight
// is rejected with ErrNotInFlight and the unit is left alone.
func (s *RefinementStore) CompleteRefinement(ctx context.Context, id, content string, wordCount int, at time.Time) error {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var unitID, model, status string
	err = tx.QueryRowContext(ctx, `SELECT unit_id, model, status FROM refinements WHERE id = ?`, id).
		Scan(&unitID, &model, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoRecord
	}
	if err != nil {
		return err
	}
	if !models.RefinementStatus(status).InFlight() {
		return fmt.Errorf("%w: %s is %s", ErrNotInFlight, id, status)
	}

	at = at.UTC()
	query, args, err := builder.Update("refinements").
		SetMap(map[string]any{
			"status":             string(models.StatusCompleted),
			"refined_content":    content,
			"refined_word_count": wordCount,
			"completed_at":       at,
			"updated_at":         at,
		}).
		Where(sq.Eq{"id": id, "status": statusStrings(models.InFlightStatuses)}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err := requireRow(res, err); err != nil {
		return fmt.Errorf("failed to complete refinement: %w", err)
	}
	if err := applyRefined(ctx, tx, unitID, content, wordCount, id, model, at); err != nil {
		return fmt.Errorf("failed to apply refined content: %w", err)
	}
	return tx.Commit()
}

// GetRefinement retrieves a record by ID, returning nil if it does not exist
func (s *RefinementStore) GetRefinement(ctx context.Context, id string) (*models.Refinement, error) {
	row, err := s.db.queryRowBuilt(ctx, builder.Select(refinementColumns...).From("refinements").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	return scanRefinement(row)
}

// LatestRefinement returns the highest version for a unit, optionally limited to statuses
func (s *RefinementStore) LatestRefinement(ctx context.Context, unitID string, statuses ...models.RefinementStatus) (*models.Refinement, error) {
	q := builder.Select(refinementColumns...).From("refinements").
		Where(sq.Eq{"unit_id": unitID}).
		OrderBy("version DESC").
		Limit(1)
	if len(statuses) > 0 {
		q = q.Where(sq.Eq{"status": statusStrings(statuses)})
	}
	row, err := s.db.queryRowBuilt(ctx, q)
	if err != nil {
		return nil, err
	}
	return scanRefinement(row)
}

// ListRefinements returns a project's records ordered by unit number then version,
// optionally limited to statuses
func (s *RefinementStore) ListRefinements(ctx context.Context, projectID string, statuses ...models.RefinementStatus) ([]models.Refinement, error) {
	q := builder.Select(refinementColumns...).From("refinements").
		Where(sq.Eq{"project_id": projectID}).
		OrderBy("unit_number", "version")
	if len(statuses) > 0 {
		q = q.Where(sq.Eq{"status": statusStrings(statuses)})
	}
	rows, err := s.db.queryBuilt(ctx, q)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Refinement
	for rows.Next() {
		r, err := scanRefinement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// CountRefinementsByStatus counts the latest record of each unit by status
func (s *RefinementStore) CountRefinementsByStatus(ctx context.Context, projectID string) (map[models.RefinementStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.status, COUNT(*)
		FROM refinements r
		WHERE r.project_id = ?
		  AND r.version = (SELECT MAX(version) FROM refinements WHERE unit_id = r.unit_id)
		GROUP BY r.status
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[models.RefinementStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[models.RefinementStatus(status)] = n
	}
	return counts, rows.Err()
}

// CountReviews tallies the review overlay of each unit's latest completed record
func (s *RefinementStore) CountReviews(ctx context.Context, projectID string) (models.ReviewSummary, error) {
	summary := models.ReviewSummary{ProjectID: projectID}
	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(r.review_status, ''), COUNT(*)
		FROM refinements r
		WHERE r.project_id = ? AND r.status = ?
		  AND r.version = (SELECT MAX(version) FROM refinements WHERE unit_id = r.unit_id AND status = ?)
		GROUP BY COALESCE(r.review_status, '')
	`, projectID, string(models.StatusCompleted), string(models.StatusCompleted))
	if err != nil {
		return summary, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return summary, err
		}
		summary.Total += n
		switch models.ReviewStatus(status) {
		case models.ReviewApproved:
			summary.Approved += n
		case models.ReviewRejected:
			summary.Rejected += n
		default:
			summary.Pending += n
		}
	}
	return summary, rows.Err()
}

func scanRefinement(row rowScanner) (*models.Refinement, error) {
	var (
		r                                   models.Refinement
		segRefined                          [models.SegmentCount]sql.NullString
		segRefinedWC                        [models.SegmentCount]sql.NullInt64
		priorTail, refinedContent, errorMsg sql.NullString
		reviewStatus, reviewComment         sql.NullString
		refinedWC                           sql.NullInt64
		status                              string
		reviewedAt, completedAt             sql.NullTime
	)
	err := row.Scan(
		&r.ID, &r.UnitID, &r.ProjectID, &r.UnitNumber, &r.Version,
		&r.OriginalContent, &r.OriginalWordCount,
		&r.Segments[0].Original, &r.Segments[0].OriginalWordCount, &segRefined[0], &segRefinedWC[0],
		&r.Segments[1].Original, &r.Segments[1].OriginalWordCount, &segRefined[1], &segRefinedWC[1],
		&r.Segments[2].Original, &r.Segments[2].OriginalWordCount, &segRefined[2], &segRefinedWC[2],
		&priorTail, &refinedContent, &refinedWC,
		&status, &r.CurrentSegment, &errorMsg, &r.Model,
		&reviewStatus, &reviewComment, &reviewedAt,
		&r.CreatedAt, &r.UpdatedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	st, err := models.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	r.Status = st
	for i := range r.Segments {
		r.Segments[i].Refined = segRefined[i].String
		r.Segments[i].RefinedWordCount = int(segRefinedWC[i].Int64)
	}
	r.PriorTail = priorTail.String
	r.RefinedContent = refinedContent.String
	r.RefinedWordCount = int(refinedWC.Int64)
	r.ErrorMessage = errorMsg.String
	r.ReviewStatus = models.ReviewStatus(reviewStatus.String)
	r.ReviewComment = reviewComment.String
	if reviewedAt.Valid {
		t := reviewedAt.Time
		r.ReviewedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	return &r, nil
}

func statusStrings(statuses []models.RefinementStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
