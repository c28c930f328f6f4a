// ABOUTME: Operations over stored refinement history: rollback, diff and review
// ABOUTME: Records are never deleted; rollback only rewrites the unit's active content
package refine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/harper/refinery/internal/models"
)

// Rollback restores the unit's content to the original held by its latest record.
// Repeating it is harmless: the original never changes.
func (s *Service) Rollback(ctx context.Context, unitID string) (*models.RollbackResult, error) {
	unit, err := s.units.GetUnit(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to load unit: %w", err)
	}
	if unit == nil {
		return nil, notFound("unit", unitID)
	}

	busy, err := s.leases.LeaseActive(ctx, unit.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check lease: %w", err)
	}
	if busy {
		return nil, fmt.Errorf("unit %s: %w", unit.ID, ErrUnitBusy)
	}

	rec, err := s.refinements.LatestRefinement(ctx, unit.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load refinement: %w", err)
	}
	if rec == nil {
		return nil, notFound("refinement for unit", unit.ID)
	}
	if rec.OriginalContent == "" {
		return nil, fmt.Errorf("refinement %s: %w", rec.ID, ErrOriginalMissing)
	}

	if err := s.units.RestoreOriginal(ctx, unit.ID, rec.OriginalContent, rec.OriginalWordCount); err != nil {
		return nil, fmt.Errorf("failed to restore original: %w", err)
	}
	s.logger.Info("unit rolled back",
		zap.String("unit_id", unit.ID),
		zap.Int("unit_number", unit.Number),
		zap.String("refinement_id", rec.ID),
	)
	return &models.RollbackResult{
		UnitID:            unit.ID,
		UnitNumber:        unit.Number,
		RefinementID:      rec.ID,
		RestoredWordCount: rec.OriginalWordCount,
	}, nil
}

// Diff returns the segment-by-segment comparison of the latest completed record
func (s *Service) Diff(ctx context.Context, unitID string) (*models.UnitDiff, error) {
	rec, err := s.latestCompleted(ctx, unitID)
	if err != nil {
		return nil, err
	}
	return DiffOf(rec), nil
}

// DiffOf builds the diff view of a record
func DiffOf(rec *models.Refinement) *models.UnitDiff {
	d := &models.UnitDiff{
		UnitID:            rec.UnitID,
		UnitNumber:        rec.UnitNumber,
		RefinementID:      rec.ID,
		Version:           rec.Version,
		Model:             rec.Model,
		OriginalWordCount: rec.OriginalWordCount,
		RefinedWordCount:  rec.RefinedWordCount,
		CompletedAt:       rec.CompletedAt,
	}
	for i, seg := range rec.Segments {
		d.Segments = append(d.Segments, models.SegmentDiff{
			Index:             i + 1,
			Original:          seg.Original,
			Refined:           seg.Refined,
			OriginalWordCount: seg.OriginalWordCount,
			RefinedWordCount:  seg.RefinedWordCount,
		})
	}
	return d
}

// Review sets the review overlay on the unit's latest completed record
func (s *Service) Review(ctx context.Context, unitID string, status models.ReviewStatus, comment string) (*models.Refinement, error) {
	rec, err := s.latestCompleted(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if err := s.refinements.UpdateRefinement(ctx, rec.ID, models.ReviewUpdate(status, comment, s.now())); err != nil {
		return nil, fmt.Errorf("failed to save review: %w", err)
	}
	return s.refinements.GetRefinement(ctx, rec.ID)
}

// ReviewSummary counts review states across a project's completed records
func (s *Service) ReviewSummary(ctx context.Context, projectID string) (models.ReviewSummary, error) {
	if _, err := s.project(ctx, projectID); err != nil {
		return models.ReviewSummary{}, err
	}
	return s.refinements.CountReviews(ctx, projectID)
}

func (s *Service) latestCompleted(ctx context.Context, unitID string) (*models.Refinement, error) {
	rec, err := s.refinements.LatestRefinement(ctx, unitID, models.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to load refinement: %w", err)
	}
	if rec == nil {
		return nil, notFound("completed refinement for unit", unitID)
	}
	return rec, nil
}
