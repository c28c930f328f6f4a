// ABOUTME: Resumes refinements left in flight by an interrupted process
// ABOUTME: Persisted segments are reused, so no segment is generated twice
package refine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/harper/refinery/internal/models"
)

// Interrupted lists a project's in-flight records whose unit lease has lapsed
func (s *Service) Interrupted(ctx context.Context, projectID string) ([]models.Refinement, error) {
	records, err := s.refinements.ListRefinements(ctx, projectID, models.InFlightStatuses...)
	if err != nil {
		return nil, fmt.Errorf("failed to list in-flight refinements: %w", err)
	}
	var out []models.Refinement
	for _, rec := range records {
		busy, err := s.leases.LeaseActive(ctx, rec.UnitID)
		if err != nil {
			return nil, fmt.Errorf("failed to check lease: %w", err)
		}
		if !busy {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Resume continues the unit's interrupted record from its first segment without
// persisted output, using the prior tail stored at creation
func (s *Service) Resume(ctx context.Context, unitID string) (*models.RefineResult, error) {
	unit, err := s.units.GetUnit(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to load unit: %w", err)
	}
	if unit == nil {
		return nil, notFound("unit", unitID)
	}

	ctx, lease, err := s.hold(ctx, unit.ID)
	if err != nil {
		return nil, err
	}
	defer lease.release(ctx)

	// Read after taking the lease so a run that just finished is not resumed
	rec, err := s.refinements.LatestRefinement(ctx, unit.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load refinement: %w", err)
	}
	if rec == nil || !rec.Status.InFlight() {
		return nil, fmt.Errorf("unit %s: %w", unit.ID, ErrNothingToResume)
	}
	project, err := s.project(ctx, unit.ProjectID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("refinement resumed",
		zap.String("unit_id", unit.ID),
		zap.String("refinement_id", rec.ID),
		zap.String("status", string(rec.Status)),
		zap.Int("next_segment", rec.NextSegment()+1),
	)
	res, _, err := s.run(ctx, lease, rec, unit, project)
	return res, err
}
