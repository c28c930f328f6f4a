// ABOUTME: Project-level refinement status and unit listings
// ABOUTME: Read-only views over units and refinement records
package refine

import (
	"context"
	"fmt"

	"github.com/harper/refinery/internal/models"
)

// ProjectStatus reports record counts and the unit currently in flight, if any
func (s *Service) ProjectStatus(ctx context.Context, projectID string) (*models.ProjectStatus, error) {
	if _, err := s.project(ctx, projectID); err != nil {
		return nil, err
	}

	units, err := s.units.ListUnits(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	counts, err := s.refinements.CountRefinementsByStatus(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to count refinements: %w", err)
	}
	inFlight, err := s.refinements.ListRefinements(ctx, projectID, models.InFlightStatuses...)
	if err != nil {
		return nil, fmt.Errorf("failed to list in-flight refinements: %w", err)
	}

	st := &models.ProjectStatus{
		ProjectID:  projectID,
		State:      models.ProjectIdle,
		TotalUnits: len(units),
		Counts:     counts,
	}
	for _, u := range units {
		if u.IsRefined {
			st.RefinedUnits++
		}
	}

	switch {
	case len(inFlight) > 0:
		// Records come ordered by unit number
		st.State = models.ProjectProcessing
		st.CurrentUnit = inFlight[0].UnitNumber
		st.CurrentSegment = inFlight[0].CurrentSegment
	case st.TotalUnits > 0 && st.RefinedUnits == st.TotalUnits:
		st.State = models.ProjectCompleted
	}
	return st, nil
}

// ListUnits lists a project's units with their refinement flags
func (s *Service) ListUnits(ctx context.Context, projectID string) ([]models.UnitListing, error) {
	if _, err := s.project(ctx, projectID); err != nil {
		return nil, err
	}
	units, err := s.units.ListUnits(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	out := make([]models.UnitListing, 0, len(units))
	for _, u := range units {
		out = append(out, models.UnitListing{
			UnitID:          u.ID,
			Number:          u.Number,
			Title:           u.Title,
			WordCount:       u.WordCount,
			IsRefined:       u.IsRefined,
			RefinedAt:       u.RefinedAt,
			RefinementModel: u.RefinementModel,
		})
	}
	return out, nil
}
