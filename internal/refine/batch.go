// ABOUTME: Batch orchestrator refining a range of units in order as a lazy event sequence
// ABOUTME: Each unit's refined text becomes the next unit's prior context
package refine

import (
	"context"
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/harper/refinery/internal/models"
)

// Skip reasons reported on batch events
const (
	ReasonNotFound  = "not found"
	ReasonNoContent = "no content"
)

// BatchRequest names an inclusive range of unit numbers
type BatchRequest struct {
	ProjectID string
	Start     int
	End       int
	Model     string
}

// RefineBatch validates req and returns the sequence of per-unit events.
// Units are refined one at a time as the sequence is consumed. A failed unit
// never stops the batch; stopping iteration or cancelling ctx prevents later
// units from starting.
func (s *Service) RefineBatch(ctx context.Context, req BatchRequest) (iter.Seq[models.BatchEvent], error) {
	if req.Start < 1 || req.End < req.Start {
		return nil, fmt.Errorf("invalid unit range %d-%d: %w", req.Start, req.End, ErrPrecondition)
	}
	if _, err := s.project(ctx, req.ProjectID); err != nil {
		return nil, err
	}

	return func(yield func(models.BatchEvent) bool) {
		var chain string
		for n := req.Start; n <= req.End; n++ {
			if ctx.Err() != nil {
				s.logger.Info("batch stopped", zap.String("project_id", req.ProjectID), zap.Int("next_unit", n))
				return
			}
			var ev models.BatchEvent
			ev, chain = s.batchUnit(ctx, req, n, chain)
			s.logger.Info("batch progress",
				zap.String("project_id", req.ProjectID),
				zap.Int("unit_number", n),
				zap.String("status", string(ev.Status)),
			)
			if !yield(ev) {
				return
			}
		}
	}, nil
}

// batchUnit processes unit number n and returns its event and the chain for n+1
func (s *Service) batchUnit(ctx context.Context, req BatchRequest, n int, chain string) (models.BatchEvent, string) {
	ev := models.BatchEvent{UnitNumber: n}

	unit, err := s.units.GetUnitByNumber(ctx, req.ProjectID, n)
	if err != nil {
		ev.Status = models.BatchFailed
		ev.Error = err.Error()
		return ev, ""
	}
	if unit == nil {
		s.metrics.UnitSkipped()
		ev.Status = models.BatchSkipped
		ev.Reason = ReasonNotFound
		return ev, ""
	}
	ev.UnitID = unit.ID
	if !s.refinable(unit) {
		s.metrics.UnitSkipped()
		ev.Status = models.BatchSkipped
		ev.Reason = ReasonNoContent
		return ev, ""
	}

	res, merged, err := s.refineUnit(ctx, unit.ID, Options{Model: req.Model, PriorTail: &chain})
	if err != nil {
		ev.Status = models.BatchFailed
		ev.Error = err.Error()
		return ev, unit.Content
	}
	ev.Status = models.BatchCompleted
	ev.Result = res
	return ev, merged
}

// RunBatch drains the batch sequence, calling onEvent for each event, and returns the tally
func (s *Service) RunBatch(ctx context.Context, req BatchRequest, onEvent func(models.BatchEvent)) (models.BatchSummary, error) {
	var summary models.BatchSummary
	events, err := s.RefineBatch(ctx, req)
	if err != nil {
		return summary, err
	}
	for ev := range events {
		summary.Add(ev)
		if onEvent != nil {
			onEvent(ev)
		}
	}
	return summary, ctx.Err()
}
