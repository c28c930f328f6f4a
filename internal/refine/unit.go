// ABOUTME: Unit pipeline orchestrator: split, assemble context, refine three segments, merge
// ABOUTME: The only place a failure is persisted and the only writer of a unit's active content
package refine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/harper/refinery/internal/models"
	"github.com/harper/refinery/internal/prompt"
	"github.com/harper/refinery/internal/segment"
	"github.com/harper/refinery/internal/util"
)

// mergeSeparator joins refined segments into the unit text
const mergeSeparator = "\n\n"

// Options adjust a single unit run
type Options struct {
	// Model overrides the project and configured default
	Model string
	// PriorTail, when set, is the preceding unit's text to continue from.
	// An empty string selects the no-prior-unit sentinel.
	// When nil the preceding unit's active content is used.
	PriorTail *string
}

// RefineUnit runs the full pipeline on one unit and blocks until it finishes
func (s *Service) RefineUnit(ctx context.Context, unitID string, opts Options) (*models.RefineResult, error) {
	res, _, err := s.refineUnit(ctx, unitID, opts)
	return res, err
}

// refineUnit also returns the merged content so a batch can chain it
func (s *Service) refineUnit(ctx context.Context, unitID string, opts Options) (*models.RefineResult, string, error) {
	unit, err := s.units.GetUnit(ctx, unitID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load unit: %w", err)
	}
	if unit == nil {
		return nil, "", notFound("unit", unitID)
	}
	if !s.refinable(unit) {
		return nil, "", fmt.Errorf("unit %d has %d characters, need %d: %w",
			unit.Number, util.CountChars(strings.TrimSpace(unit.Content)), s.cfg.MinContentLength, ErrContentTooShort)
	}
	project, err := s.project(ctx, unit.ProjectID)
	if err != nil {
		return nil, "", err
	}

	ctx, lease, err := s.hold(ctx, unit.ID)
	if err != nil {
		return nil, "", err
	}
	defer lease.release(ctx)

	var prior string
	if opts.PriorTail != nil {
		prior = *opts.PriorTail
	} else {
		prior = s.precedingContent(ctx, unit)
	}

	pieces := s.splitter.Split(unit.Content)
	rec := &models.Refinement{
		UnitID:            unit.ID,
		ProjectID:         unit.ProjectID,
		UnitNumber:        unit.Number,
		OriginalContent:   unit.Content,
		OriginalWordCount: util.CountChars(unit.Content),
		PriorTail:         s.assembler.TailOf(prior),
		Model:             s.catalog.Resolve(opts.Model, project.DefaultModel, s.cfg.DefaultModel),
	}
	for i, p := range pieces {
		rec.Segments[i] = models.Segment{Original: p.Text, OriginalWordCount: p.WordCount}
	}
	if err := s.refinements.CreateRefinement(ctx, rec); err != nil {
		return nil, "", fmt.Errorf("failed to create refinement record: %w", err)
	}

	s.logger.Info("refinement started",
		zap.String("unit_id", unit.ID),
		zap.Int("unit_number", unit.Number),
		zap.String("refinement_id", rec.ID),
		zap.Int("version", rec.Version),
		zap.String("model", rec.Model),
	)
	return s.run(ctx, lease, rec, unit, project)
}

// run advances rec from its first unrefined segment through merge and applies the result.
// Fresh runs and resumed runs share this path.
func (s *Service) run(ctx context.Context, lease *heldLease, rec *models.Refinement, unit *models.Unit, project *models.Project) (*models.RefineResult, string, error) {
	s.metrics.UnitStarted()

	merged, err := s.stages(ctx, lease, rec, unit, project)
	if err != nil {
		if cause := context.Cause(ctx); cause != nil && !errors.Is(err, cause) {
			err = fmt.Errorf("%w: %w", cause, err)
		}
		s.metrics.UnitFinished("failed")
		return nil, "", s.fail(ctx, rec, err)
	}

	s.metrics.UnitFinished("completed")
	s.logger.Info("refinement completed",
		zap.String("unit_id", unit.ID),
		zap.Int("unit_number", unit.Number),
		zap.String("refinement_id", rec.ID),
		zap.Int("original_word_count", rec.OriginalWordCount),
		zap.Int("refined_word_count", rec.RefinedWordCount),
	)
	return &models.RefineResult{
		UnitID:            unit.ID,
		UnitNumber:        unit.Number,
		RefinementID:      rec.ID,
		Version:           rec.Version,
		OriginalWordCount: rec.OriginalWordCount,
		RefinedWordCount:  rec.RefinedWordCount,
		ModelUsed:         rec.Model,
		Status:            models.StatusCompleted,
	}, merged, nil
}

func (s *Service) stages(ctx context.Context, lease *heldLease, rec *models.Refinement, unit *models.Unit, project *models.Project) (string, error) {
	fixed := s.assembler.Assemble(ctx, project, unit, rec.PriorTail)
	pieces := piecesOf(rec)

	start := rec.NextSegment()
	refined := make([]string, 0, models.SegmentCount)
	for i := range start {
		refined = append(refined, rec.Segments[i].Refined)
	}

	for i := start; i < models.SegmentCount; i++ {
		if err := s.advance(ctx, rec, models.SegmentStatus(i), i+1); err != nil {
			return "", err
		}

		text, err := s.refiner.Refine(ctx, prompt.Request{
			UnitNumber: unit.Number,
			UnitTitle:  unit.Title,
			Fixed:      fixed,
			Pieces:     pieces,
			Index:      i,
			Refined:    refined,
		}, rec.Model)
		if err != nil {
			return "", err
		}

		result := models.SegmentResult{Index: i, Text: text, WordCount: util.CountChars(text)}
		if err := s.refinements.UpdateRefinement(ctx, rec.ID, models.RefinementUpdate{Segment: &result}); err != nil {
			return "", fmt.Errorf("failed to persist segment %d: %w", i+1, err)
		}
		rec.Segments[i].Refined = result.Text
		rec.Segments[i].RefinedWordCount = result.WordCount
		refined = append(refined, text)
		s.metrics.SegmentRefined(i)

		s.logger.Debug("segment refined",
			zap.String("refinement_id", rec.ID),
			zap.Int("segment", i+1),
			zap.Int("original_word_count", pieces[i].WordCount),
			zap.Int("refined_word_count", result.WordCount),
		)
	}

	if err := s.advance(ctx, rec, models.StatusMerging, models.SegmentCount); err != nil {
		return "", err
	}
	merged := s.cleaner.Unit(strings.Join(refined, mergeSeparator))
	if merged == "" {
		return "", fmt.Errorf("merged content: %w", ErrEmptyOutput)
	}
	wordCount := util.CountChars(merged)
	completedAt := s.now()

	// Only the run that still owns the unit may replace its content
	if err := lease.renew(ctx); err != nil {
		return "", err
	}
	if err := s.refinements.CompleteRefinement(ctx, rec.ID, merged, wordCount, completedAt); err != nil {
		return "", fmt.Errorf("failed to complete refinement: %w", err)
	}
	rec.Status = models.StatusCompleted
	rec.RefinedContent = merged
	rec.RefinedWordCount = wordCount
	rec.CompletedAt = &completedAt
	return merged, nil
}

// advance persists the move to next. Re-entering the current stage is allowed so
// an interrupted record can continue where it stopped.
func (s *Service) advance(ctx context.Context, rec *models.Refinement, next models.RefinementStatus, currentSegment int) error {
	if rec.Status != next && !rec.Status.CanTransition(next) {
		return fmt.Errorf("invalid transition %s -> %s", rec.Status, next)
	}
	if err := s.refinements.UpdateRefinement(ctx, rec.ID, models.StageUpdate(next, currentSegment)); err != nil {
		return fmt.Errorf("failed to enter %s: %w", next, err)
	}
	rec.Status = next
	rec.CurrentSegment = currentSegment
	s.logger.Debug("stage",
		zap.String("refinement_id", rec.ID),
		zap.Int("unit_number", rec.UnitNumber),
		zap.String("status", string(next)),
		zap.Int("current_segment", currentSegment),
	)
	return nil
}

// fail records err on rec and wraps it for the caller.
// Only an in-flight record is marked failed.
func (s *Service) fail(ctx context.Context, rec *models.Refinement, err error) error {
	stage := rec.Status
	s.logger.Error("refinement failed",
		zap.String("unit_id", rec.UnitID),
		zap.Int("unit_number", rec.UnitNumber),
		zap.String("refinement_id", rec.ID),
		zap.String("stage", string(stage)),
		zap.Error(err),
	)
	if stage.InFlight() {
		// The caller's context may be the reason for the failure
		if uerr := s.refinements.UpdateRefinement(context.WithoutCancel(ctx), rec.ID, models.FailureUpdate(err.Error())); uerr != nil {
			s.logger.Error("failed to mark refinement failed", zap.String("refinement_id", rec.ID), zap.Error(uerr))
		} else {
			rec.Status = models.StatusFailed
			rec.ErrorMessage = err.Error()
		}
	}
	return &ProcessingError{UnitID: rec.UnitID, RefinementID: rec.ID, Stage: stage, Err: err}
}

func (s *Service) refinable(u *models.Unit) bool {
	return util.CountChars(strings.TrimSpace(u.Content)) >= s.cfg.MinContentLength
}

func (s *Service) project(ctx context.Context, projectID string) (*models.Project, error) {
	p, err := s.units.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if p == nil {
		return nil, notFound("project", projectID)
	}
	return p, nil
}

// precedingContent is the active content of the unit numbered just below u, if any
func (s *Service) precedingContent(ctx context.Context, u *models.Unit) string {
	if u.Number <= 1 {
		return ""
	}
	prev, err := s.units.GetUnitByNumber(ctx, u.ProjectID, u.Number-1)
	if err != nil {
		s.logger.Warn("preceding unit lookup failed", zap.Int("unit_number", u.Number-1), zap.Error(err))
		return ""
	}
	if prev == nil {
		return ""
	}
	return prev.Content
}

// piecesOf rebuilds the splitter output from a record's stored originals
func piecesOf(rec *models.Refinement) []segment.Piece {
	pieces := make([]segment.Piece, models.SegmentCount)
	for i, seg := range rec.Segments {
		pieces[i] = segment.Piece{
			Index:     i,
			Text:      seg.Original,
			WordCount: seg.OriginalWordCount,
			Closing:   i == models.SegmentCount-1,
		}
	}
	return pieces
}
