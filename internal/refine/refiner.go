// ABOUTME: Segment refiner drives one segment through prompt, generation and cleanup
// ABOUTME: Generator errors propagate unchanged to the orchestrator
package refine

import (
	"context"
	"fmt"

	"github.com/harper/refinery/internal/cleaner"
	"github.com/harper/refinery/internal/models"
	"github.com/harper/refinery/internal/prompt"
)

// SegmentRefiner rewrites a single segment
type SegmentRefiner struct {
	builder *prompt.Builder
	gen     Generator
	cleaner *cleaner.Cleaner
}

// NewSegmentRefiner creates a refiner over gen
func NewSegmentRefiner(gen Generator, c *cleaner.Cleaner) *SegmentRefiner {
	return &SegmentRefiner{builder: prompt.NewBuilder(), gen: gen, cleaner: c}
}

// Refine returns the cleaned rewrite of req.Pieces[req.Index]
func (r *SegmentRefiner) Refine(ctx context.Context, req prompt.Request, model string) (string, error) {
	closing := req.Index == models.SegmentCount-1
	if closing && req.Banned == nil {
		req.Banned = r.cleaner.BannedPhrases()
	}

	p, err := r.builder.Build(req)
	if err != nil {
		return "", fmt.Errorf("failed to build prompt: %w", err)
	}

	raw, err := r.gen.Generate(ctx, p, model)
	if err != nil {
		return "", err
	}

	text := r.cleaner.Segment(raw)
	if closing {
		text = r.cleaner.Closing(raw)
	}
	if text == "" {
		return "", fmt.Errorf("segment %d: %w", req.Index+1, ErrEmptyOutput)
	}
	return text, nil
}
