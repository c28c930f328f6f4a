// ABOUTME: Collaborator interfaces consumed by the refinement service
// ABOUTME: storage/sqlite.Store satisfies all of them
package refine

import (
	"context"
	"time"

	"github.com/harper/refinery/internal/models"
)

// UnitStore reads projects and units and restores a unit's original content
type UnitStore interface {
	GetProject(ctx context.Context, id string) (*models.Project, error)
	GetUnit(ctx context.Context, id string) (*models.Unit, error)
	GetUnitByNumber(ctx context.Context, projectID string, number int) (*models.Unit, error)
	ListUnits(ctx context.Context, projectID string) ([]models.Unit, error)
	RestoreOriginal(ctx context.Context, unitID, content string, wordCount int) error
}

// RefinementStore persists refinement records
type RefinementStore interface {
	CreateRefinement(ctx context.Context, r *models.Refinement) error
	UpdateRefinement(ctx context.Context, id string, upd models.RefinementUpdate) error
	// CompleteRefinement stores the merged content and applies it to the unit atomically
	CompleteRefinement(ctx context.Context, id, content string, wordCount int, at time.Time) error
	GetRefinement(ctx context.Context, id string) (*models.Refinement, error)
	LatestRefinement(ctx context.Context, unitID string, statuses ...models.RefinementStatus) (*models.Refinement, error)
	ListRefinements(ctx context.Context, projectID string, statuses ...models.RefinementStatus) ([]models.Refinement, error)
	CountRefinementsByStatus(ctx context.Context, projectID string) (map[models.RefinementStatus]int, error)
	CountReviews(ctx context.Context, projectID string) (models.ReviewSummary, error)
}

// LeaseStore is the per-unit single-flight guard
type LeaseStore interface {
	AcquireLease(ctx context.Context, unitID, holder string, ttl time.Duration) (bool, error)
	RenewLease(ctx context.Context, unitID, holder string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, unitID, holder string) error
	LeaseActive(ctx context.Context, unitID string) (bool, error)
}

// Generator turns a prompt into generated text
type Generator interface {
	Generate(ctx context.Context, prompt, model string) (string, error)
}
