// ABOUTME: Error taxonomy of the refinement service
// ABOUTME: Sentinels for lookups and preconditions plus the wrapped processing failure
package refine

import (
	"errors"
	"fmt"

	"github.com/harper/refinery/internal/models"
)

var (
	// ErrNotFound is returned when a unit, project or refinement record does not exist
	ErrNotFound = errors.New("not found")

	// ErrPrecondition is returned when the input cannot be processed as it stands
	ErrPrecondition = errors.New("precondition failed")

	// ErrContentTooShort means the unit has too little text to split
	ErrContentTooShort = fmt.Errorf("%w: unit content too short to refine", ErrPrecondition)

	// ErrOriginalMissing means a refinement record has no original content to restore
	ErrOriginalMissing = fmt.Errorf("%w: original content missing", ErrPrecondition)

	// ErrNothingToResume means the unit has no interrupted refinement
	ErrNothingToResume = fmt.Errorf("%w: no interrupted refinement", ErrPrecondition)

	// ErrUnitBusy is returned when another run holds the unit's lease
	ErrUnitBusy = errors.New("unit is already being refined")

	// ErrLeaseLost means a run no longer owns its unit and must stop writing
	ErrLeaseLost = errors.New("unit lease lost")

	// ErrEmptyOutput means the generator returned nothing usable
	ErrEmptyOutput = errors.New("generator returned empty output")
)

// ProcessingError is a pipeline failure after the refinement record was created.
// The record has been marked failed and the unit's content left untouched.
type ProcessingError struct {
	UnitID       string
	RefinementID string
	Stage        models.RefinementStatus
	Err          error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("refinement %s of unit %s failed at %s: %v", e.RefinementID, e.UnitID, e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}
