// ABOUTME: Refinement record, its closed status enumeration and transitions
// ABOUTME: Also defines partial updates, review overlay and pipeline results
package models

import (
	"errors"
	"fmt"
	"time"
)

// SegmentCount is the fixed number of segments a unit is split into
const SegmentCount = 3

// RefinementStatus is the pipeline stage of a refinement record
type RefinementStatus string

const (
	StatusPending   RefinementStatus = "pending"
	StatusSegment1  RefinementStatus = "segment1"
	StatusSegment2  RefinementStatus = "segment2"
	StatusSegment3  RefinementStatus = "segment3"
	StatusMerging   RefinementStatus = "merging"
	StatusCompleted RefinementStatus = "completed"
	StatusFailed    RefinementStatus = "failed"
)

// AllStatuses lists every status in pipeline order
var AllStatuses = []RefinementStatus{
	StatusPending, StatusSegment1, StatusSegment2, StatusSegment3,
	StatusMerging, StatusCompleted, StatusFailed,
}

// InFlightStatuses are the non-terminal statuses
var InFlightStatuses = []RefinementStatus{
	StatusPending, StatusSegment1, StatusSegment2, StatusSegment3, StatusMerging,
}

// ParseStatus converts a stored label into a status
func ParseStatus(s string) (RefinementStatus, error) {
	st := RefinementStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown refinement status %q", s)
	}
	return st, nil
}

// Valid reports whether s is one of the known statuses
func (s RefinementStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSegment1, StatusSegment2, StatusSegment3,
		StatusMerging, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed
func (s RefinementStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// InFlight reports whether the record is still being processed
func (s RefinementStatus) InFlight() bool {
	return s.Valid() && !s.IsTerminal()
}

// Stage is the ordinal position of s along the forward path.
// failed has no position and returns -1.
func (s RefinementStatus) Stage() int {
	switch s {
	case StatusPending:
		return 0
	case StatusSegment1:
		return 1
	case StatusSegment2:
		return 2
	case StatusSegment3:
		return 3
	case StatusMerging:
		return 4
	case StatusCompleted:
		return 5
	default:
		return -1
	}
}

// CanTransition reports whether moving from s to next is allowed.
// The forward path advances one stage at a time; failed is reachable from any in-flight status.
func (s RefinementStatus) CanTransition(next RefinementStatus) bool {
	if !s.InFlight() || !next.Valid() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	return next.Stage() == s.Stage()+1
}

// SegmentStatus returns the status for processing segment index i (0-based)
func SegmentStatus(i int) RefinementStatus {
	switch i {
	case 0:
		return StatusSegment1
	case 1:
		return StatusSegment2
	case 2:
		return StatusSegment3
	default:
		panic(fmt.Sprintf("segment index %d out of range", i))
	}
}

// ReviewStatus is the human review overlay, independent of the pipeline status
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = ""
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// ParseReviewStatus accepts approved, rejected, or pending/empty
func ParseReviewStatus(s string) (ReviewStatus, error) {
	switch s {
	case "approved":
		return ReviewApproved, nil
	case "rejected":
		return ReviewRejected, nil
	case "", "pending":
		return ReviewPending, nil
	default:
		return "", fmt.Errorf("invalid review status %q: must be approved, rejected or pending", s)
	}
}

// Label returns the display label, mapping the unset overlay to "pending"
func (r ReviewStatus) Label() string {
	if r == ReviewPending {
		return "pending"
	}
	return string(r)
}

// Segment holds one segment's immutable original and its refined output
type Segment struct {
	Original          string `json:"original"`
	OriginalWordCount int    `json:"original_word_count"`
	Refined           string `json:"refined,omitempty"`
	RefinedWordCount  int    `json:"refined_word_count,omitempty"`
}

// IsRefined reports whether the segment's refined output has been persisted
func (s Segment) IsRefined() bool {
	return s.Refined != ""
}

// Refinement is one versioned refinement attempt of a unit
type Refinement struct {
	ID         string `json:"id"`
	UnitID     string `json:"unit_id"`
	ProjectID  string `json:"project_id"`
	UnitNumber int    `json:"unit_number"`
	Version    int    `json:"version"`

	OriginalContent   string                `json:"original_content"`
	OriginalWordCount int                   `json:"original_word_count"`
	Segments          [SegmentCount]Segment `json:"segments"`
	// PriorTail is the prior-unit tail the fixed context was assembled with.
	// Empty means the no-prior-unit sentinel was used.
	PriorTail string `json:"prior_tail,omitempty"`

	RefinedContent   string `json:"refined_content,omitempty"`
	RefinedWordCount int    `json:"refined_word_count,omitempty"`

	Status         RefinementStatus `json:"status"`
	CurrentSegment int              `json:"current_segment"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	Model          string           `json:"model"`

	ReviewStatus  ReviewStatus `json:"review_status,omitempty"`
	ReviewComment string       `json:"review_comment,omitempty"`
	ReviewedAt    *time.Time   `json:"reviewed_at,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Validate checks the record invariants that must hold at every persisted state
func (r *Refinement) Validate() error {
	if r.ID == "" {
		return errors.New("refinement ID cannot be empty")
	}
	if r.UnitID == "" {
		return errors.New("refinement unit ID cannot be empty")
	}
	if !r.Status.Valid() {
		return fmt.Errorf("invalid status %q", r.Status)
	}
	if r.CurrentSegment < 0 || r.CurrentSegment > SegmentCount {
		return fmt.Errorf("current segment %d out of range", r.CurrentSegment)
	}
	switch r.Status {
	case StatusCompleted:
		for i, seg := range r.Segments {
			if !seg.IsRefined() {
				return fmt.Errorf("completed refinement missing refined segment %d", i+1)
			}
		}
		if r.RefinedContent == "" {
			return errors.New("completed refinement missing merged content")
		}
	case StatusFailed:
		if r.ErrorMessage == "" {
			return errors.New("failed refinement missing error message")
		}
	}
	return nil
}

// NextSegment returns the index of the first segment without refined output,
// or SegmentCount when all segments are done
func (r *Refinement) NextSegment() int {
	for i, seg := range r.Segments {
		if !seg.IsRefined() {
			return i
		}
	}
	return SegmentCount
}

// SegmentResult is one refined segment to persist
type SegmentResult struct {
	Index     int
	Text      string
	WordCount int
}

// RefinementUpdate names the fields of a record to change; nil fields are left alone
type RefinementUpdate struct {
	Status           *RefinementStatus
	CurrentSegment   *int
	Segment          *SegmentResult
	RefinedContent   *string
	RefinedWordCount *int
	ErrorMessage     *string
	CompletedAt      *time.Time
	ReviewStatus     *ReviewStatus
	ReviewComment    *string
	ReviewedAt       *time.Time
}

// Pipeline reports whether u carries pipeline progress rather than only review fields
func (u RefinementUpdate) Pipeline() bool {
	return u.Status != nil || u.CurrentSegment != nil || u.Segment != nil ||
		u.RefinedContent != nil || u.RefinedWordCount != nil || u.CompletedAt != nil
}

// StageUpdate builds the update for entering a stage
func StageUpdate(status RefinementStatus, currentSegment int) RefinementUpdate {
	return RefinementUpdate{Status: &status, CurrentSegment: &currentSegment}
}

// FailureUpdate builds the update that marks a record failed
func FailureUpdate(message string) RefinementUpdate {
	status := StatusFailed
	return RefinementUpdate{Status: &status, ErrorMessage: &message}
}

// ReviewUpdate builds the review overlay update
func ReviewUpdate(status ReviewStatus, comment string, at time.Time) RefinementUpdate {
	return RefinementUpdate{ReviewStatus: &status, ReviewComment: &comment, ReviewedAt: &at}
}

// RefineResult is the outcome of one successful unit refinement
type RefineResult struct {
	UnitID            string           `json:"unit_id"`
	UnitNumber        int              `json:"unit_number"`
	RefinementID      string           `json:"refinement_id"`
	Version           int              `json:"version"`
	OriginalWordCount int              `json:"original_word_count"`
	RefinedWordCount  int              `json:"refined_word_count"`
	ModelUsed         string           `json:"model_used"`
	Status            RefinementStatus `json:"status"`
}
