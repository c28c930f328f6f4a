// ABOUTME: Read models for project-level refinement status and unit listings
// ABOUTME: Aggregates returned by the service for the CLI and tool surface
package models

import "time"

// ProjectState summarizes whether a project has work in flight
type ProjectState string

const (
	ProjectIdle       ProjectState = "idle"
	ProjectProcessing ProjectState = "processing"
	ProjectCompleted  ProjectState = "completed"
)

// ProjectStatus is the refinement overview of a project
type ProjectStatus struct {
	ProjectID      string                   `json:"project_id"`
	State          ProjectState             `json:"status"`
	TotalUnits     int                      `json:"total_units"`
	RefinedUnits   int                      `json:"refined_units"`
	Counts         map[RefinementStatus]int `json:"counts"`
	CurrentUnit    int                      `json:"current_unit,omitempty"`
	CurrentSegment int                      `json:"current_segment,omitempty"`
}

// UnitListing is one row of the unit listing
type UnitListing struct {
	UnitID          string     `json:"unit_id"`
	Number          int        `json:"unit_number"`
	Title           string     `json:"title,omitempty"`
	WordCount       int        `json:"word_count"`
	IsRefined       bool       `json:"is_refined"`
	RefinedAt       *time.Time `json:"refined_at,omitempty"`
	RefinementModel string     `json:"refinement_model,omitempty"`
}

// ReviewSummary counts review overlay states of completed records
type ReviewSummary struct {
	ProjectID string `json:"project_id"`
	Total     int    `json:"total"`
	Approved  int    `json:"approved"`
	Rejected  int    `json:"rejected"`
	Pending   int    `json:"pending"`
}

// SegmentDiff is one segment's before and after view
type SegmentDiff struct {
	Index             int    `json:"segment"`
	Original          string `json:"original"`
	Refined           string `json:"refined"`
	OriginalWordCount int    `json:"original_word_count"`
	RefinedWordCount  int    `json:"refined_word_count"`
}

// UnitDiff is the latest completed refinement of a unit, segment by segment
type UnitDiff struct {
	UnitID            string        `json:"unit_id"`
	UnitNumber        int           `json:"unit_number"`
	RefinementID      string        `json:"refinement_id"`
	Version           int           `json:"version"`
	Model             string        `json:"model"`
	Segments          []SegmentDiff `json:"segments"`
	OriginalWordCount int           `json:"original_word_count"`
	RefinedWordCount  int           `json:"refined_word_count"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty"`
}

// RollbackResult confirms a restored unit
type RollbackResult struct {
	UnitID            string `json:"unit_id"`
	UnitNumber        int    `json:"unit_number"`
	RefinementID      string `json:"refinement_id"`
	RestoredWordCount int    `json:"restored_word_count"`
}
