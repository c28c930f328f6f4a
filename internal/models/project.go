// ABOUTME: Project, Unit and roster types read from the authoring store
// ABOUTME: The pipeline reads these and only writes a unit's active content
package models

import (
	"errors"
	"time"
)

// Project holds the background facts that feed every unit's fixed context
type Project struct {
	ID           string    `json:"id" yaml:"id"`
	Title        string    `json:"title" yaml:"title"`
	Genre        string    `json:"genre,omitempty" yaml:"genre"`
	Synopsis     string    `json:"synopsis,omitempty" yaml:"synopsis"`
	TimePeriod   string    `json:"time_period,omitempty" yaml:"time_period"`
	Location     string    `json:"location,omitempty" yaml:"location"`
	DefaultModel string    `json:"default_model,omitempty" yaml:"default_model"`
	CreatedAt    time.Time `json:"created_at" yaml:"-"`
}

// Validate checks if the Project has valid data
func (p *Project) Validate() error {
	if p.ID == "" {
		return errors.New("project ID cannot be empty")
	}
	if p.Title == "" {
		return errors.New("project title cannot be empty")
	}
	return nil
}

// Unit is one chapter of a project
type Unit struct {
	ID              string     `json:"id"`
	ProjectID       string     `json:"project_id"`
	Number          int        `json:"unit_number"`
	Title           string     `json:"title,omitempty"`
	Content         string     `json:"content"`
	WordCount       int        `json:"word_count"`
	Summary         string     `json:"summary,omitempty"`
	OutlineID       string     `json:"outline_id,omitempty"`
	IsRefined       bool       `json:"is_refined"`
	RefinementID    string     `json:"refinement_id,omitempty"`
	RefinementModel string     `json:"refinement_model,omitempty"`
	RefinedAt       *time.Time `json:"refined_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Validate checks if the Unit has valid data
func (u *Unit) Validate() error {
	if u.ID == "" {
		return errors.New("unit ID cannot be empty")
	}
	if u.ProjectID == "" {
		return errors.New("unit project ID cannot be empty")
	}
	if u.Number < 1 {
		return errors.New("unit number must be positive")
	}
	return nil
}

// Character is one roster entry of a project
type Character struct {
	ID          string `json:"id" yaml:"id"`
	ProjectID   string `json:"project_id" yaml:"-"`
	Name        string `json:"name" yaml:"name"`
	Role        string `json:"role,omitempty" yaml:"role"`
	Personality string `json:"personality,omitempty" yaml:"personality"`
	Position    int    `json:"position" yaml:"-"`
}

// Outline is the planning text attached to a unit
type Outline struct {
	ID        string `json:"id" yaml:"id"`
	ProjectID string `json:"project_id" yaml:"-"`
	Title     string `json:"title,omitempty" yaml:"title"`
	Content   string `json:"content" yaml:"content"`
}

// UnitDigest is the condensed history entry for one preceding unit
type UnitDigest struct {
	Number  int    `json:"unit_number"`
	Title   string `json:"title,omitempty"`
	Summary string `json:"summary"`
}
