// ABOUTME: YAML project bundles for loading projects without the authoring system
// ABOUTME: A bundle carries a project, its roster, outlines and chapters
package sqlite

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/harper/refinery/internal/models"
	"github.com/harper/refinery/internal/util"
)

// Bundle is the importable project document
type Bundle struct {
	Project    models.Project     `yaml:"project"`
	Characters []models.Character `yaml:"characters,omitempty"`
	Outlines   []models.Outline   `yaml:"outlines,omitempty"`
	Units      []BundleUnit       `yaml:"units"`
}

// BundleUnit is one chapter of a bundle
type BundleUnit struct {
	ID      string `yaml:"id,omitempty"`
	Number  int    `yaml:"number"`
	Title   string `yaml:"title,omitempty"`
	Summary string `yaml:"summary,omitempty"`
	Outline string `yaml:"outline,omitempty"`
	Content string `yaml:"content"`
}

// ImportStats reports what an import wrote
type ImportStats struct {
	ProjectID  string `json:"project_id"`
	Units      int    `json:"units"`
	Characters int    `json:"characters"`
	Outlines   int    `json:"outlines"`
}

// LoadBundle reads a bundle file
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}
	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse bundle: %w", err)
	}
	return &b, nil
}

// ImportBundle upserts every entity of b. Missing IDs are generated.
func (s *Store) ImportBundle(ctx context.Context, b *Bundle) (*ImportStats, error) {
	if b.Project.ID == "" {
		b.Project.ID = uuid.New().String()
	}
	if err := b.Project.Validate(); err != nil {
		return nil, fmt.Errorf("invalid project: %w", err)
	}
	if err := s.SaveProject(ctx, &b.Project); err != nil {
		return nil, fmt.Errorf("failed to save project: %w", err)
	}
	stats := &ImportStats{ProjectID: b.Project.ID}

	for i := range b.Characters {
		c := &b.Characters[i]
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		c.ProjectID = b.Project.ID
		c.Position = i
		if err := s.SaveCharacter(ctx, c); err != nil {
			return nil, fmt.Errorf("failed to save character %q: %w", c.Name, err)
		}
		stats.Characters++
	}

	for i := range b.Outlines {
		o := &b.Outlines[i]
		if o.ID == "" {
			o.ID = uuid.New().String()
		}
		o.ProjectID = b.Project.ID
		if err := s.SaveOutline(ctx, o); err != nil {
			return nil, fmt.Errorf("failed to save outline %q: %w", o.ID, err)
		}
		stats.Outlines++
	}

	for _, bu := range b.Units {
		u := &models.Unit{
			ID:        bu.ID,
			ProjectID: b.Project.ID,
			Number:    bu.Number,
			Title:     bu.Title,
			Content:   bu.Content,
			WordCount: util.CountChars(bu.Content),
			Summary:   bu.Summary,
			OutlineID: bu.Outline,
		}
		if u.ID == "" {
			existing, err := s.GetUnitByNumber(ctx, b.Project.ID, bu.Number)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				u.ID = existing.ID
			} else {
				u.ID = uuid.New().String()
			}
		}
		if err := u.Validate(); err != nil {
			return nil, fmt.Errorf("invalid unit %d: %w", bu.Number, err)
		}
		if err := s.SaveUnit(ctx, u); err != nil {
			return nil, fmt.Errorf("failed to save unit %d: %w", bu.Number, err)
		}
		stats.Units++
	}

	return stats, nil
}
