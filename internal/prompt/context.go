// ABOUTME: Assembles the fixed per-unit context shared by all segment prompts
// ABOUTME: Every sub-fetch degrades to a sentinel instead of failing the unit
package prompt

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/harper/refinery/internal/logging"
	"github.com/harper/refinery/internal/models"
	"github.com/harper/refinery/internal/util"
)

// Sentinels used when a context field has no data
const (
	NoBackground = "(no background information available)"
	NoRoster     = "(no characters recorded)"
	NoHistory    = "(this is the first unit; no earlier units)"
	NoPriorUnit  = "(no previous unit text available; treat this unit as a fresh start)"
	NoOutline    = "(no outline for this unit)"
)

// Trait and summary lengths inside the condensed context
const (
	traitChars   = 100
	summaryChars = 200
)

// Sources are the read-only lookups the assembler draws from
type Sources interface {
	ListCharacters(ctx context.Context, projectID string, limit int) ([]models.Character, error)
	// ListUnitDigests returns up to limit digests of units numbered below before, oldest first
	ListUnitDigests(ctx context.Context, projectID string, before, limit int) ([]models.UnitDigest, error)
	GetOutline(ctx context.Context, outlineID string) (*models.Outline, error)
}

// FixedContext is assembled once per unit and reused by every segment prompt
type FixedContext struct {
	Background string
	Roster     string
	History    string
	PriorTail  string
	Outline    string
}

// AssemblerConfig bounds the amount of context pulled in
type AssemblerConfig struct {
	RosterLimit    int
	HistoryLimit   int
	PriorTailChars int
}

// Assembler builds FixedContext values
type Assembler struct {
	sources Sources
	cfg     AssemblerConfig
	logger  *zap.Logger
}

// NewAssembler creates an assembler over sources
func NewAssembler(sources Sources, cfg AssemblerConfig, logger *zap.Logger) *Assembler {
	if cfg.RosterLimit <= 0 {
		cfg.RosterLimit = 10
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	if cfg.PriorTailChars <= 0 {
		cfg.PriorTailChars = 5000
	}
	return &Assembler{sources: sources, cfg: cfg, logger: logging.OrNop(logger).Named("context")}
}

// TailOf cuts the prior-unit tail the way Assemble does
func (a *Assembler) TailOf(prior string) string {
	return util.Tail(strings.TrimSpace(prior), a.cfg.PriorTailChars)
}

// Assemble gathers the fixed context for unit.
// priorTail is the already-cut tail of the preceding unit; empty selects the sentinel.
func (a *Assembler) Assemble(ctx context.Context, project *models.Project, unit *models.Unit, priorTail string) FixedContext {
	fc := FixedContext{
		Background: background(project),
		Roster:     NoRoster,
		History:    NoHistory,
		PriorTail:  NoPriorUnit,
		Outline:    NoOutline,
	}
	if priorTail = strings.TrimSpace(priorTail); priorTail != "" {
		fc.PriorTail = priorTail
	}

	if project != nil {
		chars, err := a.sources.ListCharacters(ctx, project.ID, a.cfg.RosterLimit)
		if err != nil {
			a.logger.Warn("roster lookup failed", zap.String("project_id", project.ID), zap.Error(err))
		} else if len(chars) > 0 {
			fc.Roster = roster(chars, a.cfg.RosterLimit)
		}

		if unit.Number > 1 {
			digests, err := a.sources.ListUnitDigests(ctx, project.ID, unit.Number, a.cfg.HistoryLimit)
			if err != nil {
				a.logger.Warn("history lookup failed", zap.String("project_id", project.ID), zap.Error(err))
			} else if h := history(digests); h != "" {
				fc.History = h
			}
		}
	}

	if unit.OutlineID != "" {
		outline, err := a.sources.GetOutline(ctx, unit.OutlineID)
		if err != nil {
			a.logger.Warn("outline lookup failed", zap.String("outline_id", unit.OutlineID), zap.Error(err))
		} else if outline != nil && strings.TrimSpace(outline.Content) != "" {
			fc.Outline = strings.TrimSpace(outline.Content)
		}
	}

	return fc
}

func background(p *models.Project) string {
	if p == nil {
		return NoBackground
	}
	var lines []string
	add := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			lines = append(lines, label+": "+value)
		}
	}
	add("Title", p.Title)
	add("Genre", p.Genre)
	add("Synopsis", p.Synopsis)
	add("Time period", p.TimePeriod)
	add("Location", p.Location)
	if len(lines) == 0 {
		return NoBackground
	}
	return strings.Join(lines, "\n")
}

func roster(chars []models.Character, limit int) string {
	if len(chars) > limit {
		chars = chars[:limit]
	}
	lines := make([]string, 0, len(chars))
	for _, c := range chars {
		line := "- " + c.Name
		var detail []string
		if c.Role != "" {
			detail = append(detail, c.Role)
		}
		if c.Personality != "" {
			detail = append(detail, util.Head(c.Personality, traitChars))
		}
		if len(detail) > 0 {
			line += ": " + strings.Join(detail, ", ")
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func history(digests []models.UnitDigest) string {
	var lines []string
	for _, d := range digests {
		summary := strings.TrimSpace(d.Summary)
		if summary == "" {
			continue
		}
		label := fmt.Sprintf("Unit %d", d.Number)
		if d.Title != "" {
			label += " (" + d.Title + ")"
		}
		lines = append(lines, label+": "+util.Head(summary, summaryChars))
	}
	return strings.Join(lines, "\n")
}
