// ABOUTME: Export of a project's current text as txt, markdown, json or yaml
// ABOUTME: Optional zip bundle pairs the export with the pre-refinement originals
package export

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harper/refinery/internal/models"
)

// ErrProjectNotFound is returned when the project does not exist
var ErrProjectNotFound = errors.New("project not found")

// Format is an export file format
type Format string

const (
	FormatText     Format = "txt"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// ParseFormat accepts a format name or its usual extension
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "txt", "text":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown export format %q (use txt, markdown, json or yaml)", s)
}

// Extension returns the file extension for f
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return "txt"
	}
}

// FileName builds the export file name for a project title
func FileName(title string, f Format) string {
	return safeName(title) + "." + f.Extension()
}

// Source is what an export reads
type Source interface {
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListUnits(ctx context.Context, projectID string) ([]models.Unit, error)
	ListRefinements(ctx context.Context, projectID string, statuses ...models.RefinementStatus) ([]models.Refinement, error)
}

// Document is the exported project
type Document struct {
	Title      string         `json:"title" yaml:"title"`
	Genre      string         `json:"genre,omitempty" yaml:"genre,omitempty"`
	Synopsis   string         `json:"synopsis,omitempty" yaml:"synopsis,omitempty"`
	ExportedAt string         `json:"exported_at" yaml:"exported_at"`
	TotalUnits int            `json:"total_units" yaml:"total_units"`
	TotalWords int            `json:"total_words" yaml:"total_words"`
	Units      []DocumentUnit `json:"units" yaml:"units"`
}

// DocumentUnit is one exported unit
type DocumentUnit struct {
	Number    int    `json:"number" yaml:"number"`
	Title     string `json:"title,omitempty" yaml:"title,omitempty"`
	Content   string `json:"content" yaml:"content"`
	WordCount int    `json:"word_count" yaml:"word_count"`
	IsRefined bool   `json:"is_refined" yaml:"is_refined"`
}

// Exporter renders project exports
type Exporter struct {
	src Source
	now func() time.Time
}

// New creates an exporter over src
func New(src Source) *Exporter {
	return &Exporter{src: src, now: time.Now}
}

// Document collects the project's units in order
func (e *Exporter) Document(ctx context.Context, projectID string) (*Document, error) {
	project, err := e.project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	units, err := e.src.ListUnits(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}

	doc := &Document{
		Title:      project.Title,
		Genre:      project.Genre,
		Synopsis:   project.Synopsis,
		ExportedAt: e.now().Format(time.RFC3339),
		TotalUnits: len(units),
		Units:      make([]DocumentUnit, 0, len(units)),
	}
	for _, u := range units {
		doc.TotalWords += u.WordCount
		doc.Units = append(doc.Units, DocumentUnit{
			Number:    u.Number,
			Title:     unitTitle(u.Number, u.Title),
			Content:   u.Content,
			WordCount: u.WordCount,
			IsRefined: u.IsRefined,
		})
	}
	return doc, nil
}

// Write renders the project in format f
func (e *Exporter) Write(ctx context.Context, w io.Writer, projectID string, f Format) error {
	doc, err := e.Document(ctx, projectID)
	if err != nil {
		return err
	}
	return render(w, doc, f)
}

// WriteZip writes a zip holding the export under refined/ and the originals of
// completed refinements under original/
func (e *Exporter) WriteZip(ctx context.Context, w io.Writer, projectID string, f Format) error {
	doc, err := e.Document(ctx, projectID)
	if err != nil {
		return err
	}
	originals, err := e.latestCompleted(ctx, projectID)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	refined, err := zw.Create("refined/" + FileName(doc.Title, f))
	if err != nil {
		return fmt.Errorf("failed to add export to zip: %w", err)
	}
	if err := render(refined, doc, f); err != nil {
		return err
	}

	orig, err := zw.Create("original/" + safeName(doc.Title) + "_original.txt")
	if err != nil {
		return fmt.Errorf("failed to add originals to zip: %w", err)
	}
	_, _ = fmt.Fprintf(orig, "%s (original)\n%s\n\n", doc.Title, strings.Repeat("=", 50))
	for _, r := range originals {
		_, _ = fmt.Fprintf(orig, "Unit %d\n%s\n\n%s\n\n\n", r.UnitNumber, strings.Repeat("-", 30), r.OriginalContent)
	}

	return zw.Close()
}

func render(w io.Writer, doc *Document, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	case FormatMarkdown:
		_, _ = fmt.Fprintf(w, "# %s\n\n", doc.Title)
		if doc.Synopsis != "" {
			_, _ = fmt.Fprintf(w, "> %s\n\n", doc.Synopsis)
		}
		_, _ = fmt.Fprint(w, "---\n\n")
		for _, u := range doc.Units {
			_, _ = fmt.Fprintf(w, "## %s\n\n%s\n\n---\n\n", u.Title, u.Content)
		}
	default:
		_, _ = fmt.Fprintf(w, "%s\n%s\n\n", doc.Title, strings.Repeat("=", 50))
		for _, u := range doc.Units {
			_, _ = fmt.Fprintf(w, "%s\n%s\n\n%s\n\n\n", u.Title, strings.Repeat("-", 30), u.Content)
		}
	}
	return nil
}

func (e *Exporter) project(ctx context.Context, projectID string) (*models.Project, error) {
	project, err := e.src.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if project == nil {
		return nil, fmt.Errorf("%s: %w", projectID, ErrProjectNotFound)
	}
	return project, nil
}

// latestCompleted returns the newest completed record of each unit, in unit order
func (e *Exporter) latestCompleted(ctx context.Context, projectID string) ([]models.Refinement, error) {
	records, err := e.src.ListRefinements(ctx, projectID, models.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to list refinements: %w", err)
	}
	var out []models.Refinement
	for _, r := range records {
		// Ordered by unit number then version, so a later record replaces its predecessor
		if n := len(out); n > 0 && out[n-1].UnitID == r.UnitID {
			out[n-1] = r
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func unitTitle(number int, title string) string {
	if title == "" {
		return fmt.Sprintf("Unit %d", number)
	}
	return title
}

func safeName(title string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		return "project"
	}
	return name
}
