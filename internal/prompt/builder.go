// ABOUTME: Builds the three role-specific prompts for opening, middle and closing segments
// ABOUTME: Injects fixed context, refined predecessors, look-ahead previews and length bands
package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/harper/refinery/internal/models"
	"github.com/harper/refinery/internal/segment"
)

// Length band around the original segment length, in percent
const (
	bandLowPct  = 90
	bandHighPct = 110
)

// Request carries everything one segment prompt needs
type Request struct {
	UnitNumber int
	UnitTitle  string
	Fixed      FixedContext
	// Pieces are all segments of the unit; Index selects the one to refine
	Pieces []segment.Piece
	Index  int
	// Refined holds the refined text of every segment before Index
	Refined []string
	// Banned are phrases the closing segment must not contain
	Banned []string
}

type templateData struct {
	UnitNumber int
	UnitTitle  string
	Fixed      FixedContext
	Label      string
	Position   int
	Total      int
	Original   string
	WordCount  int
	MinWords   int
	MaxWords   int
	Preview    string
	Refined    []refinedPart
	Banned     string
}

type refinedPart struct {
	Label string
	Text  string
}

var templates = template.Must(template.New("prompt").Parse(`
{{- define "context" -}}
You are revising unit {{.UnitNumber}}{{if .UnitTitle}} ("{{.UnitTitle}}"){{end}} of a long-form novel.
The unit has been split into {{.Total}} segments. You are rewriting segment {{.Position}} of {{.Total}} ({{.Label}}).

## Background
{{.Fixed.Background}}

## Characters
{{.Fixed.Roster}}

## Story so far
{{.Fixed.History}}

## End of the previous unit
{{.Fixed.PriorTail}}

## Outline for this unit
{{.Fixed.Outline}}
{{- end}}

{{- define "refined" -}}
{{range .Refined}}
## Already refined: {{.Label}} segment
{{.Text}}
{{end}}
{{- end}}

{{- define "target" -}}
## Segment to rewrite ({{.WordCount}} characters)
{{.Original}}

## What comes after this segment
{{.Preview}}

## Length
Keep the rewrite between {{.MinWords}} and {{.MaxWords}} characters.
{{- end}}

{{- define "opening" -}}
{{template "context" .}}

{{template "target" .}}

## Instructions
- Rewrite the opening segment with richer sensory detail, tighter pacing and consistent character voices.
- Keep every plot event, name and fact from the original.
- Connect naturally to the end of the previous unit.
- Do not conclude the unit. This is the beginning; leave threads open for the segments that follow.
- Output only the rewritten prose with no titles, labels or commentary.
{{- end}}

{{- define "middle" -}}
{{template "context" .}}
{{template "refined" .}}
{{template "target" .}}

## Instructions
- Continue directly from the last refined segment above, matching its tone and tense.
- Do not repeat any sentence or event already told in the refined segments.
- Do not conclude the unit. More follows after this segment.
- Keep every plot event, name and fact from the original.
- Output only the rewritten prose with no titles, labels or commentary.
{{- end}}

{{- define "closing" -}}
{{template "context" .}}
{{template "refined" .}}
{{template "target" .}}

## Instructions
- Continue directly from the last refined segment above, matching its tone and tense.
- Do not repeat any sentence or event already told in the refined segments.
- Keep every plot event, name and fact from the original.
- The unit MUST end on a cliffhanger, an emotional peak, or a twist.
- Never summarize the unit and never address the reader.
- Never use any of these phrases or their equivalents: {{.Banned}}
- Output only the rewritten prose with no titles, labels or commentary.
{{- end}}
`))

// Builder renders segment prompts
type Builder struct{}

// NewBuilder creates a prompt builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Build renders the prompt for req.Index
func (b *Builder) Build(req Request) (string, error) {
	if req.Index < 0 || req.Index >= len(req.Pieces) {
		return "", fmt.Errorf("segment index %d out of range", req.Index)
	}
	if len(req.Refined) < req.Index {
		return "", fmt.Errorf("segment %d needs %d refined predecessors, got %d", req.Index+1, req.Index, len(req.Refined))
	}

	piece := req.Pieces[req.Index]
	lo, hi := Band(piece.WordCount)
	data := templateData{
		UnitNumber: req.UnitNumber,
		UnitTitle:  req.UnitTitle,
		Fixed:      req.Fixed,
		Label:      segment.Label(req.Index),
		Position:   req.Index + 1,
		Total:      len(req.Pieces),
		Original:   piece.Text,
		WordCount:  piece.WordCount,
		MinWords:   lo,
		MaxWords:   hi,
		Preview:    segment.Preview(req.Pieces, req.Index),
		Banned:     quoteList(req.Banned),
	}
	for i := 0; i < req.Index; i++ {
		data.Refined = append(data.Refined, refinedPart{Label: segment.Label(i), Text: req.Refined[i]})
	}

	name := "middle"
	switch {
	case req.Index == 0:
		name = "opening"
	case piece.Closing || req.Index == models.SegmentCount-1:
		name = "closing"
	}

	var sb strings.Builder
	if err := templates.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", name, err)
	}
	return strings.TrimSpace(sb.String()), nil
}

// Band returns the target length range for an original of wordCount characters
func Band(wordCount int) (int, int) {
	return wordCount * bandLowPct / 100, wordCount * bandHighPct / 100
}

func quoteList(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = `"` + s + `"`
	}
	return strings.Join(quoted, ", ")
}
