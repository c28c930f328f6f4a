// ABOUTME: Tests for project export and the comparison report
// ABOUTME: Verifies every format, the zip layout and report totals
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harper/refinery/internal/models"
	"github.com/harper/refinery/internal/storage/sqlite"
)

func seedStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.NewStoreInMemory()
	if err != nil {
		t.Fatalf("NewStoreInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	if err := store.SaveProject(ctx, &models.Project{ID: "p1", Title: "River: Ash", Synopsis: "A crossing."}); err != nil {
		t.Fatal(err)
	}
	units := []*models.Unit{
		{ID: "u1", ProjectID: "p1", Number: 1, Title: "Crossing", Content: "Refined opening text.", WordCount: 21, IsRefined: true},
		{ID: "u2", ProjectID: "p1", Number: 2, Content: "Second unit text.", WordCount: 17},
	}
	for _, u := range units {
		if err := store.SaveUnit(ctx, u); err != nil {
			t.Fatal(err)
		}
	}

	for version, refined := range []string{"first attempt", "Refined opening text."} {
		rec := &models.Refinement{
			UnitID: "u1", ProjectID: "p1", UnitNumber: 1,
			OriginalContent:   "Original opening text v" + string(rune('1'+version)),
			OriginalWordCount: 40,
			Model:             "claude-opus-4-5",
		}
		rec.Segments[0] = models.Segment{Original: "Original opening", OriginalWordCount: 16}
		if err := store.CreateRefinement(ctx, rec); err != nil {
			t.Fatal(err)
		}
		status := models.StatusCompleted
		wc := 50
		now := time.Now()
		if err := store.UpdateRefinement(ctx, rec.ID, models.RefinementUpdate{
			Status:           &status,
			Segment:          &models.SegmentResult{Index: 0, Text: refined, WordCount: len(refined)},
			RefinedContent:   &refined,
			RefinedWordCount: &wc,
			CompletedAt:      &now,
		}); err != nil {
			t.Fatal(err)
		}
	}
	return store
}

func TestWrite_Text(t *testing.T) {
	e := New(seedStore(t))
	var buf bytes.Buffer
	if err := e.Write(context.Background(), &buf, "p1", FormatText); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"River: Ash\n=====", "Crossing\n-----", "Refined opening text.", "Unit 2\n", "Second unit text."} {
		if !strings.Contains(out, want) {
			t.Errorf("text export missing %q", want)
		}
	}
	if strings.Index(out, "Crossing") > strings.Index(out, "Unit 2") {
		t.Error("units should be exported in order")
	}
}

func TestWrite_Markdown(t *testing.T) {
	e := New(seedStore(t))
	var buf bytes.Buffer
	if err := e.Write(context.Background(), &buf, "p1", FormatMarkdown); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"# River: Ash\n", "> A crossing.", "## Crossing\n", "## Unit 2\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown export missing %q", want)
		}
	}
}

func TestWrite_StructuredFormats(t *testing.T) {
	e := New(seedStore(t))

	var jbuf bytes.Buffer
	if err := e.Write(context.Background(), &jbuf, "p1", FormatJSON); err != nil {
		t.Fatalf("Write(json) error = %v", err)
	}
	var jdoc Document
	if err := json.Unmarshal(jbuf.Bytes(), &jdoc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	var ybuf bytes.Buffer
	if err := e.Write(context.Background(), &ybuf, "p1", FormatYAML); err != nil {
		t.Fatalf("Write(yaml) error = %v", err)
	}
	var ydoc Document
	if err := yaml.Unmarshal(ybuf.Bytes(), &ydoc); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}

	for name, doc := range map[string]Document{"json": jdoc, "yaml": ydoc} {
		if doc.Title != "River: Ash" || doc.TotalUnits != 2 || doc.TotalWords != 38 {
			t.Errorf("%s document = %+v", name, doc)
		}
		if len(doc.Units) != 2 || !doc.Units[0].IsRefined || doc.Units[1].IsRefined {
			t.Errorf("%s units = %+v", name, doc.Units)
		}
	}
}

func TestWriteZip(t *testing.T) {
	e := New(seedStore(t))
	var buf bytes.Buffer
	if err := e.WriteZip(context.Background(), &buf, "p1", FormatMarkdown); err != nil {
		t.Fatalf("WriteZip() error = %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("invalid zip: %v", err)
	}
	files := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(rc)
		_ = rc.Close()
		files[f.Name] = string(data)
	}

	refined, ok := files["refined/River_ Ash.md"]
	if !ok {
		t.Fatalf("zip entries = %v", keys(files))
	}
	if !strings.Contains(refined, "Refined opening text.") {
		t.Error("refined export missing unit text")
	}
	original, ok := files["original/River_ Ash_original.txt"]
	if !ok {
		t.Fatalf("zip entries = %v", keys(files))
	}
	if !strings.Contains(original, "Original opening text v2") || strings.Contains(original, "v1") {
		t.Errorf("originals should come from the latest completed record:\n%s", original)
	}
}

func TestDiffReport(t *testing.T) {
	e := New(seedStore(t))
	var buf bytes.Buffer
	if err := e.DiffReport(context.Background(), &buf, "p1"); err != nil {
		t.Fatalf("DiffReport() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"# River: Ash - Refinement Report",
		"- Units refined: 1",
		"- Change: +10 (+25.0%)",
		"## Unit 1",
		"- Review: pending",
		"Original opening",
		"Refined opening text.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
	if strings.Contains(out, "## Unit 2") {
		t.Error("units without a completed refinement should not be reported")
	}
}

func TestExport_UnknownProject(t *testing.T) {
	e := New(seedStore(t))
	var buf bytes.Buffer
	if err := e.Write(context.Background(), &buf, "nope", FormatText); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("Write() error = %v, want ErrProjectNotFound", err)
	}
	if err := e.DiffReport(context.Background(), &buf, "nope"); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("DiffReport() error = %v, want ErrProjectNotFound", err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"txt", FormatText, false},
		{"MD", FormatMarkdown, false},
		{"markdown", FormatMarkdown, false},
		{"json", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestFileName(t *testing.T) {
	if got := FileName("a/b", FormatJSON); got != "a_b.json" {
		t.Errorf("FileName() = %s, want a_b.json", got)
	}
	if got := FileName("  ", FormatText); got != "project.txt" {
		t.Errorf("FileName() = %s, want project.txt", got)
	}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
