// ABOUTME: End-to-end tests of the CLI against a temporary database
// ABOUTME: A local SSE server stands in for the model gateway

package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/harper/refinery/internal/models"
)

const cliBundle = `
project:
  id: p1
  title: River of Ash
  default_model: sonnet
characters:
  - name: Lin
    role: ferryman
units:
  - id: ch1
    number: 1
    title: Crossing
    content: |
      %[1]s
  - id: ch2
    number: 2
    title: Ash
    content: |
      %[1]s
`

func chapterText() string {
	return strings.Repeat("The ferry creaked under the weight of the carts and the horses stamped. ", 10)
}

// fakeGateway answers every chat completion with one streamed passage
func fakeGateway(t *testing.T) *atomic.Int32 {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		chunk, _ := json.Marshal(openai.ChatCompletionStreamResponse{
			Choices: []openai.ChatCompletionStreamChoice{{
				Delta: openai.ChatCompletionStreamChoiceDelta{
					Content: fmt.Sprintf("Passage %d rewritten. Rain drummed on the ferry roof as the river carried ash.", n),
				},
			}},
		})
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: %s\n\ndata: [DONE]\n\n", chunk)
	}))
	t.Cleanup(server.Close)

	t.Setenv("REFINERY_API_BASE", server.URL)
	t.Setenv("REFINERY_API_KEY", "test-key")
	t.Setenv("REFINERY_BACKOFF_BASE", "1ms")
	return &calls
}

func setupCLI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	bundle := filepath.Join(dir, "bundle.yaml")
	content := fmt.Sprintf(cliBundle, chapterText())
	if err := os.WriteFile(bundle, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	db := filepath.Join(dir, "refinery.db")

	out, err := runCLI(t, db, "import", bundle)
	if err != nil {
		t.Fatalf("import error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "Imported project p1: 2 unit(s), 1 character(s), 0 outline(s)") {
		t.Fatalf("import output = %q", out)
	}
	return db
}

func runCLI(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetErr(&output)
	cmd.SetArgs(append([]string{"--db", db}, args...))
	err := cmd.Execute()
	return output.String(), err
}

func TestCLI_ReadOnlyCommands(t *testing.T) {
	fakeGateway(t)
	db := setupCLI(t)

	t.Run("units json", func(t *testing.T) {
		out, err := runCLI(t, db, "--format", "json", "units", "p1")
		if err != nil {
			t.Fatalf("units error = %v", err)
		}
		var units []models.UnitListing
		if err := json.Unmarshal([]byte(out), &units); err != nil {
			t.Fatalf("decode units: %v\n%s", err, out)
		}
		if len(units) != 2 || units[0].UnitID != "ch1" || units[0].IsRefined {
			t.Errorf("units = %+v", units)
		}
	})

	t.Run("status", func(t *testing.T) {
		out, err := runCLI(t, db, "status", "p1")
		if err != nil {
			t.Fatalf("status error = %v", err)
		}
		if !strings.Contains(out, "idle") || !strings.Contains(out, "Units refined: 0/2") {
			t.Errorf("status output = %q", out)
		}
	})

	t.Run("models", func(t *testing.T) {
		out, err := runCLI(t, db, "--format", "json", "models")
		if err != nil {
			t.Fatalf("models error = %v", err)
		}
		var catalog models.Catalog
		if err := json.Unmarshal([]byte(out), &catalog); err != nil {
			t.Fatalf("decode catalog: %v", err)
		}
		if catalog.Default == "" || len(catalog.Models) == 0 {
			t.Errorf("catalog = %+v", catalog)
		}
	})

	t.Run("export markdown", func(t *testing.T) {
		out, err := runCLI(t, db, "export", "p1", "--as", "markdown")
		if err != nil {
			t.Fatalf("export error = %v", err)
		}
		if !strings.Contains(out, "River of Ash") || !strings.Contains(out, "Crossing") {
			t.Errorf("export output = %q", out)
		}
	})
}

func TestCLI_Errors(t *testing.T) {
	fakeGateway(t)
	db := setupCLI(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"diff without refinement", []string{"diff", "ch1"}, "not found"},
		{"unknown unit", []string{"refine", "nope"}, "not found"},
		{"bad review status", []string{"review", "ch1", "maybe"}, "invalid review status"},
		{"zip without output", []string{"export", "p1", "--zip"}, "--zip requires --output"},
		{"bad export format", []string{"export", "p1", "--as", "docx"}, "unknown export format"},
		{"resume without target", []string{"resume"}, "give either a unit ID or --project"},
		{"nothing to resume", []string{"resume", "ch1"}, "no interrupted refinement"},
		{"batch bad range", []string{"batch", "p1", "--start", "0", "--end", "2"}, "start must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, db, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestCLI_RefineDiffRollback(t *testing.T) {
	calls := fakeGateway(t)
	db := setupCLI(t)

	out, err := runCLI(t, db, "refine", "ch1", "--model", "opus")
	if err != nil {
		t.Fatalf("refine error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "Refined unit 1 (version 1") {
		t.Errorf("refine output = %q", out)
	}
	if got := calls.Load(); got != models.SegmentCount {
		t.Errorf("gateway calls = %d, want %d", got, models.SegmentCount)
	}

	out, err = runCLI(t, db, "diff", "ch1")
	if err != nil {
		t.Fatalf("diff error = %v", err)
	}
	for _, want := range []string{"Segment 1", "Segment 3", "--- original", "+++ refined", "Passage 1 rewritten"} {
		if !strings.Contains(out, want) {
			t.Errorf("diff output missing %q:\n%s", want, out)
		}
	}

	if _, err := runCLI(t, db, "review", "ch1", "approved", "--comment", "good"); err != nil {
		t.Fatalf("review error = %v", err)
	}
	out, err = runCLI(t, db, "--format", "json", "reviews", "p1")
	if err != nil {
		t.Fatalf("reviews error = %v", err)
	}
	var summary models.ReviewSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Approved != 1 || summary.Total != 1 {
		t.Errorf("summary = %+v", summary)
	}

	out, err = runCLI(t, db, "rollback", "ch1")
	if err != nil {
		t.Fatalf("rollback error = %v", err)
	}
	if !strings.Contains(out, "Restored unit 1") {
		t.Errorf("rollback output = %q", out)
	}

	out, err = runCLI(t, db, "--format", "json", "units", "p1")
	if err != nil {
		t.Fatalf("units error = %v", err)
	}
	if strings.Contains(out, `"is_refined": true`) {
		t.Errorf("unit still refined after rollback:\n%s", out)
	}
}

func TestCLI_Batch(t *testing.T) {
	fakeGateway(t)
	db := setupCLI(t)

	out, err := runCLI(t, db, "--format", "json", "batch", "p1", "--start", "1", "--end", "3")
	if err != nil {
		t.Fatalf("batch error = %v\n%s", err, out)
	}
	var result struct {
		Events  []models.BatchEvent `json:"events"`
		Summary models.BatchSummary `json:"summary"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode batch: %v\n%s", err, out)
	}
	want := models.BatchSummary{Total: 3, Completed: 2, Skipped: 1}
	if result.Summary != want {
		t.Errorf("summary = %+v, want %+v", result.Summary, want)
	}
	if result.Events[2].Reason != "not found" {
		t.Errorf("unit 3 event = %+v, want not found skip", result.Events[2])
	}

	out, err = runCLI(t, db, "status", "p1")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if !strings.Contains(out, "completed") {
		t.Errorf("status after batch = %q", out)
	}
}
