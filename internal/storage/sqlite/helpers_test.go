// ABOUTME: Shared fixtures for SQLite store tests
// ABOUTME: Seeds projects, units and refinement records
package sqlite

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/harper/refinery/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStoreInMemory()
	if err != nil {
		t.Fatalf("NewStoreInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedProject(t *testing.T, store *Store, id string) *models.Project {
	t.Helper()
	p := &models.Project{ID: id, Title: "Project " + id, Genre: "historical", DefaultModel: "sonnet"}
	if err := store.SaveProject(context.Background(), p); err != nil {
		t.Fatalf("SaveProject() error = %v", err)
	}
	return p
}

func seedUnit(t *testing.T, store *Store, projectID string, number int, content string) *models.Unit {
	t.Helper()
	u := &models.Unit{
		ID:        fmt.Sprintf("%s-u%d", projectID, number),
		ProjectID: projectID,
		Number:    number,
		Title:     fmt.Sprintf("Unit %d", number),
		Content:   content,
		WordCount: len([]rune(content)),
	}
	if err := store.SaveUnit(context.Background(), u); err != nil {
		t.Fatalf("SaveUnit() error = %v", err)
	}
	return u
}

func newRecord(u *models.Unit) *models.Refinement {
	r := &models.Refinement{
		UnitID:            u.ID,
		ProjectID:         u.ProjectID,
		UnitNumber:        u.Number,
		OriginalContent:   u.Content,
		OriginalWordCount: u.WordCount,
		Model:             "claude-sonnet-4-5",
		PriorTail:         "tail of previous unit",
	}
	for i := range r.Segments {
		text := strings.Repeat(string(rune('a'+i)), 10)
		r.Segments[i] = models.Segment{Original: text, OriginalWordCount: 10}
	}
	return r
}
