// ABOUTME: Shared fixtures for refinement service tests
// ABOUTME: A scripted generator and an in-memory SQLite store seeded with units
package refine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/harper/refinery/internal/models"
	"github.com/harper/refinery/internal/storage/sqlite"
)

// scriptedGenerator records every prompt and answers through respond
type scriptedGenerator struct {
	mu      sync.Mutex
	prompts []string
	models  []string
	respond func(call int, prompt string) (string, error)
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt, model string) (string, error) {
	g.mu.Lock()
	call := len(g.prompts)
	g.prompts = append(g.prompts, prompt)
	g.models = append(g.models, model)
	g.mu.Unlock()

	if g.respond == nil {
		return passage(call), nil
	}
	return g.respond(call, prompt)
}

func (g *scriptedGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func (g *scriptedGenerator) prompt(call int) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prompts[call]
}

func passage(call int) string {
	return fmt.Sprintf("Rewritten passage number %d. The water kept rising along the stone steps of the old quay.", call)
}

// novelText builds roughly n characters of paragraphed prose ending in marker
func novelText(n int, marker string) string {
	sentence := "The ferry groaned against the pilings while the soldiers argued on the bank. "
	var sb strings.Builder
	for i := 0; sb.Len() < n-len(marker)-2; i++ {
		sb.WriteString(sentence)
		if i%4 == 3 {
			sb.WriteString("\n\n")
		}
	}
	sb.WriteString(marker)
	return sb.String()
}

type fixture struct {
	store *sqlite.Store
	gen   *scriptedGenerator
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.NewStoreInMemory()
	if err != nil {
		t.Fatalf("NewStoreInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	project := &models.Project{ID: "p1", Title: "River of Ash", Genre: "historical", DefaultModel: "sonnet"}
	if err := store.SaveProject(ctx, project); err != nil {
		t.Fatalf("SaveProject() error = %v", err)
	}
	if err := store.SaveCharacter(ctx, &models.Character{ID: "c1", ProjectID: "p1", Name: "Lin", Role: "ferryman"}); err != nil {
		t.Fatalf("SaveCharacter() error = %v", err)
	}

	f := &fixture{store: store, gen: &scriptedGenerator{}}
	f.svc = f.service(t, store)
	return f
}

// service builds a Service over refinements, which may wrap the fixture store
func (f *fixture) service(t *testing.T, refinements RefinementStore) *Service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DefaultModel = "opus"
	svc, err := New(cfg, Deps{
		Units:       f.store,
		Sources:     f.store,
		Refinements: refinements,
		Leases:      f.store,
		Generator:   f.gen,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return svc
}

// configured builds a Service with its own config, lease store and generator
func (f *fixture) configured(t *testing.T, cfg Config, leases LeaseStore, gen Generator) *Service {
	t.Helper()
	svc, err := New(cfg, Deps{
		Units:       f.store,
		Sources:     f.store,
		Refinements: f.store,
		Leases:      leases,
		Generator:   gen,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return svc
}

func (f *fixture) addUnit(t *testing.T, number int, content string) *models.Unit {
	t.Helper()
	u := &models.Unit{
		ID:        fmt.Sprintf("u%d", number),
		ProjectID: "p1",
		Number:    number,
		Title:     fmt.Sprintf("Crossing %d", number),
		Content:   content,
		WordCount: len([]rune(content)),
	}
	if err := f.store.SaveUnit(context.Background(), u); err != nil {
		t.Fatalf("SaveUnit() error = %v", err)
	}
	return u
}

func (f *fixture) unit(t *testing.T, id string) *models.Unit {
	t.Helper()
	u, err := f.store.GetUnit(context.Background(), id)
	if err != nil || u == nil {
		t.Fatalf("GetUnit(%s) = %v, %v", id, u, err)
	}
	return u
}

func (f *fixture) latest(t *testing.T, unitID string) *models.Refinement {
	t.Helper()
	r, err := f.store.LatestRefinement(context.Background(), unitID)
	if err != nil || r == nil {
		t.Fatalf("LatestRefinement(%s) = %v, %v", unitID, r, err)
	}
	return r
}

// recordingRefinements captures every current_segment written through it
type recordingRefinements struct {
	RefinementStore
	mu       sync.Mutex
	segments []int
	latest   func(*models.Refinement) *models.Refinement
}

func (r *recordingRefinements) UpdateRefinement(ctx context.Context, id string, upd models.RefinementUpdate) error {
	if upd.CurrentSegment != nil {
		r.mu.Lock()
		r.segments = append(r.segments, *upd.CurrentSegment)
		r.mu.Unlock()
	}
	return r.RefinementStore.UpdateRefinement(ctx, id, upd)
}

func (r *recordingRefinements) LatestRefinement(ctx context.Context, unitID string, statuses ...models.RefinementStatus) (*models.Refinement, error) {
	rec, err := r.RefinementStore.LatestRefinement(ctx, unitID, statuses...)
	if err != nil || rec == nil || r.latest == nil {
		return rec, err
	}
	return r.latest(rec), nil
}
