// ABOUTME: Tests for batch refinement over a range of units
// ABOUTME: Verifies ordering, skip and failure handling, and the chained prior context
package refine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"github.com/harper/refinery/internal/llm"
	"github.com/harper/refinery/internal/models"
	"github.com/harper/refinery/internal/prompt"
)

func collect(t *testing.T, f *fixture, req BatchRequest) []models.BatchEvent {
	t.Helper()
	events, err := f.svc.RefineBatch(context.Background(), req)
	if err != nil {
		t.Fatalf("RefineBatch() error = %v", err)
	}
	var out []models.BatchEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func statuses(events []models.BatchEvent) []models.BatchEventStatus {
	out := make([]models.BatchEventStatus, len(events))
	for i, ev := range events {
		out[i] = ev.Status
	}
	return out
}

func TestRefineBatch_SkipResetsChain(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	defer func() { _ = f.store.Close() }()
	for n := 1; n <= 5; n++ {
		content := novelText(800, "End.")
		if n == 3 {
			content = ""
		}
		f.addUnit(t, n, content)
	}

	events := collect(t, f, BatchRequest{ProjectID: "p1", Start: 1, End: 5})
	want := []models.BatchEventStatus{
		models.BatchCompleted, models.BatchCompleted, models.BatchSkipped,
		models.BatchCompleted, models.BatchCompleted,
	}
	got := statuses(events)
	if strings.Join(toStrings(got), ",") != strings.Join(toStrings(want), ",") {
		t.Fatalf("statuses = %v, want %v", got, want)
	}
	for i, ev := range events {
		if ev.UnitNumber != i+1 {
			t.Errorf("event %d unit number = %d", i, ev.UnitNumber)
		}
	}
	if events[2].Reason != ReasonNoContent {
		t.Errorf("skip reason = %q, want %q", events[2].Reason, ReasonNoContent)
	}
	if events[0].Result == nil || events[0].Result.Status != models.StatusCompleted {
		t.Errorf("completed event result = %+v", events[0].Result)
	}

	// Units 1, 2, 4, 5 each take three calls: unit 2 starts at call 3, unit 4 at 6, unit 5 at 9
	if p := f.gen.prompt(0); !strings.Contains(p, prompt.NoPriorUnit) {
		t.Error("first unit of a batch should start without prior context")
	}
	if p := f.gen.prompt(3); !strings.Contains(p, passage(2)) {
		t.Error("unit 2 should continue from unit 1's refined ending")
	}
	unit4 := f.gen.prompt(6)
	if !strings.Contains(unit4, prompt.NoPriorUnit) || strings.Contains(unit4, passage(5)) {
		t.Error("unit 4 should not inherit unit 2's context across the skipped unit")
	}
	if p := f.gen.prompt(9); !strings.Contains(p, passage(8)) {
		t.Error("unit 5 should continue from unit 4's refined ending")
	}
}

func TestRefineBatch_FailureFallsBackToOriginal(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	defer func() { _ = f.store.Close() }()
	f.addUnit(t, 1, novelText(800, "End."))
	f.addUnit(t, 2, novelText(800, "UNIT-TWO-ORIGINAL-ENDING"))
	f.addUnit(t, 3, novelText(800, "End."))

	f.gen.respond = func(call int, _ string) (string, error) {
		if call == 3 {
			return "", &llm.HTTPStatusError{StatusCode: 400, Body: "bad request"}
		}
		return passage(call), nil
	}

	events := collect(t, f, BatchRequest{ProjectID: "p1", Start: 1, End: 3})
	got := toStrings(statuses(events))
	if strings.Join(got, ",") != "completed,failed,completed" {
		t.Fatalf("statuses = %v", got)
	}
	if !strings.Contains(events[1].Error, "400") {
		t.Errorf("failed event error = %q", events[1].Error)
	}

	// Unit 3 starts at call 4
	if p := f.gen.prompt(4); !strings.Contains(p, "UNIT-TWO-ORIGINAL-ENDING") {
		t.Error("unit 3 should continue from unit 2's original text after unit 2 failed")
	}
	if f.unit(t, "u2").IsRefined {
		t.Error("failed unit must keep its original content")
	}
}

func TestRefineBatch_AllFailStillRunsToEnd(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	defer func() { _ = f.store.Close() }()
	for n := 1; n <= 3; n++ {
		f.addUnit(t, n, novelText(800, "End."))
	}
	f.gen.respond = func(int, string) (string, error) {
		return "", errors.New("connection reset")
	}

	summary, err := f.svc.RunBatch(context.Background(), BatchRequest{ProjectID: "p1", Start: 1, End: 3}, nil)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if summary != (models.BatchSummary{Total: 3, Failed: 3}) {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRefineBatch_MissingUnitSkipped(t *testing.T) {
	f := newFixture(t)
	f.addUnit(t, 1, novelText(800, "End."))
	f.addUnit(t, 3, novelText(800, "End."))

	events := collect(t, f, BatchRequest{ProjectID: "p1", Start: 1, End: 3})
	if len(events) != 3 || events[1].Status != models.BatchSkipped || events[1].Reason != ReasonNotFound {
		t.Fatalf("events = %+v", events)
	}
	if p := f.gen.prompt(3); !strings.Contains(p, prompt.NoPriorUnit) {
		t.Error("a missing unit should reset the chained context")
	}
}

func TestRefineBatch_StopsWhenConsumerStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	defer func() { _ = f.store.Close() }()
	for n := 1; n <= 3; n++ {
		f.addUnit(t, n, novelText(800, "End."))
	}

	events, err := f.svc.RefineBatch(context.Background(), BatchRequest{ProjectID: "p1", Start: 1, End: 3})
	if err != nil {
		t.Fatal(err)
	}
	for range events {
		break
	}
	if f.gen.calls() != models.SegmentCount {
		t.Errorf("generator calls = %d, want only the first unit's", f.gen.calls())
	}
	if f.unit(t, "u2").IsRefined {
		t.Error("unit 2 should not start after the consumer stopped")
	}
}

func TestRefineBatch_CancelStopsFutureUnits(t *testing.T) {
	f := newFixture(t)
	for n := 1; n <= 3; n++ {
		f.addUnit(t, n, novelText(800, "End."))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var seen int
	_, err := f.svc.RunBatch(ctx, BatchRequest{ProjectID: "p1", Start: 1, End: 3}, func(models.BatchEvent) {
		seen++
		cancel()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RunBatch() error = %v, want context.Canceled", err)
	}
	if seen != 1 {
		t.Errorf("events seen = %d, want 1", seen)
	}
}

func TestRefineBatch_InvalidRequest(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.RefineBatch(context.Background(), BatchRequest{ProjectID: "p1", Start: 3, End: 1}); !errors.Is(err, ErrPrecondition) {
		t.Errorf("reversed range error = %v, want ErrPrecondition", err)
	}
	if _, err := f.svc.RefineBatch(context.Background(), BatchRequest{ProjectID: "p1", Start: 0, End: 1}); !errors.Is(err, ErrPrecondition) {
		t.Errorf("zero start error = %v, want ErrPrecondition", err)
	}
	if _, err := f.svc.RefineBatch(context.Background(), BatchRequest{ProjectID: "nope", Start: 1, End: 1}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown project error = %v, want ErrNotFound", err)
	}
}

func toStrings(in []models.BatchEventStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
