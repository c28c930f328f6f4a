// ABOUTME: Tests for the Prometheus recorder
// ABOUTME: Reads values back through the exposition handler
package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestRecorder_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}

	r.ObserveAttempt("opus", "transient", 2*time.Second)
	r.ObserveAttempt("opus", "success", 3*time.Second)
	r.SegmentRefined(0)
	r.SegmentRefined(2)
	r.UnitStarted()
	r.UnitFinished("completed")
	r.UnitSkipped()

	out := scrape(t, reg)
	for _, want := range []string{
		`refinery_llm_attempts_total{model="opus",outcome="success"} 1`,
		`refinery_llm_attempts_total{model="opus",outcome="transient"} 1`,
		`refinery_llm_attempt_seconds_count{model="opus"} 2`,
		`refinery_segments_refined_total{segment="1"} 1`,
		`refinery_segments_refined_total{segment="3"} 1`,
		`refinery_units_total{outcome="completed"} 1`,
		`refinery_units_total{outcome="skipped"} 1`,
		`refinery_units_in_flight 0`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRecorder_DoubleRegisterFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewRecorder(reg); err != nil {
		t.Fatal(err)
	}
	if _, err := NewRecorder(reg); err == nil {
		t.Error("expected duplicate registration error")
	}
}

func TestRecorder_NilIsSafe(t *testing.T) {
	var r *Recorder
	r.ObserveAttempt("m", "success", time.Second)
	r.SegmentRefined(1)
	r.UnitStarted()
	r.UnitFinished("failed")
	r.UnitSkipped()
}

func TestServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, "127.0.0.1:0", prometheus.NewRegistry())
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop after cancel")
	}
}
