// ABOUTME: Prometheus instrumentation for generation calls and unit outcomes
// ABOUTME: A nil *Recorder is valid and records nothing
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "refinery"

// Recorder owns the pipeline's collectors
type Recorder struct {
	attempts       *prometheus.CounterVec
	attemptSeconds *prometheus.HistogramVec
	segments       *prometheus.CounterVec
	units          *prometheus.CounterVec
	inFlight       prometheus.Gauge
}

// NewRecorder creates the collectors and registers them with reg
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_attempts_total",
			Help:      "Generation attempts by model and outcome.",
		}, []string{"model", "outcome"}),
		attemptSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_attempt_seconds",
			Help:      "Duration of single generation attempts.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"model"}),
		segments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_refined_total",
			Help:      "Segments refined and persisted, by position.",
		}, []string{"segment"}),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_total",
			Help:      "Unit refinement outcomes.",
		}, []string{"outcome"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "units_in_flight",
			Help:      "Units currently being refined by this process.",
		}),
	}
	for _, c := range []prometheus.Collector{r.attempts, r.attemptSeconds, r.segments, r.units, r.inFlight} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveAttempt records one generation attempt
func (r *Recorder) ObserveAttempt(model, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.attempts.WithLabelValues(model, outcome).Inc()
	r.attemptSeconds.WithLabelValues(model).Observe(elapsed.Seconds())
}

// SegmentRefined counts a persisted segment (0-based index)
func (r *Recorder) SegmentRefined(index int) {
	if r == nil {
		return
	}
	r.segments.WithLabelValues(strconv.Itoa(index + 1)).Inc()
}

// UnitStarted marks a unit entering the pipeline
func (r *Recorder) UnitStarted() {
	if r == nil {
		return
	}
	r.inFlight.Inc()
}

// UnitFinished marks a unit leaving the pipeline with outcome
func (r *Recorder) UnitFinished(outcome string) {
	if r == nil {
		return
	}
	r.inFlight.Dec()
	r.units.WithLabelValues(outcome).Inc()
}

// UnitSkipped counts a unit a batch passed over
func (r *Recorder) UnitSkipped() {
	if r == nil {
		return
	}
	r.units.WithLabelValues("skipped").Inc()
}

// Handler exposes the gatherer's metrics in the text exposition format
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve runs a /metrics endpoint on addr until ctx is done
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
