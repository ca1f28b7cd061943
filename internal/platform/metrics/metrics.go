package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reltone"

// Recorder holds the collectors shared by the pitch pipeline and the progress store.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry         *prometheus.Registry
	frames           *prometheus.CounterVec
	corrections      *prometheus.CounterVec
	sessionsRecorded *prometheus.CounterVec
	saveFailures     prometheus.Counter
	repairs          *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Audio frames processed by the pitch pipeline, by outcome.",
		}, []string{"state"}),
		corrections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "corrections_total",
			Help:      "Harmonic corrections applied, by correction type.",
		}, []string{"type"}),
		sessionsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_recorded_total",
			Help:      "Training sessions recorded, by session grade.",
		}, []string{"grade"}),
		saveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_save_failures_total",
			Help:      "Progress writes that failed after the quota retry.",
		}),
		repairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_repairs_total",
			Help:      "Health-check outcomes on load.",
		}, []string{"outcome"}),
	}
	r.registry.MustRegister(r.frames, r.corrections, r.sessionsRecorded, r.saveFailures, r.repairs)
	return r
}

func (r *Recorder) Frame(state string) {
	if r == nil {
		return
	}
	r.frames.WithLabelValues(state).Inc()
}

func (r *Recorder) Correction(kind string) {
	if r == nil {
		return
	}
	r.corrections.WithLabelValues(kind).Inc()
}

func (r *Recorder) SessionRecorded(grade string) {
	if r == nil {
		return
	}
	r.sessionsRecorded.WithLabelValues(grade).Inc()
}

func (r *Recorder) SaveFailure() {
	if r == nil {
		return
	}
	r.saveFailures.Inc()
}

func (r *Recorder) Repair(outcome string) {
	if r == nil {
		return
	}
	r.repairs.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Serve exposes /metrics until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve metrics: %w", err)
	}
}
