// Package metrics exports import pipeline counters to Prometheus.
//
// A nil *Recorder is valid and records nothing, so services and tests can
// run without a registry.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "imports"

// Recorder holds the pipeline collectors.
type Recorder struct {
	created         prometheus.Counter
	analyzed        prometheus.Counter
	committed       prometheus.Counter
	enqueueFailures prometheus.Counter
	rowsStaged      *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	reenqueued      prometheus.Counter
}

// New registers the pipeline collectors on reg, or the default registerer
// when reg is nil. Registering on the same registry twice is not an error.
func New(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "created_total",
			Help:      "Upload slots issued.",
		}),
		analyzed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyzed_total",
			Help:      "Successful analyze calls.",
		}),
		committed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "committed_total",
			Help:      "Commits accepted and enqueued.",
		}),
		enqueueFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enqueue_failures_total",
			Help:      "Commits whose processing message could not be published.",
		}),
		rowsStaged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_staged_total",
			Help:      "Rows written to staging, by validity.",
		}, []string{"valid"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "materialize_duration_seconds",
			Help:      "Duration of staging materialization runs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		reenqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_reenqueued_total",
			Help:      "Stale PROCESSING imports re-published by the reconciliation sweep.",
		}),
	}

	for _, c := range []prometheus.Collector{
		r.created, r.analyzed, r.committed, r.enqueueFailures,
		r.rowsStaged, r.runDuration, r.reenqueued,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return nil, fmt.Errorf("register import metric: %w", err)
		}
	}
	return r, nil
}

func (r *Recorder) ImportCreated() {
	if r != nil {
		r.created.Inc()
	}
}

func (r *Recorder) ImportAnalyzed() {
	if r != nil {
		r.analyzed.Inc()
	}
}

func (r *Recorder) ImportCommitted() {
	if r != nil {
		r.committed.Inc()
	}
}

func (r *Recorder) EnqueueFailed() {
	if r != nil {
		r.enqueueFailures.Inc()
	}
}

// RowsStaged records one run's valid and invalid row counts.
func (r *Recorder) RowsStaged(valid, invalid int) {
	if r == nil {
		return
	}
	r.rowsStaged.WithLabelValues("true").Add(float64(valid))
	r.rowsStaged.WithLabelValues("false").Add(float64(invalid))
}

// Materialized records a run duration labelled by outcome (done, failed,
// busy, error).
func (r *Recorder) Materialized(outcome string, d time.Duration) {
	if r != nil {
		r.runDuration.WithLabelValues(outcome).Observe(d.Seconds())
	}
}

func (r *Recorder) Reenqueued(n int) {
	if r != nil {
		r.reenqueued.Add(float64(n))
	}
}
