// Package metrics records concatenation run metrics with Prometheus
// collectors. A nil *Recorder is valid and records nothing.
package metrics

import (
	stderrors "errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/s3types"
)

const namespace = "s3concat"

// Recorder holds the run collectors.
type Recorder struct {
	sourcesMatched prometheus.Counter
	partsCopied    prometheus.Counter
	bytesCopied    prometheus.Counter
	sessions       *prometheus.CounterVec
	deleted        prometheus.Counter
	deleteFailures prometheus.Counter
	abortFailures  prometheus.Counter
	runDuration    prometheus.Histogram
}

// New creates a Recorder and registers its collectors with reg. Collectors
// already registered by an earlier Recorder are reused.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		sourcesMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_matched_total",
			Help:      "Objects matched by the source pattern and queued as parts.",
		}),
		partsCopied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parts_copied_total",
			Help:      "Server-side part copies that succeeded.",
		}),
		bytesCopied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_copied_total",
			Help:      "Bytes copied server-side into multipart uploads.",
		}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Upload sessions by final state.",
		}, []string{"state"}),
		deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_deleted_total",
			Help:      "Source objects removed by cleanup.",
		}),
		deleteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delete_failures_total",
			Help:      "Source objects cleanup failed to remove.",
		}),
		abortFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "abort_failures_total",
			Help:      "Multipart uploads that could not be aborted.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of concatenation runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		}),
	}

	if reg == nil {
		return r
	}

	r.sourcesMatched = register(reg, r.sourcesMatched)
	r.partsCopied = register(reg, r.partsCopied)
	r.bytesCopied = register(reg, r.bytesCopied)
	r.sessions = register(reg, r.sessions)
	r.deleted = register(reg, r.deleted)
	r.deleteFailures = register(reg, r.deleteFailures)
	r.abortFailures = register(reg, r.abortFailures)
	r.runDuration = register(reg, r.runDuration)

	return r
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if stderrors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

// SourceMatched counts one queued source.
func (r *Recorder) SourceMatched() {
	if r == nil {
		return
	}
	r.sourcesMatched.Inc()
}

// PartCopied counts one successful part copy of size bytes.
func (r *Recorder) PartCopied(size int64) {
	if r == nil {
		return
	}
	r.partsCopied.Inc()
	r.bytesCopied.Add(float64(size))
}

// SessionFinished counts a session reaching state.
func (r *Recorder) SessionFinished(state s3types.SessionState) {
	if r == nil {
		return
	}
	r.sessions.WithLabelValues(string(state)).Inc()
}

// SourceDeleted counts one removed source.
func (r *Recorder) SourceDeleted() {
	if r == nil {
		return
	}
	r.deleted.Inc()
}

// DeleteFailed counts one source cleanup could not remove.
func (r *Recorder) DeleteFailed() {
	if r == nil {
		return
	}
	r.deleteFailures.Inc()
}

// AbortFailed counts one upload that could not be aborted.
func (r *Recorder) AbortFailed() {
	if r == nil {
		return
	}
	r.abortFailures.Inc()
}

// ObserveRun records the duration of a run.
func (r *Recorder) ObserveRun(d time.Duration) {
	if r == nil {
		return
	}
	r.runDuration.Observe(d.Seconds())
}

// WriteTextfile writes every metric gathered by g to path in the text
// exposition format, for the node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
