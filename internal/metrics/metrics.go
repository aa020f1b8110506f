package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds pipeline metrics in a private registry so the textfile
// export carries only podsearch series. A nil Recorder discards everything.
type Recorder struct {
	registry *prometheus.Registry

	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	files           *prometheus.CounterVec
	chunks          prometheus.Counter
	corrections     prometheus.Counter
	indexDocuments  *prometheus.GaugeVec
	indexBytes      *prometheus.GaugeVec
	stageDuration   *prometheus.GaugeVec
	lastSuccess     *prometheus.GaugeVec
}

// New registers every podsearch metric in a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		// Labels: provider, outcome (success/error/timeout)
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "podsearch_transcription_attempts_total",
			Help: "Provider calls by provider and outcome",
		}, []string{"provider", "outcome"}),
		attemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "podsearch_transcription_attempt_duration_seconds",
			Help:    "Provider call latency in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 240, 480, 960},
		}, []string{"provider"}),
		// Labels: stage (transcribe/index), outcome (processed/cached/skipped/failed)
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "podsearch_files_total",
			Help: "Files handled per stage and outcome",
		}, []string{"stage", "outcome"}),
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "podsearch_chunks_transcribed_total",
			Help: "Audio chunks sent to the provider successfully",
		}),
		corrections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "podsearch_spelling_corrections_total",
			Help: "Spelling corrections applied to transcripts",
		}),
		indexDocuments: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "podsearch_index_documents",
			Help: "Documents in the last persisted index",
		}, []string{"collection"}),
		// Labels: kind (encoded/compressed)
		indexBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "podsearch_index_bytes",
			Help: "Size of the last persisted index",
		}, []string{"collection", "kind"}),
		stageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "podsearch_stage_duration_seconds",
			Help: "Wall time of the last stage run",
		}, []string{"stage", "collection"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "podsearch_stage_last_success_timestamp_seconds",
			Help: "Unix time of the last stage run that did not fail",
		}, []string{"stage", "collection"}),
	}
	r.registry.MustRegister(
		r.attempts, r.attemptDuration, r.files, r.chunks, r.corrections,
		r.indexDocuments, r.indexBytes, r.stageDuration, r.lastSuccess,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordAttempt counts one provider call.
func (r *Recorder) RecordAttempt(provider, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.attempts.WithLabelValues(provider, outcome).Inc()
	r.attemptDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// RecordFile counts one file outcome for a stage.
func (r *Recorder) RecordFile(stage, outcome string) {
	if r == nil {
		return
	}
	r.files.WithLabelValues(stage, outcome).Inc()
}

// AddChunks counts transcribed chunks.
func (r *Recorder) AddChunks(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.chunks.Add(float64(n))
}

// AddCorrections counts applied spelling corrections.
func (r *Recorder) AddCorrections(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.corrections.Add(float64(n))
}

// SetIndex records the size of a persisted index.
func (r *Recorder) SetIndex(collection string, documents int, encoded, compressed int64) {
	if r == nil {
		return
	}
	r.indexDocuments.WithLabelValues(collection).Set(float64(documents))
	r.indexBytes.WithLabelValues(collection, "encoded").Set(float64(encoded))
	r.indexBytes.WithLabelValues(collection, "compressed").Set(float64(compressed))
}

// FinishStage records a stage's wall time and, when it succeeded, the time
// it finished.
func (r *Recorder) FinishStage(stage, collection string, elapsed time.Duration, succeeded bool) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage, collection).Set(elapsed.Seconds())
	if succeeded {
		r.lastSuccess.WithLabelValues(stage, collection).SetToCurrentTime()
	}
}

// WriteTextfile exports the registry in the node_exporter textfile format.
// An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || strings.TrimSpace(path) == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
