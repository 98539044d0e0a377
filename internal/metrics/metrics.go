// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics aggregates pipeline trace spans and assignment results
// into the quality report exported at /metrics/report.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Recorder collects spans and counters from concurrent requests. Writes are
// append-only; Snapshot derives the aggregate report on demand.
type Recorder struct {
	mu          sync.Mutex
	spans       []types.TraceSpan
	latenciesMs []float64

	answers        atomic.Int64
	answersAtFloor atomic.Int64
	sentences      atomic.Int64
	sentencesCited atomic.Int64
	candidates     atomic.Int64
	preprints      atomic.Int64

	requests       atomic.Int64
	retries        atomic.Int64
	staleFallbacks atomic.Int64
	sourceErrors   atomic.Int64

	evalMu    sync.Mutex
	precision float64
	coverage  float64
	evaluated bool

	now func() time.Time
}

// NewRecorder returns an empty recorder on the wall clock.
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// RecordSpan appends one pipeline trace span.
func (r *Recorder) RecordSpan(span types.TraceSpan) {
	r.mu.Lock()
	r.spans = append(r.spans, span)
	r.mu.Unlock()
}

// Spans returns a copy of all recorded spans.
func (r *Recorder) Spans() []types.TraceSpan {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.TraceSpan, len(r.spans))
	copy(out, r.spans)
	return out
}

// RecordRequest registers one completed pipeline run and its end-to-end
// latency.
func (r *Recorder) RecordRequest(latency time.Duration) {
	r.requests.Inc()
	r.mu.Lock()
	r.latenciesMs = append(r.latenciesMs, float64(latency)/float64(time.Millisecond))
	r.mu.Unlock()
}

// RecordRanking registers ranking counters: total candidate articles and how
// many were excluded as preprints.
func (r *Recorder) RecordRanking(candidates, preprintsFiltered int) {
	r.candidates.Add(int64(candidates))
	r.preprints.Add(int64(preprintsFiltered))
}

// RecordAssignment registers one answer's citation assignment outcome.
func (r *Recorder) RecordAssignment(sentences, sentencesWithCites int, meetsSourceFloor bool) {
	r.answers.Inc()
	if meetsSourceFloor {
		r.answersAtFloor.Inc()
	}
	r.sentences.Add(int64(sentences))
	r.sentencesCited.Add(int64(sentencesWithCites))
}

// SetEvaluation stores golden-set precision and coverage results.
func (r *Recorder) SetEvaluation(precision, coverage float64) {
	r.evalMu.Lock()
	r.precision, r.coverage, r.evaluated = precision, coverage, true
	r.evalMu.Unlock()
}

// RetryAttempted implements resilience.Events.
func (r *Recorder) RetryAttempted(string, int, error) { r.retries.Inc() }

// StaleServed implements resilience.Events.
func (r *Recorder) StaleServed(string) { r.staleFallbacks.Inc() }

// SourceFailed implements resilience.Events.
func (r *Recorder) SourceFailed(string, error) { r.sourceErrors.Inc() }

// Snapshot computes the aggregate quality report. Ratios over empty
// denominators report 0; evaluation metrics report -1 until an evaluation
// has run in this process.
func (r *Recorder) Snapshot() types.MetricsSnapshot {
	snap := types.MetricsSnapshot{
		RespuestasConCitas:     ratio(r.answersAtFloor.Load(), r.answers.Load()),
		OracionesConSoporte:    ratio(r.sentencesCited.Load(), r.sentences.Load()),
		TasaPreprintsFiltrados: ratio(r.preprints.Load(), r.candidates.Load()),
		PrecisionRanking:       -1,
		CoberturaBusqueda:      -1,
		Requests:               r.requests.Load(),
		Retries:                r.retries.Load(),
		StaleFallbacks:         r.staleFallbacks.Load(),
		SourceErrors:           r.sourceErrors.Load(),
		GeneratedAt:            r.now(),
	}

	r.mu.Lock()
	snap.LatenciaP95Ms = percentile(r.latenciesMs, 0.95)
	r.mu.Unlock()

	r.evalMu.Lock()
	if r.evaluated {
		snap.PrecisionRanking = r.precision
		snap.CoberturaBusqueda = r.coverage
	}
	r.evalMu.Unlock()

	return snap
}

func ratio(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// percentile computes the p-th percentile with nearest-rank interpolation.
// Empty input yields 0.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
