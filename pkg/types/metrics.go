// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// PipelineState names a stage of the per-request state machine.
type PipelineState string

const (
	StateReceived           PipelineState = "received"
	StateAnalyzing          PipelineState = "analyzing"
	StateSearching          PipelineState = "searching"
	StateRanking            PipelineState = "ranking"
	StateAssigningCitations PipelineState = "assigning_citations"
	StateCompleted          PipelineState = "completed"
	StateFailed             PipelineState = "failed"
)

// TraceSpan is a write-once record of one pipeline stage execution.
type TraceSpan struct {
	// TraceID groups the spans of a single request.
	TraceID string `json:"trace_id" yaml:"trace_id"`

	// Component is the stage that produced the span.
	Component PipelineState `json:"component" yaml:"component"`

	// Start and End bound the stage execution.
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`

	// OK reports whether the stage succeeded.
	OK bool `json:"ok" yaml:"ok"`

	// Detail carries an optional failure message or annotation.
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// MetricsSnapshot is the aggregate quality report exported at
// GET /metrics/report. Field names are a stable external contract.
type MetricsSnapshot struct {
	// RespuestasConCitas is the fraction of answers with at least two
	// citations from distinct sources. Target >= 0.75.
	RespuestasConCitas float64 `json:"respuestas_con_citas" yaml:"respuestas_con_citas"`

	// OracionesConSoporte is the fraction of sentences with at least one
	// citation. Target >= 0.80.
	OracionesConSoporte float64 `json:"oraciones_con_soporte" yaml:"oraciones_con_soporte"`

	// LatenciaP95Ms is the 95th-percentile end-to-end pipeline latency in
	// milliseconds. Target <= 5000.
	LatenciaP95Ms float64 `json:"latencia_p95_ms" yaml:"latencia_p95_ms"`

	// TasaPreprintsFiltrados is the fraction of candidate articles excluded
	// as preprints.
	TasaPreprintsFiltrados float64 `json:"tasa_preprints_filtrados" yaml:"tasa_preprints_filtrados"`

	// PrecisionRanking and CoberturaBusqueda come from golden-set
	// evaluation. -1 means no evaluation has run in this process.
	PrecisionRanking  float64 `json:"precision_ranking" yaml:"precision_ranking"`
	CoberturaBusqueda float64 `json:"cobertura_busqueda" yaml:"cobertura_busqueda"`

	// Operational counters.
	Requests       int64 `json:"requests" yaml:"requests"`
	Retries        int64 `json:"retries" yaml:"retries"`
	StaleFallbacks int64 `json:"stale_fallbacks" yaml:"stale_fallbacks"`
	SourceErrors   int64 `json:"source_errors" yaml:"source_errors"`

	// GeneratedAt timestamps the snapshot.
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
}
