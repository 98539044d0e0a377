// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline sequences a request through analysis, concurrent source
// search, ranking, and citation assignment, emitting a trace span per stage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/analyzer"
	"github.com/pdiddy/evidence-engine/internal/cite"
	"github.com/pdiddy/evidence-engine/internal/metrics"
	"github.com/pdiddy/evidence-engine/internal/rank"
	"github.com/pdiddy/evidence-engine/internal/sources"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// ErrAllSourcesFailed is returned when every configured backend exhausted its
// resilience budget and no fallback was available. It is the only condition
// under which a search request fails outright.
var ErrAllSourcesFailed = errors.New("all literature sources failed")

// Status reports the outcome of a completed search request.
type Status string

const (
	StatusOK         Status = "ok"
	StatusNoEvidence Status = "no_evidence_found"
)

// Saver persists ranked evidence. The store package implements it; a nil
// Saver disables persistence.
type Saver interface {
	SaveEvidence(ctx context.Context, q types.Query, chunks []types.EvidenceChunk) error
}

// Engine is the orchestrator behind the two external contracts:
// AnalyzeAndSearch and AssignCitations.
type Engine struct {
	cfg      types.EngineConfig
	backends []sources.Backend
	ranker   *rank.Ranker
	assigner *cite.Assigner
	rec      *metrics.Recorder
	saver    Saver
	log      *zap.Logger
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithSaver attaches an evidence store; ranked chunks from each successful
// search are persisted best-effort.
func WithSaver(s Saver) Option {
	return func(e *Engine) { e.saver = s }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine wires the pipeline together. The recorder must not be nil; it
// receives every span and counter the pipeline emits.
func NewEngine(cfg types.EngineConfig, backends []sources.Backend, rec *metrics.Recorder, log *zap.Logger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		cfg:      cfg,
		backends: backends,
		ranker:   rank.NewRanker(cfg.Rank, log),
		assigner: cite.NewAssigner(cfg.Cite, log),
		rec:      rec,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SearchOptions carry the optional request parameters of the external
// analyze-and-search contract.
type SearchOptions struct {
	// Specialty, when non-empty, overrides the analyzer's inference.
	Specialty string
	// Age of the patient, if known. Recorded for tracing; it does not change
	// retrieval.
	Age int
}

// SearchResult is the output of AnalyzeAndSearch.
type SearchResult struct {
	TraceID  string                `json:"trace_id"`
	Status   Status                `json:"status"`
	Query    types.Query           `json:"query"`
	Evidence []types.EvidenceChunk `json:"evidence"`
	// SourceErrors lists backends that failed after resilience exhaustion.
	// Present only on partial failure; the request still succeeds.
	SourceErrors []string `json:"source_errors,omitempty"`
}

// AssignResult is the output of AssignCitations.
type AssignResult struct {
	TraceID   string                 `json:"trace_id"`
	Sentences []types.AnswerSentence `json:"sentences"`
	Metrics   types.MetricsSnapshot  `json:"metrics"`
}

// AnalyzeAndSearch runs Received through Ranking for one query: analyze,
// fan out to all enabled backends under the search deadline, deduplicate,
// rank, classify. Zero evidence is a normal outcome reported via Status, not
// an error; the request fails only when every backend failed.
func (e *Engine) AnalyzeAndSearch(ctx context.Context, queryText string, opts SearchOptions) (SearchResult, error) {
	traceID := uuid.NewString()
	start := e.now()
	e.span(traceID, types.StateReceived, start, start, true, "")
	e.log.Info("request received",
		zap.String("trace_id", traceID),
		zap.Int("query_len", len(queryText)))

	var q types.Query
	e.stage(traceID, types.StateAnalyzing, func() (string, bool) {
		q = analyzer.Analyze(queryText)
		if opts.Specialty != "" {
			q.Specialty = opts.Specialty
		}
		if q.Degraded {
			return "analysis degraded to defaults", true
		}
		return "", true
	})

	var bySource map[string][]types.Article
	var sourceErrs []string
	var searchErr error
	e.stage(traceID, types.StateSearching, func() (string, bool) {
		bySource, sourceErrs, searchErr = e.fanOut(ctx, q)
		if searchErr != nil {
			return searchErr.Error(), false
		}
		return fmt.Sprintf("%d backends, %d failed", len(e.backends), len(sourceErrs)), true
	})
	if searchErr != nil {
		end := e.now()
		e.span(traceID, types.StateFailed, end, end, false, searchErr.Error())
		e.rec.RecordRequest(end.Sub(start))
		return SearchResult{TraceID: traceID}, searchErr
	}

	deduped, removed := sources.DeduplicateGrouped(bySource)

	var out rank.Output
	e.stage(traceID, types.StateRanking, func() (string, bool) {
		out = e.ranker.Rank(q, deduped)
		return fmt.Sprintf("%d candidates, %d duplicates, %d preprints filtered, %d kept",
			out.Candidates, removed, out.PreprintsFiltered, len(out.Chunks)), true
	})
	e.rec.RecordRanking(out.Candidates, out.PreprintsFiltered)

	if e.saver != nil && len(out.Chunks) > 0 {
		if err := e.saver.SaveEvidence(ctx, q, out.Chunks); err != nil {
			e.log.Warn("evidence persistence failed",
				zap.String("trace_id", traceID), zap.Error(err))
		}
	}

	status := StatusOK
	if len(out.Chunks) == 0 {
		status = StatusNoEvidence
	}
	end := e.now()
	e.span(traceID, types.StateCompleted, end, end, true, string(status))
	e.rec.RecordRequest(end.Sub(start))

	return SearchResult{
		TraceID:      traceID,
		Status:       status,
		Query:        q,
		Evidence:     out.Chunks,
		SourceErrors: sourceErrs,
	}, nil
}

// AssignCitations maps each sentence of answerText to its supporting
// evidence. Empty evidence yields uncited sentences, never an error. The
// two-distinct-source floor is counted into the metrics, not enforced.
func (e *Engine) AssignCitations(ctx context.Context, answerText string, evidence []types.EvidenceChunk) (AssignResult, error) {
	traceID := uuid.NewString()
	start := e.now()
	e.span(traceID, types.StateReceived, start, start, true, "")

	var assigned []types.AnswerSentence
	var stats cite.Stats
	e.stage(traceID, types.StateAssigningCitations, func() (string, bool) {
		sentences := cite.SplitSentences(answerText)
		assigned, stats = e.assigner.Assign(sentences, evidence)
		return fmt.Sprintf("%d/%d sentences cited, %d distinct sources",
			stats.SentencesWithCites, stats.Sentences, stats.DistinctSources), true
	})
	e.rec.RecordAssignment(stats.Sentences, stats.SentencesWithCites, stats.MeetsSourceFloor)
	if !stats.MeetsSourceFloor {
		e.log.Warn("answer below distinct-source floor",
			zap.String("trace_id", traceID),
			zap.Int("distinct_sources", stats.DistinctSources),
			zap.Int("floor", e.cfg.Cite.MinDistinctSources))
	}

	end := e.now()
	e.span(traceID, types.StateCompleted, end, end, true, "")

	return AssignResult{
		TraceID:   traceID,
		Sentences: assigned,
		Metrics:   e.rec.Snapshot(),
	}, nil
}

// fanOut queries every backend concurrently and joins on the search
// deadline. Backends still running at the deadline are abandoned; their
// in-flight calls are cancelled but never waited on. One live backend is
// enough for the request to proceed.
func (e *Engine) fanOut(ctx context.Context, q types.Query) (map[string][]types.Article, []string, error) {
	if len(e.backends) == 0 {
		return nil, nil, fmt.Errorf("%w: no backends configured", ErrAllSourcesFailed)
	}

	deadline := e.cfg.Search.SearchDeadline
	if deadline <= 0 {
		deadline = types.DefaultEngineConfig().Search.SearchDeadline
	}
	sctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	type backendResult struct {
		name     string
		articles []types.Article
		err      error
	}
	ch := make(chan backendResult, len(e.backends))
	for _, b := range e.backends {
		go func(b sources.Backend) {
			articles, err := b.Search(sctx, q, e.cfg.Search)
			ch <- backendResult{name: b.Name(), articles: articles, err: err}
		}(b)
	}

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	bySource := make(map[string][]types.Article, len(e.backends))
	var sourceErrs []string
	var merr *multierror.Error
	received := 0

collect:
	for received < len(e.backends) {
		select {
		case br := <-ch:
			received++
			if br.err != nil {
				e.log.Warn("backend failed",
					zap.String("backend", br.name), zap.Error(br.err))
				sourceErrs = append(sourceErrs, fmt.Sprintf("%s: %v", br.name, br.err))
				merr = multierror.Append(merr, fmt.Errorf("%s: %w", br.name, br.err))
				continue
			}
			bySource[br.name] = br.articles
		case <-timer.C:
			e.log.Warn("search deadline reached",
				zap.Int("abandoned", len(e.backends)-received),
				zap.Duration("deadline", deadline))
			break collect
		case <-ctx.Done():
			break collect
		}
	}

	if len(bySource) == 0 {
		if merr != nil {
			return nil, sourceErrs, fmt.Errorf("%w: %w", ErrAllSourcesFailed, merr)
		}
		return nil, sourceErrs, fmt.Errorf("%w: deadline reached before any backend answered", ErrAllSourcesFailed)
	}
	return bySource, sourceErrs, nil
}

// stage runs fn between a pair of timestamps and records the span.
func (e *Engine) stage(traceID string, state types.PipelineState, fn func() (detail string, ok bool)) {
	start := e.now()
	detail, ok := fn()
	e.span(traceID, state, start, e.now(), ok, detail)
}

func (e *Engine) span(traceID string, state types.PipelineState, start, end time.Time, ok bool, detail string) {
	e.rec.RecordSpan(types.TraceSpan{
		TraceID:   traceID,
		Component: state,
		Start:     start,
		End:       end,
		OK:        ok,
		Detail:    detail,
	})
}
