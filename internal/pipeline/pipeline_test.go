package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-engine/internal/metrics"
	"github.com/pdiddy/evidence-engine/internal/sources"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

type fakeBackend struct {
	name     string
	articles []types.Article
	err      error
	delay    time.Duration
}

func (f fakeBackend) Name() string { return f.name }

func (f fakeBackend) Search(ctx context.Context, q types.Query, cfg types.SearchConfig) ([]types.Article, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.articles, f.err
}

func testConfig() types.EngineConfig {
	cfg := types.DefaultEngineConfig()
	cfg.Search.SearchDeadline = 200 * time.Millisecond
	cfg.Rank.SimThreshold = 0.01
	return cfg
}

func kneeArticle(source, title string) types.Article {
	return types.Article{
		Source:   source,
		Title:    title,
		Abstract: title,
		Journal:  "Journal of Physical Therapy",
		Year:     "2023",
	}
}

func newTestEngine(t *testing.T, backends []sources.Backend, opts ...Option) (*Engine, *metrics.Recorder) {
	t.Helper()
	rec := metrics.NewRecorder()
	return NewEngine(testConfig(), backends, rec, nil, opts...), rec
}

func spanComponents(rec *metrics.Recorder) []types.PipelineState {
	var names []types.PipelineState
	for _, s := range rec.Spans() {
		names = append(names, s.Component)
	}
	return names
}

func TestAnalyzeAndSearch(t *testing.T) {
	backends := []sources.Backend{
		fakeBackend{name: "pubmed", articles: []types.Article{
			kneeArticle("pmid:1", "Exercise therapy for knee osteoarthritis"),
		}},
		fakeBackend{name: "europepmc", articles: []types.Article{
			kneeArticle("pmcid:PMC2", "Knee osteoarthritis and exercise outcomes"),
		}},
	}
	e, rec := newTestEngine(t, backends)

	res, err := e.AnalyzeAndSearch(context.Background(), "exercise therapy for knee osteoarthritis", SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.NotEmpty(t, res.TraceID)
	assert.Len(t, res.Evidence, 2)
	assert.Empty(t, res.SourceErrors)
	assert.Equal(t, "kinesiology", res.Query.Specialty)

	assert.Equal(t, []types.PipelineState{
		types.StateReceived,
		types.StateAnalyzing,
		types.StateSearching,
		types.StateRanking,
		types.StateCompleted,
	}, spanComponents(rec))
	assert.Equal(t, int64(1), rec.Snapshot().Requests)
}

func TestAnalyzeAndSearchSpecialtyOverride(t *testing.T) {
	backends := []sources.Backend{fakeBackend{name: "pubmed"}}
	e, _ := newTestEngine(t, backends)

	res, err := e.AnalyzeAndSearch(context.Background(), "dolor de rodilla", SearchOptions{Specialty: "traumatology"})
	require.NoError(t, err)
	assert.Equal(t, "traumatology", res.Query.Specialty)
}

func TestAnalyzeAndSearchNoEvidence(t *testing.T) {
	backends := []sources.Backend{
		fakeBackend{name: "pubmed"},
		fakeBackend{name: "europepmc"},
	}
	e, _ := newTestEngine(t, backends)

	res, err := e.AnalyzeAndSearch(context.Background(), "dolor de rodilla", SearchOptions{})
	require.NoError(t, err, "zero evidence is a status, not an error")
	assert.Equal(t, StatusNoEvidence, res.Status)
	assert.Empty(t, res.Evidence)
	assert.NotNil(t, res.Evidence)
}

func TestAnalyzeAndSearchPartialFailure(t *testing.T) {
	backends := []sources.Backend{
		fakeBackend{name: "pubmed", err: errors.New("upstream down")},
		fakeBackend{name: "europepmc", articles: []types.Article{
			kneeArticle("pmcid:PMC2", "Knee osteoarthritis and exercise outcomes"),
		}},
	}
	e, _ := newTestEngine(t, backends)

	res, err := e.AnalyzeAndSearch(context.Background(), "exercise therapy for knee osteoarthritis", SearchOptions{})
	require.NoError(t, err, "one live backend must carry the request")
	assert.Equal(t, StatusOK, res.Status)
	assert.Len(t, res.Evidence, 1)
	require.Len(t, res.SourceErrors, 1)
	assert.Contains(t, res.SourceErrors[0], "pubmed")
}

func TestAnalyzeAndSearchAllSourcesFailed(t *testing.T) {
	backends := []sources.Backend{
		fakeBackend{name: "pubmed", err: errors.New("down")},
		fakeBackend{name: "europepmc", err: errors.New("also down")},
	}
	e, rec := newTestEngine(t, backends)

	_, err := e.AnalyzeAndSearch(context.Background(), "exercise therapy for knee osteoarthritis", SearchOptions{})
	require.ErrorIs(t, err, ErrAllSourcesFailed)

	spans := rec.Spans()
	last := spans[len(spans)-1]
	assert.Equal(t, types.StateFailed, last.Component)
	assert.False(t, last.OK)
}

func TestAnalyzeAndSearchAbandonsLaggards(t *testing.T) {
	backends := []sources.Backend{
		fakeBackend{name: "pubmed", articles: []types.Article{
			kneeArticle("pmid:1", "Exercise therapy for knee osteoarthritis"),
		}},
		fakeBackend{name: "slow", delay: 5 * time.Second},
	}
	e, _ := newTestEngine(t, backends)

	start := time.Now()
	res, err := e.AnalyzeAndSearch(context.Background(), "exercise therapy for knee osteoarthritis", SearchOptions{})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Len(t, res.Evidence, 1)
	assert.Less(t, elapsed, time.Second, "the slow backend must not be waited on")
}

func TestAnalyzeAndSearchDeduplicatesAcrossBackends(t *testing.T) {
	shared := kneeArticle("pmid:1", "Exercise therapy for knee osteoarthritis")
	dup := shared
	dup.Source = "epmc:MED:1"
	backends := []sources.Backend{
		fakeBackend{name: "pubmed", articles: []types.Article{shared}},
		fakeBackend{name: "europepmc", articles: []types.Article{dup}},
	}
	e, _ := newTestEngine(t, backends)

	res, err := e.AnalyzeAndSearch(context.Background(), "exercise therapy for knee osteoarthritis", SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, res.Evidence, 1)
}

type recordingSaver struct {
	calls  int
	chunks int
}

func (s *recordingSaver) SaveEvidence(_ context.Context, _ types.Query, chunks []types.EvidenceChunk) error {
	s.calls++
	s.chunks += len(chunks)
	return nil
}

func TestAnalyzeAndSearchPersistsEvidence(t *testing.T) {
	saver := &recordingSaver{}
	backends := []sources.Backend{
		fakeBackend{name: "pubmed", articles: []types.Article{
			kneeArticle("pmid:1", "Exercise therapy for knee osteoarthritis"),
		}},
	}
	e, _ := newTestEngine(t, backends, WithSaver(saver))

	_, err := e.AnalyzeAndSearch(context.Background(), "exercise therapy for knee osteoarthritis", SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, saver.calls)
	assert.Equal(t, 1, saver.chunks)
}

func TestAssignCitations(t *testing.T) {
	e, rec := newTestEngine(t, nil)
	evidence := []types.EvidenceChunk{
		{
			ID:      "chunk-01-pmid:1",
			Text:    "Exercise therapy reduces knee osteoarthritis pain significantly",
			Article: kneeArticle("pmid:1", "Exercise therapy for knee osteoarthritis"),
		},
		{
			ID:      "chunk-02-pmid:2",
			Text:    "Strength training improves joint function in osteoarthritis patients",
			Article: kneeArticle("pmid:2", "Strength training for osteoarthritis"),
		},
	}
	answer := "Exercise therapy reduces knee osteoarthritis pain. The weather is unrelated to this topic."

	res, err := e.AssignCitations(context.Background(), answer, evidence)
	require.NoError(t, err)
	require.Len(t, res.Sentences, 2)
	assert.NotEmpty(t, res.Sentences[0].Citations, "matching sentence must be cited")
	assert.Empty(t, res.Sentences[1].Citations, "unrelated sentence stays uncited")

	assert.Equal(t, []types.PipelineState{
		types.StateReceived,
		types.StateAssigningCitations,
		types.StateCompleted,
	}, spanComponents(rec))
	assert.InDelta(t, 0.5, res.Metrics.OracionesConSoporte, 1e-9)
}

func TestAssignCitationsEmptyEvidence(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	res, err := e.AssignCitations(context.Background(), "Una oración sin evidencia.", nil)
	require.NoError(t, err)
	require.Len(t, res.Sentences, 1)
	assert.Empty(t, res.Sentences[0].Citations)
}
