package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-engine/internal/metrics"
	"github.com/pdiddy/evidence-engine/internal/pipeline"
	"github.com/pdiddy/evidence-engine/internal/sources"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubBackend struct {
	name     string
	articles []types.Article
	err      error
}

func (s stubBackend) Name() string { return s.name }

func (s stubBackend) Search(_ context.Context, _ types.Query, _ types.SearchConfig) ([]types.Article, error) {
	return s.articles, s.err
}

func newTestRouter(t *testing.T, backends []sources.Backend) (*gin.Engine, *metrics.Recorder) {
	t.Helper()
	cfg := types.DefaultEngineConfig()
	cfg.Search.SearchDeadline = 500 * time.Millisecond
	cfg.Rank.SimThreshold = 0.01
	rec := metrics.NewRecorder()
	engine := pipeline.NewEngine(cfg, backends, rec, nil)
	return NewHandler(engine, rec, nil).Router(), rec
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	w := doJSON(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAnalyzeSearch(t *testing.T) {
	backends := []sources.Backend{stubBackend{name: "pubmed", articles: []types.Article{{
		Source:   "pmid:1",
		Title:    "Exercise therapy for knee osteoarthritis",
		Abstract: "Exercise therapy for knee osteoarthritis",
		Journal:  "Journal of Physical Therapy",
		Year:     "2023",
	}}}}
	r, _ := newTestRouter(t, backends)

	w := doJSON(t, r, http.MethodPost, "/api/analyze-search",
		gin.H{"query": "exercise therapy for knee osteoarthritis"})
	require.Equal(t, http.StatusOK, w.Code)

	var res pipeline.SearchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, pipeline.StatusOK, res.Status)
	assert.Len(t, res.Evidence, 1)
	assert.Equal(t, "kinesiology", res.Query.Specialty)
}

func TestAnalyzeSearchNoEvidenceIs200(t *testing.T) {
	r, _ := newTestRouter(t, []sources.Backend{stubBackend{name: "pubmed"}})

	w := doJSON(t, r, http.MethodPost, "/api/analyze-search", gin.H{"query": "dolor de rodilla"})
	require.Equal(t, http.StatusOK, w.Code, "no evidence must not be a 5xx")

	var res pipeline.SearchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, pipeline.StatusNoEvidence, res.Status)
	assert.Empty(t, res.Evidence)
}

func TestAnalyzeSearchAllSourcesFailedIs502(t *testing.T) {
	backends := []sources.Backend{
		stubBackend{name: "pubmed", err: errors.New("down")},
		stubBackend{name: "europepmc", err: errors.New("down")},
	}
	r, _ := newTestRouter(t, backends)

	w := doJSON(t, r, http.MethodPost, "/api/analyze-search", gin.H{"query": "dolor de rodilla"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestAnalyzeSearchMissingQuery(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	w := doJSON(t, r, http.MethodPost, "/api/analyze-search", gin.H{"specialty": "cardiology"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAssignCitations(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := doJSON(t, r, http.MethodPost, "/api/assign-citations", gin.H{
		"answer": "Exercise therapy reduces knee osteoarthritis pain. Unrelated weather trivia here.",
		"evidence": []types.EvidenceChunk{{
			ID:      "chunk-01-pmid:1",
			Text:    "Exercise therapy reduces knee osteoarthritis pain significantly",
			Article: types.Article{Source: "pmid:1"},
		}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var res pipeline.AssignResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Sentences, 2)
	assert.NotEmpty(t, res.Sentences[0].Citations)
	assert.Empty(t, res.Sentences[1].Citations)
}

func TestAssignCitationsMissingAnswer(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	w := doJSON(t, r, http.MethodPost, "/api/assign-citations", gin.H{"evidence": []types.EvidenceChunk{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsReport(t *testing.T) {
	r, rec := newTestRouter(t, nil)
	rec.RecordRequest(120 * time.Millisecond)

	w := doJSON(t, r, http.MethodGet, "/metrics/report", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var snap map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	// Stable external field names.
	for _, field := range []string{
		"respuestas_con_citas", "oraciones_con_soporte", "latencia_p95_ms",
		"tasa_preprints_filtrados", "precision_ranking", "cobertura_busqueda",
		"requests",
	} {
		assert.Contains(t, snap, field)
	}
	assert.EqualValues(t, 1, snap["requests"])
}
