// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the engine over HTTP JSON: analyze-and-search,
// citation assignment, and the metrics report.
package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/metrics"
	"github.com/pdiddy/evidence-engine/internal/pipeline"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Handler routes HTTP requests into the pipeline engine.
type Handler struct {
	engine *pipeline.Engine
	rec    *metrics.Recorder
	log    *zap.Logger
}

// NewHandler builds the HTTP handler around an engine and its recorder.
func NewHandler(engine *pipeline.Engine, rec *metrics.Recorder, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{engine: engine, rec: rec, log: log}
}

// RegisterRoutes attaches all endpoints to r.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.Health)
	r.POST("/api/analyze-search", h.AnalyzeSearch)
	r.POST("/api/assign-citations", h.AssignCitations)
	r.GET("/metrics/report", h.MetricsReport)
}

// Router returns a ready-to-serve gin engine with all routes registered.
func (h *Handler) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	h.RegisterRoutes(r)
	return r
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type analyzeSearchRequest struct {
	Query     string `json:"query" binding:"required"`
	Specialty string `json:"specialty"`
	Age       int    `json:"age"`
}

// AnalyzeSearch handles POST /api/analyze-search. A query with no matching
// evidence returns 200 with an empty evidence list; only all-sources-failed
// is a 5xx.
func (h *Handler) AnalyzeSearch(c *gin.Context) {
	var req analyzeSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: query is required"})
		return
	}

	res, err := h.engine.AnalyzeAndSearch(c.Request.Context(), req.Query, pipeline.SearchOptions{
		Specialty: req.Specialty,
		Age:       req.Age,
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrAllSourcesFailed) {
			h.log.Error("search failed", zap.String("trace_id", res.TraceID), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "all literature sources failed", "trace_id": res.TraceID})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search error"})
		return
	}
	c.JSON(http.StatusOK, res)
}

type assignCitationsRequest struct {
	Answer   string                `json:"answer" binding:"required"`
	Evidence []types.EvidenceChunk `json:"evidence"`
}

// AssignCitations handles POST /api/assign-citations. Empty evidence is
// accepted; the sentences simply come back uncited.
func (h *Handler) AssignCitations(c *gin.Context) {
	var req assignCitationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: answer is required"})
		return
	}

	res, err := h.engine.AssignCitations(c.Request.Context(), req.Answer, req.Evidence)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "assignment error"})
		return
	}
	c.JSON(http.StatusOK, res)
}

// MetricsReport handles GET /metrics/report. The snapshot's field names are
// a stable contract consumed by external dashboards.
func (h *Handler) MetricsReport(c *gin.Context) {
	c.JSON(http.StatusOK, h.rec.Snapshot())
}
