// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"net/http"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/metrics"
	"github.com/pdiddy/evidence-engine/internal/pipeline"
	"github.com/pdiddy/evidence-engine/internal/resilience"
	"github.com/pdiddy/evidence-engine/internal/sources"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// buildLogger constructs the process logger; --verbose switches to the
// development config with debug level.
func buildLogger() (*zap.Logger, error) {
	verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// engineConfig merges defaults, the config file, and loaded secrets.
func engineConfig() types.EngineConfig {
	cfg := types.DefaultEngineConfig()

	if viper.IsSet("resilience.max_retries") {
		cfg.Resilience.MaxRetries = viper.GetInt("resilience.max_retries")
	}
	if viper.IsSet("resilience.base_delay") {
		cfg.Resilience.BaseDelay = viper.GetDuration("resilience.base_delay")
	}
	if viper.IsSet("resilience.cache_ttl") {
		cfg.Resilience.CacheTTL = viper.GetDuration("resilience.cache_ttl")
	}
	if viper.IsSet("resilience.stale_ttl") {
		cfg.Resilience.StaleTTL = viper.GetDuration("resilience.stale_ttl")
	}
	if viper.IsSet("search.max_results") {
		cfg.Search.MaxResults = viper.GetInt("search.max_results")
	}
	if viper.IsSet("search.timeout") {
		cfg.Search.Timeout = viper.GetDuration("search.timeout")
	}
	if viper.IsSet("search.search_deadline") {
		cfg.Search.SearchDeadline = viper.GetDuration("search.search_deadline")
	}
	if viper.IsSet("search.enable_pubmed") {
		cfg.Search.EnablePubMed = viper.GetBool("search.enable_pubmed")
	}
	if viper.IsSet("search.enable_europepmc") {
		cfg.Search.EnableEuropePMC = viper.GetBool("search.enable_europepmc")
	}
	if viper.IsSet("search.enable_semantic_scholar") {
		cfg.Search.EnableSemanticScholar = viper.GetBool("search.enable_semantic_scholar")
	}
	if viper.IsSet("rank.sim_threshold") {
		cfg.Rank.SimThreshold = viper.GetFloat64("rank.sim_threshold")
	}
	if viper.IsSet("rank.top_k_per_source") {
		cfg.Rank.TopKPerSource = viper.GetInt("rank.top_k_per_source")
	}
	if viper.IsSet("rank.max_results") {
		cfg.Rank.MaxResults = viper.GetInt("rank.max_results")
	}
	if viper.IsSet("cite.assign_threshold") {
		cfg.Cite.AssignThreshold = viper.GetFloat64("cite.assign_threshold")
	}
	if viper.IsSet("cite.min_distinct_sources") {
		cfg.Cite.MinDistinctSources = viper.GetInt("cite.min_distinct_sources")
	}
	if viper.IsSet("store.dir") {
		cfg.Store.Dir = viper.GetString("store.dir")
	}
	if viper.IsSet("server.addr") {
		cfg.Server.Addr = viper.GetString("server.addr")
	}

	cfg.Search.NCBIAPIKey = secretDefault("ncbi-api-key", viper.GetString("search.ncbi_api_key"))
	cfg.Search.EuropePMCEmail = secretDefault("europepmc-email", viper.GetString("search.europepmc_email"))
	cfg.Search.SemanticScholarAPIKey = secretDefault("semantic-scholar-api-key", viper.GetString("search.semantic_scholar_api_key"))

	return cfg
}

// buildBackends assembles the enabled source clients on a shared resilience
// service and HTTP client.
func buildBackends(cfg types.EngineConfig, rec *metrics.Recorder, log *zap.Logger) []sources.Backend {
	res := resilience.NewService(
		resilience.NewTTLCache(),
		cfg.Resilience,
		resilience.WithLogger(log),
		resilience.WithEvents(rec),
	)
	client := &http.Client{Timeout: cfg.Search.Timeout}

	var backends []sources.Backend
	if cfg.Search.EnablePubMed {
		backends = append(backends, &sources.PubMedBackend{
			Client: client, Res: res, APIKey: cfg.Search.NCBIAPIKey,
		})
	}
	if cfg.Search.EnableEuropePMC {
		backends = append(backends, &sources.EuropePMCBackend{
			Client: client, Res: res, Email: cfg.Search.EuropePMCEmail,
		})
	}
	if cfg.Search.EnableSemanticScholar {
		backends = append(backends, &sources.SemanticScholarBackend{
			Client: client, Res: res, APIKey: cfg.Search.SemanticScholarAPIKey,
		})
	}
	return backends
}

// buildEngine wires the full pipeline for a command invocation.
func buildEngine(opts ...pipeline.Option) (*pipeline.Engine, *metrics.Recorder, *zap.Logger, error) {
	log, err := buildLogger()
	if err != nil {
		return nil, nil, nil, err
	}
	cfg := engineConfig()
	rec := metrics.NewRecorder()
	engine := pipeline.NewEngine(cfg, buildBackends(cfg, rec, log), rec, log, opts...)
	return engine, rec, log, nil
}
