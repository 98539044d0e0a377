package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "evidence-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ResilienceConfig holds settings for the cache and retry layer.
type ResilienceConfig struct {
	// MaxRetries is the retry budget for rate-limited and transient
	// failures (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// BaseDelay is the base duration for exponential backoff (default 3s).
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`

	// CacheTTL is the freshness window for cached source responses
	// (default 5m).
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl"`

	// StaleTTL is the extended window within which an expired entry may
	// still be served after retries exhaust (default 600s).
	StaleTTL time.Duration `json:"stale_ttl" yaml:"stale_ttl"`
}

// SearchConfig holds settings for the source-client fan-out.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxResults is the maximum number of results per source (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// EnablePubMed controls whether the PubMed backend is used.
	EnablePubMed bool `json:"enable_pubmed" yaml:"enable_pubmed"`

	// EnableEuropePMC controls whether the Europe PMC backend is used.
	EnableEuropePMC bool `json:"enable_europepmc" yaml:"enable_europepmc"`

	// EnableSemanticScholar controls whether the Semantic Scholar backend is used.
	EnableSemanticScholar bool `json:"enable_semantic_scholar" yaml:"enable_semantic_scholar"`

	// NCBIAPIKey raises the PubMed rate limit when set.
	NCBIAPIKey string `json:"ncbi_api_key,omitempty" yaml:"ncbi_api_key,omitempty"`

	// EuropePMCEmail is sent for polite-pool access.
	EuropePMCEmail string `json:"europepmc_email,omitempty" yaml:"europepmc_email,omitempty"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty"`

	// SearchDeadline bounds the concurrent fan-out; clients still running
	// past it are abandoned (default 5s).
	SearchDeadline time.Duration `json:"search_deadline" yaml:"search_deadline"`
}

// RankConfig holds settings for evidence ranking and classification.
type RankConfig struct {
	// SimThreshold discards articles below this relevance (default 0.65).
	SimThreshold float64 `json:"sim_threshold" yaml:"sim_threshold"`

	// TopKPerSource keeps this many articles per source before the global
	// merge (default 3).
	TopKPerSource int `json:"top_k_per_source" yaml:"top_k_per_source"`

	// MaxResults truncates the merged ranking (default 10).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// CiteConfig holds settings for citation assignment.
type CiteConfig struct {
	// AssignThreshold is the minimum sentence/chunk overlap score for a
	// citation (default 0.5).
	AssignThreshold float64 `json:"assign_threshold" yaml:"assign_threshold"`

	// MinDistinctSources is the answer-level citation floor the
	// orchestrator tracks (default 2).
	MinDistinctSources int `json:"min_distinct_sources" yaml:"min_distinct_sources"`
}

// StoreConfig holds settings for the sqlite evidence store.
type StoreConfig struct {
	// Dir is the base directory for the store (contains index/).
	Dir string `json:"dir" yaml:"dir"`

	// MaxResults is the default maximum number of query results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// ServerConfig holds settings for the HTTP surface.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr"`
}

// EngineConfig groups all component configurations.
type EngineConfig struct {
	Resilience ResilienceConfig `json:"resilience" yaml:"resilience"`
	Search     SearchConfig     `json:"search" yaml:"search"`
	Rank       RankConfig       `json:"rank" yaml:"rank"`
	Cite       CiteConfig       `json:"cite" yaml:"cite"`
	Store      StoreConfig      `json:"store" yaml:"store"`
	Server     ServerConfig     `json:"server" yaml:"server"`
}

// DefaultEngineConfig returns the configuration defaults used when a field
// is unset in the config file.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Resilience: ResilienceConfig{
			MaxRetries: 5,
			BaseDelay:  3 * time.Second,
			CacheTTL:   5 * time.Minute,
			StaleTTL:   600 * time.Second,
		},
		Search: SearchConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   15 * time.Second,
				UserAgent: "evidence-engine/0.1",
			},
			MaxResults:            20,
			EnablePubMed:          true,
			EnableEuropePMC:       true,
			EnableSemanticScholar: false,
			SearchDeadline:        5 * time.Second,
		},
		Rank: RankConfig{
			SimThreshold:  0.65,
			TopKPerSource: 3,
			MaxResults:    10,
		},
		Cite: CiteConfig{
			AssignThreshold:    0.5,
			MinDistinctSources: 2,
		},
		Store: StoreConfig{
			Dir:        "evidence",
			MaxResults: 20,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}
