package config

import (
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"ResearchHarvester/internal/domain"
)

const (
	configPathEnv    = "RESEARCH_HARVESTER_CONFIG"
	searchAPIKeyEnv  = "SEARCH_API_KEY"
	storeEndpointEnv = "ARTIFACT_STORE_ENDPOINT"
	storeAPIKeyEnv   = "ARTIFACT_STORE_API_KEY"
	sqlitePathEnv    = "RECORD_DB_PATH"
)

// Config holds every knob the pipeline recognizes.
type Config struct {
	Logging   LoggingConfig  `yaml:"logging"`
	Scoring   ScoringConfig  `yaml:"scoring"`
	Pipeline  PipelineConfig `yaml:"pipeline"`
	Providers ProviderConfig `yaml:"providers"`
	Storage   StorageConfig  `yaml:"storage"`
	Topics    []TopicConfig  `yaml:"topics"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ScoringConfig parameterizes the weighted-quality score.
type ScoringConfig struct {
	Weights             WeightsConfig      `yaml:"weights"`
	RecencyHalfLifeDays float64            `yaml:"recencyHalfLifeDays"`
	NeutralRecency      float64            `yaml:"neutralRecency"`
	NeutralAuthority    float64            `yaml:"neutralAuthority"`
	AuthorityTiers      map[string]float64 `yaml:"authorityTiers"`
	CitationCap         int                `yaml:"citationCap"`
}

// WeightsConfig is the component weight vector; it must sum to 1.
type WeightsConfig struct {
	Relevance float64 `yaml:"relevance"`
	Recency   float64 `yaml:"recency"`
	Authority float64 `yaml:"authority"`
	Citation  float64 `yaml:"citation"`
}

// PipelineConfig bounds the per-topic work.
type PipelineConfig struct {
	TopK             int           `yaml:"topK"`
	SearchLimit      int           `yaml:"searchLimit"`
	FetchWorkers     int           `yaml:"fetchWorkers"`
	CandidateTimeout time.Duration `yaml:"candidateTimeout"`
	BatchDeadline    time.Duration `yaml:"batchDeadline"`
	RateLimitRPS     float64       `yaml:"rateLimitRPS"`
	StoreRaw         bool          `yaml:"storeRaw"`
}

// ProviderConfig wires the external search, rendering, and conversion services.
type ProviderConfig struct {
	SearchEndpoint    string `yaml:"searchEndpoint"`
	SearchAPIKey      string `yaml:"searchApiKey"`
	RenderEndpoint    string `yaml:"renderEndpoint"`
	ConverterEndpoint string `yaml:"converterEndpoint"`
}

// StorageConfig selects the artifact backend and the record index location.
type StorageConfig struct {
	Endpoint   string `yaml:"endpoint"`
	Bucket     string `yaml:"bucket"`
	APIKey     string `yaml:"apiKey"`
	BaseDir    string `yaml:"baseDir"`
	SQLitePath string `yaml:"sqlitePath"`
}

// TopicConfig is one entry of the injected topic list.
type TopicConfig struct {
	ID    string `yaml:"id"`
	Query string `yaml:"query"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
				cfg.applyZeroableOverrides(raw)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// Validate reports the first fatal misconfiguration. Everything below this
// bar degrades at runtime instead of aborting the batch.
func (c Config) Validate() error {
	w := c.Scoring.Weights
	for _, pair := range []struct {
		name  string
		value float64
	}{
		{"weights.relevance", w.Relevance},
		{"weights.recency", w.Recency},
		{"weights.authority", w.Authority},
		{"weights.citation", w.Citation},
	} {
		if pair.value < 0 {
			return &domain.ConfigurationError{Field: pair.name, Err: fmt.Errorf("must be >= 0, got %v", pair.value)}
		}
	}
	sum := w.Relevance + w.Recency + w.Authority + w.Citation
	if math.Abs(sum-1) > 1e-9 {
		return &domain.ConfigurationError{Field: "weights", Err: fmt.Errorf("must sum to 1, got %v", sum)}
	}
	if c.Scoring.RecencyHalfLifeDays <= 0 {
		return &domain.ConfigurationError{Field: "recencyHalfLifeDays", Err: fmt.Errorf("must be > 0, got %v", c.Scoring.RecencyHalfLifeDays)}
	}
	if c.Scoring.NeutralRecency < 0 || c.Scoring.NeutralRecency > 1 {
		return &domain.ConfigurationError{Field: "neutralRecency", Err: fmt.Errorf("must be in [0,1], got %v", c.Scoring.NeutralRecency)}
	}
	if c.Scoring.NeutralAuthority < 0 || c.Scoring.NeutralAuthority > 1 {
		return &domain.ConfigurationError{Field: "neutralAuthority", Err: fmt.Errorf("must be in [0,1], got %v", c.Scoring.NeutralAuthority)}
	}
	if c.Scoring.CitationCap < 1 {
		return &domain.ConfigurationError{Field: "citationCap", Err: fmt.Errorf("must be >= 1, got %d", c.Scoring.CitationCap)}
	}
	if c.Pipeline.TopK < 1 {
		return &domain.ConfigurationError{Field: "topK", Err: fmt.Errorf("must be >= 1, got %d", c.Pipeline.TopK)}
	}
	if c.Pipeline.FetchWorkers < 1 {
		return &domain.ConfigurationError{Field: "fetchWorkers", Err: fmt.Errorf("must be >= 1, got %d", c.Pipeline.FetchWorkers)}
	}
	if c.Pipeline.CandidateTimeout <= 0 {
		return &domain.ConfigurationError{Field: "candidateTimeout", Err: fmt.Errorf("must be > 0, got %v", c.Pipeline.CandidateTimeout)}
	}
	return nil
}

// TopicList converts configured topics into domain values, deriving IDs for
// entries that omit one.
func (c Config) TopicList() []domain.Topic {
	topics := make([]domain.Topic, 0, len(c.Topics))
	for i, t := range c.Topics {
		id := t.ID
		if id == "" {
			id = fmt.Sprintf("topic-%03d", i+1)
		}
		topics = append(topics, domain.Topic{ID: id, Query: t.Query})
	}
	return topics
}

// zeroableOverrides mirrors the settings whose zero value is a legal,
// meaningful choice. Pointer fields let the merge tell "absent" from
// "explicitly zero or false".
type zeroableOverrides struct {
	Scoring struct {
		NeutralRecency   *float64 `yaml:"neutralRecency"`
		NeutralAuthority *float64 `yaml:"neutralAuthority"`
	} `yaml:"scoring"`
	Pipeline struct {
		StoreRaw *bool `yaml:"storeRaw"`
	} `yaml:"pipeline"`
}

func (c *Config) applyZeroableOverrides(raw []byte) {
	var zo zeroableOverrides
	if err := yaml.Unmarshal(raw, &zo); err != nil {
		return
	}
	if zo.Scoring.NeutralRecency != nil {
		c.Scoring.NeutralRecency = *zo.Scoring.NeutralRecency
	}
	if zo.Scoring.NeutralAuthority != nil {
		c.Scoring.NeutralAuthority = *zo.Scoring.NeutralAuthority
	}
	if zo.Pipeline.StoreRaw != nil {
		c.Pipeline.StoreRaw = *zo.Pipeline.StoreRaw
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(searchAPIKeyEnv); v != "" {
		c.Providers.SearchAPIKey = v
	}
	if v := os.Getenv(storeEndpointEnv); v != "" {
		c.Storage.Endpoint = v
	}
	if v := os.Getenv(storeAPIKeyEnv); v != "" {
		c.Storage.APIKey = v
	}
	if v := os.Getenv(sqlitePathEnv); v != "" {
		c.Storage.SQLitePath = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	ow := override.Scoring.Weights
	if ow.Relevance+ow.Recency+ow.Authority+ow.Citation > 0 {
		base.Scoring.Weights = ow
	}
	if override.Scoring.RecencyHalfLifeDays > 0 {
		base.Scoring.RecencyHalfLifeDays = override.Scoring.RecencyHalfLifeDays
	}
	if len(override.Scoring.AuthorityTiers) > 0 {
		base.Scoring.AuthorityTiers = override.Scoring.AuthorityTiers
	}
	if override.Scoring.CitationCap > 0 {
		base.Scoring.CitationCap = override.Scoring.CitationCap
	}

	if override.Pipeline.TopK > 0 {
		base.Pipeline.TopK = override.Pipeline.TopK
	}
	if override.Pipeline.SearchLimit > 0 {
		base.Pipeline.SearchLimit = override.Pipeline.SearchLimit
	}
	if override.Pipeline.FetchWorkers > 0 {
		base.Pipeline.FetchWorkers = override.Pipeline.FetchWorkers
	}
	if override.Pipeline.CandidateTimeout > 0 {
		base.Pipeline.CandidateTimeout = override.Pipeline.CandidateTimeout
	}
	if override.Pipeline.BatchDeadline > 0 {
		base.Pipeline.BatchDeadline = override.Pipeline.BatchDeadline
	}
	if override.Pipeline.RateLimitRPS > 0 {
		base.Pipeline.RateLimitRPS = override.Pipeline.RateLimitRPS
	}

	if override.Providers.SearchEndpoint != "" {
		base.Providers.SearchEndpoint = override.Providers.SearchEndpoint
	}
	if override.Providers.SearchAPIKey != "" {
		base.Providers.SearchAPIKey = override.Providers.SearchAPIKey
	}
	if override.Providers.RenderEndpoint != "" {
		base.Providers.RenderEndpoint = override.Providers.RenderEndpoint
	}
	if override.Providers.ConverterEndpoint != "" {
		base.Providers.ConverterEndpoint = override.Providers.ConverterEndpoint
	}

	if override.Storage.Endpoint != "" {
		base.Storage.Endpoint = override.Storage.Endpoint
	}
	if override.Storage.Bucket != "" {
		base.Storage.Bucket = override.Storage.Bucket
	}
	if override.Storage.APIKey != "" {
		base.Storage.APIKey = override.Storage.APIKey
	}
	if override.Storage.BaseDir != "" {
		base.Storage.BaseDir = override.Storage.BaseDir
	}
	if override.Storage.SQLitePath != "" {
		base.Storage.SQLitePath = override.Storage.SQLitePath
	}

	if len(override.Topics) > 0 {
		base.Topics = override.Topics
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Scoring: ScoringConfig{
			Weights: WeightsConfig{
				Relevance: 0.30,
				Recency:   0.25,
				Authority: 0.25,
				Citation:  0.20,
			},
			RecencyHalfLifeDays: 365,
			NeutralRecency:      0.5,
			NeutralAuthority:    0.3,
			AuthorityTiers: map[string]float64{
				"arxiv":        1.0,
				"acm":          1.0,
				"ieee":         1.0,
				"springer":     0.9,
				"researchgate": 0.7,
				"academia.edu": 0.7,
			},
			CitationCap: 1000,
		},
		Pipeline: PipelineConfig{
			TopK:             5,
			SearchLimit:      10,
			FetchWorkers:     4,
			CandidateTimeout: 30 * time.Second,
			StoreRaw:         true,
		},
		Providers: ProviderConfig{
			SearchEndpoint: "https://serpapi.example.org/search",
			RenderEndpoint: "http://localhost:8070/extract",
		},
		Storage: StorageConfig{
			BaseDir:    "./artifacts",
			SQLitePath: "./artifacts/records.db",
		},
	}
}
