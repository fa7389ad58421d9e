package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"ResearchHarvester/internal/domain"
)

func TestDefaultsAreValid(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
logging:
  level: debug
pipeline:
  topK: 3
  candidateTimeout: 10s
providers:
  searchEndpoint: https://search.internal/api
topics:
  - id: rag-eval
    query: "RAG evaluation benchmarks"
  - query: "vector database comparison"
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(configPathEnv, path)
	t.Setenv(searchAPIKeyEnv, "env-key")
	t.Setenv(sqlitePathEnv, "/tmp/records.db")

	cfg := Load()

	if cfg.Logging.Level != "debug" {
		t.Fatalf("file level not applied: %s", cfg.Logging.Level)
	}
	if cfg.Pipeline.TopK != 3 {
		t.Fatalf("file topK not applied: %d", cfg.Pipeline.TopK)
	}
	if cfg.Pipeline.CandidateTimeout != 10*time.Second {
		t.Fatalf("file timeout not applied: %v", cfg.Pipeline.CandidateTimeout)
	}
	if cfg.Pipeline.SearchLimit != 10 {
		t.Fatalf("untouched default lost: %d", cfg.Pipeline.SearchLimit)
	}
	if cfg.Providers.SearchEndpoint != "https://search.internal/api" {
		t.Fatalf("file endpoint not applied: %s", cfg.Providers.SearchEndpoint)
	}
	if cfg.Providers.SearchAPIKey != "env-key" {
		t.Fatalf("env key not applied: %s", cfg.Providers.SearchAPIKey)
	}
	if cfg.Storage.SQLitePath != "/tmp/records.db" {
		t.Fatalf("env sqlite path not applied: %s", cfg.Storage.SQLitePath)
	}

	topics := cfg.TopicList()
	if len(topics) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(topics))
	}
	if topics[0].ID != "rag-eval" {
		t.Fatalf("explicit id lost: %s", topics[0].ID)
	}
	if topics[1].ID != "topic-002" {
		t.Fatalf("derived id wrong: %s", topics[1].ID)
	}
}

func TestLoadAppliesExplicitZeroValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
scoring:
  neutralRecency: 0
  neutralAuthority: 0
pipeline:
  storeRaw: false
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configPathEnv, path)

	cfg := Load()

	if cfg.Scoring.NeutralRecency != 0 {
		t.Fatalf("explicit neutralRecency 0 ignored, got %v", cfg.Scoring.NeutralRecency)
	}
	if cfg.Scoring.NeutralAuthority != 0 {
		t.Fatalf("explicit neutralAuthority 0 ignored, got %v", cfg.Scoring.NeutralAuthority)
	}
	if cfg.Pipeline.StoreRaw {
		t.Fatal("explicit storeRaw false ignored")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero neutrals are in range and must validate: %v", err)
	}
}

func TestLoadKeepsDefaultsWhenZeroablesAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configPathEnv, path)

	cfg := Load()

	if cfg.Scoring.NeutralRecency != 0.5 {
		t.Fatalf("absent neutralRecency must keep default, got %v", cfg.Scoring.NeutralRecency)
	}
	if !cfg.Pipeline.StoreRaw {
		t.Fatal("absent storeRaw must keep default true")
	}
}

func TestLoadSurvivesMissingFile(t *testing.T) {
	t.Setenv(configPathEnv, "/nonexistent/config.yaml")

	cfg := Load()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("missing file must fall back to valid defaults: %v", err)
	}
}

func TestValidateRejectsBadWeights(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "negative weight",
			mutate: func(c *Config) { c.Scoring.Weights.Citation = -0.2 },
			field:  "weights.citation",
		},
		{
			name:   "weights do not sum to one",
			mutate: func(c *Config) { c.Scoring.Weights.Relevance = 0.9 },
			field:  "weights",
		},
		{
			name:   "zero half life",
			mutate: func(c *Config) { c.Scoring.RecencyHalfLifeDays = 0 },
			field:  "recencyHalfLifeDays",
		},
		{
			name:   "neutral out of range",
			mutate: func(c *Config) { c.Scoring.NeutralRecency = 1.5 },
			field:  "neutralRecency",
		},
		{
			name:   "zero topK",
			mutate: func(c *Config) { c.Pipeline.TopK = 0 },
			field:  "topK",
		},
		{
			name:   "zero workers",
			mutate: func(c *Config) { c.Pipeline.FetchWorkers = 0 },
			field:  "fetchWorkers",
		},
		{
			name:   "zero timeout",
			mutate: func(c *Config) { c.Pipeline.CandidateTimeout = 0 },
			field:  "candidateTimeout",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := defaultConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected a configuration error")
			}
			cfgErr, ok := err.(*domain.ConfigurationError)
			if !ok {
				t.Fatalf("expected *domain.ConfigurationError, got %T", err)
			}
			if cfgErr.Field != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, cfgErr.Field)
			}
		})
	}
}
