package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"ResearchHarvester/internal/config"
	"ResearchHarvester/internal/domain"
	"ResearchHarvester/internal/infrastructure/fetcher"
	"ResearchHarvester/internal/infrastructure/normalize"
	"ResearchHarvester/internal/infrastructure/search"
	"ResearchHarvester/internal/infrastructure/storage"
	"ResearchHarvester/internal/logging"
	"ResearchHarvester/internal/pipeline"
	"ResearchHarvester/internal/ports"
	"ResearchHarvester/internal/scoring"
)

// Application wires configuration to adapters and the batch coordinator.
type Application struct {
	cfg     config.Config
	coord   *pipeline.Coordinator
	records *storage.RecordStore
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	searchClient := search.NewScholarClient(
		cfg.Providers.SearchEndpoint,
		cfg.Providers.SearchAPIKey,
		nil,
		baseLogger.With("component", "search"),
	)

	fetchClient := fetcher.NewClient(
		cfg.Providers.RenderEndpoint,
		nil,
		baseLogger.With("component", "fetcher"),
	)

	normalizer := normalize.New(
		cfg.Providers.ConverterEndpoint,
		nil,
		baseLogger.With("component", "normalizer"),
	)

	var artifacts ports.ArtifactStore
	if cfg.Storage.Endpoint != "" {
		artifacts = storage.NewObjectStore(
			cfg.Storage.Endpoint,
			cfg.Storage.Bucket,
			cfg.Storage.APIKey,
			nil,
			baseLogger.With("component", "storage.object"),
		)
	} else {
		fileStore, err := storage.NewFileStore(cfg.Storage.BaseDir, baseLogger.With("component", "storage.file"))
		if err != nil {
			return nil, fmt.Errorf("init artifact store: %w", err)
		}
		artifacts = fileStore
	}

	var records *storage.RecordStore
	if cfg.Storage.SQLitePath != "" {
		var err error
		records, err = storage.NewRecordStore(filepath.Clean(cfg.Storage.SQLitePath))
		if err != nil {
			return nil, fmt.Errorf("init record index: %w", err)
		}
	}

	engine := scoring.NewEngine(cfg.Scoring)
	ranker := scoring.NewRanker(engine, cfg.Pipeline.TopK)

	fetchDeps := pipeline.FetchDeps{
		Fetcher:    fetchClient,
		Normalizer: normalizer,
		Store:      artifacts,
		Logger:     baseLogger.With("component", "pipeline.fetch"),
	}
	if records != nil {
		fetchDeps.Records = records
	}
	fetchCoord := pipeline.NewFetchCoordinator(fetchDeps, pipeline.FetchOptions{
		Workers:          cfg.Pipeline.FetchWorkers,
		CandidateTimeout: cfg.Pipeline.CandidateTimeout,
		RateLimitRPS:     cfg.Pipeline.RateLimitRPS,
		StoreRaw:         cfg.Pipeline.StoreRaw,
	})

	coord := pipeline.NewCoordinator(pipeline.CoordinatorDeps{
		Search: searchClient,
		Ranker: ranker,
		Fetch:  fetchCoord,
		Logger: baseLogger.With("component", "pipeline"),
	}, pipeline.CoordinatorOptions{
		SearchLimit:   cfg.Pipeline.SearchLimit,
		BatchDeadline: cfg.Pipeline.BatchDeadline,
	})

	return &Application{cfg: cfg, coord: coord, records: records}, nil
}

// Run executes one batch over the configured topic list.
func (a *Application) Run(ctx context.Context) domain.BatchReport {
	return a.coord.Run(ctx, a.cfg.TopicList())
}

// Close releases resources held by the adapters.
func (a *Application) Close() error {
	if a.records != nil {
		return a.records.Close()
	}
	return nil
}
