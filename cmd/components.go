package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/job-curator/internal/ai/gemini"
	"github.com/spigell/job-curator/internal/curation"
	"github.com/spigell/job-curator/internal/database"
	"github.com/spigell/job-curator/internal/filtering"
	"github.com/spigell/job-curator/internal/jobs"
	"github.com/spigell/job-curator/internal/logger"
	"github.com/spigell/job-curator/internal/metrics"
	"github.com/spigell/job-curator/internal/orchestrator"
	"github.com/spigell/job-curator/internal/resume"
	"github.com/spigell/job-curator/internal/scoring"
	"github.com/spigell/job-curator/internal/scraper"
	"github.com/spigell/job-curator/internal/secrets"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// components are the process-wide collaborators shared by run and serve.
type components struct {
	config  *Config
	logger  *zap.Logger
	pool    *pgxpool.Pool
	store   jobs.Store
	metrics *metrics.Metrics
	graph   *orchestrator.Graph
}

func (c *components) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

// openStore connects to Postgres when a database URL is configured and falls
// back to an in-memory store otherwise.
func openStore(ctx context.Context, config *Config, log *zap.Logger) (jobs.Store, *pgxpool.Pool, error) {
	urlFile := ""
	if config.Database != nil {
		urlFile = config.Database.URLFile
	}

	databaseURL, err := secrets.Load(secrets.Source{
		Name: "database url",
		Env:  "DATABASE_URL",
		File: urlFile,
	})
	if err != nil {
		if urlFile != "" {
			return nil, nil, err
		}
		log.Warn("no database configured, jobs are kept in memory",
			zap.String("hint", "set database.url-file, JOB_CURATOR_DATABASE_URL_FILE or DATABASE_URL"),
		)
		return jobs.NewMemoryStore(), nil, nil
	}

	pool, err := database.Connect(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}

	store := jobs.NewPostgresStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	return store, pool, nil
}

func newResumeProvider(ctx context.Context, config *ResumeConfig, pool *pgxpool.Pool) (resume.Provider, error) {
	if config != nil && strings.TrimSpace(config.File) != "" {
		return resume.FileProvider{Path: config.File}, nil
	}
	if pool == nil {
		return nil, errors.New("resume source is required: set resume.file or configure a database with resume chunks")
	}

	collection := ""
	if config != nil {
		collection = config.Collection
	}
	provider := resume.NewPostgresProvider(pool, collection)
	if err := provider.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return provider, nil
}

func newGenerator(ctx context.Context, config *AIConfig, log *zap.Logger) (*gemini.Generator, error) {
	if config == nil || config.Gemini == nil {
		return nil, errors.New("ai.gemini configuration is required")
	}
	cfg := config.Gemini

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		Env:  "GEMINI_API_KEY",
		File: cfg.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	return gemini.NewGenerator(ctx, gemini.Options{
		APIKey:       apiKey,
		Model:        cfg.Model,
		MaxRetries:   cfg.MaxRetries,
		MaxLogLength: cfg.MaxLogLength,
		Timeout:      cfg.Timeout,
		Logger: logger.WithCommonFields(log, "gemini", cfg.Model).With(
			zap.Int("ai_retry_attempts", cfg.MaxRetries),
		),
	})
}

// build wires the whole pipeline once per process.
func build(ctx context.Context, config *Config, log *zap.Logger) (*components, error) {
	store, pool, err := openStore(ctx, config, log)
	if err != nil {
		return nil, fmt.Errorf("opening job store: %w", err)
	}
	c := &components{
		config:  config,
		logger:  log,
		pool:    pool,
		store:   store,
		metrics: metrics.New(),
	}

	graph, err := c.newGraph(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.graph = graph

	return c, nil
}

func (c *components) newGraph(ctx context.Context) (*orchestrator.Graph, error) {
	config := c.config

	provider, err := newResumeProvider(ctx, config.Resume, c.pool)
	if err != nil {
		return nil, fmt.Errorf("building resume provider: %w", err)
	}

	generator, err := newGenerator(ctx, config.AI, c.logger)
	if err != nil {
		return nil, fmt.Errorf("building gemini client: %w", err)
	}

	var (
		scraperURL     string
		scraperTimeout time.Duration
	)
	if config.Scraper != nil {
		scraperURL, scraperTimeout = config.Scraper.URL, config.Scraper.Timeout
	}
	gateway, err := scraper.New(scraperURL, scraperTimeout, c.logger)
	if err != nil {
		return nil, fmt.Errorf("building scraper client: %w", err)
	}

	scoringOpts := scoring.Options{
		MaxLogLength: config.AI.Gemini.MaxLogLength,
		Recorder:     c.metrics,
	}
	if config.Scoring != nil {
		scoringOpts.MaxAttempts = config.Scoring.MaxAttempts
		scoringOpts.OnExhausted = scoring.ExhaustedPolicy(config.Scoring.OnExhausted)
	}
	scorer, err := scoring.New(generator, c.store, c.logger, scoringOpts)
	if err != nil {
		return nil, fmt.Errorf("building scorer: %w", err)
	}

	curator, err := curation.New(generator, c.store, c.logger, curation.Options{
		MaxLogLength: config.AI.Gemini.MaxLogLength,
		Recorder:     c.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("building curator: %w", err)
	}

	filters := &filtering.Config{}
	if config.Exclude != nil {
		filters.ExcludeCompanies = config.Exclude.Companies
	}
	if config.Scoring != nil {
		filters.Rescore = config.Scoring.Rescore
	}

	graphCfg := orchestrator.Config{RankedLimit: config.RankedLimit}
	if config.Orchestrator != nil {
		graphCfg.MaxToolAttempts = config.Orchestrator.MaxToolAttempts
	}

	return orchestrator.New(orchestrator.Deps{
		Chat:     generator,
		Gateway:  gateway,
		Scorer:   scorer,
		Curator:  curator,
		Store:    c.store,
		Resume:   provider,
		Filters:  filters,
		Recorder: c.metrics,
		Logger:   logger.WithCommonFields(c.logger, "gemini", generator.Model()),
	}, graphCfg)
}

// request builds an automate request from the configured search section.
func (c *Config) request() orchestrator.AutomateRequest {
	minScore := c.MinJobScore
	return orchestrator.AutomateRequest{
		SearchParams: c.Search,
		MinJobScore:  &minScore,
	}
}
