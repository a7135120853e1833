package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scribehq/scribe/db"
	"github.com/scribehq/scribe/internal/artifact"
	"github.com/scribehq/scribe/internal/config"
	"github.com/scribehq/scribe/internal/embedding"
	"github.com/scribehq/scribe/internal/gencache"
	"github.com/scribehq/scribe/internal/metadata"
	"github.com/scribehq/scribe/internal/modelclient"
	"github.com/scribehq/scribe/internal/pipeline"
	"github.com/scribehq/scribe/internal/project"
	"github.com/scribehq/scribe/internal/prompt"
	"github.com/scribehq/scribe/internal/semantic"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.Pool = pool

	g, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}

	a.Model = modelclient.New(
		modelclient.NewGenkitGenerator(g, cfg.FullModelName(), cfg.Temperature, cfg.MaxTokens),
		modelclient.NewGenkitEmbedder(embedder, embedding.VectorDimension),
		modelclient.DefaultConfig(),
		logger,
	)

	a.Cache, err = provideCache(cfg, pool, logger)
	if err != nil {
		return nil, err
	}

	a.Projects, err = project.NewStore(pool, logger)
	if err != nil {
		return nil, err
	}
	a.Artifacts, err = artifact.NewStore(pool, logger)
	if err != nil {
		return nil, err
	}

	index, err := semantic.NewPostgresIndex(pool, logger)
	if err != nil {
		return nil, err
	}

	embedGen, err := embedding.NewGenerator(a.Model, a.Cache, embedding.DefaultTokenBudget, logger)
	if err != nil {
		return nil, err
	}

	prompts, err := prompt.NewEngine()
	if err != nil {
		return nil, err
	}

	a.Pipeline, err = pipeline.New(pipeline.Deps{
		Extractor: metadata.NewExtractor(metadata.NewAPIAnalyzer(), metadata.NewSchemaAnalyzer()),
		Prompts:   prompts,
		Cache:     a.Cache,
		Model:     a.Model,
		Embedder:  embedGen,
		Index:     index,
		Projects:  a.Projects,
		Artifacts: a.Artifacts,
		ModelName: cfg.FullModelName(),
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	return a, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
// Supports gemini (default), ollama, and openai providers.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = "gemini"
	}

	var g *genkit.Genkit

	switch provider {
	case "ollama":
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery).
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		slog.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case "openai":
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		slog.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // "gemini"
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		slog.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the AI provider plugin.
// Each provider registers embedders differently:
//   - gemini: GoogleAIEmbedder(g, modelName)
//   - ollama: registered in provideGenkit, keyed by server address
//   - openai: auto-registered in Init(), looked up by model name
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	provider := cfg.Provider
	if provider == "" {
		provider = "gemini"
	}

	switch provider {
	case "ollama":
		return ollama.Embedder(g, cfg.OllamaHost)
	case "openai":
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, pool.Close, nil
}

// provideCache builds the two-tier generation cache: in-process always, the
// shared Postgres tier layered on top.
func provideCache(cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) (*gencache.Cache, error) {
	shared, err := gencache.NewPostgresStore(pool, logger)
	if err != nil {
		return nil, err
	}
	return gencache.New(cfg.CacheTTL,
		gencache.WithSharedStore(shared),
		gencache.WithLogger(logger),
	), nil
}
