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

	"github.com/wearcast/wearcast/db"
	"github.com/wearcast/wearcast/internal/agent"
	"github.com/wearcast/wearcast/internal/config"
	"github.com/wearcast/wearcast/internal/knowledge"
	"github.com/wearcast/wearcast/internal/observability"
	"github.com/wearcast/wearcast/internal/telemetry"
	"github.com/wearcast/wearcast/internal/tools"
	"github.com/wearcast/wearcast/internal/weather"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	if cfg.OtelEnabled {
		a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)
	}

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	a.Knowledge, err = knowledge.NewStore(pool, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("creating knowledge store: %w", err)
	}

	a.Weather, err = weather.NewClient(cfg.OpenWeatherMapAPIKey, cfg.WeatherUnits, logger)
	if err != nil {
		return nil, fmt.Errorf("creating weather client: %w", err)
	}

	a.Search = tools.NewSearchClient(
		cfg.SearchConcurrency,
		time.Duration(cfg.SearchTimeoutSec)*time.Second,
		cfg.SearchMaxRelated,
		logger,
	)

	a.Recorder = telemetry.NewRecorder(cfg.TracingLogPath)

	registry, toolRefs, err := provideTools(a)
	if err != nil {
		return nil, err
	}
	a.Registry = registry

	a.Agent, err = agent.New(agent.Config{
		Genkit:              g,
		Registry:            registry,
		ToolRefs:            toolRefs,
		Logger:              logger,
		Recorder:            a.Recorder,
		ModelName:           cfg.FullModelName(),
		MaxTurns:            cfg.MaxTurns,
		MaxRetrievalSources: cfg.MaxRetrievalSources,
		MaxTotalSources:     cfg.MaxTotalSources,
	})
	if err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}

	return a, nil
}

// provideOtelShutdown sets up trace export before Genkit initialization so
// the TracerProvider is ready when genkit registers spans.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	shutdown, err := observability.Setup(ctx, observability.Config{
		AgentHost:   cfg.OtelAgentHost,
		Environment: cfg.OtelEnvironment,
		ServiceName: cfg.OtelServiceName,
	})
	if err != nil {
		logger.Warn("tracing setup failed, continuing without it", "error", err)
		return func() {}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit with the configured AI provider plugin.
// Supports googleai (default), ollama, and openai providers.
func provideGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized genkit with openai provider", "model", cfg.ModelName)

	default: // googleai
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with googleai provider")
		}
		logger.Info("initialized genkit with googleai provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the AI provider plugin.
// Each provider registers embedders differently:
//   - googleai: GoogleAIEmbedder(g, modelName)
//   - ollama: registered in provideGenkit, keyed by server address
//   - openai: auto-registered in Init(), looked up by model name
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.DatabaseURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
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

// provideTools builds the three tool definitions, wires them into a
// registry, and registers their schemas with genkit.
func provideTools(a *App) (*tools.Registry, []ai.ToolRef, error) {
	cfg := a.Config

	weatherDef, err := tools.NewWeatherTool(a.Weather)
	if err != nil {
		return nil, nil, fmt.Errorf("creating weather tool: %w", err)
	}

	retrieveDef, err := tools.NewRetrieveTool(a.Knowledge, knowledge.LexicalReranker{}, cfg.RetrieveTopK, cfg.RerankTopN)
	if err != nil {
		return nil, nil, fmt.Errorf("creating retrieval tool: %w", err)
	}

	searchDef, err := tools.NewSearchTool(a.Search)
	if err != nil {
		return nil, nil, fmt.Errorf("creating search tool: %w", err)
	}

	registry, err := tools.NewRegistry(a.Logger, weatherDef, retrieveDef, searchDef)
	if err != nil {
		return nil, nil, fmt.Errorf("building tool registry: %w", err)
	}

	toolRefs := registry.Register(a.Genkit)
	a.Logger.Info("tools registered", "count", len(toolRefs))
	return registry, toolRefs, nil
}
