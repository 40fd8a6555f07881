// Package app wires the application together: configuration, tracing,
// database, genkit, tools, and the planning agent. Setup builds everything
// in dependency order and Close tears it down.
package app

import (
	"context"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wearcast/wearcast/internal/agent"
	"github.com/wearcast/wearcast/internal/config"
	"github.com/wearcast/wearcast/internal/knowledge"
	"github.com/wearcast/wearcast/internal/telemetry"
	"github.com/wearcast/wearcast/internal/tools"
	"github.com/wearcast/wearcast/internal/weather"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit    *genkit.Genkit
	Embedder  ai.Embedder
	DBPool    *pgxpool.Pool
	Knowledge *knowledge.Store
	Weather   *weather.Client
	Search    *tools.SearchClient
	Registry  *tools.Registry
	Recorder  *telemetry.Recorder
	Agent     *agent.Agent

	otelCleanup func()
	dbCleanup   func()
}

// Close gracefully shuts down all resources. Safe to call on a partially
// constructed App.
func (a *App) Close() error {
	a.logger().Info("shutting down application")

	if a.Recorder != nil {
		if err := a.Recorder.Close(); err != nil {
			a.logger().Warn("closing trace recorder", "error", err)
		}
	}
	if a.dbCleanup != nil {
		a.dbCleanup()
		a.logger().Info("database pool closed")
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}

func (a *App) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// Ask runs a single conversational turn without streaming.
func (a *App) Ask(ctx context.Context, message string) (*agent.Response, error) {
	return a.Agent.Execute(ctx, agent.Request{
		TraceID: telemetry.NewTraceID(),
		Message: message,
	})
}
