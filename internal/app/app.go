// Package app provides application initialization and dependency wiring.
//
// App is the container that assembles every component of the documentation
// pipeline: the database pool, the Genkit model client, the generation
// cache, the similarity index, the stores, and the pipeline service itself.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scribehq/scribe/internal/artifact"
	"github.com/scribehq/scribe/internal/config"
	"github.com/scribehq/scribe/internal/gencache"
	"github.com/scribehq/scribe/internal/modelclient"
	"github.com/scribehq/scribe/internal/pipeline"
	"github.com/scribehq/scribe/internal/project"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit *genkit.Genkit
	Pool   *pgxpool.Pool

	Model     *modelclient.Client
	Cache     *gencache.Cache
	Projects  *project.Store
	Artifacts *artifact.Store
	Pipeline  *pipeline.Service

	dbCleanup func()
}

// Close gracefully releases all resources.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")
	if a.dbCleanup != nil {
		a.dbCleanup()
		a.Logger.Info("database pool closed")
	}
	return nil
}
