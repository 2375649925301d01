// Package core assembles the application: configuration, database, forge
// client, service layer and background machinery. Both the server and the
// CLI build on it.
package core

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/mendels/forgestore/internal/assets"
	"github.com/mendels/forgestore/internal/config"
	"github.com/mendels/forgestore/internal/db"
	"github.com/mendels/forgestore/internal/forge"
	"github.com/mendels/forgestore/internal/installer"
	"github.com/mendels/forgestore/internal/jobs"
	"github.com/mendels/forgestore/internal/registry"
	"github.com/mendels/forgestore/internal/resolver"
	"github.com/mendels/forgestore/internal/service"
	"github.com/mendels/forgestore/internal/store"
	"github.com/mendels/forgestore/internal/websocket"
)

// App holds the core components of the application.
type App struct {
	config     *config.Config
	database   *sql.DB
	forge      *forge.Client
	svc        *service.Service
	hub        *websocket.Hub
	jobManager *jobs.JobManager
	version    string
}

// New sets up and returns a new App instance. It loads the configuration,
// initializes the database, runs migrations and wires the service layer.
func New(version string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.RunMigrations(database, assets.MigrationsFS); err != nil {
		// We can't proceed without a valid database schema.
		database.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	reg, err := registry.New(store.New(database))
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to load package registry: %w", err)
	}

	client := forge.New(cfg.Forge.BaseURL, cfg.Forge.Token)
	ins := installer.New(installer.Paths{
		Components: cfg.Paths.Components,
		Web:        cfg.Paths.Web,
		Templates:  cfg.Paths.Templates,
		Brands:     cfg.Paths.Brands,
	})
	svc := service.New(client, resolver.New(client), ins, reg)

	hub := websocket.NewHub()
	go hub.Run()

	jm := jobs.NewManager()
	jobs.RegisterAll(jm)

	app := &App{
		config:     cfg,
		database:   database,
		forge:      client,
		svc:        svc,
		hub:        hub,
		jobManager: jm,
		version:    version,
	}
	app.forwardRegistryEvents(reg)

	log.Println("Core application setup complete.")
	return app, nil
}

// NewFromComponents assembles an App from pre-built parts. Tests use it to
// inject scripted forge servers and in-memory databases.
func NewFromComponents(cfg *config.Config, database *sql.DB, client *forge.Client, svc *service.Service, version string) *App {
	hub := websocket.NewHub()
	go hub.Run()

	jm := jobs.NewManager()
	jobs.RegisterAll(jm)

	app := &App{
		config:     cfg,
		database:   database,
		forge:      client,
		svc:        svc,
		hub:        hub,
		jobManager: jm,
		version:    version,
	}
	app.forwardRegistryEvents(svc.Registry())
	return app
}

// forwardRegistryEvents pushes every registry change to connected clients.
func (a *App) forwardRegistryEvents(reg *registry.Registry) {
	events := reg.Subscribe()
	go func() {
		for ev := range events {
			a.hub.BroadcastJSON(ev)
		}
	}()
}

// Close gracefully closes the application's resources, like the DB connection.
func (a *App) Close() {
	if a.database != nil {
		a.database.Close()
	}
}

func (a *App) Config() *config.Config       { return a.config }
func (a *App) DB() *sql.DB                  { return a.database }
func (a *App) Forge() *forge.Client         { return a.forge }
func (a *App) Service() *service.Service    { return a.svc }
func (a *App) WsHub() *websocket.Hub        { return a.hub }
func (a *App) JobManager() *jobs.JobManager { return a.jobManager }
func (a *App) Version() string              { return a.version }
