// It defines the API server, sets up the routes (endpoints)
// using chi, and links them to the handler functions.

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mendels/forgestore/internal/core"
	"github.com/mendels/forgestore/internal/installer"
	"github.com/mendels/forgestore/internal/service"
	"github.com/mendels/forgestore/internal/websocket"
)

// Server holds the dependencies for our API.
type Server struct {
	app *core.App
	svc *service.Service
}

// NewServer creates a new Server instance.
func NewServer(app *core.App) *Server {
	return &Server{
		app: app,
		svc: app.Service(),
	}
}

// Router sets up and returns the main router for the application.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)    // Logs requests to the console
	r.Use(middleware.Recoverer) // Recovers from panics
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/version", s.handleGetVersion)
		r.Get("/config", s.handleGetConfig)

		// Package lifecycle
		r.Route("/packages", func(r chi.Router) {
			r.Get("/", s.handleListPackages)
			r.Post("/", s.handleInstallPackage)
			r.Post("/check-updates", s.handleCheckUpdates)
			r.Get("/{packageID}", s.handleGetPackage)
			r.Delete("/{packageID}", s.handleUninstallPackage)
			r.Post("/{packageID}/update", s.handleUpdatePackage)
		})

		// Catalog browsing and repo curation
		r.Route("/store", func(r chi.Router) {
			r.Get("/repos", s.handleBrowseRepos)
			r.Get("/repos/{owner}/{repo}", s.handleGetRepoDetails)
			r.Get("/repos/{owner}/{repo}/readme", s.handleGetReadme)

			r.Get("/custom-repos", s.handleListCustomRepos)
			r.Post("/custom-repos", s.handleAddCustomRepo)
			r.Delete("/custom-repos/{owner}/{repo}", s.handleRemoveCustomRepo)

			r.Get("/hidden-repos", s.handleListHiddenRepos)
			r.Post("/hidden-repos", s.handleHideRepo)
			r.Delete("/hidden-repos/{owner}/{repo}", s.handleUnhideRepo)
		})

		// Background job control
		r.Get("/jobs/status", s.handleGetJobsStatus)
		r.Post("/jobs/run", s.handleRunJob)
	})

	// WebSocket route
	r.Get("/ws/events", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(s.app.WsHub(), w, r)
	})

	// Installed web assets are served straight from the web root.
	webRoot := http.Dir(s.app.Config().Paths.Web)
	r.Handle(installer.PublicAssetPrefix+"/*",
		http.StripPrefix(installer.PublicAssetPrefix+"/", http.FileServer(webRoot)))

	return r
}
