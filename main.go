package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mendels/forgestore/internal/api"
	"github.com/mendels/forgestore/internal/core"
	"github.com/mendels/forgestore/internal/jobs"
)

const version = "0.1.0"

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize the core application components
	app, err := core.New(version)
	if err != nil {
		log.Fatalf("Fatal error during application setup: %v", err)
	}
	defer app.Close()

	// Probe the forge token once at startup. A bad token degrades the
	// client to unauthenticated rather than failing every later call.
	if app.Forge().TestAuth(context.Background()) {
		log.Printf("Connected to forge at %s", app.Forge().BaseURL())
	} else {
		log.Printf("Proceeding without forge authentication")
	}

	// Run one update sweep right away, then hand the cadence to the
	// scheduler.
	go func() {
		if err := app.JobManager().RunJob(jobs.JobUpdateCheck, app); err != nil {
			log.Printf("Warning: initial update check could not start: %v", err)
		}
	}()
	jobs.StartJobs(app)

	// Setup the API server
	server := api.NewServer(app)
	addr := fmt.Sprintf(":%d", app.Config().Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Router(),
	}
	// --- Graceful Shutdown ---
	// Start the server in a goroutine so it doesn't block.
	go func() {
		log.Printf("Starting web server on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not start server: %v", err)
		}
	}()

	// Wait for an interrupt signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Create a context with a timeout to allow existing connections to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Attempt a graceful shutdown.
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
