// A one-shot command line companion to the server: runs a single update
// sweep over the tracked packages and prints the outcome. Useful from cron
// or for checking state without the web UI.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/mendels/forgestore/internal/core"
)

func main() {
	app, err := core.New("cli")
	if err != nil {
		log.Fatalf("Fatal error during application setup: %v", err)
	}
	defer app.Close()

	packages := app.Service().Registry().List()
	if len(packages) == 0 {
		fmt.Println("No packages tracked.")
		return
	}

	log.Printf("Checking %d tracked package(s) for updates...", len(packages))
	pending, err := app.Service().CheckUpdates(context.Background())
	if err != nil {
		log.Fatalf("Update check failed: %v", err)
	}

	for _, pkg := range app.Service().Registry().List() {
		marker := " "
		if pkg.UpdateAvailable {
			marker = "*"
		}
		fmt.Printf("%s %s/%s  installed=%s latest=%s\n", marker, pkg.Owner, pkg.RepoName, pkg.InstalledVersion, pkg.LatestVersion)
	}
	fmt.Printf("%d package(s) have updates available.\n", pending)
}
