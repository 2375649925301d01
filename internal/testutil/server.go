// Shared test server setup, which simplifies all API tests.

package testutil

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/mendels/forgestore/internal/api"
	"github.com/mendels/forgestore/internal/config"
	"github.com/mendels/forgestore/internal/core"
	"github.com/mendels/forgestore/internal/forge"
	"github.com/mendels/forgestore/internal/installer"
	"github.com/mendels/forgestore/internal/registry"
	"github.com/mendels/forgestore/internal/resolver"
	"github.com/mendels/forgestore/internal/service"
	"github.com/mendels/forgestore/internal/store"
)

// SetupTestApp builds a full core.App over an in-memory database and a forge
// emulated by the given handler. A nil handler means every forge call 404s,
// which is fine for tests that never leave the registry.
func SetupTestApp(t *testing.T, forgeHandler http.Handler) *core.App {
	t.Helper()

	if forgeHandler == nil {
		forgeHandler = http.NotFoundHandler()
	}
	forgeServer := httptest.NewServer(forgeHandler)
	t.Cleanup(forgeServer.Close)

	cfg := &config.Config{
		Port:          8080,
		CheckInterval: 7200,
	}
	cfg.Forge.BaseURL = forgeServer.URL
	cfg.Paths.Components = filepath.Join(t.TempDir(), "custom_components")
	cfg.Paths.Web = filepath.Join(t.TempDir(), "www")
	cfg.Paths.Templates = filepath.Join(t.TempDir(), "blueprints")
	cfg.Paths.Brands = filepath.Join(t.TempDir(), "brands")

	db := SetupTestDB(t)
	reg, err := registry.New(store.New(db))
	if err != nil {
		t.Fatalf("Failed to create registry: %v", err)
	}

	client := forge.New(cfg.Forge.BaseURL, cfg.Forge.Token)
	ins := installer.New(installer.Paths{
		Components: cfg.Paths.Components,
		Web:        cfg.Paths.Web,
		Templates:  cfg.Paths.Templates,
		Brands:     cfg.Paths.Brands,
	})
	svc := service.New(client, resolver.New(client), ins, reg)

	return core.NewFromComponents(cfg, db, client, svc, "test")
}

// SetupTestServer initializes a full core.App and api.Server for integration
// testing.
func SetupTestServer(t *testing.T, forgeHandler http.Handler) (*api.Server, *core.App) {
	t.Helper()
	app := SetupTestApp(t, forgeHandler)
	return api.NewServer(app), app
}
