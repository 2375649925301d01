package installer

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/mendels/forgestore/internal/models"
)

// buildZip creates an in-memory zip archive from a path-to-content map.
// Paths ending in "/" become directory entries.
func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		if len(name) > 0 && name[len(name)-1] == '/' {
			if _, err := w.Create(name); err != nil {
				t.Fatalf("Failed to create dir entry %s: %v", name, err)
			}
			continue
		}
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("Failed to create zip entry %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("Failed to write zip entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close zip writer: %v", err)
	}
	return buf.Bytes()
}

// serveArchive returns a test server that serves the given archive on any
// path, plus an installer writing into temp directories.
func setupInstallTest(t *testing.T, archive []byte) (*httptest.Server, *Installer, Paths) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	t.Cleanup(server.Close)

	paths := Paths{
		Components: filepath.Join(t.TempDir(), "custom_components"),
		Web:        filepath.Join(t.TempDir(), "www"),
		Templates:  filepath.Join(t.TempDir(), "blueprints"),
		Brands:     filepath.Join(t.TempDir(), "brands"),
	}
	for _, p := range []string{paths.Components, paths.Web, paths.Templates, paths.Brands} {
		if err := os.MkdirAll(p, 0755); err != nil {
			t.Fatalf("Failed to create path %s: %v", p, err)
		}
	}
	return server, New(paths), paths
}

func assertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected file %s to exist: %v", path, err)
	}
}

func assertFileMissing(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("Expected file %s to be absent", path)
	}
}

func TestInstallModule(t *testing.T) {
	t.Run("standard layout with wrapper folder", func(t *testing.T) {
		archive := buildZip(t, map[string]string{
			"thing-main/README.md":                                "readme",
			"thing-main/custom_components/my_thing/__init__.py":   "init",
			"thing-main/custom_components/my_thing/manifest.json": `{"domain": "my_thing"}`,
			"thing-main/custom_components/my_thing/icon.png":      "png-bytes",
			"thing-main/custom_components/my_thing/logo-dark.png": "png-bytes",
		})
		server, ins, paths := setupInstallTest(t, archive)

		result, err := ins.Install(context.Background(), server.URL+"/archive/v1.0.zip", nil, models.KindModule, "thing")
		if err != nil {
			t.Fatalf("Install failed: %v", err)
		}
		if len(result.Domains) != 1 || result.Domains[0] != "my_thing" {
			t.Errorf("Expected domains [my_thing], got %v", result.Domains)
		}
		assertFileExists(t, filepath.Join(paths.Components, "my_thing", "manifest.json"))
		assertFileExists(t, filepath.Join(paths.Components, "my_thing", "__init__.py"))
		// Repo-level files outside custom_components stay out.
		assertFileMissing(t, filepath.Join(paths.Components, "README.md"))
	})

	t.Run("icons fan out to brands with normalized names", func(t *testing.T) {
		archive := buildZip(t, map[string]string{
			"custom_components/my_thing/manifest.json": "{}",
			"custom_components/my_thing/icon.png":      "icon",
			"custom_components/my_thing/icon_2x.png":   "icon2x",
			"custom_components/my_thing/logo.svg":      "logo",
		})
		server, ins, paths := setupInstallTest(t, archive)

		if _, err := ins.Install(context.Background(), server.URL+"/a.zip", nil, models.KindModule, "thing"); err != nil {
			t.Fatalf("Install failed: %v", err)
		}
		brandDir := filepath.Join(paths.Brands, "my_thing")
		assertFileExists(t, filepath.Join(brandDir, "icon.png"))
		assertFileExists(t, filepath.Join(brandDir, "icon_2x.png"))
		assertFileExists(t, filepath.Join(brandDir, "icon@2x.png"))
		assertFileExists(t, filepath.Join(brandDir, "logo.svg"))
		assertFileExists(t, filepath.Join(brandDir, "logo.png"))
		// The installed folder gets the same normalized names.
		moduleDir := filepath.Join(paths.Components, "my_thing")
		assertFileExists(t, filepath.Join(moduleDir, "icon@2x.png"))
		assertFileExists(t, filepath.Join(moduleDir, "logo.png"))
	})

	t.Run("icons folder at the archive root fans out", func(t *testing.T) {
		archive := buildZip(t, map[string]string{
			"thing-main/icons/icon.png":                           "icon",
			"thing-main/custom_components/my_thing/manifest.json": "{}",
		})
		server, ins, paths := setupInstallTest(t, archive)

		if _, err := ins.Install(context.Background(), server.URL+"/a.zip", nil, models.KindModule, "thing"); err != nil {
			t.Fatalf("Install failed: %v", err)
		}
		assertFileExists(t, filepath.Join(paths.Brands, "my_thing", "icon.png"))
		assertFileExists(t, filepath.Join(paths.Components, "my_thing", "icon.png"))
	})

	t.Run("any image serves as the main icon", func(t *testing.T) {
		archive := buildZip(t, map[string]string{
			"custom_components/my_thing/manifest.json": "{}",
			"custom_components/my_thing/brand.png":     "png-bytes",
		})
		server, ins, paths := setupInstallTest(t, archive)

		if _, err := ins.Install(context.Background(), server.URL+"/a.zip", nil, models.KindModule, "thing"); err != nil {
			t.Fatalf("Install failed: %v", err)
		}
		assertFileExists(t, filepath.Join(paths.Brands, "my_thing", "brand.png"))
		assertFileExists(t, filepath.Join(paths.Brands, "my_thing", "icon.png"))
		assertFileExists(t, filepath.Join(paths.Components, "my_thing", "icon.png"))
	})

	t.Run("existing brand files are not overwritten", func(t *testing.T) {
		archive := buildZip(t, map[string]string{
			"custom_components/my_thing/manifest.json": "{}",
			"custom_components/my_thing/icon.png":      "new-icon",
		})
		server, ins, paths := setupInstallTest(t, archive)
		brandDir := filepath.Join(paths.Brands, "my_thing")
		if err := os.MkdirAll(brandDir, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(brandDir, "icon.png"), []byte("original"), 0644); err != nil {
			t.Fatal(err)
		}

		if _, err := ins.Install(context.Background(), server.URL+"/a.zip", nil, models.KindModule, "thing"); err != nil {
			t.Fatalf("Install failed: %v", err)
		}
		data, err := os.ReadFile(filepath.Join(brandDir, "icon.png"))
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "original" {
			t.Errorf("Expected existing icon to survive, got %q", data)
		}
	})

	t.Run("reinstall replaces stale files", func(t *testing.T) {
		archive := buildZip(t, map[string]string{
			"custom_components/my_thing/manifest.json": "{}",
		})
		server, ins, paths := setupInstallTest(t, archive)
		stale := filepath.Join(paths.Components, "my_thing", "stale.py")
		if err := os.MkdirAll(filepath.Dir(stale), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(stale, []byte("old"), 0644); err != nil {
			t.Fatal(err)
		}

		if _, err := ins.Install(context.Background(), server.URL+"/a.zip", nil, models.KindModule, "thing"); err != nil {
			t.Fatalf("Install failed: %v", err)
		}
		assertFileMissing(t, stale)
		assertFileExists(t, filepath.Join(paths.Components, "my_thing", "manifest.json"))
	})

	t.Run("archive without module layout fails", func(t *testing.T) {
		archive := buildZip(t, map[string]string{"README.md": "nothing here"})
		server, ins, _ := setupInstallTest(t, archive)

		if _, err := ins.Install(context.Background(), server.URL+"/a.zip", nil, models.KindModule, "thing"); err == nil {
			t.Error("Expected install of non-module archive to fail")
		}
	})
}

func TestInstallWebAsset(t *testing.T) {
	t.Run("prefers dist folder and exact repo script", func(t *testing.T) {
		archive := buildZip(t, map[string]string{
			"my-card-1.0/dist/my-card.js":     "card",
			"my-card-1.0/dist/my-card.js.map": "map",
			"my-card-1.0/src/my-card.ts":      "source",
		})
		server, ins, paths := setupInstallTest(t, archive)

		result, err := ins.Install(context.Background(), server.URL+"/a.zip", nil, models.KindWebAsset, "my-card")
		if err != nil {
			t.Fatalf("Install failed: %v", err)
		}
		if result.MainScript != "my-card.js" {
			t.Errorf("Expected main script my-card.js, got %s", result.MainScript)
		}
		assertFileExists(t, filepath.Join(paths.Web, VendorFolder, "my-card", "my-card.js"))
		// Only the dist payload is installed.
		assertFileMissing(t, filepath.Join(paths.Web, VendorFolder, "my-card", "src", "my-card.ts"))
	})

	t.Run("falls back to first root script", func(t *testing.T) {
		archive := buildZip(t, map[string]string{
			"zebra.js": "z",
			"alpha.js": "a",
		})
		server, ins, _ := setupInstallTest(t, archive)

		result, err := ins.Install(context.Background(), server.URL+"/a.zip", nil, models.KindWebAsset, "my-card")
		if err != nil {
			t.Fatalf("Install failed: %v", err)
		}
		if result.MainScript != "alpha.js" {
			t.Errorf("Expected main script alpha.js, got %s", result.MainScript)
		}
	})

	t.Run("searches subdirectories last", func(t *testing.T) {
		archive := buildZip(t, map[string]string{
			"build/out/widget.js": "w",
			"README.md":           "r",
		})
		server, ins, _ := setupInstallTest(t, archive)

		result, err := ins.Install(context.Background(), server.URL+"/a.zip", nil, models.KindWebAsset, "my-card")
		if err != nil {
			t.Fatalf("Install failed: %v", err)
		}
		if result.MainScript != "build/out/widget.js" {
			t.Errorf("Expected main script build/out/widget.js, got %s", result.MainScript)
		}
	})

	t.Run("no script at all fails", func(t *testing.T) {
		archive := buildZip(t, map[string]string{"README.md": "docs only"})
		server, ins, _ := setupInstallTest(t, archive)

		if _, err := ins.Install(context.Background(), server.URL+"/a.zip", nil, models.KindWebAsset, "my-card"); err == nil {
			t.Error("Expected install without any script to fail")
		}
	})
}

func TestInstallTemplateBundle(t *testing.T) {
	t.Run("merges into the template root", func(t *testing.T) {
		archive := buildZip(t, map[string]string{
			"bundle-main/blueprints/automation/acme/motion.yaml": "triggers:",
		})
		server, ins, paths := setupInstallTest(t, archive)
		existing := filepath.Join(paths.Templates, "automation", "other", "keep.yaml")
		if err := os.MkdirAll(filepath.Dir(existing), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(existing, []byte("keep"), 0644); err != nil {
			t.Fatal(err)
		}

		if _, err := ins.Install(context.Background(), server.URL+"/a.zip", nil, models.KindTemplateBundle, "bundle"); err != nil {
			t.Fatalf("Install failed: %v", err)
		}
		assertFileExists(t, filepath.Join(paths.Templates, "automation", "acme", "motion.yaml"))
		// Unrelated files in the shared tree survive the merge.
		assertFileExists(t, existing)
	})

	t.Run("archive without blueprints folder fails", func(t *testing.T) {
		archive := buildZip(t, map[string]string{
			"bundle-main/README.md":  "readme",
			"bundle-main/src/app.py": "app",
		})
		server, ins, paths := setupInstallTest(t, archive)

		if _, err := ins.Install(context.Background(), server.URL+"/a.zip", nil, models.KindTemplateBundle, "bundle"); err == nil {
			t.Fatal("Expected install without a blueprints folder to fail")
		}
		// Nothing from the rejected archive leaks into the shared tree.
		assertFileMissing(t, filepath.Join(paths.Templates, "README.md"))
		assertFileMissing(t, filepath.Join(paths.Templates, "src"))
	})
}

func TestInstallRejectsEscapingEntries(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("../evil.txt")
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte("evil"))
	w.Close()

	server, ins, _ := setupInstallTest(t, buf.Bytes())
	if _, err := ins.Install(context.Background(), server.URL+"/a.zip", nil, models.KindModule, "thing"); err == nil {
		t.Error("Expected archive with escaping entry to be rejected")
	}
}

func TestDownloadRetriesWithVPrefix(t *testing.T) {
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Path)
		if r.URL.Path == "/acme/thing/archive/1.2.3.zip" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("unrecognized repository reference"))
			return
		}
		w.Write([]byte("archive-bytes"))
	}))
	defer server.Close()

	ins := New(Paths{})
	data, err := ins.download(context.Background(), server.URL+"/acme/thing/archive/1.2.3.zip", nil)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if string(data) != "archive-bytes" {
		t.Errorf("Expected retried download body, got %q", data)
	}
	if len(requests) != 2 || requests[1] != "/acme/thing/archive/v1.2.3.zip" {
		t.Errorf("Expected a single retry with v-prefixed ref, got %v", requests)
	}
}

func TestDownloadErrorCarriesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("no access"))
	}))
	defer server.Close()

	ins := New(Paths{})
	_, err := ins.download(context.Background(), server.URL+"/a.zip", nil)
	var dlErr *DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("Expected a DownloadError, got %v", err)
	}
	if dlErr.StatusCode != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", dlErr.StatusCode)
	}
}

func TestUninstall(t *testing.T) {
	t.Run("removes web asset folder", func(t *testing.T) {
		_, ins, paths := setupInstallTest(t, nil)
		dest := filepath.Join(paths.Web, VendorFolder, "my-card")
		if err := os.MkdirAll(dest, 0755); err != nil {
			t.Fatal(err)
		}

		if err := ins.Uninstall(models.KindWebAsset, "my-card"); err != nil {
			t.Fatalf("Uninstall failed: %v", err)
		}
		assertFileMissing(t, dest)
	})

	t.Run("module tries underscore domain variant", func(t *testing.T) {
		_, ins, paths := setupInstallTest(t, nil)
		dest := filepath.Join(paths.Components, "my_thing")
		if err := os.MkdirAll(dest, 0755); err != nil {
			t.Fatal(err)
		}

		if err := ins.Uninstall(models.KindModule, "My-Thing"); err != nil {
			t.Fatalf("Uninstall failed: %v", err)
		}
		assertFileMissing(t, dest)
	})

	t.Run("missing install is not an error", func(t *testing.T) {
		_, ins, _ := setupInstallTest(t, nil)
		if err := ins.Uninstall(models.KindWebAsset, "never-installed"); err != nil {
			t.Errorf("Expected uninstall of missing package to succeed, got %v", err)
		}
	})
}

func TestResourceURL(t *testing.T) {
	got := ResourceURL("my-card", "dist/my-card.js")
	want := "/assets/forgestore/my-card/dist/my-card.js"
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}
