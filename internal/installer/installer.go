// Archive installation: download, extract to a scratch directory, and place
// files into the destination layout for the package kind. Each stage fails
// with its own error so the caller can tell the user which one broke.
package installer

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mholt/archives"

	"github.com/mendels/forgestore/internal/models"
)

// VendorFolder namespaces every web asset this application installs under
// the public web root, so siblings installed by other tooling stay untouched.
const VendorFolder = "forgestore"

// PublicAssetPrefix is the URL path the API server mounts the web root on.
const PublicAssetPrefix = "/assets"

// Paths are the destination roots for the three package kinds.
type Paths struct {
	Components string // plugin modules, one folder per domain
	Web        string // public web root; assets go under <Web>/<VendorFolder>/<repo>
	Templates  string // shared template root, merge-copied into
	Brands     string // brand icon directory, one folder per domain
}

// Result reports what an install placed.
type Result struct {
	Domains    []string // module: installed domain folder names
	MainScript string   // web_asset: primary script, relative to the destination
}

// Installer downloads and unpacks package archives.
type Installer struct {
	paths Paths
	http  *http.Client
}

// New creates an Installer writing to the given destination roots.
func New(paths Paths) *Installer {
	return &Installer{
		paths: paths,
		http: &http.Client{
			// Archive downloads can be large; metadata timeouts don't apply.
			Timeout: 120 * time.Second,
		},
	}
}

// Install runs the whole pipeline for one archive: download, extract into a
// scratch directory (always removed, even on failure), normalize the root,
// and place files per kind.
func (ins *Installer) Install(ctx context.Context, url string, headers http.Header, kind models.PackageKind, repoName string) (*Result, error) {
	data, err := ins.download(ctx, url, headers)
	if err != nil {
		return nil, err
	}

	scratch, err := os.MkdirTemp("", "forgestore-install-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	if err := extractArchive(ctx, data, filepath.Base(url), scratch); err != nil {
		return nil, err
	}

	root := detectSingleTopFolder(scratch)

	switch kind {
	case models.KindModule:
		domains, err := ins.placeModule(root, repoName)
		if err != nil {
			return nil, err
		}
		return &Result{Domains: domains}, nil
	case models.KindWebAsset:
		mainScript, err := ins.placeWebAsset(root, repoName)
		if err != nil {
			return nil, err
		}
		return &Result{MainScript: mainScript}, nil
	case models.KindTemplateBundle:
		if err := ins.placeTemplates(root); err != nil {
			return nil, err
		}
		return &Result{}, nil
	default:
		// A caller passing an unknown kind is a bug, not user input.
		return nil, fmt.Errorf("installer: unsupported package kind %q", kind)
	}
}

// Uninstall removes installed files, best effort. The registry entry is
// handled separately by the caller; the two removals are independent.
func (ins *Installer) Uninstall(kind models.PackageKind, repoName string) error {
	switch kind {
	case models.KindWebAsset:
		dest := filepath.Join(ins.paths.Web, VendorFolder, repoName)
		if _, err := os.Stat(dest); err == nil {
			log.Printf("Removing web asset installation: %s", dest)
			return os.RemoveAll(dest)
		}
		return nil
	case models.KindModule:
		// The domain folder is usually the repo name, or its underscore
		// variant when the repo name carries hyphens.
		for _, domain := range []string{strings.ToLower(repoName), strings.ReplaceAll(strings.ToLower(repoName), "-", "_")} {
			dest := filepath.Join(ins.paths.Components, domain)
			if _, err := os.Stat(dest); err == nil {
				log.Printf("Removing module installation: %s", dest)
				return os.RemoveAll(dest)
			}
		}
		return nil
	case models.KindTemplateBundle:
		// Template bundles merge into a shared tree; individual files are
		// not tracked, so there is nothing safe to remove.
		return nil
	default:
		return fmt.Errorf("installer: unsupported package kind %q", kind)
	}
}

// ResourceURL computes the public URL a web asset's main script is served
// under.
func ResourceURL(repoName, mainScript string) string {
	return PublicAssetPrefix + "/" + VendorFolder + "/" + repoName + "/" + filepath.ToSlash(mainScript)
}

// extractArchive unpacks the archive bytes into destDir. Entry names that
// would escape the destination are rejected.
func extractArchive(ctx context.Context, data []byte, filename, destDir string) error {
	format, input, err := archives.Identify(ctx, filename, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("unrecognized archive format: %w", err)
	}
	extractor, ok := format.(archives.Extractor)
	if !ok {
		return fmt.Errorf("archive format %s does not support extraction", format.Extension())
	}

	err = extractor.Extract(ctx, input, func(ctx context.Context, f archives.FileInfo) error {
		name := filepath.FromSlash(f.NameInArchive)
		if !filepath.IsLocal(name) {
			return fmt.Errorf("archive entry %q escapes the extraction directory", f.NameInArchive)
		}
		target := filepath.Join(destDir, name)

		if f.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}

		src, err := f.Open()
		if err != nil {
			return err
		}
		defer src.Close()

		dst, err := os.Create(target)
		if err != nil {
			return err
		}
		defer dst.Close()

		_, err = dst.ReadFrom(src)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to extract archive: %w", err)
	}
	return nil
}

// detectSingleTopFolder handles the "repo-name-ref/" wrapper convention:
// when extraction produced exactly one directory at the top level, its
// contents are the effective root.
func detectSingleTopFolder(extractDir string) string {
	entries, err := os.ReadDir(extractDir)
	if err != nil {
		return extractDir
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(extractDir, entries[0].Name())
	}
	return extractDir
}
