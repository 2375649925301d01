// Package registry tracks installed packages and their update state. It is
// the in-memory view over the durable package document; every mutation
// rewrites the full snapshot through the store.
package registry

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/mendels/forgestore/internal/models"
	"github.com/mendels/forgestore/internal/store"
)

// ReleaseInfo is the subset of release metadata an update check needs.
type ReleaseInfo struct {
	Tag   string
	Title string
	Notes string
}

// ReleaseSource answers "what is the newest release of this repo". The forge
// client satisfies it via a thin adapter.
type ReleaseSource interface {
	LatestRelease(ctx context.Context, owner, repo string) (*ReleaseInfo, error)
}

// packagesDocument is the persisted snapshot shape.
type packagesDocument struct {
	Schema   int                               `json:"schema"`
	Packages map[string]*models.TrackedPackage `json:"packages"`
}

// Registry holds every tracked package, keyed by derived package ID.
type Registry struct {
	mu    sync.RWMutex
	store *store.Store

	packages    map[string]*models.TrackedPackage
	customRepos []models.CustomRepoEntry
	hiddenRepos []models.HiddenRepoEntry

	subMu       sync.Mutex
	subscribers []chan Event
}

// New loads the persisted registry state. Missing documents mean a fresh
// install and start empty.
func New(st *store.Store) (*Registry, error) {
	r := &Registry{
		store:    st,
		packages: make(map[string]*models.TrackedPackage),
	}

	var doc packagesDocument
	if _, err := st.LoadDocument(store.KeyPackages, &doc); err != nil {
		return nil, fmt.Errorf("failed to load package registry: %w", err)
	}
	if doc.Packages != nil {
		r.packages = doc.Packages
	}

	if err := r.loadRepoDocuments(); err != nil {
		return nil, err
	}
	return r, nil
}

// DeriveID builds the stable package identifier from the repo coordinates.
// Lowercased, joined with an underscore, hyphens folded to underscores.
func DeriveID(owner, repo string) string {
	return strings.ReplaceAll(strings.ToLower(owner+"_"+repo), "-", "_")
}

// RecordInstall registers a fresh install or an in-place update. A new entry
// gets its install date stamped now; an existing entry keeps it. Either way
// the installed and latest versions converge and no update is pending.
func (r *Registry) RecordInstall(owner, repo string, kind models.PackageKind, source, version string, mode models.InstallMode, assetName string) (*models.TrackedPackage, error) {
	id := DeriveID(owner, repo)
	now := time.Now().UTC()

	r.mu.Lock()
	pkg, existed := r.packages[id]
	if !existed {
		pkg = &models.TrackedPackage{
			Owner:       owner,
			RepoName:    repo,
			InstallDate: now,
		}
		r.packages[id] = pkg
	}
	pkg.Kind = kind
	pkg.InstallSource = source
	pkg.InstalledVersion = version
	pkg.LatestVersion = version
	pkg.UpdateAvailable = false
	pkg.Mode = mode
	pkg.AssetName = assetName
	pkg.LastUpdate = now

	err := r.persistPackagesLocked()
	snapshot := *pkg
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if existed {
		r.publish(Event{Type: EventUpdated, Package: snapshot})
	} else {
		r.publish(Event{Type: EventCreated, Package: snapshot})
	}
	return &snapshot, nil
}

// Remove drops a package from the registry. Removing an unknown ID is not an
// error; the caller only cares that it is gone.
func (r *Registry) Remove(id string) (bool, error) {
	r.mu.Lock()
	pkg, ok := r.packages[id]
	if !ok {
		r.mu.Unlock()
		return false, nil
	}
	snapshot := *pkg
	delete(r.packages, id)
	err := r.persistPackagesLocked()
	r.mu.Unlock()
	if err != nil {
		return false, err
	}

	r.publish(Event{Type: EventRemoved, Package: snapshot})
	return true, nil
}

// Get returns a copy of the package with the given ID.
func (r *Registry) Get(id string) (*models.TrackedPackage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pkg, ok := r.packages[id]
	if !ok {
		return nil, false
	}
	snapshot := *pkg
	return &snapshot, true
}

// GetByRepo looks a package up by its repo coordinates.
func (r *Registry) GetByRepo(owner, repo string) (*models.TrackedPackage, bool) {
	return r.Get(DeriveID(owner, repo))
}

// List returns copies of all tracked packages, ordered by ID for stable
// output.
func (r *Registry) List() []models.TrackedPackage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.packages))
	for id := range r.packages {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]models.TrackedPackage, 0, len(ids))
	for _, id := range ids {
		out = append(out, *r.packages[id])
	}
	return out
}

// CheckUpdates queries the release source for every forge-installed package
// and records what it finds. A failing package is logged and skipped so one
// broken repo cannot starve the rest; its check timestamp still advances.
// Returns the number of packages with a pending update.
func (r *Registry) CheckUpdates(ctx context.Context, src ReleaseSource) (int, error) {
	r.mu.RLock()
	type target struct {
		id          string
		owner, repo string
	}
	var targets []target
	for id, pkg := range r.packages {
		if pkg.InstallSource != models.SourceForge {
			continue
		}
		targets = append(targets, target{id: id, owner: pkg.Owner, repo: pkg.RepoName})
	}
	r.mu.RUnlock()
	sort.Slice(targets, func(i, j int) bool { return targets[i].id < targets[j].id })

	pending := 0
	var changed []models.TrackedPackage
	for _, t := range targets {
		info, err := src.LatestRelease(ctx, t.owner, t.repo)
		now := time.Now().UTC()

		r.mu.Lock()
		pkg, ok := r.packages[t.id]
		if !ok {
			// Removed while we were checking.
			r.mu.Unlock()
			continue
		}
		pkg.LastCheck = &now
		if err != nil {
			r.mu.Unlock()
			log.Printf("Update check for %s/%s failed: %v", t.owner, t.repo, err)
			continue
		}
		if info == nil || info.Tag == "" {
			r.mu.Unlock()
			continue
		}

		wasAvailable := pkg.UpdateAvailable
		pkg.LatestVersion = info.Tag
		pkg.UpdateAvailable = pkg.LatestVersion != pkg.InstalledVersion
		pkg.ReleaseSummary = info.Title
		pkg.ReleaseNotes = info.Notes
		if pkg.UpdateAvailable {
			pending++
		}
		if pkg.UpdateAvailable != wasAvailable {
			changed = append(changed, *pkg)
		}
		r.mu.Unlock()
	}

	r.mu.Lock()
	err := r.persistPackagesLocked()
	r.mu.Unlock()
	if err != nil {
		return pending, err
	}

	for _, pkg := range changed {
		r.publish(Event{Type: EventUpdated, Package: pkg})
	}
	return pending, nil
}

// persistPackagesLocked writes the snapshot document. Callers hold r.mu.
func (r *Registry) persistPackagesLocked() error {
	doc := packagesDocument{Schema: store.SchemaVersion, Packages: r.packages}
	return r.store.SaveDocument(store.KeyPackages, doc)
}

// VersionHint classifies the jump between two versions for display. Returns
// "major", "minor" or "patch" when both parse as semantic versions, and ""
// otherwise. Update detection never depends on this; it is purely a UI aid.
func VersionHint(installed, latest string) string {
	from, err := semver.NewVersion(strings.TrimPrefix(installed, "v"))
	if err != nil {
		return ""
	}
	to, err := semver.NewVersion(strings.TrimPrefix(latest, "v"))
	if err != nil {
		return ""
	}
	switch {
	case to.Major() != from.Major():
		return "major"
	case to.Minor() != from.Minor():
		return "minor"
	case to.Patch() != from.Patch():
		return "patch"
	}
	return ""
}
